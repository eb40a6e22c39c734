package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/replydesk/server/internal/charge"
	"github.com/replydesk/server/internal/model"
)

// ChargeEventRepo persists charge flow transitions. It implements charge.Recorder.
type ChargeEventRepo interface {
	RecordTransition(ctx context.Context, flowID uuid.UUID, t charge.Transition) error
	ListByFlow(ctx context.Context, flowID uuid.UUID) ([]model.ChargeEvent, error)
}

type chargeEventRepo struct {
	db *sql.DB
}

// NewChargeEventRepo creates a new ChargeEventRepo instance
func NewChargeEventRepo(db *sql.DB) ChargeEventRepo {
	return &chargeEventRepo{db: db}
}

// RecordTransition inserts one audit row. Only step names, the reference and
// the outcome are stored.
func (r *chargeEventRepo) RecordTransition(ctx context.Context, flowID uuid.UUID, t charge.Transition) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO charge_events (flow_id, reference, from_step, to_step, outcome, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, flowID, t.Reference, string(t.From), string(t.To), t.Label(), eventMessage(t), t.At)
	if err != nil {
		return fmt.Errorf("insert charge event: %w", err)
	}
	return nil
}

// ListByFlow returns the events of a flow, oldest first
func (r *chargeEventRepo) ListByFlow(ctx context.Context, flowID uuid.UUID) ([]model.ChargeEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, flow_id, reference, from_step, to_step, outcome, message, created_at
		FROM charge_events
		WHERE flow_id = $1
		ORDER BY created_at, id
	`, flowID)
	if err != nil {
		return nil, fmt.Errorf("query charge events: %w", err)
	}
	defer rows.Close()

	var events []model.ChargeEvent
	for rows.Next() {
		var e model.ChargeEvent
		if err := rows.Scan(&e.ID, &e.FlowID, &e.Reference, &e.FromStep, &e.ToStep, &e.Outcome, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan charge event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate charge events: %w", err)
	}
	return events, nil
}

func eventMessage(t charge.Transition) string {
	var re *charge.RejectionError
	if errors.As(t.Err, &re) {
		return re.Message
	}
	var te *charge.TransportError
	if errors.As(t.Err, &te) {
		return "backend call failed"
	}
	return ""
}
