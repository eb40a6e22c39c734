package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/replydesk/server/internal/charge"
	"github.com/replydesk/server/internal/logger"
	"github.com/replydesk/server/internal/middleware"
	"github.com/replydesk/server/internal/session"
)

// GatewayFactory binds a charge gateway to one caller's bearer token
type GatewayFactory interface {
	Gateway(token string) charge.Gateway
}

// ChargeHandler exposes the card charge flow
type ChargeHandler struct {
	registry *charge.Registry
	gateways GatewayFactory
	logger   *slog.Logger
}

// NewChargeHandler creates a new charge handler
func NewChargeHandler(registry *charge.Registry, gateways GatewayFactory, logger *slog.Logger) *ChargeHandler {
	return &ChargeHandler{registry: registry, gateways: gateways, logger: logger}
}

// cardRequest is the request body for POST /payment/flows/{id}/card
type cardRequest struct {
	Number string `json:"number"`
	CVV    string `json:"cvv"`
	Expiry string `json:"expiry"`
	Email  string `json:"email"`
	Amount int64  `json:"amount"`
}

// challengeRequest is the request body for POST /payment/flows/{id}/challenge
type challengeRequest struct {
	Value string `json:"value"`
}

// editRequest is the request body for POST /payment/flows/{id}/edit
type editRequest struct {
	Field string `json:"field"`
}

// flowResponse carries a flow snapshot
type flowResponse struct {
	ID    uuid.UUID    `json:"id"`
	State charge.State `json:"state"`
}

// flowErrorResponse is returned when a flow operation fails
type flowErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
	State  *charge.State     `json:"state,omitempty"`
}

// HandleCreate handles POST /payment/flows
func (h *ChargeHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSession(r.Context())
	key, hasKey := middleware.GetSessionKey(r.Context())
	if !ok || !hasKey || !sess.HasToken() {
		respondWithError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	owner := session.HashKey(key)

	var id uuid.UUID
	id, flow := h.registry.Create(owner, h.gateways.Gateway(sess.Token),
		charge.WithSuccessHandler(func(payload json.RawMessage) {
			h.logger.Info("charge succeeded", "flow_id", id, "payload_bytes", len(payload))
		}),
	)

	respondJSON(w, http.StatusCreated, flowResponse{ID: id, State: flow.Snapshot()})
}

// HandleGet handles GET /payment/flows/{id}
func (h *ChargeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, flow, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, flowResponse{ID: id, State: flow.Snapshot()})
}

// HandleCard handles POST /payment/flows/{id}/card
func (h *ChargeHandler) HandleCard(w http.ResponseWriter, r *http.Request) {
	id, flow, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req cardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount <= 0 {
		respondWithError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		if sess, ok := middleware.GetSession(r.Context()); ok && sess.Profile != nil {
			req.Email = sess.Profile.Email
		}
	}

	h.logger.InfoContext(r.Context(), "charge submitted",
		"flow_id", id,
		"card", logger.MaskCard(req.Number),
		"amount", req.Amount,
	)

	err := flow.SubmitCard(r.Context(),
		charge.Card{Number: req.Number, CVV: req.CVV, Expiry: req.Expiry},
		charge.Order{Email: req.Email, Amount: req.Amount},
	)
	h.respondFlow(w, r, id, flow, err)
}

// HandleChallenge handles POST /payment/flows/{id}/challenge
func (h *ChargeHandler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	id, flow, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := flow.SubmitChallenge(r.Context(), req.Value)
	h.respondFlow(w, r, id, flow, err)
}

// HandleEdit handles POST /payment/flows/{id}/edit
func (h *ChargeHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	id, flow, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Field == "" {
		respondWithError(w, http.StatusBadRequest, "field is required")
		return
	}

	flow.EditField(req.Field)
	respondJSON(w, http.StatusOK, flowResponse{ID: id, State: flow.Snapshot()})
}

// HandleDismiss handles POST /payment/flows/{id}/dismiss
func (h *ChargeHandler) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	id, flow, ok := h.lookup(w, r)
	if !ok {
		return
	}
	flow.DismissMessage()
	respondJSON(w, http.StatusOK, flowResponse{ID: id, State: flow.Snapshot()})
}

// HandleReset handles POST /payment/flows/{id}/reset
func (h *ChargeHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	id, flow, ok := h.lookup(w, r)
	if !ok {
		return
	}
	flow.Reset(r.Context())
	respondJSON(w, http.StatusOK, flowResponse{ID: id, State: flow.Snapshot()})
}

// HandleDelete handles DELETE /payment/flows/{id}
func (h *ChargeHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, flow, ok := h.lookup(w, r)
	if !ok {
		return
	}
	// cancels any in-flight call before the flow is dropped
	flow.Reset(r.Context())
	if err := h.registry.Delete(id, h.owner(r)); err != nil {
		respondWithError(w, http.StatusNotFound, "flow not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChargeHandler) lookup(w http.ResponseWriter, r *http.Request) (uuid.UUID, *charge.Flow, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusNotFound, "flow not found")
		return uuid.Nil, nil, false
	}
	flow, err := h.registry.Get(id, h.owner(r))
	if err != nil {
		respondWithError(w, http.StatusNotFound, "flow not found")
		return uuid.Nil, nil, false
	}
	return id, flow, true
}

// owner identifies the session that created a flow
func (h *ChargeHandler) owner(r *http.Request) string {
	key, _ := middleware.GetSessionKey(r.Context())
	return session.HashKey(key)
}

func (h *ChargeHandler) respondFlow(w http.ResponseWriter, r *http.Request, id uuid.UUID, flow *charge.Flow, err error) {
	state := flow.Snapshot()
	if err == nil {
		respondJSON(w, http.StatusOK, flowResponse{ID: id, State: state})
		return
	}

	status, resp := flowError(err)
	resp.State = &state
	if status >= http.StatusInternalServerError {
		h.logger.WarnContext(r.Context(), "charge flow call failed", "flow_id", id, "step", state.Step, "error", err)
	}
	respondJSON(w, status, resp)
}

// flowError maps flow errors onto HTTP statuses
func flowError(err error) (int, flowErrorResponse) {
	var (
		verr *charge.ValidationError
		terr *charge.TransportError
		rerr *charge.RejectionError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, flowErrorResponse{Error: "validation failed", Fields: verr.Fields}
	case errors.As(err, &terr):
		return http.StatusBadGateway, flowErrorResponse{Error: "payment server unavailable"}
	case errors.As(err, &rerr):
		return http.StatusPaymentRequired, flowErrorResponse{Error: rerr.Message}
	case errors.Is(err, charge.ErrBusy):
		return http.StatusConflict, flowErrorResponse{Error: "a request is already in progress"}
	case errors.Is(err, charge.ErrStale):
		return http.StatusConflict, flowErrorResponse{Error: "the charge was reset while the request was in flight"}
	case errors.Is(err, charge.ErrRestartRequired):
		return http.StatusConflict, flowErrorResponse{Error: "start a new charge"}
	case errors.Is(err, charge.ErrTerminated):
		return http.StatusConflict, flowErrorResponse{Error: "the charge is already complete"}
	case errors.Is(err, charge.ErrWrongStep):
		return http.StatusConflict, flowErrorResponse{Error: "the charge is not waiting for this input"}
	default:
		return http.StatusInternalServerError, flowErrorResponse{Error: "internal error"}
	}
}
