package charge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultIdleTTL = 30 * time.Minute

// Recorder persists flow transitions for auditing
type Recorder interface {
	RecordTransition(ctx context.Context, flowID uuid.UUID, t Transition) error
}

// Observer receives every flow transition
type Observer interface {
	ObserveTransition(t Transition)
}

// RegistryConfig configures a Registry. Recorder and Observer are optional.
type RegistryConfig struct {
	IdleTTL  time.Duration
	Recorder Recorder
	Observer Observer
	Logger   *slog.Logger
}

type entry struct {
	flow     *Flow
	owner    string
	lastUsed time.Time
}

// Registry keeps the live flows of all sessions. Flows idle for longer than
// IdleTTL are evicted by a background sweep.
type Registry struct {
	mu    sync.Mutex
	flows map[uuid.UUID]*entry

	ttl      time.Duration
	recorder Recorder
	observer Observer
	logger   *slog.Logger
	now      func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewRegistry creates a registry and starts its sweep goroutine; call Close to stop it
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := &Registry{
		flows:    make(map[uuid.UUID]*entry),
		ttl:      cfg.IdleTTL,
		recorder: cfg.Recorder,
		observer: cfg.Observer,
		logger:   cfg.Logger,
		now:      time.Now,
		done:     make(chan struct{}),
	}

	go r.sweepLoop()

	return r
}

// Create starts a new flow owned by owner. The registry installs its own
// transition hook, replacing any passed in opts.
func (r *Registry) Create(owner string, gateway Gateway, opts ...Option) (uuid.UUID, *Flow) {
	id := uuid.New()
	opts = append(opts, WithTransitionHook(func(ctx context.Context, t Transition) {
		r.onTransition(ctx, id, t)
	}))
	flow := NewFlow(gateway, opts...)

	r.mu.Lock()
	r.flows[id] = &entry{flow: flow, owner: owner, lastUsed: r.now()}
	r.mu.Unlock()

	r.logger.Debug("charge flow created", "flow_id", id)
	return id, flow
}

// Get returns the flow id if it belongs to owner
func (r *Registry) Get(id uuid.UUID, owner string) (*Flow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.flows[id]
	if !ok || e.owner != owner {
		return nil, ErrNotFound
	}
	e.lastUsed = r.now()
	return e.flow, nil
}

// Delete removes the flow id if it belongs to owner
func (r *Registry) Delete(id uuid.UUID, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.flows[id]
	if !ok || e.owner != owner {
		return ErrNotFound
	}
	delete(r.flows, id)
	return nil
}

// Len returns the number of live flows
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}

// Sweep evicts flows idle for longer than the TTL and returns how many were
// removed. Flows with a request in flight are kept.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for id, e := range r.flows {
		if e.lastUsed.Before(cutoff) && !e.flow.Loading() {
			delete(r.flows, id)
			removed++
		}
	}
	return removed
}

// Close stops the sweep goroutine
func (r *Registry) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info("evicted idle charge flows", "count", n)
			}
		}
	}
}

func (r *Registry) onTransition(ctx context.Context, id uuid.UUID, t Transition) {
	r.logger.InfoContext(ctx, "charge flow transition",
		"flow_id", id,
		"from", t.From,
		"to", t.To,
		"outcome", t.Label(),
		"reference", t.Reference,
	)

	if r.observer != nil {
		r.observer.ObserveTransition(t)
	}
	if r.recorder != nil {
		if err := r.recorder.RecordTransition(ctx, id, t); err != nil {
			r.logger.ErrorContext(ctx, "failed to record charge transition", "flow_id", id, "error", err)
		}
	}
}
