package charge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"
)

// Transition describes one state change of a flow. Resets and failed calls
// are reported too.
type Transition struct {
	From      Step
	To        Step
	Outcome   OutcomeKind
	Reference string
	Reset     bool
	Err       error
	At        time.Time
}

// Label is a short, low-cardinality name for the transition
func (t Transition) Label() string {
	var te *TransportError
	var re *RejectionError
	switch {
	case t.Reset:
		return "reset"
	case errors.As(t.Err, &te):
		return "transport_error"
	case errors.As(t.Err, &re):
		return "rejected"
	default:
		return t.Outcome.String()
	}
}

// State is a point-in-time copy of a flow
type State struct {
	Step        Step              `json:"step"`
	Reference   string            `json:"reference,omitempty"`
	AuthURL     string            `json:"auth_url,omitempty"`
	Prompt      string            `json:"prompt,omitempty"`
	Loading     bool              `json:"loading"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
	Message     string            `json:"message,omitempty"`
	Failed      bool              `json:"failed"`
	Payload     json.RawMessage   `json:"payload,omitempty"`
}

// Option configures a Flow
type Option func(*Flow)

// WithClock overrides the clock used for expiry validation
func WithClock(now func() time.Time) Option {
	return func(f *Flow) { f.now = now }
}

// WithSuccessHandler registers the callback fired once with the success payload
func WithSuccessHandler(fn func(payload json.RawMessage)) Option {
	return func(f *Flow) { f.onSuccess = fn }
}

// WithTransitionHook registers a callback for every transition
func WithTransitionHook(fn func(ctx context.Context, t Transition)) Option {
	return func(f *Flow) { f.onTransition = fn }
}

// Flow drives a single card charge through issuer challenges to a terminal
// state. It is safe for concurrent use, but only one submission may be in
// flight at a time.
type Flow struct {
	gateway      Gateway
	now          func() time.Time
	onSuccess    func(json.RawMessage)
	onTransition func(context.Context, Transition)

	mu        sync.Mutex
	step      Step
	reference string
	authURL   string
	prompt    string
	loading   bool
	fieldErrs map[string]string
	message   string
	failure   *RejectionError
	payload   json.RawMessage

	// gen identifies the current attempt; responses carrying an older
	// generation are dropped.
	gen    uint64
	cancel context.CancelFunc
}

// NewFlow creates a flow at CARD_ENTRY
func NewFlow(gateway Gateway, opts ...Option) *Flow {
	f := &Flow{
		gateway:   gateway,
		now:       time.Now,
		step:      StepCardEntry,
		fieldErrs: make(map[string]string),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SubmitCard validates card locally and, if it passes, initiates the charge.
// The card is not retained after the call.
func (f *Flow) SubmitCard(ctx context.Context, card Card, order Order) error {
	f.mu.Lock()
	if err := f.checkSubmittable(StepCardEntry); err != nil {
		f.mu.Unlock()
		return err
	}

	now := f.now()
	for _, field := range cardFields {
		delete(f.fieldErrs, field)
	}
	if errs := ValidateCard(card, now); len(errs) > 0 {
		maps.Copy(f.fieldErrs, errs)
		f.mu.Unlock()
		return &ValidationError{Fields: errs}
	}

	month, year, _ := ParseExpiry(card.Expiry, now)
	req := ChargeRequest{
		Email:  strings.TrimSpace(order.Email),
		Amount: order.Amount,
		Card: CardDetails{
			Number:      NormalizeCardNumber(card.Number),
			CVV:         strings.TrimSpace(card.CVV),
			ExpiryMonth: fmt.Sprintf("%02d", month),
			ExpiryYear:  fmt.Sprintf("%02d", year%100),
		},
	}

	gen, callCtx := f.begin(ctx)
	f.mu.Unlock()

	out, err := f.gateway.Charge(callCtx, req)
	return f.finish(ctx, gen, StepCardEntry, out, err)
}

// SubmitChallenge submits the input for the current challenge step together
// with the stored reference.
func (f *Flow) SubmitChallenge(ctx context.Context, value string) error {
	f.mu.Lock()
	step := f.step
	ch, ok := step.Challenge()
	if !ok {
		err := f.checkSubmittable(step)
		if err == nil {
			err = ErrWrongStep
		}
		f.mu.Unlock()
		return err
	}
	if err := f.checkSubmittable(step); err != nil {
		f.mu.Unlock()
		return err
	}

	// challenge values are posted under the field of the same name
	delete(f.fieldErrs, string(ch))
	if field, msg := ValidateChallenge(ch, value); field != "" {
		f.fieldErrs[field] = msg
		f.mu.Unlock()
		return &ValidationError{Fields: map[string]string{field: msg}}
	}

	reference := f.reference
	gen, callCtx := f.begin(ctx)
	f.mu.Unlock()

	out, err := f.gateway.Submit(callCtx, ch, strings.TrimSpace(value), reference)
	return f.finish(ctx, gen, step, out, err)
}

// Reset abandons the current attempt and returns to CARD_ENTRY. Any in-flight
// request is cancelled and its response discarded.
func (f *Flow) Reset(ctx context.Context) {
	f.mu.Lock()
	from := f.step
	f.gen++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.step = StepCardEntry
	f.reference = ""
	f.authURL = ""
	f.prompt = ""
	f.loading = false
	f.fieldErrs = make(map[string]string)
	f.message = ""
	f.failure = nil
	f.payload = nil
	f.mu.Unlock()

	f.notify(ctx, Transition{From: from, To: StepCardEntry, Reset: true, At: f.now()})
}

// EditField clears the validation error of a single field
func (f *Flow) EditField(field string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.fieldErrs, field)
}

// DismissMessage clears the flow-level banner message
func (f *Flow) DismissMessage() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = ""
}

// Loading reports whether a submission is in flight
func (f *Flow) Loading() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loading
}

// Snapshot returns a copy of the flow state
func (f *Flow) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := State{
		Step:      f.step,
		Reference: f.reference,
		AuthURL:   f.authURL,
		Prompt:    f.prompt,
		Loading:   f.loading,
		Message:   f.message,
		Failed:    f.failure != nil,
		Payload:   f.payload,
	}
	if len(f.fieldErrs) > 0 {
		s.FieldErrors = maps.Clone(f.fieldErrs)
	}
	return s
}

// checkSubmittable must be called with mu held
func (f *Flow) checkSubmittable(expected Step) error {
	switch {
	case f.loading:
		return ErrBusy
	case f.step == StepSuccess:
		return ErrTerminated
	case f.failure != nil, f.step == StepThreeDSRequired:
		return ErrRestartRequired
	case f.step != expected:
		return ErrWrongStep
	}
	return nil
}

// begin must be called with mu held
func (f *Flow) begin(ctx context.Context) (uint64, context.Context) {
	f.gen++
	callCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.loading = true
	f.message = ""
	return f.gen, callCtx
}

func (f *Flow) finish(ctx context.Context, gen uint64, from Step, out Outcome, callErr error) error {
	f.mu.Lock()
	if gen != f.gen {
		f.mu.Unlock()
		return ErrStale
	}
	f.loading = false
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}

	t := Transition{From: from, To: from, Outcome: out.Kind, At: f.now()}

	if callErr != nil {
		err := &TransportError{Step: from, Err: callErr}
		f.message = publicMessage(callErr)
		t.Outcome = OutcomeUnknown
		t.Reference = f.reference
		t.Err = err
		f.mu.Unlock()
		f.notify(ctx, t)
		return err
	}

	// the reference is fixed by the first response that carries one
	if f.reference == "" && out.Reference != "" {
		f.reference = out.Reference
	}
	t.Reference = f.reference

	next, ok := out.Kind.NextStep()
	if ok && next == StepThreeDSRequired && out.URL == "" {
		ok = false
		out.Message = firstNonEmpty(out.Message, "authorization link missing from payment server response")
	}
	if !ok {
		msg := firstNonEmpty(out.Message, UnexpectedResponseMessage)
		err := &RejectionError{Status: out.Status, Message: msg}
		f.failure = err
		f.message = msg
		t.Err = err
		f.mu.Unlock()
		f.notify(ctx, t)
		return err
	}

	f.step = next
	t.To = next
	var payload json.RawMessage
	switch next {
	case StepThreeDSRequired:
		f.authURL = out.URL
		f.prompt = out.Message
	case StepSuccess:
		f.payload = out.Data
		f.prompt = ""
		payload = out.Data
	default:
		f.prompt = out.Message
	}
	onSuccess := f.onSuccess
	f.mu.Unlock()

	f.notify(ctx, t)
	if next == StepSuccess && onSuccess != nil {
		onSuccess(payload)
	}
	return nil
}

// publicMessage prefers a display message carried by the error chain, such
// as the backend's {"message"} on a non-2xx response.
func publicMessage(err error) string {
	var pm interface{ PublicMessage() string }
	if errors.As(err, &pm) && pm.PublicMessage() != "" {
		return pm.PublicMessage()
	}
	return err.Error()
}

func (f *Flow) notify(ctx context.Context, t Transition) {
	if f.onTransition != nil {
		f.onTransition(ctx, t)
	}
}
