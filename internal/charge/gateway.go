package charge

//go:generate mockgen -destination=mocks/gateway.go -package=mocks github.com/replydesk/server/internal/charge Gateway

import "context"

// Order is what the card is charged for
type Order struct {
	Email  string `json:"email"`
	Amount int64  `json:"amount"`
}

// CardDetails is the card as sent to the payment-initiation endpoint
type CardDetails struct {
	Number      string `json:"number"`
	CVV         string `json:"cvv"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
}

// ChargeRequest is the body of the payment-initiation call
type ChargeRequest struct {
	Email  string      `json:"email"`
	Amount int64       `json:"amount"`
	Card   CardDetails `json:"card"`
}

// Gateway performs the network calls of a charge. Implementations return a
// non-nil error only for transport-level failures; business failures come
// back as an Outcome.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (Outcome, error)
	Submit(ctx context.Context, ch Challenge, value, reference string) (Outcome, error)
}
