package model

import (
	"time"

	"github.com/google/uuid"
)

// WhatsAppConnected is the only whatsapp_status value that lets a business
// past onboarding.
const WhatsAppConnected = "CONNECTED"

// Business is the business attached to a user profile
type Business struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name,omitempty"`
	WhatsAppStatus string `json:"whatsapp_status"`
	WabaID         string `json:"waba_id,omitempty"`
	PhoneNumberID  string `json:"phone_number_id,omitempty"`
}

// UserProfile is the cached user blob from the last login or refresh response
type UserProfile struct {
	ID        string    `json:"id,omitempty"`
	Email     string    `json:"email,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	UserType  string    `json:"user_type,omitempty"`
	Role      string    `json:"role,omitempty"`
	Business  *Business `json:"business"`
}

// Session is the client-held session: bearer token plus cached profile.
// Either field may be empty.
type Session struct {
	Token   string       `json:"token,omitempty"`
	Profile *UserProfile `json:"profile,omitempty"`
}

// HasToken reports whether a bearer token is present
func (s Session) HasToken() bool {
	return s.Token != ""
}

// SessionRecord is a persisted session row
type SessionRecord struct {
	ID        uuid.UUID
	KeyHash   string
	Session   Session
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt *time.Time
}

// ChargeEvent is one audited step transition of a charge flow. Card data is
// never part of an event.
type ChargeEvent struct {
	ID        uuid.UUID
	FlowID    uuid.UUID
	Reference string
	FromStep  string
	ToStep    string
	Outcome   string
	Message   string
	CreatedAt time.Time
}
