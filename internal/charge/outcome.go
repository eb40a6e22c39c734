package charge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// OutcomeKind is the closed set of server statuses the flow understands
type OutcomeKind int

const (
	OutcomeUnknown OutcomeKind = iota
	OutcomeSendPIN
	OutcomeSendOTP
	OutcomeSendPhone
	OutcomeSendBirthday
	OutcomeSendAddress
	OutcomeOpenURL
	OutcomeSuccess
)

var outcomeNames = map[OutcomeKind]string{
	OutcomeUnknown:      "unknown",
	OutcomeSendPIN:      "send_pin",
	OutcomeSendOTP:      "send_otp",
	OutcomeSendPhone:    "send_phone",
	OutcomeSendBirthday: "send_birthday",
	OutcomeSendAddress:  "send_address",
	OutcomeOpenURL:      "open_url",
	OutcomeSuccess:      "success",
}

var outcomesByStatus = map[string]OutcomeKind{
	"send_pin":      OutcomeSendPIN,
	"send_otp":      OutcomeSendOTP,
	"send_phone":    OutcomeSendPhone,
	"send_birthday": OutcomeSendBirthday,
	"send_address":  OutcomeSendAddress,
	"open_url":      OutcomeOpenURL,
	"success":       OutcomeSuccess,
}

func (k OutcomeKind) String() string {
	if name, ok := outcomeNames[k]; ok {
		return name
	}
	return outcomeNames[OutcomeUnknown]
}

// NextStep returns the step a flow moves to on k. Unknown outcomes have no
// next step.
func (k OutcomeKind) NextStep() (Step, bool) {
	switch k {
	case OutcomeSendPIN:
		return StepPINRequired, true
	case OutcomeSendOTP:
		return StepOTPRequired, true
	case OutcomeSendPhone:
		return StepPhoneRequired, true
	case OutcomeSendBirthday:
		return StepBirthdayRequired, true
	case OutcomeSendAddress:
		return StepAddressRequired, true
	case OutcomeOpenURL:
		return StepThreeDSRequired, true
	case OutcomeSuccess:
		return StepSuccess, true
	default:
		return "", false
	}
}

// Outcome is a charge or challenge response parsed at the API boundary
type Outcome struct {
	Kind OutcomeKind
	// Status is the raw data.status string, kept for unknown outcomes.
	Status    string
	Reference string
	URL       string
	Message   string
	// Data is the raw data object, handed to the success callback.
	Data json.RawMessage
}

type envelope struct {
	Status  json.RawMessage `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type envelopeData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
	URL       string `json:"url"`
	Message   string `json:"message"`
	Display   string `json:"display_text"`
}

// ParseOutcome decodes a response envelope {status, message, data:{status,
// reference, url, ...}}. It errors only on malformed JSON; any well-formed
// body yields an Outcome, possibly OutcomeUnknown.
func ParseOutcome(body []byte) (Outcome, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Outcome{}, fmt.Errorf("decode charge response: %w", err)
	}

	var data envelopeData
	if len(env.Data) > 0 && !bytes.Equal(bytes.TrimSpace(env.Data), []byte("null")) {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return Outcome{}, fmt.Errorf("decode charge response data: %w", err)
		}
	}

	out := Outcome{
		Status:    data.Status,
		Reference: strings.TrimSpace(data.Reference),
		URL:       strings.TrimSpace(data.URL),
		Message:   firstNonEmpty(data.Message, data.Display, env.Message),
		Data:      env.Data,
	}

	kind, ok := outcomesByStatus[strings.ToLower(strings.TrimSpace(data.Status))]
	switch {
	case ok:
		out.Kind = kind
	case isTrue(env.Status):
		out.Kind = OutcomeSuccess
	default:
		out.Kind = OutcomeUnknown
	}
	return out, nil
}

func isTrue(raw json.RawMessage) bool {
	var b bool
	return json.Unmarshal(raw, &b) == nil && b
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
