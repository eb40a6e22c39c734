package charge

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Field names used for field-scoped validation errors
const (
	FieldNumber   = "number"
	FieldCVV      = "cvv"
	FieldExpiry   = "expiry"
	FieldPIN      = "pin"
	FieldOTP      = "otp"
	FieldPhone    = "phone"
	FieldBirthday = "birthday"
	FieldAddress  = "address"
)

// fields checked by ValidateCard
var cardFields = []string{FieldNumber, FieldCVV, FieldExpiry}

// Expiry parse errors
var (
	ErrExpiryFormat = errors.New("expiry must be in MM/YY format")
	ErrExpiryMonth  = errors.New("invalid expiry month")
	ErrCardExpired  = errors.New("card has expired")
)

// Card is the raw card input as typed by the user
type Card struct {
	Number string `json:"number"`
	CVV    string `json:"cvv"`
	// Expiry is MM/YY.
	Expiry string `json:"expiry"`
}

// ValidateCard checks card input against now and returns errors keyed by field
func ValidateCard(card Card, now time.Time) map[string]string {
	errs := make(map[string]string)

	number := NormalizeCardNumber(card.Number)
	if !isDigits(number) || len(number) < 16 || len(number) > 19 {
		errs[FieldNumber] = "card number must be 16 to 19 digits"
	}

	cvv := strings.TrimSpace(card.CVV)
	if !isDigits(cvv) || len(cvv) < 3 || len(cvv) > 4 {
		errs[FieldCVV] = "cvv must be 3 or 4 digits"
	}

	if _, _, err := ParseExpiry(card.Expiry, now); err != nil {
		errs[FieldExpiry] = err.Error()
	}

	return errs
}

// NormalizeCardNumber strips spaces from a card number
func NormalizeCardNumber(number string) string {
	return strings.ReplaceAll(strings.TrimSpace(number), " ", "")
}

// ParseExpiry parses MM/YY and rejects expiries before the month of now.
// A card expiring in the current month is still valid.
func ParseExpiry(expiry string, now time.Time) (month, year int, err error) {
	mm, yy, ok := strings.Cut(strings.TrimSpace(expiry), "/")
	if !ok || len(mm) != 2 || len(yy) != 2 || !isDigits(mm) || !isDigits(yy) {
		return 0, 0, ErrExpiryFormat
	}

	month, _ = strconv.Atoi(mm)
	if month < 1 || month > 12 {
		return 0, 0, ErrExpiryMonth
	}
	year, _ = strconv.Atoi(yy)
	year += 2000

	expires := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if expires.Before(current) {
		return 0, 0, ErrCardExpired
	}

	return month, year, nil
}

// ValidateChallenge checks the single input of a challenge step. It returns
// the field name and a message, or empty strings when value is acceptable.
func ValidateChallenge(ch Challenge, value string) (field, message string) {
	value = strings.TrimSpace(value)

	switch ch {
	case ChallengePIN:
		if !isDigits(value) || len(value) < 4 {
			return FieldPIN, "pin must be at least 4 digits"
		}
	case ChallengeOTP:
		// issuer OTP formats vary; only presence is checked
		if value == "" {
			return FieldOTP, "otp is required"
		}
	case ChallengePhone:
		if value == "" {
			return FieldPhone, "phone number is required"
		}
	case ChallengeBirthday:
		if value == "" {
			return FieldBirthday, "birthday is required"
		}
	case ChallengeAddress:
		if value == "" {
			return FieldAddress, "address is required"
		}
	default:
		return string(ch), "unsupported challenge"
	}
	return "", ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
