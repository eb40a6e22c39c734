package charge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testNow = time.Date(2026, time.October, 17, 12, 0, 0, 0, time.UTC)

func TestValidateCard_number(t *testing.T) {
	valid := Card{CVV: "123", Expiry: "12/30"}

	for _, number := range []string{"4242424242424242", "4242 4242 4242 4242", "4000000000000002", "6011000990139424123"} {
		c := valid
		c.Number = number
		assert.Empty(t, ValidateCard(c, testNow), number)
	}

	for _, number := range []string{"", "4242 4242", "424242424242424", "42424242424242424242", "4242-4242-4242-4242", "4242abcd42424242"} {
		c := valid
		c.Number = number
		assert.Contains(t, ValidateCard(c, testNow), FieldNumber, number)
	}
}

func TestValidateCard_cvv(t *testing.T) {
	valid := Card{Number: "4242424242424242", Expiry: "12/30"}

	for _, cvv := range []string{"123", "1234"} {
		c := valid
		c.CVV = cvv
		assert.Empty(t, ValidateCard(c, testNow), cvv)
	}
	for _, cvv := range []string{"", "12", "12345", "12a"} {
		c := valid
		c.CVV = cvv
		assert.Contains(t, ValidateCard(c, testNow), FieldCVV, cvv)
	}
}

func TestParseExpiry(t *testing.T) {
	month, year, err := ParseExpiry("12/30", testNow)
	assert.NoError(t, err)
	assert.Equal(t, 12, month)
	assert.Equal(t, 2030, year)

	_, _, err = ParseExpiry("10/26", testNow)
	assert.NoError(t, err, "the current month is still valid")

	_, _, err = ParseExpiry("13/25", testNow)
	assert.ErrorIs(t, err, ErrExpiryMonth)

	_, _, err = ParseExpiry("00/30", testNow)
	assert.ErrorIs(t, err, ErrExpiryMonth)

	_, _, err = ParseExpiry("01/20", testNow)
	assert.ErrorIs(t, err, ErrCardExpired)

	_, _, err = ParseExpiry("09/26", testNow)
	assert.ErrorIs(t, err, ErrCardExpired, "last month has passed")

	for _, bad := range []string{"", "1230", "1/30", "12/2030", "ab/cd", "12-30"} {
		_, _, err = ParseExpiry(bad, testNow)
		assert.ErrorIs(t, err, ErrExpiryFormat, bad)
	}
}

func TestValidateCard_collectsAllFields(t *testing.T) {
	errs := ValidateCard(Card{Number: "4242 4242", CVV: "1", Expiry: "13/25"}, testNow)
	assert.Len(t, errs, 3)
	assert.Equal(t, ErrExpiryMonth.Error(), errs[FieldExpiry])
}

func TestValidateChallenge(t *testing.T) {
	tests := []struct {
		ch        Challenge
		value     string
		wantField string
	}{
		{ChallengePIN, "1234", ""},
		{ChallengePIN, "123456", ""},
		{ChallengePIN, "123", FieldPIN},
		{ChallengePIN, "12a4", FieldPIN},
		{ChallengeOTP, "12ab-9", ""},
		{ChallengeOTP, "   ", FieldOTP},
		{ChallengePhone, "+2348012345678", ""},
		{ChallengePhone, "", FieldPhone},
		{ChallengeBirthday, "1990-01-31", ""},
		{ChallengeBirthday, "", FieldBirthday},
		{ChallengeAddress, "1 Marina, Lagos", ""},
		{ChallengeAddress, "", FieldAddress},
	}
	for _, tt := range tests {
		field, _ := ValidateChallenge(tt.ch, tt.value)
		assert.Equal(t, tt.wantField, field, "%s=%q", tt.ch, tt.value)
	}
}
