package charge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Outcome
	}{
		{
			name: "send pin with reference",
			body: `{"status":true,"data":{"status":"send_pin","reference":"abc123"}}`,
			want: Outcome{Kind: OutcomeSendPIN, Status: "send_pin", Reference: "abc123"},
		},
		{
			name: "send otp with display text",
			body: `{"data":{"status":"send_otp","reference":"abc123","display_text":"Enter the OTP sent to 080****1234"}}`,
			want: Outcome{Kind: OutcomeSendOTP, Status: "send_otp", Reference: "abc123", Message: "Enter the OTP sent to 080****1234"},
		},
		{
			name: "status is case insensitive",
			body: `{"data":{"status":"SEND_PHONE"}}`,
			want: Outcome{Kind: OutcomeSendPhone, Status: "SEND_PHONE"},
		},
		{
			name: "birthday",
			body: `{"data":{"status":"send_birthday"}}`,
			want: Outcome{Kind: OutcomeSendBirthday, Status: "send_birthday"},
		},
		{
			name: "address",
			body: `{"data":{"status":"send_address"}}`,
			want: Outcome{Kind: OutcomeSendAddress, Status: "send_address"},
		},
		{
			name: "open url",
			body: `{"data":{"status":"open_url","url":"https://bank.example/3ds"}}`,
			want: Outcome{Kind: OutcomeOpenURL, Status: "open_url", URL: "https://bank.example/3ds"},
		},
		{
			name: "success",
			body: `{"data":{"status":"success","amount":10000}}`,
			want: Outcome{Kind: OutcomeSuccess, Status: "success"},
		},
		{
			name: "top-level true without recognised sub-status",
			body: `{"status":true,"message":"Charge attempted","data":{"amount":500}}`,
			want: Outcome{Kind: OutcomeSuccess, Message: "Charge attempted"},
		},
		{
			name: "unknown status",
			body: `{"status":false,"message":"Declined","data":{"status":"failed"}}`,
			want: Outcome{Kind: OutcomeUnknown, Status: "failed", Message: "Declined"},
		},
		{
			name: "data message wins over envelope message",
			body: `{"message":"Charge attempted","data":{"status":"pending","message":"Bank is processing"}}`,
			want: Outcome{Kind: OutcomeUnknown, Status: "pending", Message: "Bank is processing"},
		},
		{
			name: "string top-level status is not a boolean",
			body: `{"status":"true"}`,
			want: Outcome{Kind: OutcomeUnknown},
		},
		{
			name: "null data",
			body: `{"status":false,"data":null}`,
			want: Outcome{Kind: OutcomeUnknown},
		},
		{
			name: "empty object",
			body: `{}`,
			want: Outcome{Kind: OutcomeUnknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOutcome([]byte(tt.body))
			require.NoError(t, err)
			got.Data = nil
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOutcome_keepsData(t *testing.T) {
	got, err := ParseOutcome([]byte(`{"data":{"status":"success","amount":10000}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","amount":10000}`, string(got.Data))
}

func TestParseOutcome_malformed(t *testing.T) {
	for _, body := range []string{``, `not json`, `{"data":"oops"}`, `[1,2]`} {
		_, err := ParseOutcome([]byte(body))
		assert.Error(t, err, body)
	}
}

func TestOutcomeKind_NextStep(t *testing.T) {
	want := map[OutcomeKind]Step{
		OutcomeSendPIN:      StepPINRequired,
		OutcomeSendOTP:      StepOTPRequired,
		OutcomeSendPhone:    StepPhoneRequired,
		OutcomeSendBirthday: StepBirthdayRequired,
		OutcomeSendAddress:  StepAddressRequired,
		OutcomeOpenURL:      StepThreeDSRequired,
		OutcomeSuccess:      StepSuccess,
	}
	for kind, step := range want {
		got, ok := kind.NextStep()
		assert.True(t, ok, kind.String())
		assert.Equal(t, step, got, kind.String())
	}

	_, ok := OutcomeUnknown.NextStep()
	assert.False(t, ok)
	assert.Equal(t, "unknown", OutcomeKind(99).String())
}
