package charge

// Step is the input the flow is waiting for
type Step string

const (
	StepCardEntry        Step = "CARD_ENTRY"
	StepPINRequired      Step = "PIN_REQUIRED"
	StepOTPRequired      Step = "OTP_REQUIRED"
	StepPhoneRequired    Step = "PHONE_REQUIRED"
	StepBirthdayRequired Step = "BIRTHDAY_REQUIRED"
	StepAddressRequired  Step = "ADDRESS_REQUIRED"
	StepThreeDSRequired  Step = "THREE_DS_REQUIRED"
	StepSuccess          Step = "SUCCESS"
)

// Challenge names the single value a challenge step collects. It doubles as
// the request field name and the endpoint suffix.
type Challenge string

const (
	ChallengePIN      Challenge = "pin"
	ChallengeOTP      Challenge = "otp"
	ChallengePhone    Challenge = "phone"
	ChallengeBirthday Challenge = "birthday"
	ChallengeAddress  Challenge = "address"
)

// Challenge returns the challenge collected at s, if s is a challenge step
func (s Step) Challenge() (Challenge, bool) {
	switch s {
	case StepPINRequired:
		return ChallengePIN, true
	case StepOTPRequired:
		return ChallengeOTP, true
	case StepPhoneRequired:
		return ChallengePhone, true
	case StepBirthdayRequired:
		return ChallengeBirthday, true
	case StepAddressRequired:
		return ChallengeAddress, true
	default:
		return "", false
	}
}

// Terminal reports whether no further submission can move the flow without a reset
func (s Step) Terminal() bool {
	return s == StepSuccess || s == StepThreeDSRequired
}
