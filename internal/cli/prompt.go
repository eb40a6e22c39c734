package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/replydesk/server/internal/charge"
)

// Prompter collects input for the charge loop
type Prompter interface {
	Card() (charge.Card, error)
	Challenge(ch charge.Challenge, prompt string) (string, error)
	Confirm(message string) (bool, error)
}

// defaultPrompter asks through huh forms on the terminal
type defaultPrompter struct{}

func (defaultPrompter) Card() (charge.Card, error) {
	var card charge.Card
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Card number").Placeholder("4242 4242 4242 4242").Value(&card.Number).Validate(required),
		huh.NewInput().Title("Expiry").Placeholder("MM/YY").Value(&card.Expiry).Validate(required),
		huh.NewInput().Title("CVV").EchoMode(huh.EchoModePassword).Value(&card.CVV).Validate(required),
	))
	if err := form.Run(); err != nil {
		return charge.Card{}, fmt.Errorf("prompt failed: %w", err)
	}
	return card, nil
}

func (defaultPrompter) Challenge(ch charge.Challenge, prompt string) (string, error) {
	var value string
	input := huh.NewInput().Title(challengeTitle(ch)).Value(&value).Validate(required)
	if prompt != "" {
		input = input.Description(prompt)
	}
	if ch == charge.ChallengePIN || ch == charge.ChallengeOTP {
		input = input.EchoMode(huh.EchoModePassword)
	}
	if err := huh.NewForm(huh.NewGroup(input)).Run(); err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return value, nil
}

func (defaultPrompter) Confirm(message string) (bool, error) {
	confirmed := true
	if err := huh.NewForm(huh.NewGroup(huh.NewConfirm().Title(message).Value(&confirmed))).Run(); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return confirmed, nil
}

func challengeTitle(ch charge.Challenge) string {
	switch ch {
	case charge.ChallengePIN:
		return "Card PIN"
	case charge.ChallengeOTP:
		return "One-time password"
	case charge.ChallengePhone:
		return "Phone number"
	case charge.ChallengeBirthday:
		return "Date of birth (YYYY-MM-DD)"
	case charge.ChallengeAddress:
		return "Billing address"
	default:
		return string(ch)
	}
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("value is required")
	}
	return nil
}
