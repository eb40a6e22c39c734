package auth

import (
	"strings"
	"time"

	"github.com/replydesk/server/internal/model"
)

// Redirect targets emitted by Decide
const (
	LoginPath          = "/login"
	ExpiredLoginPath   = "/login?session=expired"
	AccessDeniedPath   = "/dashboard?error=access_denied"
	OnboardingBasePath = "/onboarding?step="

	// OnboardingWhatsAppRequired is the onboarding step for businesses whose
	// WhatsApp account is not connected yet.
	OnboardingWhatsAppRequired = "whatsapp_required"
)

// Requirement annotates a protected view
type Requirement struct {
	RequireAuth  bool
	RequireAdmin bool
}

// DecisionKind is the outcome of a gate evaluation
type DecisionKind int

const (
	Allow DecisionKind = iota
	RedirectLogin
	RedirectAccessDenied
	RedirectOnboarding
)

func (k DecisionKind) String() string {
	switch k {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectAccessDenied:
		return "redirect_access_denied"
	case RedirectOnboarding:
		return "redirect_onboarding"
	default:
		return "unknown"
	}
}

// Decision is the result of Decide. It is never cached; callers evaluate it
// again on every navigation.
type Decision struct {
	Kind DecisionKind
	// Expired is set on RedirectLogin when a token was present but expired
	// or undecodable, as opposed to missing.
	Expired bool
	// Step is the onboarding step for RedirectOnboarding.
	Step string
}

// Target returns the redirect route for the decision, or "" for Allow
func (d Decision) Target() string {
	switch d.Kind {
	case RedirectLogin:
		if d.Expired {
			return ExpiredLoginPath
		}
		return LoginPath
	case RedirectAccessDenied:
		return AccessDeniedPath
	case RedirectOnboarding:
		return OnboardingBasePath + d.Step
	default:
		return ""
	}
}

// Decide evaluates whether a view with the given requirement may render for s
func Decide(req Requirement, s model.Session, now time.Time) Decision {
	if !req.RequireAuth {
		return Decision{Kind: Allow}
	}

	if !s.HasToken() {
		return Decision{Kind: RedirectLogin}
	}
	if IsExpired(s.Token, now) {
		return Decision{Kind: RedirectLogin, Expired: true}
	}

	if req.RequireAdmin {
		if !IsAdminRole(ResolveRole(s.Profile, s.Token)) {
			return Decision{Kind: RedirectAccessDenied}
		}
		// admins skip the onboarding gate
		return Decision{Kind: Allow}
	}

	if NeedsWhatsAppOnboarding(s.Profile) {
		return Decision{Kind: RedirectOnboarding, Step: OnboardingWhatsAppRequired}
	}

	return Decision{Kind: Allow}
}

// NeedsWhatsAppOnboarding reports whether profile has a business that is not
// yet connected to WhatsApp. Profiles without a business are not gated.
func NeedsWhatsAppOnboarding(profile *model.UserProfile) bool {
	if profile == nil || profile.Business == nil {
		return false
	}
	return profile.Business.WhatsAppStatus != model.WhatsAppConnected
}

// ResolveRole returns the lower-cased role for a session. Cached profile
// fields win over token claims because the token does not reliably carry a role.
func ResolveRole(profile *model.UserProfile, token string) string {
	if profile != nil {
		if role := strings.TrimSpace(profile.UserType); role != "" {
			return strings.ToLower(role)
		}
		if role := strings.TrimSpace(profile.Role); role != "" {
			return strings.ToLower(role)
		}
	}

	claims, err := ParseClaims(token)
	if err != nil {
		return ""
	}
	if role := strings.TrimSpace(claims.Role); role != "" {
		return strings.ToLower(role)
	}
	return strings.ToLower(strings.TrimSpace(claims.UserType))
}

// IsAdminRole reports whether role grants access to admin views
func IsAdminRole(role string) bool {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "admin", "super_admin":
		return true
	default:
		return false
	}
}
