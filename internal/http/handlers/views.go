package handlers

import (
	"net/http"

	"github.com/replydesk/server/internal/auth"
	"github.com/replydesk/server/internal/middleware"
)

// viewResponse tells the client which guarded view it may render
type viewResponse struct {
	View string `json:"view"`
	Role string `json:"role,omitempty"`
	Step string `json:"step,omitempty"`
	Name string `json:"business_name,omitempty"`
}

// ViewHandler serves the descriptors of the guarded views. The gate runs in
// middleware; by the time a handler runs the decision was Allow.
type ViewHandler struct{}

// NewViewHandler creates a new view handler
func NewViewHandler() *ViewHandler {
	return &ViewHandler{}
}

// HandleDashboard handles GET /dashboard
func (h *ViewHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, describeView(r, "dashboard"))
}

// HandleAdmin handles GET /admin
func (h *ViewHandler) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, describeView(r, "admin"))
}

// HandleOnboarding handles GET /onboarding
func (h *ViewHandler) HandleOnboarding(w http.ResponseWriter, r *http.Request) {
	v := describeView(r, "onboarding")
	v.Step = r.URL.Query().Get("step")
	if v.Step == "" {
		if sess, ok := middleware.GetSession(r.Context()); ok && auth.NeedsWhatsAppOnboarding(sess.Profile) {
			v.Step = auth.OnboardingWhatsAppRequired
		}
	}
	respondJSON(w, http.StatusOK, v)
}

func describeView(r *http.Request, view string) viewResponse {
	v := viewResponse{View: view}
	sess, ok := middleware.GetSession(r.Context())
	if !ok {
		return v
	}
	v.Role = auth.ResolveRole(sess.Profile, sess.Token)
	if sess.Profile != nil && sess.Profile.Business != nil {
		v.Name = sess.Profile.Business.Name
	}
	return v
}
