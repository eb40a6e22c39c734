package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replydesk/server/internal/charge"
	"github.com/replydesk/server/internal/model"
)

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) ObserveBackendRequest(endpoint string, statusCode int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, endpoint+" "+http.StatusText(statusCode))
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "correct-horse" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "Invalid email or password"}) //nolint:errcheck
			return
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"token": "h.p.s",
			"user": map[string]any{
				"email":     req.Email,
				"user_type": "business",
				"business":  map[string]string{"name": "Acme", "whatsapp_status": "PENDING"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	token, profile, err := c.Login(context.Background(), "owner@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "h.p.s", token)
	assert.Equal(t, "owner@example.com", profile.Email)
	require.NotNil(t, profile.Business)
	assert.Equal(t, "PENDING", profile.Business.WhatsAppStatus)

	_, _, err = c.Login(context.Background(), "owner@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, "Invalid email or password", httpErr.PublicMessage())
}

func TestLogin_accessTokenField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "a.b.c", "user": model.UserProfile{Email: "x@example.com"}}) //nolint:errcheck
	}))
	defer srv.Close()

	token, _, err := New(srv.URL).Login(context.Background(), "x@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", token)
}

func TestProfile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "not authenticated"}) //nolint:errcheck
			return
		}
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"user": map[string]any{"email": "owner@example.com", "role": "admin"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	profile, err := c.Profile(context.Background(), "test-token")
	require.NoError(t, err)
	assert.Equal(t, "admin", profile.Role)

	_, err = c.Profile(context.Background(), "bad-token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401: not authenticated")
}

func TestCharge(t *testing.T) {
	obs := &recordingObserver{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment/charge", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "owner@example.com", body["email"])
		assert.EqualValues(t, 10000, body["amount"])
		assert.Equal(t, map[string]any{
			"number":       "4000000000000002",
			"cvv":          "123",
			"expiry_month": "12",
			"expiry_year":  "30",
		}, body["card"])

		w.Write([]byte(`{"status":true,"data":{"status":"send_otp","reference":"abc123"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	gw := New(srv.URL, WithObserver(obs)).Gateway("tok")
	out, err := gw.Charge(context.Background(), charge.ChargeRequest{
		Email:  "owner@example.com",
		Amount: 10000,
		Card:   charge.CardDetails{Number: "4000000000000002", CVV: "123", ExpiryMonth: "12", ExpiryYear: "30"},
	})
	require.NoError(t, err)
	assert.Equal(t, charge.OutcomeSendOTP, out.Kind)
	assert.Equal(t, "abc123", out.Reference)
	assert.Equal(t, []string{"/payment/charge OK"}, obs.calls)
}

func TestSubmit(t *testing.T) {
	for _, ch := range []charge.Challenge{
		charge.ChallengePIN, charge.ChallengeOTP, charge.ChallengePhone, charge.ChallengeBirthday, charge.ChallengeAddress,
	} {
		t.Run(string(ch), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/payment/submit-"+string(ch), r.URL.Path)

				var body map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, map[string]string{string(ch): "value-1", "reference": "ref-1"}, body)

				w.Write([]byte(`{"data":{"status":"success","amount":10000}}`)) //nolint:errcheck
			}))
			defer srv.Close()

			out, err := New(srv.URL).Submit(context.Background(), "tok", ch, "value-1", "ref-1")
			require.NoError(t, err)
			assert.Equal(t, charge.OutcomeSuccess, out.Kind)
			assert.JSONEq(t, `{"status":"success","amount":10000}`, string(out.Data))
		})
	}
}

func TestSubmit_errorStatusCarriesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"Invalid PIN"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := New(srv.URL).Submit(context.Background(), "tok", charge.ChallengePIN, "0000", "ref")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadRequest))
	assert.Contains(t, err.Error(), "Invalid PIN")
}

func TestCharge_malformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html>gateway timeout</html>`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := New(srv.URL).Charge(context.Background(), "tok", charge.ChargeRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode charge response")
}

func TestErrorMessage_fallbacks(t *testing.T) {
	assert.Equal(t, "plain text failure", errorMessage(500, []byte(" plain text failure ")))
	assert.Equal(t, "Bad Gateway (502)", errorMessage(502, nil))
}

func TestFlowAgainstBackend(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()

		switch {
		case r.URL.Path == "/payment/charge":
			w.Write([]byte(`{"data":{"status":"send_pin","reference":"ref-e2e"}}`)) //nolint:errcheck
		case strings.HasPrefix(r.URL.Path, "/payment/submit-pin"):
			w.Write([]byte(`{"data":{"status":"success","amount":10000}}`)) //nolint:errcheck
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	var got json.RawMessage
	flow := charge.NewFlow(New(srv.URL).Gateway("tok"),
		charge.WithClock(func() time.Time { return time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC) }),
		charge.WithSuccessHandler(func(p json.RawMessage) { got = p }),
	)

	ctx := context.Background()
	require.NoError(t, flow.SubmitCard(ctx, charge.Card{Number: "4000000000000002", CVV: "123", Expiry: "12/30"}, charge.Order{Email: "a@example.com", Amount: 10000}))
	require.NoError(t, flow.SubmitChallenge(ctx, "1234"))

	assert.JSONEq(t, `{"status":"success","amount":10000}`, string(got))
	assert.Equal(t, []string{"/payment/charge", "/payment/submit-pin"}, paths)
}

func TestTransportErrorSurfacesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Card declined by issuer"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	flow := charge.NewFlow(New(srv.URL).Gateway("tok"),
		charge.WithClock(func() time.Time { return time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC) }))

	err := flow.SubmitCard(context.Background(), charge.Card{Number: "4000000000000002", CVV: "123", Expiry: "12/30"}, charge.Order{Amount: 1})
	var terr *charge.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "Card declined by issuer", flow.Snapshot().Message)
	assert.Equal(t, charge.StepCardEntry, flow.Snapshot().Step)
}
