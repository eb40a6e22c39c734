package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/replydesk/server/internal/charge"
	"github.com/replydesk/server/internal/model"
)

const maxBodyBytes = 1 << 20

// Observer receives the duration of every backend call
type Observer interface {
	ObserveBackendRequest(endpoint string, statusCode int, d time.Duration)
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithObserver registers an Observer for request durations
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// Client is the backend API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	observer   Observer
}

// New creates a new backend client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token       string            `json:"token"`
	AccessToken string            `json:"access_token"`
	User        model.UserProfile `json:"user"`
}

type profileResponse struct {
	User model.UserProfile `json:"user"`
}

// Login exchanges credentials for a bearer token and the user profile.
func (c *Client) Login(ctx context.Context, email, password string) (string, model.UserProfile, error) {
	var resp loginResponse
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", "", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return "", model.UserProfile{}, fmt.Errorf("backend.Login: %w", err)
	}
	token := resp.Token
	if token == "" {
		token = resp.AccessToken
	}
	return token, resp.User, nil
}

// Profile returns the profile of the token's user.
func (c *Client) Profile(ctx context.Context, token string) (model.UserProfile, error) {
	var resp profileResponse
	if err := c.doJSON(ctx, http.MethodGet, "/auth/me", token, nil, &resp); err != nil {
		return model.UserProfile{}, fmt.Errorf("backend.Profile: %w", err)
	}
	return resp.User, nil
}

// Charge initiates a card charge.
func (c *Client) Charge(ctx context.Context, token string, req charge.ChargeRequest) (charge.Outcome, error) {
	out, err := c.doOutcome(ctx, "/payment/charge", token, req)
	if err != nil {
		return charge.Outcome{}, fmt.Errorf("backend.Charge: %w", err)
	}
	return out, nil
}

// Submit sends a challenge value for the charge identified by reference to
// /payment/submit-<challenge>, with body {<challenge>: value, reference}.
func (c *Client) Submit(ctx context.Context, token string, ch charge.Challenge, value, reference string) (charge.Outcome, error) {
	body := map[string]string{
		string(ch):  value,
		"reference": reference,
	}
	out, err := c.doOutcome(ctx, "/payment/submit-"+string(ch), token, body)
	if err != nil {
		return charge.Outcome{}, fmt.Errorf("backend.Submit(%s): %w", ch, err)
	}
	return out, nil
}

// Gateway binds the client to a caller's bearer token.
func (c *Client) Gateway(token string) charge.Gateway {
	return &gateway{client: c, token: token}
}

type gateway struct {
	client *Client
	token  string
}

func (g *gateway) Charge(ctx context.Context, req charge.ChargeRequest) (charge.Outcome, error) {
	return g.client.Charge(ctx, g.token, req)
}

func (g *gateway) Submit(ctx context.Context, ch charge.Challenge, value, reference string) (charge.Outcome, error) {
	return g.client.Submit(ctx, g.token, ch, value, reference)
}

func (c *Client) doOutcome(ctx context.Context, path, token string, body any) (charge.Outcome, error) {
	raw, err := c.doRequest(ctx, http.MethodPost, path, token, body)
	if err != nil {
		return charge.Outcome{}, err
	}
	return charge.ParseOutcome(raw)
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, body, out any) error {
	raw, err := c.doRequest(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, method, path, token string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(path, 0, start)
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close
	c.observe(path, resp.StatusCode, start)

	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode >= 300 {
		if readErr != nil {
			return nil, &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, respBody)}
	}
	if readErr != nil {
		return nil, fmt.Errorf("read response: %w", readErr)
	}
	return respBody, nil
}

func (c *Client) observe(path string, code int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveBackendRequest(path, code, time.Since(start))
	}
}

func errorMessage(code int, body []byte) string {
	var apiErr struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Error != "" {
			return apiErr.Error
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return http.StatusText(code) + " (" + strconv.Itoa(code) + ")"
}
