package backend

import (
	"DocVerify/internal/core/domain"
	"DocVerify/internal/core/ports"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const maxSubmitRetries = 3

// client implements the BackendClient port over the backend's REST API.
// It owns the auth lifecycle: login on first use, bearer header on every
// call, and on 401 a token refresh before falling back to a full re-login.
type client struct {
	baseURL  string
	email    string
	password string
	http     *http.Client
	log      zerolog.Logger

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

var _ ports.BackendClient = (*client)(nil) // Ensure compliance

// NewClient creates a new backend API client adapter.
func NewClient(baseURL, email, password string, timeout time.Duration, baseLogger *zerolog.Logger) ports.BackendClient {
	return &client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		email:    email,
		password: password,
		http:     &http.Client{Timeout: timeout},
		log:      baseLogger.With().Str("component", "backend_client").Logger(),
	}
}

// Submit PUTs the payload to the route's endpoint. Server errors and network
// failures are retried with exponential backoff; the PUT is keyed by record
// id so repeating it is safe.
func (c *client) Submit(ctx context.Context, route domain.Route, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &domain.BackendSubmissionError{Endpoint: route.Endpoint, Err: err}
	}

	var lastErr error
	for attempt := 1; attempt <= maxSubmitRetries; attempt++ {
		status, err := c.doSubmit(ctx, route.Endpoint, body)
		switch {
		case err == nil && (status == http.StatusOK || status == http.StatusNoContent):
			c.log.Info().
				Str("endpoint", route.Endpoint).
				Str("event_type", string(route.EventType)).
				Msg("Backend update submitted")
			return nil

		case err == nil && status == http.StatusUnauthorized:
			// Token went stale mid-flight. Refresh it (or force a re-login)
			// and retry right away; backoff is for the server-error cases.
			c.log.Warn().Str("endpoint", route.Endpoint).Msg("Backend rejected token, re-authenticating")
			c.refreshAccess(ctx)
			lastErr = fmt.Errorf("unauthorized (status %d)", status)
			continue

		case err == nil && status >= 500:
			c.log.Warn().Int("status", status).Str("endpoint", route.Endpoint).Msg("Backend server error")
			lastErr = fmt.Errorf("server error (status %d)", status)

		case err == nil:
			// Other 4xx: retrying the same payload cannot help this pass,
			// but the event stays retryable for a later one.
			c.log.Error().Int("status", status).Str("endpoint", route.Endpoint).Msg("Backend rejected update")
			return &domain.BackendSubmissionError{Endpoint: route.Endpoint, Err: fmt.Errorf("rejected (status %d)", status)}

		default:
			c.log.Warn().Err(err).Str("endpoint", route.Endpoint).Msg("Backend request failed")
			lastErr = err
		}

		if attempt < maxSubmitRetries {
			select {
			case <-ctx.Done():
				return &domain.BackendSubmissionError{Endpoint: route.Endpoint, Err: ctx.Err()}
			case <-time.After(time.Duration(1<<attempt) * time.Second):
			}
		}
	}

	return &domain.BackendSubmissionError{Endpoint: route.Endpoint, Err: lastErr}
}

// doSubmit performs one authenticated PUT and returns the status code.
func (c *client) doSubmit(ctx context.Context, endpoint string, body []byte) (int, error) {
	token, err := c.token(ctx)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) // Drain so the connection is reused

	return resp.StatusCode, nil
}

// token returns the cached access token, logging in if there is none.
func (c *client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" {
		return c.accessToken, nil
	}

	parsed, err := c.login(ctx)
	if err != nil {
		return "", err
	}
	c.accessToken = parsed.AccessToken.Token
	c.refreshToken = parsed.RefreshToken
	return c.accessToken, nil
}

// refreshAccess trades the stale access token for a fresh one. When the
// refresh call fails the cache is left empty, so the next token() call
// falls back to a full login.
func (c *client) refreshAccess(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stale := c.accessToken
	c.accessToken = ""
	if stale == "" {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/Auth/RefreshToken", nil)
	if err != nil {
		return
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Authorization", "Bearer "+stale)

	parsed, err := c.doAuth(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("Token refresh failed, will log in again")
		return
	}

	c.accessToken = parsed.AccessToken.Token
	if parsed.RefreshToken != "" {
		c.refreshToken = parsed.RefreshToken
	}
	c.log.Info().Msg("Refreshed backend access token")
}

// authResponse mirrors the backend's login and refresh payloads.
type authResponse struct {
	AccessToken struct {
		Token string `json:"token"`
	} `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// login authenticates with email and password.
func (c *client) login(ctx context.Context) (*authResponse, error) {
	body, err := json.Marshal(map[string]string{
		"email":             c.email,
		"password":          c.password,
		"authenticatorCode": "string",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/Auth/Login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "*/*")

	parsed, err := c.doAuth(req)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	c.log.Info().Msg("Authenticated with backend API")
	return parsed, nil
}

// doAuth executes one auth request and decodes the token envelope.
func (c *client) doAuth(req *http.Request) (*authResponse, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var parsed authResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode auth response: %w", err)
	}
	if parsed.AccessToken.Token == "" {
		return nil, fmt.Errorf("auth response carried no access token")
	}
	return &parsed, nil
}
