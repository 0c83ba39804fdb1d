package backend

import (
	"DocVerify/internal/core/domain"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func educationRoute() domain.Route {
	return domain.Route{
		EventType:     domain.EventUserEducationCreated,
		Endpoint:      "/api/UserEducationHistories",
		RecordIDField: "educationId",
	}
}

// fakeBackend serves the auth and update endpoints of the real backend.
type fakeBackend struct {
	logins      int
	refreshes   int
	updates     int
	lastPayload map[string]any
	updateCode  int    // Status to answer updates with
	validToken  string // Token the update endpoint accepts
	loginToken  string // Token login hands out
	freshToken  string // Token refresh hands out; empty means refresh fails
	refreshAuth string // Authorization header seen on the refresh call
}

func newFakeBackend(updateCode int) *fakeBackend {
	return &fakeBackend{
		updateCode: updateCode,
		validToken: "test-token",
		loginToken: "test-token",
	}
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/Auth/Login", func(w http.ResponseWriter, r *http.Request) {
		f.logins++
		json.NewEncoder(w).Encode(map[string]any{
			"accessToken":  map[string]string{"token": f.loginToken},
			"refreshToken": "refresh-token",
		})
	})
	mux.HandleFunc("/api/Auth/RefreshToken", func(w http.ResponseWriter, r *http.Request) {
		f.refreshes++
		f.refreshAuth = r.Header.Get("Authorization")
		if f.freshToken == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"accessToken":  map[string]string{"token": f.freshToken},
			"refreshToken": "fresh-refresh-token",
		})
	})
	mux.HandleFunc("/api/UserEducationHistories", func(w http.ResponseWriter, r *http.Request) {
		f.updates++
		if r.Header.Get("Authorization") != "Bearer "+f.validToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&f.lastPayload)
		w.WriteHeader(f.updateCode)
	})
	return mux
}

func TestClient_Submit_LoginThenPut(t *testing.T) {
	fake := newFakeBackend(http.StatusNoContent)
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	nopLogger := zerolog.Nop()
	client := NewClient(srv.URL, "hr@example.com", "secret", 5*time.Second, &nopLogger)

	payload := map[string]any{
		"id":               "edu-1",
		"documentNumber":   "BARCODE1",
		"documentVerified": true,
		"approved":         true,
		"userId":           "user-guid",
	}
	if err := client.Submit(context.Background(), educationRoute(), payload); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if fake.logins != 1 {
		t.Errorf("Expected exactly one login, got %d", fake.logins)
	}
	if fake.updates != 1 {
		t.Errorf("Expected exactly one update, got %d", fake.updates)
	}
	if fake.lastPayload["id"] != "edu-1" {
		t.Errorf("Payload id mismatch: got %v", fake.lastPayload["id"])
	}

	// Token is cached across submissions.
	if err := client.Submit(context.Background(), educationRoute(), payload); err != nil {
		t.Fatalf("Second Submit failed: %v", err)
	}
	if fake.logins != 1 {
		t.Errorf("Second submit should reuse the token, got %d logins", fake.logins)
	}
}

func TestClient_Submit_RefreshesStaleToken(t *testing.T) {
	fake := newFakeBackend(http.StatusNoContent)
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	nopLogger := zerolog.Nop()
	client := NewClient(srv.URL, "hr@example.com", "secret", 5*time.Second, &nopLogger)

	payload := map[string]any{"id": "edu-1"}
	if err := client.Submit(context.Background(), educationRoute(), payload); err != nil {
		t.Fatalf("First Submit failed: %v", err)
	}

	// The backend expires the token between submissions.
	fake.validToken = "rotated-token"
	fake.freshToken = "rotated-token"

	if err := client.Submit(context.Background(), educationRoute(), payload); err != nil {
		t.Fatalf("Submit after expiry failed: %v", err)
	}

	if fake.logins != 1 {
		t.Errorf("Expiry must be handled by refresh, not re-login, got %d logins", fake.logins)
	}
	if fake.refreshes != 1 {
		t.Errorf("Expected exactly one refresh, got %d", fake.refreshes)
	}
	if fake.refreshAuth != "Bearer test-token" {
		t.Errorf("Refresh must present the stale access token, got %q", fake.refreshAuth)
	}
	// First update ok, second rejected, third with the refreshed token.
	if fake.updates != 3 {
		t.Errorf("Expected three update calls, got %d", fake.updates)
	}
}

func TestClient_Submit_FailedRefreshFallsBackToLogin(t *testing.T) {
	fake := newFakeBackend(http.StatusNoContent)
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	nopLogger := zerolog.Nop()
	client := NewClient(srv.URL, "hr@example.com", "secret", 5*time.Second, &nopLogger)

	payload := map[string]any{"id": "edu-1"}
	if err := client.Submit(context.Background(), educationRoute(), payload); err != nil {
		t.Fatalf("First Submit failed: %v", err)
	}

	// Expire the token and break the refresh endpoint (freshToken stays "").
	fake.validToken = "rotated-token"
	fake.loginToken = "rotated-token"

	if err := client.Submit(context.Background(), educationRoute(), payload); err != nil {
		t.Fatalf("Submit after expiry failed: %v", err)
	}

	if fake.refreshes != 1 {
		t.Errorf("Expected one refresh attempt, got %d", fake.refreshes)
	}
	if fake.logins != 2 {
		t.Errorf("Failed refresh must fall back to login, got %d logins", fake.logins)
	}
}

func TestClient_Submit_ClientErrorIsNotRetried(t *testing.T) {
	fake := newFakeBackend(http.StatusUnprocessableEntity)
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	nopLogger := zerolog.Nop()
	client := NewClient(srv.URL, "hr@example.com", "secret", 5*time.Second, &nopLogger)

	err := client.Submit(context.Background(), educationRoute(), map[string]any{"id": "edu-1"})
	if err == nil {
		t.Fatal("Submit should fail on a 4xx response")
	}
	var serr *domain.BackendSubmissionError
	if !errors.As(err, &serr) {
		t.Fatalf("Expected *BackendSubmissionError, got %T: %v", err, err)
	}
	if fake.updates != 1 {
		t.Errorf("4xx must not be retried, got %d updates", fake.updates)
	}
}

func TestClient_Submit_LoginFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	nopLogger := zerolog.Nop()
	client := NewClient(srv.URL, "hr@example.com", "secret", 1*time.Second, &nopLogger)

	// Short deadline so the retry sleeps do not stall the test.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := client.Submit(ctx, educationRoute(), map[string]any{"id": "edu-1"})
	if err == nil {
		t.Fatal("Submit should fail when login is impossible")
	}
	var serr *domain.BackendSubmissionError
	if !errors.As(err, &serr) {
		t.Fatalf("Expected *BackendSubmissionError, got %T: %v", err, err)
	}
}
