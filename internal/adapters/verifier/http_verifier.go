package verifier

import (
	"DocVerify/internal/core/domain"
	"DocVerify/internal/core/ports"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// httpVerifier implements the Verifier port against the document
// verification agent, the separate process that drives the government
// portal's browser workflow. One agent call is one full verification;
// the agent does its own in-page retries.
type httpVerifier struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

var _ ports.Verifier = (*httpVerifier)(nil) // Ensure compliance

// NewHTTPVerifier creates a new verification agent client adapter.
// The agent session is single-flight; callers must not verify concurrently.
func NewHTTPVerifier(baseURL string, timeout time.Duration, baseLogger *zerolog.Logger) ports.Verifier {
	return &httpVerifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     baseLogger.With().Str("component", "verifier_agent").Logger(),
	}
}

type verifyRequest struct {
	Barcode        string `json:"barcode"`
	IdentityNumber string `json:"identityNumber"`
}

type verifyResponse struct {
	Verified bool   `json:"verified"`
	Detail   string `json:"detail"`
}

// Verify asks the agent to check one barcode/identity pair. Any transport or
// agent failure comes back as a *domain.VerificationError, which the caller
// treats as transient.
func (v *httpVerifier) Verify(ctx context.Context, barcode, identityNumber string) (domain.VerificationOutcome, error) {
	body, err := json.Marshal(verifyRequest{Barcode: barcode, IdentityNumber: identityNumber})
	if err != nil {
		return domain.VerificationOutcome{}, &domain.VerificationError{Reason: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return domain.VerificationOutcome{}, &domain.VerificationError{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := v.http.Do(req)
	if err != nil {
		v.log.Warn().Err(err).Str("barcode", barcode).Msg("Verification agent unreachable")
		return domain.VerificationOutcome{}, &domain.VerificationError{Reason: "agent unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		v.log.Warn().Int("status", resp.StatusCode).Str("barcode", barcode).Msg("Verification agent error")
		return domain.VerificationOutcome{}, &domain.VerificationError{
			Reason: fmt.Sprintf("agent returned status %d", resp.StatusCode),
		}
	}

	var parsed verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return domain.VerificationOutcome{}, &domain.VerificationError{Reason: "decode agent response", Err: err}
	}

	v.log.Info().
		Str("barcode", barcode).
		Bool("verified", parsed.Verified).
		Dur("took", time.Since(start)).
		Msg("Verification finished")

	return domain.VerificationOutcome{Verified: parsed.Verified, Detail: parsed.Detail}, nil
}
