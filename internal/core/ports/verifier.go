package ports

import (
	"DocVerify/internal/core/domain"
	"context"
)

// Verifier is the external capability that checks a barcode/identity pair
// against the source-of-truth document registry. The browser automation
// behind it is not our problem; we only see the contract.
//
// Implementations may retry internally against transient failures but must
// return a single definitive outcome. Callers bound the call with the
// context deadline; on timeout the event is retried on a later pass.
type Verifier interface {
	Verify(ctx context.Context, barcode, identityNumber string) (domain.VerificationOutcome, error)
}
