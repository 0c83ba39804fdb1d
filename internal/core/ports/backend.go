package ports

import (
	"DocVerify/internal/core/domain"
	"context"
)

// BackendClient reports verification outcomes to the owning backend system.
// Authentication and transport details live behind this interface.
type BackendClient interface {
	// Submit PUTs the payload to the route's endpoint. The payload is keyed
	// by record id, so resubmitting after a partial failure is safe.
	Submit(ctx context.Context, route domain.Route, payload map[string]any) error
}
