package routing

import (
	"DocVerify/internal/core/domain"
	"fmt"
)

// Router is the static lookup from event type to backend update shape.
// It is built once at startup and read-only after that; no locking needed.
type Router struct {
	routes map[domain.EventType]domain.Route
}

// NewRouter creates a router with the default route table.
func NewRouter() *Router {
	return &Router{routes: defaultRoutes()}
}

// Resolve returns the route for the event type, or domain.ErrNoRoute.
// A missing route is a property of the type, not of the event; callers
// must treat it as a permanent failure.
func (r *Router) Resolve(eventType domain.EventType) (domain.Route, error) {
	route, ok := r.routes[eventType]
	if !ok {
		return domain.Route{}, fmt.Errorf("%w: %s", domain.ErrNoRoute, eventType)
	}
	return route, nil
}

// defaultRoutes is the full event type table the backend understands.
// The education update carries placeholder fields the backend insists on
// receiving even though verification never changes them.
func defaultRoutes() map[domain.EventType]domain.Route {
	return map[domain.EventType]domain.Route{
		domain.EventUserEducationCreated: {
			EventType:     domain.EventUserEducationCreated,
			Endpoint:      "/api/UserEducationHistories",
			RecordIDField: "educationId",
			Extra: map[string]any{
				"educationLevel": "string",
				"school":         "string",
				"schoolAddress":  "string",
			},
		},
		domain.EventUserSecurityCreated: {
			EventType:     domain.EventUserSecurityCreated,
			Endpoint:      "/api/UserSecurities",
			RecordIDField: "securityId",
		},
		domain.EventUserCvCreated: {
			EventType:     domain.EventUserCvCreated,
			Endpoint:      "/api/UserCvs",
			RecordIDField: "cvId",
		},
	}
}
