package ports

import (
	"DocVerify/internal/core/domain"
	"context"
)

// EventRepository defines the persistence operations for queued
// verification events. It is the single source of truth for queue state;
// nothing else writes event rows.
type EventRepository interface {
	// Enqueue inserts a validated event with status 'new' and returns its id.
	// Duplicate submissions create duplicate rows; dedup is the caller's problem.
	Enqueue(ctx context.Context, event *domain.Event) (int64, error)

	// ClaimBatch atomically selects up to limit eligible events and flips
	// them to 'processing'. Eligible means: new, failed-and-due-for-retry,
	// or processing-but-stale (a crashed pass left them behind).
	// A claimed event belongs to the caller until it is marked.
	ClaimBatch(ctx context.Context, limit int) ([]*domain.Event, error)

	// MarkCompleted transitions processing -> completed and clears the last
	// error. Returns domain.ErrInvalidStateTransition if the row is not
	// currently processing.
	MarkCompleted(ctx context.Context, id int64) error

	// MarkFailed transitions processing -> failed, increments attempts and
	// records the reason. Permanent failures are never retried; transient
	// ones are rescheduled with backoff until the attempt ceiling.
	MarkFailed(ctx context.Context, id int64, reason string, permanent bool) error

	// Stats returns per-status row counts. Read-only.
	Stats(ctx context.Context) (*domain.QueueStats, error)
}
