package postgres

import (
	"DocVerify/internal/core/domain"
	"DocVerify/internal/core/ports"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// RetryPolicy controls when failed and stale events become claimable again.
type RetryPolicy struct {
	MaxAttempts int           // Attempt ceiling; failed events past it are terminal
	StaleAfter  time.Duration // Lease on a processing row before it is reclaimable
	BackoffBase time.Duration // First retry delay, doubled per attempt
	BackoffCap  time.Duration
}

type eventRepository struct {
	db     *DB
	policy RetryPolicy
	log    zerolog.Logger
}

var _ ports.EventRepository = (*eventRepository)(nil) // Ensure compliance

// NewEventRepository creates a new repository for queued verification events.
func NewEventRepository(db *DB, policy RetryPolicy, baseLogger *zerolog.Logger) ports.EventRepository {
	return &eventRepository{
		db:     db,
		policy: policy,
		log:    baseLogger.With().Str("component", "event_repo").Logger(),
	}
}

// sharedQuery is the list of columns for scanning
const eventQueryCols = `
	id, user_id, identity_number, event_type, record_id, document_number,
	status, attempts, last_error, locked_at, next_attempt_at, processed_at,
	created_at, updated_at
`

// Enqueue validates and inserts a new event with status 'new'.
func (r *eventRepository) Enqueue(ctx context.Context, event *domain.Event) (int64, error) {
	if err := domain.ValidateForEnqueue(event); err != nil {
		return 0, err
	}

	query := `
		INSERT INTO verification_events (
			user_id, identity_number, event_type, record_id, document_number, status, attempts
		) VALUES ($1, $2, $3, $4, $5, $6, 0)
		RETURNING id
	`
	var id int64
	err := r.db.pool.QueryRow(ctx, query,
		event.UserID,
		event.IdentityNumber,
		event.EventType,
		event.RecordID,
		event.DocumentNumber,
		domain.StatusNew,
	).Scan(&id)
	if err != nil {
		r.log.Error().Err(err).Str("user_id", event.UserID).Msg("Failed to insert new event")
		return 0, storeErr("insert event", err)
	}

	r.log.Info().Int64("event_id", id).Str("event_type", string(event.EventType)).Msg("Event enqueued")
	return id, nil
}

// ClaimBatch atomically selects eligible events and flips them to 'processing'.
// Eligible rows are: new, failed with a due retry below the attempt ceiling,
// or processing with an expired lease (a crashed pass left them behind).
// SKIP LOCKED keeps concurrent claimers from ever returning overlapping sets.
func (r *eventRepository) ClaimBatch(ctx context.Context, limit int) ([]*domain.Event, error) {
	now := time.Now().UTC()
	staleBefore := now.Add(-r.policy.StaleAfter)

	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin claim tx", err)
	}
	defer tx.Rollback(ctx)

	query := `
		SELECT ` + eventQueryCols + `
		FROM verification_events
		WHERE status = $1
		   OR (status = $2 AND attempts < $3 AND next_attempt_at IS NOT NULL AND next_attempt_at <= $4)
		   OR (status = $5 AND locked_at <= $6)
		ORDER BY created_at ASC
		LIMIT $7
		FOR UPDATE SKIP LOCKED
	`
	rows, err := tx.Query(ctx, query,
		domain.StatusNew,
		domain.StatusFailed, r.policy.MaxAttempts, now,
		domain.StatusProcessing, staleBefore,
		limit,
	)
	if err != nil {
		return nil, storeErr("select claimable events", err)
	}

	events, err := scanEvents(rows)
	if err != nil {
		return nil, storeErr("scan claimable events", err)
	}

	if len(events) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return nil, storeErr("commit claim tx", err)
		}
		return nil, nil
	}

	ids := make([]int64, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}

	_, err = tx.Exec(ctx, `
		UPDATE verification_events
		SET status = $1, locked_at = $2, updated_at = $2
		WHERE id = ANY($3)
	`, domain.StatusProcessing, now, ids)
	if err != nil {
		return nil, storeErr("mark events processing", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("commit claim tx", err)
	}

	for _, e := range events {
		e.Status = domain.StatusProcessing
		lockedAt := now
		e.LockedAt = &lockedAt
	}

	r.log.Info().Int("claimed", len(events)).Msg("Claimed batch of events")
	return events, nil
}

// MarkCompleted transitions processing -> completed and clears the last error.
func (r *eventRepository) MarkCompleted(ctx context.Context, id int64) error {
	now := time.Now().UTC()

	tag, err := r.db.pool.Exec(ctx, `
		UPDATE verification_events
		SET status = $1, last_error = NULL, locked_at = NULL, processed_at = $2, updated_at = $2
		WHERE id = $3 AND status = $4
	`, domain.StatusCompleted, now, id, domain.StatusProcessing)
	if err != nil {
		return storeErr("mark event completed", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionError(ctx, id, domain.StatusCompleted)
	}

	r.log.Info().Int64("event_id", id).Msg("Event completed")
	return nil
}

// MarkFailed transitions processing -> failed and increments attempts.
// Transient failures get a next attempt scheduled with exponential backoff;
// permanent ones (and events at the ceiling) keep next_attempt_at NULL,
// which excludes them from every future claim.
func (r *eventRepository) MarkFailed(ctx context.Context, id int64, reason string, permanent bool) error {
	now := time.Now().UTC()

	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return storeErr("begin failure tx", err)
	}
	defer tx.Rollback(ctx)

	// The guarded increment is one statement, so attempts stay monotonic
	// even if two writers race for the same row.
	var attempts int
	row := tx.QueryRow(ctx, `
		UPDATE verification_events
		SET status = $1, attempts = attempts + 1, last_error = $2, next_attempt_at = NULL,
		    locked_at = NULL, processed_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5
		RETURNING attempts
	`, domain.StatusFailed, reason, now, id, domain.StatusProcessing)
	if err := row.Scan(&attempts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.transitionError(ctx, id, domain.StatusFailed)
		}
		return storeErr("mark event failed", err)
	}

	if !permanent && attempts < r.policy.MaxAttempts {
		next := now.Add(backoffDuration(attempts, r.policy.BackoffBase, r.policy.BackoffCap))
		if _, err := tx.Exec(ctx, `
			UPDATE verification_events SET next_attempt_at = $1 WHERE id = $2
		`, next, id); err != nil {
			return storeErr("schedule retry", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit failure tx", err)
	}

	r.log.Warn().
		Int64("event_id", id).
		Int("attempts", attempts).
		Bool("permanent", permanent).
		Str("reason", reason).
		Msg("Event failed")
	return nil
}

// Stats returns per-status row counts.
func (r *eventRepository) Stats(ctx context.Context) (*domain.QueueStats, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM verification_events GROUP BY status
	`)
	if err != nil {
		return nil, storeErr("query queue stats", err)
	}
	defer rows.Close()

	stats := &domain.QueueStats{}
	for rows.Next() {
		var status domain.EventStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, storeErr("scan queue stats", err)
		}
		switch status {
		case domain.StatusNew:
			stats.New = count
		case domain.StatusProcessing:
			stats.Processing = count
		case domain.StatusCompleted:
			stats.Completed = count
		case domain.StatusFailed:
			stats.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("read queue stats", err)
	}
	return stats, nil
}

// transitionError reports why a guarded status update matched no rows.
func (r *eventRepository) transitionError(ctx context.Context, id int64, wanted domain.EventStatus) error {
	var current domain.EventStatus
	row := r.db.pool.QueryRow(ctx, `SELECT status FROM verification_events WHERE id = $1`, id)
	if err := row.Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("event %d not found: %w", id, domain.ErrInvalidStateTransition)
		}
		return storeErr("load event status", err)
	}
	r.log.Error().
		Int64("event_id", id).
		Str("current", string(current)).
		Str("wanted", string(wanted)).
		Msg("Refused status transition from non-processing state")
	return fmt.Errorf("event %d is %s, not %s: %w", id, current, domain.StatusProcessing, domain.ErrInvalidStateTransition)
}

// scanEvents reads all rows into Event structs.
func scanEvents(rows pgx.Rows) ([]*domain.Event, error) {
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		var e domain.Event
		err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.IdentityNumber,
			&e.EventType,
			&e.RecordID,
			&e.DocumentNumber,
			&e.Status,
			&e.Attempts,
			&e.LastError,
			&e.LockedAt,
			&e.NextAttemptAt,
			&e.ProcessedAt,
			&e.CreatedAt,
			&e.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// backoffDuration doubles the base delay per attempt, capped.
func backoffDuration(attempt int, base, ceiling time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > 10 {
		shift = 10
	}
	d := base * time.Duration(1<<shift)
	if d > ceiling {
		return ceiling
	}
	return d
}

// storeErr tags persistence failures so the orchestrator can abort the pass.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}
