package orchestrator

import (
	"DocVerify/internal/core/domain"
	"DocVerify/internal/core/ports"
	"DocVerify/internal/core/routing"
	"DocVerify/internal/metrics"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Options bound the orchestrator's schedule and per-call budgets.
type Options struct {
	Interval      time.Duration // Cadence between batch passes
	PassTimeout   time.Duration // Hard ceiling on one pass
	BatchSize     int
	VerifyTimeout time.Duration // Budget for one verifier call
}

// PassSummary is what one batch pass accomplished.
type PassSummary struct {
	Claimed   int
	Completed int
	Failed    int
}

// Orchestrator drives the verification pipeline: claim a batch, verify each
// event, report the outcome to the backend, and resolve the event's state.
// Events are processed one at a time; the verifier session is single-flight.
type Orchestrator struct {
	repo     ports.EventRepository
	verifier ports.Verifier
	backend  ports.BackendClient
	router   *routing.Router
	notifier ports.AlertNotifier // Optional, may be nil
	opts     Options
	log      zerolog.Logger
}

// New creates the batch orchestrator.
func New(
	repo ports.EventRepository,
	verifier ports.Verifier,
	backend ports.BackendClient,
	router *routing.Router,
	notifier ports.AlertNotifier,
	opts Options,
	baseLogger *zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		verifier: verifier,
		backend:  backend,
		router:   router,
		notifier: notifier,
		opts:     opts,
		log:      baseLogger.With().Str("component", "orchestrator").Logger(),
	}
}

// Run executes one pass immediately, then one per interval until the context
// is cancelled. Passes never overlap: the next one starts from claim state,
// and anything a dead pass left in 'processing' comes back via the stale
// lease rule.
func (o *Orchestrator) Run(ctx context.Context) {
	o.log.Info().
		Dur("interval", o.opts.Interval).
		Int("batch_size", o.opts.BatchSize).
		Msg("Orchestrator started")

	if _, err := o.RunPass(ctx); err != nil {
		o.log.Error().Err(err).Msg("Initial pass failed")
	}

	ticker := time.NewTicker(o.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.log.Info().Msg("Orchestrator stopped")
			return
		case <-ticker.C:
			if _, err := o.RunPass(ctx); err != nil {
				o.log.Error().Err(err).Msg("Batch pass failed")
			}
		}
	}
}

// RunPass claims one batch and processes it sequentially. A store failure
// aborts the pass (no trustworthy state oracle to continue with); any other
// failure is isolated to its event. Events left unprocessed when the pass
// deadline hits stay claimed and are reclaimed after the stale lease.
func (o *Orchestrator) RunPass(ctx context.Context) (PassSummary, error) {
	metrics.PassesRun.Inc()

	passCtx := ctx
	if o.opts.PassTimeout > 0 {
		var cancel context.CancelFunc
		passCtx, cancel = context.WithTimeout(ctx, o.opts.PassTimeout)
		defer cancel()
	}

	summary := PassSummary{}

	events, err := o.repo.ClaimBatch(passCtx, o.opts.BatchSize)
	if err != nil {
		return summary, fmt.Errorf("claim batch: %w", err)
	}
	summary.Claimed = len(events)

	if len(events) == 0 {
		o.log.Info().Msg("No eligible events, pass finished")
		return summary, nil
	}

	for i, event := range events {
		if passCtx.Err() != nil {
			o.log.Warn().
				Int("remaining", len(events)-i).
				Msg("Pass deadline reached, leaving remaining events for reclaim")
			break
		}

		completed, err := o.processEvent(passCtx, event)
		if err != nil {
			// Only the store surfaces errors out of processEvent.
			o.notify(ctx, fmt.Sprintf("verification pass aborted: %v", err))
			return summary, err
		}
		if completed {
			summary.Completed++
			metrics.EventsCompleted.Inc()
		} else {
			summary.Failed++
			metrics.EventsFailed.Inc()
		}
	}

	o.log.Info().
		Int("claimed", summary.Claimed).
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Msg("Batch pass finished")

	o.notify(ctx, fmt.Sprintf(
		"Verification pass finished: %d claimed, %d completed, %d failed",
		summary.Claimed, summary.Completed, summary.Failed,
	))
	return summary, nil
}

// processEvent runs the per-event sequence: verify, route, submit, resolve.
// The returned error is non-nil only when the event store itself failed;
// verifier and backend failures become event state, never pass failures.
func (o *Orchestrator) processEvent(ctx context.Context, event *domain.Event) (bool, error) {
	log := o.log.With().
		Int64("event_id", event.ID).
		Str("event_type", string(event.EventType)).
		Str("user_id", event.UserID).
		Logger()
	log.Info().Int("attempts", event.Attempts).Msg("Processing event")

	verifyCtx := ctx
	if o.opts.VerifyTimeout > 0 {
		var cancel context.CancelFunc
		verifyCtx, cancel = context.WithTimeout(ctx, o.opts.VerifyTimeout)
		defer cancel()
	}

	outcome, err := o.verifier.Verify(verifyCtx, event.DocumentNumber, event.IdentityNumber)
	if err != nil {
		log.Warn().Err(err).Msg("Verification errored")
		return false, o.fail(ctx, event.ID, err.Error(), false)
	}
	if !outcome.Verified {
		log.Info().Str("detail", outcome.Detail).Msg("Document not verified")
		return false, o.fail(ctx, event.ID, "document not verified: "+outcome.Detail, false)
	}

	route, err := o.router.Resolve(event.EventType)
	if err != nil {
		// Routing is a property of the type; retrying cannot fix it.
		log.Error().Err(err).Msg("Unrouteable event type")
		return false, o.fail(ctx, event.ID, "unrouteable event type: "+string(event.EventType), true)
	}

	payload := route.BuildPayload(event, outcome)
	if err := o.backend.Submit(ctx, route, payload); err != nil {
		// Verified but unreported: the PUT is idempotent, so retry later.
		log.Warn().Err(err).Msg("Backend submission failed")
		return false, o.fail(ctx, event.ID, err.Error(), false)
	}

	if err := o.repo.MarkCompleted(ctx, event.ID); err != nil {
		return false, o.resolveErr(log, err)
	}
	log.Info().Msg("Event completed")
	return true, nil
}

// fail records an event failure, distinguishing store breakage from a
// defective double-transition.
func (o *Orchestrator) fail(ctx context.Context, id int64, reason string, permanent bool) error {
	if err := o.repo.MarkFailed(ctx, id, reason, permanent); err != nil {
		return o.resolveErr(o.log, err)
	}
	return nil
}

// resolveErr decides whether a state-write failure should abort the pass.
// An invalid transition is a defect on one event; log loudly and move on.
// Anything else means the store is gone.
func (o *Orchestrator) resolveErr(log zerolog.Logger, err error) error {
	if errors.Is(err, domain.ErrInvalidStateTransition) {
		log.Error().Err(err).Msg("State transition refused, skipping event")
		return nil
	}
	return err
}

// notify pushes an ops alert if a notifier is wired. Best effort only.
func (o *Orchestrator) notify(ctx context.Context, message string) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, message); err != nil {
		o.log.Warn().Err(err).Msg("Failed to send alert")
	}
}
