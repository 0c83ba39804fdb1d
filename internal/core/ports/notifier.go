package ports

import "context"

// AlertNotifier pushes operational alerts (batch summaries, stuck queues)
// to whoever is on call. Failures are logged and swallowed; alerting must
// never affect event processing.
type AlertNotifier interface {
	Notify(ctx context.Context, message string) error
}
