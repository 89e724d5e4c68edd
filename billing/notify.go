package billing

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// =============================================================================
// NOTIFICATIONS - fire-and-forget
// =============================================================================

type NotificationKind string

const NotifyTaxExpensesCreated NotificationKind = "tax_expenses_created"

type Notification struct {
	Kind          NotificationKind
	ActorID       EmployeeID
	LegalEntityID LegalEntityID
	Count         int
	Total         Money
	At            time.Time
}

// Notifier delivers notifications. The engine never waits on delivery and a
// failure never fails the operation that produced the notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) error {
	l.Logger.Info().
		Str("kind", string(n.Kind)).
		Str("actor_id", string(n.ActorID)).
		Str("legal_entity_id", string(n.LegalEntityID)).
		Int("count", n.Count).
		Int64("total", int64(n.Total)).
		Msg("notification")
	return nil
}

const notifyTimeout = 10 * time.Second

func (e *Engine) notify(n Notification) {
	if e.notifier == nil {
		return
	}
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := e.notifier.Notify(ctx, n); err != nil {
			e.log.Warn().Err(err).Str("kind", string(n.Kind)).Msg("notification delivery failed")
		}
	}()
}

// Wait blocks until in-flight notifications finish. Used on shutdown.
func (e *Engine) Wait() { e.pending.Wait() }
