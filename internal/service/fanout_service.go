package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mfgtrack/be-order-tracking/internal/apperr"
)

// Notification categories. The names travel on the wire (rules, preference
// rows, published events) and match the fleet's existing configuration.
const (
	CategoryStateChanged = "stato_avanzamento"
	CategoryOrderCreated = "commessa"
	CategoryOrderStatus  = "stato_commessa"
)

// FanoutContext scopes recipient resolution to the event that triggered it.
type FanoutContext struct {
	OrderID       *int64
	DepartmentID  *int64
	IncludeGlobal bool
}

// FanoutStats summarizes one fan-out run.
type FanoutStats struct {
	Resolved    int `json:"resolved"`
	Notified    int `json:"notified"`
	PushSent    int `json:"push_sent"`
	PushFailed  int `json:"push_failed"`
	EmailSent   int `json:"email_sent"`
	EmailFailed int `json:"email_failed"`
}

// EventPublisher mirrors each fan-out onto the message bus, best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, category string, event FanoutEvent)
}

// FanoutEvent is the bus payload emitted after a fan-out completes.
type FanoutEvent struct {
	Category     string  `json:"category"`
	Title        string  `json:"title"`
	Message      string  `json:"message"`
	OrderID      *int64  `json:"order_id,omitempty"`
	DepartmentID *int64  `json:"department_id,omitempty"`
	Recipients   []int64 `json:"recipients"`
}

// FanoutService resolves the audience for a category and dispatches to each
// recipient concurrently. A recipient's delivery failure never affects the
// others.
type FanoutService struct {
	resolver   *RecipientResolver
	prefs      *PreferenceService
	dispatcher *Dispatcher
	events     EventPublisher
	limit      int
	log        zerolog.Logger
}

func NewFanoutService(resolver *RecipientResolver, prefs *PreferenceService, dispatcher *Dispatcher, events EventPublisher, limit int, log zerolog.Logger) *FanoutService {
	if limit <= 0 {
		limit = 8
	}
	return &FanoutService{
		resolver:   resolver,
		prefs:      prefs,
		dispatcher: dispatcher,
		events:     events,
		limit:      limit,
		log:        log.With().Str("component", "fanout_service").Logger(),
	}
}

// Fanout notifies every resolved recipient of the category. An error is
// returned only when the audience cannot be resolved at all.
func (f *FanoutService) Fanout(ctx context.Context, category, title, message string, fctx FanoutContext) (FanoutStats, error) {
	var stats FanoutStats
	if category == "" {
		return stats, apperr.InvalidInput("category", "must not be empty")
	}

	ids, err := f.resolver.Resolve(ctx, category, fctx)
	if err != nil {
		return stats, err
	}
	stats.Resolved = len(ids)
	if len(ids) == 0 {
		f.log.Debug().Str("category", category).Msg("no recipients resolved")
		return stats, nil
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(f.limit)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			ch, err := f.prefs.GetChannels(ctx, id, category)
			if err != nil {
				f.log.Warn().Err(err).Int64("user_id", id).Msg("preference lookup failed, using defaults")
				ch = Channels{Push: defaultViaPush, Email: defaultViaEmail}
			}
			res := f.dispatcher.Notify(ctx, id, title, message, category, ch)

			mu.Lock()
			if res.Recorded {
				stats.Notified++
			}
			if res.PushSent {
				stats.PushSent++
			}
			if res.PushFailed {
				stats.PushFailed++
			}
			if res.EmailSent {
				stats.EmailSent++
			}
			if res.EmailFailed {
				stats.EmailFailed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if f.events != nil {
		f.events.Publish(ctx, category, FanoutEvent{
			Category:     category,
			Title:        title,
			Message:      message,
			OrderID:      fctx.OrderID,
			DepartmentID: fctx.DepartmentID,
			Recipients:   ids,
		})
	}

	f.log.Info().
		Str("category", category).
		Int("resolved", stats.Resolved).
		Int("notified", stats.Notified).
		Int("push_sent", stats.PushSent).
		Int("push_failed", stats.PushFailed).
		Int("email_sent", stats.EmailSent).
		Int("email_failed", stats.EmailFailed).
		Msg("fan-out completed")
	return stats, nil
}
