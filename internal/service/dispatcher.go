package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mfgtrack/be-order-tracking/internal/repository"
)

// NotificationStore persists notification records.
type NotificationStore interface {
	Append(ctx context.Context, n *repository.Notification) error
}

// PushGateway delivers a push message to a device token.
type PushGateway interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// EmailGateway delivers an email.
type EmailGateway interface {
	Send(ctx context.Context, to, subject, body string) error
}

// DeliveryResult reports what the dispatcher managed to do for one user.
type DeliveryResult struct {
	Recorded    bool
	PushSent    bool
	PushFailed  bool
	EmailSent   bool
	EmailFailed bool
}

// Dispatcher delivers one notification to one user: the record is always
// persisted, then push and email run best-effort so a provider outage never
// fails the caller.
type Dispatcher struct {
	records      NotificationStore
	users        UserDirectory
	push         PushGateway
	email        EmailGateway
	pushTimeout  time.Duration
	emailTimeout time.Duration
	log          zerolog.Logger
}

func NewDispatcher(records NotificationStore, users UserDirectory, push PushGateway, email EmailGateway, pushTimeout, emailTimeout time.Duration, log zerolog.Logger) *Dispatcher {
	if pushTimeout <= 0 {
		pushTimeout = 10 * time.Second
	}
	if emailTimeout <= 0 {
		emailTimeout = 15 * time.Second
	}
	return &Dispatcher{
		records:      records,
		users:        users,
		push:         push,
		email:        email,
		pushTimeout:  pushTimeout,
		emailTimeout: emailTimeout,
		log:          log.With().Str("component", "dispatcher").Logger(),
	}
}

// Notify records the notification and then attempts the channels the user
// opted into. Channel failures are logged and reflected in the result only.
func (d *Dispatcher) Notify(ctx context.Context, userID int64, title, message, category string, ch Channels) DeliveryResult {
	var res DeliveryResult

	rec := &repository.Notification{
		UserID:   userID,
		Category: category,
		Title:    title,
		Message:  message,
	}
	if err := d.records.Append(ctx, rec); err != nil {
		d.log.Warn().Err(err).Int64("user_id", userID).Msg("failed to persist notification record")
	} else {
		res.Recorded = true
	}

	user, err := d.users.GetByID(ctx, userID)
	if err != nil {
		d.log.Warn().Err(err).Int64("user_id", userID).Msg("recipient lookup failed, skipping channels")
		return res
	}

	if ch.Push && d.push != nil {
		if user.DeviceToken == nil || *user.DeviceToken == "" {
			d.log.Debug().Int64("user_id", userID).Msg("push requested but no device token")
		} else {
			pctx, cancel := context.WithTimeout(ctx, d.pushTimeout)
			err := d.push.Send(pctx, *user.DeviceToken, title, message, map[string]string{"category": category})
			cancel()
			if err != nil {
				res.PushFailed = true
				d.log.Warn().Err(err).Int64("user_id", userID).Msg("push delivery failed")
			} else {
				res.PushSent = true
			}
		}
	}

	if ch.Email && d.email != nil {
		if user.Email == nil || *user.Email == "" {
			d.log.Debug().Int64("user_id", userID).Msg("email requested but no address")
		} else {
			ectx, cancel := context.WithTimeout(ctx, d.emailTimeout)
			err := d.email.Send(ectx, *user.Email, title, message)
			cancel()
			if err != nil {
				res.EmailFailed = true
				d.log.Warn().Err(err).Int64("user_id", userID).Msg("email delivery failed")
			} else {
				res.EmailSent = true
			}
		}
	}

	return res
}
