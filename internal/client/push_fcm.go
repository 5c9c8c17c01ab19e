package client

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/mfgtrack/be-order-tracking/internal/apperr"
)

// FCMClient sends push notifications through Firebase Cloud Messaging.
type FCMClient struct {
	messaging *messaging.Client
	log       zerolog.Logger
}

// NewFCMClient initializes the Firebase app from a service-account
// credentials file.
func NewFCMClient(ctx context.Context, credentialsFile string, log zerolog.Logger) (*FCMClient, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to initialize firebase app")
	}
	msg, err := app.Messaging(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "failed to initialize fcm messaging")
	}
	return &FCMClient{
		messaging: msg,
		log:       log.With().Str("component", "fcm_client").Logger(),
	}, nil
}

// Send delivers one push message to a device token.
func (c *FCMClient) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}
	id, err := c.messaging.Send(ctx, msg)
	if err != nil {
		return apperr.Wrap(err, apperr.CodeInternal, "fcm send failed")
	}
	c.log.Debug().Str("message_id", id).Msg("push message sent")
	return nil
}
