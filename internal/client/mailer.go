package client

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mfgtrack/be-order-tracking/internal/apperr"
)

// Mailer sends plain-text notification emails over SMTP.
type Mailer struct {
	addr string
	auth smtp.Auth
	from string
	log  zerolog.Logger
}

// NewMailer configures an SMTP sender. Auth is skipped when username is
// empty, which matches local relay setups.
func NewMailer(host string, port int, username, password, from string, log zerolog.Logger) *Mailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &Mailer{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: auth,
		from: from,
		log:  log.With().Str("component", "mailer").Logger(),
	}
}

// Send delivers one email. The context deadline is honored by running the
// SMTP dialog in a goroutine.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		body,
	}, "\r\n")

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg))
	}()

	select {
	case <-ctx.Done():
		return apperr.Wrap(ctx.Err(), apperr.CodeInternal, "smtp send timed out")
	case err := <-done:
		if err != nil {
			return apperr.Wrap(err, apperr.CodeInternal, "smtp send failed")
		}
	}
	m.log.Debug().Str("to", to).Msg("email sent")
	return nil
}
