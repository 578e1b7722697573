package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/resend/resend-go/v2"
	"github.com/sirupsen/logrus"
)

var ErrNotConfigured = errors.New("email transport not configured")

// ResendTransport sends through the Resend API.
type ResendTransport struct {
	client *resend.Client
	from   string
}

func NewResendTransport(apiKey string, from string) *ResendTransport {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(from) == "" {
		return &ResendTransport{}
	}
	return &ResendTransport{client: resend.NewClient(apiKey), from: from}
}

func (t *ResendTransport) Send(ctx context.Context, msg Message) error {
	if t.client == nil {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.client.Emails.Send(&resend.SendEmailRequest{
		From:    t.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	})
	return err
}

// LogTransport writes messages to the log instead of sending them. Used in
// development when no API key is configured.
type LogTransport struct {
	Logger logrus.FieldLogger
}

func (t LogTransport) Send(_ context.Context, msg Message) error {
	logger := t.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info(msg.Text)
	return nil
}
