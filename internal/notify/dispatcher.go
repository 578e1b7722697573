package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"merchhub/internal/entity"

	"github.com/sirupsen/logrus"
)

//go:embed templates/*
var templateFS embed.FS

// Message is a rendered email ready for a transport.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Transport delivers rendered messages.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

type Options struct {
	AppName string
	LinkTTL time.Duration
}

// Dispatcher renders account notifications and hands them to a transport.
type Dispatcher struct {
	transport Transport
	opts      Options
	html      *htmltemplate.Template
	text      *texttemplate.Template
	logger    logrus.FieldLogger
}

type verificationData struct {
	Subject          string
	Name             string
	AppName          string
	Link             string
	ExpiresInMinutes int
}

func NewDispatcher(transport Transport, opts Options, logger logrus.FieldLogger) (*Dispatcher, error) {
	if transport == nil {
		return nil, fmt.Errorf("notify: transport is required")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.AppName == "" {
		opts.AppName = "Merch Hub"
	}
	if opts.LinkTTL <= 0 {
		opts.LinkTTL = 60 * time.Minute
	}
	html, err := htmltemplate.ParseFS(templateFS, "templates/verify_email.html")
	if err != nil {
		return nil, fmt.Errorf("notify: parse html template: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/verify_email.txt")
	if err != nil {
		return nil, fmt.Errorf("notify: parse text template: %w", err)
	}
	return &Dispatcher{transport: transport, opts: opts, html: html, text: text, logger: logger}, nil
}

func (d *Dispatcher) SendVerification(ctx context.Context, account *entity.Account, link string) error {
	msg, err := d.renderVerification(account, link)
	if err != nil {
		return err
	}
	if err := d.transport.Send(ctx, msg); err != nil {
		return err
	}
	d.logger.WithFields(logrus.Fields{
		"account_id": account.ID,
		"to":         msg.To,
	}).Info("verification email dispatched")
	return nil
}

func (d *Dispatcher) renderVerification(account *entity.Account, link string) (Message, error) {
	data := verificationData{
		Subject:          "Verify Email Address",
		Name:             account.Name,
		AppName:          d.opts.AppName,
		Link:             link,
		ExpiresInMinutes: int(d.opts.LinkTTL / time.Minute),
	}
	var html, text bytes.Buffer
	if err := d.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render verification html: %w", err)
	}
	if err := d.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render verification text: %w", err)
	}
	return Message{
		To:      account.Email,
		Subject: data.Subject,
		HTML:    html.String(),
		Text:    strings.TrimSpace(text.String()),
	}, nil
}
