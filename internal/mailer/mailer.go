// Package mailer is the outbound email collaborator. Delivery failure is a
// reported, non-fatal outcome; nothing in the core retries sends.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	mail "gopkg.in/mail.v2"
)

const (
	dialTimeout      = 20 * time.Second
	magicLinkSubject = "Your sign-in link"
)

var errIncompleteSMTPConfig = errors.New("mailer: smtp host, from and credentials are required")

// Sender delivers templated messages to a destination address.
type Sender interface {
	SendMagicLink(ctx context.Context, to, link string) error
}

// SMTPConfig configures the SMTP sender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends mail through an SMTP relay.
type SMTPSender struct {
	dialer *mail.Dialer
	from   string
}

// NewSMTPSender constructs an SMTP-backed sender.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" || strings.TrimSpace(cfg.From) == "" {
		return nil, errIncompleteSMTPConfig
	}
	dialer := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.Timeout = dialTimeout
	return &SMTPSender{dialer: dialer, from: cfg.From}, nil
}

// SendMagicLink delivers the sign-in link to the given address.
func (s *SMTPSender) SendMagicLink(_ context.Context, to, link string) error {
	message := mail.NewMessage()
	message.SetHeader("From", s.from)
	message.SetHeader("To", to)
	message.SetHeader("Subject", magicLinkSubject)
	message.SetBody("text/plain", fmt.Sprintf(
		"Follow this link to sign in:\n\n%s\n\nThe link is valid once and expires shortly.", link))
	return s.dialer.DialAndSend(message)
}

// LogSender logs instead of sending. Used when SMTP is unconfigured so local
// environments still complete the magic-link flow.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs the logging fallback sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// SendMagicLink records the link instead of delivering it.
func (s *LogSender) SendMagicLink(_ context.Context, to, link string) error {
	s.logger.Info("magic link issued (smtp unconfigured, not delivered)",
		zap.String("to", to), zap.String("link", link))
	return nil
}
