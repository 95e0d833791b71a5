package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers transactional email. OTP delivery is on the caller's
// critical path, so errors are returned rather than swallowed.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c SMTPConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != "" && strings.TrimSpace(c.From) != ""
}

type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(m.build(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

func (m *SMTPMailer) build(msg Message) *gomail.Message {
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/plain", msg.Body)
	return gm
}

// LogMailer stands in for SMTP in development: it records what would have
// been sent and always succeeds.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("smtp not configured; email logged instead of sent",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}

type OTPPurpose string

const (
	OTPPurposeSignup         OTPPurpose = "signup"
	OTPPurposeChangePassword OTPPurpose = "change-password"
)

func OTPEmail(to string, code string, purpose OTPPurpose, ttl time.Duration) Message {
	subject := "Verify your salon account"
	action := "verify your email address"
	if purpose == OTPPurposeChangePassword {
		subject = "Confirm your password change"
		action = "confirm your password change"
	}
	body := fmt.Sprintf("Use the code %s to %s. The code expires in %d minutes.\n\nIf you did not request this, you can ignore this email.",
		code, action, int(ttl.Minutes()))
	return Message{To: to, Subject: subject, Body: body}
}
