// Package notify delivers password-reset emails and one-time codes.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"

	"selfcheckout/internal/logging"
)

// SMTPConfig holds the outbound mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendFunc func(ctx context.Context, msg *mail.Msg) error

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	send sendFunc
	log  *logging.Logger
}

// NewSMTPMailer creates an SMTPMailer.
func NewSMTPMailer(cfg SMTPConfig, log *logging.Logger) *SMTPMailer {
	m := &SMTPMailer{cfg: cfg, log: log}
	m.send = m.dialAndSend
	return m
}

func (m *SMTPMailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// SendPasswordReset emails link to to.
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, link string) error {
	body := fmt.Sprintf("You requested a password reset.\r\n\r\n"+
		"Open the link below within 30 minutes to choose a new password:\r\n%s\r\n\r\n"+
		"If you did not request this, you can ignore this email.\r\n", link)

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject("Reset your password")
	msg.SetBodyString(mail.TypeTextPlain, body)

	if err := m.send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	m.log.Infof("password reset email sent")
	return nil
}

// LogMailer writes reset links to the log instead of sending them. Used when no SMTP
// server is configured.
type LogMailer struct {
	log *logging.Logger
}

func NewLogMailer(log *logging.Logger) *LogMailer { return &LogMailer{log: log} }

func (m *LogMailer) SendPasswordReset(_ context.Context, to, link string) error {
	m.log.Infof("password reset link for %s: %s", to, link)
	return nil
}

// LogOTPSender writes one-time codes to the log. No SMS gateway is wired in.
type LogOTPSender struct {
	log *logging.Logger
}

func NewLogOTPSender(log *logging.Logger) *LogOTPSender { return &LogOTPSender{log: log} }

func (s *LogOTPSender) SendOTP(_ context.Context, phone, code string) error {
	s.log.Infof("OTP for %s: %s", maskPhone(phone), code)
	return nil
}

// maskPhone keeps the last four digits.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
