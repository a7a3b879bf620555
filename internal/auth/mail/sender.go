package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/paddockhq/gatehouse/pkg/mailq"
	"github.com/paddockhq/gatehouse/pkg/slogx"
)

// SMTPSender delivers queued messages over plain SMTP.
type SMTPSender struct {
	Addr string // host:port
	From string
	Auth smtp.Auth // nil for unauthenticated relays (dev)
}

func (s *SMTPSender) Send(ctx context.Context, msg mailq.Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)

	if err := smtp.SendMail(s.Addr, s.Auth, s.From, msg.To, []byte(b.String())); err != nil {
		return fmt.Errorf("mail: smtp send: %w", err)
	}
	return nil
}

// LogSender logs messages instead of delivering them. Used when no SMTP
// relay is configured (local development).
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg mailq.Message) error {
	slogx.FromContext(ctx).Info("mail delivery (log only)",
		"to", strings.Join(msg.To, ", "),
		"subject", msg.Subject,
		"body_len", len(msg.Body),
	)
	return nil
}
