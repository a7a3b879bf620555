// Package mail composes the authentication emails and hands them to the
// delivery queue. Actual sending happens asynchronously in the mailq
// worker, so enqueue failures are the only errors surfaced here.
package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/paddockhq/gatehouse/pkg/mailq"
)

// Enqueuer is the slice of mailq.Queue the mailer needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg mailq.Message) error
}

// Mailer builds and enqueues the emails the auth flows produce.
type Mailer struct {
	queue Enqueuer
}

func NewMailer(queue Enqueuer) *Mailer {
	return &Mailer{queue: queue}
}

// SendTOTPCode delivers the current one-time code to users whose second
// factor is their inbox.
func (m *Mailer) SendTOTPCode(ctx context.Context, to string, code string) error {
	return m.queue.Enqueue(ctx, mailq.Message{
		To:      []string{to},
		Subject: "Your sign-in code",
		Body: fmt.Sprintf(
			"Your one-time sign-in code is: %s\n\n"+
				"It expires shortly. If you did not try to sign in, you can ignore this email.\n",
			code),
	})
}

// SendBackupTokens delivers the freshly generated recovery codes after
// two-factor enrollment.
func (m *Mailer) SendBackupTokens(ctx context.Context, to string, codes []string) error {
	var b strings.Builder
	b.WriteString("Two-factor authentication is now enabled on your account.\n\n")
	b.WriteString("Keep these backup tokens somewhere safe. Each one works exactly once\n")
	b.WriteString("if you lose access to your device:\n\n")
	for _, code := range codes {
		fmt.Fprintf(&b, "    %s\n", code)
	}

	return m.queue.Enqueue(ctx, mailq.Message{
		To:      []string{to},
		Subject: "Your backup tokens",
		Body:    b.String(),
	})
}
