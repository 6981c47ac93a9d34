// Package mailer delivers transactional notifications. Delivery is strictly
// best-effort: dispatch failures are logged and never surfaced to the caller,
// so a successful state transition can never look like a failure to the
// customer because an email bounced.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	ReplyTo string
}

// Sender delivers one message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender is a plain SMTP implementation. The platform's mail volume is a
// handful of lifecycle notifications; no queueing or retry is layered on top.
type SMTPSender struct {
	addr string
	from string
}

// NewSMTPSender constructs an SMTPSender for host:port.
func NewSMTPSender(host string, port int, from string) *SMTPSender {
	return &SMTPSender{addr: fmt.Sprintf("%s:%d", host, port), from: from}
}

// Send delivers the message synchronously.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	if msg.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\r\n", msg.ReplyTo)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTML)

	if err := smtp.SendMail(s.addr, nil, s.from, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", msg.To, err)
	}
	return nil
}
