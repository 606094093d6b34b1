package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sga-platform/sga-notas-api/pkg/config"
)

// Message is the payload for one grade notification. The value describes a
// single slot; multi-slot submissions notify only their first changed slot.
type Message struct {
	RecipientEmail string
	RecipientName  string
	CourseName     string
	SlotLabel      string
	Value          float64
	Date           time.Time
	Description    *string
}

// SMTPDispatcher delivers grade notifications as plain-text mail over SMTP
// with STARTTLS.
type SMTPDispatcher struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
}

// NewSMTPDispatcher constructs the dispatcher.
func NewSMTPDispatcher(cfg config.SMTPConfig, logger *zap.Logger) *SMTPDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPDispatcher{cfg: cfg, logger: logger}
}

// Send delivers the message. Errors are returned to the caller for logging;
// delivery failures never affect the grade mutation that triggered them.
func (d *SMTPDispatcher) Send(ctx context.Context, msg Message) error {
	if d.cfg.Host == "" {
		return fmt.Errorf("smtp not configured")
	}

	from := d.cfg.From
	if from == "" {
		from = d.cfg.Username
	}

	body := BuildBody(msg)
	mail := strings.Join([]string{
		fmt.Sprintf("From: Grade Notifications <%s>", from),
		fmt.Sprintf("To: %s", msg.RecipientEmail),
		fmt.Sprintf("Subject: New Grade - %s", msg.CourseName),
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)
	var auth smtp.Auth
	if d.cfg.Username != "" {
		auth = smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, from, []string{msg.RecipientEmail}, []byte(mail))
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", msg.RecipientEmail, err)
		}
	}

	d.logger.Sugar().Infow("notification delivered", "recipient", msg.RecipientEmail, "course", msg.CourseName)
	return nil
}

// BuildBody renders the plain-text notification body.
func BuildBody(msg Message) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", msg.RecipientName)
	fmt.Fprintf(&b, "A grade has been recorded for %s in course %q.\n", msg.SlotLabel, msg.CourseName)
	fmt.Fprintf(&b, "Grade: %.2f\n", msg.Value)
	fmt.Fprintf(&b, "Evaluation date: %s\n", msg.Date.Format("2006-01-02"))
	if msg.Description != nil && *msg.Description != "" {
		fmt.Fprintf(&b, "\nAbout this evaluation:\n%s\n", *msg.Description)
	}
	b.WriteString("\nPlease check the student portal for details.\n")
	return b.String()
}
