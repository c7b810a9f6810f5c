// Package email delivers notification mail over SMTP.
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"intranet/internal/domain/notifications"
	"intranet/internal/platform/config"
)

const (
	subjectPrefix   = "[Intranet] "
	typeHeader      = "X-Intranet-Notification"
	referenceHeader = "X-Intranet-Document"
	dialTimeout     = 10 * time.Second
)

type noopMailer struct{}

func (noopMailer) Send(_ context.Context, msg notifications.Message) error {
	slog.Debug("email disabled, dropping notification", "type", msg.Type, "reference", msg.Reference)
	return nil
}

type smtpMailer struct {
	cfg config.Config
	now func() time.Time
}

// New returns an SMTP mailer, or a mailer that drops every message when email
// is disabled.
func New(cfg config.Config) notifications.Mailer {
	if !cfg.EmailEnabled || cfg.SMTPHost == "" {
		return noopMailer{}
	}
	return &smtpMailer{cfg: cfg, now: time.Now}
}

func (s *smtpMailer) Send(ctx context.Context, msg notifications.Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return nil
	}
	if err := s.deliver(ctx, msg.From, msg.To, compose(msg, s.now())); err != nil {
		return fmt.Errorf("mail %s notification: %w", msg.Type, err)
	}
	return nil
}

func (s *smtpMailer) deliver(ctx context.Context, from, to string, raw []byte) error {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(s.cfg.SMTPHost, fmt.Sprint(s.cfg.SMTPPort)))
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.SMTPHost)
	if err != nil {
		return fmt.Errorf("greeting: %w", err)
	}
	defer client.Close()

	if s.cfg.SMTPUseTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.SMTPHost}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.cfg.SMTPUser != "" {
		if err := client.Auth(smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPassword, s.cfg.SMTPHost)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("end data: %w", err)
	}
	return client.Quit()
}

// compose renders the notification as a plain text mail. The notification
// type and document number travel in headers so mail rules can sort them.
func compose(msg notifications.Message, at time.Time) []byte {
	to := (&mail.Address{Name: msg.RecipientName, Address: msg.To}).String()
	headers := []string{
		"From: " + msg.From,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", subject(msg)),
		"Date: " + at.UTC().Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
	}
	if msg.Type != "" {
		headers = append(headers, typeHeader+": "+msg.Type)
	}
	if msg.Reference != "" {
		headers = append(headers, referenceHeader+": "+msg.Reference)
	}

	var body strings.Builder
	if msg.RecipientName != "" {
		body.WriteString("Hello " + msg.RecipientName + ",\n\n")
	}
	body.WriteString(msg.Body + "\n\n")
	if msg.Reference != "" {
		body.WriteString("Open " + msg.Reference + " in the intranet to review the document.\n")
	} else {
		body.WriteString("Your balance is available under Leave in the intranet.\n")
	}
	text := strings.ReplaceAll(body.String(), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n", "\r\n")

	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + text)
}

func subject(msg notifications.Message) string {
	if msg.Reference == "" {
		return subjectPrefix + msg.Subject
	}
	return subjectPrefix + msg.Subject + " (" + msg.Reference + ")"
}
