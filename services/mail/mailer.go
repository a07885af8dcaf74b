package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// Template names the core selects from; building and delivering the message
// is this package's concern alone.
const (
	TemplatePasswordReset   = "password_reset"
	TemplatePasswordChanged = "password_changed"
)

// Sender delivers a templated email to a recipient
type Sender interface {
	Send(ctx context.Context, template, recipient string, vars map[string]string) error
}

// SMTPConfig holds SMTP connection settings
type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// SMTPSender sends templated emails over SMTP with STARTTLS
type SMTPSender struct {
	config SMTPConfig
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(config SMTPConfig) *SMTPSender {
	if config.Port == "" {
		config.Port = "587"
	}
	return &SMTPSender{config: config}
}

// Send renders the named template with vars and delivers it
func (s *SMTPSender) Send(ctx context.Context, template, recipient string, vars map[string]string) error {
	subject, body, err := render(template, vars)
	if err != nil {
		return err
	}
	return s.sendEmail(recipient, subject, body)
}

func render(template string, vars map[string]string) (subject, body string, err error) {
	name := vars["name"]
	if name == "" {
		name = "there"
	}

	switch template {
	case TemplatePasswordReset:
		subject = "Reset your password"
		body = fmt.Sprintf(
			"Hi %s,\r\n\r\n"+
				"Someone requested a password reset for your account. Open the link below to choose a new password. "+
				"The link expires in %s minutes.\r\n\r\n%s\r\n\r\n"+
				"If you did not request this, you can safely ignore this email.\r\n",
			name, vars["expires_minutes"], vars["reset_link"])
	case TemplatePasswordChanged:
		subject = "Your password was changed"
		body = fmt.Sprintf(
			"Hi %s,\r\n\r\n"+
				"Your password was just changed. If this was you, no action is needed. "+
				"If it was not, contact support immediately.\r\n",
			name)
	default:
		return "", "", fmt.Errorf("unknown mail template: %s", template)
	}
	return subject, body, nil
}

// sendEmail sends an email using SMTP with TLS
func (s *SMTPSender) sendEmail(to, subject, body string) error {
	var message strings.Builder
	message.WriteString(fmt.Sprintf("From: %s\r\n", s.config.From))
	message.WriteString(fmt.Sprintf("To: %s\r\n", to))
	message.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	message.WriteString("MIME-Version: 1.0\r\n")
	message.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	message.WriteString("\r\n")
	message.WriteString(body)

	addr := fmt.Sprintf("%s:%s", s.config.Host, s.config.Port)
	auth := smtp.PlainAuth("", s.config.User, s.config.Pass, s.config.Host)

	tlsConfig := &tls.Config{
		ServerName: s.config.Host,
	}

	conn, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()

	if err := conn.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if err := conn.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}

	if err := conn.Mail(s.config.From); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	if err := conn.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := conn.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}

	if _, err := w.Write([]byte(message.String())); err != nil {
		return fmt.Errorf("failed to write email body: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	conn.Quit()

	log.Printf("Email (%s) sent to: %s", subject, to)
	return nil
}

// LogSender logs instead of sending; used in development when SMTP is not
// configured so reset tokens remain reachable from the server logs.
type LogSender struct{}

// Send logs the would-be delivery
func (LogSender) Send(_ context.Context, template, recipient string, vars map[string]string) error {
	log.Printf("[mail] template=%s to=%s vars=%v", template, recipient, vars)
	return nil
}
