// Package notifications delivers best-effort email and realtime events for
// ticket workflow transitions. Delivery failures are logged and counted,
// never surfaced to the business operation that triggered them.
package notifications

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"
)

// EmailMessage is one outbound mail.
type EmailMessage struct {
	To      []string
	Subject string
	Body    string
	HTML    bool
}

// EmailProvider sends mail. Implementations must be safe for concurrent
// use.
type EmailProvider interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// SMTPConfig configures the SMTP provider. TLSMode is one of "smtps",
// "starttls" or "" for plain.
type SMTPConfig struct {
	Enabled    bool
	Host       string
	Port       int
	User       string
	Password   string
	From       string
	TLSMode    string
	SkipVerify bool
}

// SMTPProvider delivers mail over SMTP.
type SMTPProvider struct {
	cfg SMTPConfig
}

// NewSMTPProvider creates a provider. A disabled config yields a provider
// that silently drops every message.
func NewSMTPProvider(cfg SMTPConfig) *SMTPProvider {
	return &SMTPProvider{cfg: cfg}
}

func (s *SMTPProvider) Send(_ context.Context, msg EmailMessage) error {
	if !s.cfg.Enabled {
		return nil
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}

	from := s.cfg.From
	if from == "" {
		from = s.cfg.User
	}

	headers := []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", strings.Join(msg.To, ", ")),
		fmt.Sprintf("Subject: %s", msg.Subject),
	}
	if msg.HTML {
		headers = append(headers, "MIME-Version: 1.0", "Content-Type: text/html; charset=UTF-8")
	} else {
		headers = append(headers, "Content-Type: text/plain; charset=UTF-8")
	}
	message := strings.Join(headers, "\r\n") + "\r\n\r\n" + msg.Body

	client, err := s.dial()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := s.authenticate(client); err != nil {
		return err
	}

	sender := from
	if sender == "" {
		sender = "noreply@localhost"
	}
	if err := client.Mail(sender); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	for _, to := range msg.To {
		if err := client.Rcpt(to); err != nil {
			return fmt.Errorf("set recipient %s: %w", to, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("initiate data transfer: %w", err)
	}
	if _, err := w.Write([]byte(message)); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data transfer: %w", err)
	}
	return client.Quit()
}

func (s *SMTPProvider) dial() (*smtp.Client, error) {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	tlsConfig := &tls.Config{
		ServerName:         s.cfg.Host,
		InsecureSkipVerify: s.cfg.SkipVerify,
	}

	switch s.cfg.TLSMode {
	case "smtps":
		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("connect via SMTPS: %w", err)
		}
		client, err := smtp.NewClient(conn, s.cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("create SMTP client: %w", err)
		}
		return client, nil
	default:
		client, err := smtp.Dial(addr)
		if err != nil {
			return nil, fmt.Errorf("connect to SMTP server: %w", err)
		}
		if s.cfg.TLSMode == "starttls" {
			if err := client.StartTLS(tlsConfig); err != nil {
				client.Close()
				return nil, fmt.Errorf("start TLS: %w", err)
			}
		}
		return client, nil
	}
}

func (s *SMTPProvider) authenticate(client *smtp.Client) error {
	if s.cfg.User == "" || s.cfg.Password == "" {
		return nil
	}
	auth := smtp.PlainAuth("", s.cfg.User, s.cfg.Password, s.cfg.Host)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}
	return nil
}
