package notifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/good-yellow-bee/alertflow/internal/models"
)

// SMTPConfig holds credentials shared by all mail channels.
type SMTPConfig struct {
	Username string
	Password string
	// DialTimeout bounds the TCP connect. Zero means 30s.
	DialTimeout time.Duration
}

// SMTPSender sends mail notifications. The channel supplies the server
// ("host:port" in Channel.Host, 465 for implicit TLS, 587 for STARTTLS)
// and the from address (Channel.Sender).
type SMTPSender struct {
	config SMTPConfig
}

// NewSMTPSender creates an SMTP channel sender.
func NewSMTPSender(config SMTPConfig) *SMTPSender {
	if config.DialTimeout <= 0 {
		config.DialTimeout = 30 * time.Second
	}
	return &SMTPSender{config: config}
}

// Type returns "smtp".
func (s *SMTPSender) Type() string {
	return "smtp"
}

// Send delivers the message as a plain-text mail to one receiver.
func (s *SMTPSender) Send(ctx context.Context, channel *models.Channel, receiver, message string) error {
	host, _, err := net.SplitHostPort(channel.Host)
	if err != nil {
		return fmt.Errorf("invalid smtp channel host %q: %w", channel.Host, err)
	}

	subject := firstLine(message)
	msg := s.buildMessage(channel.Sender, receiver, subject, message)

	client, err := s.connect(ctx, channel.Host, host)
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	defer client.Close()

	if s.config.Username != "" && s.config.Password != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(extractEmail(channel.Sender)); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := client.Rcpt(receiver); err != nil {
		return fmt.Errorf("add recipient %s: %w", receiver, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("start data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}
	return client.Quit()
}

// Close is a no-op; connections are per-send.
func (s *SMTPSender) Close() error {
	return nil
}

func (s *SMTPSender) buildMessage(from, to, subject, body string) []byte {
	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")
	return []byte(msg.String())
}

func (s *SMTPSender) connect(ctx context.Context, addr, host string) (*smtp.Client, error) {
	tlsConfig := &tls.Config{ServerName: host}

	if strings.HasSuffix(addr, ":465") {
		// Implicit TLS (SMTPS)
		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return nil, err
		}
		return smtp.NewClient(conn, host)
	}

	// STARTTLS (port 587 or 25)
	dialer := &net.Dialer{Timeout: s.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	client, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("STARTTLS failed: %w", err)
		}
	}
	return client, nil
}

// extractEmail extracts the address from a "Name <email>" format.
func extractEmail(addr string) string {
	if start := strings.Index(addr, "<"); start != -1 {
		if end := strings.Index(addr, ">"); end != -1 {
			return addr[start+1 : end]
		}
	}
	return addr
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i != -1 {
		return strings.TrimRight(s[:i], "\r")
	}
	return s
}
