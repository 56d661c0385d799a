package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"sync"

	"go.uber.org/zap"

	"github.com/Aidin1998/crowdfund/internal/config"
)

// Message is a rendered email
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
	Kind     Kind
}

// Mailer delivers rendered messages
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// NewMailer picks SMTP when a host is configured and logging otherwise.
func NewMailer(cfg config.SMTPConfig, logger *zap.Logger) Mailer {
	if cfg.Host == "" {
		return NewLogMailer(logger)
	}
	return &SMTPMailer{cfg: cfg}
}

// SMTPMailer sends multipart mail through a plain-auth SMTP relay
type SMTPMailer struct {
	cfg config.SMTPConfig
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	body := fmt.Sprintf("From: %s\r\n", m.cfg.From)
	body += fmt.Sprintf("To: %s\r\n", msg.To)
	body += fmt.Sprintf("Subject: %s\r\n", msg.Subject)
	body += "MIME-Version: 1.0\r\n"
	body += "Content-Type: multipart/alternative; boundary=\"boundary\"\r\n\r\n"
	body += "--boundary\r\n"
	body += "Content-Type: text/plain; charset=UTF-8\r\n\r\n"
	body += msg.TextBody + "\r\n"
	body += "--boundary\r\n"
	body += "Content-Type: text/html; charset=UTF-8\r\n\r\n"
	body += msg.HTMLBody + "\r\n"
	body += "--boundary--\r\n"

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{msg.To}, []byte(body)); err != nil {
		return fmt.Errorf("failed to send %s mail: %w", msg.Kind, err)
	}
	return nil
}

// LogMailer writes messages to the log instead of delivering them
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger.Named("mailer")}
}

// Send logs the envelope at info. Bodies carry sign-in and reset tokens, so
// they are only written at debug level.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("Email not delivered, SMTP is not configured",
		zap.String("kind", string(msg.Kind)),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	if ce := m.logger.Check(zap.DebugLevel, "Undelivered email body"); ce != nil {
		ce.Write(zap.String("kind", string(msg.Kind)), zap.String("body", msg.TextBody))
	}
	return nil
}

// MemoryMailer keeps sent messages; used by tests and local tooling.
type MemoryMailer struct {
	mu   sync.Mutex
	sent []Message
}

func (m *MemoryMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

// Sent returns a copy of the delivered messages.
func (m *MemoryMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

// Last returns the most recent message of the given kind.
func (m *MemoryMailer) Last(kind Kind) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Kind == kind {
			return m.sent[i], true
		}
	}
	return Message{}, false
}
