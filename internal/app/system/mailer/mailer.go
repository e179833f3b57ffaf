// internal/app/system/mailer/mailer.go
package mailer

import (
	"bytes"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"
)

// Email is one outbound message with both text and HTML bodies.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Config holds SMTP settings. An empty Host disables sending, which keeps
// local development working without a mail server.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Mailer sends email best-effort. Send reports whether the message went
// out but never returns an error: delivery failure must not fail the
// operation that triggered the mail.
type Mailer struct {
	cfg    Config
	server string
	auth   smtp.Auth
	log    *zap.Logger

	// sendFn is swapped in tests to capture messages without a server.
	sendFn func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func New(cfg Config, log *zap.Logger) *Mailer {
	if log == nil {
		log = zap.NewNop()
	}
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &Mailer{
		cfg:    cfg,
		server: cfg.Host + ":" + cfg.Port,
		auth:   auth,
		log:    log,
		sendFn: smtp.SendMail,
	}
}

// Enabled reports whether the mailer has enough configuration to send.
func (m *Mailer) Enabled() bool {
	return m.cfg.Host != "" && m.cfg.Port != "" && m.cfg.From != ""
}

// Send delivers one message. Returns true when the SMTP handoff succeeded.
func (m *Mailer) Send(e Email) bool {
	if !m.Enabled() {
		m.log.Info("mailer disabled, skipping send",
			zap.String("to", e.To),
			zap.String("subject", e.Subject))
		return false
	}

	from := m.cfg.From
	if m.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.cfg.FromName, m.cfg.From)
	}

	const boundary = "boundary-watchd-alt"
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", e.To)
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", e.Subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n", e.TextBody)
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n", e.HTMLBody)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	if err := m.sendFn(m.server, m.auth, m.cfg.From, []string{e.To}, msg.Bytes()); err != nil {
		m.log.Warn("email send failed",
			zap.String("to", e.To),
			zap.String("subject", e.Subject),
			zap.Error(err))
		return false
	}
	return true
}
