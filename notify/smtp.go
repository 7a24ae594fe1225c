package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"html/template"
	"net"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/saiset-co/catalog-service/types"
)

const (
	DefaultSMTPHost    = "smtp.gmail.com"
	DefaultSMTPPort    = 587
	DefaultSiteName    = "Catalog"
	DefaultSMTPTimeout = 15 * time.Second

	implicitTLSPort = 465
)

// SendFunc delivers one message. Tests replace it to capture mail without a
// server.
type SendFunc func(ctx context.Context, msg *mail.Msg) error

type Mailer struct {
	config  *types.NotifyConfig
	logger  types.Logger
	send    SendFunc
	now     func() time.Time
	timeout time.Duration
}

type Option func(*Mailer)

func WithSendFunc(send SendFunc) Option {
	return func(m *Mailer) {
		m.send = send
	}
}

// WithTimeout bounds one SMTP session when the caller's context has no
// earlier deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(m *Mailer) {
		m.timeout = timeout
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Mailer) {
		m.now = now
	}
}

// NewMailer never fails. A mailer without credentials reports Enabled() ==
// false and refuses to send.
func NewMailer(config *types.NotifyConfig, logger types.Logger, opts ...Option) *Mailer {
	cfg := types.NotifyConfig{}
	if config != nil {
		cfg = *config
	}
	if cfg.Host == "" {
		cfg.Host = DefaultSMTPHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultSMTPPort
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	if cfg.AdminTo == "" {
		cfg.AdminTo = cfg.From
	}
	if cfg.SiteName == "" {
		cfg.SiteName = DefaultSiteName
	}

	m := &Mailer{
		config:  &cfg,
		logger:  logger,
		now:     time.Now,
		timeout: DefaultSMTPTimeout,
	}
	m.send = m.dialAndSend

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Mailer) Enabled() bool {
	return m.config.Enabled && m.config.User != "" && m.config.Password != ""
}

// NotifyInquiry mails the inquiry to the admin address and a confirmation to
// the customer. The admin mail is attempted first; a failure there aborts.
func (m *Mailer) NotifyInquiry(ctx context.Context, inquiry *types.Inquiry) error {
	if !m.Enabled() {
		return types.ErrNotifierDisabled
	}

	data := templateData{
		Inquiry:  inquiry,
		SiteName: m.config.SiteName,
		Received: m.now().UTC().Format(time.RFC1123),
	}

	subject := "New Inquiry from " + inquiry.Name
	if inquiry.ProductName != "" {
		subject = "New Product Inquiry - " + inquiry.ProductName
	}

	if err := m.deliver(ctx, m.config.AdminTo, subject, adminTemplate, data); err != nil {
		return err
	}

	confirmation := "Thank you for contacting " + m.config.SiteName
	if inquiry.ProductName != "" {
		confirmation = "Thank you for your inquiry - " + inquiry.ProductName
	}

	if err := m.deliver(ctx, inquiry.Email, confirmation, customerTemplate, data); err != nil {
		return err
	}

	m.logger.Info("Inquiry notifications sent",
		zap.String("inquiry_id", inquiry.ID),
		zap.String("admin", m.config.AdminTo))

	return nil
}

func (m *Mailer) deliver(ctx context.Context, to, subject string, tmpl *template.Template, data templateData) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return types.WrapError(err, "failed to render email")
	}

	msg, err := m.buildMessage(to, subject, body.String())
	if err != nil {
		return types.Errorf(types.ErrNotifierSendFailed, "to %s: %v", to, err)
	}

	if err := m.send(ctx, msg); err != nil {
		return types.Errorf(types.ErrNotifierSendFailed, "to %s: %v", to, err)
	}

	return nil
}

func (m *Mailer) buildMessage(to, subject, html string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(m.config.From); err != nil {
		return nil, err
	}
	if err := msg.To(to); err != nil {
		return nil, err
	}
	msg.Subject(stripNewlines(subject))
	msg.SetDateWithValue(m.now())
	msg.SetBodyString(mail.TypeTextHTML, html)

	return msg, nil
}

// dialAndSend opens one SMTP session per message. Port 465 uses implicit TLS,
// every other port upgrades with STARTTLS when the server offers it.
func (m *Mailer) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	timeout := m.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return context.DeadlineExceeded
		}
		if remaining < timeout {
			timeout = remaining
		}
	}

	implicitTLS := m.config.Port == implicitTLSPort
	policy := mail.TLSOpportunistic
	if implicitTLS {
		policy = mail.NoTLS
	}

	client, err := mail.NewClient(m.config.Host,
		mail.WithPort(m.config.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(m.config.User),
		mail.WithPassword(m.config.Password),
		mail.WithTLSPolicy(policy),
		mail.WithTimeout(timeout),
		mail.WithDialContextFunc(deadlineDialer(m.config.Host, implicitTLS)),
	)
	if err != nil {
		return err
	}

	return client.DialAndSendWithContext(ctx, msg)
}

// deadlineDialer puts the dial context's deadline on the connection itself so
// a server that accepts and then stays silent cannot hold the session open.
func deadlineDialer(host string, implicitTLS bool) mail.DialContextFunc {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		var dialer net.Dialer
		conn, err := dialer.DialContext(ctx, network, address)
		if err != nil {
			return nil, err
		}

		if deadline, ok := ctx.Deadline(); ok {
			if err := conn.SetDeadline(deadline); err != nil {
				_ = conn.Close()
				return nil, err
			}
		}

		if !implicitTLS {
			return conn, nil
		}

		tlsConn := tls.Client(conn, &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return tlsConn, nil
	}
}

func stripNewlines(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
