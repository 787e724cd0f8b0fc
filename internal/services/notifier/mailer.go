package notifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strings"
	"time"

	config "github.com/NordCoder/CropSense/internal/config/web"
	"github.com/NordCoder/CropSense/internal/domain/notification"
	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"
)

var (
	ErrNoStartTLS = errors.New("smtp relay does not offer STARTTLS")
	ErrNoAuth     = errors.New("smtp relay does not offer AUTH")
)

// Mailer delivers plain-text mail through an authenticated SMTP relay, using
// STARTTLS on submission ports or TLS from the first byte when ImplicitTLS is set.
// A relay without STARTTLS or AUTH is refused unless Insecure is set, in which
// case credentials are only sent over TLS.
type Mailer struct {
	addr        string
	host        string
	user        string
	password    string
	from        string
	implicitTLS bool
	insecure    bool
	tls         *tls.Config
	timeout     time.Duration
	now         func() time.Time

	log *zap.Logger
}

var _ notification.EmailSender = (*Mailer)(nil)

func NewMailer(cfg config.SMTP) *Mailer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	h := host(cfg.Addr)
	return &Mailer{
		addr:        cfg.Addr,
		host:        h,
		user:        cfg.User,
		password:    cfg.Password,
		from:        from,
		implicitTLS: cfg.ImplicitTLS,
		insecure:    cfg.Insecure,
		tls:         &tls.Config{ServerName: h, MinVersion: tls.VersionTLS12},
		timeout:     timeout,
		now:         time.Now,
		log:         zap.L().With(zap.String("component", "notifier.mailer")),
	}
}

func (m *Mailer) WithLogger(l *zap.Logger) *Mailer {
	if l == nil {
		return m
	}
	cp := *m
	cp.log = l.With(zap.String("component", "notifier.mailer"))
	return &cp
}

// Compose renders the MIME message for one recipient.
func (m *Mailer) Compose(to, subject, body string) ([]byte, error) {
	var h mail.Header
	h.SetDate(m.now())
	h.SetAddressList("From", []*mail.Address{{Address: m.from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close message: %w", err)
	}
	return buf.Bytes(), nil
}

func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	log := m.log.With(
		zap.String("smtp_addr", m.addr),
		zap.Bool("implicit_tls", m.implicitTLS),
		zap.Bool("insecure", m.insecure),
		zap.String("to", to),
		zap.String("subject", subject),
	)

	msg, err := m.Compose(to, subject, body)
	if err != nil {
		log.Error("compose failed", zap.Error(err))
		return err
	}

	start := time.Now()
	conn, err := m.dial(ctx)
	if err != nil {
		log.Error("smtp dial failed", zap.Error(err))
		return err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		_ = conn.Close()
		log.Error("smtp client failed", zap.Error(err))
		return err
	}
	defer func() { _ = c.Close() }()

	if err := m.secure(c); err != nil {
		log.Error("smtp session refused", zap.Error(err))
		return err
	}
	if err := c.Mail(m.from); err != nil {
		log.Error("smtp MAIL FROM failed", zap.Error(err))
		return err
	}
	if err := c.Rcpt(to); err != nil {
		log.Error("smtp RCPT TO failed", zap.Error(err))
		return err
	}
	w, err := c.Data()
	if err != nil {
		log.Error("smtp DATA failed", zap.Error(err))
		return err
	}
	if _, err = w.Write(msg); err != nil {
		log.Error("smtp write failed", zap.Error(err))
		return err
	}
	if err := w.Close(); err != nil {
		log.Error("smtp close failed", zap.Error(err))
		return err
	}
	_ = c.Quit()

	log.Info("email sent", zap.Duration("elapsed", time.Since(start)))
	return nil
}

// secure upgrades the session to TLS and authenticates.
func (m *Mailer) secure(c *smtp.Client) error {
	encrypted := m.implicitTLS
	if !encrypted {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(m.tls.Clone()); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
			encrypted = true
		} else if !m.insecure {
			return ErrNoStartTLS
		}
	}
	if m.user == "" || !encrypted {
		return nil
	}
	if ok, _ := c.Extension("AUTH"); !ok {
		if m.insecure {
			return nil
		}
		return ErrNoAuth
	}
	if err := c.Auth(smtp.PlainAuth("", m.user, m.password, m.host)); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

func (m *Mailer) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: m.timeout}
	if m.implicitTLS {
		td := &tls.Dialer{NetDialer: dialer, Config: m.tls.Clone()}
		return td.DialContext(ctx, "tcp", m.addr)
	}
	return dialer.DialContext(ctx, "tcp", m.addr)
}

func host(addr string) string {
	if h, _, err := net.SplitHostPort(addr); err == nil {
		return h
	}
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[:i]
	}
	return addr
}
