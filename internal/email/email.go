// Package email composes the digest report and delivers it over SMTP.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	. "github.com/roelfdiedericks/skydigest/internal/logging"
)

// implicitTLSPort is the SMTPS port; every other port upgrades with STARTTLS.
const implicitTLSPort = 465

// Config holds SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	From     string // also the login user
	Password string
	Timeout  time.Duration
}

// Report is the content of one digest email.
type Report struct {
	Summary     string
	PostCount   int
	Accounts    []string
	GeneratedAt time.Time
}

// DeliverFunc hands a composed message to the mail system.
type DeliverFunc func(ctx context.Context, from string, to []string, msg []byte) error

// Sender composes and sends digest emails.
type Sender struct {
	cfg     Config
	deliver DeliverFunc
	md      goldmark.Markdown
	now     func() time.Time
}

// Option configures a Sender.
type Option func(*Sender)

// WithDeliver replaces SMTP delivery, e.g. for previews or tests.
func WithDeliver(fn DeliverFunc) Option {
	return func(s *Sender) { s.deliver = fn }
}

// WithClock overrides time.Now for subjects and report timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Sender) { s.now = now }
}

// NewSender creates a sender.
func NewSender(cfg Config, opts ...Option) (*Sender, error) {
	if cfg.Host == "" {
		return nil, errors.New("email: smtp host is required")
	}
	if cfg.From == "" {
		return nil, errors.New("email: sender address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	s := &Sender{
		cfg: cfg,
		md:  goldmark.New(goldmark.WithExtensions(extension.GFM)),
		now: time.Now,
	}
	s.deliver = s.smtpDeliver
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Subject appends today's date to the configured subject.
func (s *Sender) Subject(subject string) string {
	return fmt.Sprintf("%s - %s", subject, s.now().Format("2006-01-02"))
}

// Body renders the plain-text report.
func Body(r Report) string {
	var sb strings.Builder
	sb.WriteString("Daily Bluesky Summary Report\n")
	fmt.Fprintf(&sb, "Generated on: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Total posts analyzed: %d\n", r.PostCount)
	fmt.Fprintf(&sb, "Monitored accounts: %s\n", strings.Join(r.Accounts, ", "))
	sb.WriteString("\n")
	sb.WriteString(r.Summary)
	sb.WriteString("\n\n---\nThis summary was generated automatically by Bluesky Summary Newsletter.\n")
	return sb.String()
}

// HTMLBody renders the report with the summary converted from Markdown.
func (s *Sender) HTMLBody(r Report) (string, error) {
	var summary bytes.Buffer
	if err := s.md.Convert([]byte(r.Summary), &summary); err != nil {
		return "", fmt.Errorf("render summary: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html><body>\n<h2>Daily Bluesky Summary Report</h2>\n<p>")
	fmt.Fprintf(&sb, "Generated on: %s<br>\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Total posts analyzed: %d<br>\n", r.PostCount)
	fmt.Fprintf(&sb, "Monitored accounts: %s</p>\n<hr>\n", htmlEscape(strings.Join(r.Accounts, ", ")))
	sb.Write(summary.Bytes())
	sb.WriteString("<hr>\n<p><small>This summary was generated automatically by Bluesky Summary Newsletter.</small></p>\n</body></html>\n")
	return sb.String(), nil
}

// Compose builds a multipart/alternative message with text and HTML parts.
func (s *Sender) Compose(to []string, subject string, r Report) ([]byte, error) {
	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = s.now()
	}

	addrs := make([]*mail.Address, 0, len(to))
	for _, a := range to {
		addrs = append(addrs, &mail.Address{Address: a})
	}

	var h mail.Header
	h.SetDate(s.now())
	h.SetAddressList("From", []*mail.Address{{Address: s.cfg.From}})
	h.SetAddressList("To", addrs)
	h.SetSubject(s.Subject(subject))
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message id: %w", err)
	}

	html, err := s.HTMLBody(r)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := mail.CreateInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if err := writePart(w, "text/plain", Body(r)); err != nil {
		return nil, err
	}
	if err := writePart(w, "text/html", html); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close message: %w", err)
	}
	return buf.Bytes(), nil
}

func writePart(w *mail.InlineWriter, contentType, body string) error {
	var h mail.InlineHeader
	h.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	pw, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(pw, body); err != nil {
		return fmt.Errorf("write %s part: %w", contentType, err)
	}
	return pw.Close()
}

// Send composes the report and delivers it to every recipient.
func (s *Sender) Send(ctx context.Context, to []string, subject string, r Report) error {
	if len(to) == 0 {
		return errors.New("email: no recipients")
	}

	msg, err := s.Compose(to, subject, r)
	if err != nil {
		return err
	}
	if err := s.deliver(ctx, s.cfg.From, to, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	L_info("email: sent", "recipients", strings.Join(to, ", "), "bytes", len(msg))
	return nil
}

// smtpDeliver sends over SMTP with implicit TLS on 465 and STARTTLS otherwise,
// authenticating with PLAIN when a password is configured.
func (s *Sender) smtpDeliver(ctx context.Context, from string, to []string, msg []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	tlsConfig := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}

	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	var conn net.Conn
	var err error
	if s.cfg.Port == implicitTLSPort {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.Timeout))
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer func() { _ = c.Close() }()

	if s.cfg.Port != implicitTLSPort {
		if ok, _ := c.Extension("STARTTLS"); !ok {
			return errors.New("smtp server does not support STARTTLS")
		}
		if err := c.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if s.cfg.Password != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.From, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	L_debug("email: smtp delivery complete", "server", addr, "recipients", len(to))
	return c.Quit()
}

func htmlEscape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;").Replace(s)
}
