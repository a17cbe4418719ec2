package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"

	"github.com/MrEthical07/goTrust/internal/logging"
)

// LogSender writes messages to a logger instead of sending them. Link tokens
// are redacted unless ShowTokens is set, which only local development should
// do.
type LogSender struct {
	Logger     logging.Logger
	ShowTokens bool
}

var tokenParam = regexp.MustCompile(`([?&]token=)[^\s&]+`)

func (s LogSender) Send(ctx context.Context, msg Message) error {
	l := s.Logger
	if l == nil {
		l = logging.Nop{}
	}
	body := msg.Body
	if !s.ShowTokens {
		body = tokenParam.ReplaceAllString(body, "${1}REDACTED")
	}
	l.Info(ctx, "mailer: message not sent (log sender)", "to", msg.To, "subject", msg.Subject, "body", body)
	return nil
}

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Attempts is the total number of tries. Zero means 3.
	Attempts uint
	// Delay is the first backoff step. Zero means one second.
	Delay time.Duration
}

// SMTPSender delivers mail over SMTP with PLAIN auth and retries transient
// failures with exponential backoff.
type SMTPSender struct {
	cfg    SMTPConfig
	logger logging.Logger

	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender validates cfg.
func NewSMTPSender(cfg SMTPConfig, logger logging.Logger) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("mailer: smtp host and from are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.Delay == 0 {
		cfg.Delay = time.Second
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &SMTPSender{cfg: cfg, logger: logger, sendMail: smtp.SendMail}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if strings.ContainsAny(msg.To, "\r\n") || strings.ContainsAny(msg.Subject, "\r\n") {
		return errors.New("mailer: header injection")
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	raw := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		s.cfg.From, msg.To, msg.Subject, strings.ReplaceAll(msg.Body, "\n", "\r\n"),
	))

	return retry.Do(
		func() error {
			return s.sendMail(addr, auth, s.cfg.From, []string{msg.To}, raw)
		},
		retry.Attempts(s.cfg.Attempts),
		retry.Delay(s.cfg.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Warn(ctx, "mailer: smtp send failed, retrying", "attempt", n+1, "error", err)
		}),
		retry.Context(ctx),
	)
}
