package mailer

import (
	"bytes"
	"context"
	"errors"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goTrust/internal/logging"
)

type captureSender struct {
	mu   sync.Mutex
	msgs []Message
}

func (c *captureSender) Send(_ context.Context, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func TestLinks(t *testing.T) {
	l := Links{BaseURL: "https://app.example.com/"}
	assert.Equal(t, "https://app.example.com/reset-password?token=a%2Bb", l.PasswordReset("a+b"))
	assert.Equal(t, "https://app.example.com/2fa/disable/confirm?token=tok", l.TwoFADisable("tok"))

	custom := Links{BaseURL: "http://localhost:5173", ResetPath: "/auth/reset"}
	assert.Equal(t, "http://localhost:5173/auth/reset?token=x", custom.PasswordReset("x"))
}

func TestServiceRendersLinks(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, Links{BaseURL: "https://app.example.com"}, "Overlay")

	require.NoError(t, svc.SendPasswordReset(context.Background(), "alice@x.com", "reset-token"))
	require.NoError(t, svc.SendTwoFADisable(context.Background(), "alice@x.com", "disable-token"))

	require.Len(t, sender.msgs, 2)
	assert.Equal(t, "alice@x.com", sender.msgs[0].To)
	assert.Contains(t, sender.msgs[0].Subject, "Overlay")
	assert.Contains(t, sender.msgs[0].Body, "https://app.example.com/reset-password?token=reset-token")
	assert.Contains(t, sender.msgs[1].Body, "https://app.example.com/2fa/disable/confirm?token=disable-token")
}

func TestSMTPSenderRetries(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "noreply@example.com", Attempts: 3, Delay: time.Millisecond}, nil)
	require.NoError(t, err)

	calls := 0
	var gotMsg string
	s.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		calls++
		assert.Equal(t, "smtp.example.com:587", addr)
		assert.Equal(t, []string{"alice@x.com"}, to)
		if calls < 3 {
			return errors.New("421 try later")
		}
		gotMsg = string(msg)
		return nil
	}

	require.NoError(t, s.Send(context.Background(), Message{To: "alice@x.com", Subject: "hi", Body: "line1\nline2"}))
	assert.Equal(t, 3, calls)
	assert.True(t, strings.HasPrefix(gotMsg, "From: noreply@example.com\r\n"))
	assert.Contains(t, gotMsg, "line1\r\nline2")
}

func TestSMTPSenderGivesUp(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "noreply@example.com", Attempts: 2, Delay: time.Millisecond}, nil)
	require.NoError(t, err)
	boom := errors.New("550 rejected")
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	err = s.Send(context.Background(), Message{To: "alice@x.com", Subject: "hi"})
	require.ErrorIs(t, err, boom)
}

func TestSMTPSenderRejectsHeaderInjection(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", From: "noreply@example.com"}, nil)
	require.NoError(t, err)
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("must not send")
		return nil
	}
	require.Error(t, s.Send(context.Background(), Message{To: "a@x.com\r\nBcc: evil@x.com", Subject: "hi"}))
}

func TestNewSMTPSenderValidates(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{}, nil)
	require.Error(t, err)
}

func TestLogSenderRedactsTokens(t *testing.T) {
	var buf bytes.Buffer
	svc := NewService(LogSender{Logger: logging.New(&buf, "json", "info")}, Links{BaseURL: "https://app.example.com"}, "")

	require.NoError(t, svc.SendPasswordReset(context.Background(), "alice@x.com", "live-reset-token"))
	assert.NotContains(t, buf.String(), "live-reset-token")
	assert.Contains(t, buf.String(), "reset-password?token=REDACTED")

	buf.Reset()
	svc = NewService(LogSender{Logger: logging.New(&buf, "json", "info"), ShowTokens: true}, Links{BaseURL: "https://app.example.com"}, "")
	require.NoError(t, svc.SendTwoFADisable(context.Background(), "alice@x.com", "live-disable-token"))
	assert.Contains(t, buf.String(), "token=live-disable-token")
}
