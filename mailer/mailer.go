package mailer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Links builds the frontend URLs embedded in emails.
type Links struct {
	// BaseURL is the frontend origin, for example https://app.example.com.
	BaseURL string
	// ResetPath and TwoFADisablePath default to /reset-password and
	// /2fa/disable/confirm.
	ResetPath        string
	TwoFADisablePath string
}

func (l Links) build(path, fallback, token string) string {
	if path == "" {
		path = fallback
	}
	return strings.TrimRight(l.BaseURL, "/") + path + "?token=" + url.QueryEscape(token)
}

// PasswordReset returns the reset link for token.
func (l Links) PasswordReset(token string) string {
	return l.build(l.ResetPath, "/reset-password", token)
}

// TwoFADisable returns the 2FA-disable confirmation link for token.
func (l Links) TwoFADisable(token string) string {
	return l.build(l.TwoFADisablePath, "/2fa/disable/confirm", token)
}

// Service renders and sends the engine's out-of-band emails.
type Service struct {
	sender  Sender
	links   Links
	product string
}

// NewService returns a Service. product names the application in subjects.
func NewService(sender Sender, links Links, product string) *Service {
	if product == "" {
		product = "goTrust"
	}
	return &Service{sender: sender, links: links, product: product}
}

// SendPasswordReset mails the reset link for rawToken to the address.
func (s *Service) SendPasswordReset(ctx context.Context, to, rawToken string) error {
	return s.sender.Send(ctx, Message{
		To:      to,
		Subject: fmt.Sprintf("%s: reset your password", s.product),
		Body: fmt.Sprintf(
			"Someone asked to reset the password of your %s account.\n\n"+
				"Open this link within one hour to choose a new password:\n%s\n\n"+
				"Resetting also removes two-factor authentication from the account.\n"+
				"If this was not you, ignore this email.\n",
			s.product, s.links.PasswordReset(rawToken)),
	})
}

// SendTwoFADisable mails the 2FA-disable confirmation link for rawToken.
func (s *Service) SendTwoFADisable(ctx context.Context, to, rawToken string) error {
	return s.sender.Send(ctx, Message{
		To:      to,
		Subject: fmt.Sprintf("%s: disable two-factor authentication", s.product),
		Body: fmt.Sprintf(
			"A request was made to turn off two-factor authentication on your %s account.\n\n"+
				"Open this link within one hour to confirm:\n%s\n\n"+
				"If this was not you, ignore this email and keep your authenticator.\n",
			s.product, s.links.TwoFADisable(rawToken)),
	})
}
