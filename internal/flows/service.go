package flows

import (
	"context"

	"github.com/MrEthical07/goTrust/store"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Auth.ready()
}

func (s Service) Register(ctx context.Context, username, email, password string) (*LoginResult, error) {
	return RunRegister(ctx, username, email, password, s.deps.Auth)
}

func (s Service) LoginStep1(ctx context.Context, identifier, password string) (*LoginResult, error) {
	return RunLoginStep1(ctx, identifier, password, s.deps.Auth)
}

func (s Service) LoginStep2(ctx context.Context, ticket, code string) (*LoginResult, error) {
	return RunLoginStep2(ctx, ticket, code, s.deps.Auth)
}

func (s Service) IssueTokens(ctx context.Context, accountID string) (*LoginResult, error) {
	return RunIssueTokens(ctx, accountID, false, s.deps.Auth)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	return RunRefresh(ctx, refreshToken, s.deps.Auth)
}

func (s Service) Logout(ctx context.Context, refreshToken string) bool {
	return RunLogout(ctx, refreshToken, s.deps.Auth)
}

func (s Service) ValidateAccess(ctx context.Context, accessToken string) (*AccessResult, error) {
	return RunValidateAccess(ctx, accessToken, s.deps.Auth)
}

func (s Service) Enable2FA(ctx context.Context, accountID string) (*TOTPSetup, error) {
	return RunEnable2FA(ctx, accountID, s.deps.TwoFA)
}

func (s Service) Verify2FA(ctx context.Context, accountID, code string) (bool, error) {
	return RunVerify2FA(ctx, accountID, code, s.deps.TwoFA)
}

func (s Service) Disable2FA(ctx context.Context, accountID, code string) error {
	return RunDisable2FA(ctx, accountID, code, s.deps.TwoFA)
}

func (s Service) RequestTwoFADisable(ctx context.Context, accountID string) (*MailResult, error) {
	return RunRequestTwoFADisable(ctx, accountID, s.deps.TwoFA)
}

func (s Service) ConfirmTwoFADisable(ctx context.Context, token string) error {
	return RunConfirmTwoFADisable(ctx, token, s.deps.TwoFA)
}

func (s Service) RequestPasswordReset(ctx context.Context, email string) (*MailResult, error) {
	return RunRequestPasswordReset(ctx, email, s.deps.Recovery)
}

func (s Service) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return RunConfirmPasswordReset(ctx, token, newPassword, s.deps.Recovery)
}

func (s Service) Ban(ctx context.Context, in BanInput) (*store.Ban, error) {
	return RunBan(ctx, in, s.deps.Moderation)
}

func (s Service) RevokeBan(ctx context.Context, accountID, moderatorID string) (*store.Ban, error) {
	return RunRevokeBan(ctx, accountID, moderatorID, s.deps.Moderation)
}

func (s Service) ActiveBan(ctx context.Context, accountID string) (*store.Ban, error) {
	return RunActiveBan(ctx, accountID, s.deps.Moderation)
}

func (s Service) Warn(ctx context.Context, accountID, moderatorID, reason string) (*store.Warning, error) {
	return RunWarn(ctx, accountID, moderatorID, reason, s.deps.Moderation)
}
