package vault

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPKey is a freshly generated authenticator secret.
type TOTPKey struct {
	// Secret is the base32 seed the authenticator app stores.
	Secret string
	// URI is the otpauth:// provisioning URI, suitable for a QR code.
	URI string
}

func (v *Vault) totpOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    v.config.TOTPPeriod,
		Skew:      v.config.TOTPSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// GenerateTOTPSecret creates a 160-bit secret labelled with accountName under the configured issuer.
func (v *Vault) GenerateTOTPSecret(accountName string) (*TOTPKey, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      v.config.Issuer,
		AccountName: accountName,
		Period:      v.config.TOTPPeriod,
		SecretSize:  20,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, err
	}
	return &TOTPKey{Secret: key.Secret(), URI: key.URL()}, nil
}

// VerifyTOTP checks code against secret at the current time, accepting the
// adjacent steps on either side. Malformed codes and secrets yield false.
func (v *Vault) VerifyTOTP(secret, code string) bool {
	return v.VerifyTOTPAt(secret, code, v.now())
}

// VerifyTOTPAt is VerifyTOTP evaluated at t.
func (v *Vault) VerifyTOTPAt(secret, code string, t time.Time) bool {
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, t.UTC(), v.totpOpts())
	if err != nil {
		return false
	}
	return ok
}

// CodeAt returns the code valid at t. Used by tests and tooling that need to
// act as an authenticator.
func (v *Vault) CodeAt(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t.UTC(), v.totpOpts())
}
