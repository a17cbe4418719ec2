package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWS algorithm.
type SigningMethod string

const (
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 key pair (EdDSA).
	MethodEd25519 SigningMethod = "ed25519"
)

// Token types carried in the "type" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

const (
	// DefaultAccessTTL is the access token lifetime.
	DefaultAccessTTL = 15 * time.Minute
	// DefaultRefreshTTL is the refresh token lifetime.
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

var (
	// ErrTokenExpired is returned by Decode for a correctly signed token past its exp.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed is returned for tokens that fail parsing, signature or claim checks.
	ErrTokenMalformed = errors.New("token malformed")
)

// Config defines the signing material and lifetimes of an Authority.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
	// Now overrides the clock used for iat/exp and validation.
	Now func() time.Time
}

// Claims is the payload of every token issued by an Authority.
type Claims struct {
	Type string `json:"type"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authority issues and decodes access and refresh tokens.
//
// Authority is immutable after NewAuthority and safe for concurrent use.
type Authority struct {
	config Config
	now    func() time.Time
}

// NewAuthority validates cfg and returns an Authority. Zero TTLs fall back to
// DefaultAccessTTL and DefaultRefreshTTL; an empty SigningMethod means HS256.
func NewAuthority(cfg Config) (*Authority, error) {
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Authority{config: cfg, now: now}, nil
}

// AccessTTL returns the configured access token lifetime.
func (a *Authority) AccessTTL() time.Duration { return a.config.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (a *Authority) RefreshTTL() time.Duration { return a.config.RefreshTTL }

// IssueAccess signs a short-lived access token for subject.
func (a *Authority) IssueAccess(subject, role string) (string, error) {
	return a.issue(subject, TypeAccess, role, a.config.AccessTTL)
}

// IssueRefresh signs a long-lived refresh token for subject. Each call yields
// a distinct token because of the jti claim.
func (a *Authority) IssueRefresh(subject string) (string, error) {
	return a.issue(subject, TypeRefresh, "", a.config.RefreshTTL)
}

func (a *Authority) issue(subject, typ, role string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("empty subject")
	}
	now := a.now()
	claims := Claims{
		Type: typ,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    a.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(a.method(), claims)
	if a.config.KeyID != "" {
		token.Header["kid"] = a.config.KeyID
	}

	signKey, err := a.signKey()
	if err != nil {
		return "", err
	}
	return token.SignedString(signKey)
}

// Decode verifies signature, algorithm, issuer and time claims.
// A correctly signed but expired token yields ErrTokenExpired; every other
// failure yields an error wrapping ErrTokenMalformed.
func (a *Authority) Decode(token string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{a.method().Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if a.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(a.config.Leeway))
	}
	if a.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(a.config.Issuer))
	}

	claims, err := a.parse(token, options)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if claims.IssuedAt != nil && claims.IssuedAt.After(a.now().Add(a.config.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrTokenMalformed)
	}
	return claims, nil
}

// DecodeIgnoringExpiry verifies signature and algorithm but skips every time
// claim. It lets callers identify the session behind an expired refresh token.
func (a *Authority) DecodeIgnoringExpiry(token string) (*Claims, error) {
	claims, err := a.parse(token, []jwt.ParserOption{
		jwt.WithValidMethods([]string{a.method().Alg()}),
		jwt.WithoutClaimsValidation(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	return claims, nil
}

// IsRefreshType reports whether claims belong to a refresh token.
func IsRefreshType(claims *Claims) bool {
	return claims != nil && claims.Type == TypeRefresh
}

func (a *Authority) parse(tokenStr string, options []jwt.ParserOption) (*Claims, error) {
	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, a.keyFunc)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" {
		return nil, errors.New("missing sub claim")
	}
	return claims, nil
}

func (a *Authority) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != a.method().Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	kid, _ := t.Header["kid"].(string)
	if len(a.config.VerifyKeys) > 0 {
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := a.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return a.verifyKeyFromBytes(key)
	}
	if a.config.KeyID != "" && kid != a.config.KeyID {
		return nil, errors.New("unknown kid")
	}

	return a.verifyKeyFromBytes(a.verifyMaterial())
}

func (a *Authority) method() jwt.SigningMethod {
	if a.config.SigningMethod == MethodEd25519 {
		return jwt.SigningMethodEdDSA
	}
	return jwt.SigningMethodHS256
}

func (a *Authority) signKey() (interface{}, error) {
	if a.config.SigningMethod == MethodEd25519 {
		return parseEdPrivateKey(a.config.PrivateKey)
	}
	return a.config.PrivateKey, nil
}

func (a *Authority) verifyMaterial() []byte {
	if a.config.SigningMethod == MethodEd25519 {
		return a.config.PublicKey
	}
	return a.config.PrivateKey
}

func (a *Authority) verifyKeyFromBytes(key []byte) (interface{}, error) {
	if a.config.SigningMethod == MethodEd25519 {
		return parseEdPublicKey(key)
	}
	return key, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
