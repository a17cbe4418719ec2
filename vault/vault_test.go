package vault

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goTrust/password"
)

func testVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New(Config{
		Key:    bytes.Repeat([]byte{7}, KeySize),
		Issuer: "test",
		Password: password.Config{
			Memory:      8 * 1024,
			Time:        1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   32,
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestNewRejectsShortKey(t *testing.T) {
	if _, err := New(Config{Key: []byte("short")}); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestHashVerify(t *testing.T) {
	v := testVault(t)

	hash, err := v.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !v.Verify("correct horse", hash) {
		t.Fatal("expected verify to succeed")
	}
	if v.Verify("wrong horse", hash) {
		t.Fatal("expected verify to fail for wrong password")
	}
	if v.Verify("correct horse", "garbage") {
		t.Fatal("expected malformed hash to verify false")
	}
	if _, err := v.Hash("1234567"); !errors.Is(err, password.ErrPasswordTooShort) {
		t.Fatalf("expected short password rejection, got %v", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := testVault(t)

	for _, plain := range []string{"", "JBSWY3DPEHPK3PXP", strings.Repeat("x", 4096)} {
		enc, err := v.Encrypt(plain)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		if !strings.HasPrefix(enc, EncryptedPrefix) {
			t.Fatalf("missing prefix: %q", enc)
		}
		got, err := v.Decrypt(enc)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != plain {
			t.Fatalf("round trip mismatch: got %q want %q", got, plain)
		}
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	v := testVault(t)
	a, _ := v.Encrypt("same")
	b, _ := v.Encrypt("same")
	if a == b {
		t.Fatal("expected distinct ciphertexts")
	}
}

func TestDecryptLegacyPassthrough(t *testing.T) {
	v := testVault(t)
	got, err := v.Decrypt("plain-legacy-secret")
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "plain-legacy-secret" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestDecryptTamperedValue(t *testing.T) {
	v := testVault(t)
	enc, err := v.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(enc, EncryptedPrefix))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw[len(raw)-1] ^= 0x01
	tampered := EncryptedPrefix + base64.RawURLEncoding.EncodeToString(raw)

	for _, value := range []string{tampered, "enc:!!!not-base64", "enc:AAAA"} {
		if _, err := v.Decrypt(value); !errors.Is(err, ErrCiphertextInvalid) {
			t.Fatalf("Decrypt(%q): expected ErrCiphertextInvalid, got %v", value, err)
		}
	}
}

func TestDecryptWithOtherKeyFails(t *testing.T) {
	v := testVault(t)
	enc, _ := v.Encrypt("secret")

	other, err := New(Config{Key: bytes.Repeat([]byte{9}, KeySize)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := other.Decrypt(enc); !errors.Is(err, ErrCiphertextInvalid) {
		t.Fatalf("expected ErrCiphertextInvalid, got %v", err)
	}
}

func TestTOTPWindow(t *testing.T) {
	v := testVault(t)
	key, err := v.GenerateTOTPSecret("alice@example.com")
	if err != nil {
		t.Fatalf("GenerateTOTPSecret: %v", err)
	}
	if !strings.HasPrefix(key.URI, "otpauth://totp/") || !strings.Contains(key.URI, "issuer=test") {
		t.Fatalf("unexpected provisioning uri: %s", key.URI)
	}

	now := time.Unix(1_700_000_000, 0)
	cases := []struct {
		name   string
		offset time.Duration
		want   bool
	}{
		{"current", 0, true},
		{"previous step", -30 * time.Second, true},
		{"next step", 30 * time.Second, true},
		{"two steps back", -60 * time.Second, false},
		{"two steps ahead", 60 * time.Second, false},
	}
	for _, tc := range cases {
		code, err := v.CodeAt(key.Secret, now.Add(tc.offset))
		if err != nil {
			t.Fatalf("%s: CodeAt: %v", tc.name, err)
		}
		if got := v.VerifyTOTPAt(key.Secret, code, now); got != tc.want {
			t.Fatalf("%s: VerifyTOTPAt = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestVerifyTOTPRejectsMalformedInput(t *testing.T) {
	v := testVault(t)
	key, _ := v.GenerateTOTPSecret("bob")
	for _, code := range []string{"", "12345", "abcdef", "1234567"} {
		if v.VerifyTOTP(key.Secret, code) {
			t.Fatalf("expected %q to be rejected", code)
		}
	}
	if v.VerifyTOTP("", "123456") {
		t.Fatal("expected empty secret to be rejected")
	}
}
