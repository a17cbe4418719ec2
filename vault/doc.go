// Package vault holds the credential primitives: argon2id password hashing,
// TOTP secret generation and verification, and the reversible `enc:` cipher
// used for secrets that must be recovered later (TOTP seeds, refresh tokens).
//
// Values written by [Vault.Encrypt] look like
//
//	enc:<base64url(nonce || AES-256-GCM ciphertext)>
//
// [Vault.Decrypt] returns values without the prefix unchanged so rows written
// before encryption was introduced keep working. A prefixed value that fails
// to decode or authenticate is an error, never a passthrough.
package vault
