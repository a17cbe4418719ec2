// Package goTrust is a session and trust lifecycle engine: password and TOTP
// login, access and refresh JWTs with one-shot rotation, bans that revoke
// every session and kick live push connections, and single-use emailed
// tickets for password reset and 2FA recovery.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]. The engine keeps no per-request
// state; everything durable lives behind a [store.Store].
//
// # Architecture boundaries
//
// goTrust is the public surface. It exposes [Engine], [Builder], [Config],
// the error sentinels and value types. Flow orchestration, ticket and session
// bookkeeping, rate limiting and audit dispatch live under internal/.
//
// # Error model
//
// Every expected outcome is a sentinel in errors.go and is matched with
// errors.Is. Infrastructure faults, including operation timeouts, are wrapped
// in [ErrBackendUnavailable] and never masquerade as domain errors.
package goTrust
