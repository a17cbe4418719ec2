// Package stores implements the stateful building blocks the flows compose:
// single-use tickets, refresh-token sessions and the ban ledger.
//
// # Design
//
// Each component is stateless apart from its configuration. Every method takes
// the store.Repository it should operate on, so the caller decides whether a
// call runs on its own or inside a wider transaction (ban + revoke-all,
// rotate = delete + insert). Deletions report whether a row was removed, and
// a zero-row delete is treated as "someone else consumed it first".
//
// # What this package must NOT do
//
//   - Import goTrust or internal/flows.
//   - Log or expose plaintext tickets or refresh tokens.
//   - Compare secrets with non-constant-time comparisons.
package stores
