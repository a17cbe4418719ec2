// Package flows contains the orchestrators behind every Engine operation.
//
// Each flow function (RunLoginStep1, RunRefresh, RunBan, etc.) accepts a
// typed dependency struct and returns results without side-effects beyond
// those dependencies. The Engine builds the dependency structs once and stays
// a thin delegate.
//
// # Architecture boundaries
//
// Flow functions coordinate the persistence store, the credential vault, the
// token authority, the ticket and session registries, the ban ledger, and the
// audit and metrics hooks. They do NOT own any of these resources; ownership
// stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goTrust (to avoid import cycles). Sentinel errors, metric IDs and
//     audit event names arrive through the Errors, Metrics and Events tables.
//   - Return raw infrastructure errors. Anything that is not a domain error is
//     wrapped with Errors.BackendUnavailable.
package flows
