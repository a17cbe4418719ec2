// Package middleware turns access tokens on incoming requests into a
// validated [goTrust.AuthResult].
//
// [Guard] wraps plain net/http handlers; [RequireAuth] and [RequireRole]
// are the gin equivalents used by httpapi. Tokens come from the
// Authorization bearer header or the mh_access_token cookie. Every decision
// is delegated to Engine.ValidateAccess; this package never parses JWTs.
//
// [ErrorStatus] is the single mapping from engine errors to HTTP status
// codes and stable error strings.
package middleware
