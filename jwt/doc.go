// Package jwt issues and decodes the access and refresh tokens handed to clients.
//
// Every token carries sub, iat, exp, jti and a "type" claim ("access" or
// "refresh"); access tokens additionally carry the account role. Decoding is
// strict about algorithm, signature and issuer. [Authority.DecodeIgnoringExpiry]
// relaxes only the time checks.
package jwt
