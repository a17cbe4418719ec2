// Package password implements argon2id password hashing and verification.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Both unpadded and padded base64 segments are accepted on verify, so hashes
// written by other argon2id implementations remain valid. [Argon2.NeedsUpgrade]
// reports hashes produced with weaker parameters.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other goTrust package.
//   - Log plaintext passwords.
package password
