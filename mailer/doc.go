// Package mailer delivers the password-reset and 2FA-disable links.
//
// [Service] renders the messages and hands them to a [Sender]: [SMTPSender]
// for real delivery with retries, or [LogSender] for local development.
package mailer
