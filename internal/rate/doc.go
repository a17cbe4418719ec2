// Package rate throttles failed login attempts per identifier and per client IP.
//
// Two implementations share one method set:
//
//   - [Limiter]: Redis fixed-window counters (INCR, then EXPIRE on the first
//     hit). Keys are "<prefix>:u:<identifier>" and "<prefix>:ip:<addr>".
//     Shared across processes.
//   - [Local]: in-process token buckets from golang.org/x/time/rate, for
//     single-node deployments without Redis.
//
// Both only count failures; a successful login resets the identifier.
package rate
