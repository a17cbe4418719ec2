// Package audit delivers security events (logins, bans, resets) to a Sink
// without blocking request paths.
//
// [Dispatcher] buffers events and relays them from one goroutine. With
// DropIfFull set, a full buffer drops the event and counts it instead of
// stalling the caller. The package decides nothing about which events exist;
// the engine and the flow functions choose what to emit.
package audit
