// Package router walks each notification delivery through its attempt
// lifecycle.
//
// An attempt starts as new, becomes dispatched when handed to the transport,
// and ends acked once the client confirms receipt. Failed dispatches retry
// with exponential backoff up to a bounded number of attempts; exhausted or
// offline deliveries park the message in the pending backlog, where it waits
// for the recipient's next connection.
//
// The router also performs an independent role re-check before pushing
// role-gated messages and detects replay conflicts, so a reconnect replay
// never duplicates a delivery that is in flight or just settled.
package router
