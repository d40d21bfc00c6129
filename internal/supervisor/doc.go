// Package supervisor owns the client's connection to the chat server.
//
// A Supervisor keeps at most one transport handle alive, times out attempts
// that never open, and reconnects after failures using two fixed-delay
// budgets: one for a connection that has never opened and one for a
// connection that opened and then dropped. Consumers only see immutable
// Status snapshots and inbound frames through Subscribe.
//
// Every transport callback is tagged with the Session (address and attempt
// number) that produced it. Callbacks from a superseded Session, or any
// callback after Shutdown, are ignored.
package supervisor
