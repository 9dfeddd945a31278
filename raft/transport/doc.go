// Package transport defines the client and server transport interfaces of
// the raft exchange protocol. The base subpackage implements the
// medium-independent core; the tcp and unix subpackages plug in the actual
// sockets via connector injection.
package transport
