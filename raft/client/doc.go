// Package client provides the typed RPC surface a raft implementation uses
// to talk to one remote cluster member: vote, heartbeat, append entries,
// install snapshot, metadata and resign.
package client
