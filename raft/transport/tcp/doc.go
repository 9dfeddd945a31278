// Package tcp provides the TCP socket implementation of the raft transport
// connectors. It is the transport for remote peers; co-located processes
// should prefer the unix package.
package tcp
