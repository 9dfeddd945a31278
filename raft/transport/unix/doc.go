// Package unix provides the Unix domain socket implementation of the raft
// transport connectors, intended for peers co-located on one host.
package unix
