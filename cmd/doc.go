// Package cmd implements the command-line interface for the raftex cluster
// transport. It provides a hierarchical command structure for running a
// transport node and measuring its performance.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring a transport node
//   - perf: Commands for benchmarking a running node
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See raftex -help for a list of all commands.
package cmd
