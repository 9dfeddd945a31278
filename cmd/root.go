package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/raftex/cmd/perf"
	"github.com/ValentinKolb/raftex/cmd/serve"
	"github.com/ValentinKolb/raftex/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "raftex",
		Short: "raft cluster transport",
		Long: fmt.Sprintf(`raftex (v%s)

A network transport for raft clusters written in Go, implementing the
vote, heartbeat, append-entries, install-snapshot, metadata and resign
exchanges over a compact binary protocol.`, Version),
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of raftex",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("raftex v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
