package serve

import (
	"fmt"
	"strings"

	cmdUtil "github.com/ValentinKolb/raftex/cmd/util"
	"github.com/ValentinKolb/raftex/raft/common"
	"github.com/ValentinKolb/raftex/raft/member"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	serveMember    *member.InMemoryMember

	ServeCmd = &cobra.Command{
		Use:     "serve",
		Short:   "Start a raftex transport node",
		Long:    `Start a raftex transport node backed by an in-memory member. The configuration can be set via command line flags or environment variables. The format of the environment variables is RAFTEX_<flag> (e.g. RAFTEX_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:63000", cmdUtil.WrapString("The address on which the transport will listen (e.g. 0.0.0.0:63000, /tmp/raftex.sock, ...)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 10, cmdUtil.WrapString("Per-connection read/write timeout in seconds (0 = no timeout)"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, 64, cmdUtil.WrapString("The size of the per-connection framing buffer in KB and therefore the upper bound for a single packet"))

	key = "pool-size"
	ServeCmd.PersistentFlags().Int(key, 16, cmdUtil.WrapString("The number of reusable exchange handlers, i.e. the number of concurrently served RPCs (max 64)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "term"
	ServeCmd.PersistentFlags().Int64(key, 1, cmdUtil.WrapString("The term the in-memory member reports in its results"))

	key = "metadata"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated metadata key-value pairs served by the member. Format: key=value,key=value"))
}

// processConfig reads the configuration from the command line flags and
// environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.BufferSize = viper.GetInt("buffer-size") * 1024
	serveCmdConfig.PoolSize = viper.GetInt("pool-size")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	// create the in-memory member served by this node
	serveMember = member.NewInMemoryMember(viper.GetInt64("term"))

	// parse metadata pairs
	if metadata := viper.GetString("metadata"); metadata != "" {
		for _, pair := range strings.Split(metadata, ",") {
			parts := strings.Split(pair, "=")
			if len(parts) != 2 {
				return fmt.Errorf("invalid metadata format: %s (expected key=value)", pair)
			}
			serveMember.SetMetadata(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
		}
	}

	return nil
}

// run starts the raftex transport node
func run(_ *cobra.Command, _ []string) error {
	// initialize loggers with the configured level
	common.InitLoggers(*serveCmdConfig)

	// parse the transport
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	// print the configuration
	fmt.Println(serveCmdConfig.String())

	return t.Serve(*serveCmdConfig, serveMember)
}
