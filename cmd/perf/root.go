package perf

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	cmdUtil "github.com/ValentinKolb/raftex/cmd/util"
	"github.com/ValentinKolb/raftex/raft/client"
	"github.com/ValentinKolb/raftex/raft/common"
	"github.com/ValentinKolb/raftex/raft/entry"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	PerfCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for raftex nodes",
		Long:    `Benchmark the exchange round-trip latency of a running raftex node. Each thread opens its own client transport, so the thread count equals the number of concurrent connections.`,
		PreRunE: processPerfConfig,
		RunE:    run,
	}

	perfNumThreads     = 10
	perfRequests       = 1000
	perfEntrySizeKB    = 1
	perfEntriesPerCall = 10
	perfSkip           = make([]string, 0)
)

func init() {
	// Initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// Add common client flags
	cmdUtil.SetupClientFlags(PerfCmd)

	// add flags
	key := "threads"
	PerfCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("Number of threads (= connections) to use for the benchmark"))

	key = "requests"
	PerfCmd.PersistentFlags().Int(key, 1000, cmdUtil.WrapString("Number of requests per benchmark"))

	key = "entry-size"
	PerfCmd.PersistentFlags().Int(key, 1, cmdUtil.WrapString("Size of a single log entry for the append benchmarks (in KB)"))

	key = "entries"
	PerfCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("Number of entries per append-entries call"))

	key = "skip"
	PerfCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Benchmarks to skip (comma separated - e.g. vote,metadata)"))

	key = "csv"
	PerfCmd.Flags().String(key, "", cmdUtil.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfNumThreads = viper.GetInt("threads")
	perfRequests = viper.GetInt("requests")
	perfEntrySizeKB = viper.GetInt("entry-size")
	perfEntriesPerCall = viper.GetInt("entries")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for raftex nodes")

	// keep benchmark output clean
	common.SetLogLevels("error")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(cmdUtil.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Requests: %d\n", perfRequests)
	fmt.Println()

	// One client per thread, each with its own connection
	clients := make([]*client.RaftClient, perfNumThreads)
	for i := range clients {
		t, err := cmdUtil.GetClientTransport()
		if err != nil {
			return err
		}
		c, err := client.NewRaftClient(*cmdUtil.GetClientConfig(), t)
		if err != nil {
			return fmt.Errorf("failed to connect client %d: %v", i, err)
		}
		clients[i] = c
		defer c.Close()
	}

	fmt.Println("starting benchmarks...")
	fmt.Println()

	entryContent := bytes.Repeat([]byte{0x42}, perfEntrySizeKB*1024)
	makeEntries := func(n int) []entry.Entry {
		entries := make([]entry.Entry, n)
		for i := range entries {
			entries[i] = entry.NewBufferedEntry(1, time.Now(), false, entryContent)
		}
		return entries
	}

	benchmarks := []struct {
		name string
		call func(c *client.RaftClient) error
	}{
		{"vote", func(c *client.RaftClient) error {
			_, err := c.Vote(context.Background(), 1, 0, 0)
			return err
		}},
		{"heartbeat", func(c *client.RaftClient) error {
			_, err := c.Heartbeat(context.Background(), 1, 0, 0, 0)
			return err
		}},
		{"append", func(c *client.RaftClient) error {
			_, err := c.AppendEntries(context.Background(), 1, makeEntries(perfEntriesPerCall), 0, 0, 0)
			return err
		}},
		{"snapshot", func(c *client.RaftClient) error {
			snap := entry.NewBufferedEntry(1, time.Now(), true, entryContent)
			_, err := c.InstallSnapshot(context.Background(), 1, snap, 0)
			return err
		}},
		{"metadata", func(c *client.RaftClient) error {
			_, err := c.Metadata(context.Background())
			return err
		}},
	}

	results := make(map[string]gometrics.Timer)
	for _, b := range benchmarks {
		if shouldSkip(b.name) {
			continue
		}

		timer := gometrics.NewTimer()
		runBenchmark(clients, timer, b.call)
		results[b.name] = timer
		printResult(b.name, timer)
	}

	// Save results as CSV if requested
	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := saveCSV(csvPath, benchmarksOrder(benchmarks), results); err != nil {
			return fmt.Errorf("failed to save CSV: %v", err)
		}
		fmt.Printf("\nresults saved to %s\n", csvPath)
	}

	return nil
}

// runBenchmark distributes perfRequests calls across all clients and records
// each round trip in the timer
func runBenchmark(clients []*client.RaftClient, timer gometrics.Timer, call func(c *client.RaftClient) error) {
	var wg sync.WaitGroup
	perClient := perfRequests / len(clients)
	if perClient == 0 {
		perClient = 1
	}

	for _, c := range clients {
		wg.Add(1)
		go func(c *client.RaftClient) {
			defer wg.Done()
			for i := 0; i < perClient; i++ {
				start := time.Now()
				if err := call(c); err != nil {
					fmt.Printf("benchmark request failed: %v\n", err)
					return
				}
				timer.UpdateSince(start)
			}
		}(c)
	}
	wg.Wait()
}

// shouldSkip reports whether a benchmark was excluded via the skip flag
func shouldSkip(name string) bool {
	for _, s := range perfSkip {
		if strings.TrimSpace(s) == name {
			return true
		}
	}
	return false
}

// printResult prints one benchmark result in a human-readable form
func printResult(name string, timer gometrics.Timer) {
	fmt.Printf("%-10s %8d ops  %10.0f ops/s  mean %8s  p50 %8s  p95 %8s  p99 %8s\n",
		name,
		timer.Count(),
		timer.RateMean(),
		time.Duration(timer.Mean()).Round(time.Microsecond),
		time.Duration(timer.Percentile(0.5)).Round(time.Microsecond),
		time.Duration(timer.Percentile(0.95)).Round(time.Microsecond),
		time.Duration(timer.Percentile(0.99)).Round(time.Microsecond),
	)
}

// benchmarksOrder extracts the benchmark names in their run order
func benchmarksOrder(benchmarks []struct {
	name string
	call func(c *client.RaftClient) error
}) []string {
	names := make([]string, 0, len(benchmarks))
	for _, b := range benchmarks {
		names = append(names, b.name)
	}
	return names
}

// saveCSV writes the benchmark results to a CSV file
func saveCSV(path string, order []string, results map[string]gometrics.Timer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"benchmark", "ops", "ops_per_sec", "mean_ns", "p50_ns", "p95_ns", "p99_ns"}); err != nil {
		return err
	}

	for _, name := range order {
		timer, ok := results[name]
		if !ok {
			continue
		}
		record := []string{
			name,
			strconv.FormatInt(timer.Count(), 10),
			strconv.FormatFloat(timer.RateMean(), 'f', 2, 64),
			strconv.FormatFloat(timer.Mean(), 'f', 0, 64),
			strconv.FormatFloat(timer.Percentile(0.5), 'f', 0, 64),
			strconv.FormatFloat(timer.Percentile(0.95), 'f', 0, 64),
			strconv.FormatFloat(timer.Percentile(0.99), 'f', 0, 64),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return nil
}
