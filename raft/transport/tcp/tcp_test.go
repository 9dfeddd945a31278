package tcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/raftex/raft/client"
	"github.com/ValentinKolb/raftex/raft/common"
	"github.com/ValentinKolb/raftex/raft/entry"
	"github.com/ValentinKolb/raftex/raft/exchange"
	"github.com/ValentinKolb/raftex/raft/member"
)

// freeEndpoint reserves a loopback address for a test server
func freeEndpoint(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve endpoint: %v", err)
	}
	endpoint := l.Addr().String()
	l.Close()
	return endpoint
}

// startServer serves m on a fresh loopback endpoint and waits until the
// listener accepts connections
func startServer(t *testing.T, m member.ILocalMember, config common.ServerConfig) string {
	t.Helper()

	config.Endpoint = freeEndpoint(t)
	srv := NewTCPServerTransport()
	go func() {
		if err := srv.Serve(config, m); err != nil {
			t.Errorf("Serve failed: %v", err)
		}
	}()
	t.Cleanup(func() { srv.Close() })

	// Wait for the listener to come up
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.Dial("tcp", config.Endpoint)
		if err == nil {
			conn.Close()
			return config.Endpoint
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Server on %s did not come up", config.Endpoint)
	return ""
}

// newClient connects a raft client to the endpoint
func newClient(t *testing.T, endpoint string, config common.ClientConfig) *client.RaftClient {
	t.Helper()

	config.Endpoint = endpoint
	c, err := client.NewRaftClient(config, NewTCPClientTransport())
	if err != nil {
		t.Fatalf("Failed to connect client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// TestClientServerRPCs runs every RPC kind over a real TCP connection
func TestClientServerRPCs(t *testing.T) {
	m := member.NewInMemoryMember(43)
	m.SetMetadata("nodeVersion", "1.0.9")
	m.SetMetadata("location", "rack-7")

	endpoint := startServer(t, m, common.ServerConfig{TimeoutSecond: 5})
	c := newClient(t, endpoint, common.ClientConfig{TimeoutSecond: 5})
	ctx := context.Background()

	t.Run("vote", func(t *testing.T) {
		res, err := c.Vote(ctx, 42, 10, 41)
		if err != nil {
			t.Fatalf("Vote failed: %v", err)
		}
		if res.Term != 43 || !res.Value {
			t.Errorf("Result = %+v, want {Term:43 Value:true}", res)
		}
	})

	t.Run("heartbeat", func(t *testing.T) {
		res, err := c.Heartbeat(ctx, 42, 100, 41, 98)
		if err != nil {
			t.Fatalf("Heartbeat failed: %v", err)
		}
		if res.Term != 43 {
			t.Errorf("Term = %d, want 43", res.Term)
		}
	})

	t.Run("appendEntries", func(t *testing.T) {
		sent := []entry.Entry{
			entry.NewBufferedEntry(10, time.Unix(1700000001, 0), false, []byte("first entry")),
			entry.NewBufferedEntry(11, time.Unix(1700000002, 0), true, []byte("second entry")),
		}
		res, err := c.AppendEntries(ctx, 42, sent, 1, 56, 10)
		if err != nil {
			t.Fatalf("AppendEntries failed: %v", err)
		}
		if res.Term != 43 || !res.Value {
			t.Errorf("Result = %+v, want {Term:43 Value:true}", res)
		}

		stored := m.Entries()
		if len(stored) != 2 {
			t.Fatalf("Stored %d entries, want 2", len(stored))
		}
		if !bytes.Equal(stored[0].Content(), []byte("first entry")) || !stored[1].IsSnapshot() {
			t.Error("Stored entries do not match the sent batch")
		}
	})

	t.Run("installSnapshot", func(t *testing.T) {
		snap := entry.NewBufferedEntry(42, time.Unix(1700000003, 0), true, bytes.Repeat([]byte{0xCD}, 1000))
		res, err := c.InstallSnapshot(ctx, 42, snap, 512)
		if err != nil {
			t.Fatalf("InstallSnapshot failed: %v", err)
		}
		if !res.Value {
			t.Errorf("Result = %+v, want accepted", res)
		}

		stored, idx := m.Snapshot()
		if stored == nil || idx != 512 {
			t.Fatalf("Snapshot = %v at index %d, want stored at 512", stored, idx)
		}
		if !bytes.Equal(stored.Content(), bytes.Repeat([]byte{0xCD}, 1000)) {
			t.Error("Snapshot content mismatch")
		}
	})

	t.Run("metadata", func(t *testing.T) {
		meta, err := c.Metadata(ctx)
		if err != nil {
			t.Fatalf("Metadata failed: %v", err)
		}
		want := map[string]string{"nodeVersion": "1.0.9", "location": "rack-7"}
		if !reflect.DeepEqual(meta, want) {
			t.Errorf("Metadata = %v, want %v", meta, want)
		}
	})

	t.Run("resign", func(t *testing.T) {
		ok, err := c.Resign(ctx)
		if err != nil {
			t.Fatalf("Resign failed: %v", err)
		}
		if !ok || !m.Resigned() {
			t.Error("Resign should succeed and reach the member")
		}
	})
}

// TestLargeBatchChunking replicates entries far larger than the framing
// buffers on both sides
func TestLargeBatchChunking(t *testing.T) {
	m := member.NewInMemoryMember(2)
	endpoint := startServer(t, m, common.ServerConfig{TimeoutSecond: 5, BufferSize: 1024})
	c := newClient(t, endpoint, common.ClientConfig{TimeoutSecond: 5, BufferSize: 1024})

	content := bytes.Repeat([]byte{0x5A}, 10*1024)
	sent := []entry.Entry{
		entry.NewBufferedEntry(1, time.Unix(1700000000, 0), false, content),
		entry.NewBufferedEntry(2, time.Unix(1700000001, 0), false, content),
	}

	res, err := c.AppendEntries(context.Background(), 2, sent, 0, 0, 0)
	if err != nil {
		t.Fatalf("AppendEntries failed: %v", err)
	}
	if !res.Value {
		t.Fatalf("Result = %+v, want accepted", res)
	}

	stored := m.Entries()
	if len(stored) != 2 {
		t.Fatalf("Stored %d entries, want 2", len(stored))
	}
	for i, e := range stored {
		if !bytes.Equal(e.Content(), content) {
			t.Errorf("Entry %d content corrupted after chunked transfer", i)
		}
	}
}

// TestConcurrentClients sends votes from many client transports in parallel
func TestConcurrentClients(t *testing.T) {
	m := member.NewInMemoryMember(7)
	endpoint := startServer(t, m, common.ServerConfig{TimeoutSecond: 5, PoolSize: 32})

	const clients = 10
	const votesPerClient = 10

	var wg sync.WaitGroup
	errCh := make(chan error, clients*votesPerClient)

	for i := 0; i < clients; i++ {
		c := newClient(t, endpoint, common.ClientConfig{TimeoutSecond: 5})
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < votesPerClient; j++ {
				res, err := c.Vote(context.Background(), 6, int64(j), 5)
				if err != nil {
					errCh <- err
					return
				}
				if res.Term != 7 {
					errCh <- fmt.Errorf("term = %d, want 7", res.Term)
					return
				}
			}
		}()
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("Concurrent vote failed: %v", err)
	}
}

// gatedMember blocks vote processing until released, to hold a server-side
// exchange handler open from a test
type gatedMember struct {
	*member.InMemoryMember
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedMember(term int64) *gatedMember {
	return &gatedMember{
		InMemoryMember: member.NewInMemoryMember(term),
		entered:        make(chan struct{}),
		release:        make(chan struct{}),
	}
}

func (m *gatedMember) ReceiveVote(ctx context.Context, sender string, term, lastLogIndex, lastLogTerm int64) (member.Result, error) {
	m.once.Do(func() { close(m.entered) })
	<-m.release
	return m.InMemoryMember.ReceiveVote(ctx, sender, term, lastLogIndex, lastLogTerm)
}

// TestBusyRejection tests that requests beyond the pool capacity are answered
// with a busy rejection instead of queueing
func TestBusyRejection(t *testing.T) {
	m := newGatedMember(3)
	endpoint := startServer(t, m, common.ServerConfig{TimeoutSecond: 5, PoolSize: 1})

	// First client occupies the only handler
	blocked := newClient(t, endpoint, common.ClientConfig{TimeoutSecond: 5})
	blockedRes := make(chan error, 1)
	go func() {
		_, err := blocked.Vote(context.Background(), 2, 0, 0)
		blockedRes <- err
	}()
	<-m.entered

	// Second client must be rejected as busy
	c := newClient(t, endpoint, common.ClientConfig{TimeoutSecond: 5})
	_, err := c.Vote(context.Background(), 2, 0, 0)
	if !errors.Is(err, exchange.ErrServerBusy) {
		t.Errorf("Vote error = %v, want ErrServerBusy", err)
	}

	// Releasing the handler completes the first vote
	close(m.release)
	if err := <-blockedRes; err != nil {
		t.Errorf("Blocked vote failed after release: %v", err)
	}
}

// TestCancellationRecovers tests that a canceled exchange faults with a
// cancellation error and the client keeps working afterwards
func TestCancellationRecovers(t *testing.T) {
	m := newGatedMember(3)
	endpoint := startServer(t, m, common.ServerConfig{TimeoutSecond: 5})
	c := newClient(t, endpoint, common.ClientConfig{TimeoutSecond: 5})

	ctx, cancel := context.WithCancel(context.Background())
	res := make(chan error, 1)
	go func() {
		_, err := c.Vote(ctx, 2, 0, 0)
		res <- err
	}()

	// Cancel while the server is holding the vote open
	<-m.entered
	cancel()

	if err := <-res; !errors.Is(err, exchange.ErrCanceled) {
		t.Fatalf("Vote error = %v, want ErrCanceled", err)
	}

	// The member finishes its processing independently of the caller
	close(m.release)

	// The client must recover on a fresh connection
	ok := false
	for i := 0; i < 20 && !ok; i++ {
		res, err := c.Vote(context.Background(), 2, 0, 0)
		ok = err == nil && res.Term == 3
		if !ok {
			time.Sleep(50 * time.Millisecond)
		}
	}
	if !ok {
		t.Error("Client did not recover after a canceled exchange")
	}
}
