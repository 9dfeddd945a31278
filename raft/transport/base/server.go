package base

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/raftex/raft/common"
	"github.com/ValentinKolb/raftex/raft/exchange"
	"github.com/ValentinKolb/raftex/raft/member"
	"github.com/ValentinKolb/raftex/raft/transport"
	"github.com/ValentinKolb/raftex/raft/wire"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server
// operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted
	// connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality. Each
// accepted connection is served by one goroutine; at most one exchange is
// active per connection at a time, matching the client's one-in-flight rule.
type serverTransport struct {
	connector IServerConnector
	config    common.ServerConfig

	pool       *exchange.Pool
	listener   net.Listener
	bufferPool *sync.Pool
	stopping   atomic.Bool
	wg         sync.WaitGroup

	connections *metrics.Counter
	violations  *metrics.Counter
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport with the
// specified connector
func NewBaseServerTransport(connector IServerConnector) transport.IServerTransport {
	return &serverTransport{
		connector:   connector,
		connections: metrics.GetOrCreateCounter(`raftex_server_connections_total`),
		violations:  metrics.GetOrCreateCounter(`raftex_server_protocol_violations_total`),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) Serve(config common.ServerConfig, m member.ILocalMember) error {
	if config.BufferSize <= 0 {
		config.BufferSize = defaultBufferSize
	}
	t.config = config

	t.pool = exchange.NewPool(m, config.PoolSize)
	t.bufferPool = &sync.Pool{
		New: func() interface{} {
			return make([]byte, config.BufferSize)
		},
	}

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}
	t.listener = listener

	Logger.Infof("Starting %s raft transport on %s with %d exchange handlers",
		t.connector.GetName(), config.Endpoint, t.pool.Size())

	// Accept connections
	for {
		conn, err := listener.Accept()
		if err != nil {
			if t.stopping.Load() {
				t.wg.Wait()
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			continue
		}

		// Handle the connection in a goroutine
		t.wg.Add(1)
		go t.handleConnection(conn)
	}
}

func (t *serverTransport) Close() error {
	t.stopping.Store(true)
	if t.listener != nil {
		t.listener.Close()
	}
	t.wg.Wait()
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection handles incoming exchanges for one connection
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer t.wg.Done()
	defer conn.Close()

	connID := uuid.NewString()[:8]
	t.connections.Inc()
	Logger.Debugf("Connection %s accepted from %s", connID, conn.RemoteAddr())

	// Timeout in seconds
	timeout := time.Duration(t.config.TimeoutSecond) * time.Second

	// Get a buffer from the pool
	buf := t.bufferPool.Get().([]byte)
	defer t.bufferPool.Put(buf)

	// The active exchange, nil between logical RPCs
	var cur *exchange.ServerExchange
	defer func() {
		if cur != nil {
			t.pool.Release(cur)
		}
	}()

	for {
		if timeout > 0 {
			conn.SetReadDeadline(time.Now().Add(timeout))
		}

		h, payload, err := readFrame(conn, buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				Logger.Debugf("Connection %s closed by client", connID)
			} else {
				// Framing errors are connection-fatal, the stream position
				// is no longer trustworthy
				Logger.Warningf("Connection %s read error: %v", connID, err)
			}
			return
		}

		if cur == nil {
			if !h.Type.IsExchangeKind() {
				// Continue/ack packets of an RPC that was never opened (e.g.
				// rejected as busy on its leading packet) are dropped
				t.violations.Inc()
				Logger.Warningf("Connection %s: dropping unmatched %s packet", connID, h.Type)
				continue
			}

			sx, ok := t.pool.TryRent(h)
			if !ok {
				Logger.Warningf("Connection %s: exchange pool exhausted, rejecting %s request", connID, h.Type)
				if err := t.writeBusy(conn, timeout); err != nil {
					Logger.Warningf("Connection %s: failed to write busy rejection: %v", connID, err)
					return
				}
				continue
			}
			sx.Bind(context.Background(), conn.RemoteAddr().String())
			cur = sx
		}

		outcome, err := cur.ProcessInbound(h, payload)
		if err != nil {
			t.violations.Inc()
			Logger.Warningf("Connection %s: %v", connID, err)
			t.pool.Release(cur)
			cur = nil
			return
		}

		switch outcome {
		case exchange.OutcomeContinue:
			// Exchange expects more request packets

		case exchange.OutcomeReply:
			start := time.Now()
			err := t.writeResponse(conn, cur, buf, timeout)
			Logger.Debugf("Connection %s: served %s exchange in %s", connID, h.Type, time.Since(start))

			t.pool.Release(cur)
			cur = nil
			if err != nil {
				Logger.Warningf("Connection %s: failed to write response: %v", connID, err)
				return
			}

		case exchange.OutcomeDone:
			t.pool.Release(cur)
			cur = nil
		}
	}
}

// writeResponse drains the exchange's outbound packets onto the connection
func (t *serverTransport) writeResponse(conn net.Conn, x *exchange.ServerExchange, buf []byte, timeout time.Duration) error {
	for {
		h, last, err := x.CreateOutbound(buf)
		if err != nil {
			return err
		}

		if timeout > 0 {
			conn.SetWriteDeadline(time.Now().Add(timeout))
		}
		if err := writeFrame(conn, h, buf[:h.Length]); err != nil {
			return err
		}
		if last {
			return nil
		}
	}
}

// writeBusy rejects a request whose leading packet found no free handler
func (t *serverTransport) writeBusy(conn net.Conn, timeout time.Duration) error {
	var buf [1]byte
	n, err := wire.EncodeAck(buf[:], wire.AckBusy, "")
	if err != nil {
		return err
	}

	if timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	h := wire.Header{Type: wire.MsgTAck, Flags: wire.FlagStreamStart | wire.FlagStreamEnd, Length: uint32(n)}
	return writeFrame(conn, h, buf[:n])
}
