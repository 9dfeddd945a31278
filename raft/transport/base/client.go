package base

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/ValentinKolb/raftex/raft/common"
	"github.com/ValentinKolb/raftex/raft/exchange"
	"github.com/ValentinKolb/raftex/raft/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("raft/transport")

const (
	defaultBufferSize = 64 * 1024
	defaultQueueSize  = 64
)

// ErrClientClosed is returned for exchanges enqueued on or queued in a
// transport that was closed
var ErrClientClosed = errors.New("transport: client closed")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection
// operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established
	// connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// pendingExchange couples an exchange with its caller's context
type pendingExchange struct {
	ctx context.Context
	x   exchange.IExchange
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.). A single
// loop goroutine owns the connection and runs exchanges one at a time, so
// packets on the wire always belong to exactly one exchange.
type clientTransport struct {
	connector IClientConnector
	config    common.ClientConfig

	queue  chan pendingExchange
	stopCh chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once

	// owned by the loop goroutine after Connect
	conn net.Conn
	buf  []byte

	exchanges *metrics.Counter
	recycles  *metrics.Counter
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the
// specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IClientTransport {
	return &clientTransport{
		connector: connector,
		exchanges: metrics.GetOrCreateCounter(`raftex_client_exchanges_total`),
		recycles:  metrics.GetOrCreateCounter(`raftex_client_connection_recycles_total`),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if config.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}

	// Set defaults
	if config.BufferSize <= 0 {
		config.BufferSize = defaultBufferSize
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaultQueueSize
	}
	t.config = config

	// Establish the connection eagerly so misconfiguration surfaces here
	// instead of on the first exchange
	conn, err := t.dial()
	if err != nil {
		return err
	}
	t.conn = conn

	t.buf = make([]byte, config.BufferSize)
	t.queue = make(chan pendingExchange, config.QueueSize)
	t.stopCh = make(chan struct{})

	Logger.Infof("Connected to %s using %s transport", config.Endpoint, t.connector.GetName())

	t.wg.Add(1)
	go t.loop()
	return nil
}

func (t *clientTransport) Enqueue(ctx context.Context, x exchange.IExchange) error {
	select {
	case t.queue <- pendingExchange{ctx: ctx, x: x}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", exchange.ErrCanceled, ctx.Err())
	case <-t.stopCh:
		return ErrClientClosed
	}
}

func (t *clientTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.stopCh)
	})
	t.wg.Wait()

	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}

	// Fault everything still queued
	for {
		select {
		case p := <-t.queue:
			p.x.OnException(ErrClientClosed)
		default:
			return nil
		}
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// loop runs queued exchanges one at a time until the transport is closed
func (t *clientTransport) loop() {
	defer t.wg.Done()

	for {
		select {
		case <-t.stopCh:
			return
		case p := <-t.queue:
			t.run(p)
		}
	}
}

// run executes a single exchange: the full request packet sequence, then the
// full response packet sequence. Any failure mid-exchange faults the
// exchange and recycles the connection, because a partially written or read
// message leaves the stream position unknown.
func (t *clientTransport) run(p pendingExchange) {
	if p.ctx.Err() != nil {
		p.x.OnException(fmt.Errorf("%w: %v", exchange.ErrCanceled, p.ctx.Err()))
		return
	}
	select {
	case <-t.stopCh:
		p.x.OnException(ErrClientClosed)
		return
	default:
	}

	// Lazy reconnect after a recycled connection
	if t.conn == nil {
		conn, err := t.dial()
		if err != nil {
			Logger.Warningf("Failed to reconnect to %s: %v", t.config.Endpoint, err)
			p.x.OnException(err)
			return
		}
		t.conn = conn
	}
	conn := t.conn
	t.exchanges.Inc()

	// The base deadline must be in place before the poke callbacks below are
	// registered, otherwise it would overwrite a poke that already fired
	if t.config.TimeoutSecond > 0 {
		timeout := time.Duration(t.config.TimeoutSecond) * time.Second
		conn.SetDeadline(time.Now().Add(timeout))
	} else {
		conn.SetDeadline(time.Time{})
	}

	// Cancellation and Close poke the connection deadline so blocking I/O
	// returns
	stop := context.AfterFunc(p.ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-t.stopCh:
			conn.SetDeadline(time.Now())
		case <-finished:
		}
	}()

	// Request phase
	for {
		h, last, err := p.x.CreateOutbound(t.buf)
		if err != nil {
			t.fault(p, fmt.Errorf("failed to create request packet: %w", err))
			return
		}

		if err := writeFrame(conn, h, t.buf[:h.Length]); err != nil {
			t.fault(p, fmt.Errorf("failed to write request packet: %w", err))
			return
		}
		if last {
			break
		}
	}

	// Response phase
	for {
		h, payload, err := readFrame(conn, t.buf)
		if err != nil {
			t.fault(p, fmt.Errorf("failed to read response packet: %w", err))
			return
		}

		outcome, err := p.x.ProcessInbound(h, payload)
		if err != nil {
			t.fault(p, fmt.Errorf("failed to process response packet: %w", err))
			return
		}
		if outcome == exchange.OutcomeDone {
			return
		}
	}
}

// fault resolves the exchange with an error and recycles the connection.
// A context cancellation or a transport close takes precedence over the I/O
// error it caused.
func (t *clientTransport) fault(p pendingExchange, err error) {
	if p.ctx.Err() != nil {
		err = fmt.Errorf("%w: %v", exchange.ErrCanceled, p.ctx.Err())
	} else {
		select {
		case <-t.stopCh:
			err = ErrClientClosed
		default:
		}
	}

	Logger.Debugf("Exchange on %s faulted: %v", t.config.Endpoint, err)
	p.x.OnException(err)

	t.conn.Close()
	t.conn = nil
	t.recycles.Inc()
}

// dial establishes and upgrades a connection to the configured endpoint
func (t *clientTransport) dial() (net.Conn, error) {
	conn, err := t.connector.Connect(t.config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %v", t.config.Endpoint, err)
	}

	if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to upgrade connection to %s: %v", t.config.Endpoint, err)
	}
	return conn, nil
}
