package common

import (
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Shared socket configuration
// --------------------------------------------------------------------------

// SocketConf holds socket-level tuning options shared by client and server
type SocketConf struct {
	WriteBufferSize int // socket write buffer in bytes (0 = OS default)
	ReadBufferSize  int // socket read buffer in bytes (0 = OS default)
}

// TCPConf holds TCP-specific tuning options
type TCPConf struct {
	TCPNoDelay      bool // disable Nagle's algorithm
	TCPKeepAliveSec int  // keep-alive interval in seconds (0 = disabled)
	TCPLingerSec    int  // linger time in seconds (negative = OS default)
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all configuration parameters for a client transport.
// One client transport owns exactly one connection; applications that need
// concurrent in-flight exchanges open multiple client transports.
type ClientConfig struct {
	// Endpoint is the address of the peer (host:port or socket path)
	Endpoint string

	// TimeoutSecond is the per-exchange I/O timeout (0 = no timeout, the
	// caller's context is then the only deadline)
	TimeoutSecond int64

	// QueueSize is the capacity of the exchange queue (0 = default)
	QueueSize int

	// BufferSize is the size of the framing buffer in bytes and therefore
	// the upper bound for a single packet (0 = default)
	BufferSize int

	SocketConf
	TCPConf
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Queue Size", strconv.Itoa(c.QueueSize))
	addField("Buffer Size", fmt.Sprintf("%d bytes", c.BufferSize))

	addSection("Socket")
	addField("TCP No Delay", fmt.Sprintf("%t", c.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.TCPKeepAliveSec))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.ReadBufferSize))

	return sb.String()
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for a server transport.
type ServerConfig struct {
	// Endpoint is the address to listen on (host:port or socket path)
	Endpoint string

	// TimeoutSecond is the per-connection read/write timeout
	// (0 = no timeout)
	TimeoutSecond int64

	// BufferSize is the size of the per-connection framing buffer in bytes
	// and therefore the upper bound for a single packet (0 = default)
	BufferSize int

	// PoolSize is the number of reusable exchange handlers, i.e. the number
	// of concurrently served logical RPCs (0 = default, max 64)
	PoolSize int

	// LogLevel is the level at which logs will be output
	// (debug, info, warn, error)
	LogLevel string

	SocketConf
	TCPConf
}

// String returns a formatted string representation of the server configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Server Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Buffer Size", fmt.Sprintf("%d bytes", c.BufferSize))
	addField("Exchange Pool Size", strconv.Itoa(c.PoolSize))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	addSection("Socket")
	addField("TCP No Delay", fmt.Sprintf("%t", c.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.TCPKeepAliveSec))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.ReadBufferSize))

	return sb.String()
}
