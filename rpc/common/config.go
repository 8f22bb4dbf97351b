package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Defaults of the daemon, as used by trousers
const (
	DefaultPort       = 30003
	DefaultMaxThreads = 10
	DefaultPSFile     = "/var/tpm/system.data"
	DefaultBufferSize = 4096
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of the daemon.
type ServerConfig struct {
	// Network settings
	Transport string // "tcp" or "unix"
	Endpoint  string // host:port for tcp, socket path for unix

	// Thread manager settings
	MaxThreads int
	BufferSize int // size of the per connection receive buffer, upper bound for a request body

	// Ordinals that remote (non loopback) peers may use besides open/close context
	RemoteOps []Ordinal

	// Persistent store settings
	PSFile  string
	Dialect string

	// Device settings ("", "none", a device path or "tcp:host:port")
	Device string

	// Diagnostics
	MetricsEndpoint string
	StatsInterval   time.Duration
	Gops            bool

	// Logging configuration
	LogLevel string
}

// RemoteAllowed reports whether remote peers may use ord
func (c *ServerConfig) RemoteAllowed(ord Ordinal) bool {
	if ord == OrdOpenContext || ord == OrdCloseContext {
		return true
	}
	for _, allowed := range c.RemoteOps {
		if allowed == ord {
			return true
		}
	}
	return false
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	orDisabled := func(value string) string {
		if value == "" {
			return "disabled"
		}
		return value
	}

	// RPC settings
	addSection("RPC Server")
	addField("Transport", c.Transport)
	addField("Endpoint", c.Endpoint)
	addField("Max Threads", strconv.Itoa(c.MaxThreads))
	addField("Buffer Size", fmt.Sprintf("%d bytes", c.BufferSize))

	ops := make([]string, 0, len(c.RemoteOps))
	for _, op := range c.RemoteOps {
		ops = append(ops, op.String())
	}
	addField("Remote Ops", orDisabled(strings.Join(ops, ", ")))

	// Persistent store
	addSection("Persistent Store")
	addField("File", c.PSFile)
	addField("Dialect", c.Dialect)

	// Device
	addSection("Device")
	addField("TPM", orDisabled(c.Device))

	// Diagnostics
	addSection("Diagnostics")
	addField("Metrics Endpoint", orDisabled(c.MetricsEndpoint))
	if c.StatsInterval > 0 {
		addField("Stats Interval", c.StatsInterval.String())
	} else {
		addField("Stats Interval", "disabled")
	}
	addField("Gops Agent", strconv.FormatBool(c.Gops))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Transport     string
	Endpoint      string
	TimeoutSecond int
	BufferSize    int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Transport", c.Transport)
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Buffer Size", fmt.Sprintf("%d bytes", c.BufferSize))

	return sb.String()
}
