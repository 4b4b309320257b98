package common

import (
	"fmt"
	"github.com/ValentinKolb/dNet/lib/frame"
	"github.com/ValentinKolb/dNet/lib/liveness"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Shared configuration structs
// --------------------------------------------------------------------------

// FrameConf configures the framing of every connection
type FrameConf struct {
	// Delimiter terminates every frame. Must match on both peers.
	Delimiter byte
	// MaxReadSize is the maximum number of bytes consumed per read call
	MaxReadSize int
	// PollWindow is how long a read waits for the first byte before it gives up
	PollWindow time.Duration
}

// LivenessConf configures the dead peer detector
type LivenessConf struct {
	Disabled            bool
	Interval            time.Duration
	Threshold           time.Duration
	ProbeDeadline       time.Duration
	MaxConcurrentProbes int
}

// SocketConf holds generic socket options
type SocketConf struct {
	ReadBufferSize  int
	WriteBufferSize int
}

// TCPConf holds TCP specific socket options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int
}

// ToChannelConfig converts the FrameConf to the config of a single channel
func (c FrameConf) ToChannelConfig(name string) frame.Config {
	conf := frame.DefaultConfig()
	conf.Delimiter = c.Delimiter
	if c.MaxReadSize > 0 {
		conf.MaxReadSize = c.MaxReadSize
	}
	conf.Name = name
	return conf
}

// ToDetectorConfig converts the LivenessConf to a liveness.Config
func (c LivenessConf) ToDetectorConfig() liveness.Config {
	conf := liveness.DefaultConfig()
	if c.Interval > 0 {
		conf.Interval = c.Interval
	}
	if c.Threshold > 0 {
		conf.Threshold = c.Threshold
	}
	if c.ProbeDeadline > 0 {
		conf.ProbeDeadline = c.ProbeDeadline
	}
	if c.MaxConcurrentProbes > 0 {
		conf.MaxConcurrentProbes = c.MaxConcurrentProbes
	}
	return conf
}

func defaultFrameConf() FrameConf {
	return FrameConf{
		Delimiter:   frame.DefaultDelimiter,
		MaxReadSize: frame.DefaultMaxReadSize,
		PollWindow:  100 * time.Microsecond,
	}
}

func defaultLivenessConf() LivenessConf {
	return LivenessConf{
		Interval:            liveness.DefaultInterval,
		Threshold:           liveness.DefaultThreshold,
		ProbeDeadline:       liveness.DefaultProbeDeadline,
		MaxConcurrentProbes: liveness.DefaultMaxConcurrentProbes,
	}
}

func defaultTCPConf() TCPConf {
	return TCPConf{
		TCPNoDelay:      true,
		TCPKeepAliveSec: 30,
		TCPLingerSec:    -1,
	}
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of a dNet server
type ServerConfig struct {
	// Endpoint to listen on (host:port for tcp, a path for unix sockets)
	Endpoint string
	// AcceptTimeout bounds a single accept call, a timeout is retried
	AcceptTimeout time.Duration

	Frame    FrameConf
	Liveness LivenessConf
	Socket   SocketConf
	TCP      TCPConf

	// Logging configuration
	LogLevel string
}

// DefaultServerConfig returns a server config with all defaults set
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Endpoint:      ":8080",
		AcceptTimeout: time.Second,
		Frame:         defaultFrameConf(),
		Liveness:      defaultLivenessConf(),
		TCP:           defaultTCPConf(),
		LogLevel:      "info",
	}
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

	addSection("Server")
	addField("Endpoint", c.Endpoint)
	addField("Accept Timeout", c.AcceptTimeout.String())

	writeFrameConf(addSection, addField, c.Frame)
	writeLivenessConf(addSection, addField, c.Liveness)
	writeSocketConf(addSection, addField, c.Socket, c.TCP)

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all configuration parameters of a dNet client
type ClientConfig struct {
	// Endpoint of the server
	Endpoint string
	// DialTimeout bounds the connection attempt
	DialTimeout time.Duration

	Frame    FrameConf
	Liveness LivenessConf
	Socket   SocketConf
	TCP      TCPConf

	// Logging configuration
	LogLevel string
}

// DefaultClientConfig returns a client config with all defaults set
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint:    "localhost:8080",
		DialTimeout: 5 * time.Second,
		Frame:       defaultFrameConf(),
		Liveness:    defaultLivenessConf(),
		TCP:         defaultTCPConf(),
		LogLevel:    "info",
	}
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

	addSection("Client")
	addField("Endpoint", c.Endpoint)
	addField("Dial Timeout", c.DialTimeout.String())

	writeFrameConf(addSection, addField, c.Frame)
	writeLivenessConf(addSection, addField, c.Liveness)
	writeSocketConf(addSection, addField, c.Socket, c.TCP)

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func writeFrameConf(addSection func(string), addField func(string, string), c FrameConf) {
	addSection("Framing")
	addField("Delimiter", fmt.Sprintf("0x%02X", c.Delimiter))
	addField("Max Read Size", fmt.Sprintf("%d bytes", c.MaxReadSize))
	addField("Poll Window", c.PollWindow.String())
}

func writeLivenessConf(addSection func(string), addField func(string, string), c LivenessConf) {
	addSection("Liveness")
	if c.Disabled {
		addField("Detector", "disabled")
		return
	}
	addField("Interval", c.Interval.String())
	addField("Threshold", c.Threshold.String())
	addField("Probe Deadline", c.ProbeDeadline.String())
	addField("Max Concurrent Probes", strconv.Itoa(c.MaxConcurrentProbes))
}

func writeSocketConf(addSection func(string), addField func(string, string), s SocketConf, t TCPConf) {
	addSection("Socket")
	addField("Read Buffer", bufferSize(s.ReadBufferSize))
	addField("Write Buffer", bufferSize(s.WriteBufferSize))
	addField("TCP No Delay", strconv.FormatBool(t.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", t.TCPKeepAliveSec))
	if t.TCPLingerSec < 0 {
		addField("TCP Linger", "os default")
	} else {
		addField("TCP Linger", fmt.Sprintf("%d sec", t.TCPLingerSec))
	}
}

func bufferSize(size int) string {
	if size <= 0 {
		return "os default"
	}
	return fmt.Sprintf("%d bytes", size)
}
