package transport

import (
	"github.com/ValentinKolb/dNet/rpc/common"
	"net"
	"time"
)

// --------------------------------------------------------------------------
// Server Connector
// --------------------------------------------------------------------------

// IServerConnector opens the listening endpoint of a server.
// Implementations exist for tcp and unix sockets.
type IServerConnector interface {
	// Listen creates a listener on config.Endpoint
	Listen(config common.ServerConfig) (net.Listener, error)
	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
	// UpgradeConnection applies socket options to an accepted connection.
	// Options that do not apply to the connection type are ignored.
	UpgradeConnection(conn net.Conn, socket common.SocketConf, tcp common.TCPConf) error
}

// --------------------------------------------------------------------------
// Client Connector
// --------------------------------------------------------------------------

// IClientConnector opens the connection of a client
type IClientConnector interface {
	// Connect dials endpoint, giving up after timeout (no limit if timeout <= 0)
	Connect(endpoint string, timeout time.Duration) (net.Conn, error)
	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
	// UpgradeConnection applies socket options to the dialed connection
	UpgradeConnection(conn net.Conn, socket common.SocketConf, tcp common.TCPConf) error
}
