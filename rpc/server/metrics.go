package server

import (
	"github.com/VictoriaMetrics/metrics"
	"sync/atomic"
)

// activeConnections counts the registered connections of all servers in the process
var activeConnections atomic.Int64

var (
	connectionsAccepted = metrics.GetOrCreateCounter(`dnet_connections_accepted_total`)
	connectionsClosed   = metrics.GetOrCreateCounter(`dnet_connections_closed_total`)
	acceptFailures      = metrics.GetOrCreateCounter(`dnet_accept_failures_total`)
	framesHandled       = metrics.GetOrCreateCounter(`dnet_server_frames_handled_total`)
	_                   = metrics.GetOrCreateGauge(`dnet_connections_active`, func() float64 {
		return float64(activeConnections.Load())
	})
)
