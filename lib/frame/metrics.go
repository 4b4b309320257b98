package frame

import (
	"github.com/VictoriaMetrics/metrics"
)

// Process wide counters, exposed through metrics.WritePrometheus
var (
	framesReceived = metrics.GetOrCreateCounter(`dnet_frames_received_total`)
	framesSent     = metrics.GetOrCreateCounter(`dnet_frames_sent_total`)
	bytesReceived  = metrics.GetOrCreateCounter(`dnet_bytes_received_total`)
	bytesSent      = metrics.GetOrCreateCounter(`dnet_bytes_sent_total`)
	readFailures   = metrics.GetOrCreateCounter(`dnet_read_failures_total`)
	writeFailures  = metrics.GetOrCreateCounter(`dnet_write_failures_total`)
	channelsClosed = metrics.GetOrCreateCounter(`dnet_channels_closed_total`)
)
