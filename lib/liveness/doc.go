// Package liveness detects peers that disappeared without closing their connection.
//
// A Detector wakes up once per Interval (1s by default) and looks at every Target it gets from
// its source. A target that has not read anything for longer than Threshold (5s by default) is
// probed: a single blocking one byte read bounded by ProbeDeadline (20ms by default). A dead
// peer surfaces as end of stream or reset during the probe and the target closes itself through
// its normal close path. A probe that runs into the deadline is abandoned and retried in a later
// cycle.
//
// Probes of one cycle run concurrently (at most MaxConcurrentProbes at a time), each with its
// own deadline, and the cycle runs off the ticker goroutine, so a slow probe never delays the
// cadence. A target whose previous probe has not returned yet is skipped.
//
// The detector keeps its own go-metrics registry with the number of cycles, probes, probe
// timeouts and the probe latency.
package liveness
