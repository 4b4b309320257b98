package liveness

import (
	"context"
	"errors"
	"github.com/benbjohnson/clock"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rcrowley/go-metrics"
	"golang.org/x/sync/errgroup"
	"sync"
	"time"
)

var Logger = logger.GetLogger("liveness")

var (
	// ErrAlreadyStarted is returned by Start on a running detector
	ErrAlreadyStarted = errors.New("liveness: detector already started")
)

// Target is something the detector can probe, e.g. a server connection or a client channel
type Target interface {
	// LastRead returns the time of the last successful read
	LastRead() time.Time
	// Probe performs one bounded single byte read
	Probe(ctx context.Context) error
	// Closed reports whether the target is closing or closed
	Closed() bool
}

// Source returns the targets to check in the current cycle
type Source func() []Target

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

const (
	DefaultInterval            = time.Second
	DefaultThreshold           = 5 * time.Second
	DefaultProbeDeadline       = 20 * time.Millisecond
	DefaultMaxConcurrentProbes = 64
)

// Config configures a Detector. Zero values select the defaults.
type Config struct {
	Interval            time.Duration
	Threshold           time.Duration
	ProbeDeadline       time.Duration
	MaxConcurrentProbes int
	Clock               clock.Clock
	// Metrics receives the detector metrics. A private registry is used if nil.
	Metrics metrics.Registry
}

// DefaultConfig returns the default detector configuration
func DefaultConfig() Config {
	return Config{
		Interval:            DefaultInterval,
		Threshold:           DefaultThreshold,
		ProbeDeadline:       DefaultProbeDeadline,
		MaxConcurrentProbes: DefaultMaxConcurrentProbes,
		Clock:               clock.New(),
	}
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ProbeDeadline <= 0 {
		c.ProbeDeadline = DefaultProbeDeadline
	}
	if c.MaxConcurrentProbes <= 0 {
		c.MaxConcurrentProbes = DefaultMaxConcurrentProbes
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Metrics == nil {
		c.Metrics = metrics.NewRegistry()
	}
}

// --------------------------------------------------------------------------
// Detector
// --------------------------------------------------------------------------

// Detector periodically probes stale targets
type Detector struct {
	conf     Config
	source   Source
	inFlight *xsync.MapOf[Target, struct{}]

	cycles   metrics.Counter
	probes   metrics.Counter
	timeouts metrics.Counter
	latency  metrics.Timer

	mu      sync.Mutex // guards cancel
	cancel  context.CancelFunc
	loop    sync.WaitGroup
	pending sync.WaitGroup
}

// NewDetector creates a detector that checks the targets returned by source
func NewDetector(conf Config, source Source) *Detector {
	conf.applyDefaults()
	return &Detector{
		conf:     conf,
		source:   source,
		inFlight: xsync.NewMapOf[Target, struct{}](),
		cycles:   metrics.GetOrRegisterCounter("liveness.cycles", conf.Metrics),
		probes:   metrics.GetOrRegisterCounter("liveness.probes", conf.Metrics),
		timeouts: metrics.GetOrRegisterCounter("liveness.probe_timeouts", conf.Metrics),
		latency:  metrics.GetOrRegisterTimer("liveness.probe_latency", conf.Metrics),
	}
}

// Metrics returns the registry holding the detector metrics
func (d *Detector) Metrics() metrics.Registry {
	return d.conf.Metrics
}

// Start runs the detector until ctx is done or Stop is called
func (d *Detector) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	ticker := d.conf.Clock.Ticker(d.conf.Interval)
	d.loop.Add(1)
	go func() {
		defer d.loop.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.pending.Add(1)
				go func() {
					defer d.pending.Done()
					d.RunCycle(ctx)
				}()
			}
		}
	}()

	Logger.Debugf("detector started (interval %s, threshold %s, probe deadline %s)",
		d.conf.Interval, d.conf.Threshold, d.conf.ProbeDeadline)
	return nil
}

// Stop stops the detector and waits for running probes to return. It is safe to call Stop
// on a detector that was never started.
func (d *Detector) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	d.loop.Wait()
	d.pending.Wait()
}

// RunCycle checks all targets once and probes the stale ones. It returns when all probes
// started by this cycle have returned.
func (d *Detector) RunCycle(ctx context.Context) {
	d.cycles.Inc(1)
	now := d.conf.Clock.Now()

	var g errgroup.Group
	g.SetLimit(d.conf.MaxConcurrentProbes)

	for _, target := range d.source() {
		if target == nil || target.Closed() {
			continue
		}
		if now.Sub(target.LastRead()) <= d.conf.Threshold {
			continue
		}
		if _, busy := d.inFlight.LoadOrStore(target, struct{}{}); busy {
			continue
		}
		if ctx.Err() != nil {
			d.inFlight.Delete(target)
			break
		}

		g.Go(func() error {
			defer d.inFlight.Delete(target)
			d.probe(ctx, target)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Detector) probe(ctx context.Context, target Target) {
	probeCtx, cancel := context.WithTimeout(ctx, d.conf.ProbeDeadline)
	defer cancel()

	d.probes.Inc(1)
	start := time.Now()
	err := target.Probe(probeCtx)
	d.latency.UpdateSince(start)

	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		d.timeouts.Inc(1)
	case errors.Is(err, context.Canceled):
	default:
		Logger.Debugf("probe returned: %v", err)
	}
}
