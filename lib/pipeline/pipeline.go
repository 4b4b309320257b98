package pipeline

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dNet/lib/util"
	"github.com/lni/dragonboat/v4/logger"
	"sync"
	"sync/atomic"
)

var Logger = logger.GetLogger("pipeline")

// ErrNotEnabled is returned by Process when a stage with a lifecycle has not been enabled yet
var ErrNotEnabled = errors.New("stage not enabled")

// Pipeline holds the In and Out stage sequences.
//
// Thread-safety: all methods are safe for concurrent use. Process works on a snapshot of the
// stage sequence, so stages may be added or removed while data is in flight.
type Pipeline struct {
	in  *util.COWList[Stage]
	out *util.COWList[Stage]

	lifecycle sync.Mutex // serializes InitLayers, Shutdown and additions to a live pipeline
	enabled   atomic.Bool
}

// New creates an empty pipeline. An empty pipeline returns all data unchanged.
func New() *Pipeline {
	return &Pipeline{
		in:  util.NewCOWList[Stage](),
		out: util.NewCOWList[Stage](),
	}
}

func (p *Pipeline) stages(dir Direction) *util.COWList[Stage] {
	if dir == Out {
		return p.out
	}
	return p.in
}

// --------------------------------------------------------------------------
// Processing
// --------------------------------------------------------------------------

// Process runs data through all stages of dir in order.
// A stage failure is returned as *StageError and stops the processing.
func (p *Pipeline) Process(dir Direction, data []byte) ([]byte, error) {
	var err error
	enabled := p.enabled.Load()

	for _, s := range p.stages(dir).Snapshot() {
		if _, lifecycle := s.(Enabler); lifecycle && !enabled {
			return nil, &StageError{Stage: StageName(s), Direction: dir, Err: ErrNotEnabled}
		}
		if data, err = s.Process(data); err != nil {
			return nil, &StageError{Stage: StageName(s), Direction: dir, Err: err}
		}
	}
	return data, nil
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// InitLayers enables every stage, In before Out, each in registration order.
// It stops at the first stage that refuses and returns a *LayerInitError naming it.
// Stages enabled before the failure stay enabled; call Shutdown to release them.
func (p *Pipeline) InitLayers() error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	for _, dir := range []Direction{In, Out} {
		for _, s := range p.stages(dir).Snapshot() {
			if err := enable(dir, s); err != nil {
				return err
			}
		}
	}

	p.enabled.Store(true)
	return nil
}

// Shutdown disables every stage, In before Out, and returns a *LayerDisableError for the
// first stage that fails.
func (p *Pipeline) Shutdown() error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	p.enabled.Store(false)

	for _, dir := range []Direction{In, Out} {
		for _, s := range p.stages(dir).Snapshot() {
			d, ok := s.(Disabler)
			if !ok {
				continue
			}
			if !d.OnDisable() {
				Logger.Errorf("stage %s (%s) failed to disable", StageName(s), dir)
				return &LayerDisableError{Stage: StageName(s), Direction: dir}
			}
		}
	}
	return nil
}

// Enabled reports whether InitLayers has completed successfully (and Shutdown was not called since)
func (p *Pipeline) Enabled() bool {
	return p.enabled.Load()
}

func enable(dir Direction, s Stage) error {
	e, ok := s.(Enabler)
	if !ok {
		return nil
	}
	if !e.OnEnable() {
		Logger.Errorf("stage %s (%s) failed to enable", StageName(s), dir)
		return &LayerInitError{Stage: StageName(s), Direction: dir}
	}
	return nil
}

// --------------------------------------------------------------------------
// Stage management
// --------------------------------------------------------------------------

// AddLayer appends s to the sequence of dir. If the pipeline is already enabled the
// stage is enabled first and not added if it refuses.
func (p *Pipeline) AddLayer(dir Direction, s Stage) error {
	return p.InsertLayer(dir, p.stages(dir).Len(), s)
}

// InsertLayer places s at index in the sequence of dir, shifting the stage at that index and
// all following stages back by one. Valid indices are 0..len.
func (p *Pipeline) InsertLayer(dir Direction, index int, s Stage) error {
	if s == nil {
		return fmt.Errorf("pipeline: stage must not be nil")
	}

	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if p.enabled.Load() {
		if err := enable(dir, s); err != nil {
			return err
		}
	}
	if err := p.stages(dir).Insert(index, s); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

// RemoveLayer removes the first registration of s (by identity) from the sequence of dir.
// The stage is not disabled.
func (p *Pipeline) RemoveLayer(dir Direction, s Stage) bool {
	return p.stages(dir).Remove(s)
}

// LayerAt returns the stage at index
func (p *Pipeline) LayerAt(dir Direction, index int) (Stage, bool) {
	return p.stages(dir).At(index)
}

// Layers returns the stages of dir in order
func (p *Pipeline) Layers(dir Direction) []Stage {
	return p.stages(dir).Snapshot()
}
