package pipeline

import (
	"fmt"
	"reflect"
)

// Direction selects one of the two stage sequences
type Direction int

const (
	// In is applied to received frames before they reach the frame handler
	In Direction = iota
	// Out is applied to payloads before they are written
	Out
)

func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Stage is a byte transformation
type Stage interface {
	Process(data []byte) ([]byte, error)
}

// Enabler is implemented by stages that need to acquire resources before they run.
// OnEnable returns false if the stage cannot be used.
type Enabler interface {
	OnEnable() bool
}

// Disabler is implemented by stages that need to release resources.
// OnDisable returns false if the teardown failed.
type Disabler interface {
	OnDisable() bool
}

// Named is implemented by stages that want to be identified by a custom name in errors
type Named interface {
	Name() string
}

// StageFunc adapts a function to the Stage interface.
// Add a *StageFunc if the stage has to be removed again, func values have no identity.
type StageFunc func(data []byte) ([]byte, error)

func (f StageFunc) Process(data []byte) ([]byte, error) {
	return f(data)
}

// StageName returns the identity of s used in errors: Name() for Named stages,
// the Go type otherwise
func StageName(s Stage) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return reflect.TypeOf(s).String()
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// LayerInitError is returned when a stage refuses to enable
type LayerInitError struct {
	Stage     string
	Direction Direction
}

func (e *LayerInitError) Error() string {
	return fmt.Sprintf("pipeline: stage %s (%s) failed to enable", e.Stage, e.Direction)
}

// LayerDisableError is returned when a stage fails to disable
type LayerDisableError struct {
	Stage     string
	Direction Direction
}

func (e *LayerDisableError) Error() string {
	return fmt.Sprintf("pipeline: stage %s (%s) failed to disable", e.Stage, e.Direction)
}

// StageError wraps an error returned by a stage while processing data
type StageError struct {
	Stage     string
	Direction Direction
	Err       error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: stage %s (%s): %v", e.Stage, e.Direction, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
