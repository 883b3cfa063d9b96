package live2d

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// Smoothing moves each parameter this fraction of the remaining gap toward
// its target per tick.
const Smoothing = 0.1

// breathPeriod is the length of one breathing cycle.
const breathPeriod = 3200 * time.Millisecond

// RenderTarget is the surface the engine and scheduler drive. The bundled
// web frontend implements it; tests substitute a recording fake.
type RenderTarget interface {
	SetParameter(id string, value float64, immediate bool)
	TriggerAnimation(expression string, intensity, duration float64) bool
	CurrentExpression() string
	IsAnimating() bool
}

// Engine owns the live parameter state. Each parameter tracks a current and
// a target value; Tick moves current toward target and layers the breathing
// cycle on top. Only SetParameter, SetTargets and Tick mutate state.
type Engine struct {
	mu      sync.Mutex
	current map[string]float64
	target  map[string]float64
	started time.Time
	logger  *slog.Logger
}

// NewEngine creates an engine with every parameter at its rest value.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		current: DefaultParameters(),
		target:  DefaultParameters(),
		started: time.Now(),
		logger:  logger.With("component", "live2d"),
	}
}

// SetParameter sets one parameter target, clamped to its bounds. With
// immediate the current value jumps there as well, skipping smoothing.
func (e *Engine) SetParameter(id string, value float64, immediate bool) {
	v := Clamp(id, value)
	e.mu.Lock()
	e.target[id] = v
	if immediate {
		e.current[id] = v
	}
	e.mu.Unlock()
}

// SetTargets applies a full parameter map, clamped.
func (e *Engine) SetTargets(params map[string]float64, immediate bool) {
	e.mu.Lock()
	for id, value := range params {
		v := Clamp(id, value)
		e.target[id] = v
		if immediate {
			e.current[id] = v
		}
	}
	e.mu.Unlock()
}

// Parameter returns the current value of one parameter.
func (e *Engine) Parameter(id string) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current[id]
}

// Snapshot returns a copy of the current parameter state.
func (e *Engine) Snapshot() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneParams(e.current)
}

// Reset returns every parameter to its rest value immediately.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.current = DefaultParameters()
	e.target = DefaultParameters()
	e.mu.Unlock()
}

// Tick advances the engine one frame: each current value moves a fixed
// fraction of the remaining gap toward its target, then the breathing
// sinusoid is written into ParamBreath.
func (e *Engine) Tick(now time.Time) {
	e.mu.Lock()
	for id, target := range e.target {
		cur := e.current[id]
		if cur != target {
			e.current[id] = cur + (target-cur)*Smoothing
		}
	}

	phase := now.Sub(e.started).Seconds() / breathPeriod.Seconds()
	e.current[ParamBreath] = Clamp(ParamBreath, (math.Sin(2*math.Pi*phase)+1)/2)
	e.mu.Unlock()
}

// Apply writes the current parameter state to a render target.
func (e *Engine) Apply(target RenderTarget) {
	for id, value := range e.Snapshot() {
		target.SetParameter(id, value, true)
	}
}
