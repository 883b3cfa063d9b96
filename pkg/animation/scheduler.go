package animation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/poblanc/go-avatar/pkg/live2d"
	"github.com/poblanc/go-avatar/pkg/protocol"
)

// PlaybackState describes the scheduler's state machine. At most one
// animation plays at a time.
type PlaybackState int

const (
	StateIdle PlaybackState = iota
	StatePlaying
)

// String returns a human-readable state name.
func (s PlaybackState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Request describes one animation to play.
type Request struct {
	Expression string
	Intensity  float64
	Duration   float64 // seconds
	SequenceID string
	Priority   int
}

// HistoryEntry records a started animation.
type HistoryEntry struct {
	Expression string
	Intensity  float64
	Duration   float64
	StartedAt  time.Time
}

// ConversationContext tracks the conversational signals that modulate
// animation decisions.
type ConversationContext struct {
	Mood          string
	Energy        float64
	Engagement    float64
	LastUserInput string
	ResponseCount int
}

// transitions is the expression adjacency table. Moves not listed here go
// through a neutral intermediate first. Neutral itself reaches everything.
var transitions = map[string]map[string]bool{
	live2d.ExpressionHappy: {
		live2d.ExpressionNeutral:   true,
		live2d.ExpressionSurprised: true,
		live2d.ExpressionSpeak:     true,
	},
	live2d.ExpressionSad: {
		live2d.ExpressionNeutral: true,
		live2d.ExpressionAngry:   true,
	},
	live2d.ExpressionAngry: {
		live2d.ExpressionNeutral: true,
		live2d.ExpressionSad:     true,
	},
	live2d.ExpressionSurprised: {
		live2d.ExpressionHappy:   true,
		live2d.ExpressionNeutral: true,
	},
	live2d.ExpressionSpeak: {
		live2d.ExpressionNeutral: true,
		live2d.ExpressionHappy:   true,
	},
}

// canTransition reports whether a direct move between expressions is
// allowed.
func canTransition(from, to string) bool {
	if from == "" || from == live2d.ExpressionNeutral || from == to {
		return true
	}
	allowed, ok := transitions[from]
	if !ok {
		return true
	}
	return allowed[to]
}

// active is the animation currently playing.
type active struct {
	req       Request
	startedAt time.Time

	// follow is the original request when the playing animation is an
	// inserted neutral intermediate.
	follow *Request
}

// Scheduler owns animation decisions and playback. All progression is
// driven by Tick from the render loop; there are no internal timers.
type Scheduler struct {
	config   *Config
	logger   *slog.Logger
	registry *live2d.Registry
	engine   *live2d.Engine

	mu             sync.Mutex
	state          PlaybackState
	current        *active
	history        []HistoryEntry
	context        ConversationContext
	lastStart      time.Time
	lastExpression string
	analyzer       SentimentAnalyzer

	mouthSync      bool
	mouthSyncStart time.Time

	// OnComplete fires when a sequenced animation finishes. Inserted
	// neutral intermediates carry no sequence ID and never fire it.
	OnComplete func(sequenceID string)

	// OnExpression fires on every started animation, for render targets
	// that animate expressions themselves.
	OnExpression func(expression string, intensity, duration float64)
}

// NewScheduler creates a scheduler driving the given engine and expression
// registry.
func NewScheduler(registry *live2d.Registry, engine *live2d.Engine, opts ...Option) *Scheduler {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	return &Scheduler{
		config:   cfg,
		logger:   cfg.Logger.With("component", "animation"),
		registry: registry,
		engine:   engine,
		state:    StateIdle,
		context:  ConversationContext{Engagement: 0.5},
	}
}

// State returns the playback state.
func (s *Scheduler) State() PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentExpression returns the last started expression, or empty before
// the first animation.
func (s *Scheduler) CurrentExpression() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastExpression
}

// Context returns a copy of the conversational context.
func (s *Scheduler) Context() ConversationContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context
}

// ResetContext clears the conversational context, as at the start of a new
// conversation.
func (s *Scheduler) ResetContext() {
	s.mu.Lock()
	s.context = ConversationContext{Engagement: 0.5}
	s.history = nil
	s.mu.Unlock()
}

// History returns a copy of the retained animation history, oldest first.
func (s *Scheduler) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// DetermineAnimation chooses an expression, intensity and duration for an
// analyzed piece of text. Intensity starts at the analyzer confidence and
// is shaped by conversation state in a fixed order: first-interaction
// boost, engagement, then repetition dampening.
func (s *Scheduler) DetermineAnimation(sentiment string, confidence float64, text string) Request {
	expression := MapSentimentToExpression(sentiment)

	s.mu.Lock()
	intensity := confidence
	if s.context.ResponseCount == 0 {
		intensity *= 1.2
	}
	if s.context.Engagement > 0.7 {
		intensity *= 1.1
	} else if s.context.Engagement < 0.3 {
		intensity *= 0.8
	}
	if s.isRepetitiveLocked(expression) {
		intensity *= 0.7
	}
	s.mu.Unlock()

	if intensity < 0.3 {
		intensity = 0.3
	}
	if intensity > 1.0 {
		intensity = 1.0
	}

	lengthFactor := float64(len(text)) / 100
	if lengthFactor > 2.0 {
		lengthFactor = 2.0
	}
	duration := 2.0 + lengthFactor*0.5

	return Request{
		Expression: expression,
		Intensity:  intensity,
		Duration:   duration,
	}
}

// isRepetitiveLocked reports whether the expression already appears at
// least twice in the last three history entries. Caller holds mu.
func (s *Scheduler) isRepetitiveLocked(expression string) bool {
	start := len(s.history) - 3
	if start < 0 {
		start = 0
	}
	count := 0
	for _, entry := range s.history[start:] {
		if entry.Expression == expression {
			count++
		}
	}
	return count >= 2
}

// TriggerContextualAnimation starts an animation, subject to throttling and
// the transition table. Returns false when throttled; throttled requests
// leave no trace in history. A disallowed transition plays a short neutral
// intermediate first and then the requested animation.
func (s *Scheduler) TriggerContextualAnimation(req Request) bool {
	now := time.Now()

	req.Duration = s.clampDuration(req.Duration)

	s.mu.Lock()
	if !s.lastStart.IsZero() && now.Sub(s.lastStart) < s.config.Throttle {
		s.mu.Unlock()
		s.logger.Debug("animation throttled", "expression", req.Expression)
		return false
	}

	if !canTransition(s.lastExpression, req.Expression) {
		s.logger.Debug("transition via neutral",
			"from", s.lastExpression, "to", req.Expression)
		bridge := Request{
			Expression: live2d.ExpressionNeutral,
			Intensity:  0.5,
			Duration:   0.5,
		}
		s.startLocked(bridge, now, &req)
		s.mu.Unlock()
		return true
	}

	s.startLocked(req, now, nil)
	s.mu.Unlock()
	return true
}

// clampDuration bounds a requested duration, falling back to the minimum
// for non-positive values.
func (s *Scheduler) clampDuration(d float64) float64 {
	if d < s.config.MinDuration {
		return s.config.MinDuration
	}
	if d > s.config.MaxDuration {
		return s.config.MaxDuration
	}
	return d
}

// startLocked begins playback of a request. Caller holds mu.
func (s *Scheduler) startLocked(req Request, now time.Time, follow *Request) {
	s.state = StatePlaying
	s.current = &active{req: req, startedAt: now, follow: follow}
	s.lastStart = now
	s.lastExpression = req.Expression

	s.history = append(s.history, HistoryEntry{
		Expression: req.Expression,
		Intensity:  req.Intensity,
		Duration:   req.Duration,
		StartedAt:  now,
	})
	if len(s.history) > s.config.HistoryLimit {
		s.history = s.history[len(s.history)-s.config.HistoryLimit:]
	}

	s.engine.SetTargets(s.registry.ExpressionParameters(req.Expression, req.Intensity), false)

	s.logger.Info("animation started",
		"expression", req.Expression,
		"intensity", req.Intensity,
		"duration", req.Duration,
		"sequence_id", req.SequenceID)

	if s.OnExpression != nil {
		go s.OnExpression(req.Expression, req.Intensity, req.Duration)
	}
}

// Tick advances playback. Call it from the render loop with a monotonic
// now; completion, follow-up starts and the return to idle all happen here.
func (s *Scheduler) Tick(now time.Time) {
	s.mu.Lock()
	if s.state != StatePlaying || s.current == nil {
		s.mu.Unlock()
		return
	}

	elapsed := now.Sub(s.current.startedAt).Seconds()
	if elapsed < s.current.req.Duration {
		s.mu.Unlock()
		return
	}

	finished := s.current
	if finished.follow != nil {
		// The neutral bridge is done; play the original request.
		s.startLocked(*finished.follow, now, nil)
		s.mu.Unlock()
		s.notifyComplete(finished.req.SequenceID)
		return
	}

	s.state = StateIdle
	s.current = nil
	if !s.mouthSync {
		s.engine.SetTargets(s.registry.ExpressionParameters(live2d.ExpressionNeutral, 1), false)
		s.lastExpression = live2d.ExpressionNeutral
	}
	s.mu.Unlock()

	s.logger.Debug("animation complete",
		"expression", finished.req.Expression,
		"sequence_id", finished.req.SequenceID)
	s.notifyComplete(finished.req.SequenceID)
}

// notifyComplete fires OnComplete for sequenced animations.
func (s *Scheduler) notifyComplete(sequenceID string) {
	if sequenceID == "" || s.OnComplete == nil {
		return
	}
	s.OnComplete(sequenceID)
}

// HandleAIResponse analyzes an AI reply and plays the resulting animation.
func (s *Scheduler) HandleAIResponse(text string) bool {
	sentiment, confidence := s.analyzer.Analyze(text)
	req := s.DetermineAnimation(sentiment, confidence, text)

	s.mu.Lock()
	s.context.ResponseCount++
	s.context.Mood = sentiment
	s.mu.Unlock()

	return s.TriggerContextualAnimation(req)
}

// HandleUserInput updates the conversational context from a user message.
// Voice input gets a lightweight listening nudge that bypasses the throttle
// and transition rules, since it is a parameter tweak rather than an
// animation.
func (s *Scheduler) HandleUserInput(text, inputType string) {
	engagement := AnalyzeUserEngagement(text)

	s.mu.Lock()
	s.context.LastUserInput = text
	s.context.Engagement = engagement
	s.mu.Unlock()

	if inputType == "voice" {
		s.engine.SetTargets(map[string]float64{
			live2d.ParamEyeLOpen: 1,
			live2d.ParamEyeROpen: 1,
			live2d.ParamBrowLY:   0.2,
			live2d.ParamBrowRY:   0.2,
		}, false)
	}
}

// HandleTTSStart switches to the speaking expression and opens the mouth
// sync gate.
func (s *Scheduler) HandleTTSStart() {
	s.mu.Lock()
	s.mouthSync = true
	s.mouthSyncStart = time.Now()
	s.mu.Unlock()

	s.TriggerContextualAnimation(Request{
		Expression: live2d.ExpressionSpeak,
		Intensity:  0.8,
		Duration:   1.0,
	})
}

// HandleTTSEnd closes the mouth sync gate and relaxes the mouth.
func (s *Scheduler) HandleTTSEnd() {
	s.mu.Lock()
	s.mouthSync = false
	s.mu.Unlock()

	s.engine.SetTargets(map[string]float64{
		live2d.ParamMouthOpenY: 0,
		live2d.ParamMouthForm:  0,
	}, false)
	s.TriggerContextualAnimation(Request{
		Expression: live2d.ExpressionNeutral,
		Intensity:  1.0,
		Duration:   0.5,
	})
}

// HandleMouthSync applies one audio spectrum frame. Ignored while the
// mouth sync gate is closed.
func (s *Scheduler) HandleMouthSync(magnitudes []float64) {
	s.mu.Lock()
	if !s.mouthSync {
		s.mu.Unlock()
		return
	}
	t := time.Since(s.mouthSyncStart).Seconds()
	s.mu.Unlock()

	s.engine.SetTargets(live2d.MouthSyncParameters(magnitudes, t), true)
}

// MouthSyncActive reports whether the mouth sync gate is open.
func (s *Scheduler) MouthSyncActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mouthSync
}

// HandleEvent dispatches a validated server animation event.
func (s *Scheduler) HandleEvent(e *protocol.AnimationEvent) {
	switch e.EventType {
	case protocol.EventExpressionChange:
		var data protocol.ExpressionChangeData
		if err := e.ParseData(&data); err != nil {
			s.logger.Warn("bad expression_change data", "error", err)
			return
		}
		started := s.TriggerContextualAnimation(Request{
			Expression: data.Expression,
			Intensity:  data.Intensity,
			Duration:   data.Duration,
			SequenceID: e.SequenceID,
			Priority:   e.Priority,
		})
		if !started {
			s.logger.Debug("server animation throttled", "sequence_id", e.SequenceID)
		}

	case protocol.EventMouthSyncStart:
		s.HandleTTSStart()

	case protocol.EventMouthSyncUpdate:
		var data protocol.MouthSyncUpdateData
		if err := e.ParseData(&data); err != nil {
			s.logger.Warn("bad mouth_sync_update data", "error", err)
			return
		}
		s.mu.Lock()
		gate := s.mouthSync
		s.mu.Unlock()
		if gate {
			s.engine.SetTargets(map[string]float64{
				live2d.ParamMouthOpenY: data.MouthOpen,
				live2d.ParamMouthForm:  data.MouthForm,
			}, true)
		}

	case protocol.EventMouthSyncStop:
		s.HandleTTSEnd()

	case protocol.EventParameterUpdate:
		var data protocol.ParameterUpdateData
		if err := e.ParseData(&data); err != nil {
			s.logger.Warn("bad parameter_update data", "error", err)
			return
		}
		s.engine.SetTargets(data.Parameters, data.Immediate)

	case protocol.EventSyncTiming:
		// Timing data rides the sync_timing message path; nothing to do
		// for the event form beyond acknowledging it exists.
		s.logger.Debug("sync_timing event received")

	default:
		s.logger.Debug("ignoring unknown event type", "event_type", e.EventType)
	}
}
