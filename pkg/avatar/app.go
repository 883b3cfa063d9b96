// Package avatar wires the animation core together: connection, protocol,
// scheduler, parameter engine and the status server, driven by a single
// render loop.
package avatar

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/poblanc/go-avatar/pkg/animation"
	"github.com/poblanc/go-avatar/pkg/connection"
	"github.com/poblanc/go-avatar/pkg/live2d"
	"github.com/poblanc/go-avatar/pkg/protocol"
	"github.com/poblanc/go-avatar/pkg/web"
)

// RenderFPS is the render loop rate.
const RenderFPS = 60

// feedbackInterval is how often the current parameter state is pushed to
// the server.
const feedbackInterval = 5 * time.Second

// Config configures the app.
type Config struct {
	// ServerURL is the animation server WebSocket endpoint,
	// e.g. ws://localhost:8765.
	ServerURL string

	// WebPort is the local status server port. Empty disables it.
	WebPort string

	// RenderTarget receives parameter writes each frame. Optional.
	RenderTarget live2d.RenderTarget

	Logger *slog.Logger
}

// App is the composed avatar runtime.
type App struct {
	config Config
	logger *slog.Logger

	conn      *connection.Manager
	handler   *protocol.Handler
	registry  *live2d.Registry
	engine    *live2d.Engine
	scheduler *animation.Scheduler
	web       *web.Server

	fatal chan error
	stop  chan struct{}
	wg    sync.WaitGroup
}

// New builds and wires the avatar runtime. Nothing runs until Run.
func New(cfg Config) (*App, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With("component", "avatar")

	conn, err := connection.NewManager(
		connection.WithURL(cfg.ServerURL),
		connection.WithLogger(cfg.Logger),
	)
	if err != nil {
		return nil, err
	}

	registry := live2d.NewRegistry(cfg.Logger)
	engine := live2d.NewEngine(cfg.Logger)
	scheduler := animation.NewScheduler(registry, engine,
		animation.WithLogger(cfg.Logger))
	handler := protocol.NewHandler(conn, cfg.Logger)

	a := &App{
		config:    cfg,
		logger:    logger,
		conn:      conn,
		handler:   handler,
		registry:  registry,
		engine:    engine,
		scheduler: scheduler,
		fatal:     make(chan error, 1),
		stop:      make(chan struct{}),
	}

	// Inbound path: transport → handler → scheduler.
	conn.OnMessage = handler.HandleMessage

	handler.OnConnectionEstablished(func(msg *protocol.ConnectionEstablished) {
		conn.SetClientID(msg.ClientID)
		if msg.CurrentAnimation != nil {
			scheduler.HandleEvent(msg.CurrentAnimation)
		}
	})
	handler.OnAnimationEvent(scheduler.HandleEvent)
	handler.OnPong(conn.HandlePong)
	handler.OnHeartbeat(func(msg *protocol.Heartbeat) {
		logger.Debug("server heartbeat",
			"queue_length", msg.QueueLength,
			"current_animation", msg.CurrentAnimation)
	})
	handler.OnSyncTiming(func(d *protocol.TimingSyncData) {
		logger.Debug("timing sync",
			"audio_duration", d.AudioDuration,
			"tts_delay", d.TTSProcessingDelay)
	})

	// Outbound path: measurements and completions.
	conn.OnLatency = func(sample, average time.Duration) {
		handler.SendLatency(
			float64(sample.Microseconds())/1000,
			float64(average.Microseconds())/1000)
	}
	scheduler.OnComplete = handler.Complete
	if cfg.RenderTarget != nil {
		scheduler.OnExpression = func(expression string, intensity, duration float64) {
			cfg.RenderTarget.TriggerAnimation(expression, intensity, duration)
		}
	}

	conn.OnReconnectFailed = func(err error) {
		select {
		case a.fatal <- err:
		default:
		}
	}

	if cfg.WebPort != "" {
		a.web = web.NewServer(cfg.WebPort, conn, scheduler, registry, engine, cfg.Logger)
	}

	return a, nil
}

// Run connects and drives the render and feedback loops until the context
// ends or the reconnection budget is exhausted.
func (a *App) Run(ctx context.Context) error {
	if a.web != nil {
		a.web.StartAsync()
	}

	if err := a.conn.Connect(); err != nil {
		// The manager keeps retrying with backoff; only the exhausted
		// budget below is fatal.
		a.logger.Warn("initial connect failed, retrying", "error", err)
	}

	a.wg.Add(2)
	go a.renderLoop()
	go a.feedbackLoop()

	var err error
	select {
	case <-ctx.Done():
	case err = <-a.fatal:
		a.logger.Error("connection permanently lost", "error", err)
	}

	a.shutdown()
	return err
}

// shutdown stops the loops and closes everything.
func (a *App) shutdown() {
	close(a.stop)
	a.wg.Wait()
	a.conn.Disconnect()
	if a.web != nil {
		a.web.Shutdown()
	}
	a.logger.Info("avatar stopped")
}

// renderLoop advances the engine and scheduler at the render rate and
// pushes the frame to the render target.
func (a *App) renderLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(time.Second / RenderFPS)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case now := <-ticker.C:
			a.scheduler.Tick(now)
			a.engine.Tick(now)
			if a.config.RenderTarget != nil {
				a.engine.Apply(a.config.RenderTarget)
			}
		}
	}
}

// feedbackLoop periodically reports the current parameter state while
// connected.
func (a *App) feedbackLoop() {
	defer a.wg.Done()

	ticker := time.NewTicker(feedbackInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			if a.conn.IsConnected() {
				a.handler.SendParameterFeedback(a.engine.Snapshot())
			}
		}
	}
}

// RequestAnimation asks the server to schedule an animation, tagged with a
// fresh request ID.
func (a *App) RequestAnimation(expression string, intensity, duration float64, priority int) bool {
	return a.handler.RequestAnimation(protocol.RequestAnimationData{
		Expression: expression,
		Intensity:  intensity,
		Duration:   duration,
		Priority:   priority,
		RequestID:  uuid.NewString(),
	})
}

// RequestTTSSync asks the server to coordinate a TTS-synchronized
// animation for the given text.
func (a *App) RequestTTSSync(text, expression string, audioDuration float64) bool {
	return a.handler.RequestTTSSync(protocol.RequestTTSSyncData{
		Text:          text,
		Expression:    expression,
		AudioDuration: audioDuration,
		RequestID:     uuid.NewString(),
	})
}

// Scheduler exposes the animation scheduler for embedding applications.
func (a *App) Scheduler() *animation.Scheduler {
	return a.scheduler
}

// Engine exposes the parameter engine.
func (a *App) Engine() *live2d.Engine {
	return a.engine
}

// Connection exposes the connection manager.
func (a *App) Connection() *connection.Manager {
	return a.conn
}

// Registry exposes the expression table.
func (a *App) Registry() *live2d.Registry {
	return a.registry
}
