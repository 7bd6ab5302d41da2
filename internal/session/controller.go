// Package session drives a live scan: it opens a capture device, samples
// frames on a timer, runs them through the selected decode strategy and
// owns the session's teardown.
package session

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"scanstream/internal/capture"
	"scanstream/internal/decode"
	"scanstream/internal/recognition"
	"scanstream/internal/scanerr"
)

// ErrStopped settles a session ended by Stop.
var ErrStopped = errors.New("session: stopped")

// Presentation shows the live capture to the user.
type Presentation interface {
	HasContainer(id string) bool
	InsertCaptureSurface(id string) error
	RemoveCaptureSurface()
}

// Identifier looks up a locally decoded value with the recognition service.
type Identifier interface {
	Identify(ctx context.Context, typ, value string) (recognition.ResultList, error)
}

// IdentityResolver returns the anonymous user results are attached to.
type IdentityResolver interface {
	Resolve(ctx context.Context) (recognition.User, error)
}

// Config wires a Controller to its collaborators.
type Config struct {
	Devices capture.Enumerator
	// Presentation may be nil for headless sessions, which then must not
	// name a container.
	Presentation Presentation
	Registry     decode.Registry
	Identifier   Identifier
	Identity     IdentityResolver
	Logger       *log.Logger
	// Events receives progress events. Sends never block; events are
	// dropped when the channel is full.
	Events chan<- Event

	MinRemoteInterval time.Duration
	DebounceWindow    time.Duration
}

// Controller runs one scan session at a time. It is safe for concurrent use.
type Controller struct {
	cfg    Config
	logger *log.Logger
	tracer trace.Tracer

	// gate outlives sessions: a remote call left running by a stopped
	// session still blocks the next one.
	gate Gate

	mu      sync.Mutex
	current *captureSession
	last    *captureSession
}

// New validates cfg and returns a Controller.
func New(cfg Config) (*Controller, error) {
	if cfg.Devices == nil {
		return nil, scanerr.Config("session", "a device enumerator is required")
	}
	if cfg.MinRemoteInterval <= 0 {
		cfg.MinRemoteInterval = DefaultMinRemoteInterval
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = DefaultDebounceWindow
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Controller{
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("scanstream/internal/session"),
	}, nil
}

type captureSession struct {
	id       uuid.UUID
	opts     resolvedOptions
	strategy decode.Strategy
	track    capture.Track
	frame    *capture.Frame
	state    *stateMachine

	ctx    context.Context
	cancel context.CancelCauseFunc
	span   trace.Span

	attempts      int
	lastDelivered string
	lastAt        time.Time

	teardownOnce sync.Once
	settleOnce   sync.Once
	done         chan struct{}
	value        Value
	err          error
}

// Pending is a running session's handle.
type Pending struct {
	s *captureSession
}

// ID identifies the session in events and logs.
func (p *Pending) ID() uuid.UUID {
	return p.s.id
}

// Done is closed once the session settles.
func (p *Pending) Done() <-chan struct{} {
	return p.s.done
}

// Wait blocks until the session settles or ctx ends. Ending ctx does not
// stop the session.
func (p *Pending) Wait(ctx context.Context) (Value, error) {
	select {
	case <-p.s.done:
		return p.s.value, p.s.err
	case <-ctx.Done():
		return Value{}, ctx.Err()
	}
}

// Start validates opts, opens the preferred device, attaches the
// presentation surface and starts sampling. rec may be nil when the filter
// only needs local decoders. Cancelling ctx stops the session.
//
// The controller lock is not held while the device opens, so Stop can
// abort a session that is still starting; Start then returns the stop
// cause.
func (c *Controller) Start(ctx context.Context, opts Options, rec decode.Recognizer) (*Pending, error) {
	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return nil, scanerr.Config("start", "a scan session is already running")
	}

	ro, err := opts.resolve()
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.cfg.Presentation != nil {
		if !c.cfg.Presentation.HasContainer(ro.containerID) {
			c.mu.Unlock()
			return nil, scanerr.Config("start", "container %q not found", ro.containerID)
		}
	} else if ro.containerID != "" {
		c.mu.Unlock()
		return nil, scanerr.Config("start", "container %q not found", ro.containerID)
	}

	sel, err := c.cfg.Registry.Select(ro.filter, ro.useZxing, ro.useDiscover, rec)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	ro.interval = samplingInterval(ro.interval, sel.Local, c.cfg.MinRemoteInterval)

	s := &captureSession{
		id:       uuid.New(),
		opts:     ro,
		strategy: sel.Strategy,
		state:    newStateMachine(),
		done:     make(chan struct{}),
	}
	spanCtx, span := c.tracer.Start(ctx, "session.Scan", trace.WithAttributes(
		attribute.String("session.id", s.id.String()),
		attribute.String("scan.filter", ro.filter.String()),
		attribute.String("scan.strategy", sel.Strategy.Name()),
		attribute.Bool("scan.auto_stop", ro.autoStop),
	))
	s.span = span
	s.ctx, s.cancel = context.WithCancelCause(spanCtx)
	_ = s.state.Set(StateStarting)
	c.current, c.last = s, s
	c.mu.Unlock()

	track, err := c.openDevice(s.ctx, ro.constraints)
	if err != nil {
		return nil, c.abortStart(s, nil, false, err)
	}
	if c.cfg.Presentation != nil {
		if err := c.cfg.Presentation.InsertCaptureSurface(ro.containerID); err != nil {
			return nil, c.abortStart(s, track, false, scanerr.Wrap(scanerr.KindConfig, "start", err))
		}
	}

	c.mu.Lock()
	if s.ctx.Err() != nil {
		c.mu.Unlock()
		return nil, c.abortStart(s, track, c.cfg.Presentation != nil, nil)
	}
	s.track = track
	s.frame = capture.NewFrame()
	s.frame.Attach(track)
	_ = s.state.Set(StateRunning)
	c.mu.Unlock()

	c.logger.Printf("session: %s started, filter=%s strategy=%s interval=%s", s.id, ro.filter, sel.Strategy.Name(), ro.interval)
	c.emit(Event{Kind: EventStarted, Session: s.id, Strategy: sel.Strategy.Name()})

	go c.run(s)
	return &Pending{s: s}, nil
}

// abortStart releases whatever a starting session acquired and settles it.
// A session cancelled while starting ends Stopped with the cancel cause;
// otherwise it ends Failed with err.
func (c *Controller) abortStart(s *captureSession, track capture.Track, inserted bool, err error) error {
	if track != nil {
		track.Stop()
	}
	if inserted {
		c.cfg.Presentation.RemoveCaptureSurface()
	}

	c.mu.Lock()
	if cause := context.Cause(s.ctx); cause != nil {
		err = cause
		_ = s.state.Set(StateStopped)
		c.logger.Printf("session: %s stopped while starting", s.id)
	} else {
		_ = s.state.Set(StateFailed)
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
		c.logger.Printf("session: %s failed to start: %v", s.id, err)
	}
	if c.current == s {
		c.current = nil
	}
	c.mu.Unlock()

	s.cancel(ErrStopped)
	s.err = err
	s.span.End()
	close(s.done)
	return err
}

func (c *Controller) openDevice(ctx context.Context, cons capture.Constraints) (capture.Track, error) {
	if cons.DeviceID == "" {
		devices, err := c.cfg.Devices.Devices(ctx)
		if err != nil {
			return nil, scanerr.Wrap(scanerr.KindDevice, "start", err)
		}
		d, ok := capture.SelectDevice(devices)
		if !ok {
			return nil, scanerr.New(scanerr.KindDevice, "start", "no video input found")
		}
		cons.DeviceID = d.ID
		cons.Facing = d.Facing
	}
	track, err := c.cfg.Devices.Open(ctx, cons)
	if err != nil {
		return nil, scanerr.Wrap(scanerr.KindDevice, "start", err)
	}
	return track, nil
}

// ScanCode runs a session to completion and returns its value.
func (c *Controller) ScanCode(ctx context.Context, opts Options, rec decode.Recognizer) (Value, error) {
	p, err := c.Start(ctx, opts, rec)
	if err != nil {
		return Value{}, err
	}
	<-p.Done()
	return p.s.value, p.s.err
}

// Stop ends the active session, if any. A running session releases the
// device and the presentation surface before Stop returns and settles with
// ErrStopped shortly after. A session still starting is cancelled; its
// Start releases what it acquired and returns ErrStopped.
func (c *Controller) Stop() {
	c.mu.Lock()
	s := c.current
	if s != nil && s.state.Get() == StateStarting {
		s.cancel(ErrStopped)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	if s == nil {
		return
	}
	s.cancel(ErrStopped)
	c.teardown(s)
}

// SetTorchEnabled switches the torch of the active session's device.
// Driver rejections arrive asynchronously and are only logged.
func (c *Controller) SetTorchEnabled(enabled bool) error {
	c.mu.Lock()
	s := c.current
	var track capture.Track
	if s != nil {
		track = s.track
	}
	c.mu.Unlock()
	if s == nil {
		return scanerr.New(scanerr.KindNoSession, "setTorchEnabled", "no active scan session")
	}
	if track == nil {
		return scanerr.New(scanerr.KindNoSession, "setTorchEnabled", "scan session is still starting")
	}
	if !track.Capabilities().Torch {
		return scanerr.Capability("setTorchEnabled", "device does not support torch")
	}

	done := track.ApplyTorch(enabled)
	if done != nil {
		go func() {
			if err := <-done; err != nil {
				c.logger.Printf("session: %s torch change rejected: %v", s.id, err)
			}
		}()
	}
	c.emit(Event{Kind: EventTorch, Session: s.id, Value: onOff(enabled)})
	return nil
}

// State is the state of the most recent session.
func (c *Controller) State() State {
	c.mu.Lock()
	s := c.last
	c.mu.Unlock()
	if s == nil {
		return StateIdle
	}
	return s.state.Get()
}

// Active reports whether a session is starting or running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

func (c *Controller) teardown(s *captureSession) {
	s.teardownOnce.Do(func() {
		s.track.Stop()
		if c.cfg.Presentation != nil {
			c.cfg.Presentation.RemoveCaptureSurface()
		}
		c.mu.Lock()
		if c.current == s {
			c.current = nil
		}
		c.mu.Unlock()
	})
}

// settle tears the session down and records its outcome exactly once.
func (c *Controller) settle(s *captureSession, v Value, err error) {
	s.settleOnce.Do(func() {
		s.cancel(ErrStopped)
		c.teardown(s)

		s.value, s.err = v, err
		switch {
		case err == nil:
			_ = s.state.Set(StateFound)
			s.span.SetAttributes(attribute.Int("scan.attempts", s.attempts))
			c.logger.Printf("session: %s found %q after %d attempts", s.id, v.String(), s.attempts)
			c.emit(Event{Kind: EventFound, Session: s.id, Attempt: s.attempts, Value: v.String()})
		case errors.Is(err, ErrStopped) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			_ = s.state.Set(StateStopped)
			c.logger.Printf("session: %s stopped after %d attempts", s.id, s.attempts)
			c.emit(Event{Kind: EventStopped, Session: s.id, Attempt: s.attempts})
		default:
			_ = s.state.Set(StateFailed)
			s.span.RecordError(err)
			s.span.SetStatus(codes.Error, err.Error())
			c.logger.Printf("session: %s failed: %v", s.id, err)
			c.emit(Event{Kind: EventFailed, Session: s.id, Attempt: s.attempts, Err: err})
		}
		s.span.End()
		close(s.done)
	})
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
