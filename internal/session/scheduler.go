package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"scanstream/internal/capture"
	"scanstream/internal/decode"
	"scanstream/internal/prepare"
	"scanstream/pkg/imgutil"
)

type decodeOutcome struct {
	res decode.Result
	err error
}

// run is the scheduler loop. The next tick is armed only after the current
// attempt returns, so the interval is measured from its completion.
func (c *Controller) run(s *captureSession) {
	timer := time.NewTimer(s.opts.interval)
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			c.settle(s, Value{}, context.Cause(s.ctx))
			return
		case <-timer.C:
		}

		v, found, err := c.tick(s)
		if s.ctx.Err() != nil {
			c.settle(s, Value{}, context.Cause(s.ctx))
			return
		}
		if err != nil {
			c.settle(s, Value{}, err)
			return
		}
		if found {
			if s.opts.autoStop {
				c.settle(s, v, nil)
				return
			}
			c.deliver(s, v)
		}
		timer.Reset(s.opts.interval)
	}
}

// tick runs one capture and decode attempt.
func (c *Controller) tick(s *captureSession) (Value, bool, error) {
	s.attempts++
	c.emit(Event{Kind: EventTick, Session: s.id, Attempt: s.attempts, Strategy: s.strategy.Name()})

	remote := s.strategy.Remote()
	if remote && !c.gate.TryAcquire() {
		c.emit(Event{Kind: EventSkipped, Session: s.id, Attempt: s.attempts})
		return Value{}, false, nil
	}

	size, err := s.frame.Capture()
	if err != nil {
		if remote {
			c.gate.Release()
		}
		if errors.Is(err, capture.ErrNotReady) {
			c.emit(Event{Kind: EventNotFound, Session: s.id, Attempt: s.attempts})
			return Value{}, false, nil
		}
		return Value{}, false, err
	}

	req := decode.Request{
		Filter:     s.opts.filter,
		Conversion: s.opts.conversion,
		OnExport:   func(p prepare.Payload) { c.exported(s, p) },
	}
	if s.opts.onWatermark != nil {
		req.OnDetection = func(d decode.Detection) {
			if s.ctx.Err() == nil {
				s.opts.onWatermark(d)
			}
		}
	}
	if s.opts.conversion.CropPercent > 0 {
		crop, err := imgutil.ComputeCrop(size.X, size.Y, s.opts.conversion.CropPercent)
		if err != nil {
			if remote {
				c.gate.Release()
			}
			return Value{}, false, err
		}
		req.Crop = &crop
	}

	var out decodeOutcome
	if remote {
		out = c.decodeRemote(s, req)
	} else {
		res, err := s.strategy.Decode(s.ctx, s.frame, req)
		out = decodeOutcome{res: res, err: err}
	}
	if s.ctx.Err() != nil {
		return Value{}, false, nil
	}
	if out.err != nil {
		return Value{}, false, out.err
	}
	if !out.res.Found() {
		c.emit(Event{Kind: EventNotFound, Session: s.id, Attempt: s.attempts})
		return Value{}, false, nil
	}

	v := Value{Text: out.res.Text, Matches: out.res.Matches, Filter: out.res.Filter, Frame: out.res.Frame}
	if v.Frame == "" && s.opts.onFrameData != nil {
		if p, err := s.frame.Export(s.opts.conversion, req.Crop); err == nil {
			v.Frame = p
			if s.ctx.Err() == nil {
				s.opts.onFrameData(p)
			}
		} else {
			c.logger.Printf("session: %s export of matched frame failed: %v", s.id, err)
		}
	}
	return v, true, nil
}

// decodeRemote runs a gated strategy. The gate is released when the call
// itself returns, even if the session was stopped and stopped waiting.
func (c *Controller) decodeRemote(s *captureSession, req decode.Request) decodeOutcome {
	results := make(chan decodeOutcome, 1)
	go func() {
		res, err := s.strategy.Decode(s.ctx, s.frame, req)
		c.gate.Release()
		results <- decodeOutcome{res: res, err: err}
	}()

	select {
	case out := <-results:
		return out
	case <-s.ctx.Done():
		return decodeOutcome{}
	}
}

// deliver hands a continuous-mode value to the callback unless the same
// value was delivered within the debounce window. Values reaching it after
// the session was stopped are dropped.
func (c *Controller) deliver(s *captureSession, v Value) {
	if s.ctx.Err() != nil {
		return
	}
	key := v.String()
	now := time.Now()
	if key == s.lastDelivered && now.Sub(s.lastAt) < c.cfg.DebounceWindow {
		c.emit(Event{Kind: EventSuppressed, Session: s.id, Attempt: s.attempts, Value: key})
		return
	}
	s.lastDelivered, s.lastAt = key, now
	c.emit(Event{Kind: EventDelivered, Session: s.id, Attempt: s.attempts, Value: key})
	s.opts.onScanValue(v)
}

// exported handles every frame sent to the recognition service. A remote
// call abandoned by Stop can still export; its frame is dropped.
func (c *Controller) exported(s *captureSession, p prepare.Payload) {
	if s.ctx.Err() != nil {
		return
	}
	if s.opts.onFrameData != nil {
		s.opts.onFrameData(p)
	}
	if s.opts.downloadDir == "" {
		return
	}
	path, err := downloadFrame(s.opts.downloadDir, p)
	if err != nil {
		c.logger.Printf("session: %s frame download failed: %v", s.id, err)
		return
	}
	c.logger.Printf("session: %s frame saved to %s", s.id, path)
}

func downloadFrame(dir string, p prepare.Payload) (string, error) {
	data, err := p.Bytes()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, uuid.NewString()+p.Kind().Ext())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

var _ decode.Source = (*capture.Frame)(nil)
