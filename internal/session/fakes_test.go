package session

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scanstream/internal/capture"
	"scanstream/internal/decode"
	"scanstream/internal/prepare"
	"scanstream/internal/recognition"
)

type fakeTrack struct {
	mu        sync.Mutex
	warmup    int
	torch     bool
	torchErr  error
	torchOn   bool
	stops     atomic.Int32
	snapshots atomic.Int32
}

func (t *fakeTrack) Snapshot() (image.Image, error) {
	t.snapshots.Add(1)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.warmup > 0 {
		t.warmup--
		return image.NewRGBA(image.Rectangle{}), nil
	}
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(10, 10, color.Black)
	return img, nil
}

func (t *fakeTrack) Capabilities() capture.Capabilities {
	return capture.Capabilities{Torch: t.torch, Width: 64, Height: 48}
}

func (t *fakeTrack) ApplyTorch(enabled bool) <-chan error {
	done := make(chan error, 1)
	t.mu.Lock()
	if t.torchErr == nil {
		t.torchOn = enabled
	}
	t.mu.Unlock()
	done <- t.torchErr
	return done
}

func (t *fakeTrack) Stop() { t.stops.Add(1) }

func (t *fakeTrack) stopped() bool { return t.stops.Load() > 0 }

type fakeDevices struct {
	track   *fakeTrack
	devices []capture.DeviceInfo
	opened  atomic.Int32
	lastID  string
	openErr error

	// hold blocks Open until closed, or until ctx ends unless ignoreCancel
	// is set.
	hold         chan struct{}
	ignoreCancel bool
	opening      atomic.Bool
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{
		track: &fakeTrack{},
		devices: []capture.DeviceInfo{
			{ID: "front", Kind: capture.KindVideoInput, Facing: capture.FacingFront},
			{ID: "rear", Kind: capture.KindVideoInput},
		},
	}
}

func (d *fakeDevices) Devices(context.Context) ([]capture.DeviceInfo, error) {
	return d.devices, nil
}

func (d *fakeDevices) Open(ctx context.Context, c capture.Constraints) (capture.Track, error) {
	d.opened.Add(1)
	d.lastID = c.DeviceID
	if d.hold != nil {
		d.opening.Store(true)
		if d.ignoreCancel {
			<-d.hold
		} else {
			select {
			case <-d.hold:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.track, nil
}

type fakePresentation struct {
	container string
	inserts   atomic.Int32
	removes   atomic.Int32
}

func (p *fakePresentation) HasContainer(id string) bool { return id == p.container }

func (p *fakePresentation) InsertCaptureSurface(string) error {
	p.inserts.Add(1)
	return nil
}

func (p *fakePresentation) RemoveCaptureSurface() { p.removes.Add(1) }

// scriptedMatrix returns the scripted values in order, then nothing.
type scriptedMatrix struct {
	mu     sync.Mutex
	script []string
	calls  int
}

func (m *scriptedMatrix) DecodeMatrix(image.Image) (decode.Symbol, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls > len(m.script) {
		return decode.Symbol{}, false
	}
	text := m.script[m.calls-1]
	return decode.Symbol{Text: text, Format: "QR_CODE"}, text != ""
}

func (m *scriptedMatrix) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// scriptedRecognizer answers with one response per call, repeating the
// last one when the script runs out.
type scriptedRecognizer struct {
	mu        sync.Mutex
	responses []recognizerResponse
	calls     int
	release   chan struct{}
	inFlight  atomic.Int32
	maxFlight atomic.Int32
}

type recognizerResponse struct {
	list recognition.ResultList
	err  error
}

func (r *scriptedRecognizer) Scan(_ context.Context, _ prepare.Payload, _ recognition.ScanOptions) (recognition.ResultList, error) {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		old := r.maxFlight.Load()
		if n <= old || r.maxFlight.CompareAndSwap(old, n) {
			break
		}
	}
	if r.release != nil {
		<-r.release
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if len(r.responses) == 0 {
		return recognition.ResultList{}, nil
	}
	resp := r.responses[min(r.calls, len(r.responses))-1]
	return resp.list, resp.err
}

func (r *scriptedRecognizer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeIdentifier struct {
	list recognition.ResultList
	err  error
	typ  string
}

func (f *fakeIdentifier) Identify(_ context.Context, typ, _ string) (recognition.ResultList, error) {
	f.typ = typ
	return f.list, f.err
}

type fakeIdentity struct {
	user recognition.User
}

func (f fakeIdentity) Resolve(context.Context) (recognition.User, error) {
	return f.user, nil
}

func newController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	t.Cleanup(c.Stop)
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func waitSettled(t *testing.T, p *Pending) (Value, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := p.Wait(ctx)
	if ctx.Err() != nil {
		t.Fatalf("session did not settle")
	}
	return v, err
}

var qrFilter = decode.Filter{Method: "2d", Type: "qr_code"}

var irFilter = decode.Filter{Method: "ir", Type: "image"}
