package capture

import (
	"context"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	xdraw "golang.org/x/image/draw"

	"scanstream/internal/scanerr"
	"scanstream/pkg/imgutil"
)

// TorchMarker is the file whose presence in a device directory declares
// torch support.
const TorchMarker = "torch"

// DirectoryEnumerator serves recorded frames as video inputs. Every
// subdirectory of Root holding images is one device; image files directly
// under Root form a device named ".". A "-back" or "-front" suffix on the
// directory name sets the facing mode.
type DirectoryEnumerator struct {
	Root string
	// WarmupFrames is the number of empty snapshots a track returns before
	// its first real frame.
	WarmupFrames int
	// Loop restarts the sequence after the last frame instead of holding it.
	Loop bool
}

// Devices lists every directory under Root that holds at least one image.
func (e *DirectoryEnumerator) Devices(ctx context.Context) ([]DeviceInfo, error) {
	absRoot, err := filepath.Abs(e.Root)
	if err != nil {
		return nil, scanerr.Wrap(scanerr.KindDevice, "devices", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, scanerr.Wrap(scanerr.KindDevice, "devices", err)
	}
	if !info.IsDir() {
		return nil, scanerr.New(scanerr.KindDevice, "devices", fmt.Sprintf("%s is not a directory", e.Root))
	}

	var devices []DeviceInfo
	fsys := os.DirFS(absRoot)
	err = fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		frames, err := frameFiles(filepath.Join(absRoot, path))
		if err != nil {
			return err
		}
		if len(frames) == 0 {
			return nil
		}
		label := filepath.Base(filepath.Join(absRoot, path))
		devices = append(devices, DeviceInfo{
			ID:     path,
			Label:  label,
			Kind:   KindVideoInput,
			Facing: facingFromName(label),
		})
		return nil
	})
	if err != nil {
		return nil, scanerr.Wrap(scanerr.KindDevice, "devices", err)
	}
	return devices, nil
}

// Open starts a track on the device named by c.DeviceID, or on the
// preferred device when it is empty.
func (e *DirectoryEnumerator) Open(ctx context.Context, c Constraints) (Track, error) {
	id := c.DeviceID
	if id == "" {
		devices, err := e.Devices(ctx)
		if err != nil {
			return nil, err
		}
		d, ok := SelectDevice(devices)
		if !ok {
			return nil, scanerr.New(scanerr.KindDevice, "open", "no video input found")
		}
		id = d.ID
	}

	dir := filepath.Join(e.Root, filepath.FromSlash(id))
	paths, err := frameFiles(dir)
	if err != nil {
		return nil, scanerr.Wrap(scanerr.KindDevice, "open", err)
	}
	if len(paths) == 0 {
		return nil, scanerr.New(scanerr.KindDevice, "open", fmt.Sprintf("device %q has no frames", id))
	}

	frames, err := loadFrames(ctx, paths)
	if err != nil {
		return nil, scanerr.Wrap(scanerr.KindDevice, "open", err)
	}
	for i, img := range frames {
		frames[i] = fitWithin(img, c.IdealWidth, c.IdealHeight)
	}

	_, statErr := os.Stat(filepath.Join(dir, TorchMarker))
	return &dirTrack{
		frames: frames,
		warmup: e.WarmupFrames,
		loop:   e.Loop,
		torch:  statErr == nil,
	}, nil
}

func frameFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		kind, err := imgutil.SniffFile(path)
		if err != nil {
			return nil, err
		}
		if kind == imgutil.KindUnknown {
			continue
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

func facingFromName(label string) Facing {
	name := strings.ToLower(label)
	switch {
	case strings.HasSuffix(name, "-back"), strings.HasSuffix(name, "-rear"), strings.HasSuffix(name, "-environment"):
		return FacingBack
	case strings.HasSuffix(name, "-front"), strings.HasSuffix(name, "-user"):
		return FacingFront
	default:
		return FacingUnknown
	}
}

// fitWithin scales img down to fit a width×height box, the way a camera
// settles on the closest mode to the ideal resolution.
func fitWithin(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if width <= 0 || height <= 0 || (b.Dx() <= width && b.Dy() <= height) {
		return img
	}
	scale := min(float64(width)/float64(b.Dx()), float64(height)/float64(b.Dy()))
	w := max(1, int(float64(b.Dx())*scale))
	h := max(1, int(float64(b.Dy())*scale))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

type dirTrack struct {
	mu      sync.Mutex
	frames  []image.Image
	next    int
	warmup  int
	loop    bool
	torch   bool
	torchOn bool
	stopped bool
	size    image.Point
}

func (t *dirTrack) Snapshot() (image.Image, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return nil, fmt.Errorf("track stopped")
	}
	if t.warmup > 0 {
		t.warmup--
		return image.NewRGBA(image.Rectangle{}), nil
	}

	if t.next >= len(t.frames) {
		if t.loop {
			t.next = 0
		} else {
			t.next = len(t.frames) - 1
		}
	}
	img := t.frames[t.next]
	t.next++
	t.size = img.Bounds().Size()
	return img, nil
}

func (t *dirTrack) Capabilities() Capabilities {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Capabilities{Torch: t.torch, Width: t.size.X, Height: t.size.Y}
}

func (t *dirTrack) ApplyTorch(enabled bool) <-chan error {
	done := make(chan error, 1)
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case t.stopped:
		done <- fmt.Errorf("track stopped")
	case !t.torch:
		done <- fmt.Errorf("torch not supported by this device")
	default:
		t.torchOn = enabled
		done <- nil
	}
	close(done)
	return done
}

func (t *dirTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

func (t *dirTrack) torchState() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.torchOn
}
