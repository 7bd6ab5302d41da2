package session

import (
	"strings"
	"time"

	"scanstream/internal/capture"
	"scanstream/internal/decode"
	"scanstream/internal/prepare"
	"scanstream/internal/recognition"
	"scanstream/internal/scanerr"
	"scanstream/pkg/imgutil"
)

const (
	// FastInterval paces purely local strategies.
	FastInterval = 300 * time.Millisecond
	// SlowInterval paces strategies that call the recognition service.
	SlowInterval = 2000 * time.Millisecond

	DefaultMinRemoteInterval = 1500 * time.Millisecond
	DefaultDebounceWindow    = 1500 * time.Millisecond
	DefaultIdealWidth        = 1920
	DefaultIdealHeight       = 1080
)

// Options configures one scan session.
type Options struct {
	Filter decode.Filter
	// Interval overrides the computed gap between attempts.
	Interval time.Duration
	// AutoStop ends the session on the first value. Nil means true.
	AutoStop    *bool
	UseDiscover bool
	UseZxing    bool

	ImageConversion prepare.Conversion

	ContainerID string
	DeviceID    string
	IdealWidth  int
	IdealHeight int

	// DownloadDir, when set, receives every frame sent to the recognition
	// service as <uuid>.<ext>.
	DownloadDir string

	// Offline skips the identify lookup of locally decoded values.
	Offline             bool
	CreateAnonymousUser bool

	// OnScanValue receives every value in continuous mode. It runs on the
	// scheduler goroutine and may call Stop.
	OnScanValue         func(Value)
	OnWatermarkDetected func(decode.Detection)
	OnScanFrameData     func(prepare.Payload)
}

// Bool returns a pointer to b, for Options.AutoStop.
func Bool(b bool) *bool {
	return &b
}

// Value is what a session produced.
type Value struct {
	// Text is set for locally decoded values.
	Text string
	// Matches is set for values from the recognition service.
	Matches recognition.ResultList
	Filter  decode.Filter
	Frame   prepare.Payload
}

// Remote reports whether the value came from the recognition service.
func (v Value) Remote() bool {
	return v.Matches != nil
}

func (v Value) String() string {
	if v.Remote() {
		return v.Matches.FirstValue()
	}
	return v.Text
}

type resolvedOptions struct {
	filter      decode.Filter
	interval    time.Duration
	autoStop    bool
	useDiscover bool
	useZxing    bool
	conversion  prepare.Conversion
	containerID string
	constraints capture.Constraints
	downloadDir string
	offline     bool
	createUser  bool

	onScanValue func(Value)
	onWatermark func(decode.Detection)
	onFrameData func(prepare.Payload)
}

// resolve validates o and fills every default. The interval is set later,
// once the strategy is known.
func (o Options) resolve() (resolvedOptions, error) {
	filter := o.Filter.Normalize()
	if err := filter.Validate(); err != nil {
		return resolvedOptions{}, err
	}

	conv := o.ImageConversion.WithDefaults(prepare.DefaultStream)
	if err := imgutil.ValidateCropPercent(conv.CropPercent); err != nil {
		return resolvedOptions{}, err
	}
	if err := conv.Validate(); err != nil {
		return resolvedOptions{}, err
	}

	if o.Interval < 0 {
		return resolvedOptions{}, scanerr.Config("options", "interval must not be negative")
	}

	autoStop := true
	if o.AutoStop != nil {
		autoStop = *o.AutoStop
	}
	if !autoStop && o.OnScanValue == nil {
		return resolvedOptions{}, scanerr.Config("options", "continuous scanning requires an OnScanValue callback")
	}

	width, height := o.IdealWidth, o.IdealHeight
	if width <= 0 {
		width = DefaultIdealWidth
	}
	if height <= 0 {
		height = DefaultIdealHeight
	}

	return resolvedOptions{
		filter:      filter,
		interval:    o.Interval,
		autoStop:    autoStop,
		useDiscover: o.UseDiscover,
		useZxing:    o.UseZxing,
		conversion:  conv,
		containerID: strings.TrimSpace(o.ContainerID),
		constraints: capture.Constraints{
			DeviceID:    o.DeviceID,
			Facing:      capture.FacingBack,
			IdealWidth:  width,
			IdealHeight: height,
		},
		downloadDir: o.DownloadDir,
		offline:     o.Offline,
		createUser:  o.CreateAnonymousUser,
		onScanValue: o.OnScanValue,
		onWatermark: o.OnWatermarkDetected,
		onFrameData: o.OnScanFrameData,
	}, nil
}

// samplingInterval is the explicit override, the fast interval for local
// strategies, or the slow interval floored at minRemote.
func samplingInterval(override time.Duration, local bool, minRemote time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if local {
		return FastInterval
	}
	return max(SlowInterval, minRemote)
}
