package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"

	"screen-grab/src/logutil"
	"screen-grab/src/overlay"
	"screen-grab/src/region"
	"screen-grab/src/screenshot"
	"screen-grab/src/selection"
	"screen-grab/src/storage"
)

var (
	ErrCaptureUnavailable = errors.New("capture unavailable")
	ErrNoCaptureAvailable = errors.New("no capture available")
	ErrPersistenceFailure = errors.New("failed to persist capture")
)

// Capture is one grabbed region.
type Capture struct {
	ID      uuid.UUID
	Bounds  region.Region
	Image   *image.RGBA
	TakenAt time.Time
}

func (c *Capture) Width() int  { return c.Bounds.Width }
func (c *Capture) Height() int { return c.Bounds.Height }

type Options struct {
	Selector overlay.Selector
	Capturer screenshot.Capturer
	Saver    storage.Saver
	Ratio    region.RatioConstraint
}

// Controller drives one selection host, the capture collaborator and the
// persistence collaborator, and remembers the most recent capture.
type Controller struct {
	selector overlay.Selector
	capturer screenshot.Capturer
	saver    storage.Saver

	mu        sync.Mutex
	ratio     region.RatioConstraint
	last      *Capture
	selecting bool

	now func() time.Time
}

func NewController(opts Options) (*Controller, error) {
	ratio := opts.Ratio
	if ratio.Ratio == 0 && !ratio.Enabled {
		ratio = region.Unconstrained
	}
	if err := ratio.Validate(); err != nil {
		return nil, err
	}
	saver := opts.Saver
	if saver == nil {
		saver = storage.FileSaver{}
	}
	return &Controller{
		selector: opts.Selector,
		capturer: opts.Capturer,
		saver:    saver,
		ratio:    ratio,
		now:      time.Now,
	}, nil
}

// SetRatio changes the constraint used by the next selection.
func (c *Controller) SetRatio(enabled bool, ratio float64) error {
	rc := region.RatioConstraint{Enabled: enabled, Ratio: ratio}
	if err := rc.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.ratio = rc
	c.mu.Unlock()
	return nil
}

func (c *Controller) Ratio() region.RatioConstraint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ratio
}

// RunInteractiveSelection hands control to the selection host until the
// user completes or abandons a selection. ok is false when abandoned.
func (c *Controller) RunInteractiveSelection(ctx context.Context) (region.Corners, bool, error) {
	if c.selector == nil {
		return region.Corners{}, false, errors.New("no selection host configured")
	}

	c.mu.Lock()
	if c.selecting {
		c.mu.Unlock()
		return region.Corners{}, false, selection.ErrSessionActive
	}
	c.selecting = true
	ratio := c.ratio
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.selecting = false
		c.mu.Unlock()
	}()

	return c.selector.Select(ctx, ratio)
}

// Capture grabs the pixels inside the rectangle spanned by corners and
// records it as the last capture. Zero-area rectangles are rejected without
// asking the capture collaborator.
func (c *Controller) Capture(ctx context.Context, corners region.Corners) (*Capture, error) {
	bounds := corners.Bounds()
	if bounds.Empty() {
		return nil, fmt.Errorf("%w: %w", ErrCaptureUnavailable, screenshot.ErrEmptyRegion)
	}
	if c.capturer == nil {
		return nil, fmt.Errorf("%w: no capture collaborator", ErrCaptureUnavailable)
	}

	img, err := c.capturer.CaptureRegion(ctx, bounds)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureUnavailable, err)
	}
	if img == nil {
		return nil, fmt.Errorf("%w: empty image", ErrCaptureUnavailable)
	}

	capture := &Capture{
		ID:      uuid.New(),
		Bounds:  bounds,
		Image:   img,
		TakenAt: c.now(),
	}

	c.mu.Lock()
	c.last = capture
	c.mu.Unlock()

	logutil.WithComponent("session").Info().
		Str("id", capture.ID.String()).
		Stringer("bounds", bounds).
		Msg("region captured")
	return capture, nil
}

// Save writes the last capture to path.
func (c *Controller) Save(path string) error {
	last, ok := c.Last()
	if !ok {
		return ErrNoCaptureAvailable
	}
	if err := c.saver.Save(last.Image, path); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	return nil
}

func (c *Controller) Last() (*Capture, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.last != nil
}

// Preview returns the last capture scaled to fit maxW x maxH, keeping the
// aspect ratio.
func (c *Controller) Preview(maxW, maxH int) (*image.RGBA, error) {
	last, ok := c.Last()
	if !ok {
		return nil, ErrNoCaptureAvailable
	}
	if maxW <= 0 || maxH <= 0 {
		return nil, fmt.Errorf("invalid preview size %dx%d", maxW, maxH)
	}
	w, h := fitSize(last.Image.Bounds().Dx(), last.Image.Bounds().Dy(), maxW, maxH)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), last.Image, last.Image.Bounds(), xdraw.Src, nil)
	return dst, nil
}

func fitSize(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return 1, 1
	}
	scale := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	fw := int(math.Round(float64(w) * scale))
	fh := int(math.Round(float64(h) * scale))
	if fw < 1 {
		fw = 1
	}
	if fh < 1 {
		fh = 1
	}
	return fw, fh
}
