package screenshot

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"screen-grab/src/logutil"
	"screen-grab/src/region"
)

var (
	// ErrNoDisplay is returned when no active display can be found.
	ErrNoDisplay = errors.New("no active displays found")
	// ErrEmptyRegion is returned for zero-area capture requests. Zero-area
	// regions are treated as a capture failure, never as an empty image.
	ErrEmptyRegion = errors.New("empty capture region")
)

// Capturer grabs the pixels inside a screen region.
type Capturer interface {
	CaptureRegion(ctx context.Context, r region.Region) (*image.RGBA, error)
}

// ScreenCapturer captures from the live desktop.
type ScreenCapturer struct {
	// grab is swapped in tests.
	grab func(image.Rectangle) (*image.RGBA, error)
}

func NewScreenCapturer() *ScreenCapturer {
	return &ScreenCapturer{grab: screenshot.CaptureRect}
}

// CaptureRegion captures a specific region of the screen.
func (c *ScreenCapturer) CaptureRegion(ctx context.Context, r region.Region) (*image.RGBA, error) {
	if r.Width <= 0 || r.Height <= 0 {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrEmptyRegion, r.Width, r.Height)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	grab := c.grab
	if grab == nil {
		grab = screenshot.CaptureRect
	}
	img, err := grab(r.Rect())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region %s: %w", r, err)
	}
	logutil.WithComponent("screenshot").Debug().
		Stringer("region", r).
		Int("bytes", len(img.Pix)).
		Msg("region captured")
	return img, nil
}

// VirtualBounds returns the union of all active display bounds.
func VirtualBounds() (region.Region, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return region.Region{}, ErrNoDisplay
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return region.FromRect(union), nil
}

// CaptureScreen captures the entire virtual screen across all active displays.
func CaptureScreen() (*image.RGBA, region.Region, error) {
	bounds, err := VirtualBounds()
	if err != nil {
		return nil, region.Region{}, err
	}
	img, err := screenshot.CaptureRect(bounds.Rect())
	if err != nil {
		return nil, region.Region{}, fmt.Errorf("failed to capture screen: %w", err)
	}
	return img, bounds, nil
}
