package overlay

import (
	"context"
	"errors"
	"image"
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	xdraw "golang.org/x/image/draw"

	"screen-grab/src/logutil"
	"screen-grab/src/region"
	"screen-grab/src/screenshot"
	"screen-grab/src/selection"
)

// ErrOverlayUsed is returned when a second fyne overlay is requested in the
// same process; a fyne app can only run once.
var ErrOverlayUsed = errors.New("fyne overlay already used in this process")

var fyneStarted atomic.Bool

// FyneSelector shows a full-screen window over a frozen screenshot and lets
// the user mark a region with two clicks. Must be called from the main
// goroutine.
type FyneSelector struct {
	// Background returns the frozen desktop and its bounds in screen
	// coordinates. Defaults to screenshot.CaptureScreen.
	Background func() (*image.RGBA, region.Region, error)
}

func NewFyneSelector() *FyneSelector {
	return &FyneSelector{Background: screenshot.CaptureScreen}
}

func (f *FyneSelector) Select(ctx context.Context, ratio region.RatioConstraint) (region.Corners, bool, error) {
	sel, err := selection.New(ratio)
	if err != nil {
		return region.Corners{}, false, err
	}
	if fyneStarted.Load() {
		return region.Corners{}, false, ErrOverlayUsed
	}

	bg, screen, err := f.Background()
	if err != nil {
		return region.Corners{}, false, err
	}
	if !fyneStarted.CompareAndSwap(false, true) {
		return region.Corners{}, false, ErrOverlayUsed
	}

	log := logutil.WithComponent("overlay")
	log.Info().Stringer("screen", screen).Bool("ratio", ratio.Enabled).Msg("showing overlay")

	a := app.New()
	w := a.NewWindow("screen-grab")
	w.SetPadded(false)
	w.SetFullScreen(true)

	surface := newSelectionSurface(sel, bg, screen, func() { a.Quit() })
	w.SetContent(surface)
	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if ev.Name == fyne.KeyEscape {
			sel.Abandon()
			a.Quit()
		}
	})
	w.SetOnClosed(sel.Abandon)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			fyne.Do(func() {
				sel.Abandon()
				a.Quit()
			})
		case <-done:
		}
	}()

	w.ShowAndRun()

	if err := ctx.Err(); err != nil {
		return region.Corners{}, false, err
	}
	corners, ok := sel.Result()
	if !ok {
		log.Info().Msg("overlay selection cancelled")
		return region.Corners{}, false, nil
	}
	log.Info().
		Stringer("first", corners.First).
		Stringer("second", corners.Second).
		Msg("overlay selection complete")
	return corners, true, nil
}

// selectionSurface is the full-window widget that receives pointer events.
type selectionSurface struct {
	widget.BaseWidget

	sel    *selection.Selector
	bg     image.Image
	screen region.Region
	raster *fynecanvas.Raster
	done   func()
}

var (
	_ fyne.Tappable          = (*selectionSurface)(nil)
	_ fyne.SecondaryTappable = (*selectionSurface)(nil)
	_ desktop.Hoverable      = (*selectionSurface)(nil)
)

func newSelectionSurface(sel *selection.Selector, bg image.Image, screen region.Region, done func()) *selectionSurface {
	s := &selectionSurface{sel: sel, bg: bg, screen: screen, done: done}
	s.raster = fynecanvas.NewRaster(s.draw)
	s.ExtendBaseWidget(s)
	return s
}

func (s *selectionSurface) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(s.raster)
}

func (s *selectionSurface) draw(w, h int) image.Image {
	frame := Compose(s.bg, Frame(s.sel.Snapshot(), s.screen))
	if w == frame.Bounds().Dx() && h == frame.Bounds().Dy() {
		return frame
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), frame, frame.Bounds(), xdraw.Src, nil)
	return dst
}

// toScreen maps a widget position onto screen pixels. The widget always
// covers the captured screen, so this is a plain proportional mapping.
func (s *selectionSurface) toScreen(pos fyne.Position) region.Point {
	size := s.Size()
	return scalePoint(pos.X, pos.Y, size.Width, size.Height, s.screen)
}

func scalePoint(x, y, w, h float32, screen region.Region) region.Point {
	if w <= 0 || h <= 0 {
		return region.Point{X: screen.X, Y: screen.Y}
	}
	return region.Point{
		X: screen.X + int(x*float32(screen.Width)/w),
		Y: screen.Y + int(y*float32(screen.Height)/h),
	}
}

func (s *selectionSurface) Tapped(ev *fyne.PointEvent) {
	s.sel.PrimaryClick(s.toScreen(ev.Position))
	if s.sel.IsComplete() {
		s.done()
		return
	}
	s.raster.Refresh()
}

func (s *selectionSurface) TappedSecondary(*fyne.PointEvent) {
	s.sel.SecondaryClick()
	s.raster.Refresh()
}

func (s *selectionSurface) MouseIn(ev *desktop.MouseEvent) { s.MouseMoved(ev) }

func (s *selectionSurface) MouseMoved(ev *desktop.MouseEvent) {
	s.sel.PointerMove(s.toScreen(ev.Position))
	s.raster.Refresh()
}

func (s *selectionSurface) MouseOut() {}
