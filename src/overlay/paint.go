package overlay

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"screen-grab/src/region"
	"screen-grab/src/selection"
)

var (
	UnmarkedColor = color.NRGBA{R: 0, G: 0, B: 0, A: 100}
	MarkedColor   = color.NRGBA{R: 0, G: 0, B: 0, A: 1}
	LineColor     = color.NRGBA{R: 255, G: 0, B: 0, A: 200}
)

// LineWidth is the guide line thickness in pixels.
const LineWidth = 2

// Line is an axis-aligned guide line in overlay-local pixels.
type Line struct {
	From region.Point
	To   region.Point
}

// Rect returns the pixels covered by the line at the given thickness.
func (l Line) Rect(width int) image.Rectangle {
	r := region.Between(l.From, l.To).Rect()
	half := width / 2
	if r.Dx() == 0 {
		r.Min.X -= half
		r.Max.X = r.Min.X + width
	}
	if r.Dy() == 0 {
		r.Min.Y -= half
		r.Max.Y = r.Min.Y + width
	}
	return r
}

// Scene is everything a renderer needs for one frame, in coordinates local
// to the overlay (0,0 is the overlay's top-left pixel).
type Scene struct {
	Size   image.Point
	Shaded []region.Region
	Marked *region.Region
	Lines  []Line
}

// Frame derives the scene for a selection state on a screen whose bounds
// are given in screen coordinates.
//
// Without an anchor the whole screen is shaded and a cross-hair follows the
// cursor. Once anchored the marked region stays clear, the rest is shaded,
// and guide lines run from its top-left corner to the top and left edges and
// from its bottom-right corner to the right and bottom edges.
func Frame(st selection.State, screen region.Region) Scene {
	sc := Scene{Size: image.Pt(screen.Width, screen.Height)}
	full := region.Region{Width: screen.Width, Height: screen.Height}

	if st.Current == nil {
		sc.Shaded = []region.Region{full}
		if st.HasCursor && !st.Phase.Terminal() {
			c := toLocal(st.Cursor, screen)
			sc.Lines = []Line{
				{From: region.Point{X: 0, Y: c.Y}, To: region.Point{X: screen.Width, Y: c.Y}},
				{From: region.Point{X: c.X, Y: 0}, To: region.Point{X: c.X, Y: screen.Height}},
			}
		}
		return sc
	}

	m := clip(region.Region{
		X:      st.Current.X - screen.X,
		Y:      st.Current.Y - screen.Y,
		Width:  st.Current.Width,
		Height: st.Current.Height,
	}, full)
	sc.Marked = &m

	top, bottom := m.Y, m.Y+m.Height
	left, right := m.X, m.X+m.Width
	for _, band := range []region.Region{
		{X: 0, Y: 0, Width: screen.Width, Height: top},
		{X: 0, Y: bottom, Width: screen.Width, Height: screen.Height - bottom},
		{X: 0, Y: top, Width: left, Height: m.Height},
		{X: right, Y: top, Width: screen.Width - right, Height: m.Height},
	} {
		if !band.Empty() {
			sc.Shaded = append(sc.Shaded, band)
		}
	}

	sc.Lines = []Line{
		{From: region.Point{X: 0, Y: top}, To: region.Point{X: left, Y: top}},
		{From: region.Point{X: left, Y: 0}, To: region.Point{X: left, Y: top}},
		{From: region.Point{X: screen.Width, Y: bottom}, To: region.Point{X: right, Y: bottom}},
		{From: region.Point{X: right, Y: screen.Height}, To: region.Point{X: right, Y: bottom}},
	}
	return sc
}

// Compose paints bg and the scene into a new image of the scene's size.
func Compose(bg image.Image, sc Scene) *image.RGBA {
	dst := image.NewRGBA(image.Rectangle{Max: sc.Size})
	if bg != nil {
		xdraw.Draw(dst, dst.Bounds(), bg, bg.Bounds().Min, xdraw.Src)
	}

	shade := image.NewUniform(UnmarkedColor)
	for _, r := range sc.Shaded {
		xdraw.Draw(dst, r.Rect(), shade, image.Point{}, xdraw.Over)
	}
	if sc.Marked != nil {
		xdraw.Draw(dst, sc.Marked.Rect(), image.NewUniform(MarkedColor), image.Point{}, xdraw.Over)
	}
	line := image.NewUniform(LineColor)
	for _, l := range sc.Lines {
		xdraw.Draw(dst, l.Rect(LineWidth).Intersect(dst.Bounds()), line, image.Point{}, xdraw.Over)
	}
	return dst
}

func toLocal(p region.Point, screen region.Region) region.Point {
	return region.Point{X: p.X - screen.X, Y: p.Y - screen.Y}
}

// clip clamps r into bounds, keeping zero-area regions at their position.
func clip(r, bounds region.Region) region.Region {
	x0 := clampInt(r.X, bounds.X, bounds.X+bounds.Width)
	y0 := clampInt(r.Y, bounds.Y, bounds.Y+bounds.Height)
	x1 := clampInt(r.X+r.Width, bounds.X, bounds.X+bounds.Width)
	y1 := clampInt(r.Y+r.Height, bounds.Y, bounds.Y+bounds.Height)
	return region.Region{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
