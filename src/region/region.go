// Package region holds the screen geometry used by the selector: points,
// normalised rectangles, the aspect-ratio constraint and the derivation of
// the marked area from an anchor and a cursor position.
package region

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrInvalidRatio is returned when a ratio constraint is enabled with a ratio
// that is not a positive finite number.
var ErrInvalidRatio = errors.New("invalid ratio")

// Point is a screen coordinate.
type Point struct {
	X int
	Y int
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Region is an axis-aligned screen rectangle. X, Y is always the minimum
// corner and Width, Height are never negative.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Between returns the bounding region of two points.
func Between(p1, p2 Point) Region {
	return Region{
		X:      minInt(p1.X, p2.X),
		Y:      minInt(p1.Y, p2.Y),
		Width:  absInt(p1.X - p2.X),
		Height: absInt(p1.Y - p2.Y),
	}
}

// FromRect converts an image.Rectangle into a Region.
func FromRect(r image.Rectangle) Region {
	r = r.Canon()
	return Region{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Empty reports whether the region has zero area.
func (r Region) Empty() bool {
	return r.Width == 0 || r.Height == 0
}

func (r Region) TopLeft() Point {
	return Point{X: r.X, Y: r.Y}
}

// BottomRight is exclusive: X+Width, Y+Height.
func (r Region) BottomRight() Point {
	return Point{X: r.X + r.Width, Y: r.Y + r.Height}
}

func (r Region) String() string {
	return fmt.Sprintf("{x:%d y:%d w:%d h:%d}", r.X, r.Y, r.Width, r.Height)
}

// RatioConstraint fixes the width of a derived region to Height*Ratio.
type RatioConstraint struct {
	Enabled bool
	Ratio   float64
}

// MaxExtent caps a derived width so that huge but finite ratios still give a
// valid region.
const MaxExtent = math.MaxInt32

// Unconstrained is the zero constraint with the default ratio of 1.
var Unconstrained = RatioConstraint{Ratio: 1}

// Validate rejects an enabled constraint whose ratio is zero, negative, NaN
// or infinite. A disabled constraint is always valid.
func (c RatioConstraint) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Ratio <= 0 || math.IsNaN(c.Ratio) || math.IsInf(c.Ratio, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidRatio, c.Ratio)
	}
	return nil
}

// Derive computes the marked region between the anchor and the cursor.
//
// Without a constraint this is the bounding rectangle of both points. With a
// constraint the height of the drag is kept, the width becomes
// round(height*ratio) saturated at MaxExtent, and the rectangle stays pinned at the anchor while
// growing toward the side of the cursor.
func Derive(anchor, cursor Point, c RatioConstraint) Region {
	area := Between(anchor, cursor)
	if !c.Enabled {
		return area
	}

	w := math.Round(float64(area.Height) * c.Ratio)
	if w > MaxExtent {
		w = MaxExtent
	}
	area.Width = int(w)

	area.X = anchor.X - area.Width
	if cursor.X > anchor.X {
		area.X = anchor.X
	}
	area.Y = anchor.Y - area.Height
	if cursor.Y > anchor.Y {
		area.Y = anchor.Y
	}
	return area
}

// Corners is the result of a finished selection.
//
// First is the corner of the marked region on the cursor side and Second the
// corner pinned at the anchor. For the usual top-left to bottom-right drag
// First is therefore the bottom-right corner and Second the top-left one, the
// inverse of what the older TopCorner/BottomCorner names suggested. Do not
// assume First <= Second on either axis; use Bounds.
type Corners struct {
	First  Point
	Second Point
}

// CornersOf returns the corners of area for a drag from anchor toward cursor.
func CornersOf(area Region, anchor, cursor Point) Corners {
	tl, br := area.TopLeft(), area.BottomRight()
	c := Corners{First: tl, Second: br}
	if cursor.X > anchor.X {
		c.First.X, c.Second.X = br.X, tl.X
	}
	if cursor.Y > anchor.Y {
		c.First.Y, c.Second.Y = br.Y, tl.Y
	}
	return c
}

// Bounds normalises the two corners into a region: the origin is the
// componentwise minimum and the size the absolute difference.
func (c Corners) Bounds() Region {
	return Between(c.First, c.Second)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
