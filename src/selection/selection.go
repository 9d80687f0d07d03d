// Package selection implements the interactive region selector: a
// synchronous state machine fed with pointer events by whatever host owns the
// event loop (an overlay window, a global input hook, a test).
//
// A selection starts Idle. The first primary click sets the anchor
// (Anchoring), the second primary click finalises the region (Complete).
// A secondary click while anchoring drops the anchor and returns to Idle.
// Complete and Cancelled are terminal; a new selection needs a new Selector.
package selection

import (
	"errors"
	"fmt"

	"screen-grab/src/logutil"
	"screen-grab/src/region"
)

// ErrSessionActive is returned when the ratio constraint is changed after the
// first anchor click.
var ErrSessionActive = errors.New("selection already in progress")

// Phase is the lifecycle state of a selection.
type Phase int

const (
	Idle Phase = iota
	Anchoring
	Complete
	Cancelled
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Anchoring:
		return "anchoring"
	case Complete:
		return "complete"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether no further events are processed in this phase.
func (p Phase) Terminal() bool {
	return p == Complete || p == Cancelled
}

// State is a copy of the selector state, used by renderers.
type State struct {
	Phase     Phase
	Anchor    *region.Point
	Cursor    region.Point
	Current   *region.Region
	Ratio     region.RatioConstraint
	Result    *region.Corners
	HasCursor bool
}

// Selector owns one selection session. It is not safe for concurrent use:
// events must be delivered from a single goroutine.
type Selector struct {
	phase     Phase
	anchor    *region.Point
	cursor    region.Point
	hasCursor bool
	current   *region.Region
	ratio     region.RatioConstraint
	result    *region.Corners
}

// New creates an idle selector with the given ratio constraint.
func New(ratio region.RatioConstraint) (*Selector, error) {
	if err := ratio.Validate(); err != nil {
		return nil, err
	}
	return &Selector{ratio: ratio}, nil
}

// ConfigureRatio sets the ratio constraint. It is only allowed before the
// first anchor click.
func (s *Selector) ConfigureRatio(enabled bool, ratio float64) error {
	if s.phase != Idle || s.anchor != nil {
		return fmt.Errorf("%w: cannot change ratio while %s", ErrSessionActive, s.phase)
	}
	c := region.RatioConstraint{Enabled: enabled, Ratio: ratio}
	if err := c.Validate(); err != nil {
		return err
	}
	s.ratio = c
	return nil
}

// PointerMove records the cursor position and, once anchored, recomputes
// the live region.
func (s *Selector) PointerMove(p region.Point) {
	if s.phase.Terminal() {
		return
	}
	s.cursor = p
	s.hasCursor = true
	if s.anchor != nil {
		area := region.Derive(*s.anchor, p, s.ratio)
		s.current = &area
	}
}

// PrimaryClick sets the anchor on the first click and finalises the
// selection on the second one.
func (s *Selector) PrimaryClick(p region.Point) {
	if s.phase.Terminal() {
		return
	}
	s.cursor = p
	s.hasCursor = true

	if s.anchor == nil {
		anchor := p
		area := region.Derive(anchor, p, s.ratio)
		s.anchor = &anchor
		s.current = &area
		s.phase = Anchoring
		logutil.WithComponent("selection").Debug().
			Stringer("anchor", anchor).
			Msg("anchor set")
		return
	}

	area := region.Derive(*s.anchor, p, s.ratio)
	corners := region.CornersOf(area, *s.anchor, p)
	s.current = &area
	s.result = &corners
	s.phase = Complete
	logutil.WithComponent("selection").Debug().
		Stringer("region", area).
		Stringer("first", corners.First).
		Stringer("second", corners.Second).
		Msg("selection complete")
}

// SecondaryClick drops the anchor and returns to Idle. Without an anchor it
// does nothing.
func (s *Selector) SecondaryClick() {
	if s.phase.Terminal() || s.anchor == nil {
		return
	}
	s.anchor = nil
	s.current = nil
	s.phase = Idle
	logutil.WithComponent("selection").Debug().Msg("anchor reset")
}

// Abandon ends the session without a result.
func (s *Selector) Abandon() {
	if s.phase.Terminal() {
		return
	}
	s.anchor = nil
	s.current = nil
	s.phase = Cancelled
	logutil.WithComponent("selection").Debug().Msg("selection abandoned")
}

func (s *Selector) Phase() Phase { return s.phase }

func (s *Selector) IsComplete() bool { return s.phase == Complete }

// Result returns the corners of a completed selection.
func (s *Selector) Result() (region.Corners, bool) {
	if s.result == nil {
		return region.Corners{}, false
	}
	return *s.result, true
}

func (s *Selector) Anchor() (region.Point, bool) {
	if s.anchor == nil {
		return region.Point{}, false
	}
	return *s.anchor, true
}

func (s *Selector) Cursor() region.Point { return s.cursor }

// Current returns the live region between anchor and cursor.
func (s *Selector) Current() (region.Region, bool) {
	if s.current == nil {
		return region.Region{}, false
	}
	return *s.current, true
}

func (s *Selector) Ratio() region.RatioConstraint { return s.ratio }

// Snapshot copies the state so it can be read outside the event goroutine.
func (s *Selector) Snapshot() State {
	st := State{
		Phase:     s.phase,
		Cursor:    s.cursor,
		HasCursor: s.hasCursor,
		Ratio:     s.ratio,
	}
	if s.anchor != nil {
		a := *s.anchor
		st.Anchor = &a
	}
	if s.current != nil {
		c := *s.current
		st.Current = &c
	}
	if s.result != nil {
		r := *s.result
		st.Result = &r
	}
	return st
}
