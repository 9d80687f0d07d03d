package selection

import (
	"context"
	"fmt"

	"screen-grab/src/logutil"
	"screen-grab/src/region"
)

// EventKind identifies a pointer notification.
type EventKind int

const (
	EventMove EventKind = iota
	EventPrimary
	EventSecondary
	EventAbandon
)

func (k EventKind) String() string {
	switch k {
	case EventMove:
		return "move"
	case EventPrimary:
		return "primary"
	case EventSecondary:
		return "secondary"
	case EventAbandon:
		return "abandon"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a pointer notification delivered by a host.
type Event struct {
	Kind EventKind
	Pos  region.Point
}

// Apply dispatches ev and reports whether the selector state changed in a
// way a renderer should redraw.
func (s *Selector) Apply(ev Event) bool {
	if s.phase.Terminal() {
		return false
	}
	switch ev.Kind {
	case EventMove:
		s.PointerMove(ev.Pos)
	case EventPrimary:
		s.PrimaryClick(ev.Pos)
	case EventSecondary:
		if s.anchor == nil {
			return false
		}
		s.SecondaryClick()
	case EventAbandon:
		s.Abandon()
	default:
		return false
	}
	return true
}

// Run feeds events into s until the selection completes, is abandoned, the
// channel is closed or ctx is done. observe, when non-nil, receives a
// snapshot after every change.
//
// It returns the corners and true on completion. An abandoned selection
// (EventAbandon or closed channel) returns false and a nil error.
func (s *Selector) Run(ctx context.Context, events <-chan Event, observe func(State)) (region.Corners, bool, error) {
	log := logutil.WithComponent("selection")
	for {
		select {
		case <-ctx.Done():
			s.Abandon()
			return region.Corners{}, false, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				log.Debug().Msg("event source closed")
				s.Abandon()
				return region.Corners{}, false, nil
			}
			if s.Apply(ev) && observe != nil {
				observe(s.Snapshot())
			}
			switch s.phase {
			case Complete:
				corners, _ := s.Result()
				return corners, true, nil
			case Cancelled:
				return region.Corners{}, false, nil
			}
		}
	}
}
