package overlay

import (
	"context"

	hook "github.com/robotn/gohook"

	"screen-grab/src/inputhook"
	"screen-grab/src/logutil"
	"screen-grab/src/region"
	"screen-grab/src/selection"
)

const (
	mouseButtonLeft  = 1
	mouseButtonRight = 2
	// keycodeEscape is the uiohook virtual code of the Escape key.
	keycodeEscape = 0x0001
)

// HookSelector reads pointer events from a global input hook instead of an
// overlay window. Coordinates are screen coordinates as reported by the hook.
type HookSelector struct {
	hub *inputhook.Hub

	// Observe, when set, receives every state change.
	Observe func(selection.State)
}

func NewHookSelector() *HookSelector {
	return &HookSelector{hub: inputhook.Default}
}

// NewHookSelectorWithHub reads events from hub instead of the process-wide
// default.
func NewHookSelectorWithHub(hub *inputhook.Hub) *HookSelector {
	return &HookSelector{hub: hub}
}

func (h *HookSelector) Select(ctx context.Context, ratio region.RatioConstraint) (region.Corners, bool, error) {
	sel, err := selection.New(ratio)
	if err != nil {
		return region.Corners{}, false, err
	}

	log := logutil.WithComponent("overlay")
	log.Info().Bool("ratio", ratio.Enabled).Float64("value", ratio.Ratio).Msg("starting hook selection")

	raw, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	events := make(chan selection.Event)
	pumpCtx, stop := context.WithCancel(ctx)
	defer stop()
	go pumpHookEvents(pumpCtx, raw, events)

	corners, ok, err := sel.Run(ctx, events, h.Observe)
	if err != nil {
		return region.Corners{}, false, err
	}
	if !ok {
		log.Info().Msg("hook selection cancelled")
		return region.Corners{}, false, nil
	}
	log.Info().
		Stringer("first", corners.First).
		Stringer("second", corners.Second).
		Msg("hook selection complete")
	return corners, true, nil
}

// pumpHookEvents translates raw hook events until ctx is done or the hook
// channel closes, then closes out.
func pumpHookEvents(ctx context.Context, raw <-chan hook.Event, out chan<- selection.Event) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-raw:
			if !ok {
				return
			}
			sev, ok := translateHookEvent(ev)
			if !ok {
				continue
			}
			select {
			case out <- sev:
			case <-ctx.Done():
				return
			}
		}
	}
}

// translateHookEvent maps a gohook event onto a selection event.
func translateHookEvent(ev hook.Event) (selection.Event, bool) {
	pos := region.Point{X: int(ev.X), Y: int(ev.Y)}
	switch ev.Kind {
	case hook.MouseMove, hook.MouseDrag:
		return selection.Event{Kind: selection.EventMove, Pos: pos}, true
	case hook.MouseDown:
		switch ev.Button {
		case mouseButtonLeft:
			return selection.Event{Kind: selection.EventPrimary, Pos: pos}, true
		case mouseButtonRight:
			return selection.Event{Kind: selection.EventSecondary, Pos: pos}, true
		}
	case hook.KeyDown, hook.KeyHold:
		if ev.Keycode == keycodeEscape {
			return selection.Event{Kind: selection.EventAbandon}, true
		}
	}
	return selection.Event{}, false
}
