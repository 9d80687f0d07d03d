// Package overlay hosts interactive selections: it owns the event source,
// forwards pointer events to a selection.Selector and renders its state.
package overlay

import (
	"context"
	"fmt"
	"strings"

	"screen-grab/src/region"
)

// Selector defines a synchronous region-selection API owned by the caller's
// event goroutine. Returns (corners, ok, error); ok is false when the user
// backed out, in which case corners is undefined and err is nil.
type Selector interface {
	Select(ctx context.Context, ratio region.RatioConstraint) (region.Corners, bool, error)
}

// Kind names a selector backend.
type Kind string

const (
	KindFyne Kind = "fyne"
	KindHook Kind = "hook"
)

// ParseKind resolves a backend name; empty means fyne.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "fyne", "overlay":
		return KindFyne, nil
	case "hook", "gohook":
		return KindHook, nil
	default:
		return "", fmt.Errorf("unknown selector %q (want fyne or hook)", name)
	}
}

// NewSelector returns the backend for kind.
func NewSelector(kind Kind) (Selector, error) {
	switch kind {
	case KindFyne:
		return NewFyneSelector(), nil
	case KindHook:
		return NewHookSelector(), nil
	default:
		return nil, fmt.Errorf("unknown selector %q", kind)
	}
}
