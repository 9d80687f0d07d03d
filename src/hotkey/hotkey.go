package hotkey

import (
	"context"
	"fmt"
	"strings"

	hook "github.com/robotn/gohook"

	"screen-grab/src/inputhook"
	"screen-grab/src/logutil"
)

// Listen registers combo (e.g. "Ctrl+Alt+G") on the shared input hook and
// calls callback each time the whole combination is held. It returns once
// the listener is attached; the listener stops when ctx is done.
func Listen(ctx context.Context, hub *inputhook.Hub, combo string, callback func()) error {
	m, err := NewMatcher(combo)
	if err != nil {
		return err
	}
	if hub == nil {
		hub = inputhook.Default
	}

	log := logutil.WithComponent("hotkey")
	events, unsubscribe := hub.Subscribe()
	log.Info().Str("hotkey", combo).Strs("keys", m.Names()).Msg("hotkey listener configured")

	go func() {
		defer unsubscribe()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("panic in hotkey goroutine")
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					log.Warn().Msg("event channel closed")
					return
				}
				if m.Feed(ev) {
					log.Info().Str("hotkey", combo).Msg("hotkey activated")
					if callback != nil {
						callback()
					}
				}
			}
		}
	}()
	return nil
}

type keyState struct {
	name     string
	keycodes []uint16
	pressed  bool
}

// Matcher tracks which keys of a combination are currently held.
type Matcher struct {
	keys []keyState
}

func NewMatcher(combo string) (*Matcher, error) {
	names := parseHotkey(combo)
	m := &Matcher{}
	for _, name := range names {
		codes := keyNameToKeycodes(name)
		if len(codes) == 0 {
			return nil, fmt.Errorf("cannot map key %q in hotkey %q", name, combo)
		}
		m.keys = append(m.keys, keyState{name: name, keycodes: codes})
	}
	if len(m.keys) == 0 {
		return nil, fmt.Errorf("no valid keys in hotkey %q", combo)
	}
	return m, nil
}

func (m *Matcher) Names() []string {
	names := make([]string, len(m.keys))
	for i, k := range m.keys {
		names[i] = k.name
	}
	return names
}

// Feed updates key state from ev and reports whether the combination just
// became complete. States reset after a match so a held combination fires
// once.
func (m *Matcher) Feed(ev hook.Event) bool {
	switch ev.Kind {
	case hook.KeyDown, hook.KeyHold:
		m.set(ev.Keycode, true)
		for i := range m.keys {
			if !m.keys[i].pressed {
				return false
			}
		}
		for i := range m.keys {
			m.keys[i].pressed = false
		}
		return true
	case hook.KeyUp:
		m.set(ev.Keycode, false)
	}
	return false
}

func (m *Matcher) set(code uint16, pressed bool) {
	for i := range m.keys {
		for _, c := range m.keys[i].keycodes {
			if c == code {
				m.keys[i].pressed = pressed
				break
			}
		}
	}
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(hotkeyConfig), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "control":
			keys = append(keys, "ctrl")
		case "win", "cmd", "super", "meta":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}
	return keys
}

var letterKeycodes = map[string]uint16{
	"q": 0x10, "w": 0x11, "e": 0x12, "r": 0x13, "t": 0x14,
	"y": 0x15, "u": 0x16, "i": 0x17, "o": 0x18, "p": 0x19,
	"a": 0x1E, "s": 0x1F, "d": 0x20, "f": 0x21, "g": 0x22,
	"h": 0x23, "j": 0x24, "k": 0x25, "l": 0x26,
	"z": 0x2C, "x": 0x2D, "c": 0x2E, "v": 0x2F, "b": 0x30,
	"n": 0x31, "m": 0x32,
}

var functionKeycodes = map[string]uint16{
	"f1": 0x3B, "f2": 0x3C, "f3": 0x3D, "f4": 0x3E, "f5": 0x3F,
	"f6": 0x40, "f7": 0x41, "f8": 0x42, "f9": 0x43, "f10": 0x44,
	"f11": 0x57, "f12": 0x58,
}

// keyNameToKeycodes maps a key name to its uiohook virtual key codes.
// Modifiers return both the left and right variants.
func keyNameToKeycodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))

	switch keyName {
	case "ctrl":
		return []uint16{0x001D, 0x0E1D}
	case "shift":
		return []uint16{0x002A, 0x0036}
	case "alt":
		return []uint16{0x0038, 0x0E38}
	case "cmd":
		return []uint16{0x0E5B, 0x0E5C}

	case "space":
		return []uint16{0x0039}
	case "enter", "return":
		return []uint16{0x001C}
	case "esc", "escape":
		return []uint16{0x0001}
	case "tab":
		return []uint16{0x000F}
	case "backspace":
		return []uint16{0x000E}
	case "printscreen", "print":
		return []uint16{0x0E37}
	case "insert", "ins":
		return []uint16{0x0E52}
	case "delete", "del":
		return []uint16{0x0E53}
	case "home":
		return []uint16{0x0E47}
	case "end":
		return []uint16{0x0E4F}
	case "pageup", "pgup":
		return []uint16{0x0E49}
	case "pagedown", "pgdn":
		return []uint16{0x0E51}
	}

	if code, ok := letterKeycodes[keyName]; ok {
		return []uint16{code}
	}
	if code, ok := functionKeycodes[keyName]; ok {
		return []uint16{code}
	}
	// Number row: 1..9 are 0x02..0x0A, 0 is 0x0B.
	if len(keyName) == 1 && keyName[0] >= '0' && keyName[0] <= '9' {
		if keyName[0] == '0' {
			return []uint16{0x0B}
		}
		return []uint16{uint16(keyName[0]-'1') + 0x02}
	}

	logutil.WithComponent("hotkey").Warn().Str("key", keyName).Msg("unknown key name")
	return nil
}
