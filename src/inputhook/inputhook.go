// Package inputhook shares the process-wide gohook session between its
// consumers. gohook keeps a single global event channel, so the hotkey
// listener and the hook-based selector subscribe here instead of calling
// hook.Start themselves.
package inputhook

import (
	"sync"

	hook "github.com/robotn/gohook"

	"screen-grab/src/logutil"
)

const subscriberBuffer = 256

// Hub fans hook events out to subscribers. The hook runs while at least one
// subscriber is attached.
type Hub struct {
	start func() chan hook.Event
	end   func()

	mu      sync.Mutex
	subs    map[int]chan hook.Event
	nextID  int
	running bool
	gen     int
	dropped int
	lagging map[int]bool
}

func NewHub(start func() chan hook.Event, end func()) *Hub {
	return &Hub{
		start:   start,
		end:     end,
		subs:    make(map[int]chan hook.Event),
		lagging: make(map[int]bool),
	}
}

// Default is backed by the real gohook.
var Default = NewHub(hook.Start, hook.End)

// Subscribe attaches a new consumer. The returned cancel func detaches it
// and closes the channel; it is safe to call more than once. The channel is
// also closed if the underlying hook stops on its own.
func (h *Hub) Subscribe() (<-chan hook.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan hook.Event, subscriberBuffer)
	h.subs[id] = ch

	if !h.running {
		h.running = true
		h.gen++
		raw := h.start()
		logutil.WithComponent("inputhook").Debug().Msg("hook started")
		go h.fanOut(raw, h.gen)
	}

	var once sync.Once
	return ch, func() { once.Do(func() { h.unsubscribe(id) }) }
}

func (h *Hub) unsubscribe(id int) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		delete(h.lagging, id)
		close(ch)
	}
	stop := ok && len(h.subs) == 0 && h.running
	if stop {
		h.running = false
	}
	h.mu.Unlock()

	if stop {
		h.end()
		logutil.WithComponent("inputhook").Debug().Msg("hook stopped")
	}
}

func (h *Hub) fanOut(raw <-chan hook.Event, gen int) {
	for ev := range raw {
		h.mu.Lock()
		for id, ch := range h.subs {
			select {
			case ch <- ev:
			default:
				h.dropped++
				if !h.lagging[id] {
					h.lagging[id] = true
					logutil.WithComponent("inputhook").Warn().
						Int("subscriber", id).
						Uint16("kind", uint16(ev.Kind)).
						Msg("subscriber not keeping up, dropping events")
				}
			}
		}
		h.mu.Unlock()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running || h.gen != gen {
		return
	}
	// The hook died underneath us; detach everyone.
	h.running = false
	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
		delete(h.lagging, id)
	}
	logutil.WithComponent("inputhook").Warn().Msg("hook channel closed unexpectedly")
}

// Subscribers reports the number of attached consumers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped reports how many deliveries were skipped because a subscriber
// was not keeping up.
func (h *Hub) Dropped() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}
