package nakama

import (
	"sync"

	"memoria/internal/ports"
)

// hub fans room snapshots out to in-process subscribers. Channels are
// buffered one deep and coalesce: an undelivered older snapshot is replaced
// by the newest so a slow consumer always drains to the latest value.
type hub struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan ports.RoomSnapshot
	nextID int
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[int]chan ports.RoomSnapshot)}
}

func (h *hub) subscribe(roomID string) (chan ports.RoomSnapshot, func()) {
	ch := make(chan ports.RoomSnapshot, 1)

	h.mu.Lock()
	if h.subs[roomID] == nil {
		h.subs[roomID] = make(map[int]chan ports.RoomSnapshot)
	}
	id := h.nextID
	h.nextID++
	h.subs[roomID][id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[roomID]; ok {
			if c, ok := set[id]; ok {
				delete(set, id)
				close(c)
			}
		}
	}
	return ch, cancel
}

func (h *hub) publish(roomID string, snap ports.RoomSnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[roomID] {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
