package nakama

import (
	"testing"
	"time"

	"memoria/internal/domain"
	"memoria/internal/ports"
)

func snapFor(roomID string, score int) ports.RoomSnapshot {
	return ports.RoomSnapshot{Room: &domain.Room{RoomID: roomID, HostScore: score}}
}

func TestHubDeliversToSubscribers(t *testing.T) {
	h := newHub()
	ch, cancel := h.subscribe("room-1")
	defer cancel()

	h.publish("room-1", snapFor("room-1", 1))

	select {
	case snap := <-ch:
		if snap.Room.HostScore != 1 {
			t.Fatalf("score = %d, want 1", snap.Room.HostScore)
		}
	case <-time.After(time.Second):
		t.Fatal("snapshot was not delivered")
	}
}

func TestHubCoalescesToLatest(t *testing.T) {
	h := newHub()
	ch, cancel := h.subscribe("room-1")
	defer cancel()

	// Nobody drains between publishes; only the newest survives.
	for i := 1; i <= 5; i++ {
		h.publish("room-1", snapFor("room-1", i))
	}

	snap := <-ch
	if snap.Room.HostScore != 5 {
		t.Fatalf("score = %d, want latest 5", snap.Room.HostScore)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected second delivery: %+v", extra)
	default:
	}
}

func TestHubIsolatesRooms(t *testing.T) {
	h := newHub()
	ch, cancel := h.subscribe("room-1")
	defer cancel()

	h.publish("room-2", snapFor("room-2", 1))

	select {
	case snap := <-ch:
		t.Fatalf("received snapshot for another room: %+v", snap)
	default:
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	h := newHub()
	ch, cancel := h.subscribe("room-1")

	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after cancel")
	}

	// Publishing after cancel must not panic or deliver.
	h.publish("room-1", snapFor("room-1", 1))

	// Cancelling twice is a no-op.
	cancel()
}
