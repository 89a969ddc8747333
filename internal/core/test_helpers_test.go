package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/meakaliaG/cocanvas-server/internal/store"
)

func mustEvent(t *testing.T, ch <-chan Event, kind EventKind) Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return Event{}
}

func mustNoEvent(t *testing.T, ch <-chan Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				t.Fatalf("unexpected event received: %+v", ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// fakeDirectory is an in-memory RoomDirectory with the same atomicity
// contract as the sqlite store: AddParticipant checks capacity and inserts
// under one lock.
type fakeDirectory struct {
	mu      sync.Mutex
	nextID  int64
	rooms   map[string]*store.Room
	members map[int64]map[int64]bool // roomID -> accountID set
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		rooms:   make(map[string]*store.Room),
		members: make(map[int64]map[int64]bool),
	}
}

func (d *fakeDirectory) addRoom(code, passwordHash string, maxParticipants int, active bool) *store.Room {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	room := &store.Room{
		ID:              d.nextID,
		Code:            code,
		Name:            code,
		PasswordHash:    passwordHash,
		MaxParticipants: maxParticipants,
		IsActive:        active,
	}
	d.rooms[code] = room
	d.members[room.ID] = make(map[int64]bool)
	return room
}

func (d *fakeDirectory) FindRoomByCode(_ context.Context, code string) (*store.Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *room
	return &copied, nil
}

func (d *fakeDirectory) HasParticipant(_ context.Context, roomID, accountID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.members[roomID][accountID], nil
}

func (d *fakeDirectory) ParticipantCount(_ context.Context, roomID int64) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.members[roomID]), nil
}

func (d *fakeDirectory) AddParticipant(_ context.Context, roomID, accountID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.members[roomID]
	if !ok {
		return false, store.ErrNotFound
	}
	if set[accountID] {
		return false, nil
	}
	var room *store.Room
	for _, r := range d.rooms {
		if r.ID == roomID {
			room = r
			break
		}
	}
	if room != nil && room.MaxParticipants != store.UnlimitedParticipants && len(set) >= room.MaxParticipants {
		return false, store.ErrRoomFull
	}
	set[accountID] = true
	return true, nil
}

func (d *fakeDirectory) RemoveParticipant(_ context.Context, roomID, accountID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.members[roomID], accountID)
	return nil
}

// plaintextVerify treats the stored hash as the plaintext password so tests
// stay out of bcrypt.
func plaintextVerify(hash, password string) error {
	if hash != password {
		return errors.New("password mismatch")
	}
	return nil
}

func newTestHub(dir *fakeDirectory) *Hub {
	return NewHub(dir, nil, plaintextVerify, nil)
}
