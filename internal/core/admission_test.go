package core

import (
	"context"
	"sync"
	"testing"

	"github.com/meakaliaG/cocanvas-server/internal/store"
)

func TestAdmitUnknownRoom(t *testing.T) {
	adm := NewAdmission(newFakeDirectory(), plaintextVerify)

	_, cerr := adm.Admit(context.Background(), 1, "GHOST1", "")
	if cerr == nil || cerr.Code != ErrCodeRoomNotFound {
		t.Fatalf("expected room_not_found, got %+v", cerr)
	}
}

func TestAdmitInactiveRoom(t *testing.T) {
	dir := newFakeDirectory()
	dir.addRoom("ROOM01", "", 5, false)
	adm := NewAdmission(dir, plaintextVerify)

	_, cerr := adm.Admit(context.Background(), 1, "ROOM01", "")
	if cerr == nil || cerr.Code != ErrCodeRoomInactive {
		t.Fatalf("expected room_inactive, got %+v", cerr)
	}
}

func TestAdmitPasswordChecks(t *testing.T) {
	dir := newFakeDirectory()
	dir.addRoom("ROOM01", "secret", 5, true)
	adm := NewAdmission(dir, plaintextVerify)

	_, cerr := adm.Admit(context.Background(), 1, "ROOM01", "")
	if cerr == nil || cerr.Code != ErrCodePasswordRequired {
		t.Fatalf("expected password_required, got %+v", cerr)
	}

	_, cerr = adm.Admit(context.Background(), 1, "ROOM01", "wrong")
	if cerr == nil || cerr.Code != ErrCodePasswordIncorrect {
		t.Fatalf("expected password_incorrect, got %+v", cerr)
	}

	result, cerr := adm.Admit(context.Background(), 1, "ROOM01", "secret")
	if cerr != nil {
		t.Fatalf("expected success, got %+v", cerr)
	}
	if !result.Added {
		t.Fatal("first admission should take a new slot")
	}
}

func TestAdmitCapacity(t *testing.T) {
	dir := newFakeDirectory()
	dir.addRoom("ROOM01", "", 2, true)
	adm := NewAdmission(dir, plaintextVerify)

	for accountID := int64(1); accountID <= 2; accountID++ {
		if _, cerr := adm.Admit(context.Background(), accountID, "ROOM01", ""); cerr != nil {
			t.Fatalf("account %d should be admitted, got %+v", accountID, cerr)
		}
	}

	_, cerr := adm.Admit(context.Background(), 3, "ROOM01", "")
	if cerr == nil || cerr.Code != ErrCodeRoomFull {
		t.Fatalf("expected room_full, got %+v", cerr)
	}
}

func TestAdmitUnlimitedCapacity(t *testing.T) {
	dir := newFakeDirectory()
	dir.addRoom("ROOM01", "", store.UnlimitedParticipants, true)
	adm := NewAdmission(dir, plaintextVerify)

	for accountID := int64(1); accountID <= 50; accountID++ {
		if _, cerr := adm.Admit(context.Background(), accountID, "ROOM01", ""); cerr != nil {
			t.Fatalf("account %d should be admitted, got %+v", accountID, cerr)
		}
	}
}

// A participant who already holds a slot re-enters even when the room has
// since filled up or they no longer present the password.
func TestAdmitReturningParticipantSkipsChecks(t *testing.T) {
	dir := newFakeDirectory()
	dir.addRoom("ROOM01", "secret", 1, true)
	adm := NewAdmission(dir, plaintextVerify)

	result, cerr := adm.Admit(context.Background(), 1, "ROOM01", "secret")
	if cerr != nil || !result.Added {
		t.Fatalf("first admission failed: %+v", cerr)
	}

	// Room is now full and no password is supplied, but account 1 holds a slot.
	result, cerr = adm.Admit(context.Background(), 1, "ROOM01", "")
	if cerr != nil {
		t.Fatalf("returning participant rejected: %+v", cerr)
	}
	if result.Added {
		t.Fatal("returning participant should not take a new slot")
	}

	// A newcomer still hits the capacity wall.
	_, cerr = adm.Admit(context.Background(), 2, "ROOM01", "secret")
	if cerr == nil || cerr.Code != ErrCodeRoomFull {
		t.Fatalf("expected room_full for newcomer, got %+v", cerr)
	}
}

// Many concurrent joiners racing for limited slots: exactly capacity-many
// succeed, the rest get room_full. The conditional insert is the gate, not the
// read-then-check fast path.
func TestAdmitConcurrentCapacityBoundary(t *testing.T) {
	const capacity = 5
	const joiners = 40

	dir := newFakeDirectory()
	room := dir.addRoom("ROOM01", "", capacity, true)
	adm := NewAdmission(dir, plaintextVerify)

	var wg sync.WaitGroup
	results := make([]*CoreError, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = adm.Admit(context.Background(), int64(i+1), "ROOM01", "")
		}(i)
	}
	wg.Wait()

	admitted, full := 0, 0
	for _, cerr := range results {
		switch {
		case cerr == nil:
			admitted++
		case cerr.Code == ErrCodeRoomFull:
			full++
		default:
			t.Fatalf("unexpected error: %+v", cerr)
		}
	}
	if admitted != capacity {
		t.Fatalf("admitted = %d, want %d", admitted, capacity)
	}
	if full != joiners-capacity {
		t.Fatalf("room_full = %d, want %d", full, joiners-capacity)
	}

	count, err := dir.ParticipantCount(context.Background(), room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if count != capacity {
		t.Fatalf("stored participants = %d, want %d", count, capacity)
	}
}
