package core

import (
	"sync"
	"testing"
)

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	alice := NewClient("a", "alice", 1)

	if !reg.Register("ROOM01", alice) {
		t.Fatal("first register should report newly added")
	}
	if reg.Register("ROOM01", alice) {
		t.Fatal("second register of same client should be a no-op")
	}
	if got := reg.Count("ROOM01"); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
}

func TestRegistryJoinOrder(t *testing.T) {
	reg := NewRegistry()
	alice := NewClient("a", "alice", 1)
	bob := NewClient("b", "bob", 2)
	carol := NewClient("c", "carol", 3)

	reg.Register("ROOM01", alice)
	reg.Register("ROOM01", bob)
	reg.Register("ROOM01", carol)
	reg.Unregister("ROOM01", bob)

	names := reg.Usernames("ROOM01")
	if len(names) != 2 || names[0] != "alice" || names[1] != "carol" {
		t.Fatalf("usernames = %v, want [alice carol]", names)
	}
}

func TestRegistryUnregisterUnknown(t *testing.T) {
	reg := NewRegistry()
	alice := NewClient("a", "alice", 1)

	if reg.Unregister("GHOST1", alice) {
		t.Fatal("unregister from unknown room should report not present")
	}

	reg.Register("ROOM01", alice)
	bob := NewClient("b", "bob", 2)
	if reg.Unregister("ROOM01", bob) {
		t.Fatal("unregister of non-member should report not present")
	}
}

func TestRegistryEmptyRoomIsReleased(t *testing.T) {
	reg := NewRegistry()
	alice := NewClient("a", "alice", 1)

	reg.Register("ROOM01", alice)
	if !reg.Unregister("ROOM01", alice) {
		t.Fatal("unregister should report removed")
	}

	reg.mu.RLock()
	_, exists := reg.rooms["ROOM01"]
	reg.mu.RUnlock()
	if exists {
		t.Fatal("empty room entry should be deleted")
	}

	// The code can be reused afterwards.
	if !reg.Register("ROOM01", alice) {
		t.Fatal("re-register after release should succeed")
	}
	if got := reg.Count("ROOM01"); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}
}

// A register racing the empty-entry reclaim must never land on the reclaimed
// entry: a connection reported as added has to be visible in Members.
func TestRegistryRegisterRacesEmptyRoomReclaim(t *testing.T) {
	reg := NewRegistry()
	leaver := NewClient("l", "leaver", 1)
	joiner := NewClient("j", "joiner", 2)

	for i := 0; i < 500; i++ {
		reg.Register("ROOM01", leaver)

		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			reg.Unregister("ROOM01", leaver)
		}()
		go func() {
			defer wg.Done()
			<-start
			if !reg.Register("ROOM01", joiner) {
				t.Error("register should report newly added")
			}
		}()
		close(start)
		wg.Wait()

		present := false
		for _, m := range reg.Members("ROOM01") {
			if m == joiner {
				present = true
			}
		}
		if !present {
			t.Fatalf("iteration %d: registered connection missing from members", i)
		}

		reg.Unregister("ROOM01", joiner)
		reg.Unregister("ROOM01", leaver)
	}
}

func TestRegistryRoomsAreIndependent(t *testing.T) {
	reg := NewRegistry()
	alice := NewClient("a", "alice", 1)
	bob := NewClient("b", "bob", 2)

	reg.Register("ROOM01", alice)
	reg.Register("ROOM02", bob)

	if got := reg.Count("ROOM01"); got != 1 {
		t.Fatalf("ROOM01 count = %d, want 1", got)
	}
	if got := reg.Count("ROOM02"); got != 1 {
		t.Fatalf("ROOM02 count = %d, want 1", got)
	}
	if got := reg.Count("ROOM03"); got != 0 {
		t.Fatalf("unknown room count = %d, want 0", got)
	}
}
