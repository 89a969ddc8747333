package core

import "sync"

// roomPresence is the live membership of one room. Its lock is the unit of
// mutual exclusion for that room: unrelated rooms never contend.
type roomPresence struct {
	mu      sync.Mutex
	members map[*Client]struct{}
	order   []*Client // join order
	// retired is set when the registry reclaims this entry. An add racing the
	// reclaim must not land here: the entry is already unreachable.
	retired bool
}

// add reports (added, alive). alive is false when the entry was retired, in
// which case the caller must retry against the registry map.
func (p *roomPresence) add(c *Client) (bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.retired {
		return false, false
	}
	if _, exists := p.members[c]; exists {
		return false, true
	}
	p.members[c] = struct{}{}
	p.order = append(p.order, c)
	return true, true
}

// retire marks the entry dead if it is still empty. Holding p.mu here
// serializes against add: whichever wins, the other observes it.
func (p *roomPresence) retire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.members) > 0 {
		return false
	}
	p.retired = true
	return true
}

func (p *roomPresence) remove(c *Client) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.members[c]; !exists {
		return false
	}
	delete(p.members, c)
	for i, member := range p.order {
		if member == c {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

func (p *roomPresence) snapshot() []*Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Client, len(p.order))
	copy(out, p.order)
	return out
}

func (p *roomPresence) empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.members) == 0
}

// Registry tracks which connections are live in which room. It is a purely
// in-memory cache, independent of the persisted participant list: the
// registry is the authority for who receives broadcasts right now, not for
// who is allowed in.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*roomPresence
}

// NewRegistry constructs an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*roomPresence)}
}

// Register adds the connection to the room's presence set. Re-registering the
// same connection is a no-op. Returns true when newly added.
func (r *Registry) Register(roomCode string, c *Client) bool {
	for {
		r.mu.Lock()
		room, ok := r.rooms[roomCode]
		if !ok {
			room = &roomPresence{members: make(map[*Client]struct{})}
			r.rooms[roomCode] = room
		}
		r.mu.Unlock()
		added, alive := room.add(c)
		if alive {
			return added
		}
		// Lost the race against the empty-entry reclaim; the map no longer
		// holds this entry, so look it up again.
	}
}

// Unregister removes the connection from the room's presence set. The room
// entry itself is released once empty so an idle registry holds no memory for
// dead rooms. Returns true when the connection was present.
func (r *Registry) Unregister(roomCode string, c *Client) bool {
	r.mu.Lock()
	room, ok := r.rooms[roomCode]
	r.mu.Unlock()
	if !ok {
		return false
	}

	removed := room.remove(c)
	if removed && room.empty() {
		r.mu.Lock()
		// Retire under the registry lock: retire holds the room lock, so a
		// Register that already fetched this entry either lands before the
		// retire (entry stays) or observes it and retries.
		if current, ok := r.rooms[roomCode]; ok && current == room && room.retire() {
			delete(r.rooms, roomCode)
		}
		r.mu.Unlock()
	}
	return removed
}

// Members returns the room's live connections in join order. Unknown rooms
// yield an empty slice, never an error.
func (r *Registry) Members(roomCode string) []*Client {
	r.mu.RLock()
	room, ok := r.rooms[roomCode]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return room.snapshot()
}

// Usernames returns the display names of the room's live connections in join
// order.
func (r *Registry) Usernames(roomCode string) []string {
	members := r.Members(roomCode)
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Username)
	}
	return names
}

// Count returns the number of live connections in the room. Informational
// only: admission decisions use the persisted participant list.
func (r *Registry) Count(roomCode string) int {
	return len(r.Members(roomCode))
}
