package core

// Deliverer decides which members of a room receive an event.
type Deliverer interface {
	Deliver(members []*Client, ev Event)
}

// roomWide delivers to every live member, originator included. Used for
// canvas-cleared, chat and roster updates so every client renders the same
// state.
type roomWide struct{}

func (roomWide) Deliver(members []*Client, ev Event) {
	for _, m := range members {
		m.push(ev)
	}
}

// excludeSender delivers to everyone except the originating connection. Used
// for draw and cursor events: the originator already rendered locally.
type excludeSender struct {
	senderID string
}

func (d excludeSender) Deliver(members []*Client, ev Event) {
	for _, m := range members {
		if m.ID == d.senderID {
			continue
		}
		m.push(ev)
	}
}

// ScopeAll returns the room-wide deliverer.
func ScopeAll() Deliverer { return roomWide{} }

// ScopeExcludeSender returns a deliverer that skips the given connection.
func ScopeExcludeSender(senderID string) Deliverer { return excludeSender{senderID: senderID} }

// Router fans events out to a room's live members. Delivery is best-effort
// and at-most-once: a dead or slow recipient is skipped or sheds its oldest
// buffered event, and no error ever reaches the sender.
type Router struct {
	registry *Registry
}

// NewRouter constructs a router over the given presence registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Broadcast delivers the event to the room members selected by scope.
func (r *Router) Broadcast(roomCode string, ev Event, scope Deliverer) {
	members := r.registry.Members(roomCode)
	if len(members) == 0 {
		return
	}
	scope.Deliver(members, ev)
}
