package core

import (
	"context"
	"sync"
	"time"
)

// SessionState is a connection's position in its lifecycle.
type SessionState int

const (
	// StateConnected means the channel is open but no room is joined.
	StateConnected SessionState = iota
	// StateJoining means an admission request is in flight.
	StateJoining
	// StateJoined means the connection is a live member of a room.
	StateJoined
	// StateClosed is terminal.
	StateClosed
)

// Session owns one connection's state machine. All transitions are guarded
// by its mutex; the mutex is never held across store I/O.
type Session struct {
	hub    *Hub
	client *Client

	mu       sync.Mutex
	state    SessionState
	roomCode string
	roomID   int64
	// tookSlot is true when this session's admission claimed a new durable
	// slot, meaning a cancelled join has something to undo.
	tookSlot bool
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Room returns the joined room code, empty when not joined.
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomCode
}

// Client returns the connection this session owns.
func (s *Session) Client() *Client {
	return s.client
}

// join runs the admission flow. Failures are delivered to this connection
// only; success registers presence and broadcasts the roster change.
func (s *Session) join(ctx context.Context, roomCode, password string) {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return
	case StateJoining:
		s.mu.Unlock()
		s.client.push(Event{
			Kind:  EventRoomError,
			Error: coreError(ErrCodeAlreadyJoining, "a join request is already in progress"),
		})
		return
	case StateJoined:
		s.mu.Unlock()
		s.client.push(Event{
			Kind:  EventRoomError,
			Error: coreError(ErrCodeAlreadyJoined, "already in a room"),
		})
		return
	}
	s.state = StateJoining
	s.mu.Unlock()

	// Admission does blocking store I/O; no lock is held here.
	result, cerr := s.hub.admission.Admit(ctx, s.client.AccountID, roomCode, password)

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		// The channel closed mid-flight. Undo a freshly claimed slot so the
		// admission does not dangle.
		if cerr == nil && result.Added {
			s.hub.releaseSlot(result.Room.ID, s.client.AccountID)
		}
		return
	}
	if cerr != nil {
		s.state = StateConnected
		s.mu.Unlock()
		s.client.push(Event{Kind: EventRoomError, Error: cerr})
		return
	}
	s.state = StateJoined
	s.roomCode = result.Room.Code
	s.roomID = result.Room.ID
	s.tookSlot = result.Added
	s.mu.Unlock()

	code := result.Room.Code
	s.hub.registry.Register(code, s.client)
	s.hub.recordJoin(result.Room.ID, s.client.AccountID)

	s.client.push(Event{Kind: EventRoomJoined, Room: code})

	roster := s.hub.registry.Usernames(code)
	s.hub.router.Broadcast(code, Event{
		Kind:     EventParticipantJoined,
		Room:     code,
		User:     s.client.Username,
		SenderID: s.client.ID,
		Count:    len(roster),
	}, ScopeExcludeSender(s.client.ID))
	s.hub.router.Broadcast(code, Event{
		Kind:         EventParticipants,
		Room:         code,
		Participants: roster,
	}, ScopeAll())
}

// leave is the explicit leave-room operation: it removes live presence and
// releases the durable slot, then returns the session to StateConnected.
// Leaving is the only way a durable slot is released; an ungraceful
// disconnect keeps it (see close).
func (s *Session) leave(ctx context.Context, roomCode string) {
	s.mu.Lock()
	if s.state != StateJoined || (roomCode != "" && s.roomCode != roomCode) {
		s.mu.Unlock()
		s.client.push(Event{
			Kind:  EventRoomError,
			Error: coreError(ErrCodeNotInRoom, "not in that room"),
		})
		return
	}
	code := s.roomCode
	roomID := s.roomID
	s.state = StateConnected
	s.roomCode = ""
	s.roomID = 0
	s.tookSlot = false
	s.mu.Unlock()

	s.teardownPresence(code, roomID)
	s.hub.releaseDurable(ctx, roomID, s.client.AccountID)
}

// close is the disconnect transition. Idempotent: a session already closed
// produces no duplicate teardown broadcast even if disconnect fires twice.
// Live presence is removed; the durable slot is kept so the participant can
// return (two-tier membership model).
func (s *Session) close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	prev := s.state
	code := s.roomCode
	roomID := s.roomID
	s.state = StateClosed
	s.roomCode = ""
	s.roomID = 0
	s.mu.Unlock()

	// A connection that never joined was never present anywhere: nothing to
	// broadcast.
	if prev != StateJoined {
		return
	}
	s.teardownPresence(code, roomID)
}

// teardownPresence unregisters the connection and notifies the remaining
// members exactly once.
func (s *Session) teardownPresence(code string, roomID int64) {
	if !s.hub.registry.Unregister(code, s.client) {
		return
	}
	s.hub.recordLeave(roomID, s.client.AccountID)

	roster := s.hub.registry.Usernames(code)
	s.hub.router.Broadcast(code, Event{
		Kind:  EventParticipantLeft,
		Room:  code,
		User:  s.client.Username,
		Count: len(roster),
	}, ScopeAll())
	s.hub.router.Broadcast(code, Event{
		Kind:         EventParticipants,
		Room:         code,
		Participants: roster,
	}, ScopeAll())
}

// requireJoined checks that the session is joined to roomCode and reports a
// not_in_room error to the client otherwise.
func (s *Session) requireJoined(roomCode string) bool {
	s.mu.Lock()
	ok := s.state == StateJoined && s.roomCode == roomCode
	s.mu.Unlock()
	if !ok {
		s.client.push(Event{
			Kind:  EventRoomError,
			Error: coreError(ErrCodeNotInRoom, "join the room before sending events"),
		})
	}
	return ok
}

func (s *Session) drawStart(cmd Command) {
	if !s.requireJoined(cmd.Room) {
		return
	}
	s.hub.router.Broadcast(cmd.Room, Event{
		Kind:     EventDrawStart,
		Room:     cmd.Room,
		User:     s.client.Username,
		SenderID: s.client.ID,
		Point:    cmd.Point,
	}, ScopeExcludeSender(s.client.ID))
}

func (s *Session) drawMove(cmd Command) {
	if !s.requireJoined(cmd.Room) {
		return
	}
	s.hub.router.Broadcast(cmd.Room, Event{
		Kind:     EventDrawSegment,
		Room:     cmd.Room,
		User:     s.client.Username,
		SenderID: s.client.ID,
		Segment:  cmd.Segment,
	}, ScopeExcludeSender(s.client.ID))
}

func (s *Session) drawEnd(cmd Command) {
	if !s.requireJoined(cmd.Room) {
		return
	}
	s.hub.router.Broadcast(cmd.Room, Event{
		Kind:     EventDrawEnd,
		Room:     cmd.Room,
		User:     s.client.Username,
		SenderID: s.client.ID,
	}, ScopeExcludeSender(s.client.ID))
	s.hub.recordContribution(s.currentRoomID(), s.client.AccountID)
}

func (s *Session) currentRoomID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

func (s *Session) clearCanvas(cmd Command) {
	if !s.requireJoined(cmd.Room) {
		return
	}
	// Everyone, sender included, wipes at the same moment.
	s.hub.router.Broadcast(cmd.Room, Event{
		Kind:     EventCanvasCleared,
		Room:     cmd.Room,
		User:     s.client.Username,
		SenderID: s.client.ID,
	}, ScopeAll())
}

func (s *Session) chat(cmd Command) {
	if !s.requireJoined(cmd.Room) {
		return
	}
	text := cmd.Text
	if text == "" {
		return
	}
	s.hub.router.Broadcast(cmd.Room, Event{
		Kind:     EventChatMessage,
		Room:     cmd.Room,
		SenderID: s.client.ID,
		Chat: &ChatMessage{
			Username:  s.client.Username,
			Text:      text,
			Timestamp: time.Now().UnixMilli(),
		},
	}, ScopeAll())
}

func (s *Session) cursorMove(cmd Command) {
	if !s.requireJoined(cmd.Room) {
		return
	}
	s.hub.router.Broadcast(cmd.Room, Event{
		Kind:     EventCursorPosition,
		Room:     cmd.Room,
		User:     s.client.Username,
		SenderID: s.client.ID,
		Cursor:   cmd.Cursor,
	}, ScopeExcludeSender(s.client.ID))
}
