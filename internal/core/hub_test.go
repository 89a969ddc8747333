package core

import (
	"context"
	"testing"
	"time"

	"github.com/meakaliaG/cocanvas-server/internal/store"
)

func joinRoom(ctx context.Context, hub *Hub, s *Session, room, password string) {
	hub.Dispatch(ctx, s, Command{Kind: CommandJoinRoom, Room: room, Password: password})
}

func TestHubJoinBroadcastAndLeave(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDirectory()
	room := dir.addRoom("ROOM01", "", 5, true)
	hub := newTestHub(dir)

	alice := NewClient("a", "alice", 1)
	bob := NewClient("b", "bob", 2)
	aliceSession := hub.Connect(alice)
	bobSession := hub.Connect(bob)

	joinRoom(ctx, hub, aliceSession, "ROOM01", "")
	joined := mustEvent(t, alice.Events, EventRoomJoined)
	if joined.Room != "ROOM01" {
		t.Fatalf("unexpected join ack: %+v", joined)
	}

	joinRoom(ctx, hub, bobSession, "ROOM01", "")

	// Alice sees Bob arrive; Bob gets the ack and roster but not his own
	// participant-joined.
	arrival := mustEvent(t, alice.Events, EventParticipantJoined)
	if arrival.User != "bob" || arrival.Count != 2 {
		t.Fatalf("unexpected arrival event: %+v", arrival)
	}
	mustEvent(t, bob.Events, EventRoomJoined)
	roster := mustEvent(t, bob.Events, EventParticipants)
	if len(roster.Participants) != 2 || roster.Participants[0] != "alice" || roster.Participants[1] != "bob" {
		t.Fatalf("roster = %v, want [alice bob]", roster.Participants)
	}
	mustNoEvent(t, bob.Events, EventParticipantJoined)

	// Explicit leave releases Bob's durable slot and notifies Alice.
	hub.Dispatch(ctx, bobSession, Command{Kind: CommandLeaveRoom, Room: "ROOM01"})
	left := mustEvent(t, alice.Events, EventParticipantLeft)
	if left.User != "bob" || left.Count != 1 {
		t.Fatalf("unexpected departure event: %+v", left)
	}
	if member, _ := dir.HasParticipant(ctx, room.ID, 2); member {
		t.Fatal("explicit leave should release the durable slot")
	}
	if bobSession.State() != StateConnected {
		t.Fatalf("state after leave = %v, want StateConnected", bobSession.State())
	}
}

func TestHubDoubleJoinProducesError(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDirectory()
	dir.addRoom("ROOM01", "", 5, true)
	hub := newTestHub(dir)

	alice := NewClient("a", "alice", 1)
	session := hub.Connect(alice)

	joinRoom(ctx, hub, session, "ROOM01", "")
	joinRoom(ctx, hub, session, "ROOM01", "")

	ev := mustEvent(t, alice.Events, EventRoomError)
	if ev.Error == nil || ev.Error.Code != ErrCodeAlreadyJoined {
		t.Fatalf("expected already_joined error, got %+v", ev)
	}
}

func TestHubJoinFailureAllowsRetry(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDirectory()
	dir.addRoom("ROOM01", "secret", 5, true)
	hub := newTestHub(dir)

	alice := NewClient("a", "alice", 1)
	session := hub.Connect(alice)

	joinRoom(ctx, hub, session, "ROOM01", "wrong")
	ev := mustEvent(t, alice.Events, EventRoomError)
	if ev.Error == nil || ev.Error.Code != ErrCodePasswordIncorrect {
		t.Fatalf("expected password_incorrect error, got %+v", ev)
	}
	if session.State() != StateConnected {
		t.Fatalf("state after rejection = %v, want StateConnected", session.State())
	}

	joinRoom(ctx, hub, session, "ROOM01", "secret")
	mustEvent(t, alice.Events, EventRoomJoined)
}

func TestHubDrawWithoutJoinProducesError(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(newFakeDirectory())

	alice := NewClient("a", "alice", 1)
	session := hub.Connect(alice)

	hub.Dispatch(ctx, session, Command{
		Kind:  CommandDrawStart,
		Room:  "ROOM01",
		Point: &DrawPoint{X: 1, Y: 2, Color: "#000000", LineWidth: 2},
	})

	ev := mustEvent(t, alice.Events, EventRoomError)
	if ev.Error == nil || ev.Error.Code != ErrCodeNotInRoom {
		t.Fatalf("expected not_in_room error, got %+v", ev)
	}
}

func TestHubUnknownCommandProducesError(t *testing.T) {
	ctx := context.Background()
	hub := newTestHub(newFakeDirectory())

	alice := NewClient("a", "alice", 1)
	session := hub.Connect(alice)

	hub.Dispatch(ctx, session, Command{Kind: CommandKind(99)})

	ev := mustEvent(t, alice.Events, EventRoomError)
	if ev.Error == nil || ev.Error.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request error, got %+v", ev)
	}
}

func TestHubDrawEventsSkipSender(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDirectory()
	dir.addRoom("ROOM01", "", 5, true)
	hub := newTestHub(dir)

	alice := NewClient("a", "alice", 1)
	bob := NewClient("b", "bob", 2)
	aliceSession := hub.Connect(alice)
	bobSession := hub.Connect(bob)
	joinRoom(ctx, hub, aliceSession, "ROOM01", "")
	joinRoom(ctx, hub, bobSession, "ROOM01", "")

	hub.Dispatch(ctx, aliceSession, Command{
		Kind:  CommandDrawStart,
		Room:  "ROOM01",
		Point: &DrawPoint{X: 10, Y: 20, Color: "#ff0000", LineWidth: 3, Tool: "brush"},
	})
	hub.Dispatch(ctx, aliceSession, Command{
		Kind:    CommandDrawMove,
		Room:    "ROOM01",
		Segment: &DrawSegment{X0: 10, Y0: 20, X1: 15, Y1: 25, Color: "#ff0000", LineWidth: 3},
	})
	hub.Dispatch(ctx, aliceSession, Command{Kind: CommandDrawEnd, Room: "ROOM01"})

	start := mustEvent(t, bob.Events, EventDrawStart)
	if start.Point == nil || start.Point.X != 10 || start.Point.Color != "#ff0000" {
		t.Fatalf("unexpected draw start: %+v", start)
	}
	segment := mustEvent(t, bob.Events, EventDrawSegment)
	if segment.Segment == nil || segment.Segment.X1 != 15 {
		t.Fatalf("unexpected draw segment: %+v", segment)
	}
	mustEvent(t, bob.Events, EventDrawEnd)

	mustNoEvent(t, alice.Events, EventDrawStart)
}

func TestHubClearCanvasReachesEveryone(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDirectory()
	dir.addRoom("ROOM01", "", 5, true)
	hub := newTestHub(dir)

	alice := NewClient("a", "alice", 1)
	bob := NewClient("b", "bob", 2)
	aliceSession := hub.Connect(alice)
	bobSession := hub.Connect(bob)
	joinRoom(ctx, hub, aliceSession, "ROOM01", "")
	joinRoom(ctx, hub, bobSession, "ROOM01", "")

	hub.Dispatch(ctx, aliceSession, Command{Kind: CommandClearCanvas, Room: "ROOM01"})

	cleared := mustEvent(t, bob.Events, EventCanvasCleared)
	if cleared.User != "alice" {
		t.Fatalf("unexpected clear event: %+v", cleared)
	}
	// The clearer wipes too.
	mustEvent(t, alice.Events, EventCanvasCleared)
}

func TestHubChatStampsServerTime(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDirectory()
	dir.addRoom("ROOM01", "", 5, true)
	hub := newTestHub(dir)

	alice := NewClient("a", "alice", 1)
	bob := NewClient("b", "bob", 2)
	aliceSession := hub.Connect(alice)
	bobSession := hub.Connect(bob)
	joinRoom(ctx, hub, aliceSession, "ROOM01", "")
	joinRoom(ctx, hub, bobSession, "ROOM01", "")

	before := time.Now().UnixMilli()
	hub.Dispatch(ctx, aliceSession, Command{Kind: CommandChatMessage, Room: "ROOM01", Text: "hi"})
	after := time.Now().UnixMilli()

	msg := mustEvent(t, bob.Events, EventChatMessage)
	if msg.Chat == nil || msg.Chat.Text != "hi" || msg.Chat.Username != "alice" {
		t.Fatalf("unexpected chat event: %+v", msg)
	}
	if msg.Chat.Timestamp < before || msg.Chat.Timestamp > after {
		t.Fatalf("timestamp %d outside [%d, %d]", msg.Chat.Timestamp, before, after)
	}
	// Sender sees their own message too.
	mustEvent(t, alice.Events, EventChatMessage)

	// Empty messages are dropped silently.
	hub.Dispatch(ctx, aliceSession, Command{Kind: CommandChatMessage, Room: "ROOM01", Text: ""})
	mustNoEvent(t, bob.Events, EventChatMessage)
}

func TestHubCursorSkipsSender(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDirectory()
	dir.addRoom("ROOM01", "", 5, true)
	hub := newTestHub(dir)

	alice := NewClient("a", "alice", 1)
	bob := NewClient("b", "bob", 2)
	aliceSession := hub.Connect(alice)
	bobSession := hub.Connect(bob)
	joinRoom(ctx, hub, aliceSession, "ROOM01", "")
	joinRoom(ctx, hub, bobSession, "ROOM01", "")

	hub.Dispatch(ctx, aliceSession, Command{Kind: CommandCursorMove, Room: "ROOM01", Cursor: &CursorPosition{X: 3, Y: 4}})

	cursor := mustEvent(t, bob.Events, EventCursorPosition)
	if cursor.Cursor == nil || cursor.Cursor.X != 3 || cursor.Cursor.Y != 4 || cursor.User != "alice" {
		t.Fatalf("unexpected cursor event: %+v", cursor)
	}
	mustNoEvent(t, alice.Events, EventCursorPosition)
}

func TestHubDisconnectKeepsDurableSlot(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDirectory()
	room := dir.addRoom("ROOM01", "", 2, true)
	hub := newTestHub(dir)

	alice := NewClient("a", "alice", 1)
	bob := NewClient("b", "bob", 2)
	aliceSession := hub.Connect(alice)
	bobSession := hub.Connect(bob)
	joinRoom(ctx, hub, aliceSession, "ROOM01", "")
	joinRoom(ctx, hub, bobSession, "ROOM01", "")

	// Alice drops without leaving: live presence goes, the slot stays.
	hub.Disconnect(alice)
	left := mustEvent(t, bob.Events, EventParticipantLeft)
	if left.User != "alice" {
		t.Fatalf("unexpected departure event: %+v", left)
	}
	if member, _ := dir.HasParticipant(ctx, room.ID, 1); !member {
		t.Fatal("disconnect should keep the durable slot")
	}
	if got := hub.Registry().Count("ROOM01"); got != 1 {
		t.Fatalf("live count after disconnect = %d, want 1", got)
	}

	// Alice reconnects and re-enters, even though the room is at capacity.
	alice2 := NewClient("a2", "alice", 1)
	session2 := hub.Connect(alice2)
	joinRoom(ctx, hub, session2, "ROOM01", "")
	mustEvent(t, alice2.Events, EventRoomJoined)
}

func TestHubDisconnectIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDirectory()
	dir.addRoom("ROOM01", "", 5, true)
	hub := newTestHub(dir)

	alice := NewClient("a", "alice", 1)
	bob := NewClient("b", "bob", 2)
	aliceSession := hub.Connect(alice)
	bobSession := hub.Connect(bob)
	joinRoom(ctx, hub, aliceSession, "ROOM01", "")
	joinRoom(ctx, hub, bobSession, "ROOM01", "")

	hub.Disconnect(alice)
	hub.Disconnect(alice)

	mustEvent(t, bob.Events, EventParticipantLeft)
	mustNoEvent(t, bob.Events, EventParticipantLeft)
	if aliceSession.State() != StateClosed {
		t.Fatalf("state after disconnect = %v, want StateClosed", aliceSession.State())
	}
}

func TestHubLeaveWrongRoomProducesError(t *testing.T) {
	ctx := context.Background()
	dir := newFakeDirectory()
	dir.addRoom("ROOM01", "", 5, true)
	hub := newTestHub(dir)

	alice := NewClient("a", "alice", 1)
	session := hub.Connect(alice)
	joinRoom(ctx, hub, session, "ROOM01", "")
	mustEvent(t, alice.Events, EventRoomJoined)

	hub.Dispatch(ctx, session, Command{Kind: CommandLeaveRoom, Room: "GHOST1"})
	ev := mustEvent(t, alice.Events, EventRoomError)
	if ev.Error == nil || ev.Error.Code != ErrCodeNotInRoom {
		t.Fatalf("expected not_in_room error, got %+v", ev)
	}
	// Still joined to the real room.
	if session.Room() != "ROOM01" {
		t.Fatalf("room = %q, want ROOM01", session.Room())
	}
}

// gatedDirectory holds FindRoomByCode open until released, exposing the
// window where a disconnect can overtake an in-flight admission.
type gatedDirectory struct {
	*fakeDirectory
	entered  chan struct{}
	released chan struct{}
}

func (d *gatedDirectory) FindRoomByCode(ctx context.Context, code string) (*store.Room, error) {
	close(d.entered)
	<-d.released
	return d.fakeDirectory.FindRoomByCode(ctx, code)
}

func TestHubDisconnectDuringJoinUndoesAdmission(t *testing.T) {
	ctx := context.Background()
	base := newFakeDirectory()
	room := base.addRoom("ROOM01", "", 5, true)
	dir := &gatedDirectory{
		fakeDirectory: base,
		entered:       make(chan struct{}),
		released:      make(chan struct{}),
	}
	hub := NewHub(dir, nil, plaintextVerify, nil)

	alice := NewClient("a", "alice", 1)
	session := hub.Connect(alice)

	done := make(chan struct{})
	go func() {
		joinRoom(ctx, hub, session, "ROOM01", "")
		close(done)
	}()

	// Disconnect while admission is blocked inside the store lookup, then let
	// the lookup finish.
	<-dir.entered
	hub.Disconnect(alice)
	close(dir.released)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("join did not return after release")
	}

	// The freshly claimed slot is undone, nothing is registered and nothing
	// was announced.
	if member, _ := base.HasParticipant(ctx, room.ID, 1); member {
		t.Fatal("cancelled join should release the claimed durable slot")
	}
	if got := hub.Registry().Count("ROOM01"); got != 0 {
		t.Fatalf("registry count = %d, want 0", got)
	}
	mustNoEvent(t, alice.Events, EventRoomJoined)
	mustNoEvent(t, alice.Events, EventParticipants)
	if session.State() != StateClosed {
		t.Fatalf("state = %v, want StateClosed", session.State())
	}
}
