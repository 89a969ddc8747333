package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventRoomJoined acknowledges a successful join to the joiner only.
	EventRoomJoined EventKind = iota
	// EventRoomError reports an admission or validation failure to the
	// requesting client only.
	EventRoomError
	// EventParticipants delivers the full live roster of a room.
	EventParticipants
	// EventParticipantJoined notifies existing members that someone joined.
	EventParticipantJoined
	// EventParticipantLeft notifies remaining members that someone left.
	EventParticipantLeft
	// EventDrawStart notifies that a member began a stroke.
	EventDrawStart
	// EventDrawSegment carries one stroke segment.
	EventDrawSegment
	// EventDrawEnd notifies that a member finished a stroke.
	EventDrawEnd
	// EventCanvasCleared notifies that the canvas was wiped.
	EventCanvasCleared
	// EventChatMessage carries a chat message with a server timestamp.
	EventChatMessage
	// EventCursorPosition carries a member's cursor location.
	EventCursorPosition
)

// DrawPoint is where a stroke begins.
type DrawPoint struct {
	X         float64
	Y         float64
	Color     string
	LineWidth float64
	Tool      string
}

// DrawSegment is one line segment of an in-progress stroke.
type DrawSegment struct {
	X0        float64
	Y0        float64
	X1        float64
	Y1        float64
	Color     string
	LineWidth float64
	Tool      string
}

// ChatMessage is a chat line stamped by the server.
type ChatMessage struct {
	Username  string
	Text      string
	Timestamp int64 // unix milliseconds
}

// CursorPosition is a member's pointer location on the canvas.
type CursorPosition struct {
	X float64
	Y float64
}

// Event is sent to clients to describe what happened in a room. Events are
// transient: routed once, never stored.
type Event struct {
	Kind         EventKind
	Room         string
	User         string // display name the event is about (joiner, clearer, ...)
	SenderID     string // connection id of the originator, if any
	Participants []string
	Count        int
	Point        *DrawPoint
	Segment      *DrawSegment
	Chat         *ChatMessage
	Cursor       *CursorPosition
	Error        *CoreError
}
