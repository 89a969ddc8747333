package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom requests admission to a room.
	CommandJoinRoom CommandKind = iota
	// CommandLeaveRoom leaves the current room and releases the durable slot.
	CommandLeaveRoom
	// CommandDrawStart begins a stroke.
	CommandDrawStart
	// CommandDrawMove continues a stroke with one segment.
	CommandDrawMove
	// CommandDrawEnd finishes a stroke.
	CommandDrawEnd
	// CommandClearCanvas wipes the room canvas for everyone.
	CommandClearCanvas
	// CommandChatMessage sends a chat line to the room.
	CommandChatMessage
	// CommandCursorMove reports the client's cursor position.
	CommandCursorMove
)

// Command represents an action requested by a client.
type Command struct {
	Kind     CommandKind
	Room     string
	Password string // join only
	Text     string // chat only
	Point    *DrawPoint
	Segment  *DrawSegment
	Cursor   *CursorPosition
}
