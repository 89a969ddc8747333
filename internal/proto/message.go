package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Client-to-server event types.
const (
	InboundTypeJoinRoom    = "join-room"
	InboundTypeLeaveRoom   = "leave-room"
	InboundTypeDrawStart   = "draw-start"
	InboundTypeDrawMove    = "draw-move"
	InboundTypeDrawEnd     = "draw-end"
	InboundTypeClearCanvas = "clear-canvas"
	InboundTypeChatMessage = "chat-message"
	InboundTypeCursorMove  = "cursor-move"
)

// Server-to-client event types.
const (
	OutboundTypeRoomJoined        = "room-joined"
	OutboundTypeRoomError         = "room-error"
	OutboundTypeParticipants      = "participants-update"
	OutboundTypeParticipantJoined = "participant-joined"
	OutboundTypeParticipantLeft   = "participant-left"
	OutboundTypeDrawStart         = "draw-start"
	OutboundTypeDrawData          = "draw-data"
	OutboundTypeDrawEnd           = "draw-end"
	OutboundTypeCanvasCleared     = "canvas-cleared"
	OutboundTypeChatMessage       = "chat-message"
	OutboundTypeCursorPosition    = "cursor-position"
)

// JoinRoomData requests admission to a room. The username of the joiner comes
// from the authenticated token; any client-sent username is ignored.
type JoinRoomData struct {
	RoomCode string `json:"roomCode"`
	Password string `json:"password,omitempty"`
}

// LeaveRoomData leaves the current room.
type LeaveRoomData struct {
	RoomCode string `json:"roomCode"`
}

// DrawStartData begins a stroke.
type DrawStartData struct {
	RoomCode  string  `json:"roomCode"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
	Tool      string  `json:"tool"`
}

// DrawMoveData continues a stroke with one segment.
type DrawMoveData struct {
	RoomCode  string  `json:"roomCode"`
	X0        float64 `json:"x0"`
	Y0        float64 `json:"y0"`
	X1        float64 `json:"x1"`
	Y1        float64 `json:"y1"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
	Tool      string  `json:"tool"`
}

// DrawEndData finishes a stroke.
type DrawEndData struct {
	RoomCode string `json:"roomCode"`
}

// ClearCanvasData wipes the room canvas.
type ClearCanvasData struct {
	RoomCode string `json:"roomCode"`
}

// ChatMessageData sends a chat line; the server stamps the timestamp.
type ChatMessageData struct {
	RoomCode string `json:"roomCode"`
	Text     string `json:"text"`
}

// CursorMoveData reports the client's cursor position.
type CursorMoveData struct {
	RoomCode string  `json:"roomCode"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// RoomJoinedEvent acknowledges a successful join.
type RoomJoinedEvent struct {
	RoomCode string `json:"roomCode"`
	Message  string `json:"message"`
}

// RoomErrorEvent reports an admission or validation failure.
type RoomErrorEvent struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ParticipantsEvent is the full live roster of a room.
type ParticipantsEvent struct {
	Participants []string `json:"participants"`
}

// ParticipantJoinedEvent notifies existing members of a new arrival.
type ParticipantJoinedEvent struct {
	Username         string `json:"username"`
	ParticipantCount int    `json:"participantCount"`
}

// ParticipantLeftEvent notifies remaining members of a departure.
type ParticipantLeftEvent struct {
	Username         string `json:"username"`
	ParticipantCount int    `json:"participantCount"`
}

// DrawStartEvent mirrors a stroke start to the other members.
type DrawStartEvent struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
	Tool      string  `json:"tool"`
	UserID    string  `json:"userId"`
}

// DrawDataEvent mirrors one stroke segment to the other members.
type DrawDataEvent struct {
	X0        float64 `json:"x0"`
	Y0        float64 `json:"y0"`
	X1        float64 `json:"x1"`
	Y1        float64 `json:"y1"`
	Color     string  `json:"color"`
	LineWidth float64 `json:"lineWidth"`
	Tool      string  `json:"tool"`
	UserID    string  `json:"userId"`
}

// DrawEndEvent mirrors a stroke end to the other members.
type DrawEndEvent struct {
	UserID string `json:"userId"`
}

// CanvasClearedEvent tells every member to wipe, the originator included.
type CanvasClearedEvent struct {
	ClearedBy string `json:"clearedBy"`
}

// ChatMessageEvent is a chat line with the server timestamp in milliseconds.
type ChatMessageEvent struct {
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// CursorPositionEvent is another member's cursor location.
type CursorPositionEvent struct {
	UserID   string  `json:"userId"`
	Username string  `json:"username"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}
