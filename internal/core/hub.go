package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// SessionRecorder is the analytics collaborator: it logs when participants
// join and leave rooms and how much they contribute. Failures are logged and
// swallowed; analytics never affect the session.
type SessionRecorder interface {
	StartDrawingSession(ctx context.Context, roomID, accountID int64) (int64, error)
	EndDrawingSession(ctx context.Context, roomID, accountID int64) error
	IncrementContribution(ctx context.Context, roomID, accountID int64) error
}

// Hub owns the presence registry, the broadcast router, the admission
// controller and the per-connection sessions. It is constructed explicitly
// and handed to the transport; there is no ambient singleton.
type Hub struct {
	registry  *Registry
	router    *Router
	admission *Admission
	rooms     RoomDirectory
	recorder  SessionRecorder // may be nil
	log       *zerolog.Logger

	mu       sync.Mutex
	sessions map[*Client]*Session
}

// NewHub constructs a hub over the persisted-room collaborator. recorder may
// be nil when drawing-session analytics are not wanted.
func NewHub(rooms RoomDirectory, recorder SessionRecorder, verify PasswordVerifier, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	registry := NewRegistry()
	return &Hub{
		registry:  registry,
		router:    NewRouter(registry),
		admission: NewAdmission(rooms, verify),
		rooms:     rooms,
		recorder:  recorder,
		log:       logger,
		sessions:  make(map[*Client]*Session),
	}
}

// Registry exposes the live presence registry (read-only use).
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Connect creates the session for a freshly opened connection.
func (h *Hub) Connect(client *Client) *Session {
	session := &Session{hub: h, client: client, state: StateConnected}
	h.mu.Lock()
	h.sessions[client] = session
	h.mu.Unlock()
	h.log.Debug().Str("client_id", client.ID).Str("username", client.Username).Msg("connection opened")
	return session
}

// Disconnect drives the terminal transition for a connection. Safe to call
// more than once; only the first call tears presence down.
func (h *Hub) Disconnect(client *Client) {
	h.mu.Lock()
	session, ok := h.sessions[client]
	delete(h.sessions, client)
	h.mu.Unlock()
	if !ok {
		return
	}
	session.close()
	h.log.Debug().Str("client_id", client.ID).Msg("connection closed")
}

// dispatch maps command kinds to session operations.
var dispatch = map[CommandKind]func(*Session, context.Context, Command){
	CommandJoinRoom:    func(s *Session, ctx context.Context, cmd Command) { s.join(ctx, cmd.Room, cmd.Password) },
	CommandLeaveRoom:   func(s *Session, ctx context.Context, cmd Command) { s.leave(ctx, cmd.Room) },
	CommandDrawStart:   func(s *Session, _ context.Context, cmd Command) { s.drawStart(cmd) },
	CommandDrawMove:    func(s *Session, _ context.Context, cmd Command) { s.drawMove(cmd) },
	CommandDrawEnd:     func(s *Session, _ context.Context, cmd Command) { s.drawEnd(cmd) },
	CommandClearCanvas: func(s *Session, _ context.Context, cmd Command) { s.clearCanvas(cmd) },
	CommandChatMessage: func(s *Session, _ context.Context, cmd Command) { s.chat(cmd) },
	CommandCursorMove:  func(s *Session, _ context.Context, cmd Command) { s.cursorMove(cmd) },
}

// Dispatch routes a decoded command to its session operation. Unknown kinds
// produce a bad_request to the sender; nothing here is fatal.
func (h *Hub) Dispatch(ctx context.Context, session *Session, cmd Command) {
	handler, ok := dispatch[cmd.Kind]
	if !ok {
		session.client.push(Event{
			Kind:  EventRoomError,
			Error: coreError(ErrCodeBadRequest, "unknown command"),
		})
		return
	}
	handler(session, ctx, cmd)
}

// releaseSlot undoes a durable add whose join was cancelled mid-flight. Runs
// on a background context: the connection's context is already gone.
func (h *Hub) releaseSlot(roomID, accountID int64) {
	if err := h.rooms.RemoveParticipant(context.Background(), roomID, accountID); err != nil {
		h.log.Warn().Err(err).Int64("room_id", roomID).Int64("account_id", accountID).
			Msg("failed to undo cancelled admission")
	}
}

// releaseDurable releases a participant slot after an explicit leave.
func (h *Hub) releaseDurable(ctx context.Context, roomID, accountID int64) {
	if err := h.rooms.RemoveParticipant(ctx, roomID, accountID); err != nil {
		h.log.Warn().Err(err).Int64("room_id", roomID).Int64("account_id", accountID).
			Msg("failed to release participant slot")
	}
}

func (h *Hub) recordJoin(roomID, accountID int64) {
	if h.recorder == nil {
		return
	}
	if _, err := h.recorder.StartDrawingSession(context.Background(), roomID, accountID); err != nil {
		h.log.Warn().Err(err).Int64("room_id", roomID).Msg("failed to start drawing session")
	}
}

func (h *Hub) recordLeave(roomID, accountID int64) {
	if h.recorder == nil {
		return
	}
	if err := h.recorder.EndDrawingSession(context.Background(), roomID, accountID); err != nil {
		h.log.Warn().Err(err).Int64("room_id", roomID).Msg("failed to end drawing session")
	}
}

func (h *Hub) recordContribution(roomID, accountID int64) {
	if h.recorder == nil {
		return
	}
	if err := h.recorder.IncrementContribution(context.Background(), roomID, accountID); err != nil {
		h.log.Warn().Err(err).Int64("room_id", roomID).Msg("failed to record contribution")
	}
}
