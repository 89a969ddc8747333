package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/meakaliaG/cocanvas-server/internal/auth"
	"github.com/meakaliaG/cocanvas-server/internal/core"
	"github.com/meakaliaG/cocanvas-server/internal/store"
)

// roomCodeAttempts bounds how many random codes creation tries before
// giving up on the unique index.
const roomCodeAttempts = 10

// RoomHandlers provides HTTP handlers for room management endpoints.
type RoomHandlers struct {
	store store.Store
	hub   *core.Hub
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.Store, hub *core.Hub, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store: st,
		hub:   hub,
		log:   logger,
	}
}

// CreateRoomRequest represents the create room request body.
type CreateRoomRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=50"`
	Description string `json:"description" binding:"max=200"`
	IsPublic    *bool  `json:"isPublic"`
	Password    string `json:"password"`
}

// UpdateRoomRequest represents the room settings request body. Nil fields are
// left unchanged; an empty password clears the password.
type UpdateRoomRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"isPublic"`
	Password    *string `json:"password"`
}

// SaveCanvasRequest represents the canvas save request body.
type SaveCanvasRequest struct {
	CanvasData string `json:"canvasData" binding:"required"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	RoomCode         string `json:"roomCode"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	OwnerID          int64  `json:"ownerId"`
	IsPublic         bool   `json:"isPublic"`
	HasPassword      bool   `json:"hasPassword"`
	MaxParticipants  int    `json:"maxParticipants"`
	ParticipantCount int    `json:"participantCount"`
	LiveCount        int    `json:"liveCount"`
	IsActive         bool   `json:"isActive"`
	CreatedAt        string `json:"createdAt"`
	LastActivity     string `json:"lastActivity"`
}

func (h *RoomHandlers) roomResponse(c *gin.Context, room *store.Room) RoomResponse {
	count, err := h.store.ParticipantCount(c.Request.Context(), room.ID)
	if err != nil {
		h.log.Warn().Err(err).Str("room_code", room.Code).Msg("failed to count participants")
	}
	return RoomResponse{
		RoomCode:         room.Code,
		Name:             room.Name,
		Description:      room.Description,
		OwnerID:          room.OwnerID,
		IsPublic:         room.IsPublic,
		HasPassword:      room.HasPassword(),
		MaxParticipants:  room.MaxParticipants,
		ParticipantCount: count,
		LiveCount:        h.hub.Registry().Count(room.Code),
		IsActive:         room.IsActive,
		CreatedAt:        room.CreatedAt.Format(time.RFC3339),
		LastActivity:     room.LastActivity.Format(time.RFC3339),
	}
}

// CreateRoom handles room creation. The owner's subscription tier fixes both
// the room limit and the new room's capacity.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	ownerID, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	account, err := h.store.GetAccountByID(c.Request.Context(), ownerID)
	if err != nil {
		h.log.Error().Err(err).Int64("account_id", ownerID).Msg("failed to load account")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	limits := store.LimitsFor(account.Tier)
	if limits.MaxRooms != -1 && account.RoomsCreated >= limits.MaxRooms {
		c.JSON(http.StatusForbidden, gin.H{
			"error":           "room limit reached for your subscription tier",
			"upgradeRequired": true,
		})
		return
	}

	passwordHash := ""
	if pw := strings.TrimSpace(req.Password); pw != "" {
		passwordHash, err = auth.HashPassword(pw)
		if err != nil {
			h.log.Error().Err(err).Msg("failed to hash room password")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	room := &store.Room{
		Name:            strings.TrimSpace(req.Name),
		Description:     strings.TrimSpace(req.Description),
		OwnerID:         ownerID,
		IsPublic:        isPublic,
		PasswordHash:    passwordHash,
		MaxParticipants: limits.MaxParticipants,
	}

	// Retry on code collision against the unique index.
	var created *store.Room
	for attempt := 0; attempt < roomCodeAttempts; attempt++ {
		room.Code = store.NewRoomCode()
		created, err = h.store.CreateRoom(c.Request.Context(), room)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicate) {
			h.log.Error().Err(err).Msg("failed to create room")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
	}
	if created == nil {
		h.log.Error().Msg("could not generate unique room code")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not generate unique room code"})
		return
	}

	if err := h.store.AdjustRoomCount(c.Request.Context(), ownerID, 1); err != nil {
		h.log.Warn().Err(err).Int64("account_id", ownerID).Msg("failed to bump room count")
	}

	h.log.Info().Str("room_code", created.Code).Int64("owner_id", ownerID).Msg("room created")
	c.JSON(http.StatusCreated, h.roomResponse(c, created))
}

// ListPublicRooms lists active public rooms.
// GET /api/rooms
func (h *RoomHandlers) ListPublicRooms(c *gin.Context) {
	rooms, err := h.store.ListPublicRooms(c.Request.Context(), 50)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list public rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, h.roomResponse(c, room))
	}
	c.JSON(http.StatusOK, response)
}

// ListMyRooms lists rooms owned by the authenticated account.
// GET /api/rooms/mine
func (h *RoomHandlers) ListMyRooms(c *gin.Context) {
	ownerID, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	rooms, err := h.store.ListRoomsByOwner(c.Request.Context(), ownerID)
	if err != nil {
		h.log.Error().Err(err).Int64("owner_id", ownerID).Msg("failed to list owned rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, h.roomResponse(c, room))
	}
	c.JSON(http.StatusOK, response)
}

// findRoom loads a room by code, writing the error response on failure.
func (h *RoomHandlers) findRoom(c *gin.Context) (*store.Room, bool) {
	code := c.Param("code")
	room, err := h.store.FindRoomByCode(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return nil, false
		}
		h.log.Error().Err(err).Str("room_code", code).Msg("failed to load room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return nil, false
	}
	return room, true
}

// GetRoom returns room info for the lobby and the room page.
// GET /api/rooms/:code
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	room, ok := h.findRoom(c)
	if !ok {
		return
	}
	if !room.IsActive {
		c.JSON(http.StatusGone, ErrorResponse{Error: "this room is no longer active"})
		return
	}

	isParticipant, err := h.store.HasParticipant(c.Request.Context(), room.ID, id)
	if err != nil {
		h.log.Error().Err(err).Str("room_code", room.Code).Msg("failed to check membership")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room":          h.roomResponse(c, room),
		"isOwner":       room.OwnerID == id,
		"isParticipant": isParticipant,
	})
}

// LeaveRoom releases the caller's durable participant slot.
// POST /api/rooms/:code/leave
func (h *RoomHandlers) LeaveRoom(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	room, ok := h.findRoom(c)
	if !ok {
		return
	}

	if err := h.store.RemoveParticipant(c.Request.Context(), room.ID, id); err != nil {
		h.log.Error().Err(err).Str("room_code", room.Code).Msg("failed to leave room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "left room"})
}

// GetCanvas returns the saved canvas state. Participants and the owner only.
// GET /api/rooms/:code/canvas
func (h *RoomHandlers) GetCanvas(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	room, ok := h.findRoom(c)
	if !ok {
		return
	}

	isParticipant, err := h.store.HasParticipant(c.Request.Context(), room.ID, id)
	if err != nil {
		h.log.Error().Err(err).Str("room_code", room.Code).Msg("failed to check membership")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if !isParticipant && room.OwnerID != id {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied, must be in room"})
		return
	}

	data, err := h.store.GetCanvas(c.Request.Context(), room.ID)
	if err != nil {
		h.log.Error().Err(err).Str("room_code", room.Code).Msg("failed to load canvas")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"canvasData": data})
}

// SaveCanvas stores the serialized canvas state. Participants only.
// PUT /api/rooms/:code/canvas
func (h *RoomHandlers) SaveCanvas(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req SaveCanvasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "canvas data is required"})
		return
	}

	room, ok := h.findRoom(c)
	if !ok {
		return
	}

	isParticipant, err := h.store.HasParticipant(c.Request.Context(), room.ID, id)
	if err != nil {
		h.log.Error().Err(err).Str("room_code", room.Code).Msg("failed to check membership")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if !isParticipant {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "access denied, must be in room"})
		return
	}

	if err := h.store.SaveCanvas(c.Request.Context(), room.ID, req.CanvasData); err != nil {
		h.log.Error().Err(err).Str("room_code", room.Code).Msg("failed to save canvas")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "canvas saved"})
}

// UpdateRoom applies owner-only settings changes.
// PATCH /api/rooms/:code
func (h *RoomHandlers) UpdateRoom(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	room, ok := h.findRoom(c)
	if !ok {
		return
	}
	if room.OwnerID != id {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only the room owner can change settings"})
		return
	}

	var req UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	settings := store.RoomSettings{
		Description: req.Description,
		IsPublic:    req.IsPublic,
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" || len(name) > 50 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room name"})
			return
		}
		settings.Name = &name
	}
	if req.Password != nil {
		if *req.Password == "" {
			empty := ""
			settings.Password = &empty
		} else {
			hash, err := auth.HashPassword(*req.Password)
			if err != nil {
				h.log.Error().Err(err).Msg("failed to hash room password")
				c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
				return
			}
			settings.Password = &hash
		}
	}

	if err := h.store.UpdateRoomSettings(c.Request.Context(), room.ID, settings); err != nil {
		h.log.Error().Err(err).Str("room_code", room.Code).Msg("failed to update room settings")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	updated, err := h.store.FindRoomByCode(c.Request.Context(), room.Code)
	if err != nil {
		h.log.Error().Err(err).Str("room_code", room.Code).Msg("failed to reload room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, h.roomResponse(c, updated))
}

// DeleteRoom soft-deletes a room. The persisted room stays owned until
// explicitly deleted here; deletion only flips is_active.
// DELETE /api/rooms/:code
func (h *RoomHandlers) DeleteRoom(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	room, ok := h.findRoom(c)
	if !ok {
		return
	}
	if room.OwnerID != id {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only the room owner can delete the room"})
		return
	}

	if err := h.store.DeactivateRoom(c.Request.Context(), room.ID); err != nil {
		h.log.Error().Err(err).Str("room_code", room.Code).Msg("failed to deactivate room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if err := h.store.AdjustRoomCount(c.Request.Context(), id, -1); err != nil {
		h.log.Warn().Err(err).Int64("account_id", id).Msg("failed to decrement room count")
	}

	h.log.Info().Str("room_code", room.Code).Msg("room deactivated")
	c.JSON(http.StatusOK, gin.H{"message": "room deleted"})
}
