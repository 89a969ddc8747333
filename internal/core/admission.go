package core

import (
	"context"
	"errors"

	"github.com/meakaliaG/cocanvas-server/internal/store"
)

// RoomDirectory is the persisted-room collaborator consumed by admission and
// session teardown. The store is assumed to give read-your-writes consistency
// and an atomic, capacity-gated AddParticipant.
type RoomDirectory interface {
	FindRoomByCode(ctx context.Context, code string) (*store.Room, error)
	HasParticipant(ctx context.Context, roomID, accountID int64) (bool, error)
	ParticipantCount(ctx context.Context, roomID int64) (int, error)
	AddParticipant(ctx context.Context, roomID, accountID int64) (added bool, err error)
	RemoveParticipant(ctx context.Context, roomID, accountID int64) error
}

// PasswordVerifier checks a plaintext password against a stored hash.
// Injected so the core carries no crypto dependency.
type PasswordVerifier func(hash, password string) error

// AdmissionResult reports a successful admission.
type AdmissionResult struct {
	Room *store.Room
	// Added is true when this admission took a new durable slot, false for a
	// returning participant. A cancelled join must only undo the former.
	Added bool
}

// Admission validates join requests against persisted room state.
type Admission struct {
	rooms  RoomDirectory
	verify PasswordVerifier
}

// NewAdmission constructs an admission controller.
func NewAdmission(rooms RoomDirectory, verify PasswordVerifier) *Admission {
	return &Admission{rooms: rooms, verify: verify}
}

// Admit runs the admission checks in order: unknown room, inactive room,
// returning participant (succeeds immediately, before any capacity or
// password check), capacity, password, then the durable add. The durable add
// is the authoritative capacity gate: its conditional insert can still report
// the room full when a concurrent joiner won the last slot.
func (a *Admission) Admit(ctx context.Context, accountID int64, roomCode, password string) (*AdmissionResult, *CoreError) {
	room, err := a.rooms.FindRoomByCode(ctx, roomCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, coreError(ErrCodeRoomNotFound, "room not found")
		}
		return nil, coreError(ErrCodeInternal, "could not look up room")
	}

	if !room.IsActive {
		return nil, coreError(ErrCodeRoomInactive, "this room is no longer active")
	}

	member, err := a.rooms.HasParticipant(ctx, room.ID, accountID)
	if err != nil {
		return nil, coreError(ErrCodeInternal, "could not check membership")
	}
	if member {
		// Returning participant: no password or capacity re-check, so a
		// member is never locked out of a room that filled up after they
		// first joined.
		return &AdmissionResult{Room: room, Added: false}, nil
	}

	if !room.Unlimited() {
		count, err := a.rooms.ParticipantCount(ctx, room.ID)
		if err != nil {
			return nil, coreError(ErrCodeInternal, "could not check capacity")
		}
		if count >= room.MaxParticipants {
			return nil, coreError(ErrCodeRoomFull, "room is at maximum capacity")
		}
	}

	if room.HasPassword() {
		if password == "" {
			return nil, coreError(ErrCodePasswordRequired, "password required")
		}
		if err := a.verify(room.PasswordHash, password); err != nil {
			return nil, coreError(ErrCodePasswordIncorrect, "incorrect password")
		}
	}

	added, err := a.rooms.AddParticipant(ctx, room.ID, accountID)
	if err != nil {
		if errors.Is(err, store.ErrRoomFull) {
			return nil, coreError(ErrCodeRoomFull, "room is at maximum capacity")
		}
		return nil, coreError(ErrCodeInternal, "could not join room")
	}

	return &AdmissionResult{Room: room, Added: added}, nil
}
