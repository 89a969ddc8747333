package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by store implementations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRoomFull is returned by AddParticipant when the room is at capacity.
	ErrRoomFull = errors.New("room full")
	// ErrDuplicate is returned when a unique constraint would be violated.
	ErrDuplicate = errors.New("duplicate record")
)

// UnlimitedParticipants is the capacity sentinel for rooms without a limit.
const UnlimitedParticipants = -1

// SubscriptionTier determines per-account limits.
type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "free"
	TierPro        SubscriptionTier = "pro"
	TierEnterprise SubscriptionTier = "enterprise"
)

// TierLimits describes what a subscription tier allows.
type TierLimits struct {
	MaxRooms        int // -1 means unlimited
	MaxParticipants int // -1 means unlimited
	PersistenceDays int // -1 means forever
}

// LimitsFor returns the limits for a tier. Unknown tiers get free limits.
func LimitsFor(tier SubscriptionTier) TierLimits {
	switch tier {
	case TierPro:
		return TierLimits{MaxRooms: 10, MaxParticipants: 15, PersistenceDays: 30}
	case TierEnterprise:
		return TierLimits{MaxRooms: -1, MaxParticipants: -1, PersistenceDays: -1}
	default:
		return TierLimits{MaxRooms: 2, MaxParticipants: 5, PersistenceDays: 1}
	}
}

// Account represents a registered user.
type Account struct {
	ID           int64
	Username     string
	PasswordHash string
	Tier         SubscriptionTier
	RoomsCreated int
	IsGuest      bool
	SessionID    string // for guest session tracking
	CreatedAt    time.Time
	LastLogin    time.Time
}

// Room represents a persisted collaborative room. It is the source of truth
// for authorization (who is allowed in), not for live presence.
type Room struct {
	ID              int64
	Code            string // 6 chars, [A-Z0-9], unique
	Name            string
	Description     string
	OwnerID         int64
	IsPublic        bool
	PasswordHash    string // empty means no password
	MaxParticipants int    // UnlimitedParticipants means no cap
	IsActive        bool
	CreatedAt       time.Time
	LastActivity    time.Time
}

// HasPassword reports whether the room is password protected.
func (r *Room) HasPassword() bool {
	return r.PasswordHash != ""
}

// Unlimited reports whether the room has no participant cap.
func (r *Room) Unlimited() bool {
	return r.MaxParticipants == UnlimitedParticipants
}

// RoomSettings carries owner-editable room fields. Nil pointers leave the
// corresponding field unchanged; an empty *Password clears the password.
type RoomSettings struct {
	Name        *string
	Description *string
	IsPublic    *bool
	Password    *string // pre-hashed; empty string clears
}

// DrawingSession records one participant's stay in a room, for engagement
// analytics. A session is open while LeftAt is nil.
type DrawingSession struct {
	ID              int64
	RoomID          int64
	AccountID       int64
	JoinedAt        time.Time
	LeftAt          *time.Time
	Contributions   int
	DurationSeconds int
}

// AccountStore handles account persistence.
type AccountStore interface {
	// CreateAccount creates a new account with hashed password.
	CreateAccount(ctx context.Context, username, passwordHash string) (*Account, error)

	// CreateGuestAccount creates a temporary guest account keyed by session ID.
	CreateGuestAccount(ctx context.Context, sessionID string) (*Account, error)

	// GetAccountByID retrieves an account by ID.
	GetAccountByID(ctx context.Context, id int64) (*Account, error)

	// GetAccountByUsername retrieves a non-guest account by username.
	GetAccountByUsername(ctx context.Context, username string) (*Account, error)

	// UpdatePassword replaces the account's password hash.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// TouchLastLogin records a login time.
	TouchLastLogin(ctx context.Context, id int64) error

	// AdjustRoomCount adds delta to rooms_created, never going below zero.
	AdjustRoomCount(ctx context.Context, id int64, delta int) error
}

// RoomStore handles room persistence. AddParticipant is the capacity gate:
// the capacity check and the insert happen in one transaction so two
// concurrent joiners cannot both pass the check.
type RoomStore interface {
	// CreateRoom persists a new room. ErrDuplicate is returned on a code
	// collision so callers can retry with a fresh code.
	CreateRoom(ctx context.Context, room *Room) (*Room, error)

	// FindRoomByCode retrieves a room by its code, case-insensitively.
	FindRoomByCode(ctx context.Context, code string) (*Room, error)

	// ListPublicRooms lists active public rooms, most recently active first.
	ListPublicRooms(ctx context.Context, limit int) ([]*Room, error)

	// ListRoomsByOwner lists rooms owned by an account.
	ListRoomsByOwner(ctx context.Context, ownerID int64) ([]*Room, error)

	// HasParticipant reports whether the account holds a durable slot.
	HasParticipant(ctx context.Context, roomID, accountID int64) (bool, error)

	// ParticipantCount returns the number of durable slots in use.
	ParticipantCount(ctx context.Context, roomID int64) (int, error)

	// ParticipantUsernames returns usernames of durable participants in
	// join order.
	ParticipantUsernames(ctx context.Context, roomID int64) ([]string, error)

	// AddParticipant grants the account a durable slot. It is a conditional
	// insert: ErrRoomFull when the room is at capacity, added=false when the
	// account already held a slot.
	AddParticipant(ctx context.Context, roomID, accountID int64) (added bool, err error)

	// RemoveParticipant releases the account's durable slot. Removing an
	// absent participant is a no-op.
	RemoveParticipant(ctx context.Context, roomID, accountID int64) error

	// UpdateRoomSettings applies owner edits.
	UpdateRoomSettings(ctx context.Context, roomID int64, settings RoomSettings) error

	// DeactivateRoom soft-deletes a room (is_active = false).
	DeactivateRoom(ctx context.Context, roomID int64) error

	// SaveCanvas stores the serialized canvas state.
	SaveCanvas(ctx context.Context, roomID int64, data string) error

	// GetCanvas retrieves the serialized canvas state, empty if never saved.
	GetCanvas(ctx context.Context, roomID int64) (string, error)

	// TouchRoomActivity bumps last_activity.
	TouchRoomActivity(ctx context.Context, roomID int64) error
}

// SessionLogStore records drawing sessions for analytics.
type SessionLogStore interface {
	// StartDrawingSession opens a session row for the participant.
	StartDrawingSession(ctx context.Context, roomID, accountID int64) (int64, error)

	// EndDrawingSession closes the participant's open session, computing
	// its duration. Closing an already-closed session is a no-op.
	EndDrawingSession(ctx context.Context, roomID, accountID int64) error

	// IncrementContribution bumps the contribution counter of the
	// participant's open session.
	IncrementContribution(ctx context.Context, roomID, accountID int64) error
}

// Store is the full persistence interface.
type Store interface {
	AccountStore
	RoomStore
	SessionLogStore

	// Close releases underlying resources.
	Close() error
}
