package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/meakaliaG/cocanvas-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	tier          TEXT NOT NULL DEFAULT 'free',
	rooms_created INTEGER NOT NULL DEFAULT 0,
	is_guest      BOOLEAN NOT NULL DEFAULT 0,
	session_id    TEXT,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_login    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	code             TEXT NOT NULL UNIQUE,
	name             TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	owner_id         INTEGER NOT NULL,
	is_public        BOOLEAN NOT NULL DEFAULT 1,
	password_hash    TEXT NOT NULL DEFAULT '',
	max_participants INTEGER NOT NULL DEFAULT 5,
	is_active        BOOLEAN NOT NULL DEFAULT 1,
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_activity    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	canvas_data      TEXT,
	FOREIGN KEY (owner_id) REFERENCES accounts(id)
);

CREATE TABLE IF NOT EXISTS room_participants (
	room_id    INTEGER NOT NULL,
	account_id INTEGER NOT NULL,
	joined_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (room_id, account_id),
	FOREIGN KEY (room_id) REFERENCES rooms(id),
	FOREIGN KEY (account_id) REFERENCES accounts(id)
);

CREATE TABLE IF NOT EXISTS drawing_sessions (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id          INTEGER NOT NULL,
	account_id       INTEGER NOT NULL,
	joined_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	left_at          DATETIME,
	contributions    INTEGER NOT NULL DEFAULT 0,
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (room_id) REFERENCES rooms(id),
	FOREIGN KEY (account_id) REFERENCES accounts(id)
);

CREATE INDEX IF NOT EXISTS idx_rooms_owner ON rooms(owner_id, last_activity DESC);
CREATE INDEX IF NOT EXISTS idx_rooms_public ON rooms(is_public, is_active, last_activity DESC);
CREATE INDEX IF NOT EXISTS idx_participants_account ON room_participants(account_id);
CREATE INDEX IF NOT EXISTS idx_sessions_room ON drawing_sessions(room_id, account_id);
`

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function after the
// schema is applied. Useful for tests that need fixture rows.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	s, err := New(dbPath)
	if err != nil {
		return nil, err
	}
	if setup != nil {
		if err := setup(s.db); err != nil {
			s.db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// ==== AccountStore implementation ====

const accountColumns = `id, username, password_hash, tier, rooms_created, is_guest, COALESCE(session_id, ''), created_at, last_login`

func scanAccount(row *sql.Row) (*store.Account, error) {
	var a store.Account
	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.PasswordHash,
		&a.Tier,
		&a.RoomsCreated,
		&a.IsGuest,
		&a.SessionID,
		&a.CreatedAt,
		&a.LastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}

// CreateAccount creates a new account with hashed password.
func (s *SQLiteStore) CreateAccount(ctx context.Context, username, passwordHash string) (*store.Account, error) {
	query := `
		INSERT INTO accounts (username, password_hash, tier)
		VALUES (?, ?, 'free')
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetAccountByID(ctx, id)
}

// CreateGuestAccount creates a temporary guest account keyed by session ID.
func (s *SQLiteStore) CreateGuestAccount(ctx context.Context, sessionID string) (*store.Account, error) {
	guestUsername := "guest_" + sessionID[:8]

	query := `
		INSERT INTO accounts (username, password_hash, tier, is_guest, session_id)
		VALUES (?, '', 'free', 1, ?)
	`
	result, err := s.db.ExecContext(ctx, query, guestUsername, sessionID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("insert guest account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetAccountByID(ctx, id)
}

// GetAccountByID retrieves an account by ID.
func (s *SQLiteStore) GetAccountByID(ctx context.Context, id int64) (*store.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`
	return scanAccount(s.db.QueryRowContext(ctx, query, id))
}

// GetAccountByUsername retrieves a non-guest account by username.
func (s *SQLiteStore) GetAccountByUsername(ctx context.Context, username string) (*store.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = ? AND is_guest = 0`
	return scanAccount(s.db.QueryRowContext(ctx, query, username))
}

// UpdatePassword replaces the account's password hash.
func (s *SQLiteStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// TouchLastLogin records a login time.
func (s *SQLiteStore) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET last_login = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

// AdjustRoomCount adds delta to rooms_created, never going below zero.
func (s *SQLiteStore) AdjustRoomCount(ctx context.Context, id int64, delta int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET rooms_created = MAX(rooms_created + ?, 0) WHERE id = ?`, delta, id)
	if err != nil {
		return fmt.Errorf("adjust room count: %w", err)
	}
	return nil
}

// ==== RoomStore implementation ====

const roomColumns = `id, code, name, description, owner_id, is_public, password_hash, max_participants, is_active, created_at, last_activity`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*store.Room, error) {
	var r store.Room
	err := row.Scan(
		&r.ID,
		&r.Code,
		&r.Name,
		&r.Description,
		&r.OwnerID,
		&r.IsPublic,
		&r.PasswordHash,
		&r.MaxParticipants,
		&r.IsActive,
		&r.CreatedAt,
		&r.LastActivity,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan room: %w", err)
	}
	return &r, nil
}

// CreateRoom persists a new room.
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *store.Room) (*store.Room, error) {
	query := `
		INSERT INTO rooms (code, name, description, owner_id, is_public, password_hash, max_participants)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		room.Code,
		room.Name,
		room.Description,
		room.OwnerID,
		room.IsPublic,
		room.PasswordHash,
		room.MaxParticipants,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("insert room: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.getRoomByID(ctx, id)
}

func (s *SQLiteStore) getRoomByID(ctx context.Context, id int64) (*store.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`
	return scanRoom(s.db.QueryRowContext(ctx, query, id))
}

// FindRoomByCode retrieves a room by its code, case-insensitively.
func (s *SQLiteStore) FindRoomByCode(ctx context.Context, code string) (*store.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE code = ?`
	return scanRoom(s.db.QueryRowContext(ctx, query, store.NormalizeRoomCode(code)))
}

// ListPublicRooms lists active public rooms, most recently active first.
func (s *SQLiteStore) ListPublicRooms(ctx context.Context, limit int) ([]*store.Room, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + roomColumns + `
		FROM rooms
		WHERE is_public = 1 AND is_active = 1
		ORDER BY last_activity DESC
		LIMIT ?
	`
	return s.queryRooms(ctx, query, limit)
}

// ListRoomsByOwner lists rooms owned by an account.
func (s *SQLiteStore) ListRoomsByOwner(ctx context.Context, ownerID int64) ([]*store.Room, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM rooms
		WHERE owner_id = ?
		ORDER BY last_activity DESC
	`
	return s.queryRooms(ctx, query, ownerID)
}

func (s *SQLiteStore) queryRooms(ctx context.Context, query string, args ...any) ([]*store.Room, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var result []*store.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rooms: %w", err)
	}
	return result, nil
}

// HasParticipant reports whether the account holds a durable slot.
func (s *SQLiteStore) HasParticipant(ctx context.Context, roomID, accountID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM room_participants WHERE room_id = ? AND account_id = ?)`
	var exists bool
	if err := s.db.QueryRowContext(ctx, query, roomID, accountID).Scan(&exists); err != nil {
		return false, fmt.Errorf("query participant: %w", err)
	}
	return exists, nil
}

// ParticipantCount returns the number of durable slots in use.
func (s *SQLiteStore) ParticipantCount(ctx context.Context, roomID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM room_participants WHERE room_id = ?`, roomID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return count, nil
}

// ParticipantUsernames returns usernames of durable participants in join order.
func (s *SQLiteStore) ParticipantUsernames(ctx context.Context, roomID int64) ([]string, error) {
	query := `
		SELECT a.username
		FROM room_participants p
		JOIN accounts a ON a.id = p.account_id
		WHERE p.room_id = ?
		ORDER BY p.joined_at, a.id
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query participant usernames: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan username: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usernames: %w", err)
	}
	return names, nil
}

// AddParticipant grants the account a durable slot. The capacity check and
// the insert run in one transaction so concurrent joiners at the boundary
// cannot both get in.
func (s *SQLiteStore) AddParticipant(ctx context.Context, roomID, accountID int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var maxParticipants int
	err = tx.QueryRowContext(ctx,
		`SELECT max_participants FROM rooms WHERE id = ?`, roomID).Scan(&maxParticipants)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, store.ErrNotFound
		}
		return false, fmt.Errorf("query room capacity: %w", err)
	}

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM room_participants WHERE room_id = ? AND account_id = ?)`,
		roomID, accountID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query participant: %w", err)
	}
	if exists {
		return false, nil
	}

	if maxParticipants != store.UnlimitedParticipants {
		var count int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM room_participants WHERE room_id = ?`, roomID).Scan(&count)
		if err != nil {
			return false, fmt.Errorf("count participants: %w", err)
		}
		if count >= maxParticipants {
			return false, store.ErrRoomFull
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO room_participants (room_id, account_id) VALUES (?, ?)`, roomID, accountID)
	if err != nil {
		return false, fmt.Errorf("insert participant: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE rooms SET last_activity = CURRENT_TIMESTAMP WHERE id = ?`, roomID)
	if err != nil {
		return false, fmt.Errorf("touch room activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit add participant: %w", err)
	}
	return true, nil
}

// RemoveParticipant releases the account's durable slot.
func (s *SQLiteStore) RemoveParticipant(ctx context.Context, roomID, accountID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM room_participants WHERE room_id = ? AND account_id = ?`, roomID, accountID)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE rooms SET last_activity = CURRENT_TIMESTAMP WHERE id = ?`, roomID)
	if err != nil {
		return fmt.Errorf("touch room activity: %w", err)
	}
	return nil
}

// UpdateRoomSettings applies owner edits.
func (s *SQLiteStore) UpdateRoomSettings(ctx context.Context, roomID int64, settings store.RoomSettings) error {
	if settings.Name != nil {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE rooms SET name = ? WHERE id = ?`, *settings.Name, roomID); err != nil {
			return fmt.Errorf("update room name: %w", err)
		}
	}
	if settings.Description != nil {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE rooms SET description = ? WHERE id = ?`, *settings.Description, roomID); err != nil {
			return fmt.Errorf("update room description: %w", err)
		}
	}
	if settings.IsPublic != nil {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE rooms SET is_public = ? WHERE id = ?`, *settings.IsPublic, roomID); err != nil {
			return fmt.Errorf("update room visibility: %w", err)
		}
	}
	if settings.Password != nil {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE rooms SET password_hash = ? WHERE id = ?`, *settings.Password, roomID); err != nil {
			return fmt.Errorf("update room password: %w", err)
		}
	}
	return nil
}

// DeactivateRoom soft-deletes a room.
func (s *SQLiteStore) DeactivateRoom(ctx context.Context, roomID int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET is_active = 0 WHERE id = ?`, roomID)
	if err != nil {
		return fmt.Errorf("deactivate room: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SaveCanvas stores the serialized canvas state.
func (s *SQLiteStore) SaveCanvas(ctx context.Context, roomID int64, data string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET canvas_data = ?, last_activity = CURRENT_TIMESTAMP WHERE id = ?`, data, roomID)
	if err != nil {
		return fmt.Errorf("save canvas: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetCanvas retrieves the serialized canvas state, empty if never saved.
func (s *SQLiteStore) GetCanvas(ctx context.Context, roomID int64) (string, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(canvas_data, '') FROM rooms WHERE id = ?`, roomID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("query canvas: %w", err)
	}
	return data, nil
}

// TouchRoomActivity bumps last_activity.
func (s *SQLiteStore) TouchRoomActivity(ctx context.Context, roomID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET last_activity = CURRENT_TIMESTAMP WHERE id = ?`, roomID)
	if err != nil {
		return fmt.Errorf("touch room activity: %w", err)
	}
	return nil
}

// ==== SessionLogStore implementation ====

// StartDrawingSession opens a session row for the participant.
func (s *SQLiteStore) StartDrawingSession(ctx context.Context, roomID, accountID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO drawing_sessions (room_id, account_id) VALUES (?, ?)`, roomID, accountID)
	if err != nil {
		return 0, fmt.Errorf("insert drawing session: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	return id, nil
}

// EndDrawingSession closes the participant's open session.
func (s *SQLiteStore) EndDrawingSession(ctx context.Context, roomID, accountID int64) error {
	query := `
		UPDATE drawing_sessions
		SET left_at = CURRENT_TIMESTAMP,
		    duration_seconds = CAST((JULIANDAY(CURRENT_TIMESTAMP) - JULIANDAY(joined_at)) * 86400 AS INTEGER)
		WHERE room_id = ? AND account_id = ? AND left_at IS NULL
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, accountID); err != nil {
		return fmt.Errorf("end drawing session: %w", err)
	}
	return nil
}

// IncrementContribution bumps the contribution counter of the open session.
func (s *SQLiteStore) IncrementContribution(ctx context.Context, roomID, accountID int64) error {
	query := `
		UPDATE drawing_sessions
		SET contributions = contributions + 1
		WHERE room_id = ? AND account_id = ? AND left_at IS NULL
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, accountID); err != nil {
		return fmt.Errorf("increment contribution: %w", err)
	}
	return nil
}
