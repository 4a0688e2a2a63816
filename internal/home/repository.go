package home

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLogLimit = 50

// Repository defines household data persistence.
type Repository interface {
	CreateHome(ctx context.Context, h *Home) error
	GetHome(ctx context.Context, id string) (*Home, error)
	GetHomeByLinkingID(ctx context.Context, linkingID string) (*Home, error)

	CreateRoom(ctx context.Context, r *Room) error
	GetRooms(ctx context.Context, homeID string) ([]Room, error)

	CreateDevice(ctx context.Context, d *Device) error
	GetDevice(ctx context.Context, id string) (*Device, error)
	GetDevices(ctx context.Context, homeID string) ([]Device, error)
	GetDevicesByRoom(ctx context.Context, roomID string) ([]Device, error)
	UpdateDeviceStatus(ctx context.Context, homeID, deviceID, status string) error

	AddActivityLog(ctx context.Context, entry *ActivityLog) error
	GetActivityLogs(ctx context.Context, homeID string, filter LogFilter) ([]ActivityLog, error)

	SetUserAccess(ctx context.Context, homeID, accountID string, accessible bool) error
	GetUserAccess(ctx context.Context, homeID string) ([]UserAccess, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed household repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateHome inserts a new home. The ID is generated if empty.
func (r *SQLiteRepository) CreateHome(ctx context.Context, h *Home) error {
	if h.ID == "" {
		h.ID = "home-" + uuid.NewString()[:8]
	}
	h.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO homes (id, linking_id, name, created_at) VALUES (?, ?, ?, ?)`,
		h.ID, h.LinkingID, h.Name, h.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating home: %w", err)
	}
	return nil
}

// GetHome retrieves a home by its id.
func (r *SQLiteRepository) GetHome(ctx context.Context, id string) (*Home, error) {
	return r.getHome(ctx, "SELECT id, linking_id, name, created_at FROM homes WHERE id = ?", id)
}

// GetHomeByLinkingID retrieves the home owned by a linking id.
func (r *SQLiteRepository) GetHomeByLinkingID(ctx context.Context, linkingID string) (*Home, error) {
	return r.getHome(ctx, "SELECT id, linking_id, name, created_at FROM homes WHERE linking_id = ?", linkingID)
}

func (r *SQLiteRepository) getHome(ctx context.Context, query string, args ...any) (*Home, error) {
	var h Home
	var createdAt string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&h.ID, &h.LinkingID, &h.Name, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHomeNotFound
		}
		return nil, fmt.Errorf("getting home: %w", err)
	}
	h.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	return &h, nil
}

// CreateRoom inserts a new room. The ID is generated if empty.
func (r *SQLiteRepository) CreateRoom(ctx context.Context, room *Room) error {
	if room.ID == "" {
		room.ID = "room-" + uuid.NewString()[:8]
	}
	room.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rooms (id, home_id, name, created_at) VALUES (?, ?, ?, ?)`,
		room.ID, room.HomeID, room.Name, room.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating room: %w", err)
	}
	return nil
}

// GetRooms returns a home's rooms ordered by creation date.
func (r *SQLiteRepository) GetRooms(ctx context.Context, homeID string) ([]Room, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, home_id, name, created_at FROM rooms WHERE home_id = ? ORDER BY created_at ASC", homeID)
	if err != nil {
		return nil, fmt.Errorf("listing rooms: %w", err)
	}
	defer rows.Close()

	rooms := []Room{}
	for rows.Next() {
		var room Room
		var createdAt string
		if err := rows.Scan(&room.ID, &room.HomeID, &room.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning room: %w", err)
		}
		room.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rooms: %w", err)
	}
	return rooms, nil
}

const deviceColumns = "id, home_id, room_id, name, type, status, last_active, created_at"

// CreateDevice inserts a new device. The ID is generated if empty and
// the status defaults to "off".
func (r *SQLiteRepository) CreateDevice(ctx context.Context, d *Device) error {
	if d.ID == "" {
		d.ID = "dev-" + uuid.NewString()[:8]
	}
	if d.Status == "" {
		d.Status = "off"
	}
	d.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (id, home_id, room_id, name, type, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.HomeID, nullString(d.RoomID), d.Name, d.Type, d.Status,
		d.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating device: %w", err)
	}
	return nil
}

// GetDevice retrieves a device by its id.
func (r *SQLiteRepository) GetDevice(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+deviceColumns+" FROM devices WHERE id = ?", id)
	d, err := scanDevice(row)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetDevices returns a home's devices ordered by creation date.
func (r *SQLiteRepository) GetDevices(ctx context.Context, homeID string) ([]Device, error) {
	return r.listDevices(ctx, "SELECT "+deviceColumns+" FROM devices WHERE home_id = ? ORDER BY created_at ASC", homeID)
}

// GetDevicesByRoom returns the devices assigned to a room.
func (r *SQLiteRepository) GetDevicesByRoom(ctx context.Context, roomID string) ([]Device, error) {
	return r.listDevices(ctx, "SELECT "+deviceColumns+" FROM devices WHERE room_id = ? ORDER BY created_at ASC", roomID)
}

func (r *SQLiteRepository) listDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// UpdateDeviceStatus sets a device's status and last-active timestamp.
// The home id is part of the predicate so a caller can never reach a
// device outside its own home.
func (r *SQLiteRepository) UpdateDeviceStatus(ctx context.Context, homeID, deviceID, status string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET status = ?, last_active = ? WHERE id = ? AND home_id = ?`,
		status, now, deviceID, homeID,
	)
	if err != nil {
		return fmt.Errorf("updating device status: %w", err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// AddActivityLog appends a household event. The ID is generated if
// empty and the severity defaults to low.
func (r *SQLiteRepository) AddActivityLog(ctx context.Context, entry *ActivityLog) error {
	if entry.ID == "" {
		entry.ID = "log-" + uuid.NewString()[:8]
	}
	if entry.Severity == "" {
		entry.Severity = SeverityLow
	}
	entry.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_logs (id, home_id, type, message, user_id, device_id, severity, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.HomeID, entry.Type, entry.Message,
		nullString(entry.UserID), nullString(entry.DeviceID), entry.Severity,
		entry.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("adding activity log: %w", err)
	}
	return nil
}

// GetActivityLogs returns a home's newest activity entries.
func (r *SQLiteRepository) GetActivityLogs(ctx context.Context, homeID string, filter LogFilter) ([]ActivityLog, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLogLimit
	}

	query := `SELECT id, home_id, type, message, user_id, device_id, severity, created_at
		FROM activity_logs WHERE home_id = ?`
	args := []any{homeID}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}
	// rowid breaks ties between entries recorded in the same second.
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing activity logs: %w", err)
	}
	defer rows.Close()

	logs := []ActivityLog{}
	for rows.Next() {
		var entry ActivityLog
		var userID, deviceID sql.NullString
		var createdAt string
		if err := rows.Scan(&entry.ID, &entry.HomeID, &entry.Type, &entry.Message,
			&userID, &deviceID, &entry.Severity, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning activity log: %w", err)
		}
		entry.UserID = userID.String
		entry.DeviceID = deviceID.String
		entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating activity logs: %w", err)
	}
	return logs, nil
}

// SetUserAccess creates or updates a member's access flag.
func (r *SQLiteRepository) SetUserAccess(ctx context.Context, homeID, accountID string, accessible bool) error {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_access (home_id, account_id, accessible, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (home_id, account_id) DO UPDATE SET accessible = excluded.accessible`,
		homeID, accountID, boolToInt(accessible), now,
	)
	if err != nil {
		return fmt.Errorf("setting user access: %w", err)
	}
	return nil
}

// GetUserAccess returns all access flags for a home.
func (r *SQLiteRepository) GetUserAccess(ctx context.Context, homeID string) ([]UserAccess, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT home_id, account_id, accessible, created_at FROM user_access WHERE home_id = ?", homeID)
	if err != nil {
		return nil, fmt.Errorf("listing user access: %w", err)
	}
	defer rows.Close()

	access := []UserAccess{}
	for rows.Next() {
		var ua UserAccess
		var accessible int
		var createdAt string
		if err := rows.Scan(&ua.HomeID, &ua.AccountID, &accessible, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning user access: %w", err)
		}
		ua.Accessible = accessible != 0
		ua.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
		access = append(access, ua)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user access: %w", err)
	}
	return access, nil
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (*Device, error) {
	var d Device
	var roomID, lastActive sql.NullString
	var createdAt string

	err := s.Scan(&d.ID, &d.HomeID, &roomID, &d.Name, &d.Type, &d.Status, &lastActive, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("scanning device: %w", err)
	}

	d.RoomID = roomID.String
	if lastActive.Valid {
		t, _ := time.Parse(time.RFC3339, lastActive.String) //nolint:errcheck // format is controlled
		d.LastActive = &t
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled

	return &d, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
