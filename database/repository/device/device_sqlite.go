package deviceRepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"deviceinventory/models"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		brand TEXT NOT NULL,
		state TEXT NOT NULL CHECK (state IN ('AVAILABLE', 'IN_USE', 'INACTIVE')),
		creation_time TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_devices_brand ON devices(brand);
	CREATE INDEX IF NOT EXISTS idx_devices_state ON devices(state);
`

const selectDevices = `SELECT id, name, brand, state, creation_time FROM devices`

// Fixed-width layout so creation_time sorts correctly as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// SQLiteDeviceRepo implements DeviceRepository on top of database/sql with the sqlite3 driver.
type SQLiteDeviceRepo struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQLiteDeviceRepo creates a SQLite-backed repository and makes sure the devices table exists.
func NewSQLiteDeviceRepo(db *sql.DB, timeout time.Duration) (*SQLiteDeviceRepo, error) {
	repo := &SQLiteDeviceRepo{db: db, timeout: timeout}

	ctx, cancel := newContext(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("creating devices table: %w", err)
	}
	return repo, nil
}

// Create inserts a new device row.
func (r *SQLiteDeviceRepo) Create(ctx context.Context, device *models.Device) error {
	ctx, cancel := newContext(ctx, r.timeout)
	defer cancel()

	stampNew(device)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO devices (id, name, brand, state, creation_time) VALUES (?, ?, ?, ?, ?)`,
		device.ID, device.Name, device.Brand, string(device.State), formatTime(device.CreationTime))
	if err != nil {
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteDeviceRepo) GetByID(ctx context.Context, id string) (*models.Device, error) {
	ctx, cancel := newContext(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, selectDevices+` WHERE id = ?`, id)
	device, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// GetAll retrieves every device.
func (r *SQLiteDeviceRepo) GetAll(ctx context.Context) ([]models.Device, error) {
	return r.queryDevices(ctx, selectDevices+` ORDER BY creation_time, id`)
}

// GetByBrand retrieves devices with an exactly matching brand.
func (r *SQLiteDeviceRepo) GetByBrand(ctx context.Context, brand string) ([]models.Device, error) {
	return r.queryDevices(ctx, selectDevices+` WHERE brand = ? ORDER BY creation_time, id`, brand)
}

// GetByState retrieves devices in the given state.
func (r *SQLiteDeviceRepo) GetByState(ctx context.Context, state models.DeviceState) ([]models.Device, error) {
	return r.queryDevices(ctx, selectDevices+` WHERE state = ? ORDER BY creation_time, id`, string(state))
}

// Replace overwrites every column of an existing row.
func (r *SQLiteDeviceRepo) Replace(ctx context.Context, device *models.Device) error {
	ctx, cancel := newContext(ctx, r.timeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET name = ?, brand = ?, state = ?, creation_time = ? WHERE id = ?`,
		device.Name, device.Brand, string(device.State), formatTime(device.CreationTime), device.ID)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return requireAffected(result)
}

// Delete removes a device row by ID.
func (r *SQLiteDeviceRepo) Delete(ctx context.Context, id string) error {
	ctx, cancel := newContext(ctx, r.timeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireAffected(result)
}

// DeleteAll removes every row.
func (r *SQLiteDeviceRepo) DeleteAll(ctx context.Context) error {
	ctx, cancel := newContext(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM devices`); err != nil {
		return fmt.Errorf("deleting devices: %w", err)
	}
	return nil
}

func (r *SQLiteDeviceRepo) queryDevices(ctx context.Context, query string, args ...any) ([]models.Device, error) {
	ctx, cancel := newContext(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	devices := []models.Device{}
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*models.Device, error) {
	var (
		device  models.Device
		state   string
		created string
	)
	if err := row.Scan(&device.ID, &device.Name, &device.Brand, &state, &created); err != nil {
		return nil, err
	}

	parsedState, err := models.ParseDeviceState(state)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", device.ID, err)
	}
	device.State = parsedState

	device.CreationTime, err = time.Parse(sqliteTimeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("device %s: parsing creation_time: %w", device.ID, err)
	}
	return &device, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}
