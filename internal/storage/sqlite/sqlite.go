package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"hostwatch/internal/storage"
	"hostwatch/internal/storage/models"
	pkgerrors "hostwatch/pkg/errors"
)

// dbHandle is the common interface between *sql.DB and *sql.Tx.
type dbHandle interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DB implements the Storage interface using SQLite
type DB struct {
	db *sql.DB
}

// New creates a new SQLite storage instance
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	storage := &DB{db: db}

	if err := runMigrations(storage); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) handle() dbHandle { return d.db }

// BeginTx starts a new transaction
func (d *DB) BeginTx(ctx context.Context) (storage.Transaction, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Tx implements the Transaction interface
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Commit() error    { return t.tx.Commit() }
func (t *Tx) Rollback() error  { return t.tx.Rollback() }
func (t *Tx) handle() dbHandle { return t.tx }

func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *Tx) Close() error { return nil }

// ─── Target list operations ─────────────────────────────────────────────────

func (d *DB) CreateTargetList(ctx context.Context, list *models.TargetList) error {
	return createTargetList(ctx, d.handle(), list)
}
func (t *Tx) CreateTargetList(ctx context.Context, list *models.TargetList) error {
	return createTargetList(ctx, t.handle(), list)
}

func createTargetList(ctx context.Context, h dbHandle, list *models.TargetList) error {
	if _, err := getTargetListRow(ctx, h, list.Name); err == nil {
		return fmt.Errorf("%w: %s", pkgerrors.ErrListExists, list.Name)
	}

	result, err := h.ExecContext(ctx,
		"INSERT INTO target_lists (name, description) VALUES (?, ?)",
		list.Name, list.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to create target list: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	list.ID = id
	return nil
}

func (d *DB) GetTargetList(ctx context.Context, name string) (*models.TargetList, error) {
	return getTargetList(ctx, d.handle(), name)
}
func (t *Tx) GetTargetList(ctx context.Context, name string) (*models.TargetList, error) {
	return getTargetList(ctx, t.handle(), name)
}

func getTargetList(ctx context.Context, h dbHandle, name string) (*models.TargetList, error) {
	list, err := getTargetListRow(ctx, h, name)
	if err != nil {
		return nil, err
	}
	list.Specs, err = getTargetSpecs(ctx, h, list.ID)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func getTargetListRow(ctx context.Context, h dbHandle, name string) (*models.TargetList, error) {
	query := `
		SELECT id, name, description, created_at, updated_at
		FROM target_lists WHERE name = ?
	`
	list := &models.TargetList{}
	err := h.QueryRowContext(ctx, query, name).Scan(
		&list.ID, &list.Name, &list.Description, &list.CreatedAt, &list.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", pkgerrors.ErrListNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return list, nil
}

func getTargetSpecs(ctx context.Context, h dbHandle, listID int64) ([]string, error) {
	rows, err := h.QueryContext(ctx,
		"SELECT spec FROM target_specs WHERE list_id = ? ORDER BY position ASC", listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var specs []string
	for rows.Next() {
		var spec string
		if err := rows.Scan(&spec); err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, rows.Err()
}

func (d *DB) GetAllTargetLists(ctx context.Context) ([]*models.TargetList, error) {
	return getAllTargetLists(ctx, d.handle())
}
func (t *Tx) GetAllTargetLists(ctx context.Context) ([]*models.TargetList, error) {
	return getAllTargetLists(ctx, t.handle())
}

func getAllTargetLists(ctx context.Context, h dbHandle) ([]*models.TargetList, error) {
	query := `
		SELECT id, name, description, created_at, updated_at
		FROM target_lists ORDER BY name ASC
	`
	rows, err := h.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	var lists []*models.TargetList
	for rows.Next() {
		list := &models.TargetList{}
		if err := rows.Scan(&list.ID, &list.Name, &list.Description, &list.CreatedAt, &list.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Specs are loaded after the cursor is closed; a Tx has a single connection.
	for _, list := range lists {
		if list.Specs, err = getTargetSpecs(ctx, h, list.ID); err != nil {
			return nil, err
		}
	}
	return lists, nil
}

func (d *DB) SetTargetListDescription(ctx context.Context, listID int64, description string) error {
	return setTargetListDescription(ctx, d.handle(), listID, description)
}
func (t *Tx) SetTargetListDescription(ctx context.Context, listID int64, description string) error {
	return setTargetListDescription(ctx, t.handle(), listID, description)
}

func setTargetListDescription(ctx context.Context, h dbHandle, listID int64, description string) error {
	_, err := h.ExecContext(ctx,
		"UPDATE target_lists SET description = ? WHERE id = ?", description, listID)
	if err != nil {
		return fmt.Errorf("failed to update target list: %w", err)
	}
	return nil
}

func (d *DB) ReplaceTargetSpecs(ctx context.Context, listID int64, specs []string) error {
	return replaceTargetSpecs(ctx, d.handle(), listID, specs)
}
func (t *Tx) ReplaceTargetSpecs(ctx context.Context, listID int64, specs []string) error {
	return replaceTargetSpecs(ctx, t.handle(), listID, specs)
}

func replaceTargetSpecs(ctx context.Context, h dbHandle, listID int64, specs []string) error {
	if _, err := h.ExecContext(ctx, "DELETE FROM target_specs WHERE list_id = ?", listID); err != nil {
		return fmt.Errorf("failed to clear target specs: %w", err)
	}
	for i, spec := range specs {
		_, err := h.ExecContext(ctx,
			"INSERT INTO target_specs (list_id, position, spec) VALUES (?, ?, ?)",
			listID, i, spec,
		)
		if err != nil {
			return fmt.Errorf("failed to insert target spec: %w", err)
		}
	}
	_, err := h.ExecContext(ctx,
		"UPDATE target_lists SET updated_at = CURRENT_TIMESTAMP WHERE id = ?", listID)
	return err
}

func (d *DB) DeleteTargetList(ctx context.Context, name string) error {
	return deleteTargetList(ctx, d.handle(), name)
}
func (t *Tx) DeleteTargetList(ctx context.Context, name string) error {
	return deleteTargetList(ctx, t.handle(), name)
}

func deleteTargetList(ctx context.Context, h dbHandle, name string) error {
	result, err := h.ExecContext(ctx, "DELETE FROM target_lists WHERE name = ?", name)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", pkgerrors.ErrListNotFound, name)
	}
	return nil
}

// ─── Settings operations ────────────────────────────────────────────────────

func (d *DB) GetSetting(ctx context.Context, key string) (string, error) {
	return getSetting(ctx, d.handle(), key)
}
func (t *Tx) GetSetting(ctx context.Context, key string) (string, error) {
	return getSetting(ctx, t.handle(), key)
}

func getSetting(ctx context.Context, h dbHandle, key string) (string, error) {
	var value string
	err := h.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s", pkgerrors.ErrSettingNotFound, key)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	return setSetting(ctx, d.handle(), key, value)
}
func (t *Tx) SetSetting(ctx context.Context, key, value string) error {
	return setSetting(ctx, t.handle(), key, value)
}

func setSetting(ctx context.Context, h dbHandle, key, value string) error {
	query := `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	_, err := h.ExecContext(ctx, query, key, value)
	return err
}

func (d *DB) GetAllSettings(ctx context.Context) (map[string]string, error) {
	return getAllSettings(ctx, d.handle())
}
func (t *Tx) GetAllSettings(ctx context.Context) (map[string]string, error) {
	return getAllSettings(ctx, t.handle())
}

func getAllSettings(ctx context.Context, h dbHandle) (map[string]string, error) {
	rows, err := h.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}
