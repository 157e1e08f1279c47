package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pdvsuite/pdv-sync/internal/models"
	"github.com/pdvsuite/pdv-sync/internal/schema"
)

// LocalStore handles data infrastructure at the till level
type LocalStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open initializes the embedded SQLite database used by the till
func Open(path string, logger *slog.Logger) (*LocalStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open local database: %w", err)
	}

	// SQLite takes a single writer; one connection on this pool keeps the
	// sync worker from fighting the till application for the write lock
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("local database ping failed: %w", err)
	}

	logger.Info("Connected to local database", "path", path)

	return &LocalStore{
		db:     db,
		logger: logger,
	}, nil
}

// Init creates the synchronized tables and the settings table if absent
func (s *LocalStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create local schema: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for collaborators sharing the database
// file (settings store, tests)
func (s *LocalStore) DB() *sqlx.DB {
	return s.db
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}

// PendingRows returns every row of the table carrying the given sync
// status, oldest first, as generic column maps
func (s *LocalStore) PendingRows(ctx context.Context, table, status string) ([]models.PendingRecord, error) {
	desc, err := schema.Lookup(table)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE sync_status = ? ORDER BY id ASC", desc.Name)
	rows, err := s.db.QueryxContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s rows from %s: %w", status, table, err)
	}
	defer rows.Close()

	var records []models.PendingRecord
	for rows.Next() {
		data := models.Row{}
		if err := rows.MapScan(data); err != nil {
			return nil, fmt.Errorf("scan failure on %s: %w", table, err)
		}
		localID, ok := asLocalID(data[schema.ColumnLocalID])
		if !ok {
			return nil, fmt.Errorf("row in %s has no usable local id", table)
		}
		records = append(records, models.PendingRecord{LocalID: localID, Data: data})
	}
	return records, rows.Err()
}

// MarkCreated records the remote ids handed back by the push-creates phase
// and flips the rows to synced, atomically for the whole table batch
func (s *LocalStore) MarkCreated(ctx context.Context, table string, marks []models.CreatedMark) error {
	desc, err := schema.Lookup(table)
	if err != nil {
		return err
	}
	if len(marks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction on %s: %w", table, err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf("UPDATE %s SET id_web = ?, sync_status = ? WHERE id = ?", desc.Name)
	for _, m := range marks {
		if _, err := tx.ExecContext(ctx, query, m.RemoteID, models.StatusSynced, m.LocalID); err != nil {
			return fmt.Errorf("failed to mark %s row %d as created: %w", table, m.LocalID, err)
		}
	}

	return tx.Commit()
}

// MarkSyncedMany flips pushed-update rows back to synced, atomically for
// the whole table batch
func (s *LocalStore) MarkSyncedMany(ctx context.Context, table string, ids []int64) error {
	desc, err := schema.Lookup(table)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction on %s: %w", table, err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf("UPDATE %s SET sync_status = ? WHERE id = ?", desc.Name)
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, query, models.StatusSynced, id); err != nil {
			return fmt.Errorf("failed to mark %s row %d as synced: %w", table, id, err)
		}
	}

	return tx.Commit()
}

// RemoteIDFor resolves a local primary key to the backend id, or "" when
// the row is unknown or has never been pushed
func (s *LocalStore) RemoteIDFor(ctx context.Context, table string, localID int64) (string, error) {
	desc, err := schema.Lookup(table)
	if err != nil {
		return "", err
	}

	var remoteID sql.NullString
	query := fmt.Sprintf("SELECT id_web FROM %s WHERE id = ?", desc.Name)
	err = s.db.GetContext(ctx, &remoteID, query, localID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("remote id lookup failed on %s: %w", table, err)
	}
	if !remoteID.Valid {
		return "", nil
	}
	return remoteID.String, nil
}

// LocalIDFor resolves a backend id to the local primary key, or 0 when no
// local row carries that remote id yet
func (s *LocalStore) LocalIDFor(ctx context.Context, table string, remoteID string) (int64, error) {
	desc, err := schema.Lookup(table)
	if err != nil {
		return 0, err
	}

	var localID int64
	query := fmt.Sprintf("SELECT id FROM %s WHERE id_web = ?", desc.Name)
	err = s.db.GetContext(ctx, &localID, query, remoteID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("local id lookup failed on %s: %w", table, err)
	}
	return localID, nil
}

// UpsertFromRemote applies one inbound row: update in place when a local
// row already carries the remote id, insert otherwise. Each call is its
// own transaction so a bad remote row cannot take the rest of the pull
// down with it
func (s *LocalStore) UpsertFromRemote(ctx context.Context, table string, data models.Row, remoteID string) error {
	desc, err := schema.Lookup(table)
	if err != nil {
		return err
	}
	if remoteID == "" {
		return fmt.Errorf("inbound row for %s has no remote id", table)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction on %s: %w", table, err)
	}
	defer tx.Rollback()

	var localID int64
	lookup := fmt.Sprintf("SELECT id FROM %s WHERE id_web = ?", desc.Name)
	err = tx.GetContext(ctx, &localID, lookup, remoteID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		query, args, err := buildInsert(desc.Name, data)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("inbound insert failed on %s: %w", table, err)
		}
	case err != nil:
		return fmt.Errorf("inbound lookup failed on %s: %w", table, err)
	default:
		query, args, err := buildUpdate(desc.Name, schema.ColumnLocalID, localID, data)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("inbound update failed on %s: %w", table, err)
		}
	}

	return tx.Commit()
}

// ApplyMutation is the business-level write helper the rest of the
// application must use for local edits. It applies the conditional status
// transition: a pending_create row stays pending_create, anything else
// becomes pending_update
func (s *LocalStore) ApplyMutation(ctx context.Context, table string, localID int64, changes models.Row) error {
	desc, err := schema.Lookup(table)
	if err != nil {
		return err
	}

	data := models.Row{}
	for k, v := range changes {
		if k == schema.ColumnLocalID || k == schema.ColumnSyncStatus {
			continue
		}
		data[k] = v
	}
	data[schema.ColumnModifiedAt] = time.Now().UTC().Format(time.RFC3339)

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var setClauses []string
	var args []any
	for _, k := range keys {
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", k))
		args = append(args, formatValue(data[k]))
	}
	setClauses = append(setClauses,
		"sync_status = CASE WHEN sync_status = 'pending_create' THEN 'pending_create' ELSE 'pending_update' END")

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", desc.Name, strings.Join(setClauses, ", "))
	args = append(args, localID)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mutation failed on %s row %d: %w", table, localID, err)
	}
	return nil
}

// CountPending totals the local rows still waiting to be pushed, feeding
// the backlog gauge
func (s *LocalStore) CountPending(ctx context.Context) (int64, error) {
	var total int64
	for _, table := range schema.Order {
		var n int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE sync_status != ?", table)
		if err := s.db.GetContext(ctx, &n, query, models.StatusSynced); err != nil {
			return 0, fmt.Errorf("backlog count failed on %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}

func asLocalID(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}
