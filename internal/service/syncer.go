package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pdvsuite/pdv-sync/internal/mapper"
	"github.com/pdvsuite/pdv-sync/internal/models"
	"github.com/pdvsuite/pdv-sync/internal/schema"
	"github.com/pdvsuite/pdv-sync/pkg/metrics"
)

// SettingLastSync is the settings key holding the watermark: the RFC3339
// UTC upper bound of the last fully successful pull.
const SettingLastSync = "last_sync_timestamp"

// ErrOffline reports that the pre-flight connectivity probe failed and the
// pass was aborted before touching any state.
var ErrOffline = errors.New("backend unreachable")

// LocalStore defines the contract for local persistence during a pass
type LocalStore interface {
	LookupStore
	PendingRows(ctx context.Context, table, status string) ([]models.PendingRecord, error)
	MarkCreated(ctx context.Context, table string, marks []models.CreatedMark) error
	MarkSyncedMany(ctx context.Context, table string, ids []int64) error
	UpsertFromRemote(ctx context.Context, table string, data models.Row, remoteID string) error
	CountPending(ctx context.Context) (int64, error)
}

// RemoteClient defines the contract for the backend REST API
type RemoteClient interface {
	CheckConnection(ctx context.Context) bool
	Select(ctx context.Context, table string, since, until time.Time, limit int) ([]models.Row, error)
	Insert(ctx context.Context, table string, rows []models.Row) ([]models.Row, error)
	Upsert(ctx context.Context, table string, rows []models.Row, conflictColumn string) ([]models.Row, error)
	Update(ctx context.Context, table string, row models.Row, matchColumn, matchValue string) (models.Row, error)
}

// Settings defines the contract for the durable key/value store
type Settings interface {
	Get(ctx context.Context, key, fallback string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Syncer drives one complete synchronization pass: push-creates, then
// push-updates, then pull, tables always in the fixed dependency order.
// The watermark only advances when the whole pass completes.
type Syncer struct {
	local     LocalStore
	remote    RemoteClient
	settings  Settings
	notifier  Notifier
	logger    *slog.Logger
	pullLimit int
	running   atomic.Bool
}

func NewSyncer(local LocalStore, remote RemoteClient, settings Settings, notifier Notifier, pullLimit int, logger *slog.Logger) *Syncer {
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &Syncer{
		local:     local,
		remote:    remote,
		settings:  settings,
		notifier:  notifier,
		logger:    logger,
		pullLimit: pullLimit,
	}
}

// Running reports whether a pass is currently in flight
func (s *Syncer) Running() bool {
	return s.running.Load()
}

// Run executes one synchronization pass end to end. A second concurrent
// call is a no-op, not an error. Per-row and per-table failures are
// contained inside their phase; only failures of the engine itself (local
// store or settings unavailable, context canceled) abort the pass and
// withhold the watermark.
func (s *Syncer) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		s.notifier.Progress("synchronization already in progress")
		metrics.SyncPasses.WithLabelValues("skipped").Inc()
		return nil
	}
	defer s.running.Store(false)

	start := time.Now()
	l := s.logger.With("run_id", uuid.NewString())

	if !s.remote.CheckConnection(ctx) {
		metrics.Healthy.Set(0)
		metrics.SyncPasses.WithLabelValues("offline").Inc()
		s.notifier.Finished(false, "no connectivity")
		l.Warn("Backend unreachable, pass aborted before any mutation")
		return ErrOffline
	}
	metrics.Healthy.Set(1)

	lastRaw, err := s.settings.Get(ctx, SettingLastSync, "")
	if err != nil {
		return s.fail(l, fmt.Errorf("failed to read watermark: %w", err))
	}
	var since time.Time
	if lastRaw != "" {
		since, err = time.Parse(time.RFC3339, lastRaw)
		if err != nil {
			// A mangled watermark re-pulls history; the pull is idempotent
			l.Warn("Stored watermark is unparseable, pulling from the beginning", "value", lastRaw)
			since = time.Time{}
		}
	}

	// Captured before any data moves: a remote change racing this pass may
	// be re-pulled next time, but can never be missed
	until := time.Now().UTC()

	l.Info("Synchronization pass started", "window_from", lastRaw, "window_to", until.Format(time.RFC3339))
	s.notifier.Progress("starting synchronization")

	// One translator cache per pass; it dies with the run
	builder := mapper.NewBuilder(NewIDTranslator(s.local), l)

	if err := s.pushCreates(ctx, l, builder); err != nil {
		return s.fail(l, err)
	}
	if err := s.pushUpdates(ctx, l, builder); err != nil {
		return s.fail(l, err)
	}
	if err := s.pull(ctx, l, builder, since, until); err != nil {
		return s.fail(l, err)
	}

	if err := s.settings.Set(ctx, SettingLastSync, until.Format(time.RFC3339)); err != nil {
		return s.fail(l, fmt.Errorf("failed to persist watermark: %w", err))
	}

	if backlog, err := s.local.CountPending(ctx); err == nil {
		metrics.PendingBacklog.Set(float64(backlog))
	}
	metrics.SyncPasses.WithLabelValues("success").Inc()
	metrics.PassDuration.Observe(time.Since(start).Seconds())

	l.Info("Synchronization pass complete", "duration_ms", time.Since(start).Milliseconds())
	s.notifier.Finished(true, "synchronized up to "+until.Format(time.RFC3339))
	return nil
}

func (s *Syncer) fail(l *slog.Logger, err error) error {
	metrics.SyncPasses.WithLabelValues("failure").Inc()
	l.Error("Synchronization pass aborted", "error", err)
	s.notifier.Finished(false, err.Error())
	return err
}

// pushCreates uploads every pending_create row, table by table in
// dependency order. A remote failure isolates to its table: the batch
// stays pending and the pass moves on.
func (s *Syncer) pushCreates(ctx context.Context, l *slog.Logger, builder *mapper.Builder) error {
	for _, table := range schema.Order {
		if err := ctx.Err(); err != nil {
			return err
		}
		desc := schema.Tables[table]

		records, err := s.local.PendingRows(ctx, table, models.StatusPendingCreate)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			continue
		}

		var localIDs []int64
		var payloads []models.Row
		for _, rec := range records {
			payload, err := builder.Outbound(ctx, table, rec)
			if errors.Is(err, mapper.ErrNotReady) {
				l.Warn("Row deferred, parent not synchronized yet", "table", table, "id", rec.LocalID)
				metrics.RowsPushed.WithLabelValues("create", table, "deferred").Inc()
				continue
			}
			if err != nil {
				return err
			}
			localIDs = append(localIDs, rec.LocalID)
			payloads = append(payloads, payload)
		}
		if len(payloads) == 0 {
			continue
		}

		var returned []models.Row
		if desc.ConflictColumn != "" {
			returned, err = s.remote.Upsert(ctx, table, payloads, desc.ConflictColumn)
		} else {
			returned, err = s.remote.Insert(ctx, table, payloads)
		}
		if err != nil {
			l.Error("Push-creates failed for table, deferring batch", "table", table, "count", len(payloads), "error", err)
			metrics.RowsPushed.WithLabelValues("create", table, "error").Add(float64(len(payloads)))
			continue
		}
		if len(returned) != len(payloads) {
			l.Error("Backend returned unexpected row count, deferring batch",
				"table", table, "sent", len(payloads), "returned", len(returned))
			continue
		}

		marks := make([]models.CreatedMark, 0, len(returned))
		for i, row := range returned {
			remoteID, err := mapper.RemoteID(row)
			if err != nil {
				l.Error("Backend row has no usable id", "table", table, "local_id", localIDs[i], "error", err)
				continue
			}
			marks = append(marks, models.CreatedMark{LocalID: localIDs[i], RemoteID: remoteID})
		}
		if err := s.local.MarkCreated(ctx, table, marks); err != nil {
			return err
		}

		metrics.RowsPushed.WithLabelValues("create", table, "sent").Add(float64(len(marks)))
		s.notifier.Progress(fmt.Sprintf("%s: %d new records sent", table, len(marks)))
		l.Info("Push-creates table done", "table", table, "sent", len(marks))
	}
	return nil
}

// pushUpdates uploads every pending_update row that already exists
// remotely. The remote call is per row, but the local synced marks commit
// once per table: a mid-table remote failure leaves the whole table
// pending for the next pass.
func (s *Syncer) pushUpdates(ctx context.Context, l *slog.Logger, builder *mapper.Builder) error {
	for _, table := range schema.Order {
		if err := ctx.Err(); err != nil {
			return err
		}

		records, err := s.local.PendingRows(ctx, table, models.StatusPendingUpdate)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			continue
		}

		var done []int64
		tableFailed := false
		for _, rec := range records {
			remoteID, err := s.local.RemoteIDFor(ctx, table, rec.LocalID)
			if err != nil {
				return err
			}
			if remoteID == "" {
				// Impossible by invariant, but a stray row must not wedge the pass
				l.Warn("pending_update row has no remote id, skipping", "table", table, "id", rec.LocalID)
				continue
			}

			payload, err := builder.Outbound(ctx, table, rec)
			if errors.Is(err, mapper.ErrNotReady) {
				l.Warn("Row deferred, parent not synchronized yet", "table", table, "id", rec.LocalID)
				metrics.RowsPushed.WithLabelValues("update", table, "deferred").Inc()
				continue
			}
			if err != nil {
				return err
			}

			if _, err := s.remote.Update(ctx, table, payload, "id", remoteID); err != nil {
				l.Error("Push-updates failed for table, deferring remainder",
					"table", table, "id", rec.LocalID, "error", err)
				metrics.RowsPushed.WithLabelValues("update", table, "error").Inc()
				tableFailed = true
				break
			}
			done = append(done, rec.LocalID)
		}

		if tableFailed {
			continue
		}
		if err := s.local.MarkSyncedMany(ctx, table, done); err != nil {
			return err
		}
		if len(done) > 0 {
			metrics.RowsPushed.WithLabelValues("update", table, "sent").Add(float64(len(done)))
			s.notifier.Progress(fmt.Sprintf("%s: %d changes sent", table, len(done)))
			l.Info("Push-updates table done", "table", table, "sent", len(done))
		}
	}
	return nil
}

// pull applies every remote change in (since, until], table by table in
// dependency order. Failure isolation here is per row: each inbound row
// commits on its own, so one malformed row cannot roll back a table's
// worth of good data.
func (s *Syncer) pull(ctx context.Context, l *slog.Logger, builder *mapper.Builder, since, until time.Time) error {
	for _, table := range schema.Order {
		if err := ctx.Err(); err != nil {
			return err
		}

		applied := 0
		fetched := 0
		cursor := since
		for {
			rows, err := s.remote.Select(ctx, table, cursor, until, s.pullLimit)
			if err != nil {
				l.Error("Pull failed for table, skipping", "table", table, "error", err)
				metrics.RowsPulled.WithLabelValues(table, "error").Inc()
				break
			}
			if len(rows) == 0 {
				break
			}
			fetched += len(rows)

			for _, row := range rows {
				payload, err := builder.Inbound(ctx, table, row)
				if errors.Is(err, mapper.ErrNotReady) {
					metrics.RowsPulled.WithLabelValues(table, "deferred").Inc()
					continue
				}
				if err != nil {
					l.Warn("Inbound row rejected", "table", table, "error", err)
					metrics.RowsPulled.WithLabelValues(table, "error").Inc()
					continue
				}

				remoteID, _ := mapper.RemoteID(row)
				if err := s.local.UpsertFromRemote(ctx, table, payload, remoteID); err != nil {
					l.Error("Failed to apply remote row", "table", table, "remote_id", remoteID, "error", err)
					metrics.RowsPulled.WithLabelValues(table, "error").Inc()
					continue
				}
				applied++
			}

			// A short page means the window is drained
			if s.pullLimit <= 0 || len(rows) < s.pullLimit {
				break
			}
			next, ok := pageCursor(rows[len(rows)-1])
			if !ok || !next.After(cursor) {
				// Only possible when the backend stops stamping updated_at;
				// paging cannot continue
				l.Error("Pull page cursor cannot advance, abandoning remainder",
					"table", table, "fetched", fetched)
				metrics.RowsPulled.WithLabelValues(table, "error").Inc()
				break
			}
			cursor = next
		}

		if applied > 0 {
			metrics.RowsPulled.WithLabelValues(table, "applied").Add(float64(applied))
			s.notifier.Progress(fmt.Sprintf("%s: %d remote changes applied", table, applied))
			l.Info("Pull table done", "table", table, "applied", applied, "fetched", fetched)
		}
	}
	return nil
}

// pageCursor reads the updated_at of the last row of a full page; it
// becomes the exclusive lower bound of the next page.
func pageCursor(row models.Row) (time.Time, bool) {
	raw, ok := row["updated_at"].(string)
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
