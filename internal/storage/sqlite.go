// Package storage keeps the control audit trail (start/stop requests) in a
// local sqlite database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/rusenback/dockergate/internal/logging"
	"github.com/rusenback/dockergate/internal/model"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("audit store closed")

const (
	defaultFlushInterval   = 5 * time.Second
	defaultCleanupInterval = time.Hour
	batchSize              = 50
	deleteBatchSize        = 1000
	queueSize              = 1000
)

type Options struct {
	// Retention drops entries older than this. Zero keeps everything.
	Retention       time.Duration
	FlushInterval   time.Duration
	CleanupInterval time.Duration
	Logger          logrus.FieldLogger
}

// Storage handles the persistent audit trail. Writes are queued and
// batch-inserted by one background writer.
type Storage struct {
	db        *sql.DB
	opts      Options
	logger    *logrus.Entry
	writeChan chan *model.AuditEntry
	flushChan chan chan struct{}
	closeChan chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	now       func() time.Time
}

// Open creates or opens the database at path and starts the background
// writer and retention cleanup.
func Open(path string, opts Options) (*Storage, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps sqlite writers serialized.
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Storage{
		db:        db,
		opts:      opts,
		logger:    logging.WithComponent(logger, "audit").WithField("db", path),
		writeChan: make(chan *model.AuditEntry, queueSize),
		flushChan: make(chan chan struct{}),
		closeChan: make(chan struct{}),
		now:       time.Now,
	}

	s.wg.Add(1)
	go s.writer()

	if opts.Retention > 0 {
		s.wg.Add(1)
		go s.cleanup()
	}

	return s, nil
}

func createTables(db *sql.DB) error {
	schema := `
	PRAGMA busy_timeout = 5000;

	CREATE TABLE IF NOT EXISTS control_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		action TEXT NOT NULL,
		container TEXT NOT NULL,
		status INTEGER NOT NULL,
		remote_addr TEXT,
		request_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_time
	ON control_audit(timestamp);
	`

	_, err := db.Exec(schema)
	return err
}

// Record queues an entry. It never blocks the request path: when the queue
// is full the entry is dropped and logged.
func (s *Storage) Record(entry model.AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}

	select {
	case <-s.closeChan:
		return
	default:
	}

	select {
	case s.writeChan <- &entry:
	default:
		s.logger.WithField("action", entry.Action).Warn("audit queue full, entry dropped")
	}
}

// Flush waits until every queued entry is written.
func (s *Storage) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case s.flushChan <- ack:
	case <-s.closeChan:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Storage) writer() {
	defer s.wg.Done()

	buffer := make([]*model.AuditEntry, 0, batchSize)
	ticker := time.NewTicker(s.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(buffer) > 0 {
			s.batchWrite(buffer)
			buffer = buffer[:0]
		}
	}
	drain := func() {
		for {
			select {
			case entry := <-s.writeChan:
				buffer = append(buffer, entry)
			default:
				return
			}
		}
	}

	for {
		select {
		case entry := <-s.writeChan:
			buffer = append(buffer, entry)
			if len(buffer) >= batchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case ack := <-s.flushChan:
			drain()
			flush()
			close(ack)

		case <-s.closeChan:
			drain()
			flush()
			return
		}
	}
}

func (s *Storage) batchWrite(entries []*model.AuditEntry) {
	tx, err := s.db.Begin()
	if err != nil {
		s.logger.WithError(err).Error("audit batch begin failed")
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO control_audit
		(timestamp, action, container, status, remote_addr, request_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		s.logger.WithError(err).Error("audit batch prepare failed")
		return
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.Exec(
			entry.Timestamp.UnixMilli(),
			entry.Action,
			entry.Container,
			entry.Status,
			entry.RemoteAddr,
			entry.RequestID,
		); err != nil {
			s.logger.WithError(err).WithField("action", entry.Action).Warn("audit insert failed")
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.WithError(err).Error("audit batch commit failed")
		return
	}
	s.logger.WithField("entries", len(entries)).Debug("audit batch written")
}

// Recent returns up to limit entries, newest first.
func (s *Storage) Recent(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, action, container, status, remote_addr, request_id
		FROM control_audit
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0, limit)
	for rows.Next() {
		var (
			entry     model.AuditEntry
			timestamp int64
			remote    sql.NullString
			requestID sql.NullString
		)
		if err := rows.Scan(&entry.ID, &timestamp, &entry.Action, &entry.Container, &entry.Status, &remote, &requestID); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Timestamp = time.UnixMilli(timestamp).UTC()
		entry.RemoteAddr = remote.String
		entry.RequestID = requestID.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// cleanup removes entries past the retention window periodically.
func (s *Storage) cleanup() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.CleanupInterval)
	defer ticker.Stop()

	s.Prune(s.now().Add(-s.opts.Retention))
	for {
		select {
		case <-ticker.C:
			s.Prune(s.now().Add(-s.opts.Retention))
		case <-s.closeChan:
			return
		}
	}
}

// Prune deletes entries older than cutoff in batches to keep the write lock
// short, and returns how many were removed.
func (s *Storage) Prune(cutoff time.Time) int64 {
	var total int64
	for {
		result, err := s.db.Exec(`
			DELETE FROM control_audit
			WHERE id IN (
				SELECT id FROM control_audit WHERE timestamp < ? LIMIT ?
			)`,
			cutoff.UnixMilli(),
			deleteBatchSize,
		)
		if err != nil {
			s.logger.WithError(err).Warn("audit cleanup failed")
			return total
		}

		n, err := result.RowsAffected()
		if err != nil || n == 0 {
			break
		}
		total += n
		if n < deleteBatchSize {
			break
		}

		select {
		case <-s.closeChan:
			return total
		case <-time.After(10 * time.Millisecond):
		}
	}
	if total > 0 {
		s.logger.WithField("deleted", total).Info("audit entries pruned")
	}
	return total
}

// Close flushes pending entries, stops the background goroutines and
// closes the database.
func (s *Storage) Close() error {
	err := ErrClosed
	s.closeOnce.Do(func() {
		close(s.closeChan)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}
