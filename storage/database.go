package storage

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// DefaultDBFileName is the SQLite filename under app data dir.
	DefaultDBFileName = "seadrop.db"
	// DefaultWALCheckpointInterval controls periodic WAL truncation.
	DefaultWALCheckpointInterval = 24 * time.Hour
	// DefaultSecurityEventRetention controls automatic security event pruning.
	DefaultSecurityEventRetention = 90 * 24 * time.Hour
)

var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS devices (
  device_id        TEXT PRIMARY KEY,
  device_name      TEXT NOT NULL,
  platform         INTEGER NOT NULL DEFAULT 0,
  form_factor      INTEGER NOT NULL DEFAULT 0,
  protocol_version INTEGER NOT NULL DEFAULT 0,
  trust_level      TEXT NOT NULL CHECK(trust_level IN ('unknown','discovered','pairing_pending','trusted','blocked')) DEFAULT 'unknown',
  capabilities     INTEGER NOT NULL DEFAULT 0,
  first_seen       INTEGER NOT NULL,
  last_seen        INTEGER NOT NULL,
  paired_at        INTEGER,
  user_alias       TEXT NOT NULL DEFAULT ''
);
`,
	`
CREATE TABLE IF NOT EXISTS device_keys (
  device_id  TEXT PRIMARY KEY REFERENCES devices(device_id) ON DELETE CASCADE,
  shared_key BLOB NOT NULL
);
`,
	`
CREATE TABLE IF NOT EXISTS transfer_history (
  transfer_id      TEXT PRIMARY KEY,
  peer_device_id   TEXT REFERENCES devices(device_id),
  direction        TEXT NOT NULL CHECK(direction IN ('send','receive')),
  final_state      TEXT NOT NULL,
  bytes_done       INTEGER NOT NULL DEFAULT 0,
  bytes_total      INTEGER NOT NULL DEFAULT 0,
  started_at       INTEGER NOT NULL,
  completed_at     INTEGER NOT NULL,
  successful_count INTEGER NOT NULL DEFAULT 0,
  failed_count     INTEGER NOT NULL DEFAULT 0,
  skipped_count    INTEGER NOT NULL DEFAULT 0,
  error_message    TEXT NOT NULL DEFAULT ''
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_transfer_history_peer_time
ON transfer_history (peer_device_id, completed_at DESC, transfer_id);
`,
	`
CREATE TABLE IF NOT EXISTS security_events (
  id             INTEGER PRIMARY KEY AUTOINCREMENT,
  event_type     TEXT NOT NULL,
  peer_device_id TEXT,
  details        TEXT NOT NULL,
  severity       TEXT NOT NULL CHECK(severity IN ('info','warning','critical')),
  timestamp      INTEGER NOT NULL
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_security_events_time
ON security_events (timestamp DESC, id DESC);
`,
	`
CREATE INDEX IF NOT EXISTS idx_security_events_peer
ON security_events (peer_device_id, timestamp DESC, id DESC);
`,
	`
CREATE TABLE IF NOT EXISTS seen_transfer_ids (
  transfer_id  TEXT NOT NULL,
  message_kind TEXT NOT NULL,
  received_at  INTEGER NOT NULL,
  PRIMARY KEY (transfer_id, message_kind)
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_seen_transfer_ids_received_at
ON seen_transfer_ids (received_at);
`,
	`
CREATE TABLE IF NOT EXISTS folder_transfers (
  folder_id       TEXT PRIMARY KEY,
  peer_device_id  TEXT REFERENCES devices(device_id),
  direction       TEXT NOT NULL CHECK(direction IN ('send','receive')),
  folder_name     TEXT NOT NULL,
  total_files     INTEGER NOT NULL,
  total_size      INTEGER NOT NULL,
  transfer_status TEXT NOT NULL DEFAULT 'pending',
  timestamp       INTEGER NOT NULL
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_folder_transfers_peer_time
ON folder_transfers (peer_device_id, timestamp DESC, folder_id);
`,
}

// Store is a thin wrapper around a SQLite connection.
type Store struct {
	db     *sql.DB
	dbPath string

	walCheckpointInterval  time.Duration
	walCheckpointStop      chan struct{}
	walCheckpointWG        sync.WaitGroup
	securityEventRetention time.Duration
	closeOnce              sync.Once
}

// Open opens (or creates) seadrop.db under the given data directory and
// runs migrations.
func Open(dataDir string) (*Store, string, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, "", fmt.Errorf("create storage directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DefaultDBFileName)
	store, err := OpenPath(dbPath)
	if err != nil {
		return nil, "", err
	}

	return store, dbPath, nil
}

// OpenPath opens SQLite at an explicit path and runs schema migrations.
func OpenPath(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", filepath.ToSlash(dbPath))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	store := &Store{
		db:                     db,
		dbPath:                 dbPath,
		walCheckpointInterval:  DefaultWALCheckpointInterval,
		walCheckpointStop:      make(chan struct{}),
		securityEventRetention: DefaultSecurityEventRetention,
	}
	if err := store.enableWALMode(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.applyMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.checkpointWAL(); err != nil {
		_ = db.Close()
		return nil, err
	}
	store.startWALCheckpointLoop()

	return store, nil
}

// Close closes the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	var closeErr error
	s.closeOnce.Do(func() {
		if s.walCheckpointStop != nil {
			close(s.walCheckpointStop)
			s.walCheckpointWG.Wait()
		}
		closeErr = s.db.Close()
		s.db = nil
	})
	return closeErr
}

// Integrity runs SQLite's built-in integrity check (spec §6).
func (s *Store) Integrity() error {
	var result string
	if err := s.db.QueryRow("PRAGMA integrity_check;").Scan(&result); err != nil {
		return fmt.Errorf("run integrity check: %w", err)
	}
	if !strings.EqualFold(result, "ok") {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// Vacuum rebuilds the database file to reclaim space (spec §6).
func (s *Store) Vacuum() error {
	if _, err := s.db.Exec("VACUUM;"); err != nil {
		return fmt.Errorf("vacuum database: %w", err)
	}
	return nil
}

// Backup checkpoints the WAL into the main database file, then copies that
// file byte-for-byte to destPath while holding the store's connection open.
func (s *Store) Backup(destPath string) error {
	if err := s.checkpointWAL(); err != nil {
		return err
	}

	src, err := os.Open(s.dbPath)
	if err != nil {
		return fmt.Errorf("open database file for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("copy database file to backup: %w", err)
	}
	return dst.Close()
}

func (s *Store) applyMigrations() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version >= len(migrations) {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i := version; i < len(migrations); i++ {
		if _, err := tx.Exec(migrations[i]); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d;", i+1)); err != nil {
			return fmt.Errorf("set schema version %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration transaction: %w", err)
	}

	return nil
}

func (s *Store) enableWALMode() error {
	var journalMode string
	if err := s.db.QueryRow("PRAGMA journal_mode=WAL;").Scan(&journalMode); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	if !strings.EqualFold(journalMode, "wal") {
		return fmt.Errorf("enable WAL mode: unexpected journal mode %q", journalMode)
	}
	return nil
}

func (s *Store) checkpointWAL() error {
	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
		return fmt.Errorf("wal checkpoint truncate: %w", err)
	}
	return nil
}

func (s *Store) startWALCheckpointLoop() {
	interval := s.walCheckpointInterval
	if interval <= 0 || s.walCheckpointStop == nil {
		return
	}

	s.walCheckpointWG.Add(1)
	go func() {
		defer s.walCheckpointWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_ = s.checkpointWAL()
			case <-s.walCheckpointStop:
				return
			}
		}
	}()
}
