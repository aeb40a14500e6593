// Package storage provides SQLite-backed run history and JSON result files.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/otawatch/internal/models"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database for all persistence operations.
type Storage struct {
	db      *sql.DB
	maxRuns int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/otawatch/history.db.
func New(maxRuns int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "otawatch", "history.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if maxRuns < 1 {
		maxRuns = 1000
	}
	s := &Storage{db: db, maxRuns: maxRuns}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id              TEXT PRIMARY KEY,
			site            TEXT NOT NULL,
			outcome         TEXT NOT NULL DEFAULT 'running',
			reservations    INTEGER NOT NULL DEFAULT 0,
			events          INTEGER NOT NULL DEFAULT 0,
			started_at      INTEGER NOT NULL,
			finished_at     INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS price_checks (
			id              TEXT PRIMARY KEY,
			run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			hotel_name      TEXT NOT NULL,
			room_type       TEXT,
			check_in        TEXT NOT NULL,
			check_out       TEXT NOT NULL,
			booked_price    TEXT NOT NULL,
			offer_name      TEXT,
			offer_price     TEXT NOT NULL,
			checked_at      INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS price_drops (
			id              TEXT PRIMARY KEY,
			run_id          TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			hotel_name      TEXT NOT NULL,
			room_type       TEXT,
			check_in        TEXT NOT NULL,
			check_out       TEXT NOT NULL,
			old_price       TEXT NOT NULL,
			new_price       TEXT NOT NULL,
			delta           TEXT NOT NULL,
			matched_name    TEXT,
			detected_at     INTEGER NOT NULL,
			notified        INTEGER DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checks_stay ON price_checks(hotel_name, check_in)`,
		`CREATE INDEX IF NOT EXISTS idx_drops_detected_at ON price_drops(detected_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// StartRun opens a run record and returns its ID.
func (s *Storage) StartRun(site string, at time.Time) (string, error) {
	id := uuid.NewString()
	if _, err := s.db.Exec(`INSERT INTO runs (id, site, started_at) VALUES (?,?,?)`,
		id, site, at.UnixNano()); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// FinishRun closes a run record and keeps only the newest maxRuns runs.
// Cascading deletes remove the checks and drops of rotated runs.
func (s *Storage) FinishRun(runID, outcome string, reservations, events int, at time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`
		UPDATE runs SET outcome=?, reservations=?, events=?, finished_at=?
		WHERE id=?`, outcome, reservations, events, at.UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}

	if _, err = tx.Exec(`
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC LIMIT ?
		)`, s.maxRuns); err != nil {
		return fmt.Errorf("failed to enforce run cap: %w", err)
	}

	return tx.Commit()
}

func (s *Storage) RecordCheck(runID string, c models.PriceCheck) error {
	_, err := s.db.Exec(`
		INSERT INTO price_checks
			(id, run_id, hotel_name, room_type, check_in, check_out,
			 booked_price, offer_name, offer_price, checked_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		uuid.NewString(), runID, c.HotelName, c.RoomType, c.CheckIn, c.CheckOut,
		c.BookedPrice.String(), c.OfferName, c.OfferPrice.String(), c.CheckedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert price check: %w", err)
	}
	return nil
}

func (s *Storage) RecordDrops(runID string, events []models.PriceDropEvent) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, e := range events {
		id := e.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err := tx.Exec(`
			INSERT INTO price_drops
				(id, run_id, hotel_name, room_type, check_in, check_out,
				 old_price, new_price, delta, matched_name, detected_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			id, runID, e.HotelName, e.RoomType, e.CheckIn, e.CheckOut,
			e.OldPrice.String(), e.NewPrice.String(), e.Delta.String(), e.MatchedName,
			e.DetectedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert price drop: %w", err)
		}
	}
	return tx.Commit()
}

// MarkNotified flags every drop of a run as delivered.
func (s *Storage) MarkNotified(runID string) error {
	if _, err := s.db.Exec(`UPDATE price_drops SET notified=1 WHERE run_id=?`, runID); err != nil {
		return fmt.Errorf("failed to mark drops notified: %w", err)
	}
	return nil
}

// RecentDrops returns the k most recently detected drops, newest first.
func (s *Storage) RecentDrops(k int) ([]models.PriceDropEvent, error) {
	rows, err := s.db.Query(`
		SELECT id, hotel_name, room_type, check_in, check_out,
		       old_price, new_price, delta, matched_name, detected_at
		FROM price_drops ORDER BY detected_at DESC LIMIT ?`, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query price drops: %w", err)
	}
	defer rows.Close()

	var events []models.PriceDropEvent
	for rows.Next() {
		var e models.PriceDropEvent
		var oldPrice, newPrice, delta string
		var matched sql.NullString
		var detectedAtNano int64

		err := rows.Scan(
			&e.ID, &e.HotelName, &e.RoomType, &e.CheckIn, &e.CheckOut,
			&oldPrice, &newPrice, &delta, &matched, &detectedAtNano,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price drop: %w", err)
		}

		if e.OldPrice, err = decimal.NewFromString(oldPrice); err != nil {
			return nil, fmt.Errorf("invalid stored price %q: %w", oldPrice, err)
		}
		if e.NewPrice, err = decimal.NewFromString(newPrice); err != nil {
			return nil, fmt.Errorf("invalid stored price %q: %w", newPrice, err)
		}
		if e.Delta, err = decimal.NewFromString(delta); err != nil {
			return nil, fmt.Errorf("invalid stored delta %q: %w", delta, err)
		}
		e.MatchedName = matched.String
		e.DetectedAt = time.Unix(0, detectedAtNano)
		events = append(events, e)
	}

	return events, rows.Err()
}

// RecentRuns returns the k most recent runs, newest first.
func (s *Storage) RecentRuns(k int) ([]models.Run, error) {
	rows, err := s.db.Query(`
		SELECT id, site, outcome, reservations, events, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var r models.Run
		var startedAtNano int64
		var finishedAtNano sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Site, &r.Outcome, &r.Reservations, &r.Events,
			&startedAtNano, &finishedAtNano); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, startedAtNano)
		if finishedAtNano.Valid {
			r.FinishedAt = time.Unix(0, finishedAtNano.Int64)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
