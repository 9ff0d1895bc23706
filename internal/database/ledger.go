package database

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/bankrotscan/internal/model"
)

// FileName is the ledger database file inside the data directory.
const FileName = "bankrotscan.db"

// Ledger is the SQLite run ledger. It records every collection run and
// every record seen, with a content hash to tell new, changed and
// unchanged records apart. The workbook stays the dedupe authority; the
// ledger only observes.
type Ledger struct {
	db     *sql.DB
	dbPath string
}

// Options configures Ledger behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file.
	CreateIfNotExists bool

	// EnableWAL turns on write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the ledger in dbDir.
func Open(dbDir string, opts Options) (*Ledger, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	db, err := sql.Open("sqlite", dbPath+"?mode="+mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	l := &Ledger{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := l.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return l, nil
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.dbPath
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		output TEXT NOT NULL,
		status TEXT NOT NULL,
		interrupted INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		stats_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS records (
		source_url TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		guid TEXT,
		title TEXT,
		content_hash TEXT NOT NULL,
		first_run TEXT NOT NULL,
		last_run TEXT NOT NULL,
		first_seen TEXT NOT NULL,
		last_seen TEXT NOT NULL,
		changes INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind);
	`
	_, err := l.db.ExecContext(context.Background(), schema)
	return err
}

// Delta counts how records of one kind compare with the ledger.
type Delta struct {
	New       int
	Changed   int
	Unchanged int
}

// ContentHash is the SHA3-256 of a record's row values.
func ContentHash(rec model.Record) string {
	sum := sha3.Sum256([]byte(strings.Join(rec.Values(), "\x1f")))
	return hex.EncodeToString(sum[:])
}

// SaveRun upserts the run's records and inserts the run itself, in one
// transaction. The per-kind ledger counters of run are filled in before
// the run row is written. Records without a key are ignored.
func (l *Ledger) SaveRun(ctx context.Context, run *model.Run) (map[model.Kind]Delta, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	deltas := make(map[model.Kind]Delta, len(model.AllKinds))

	for _, kind := range model.AllKinds {
		var d Delta
		for _, rec := range run.Records(kind) {
			key := rec.Key()
			if key == "" {
				continue
			}
			state, err := upsertRecord(ctx, tx, run.ID, now, key, rec)
			if err != nil {
				return nil, err
			}
			switch state {
			case stateNew:
				d.New++
			case stateChanged:
				d.Changed++
			default:
				d.Unchanged++
			}
		}
		deltas[kind] = d
		stats := run.StatsFor(kind)
		stats.LedgerNew = d.New
		stats.LedgerChange = d.Changed
	}

	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize run stats: %w", err)
	}

	var finished sql.NullString
	if !run.FinishedAt.IsZero() {
		finished = sql.NullString{String: run.FinishedAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, started_at, finished_at, output, status, interrupted, error, stats_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		finished_at = excluded.finished_at,
		status = excluded.status,
		interrupted = excluded.interrupted,
		error = excluded.error,
		stats_json = excluded.stats_json
	`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		finished,
		run.Output,
		run.Status(),
		run.Interrupted,
		run.ErrorMessage,
		string(statsJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return deltas, nil
}

type recordState int

const (
	stateUnchanged recordState = iota
	stateNew
	stateChanged
)

func upsertRecord(ctx context.Context, tx *sql.Tx, runID, now, key string, rec model.Record) (recordState, error) {
	hash := ContentHash(rec)
	guid := ""
	switch r := rec.(type) {
	case *model.LegalEntityRecord:
		guid = r.GUID
	case *model.IndividualRecord:
		guid = r.GUID
	}

	var existing string
	err := tx.QueryRowContext(ctx, `SELECT content_hash FROM records WHERE source_url = ?`, key).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `
		INSERT INTO records (source_url, kind, guid, title, content_hash, first_run, last_run, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, key, string(rec.Kind()), guid, rec.Title(), hash, runID, runID, now, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert record %s: %w", key, err)
		}
		return stateNew, nil
	case err != nil:
		return 0, fmt.Errorf("failed to look up record %s: %w", key, err)
	}

	state := stateUnchanged
	changes := 0
	if existing != hash {
		state = stateChanged
		changes = 1
	}
	_, err = tx.ExecContext(ctx, `
	UPDATE records SET
		title = ?,
		content_hash = ?,
		last_run = ?,
		last_seen = ?,
		changes = changes + ?
	WHERE source_url = ?
	`, rec.Title(), hash, runID, now, changes, key)
	if err != nil {
		return 0, fmt.Errorf("failed to update record %s: %w", key, err)
	}
	return state, nil
}

// RunSummary is one row of the run history.
type RunSummary struct {
	ID          string                          `json:"id"`
	StartedAt   time.Time                       `json:"started_at"`
	FinishedAt  time.Time                       `json:"finished_at,omitzero"`
	Output      string                          `json:"output"`
	Status      string                          `json:"status"`
	Interrupted bool                            `json:"interrupted"`
	Error       string                          `json:"error,omitempty"`
	Stats       map[model.Kind]*model.KindStats `json:"stats"`
}

// ListRuns returns the most recent runs, newest first. A limit of zero
// or less returns every run.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
	SELECT id, started_at, finished_at, output, status, interrupted, error, stats_json
	FROM runs
	ORDER BY started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			s          RunSummary
			started    string
			finished   sql.NullString
			errMessage sql.NullString
			statsJSON  string
		)
		if err := rows.Scan(&s.ID, &started, &finished, &s.Output, &s.Status, &s.Interrupted, &errMessage, &statsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.StartedAt = parseTimestamp(started)
		if finished.Valid {
			s.FinishedAt = parseTimestamp(finished.String)
		}
		s.Error = errMessage.String
		if err := json.Unmarshal([]byte(statsJSON), &s.Stats); err != nil {
			s.Stats = map[model.Kind]*model.KindStats{}
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// RecordTotals summarizes the records table for one kind.
type RecordTotals struct {
	Records int `json:"records"`
	Changed int `json:"changed"`
}

// Totals returns record counts per kind.
func (l *Ledger) Totals(ctx context.Context) (map[model.Kind]RecordTotals, error) {
	rows, err := l.db.QueryContext(ctx, `
	SELECT kind, COUNT(*), SUM(CASE WHEN changes > 0 THEN 1 ELSE 0 END)
	FROM records
	GROUP BY kind
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	defer rows.Close()

	totals := make(map[model.Kind]RecordTotals, len(model.AllKinds))
	for _, k := range model.AllKinds {
		totals[k] = RecordTotals{}
	}
	for rows.Next() {
		var (
			kind string
			t    RecordTotals
		)
		if err := rows.Scan(&kind, &t.Records, &t.Changed); err != nil {
			return nil, fmt.Errorf("failed to scan totals: %w", err)
		}
		totals[model.Kind(kind)] = t
	}
	return totals, rows.Err()
}

// StoredRecord is one row of the records table.
type StoredRecord struct {
	SourceURL   string
	Kind        model.Kind
	GUID        string
	Title       string
	ContentHash string
	FirstRun    string
	LastRun     string
	FirstSeen   time.Time
	LastSeen    time.Time
	Changes     int
}

// GetRecord returns the ledger entry for sourceURL, or nil if unknown.
func (l *Ledger) GetRecord(ctx context.Context, sourceURL string) (*StoredRecord, error) {
	var (
		r                 StoredRecord
		kind, first, last string
		guid, title       sql.NullString
	)
	err := l.db.QueryRowContext(ctx, `
	SELECT source_url, kind, guid, title, content_hash, first_run, last_run, first_seen, last_seen, changes
	FROM records WHERE source_url = ?
	`, sourceURL).Scan(&r.SourceURL, &kind, &guid, &title, &r.ContentHash, &r.FirstRun, &r.LastRun, &first, &last, &r.Changes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	r.Kind = model.Kind(kind)
	r.GUID = guid.String
	r.Title = title.String
	r.FirstSeen = parseTimestamp(first)
	r.LastSeen = parseTimestamp(last)
	return &r, nil
}

// timestampFormats are tried in order when reading stored timestamps.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp parses a stored timestamp, returning the zero time when
// no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
