package diagnostics

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB persists one row per conversion's AuditReport, a table/image
// content-fingerprint cache (FingerprintSeen/RecordFingerprint; the
// convert pipeline and CLI do not call them, so repeated runs do not skip
// duplicates through it), and per-marker orchestration-resume state so a
// separate orchestrate-retry pass can pick up where a partially failed
// Orchestrate left off.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens or creates a diagnostics database at path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open diagnostics database: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init diagnostics schema: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error { return db.conn.Close() }

func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_reports (
		id INTEGER PRIMARY KEY,
		source_path TEXT UNIQUE NOT NULL,
		page_id TEXT,
		report_json TEXT NOT NULL,
		converted_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS content_fingerprints (
		fingerprint TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		resolved_ref TEXT,
		first_seen INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS marker_state (
		id INTEGER PRIMARY KEY,
		page_id TEXT NOT NULL,
		marker TEXT NOT NULL,
		host_id TEXT,
		payload_json TEXT NOT NULL,
		resolved INTEGER DEFAULT 0,
		last_error TEXT,
		UNIQUE(page_id, marker)
	);

	CREATE INDEX IF NOT EXISTS idx_audit_reports_path ON audit_reports(source_path);
	CREATE INDEX IF NOT EXISTS idx_marker_state_page ON marker_state(page_id);
	CREATE INDEX IF NOT EXISTS idx_marker_state_resolved ON marker_state(resolved);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveReport records one document's AuditReport keyed by its source path,
// upserting on repeat conversions of the same file.
func (db *DB) SaveReport(sourcePath, pageID string, report AuditReport, convertedAt time.Time) error {
	blob, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal audit report: %w", err)
	}
	_, err = db.conn.Exec(`
		INSERT INTO audit_reports (source_path, page_id, report_json, converted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_path) DO UPDATE SET
			page_id = excluded.page_id,
			report_json = excluded.report_json,
			converted_at = excluded.converted_at
	`, sourcePath, nullString(pageID), string(blob), convertedAt.Unix())
	return err
}

// FingerprintSeen reports whether fingerprint has already been resolved to
// a persisted reference, returning that reference if so.
func (db *DB) FingerprintSeen(fingerprint string) (ref string, seen bool, err error) {
	err = db.conn.QueryRow(`SELECT resolved_ref FROM content_fingerprints WHERE fingerprint = ?`, fingerprint).Scan(&ref)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return ref, true, nil
}

// RecordFingerprint registers fingerprint (an image URL or table content
// hash) as resolved to ref, so a later run over the same corpus can reuse
// it instead of re-uploading or re-emitting.
func (db *DB) RecordFingerprint(fingerprint, kind, ref string, seenAt time.Time) error {
	_, err := db.conn.Exec(`
		INSERT INTO content_fingerprints (fingerprint, kind, resolved_ref, first_seen)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET resolved_ref = excluded.resolved_ref
	`, fingerprint, kind, nullString(ref), seenAt.Unix())
	return err
}

// MarkerState is one marker's durable orchestration-resume record.
type MarkerState struct {
	PageID      string
	Marker      string
	HostID      string
	PayloadJSON string
	Resolved    bool
	LastError   string
}

// SaveMarkerState upserts the resume state for one marker belonging to
// pageID, called once per marker right after Collect & Emit so a crash
// between page creation and full orchestration still leaves a durable
// record of what remains to be appended.
func (db *DB) SaveMarkerState(m MarkerState) error {
	resolved := 0
	if m.Resolved {
		resolved = 1
	}
	_, err := db.conn.Exec(`
		INSERT INTO marker_state (page_id, marker, host_id, payload_json, resolved, last_error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(page_id, marker) DO UPDATE SET
			host_id = excluded.host_id,
			payload_json = excluded.payload_json,
			resolved = excluded.resolved,
			last_error = excluded.last_error
	`, m.PageID, m.Marker, nullString(m.HostID), m.PayloadJSON, resolved, nullString(m.LastError))
	return err
}

// UnresolvedMarkers returns every marker for pageID not yet marked
// resolved, for an orchestrate-retry pass to pick up.
func (db *DB) UnresolvedMarkers(pageID string) ([]MarkerState, error) {
	rows, err := db.conn.Query(`
		SELECT page_id, marker, host_id, payload_json, resolved, last_error
		FROM marker_state
		WHERE page_id = ? AND resolved = 0
		ORDER BY id
	`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MarkerState
	for rows.Next() {
		var m MarkerState
		var hostID, lastError sql.NullString
		var resolved int
		if err := rows.Scan(&m.PageID, &m.Marker, &hostID, &m.PayloadJSON, &resolved, &lastError); err != nil {
			return nil, fmt.Errorf("scan marker state: %w", err)
		}
		m.HostID = hostID.String
		m.LastError = lastError.String
		m.Resolved = resolved != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
