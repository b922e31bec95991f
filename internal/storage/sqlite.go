// Package storage persists tuning sessions and their round history in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/GoSim-25-26J-441/tuning-core/pkg/models"
)

// ErrNotFound is returned when a session id is not stored
var ErrNotFound = errors.New("session not found")

// SqliteStorage stores sessions, rounds and measurements
type SqliteStorage struct {
	db *sql.DB
}

// OpenSqlite opens (or creates) the database file at path
func OpenSqlite(path string) (*SqliteStorage, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SqliteStorage{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSqliteInMemory creates an in-memory database, mostly for tests
func NewSqliteInMemory() (*SqliteStorage, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// every pooled connection would see its own empty :memory: database
	db.SetMaxOpenConns(1)

	s := &SqliteStorage{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

func (s *SqliteStorage) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		parameters TEXT NOT NULL,
		config TEXT,
		result TEXT,
		error TEXT,
		metadata TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rounds (
		session_id TEXT NOT NULL,
		loop INTEGER NOT NULL,
		base TEXT NOT NULL,
		candidates TEXT NOT NULL,
		PRIMARY KEY (session_id, loop)
	);

	CREATE TABLE IF NOT EXISTS measurements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		loop INTEGER NOT NULL,
		coordinate TEXT NOT NULL,
		parameter_values TEXT,
		value REAL NOT NULL,
		start_ns INTEGER,
		end_ns INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_measurements_session ON measurements(session_id, loop);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveSession inserts a session or replaces its mutable columns. config is
// the session configuration document and is kept from the first save when
// nil.
func (s *SqliteStorage) SaveSession(ctx context.Context, sess *models.Session, config []byte) error {
	params, err := json.Marshal(sess.Parameters)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	result, err := encodeOptional(sess.Result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	var metadata interface{}
	if len(sess.Metadata) > 0 {
		b, err := json.Marshal(sess.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = string(b)
	}
	var cfg interface{}
	if config != nil {
		cfg = string(config)
	}

	created := sess.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	updated := sess.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, status, algorithm, parameters, config, result, error, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			algorithm = excluded.algorithm,
			parameters = excluded.parameters,
			config = COALESCE(excluded.config, sessions.config),
			result = excluded.result,
			error = excluded.error,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		sess.ID,
		string(sess.Status),
		sess.Algorithm,
		string(params),
		cfg,
		result,
		nullString(sess.Error),
		metadata,
		created.UnixNano(),
		updated.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// UpdateStatus changes the status and error text of a stored session
func (s *SqliteStorage) UpdateStatus(ctx context.Context, id string, status models.SessionStatus, errText string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET status = ?, error = ?, updated_at = ? WHERE id = ?",
		string(status), nullString(errText), time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return requireRow(res)
}

// UpdateResult stores the latest result of a session
func (s *SqliteStorage) UpdateResult(ctx context.Context, id string, result *models.Result) error {
	enc, err := encodeOptional(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET result = ?, updated_at = ? WHERE id = ?",
		enc, time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to update result: %w", err)
	}
	return requireRow(res)
}

// AppendRound stores a round and its measurements in one transaction. A
// round already stored for the same loop is replaced.
func (s *SqliteStorage) AppendRound(ctx context.Context, id string, r models.Round) error {
	base, err := json.Marshal(r.Base)
	if err != nil {
		return fmt.Errorf("failed to encode base: %w", err)
	}
	candidates, err := json.Marshal(r.Candidates)
	if err != nil {
		return fmt.Errorf("failed to encode candidates: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO rounds (session_id, loop, base, candidates) VALUES (?, ?, ?, ?)",
		id, r.Loop, string(base), string(candidates)); err != nil {
		return fmt.Errorf("failed to insert round: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM measurements WHERE session_id = ? AND loop = ?", id, r.Loop); err != nil {
		return fmt.Errorf("failed to clear round measurements: %w", err)
	}
	if err := insertMeasurements(ctx, tx, id, r.Loop, r.Measured); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE sessions SET updated_at = ? WHERE id = ?", time.Now().UnixNano(), id); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertMeasurements(ctx context.Context, tx *sql.Tx, id string, loop int, ms []models.Measurement) error {
	if len(ms) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO measurements (session_id, loop, coordinate, parameter_values, value, start_ns, end_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, m := range ms {
		coord, err := json.Marshal(m.Coordinate)
		if err != nil {
			return fmt.Errorf("failed to encode coordinate: %w", err)
		}
		var values interface{}
		if len(m.Values) > 0 {
			b, err := json.Marshal(m.Values)
			if err != nil {
				return fmt.Errorf("failed to encode values: %w", err)
			}
			values = string(b)
		}
		if _, err := stmt.ExecContext(ctx, id, loop, string(coord), values, m.Value, unixNano(m.Start), unixNano(m.End)); err != nil {
			return fmt.Errorf("failed to insert measurement: %w", err)
		}
	}
	return nil
}

// GetSession loads one session. The configuration document is returned
// alongside and is nil when none was stored.
func (s *SqliteStorage) GetSession(ctx context.Context, id string) (*models.Session, []byte, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, algorithm, parameters, config, result, error, metadata, created_at, updated_at
		FROM sessions WHERE id = ?`, id)

	sess, config, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, err
	}
	return sess, config, nil
}

// ListSessions lists stored sessions, most recently updated first
func (s *SqliteStorage) ListSessions(ctx context.Context) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, algorithm, parameters, config, result, error, metadata, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*models.Session{}
	for rows.Next() {
		sess, _, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// LoadHistory rebuilds the round history of a session in loop order
func (s *SqliteStorage) LoadHistory(ctx context.Context, id string) ([]models.Round, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT loop, base, candidates FROM rounds WHERE session_id = ? ORDER BY loop ASC", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}

	rounds := []models.Round{}
	index := map[int]int{}
	for rows.Next() {
		var (
			r                models.Round
			base, candidates string
		)
		if err := rows.Scan(&r.Loop, &base, &candidates); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		if err := json.Unmarshal([]byte(base), &r.Base); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to decode base: %w", err)
		}
		if err := json.Unmarshal([]byte(candidates), &r.Candidates); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to decode candidates: %w", err)
		}
		index[r.Loop] = len(rounds)
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating rounds: %w", err)
	}
	rows.Close()

	ms, err := s.measurements(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, lm := range ms {
		if i, ok := index[lm.loop]; ok {
			rounds[i].Measured = append(rounds[i].Measured, lm.m)
		}
	}
	return rounds, nil
}

// Measurements returns every stored measurement of a session in insertion order
func (s *SqliteStorage) Measurements(ctx context.Context, id string) ([]models.Measurement, error) {
	ms, err := s.measurements(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]models.Measurement, len(ms))
	for i, lm := range ms {
		out[i] = lm.m
	}
	return out, nil
}

type loopMeasurement struct {
	loop int
	m    models.Measurement
}

func (s *SqliteStorage) measurements(ctx context.Context, id string) ([]loopMeasurement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT loop, coordinate, parameter_values, value, start_ns, end_ns
		FROM measurements WHERE session_id = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	var out []loopMeasurement
	for rows.Next() {
		var (
			lm         loopMeasurement
			coord      string
			values     sql.NullString
			start, end sql.NullInt64
		)
		if err := rows.Scan(&lm.loop, &coord, &values, &lm.m.Value, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		if err := json.Unmarshal([]byte(coord), &lm.m.Coordinate); err != nil {
			return nil, fmt.Errorf("failed to decode coordinate: %w", err)
		}
		if values.Valid {
			if err := json.Unmarshal([]byte(values.String), &lm.m.Values); err != nil {
				return nil, fmt.Errorf("failed to decode values: %w", err)
			}
		}
		lm.m.Start = fromUnixNano(start)
		lm.m.End = fromUnixNano(end)
		out = append(out, lm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating measurements: %w", err)
	}
	return out, nil
}

// DeleteSession removes a session with its rounds and measurements
func (s *SqliteStorage) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		"DELETE FROM measurements WHERE session_id = ?",
		"DELETE FROM rounds WHERE session_id = ?",
		"DELETE FROM sessions WHERE id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scanner) (*models.Session, []byte, error) {
	var (
		sess                          models.Session
		status, params                string
		config, result, errText, meta sql.NullString
		created, updated              int64
	)
	if err := row.Scan(&sess.ID, &status, &sess.Algorithm, &params, &config, &result, &errText, &meta, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to scan session: %w", err)
	}
	sess.Status = models.SessionStatus(status)
	sess.Error = errText.String
	sess.CreatedAt = time.Unix(0, created)
	sess.UpdatedAt = time.Unix(0, updated)

	if err := json.Unmarshal([]byte(params), &sess.Parameters); err != nil {
		return nil, nil, fmt.Errorf("failed to decode parameters: %w", err)
	}
	if result.Valid {
		sess.Result = &models.Result{}
		if err := json.Unmarshal([]byte(result.String), sess.Result); err != nil {
			return nil, nil, fmt.Errorf("failed to decode result: %w", err)
		}
	}
	if meta.Valid {
		if err := json.Unmarshal([]byte(meta.String), &sess.Metadata); err != nil {
			return nil, nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}

	var cfg []byte
	if config.Valid {
		cfg = []byte(config.String)
	}
	return &sess, cfg, nil
}

func encodeOptional(v *models.Result) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Convert empty strings to NULL for optional columns
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func unixNano(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UnixNano()
}

func fromUnixNano(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(0, v.Int64)
}
