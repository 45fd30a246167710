package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"dnnevo/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps networks, runs and per-epoch errors in plain columns so
// runs can be filtered and ordered in SQL. NaN errors are stored as NULL.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return fmt.Errorf("create sqlite schema: %w", err)
	}

	s.db = db
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS networks (
	id             TEXT PRIMARY KEY,
	schema_version INTEGER NOT NULL,
	codec_version  INTEGER NOT NULL,
	layer_sizes    TEXT NOT NULL,
	weights        BLOB NOT NULL,
	error          REAL,
	epoch          INTEGER NOT NULL,
	created_at     INTEGER
);
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	schema_version  INTEGER NOT NULL,
	codec_version   INTEGER NOT NULL,
	network_id      TEXT NOT NULL,
	dataset         TEXT NOT NULL,
	layer_sizes     TEXT NOT NULL,
	population_size INTEGER NOT NULL,
	kill_rate       REAL,
	target_error    REAL,
	max_epochs      INTEGER NOT NULL,
	seed            INTEGER NOT NULL,
	epochs          INTEGER NOT NULL,
	best_error      REAL,
	converged       INTEGER NOT NULL,
	started_at      INTEGER,
	finished_at     INTEGER
);
CREATE INDEX IF NOT EXISTS runs_dataset_idx ON runs (dataset, best_error);
CREATE TABLE IF NOT EXISTS error_history (
	run_id TEXT NOT NULL,
	epoch  INTEGER NOT NULL,
	error  REAL,
	PRIMARY KEY (run_id, epoch)
);
CREATE TABLE IF NOT EXISTS error_history_runs (
	run_id TEXT PRIMARY KEY
);
`

func (s *SQLiteStore) SaveNetwork(ctx context.Context, network model.NetworkRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO networks
			(id, schema_version, codec_version, layer_sizes, weights, error, epoch, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		network.ID,
		network.SchemaVersion,
		network.CodecVersion,
		joinSizes(network.LayerSizes),
		packWeights(network.Weights),
		nullFloat(network.Error),
		network.Epoch,
		nullTime(network.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save network %s: %w", network.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetNetwork(ctx context.Context, id string) (model.NetworkRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.NetworkRecord{}, false, err
	}

	var (
		network   model.NetworkRecord
		sizes     string
		weights   []byte
		netError  sql.NullFloat64
		createdAt sql.NullInt64
	)
	err = db.QueryRowContext(ctx, `
		SELECT id, schema_version, codec_version, layer_sizes, weights, error, epoch, created_at
		FROM networks WHERE id = ?`, id).Scan(
		&network.ID,
		&network.SchemaVersion,
		&network.CodecVersion,
		&sizes,
		&weights,
		&netError,
		&network.Epoch,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NetworkRecord{}, false, nil
	}
	if err != nil {
		return model.NetworkRecord{}, false, err
	}
	if err := checkVersion(network.VersionedRecord); err != nil {
		return model.NetworkRecord{}, false, fmt.Errorf("network %s: %w", id, err)
	}

	if network.LayerSizes, err = splitSizes(sizes); err != nil {
		return model.NetworkRecord{}, false, fmt.Errorf("network %s: %w", id, err)
	}
	if network.Weights, err = unpackWeights(weights); err != nil {
		return model.NetworkRecord{}, false, fmt.Errorf("network %s: %w", id, err)
	}
	network.Error = floatOrNaN(netError)
	network.CreatedAt = timeOrZero(createdAt)
	return network, true, nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.RunRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(id, schema_version, codec_version, network_id, dataset, layer_sizes,
			 population_size, kill_rate, target_error, max_epochs, seed,
			 epochs, best_error, converged, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.SchemaVersion,
		run.CodecVersion,
		run.NetworkID,
		run.Dataset,
		joinSizes(run.LayerSizes),
		run.PopulationSize,
		nullFloat(run.KillRate),
		nullFloat(run.TargetError),
		run.MaxEpochs,
		run.Seed,
		run.Epochs,
		nullFloat(run.BestError),
		run.Converged,
		nullTime(run.StartedAt),
		nullTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

const runColumns = `id, schema_version, codec_version, network_id, dataset, layer_sizes,
	population_size, kill_rate, target_error, max_epochs, seed,
	epochs, best_error, converged, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (model.RunRecord, error) {
	var (
		run         model.RunRecord
		sizes       string
		killRate    sql.NullFloat64
		targetError sql.NullFloat64
		bestError   sql.NullFloat64
		startedAt   sql.NullInt64
		finishedAt  sql.NullInt64
	)
	if err := row.Scan(
		&run.ID,
		&run.SchemaVersion,
		&run.CodecVersion,
		&run.NetworkID,
		&run.Dataset,
		&sizes,
		&run.PopulationSize,
		&killRate,
		&targetError,
		&run.MaxEpochs,
		&run.Seed,
		&run.Epochs,
		&bestError,
		&run.Converged,
		&startedAt,
		&finishedAt,
	); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, fmt.Errorf("run %s: %w", run.ID, err)
	}

	var err error
	if run.LayerSizes, err = splitSizes(sizes); err != nil {
		return model.RunRecord{}, fmt.Errorf("run %s: %w", run.ID, err)
	}
	run.KillRate = floatOrNaN(killRate)
	run.TargetError = floatOrNaN(targetError)
	run.BestError = floatOrNaN(bestError)
	run.StartedAt = timeOrZero(startedAt)
	run.FinishedAt = timeOrZero(finishedAt)
	return run, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (model.RunRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.RunRecord{}, false, err
	}
	run, err := scanRun(db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunRecord{}, false, nil
	}
	if err != nil {
		return model.RunRecord{}, false, err
	}
	return run, true, nil
}

// ListRuns returns the runs matching filter, newest first. Runs whose best
// error is NaN sort after every other run when ordering by error.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.Dataset != "" {
		where = append(where, "dataset = ?")
		args = append(args, filter.Dataset)
	}
	if filter.ConvergedOnly {
		where = append(where, "converged = 1")
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if filter.ByError {
		query += ` ORDER BY best_error IS NULL, best_error ASC, finished_at DESC`
	} else {
		query += ` ORDER BY finished_at DESC, rowid DESC`
	}
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveErrorHistory replaces the stored history of runID, one row per epoch.
func (s *SQLiteStore) SaveErrorHistory(ctx context.Context, runID string, history []float64) (err error) {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM error_history WHERE run_id = ?`, runID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO error_history_runs (run_id) VALUES (?)`, runID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO error_history (run_id, epoch, error) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for epoch, value := range history {
		if _, err = stmt.ExecContext(ctx, runID, epoch, nullFloat(value)); err != nil {
			return fmt.Errorf("save error history %s epoch %d: %w", runID, epoch, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetErrorHistory(ctx context.Context, runID string) ([]float64, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}

	var marker string
	err = db.QueryRowContext(ctx, `SELECT run_id FROM error_history_runs WHERE run_id = ?`, runID).Scan(&marker)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	rows, err := db.QueryContext(ctx, `SELECT error FROM error_history WHERE run_id = ? ORDER BY epoch`, runID)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	history := []float64{}
	for rows.Next() {
		var value sql.NullFloat64
		if err := rows.Scan(&value); err != nil {
			return nil, false, err
		}
		history = append(history, floatOrNaN(value))
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return history, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errNotInitialized
	}
	return s.db, nil
}

// SQLite turns NaN into NULL on bind; map it explicitly so reads restore it.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

func nullTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timeOrZero(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(0, v.Int64).UTC()
}

func joinSizes(sizes []int) string {
	parts := make([]string, len(sizes))
	for i, size := range sizes {
		parts[i] = strconv.Itoa(size)
	}
	return strings.Join(parts, ",")
}

func splitSizes(raw string) ([]int, error) {
	if raw == "" {
		return nil, nil
	}
	fields := strings.Split(raw, ",")
	sizes := make([]int, len(fields))
	for i, field := range fields {
		size, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("layer sizes %q: %w", raw, err)
		}
		sizes[i] = size
	}
	return sizes, nil
}

// Weights are stored as little-endian IEEE 754 bit patterns so the genome
// round-trips exactly, NaN payloads and -0 included.
func packWeights(weights []float64) []byte {
	buf := make([]byte, 8*len(weights))
	for i, w := range weights {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(w))
	}
	return buf
}

func unpackWeights(buf []byte) ([]float64, error) {
	if len(buf)%8 != 0 {
		return nil, fmt.Errorf("weights blob has %d bytes, not a multiple of 8", len(buf))
	}
	weights := make([]float64, len(buf)/8)
	for i := range weights {
		weights[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return weights, nil
}
