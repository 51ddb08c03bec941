// Package store records training runs in PostgreSQL: one row per video run,
// one per epoch, with the checkpoint written at that epoch if any.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Noofbiz/strikes/report"
	"github.com/Noofbiz/strikes/train"
)

// conn is the subset of *pgx.Conn the store uses.
type conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store implements train.Recorder on a PostgreSQL connection.
type Store struct {
	conn  conn
	close func(ctx context.Context) error
}

var _ train.Recorder = (*Store)(nil)

// New connects to the database and ensures the schema exists.
func New(ctx context.Context, connString string) (*Store, error) {
	c, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := initSchema(ctx, c); err != nil {
		c.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return &Store{conn: c, close: c.Close}, nil
}

// initSchema creates the tables if they don't exist.
func initSchema(ctx context.Context, c conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS training_runs (
			id BIGSERIAL PRIMARY KEY,
			video TEXT NOT NULL,
			keypoints TEXT NOT NULL,
			annotations TEXT NOT NULL,
			validation TEXT NOT NULL,
			config JSONB NOT NULL,
			started_at TIMESTAMPTZ DEFAULT NOW(),
			finished_at TIMESTAMPTZ,
			epochs INT,
			stop_reason TEXT,
			best_epoch INT,
			best_accuracy DOUBLE PRECISION,
			final_f1 DOUBLE PRECISION
		);
		CREATE TABLE IF NOT EXISTS training_epochs (
			run_id BIGINT REFERENCES training_runs(id) ON DELETE CASCADE,
			epoch INT NOT NULL,
			loss DOUBLE PRECISION NOT NULL,
			val_accuracy DOUBLE PRECISION NOT NULL,
			checkpoint TEXT,
			recorded_at TIMESTAMPTZ DEFAULT NOW(),
			PRIMARY KEY (run_id, epoch)
		);
		CREATE INDEX IF NOT EXISTS training_runs_video_idx ON training_runs (video);
	`
	_, err := c.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	if s.close != nil {
		_ = s.close(ctx)
	}
}

// StartRun inserts a run row and returns its id.
func (s *Store) StartRun(ctx context.Context, video train.Video, cfg train.Config) (int64, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.conn.QueryRow(ctx, `
		INSERT INTO training_runs (video, keypoints, annotations, validation, config)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, video.Name, video.Keypoints, video.Annotations, video.Validation, string(cfgJSON)).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// RecordEpoch stores one epoch, replacing an earlier row for the same epoch.
func (s *Store) RecordEpoch(ctx context.Context, runID int64, stats report.EpochStats) error {
	var checkpoint *string
	if stats.Checkpoint != "" {
		checkpoint = &stats.Checkpoint
	}
	_, err := s.conn.Exec(ctx, `
		INSERT INTO training_epochs (run_id, epoch, loss, val_accuracy, checkpoint)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id, epoch) DO UPDATE
		SET loss = EXCLUDED.loss, val_accuracy = EXCLUDED.val_accuracy, checkpoint = EXCLUDED.checkpoint
	`, runID, stats.Epoch, stats.Loss, stats.ValAccuracy, checkpoint)
	return err
}

// FinishRun stores the outcome of a run.
func (s *Store) FinishRun(ctx context.Context, runID int64, res *train.RunResult) error {
	var bestEpoch *int
	if res.BestEpoch >= 0 {
		bestEpoch = &res.BestEpoch
	}
	var finalF1 *float64
	if res.Final != nil {
		finalF1 = &res.Final.Result.F1
	}
	tag, err := s.conn.Exec(ctx, `
		UPDATE training_runs
		SET finished_at = NOW(), epochs = $2, stop_reason = $3, best_epoch = $4, best_accuracy = $5, final_f1 = $6
		WHERE id = $1
	`, runID, res.Epochs, res.StopReason, bestEpoch, res.BestAccuracy, finalF1)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %d not found", runID)
	}
	return nil
}

// Run is a stored run summary.
type Run struct {
	ID           int64      `db:"id"`
	Video        string     `db:"video"`
	StartedAt    time.Time  `db:"started_at"`
	FinishedAt   *time.Time `db:"finished_at"`
	Epochs       *int       `db:"epochs"`
	StopReason   *string    `db:"stop_reason"`
	BestEpoch    *int       `db:"best_epoch"`
	BestAccuracy *float64   `db:"best_accuracy"`
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means 20.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.conn.Query(ctx, `
		SELECT id, video, started_at, finished_at, epochs, stop_reason, best_epoch, best_accuracy
		FROM training_runs
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[Run])
}

// Reset drops the store's tables.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS training_epochs CASCADE;
		DROP TABLE IF EXISTS training_runs CASCADE;
	`)
	return err
}
