package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stressvision/internal/metrics"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DB represents the database connection
type DB struct {
	conn *sql.DB
}

// TrainingRun is one offline training run and the hold-out scores it reached
type TrainingRun struct {
	ID                string
	StartedAt         time.Time
	Duration          time.Duration
	Scenes            int
	SceneHeight       int
	SceneWidth        int
	Seed              uint64
	Trees             int
	TrainRows         int
	TestRows          int
	Accuracy          float64
	StressedPrecision float64
	StressedRecall    float64
	StressedF1        float64
	ArtifactLocation  string
	ArtifactBytes     int
}

// NewTrainingRun returns a run with a fresh ID
func NewTrainingRun(startedAt time.Time) *TrainingRun {
	return &TrainingRun{ID: uuid.NewString(), StartedAt: startedAt.UTC()}
}

// NewDB creates a new database connection and initializes the schema
// dsn format: "username:password@tcp(host:port)/dbname?parseTime=true"
func NewDB(ctx context.Context, dsn string) (*DB, error) {
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return newDB(ctx, conn)
}

func newDB(ctx context.Context, conn *sql.DB) (*DB, error) {
	db := &DB{conn: conn}
	if err := db.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

func (db *DB) initSchema(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS training_runs (
		id CHAR(36) PRIMARY KEY,
		started_at DATETIME(6) NOT NULL,
		duration_ms BIGINT NOT NULL,
		scenes INT NOT NULL,
		scene_height INT NOT NULL,
		scene_width INT NOT NULL,
		seed BIGINT UNSIGNED NOT NULL,
		trees INT NOT NULL,
		train_rows INT NOT NULL,
		test_rows INT NOT NULL,
		accuracy DOUBLE NOT NULL,
		stressed_precision DOUBLE NOT NULL,
		stressed_recall DOUBLE NOT NULL,
		stressed_f1 DOUBLE NOT NULL,
		artifact_location VARCHAR(512) NOT NULL,
		artifact_bytes INT NOT NULL,
		INDEX idx_training_runs_started (started_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

	if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute schema statement: %w", err)
	}
	return nil
}

// StoreTrainingRun inserts a finished training run
func (db *DB) StoreTrainingRun(ctx context.Context, run *TrainingRun) error {
	query := `INSERT INTO training_runs (id, started_at, duration_ms, scenes, scene_height, scene_width, seed, trees,
		train_rows, test_rows, accuracy, stressed_precision, stressed_recall, stressed_f1, artifact_location, artifact_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryStart := time.Now()
	_, err := db.conn.ExecContext(ctx, query,
		run.ID, run.StartedAt, run.Duration.Milliseconds(), run.Scenes, run.SceneHeight, run.SceneWidth, run.Seed, run.Trees,
		run.TrainRows, run.TestRows, run.Accuracy, run.StressedPrecision, run.StressedRecall, run.StressedF1,
		run.ArtifactLocation, run.ArtifactBytes)
	metrics.RecordDBQuery("INSERT", "training_runs", time.Since(queryStart), err)
	if err != nil {
		return fmt.Errorf("failed to store training run %s: %w", run.ID, err)
	}

	log.Info().Str("run_id", run.ID).Float64("accuracy", run.Accuracy).Msg("✓ Stored training run")
	return nil
}

// GetTrainingRuns returns the most recent training runs, newest first
func (db *DB) GetTrainingRuns(ctx context.Context, limit int) ([]TrainingRun, error) {
	query := `SELECT id, started_at, duration_ms, scenes, scene_height, scene_width, seed, trees,
		train_rows, test_rows, accuracy, stressed_precision, stressed_recall, stressed_f1, artifact_location, artifact_bytes
		FROM training_runs ORDER BY started_at DESC LIMIT ?`

	queryStart := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, limit)
	metrics.RecordDBQuery("SELECT", "training_runs", time.Since(queryStart), err)
	if err != nil {
		return nil, fmt.Errorf("failed to query training runs: %w", err)
	}
	defer rows.Close()

	var runs []TrainingRun
	for rows.Next() {
		var r TrainingRun
		var durationMs int64
		if err := rows.Scan(&r.ID, &r.StartedAt, &durationMs, &r.Scenes, &r.SceneHeight, &r.SceneWidth, &r.Seed, &r.Trees,
			&r.TrainRows, &r.TestRows, &r.Accuracy, &r.StressedPrecision, &r.StressedRecall, &r.StressedF1,
			&r.ArtifactLocation, &r.ArtifactBytes); err != nil {
			return nil, fmt.Errorf("failed to scan training run: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
