package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runColumns = []string{"id", "started_at", "duration_ms", "scenes", "scene_height", "scene_width", "seed", "trees",
	"train_rows", "test_rows", "accuracy", "stressed_precision", "stressed_recall", "stressed_f1",
	"artifact_location", "artifact_bytes"}

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS training_runs")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	db, err := newDB(context.Background(), conn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestNewDB_SchemaFailure(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("access denied"))
	mock.ExpectClose()

	_, err = newDB(context.Background(), conn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize schema")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreTrainingRun(t *testing.T) {
	db, mock := newMockDB(t)

	run := NewTrainingRun(time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC))
	run.Duration = 1500 * time.Millisecond
	run.Scenes = 3
	run.SceneHeight = 96
	run.SceneWidth = 96
	run.Seed = 42
	run.Trees = 15
	run.TrainRows = 22118
	run.TestRows = 5530
	run.Accuracy = 0.97
	run.StressedPrecision = 0.95
	run.StressedRecall = 0.94
	run.StressedF1 = 0.945
	run.ArtifactLocation = "file:models/stress_model.zst"
	run.ArtifactBytes = 2048

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO training_runs")).
		WithArgs(run.ID, run.StartedAt, int64(1500), 3, 96, 96, sqlmock.AnyArg(), 15,
			22118, 5530, 0.97, 0.95, 0.94, 0.945, "file:models/stress_model.zst", 2048).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, db.StoreTrainingRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreTrainingRun_Error(t *testing.T) {
	db, mock := newMockDB(t)
	run := NewTrainingRun(time.Now())

	mock.ExpectExec("INSERT INTO training_runs").WillReturnError(errors.New("duplicate key"))

	err := db.StoreTrainingRun(context.Background(), run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), run.ID)
}

func TestGetTrainingRuns(t *testing.T) {
	db, mock := newMockDB(t)
	newer := time.Date(2026, 10, 2, 9, 0, 0, 0, time.UTC)
	older := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(runColumns).
		AddRow("b", newer, int64(2500), 50, 256, 256, int64(7), 100, 2621440, 655360, 0.98, 0.97, 0.96, 0.965, "redis:stressvision:model", 40960).
		AddRow("a", older, int64(900), 3, 96, 96, int64(42), 15, 22118, 5530, 0.95, 0.9, 0.91, 0.905, "file:m.zst", 2048)
	mock.ExpectQuery(regexp.QuoteMeta("FROM training_runs ORDER BY started_at DESC LIMIT ?")).
		WithArgs(2).
		WillReturnRows(rows)

	runs, err := db.GetTrainingRuns(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, newer, runs[0].StartedAt)
	assert.Equal(t, 2500*time.Millisecond, runs[0].Duration)
	assert.Equal(t, uint64(7), runs[0].Seed)
	assert.Equal(t, "redis:stressvision:model", runs[0].ArtifactLocation)
	assert.Equal(t, 900*time.Millisecond, runs[1].Duration)
	assert.Equal(t, 0.905, runs[1].StressedF1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTrainingRuns_QueryError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("FROM training_runs").WillReturnError(errors.New("connection reset"))

	_, err := db.GetTrainingRuns(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query training runs")
}

func TestNewTrainingRun(t *testing.T) {
	local := time.Date(2026, 10, 1, 10, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	a := NewTrainingRun(local)
	b := NewTrainingRun(local)

	assert.Len(t, a.ID, 36)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, time.UTC, a.StartedAt.Location())
	assert.True(t, a.StartedAt.Equal(local))
}
