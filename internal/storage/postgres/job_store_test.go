package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/stringfinder/internal/scan"
)

func sampleJob() scan.Job {
	now := time.Unix(1700000000, 0).UTC()
	return scan.Job{
		ID:       "scan_1",
		Created:  now,
		Updated:  now,
		Target:   "foo",
		URLs:     []string{"http://a.test", "http://b.test"},
		Position: 1,
		Total:    2,
		Results:  []scan.FetchResult{{URL: "http://a.test", StatusCode: 200, Found: true}},
		Matched:  1,
		Status:   scan.JobStatusRunning,
	}
}

func TestPutUpsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStoreWithPool(mock, "")
	require.NoError(t, err)

	job := sampleJob()
	payload, err := json.Marshal(job)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO scan_jobs").
		WithArgs(job.ID, "running", 1, 2, payload, job.Updated).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Put(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDecodesPayload(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStoreWithPool(mock, "jobs")
	require.NoError(t, err)

	job := sampleJob()
	payload, err := json.Marshal(job)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload FROM jobs").
		WithArgs(job.ID).
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))

	got, err := store.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, job, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetMissingJob(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload FROM scan_jobs").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.Get(context.Background(), "nope")
	require.ErrorIs(t, err, scan.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPutWrapsExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO scan_jobs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err = store.Put(context.Background(), sampleJob())
	require.ErrorContains(t, err, "connection reset")
	require.Error(t, store.Put(context.Background(), scan.Job{}), "empty id is rejected before any query")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStoreWithPool(mock, "")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS scan_jobs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableNameValidation(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewJobStoreWithPool(mock, "jobs; DROP TABLE x")
	require.ErrorContains(t, err, "invalid table name")

	_, err = NewJobStoreWithPool(nil, "")
	require.ErrorContains(t, err, "pool is required")

	_, err = NewJobStore(context.Background(), JobStoreConfig{})
	require.ErrorContains(t, err, "db.dsn")
}
