package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wikiharvest/internal/crawler"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *HarvestStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock, Config{})
	require.NoError(t, err)
	return mock, store
}

func TestRecordHarvestInsertsRows(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()
	recs := []crawler.HarvestRecord{
		{RunID: "run-1", Title: "Cat", PageID: 6678, RevisionID: 11, Level: 1, BlobURI: "gs://b/ac.0.json", ContentHash: "abc", HarvestedAt: now},
		{RunID: "run-1", Title: "Dog", PageID: 4269567, RevisionID: 12, Level: 1, BlobURI: "gs://b/ac.0.json", ContentHash: "def", HarvestedAt: now},
	}

	mock.ExpectBegin()
	for _, rec := range recs {
		mock.ExpectExec("INSERT INTO harvested_pages").
			WithArgs(rec.RunID, string(rec.Title), int64(rec.PageID), rec.RevisionID, rec.Level, rec.BlobURI, rec.ContentHash, rec.HarvestedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, store.RecordHarvest(context.Background(), recs))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordHarvestRollsBackOnError(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO harvested_pages").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := store.RecordHarvest(context.Background(), []crawler.HarvestRecord{{RunID: "run-1", Title: "Cat", PageID: 1}})
	require.ErrorContains(t, err, "boom")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordHarvestEmptyIsNoop(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	require.NoError(t, store.RecordHarvest(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	start := time.Unix(1700000000, 0).UTC()
	end := start.Add(time.Minute)

	mock.ExpectExec("INSERT INTO harvest_runs").
		WithArgs("run-1", start, 2, RunRunning).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE harvest_runs").
		WithArgs(end, RunSucceeded, "capacity", 40, (*string)(nil), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE harvest_runs").
		WithArgs(end, RunFailed, "", 0, pgxmock.AnyArg(), "run-2").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, store.StartRun(context.Background(), "run-1", 2, start))
	require.NoError(t, store.FinishRun(context.Background(), "run-1", end, "capacity", 40, nil))
	err := store.FinishRun(context.Background(), "run-2", end, "", 0, errors.New("interrupted"))
	assert.ErrorIs(t, err, crawler.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableNameValidation(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewWithPool(mock, Config{Table: "pages; DROP TABLE x"})
	assert.Error(t, err)
	_, err = NewWithPool(nil, Config{})
	assert.Error(t, err)
	_, err = New(context.Background(), Config{})
	var cfgErr *crawler.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
