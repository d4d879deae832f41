package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yyupcompany/kyyupgame-sub066/internal/journal"
)

func TestJournalRepoWriteBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	records := []journal.CallRecord{
		{RequestID: "a", Method: "GET", Path: "/ai/models", Route: "/ai/models", AI: true, StatusCode: 200, Attempts: 1, DurationMs: 12, Timestamp: ts},
		{RequestID: "b", Method: "DELETE", Path: "/advertisements/7", Route: "/advertisements/:id", StatusCode: 500, Attempts: 2, DurationMs: 40, Error: "boom", Timestamp: ts},
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO api_call_journal (request_id, method, path, route, ai, status_code, attempts, duration_ms, error, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10),($11, $12")).
		WithArgs(
			"a", "GET", "/ai/models", "/ai/models", true, 200, 1, int64(12), nil, ts,
			"b", "DELETE", "/advertisements/7", "/advertisements/:id", false, 500, 2, int64(40), "boom", ts,
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	repo := NewJournalRepoFromDB(db)
	require.NoError(t, repo.WriteBatch(context.Background(), records))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournalRepoEmptyBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, NewJournalRepoFromDB(db).WriteBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJournalRepoError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO api_call_journal").WillReturnError(errors.New("relation does not exist"))

	err = NewJournalRepoFromDB(db).WriteBatch(context.Background(), []journal.CallRecord{{RequestID: "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert 1 journal records")
}
