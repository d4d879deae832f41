package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
	"github.com/yyupcompany/kyyupgame-sub066/internal/journal"
)

const journalColumns = 10

type JournalRepo struct {
	db *sql.DB
}

// NewJournalRepo открывает пул через pgx stdlib. Соединение проверяется через Ping.
func NewJournalRepo(connString string, maxConns int) (*JournalRepo, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &JournalRepo{db: db}, nil
}

func NewJournalRepoFromDB(db *sql.DB) *JournalRepo {
	return &JournalRepo{db: db}
}

func (r *JournalRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *JournalRepo) Close() error {
	return r.db.Close()
}

// WriteBatch пишет пачку одним INSERT с динамическими плейсхолдерами.
func (r *JournalRepo) WriteBatch(ctx context.Context, records []journal.CallRecord) error {
	if len(records) == 0 {
		return nil
	}

	var sb strings.Builder
	vals := make([]interface{}, 0, len(records)*journalColumns)

	for i, rec := range records {
		p := i * journalColumns
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9, p+10)

		vals = append(vals,
			rec.RequestID, rec.Method, rec.Path, rec.Route, rec.AI,
			rec.StatusCode, rec.Attempts, rec.DurationMs, nullString(rec.Error), rec.Timestamp,
		)
	}

	query := "INSERT INTO api_call_journal (request_id, method, path, route, ai, status_code, attempts, duration_ms, error, created_at) VALUES " + sb.String()

	if _, err := r.db.ExecContext(ctx, query, vals...); err != nil {
		return fmt.Errorf("insert %d journal records: %w", len(records), err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
