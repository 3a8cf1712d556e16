// Package postgres persists contest definitions and finished Tabulation
// Records for audit and replay, the way the teacher's backends/postgres
// persisted poll state and cast ballots — a schema-embedded pool wrapping
// a handful of narrow, transaction-scoped operations.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rcvtab/tabulator/report"
)

//go:embed schema.sql
var schema string

// Store holds the connection pool. Build one with Open.
type Store struct {
	pool *pgxpool.Pool
}

var _ report.Archiver = (*Store)(nil)

// Open creates a connection pool against url (a libpq-style connection
// string or URL).
func Open(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Wait blocks until a connection to postgres can be established or ctx is
// done.
func (s *Store) Wait(ctx context.Context, log func(format string, a ...interface{})) {
	for ctx.Err() == nil {
		if err := s.pool.Ping(ctx); err == nil {
			return
		} else if log != nil {
			log("waiting for postgres: %v", err)
		}
		time.Sleep(500 * time.Millisecond)
	}
}

// Migrate creates the database schema if it does not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Close closes all connections. It blocks until every connection is closed.
func (s *Store) Close() {
	s.pool.Close()
}

// SaveContest upserts a contest's raw definition (the decoded contest file
// contents) under contestID, for later audit of what rules actually ran.
func (s *Store) SaveContest(ctx context.Context, contestID string, definition any) error {
	data, err := json.Marshal(definition)
	if err != nil {
		return fmt.Errorf("encoding contest definition: %w", err)
	}

	sql := `
	INSERT INTO contests (contest_id, definition) VALUES ($1, $2)
	ON CONFLICT (contest_id) DO UPDATE SET definition = EXCLUDED.definition;
	`
	if _, err := s.pool.Exec(ctx, sql, contestID, data); err != nil {
		return fmt.Errorf("saving contest %s: %w", contestID, err)
	}
	return nil
}

// SaveRecord stores a finished (or abnormally terminated) Tabulation
// Record document for contestID.
func (s *Store) SaveRecord(ctx context.Context, contestID string, doc report.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding tabulation record: %w", err)
	}

	err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM contests WHERE contest_id = $1);", contestID).Scan(&exists); err != nil {
			return fmt.Errorf("checking contest exists: %w", err)
		}
		if !exists {
			return notFoundError{fmt.Errorf("contest %s not saved yet", contestID)}
		}

		sql := `
		INSERT INTO tabulation_records (contest_id, record, terminated_abnormally)
		VALUES ($1, $2, $3);
		`
		if _, err := tx.Exec(ctx, sql, contestID, data, doc.TerminatedAbnormally); err != nil {
			return fmt.Errorf("inserting tabulation record: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("running transaction: %w", err)
	}
	return nil
}

// LatestRecord returns the most recently saved Record document for
// contestID.
func (s *Store) LatestRecord(ctx context.Context, contestID string) (report.Document, error) {
	sql := `
	SELECT record FROM tabulation_records
	WHERE contest_id = $1
	ORDER BY created_at DESC
	LIMIT 1;
	`
	var data []byte
	err := s.pool.QueryRow(ctx, sql, contestID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return report.Document{}, notFoundError{fmt.Errorf("no tabulation record for contest %s", contestID)}
		}
		return report.Document{}, fmt.Errorf("fetching tabulation record: %w", err)
	}

	var doc report.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return report.Document{}, fmt.Errorf("decoding tabulation record: %w", err)
	}
	return doc, nil
}

// Clear removes a contest and every record saved under it.
func (s *Store) Clear(ctx context.Context, contestID string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM contests WHERE contest_id = $1;", contestID); err != nil {
		return fmt.Errorf("clearing contest %s: %w", contestID, err)
	}
	return nil
}

type notFoundError struct {
	error
}

func (notFoundError) NotFound() {}
