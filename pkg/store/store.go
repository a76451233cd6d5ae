// Package store persists per-ticket learning outcomes and serves the
// database-backed conversation source.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/unisco/ticketlearn/pkg/errors"
	"github.com/unisco/ticketlearn/pkg/learn"
	"github.com/unisco/ticketlearn/pkg/logging"
)

// Record is one durable row per processed ticket. Failed tickets are
// persisted too, with a zero score and the error text.
type Record struct {
	ID                string
	TicketID          string
	ConversationID    string
	Topic             string
	ContextData       string // serialized sample context payload
	GroundTruth       string
	LearnedStrategies []learn.Artifact
	FinalScore        float64
	Success           bool
	ErrorText         string
	CreatedAt         time.Time
}

// Conversation is one pre-joined email conversation row, used by the
// database source mode.
type Conversation struct {
	EmailID        string
	ConversationID string
	Content        string
}

// Store wraps the shared connection pool. database/sql checks out a
// connection per call, so concurrent ticket pipelines can save safely.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS learning_records (
	id                 TEXT PRIMARY KEY,
	ticket_id          TEXT NOT NULL,
	conversation_id    TEXT,
	topic              TEXT,
	context_data       TEXT,
	ground_truth       TEXT,
	learned_strategies TEXT,
	final_score        REAL NOT NULL DEFAULT 0,
	success            INTEGER NOT NULL DEFAULT 0,
	error              TEXT,
	created_at         TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS conversations (
	email_id        TEXT PRIMARY KEY,
	conversation_id TEXT,
	content         TEXT
);
`

// Open opens (or creates) the store at path and ensures the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "ticketlearn.db"
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.PersistenceFailed, "open database")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.PersistenceFailed, "initialize schema")
	}

	return &Store{db: db}, nil
}

// SaveRecord writes one outcome row. Each save is its own atomic unit;
// there is no batching across tickets.
func (s *Store) SaveRecord(ctx context.Context, r Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	strategies, err := json.Marshal(r.LearnedStrategies)
	if err != nil {
		return errors.Wrap(err, errors.PersistenceFailed, "encode strategies")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO learning_records (
			id, ticket_id, conversation_id, topic, context_data,
			ground_truth, learned_strategies, final_score, success, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TicketID, r.ConversationID, r.Topic, r.ContextData,
		r.GroundTruth, string(strategies), r.FinalScore, r.Success, r.ErrorText, r.CreatedAt,
	)
	if err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.PersistenceFailed, "insert learning record"),
			errors.Fields{"ticket_id": r.TicketID})
	}

	logging.GetLogger().Debug(ctx, "saved learning record for ticket %s (score=%.2f)", r.TicketID, r.FinalScore)
	return nil
}

// CountRecords returns the number of persisted outcome rows.
func (s *Store) CountRecords(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM learning_records`).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, errors.PersistenceFailed, "count records")
	}
	return n, nil
}

// ListConversations returns pre-joined conversation rows for the
// database source mode, newest insertion first.
func (s *Store) ListConversations(ctx context.Context, limit, offset int) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT email_id, conversation_id, content
		FROM conversations
		ORDER BY email_id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, errors.PersistenceFailed, "query conversations")
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.EmailID, &c.ConversationID, &c.Content); err != nil {
			return nil, errors.Wrap(err, errors.PersistenceFailed, "scan conversation")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.PersistenceFailed, "iterate conversations")
	}
	return out, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
