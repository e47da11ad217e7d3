package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yamini7043/HealthCare-MediBotAI/internal/utility"
)

// Queries wraps the hand-written SQL for the consultation history table:
//
//	CREATE TABLE consultations (
//	    consultation_id uuid PRIMARY KEY,
//	    kind            text NOT NULL,
//	    input_summary   text NOT NULL,
//	    result          jsonb NOT NULL,
//	    created_at      timestamptz NOT NULL
//	);
type Queries struct {
	pool *pgxpool.Pool
}

// New builds a Queries over a connection pool.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// Consultation is one persisted pipeline invocation: what the user asked
// and the typed result the pipeline produced, stored as JSON.
type Consultation struct {
	ConsultationID uuid.UUID       `json:"consultation_id"`
	Kind           string          `json:"kind"` // 'consult', 'medicines', 'prescription'
	InputSummary   string          `json:"input_summary"`
	Result         json.RawMessage `json:"result"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SaveConsultationParams carries the insert values for one record.
type SaveConsultationParams struct {
	Kind         string
	InputSummary string
	Result       any
}

const saveConsultationSQL = `
INSERT INTO consultations (consultation_id, kind, input_summary, result, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING consultation_id`

// SaveConsultation records one pipeline result and returns its id.
func (q *Queries) SaveConsultation(ctx context.Context, arg SaveConsultationParams) (uuid.UUID, error) {
	resultJSON, err := json.Marshal(arg.Result)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal consultation result: %w", err)
	}

	id := uuid.New()
	now := utility.PgTimestamptz(time.Now())

	var saved uuid.UUID
	err = q.pool.QueryRow(ctx, saveConsultationSQL, id, arg.Kind, arg.InputSummary, resultJSON, now).Scan(&saved)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to save consultation: %w", err)
	}
	return saved, nil
}

const listConsultationsSQL = `
SELECT consultation_id, kind, input_summary, result, created_at
FROM consultations
ORDER BY created_at DESC
LIMIT $1`

// ListRecentConsultations returns the most recent saved results, newest first.
func (q *Queries) ListRecentConsultations(ctx context.Context, limit int32) ([]Consultation, error) {
	rows, err := q.pool.Query(ctx, listConsultationsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list consultations: %w", err)
	}
	defer rows.Close()

	items := []Consultation{}
	for rows.Next() {
		var c Consultation
		var createdAt pgtype.Timestamptz
		if err := rows.Scan(&c.ConsultationID, &c.Kind, &c.InputSummary, &c.Result, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan consultation: %w", err)
		}
		c.CreatedAt = createdAt.Time
		items = append(items, c)
	}
	return items, rows.Err()
}
