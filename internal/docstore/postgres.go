package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createDocumentsTableSQL = `
CREATE TABLE IF NOT EXISTS documents (
  collection text NOT NULL,
  doc_id text NOT NULL,
  doc jsonb NOT NULL,
  written_at timestamptz NOT NULL DEFAULT now(),
  PRIMARY KEY (collection, doc_id)
)`

const createDocumentsFilterIndexSQL = `
CREATE INDEX IF NOT EXISTS documents_username_idx
ON documents (collection, (doc->>'username'))`

// The jsonb concatenation keeps every field of the stored document that the
// partial does not name, which is exactly the field-list write contract.
const upsertDocumentFieldsSQL = `
INSERT INTO documents (collection, doc_id, doc, written_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (collection, doc_id) DO UPDATE
SET doc = documents.doc || EXCLUDED.doc,
    written_at = now()
`

const getDocumentSQL = `
SELECT doc FROM documents WHERE collection = $1 AND doc_id = $2`

const listDocumentsSQL = `
SELECT doc FROM documents
WHERE collection = $1 AND doc->>$2 = $3
ORDER BY doc->>$4 `

// Postgres stores each document as one jsonb row keyed by (collection, id).
type Postgres struct {
	Pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{Pool: pool}
}

func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, createDocumentsTableSQL); err != nil {
		return err
	}
	if _, err := s.Pool.Exec(ctx, createDocumentsFilterIndexSQL); err != nil {
		return err
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, collection, id string, out any) (bool, error) {
	var raw []byte
	err := s.Pool.QueryRow(ctx, getDocumentSQL, collection, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode %s document %q: %w", collection, id, err)
	}
	return true, nil
}

func (s *Postgres) List(ctx context.Context, q Query) ([][]byte, error) {
	sql := listDocumentsSQL
	if q.Descending {
		sql += "DESC"
	} else {
		sql += "ASC"
	}
	rows, err := s.Pool.Query(ctx, sql, q.Collection, q.FilterField, q.FilterValue, q.OrderField)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([][]byte, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		trimmed, err := trimFields(raw, q.Fields)
		if err != nil {
			return nil, err
		}
		result = append(result, trimmed)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Postgres) SetFields(ctx context.Context, collection, id string, doc any, fields []string) error {
	partial, err := partialDoc(doc, fields)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(partial)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, upsertDocumentFieldsSQL, collection, id, raw)
	return err
}
