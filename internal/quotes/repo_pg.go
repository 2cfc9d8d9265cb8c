package quotes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a quote request.
func (r *PGRepo) Create(ctx context.Context, req Request) error {
	const query = `
INSERT INTO quote_requests (
    id,
    session_id,
    customer_name,
    line,
    product_keys,
    storage_key,
    status,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	keys, err := json.Marshal(req.ProductKeys)
	if err != nil {
		return fmt.Errorf("encode product keys: %w", err)
	}
	status := req.Status
	if status == "" {
		status = StatusSubmitted
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		req.ID,
		req.SessionID,
		req.CustomerName,
		req.Line,
		string(keys),
		req.StorageKey,
		status,
		req.CreatedAt,
	)
	return err
}

const selectColumns = `id, session_id, customer_name, line, product_keys, storage_key, status, created_at`

// GetByID returns a quote request by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Request, error) {
	query := `SELECT ` + selectColumns + ` FROM quote_requests WHERE id = $1`
	row := r.DB.QueryRowContext(ctx, query, id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Request{}, ErrNotFound
	}
	return req, err
}

// ListBySession returns a session's quote requests, newest first.
func (r *PGRepo) ListBySession(ctx context.Context, sessionID string) ([]Request, error) {
	query := `SELECT ` + selectColumns + ` FROM quote_requests WHERE session_id = $1 ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(s scanner) (Request, error) {
	var (
		req  Request
		keys []byte
	)
	if err := s.Scan(
		&req.ID,
		&req.SessionID,
		&req.CustomerName,
		&req.Line,
		&keys,
		&req.StorageKey,
		&req.Status,
		&req.CreatedAt,
	); err != nil {
		return Request{}, err
	}
	if len(keys) > 0 {
		if err := json.Unmarshal(keys, &req.ProductKeys); err != nil {
			return Request{}, fmt.Errorf("decode product keys: %w", err)
		}
	}
	return req, nil
}
