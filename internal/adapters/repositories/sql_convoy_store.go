package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"shipment-risk-service/internal/domain"
	"shipment-risk-service/internal/platform/obs"
)

// SQLConvoyStore persists convoys as JSONB documents.
type SQLConvoyStore struct {
	DB *sql.DB
}

func NewSQLConvoyStore(db *sql.DB) *SQLConvoyStore {
	return &SQLConvoyStore{DB: db}
}

func (s *SQLConvoyStore) SaveConvoy(ctx context.Context, c domain.Convoy) (err error) {
	defer obs.Time(ctx, "convoys.sql.Save")(&err)

	if s.DB == nil {
		return errors.New("convoy store: db is nil")
	}
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("save convoy %s: encode: %w", c.ID, err)
	}

	_, err = s.DB.ExecContext(ctx, `
	INSERT INTO convoys (id, leader_id, status, risk_reduction, updated_at, doc)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE
	SET status = EXCLUDED.status,
		risk_reduction = EXCLUDED.risk_reduction,
		updated_at = EXCLUDED.updated_at,
		doc = EXCLUDED.doc;
	`, c.ID, c.LeaderID, string(c.Status), c.RiskReduction, c.UpdatedAt, doc)
	if err != nil {
		return fmt.Errorf("save convoy %s: upsert: %w", c.ID, err)
	}
	return nil
}

func (s *SQLConvoyStore) ListOpenConvoys(ctx context.Context) ([]domain.Convoy, error) {
	if s.DB == nil {
		return nil, errors.New("convoy store: db is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT doc FROM convoys WHERE status <> $1 ORDER BY id;`, string(domain.ConvoyDisbanded))
	if err != nil {
		return nil, fmt.Errorf("list convoys: query convoys table: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Convoy, 0, 8)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("list convoys: scan row: %w", err)
		}
		var c domain.Convoy
		if err := json.Unmarshal(doc, &c); err != nil {
			return nil, fmt.Errorf("list convoys: decode: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list convoys: row iteration: %w", err)
	}
	return out, nil
}
