package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/solward/flywheel/internal/domain"
)

func (s *Store) RecordTrade(ctx context.Context, t domain.Trade) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.At.IsZero() {
		t.At = time.Now().UTC()
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO trades (id, token_id, side, amount, signature, status, reason, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, t.TokenID, t.Side, t.Amount, t.Signature, t.Status, t.Reason, t.At)
	return err
}

func (s *Store) ListTradesByToken(ctx context.Context, tokenID string, limit int) ([]domain.Trade, error) {
	query := `SELECT id, token_id, side, amount, signature, status, reason, at FROM trades WHERE token_id = $1 ORDER BY at DESC`
	args := []any{tokenID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(&t.ID, &t.TokenID, &t.Side, &t.Amount, &t.Signature, &t.Status, &t.Reason, &t.At); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) RecordClaim(ctx context.Context, c domain.Claim) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO claims (id, token_id, gross_amount, platform_fee, owner_received, signature, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.TokenID, c.GrossAmount, c.PlatformFee, c.OwnerReceived, c.Signature, c.At)
	return err
}

func (s *Store) ListClaimsByToken(ctx context.Context, tokenID string, limit int) ([]domain.Claim, error) {
	query := `SELECT id, token_id, gross_amount, platform_fee, owner_received, signature, at FROM claims WHERE token_id = $1 ORDER BY at DESC`
	args := []any{tokenID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Claim
	for rows.Next() {
		var c domain.Claim
		if err := rows.Scan(&c.ID, &c.TokenID, &c.GrossAmount, &c.PlatformFee, &c.OwnerReceived, &c.Signature, &c.At); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
