package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/storage"
)

func (s *Store) CreatePendingActivation(ctx context.Context, p domain.PendingActivation) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.ExpiresAt.IsZero() {
		p.ExpiresAt = p.CreatedAt.Add(24 * time.Hour)
	}
	if p.Status == "" {
		p.Status = domain.PendingAwaitingDeposit
	}
	payloadJSON, err := encodeActivationPayload(p.Payload)
	if err != nil {
		return err
	}
	_, err = s.q(ctx).ExecContext(ctx, `
		INSERT INTO pending_activations (id, kind, expected_deposit_address, min_amount, created_at, expires_at, status, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.Kind, p.ExpectedDepositAddress, p.MinAmount, p.CreatedAt, p.ExpiresAt, p.Status, payloadJSON)
	return err
}

func (s *Store) GetPendingActivation(ctx context.Context, id string) (domain.PendingActivation, error) {
	return s.scanPendingActivation(s.q(ctx).QueryRowContext(ctx, `
		SELECT id, kind, expected_deposit_address, min_amount, created_at, expires_at, status, payload
		FROM pending_activations WHERE id = $1
	`, id))
}

func (s *Store) ListAwaitingDeposit(ctx context.Context) ([]domain.PendingActivation, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, kind, expected_deposit_address, min_amount, created_at, expires_at, status, payload
		FROM pending_activations WHERE status = $1 ORDER BY id
	`, domain.PendingAwaitingDeposit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PendingActivation
	for rows.Next() {
		p, err := s.scanPendingActivation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CancelPendingActivation(ctx context.Context, id string) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE pending_activations SET status = $2 WHERE id = $1 AND status = $3
	`, id, domain.PendingCancelled, domain.PendingAwaitingDeposit)
	if err != nil {
		return err
	}
	if err := requireRowsAffected(res); err != nil {
		if err == storage.ErrNotFound {
			if _, getErr := s.GetPendingActivation(ctx, id); getErr == storage.ErrNotFound {
				return storage.ErrNotFound
			}
			return storage.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ExpirePendingActivation(ctx context.Context, id string) error {
	res, err := s.q(ctx).ExecContext(ctx, `UPDATE pending_activations SET status = $2 WHERE id = $1`, id, domain.PendingExpired)
	if err != nil {
		return err
	}
	return requireRowsAffected(res)
}

func (s *Store) scanPendingActivation(row interface{ Scan(dest ...any) error }) (domain.PendingActivation, error) {
	var p domain.PendingActivation
	var payloadJSON []byte
	err := row.Scan(&p.ID, &p.Kind, &p.ExpectedDepositAddress, &p.MinAmount, &p.CreatedAt, &p.ExpiresAt, &p.Status, &payloadJSON)
	if isNoRows(err) {
		return domain.PendingActivation{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.PendingActivation{}, err
	}
	payload, err := decodeActivationPayload(payloadJSON)
	if err != nil {
		return domain.PendingActivation{}, err
	}
	p.Payload = payload
	return p, nil
}
