package postgres

import (
	"context"

	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/storage"
)

func (s *Store) CreateOwner(ctx context.Context, o domain.Owner) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO owners (id, handle, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET handle = EXCLUDED.handle
	`, o.ID, o.Handle, o.CreatedAt)
	return err
}

func (s *Store) GetOwner(ctx context.Context, id string) (domain.Owner, error) {
	var o domain.Owner
	err := s.q(ctx).QueryRowContext(ctx, `SELECT id, handle, created_at FROM owners WHERE id = $1`, id).
		Scan(&o.ID, &o.Handle, &o.CreatedAt)
	if isNoRows(err) {
		return domain.Owner{}, storage.ErrNotFound
	}
	return o, err
}

func (s *Store) GetWallet(ctx context.Context, id string) (domain.Wallet, error) {
	var w domain.Wallet
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, owner_id, role, address, signer_handle, local FROM wallets WHERE id = $1
	`, id).Scan(&w.ID, &w.OwnerID, &w.Role, &w.Address, &w.SignerHandle, &w.Local)
	if isNoRows(err) {
		return domain.Wallet{}, storage.ErrNotFound
	}
	return w, err
}

func (s *Store) ListWalletsByOwner(ctx context.Context, ownerID string) ([]domain.Wallet, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, owner_id, role, address, signer_handle, local FROM wallets WHERE owner_id = $1 ORDER BY id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Wallet
	for rows.Next() {
		var w domain.Wallet
		if err := rows.Scan(&w.ID, &w.OwnerID, &w.Role, &w.Address, &w.SignerHandle, &w.Local); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
