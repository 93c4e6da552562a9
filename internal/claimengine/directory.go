package claimengine

import (
	"context"
	"fmt"

	"github.com/solward/flywheel/internal/storage"
)

// storeDirectory resolves wallet addresses through the Store's token table.
// It is the production WalletDirectory: the dev/ops wallet pair already
// lives on domain.Token, so no separate lookup table is needed.
type storeDirectory struct {
	store       storage.Store
	platformOps string
}

// NewStoreDirectory builds a WalletDirectory backed by store. platformOps is
// the platform's own operations wallet, used for platform-owned tokens'
// claim settlement (§4.4).
func NewStoreDirectory(store storage.Store, platformOps string) WalletDirectory {
	return &storeDirectory{store: store, platformOps: platformOps}
}

func (d *storeDirectory) DevWallet(tokenID string) (string, error) {
	t, err := d.store.GetToken(context.Background(), tokenID)
	if err != nil {
		return "", fmt.Errorf("claimengine: resolve dev wallet: %w", err)
	}
	return t.DevWallet, nil
}

func (d *storeDirectory) OpsWallet(tokenID string) (string, error) {
	t, err := d.store.GetToken(context.Background(), tokenID)
	if err != nil {
		return "", fmt.Errorf("claimengine: resolve ops wallet: %w", err)
	}
	return t.OpsWallet, nil
}

func (d *storeDirectory) PlatformOpsWallet() string { return d.platformOps }
