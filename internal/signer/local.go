package signer

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/solward/flywheel/internal/tradingsdk"
)

// Ed25519LocalSigner signs with in-process keys, used only for the
// platform's own self-trade wallets (§1 Non-goals). Keys are registered by
// reference so the rest of the system never handles raw key material beyond
// process bootstrap.
type Ed25519LocalSigner struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PrivateKey
}

// NewEd25519LocalSigner returns an empty key registry.
func NewEd25519LocalSigner() *Ed25519LocalSigner {
	return &Ed25519LocalSigner{keys: make(map[string]ed25519.PrivateKey)}
}

// Register binds a key reference to a private key, typically done once at
// startup from a secrets-managed seed.
func (s *Ed25519LocalSigner) Register(keyRef string, key ed25519.PrivateKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[keyRef] = key
}

// SignLocal signs tx.Raw with the registered key, prefixing the resulting
// signature so the broadcast payload carries both signature and message in
// the form the chain RPC driver expects.
func (s *Ed25519LocalSigner) SignLocal(_ context.Context, keyRef string, tx tradingsdk.UnsignedTransaction) ([]byte, error) {
	s.mu.RLock()
	key, ok := s.keys[keyRef]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("local signer: unknown key reference %q", keyRef)
	}
	sig := ed25519.Sign(key, tx.Raw)
	out := make([]byte, 0, len(sig)+len(tx.Raw))
	out = append(out, sig...)
	out = append(out, tx.Raw...)
	return out, nil
}
