// Package storage defines the durable repository surface for every entity in
// the domain package, plus the transactional operations that must apply
// multiple rows atomically.
package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/solward/flywheel/internal/domain"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, letting repository code
// run unmodified whether or not a transaction is active on the context.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ErrNotFound is returned when a lookup by ID/mint finds no row.
var ErrNotFound = errors.New("storage: not found")

// ErrConflict is returned when a write violates a state-machine invariant,
// e.g. activating a pending row that is not awaiting_deposit.
var ErrConflict = errors.New("storage: conflict")

// SchedulableToken is the join the Fleet Scheduler reads on every tick.
type SchedulableToken struct {
	Token  domain.Token
	Config domain.TokenConfig
	Cycle  domain.CycleState
}

// ClaimableToken is the join the Reward Claim Engine reads on every tick.
type ClaimableToken struct {
	Token domain.Token
}

// Store is the full repository surface. Concrete implementations: Postgres
// (production) and an in-memory fake (tests).
type Store interface {
	OwnerStore
	WalletStore
	TokenStore
	ConfigStore
	CycleStore
	TradeStore
	ClaimStore
	PendingActivationStore
	PlatformConfigStore
}

type OwnerStore interface {
	GetOwner(ctx context.Context, id string) (domain.Owner, error)
	CreateOwner(ctx context.Context, o domain.Owner) error
}

type WalletStore interface {
	GetWallet(ctx context.Context, id string) (domain.Wallet, error)
	ListWalletsByOwner(ctx context.Context, ownerID string) ([]domain.Wallet, error)
}

type TokenStore interface {
	GetToken(ctx context.Context, id string) (domain.Token, error)
	GetTokenByMint(ctx context.Context, mint string) (domain.Token, error)
	ListTokens(ctx context.Context) ([]domain.Token, error)
	SetTokenActive(ctx context.Context, tokenID string, active bool) error

	// ListTokensForScheduler returns tokens with flywheel_active=true,
	// active=true, optionally filtered by algorithm (empty string = all).
	ListTokensForScheduler(ctx context.Context, algorithm string) ([]SchedulableToken, error)

	// ListTokensForClaim returns tokens with auto_claim_enabled=true,
	// active=true, source != mm_only.
	ListTokensForClaim(ctx context.Context) ([]ClaimableToken, error)

	// ActivatePending atomically creates Token, TokenConfig, CycleState rows
	// from the pending payload and flips the pending row to activated. Fails
	// with ErrConflict if the pending record is not awaiting_deposit.
	ActivatePending(ctx context.Context, pendingID string) (domain.Token, error)

	// ReactivateSuspended re-enables a deactivated token iff verify confirms
	// possession of both its wallets.
	ReactivateSuspended(ctx context.Context, tokenID string, verify func(walletAddress string) bool) error
}

type ConfigStore interface {
	GetTokenConfig(ctx context.Context, tokenID string) (domain.TokenConfig, error)
	UpsertTokenConfig(ctx context.Context, cfg domain.TokenConfig) error
}

type CycleStore interface {
	GetCycleState(ctx context.Context, tokenID string) (domain.CycleState, error)

	// AdvanceCycle atomically applies a phase/count update, returning the new state.
	AdvanceCycle(ctx context.Context, tokenID string, update domain.CycleState) (domain.CycleState, error)
}

type TradeStore interface {
	RecordTrade(ctx context.Context, t domain.Trade) error
	ListTradesByToken(ctx context.Context, tokenID string, limit int) ([]domain.Trade, error)
}

type ClaimStore interface {
	RecordClaim(ctx context.Context, c domain.Claim) error
	ListClaimsByToken(ctx context.Context, tokenID string, limit int) ([]domain.Claim, error)
}

type PendingActivationStore interface {
	CreatePendingActivation(ctx context.Context, p domain.PendingActivation) error
	GetPendingActivation(ctx context.Context, id string) (domain.PendingActivation, error)
	ListAwaitingDeposit(ctx context.Context) ([]domain.PendingActivation, error)
	CancelPendingActivation(ctx context.Context, id string) error
	ExpirePendingActivation(ctx context.Context, id string) error
}

type PlatformConfigStore interface {
	GetPlatformConfig(ctx context.Context) (domain.PlatformConfig, error)
	UpdatePlatformConfig(ctx context.Context, cfg domain.PlatformConfig) error
}
