// Package domain holds the entity types shared across the state store,
// scheduler, cycle machine, and claim engine.
package domain

import (
	"time"

	"github.com/solward/flywheel/internal/numeric"
)

// WalletRole distinguishes the two wallets every non-platform token owns.
type WalletRole string

const (
	WalletRoleDev WalletRole = "dev"
	WalletRoleOps WalletRole = "ops"
)

// TokenSource classifies how a token entered the system.
type TokenSource string

const (
	SourceLaunched   TokenSource = "launched"
	SourceRegistered TokenSource = "registered"
	SourceMMOnly     TokenSource = "mm_only"
	SourcePlatform   TokenSource = "platform"
)

// Algorithm selects the trade-sizing/timing strategy for a token.
type Algorithm string

const (
	AlgorithmSimple    Algorithm = "simple"
	AlgorithmTurboLite Algorithm = "turbo_lite"
	AlgorithmRebalance Algorithm = "rebalance"
	AlgorithmTWAPVWAP  Algorithm = "twap_vwap"
)

// CyclePhase is the two-state automaton driving a token's trading cycle.
type CyclePhase string

const (
	PhaseBuy  CyclePhase = "buy"
	PhaseSell CyclePhase = "sell"
)

// TradeSide distinguishes buy vs. sell legs of a cycle.
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// TradeStatus is the lifecycle of a single on-chain trade attempt.
type TradeStatus string

const (
	TradeSubmitted TradeStatus = "submitted"
	TradeConfirmed TradeStatus = "confirmed"
	TradeFailed    TradeStatus = "failed"
)

// PendingStatus is the lifecycle of a PendingActivation row.
type PendingStatus string

const (
	PendingAwaitingDeposit PendingStatus = "awaiting_deposit"
	PendingActivated       PendingStatus = "activated"
	PendingExpired         PendingStatus = "expired"
	PendingCancelled       PendingStatus = "cancelled"
)

// PendingKind distinguishes a fresh launch from an mm-only registration.
type PendingKind string

const (
	PendingKindLaunch PendingKind = "launch"
	PendingKindMMOnly PendingKind = "mm_only"
)

// Owner is a tenant: an identifier plus a contact handle.
type Owner struct {
	ID        string
	Handle    string
	CreatedAt time.Time
}

// Wallet is one of an owner's dev/ops wallet pairs. The core never holds
// signing material directly; SignerHandle is an opaque reference the Signer
// Gateway resolves against the remote signing service (or, for platform
// self-trade wallets, a local key reference).
type Wallet struct {
	ID           string
	OwnerID      string
	Role         WalletRole
	Address      string
	SignerHandle string
	Local        bool
}

// Token is a registered asset.
type Token struct {
	ID         string
	OwnerID    string
	Mint       string
	Symbol     string
	Decimals   int
	Source     TokenSource
	DevWallet  string
	OpsWallet  string
	Active     bool
	Graduated  bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsPlatformOwned reports whether fee-split rules should be bypassed.
func (t Token) IsPlatformOwned() bool { return t.Source == SourcePlatform }

// AutoClaimEligible reports whether the token may ever be claimed by the
// Reward Claim Engine.
func (t Token) AutoClaimEligible() bool { return t.Source != SourceMMOnly }

// RebalanceTarget is one asset's share of a rebalance portfolio, in percent.
type RebalanceTarget struct {
	Asset   string
	Percent float64
}

// TokenConfig holds per-token tunables, including algorithm-specific fields.
// Fields not relevant to the configured Algorithm are left at their zero
// value; validation enforces that only the relevant subset is populated.
type TokenConfig struct {
	TokenID          string
	FlywheelActive   bool
	AutoClaimEnabled bool
	Algorithm        Algorithm

	MinBuyAmount   numeric.Amount
	MaxBuyAmount   numeric.Amount
	MaxSellAmount  numeric.Amount
	SlippageBps    int

	// rebalance
	RebalanceTargets []RebalanceTarget

	// turbo_lite
	CycleSizeBuys        int
	CycleSizeSells       int
	JobIntervalSeconds   int
	RateLimitPerMinute   int
	InterTokenDelayMS    int
	ConfirmationTimeout  time.Duration
	BatchUpdates         bool
}

// DefaultTokenConfig returns the simple-algorithm defaults named in §4.6/§4.5.
func DefaultTokenConfig(tokenID string) TokenConfig {
	return DefaultTokenConfigFor(tokenID, AlgorithmSimple)
}

// DefaultTokenConfigFor returns the default config for a given algorithm
// (§4.6/§4.5/§9's "providing a default-value function" per-algorithm
// pattern). Unrecognized or empty algorithm falls back to simple's defaults.
func DefaultTokenConfigFor(tokenID string, algorithm Algorithm) TokenConfig {
	cfg := TokenConfig{
		TokenID:            tokenID,
		FlywheelActive:     true,
		AutoClaimEnabled:   true,
		Algorithm:          AlgorithmSimple,
		CycleSizeBuys:      5,
		CycleSizeSells:     5,
		JobIntervalSeconds: 60,
		SlippageBps:        100,
	}
	switch algorithm {
	case AlgorithmTurboLite:
		cfg.Algorithm = AlgorithmTurboLite
		cfg.CycleSizeBuys, cfg.CycleSizeSells = 8, 8
		cfg.JobIntervalSeconds = 15
	case AlgorithmRebalance:
		cfg.Algorithm = AlgorithmRebalance
	case AlgorithmTWAPVWAP:
		cfg.Algorithm = AlgorithmTWAPVWAP
	}
	return cfg
}

// Validate enforces the "algorithm-specific fields may be null only if
// algorithm does not require them" invariant and basic numeric ranges.
func (c TokenConfig) Validate() error {
	if c.MinBuyAmount.GreaterThan(c.MaxBuyAmount) && !c.MaxBuyAmount.IsZero() {
		// Coercion, not rejection: §4.5 edge case handles this at the cycle
		// machine layer. Validate only rejects structurally invalid configs.
	}
	if c.CycleSizeBuys < 0 || c.CycleSizeSells < 0 {
		return errInvalidConfig("cycle sizes must be non-negative")
	}
	if c.SlippageBps < 0 || c.SlippageBps > 10000 {
		return errInvalidConfig("slippage_bps out of range")
	}
	if c.Algorithm == AlgorithmRebalance {
		total := 0.0
		for _, rt := range c.RebalanceTargets {
			total += rt.Percent
		}
		if len(c.RebalanceTargets) > 0 && (total < 99.0 || total > 101.0) {
			return errInvalidConfig("rebalance targets must sum to 100 percent")
		}
	}
	return nil
}

type configError string

func (e configError) Error() string { return string(e) }

func errInvalidConfig(msg string) error { return configError("invalid token config: " + msg) }

// CycleState is per-token runtime state for the cycle automaton.
type CycleState struct {
	TokenID                string
	Phase                  CyclePhase
	BuyCount               int
	SellCount              int
	SellPhaseTokenSnapshot numeric.Amount
	SellAmountPerTx        numeric.Amount
	ConsecutiveFailures    int
	LastAttemptAt          time.Time
}

// NewCycleState returns the initial state for a freshly-activated token.
func NewCycleState(tokenID string) CycleState {
	return CycleState{
		TokenID:                tokenID,
		Phase:                  PhaseBuy,
		SellPhaseTokenSnapshot: numeric.Zero(),
		SellAmountPerTx:        numeric.Zero(),
	}
}

// Trade is an immutable record of one attempted on-chain trade.
type Trade struct {
	ID        string
	TokenID   string
	Side      TradeSide
	Amount    numeric.Amount
	Signature string
	Status    TradeStatus
	Reason    string
	At        time.Time
}

// Claim is an immutable record of one fee harvest.
type Claim struct {
	ID            string
	TokenID       string
	GrossAmount   numeric.Amount
	PlatformFee   numeric.Amount
	OwnerReceived numeric.Amount
	Signature     string
	At            time.Time
}

// PendingActivation is an intention to activate a token once a deposit arrives.
type PendingActivation struct {
	ID                     string
	Kind                   PendingKind
	ExpectedDepositAddress string
	MinAmount              numeric.Amount
	CreatedAt              time.Time
	ExpiresAt              time.Time
	Status                 PendingStatus
	Payload                ActivationPayload
}

// ActivationPayload carries the fields needed to materialise a Token,
// TokenConfig, and CycleState once a pending activation is fulfilled.
type ActivationPayload struct {
	OwnerID   string
	Mint      string
	Symbol    string
	Decimals  int
	Source    TokenSource
	DevWallet string
	OpsWallet string
	Config    TokenConfig
}

// PlatformConfig holds process-wide, admin-mutable settings.
type PlatformConfig struct {
	FastClaimJobEnabled       bool
	MultiUserFlywheelEnabled  bool
	DepositMonitorEnabled     bool
	BalanceUpdateJobEnabled   bool
	FastClaimThreshold        numeric.Amount
	PlatformFastClaimThresh   numeric.Amount
	ClaimJobPeriod            time.Duration
	PlatformFeePercentage     float64
	PlatformSelfTradeMinSize  numeric.Amount
	PlatformSelfTradeMaxSize  numeric.Amount
	MaxTradesPerMinute        int
	ReserveAmount             numeric.Amount
}

// DefaultPlatformConfig mirrors the env defaults in §6.
func DefaultPlatformConfig() PlatformConfig {
	return PlatformConfig{
		FastClaimJobEnabled:      true,
		MultiUserFlywheelEnabled: true,
		DepositMonitorEnabled:    true,
		BalanceUpdateJobEnabled:  true,
		FastClaimThreshold:       numeric.FromFloat(0.15),
		PlatformFastClaimThresh:  numeric.FromFloat(0.05),
		ClaimJobPeriod:           30 * time.Second,
		PlatformFeePercentage:    0.10,
		MaxTradesPerMinute:       30,
		ReserveAmount:            numeric.FromFloat(0.1),
	}
}
