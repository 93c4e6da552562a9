// Package tradingsdk declares the boundary to the external AMM trading SDK
// and the first-party launch platform's claim SDK (§6). The core never
// implements AMM routing or claim-position bookkeeping itself; it only
// consumes these contracts.
package tradingsdk

import (
	"context"

	"github.com/solward/flywheel/internal/numeric"
)

// Quote is a priced route between two assets, valid for a short window.
type Quote struct {
	InMint      string
	OutMint     string
	InAmount    numeric.Amount
	OutAmount   numeric.Amount
	SlippageBps int
	Raw         []byte // opaque SDK-specific quote payload, replayed into BuildSwap
}

// UnsignedTransaction is an upstream-produced, not-yet-signed transaction in
// whichever wire form (legacy or versioned) the trading/claim SDK emits. The
// Signer Gateway treats this as opaque and never mutates it.
type UnsignedTransaction struct {
	Raw             []byte
	RecentBlockhash string
	FeePayer        string
}

// ClaimablePosition is one fee-accrual position discovered for a wallet.
type ClaimablePosition struct {
	TokenMint   string
	Wallet      string
	GrossAmount numeric.Amount
}

// AMM is the trading SDK surface: quote + build-swap, no routing logic lives
// on this side of the boundary.
type AMM interface {
	Quote(ctx context.Context, inMint, outMint string, amount numeric.Amount, slippageBps int) (Quote, error)
	BuildSwap(ctx context.Context, quote Quote, userPubkey string) (UnsignedTransaction, error)
}

// ClaimPlatform is the first-party launch platform's claim SDK surface.
type ClaimPlatform interface {
	ListClaimable(ctx context.Context, wallet string) ([]ClaimablePosition, error)
	// BuildClaimTx returns one fresh, unsigned claim transaction per requested
	// mint. Callers must request a fresh transaction for every retry attempt
	// rather than reusing a previously built one (§4.4, §9).
	BuildClaimTx(ctx context.Context, wallet string, mints []string) ([]UnsignedTransaction, error)
	// BuildTransferTx returns one fresh, unsigned transaction moving amount
	// from one platform-controlled wallet to another. Used to settle the
	// platform-fee and owner-share legs of a claim (§4.4).
	BuildTransferTx(ctx context.Context, from, to string, amount numeric.Amount) (UnsignedTransaction, error)
}
