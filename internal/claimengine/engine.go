// Package claimengine implements the Reward Claim Engine (§4.4): batched
// fee-harvest discovery, claim execution, and fee-split settlement.
package claimengine

import (
	"context"
	"sync"
	"time"

	"github.com/solward/flywheel/internal/chain"
	core "github.com/solward/flywheel/internal/core"
	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/errsink"
	"github.com/solward/flywheel/internal/numeric"
	"github.com/solward/flywheel/internal/signer"
	"github.com/solward/flywheel/internal/storage"
	"github.com/solward/flywheel/internal/tokenlock"
	"github.com/solward/flywheel/internal/tradingsdk"
	"github.com/solward/flywheel/pkg/logger"
)

const (
	walletBatchSize        = 10
	interWalletBatchPause   = 200 * time.Millisecond
	claimConcurrency        = 5
	interClaimBatchPause    = 500 * time.Millisecond
	claimMaxAttempts        = 3
	defaultReserve          = "0.1"
	defaultFeePercentage    = 0.10
	consecutiveClaimFailureReportThreshold = 3
)

// claimRetryPolicy governs the regenerate-and-resubmit loop in attemptClaim:
// three attempts, doubling backoff starting at 2s and capped at 8s.
var claimRetryPolicy = core.RetryPolicy{
	Attempts:       claimMaxAttempts,
	InitialBackoff: 2 * time.Second,
	MaxBackoff:     8 * time.Second,
	Multiplier:     2,
}

// WalletDirectory resolves a token to the wallets a claim settles against.
type WalletDirectory interface {
	DevWallet(tokenID string) (string, error)
	OpsWallet(tokenID string) (string, error)
	PlatformOpsWallet() string
}

// Engine implements the Reward Claim Engine.
type Engine struct {
	store     storage.Store
	platform  tradingsdk.ClaimPlatform
	gateway   *signer.Gateway
	wallets   WalletDirectory
	locks     *tokenlock.Striped
	sink      *errsink.Sink
	chainID   chain.ChainID
	log       *logger.Logger

	reserve numeric.Amount

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	period  time.Duration

	consecutiveFailures map[string]int
	cfMu                 sync.Mutex
}

// Config configures an Engine.
type Config struct {
	Store    storage.Store
	Platform tradingsdk.ClaimPlatform
	Gateway  *signer.Gateway
	Wallets  WalletDirectory
	Locks    *tokenlock.Striped
	Sink     *errsink.Sink
	ChainID  chain.ChainID
	Period   time.Duration
}

// New builds an Engine.
func New(cfg Config) *Engine {
	if cfg.Period <= 0 {
		cfg.Period = 30 * time.Second
	}
	return &Engine{
		store:                cfg.Store,
		platform:             cfg.Platform,
		gateway:              cfg.Gateway,
		wallets:              cfg.Wallets,
		locks:                cfg.Locks,
		sink:                 cfg.Sink,
		chainID:              cfg.ChainID,
		log:                  logger.NewDefault("claim-engine"),
		reserve:              numeric.FromFloat(0.1),
		period:               cfg.Period,
		consecutiveFailures:  make(map[string]int),
	}
}

func (e *Engine) Name() string { return "reward-claim-engine" }

func (e *Engine) Descriptor() core.Descriptor {
	return core.Descriptor{Name: e.Name(), Domain: "claimengine", Layer: core.LayerEngine, Capabilities: []string{"claim", "split-transfer"}}
}

func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.wg.Add(1)
	go e.loop(runCtx)
	return nil
}

func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.cancel()
	e.running = false
	e.mu.Unlock()

	done := make(chan struct{})
	go func() { e.wg.Wait(); close(done) }()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick runs one full claim-discovery-and-settle cycle (§4.4 steps 1-4).
func (e *Engine) Tick(ctx context.Context) {
	platformCfg, err := e.store.GetPlatformConfig(ctx)
	if err != nil {
		e.log.WithError(err).Error("failed to load platform config for claim tick")
		return
	}

	tokens, err := e.store.ListTokensForClaim(ctx)
	if err != nil {
		e.log.WithError(err).Error("failed to list claim-eligible tokens")
		return
	}

	byWallet := make(map[string][]domain.Token)
	for _, ct := range tokens {
		byWallet[ct.Token.DevWallet] = append(byWallet[ct.Token.DevWallet], ct.Token)
	}

	wallets := make([]string, 0, len(byWallet))
	for w := range byWallet {
		wallets = append(wallets, w)
	}

	for i := 0; i < len(wallets); i += walletBatchSize {
		end := i + walletBatchSize
		if end > len(wallets) {
			end = len(wallets)
		}
		batch := wallets[i:end]
		e.processWalletBatch(ctx, batch, byWallet, platformCfg)
		if end < len(wallets) {
			time.Sleep(interWalletBatchPause)
		}
	}
}

func (e *Engine) processWalletBatch(ctx context.Context, wallets []string, byWallet map[string][]domain.Token, platformCfg domain.PlatformConfig) {
	var wg sync.WaitGroup
	for _, wallet := range wallets {
		wallet := wallet
		wg.Add(1)
		go func() {
			defer wg.Done()
			positions, err := e.platform.ListClaimable(ctx, wallet)
			if err != nil {
				e.log.WithField("wallet", wallet).WithError(err).Warn("failed to list claimable positions")
				return
			}
			e.processPositions(ctx, wallet, positions, byWallet[wallet], platformCfg)
		}()
	}
	wg.Wait()
}

func (e *Engine) processPositions(ctx context.Context, wallet string, positions []tradingsdk.ClaimablePosition, tokens []domain.Token, platformCfg domain.PlatformConfig) {
	byMint := make(map[string]domain.Token, len(tokens))
	for _, t := range tokens {
		byMint[t.Mint] = t
	}

	var eligible []tradingsdk.ClaimablePosition
	for _, p := range positions {
		token, ok := byMint[p.TokenMint]
		if !ok {
			continue
		}
		threshold := platformCfg.FastClaimThreshold
		if token.IsPlatformOwned() {
			threshold = platformCfg.PlatformFastClaimThresh
		}
		if p.GrossAmount.GreaterOrEqual(threshold) {
			eligible = append(eligible, p)
		}
	}

	for i := 0; i < len(eligible); i += claimConcurrency {
		end := i + claimConcurrency
		if end > len(eligible) {
			end = len(eligible)
		}
		var wg sync.WaitGroup
		for _, p := range eligible[i:end] {
			p := p
			token := byMint[p.TokenMint]
			wg.Add(1)
			go func() {
				defer wg.Done()
				e.claimAndSettle(ctx, wallet, token, p.GrossAmount, platformCfg)
			}()
		}
		wg.Wait()
		if end < len(eligible) {
			time.Sleep(interClaimBatchPause)
		}
	}
}

// claimAndSettle acquires the token's non-blocking lock, attempts the claim
// up to claimMaxAttempts times with fresh transactions on each retry, and on
// success executes the split-transfer.
func (e *Engine) claimAndSettle(ctx context.Context, wallet string, token domain.Token, gross numeric.Amount, platformCfg domain.PlatformConfig) {
	release, ok := e.locks.TryAcquire(token.ID)
	if !ok {
		return // scheduler or another claim is already touching this token this tick
	}
	defer release()

	result, err := e.attemptClaim(ctx, wallet, token, gross)
	if err != nil {
		e.recordClaimFailure(ctx, token, err)
		return
	}
	e.resetClaimFailure(token.ID)

	gross = result.gross
	reserve := e.reserve
	transferable := gross.Sub(reserve)
	if transferable.IsNegative() {
		transferable = numeric.Zero()
	}

	var platformFee, ownerReceived numeric.Amount
	if token.IsPlatformOwned() {
		platformFee = numeric.Zero()
		ownerReceived = transferable
	} else {
		feePct := platformCfg.PlatformFeePercentage
		if feePct == 0 {
			feePct = defaultFeePercentage
		}
		platformFee = transferable.MulFloat(feePct)
		ownerReceived = transferable.Sub(platformFee)
	}

	claim := domain.Claim{
		TokenID:       token.ID,
		GrossAmount:   gross,
		PlatformFee:   platformFee,
		OwnerReceived: ownerReceived,
		Signature:     result.signature,
		At:            time.Now().UTC(),
	}
	if err := e.store.RecordClaim(ctx, claim); err != nil {
		e.log.WithField("token_id", token.ID).WithError(err).Error("failed to record claim")
	}

	e.settleSplit(ctx, token, transferable, platformFee, ownerReceived)
}

type claimResult struct {
	signature string
	gross     numeric.Amount
}

// attemptClaim tries up to claimMaxAttempts times, regenerating a fresh
// unsigned claim transaction on every attempt (§4.4, §9): a failed attempt
// never resigns or resubmits the same transaction. gross is the amount
// already observed on the claimable position listing that qualified this
// claim; BuildClaimTx/Submit confirm the claim happened, they don't re-report
// the amount, so the caller threads it straight through.
func (e *Engine) attemptClaim(ctx context.Context, wallet string, token domain.Token, gross numeric.Amount) (claimResult, error) {
	var result claimResult
	err := core.Retry(ctx, claimRetryPolicy, func() error {
		txs, err := e.platform.BuildClaimTx(ctx, wallet, []string{token.Mint})
		if err != nil {
			return err
		}
		if len(txs) == 0 {
			return errNoClaimTransaction
		}

		submitted, err := e.gateway.Submit(ctx, signer.Wallet{Address: wallet, SignerHandle: wallet}, txs[0], signer.SubmitOptions{
			Chain:     e.chainID,
			TokenID:   token.ID,
			Operation: "claim",
		})
		if err != nil {
			return err // regenerate on next loop iteration regardless of failure kind
		}

		result = claimResult{signature: submitted.Signature, gross: gross}
		return nil
	})
	if err != nil {
		return claimResult{}, err
	}
	return result, nil
}

func (e *Engine) settleSplit(ctx context.Context, token domain.Token, transferable, platformFee, ownerReceived numeric.Amount) {
	opsWallet, err := e.wallets.OpsWallet(token.ID)
	if err != nil {
		e.log.WithField("token_id", token.ID).WithError(err).Warn("failed to resolve owner ops wallet for split-transfer")
		return
	}

	if token.IsPlatformOwned() {
		e.transfer(ctx, token, token.DevWallet, opsWallet, transferable, "owner_transfer")
		return
	}

	platformOps := e.wallets.PlatformOpsWallet()
	// Each leg is independent and separately signed (§4.4): a failure on
	// one does not roll back the other, and both recompute from on-chain
	// state on the next claim cycle rather than retrying here.
	e.transfer(ctx, token, token.DevWallet, platformOps, platformFee, "platform_fee_transfer")
	e.transfer(ctx, token, token.DevWallet, opsWallet, ownerReceived, "owner_transfer")
}

func (e *Engine) transfer(ctx context.Context, token domain.Token, from, to string, amount numeric.Amount, operation string) {
	if amount.IsZero() || amount.IsNegative() {
		return
	}
	unsigned, err := e.platform.BuildTransferTx(ctx, from, to, amount)
	if err != nil {
		e.log.WithField("token_id", token.ID).WithField("operation", operation).WithError(err).Warn("failed to build split-transfer transaction, will reconcile next cycle")
		trade := domain.Trade{
			TokenID: token.ID,
			Side:    domain.SideSell,
			Amount:  amount,
			Status:  domain.TradeFailed,
			Reason:  err.Error(),
			At:      time.Now().UTC(),
		}
		if recErr := e.store.RecordTrade(ctx, trade); recErr != nil {
			e.log.WithField("token_id", token.ID).WithError(recErr).Error("failed to record split-transfer trade")
		}
		return
	}
	result, err := e.gateway.Submit(ctx, signer.Wallet{Address: from, SignerHandle: from}, unsigned, signer.SubmitOptions{
		Chain:     e.chainID,
		TokenID:   token.ID,
		Operation: operation,
	})
	trade := domain.Trade{
		TokenID: token.ID,
		Side:    domain.SideSell,
		Amount:  amount,
		Status:  domain.TradeConfirmed,
		At:      time.Now().UTC(),
	}
	if err != nil {
		trade.Status = domain.TradeFailed
		trade.Reason = err.Error()
		e.log.WithField("token_id", token.ID).WithField("operation", operation).WithError(err).Warn("split-transfer leg failed, will reconcile next cycle")
	} else {
		trade.Signature = result.Signature
	}
	if recErr := e.store.RecordTrade(ctx, trade); recErr != nil {
		e.log.WithField("token_id", token.ID).WithError(recErr).Error("failed to record split-transfer trade")
	}
}

func (e *Engine) recordClaimFailure(ctx context.Context, token domain.Token, err error) {
	e.cfMu.Lock()
	e.consecutiveFailures[token.ID]++
	count := e.consecutiveFailures[token.ID]
	e.cfMu.Unlock()

	e.log.WithField("token_id", token.ID).WithError(err).Warn("claim attempt exhausted retries")
	if count >= consecutiveClaimFailureReportThreshold && e.sink != nil {
		e.sink.Report(ctx, errsink.Report{
			Kind:      errsink.KindTransientIO,
			Module:    "claimengine",
			Operation: "claim",
			ActorIDs:  map[string]string{"token": token.ID},
			Err:       err,
		})
	}
}

func (e *Engine) resetClaimFailure(tokenID string) {
	e.cfMu.Lock()
	delete(e.consecutiveFailures, tokenID)
	e.cfMu.Unlock()
}
