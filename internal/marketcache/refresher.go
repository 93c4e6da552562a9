package marketcache

import (
	"context"
	"sync"
	"time"

	"github.com/solward/flywheel/internal/chain"
	core "github.com/solward/flywheel/internal/core"
)

// WalletSource supplies the set of wallets the refresher should keep warm.
// The Fleet Scheduler's token list is the natural source: every token's
// ops/dev wallet pair.
type WalletSource func(ctx context.Context) ([]string, error)

// Refresher is the background batch refresher named in §4.2 and §5: it
// proactively re-warms native balances in groups of refreshBatchSize with an
// inter-request delay, so foreground reads (the scheduler/claim engine) see
// warm cache on their own ticks instead of paying the RPC latency inline.
type Refresher struct {
	cache   *Cache
	rpc     chain.RPCDriver
	chainID chain.ChainID
	wallets WalletSource
	period  time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRefresher builds a refresher that ticks every period.
func NewRefresher(cache *Cache, rpc chain.RPCDriver, chainID chain.ChainID, wallets WalletSource, period time.Duration) *Refresher {
	if period <= 0 {
		period = time.Minute
	}
	return &Refresher{cache: cache, rpc: rpc, chainID: chainID, wallets: wallets, period: period}
}

func (r *Refresher) Name() string { return "balance-refresher" }

func (r *Refresher) Descriptor() core.Descriptor {
	return core.Descriptor{Name: r.Name(), Domain: "marketcache", Layer: core.LayerData, Capabilities: []string{"balance-refresh"}}
}

func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.wg.Add(1)
	go r.loop(runCtx)
	return nil
}

func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.cancel()
	r.running = false
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Refresher) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshOnce(ctx)
		}
	}
}

func (r *Refresher) refreshOnce(ctx context.Context) {
	wallets, err := r.wallets(ctx)
	if err != nil || len(wallets) == 0 {
		return
	}
	for i := 0; i < len(wallets); i += refreshBatchSize {
		end := i + refreshBatchSize
		if end > len(wallets) {
			end = len(wallets)
		}
		batch := wallets[i:end]
		for _, w := range batch {
			select {
			case <-ctx.Done():
				return
			default:
			}
			raw, err := r.rpc.GetBalance(ctx, r.chainID, w)
			if err != nil {
				continue
			}
			r.cache.balanceMu.Lock()
			r.cache.balances[WalletBalanceKey{Wallet: w}] = balanceEntry{value: amountFromBig(raw), fetched: time.Now()}
			r.cache.balanceMu.Unlock()
			time.Sleep(refreshInterRequest)
		}
	}
}
