// Package marketcache implements the Price & Balance Cache (§4.2): a
// time-bounded cache of external asset price and per-wallet on-chain
// balances, with a background refresher that batches balance queries.
// Grounded on the teacher's generic infrastructure/cache.Cache TTL-map
// shape, specialised to the three read paths the spec names and their
// distinct freshness contracts.
package marketcache

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/solward/flywheel/internal/chain"
	"github.com/solward/flywheel/internal/numeric"
	"github.com/solward/flywheel/pkg/logger"
)

func amountFromBig(n *big.Int) numeric.Amount {
	if n == nil {
		return numeric.Zero()
	}
	return numeric.FromInt(n.Int64())
}

const (
	priceFreshness   = 5 * time.Minute
	balanceFreshness = 30 * time.Second

	refreshBatchSize    = 50
	refreshInterRequest = 100 * time.Millisecond
)

// PriceSource is one external price endpoint, tried in configured order
// until one succeeds (§4.2).
type PriceSource interface {
	Name() string
	Price(ctx context.Context, asset string) (numeric.Amount, error)
}

type priceEntry struct {
	value   numeric.Amount
	fetched time.Time
}

type balanceEntry struct {
	value   numeric.Amount
	fetched time.Time
}

// WalletBalanceKey identifies a balance-cache row: a wallet's native balance
// (mint == "") or its balance of a specific token mint.
type WalletBalanceKey struct {
	Wallet string
	Mint   string
}

// Cache is the Price & Balance Cache. All reads are safe under concurrent
// access; writes to a given key are serialized by a per-key mutex so
// concurrent misses on the same key collapse into one upstream fetch.
type Cache struct {
	rpc     chain.RPCDriver
	sources []PriceSource
	log     *logger.Logger

	priceMu sync.Mutex
	prices  map[string]priceEntry

	balanceMu sync.Mutex
	balances  map[WalletBalanceKey]balanceEntry

	keyLocks sync.Map // key(any) -> *sync.Mutex, serializes per-key writes
}

// New builds a Cache bound to an RPC driver and an ordered list of price sources.
func New(rpc chain.RPCDriver, sources []PriceSource) *Cache {
	return &Cache{
		rpc:      rpc,
		sources:  sources,
		log:      logger.NewDefault("market-cache"),
		prices:   make(map[string]priceEntry),
		balances: make(map[WalletBalanceKey]balanceEntry),
	}
}

func (c *Cache) lockFor(key any) *sync.Mutex {
	l, _ := c.keyLocks.LoadOrStore(key, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// Price returns asset's cached value if fresh; otherwise it tries each
// configured source in order. If every source fails, it returns the
// last-cached value (if any) without refreshing the freshness timestamp, so
// the very next call retries (§4.2).
func (c *Cache) Price(ctx context.Context, asset string) (numeric.Amount, error) {
	c.priceMu.Lock()
	entry, ok := c.prices[asset]
	c.priceMu.Unlock()
	if ok && time.Since(entry.fetched) < priceFreshness {
		return entry.value, nil
	}

	lock := c.lockFor("price:" + asset)
	lock.Lock()
	defer lock.Unlock()

	// Re-check after acquiring the write lock: another goroutine may have
	// refreshed this asset while we waited.
	c.priceMu.Lock()
	entry, ok = c.prices[asset]
	c.priceMu.Unlock()
	if ok && time.Since(entry.fetched) < priceFreshness {
		return entry.value, nil
	}

	for _, src := range c.sources {
		value, err := src.Price(ctx, asset)
		if err != nil {
			c.log.WithField("source", src.Name()).WithField("asset", asset).WithError(err).Debug("price source failed, trying next")
			continue
		}
		c.priceMu.Lock()
		c.prices[asset] = priceEntry{value: value, fetched: time.Now()}
		c.priceMu.Unlock()
		return value, nil
	}

	if ok {
		// All sources exhausted: return stale value, freshness unchanged.
		return entry.value, nil
	}
	return numeric.Zero(), errAllSourcesFailed(asset)
}

// NativeBalance returns wallet's native-asset balance, refreshing if stale.
func (c *Cache) NativeBalance(ctx context.Context, chainID chain.ChainID, wallet string) (numeric.Amount, error) {
	return c.balance(ctx, chainID, WalletBalanceKey{Wallet: wallet}, func() (numeric.Amount, error) {
		raw, err := c.rpc.GetBalance(ctx, chainID, wallet)
		if err != nil {
			return numeric.Zero(), err
		}
		return numeric.FromInt(raw.Int64()), nil
	})
}

// TokenBalance returns wallet's balance of mint, refreshing if stale.
func (c *Cache) TokenBalance(ctx context.Context, chainID chain.ChainID, wallet, mint string) (numeric.Amount, error) {
	return c.balance(ctx, chainID, WalletBalanceKey{Wallet: wallet, Mint: mint}, func() (numeric.Amount, error) {
		raw, err := c.rpc.GetTokenBalance(ctx, chainID, mint, wallet)
		if err != nil {
			return numeric.Zero(), err
		}
		return numeric.FromInt(raw.Int64()), nil
	})
}

func (c *Cache) balance(ctx context.Context, _ chain.ChainID, key WalletBalanceKey, fetch func() (numeric.Amount, error)) (numeric.Amount, error) {
	c.balanceMu.Lock()
	entry, ok := c.balances[key]
	c.balanceMu.Unlock()
	if ok && time.Since(entry.fetched) < balanceFreshness {
		return entry.value, nil
	}

	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	c.balanceMu.Lock()
	entry, ok = c.balances[key]
	c.balanceMu.Unlock()
	if ok && time.Since(entry.fetched) < balanceFreshness {
		return entry.value, nil
	}

	value, err := fetch()
	if err != nil {
		if ok {
			return entry.value, nil
		}
		return numeric.Zero(), err
	}
	c.balanceMu.Lock()
	c.balances[key] = balanceEntry{value: value, fetched: time.Now()}
	c.balanceMu.Unlock()
	return value, nil
}

// Invalidate drops the cached entry for a wallet/mint pair so the next read
// refetches. Callers use this immediately after submitting a settling
// transaction (§4.2).
func (c *Cache) Invalidate(wallet, mint string) {
	c.balanceMu.Lock()
	delete(c.balances, WalletBalanceKey{Wallet: wallet, Mint: mint})
	c.balanceMu.Unlock()
}

// InvalidateNative drops the cached native balance for a wallet.
func (c *Cache) InvalidateNative(wallet string) {
	c.Invalidate(wallet, "")
}

type sourceErr struct{ asset string }

func (e sourceErr) Error() string { return "marketcache: all price sources failed for " + e.asset }

func errAllSourcesFailed(asset string) error { return sourceErr{asset: asset} }
