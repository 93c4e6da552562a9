// Package memory is an in-memory Store used by tests and as the zero-config
// fallback for local development, mirroring the teacher's own in-memory
// store fakes used for service-level tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/storage"
)

// Store is a mutex-guarded, map-backed implementation of storage.Store.
type Store struct {
	mu sync.Mutex

	owners   map[string]domain.Owner
	wallets  map[string]domain.Wallet
	tokens   map[string]domain.Token
	byMint   map[string]string // mint -> token id
	configs  map[string]domain.TokenConfig
	cycles   map[string]domain.CycleState
	trades   []domain.Trade
	claims   []domain.Claim
	pendings map[string]domain.PendingActivation
	platform domain.PlatformConfig
}

// New returns an empty Store seeded with default platform configuration.
func New() *Store {
	return &Store{
		owners:   make(map[string]domain.Owner),
		wallets:  make(map[string]domain.Wallet),
		tokens:   make(map[string]domain.Token),
		byMint:   make(map[string]string),
		configs:  make(map[string]domain.TokenConfig),
		cycles:   make(map[string]domain.CycleState),
		pendings: make(map[string]domain.PendingActivation),
		platform: domain.DefaultPlatformConfig(),
	}
}

func (s *Store) CreateOwner(ctx context.Context, o domain.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owners[o.ID] = o
	return nil
}

func (s *Store) GetOwner(ctx context.Context, id string) (domain.Owner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.owners[id]
	if !ok {
		return domain.Owner{}, storage.ErrNotFound
	}
	return o, nil
}

func (s *Store) GetWallet(ctx context.Context, id string) (domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok {
		return domain.Wallet{}, storage.ErrNotFound
	}
	return w, nil
}

func (s *Store) ListWalletsByOwner(ctx context.Context, ownerID string) ([]domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Wallet
	for _, w := range s.wallets {
		if w.OwnerID == ownerID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// PutWallet is a test/seed helper; not part of storage.Store.
func (s *Store) PutWallet(w domain.Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	s.wallets[w.ID] = w
}

// PutToken is a test/seed helper; not part of storage.Store.
func (s *Store) PutToken(t domain.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	s.tokens[t.ID] = t
	s.byMint[t.Mint] = t.ID
}

// PutTokenConfig is a test/seed helper; not part of storage.Store.
func (s *Store) PutTokenConfig(cfg domain.TokenConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.TokenID] = cfg
}

// PutCycleState is a test/seed helper; not part of storage.Store.
func (s *Store) PutCycleState(c domain.CycleState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles[c.TokenID] = c
}

func (s *Store) GetToken(ctx context.Context, id string) (domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return domain.Token{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) GetTokenByMint(ctx context.Context, mint string) (domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byMint[mint]
	if !ok {
		return domain.Token{}, storage.ErrNotFound
	}
	return s.tokens[id], nil
}

func (s *Store) ListTokens(ctx context.Context) ([]domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Token, 0, len(s.tokens))
	for _, t := range s.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SetTokenActive(ctx context.Context, tokenID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenID]
	if !ok {
		return storage.ErrNotFound
	}
	t.Active = active
	t.UpdatedAt = now()
	s.tokens[tokenID] = t
	return nil
}

func (s *Store) ListTokensForScheduler(ctx context.Context, algorithm string) ([]storage.SchedulableToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.SchedulableToken
	for _, t := range s.tokens {
		if !t.Active {
			continue
		}
		cfg, ok := s.configs[t.ID]
		if !ok || !cfg.FlywheelActive {
			continue
		}
		if algorithm != "" && string(cfg.Algorithm) != algorithm {
			continue
		}
		out = append(out, storage.SchedulableToken{
			Token:  t,
			Config: cfg,
			Cycle:  s.cycles[t.ID],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token.ID < out[j].Token.ID })
	return out, nil
}

func (s *Store) ListTokensForClaim(ctx context.Context) ([]storage.ClaimableToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.ClaimableToken
	for _, t := range s.tokens {
		if !t.Active || !t.AutoClaimEligible() {
			continue
		}
		cfg, ok := s.configs[t.ID]
		if !ok || !cfg.AutoClaimEnabled {
			continue
		}
		out = append(out, storage.ClaimableToken{Token: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token.ID < out[j].Token.ID })
	return out, nil
}

func (s *Store) ActivatePending(ctx context.Context, pendingID string) (domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pendings[pendingID]
	if !ok {
		return domain.Token{}, storage.ErrNotFound
	}
	if p.Status != domain.PendingAwaitingDeposit {
		return domain.Token{}, storage.ErrConflict
	}

	payload := p.Payload
	token := domain.Token{
		ID:        uuid.NewString(),
		OwnerID:   payload.OwnerID,
		Mint:      payload.Mint,
		Symbol:    payload.Symbol,
		Decimals:  payload.Decimals,
		Source:    payload.Source,
		DevWallet: payload.DevWallet,
		OpsWallet: payload.OpsWallet,
		Active:    true,
		CreatedAt: now(),
		UpdatedAt: now(),
	}
	cfg := payload.Config
	cfg.TokenID = token.ID
	cycle := domain.NewCycleState(token.ID)

	s.tokens[token.ID] = token
	s.byMint[token.Mint] = token.ID
	s.configs[token.ID] = cfg
	s.cycles[token.ID] = cycle

	p.Status = domain.PendingActivated
	s.pendings[pendingID] = p

	return token, nil
}

func (s *Store) ReactivateSuspended(ctx context.Context, tokenID string, verify func(string) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tokenID]
	if !ok {
		return storage.ErrNotFound
	}
	if t.Active {
		return nil
	}
	if !verify(t.DevWallet) || !verify(t.OpsWallet) {
		return storage.ErrConflict
	}
	t.Active = true
	t.UpdatedAt = now()
	s.tokens[tokenID] = t
	return nil
}

func (s *Store) GetTokenConfig(ctx context.Context, tokenID string) (domain.TokenConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[tokenID]
	if !ok {
		return domain.TokenConfig{}, storage.ErrNotFound
	}
	return cfg, nil
}

func (s *Store) UpsertTokenConfig(ctx context.Context, cfg domain.TokenConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.TokenID] = cfg
	return nil
}

func (s *Store) GetCycleState(ctx context.Context, tokenID string) (domain.CycleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cycles[tokenID]
	if !ok {
		return domain.CycleState{}, storage.ErrNotFound
	}
	return c, nil
}

func (s *Store) AdvanceCycle(ctx context.Context, tokenID string, update domain.CycleState) (domain.CycleState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cycles[tokenID]; !ok {
		return domain.CycleState{}, storage.ErrNotFound
	}
	update.TokenID = tokenID
	update.LastAttemptAt = now()
	s.cycles[tokenID] = update
	return update, nil
}

func (s *Store) RecordTrade(ctx context.Context, t domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.At.IsZero() {
		t.At = now()
	}
	s.trades = append(s.trades, t)
	return nil
}

func (s *Store) ListTradesByToken(ctx context.Context, tokenID string, limit int) ([]domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Trade
	for i := len(s.trades) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.trades[i].TokenID == tokenID {
			out = append(out, s.trades[i])
		}
	}
	return out, nil
}

func (s *Store) RecordClaim(ctx context.Context, c domain.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.At.IsZero() {
		c.At = now()
	}
	s.claims = append(s.claims, c)
	return nil
}

func (s *Store) ListClaimsByToken(ctx context.Context, tokenID string, limit int) ([]domain.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Claim
	for i := len(s.claims) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.claims[i].TokenID == tokenID {
			out = append(out, s.claims[i])
		}
	}
	return out, nil
}

func (s *Store) CreatePendingActivation(ctx context.Context, p domain.PendingActivation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	if p.ExpiresAt.IsZero() {
		p.ExpiresAt = p.CreatedAt.Add(24 * time.Hour)
	}
	if p.Status == "" {
		p.Status = domain.PendingAwaitingDeposit
	}
	s.pendings[p.ID] = p
	return nil
}

func (s *Store) GetPendingActivation(ctx context.Context, id string) (domain.PendingActivation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pendings[id]
	if !ok {
		return domain.PendingActivation{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListAwaitingDeposit(ctx context.Context) ([]domain.PendingActivation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PendingActivation
	for _, p := range s.pendings {
		if p.Status == domain.PendingAwaitingDeposit {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CancelPendingActivation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pendings[id]
	if !ok {
		return storage.ErrNotFound
	}
	if p.Status != domain.PendingAwaitingDeposit {
		return storage.ErrConflict
	}
	p.Status = domain.PendingCancelled
	s.pendings[id] = p
	return nil
}

func (s *Store) ExpirePendingActivation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pendings[id]
	if !ok {
		return storage.ErrNotFound
	}
	p.Status = domain.PendingExpired
	s.pendings[id] = p
	return nil
}

func (s *Store) GetPlatformConfig(ctx context.Context) (domain.PlatformConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.platform, nil
}

func (s *Store) UpdatePlatformConfig(ctx context.Context, cfg domain.PlatformConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.platform = cfg
	return nil
}

func now() time.Time { return time.Now().UTC() }

var _ storage.Store = (*Store)(nil)
