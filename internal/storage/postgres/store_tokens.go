package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/storage"
)

func scanToken(row interface {
	Scan(dest ...any) error
}) (domain.Token, error) {
	var t domain.Token
	err := row.Scan(&t.ID, &t.OwnerID, &t.Mint, &t.Symbol, &t.Decimals, &t.Source,
		&t.DevWallet, &t.OpsWallet, &t.Active, &t.Graduated, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

const tokenColumns = `id, owner_id, mint, symbol, decimals, source, dev_wallet, ops_wallet, active, graduated, created_at, updated_at`

func (s *Store) GetToken(ctx context.Context, id string) (domain.Token, error) {
	t, err := scanToken(s.q(ctx).QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE id = $1`, id))
	if isNoRows(err) {
		return domain.Token{}, storage.ErrNotFound
	}
	return t, err
}

func (s *Store) GetTokenByMint(ctx context.Context, mint string) (domain.Token, error) {
	t, err := scanToken(s.q(ctx).QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE mint = $1`, mint))
	if isNoRows(err) {
		return domain.Token{}, storage.ErrNotFound
	}
	return t, err
}

func (s *Store) ListTokens(ctx context.Context) ([]domain.Token, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `SELECT `+tokenColumns+` FROM tokens ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) SetTokenActive(ctx context.Context, tokenID string, active bool) error {
	res, err := s.q(ctx).ExecContext(ctx, `UPDATE tokens SET active = $2, updated_at = now() WHERE id = $1`, tokenID, active)
	if err != nil {
		return err
	}
	return requireRowsAffected(res)
}

func (s *Store) ListTokensForScheduler(ctx context.Context, algorithm string) ([]storage.SchedulableToken, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT t.`+tokenColumns+`,
			c.token_id, c.flywheel_active, c.auto_claim_enabled, c.algorithm,
			c.min_buy_amount, c.max_buy_amount, c.max_sell_amount, c.slippage_bps,
			c.cycle_size_buys, c.cycle_size_sells, c.job_interval_seconds,
			c.rate_limit_per_minute, c.inter_token_delay_ms, c.confirmation_timeout_ms, c.batch_updates,
			cy.token_id, cy.phase, cy.buy_count, cy.sell_count, cy.sell_phase_token_snapshot,
			cy.sell_amount_per_tx, cy.consecutive_failures, cy.last_attempt_at
		FROM tokens t
		JOIN token_configs c ON c.token_id = t.id
		LEFT JOIN cycle_states cy ON cy.token_id = t.id
		WHERE t.active = true AND c.flywheel_active = true
		  AND ($1 = '' OR c.algorithm = $1)
		ORDER BY t.id
	`, algorithm)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.SchedulableToken
	for rows.Next() {
		var st storage.SchedulableToken
		var confirmMS int64
		var cycleTokenID, cyclePhase sql.NullString
		var lastAttempt sql.NullTime
		if err := rows.Scan(
			&st.Token.ID, &st.Token.OwnerID, &st.Token.Mint, &st.Token.Symbol, &st.Token.Decimals, &st.Token.Source,
			&st.Token.DevWallet, &st.Token.OpsWallet, &st.Token.Active, &st.Token.Graduated, &st.Token.CreatedAt, &st.Token.UpdatedAt,
			&st.Config.TokenID, &st.Config.FlywheelActive, &st.Config.AutoClaimEnabled, &st.Config.Algorithm,
			&st.Config.MinBuyAmount, &st.Config.MaxBuyAmount, &st.Config.MaxSellAmount, &st.Config.SlippageBps,
			&st.Config.CycleSizeBuys, &st.Config.CycleSizeSells, &st.Config.JobIntervalSeconds,
			&st.Config.RateLimitPerMinute, &st.Config.InterTokenDelayMS, &confirmMS, &st.Config.BatchUpdates,
			&cycleTokenID, &cyclePhase, &st.Cycle.BuyCount, &st.Cycle.SellCount, &st.Cycle.SellPhaseTokenSnapshot,
			&st.Cycle.SellAmountPerTx, &st.Cycle.ConsecutiveFailures, &lastAttempt,
		); err != nil {
			return nil, err
		}
		st.Config.ConfirmationTimeout = msToDuration(confirmMS)
		st.Cycle.TokenID = st.Token.ID
		if cyclePhase.Valid {
			st.Cycle.Phase = domain.CyclePhase(cyclePhase.String)
		} else {
			st.Cycle.Phase = domain.PhaseBuy
		}
		if lastAttempt.Valid {
			st.Cycle.LastAttemptAt = lastAttempt.Time
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) ListTokensForClaim(ctx context.Context) ([]storage.ClaimableToken, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT t.`+tokenColumns+`
		FROM tokens t
		JOIN token_configs c ON c.token_id = t.id
		WHERE t.active = true AND t.source != 'mm_only' AND c.auto_claim_enabled = true
		ORDER BY t.id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.ClaimableToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, storage.ClaimableToken{Token: t})
	}
	return out, rows.Err()
}

// ActivatePending materialises a Token, TokenConfig, and CycleState from the
// pending payload and flips the pending row to activated, all inside one
// transaction so a crash mid-activation never leaves a half-created token.
func (s *Store) ActivatePending(ctx context.Context, pendingID string) (domain.Token, error) {
	var token domain.Token
	err := s.WithTx(ctx, func(txCtx context.Context) error {
		q := s.Querier(txCtx)

		var status string
		var payloadJSON []byte
		row := q.QueryRowContext(txCtx, `SELECT status, payload FROM pending_activations WHERE id = $1 FOR UPDATE`, pendingID)
		if err := row.Scan(&status, &payloadJSON); err != nil {
			if isNoRows(err) {
				return storage.ErrNotFound
			}
			return err
		}
		if status != string(domain.PendingAwaitingDeposit) {
			return storage.ErrConflict
		}

		payload, err := decodeActivationPayload(payloadJSON)
		if err != nil {
			return err
		}

		token = domain.Token{
			ID:        uuid.NewString(),
			OwnerID:   payload.OwnerID,
			Mint:      payload.Mint,
			Symbol:    payload.Symbol,
			Decimals:  payload.Decimals,
			Source:    payload.Source,
			DevWallet: payload.DevWallet,
			OpsWallet: payload.OpsWallet,
			Active:    true,
		}
		if _, err := q.ExecContext(txCtx, `
			INSERT INTO tokens (id, owner_id, mint, symbol, decimals, source, dev_wallet, ops_wallet, active, graduated, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, false, now(), now())
		`, token.ID, token.OwnerID, token.Mint, token.Symbol, token.Decimals, token.Source, token.DevWallet, token.OpsWallet); err != nil {
			return err
		}

		cfg := payload.Config
		cfg.TokenID = token.ID
		if err := insertTokenConfig(txCtx, q, cfg); err != nil {
			return err
		}

		cycle := domain.NewCycleState(token.ID)
		if _, err := q.ExecContext(txCtx, `
			INSERT INTO cycle_states (token_id, phase, buy_count, sell_count, sell_phase_token_snapshot, sell_amount_per_tx, consecutive_failures)
			VALUES ($1, $2, 0, 0, $3, $4, 0)
		`, cycle.TokenID, cycle.Phase, cycle.SellPhaseTokenSnapshot, cycle.SellAmountPerTx); err != nil {
			return err
		}

		_, err = q.ExecContext(txCtx, `UPDATE pending_activations SET status = $2 WHERE id = $1`, pendingID, domain.PendingActivated)
		return err
	})
	return token, err
}

func (s *Store) ReactivateSuspended(ctx context.Context, tokenID string, verify func(string) bool) error {
	return s.WithTx(ctx, func(txCtx context.Context) error {
		q := s.Querier(txCtx)
		var active bool
		var devWallet, opsWallet string
		row := q.QueryRowContext(txCtx, `SELECT active, dev_wallet, ops_wallet FROM tokens WHERE id = $1 FOR UPDATE`, tokenID)
		if err := row.Scan(&active, &devWallet, &opsWallet); err != nil {
			if isNoRows(err) {
				return storage.ErrNotFound
			}
			return err
		}
		if active {
			return nil
		}
		if !verify(devWallet) || !verify(opsWallet) {
			return storage.ErrConflict
		}
		_, err := q.ExecContext(txCtx, `UPDATE tokens SET active = true, updated_at = now() WHERE id = $1`, tokenID)
		return err
	})
}
