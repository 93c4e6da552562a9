package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solward/flywheel/internal/domain"
	"github.com/solward/flywheel/internal/numeric"
	"github.com/solward/flywheel/internal/storage"
)

func amt(t *testing.T, s string) numeric.Amount {
	t.Helper()
	a, err := numeric.FromString(s)
	require.NoError(t, err)
	return a
}

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Store{BaseStore: NewBaseStore(db, "")}, mock
}

func tokenRows() *sqlmock.Rows {
	return sqlmock.NewRows(strColumns(tokenColumns))
}

func strColumns(cols string) []string {
	names := regexp.MustCompile(`\s*,\s*`).Split(cols, -1)
	return names
}

func TestGetTokenByMintReturnsNotFoundOnNoRows(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tokens WHERE mint = $1")).
		WithArgs("UNKNOWN").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetTokenByMint(context.Background(), "UNKNOWN")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTokenByMintScansRow(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Now()

	rows := tokenRows().AddRow("tok-1", "owner-1", "MINT", "TEST", 9, "launched",
		"dev-1", "ops-1", true, false, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tokens WHERE mint = $1")).
		WithArgs("MINT").
		WillReturnRows(rows)

	tok, err := store.GetTokenByMint(context.Background(), "MINT")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.ID)
	assert.Equal(t, domain.SourceLaunched, tok.Source)
	assert.True(t, tok.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListTokensReturnsAllRows(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Now()

	rows := tokenRows().
		AddRow("tok-1", "owner-1", "MINT1", "ONE", 9, "launched", "dev-1", "ops-1", true, false, now, now).
		AddRow("tok-2", "owner-2", "MINT2", "TWO", 6, "platform", "dev-2", "ops-2", false, true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tokens ORDER BY id")).WillReturnRows(rows)

	tokens, err := store.ListTokens(context.Background())
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "MINT2", tokens[1].Mint)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetTokenActiveReturnsNotFoundWhenNoRowsAffected(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tokens SET active = $2, updated_at = now() WHERE id = $1")).
		WithArgs("tok-missing", true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetTokenActive(context.Background(), "tok-missing", true)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetTokenActiveSucceeds(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE tokens SET active = $2, updated_at = now() WHERE id = $1")).
		WithArgs("tok-1", false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SetTokenActive(context.Background(), "tok-1", false))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordTradeInsertsGeneratedIDAndTimestamp(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trades")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	trade := domain.Trade{
		TokenID: "tok-1",
		Side:    domain.SideBuy,
		Amount:  amt(t, "1.5"),
		Status:  domain.TradeConfirmed,
	}
	require.NoError(t, store.RecordTrade(context.Background(), trade))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListTradesByTokenAppliesLimit(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "token_id", "side", "amount", "signature", "status", "reason", "at"}).
		AddRow("trade-1", "tok-1", "buy", "1.5", "sig-1", "confirmed", "", now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM trades WHERE token_id = $1 ORDER BY at DESC LIMIT $2")).
		WithArgs("tok-1", 5).
		WillReturnRows(rows)

	trades, err := store.ListTradesByToken(context.Background(), "tok-1", 5)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.SideBuy, trades[0].Side)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPlatformConfigScansRowAndConvertsPeriod(t *testing.T) {
	store, mock := newTestStore(t)

	rows := sqlmock.NewRows([]string{
		"fast_claim_job_enabled", "multi_user_flywheel_enabled", "deposit_monitor_enabled", "balance_update_job_enabled",
		"fast_claim_threshold", "platform_fast_claim_thresh", "claim_job_period_ms", "platform_fee_percentage",
		"platform_self_trade_min_size", "platform_self_trade_max_size", "max_trades_per_minute", "reserve_amount",
	}).AddRow(true, true, true, true, "0.15", "0.05", int64(30000), 0.1, "0", "0", 30, "0.1")
	mock.ExpectQuery(regexp.QuoteMeta("FROM platform_config WHERE id = true")).WillReturnRows(rows)

	cfg, err := store.GetPlatformConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.ClaimJobPeriod)
	assert.Equal(t, 0.1, cfg.PlatformFeePercentage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePendingActivationFillsDefaultsBeforeInsert(t *testing.T) {
	store, mock := newTestStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO pending_activations")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	p := domain.PendingActivation{
		ExpectedDepositAddress: "addr-1",
		MinAmount:              amt(t, "1"),
		Payload: domain.ActivationPayload{
			OwnerID: "owner-1",
			Mint:    "MINT",
			Config:  domain.DefaultTokenConfigFor("", domain.AlgorithmSimple),
		},
	}
	require.NoError(t, store.CreatePendingActivation(context.Background(), p))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivatePendingRejectsWhenAlreadyActivated(t *testing.T) {
	store, mock := newTestStore(t)

	payload, err := encodeActivationPayload(domain.ActivationPayload{
		OwnerID: "owner-1", Mint: "MINT", Config: domain.DefaultTokenConfigFor("", domain.AlgorithmSimple),
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, payload FROM pending_activations WHERE id = $1 FOR UPDATE")).
		WithArgs("pend-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "payload"}).AddRow("activated", payload))
	mock.ExpectRollback()

	_, err = store.ActivatePending(context.Background(), "pend-1")
	assert.ErrorIs(t, err, storage.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivatePendingCommitsOnSuccess(t *testing.T) {
	store, mock := newTestStore(t)

	payload, err := encodeActivationPayload(domain.ActivationPayload{
		OwnerID: "owner-1", Mint: "MINT", Symbol: "TEST", DevWallet: "dev-1", OpsWallet: "ops-1",
		Config: domain.DefaultTokenConfigFor("", domain.AlgorithmSimple),
	})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, payload FROM pending_activations WHERE id = $1 FOR UPDATE")).
		WithArgs("pend-1").
		WillReturnRows(sqlmock.NewRows([]string{"status", "payload"}).AddRow("awaiting_deposit", payload))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tokens")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO token_configs")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cycle_states")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE pending_activations SET status = $2 WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tok, err := store.ActivatePending(context.Background(), "pend-1")
	require.NoError(t, err)
	assert.Equal(t, "MINT", tok.Mint)
	assert.True(t, tok.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}
