// Package signer implements the Signer Gateway (§4.1): the sole boundary
// between the in-process world and the on-chain world for mutating
// operations. It never retries a submission itself — callers regenerate a
// fresh unsigned transaction and resubmit, because retrying a stale
// pre-signed transaction is the dominant source of spurious "failed claim"
// bugs this design is built to avoid (§9).
package signer

import (
	"context"
	"time"

	"github.com/solward/flywheel/internal/chain"
	core "github.com/solward/flywheel/internal/core"
	"github.com/solward/flywheel/internal/tradingsdk"
	"github.com/solward/flywheel/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

// FailureKind enumerates the taxonomy named in §4.1.
type FailureKind string

const (
	FailureBlockhashExpired   FailureKind = "blockhash_expired"
	FailureSimulationFailed   FailureKind = "simulation_failed"
	FailureSendFailed         FailureKind = "send_failed"
	FailureConfirmationTime   FailureKind = "confirmation_timeout"
	FailureSignerUnreachable  FailureKind = "signer_unreachable"
	FailureSignerRejected     FailureKind = "signer_rejected"
	FailureRPCError           FailureKind = "rpc_error"
)

// SubmitError carries a classified failure kind alongside the underlying error.
type SubmitError struct {
	Kind FailureKind
	Err  error
}

func (e *SubmitError) Error() string { return string(e.Kind) + ": " + e.Err.Error() }
func (e *SubmitError) Unwrap() error { return e.Err }

// Retryable reports whether the caller's retry policy should regenerate a
// fresh transaction and try again (as opposed to aborting outright).
func (e *SubmitError) Retryable() bool {
	switch e.Kind {
	case FailureBlockhashExpired, FailureConfirmationTime, FailureSendFailed, FailureRPCError:
		return true
	default:
		return false
	}
}

func classify(kind FailureKind, err error) error {
	if err == nil {
		return nil
	}
	return &SubmitError{Kind: kind, Err: err}
}

// Wallet is the minimal shape the gateway needs to route a submission: a
// resolved on-chain address plus whether it is remote-signed or locally-keyed.
type Wallet struct {
	Address      string
	SignerHandle string
	Local        bool
}

// SubmitOptions carries context used only for logging/tracing, never for
// altering the transaction.
type SubmitOptions struct {
	Chain     chain.ChainID
	TokenID   string
	Operation string // "buy", "sell", "claim", "platform_fee_transfer", "owner_transfer"
}

// Result is returned on a confirmed submission.
type Result struct {
	Signature     string
	ConfirmedSlot uint64
}

// RemoteSigner signs a serialized transaction on behalf of a delegated
// wallet, returning the signed wire bytes. It never sees anything this
// process could reuse to sign again without a fresh transaction.
type RemoteSigner interface {
	Sign(ctx context.Context, signerHandle string, tx tradingsdk.UnsignedTransaction) (signedTx []byte, err error)
}

// LocalSigner signs with an in-process key, used only for the platform's own
// self-trade wallets (§1 Non-goals: legacy wallet-keypair paths retained only
// for platform self-trading).
type LocalSigner interface {
	SignLocal(ctx context.Context, keyRef string, tx tradingsdk.UnsignedTransaction) (signedTx []byte, err error)
}

// Gateway is the Signer Gateway described in §4.1.
type Gateway struct {
	rpc    chain.RPCDriver
	remote RemoteSigner
	local  LocalSigner
	log    *logger.Logger
	tracer core.Tracer

	submitTotal      *prometheus.CounterVec
	submitDuration   *prometheus.HistogramVec
}

// New builds a Gateway. tracer may be nil, in which case core.NoopTracer is used.
func New(rpc chain.RPCDriver, remote RemoteSigner, local LocalSigner, reg prometheus.Registerer, tracer core.Tracer) *Gateway {
	if tracer == nil {
		tracer = core.NoopTracer
	}
	g := &Gateway{
		rpc:    rpc,
		remote: remote,
		local:  local,
		log:    logger.NewDefault("signer-gateway"),
		tracer: tracer,
		submitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flywheel_signer_submissions_total",
			Help: "Signer Gateway submissions by outcome.",
		}, []string{"outcome", "operation"}),
		submitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flywheel_signer_submit_duration_seconds",
			Help:    "Signer Gateway submission latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(g.submitTotal, g.submitDuration)
	}
	return g
}

// Submit is the gateway's single operation (§4.1). tx is treated as opaque:
// the gateway never mutates recent_blockhash, fee_payer, or instructions.
func (g *Gateway) Submit(ctx context.Context, wallet Wallet, tx tradingsdk.UnsignedTransaction, opts SubmitOptions) (Result, error) {
	start := time.Now()
	spanCtx, end := g.tracer.StartSpan(ctx, "signer.submit", map[string]string{
		"operation": opts.Operation,
		"token_id":  opts.TokenID,
	})
	ctx = spanCtx

	result, err := g.submit(ctx, wallet, tx, opts)

	outcome := "confirmed"
	if err != nil {
		outcome = string(classifyOutcome(err))
	}
	g.submitTotal.WithLabelValues(outcome, opts.Operation).Inc()
	g.submitDuration.WithLabelValues(opts.Operation).Observe(time.Since(start).Seconds())
	entry := g.log.WithFields(map[string]interface{}{
		"operation": opts.Operation,
		"token_id":  opts.TokenID,
		"wallet":    wallet.Address,
		"outcome":   outcome,
	})
	if err != nil {
		entry.WithError(err).Warn("signer gateway submission failed")
	} else {
		entry.WithField("signature", result.Signature).Info("signer gateway submission confirmed")
	}
	end(err)
	return result, err
}

func classifyOutcome(err error) FailureKind {
	if kind, ok := asSubmitError(err); ok {
		return kind
	}
	return FailureRPCError
}

func asSubmitError(err error) (FailureKind, bool) {
	se, ok := err.(*SubmitError)
	if !ok {
		return "", false
	}
	return se.Kind, true
}

func (g *Gateway) submit(ctx context.Context, wallet Wallet, tx tradingsdk.UnsignedTransaction, opts SubmitOptions) (Result, error) {
	var signed []byte
	var err error

	if wallet.Local {
		if g.local == nil {
			return Result{}, classify(FailureSignerUnreachable, errNoLocalSigner)
		}
		signed, err = g.local.SignLocal(ctx, wallet.SignerHandle, tx)
		if err != nil {
			return Result{}, classify(FailureSignerRejected, err)
		}
	} else {
		if g.remote == nil {
			return Result{}, classify(FailureSignerUnreachable, errNoRemoteSigner)
		}
		signed, err = g.remote.Sign(ctx, wallet.SignerHandle, tx)
		if err != nil {
			return Result{}, classify(FailureSignerUnreachable, err)
		}
	}

	signature, err := g.rpc.SendRawTransaction(ctx, opts.Chain, signed)
	if err != nil {
		return Result{}, classify(FailureSendFailed, err)
	}

	confirmation, err := g.rpc.ConfirmTransaction(ctx, opts.Chain, signature, lastValidHeightOf(tx))
	if err != nil {
		return Result{}, classify(FailureConfirmationTime, err)
	}
	if confirmation.Status == chain.TxStatusFailed {
		return Result{}, classify(FailureSendFailed, errOnChainFailure)
	}

	return Result{Signature: signature, ConfirmedSlot: confirmation.BlockHeight}, nil
}

// lastValidHeightOf is a placeholder extraction point: production unsigned
// transactions carry their last-valid-block-height out of band (the upstream
// quote/build step knows it); this implementation threads zero through when
// the caller does not supply one, which ConfirmTransaction treats as "no
// height-based expiry check", relying solely on transaction status polling.
func lastValidHeightOf(tradingsdk.UnsignedTransaction) uint64 { return 0 }
