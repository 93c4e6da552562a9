package signer

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solward/flywheel/internal/chain"
	core "github.com/solward/flywheel/internal/core"
	"github.com/solward/flywheel/internal/tradingsdk"
)

type stubRPC struct {
	chain.RPCDriver
	sendErr    error
	confirmErr error
	status     chain.TxStatus
}

func (s *stubRPC) SendRawTransaction(ctx context.Context, _ chain.ChainID, _ []byte) (string, error) {
	if s.sendErr != nil {
		return "", s.sendErr
	}
	return "sig-1", nil
}

func (s *stubRPC) ConfirmTransaction(ctx context.Context, _ chain.ChainID, sig string, _ uint64) (*chain.Transaction, error) {
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	status := s.status
	if status == "" {
		status = chain.TxStatusConfirmed
	}
	return &chain.Transaction{Hash: sig, Status: status, BlockHeight: 42}, nil
}

type stubRemote struct {
	err error
}

func (s stubRemote) Sign(ctx context.Context, signerHandle string, tx tradingsdk.UnsignedTransaction) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("signed"), nil
}

type stubLocal struct {
	err error
}

func (s stubLocal) SignLocal(ctx context.Context, keyRef string, tx tradingsdk.UnsignedTransaction) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("signed-local"), nil
}

func TestSubmitRemoteSignedSucceeds(t *testing.T) {
	rpc := &stubRPC{}
	g := New(rpc, stubRemote{}, nil, prometheus.NewRegistry(), core.NoopTracer)

	result, err := g.Submit(context.Background(), Wallet{Address: "w1", SignerHandle: "h1"}, tradingsdk.UnsignedTransaction{}, SubmitOptions{Operation: "buy"})
	require.NoError(t, err)
	assert.Equal(t, "sig-1", result.Signature)
	assert.Equal(t, uint64(42), result.ConfirmedSlot)
}

func TestSubmitLocalSignedRoutesThroughLocalSigner(t *testing.T) {
	rpc := &stubRPC{}
	g := New(rpc, nil, stubLocal{}, prometheus.NewRegistry(), core.NoopTracer)

	result, err := g.Submit(context.Background(), Wallet{Address: "w1", SignerHandle: "h1", Local: true}, tradingsdk.UnsignedTransaction{}, SubmitOptions{Operation: "owner_transfer"})
	require.NoError(t, err)
	assert.Equal(t, "sig-1", result.Signature)
}

func TestSubmitMissingRemoteSignerClassifiedUnreachable(t *testing.T) {
	rpc := &stubRPC{}
	g := New(rpc, nil, nil, prometheus.NewRegistry(), core.NoopTracer)

	_, err := g.Submit(context.Background(), Wallet{Address: "w1", SignerHandle: "h1"}, tradingsdk.UnsignedTransaction{}, SubmitOptions{Operation: "claim"})
	require.Error(t, err)
	var se *SubmitError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, FailureSignerUnreachable, se.Kind)
	assert.False(t, se.Retryable())
}

func TestSubmitSendFailureClassifiedSendFailedAndRetryable(t *testing.T) {
	rpc := &stubRPC{sendErr: errors.New("rpc unavailable")}
	g := New(rpc, stubRemote{}, nil, prometheus.NewRegistry(), core.NoopTracer)

	_, err := g.Submit(context.Background(), Wallet{Address: "w1", SignerHandle: "h1"}, tradingsdk.UnsignedTransaction{}, SubmitOptions{Operation: "sell"})
	require.Error(t, err)
	var se *SubmitError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, FailureSendFailed, se.Kind)
	assert.True(t, se.Retryable())
}

func TestSubmitOnChainFailureStatusClassifiedSendFailed(t *testing.T) {
	rpc := &stubRPC{status: chain.TxStatusFailed}
	g := New(rpc, stubRemote{}, nil, prometheus.NewRegistry(), core.NoopTracer)

	_, err := g.Submit(context.Background(), Wallet{Address: "w1", SignerHandle: "h1"}, tradingsdk.UnsignedTransaction{}, SubmitOptions{Operation: "buy"})
	require.Error(t, err)
	var se *SubmitError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, FailureSendFailed, se.Kind)
}

func TestSubmitRemoteSignerRejectionClassifiedUnreachable(t *testing.T) {
	rpc := &stubRPC{}
	g := New(rpc, stubRemote{err: errors.New("remote down")}, nil, prometheus.NewRegistry(), core.NoopTracer)

	_, err := g.Submit(context.Background(), Wallet{Address: "w1", SignerHandle: "h1"}, tradingsdk.UnsignedTransaction{}, SubmitOptions{Operation: "buy"})
	require.Error(t, err)
	var se *SubmitError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, FailureSignerUnreachable, se.Kind)
}

func TestSubmitLocalSignerRejectionClassifiedSignerRejected(t *testing.T) {
	rpc := &stubRPC{}
	g := New(rpc, nil, stubLocal{err: errors.New("key locked")}, prometheus.NewRegistry(), core.NoopTracer)

	_, err := g.Submit(context.Background(), Wallet{Address: "w1", SignerHandle: "h1", Local: true}, tradingsdk.UnsignedTransaction{}, SubmitOptions{Operation: "buy"})
	require.Error(t, err)
	var se *SubmitError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, FailureSignerRejected, se.Kind)
	assert.False(t, se.Retryable())
}
