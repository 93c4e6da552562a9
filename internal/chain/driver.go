// Package chain provides the chain-agnostic RPC abstraction the rest of the
// system submits transactions and reads balances through.
package chain

import (
	"context"
	"math/big"
	"time"
)

// Driver is the base interface for all chain drivers: nameable, startable,
// stoppable, health-checkable.
type Driver interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Ping(ctx context.Context) error
}

// ChainID identifies a blockchain network.
type ChainID string

const (
	ChainSolana   ChainID = "solana"
	ChainNeoN3    ChainID = "neo-n3"
	ChainNeoX     ChainID = "neo-x"
	ChainEthereum ChainID = "ethereum"
)

// RPCDriver provides blockchain RPC connectivity. One instance is bound per
// deployment; SupportedChains reports which ChainIDs it can serve.
type RPCDriver interface {
	Driver

	SupportedChains() []ChainID

	GetBlockHeight(ctx context.Context, chain ChainID) (uint64, error)
	GetBlock(ctx context.Context, chain ChainID, identifier string) (*Block, error)
	GetTransaction(ctx context.Context, chain ChainID, txHash string) (*Transaction, error)

	// SendRawTransaction broadcasts a signed transaction and returns its signature.
	SendRawTransaction(ctx context.Context, chain ChainID, rawTx []byte) (string, error)

	// ConfirmTransaction polls until the signature reaches the confirmed
	// commitment level or lastValidBlockHeight passes.
	ConfirmTransaction(ctx context.Context, chain ChainID, signature string, lastValidBlockHeight uint64) (*Transaction, error)

	CallContract(ctx context.Context, chain ChainID, call ContractCall) ([]byte, error)

	// GetBalance returns the native asset balance, in base units, for an address.
	GetBalance(ctx context.Context, chain ChainID, address string) (*big.Int, error)

	// GetTokenBalance returns the balance of a token mint held by an address.
	GetTokenBalance(ctx context.Context, chain ChainID, mint, address string) (*big.Int, error)

	// GetLatestBlockhash returns the current blockhash and the block height
	// after which it is no longer valid for inclusion.
	GetLatestBlockhash(ctx context.Context, chain ChainID) (blockhash string, lastValidBlockHeight uint64, err error)

	SubscribeBlocks(ctx context.Context, chain ChainID, handler BlockHandler) (Subscription, error)
}

// Block represents a blockchain block.
type Block struct {
	Height       uint64
	Hash         string
	ParentHash   string
	Timestamp    time.Time
	Transactions []string
}

// TxStatus represents transaction execution status.
type TxStatus string

const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
)

// Transaction represents a blockchain transaction as observed via RPC.
type Transaction struct {
	Hash        string
	BlockHeight uint64
	Status      TxStatus
	Err         string
	Timestamp   time.Time
}

// ContractCall represents a read-only contract/program invocation.
type ContractCall struct {
	Program string
	Data    []byte
}

// BlockHandler processes new blocks delivered by a subscription.
type BlockHandler func(block *Block) error

// Subscription represents an active subscription that can be cancelled.
type Subscription interface {
	Unsubscribe() error
	Err() <-chan error
}
