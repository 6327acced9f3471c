// Package chain provides Solana RPC operations for the embermine client.
// It wraps the solana-go JSON-RPC client with circuit breaking, retries, and
// the typed error taxonomy the submission pipeline depends on.
package chain

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Client defines the contract for Solana cluster operations.
// This interface allows for easy mocking and testing of components that
// depend on cluster access.
//
// All methods include context.Context for proper cancellation and timeout
// handling. Errors carry the pkg/errors taxonomy: transient transport
// failures are retryable network errors, cluster rejections are permanent.
type Client interface {
	// Account state

	// FetchAccount retrieves the raw state of an account. A missing account
	// yields an error satisfying IsNotFound.
	FetchAccount(ctx context.Context, address solana.PublicKey) (*AccountData, error)

	// Balance returns the lamport balance of an account.
	Balance(ctx context.Context, address solana.PublicKey) (uint64, error)

	// Transaction lifecycle

	// LatestBlockhash fetches a recent blockhash for transaction construction.
	LatestBlockhash(ctx context.Context) (*Blockhash, error)

	// FetchFeeHint aggregates recent prioritization fees over the given
	// writable accounts into a single estimate.
	FetchFeeHint(ctx context.Context, writable []solana.PublicKey) (*FeeEstimate, error)

	// Submit sends a signed transaction to the cluster. It performs exactly
	// one send; retry policy belongs to the submission pipeline.
	Submit(ctx context.Context, tx *solana.Transaction, minContextSlot uint64) (*SubmissionHandle, error)

	// PollStatus queries the confirmation state of a submitted transaction.
	PollStatus(ctx context.Context, signature solana.Signature) (*StatusResult, error)

	// Connection management

	// Ping tests connectivity and health of the RPC node.
	Ping(ctx context.Context) error

	// Close releases the underlying transport.
	Close() error
}

// Compile-time interface compliance check
var _ Client = (*RPCClient)(nil)
