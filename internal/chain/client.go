package chain

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/emberlabs/embermine/pkg/circuit"
	"github.com/emberlabs/embermine/pkg/errors"
	"github.com/emberlabs/embermine/pkg/retry"
)

// RPCClient provides a high-level interface to a Solana JSON-RPC node.
// It wraps solana-go's RPC client with circuit breaking and retries, and
// classifies cluster errors into the retryable/permanent taxonomy.
type RPCClient struct {
	client         *rpc.Client
	circuitBreaker *circuit.Breaker
	retryConfig    *retry.Config
	commitment     rpc.CommitmentType
}

// NewRPCClient creates a Solana RPC client for the given endpoint.
// Reads and confirmation polls run at confirmed commitment.
func NewRPCClient(endpoint string) *RPCClient {
	cbConfig := &circuit.Config{
		MaxFailures:     3,
		SuccessRequired: 2,
		Timeout:         10 * time.Second,
		ResetTimeout:    30 * time.Second,
	}

	return &RPCClient{
		client:         rpc.New(endpoint),
		circuitBreaker: circuit.New(cbConfig),
		retryConfig:    retry.RPCConfig(),
		commitment:     rpc.CommitmentConfirmed,
	}
}

// Close releases the underlying transport.
func (c *RPCClient) Close() error {
	return c.client.Close()
}

// FetchAccount retrieves the raw state of an account at confirmed commitment.
//
// Parameters:
//   - ctx: Context for request cancellation and timeout
//   - address: Account address to fetch
//
// Returns:
//   - *AccountData: Lamports, owner, raw data, and the context slot
//   - error: IsNotFound-matching error for missing accounts, network error otherwise
func (c *RPCClient) FetchAccount(ctx context.Context, address solana.PublicKey) (*AccountData, error) {
	return circuit.ExecuteWithResult(ctx, c.circuitBreaker, func() (*AccountData, error) {
		return retry.DoWithResult(ctx, c.retryConfig, func() (*AccountData, error) {
			result, err := c.client.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
				Encoding:   solana.EncodingBase64,
				Commitment: c.commitment,
			})
			if err != nil {
				if stderrors.Is(err, rpc.ErrNotFound) {
					return nil, errors.Wrap(err, errors.ErrorTypeValidation, "fetch_account",
						"account not found").
						WithContext("address", address.String())
				}
				return nil, errors.Wrap(err, errors.ErrorTypeNetwork, "fetch_account",
					"failed to fetch account").
					WithContext("address", address.String())
			}

			return &AccountData{
				Lamports: result.Value.Lamports,
				Owner:    result.Value.Owner,
				Data:     result.Value.Data.GetBinary(),
				Slot:     result.RPCContext.Context.Slot,
			}, nil
		})
	})
}

// Balance returns the lamport balance of an account.
//
// Parameters:
//   - ctx: Context for request cancellation and timeout
//   - address: Account address to query
//
// Returns:
//   - uint64: Balance in lamports
//   - error: Any error from the RPC node
func (c *RPCClient) Balance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	return circuit.ExecuteWithResult(ctx, c.circuitBreaker, func() (uint64, error) {
		return retry.DoWithResult(ctx, c.retryConfig, func() (uint64, error) {
			result, err := c.client.GetBalance(ctx, address, c.commitment)
			if err != nil {
				return 0, errors.Wrap(err, errors.ErrorTypeNetwork, "get_balance",
					"failed to fetch balance").
					WithContext("address", address.String())
			}
			return result.Value, nil
		})
	})
}

// LatestBlockhash fetches a recent blockhash for transaction construction.
// The returned slot is the minimum context slot submissions built on this
// blockhash should carry.
//
// Parameters:
//   - ctx: Context for request cancellation and timeout
//
// Returns:
//   - *Blockhash: Recent blockhash and its context slot
//   - error: Any error from the RPC node
func (c *RPCClient) LatestBlockhash(ctx context.Context) (*Blockhash, error) {
	return circuit.ExecuteWithResult(ctx, c.circuitBreaker, func() (*Blockhash, error) {
		return retry.DoWithResult(ctx, c.retryConfig, func() (*Blockhash, error) {
			result, err := c.client.GetLatestBlockhash(ctx, c.commitment)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeNetwork, "get_latest_blockhash",
					"failed to fetch recent blockhash")
			}

			return &Blockhash{
				Hash: result.Value.Blockhash,
				Slot: result.RPCContext.Context.Slot,
			}, nil
		})
	})
}

// FetchFeeHint aggregates recent prioritization fee samples over the given
// writable accounts into a single estimate.
//
// Parameters:
//   - ctx: Context for request cancellation and timeout
//   - writable: Writable accounts the transaction will lock
//
// Returns:
//   - *FeeEstimate: p75 of the nonzero samples, zero when the cluster reports none
//   - error: Any error from the RPC node
func (c *RPCClient) FetchFeeHint(ctx context.Context, writable []solana.PublicKey) (*FeeEstimate, error) {
	return circuit.ExecuteWithResult(ctx, c.circuitBreaker, func() (*FeeEstimate, error) {
		return retry.DoWithResult(ctx, c.retryConfig, func() (*FeeEstimate, error) {
			samples, err := c.client.GetRecentPrioritizationFees(ctx, solana.PublicKeySlice(writable))
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeNetwork, "get_prioritization_fees",
					"failed to fetch recent prioritization fees")
			}

			estimate := aggregateFees(samples)
			return &estimate, nil
		})
	})
}

// Submit sends a signed transaction to the cluster. Preflight is skipped and
// node-side rebroadcast is disabled so the submission pipeline fully owns
// retry policy; only the circuit breaker guards this path.
//
// Parameters:
//   - ctx: Context for request cancellation and timeout
//   - tx: Fully signed transaction
//   - minContextSlot: Slot the node must have reached before evaluating the send
//
// Returns:
//   - *SubmissionHandle: Signature identifying the in-flight transaction
//   - error: Permanent rejection or retryable network error, classified
func (c *RPCClient) Submit(ctx context.Context, tx *solana.Transaction, minContextSlot uint64) (*SubmissionHandle, error) {
	return circuit.ExecuteWithResult(ctx, c.circuitBreaker, func() (*SubmissionHandle, error) {
		maxRetries := uint(0)

		sig, err := c.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			SkipPreflight:       true,
			PreflightCommitment: c.commitment,
			MaxRetries:          &maxRetries,
			MinContextSlot:      &minContextSlot,
		})
		if err != nil {
			return nil, classifySubmitError(err)
		}

		return &SubmissionHandle{
			Signature: sig,
			Slot:      minContextSlot,
		}, nil
	})
}

// PollStatus queries the confirmation state of a submitted transaction from
// the node's recent status cache.
//
// Parameters:
//   - ctx: Context for request cancellation and timeout
//   - signature: Signature returned by Submit
//
// Returns:
//   - *StatusResult: Pending, confirmed, or rejected with the cluster's reason
//   - error: Any error from the RPC node
func (c *RPCClient) PollStatus(ctx context.Context, signature solana.Signature) (*StatusResult, error) {
	return circuit.ExecuteWithResult(ctx, c.circuitBreaker, func() (*StatusResult, error) {
		return retry.DoWithResult(ctx, c.retryConfig, func() (*StatusResult, error) {
			result, err := c.client.GetSignatureStatuses(ctx, false, signature)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeNetwork, "get_signature_status",
					"failed to fetch signature status").
					WithContext("signature", signature.String())
			}

			if result == nil || len(result.Value) == 0 {
				return &StatusResult{Status: TxPending}, nil
			}

			return statusFromSignatureResult(result.Value[0]), nil
		})
	})
}

// Ping tests the connection and health of the RPC node.
//
// Parameters:
//   - ctx: Context for request cancellation and timeout
//
// Returns:
//   - error: Any connectivity or health error
func (c *RPCClient) Ping(ctx context.Context) error {
	return c.circuitBreaker.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			health, err := c.client.GetHealth(ctx)
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeNetwork, "ping",
					"RPC node connectivity check failed")
			}
			if health != rpc.HealthOk {
				return errors.New(errors.ErrorTypeNetwork, "ping",
					"RPC node reports unhealthy").
					WithContext("health", health)
			}
			return nil
		})
	})
}

// IsNotFound reports whether err indicates the requested account does not exist.
func IsNotFound(err error) bool {
	return stderrors.Is(err, rpc.ErrNotFound)
}

// permanentSubmitPatterns match cluster errors that resubmitting the same
// transaction cannot fix.
var permanentSubmitPatterns = []string{
	"already been processed",
	"already processed",
	"blockhash not found",
	"insufficient funds",
	"custom program error",
	"invalid transaction",
	"signature verification failure",
	"transaction signature verification failure",
	"unsupported version",
	"account in use",
	"program failed to complete",
}

// classifySubmitError separates permanent cluster rejections from transient
// transport failures.
func classifySubmitError(err error) error {
	message := strings.ToLower(err.Error())

	for _, pattern := range permanentSubmitPatterns {
		if strings.Contains(message, pattern) {
			return errors.Wrap(err, errors.ErrorTypeRejection, "submit_transaction",
				"transaction rejected by the cluster")
		}
	}

	return errors.Wrap(err, errors.ErrorTypeNetwork, "submit_transaction",
		"failed to submit transaction")
}

// statusFromSignatureResult maps a node status entry onto the pipeline's
// tri-state view. A nil entry means the node has not seen the signature.
func statusFromSignatureResult(status *rpc.SignatureStatusesResult) *StatusResult {
	if status == nil {
		return &StatusResult{Status: TxPending}
	}

	if status.Err != nil {
		return &StatusResult{
			Status: TxRejected,
			Reason: fmt.Sprintf("%v", status.Err),
			Slot:   status.Slot,
		}
	}

	switch status.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return &StatusResult{Status: TxConfirmed, Slot: status.Slot}
	default:
		return &StatusResult{Status: TxPending, Slot: status.Slot}
	}
}
