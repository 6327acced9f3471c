package state

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/emberlabs/embermine/internal/chain"
	svcerrors "github.com/emberlabs/embermine/pkg/errors"
)

// MockChainClient provides a mock implementation of chain.Client for testing.
type MockChainClient struct {
	// Control mock behavior
	FailFetch bool
	ErrorMsg  string

	// Mock data keyed by account address
	Accounts map[solana.PublicKey][]byte

	// Call tracking
	FetchCalls int
}

// NewMockChainClient creates an empty mock chain client.
func NewMockChainClient() *MockChainClient {
	return &MockChainClient{
		ErrorMsg: "mock fetch failure",
		Accounts: make(map[solana.PublicKey][]byte),
	}
}

// FetchAccount returns canned account data, a not-found error for unknown
// addresses, or the configured failure.
func (m *MockChainClient) FetchAccount(_ context.Context, address solana.PublicKey) (*chain.AccountData, error) {
	m.FetchCalls++

	if m.FailFetch {
		return nil, svcerrors.New(svcerrors.ErrorTypeNetwork, "fetch_account", m.ErrorMsg)
	}

	data, ok := m.Accounts[address]
	if !ok {
		return nil, svcerrors.Wrap(rpc.ErrNotFound, svcerrors.ErrorTypeValidation,
			"fetch_account", "account not found")
	}

	return &chain.AccountData{Lamports: 1, Data: data}, nil
}

// Balance returns a fixed balance.
func (m *MockChainClient) Balance(_ context.Context, _ solana.PublicKey) (uint64, error) {
	if m.FailFetch {
		return 0, errors.New(m.ErrorMsg)
	}
	return 1_000_000_000, nil
}

// LatestBlockhash returns a fixed blockhash.
func (m *MockChainClient) LatestBlockhash(_ context.Context) (*chain.Blockhash, error) {
	if m.FailFetch {
		return nil, errors.New(m.ErrorMsg)
	}
	return &chain.Blockhash{Slot: 1000}, nil
}

// FetchFeeHint returns a fixed estimate.
func (m *MockChainClient) FetchFeeHint(_ context.Context, _ []solana.PublicKey) (*chain.FeeEstimate, error) {
	if m.FailFetch {
		return nil, errors.New(m.ErrorMsg)
	}
	return &chain.FeeEstimate{}, nil
}

// Submit is unused by tracker tests.
func (m *MockChainClient) Submit(_ context.Context, _ *solana.Transaction, _ uint64) (*chain.SubmissionHandle, error) {
	return nil, errors.New("not implemented")
}

// PollStatus is unused by tracker tests.
func (m *MockChainClient) PollStatus(_ context.Context, _ solana.Signature) (*chain.StatusResult, error) {
	return nil, errors.New("not implemented")
}

// Ping simulates a healthy node.
func (m *MockChainClient) Ping(_ context.Context) error {
	if m.FailFetch {
		return errors.New(m.ErrorMsg)
	}
	return nil
}

// Close simulates client shutdown.
func (m *MockChainClient) Close() error {
	return nil
}

// Compile-time interface compliance check
var _ chain.Client = (*MockChainClient)(nil)
