package submit

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/emberlabs/embermine/internal/chain"
	"github.com/emberlabs/embermine/pkg/errors"
)

// PollStep is one scripted PollStatus response.
type PollStep struct {
	Result *chain.StatusResult
	Err    error
}

// MockChainClient scripts submit and poll behavior for pipeline tests.
type MockChainClient struct {
	mutex sync.Mutex

	// SubmitErrors is consumed one entry per Submit call; a nil entry
	// succeeds, and calls beyond the script succeed.
	SubmitErrors []error
	SubmitCalls  int

	// Poll is consumed one step per PollStatus call; calls beyond the script
	// repeat the final step. An empty script reports pending forever.
	Poll      []PollStep
	PollCalls int
}

func (m *MockChainClient) Submit(ctx context.Context, tx *solana.Transaction, minContextSlot uint64) (*chain.SubmissionHandle, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	call := m.SubmitCalls
	m.SubmitCalls++

	if call < len(m.SubmitErrors) && m.SubmitErrors[call] != nil {
		return nil, m.SubmitErrors[call]
	}

	return &chain.SubmissionHandle{Signature: tx.Signatures[0], Slot: minContextSlot}, nil
}

func (m *MockChainClient) PollStatus(ctx context.Context, signature solana.Signature) (*chain.StatusResult, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	call := m.PollCalls
	m.PollCalls++

	if len(m.Poll) == 0 {
		return &chain.StatusResult{Status: chain.TxPending}, nil
	}
	if call >= len(m.Poll) {
		call = len(m.Poll) - 1
	}

	step := m.Poll[call]
	if step.Err != nil {
		return nil, step.Err
	}
	if step.Result == nil {
		return &chain.StatusResult{Status: chain.TxPending}, nil
	}
	return step.Result, nil
}

func (m *MockChainClient) FetchAccount(ctx context.Context, address solana.PublicKey) (*chain.AccountData, error) {
	return nil, errors.New(errors.ErrorTypeInternal, "fetch_account", "not implemented in mock")
}

func (m *MockChainClient) Balance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	return 0, errors.New(errors.ErrorTypeInternal, "get_balance", "not implemented in mock")
}

func (m *MockChainClient) LatestBlockhash(ctx context.Context) (*chain.Blockhash, error) {
	return nil, errors.New(errors.ErrorTypeInternal, "latest_blockhash", "not implemented in mock")
}

func (m *MockChainClient) FetchFeeHint(ctx context.Context, writable []solana.PublicKey) (*chain.FeeEstimate, error) {
	return nil, errors.New(errors.ErrorTypeInternal, "fetch_fee_hint", "not implemented in mock")
}

func (m *MockChainClient) Ping(ctx context.Context) error {
	return nil
}

func (m *MockChainClient) Close() error {
	return nil
}

// MockStateSource scripts round and balance reads for pipeline tests.
type MockStateSource struct {
	mutex sync.Mutex

	// Rounds is consumed one entry per CurrentRound call; calls beyond the
	// script repeat the final entry.
	Rounds     []uint64
	RoundErr   error
	RoundCalls int

	// Claimables is consumed one entry per ClaimableBalance call; calls
	// beyond the script repeat the final entry.
	Claimables     []uint64
	ClaimableErr   error
	ClaimableCalls int
}

func (m *MockStateSource) CurrentRound(ctx context.Context) (uint64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	call := m.RoundCalls
	m.RoundCalls++

	if m.RoundErr != nil {
		return 0, m.RoundErr
	}
	if len(m.Rounds) == 0 {
		return 0, nil
	}
	if call >= len(m.Rounds) {
		call = len(m.Rounds) - 1
	}
	return m.Rounds[call], nil
}

func (m *MockStateSource) ClaimableBalance(ctx context.Context) (uint64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	call := m.ClaimableCalls
	m.ClaimableCalls++

	if m.ClaimableErr != nil {
		return 0, m.ClaimableErr
	}
	if len(m.Claimables) == 0 {
		return 0, nil
	}
	if call >= len(m.Claimables) {
		call = len(m.Claimables) - 1
	}
	return m.Claimables[call], nil
}

// Compile-time interface checks
var (
	_ chain.Client = (*MockChainClient)(nil)
	_ StateSource  = (*MockStateSource)(nil)
)
