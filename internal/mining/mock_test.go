package mining

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/emberlabs/embermine/internal/chain"
	"github.com/emberlabs/embermine/internal/metrics"
	"github.com/emberlabs/embermine/internal/state"
	"github.com/emberlabs/embermine/internal/submit"
	svcerrors "github.com/emberlabs/embermine/pkg/errors"
)

// MockRecorder counts metric calls for engine and orchestrator tests.
type MockRecorder struct {
	mutex sync.Mutex

	HashRateCalls int
	LastRate      float64
	LastWorkers   int

	RoundCalls  int
	LastOutcome string
	LastRound   uint64

	RewardCalls int
	LastReward  uint64

	Closed bool
}

func (m *MockRecorder) RecordHashRate(hashesPerSec float64, workers int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.HashRateCalls++
	m.LastRate = hashesPerSec
	m.LastWorkers = workers
}

func (m *MockRecorder) RecordRound(outcome string, round uint64, attempts int, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.RoundCalls++
	m.LastOutcome = outcome
	m.LastRound = round
}

func (m *MockRecorder) RecordReward(round uint64, amount uint64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.RewardCalls++
	m.LastReward = amount
}

func (m *MockRecorder) Close() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.Closed = true
}

// Snapshot returns the call counts under the lock.
func (m *MockRecorder) Snapshot() (hashRate, rounds, rewards int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.HashRateCalls, m.RoundCalls, m.RewardCalls
}

// MockRefresher returns a canned snapshot or a configured error.
type MockRefresher struct {
	mutex        sync.Mutex
	Snapshot     *state.Snapshot
	Err          error
	RefreshCalls int
}

func (m *MockRefresher) Refresh(ctx context.Context) (*state.Snapshot, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.RefreshCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Snapshot, nil
}

// Calls returns the refresh count under the lock.
func (m *MockRefresher) Calls() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.RefreshCalls
}

// MockSearcher returns a canned solution or a configured error.
type MockSearcher struct {
	mutex       sync.Mutex
	Solution    *Solution
	Err         error
	SearchCalls int
	HadDeadline bool
}

func (m *MockSearcher) Search(ctx context.Context, snapshot *state.Snapshot) (*Solution, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.SearchCalls++
	_, m.HadDeadline = ctx.Deadline()

	if m.Err != nil {
		return nil, m.Err
	}
	return m.Solution, nil
}

// MockBuilder fabricates signed-looking transactions and records its inputs.
type MockBuilder struct {
	mutex      sync.Mutex
	BuildErr   error
	FeeCap     uint64
	BuildCalls int
	LastRound  uint64
	LastNonce  uint64
	LastFee    chain.FeeEstimate
}

func (m *MockBuilder) BuildMine(round, nonce uint64, digest [32]byte, blockhash chain.Blockhash, fee chain.FeeEstimate) (*solana.Transaction, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.BuildCalls++
	m.LastRound = round
	m.LastNonce = nonce
	m.LastFee = fee

	if m.BuildErr != nil {
		return nil, m.BuildErr
	}
	return &solana.Transaction{Signatures: []solana.Signature{{1}}}, nil
}

func (m *MockBuilder) PriorityFee(fee chain.FeeEstimate) uint64 {
	if fee.MicroLamports > m.FeeCap {
		return m.FeeCap
	}
	return fee.MicroLamports
}

// MockSubmitter returns a canned terminal outcome and captures the
// submission and the context state it was invoked with.
type MockSubmitter struct {
	mutex          sync.Mutex
	Outcome        *submit.Outcome
	Err            error
	RunCalls       int
	LastSubmission *submit.Submission
	CtxErrAtCall   error
}

func (m *MockSubmitter) Run(ctx context.Context, submission *submit.Submission) (*submit.Outcome, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.RunCalls++
	m.LastSubmission = submission
	m.CtxErrAtCall = ctx.Err()

	if m.Err != nil {
		return nil, m.Err
	}
	return m.Outcome, nil
}

// MockChainClient serves the blockhash and fee hint reads the orchestrator
// makes while preparing a submission.
type MockChainClient struct {
	BlockhashErr error
	FeeErr       error
	FeeHint      uint64
}

func (m *MockChainClient) LatestBlockhash(ctx context.Context) (*chain.Blockhash, error) {
	if m.BlockhashErr != nil {
		return nil, m.BlockhashErr
	}
	return &chain.Blockhash{Hash: solana.Hash{1}, Slot: 42}, nil
}

func (m *MockChainClient) FetchFeeHint(ctx context.Context, writable []solana.PublicKey) (*chain.FeeEstimate, error) {
	if m.FeeErr != nil {
		return nil, m.FeeErr
	}
	return &chain.FeeEstimate{MicroLamports: m.FeeHint, Samples: 3, Slot: 42}, nil
}

func (m *MockChainClient) FetchAccount(ctx context.Context, address solana.PublicKey) (*chain.AccountData, error) {
	return nil, svcerrors.New(svcerrors.ErrorTypeInternal, "fetch_account", "not implemented in mock")
}

func (m *MockChainClient) Balance(ctx context.Context, address solana.PublicKey) (uint64, error) {
	return 0, svcerrors.New(svcerrors.ErrorTypeInternal, "get_balance", "not implemented in mock")
}

func (m *MockChainClient) Submit(ctx context.Context, tx *solana.Transaction, minContextSlot uint64) (*chain.SubmissionHandle, error) {
	return nil, svcerrors.New(svcerrors.ErrorTypeInternal, "submit_transaction", "not implemented in mock")
}

func (m *MockChainClient) PollStatus(ctx context.Context, signature solana.Signature) (*chain.StatusResult, error) {
	return nil, svcerrors.New(svcerrors.ErrorTypeInternal, "get_signature_status", "not implemented in mock")
}

func (m *MockChainClient) Ping(ctx context.Context) error {
	return nil
}

func (m *MockChainClient) Close() error {
	return nil
}

// Compile-time interface checks
var (
	_ metrics.Recorder   = (*MockRecorder)(nil)
	_ StateRefresher     = (*MockRefresher)(nil)
	_ Searcher           = (*MockSearcher)(nil)
	_ TransactionBuilder = (*MockBuilder)(nil)
	_ Submitter          = (*MockSubmitter)(nil)
	_ chain.Client       = (*MockChainClient)(nil)
)
