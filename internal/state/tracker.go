// Package state synchronizes the client's view of the on-chain mining state.
// A Tracker owns the latest board/proof snapshot and bounds how stale a
// retained snapshot may get before rounds are abandoned.
package state

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/emberlabs/embermine/internal/chain"
	"github.com/emberlabs/embermine/internal/program"
	"github.com/emberlabs/embermine/pkg/errors"
	"github.com/emberlabs/embermine/pkg/log"
)

// Snapshot is a consistent view of the mining state: the board's current
// round and difficulty plus the miner's proof fields the search depends on.
type Snapshot struct {
	Round      uint64
	Difficulty [32]byte
	Seed       [32]byte
	Authority  solana.PublicKey
	Claimable  uint64
	RewardRate uint64
	FetchedAt  time.Time
}

// Tracker refreshes and retains the latest Snapshot. Refresh is the only
// writer; on fetch failure the previous snapshot is reused until it exceeds
// the staleness bound.
type Tracker struct {
	client       chain.Client
	authority    solana.PublicKey
	boardAddress solana.PublicKey
	proofAddress solana.PublicKey
	maxStaleness time.Duration
	logger       *log.Logger
	now          func() time.Time

	mutex    sync.RWMutex
	snapshot *Snapshot
}

// NewTracker creates a Tracker for the given mining authority.
func NewTracker(client chain.Client, authority solana.PublicKey, maxStaleness time.Duration, logger *log.Logger) (*Tracker, error) {
	board, _, err := program.BoardPDA()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "new_tracker",
			"failed to derive board address")
	}

	proof, _, err := program.ProofPDA(authority)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "new_tracker",
			"failed to derive proof address").
			WithContext("authority", authority.String())
	}

	return &Tracker{
		client:       client,
		authority:    authority,
		boardAddress: board,
		proofAddress: proof,
		maxStaleness: maxStaleness,
		logger:       logger.WithComponent("state"),
		now:          time.Now,
	}, nil
}

// Refresh fetches the board and proof accounts and replaces the retained
// snapshot. When a fetch fails, the previous snapshot is returned while it is
// within the staleness bound; beyond that the failure surfaces to the caller.
func (t *Tracker) Refresh(ctx context.Context) (*Snapshot, error) {
	board, err := t.fetchBoard(ctx)
	if err != nil {
		return t.fallback(err)
	}

	proof, err := t.fetchProof(ctx)
	if err != nil {
		return t.fallback(err)
	}

	snapshot := &Snapshot{
		Round:      board.Round,
		Difficulty: board.Difficulty,
		Seed:       proof.Seed,
		Authority:  proof.Authority,
		Claimable:  proof.Claimable,
		RewardRate: board.RewardRate,
		FetchedAt:  t.now(),
	}

	t.mutex.Lock()
	t.snapshot = snapshot
	t.mutex.Unlock()

	return snapshot, nil
}

// Current returns the retained snapshot, or nil before the first successful
// Refresh.
func (t *Tracker) Current() *Snapshot {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.snapshot
}

// CurrentRound reads the board's round directly, bypassing the retained
// snapshot. The submission pipeline calls this before every retry.
func (t *Tracker) CurrentRound(ctx context.Context) (uint64, error) {
	board, err := t.fetchBoard(ctx)
	if err != nil {
		return 0, err
	}
	return board.Round, nil
}

// ClaimableBalance reads the proof's claimable rewards directly, bypassing
// the retained snapshot.
func (t *Tracker) ClaimableBalance(ctx context.Context) (uint64, error) {
	proof, err := t.fetchProof(ctx)
	if err != nil {
		return 0, err
	}
	return proof.Claimable, nil
}

func (t *Tracker) fetchBoard(ctx context.Context) (*program.Board, error) {
	account, err := t.client.FetchAccount(ctx, t.boardAddress)
	if err != nil {
		return nil, err
	}
	return program.DecodeBoard(account.Data)
}

func (t *Tracker) fetchProof(ctx context.Context) (*program.Proof, error) {
	account, err := t.client.FetchAccount(ctx, t.proofAddress)
	if err != nil {
		return nil, err
	}
	return program.DecodeProof(account.Data)
}

// fallback resolves a failed refresh against the retained snapshot.
func (t *Tracker) fallback(cause error) (*Snapshot, error) {
	t.mutex.RLock()
	previous := t.snapshot
	t.mutex.RUnlock()

	if previous == nil {
		return nil, cause
	}

	age := t.now().Sub(previous.FetchedAt)
	if age <= t.maxStaleness {
		t.logger.WithError(cause).Warn("state refresh failed, reusing prior snapshot",
			"age_ms", age.Milliseconds())
		return previous, nil
	}

	return nil, errors.Wrap(cause, errors.ErrorTypeDeadline, "refresh_state",
		"retained snapshot exceeded the staleness bound").
		WithContext("age_ms", age.Milliseconds()).
		WithContext("max_staleness_ms", t.maxStaleness.Milliseconds())
}
