package mining

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/emberlabs/embermine/internal/chain"
	"github.com/emberlabs/embermine/internal/metrics"
	"github.com/emberlabs/embermine/internal/program"
	"github.com/emberlabs/embermine/internal/state"
	"github.com/emberlabs/embermine/internal/submit"
	"github.com/emberlabs/embermine/pkg/log"
)

const (
	// refreshRetryPause spaces out retries when state refreshes keep failing.
	refreshRetryPause = 2 * time.Second

	// submissionGrace bounds how long an in-flight submission may keep
	// running after the mining loop is told to stop.
	submissionGrace = 2 * time.Minute
)

// StateRefresher supplies fresh round snapshots. The state tracker
// implements it.
type StateRefresher interface {
	Refresh(ctx context.Context) (*state.Snapshot, error)
}

// Searcher hunts for a valid nonce under a snapshot's difficulty. The engine
// implements it.
type Searcher interface {
	Search(ctx context.Context, snapshot *state.Snapshot) (*Solution, error)
}

// TransactionBuilder wraps solutions into signed transactions. The txbuild
// builder implements it.
type TransactionBuilder interface {
	BuildMine(round, nonce uint64, digest [32]byte, blockhash chain.Blockhash, fee chain.FeeEstimate) (*solana.Transaction, error)
	PriorityFee(fee chain.FeeEstimate) uint64
}

// Submitter drives a signed transaction to a terminal outcome. The
// submission pipeline implements it.
type Submitter interface {
	Run(ctx context.Context, submission *submit.Submission) (*submit.Outcome, error)
}

// OrchestratorConfig wires the round loop's collaborators.
type OrchestratorConfig struct {
	Client         chain.Client
	Tracker        StateRefresher
	Engine         Searcher
	Builder        TransactionBuilder
	Pipeline       Submitter
	Recorder       metrics.Recorder
	Logger         *log.Logger
	SearchDeadline time.Duration
}

// Orchestrator runs the continuous mining loop: refresh state, search the
// round, submit the solution, repeat. At most one signed transaction is in
// flight; a new search never starts before the prior submission reaches a
// terminal state.
type Orchestrator struct {
	client   chain.Client
	tracker  StateRefresher
	engine   Searcher
	builder  TransactionBuilder
	pipeline Submitter
	recorder metrics.Recorder
	logger   *log.Logger

	searchDeadline time.Duration
	refreshPause   time.Duration

	lastRound uint64
}

// NewOrchestrator creates the mining loop from its collaborators.
func NewOrchestrator(cfg *OrchestratorConfig) *Orchestrator {
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = metrics.NewNoopRecorder()
	}

	return &Orchestrator{
		client:         cfg.Client,
		tracker:        cfg.Tracker,
		engine:         cfg.Engine,
		builder:        cfg.Builder,
		pipeline:       cfg.Pipeline,
		recorder:       recorder,
		logger:         cfg.Logger.WithComponent("orchestrator"),
		searchDeadline: cfg.SearchDeadline,
		refreshPause:   refreshRetryPause,
	}
}

// Run mines rounds until the context is cancelled. A submission already in
// flight at cancellation runs to its terminal state before Run returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("mining loop started",
		"search_deadline", o.searchDeadline.String(),
	)

	for {
		if ctx.Err() != nil {
			o.logger.Info("mining loop stopped")
			return nil
		}

		o.runRound(ctx)
	}
}

// runRound drives a single round from refresh to a terminal outcome. Every
// exit path leaves the loop ready for the next round.
func (o *Orchestrator) runRound(ctx context.Context) {
	roundStart := time.Now()

	snapshot, err := o.tracker.Refresh(ctx)
	if err != nil {
		o.logger.WithError(err).Warn("state refresh failed, skipping round")
		o.pause(ctx, o.refreshPause)
		return
	}

	o.noteRoundTransition(snapshot)

	searchCtx, cancel := context.WithTimeout(ctx, o.searchDeadline)
	solution, err := o.engine.Search(searchCtx, snapshot)
	cancel()
	if err != nil {
		if stderrors.Is(err, ErrNoSolution) {
			o.recorder.RecordRound("no_solution", snapshot.Round, 0, time.Since(roundStart))
			return
		}
		o.logger.WithError(err).Warn("search failed, skipping round")
		return
	}

	submission, err := o.prepareSubmission(ctx, snapshot, solution)
	if err != nil {
		o.logger.WithError(err).Warn("failed to build mine transaction, skipping round")
		o.recorder.RecordRound("build_failed", snapshot.Round, 0, time.Since(roundStart))
		return
	}

	subCtx, subCancel := o.submissionContext(ctx)
	outcome, err := o.pipeline.Run(subCtx, submission)
	subCancel()
	if err != nil {
		o.logger.WithError(err).Warn("submission pipeline refused the transaction")
		return
	}

	o.handleOutcome(solution, outcome, time.Since(roundStart))
}

// prepareSubmission anchors the solution to a fresh blockhash, prices it,
// and signs the mine transaction.
func (o *Orchestrator) prepareSubmission(ctx context.Context, snapshot *state.Snapshot, solution *Solution) (*submit.Submission, error) {
	blockhash, err := o.client.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	fee := o.feeHint(ctx, snapshot, solution)
	tx, err := o.builder.BuildMine(solution.Round, solution.Nonce, solution.Digest, *blockhash, fee)
	if err != nil {
		return nil, err
	}

	return &submit.Submission{
		Tx:             tx,
		Round:          solution.Round,
		GuardRound:     true,
		MinContextSlot: blockhash.Slot,
		PriorityFee:    o.builder.PriorityFee(fee),
	}, nil
}

// feeHint estimates a priority fee over the accounts the mine transaction
// writes. An unavailable estimate is survivable; the transaction rides
// without a priority fee.
func (o *Orchestrator) feeHint(ctx context.Context, snapshot *state.Snapshot, solution *Solution) chain.FeeEstimate {
	writable := mineWritableAccounts(snapshot, solution)

	estimate, err := o.client.FetchFeeHint(ctx, writable)
	if err != nil || estimate == nil {
		o.logger.WithError(err).Debug("fee hint unavailable")
		return chain.FeeEstimate{}
	}
	return *estimate
}

// mineWritableAccounts lists the writable accounts of the eventual mine
// instruction, the accounts fee samples are drawn from.
func mineWritableAccounts(snapshot *state.Snapshot, solution *Solution) []solana.PublicKey {
	var writable []solana.PublicKey

	if bus, _, err := program.BusPDA(solution.Nonce % program.BusCount); err == nil {
		writable = append(writable, bus)
	}
	if proof, _, err := program.ProofPDA(snapshot.Authority); err == nil {
		writable = append(writable, proof)
	}

	return writable
}

// handleOutcome records and logs the terminal state of a round's submission.
func (o *Orchestrator) handleOutcome(solution *Solution, outcome *submit.Outcome, duration time.Duration) {
	o.recorder.RecordRound(outcome.State.String(), solution.Round, outcome.SubmitAttempts, duration)

	switch outcome.State {
	case submit.StateConfirmed:
		if outcome.RewardDelta > 0 {
			o.recorder.RecordReward(solution.Round, outcome.RewardDelta)
		}
		o.logger.WithRound(solution.Round).Info("solution confirmed",
			"signature", outcome.Signature.String(),
			"reward", outcome.RewardDelta,
			"attempts", outcome.SubmitAttempts,
		)
	case submit.StateRejected:
		o.logger.WithRound(solution.Round).Warn("solution rejected",
			"reason", outcome.Reason,
		)
	default:
		o.logger.WithRound(solution.Round).Debug("round abandoned",
			"state", outcome.State.String(),
			"reason", outcome.Reason,
		)
	}
}

// submissionContext detaches the pipeline from loop cancellation so an
// in-flight transaction reaches a terminal state during shutdown, within
// the grace bound.
func (o *Orchestrator) submissionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), submissionGrace)
}

// noteRoundTransition logs board round changes between loop iterations.
func (o *Orchestrator) noteRoundTransition(snapshot *state.Snapshot) {
	if o.lastRound != 0 && snapshot.Round != o.lastRound {
		o.logger.LogRoundTransition(o.lastRound, snapshot.Round,
			program.FormatDifficulty(snapshot.Difficulty))
	}
	o.lastRound = snapshot.Round
}

// pause sleeps for the given duration or until the context is cancelled.
func (o *Orchestrator) pause(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
