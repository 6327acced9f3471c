// Package submit drives signed transactions through submission and
// confirmation as an explicit state machine. Every run ends in exactly one
// terminal state; transient failures are retried inside the run, permanent
// ones cut it short.
package submit

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/emberlabs/embermine/internal/chain"
	"github.com/emberlabs/embermine/pkg/errors"
	"github.com/emberlabs/embermine/pkg/log"
	"github.com/emberlabs/embermine/pkg/retry"
)

// State is a stage of the submission state machine.
type State int

const (
	// StateBuilt is the initial state: signed but not yet sent
	StateBuilt State = iota
	// StateSubmitted means the cluster accepted the send
	StateSubmitted
	// StateConfirming means the pipeline is polling for confirmation
	StateConfirming
	// StateConfirmed is terminal: the transaction reached confirmed commitment
	StateConfirmed
	// StateRejected is terminal: the cluster permanently refused the transaction
	StateRejected
	// StateTimedOut is terminal: the confirmation window elapsed
	StateTimedOut
	// StateStaleRound is terminal: the board round advanced before the send
	StateStaleRound
	// StateSubmitFailed is terminal: every submit attempt failed
	StateSubmitFailed
)

// String returns a human-readable representation of the state
func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateSubmitted:
		return "submitted"
	case StateConfirming:
		return "confirming"
	case StateConfirmed:
		return "confirmed"
	case StateRejected:
		return "rejected"
	case StateTimedOut:
		return "timed_out"
	case StateStaleRound:
		return "stale_round"
	case StateSubmitFailed:
		return "submit_failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends a pipeline run.
func (s State) Terminal() bool {
	switch s {
	case StateConfirmed, StateRejected, StateTimedOut, StateStaleRound, StateSubmitFailed:
		return true
	default:
		return false
	}
}

// StateSource exposes the live chain reads the pipeline guards on. The proof
// state tracker implements it; both reads bypass any cached snapshot.
type StateSource interface {
	// CurrentRound reads the active round directly from the board account.
	CurrentRound(ctx context.Context) (uint64, error)

	// ClaimableBalance reads the authority's claimable rewards directly from
	// the proof account.
	ClaimableBalance(ctx context.Context) (uint64, error)
}

// Submission is one signed transaction plus the guards that apply to it.
type Submission struct {
	// Tx is the signed transaction to drive to a terminal state.
	Tx *solana.Transaction

	// Round is the board round the transaction was built for.
	Round uint64

	// GuardRound abandons the run with StateStaleRound when the board round
	// moves past Round. Mine submissions set it; claims do not.
	GuardRound bool

	// MinContextSlot is the slot the transaction's blockhash was observed at.
	MinContextSlot uint64

	// PriorityFee is the compute unit price the transaction carries, recorded
	// for logging only.
	PriorityFee uint64
}

// Outcome is the terminal result of one pipeline run.
type Outcome struct {
	State          State
	Reason         string
	Signature      solana.Signature
	SubmitAttempts int
	RewardDelta    uint64
}

// Config holds the pipeline's retry and confirmation knobs.
type Config struct {
	// RetryCap bounds submit attempts before the run fails
	RetryCap int
	// RetryBaseDelay is the first backoff delay between submit attempts
	RetryBaseDelay time.Duration
	// ConfirmInterval is the delay between confirmation polls
	ConfirmInterval time.Duration
	// ConfirmTimeout bounds the whole confirmation phase
	ConfirmTimeout time.Duration
}

// DefaultConfig returns production submission settings.
func DefaultConfig() *Config {
	return &Config{
		RetryCap:        4,
		RetryBaseDelay:  800 * time.Millisecond,
		ConfirmInterval: 2 * time.Second,
		ConfirmTimeout:  30 * time.Second,
	}
}

// Pipeline drives submissions to a terminal outcome.
type Pipeline struct {
	client chain.Client
	source StateSource
	config *Config
	logger *log.Logger
}

// NewPipeline creates a submission pipeline.
//
// Parameters:
//   - client: cluster client performing sends and status polls
//   - source: live round and balance reads for the pipeline guards
//   - config: retry and confirmation settings (nil uses defaults)
//   - logger: structured logger
func NewPipeline(client chain.Client, source StateSource, config *Config, logger *log.Logger) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}

	return &Pipeline{
		client: client,
		source: source,
		config: config,
		logger: logger.WithComponent("submit"),
	}
}

// Run drives one submission to a terminal state. The returned outcome is
// always terminal; the error return is reserved for invalid input.
//
// The submit phase re-checks the board round before every attempt when the
// submission is round-guarded, so a solution for a superseded round is
// abandoned without another send. Permanent cluster rejections stop the
// retries immediately. After a successful send the confirmation phase polls
// until the cluster confirms, rejects, or the confirmation window elapses.
//
// Parameters:
//   - ctx: cancellation context; cancelling mid-run yields a terminal outcome
//   - submission: signed transaction and its guards
//
// Returns:
//   - *Outcome: terminal state, reason, attempts, and reward delta
//   - error: validation error when the submission is missing or unsigned
func (p *Pipeline) Run(ctx context.Context, submission *Submission) (*Outcome, error) {
	if submission == nil || submission.Tx == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "pipeline_run",
			"submission transaction is required")
	}
	if len(submission.Tx.Signatures) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "pipeline_run",
			"transaction must be signed")
	}

	signature := submission.Tx.Signatures[0]
	logger := p.logger.WithSignature(signature.String())
	outcome := &Outcome{State: StateBuilt, Signature: signature}

	// Claimable before the send anchors the reward delta on confirmation.
	preClaimable, preKnown := p.claimable(ctx)

	attempts := 0
	handle, err := retry.DoWithResult(ctx, p.submitRetryConfig(), func() (*chain.SubmissionHandle, error) {
		if submission.GuardRound {
			current, roundErr := p.source.CurrentRound(ctx)
			if roundErr != nil {
				return nil, roundErr
			}
			if current != submission.Round {
				return nil, errors.New(errors.ErrorTypeStaleRound, "submit",
					"board round advanced past the solution").
					WithContext("solution_round", submission.Round).
					WithContext("current_round", current)
			}
		}

		attempts++
		p.logger.LogSubmission(signature.String(), submission.Round, attempts, submission.PriorityFee)
		return p.client.Submit(ctx, submission.Tx, submission.MinContextSlot)
	})

	outcome.SubmitAttempts = attempts
	if err != nil {
		switch {
		case errors.IsType(err, errors.ErrorTypeStaleRound):
			outcome.State = StateStaleRound
		case errors.IsType(err, errors.ErrorTypeRejection):
			outcome.State = StateRejected
		default:
			outcome.State = StateSubmitFailed
		}
		outcome.Reason = err.Error()

		logger.WithError(err).Warn("submission did not reach the cluster",
			"state", outcome.State.String(),
			"attempts", attempts,
		)
		p.logger.LogSubmissionOutcome(signature.String(), outcome.State.String(),
			submission.Round, 0)
		return outcome, nil
	}

	outcome.State = StateSubmitted
	logger.Debug("transaction submitted",
		"attempts", attempts,
		"min_context_slot", handle.Slot,
	)

	outcome.State = StateConfirming
	status, reason := p.confirm(ctx, signature)
	switch status {
	case chain.TxConfirmed:
		outcome.State = StateConfirmed
		if preKnown {
			if post, ok := p.claimable(ctx); ok && post > preClaimable {
				outcome.RewardDelta = post - preClaimable
			}
		}
	case chain.TxRejected:
		outcome.State = StateRejected
		outcome.Reason = reason
	default:
		outcome.State = StateTimedOut
		outcome.Reason = reason
	}

	p.logger.LogSubmissionOutcome(signature.String(), outcome.State.String(),
		submission.Round, outcome.RewardDelta)
	return outcome, nil
}

// confirm polls the transaction status until it leaves TxPending or the
// confirmation window elapses. A TxPending return means timeout.
func (p *Pipeline) confirm(ctx context.Context, signature solana.Signature) (chain.TxStatus, string) {
	deadline := time.NewTimer(p.config.ConfirmTimeout)
	defer deadline.Stop()

	ticker := time.NewTicker(p.config.ConfirmInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return chain.TxPending, "confirmation cancelled: " + ctx.Err().Error()
		case <-deadline.C:
			return chain.TxPending, "confirmation window elapsed"
		case <-ticker.C:
			status, err := p.client.PollStatus(ctx, signature)
			if err != nil {
				// Poll failures burn window time but never fail the run.
				p.logger.WithError(err).Warn("status poll failed")
				continue
			}
			if status.Status != chain.TxPending {
				return status.Status, status.Reason
			}
		}
	}
}

// claimable reads the live claimable balance, reporting whether the read
// succeeded. Failures only cost the reward delta, never the run.
func (p *Pipeline) claimable(ctx context.Context) (uint64, bool) {
	amount, err := p.source.ClaimableBalance(ctx)
	if err != nil {
		p.logger.WithError(err).Debug("claimable balance read failed")
		return 0, false
	}
	return amount, true
}

// submitRetryConfig maps the pipeline settings onto the retry helper.
func (p *Pipeline) submitRetryConfig() *retry.Config {
	return &retry.Config{
		MaxAttempts: p.config.RetryCap,
		BaseDelay:   p.config.RetryBaseDelay,
		MaxDelay:    4 * time.Second,
		Multiplier:  1.5,
		Jitter:      true,
	}
}
