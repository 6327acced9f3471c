// Package mining implements the concurrent nonce search and the round loop
// that drives it. The engine fans a round's nonce space out across worker
// goroutines; the orchestrator feeds it fresh chain state and hands winning
// solutions to the submission pipeline.
package mining

import (
	"context"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emberlabs/embermine/internal/metrics"
	"github.com/emberlabs/embermine/internal/program"
	"github.com/emberlabs/embermine/internal/state"
	"github.com/emberlabs/embermine/pkg/errors"
	"github.com/emberlabs/embermine/pkg/log"
)

// cancelCheckInterval is how many hashes a worker computes between context
// checks. Power of two so the check compiles down to a mask test.
const cancelCheckInterval = 4096

// ErrNoSolution reports that the search budget ran out before any nonce
// satisfied the difficulty. It is an expected outcome, not a failure; the
// round loop moves on to the next round.
var ErrNoSolution = errors.New(errors.ErrorTypeDeadline, "search", "search budget exhausted without a valid nonce")

// Solution is a nonce whose digest satisfies a round's difficulty, ready to
// be wrapped in a mine transaction.
type Solution struct {
	Round  uint64
	Nonce  uint64
	Digest [32]byte
}

// Engine runs the multi-worker nonce search.
type Engine struct {
	workers       int
	maxIterations uint64
	ratePeriod    time.Duration
	logger        *log.Logger
	recorder      metrics.Recorder
}

// NewEngine creates a search engine.
//
// Parameters:
//   - workers: number of concurrent search goroutines
//   - maxIterations: per-worker hash cap per search, 0 for unbounded
//   - ratePeriod: interval between hash rate reports
//   - logger: structured logger
//   - recorder: metrics sink for hash rate measurements
func NewEngine(workers int, maxIterations uint64, ratePeriod time.Duration, logger *log.Logger, recorder metrics.Recorder) *Engine {
	return &Engine{
		workers:       workers,
		maxIterations: maxIterations,
		ratePeriod:    ratePeriod,
		logger:        logger.WithComponent("engine"),
		recorder:      recorder,
	}
}

// Search hunts for a nonce whose digest meets the snapshot's difficulty.
// Workers partition the nonce space by stride: worker i tries nonces i, i+N,
// i+2N and so on for N workers, so no nonce is hashed twice. The first worker
// to find a valid candidate wins and the remaining workers are cancelled.
//
// The caller bounds the search through ctx; a deadline or cancellation ends
// it. Search blocks until every worker has stopped.
//
// Parameters:
//   - ctx: cancellation context bounding the search
//   - snapshot: round state fixing the seed, authority, and difficulty
//
// Returns:
//   - *Solution: winning nonce and digest, nil when none was found
//   - error: ErrNoSolution when the deadline, iteration cap, or nonce space
//     ran out; validation error on a nil snapshot
func (e *Engine) Search(ctx context.Context, snapshot *state.Snapshot) (*Solution, error) {
	if snapshot == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "search", "snapshot is required")
	}

	e.logger.WithRound(snapshot.Round).Debug("nonce search started",
		"difficulty", program.FormatDifficulty(snapshot.Difficulty),
		"workers", e.workers,
	)

	started := time.Now()
	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	slot := &resultSlot{cancel: cancel}
	counters := make([]atomic.Uint64, e.workers)

	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		e.speedMonitor(searchCtx, counters)
	}()

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			e.searchWorker(searchCtx, snapshot, uint64(id), slot, &counters[id])
		}(i)
	}
	wg.Wait()
	cancel()
	<-monitorDone

	attempts := totalHashes(counters)
	solution, found := slot.take()
	if !found {
		e.logger.WithRound(snapshot.Round).Debug("nonce search exhausted",
			"attempts", attempts,
			"duration_ms", time.Since(started).Milliseconds(),
		)
		return nil, ErrNoSolution
	}

	e.logger.LogSolutionFound(solution.Round, solution.Nonce,
		hex.EncodeToString(solution.Digest[:]), attempts, time.Since(started))
	return solution, nil
}

// searchWorker enumerates the nonces congruent to start modulo the worker
// count. It stops when the context is cancelled, the per-worker iteration
// cap is reached, or its slice of the nonce space wraps.
func (e *Engine) searchWorker(ctx context.Context, snapshot *state.Snapshot, start uint64, slot *resultSlot, hashes *atomic.Uint64) {
	hasher := program.NewHasher(snapshot.Seed, snapshot.Authority)
	stride := uint64(e.workers)

	var iterations uint64
	for nonce := start; ; nonce += stride {
		if iterations%cancelCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if e.maxIterations > 0 && iterations >= e.maxIterations {
				return
			}
		}
		iterations++
		hashes.Add(1)

		digest := hasher.Digest(nonce)
		if program.MeetsDifficulty(digest, snapshot.Difficulty) {
			slot.offer(&Solution{Round: snapshot.Round, Nonce: nonce, Digest: digest})
			return
		}

		// Unsigned overflow means this worker's slice of the space is spent.
		if nonce+stride < nonce {
			return
		}
	}
}

// speedMonitor reports the aggregate hash rate while a search runs. The rate
// is the hash count delta since the previous tick over the tick interval.
func (e *Engine) speedMonitor(ctx context.Context, counters []atomic.Uint64) {
	ticker := time.NewTicker(e.ratePeriod)
	defer ticker.Stop()

	var previous uint64
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			total := totalHashes(counters)
			elapsed := now.Sub(last)
			if elapsed <= 0 {
				continue
			}

			rate := float64(total-previous) / elapsed.Seconds()
			e.logger.LogHashRate(rate, total, e.workers)
			e.recorder.RecordHashRate(rate, e.workers)

			previous = total
			last = now
		}
	}
}

// resultSlot holds the first solution any worker offers. Later offers lose;
// the winning offer cancels the remaining workers.
type resultSlot struct {
	cancel   context.CancelFunc
	mutex    sync.Mutex
	solution *Solution
}

func (s *resultSlot) offer(solution *Solution) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.solution != nil {
		return
	}
	s.solution = solution
	s.cancel()
}

func (s *resultSlot) take() (*Solution, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.solution, s.solution != nil
}

// totalHashes sums the per-worker hash counters.
func totalHashes(counters []atomic.Uint64) uint64 {
	var total uint64
	for i := range counters {
		total += counters[i].Load()
	}
	return total
}
