package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/emberlabs/embermine/internal/mining"
	"github.com/emberlabs/embermine/internal/submit"
	"github.com/emberlabs/embermine/pkg/errors"
)

func newMineCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "Mine EMBER continuously until interrupted",
		Long: `Mine runs the continuous loop: refresh the board state, search for a
nonce meeting the current difficulty, then submit and confirm the solution.
The loop runs until SIGINT or SIGTERM; an in-flight submission is driven to
a terminal state before exit.

The proof account is created automatically on first run.`,
		Args: cobra.NoArgs,
		RunE: runMine,
	}
}

func runMine(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := checkSolBalance(ctx, rt); err != nil {
		return err
	}

	if err := ensureRegistered(ctx, rt); err != nil {
		return err
	}

	engine := mining.NewEngine(rt.cfg.WorkerCount, rt.cfg.MaxSearchIterations, rt.cfg.RatePeriod, rt.logger, rt.recorder)
	pipeline := submit.NewPipeline(rt.client, rt.tracker, rt.pipelineConfig(), rt.logger)

	orchestrator := mining.NewOrchestrator(&mining.OrchestratorConfig{
		Client:         rt.client,
		Tracker:        rt.tracker,
		Engine:         engine,
		Builder:        rt.builder,
		Pipeline:       pipeline,
		Recorder:       rt.recorder,
		Logger:         rt.logger,
		SearchDeadline: rt.cfg.SearchDeadline,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- orchestrator.Run(ctx)
	}()

	rt.logger.Info("mining started",
		"workers", rt.cfg.WorkerCount,
		"search_deadline", rt.cfg.SearchDeadline.String(),
		"max_priority_fee", rt.cfg.MaxPriorityFee,
	)

	select {
	case sig := <-sigChan:
		rt.logger.Info("shutdown signal received", "signal", sig.String())
		cancel()
		// Run drives an in-flight submission to a terminal state before
		// returning.
		if err := <-errChan; err != nil {
			return err
		}
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	rt.logger.Info("mining stopped")
	return nil
}

// checkSolBalance refuses to start without SOL for transaction fees and
// warns when the balance is nearly drained.
func checkSolBalance(ctx context.Context, rt *runtime) error {
	balance, err := rt.client.Balance(ctx, rt.builder.Authority())
	if err != nil {
		return err
	}

	if balance == 0 {
		return errors.New(errors.ErrorTypeValidation, "mine",
			"wallet holds no SOL to pay transaction fees").
			WithContext("wallet", rt.builder.Authority().String())
	}

	if balance < lowBalanceLamports {
		rt.logger.Warn("SOL balance is low",
			"balance_sol", formatSolAmount(balance),
			"wallet", rt.builder.Authority().String(),
		)
	}

	return nil
}
