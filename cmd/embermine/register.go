package main

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"github.com/emberlabs/embermine/internal/chain"
	"github.com/emberlabs/embermine/internal/program"
	"github.com/emberlabs/embermine/internal/submit"
	"github.com/emberlabs/embermine/pkg/errors"
)

func newRegisterCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Create the miner's proof account",
		Long: `Register creates the proof account that tracks the miner's seed and
claimable rewards. Mining registers automatically on first run; this
command exists for preparing a wallet ahead of time.`,
		Args: cobra.NoArgs,
		RunE: runRegister,
	}
}

func runRegister(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()

	proof, _, err := program.ProofPDA(rt.builder.Authority())
	if err != nil {
		return err
	}

	if _, err := rt.client.FetchAccount(ctx, proof); err == nil {
		fmt.Println("already registered")
		return nil
	} else if !chain.IsNotFound(err) {
		return err
	}

	if err := registerMiner(ctx, rt); err != nil {
		return err
	}

	fmt.Printf("registered proof account %s\n", proof.String())
	return nil
}

// ensureRegistered creates the proof account when it does not exist yet.
func ensureRegistered(ctx context.Context, rt *runtime) error {
	proof, _, err := program.ProofPDA(rt.builder.Authority())
	if err != nil {
		return err
	}

	_, err = rt.client.FetchAccount(ctx, proof)
	if err == nil {
		return nil
	}
	if !chain.IsNotFound(err) {
		return err
	}

	rt.logger.Info("proof account not found, registering", "proof", proof.String())
	return registerMiner(ctx, rt)
}

// registerMiner builds, submits and confirms a register transaction.
func registerMiner(ctx context.Context, rt *runtime) error {
	blockhash, err := rt.client.LatestBlockhash(ctx)
	if err != nil {
		return err
	}

	proof, _, err := program.ProofPDA(rt.builder.Authority())
	if err != nil {
		return err
	}
	fee := rt.feeHint(ctx, []solana.PublicKey{proof})

	tx, err := rt.builder.BuildRegister(*blockhash, fee)
	if err != nil {
		return err
	}

	pipeline := submit.NewPipeline(rt.client, rt.tracker, rt.pipelineConfig(), rt.logger)
	outcome, err := pipeline.Run(ctx, &submit.Submission{
		Tx:             tx,
		GuardRound:     false,
		MinContextSlot: blockhash.Slot,
		PriorityFee:    rt.builder.PriorityFee(fee),
	})
	if err != nil {
		return err
	}

	if outcome.State != submit.StateConfirmed {
		return errors.New(errors.ErrorTypeRejection, "register",
			"registration did not confirm").
			WithContext("outcome", outcome.State.String()).
			WithContext("reason", outcome.Reason)
	}

	rt.logger.Info("miner registered",
		"proof", proof.String(),
		"signature", outcome.Signature.String(),
	)
	return nil
}
