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

const flagClaimTo = "to"

func newClaimCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "claim [amount]",
		Short: "Claim accumulated EMBER rewards",
		Long: `Claim transfers accumulated rewards from the treasury to the receiving
wallet's token account, creating the token account when it does not exist.
Without an amount the full claimable balance is transferred.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runClaim,
	}
	cmd.Flags().String(flagClaimTo, "", "wallet receiving the rewards (defaults to the signer)")
	return cmd
}

func runClaim(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()

	snapshot, err := rt.tracker.Refresh(ctx)
	if err != nil {
		return err
	}

	amount := snapshot.Claimable
	if len(args) == 1 {
		amount, err = parseTokenAmount(args[0])
		if err != nil {
			return err
		}
	}

	if amount == 0 {
		fmt.Println("nothing to claim")
		return nil
	}
	if amount > snapshot.Claimable {
		return errors.New(errors.ErrorTypeValidation, "claim",
			"amount exceeds the claimable balance").
			WithContext("amount", formatTokenAmount(amount)).
			WithContext("claimable", formatTokenAmount(snapshot.Claimable))
	}

	beneficiary := rt.builder.Authority()
	if to, _ := cmd.Flags().GetString(flagClaimTo); to != "" {
		beneficiary, err = solana.PublicKeyFromBase58(to)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeValidation, "claim",
				"invalid beneficiary wallet").
				WithContext("wallet", to)
		}
	}

	createTokenAccount, err := needsTokenAccount(ctx, rt, beneficiary)
	if err != nil {
		return err
	}

	blockhash, err := rt.client.LatestBlockhash(ctx)
	if err != nil {
		return err
	}
	fee := rt.feeHint(ctx, claimWritableAccounts(rt, beneficiary))

	tx, err := rt.builder.BuildClaim(amount, beneficiary, createTokenAccount, *blockhash, fee)
	if err != nil {
		return err
	}

	pipeline := submit.NewPipeline(rt.client, rt.tracker, rt.pipelineConfig(), rt.logger)
	outcome, err := pipeline.Run(ctx, &submit.Submission{
		Tx:             tx,
		Round:          snapshot.Round,
		GuardRound:     false,
		MinContextSlot: blockhash.Slot,
		PriorityFee:    rt.builder.PriorityFee(fee),
	})
	if err != nil {
		return err
	}

	if outcome.State != submit.StateConfirmed {
		return errors.New(errors.ErrorTypeRejection, "claim",
			"claim did not confirm").
			WithContext("outcome", outcome.State.String()).
			WithContext("reason", outcome.Reason)
	}

	rt.logger.LogClaim(amount, beneficiary.String(), outcome.Signature.String())
	fmt.Printf("claimed %s EMBER to %s\n", formatTokenAmount(amount), beneficiary.String())
	fmt.Printf("signature: %s\n", outcome.Signature.String())
	return nil
}

// needsTokenAccount reports whether the wallet's EMBER token account must be
// created as part of the claim.
func needsTokenAccount(ctx context.Context, rt *runtime, wallet solana.PublicKey) (bool, error) {
	tokenAccount, err := program.BeneficiaryTokenAddress(wallet)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrorTypeInternal, "claim",
			"failed to derive the beneficiary token account").
			WithContext("wallet", wallet.String())
	}

	_, err = rt.client.FetchAccount(ctx, tokenAccount)
	if err == nil {
		return false, nil
	}
	if chain.IsNotFound(err) {
		return true, nil
	}
	return false, err
}

// claimWritableAccounts lists the accounts a claim writes, for fee sampling.
// Derivation failures just shrink the sample set.
func claimWritableAccounts(rt *runtime, beneficiary solana.PublicKey) []solana.PublicKey {
	accounts := make([]solana.PublicKey, 0, 2)
	if proof, _, err := program.ProofPDA(rt.builder.Authority()); err == nil {
		accounts = append(accounts, proof)
	}
	if tokenAccount, err := program.BeneficiaryTokenAddress(beneficiary); err == nil {
		accounts = append(accounts, tokenAccount)
	}
	return accounts
}
