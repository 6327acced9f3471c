package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emberlabs/embermine/internal/chain"
	"github.com/emberlabs/embermine/internal/program"
)

func newRewardsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rewards",
		Short: "Show the current round, difficulty and reward rate",
		Args:  cobra.NoArgs,
		RunE:  runRewards,
	}
}

func runRewards(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()

	boardAddress, _, err := program.BoardPDA()
	if err != nil {
		return err
	}
	account, err := rt.client.FetchAccount(ctx, boardAddress)
	if err != nil {
		return err
	}
	board, err := program.DecodeBoard(account.Data)
	if err != nil {
		return err
	}

	fmt.Printf("round:       %d\n", board.Round)
	fmt.Printf("difficulty:  %s\n", program.FormatDifficulty(board.Difficulty))
	fmt.Printf("reward rate: %s EMBER per solution\n", formatTokenAmount(board.RewardRate))

	// Claimable is per-miner, shown only when this wallet is registered.
	claimable, err := rt.tracker.ClaimableBalance(ctx)
	switch {
	case err == nil:
		fmt.Printf("claimable:   %s EMBER\n", formatTokenAmount(claimable))
	case chain.IsNotFound(err):
		fmt.Println("claimable:   not registered")
	default:
		return err
	}

	return nil
}
