package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emberlabs/embermine/internal/chain"
)

func newBalanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the signer's claimable EMBER and SOL balance",
		Args:  cobra.NoArgs,
		RunE:  runBalance,
	}
}

func runBalance(cmd *cobra.Command, _ []string) error {
	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	authority := rt.builder.Authority()

	lamports, err := rt.client.Balance(ctx, authority)
	if err != nil {
		return err
	}

	claimable := uint64(0)
	registered := true
	snapshot, err := rt.tracker.Refresh(ctx)
	switch {
	case err == nil:
		claimable = snapshot.Claimable
	case chain.IsNotFound(err):
		// An unregistered miner has no proof account and nothing to claim.
		registered = false
	default:
		return err
	}

	fmt.Printf("wallet:    %s\n", authority.String())
	if registered {
		fmt.Printf("claimable: %s EMBER\n", formatTokenAmount(claimable))
	} else {
		fmt.Println("claimable: not registered")
	}
	fmt.Printf("sol:       %s SOL\n", formatSolAmount(lamports))
	return nil
}
