// Package main implements the embermine command-line client.
// It mines the EMBER token on Solana and manages the miner's rewards.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
