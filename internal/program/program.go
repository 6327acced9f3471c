// Package program provides the client-side interface to the EMBER on-chain program.
// It includes account state layouts, instruction encoding, program-derived address
// derivation, and the candidate hashing rule re-implemented for the local search.
package program

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
)

// ProgramID is the address of the EMBER program.
var ProgramID = solana.MustPublicKeyFromBase58("Ember11111111111111111111111111111111111111")

// BusCount is the number of reward bus accounts the program rotates across.
const BusCount = 8

// TokenDecimals is the decimal count of the EMBER mint. Reward and claim
// amounts on the wire are base units: one EMBER is 10^TokenDecimals units.
const TokenDecimals = 9

// PDA seed prefixes fixed by the program.
const (
	boardSeed    = "board"
	proofSeed    = "proof"
	treasurySeed = "treasury"
	mintSeed     = "mint"
	busSeed      = "bus"
)

// BoardPDA derives the address of the global round board account.
func BoardPDA() (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(boardSeed)}, ProgramID)
}

// ProofPDA derives the address of a miner's proof account from its authority.
func ProofPDA(authority solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(proofSeed), authority.Bytes()}, ProgramID)
}

// TreasuryPDA derives the address of the program treasury account.
func TreasuryPDA() (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(treasurySeed)}, ProgramID)
}

// MintPDA derives the address of the EMBER token mint.
func MintPDA() (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(mintSeed)}, ProgramID)
}

// BusPDA derives the address of reward bus id (0 <= id < BusCount).
func BusPDA(id uint64) (solana.PublicKey, uint8, error) {
	var idBytes [8]byte
	binary.LittleEndian.PutUint64(idBytes[:], id)
	return solana.FindProgramAddress([][]byte{[]byte(busSeed), idBytes[:]}, ProgramID)
}

// TreasuryTokenAddress returns the treasury's associated EMBER token account,
// the source of claimed rewards.
func TreasuryTokenAddress() (solana.PublicKey, error) {
	treasury, _, err := TreasuryPDA()
	if err != nil {
		return solana.PublicKey{}, err
	}

	mint, _, err := MintPDA()
	if err != nil {
		return solana.PublicKey{}, err
	}

	ata, _, err := solana.FindAssociatedTokenAddress(treasury, mint)
	return ata, err
}

// BeneficiaryTokenAddress returns the wallet's associated EMBER token account,
// the destination of claimed rewards.
func BeneficiaryTokenAddress(wallet solana.PublicKey) (solana.PublicKey, error) {
	mint, _, err := MintPDA()
	if err != nil {
		return solana.PublicKey{}, err
	}

	ata, _, err := solana.FindAssociatedTokenAddress(wallet, mint)
	return ata, err
}
