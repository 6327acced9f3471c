// Package txbuild assembles and signs the transactions the client submits.
// Builds are deterministic: identical inputs produce byte-identical signed
// transactions, so a resubmitted transaction keeps its signature.
package txbuild

import (
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"

	"github.com/emberlabs/embermine/internal/chain"
	"github.com/emberlabs/embermine/internal/program"
	"github.com/emberlabs/embermine/pkg/errors"
)

// Compute unit limits per transaction kind. Fixed limits keep transaction
// bytes deterministic and priority fee cost predictable.
const (
	mineComputeUnitLimit     uint32 = 140_000
	claimComputeUnitLimit    uint32 = 85_000
	registerComputeUnitLimit uint32 = 50_000

	// createTokenAccountComputeUnits covers the associated token account
	// creation CPI when a claim has to create the beneficiary account first.
	createTokenAccountComputeUnits uint32 = 30_000
)

// Builder assembles and signs transactions on behalf of a single authority.
type Builder struct {
	signer         solana.PrivateKey
	authority      solana.PublicKey
	maxPriorityFee uint64
}

// NewBuilder creates a transaction builder.
//
// Parameters:
//   - signer: the mining authority's private key; it pays fees and signs
//   - maxPriorityFee: ceiling in micro-lamports applied to every fee estimate
func NewBuilder(signer solana.PrivateKey, maxPriorityFee uint64) *Builder {
	return &Builder{
		signer:         signer,
		authority:      signer.PublicKey(),
		maxPriorityFee: maxPriorityFee,
	}
}

// Authority returns the public key that signs and pays for built transactions.
func (b *Builder) Authority() solana.PublicKey {
	return b.authority
}

// BuildMine wraps a solution in a signed mine transaction. The bus is chosen
// as nonce mod BusCount so solutions spread across the reward buses.
//
// Parameters:
//   - round: round the solution was found for
//   - nonce: winning nonce
//   - digest: keccak digest proving the nonce
//   - blockhash: recent blockhash anchoring the transaction
//   - fee: priority fee estimate, capped by the configured maximum
//
// Returns:
//   - *solana.Transaction: signed transaction ready for submission
//   - error: encoding error when assembly or signing fails
func (b *Builder) BuildMine(round, nonce uint64, digest [32]byte, blockhash chain.Blockhash, fee chain.FeeEstimate) (*solana.Transaction, error) {
	busID := nonce % program.BusCount

	mineIx, err := program.NewMineInstruction(b.authority, busID, round, digest, nonce)
	if err != nil {
		return nil, err
	}

	instructions := b.budgetInstructions(mineComputeUnitLimit, fee)
	instructions = append(instructions, mineIx)

	return b.signedTransaction(instructions, blockhash)
}

// BuildClaim builds a signed claim transaction moving rewards to the wallet's
// associated token account. When createTokenAccount is set, an instruction
// creating that account is prepended; callers check for its existence first.
//
// Parameters:
//   - amount: rewards to claim, in base units; must be positive
//   - wallet: owner of the destination token account
//   - createTokenAccount: prepend associated token account creation
//   - blockhash: recent blockhash anchoring the transaction
//   - fee: priority fee estimate, capped by the configured maximum
//
// Returns:
//   - *solana.Transaction: signed transaction ready for submission
//   - error: validation error on a zero amount, encoding error otherwise
func (b *Builder) BuildClaim(amount uint64, wallet solana.PublicKey, createTokenAccount bool, blockhash chain.Blockhash, fee chain.FeeEstimate) (*solana.Transaction, error) {
	if amount == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "build_claim",
			"claim amount must be positive")
	}

	beneficiaryTokens, err := program.BeneficiaryTokenAddress(wallet)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "build_claim",
			"failed to derive beneficiary token address")
	}

	claimIx, err := program.NewClaimInstruction(b.authority, beneficiaryTokens, amount)
	if err != nil {
		return nil, err
	}

	limit := claimComputeUnitLimit
	if createTokenAccount {
		limit += createTokenAccountComputeUnits
	}

	instructions := b.budgetInstructions(limit, fee)
	if createTokenAccount {
		mint, _, err := program.MintPDA()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "build_claim",
				"failed to derive mint address")
		}
		instructions = append(instructions,
			associatedtokenaccount.NewCreateInstruction(b.authority, wallet, mint).Build())
	}
	instructions = append(instructions, claimIx)

	return b.signedTransaction(instructions, blockhash)
}

// BuildRegister builds a signed transaction creating the authority's proof
// account. Mining requires the proof account to exist.
//
// Parameters:
//   - blockhash: recent blockhash anchoring the transaction
//   - fee: priority fee estimate, capped by the configured maximum
//
// Returns:
//   - *solana.Transaction: signed transaction ready for submission
//   - error: encoding error when assembly or signing fails
func (b *Builder) BuildRegister(blockhash chain.Blockhash, fee chain.FeeEstimate) (*solana.Transaction, error) {
	registerIx, err := program.NewRegisterInstruction(b.authority)
	if err != nil {
		return nil, err
	}

	instructions := b.budgetInstructions(registerComputeUnitLimit, fee)
	instructions = append(instructions, registerIx)

	return b.signedTransaction(instructions, blockhash)
}

// PriorityFee returns the compute unit price a build applies for the given
// estimate: the estimated micro-lamports capped at the configured maximum.
func (b *Builder) PriorityFee(fee chain.FeeEstimate) uint64 {
	if fee.MicroLamports > b.maxPriorityFee {
		return b.maxPriorityFee
	}
	return fee.MicroLamports
}

// budgetInstructions returns the compute budget prelude. A zero fee estimate
// rides without a priority fee, so the price instruction is omitted.
func (b *Builder) budgetInstructions(limit uint32, fee chain.FeeEstimate) []solana.Instruction {
	instructions := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(limit).Build(),
	}

	if price := b.PriorityFee(fee); price > 0 {
		instructions = append(instructions,
			computebudget.NewSetComputeUnitPriceInstruction(price).Build())
	}

	return instructions
}

// signedTransaction assembles the message and signs it with the authority key.
func (b *Builder) signedTransaction(instructions []solana.Instruction, blockhash chain.Blockhash) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(instructions, blockhash.Hash,
		solana.TransactionPayer(b.authority))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "build_transaction",
			"failed to assemble transaction")
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(b.authority) {
			return &b.signer
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "sign_transaction",
			"failed to sign transaction")
	}

	return tx, nil
}
