package program

import (
	"bytes"
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/emberlabs/embermine/pkg/errors"
)

// Instruction tags understood by the program.
const (
	tagRegister uint8 = 0
	tagMine     uint8 = 1
	tagClaim    uint8 = 2
)

// Instruction data sizes, tag byte included.
const (
	RegisterDataSize = 1
	MineDataSize     = 49
	ClaimDataSize    = 9
)

// NewRegisterInstruction builds the instruction that creates the authority's
// proof account. The authority pays rent, so it is a writable signer.
func NewRegisterInstruction(authority solana.PublicKey) (solana.Instruction, error) {
	proof, _, err := ProofPDA(authority)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "build_register",
			"failed to derive proof address")
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(authority).WRITE().SIGNER(),
		solana.Meta(proof).WRITE(),
		solana.Meta(solana.SystemProgramID),
	}

	return solana.NewInstruction(ProgramID, accounts, []byte{tagRegister}), nil
}

// NewMineInstruction builds the instruction that submits a solution for the
// given round. The bus is the reward account the solution draws from; callers
// pick one in 0..BusCount.
func NewMineInstruction(authority solana.PublicKey, busID, round uint64, digest [32]byte, nonce uint64) (solana.Instruction, error) {
	if busID >= BusCount {
		return nil, errors.New(errors.ErrorTypeValidation, "build_mine",
			"bus id out of range").
			WithContext("bus_id", busID)
	}

	board, _, err := BoardPDA()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "build_mine",
			"failed to derive board address")
	}

	proof, _, err := ProofPDA(authority)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "build_mine",
			"failed to derive proof address")
	}

	bus, _, err := BusPDA(busID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "build_mine",
			"failed to derive bus address")
	}

	data, err := encodeMineData(round, digest, nonce)
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(authority).SIGNER(),
		solana.Meta(bus).WRITE(),
		solana.Meta(board),
		solana.Meta(proof).WRITE(),
		solana.Meta(solana.SysVarSlotHashesPubkey),
	}

	return solana.NewInstruction(ProgramID, accounts, data), nil
}

// NewClaimInstruction builds the instruction that moves claimable rewards
// from the treasury to the beneficiary token account.
func NewClaimInstruction(authority, beneficiary solana.PublicKey, amount uint64) (solana.Instruction, error) {
	proof, _, err := ProofPDA(authority)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "build_claim",
			"failed to derive proof address")
	}

	treasury, _, err := TreasuryPDA()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "build_claim",
			"failed to derive treasury address")
	}

	treasuryTokens, err := TreasuryTokenAddress()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "build_claim",
			"failed to derive treasury token address")
	}

	data, err := encodeClaimData(amount)
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(authority).SIGNER(),
		solana.Meta(beneficiary).WRITE(),
		solana.Meta(proof).WRITE(),
		solana.Meta(treasury),
		solana.Meta(treasuryTokens).WRITE(),
		solana.Meta(solana.TokenProgramID),
	}

	return solana.NewInstruction(ProgramID, accounts, data), nil
}

// encodeMineData serializes the mine payload:
// tag u8 | round u64 | digest [32]byte | nonce u64, little-endian.
func encodeMineData(round uint64, digest [32]byte, nonce uint64) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(MineDataSize)
	enc := bin.NewBinEncoder(buf)

	if err := enc.WriteUint8(tagMine); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "encode_mine", "failed to write tag")
	}
	if err := enc.WriteUint64(round, binary.LittleEndian); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "encode_mine", "failed to write round")
	}
	if err := enc.WriteBytes(digest[:], false); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "encode_mine", "failed to write digest")
	}
	if err := enc.WriteUint64(nonce, binary.LittleEndian); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "encode_mine", "failed to write nonce")
	}

	return buf.Bytes(), nil
}

// encodeClaimData serializes the claim payload: tag u8 | amount u64, little-endian.
func encodeClaimData(amount uint64) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(ClaimDataSize)
	enc := bin.NewBinEncoder(buf)

	if err := enc.WriteUint8(tagClaim); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "encode_claim", "failed to write tag")
	}
	if err := enc.WriteUint64(amount, binary.LittleEndian); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "encode_claim", "failed to write amount")
	}

	return buf.Bytes(), nil
}
