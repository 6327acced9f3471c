package program

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/emberlabs/embermine/pkg/errors"
)

// Account sizes fixed by the program, in bytes.
const (
	BoardSize = 64
	ProofSize = 96
	BusSize   = 16
)

// Board mirrors the global round board account. All integers are
// little-endian on the wire; Difficulty is a big-endian magnitude threshold.
type Board struct {
	Round        uint64
	Difficulty   [32]byte
	RewardRate   uint64
	LastResetAt  int64
	TotalClaimed uint64
}

// Proof mirrors a miner's proof account.
type Proof struct {
	Authority    solana.PublicKey
	Seed         [32]byte
	Round        uint64
	Claimable    uint64
	TotalHashes  uint64
	TotalRewards uint64
}

// Bus mirrors a reward bus account.
type Bus struct {
	ID      uint64
	Rewards uint64
}

// DecodeBoard decodes the board account state.
func DecodeBoard(data []byte) (*Board, error) {
	if len(data) < BoardSize {
		return nil, errors.New(errors.ErrorTypeEncoding, "decode_board",
			fmt.Sprintf("account data too short: expected %d bytes, got %d", BoardSize, len(data)))
	}

	var board Board
	if err := bin.NewBinDecoder(data).Decode(&board); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "decode_board",
			"failed to decode board account")
	}

	return &board, nil
}

// DecodeProof decodes a miner's proof account state.
func DecodeProof(data []byte) (*Proof, error) {
	if len(data) < ProofSize {
		return nil, errors.New(errors.ErrorTypeEncoding, "decode_proof",
			fmt.Sprintf("account data too short: expected %d bytes, got %d", ProofSize, len(data)))
	}

	var proof Proof
	if err := bin.NewBinDecoder(data).Decode(&proof); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "decode_proof",
			"failed to decode proof account")
	}

	return &proof, nil
}

// DecodeBus decodes a reward bus account state.
func DecodeBus(data []byte) (*Bus, error) {
	if len(data) < BusSize {
		return nil, errors.New(errors.ErrorTypeEncoding, "decode_bus",
			fmt.Sprintf("account data too short: expected %d bytes, got %d", BusSize, len(data)))
	}

	var bus Bus
	if err := bin.NewBinDecoder(data).Decode(&bus); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEncoding, "decode_bus",
			"failed to decode bus account")
	}

	return &bus, nil
}
