package program

import (
	"encoding/binary"
	"encoding/hex"
	"hash"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/sha3"
)

// Hasher computes candidate digests for successive nonces while reusing the
// keccak state and input buffer. Not safe for concurrent use; each search
// worker owns its own Hasher.
type Hasher struct {
	state  hash.Hash
	prefix [64]byte
	nonce  [8]byte
}

// NewHasher creates a Hasher bound to a round seed and mining authority.
func NewHasher(seed [32]byte, authority solana.PublicKey) *Hasher {
	h := &Hasher{state: sha3.NewLegacyKeccak256()}
	copy(h.prefix[:32], seed[:])
	copy(h.prefix[32:], authority[:])
	return h
}

// Digest returns keccak256(seed || authority || nonce_le8) for the given nonce.
func (h *Hasher) Digest(nonce uint64) [32]byte {
	h.state.Reset()
	h.state.Write(h.prefix[:])
	binary.LittleEndian.PutUint64(h.nonce[:], nonce)
	h.state.Write(h.nonce[:])

	var digest [32]byte
	h.state.Sum(digest[:0])
	return digest
}

// SolutionDigest computes a single candidate digest. The search hot path uses
// a reusable Hasher instead.
func SolutionDigest(seed [32]byte, authority solana.PublicKey, nonce uint64) [32]byte {
	return NewHasher(seed, authority).Digest(nonce)
}

// MeetsDifficulty determines if a candidate digest satisfies the board
// difficulty. Both values are compared as unsigned big-endian magnitudes;
// a digest equal to the threshold is valid.
func MeetsDifficulty(digest, difficulty [32]byte) bool {
	for i := 0; i < 32; i++ {
		if digest[i] < difficulty[i] {
			return true
		}
		if digest[i] > difficulty[i] {
			return false
		}
	}
	return true
}

// FormatDifficulty renders a difficulty threshold as a hex string for
// logs and command output.
func FormatDifficulty(difficulty [32]byte) string {
	return hex.EncodeToString(difficulty[:])
}
