package chain

import (
	"github.com/gagliardetto/solana-go"
)

// AccountData is the raw envelope of an on-chain account at a context slot.
type AccountData struct {
	Lamports uint64
	Owner    solana.PublicKey
	Data     []byte
	Slot     uint64
}

// Blockhash carries a recent blockhash and the slot it was observed at.
// The slot doubles as the minimum context slot for submissions built on it.
type Blockhash struct {
	Hash solana.Hash
	Slot uint64
}

// FeeEstimate is a priority fee hint in micro-lamports per compute unit,
// aggregated from recent cluster samples.
type FeeEstimate struct {
	MicroLamports uint64
	Samples       int
	Slot          uint64
}

// SubmissionHandle identifies an in-flight transaction.
type SubmissionHandle struct {
	Signature solana.Signature
	Slot      uint64
}

// TxStatus is the observed confirmation state of a submitted transaction.
type TxStatus int

const (
	// TxPending means the cluster has not yet confirmed or rejected the transaction
	TxPending TxStatus = iota
	// TxConfirmed means the transaction reached confirmed or finalized commitment
	TxConfirmed
	// TxRejected means the transaction executed and failed, or was dropped with an error
	TxRejected
)

// String returns a human-readable representation of the status
func (s TxStatus) String() string {
	switch s {
	case TxPending:
		return "pending"
	case TxConfirmed:
		return "confirmed"
	case TxRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// StatusResult is the outcome of a single confirmation poll.
type StatusResult struct {
	Status TxStatus
	Reason string // cluster error detail when rejected
	Slot   uint64
}
