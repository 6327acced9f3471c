package chain

import (
	"sort"

	"github.com/gagliardetto/solana-go/rpc"
)

// aggregateFees reduces recent prioritization fee samples to a single
// estimate: the 75th percentile of the nonzero samples. Zero samples mean an
// idle fee market, so they are excluded; with no nonzero samples at all the
// estimate is zero and the transaction rides without a priority fee.
func aggregateFees(samples []rpc.PriorizationFeeResult) FeeEstimate {
	fees := make([]uint64, 0, len(samples))
	var latestSlot uint64

	for _, sample := range samples {
		if sample.Slot > latestSlot {
			latestSlot = sample.Slot
		}
		if sample.PrioritizationFee > 0 {
			fees = append(fees, sample.PrioritizationFee)
		}
	}

	if len(fees) == 0 {
		return FeeEstimate{Slot: latestSlot}
	}

	sort.Slice(fees, func(i, j int) bool { return fees[i] < fees[j] })

	index := len(fees) * 3 / 4
	if index >= len(fees) {
		index = len(fees) - 1
	}

	return FeeEstimate{
		MicroLamports: fees[index],
		Samples:       len(fees),
		Slot:          latestSlot,
	}
}
