package tabulation

import "github.com/shopspring/decimal"

var decimalOne = decimal.NewFromInt(1)

// Threshold computes the winning threshold T for the current round from
// the active weight A and the config's seats/quota flags (§4.4).
//
// Open Question (§9) resolved: the comparator against T is weak (>=)
// uniformly, including the nonIntegerWinningThreshold case, for consistency
// with the integer Droop/Hare cases and with winner selection in §4.6.
func Threshold(cfg Config, active Weight) Weight {
	if cfg.MultiSeatMode.singleSeat() {
		return flooredThresholdPlusOne(active, 2, cfg.Scale)
	}

	denom := cfg.NumberOfWinners + 1
	if cfg.HareQuota {
		denom = cfg.NumberOfWinners
	}

	if cfg.NonIntegerWinningThreshold || cfg.HareQuota {
		return exactThreshold(active, denom, cfg.Scale)
	}

	return flooredThresholdPlusOne(active, denom, cfg.Scale)
}

// Elected reports whether tally meets or exceeds threshold (weak
// comparison, see Threshold's doc comment).
func Elected(tally, threshold Weight) bool {
	return tally.GreaterThanOrEqual(threshold)
}

func flooredThresholdPlusOne(active Weight, denom int, scale int) Weight {
	q := active.DivTruncate(WeightFromInt(scale, int64(denom)))
	floor := q.Decimal().Truncate(0)
	return NewWeight(scale, floor.Add(decimalOne))
}

func exactThreshold(active Weight, denom int, scale int) Weight {
	return active.DivTruncate(WeightFromInt(scale, int64(denom)))
}
