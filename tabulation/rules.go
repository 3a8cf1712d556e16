package tabulation

import "fmt"

// OvervoteRule governs step 3 of the Ballot Interpreter (§4.1).
type OvervoteRule int

const (
	OvervoteExhaustImmediately OvervoteRule = iota
	OvervoteAlwaysSkipToNextRank
	OvervoteExhaustIfMultipleContinuing
)

// ParseOvervoteRule resolves a dynamic enumeration label to a case. Unknown
// labels are ConfigInvalid, never a runtime fallback (design note).
func ParseOvervoteRule(s string) (OvervoteRule, error) {
	switch s {
	case "exhaustImmediately":
		return OvervoteExhaustImmediately, nil
	case "alwaysSkipToNextRank":
		return OvervoteAlwaysSkipToNextRank, nil
	case "exhaustIfMultipleContinuing":
		return OvervoteExhaustIfMultipleContinuing, nil
	default:
		return 0, MessageErrorf(ErrConfigInvalid, "unknown overvoteRule %q", s)
	}
}

// TieBreakMode selects how the Tie Breaker resolves a tied subset (§4.5).
type TieBreakMode int

const (
	TieBreakInteractive TieBreakMode = iota
	TieBreakRandom
	TieBreakPreviousRoundCountsThenRandom
	TieBreakUsePermutationInConfig
	TieBreakGeneratePermutation
	TieBreakStopCountingAndAsk
)

// ParseTieBreakMode resolves a dynamic enumeration label to a case.
func ParseTieBreakMode(s string) (TieBreakMode, error) {
	switch s {
	case "interactive":
		return TieBreakInteractive, nil
	case "random":
		return TieBreakRandom, nil
	case "previousRoundCountsThenRandom":
		return TieBreakPreviousRoundCountsThenRandom, nil
	case "usePermutationInConfig":
		return TieBreakUsePermutationInConfig, nil
	case "generatePermutation":
		return TieBreakGeneratePermutation, nil
	case "stopCountingAndAsk":
		return TieBreakStopCountingAndAsk, nil
	default:
		return 0, MessageErrorf(ErrConfigInvalid, "unknown tieBreakMode %q", s)
	}
}

// needsRandomSeed reports whether mode ever consumes the PRNG.
func (m TieBreakMode) needsRandomSeed() bool {
	switch m {
	case TieBreakRandom, TieBreakPreviousRoundCountsThenRandom, TieBreakGeneratePermutation:
		return true
	default:
		return false
	}
}

// interactiveMode reports whether mode delegates to an external Oracle.
func (m TieBreakMode) interactiveMode() bool {
	return m == TieBreakInteractive || m == TieBreakStopCountingAndAsk
}

// MultiSeatMode selects the overall tabulation variant (§4.2, §4.6).
type MultiSeatMode int

const (
	SingleWinner MultiSeatMode = iota
	StandardSTV
	Sequential
	BottomsUp
	ContinueUntilTwoRemain
)

// ParseMultiSeatMode resolves a dynamic enumeration label to a case.
func ParseMultiSeatMode(s string) (MultiSeatMode, error) {
	switch s {
	case "singleWinner":
		return SingleWinner, nil
	case "standardSTV":
		return StandardSTV, nil
	case "sequential":
		return Sequential, nil
	case "bottomsUp":
		return BottomsUp, nil
	case "continueUntilTwoRemain":
		return ContinueUntilTwoRemain, nil
	default:
		return 0, MessageErrorf(ErrConfigInvalid, "unknown multiSeatMode %q", s)
	}
}

// singleSeat reports whether mode elects exactly one candidate in total.
func (m MultiSeatMode) singleSeat() bool {
	return m == SingleWinner || m == ContinueUntilTwoRemain
}

// UnlimitedSkippedRanks marks maxSkippedRanksAllowed as unbounded.
const UnlimitedSkippedRanks = -1

// Config is the resolved, validated rule set a Session runs with. Every
// field here has already passed through an explicit parse step (ParseXxx
// above or the config package's loader) — the core never reinterprets raw
// strings.
type Config struct {
	Scale                         int
	NumberOfWinners               int
	MaxRankingsAllowed            int
	MaxSkippedRanksAllowed        int // UnlimitedSkippedRanks for "unlimited"
	ExhaustOnDuplicateCandidate   bool
	TreatBlankAsUndeclaredWriteIn bool
	EliminateUWIFirst            bool
	OvervoteRule                 OvervoteRule
	TieBreakMode                 TieBreakMode
	MultiSeatMode                MultiSeatMode
	BatchElimination              bool
	HareQuota                     bool
	NonIntegerWinningThreshold    bool
	AllowOnlyOneWinnerPerRound    bool
	MinimumVoteThreshold          Weight
	RandomSeed                    uint64
	RandomSeedSet                 bool
	Permutation                   []CandidateID // usePermutationInConfig order
	AllowUnrecognizedCandidates   bool          // §6: otherwise a CVR code with no declared candidate aborts before round 1
}

// Validate checks cross-field invariants that make a configuration
// ConfigInvalid before round 1 (§7). numCandidates is the number of
// declared, non-excluded candidates.
func (c Config) Validate(numCandidates int) error {
	if c.Scale < MinScale || c.Scale > MaxScale {
		return MessageErrorf(ErrConfigInvalid, "decimalPlacesForVoteArithmetic %d out of range [%d,%d]", c.Scale, MinScale, MaxScale)
	}
	if c.NumberOfWinners < 1 {
		return MessageError(ErrConfigInvalid, "numberOfWinners must be >= 1")
	}
	if c.NumberOfWinners > numCandidates {
		return MessageErrorf(ErrConfigInvalid, "numberOfWinners %d exceeds %d declared candidates", c.NumberOfWinners, numCandidates)
	}
	if c.MultiSeatMode.singleSeat() && c.NumberOfWinners != 1 {
		return MessageError(ErrConfigInvalid, "singleWinner/continueUntilTwoRemain require numberOfWinners == 1")
	}
	if c.MultiSeatMode == Sequential && c.NumberOfWinners < 2 {
		return MessageError(ErrConfigInvalid, "sequential multi-seat requires numberOfWinners >= 2")
	}
	if c.HareQuota && c.MultiSeatMode.singleSeat() {
		return MessageError(ErrConfigInvalid, "hareQuota is not valid in a single-seat contest")
	}
	if c.BatchElimination && !c.MultiSeatMode.singleSeat() {
		return MessageError(ErrConfigInvalid, "batchElimination is only valid for single-winner contests")
	}
	if c.MaxRankingsAllowed < 1 {
		return MessageError(ErrConfigInvalid, "maxRankingsAllowed must be >= 1")
	}
	if c.MaxSkippedRanksAllowed < 0 && c.MaxSkippedRanksAllowed != UnlimitedSkippedRanks {
		return MessageError(ErrConfigInvalid, "maxSkippedRanksAllowed must be >= 0 or unlimited")
	}
	minThreshold := WeightFromInt(c.Scale, 0)
	maxThreshold := WeightFromInt(c.Scale, 1_000_000)
	if c.MinimumVoteThreshold.Cmp(minThreshold) < 0 || c.MinimumVoteThreshold.Cmp(maxThreshold) > 0 {
		return MessageError(ErrConfigInvalid, "minimumVoteThreshold out of range [0, 1000000]")
	}
	if c.TieBreakMode.needsRandomSeed() && !c.RandomSeedSet {
		return MessageError(ErrConfigInvalid, "randomSeed is required for this tieBreakMode")
	}
	if c.TieBreakMode == TieBreakUsePermutationInConfig && len(c.Permutation) != numCandidates {
		return MessageErrorf(ErrConfigInvalid, "usePermutationInConfig requires a permutation of all %d candidates, got %d", numCandidates, len(c.Permutation))
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("Config{scale=%d, seats=%d, mode=%d}", c.Scale, c.NumberOfWinners, c.MultiSeatMode)
}
