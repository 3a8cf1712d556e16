package tabulation

import (
	"context"
	"errors"
	"math"
)

// Direction says whether a tie is being resolved to pick a winner (select
// the highest) or an eliminee (select the lowest), per §4.5.
type Direction int

const (
	SelectHighest Direction = iota
	SelectLowest
)

// Oracle is the synchronous external callback the Tie Breaker invokes in
// interactive modes (§6 outbound). Decide must return a candidate from
// tied, or an error (ErrOracleCancelled or a wrapped form of it) to cancel
// the tabulation.
type Oracle interface {
	Decide(ctx context.Context, tied []CandidateID, direction Direction, round int, priorTallies map[CandidateID]Weight) (CandidateID, error)
}

// ErrOracleCancelled is returned (or wrapped) by an Oracle that refuses or
// cancels a decision.
var ErrOracleCancelled = errors.New("tie-break oracle cancelled")

// TieBreakEvent records one resolved tie for the Tabulation Record.
type TieBreakEvent struct {
	Round     int
	Tied      []CandidateID
	Direction Direction
	Mode      TieBreakMode
	Winner    CandidateID
}

// TieBreaker resolves ties among high candidates (winner direction) or low
// candidates (elimination direction) per the configured mode.
type TieBreaker struct {
	cfg         Config
	registry    *Registry
	oracle      Oracle
	rng         *splitMix64
	permutation []CandidateID // position i -> candidate, used by both permutation modes
}

// NewTieBreaker builds a TieBreaker. For generatePermutation the full
// ordering is computed once here (and also returned for audit, see
// Permutation()).
func NewTieBreaker(cfg Config, registry *Registry, oracle Oracle) (*TieBreaker, error) {
	tb := &TieBreaker{cfg: cfg, registry: registry, oracle: oracle}

	if cfg.TieBreakMode.needsRandomSeed() {
		tb.rng = newSplitMix64(cfg.RandomSeed)
	}

	switch cfg.TieBreakMode {
	case TieBreakUsePermutationInConfig:
		tb.permutation = append([]CandidateID(nil), cfg.Permutation...)
	case TieBreakGeneratePermutation:
		all := registry.InitialContinuing()
		tb.rng.shuffle(all)
		tb.permutation = all
	}

	return tb, nil
}

// Permutation returns the audit-reportable ordering, or nil if the
// configured mode does not use one.
func (tb *TieBreaker) Permutation() []CandidateID {
	return tb.permutation
}

// Break resolves a tie among tied, in direction, using the tallies of
// preceding rounds (history[i] is round i+1's RoundState; history may be
// empty in round 1). It returns the chosen candidate and the event to
// record.
func (tb *TieBreaker) Break(ctx context.Context, tied []CandidateID, direction Direction, round int, history []RoundState) (CandidateID, TieBreakEvent, error) {
	if len(tied) == 0 {
		panic("tabulation: Break called with an empty tied set")
	}

	sorted := append([]CandidateID(nil), tied...)
	tb.registry.SortByCode(sorted)
	if len(sorted) == 1 {
		return sorted[0], TieBreakEvent{Round: round, Tied: sorted, Direction: direction, Mode: tb.cfg.TieBreakMode, Winner: sorted[0]}, nil
	}

	winner, err := tb.resolve(ctx, sorted, direction, round, history)
	if err != nil {
		return 0, TieBreakEvent{}, err
	}
	return winner, TieBreakEvent{Round: round, Tied: sorted, Direction: direction, Mode: tb.cfg.TieBreakMode, Winner: winner}, nil
}

func (tb *TieBreaker) resolve(ctx context.Context, tied []CandidateID, direction Direction, round int, history []RoundState) (CandidateID, error) {
	switch tb.cfg.TieBreakMode {
	case TieBreakInteractive, TieBreakStopCountingAndAsk:
		priorTallies := map[CandidateID]Weight{}
		if round-2 >= 0 && round-2 < len(history) {
			priorTallies = history[round-2].Tally
		}
		winner, err := tb.oracle.Decide(ctx, tied, direction, round, priorTallies)
		if err != nil {
			return 0, MessageErrorf(ErrTieBreakCancelled, "tie-break oracle: %v", err)
		}
		if !Contains(tied, winner) {
			return 0, MessageErrorf(ErrTieBreakCancelled, "tie-break oracle chose a candidate outside the tied set")
		}
		return winner, nil

	case TieBreakRandom:
		return tb.pickRandom(tied), nil

	case TieBreakPreviousRoundCountsThenRandom:
		return tb.previousRoundCountsThenRandom(tied, direction, history)

	case TieBreakUsePermutationInConfig, TieBreakGeneratePermutation:
		return tb.pickByPermutation(tied, direction), nil

	default:
		panic("tabulation: unknown tie-break mode")
	}
}

func (tb *TieBreaker) pickRandom(tied []CandidateID) CandidateID {
	idx := tb.rng.Intn(len(tied))
	return tied[idx]
}

func (tb *TieBreaker) previousRoundCountsThenRandom(tied []CandidateID, direction Direction, history []RoundState) (CandidateID, error) {
	candidates := append([]CandidateID(nil), tied...)

	for r := len(history) - 1; r >= 0; r-- {
		tally := history[r].Tally
		candidates = narrowByExtrema(candidates, tally, direction)
		if len(candidates) == 1 {
			return candidates[0], nil
		}
	}

	return tb.pickRandom(candidates), nil
}

// narrowByExtrema keeps only the candidates achieving the extreme tally (in
// direction) among candidates, provided they are not all equal — an equal
// round does not differentiate, so the full set is returned unchanged.
func narrowByExtrema(candidates []CandidateID, tally map[CandidateID]Weight, direction Direction) []CandidateID {
	if len(candidates) <= 1 {
		return candidates
	}

	best := tally[candidates[0]]
	allEqual := true
	for _, c := range candidates[1:] {
		v := tally[c]
		if v.Cmp(best) != 0 {
			allEqual = false
		}
		if direction == SelectHighest && v.GreaterThan(best) {
			best = v
		}
		if direction == SelectLowest && best.GreaterThan(v) {
			best = v
		}
	}
	if allEqual {
		return candidates
	}

	var narrowed []CandidateID
	for _, c := range candidates {
		if tally[c].Cmp(best) == 0 {
			narrowed = append(narrowed, c)
		}
	}
	return narrowed
}

func (tb *TieBreaker) pickByPermutation(tied []CandidateID, direction Direction) CandidateID {
	pos := make(map[CandidateID]int, len(tb.permutation))
	for i, c := range tb.permutation {
		pos[c] = i
	}

	best := tied[0]
	for _, c := range tied[1:] {
		switch direction {
		case SelectLowest:
			if pos[c] < pos[best] {
				best = c
			}
		case SelectHighest:
			if pos[c] > pos[best] {
				best = c
			}
		}
	}
	return best
}

// splitMix64 is the named, reproducible PRNG the design notes require
// (SplitMix64, consumed by rejection sampling for uniform index selection).
type splitMix64 struct {
	state uint64
}

func newSplitMix64(seed uint64) *splitMix64 {
	return &splitMix64{state: seed}
}

func (s *splitMix64) next() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Intn returns a uniform value in [0,n) via rejection sampling.
func (s *splitMix64) Intn(n int) int {
	if n <= 0 {
		panic("tabulation: Intn requires n > 0")
	}
	limit := uint64(n)
	bound := (math.MaxUint64 / limit) * limit
	for {
		r := s.next()
		if r < bound {
			return int(r % limit)
		}
	}
}

// shuffle performs a Fisher-Yates shuffle of ids in place, seeded by s.
func (s *splitMix64) shuffle(ids []CandidateID) {
	for i := len(ids) - 1; i > 0; i-- {
		j := s.Intn(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}
}
