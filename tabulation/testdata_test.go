package tabulation

import "testing"

// newTestRegistry builds a Registry from plain candidate codes, none
// excluded or UWI, and returns a code->id lookup for building ballots.
func newTestRegistry(t *testing.T, codes ...string) (*Registry, map[string]CandidateID) {
	t.Helper()
	candidates := make([]Candidate, len(codes))
	for i, c := range codes {
		candidates[i] = Candidate{Code: c, Name: c}
	}
	reg, err := NewRegistry(candidates)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	ids := make(map[string]CandidateID, len(codes))
	for _, c := range codes {
		id, _ := reg.ID(c)
		ids[c] = id
	}
	return reg, ids
}

// rank builds a single-rank-position RankMark voting for one or more
// candidates (more than one makes it an overvote at that rank).
func rank(n int, ids ...CandidateID) RankMark {
	return RankMark{Rank: n, Candidates: ids}
}

// skip builds an empty rank position.
func skip(n int) RankMark {
	return RankMark{Rank: n}
}

func baseConfig(scale int) Config {
	return Config{
		Scale:                  scale,
		NumberOfWinners:        1,
		MaxRankingsAllowed:     10,
		MaxSkippedRanksAllowed: UnlimitedSkippedRanks,
		OvervoteRule:           OvervoteExhaustIfMultipleContinuing,
		TieBreakMode:           TieBreakUsePermutationInConfig,
		MultiSeatMode:          SingleWinner,
	}
}
