package tabulation

import (
	"context"
	"testing"
)

func TestTieBreakUsePermutationInConfigSelectsByOrder(t *testing.T) {
	// Scenario 2: order [A,B,C], tie between B and C for elimination (lowest
	// position in direction-elim picks B).
	reg, id := newTestRegistry(t, "A", "B", "C")
	cfg := baseConfig(4)
	cfg.TieBreakMode = TieBreakUsePermutationInConfig
	cfg.Permutation = []CandidateID{id["A"], id["B"], id["C"]}

	tb, err := NewTieBreaker(cfg, reg, nil)
	if err != nil {
		t.Fatalf("NewTieBreaker: %v", err)
	}

	winner, event, err := tb.Break(context.Background(), []CandidateID{id["B"], id["C"]}, SelectLowest, 1, nil)
	if err != nil {
		t.Fatalf("Break: %v", err)
	}
	if winner != id["B"] {
		t.Errorf("expected B picked as lowest in permutation order, got %v", winner)
	}
	if event.Winner != winner || event.Direction != SelectLowest {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestTieBreakUsePermutationSelectHighest(t *testing.T) {
	reg, id := newTestRegistry(t, "A", "B", "C")
	cfg := baseConfig(4)
	cfg.TieBreakMode = TieBreakUsePermutationInConfig
	cfg.Permutation = []CandidateID{id["A"], id["B"], id["C"]}

	tb, err := NewTieBreaker(cfg, reg, nil)
	if err != nil {
		t.Fatalf("NewTieBreaker: %v", err)
	}
	winner, _, err := tb.Break(context.Background(), []CandidateID{id["A"], id["C"]}, SelectHighest, 1, nil)
	if err != nil {
		t.Fatalf("Break: %v", err)
	}
	if winner != id["C"] {
		t.Errorf("expected C (highest index) picked, got %v", winner)
	}
}

func TestTieBreakGeneratePermutationIsReproducible(t *testing.T) {
	reg, _ := newTestRegistry(t, "A", "B", "C", "D")
	cfg := baseConfig(4)
	cfg.TieBreakMode = TieBreakGeneratePermutation
	cfg.RandomSeed = 42
	cfg.RandomSeedSet = true

	tb1, err := NewTieBreaker(cfg, reg, nil)
	if err != nil {
		t.Fatalf("NewTieBreaker: %v", err)
	}
	tb2, err := NewTieBreaker(cfg, reg, nil)
	if err != nil {
		t.Fatalf("NewTieBreaker: %v", err)
	}

	p1, p2 := tb1.Permutation(), tb2.Permutation()
	if len(p1) != len(p2) {
		t.Fatalf("permutation length mismatch: %d vs %d", len(p1), len(p2))
	}
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Fatalf("same seed produced different permutations at %d: %v vs %v", i, p1, p2)
		}
	}
}

func TestTieBreakRandomIsReproducibleForSameSeed(t *testing.T) {
	reg, id := newTestRegistry(t, "A", "B", "C")
	cfg := baseConfig(4)
	cfg.TieBreakMode = TieBreakRandom
	cfg.RandomSeed = 7
	cfg.RandomSeedSet = true

	tied := []CandidateID{id["A"], id["B"], id["C"]}

	tb1, _ := NewTieBreaker(cfg, reg, nil)
	tb2, _ := NewTieBreaker(cfg, reg, nil)

	w1, _, err := tb1.Break(context.Background(), tied, SelectHighest, 1, nil)
	if err != nil {
		t.Fatalf("Break: %v", err)
	}
	w2, _, err := tb2.Break(context.Background(), tied, SelectHighest, 1, nil)
	if err != nil {
		t.Fatalf("Break: %v", err)
	}
	if w1 != w2 {
		t.Errorf("same seed produced different winners: %v vs %v", w1, w2)
	}
}

func TestTieBreakPreviousRoundCountsThenRandom(t *testing.T) {
	reg, id := newTestRegistry(t, "A", "B", "C")
	cfg := baseConfig(4)
	cfg.TieBreakMode = TieBreakPreviousRoundCountsThenRandom
	cfg.RandomSeed = 1
	cfg.RandomSeedSet = true

	tb, err := NewTieBreaker(cfg, reg, nil)
	if err != nil {
		t.Fatalf("NewTieBreaker: %v", err)
	}

	history := []RoundState{
		{
			Round: 1,
			Tally: map[CandidateID]Weight{
				id["B"]: WeightFromInt(4, 2),
				id["C"]: WeightFromInt(4, 3),
			},
		},
	}

	winner, _, err := tb.Break(context.Background(), []CandidateID{id["B"], id["C"]}, SelectLowest, 2, history)
	if err != nil {
		t.Fatalf("Break: %v", err)
	}
	if winner != id["B"] {
		t.Errorf("expected B (lower prior-round tally) eliminated, got %v", winner)
	}
}

func TestTieBreakPreviousRoundCountsFallsBackToRandom(t *testing.T) {
	reg, id := newTestRegistry(t, "A", "B")
	cfg := baseConfig(4)
	cfg.TieBreakMode = TieBreakPreviousRoundCountsThenRandom
	cfg.RandomSeed = 99
	cfg.RandomSeedSet = true

	tb, err := NewTieBreaker(cfg, reg, nil)
	if err != nil {
		t.Fatalf("NewTieBreaker: %v", err)
	}

	history := []RoundState{
		{
			Round: 1,
			Tally: map[CandidateID]Weight{
				id["A"]: WeightFromInt(4, 2),
				id["B"]: WeightFromInt(4, 2),
			},
		},
	}

	winner, _, err := tb.Break(context.Background(), []CandidateID{id["A"], id["B"]}, SelectLowest, 2, history)
	if err != nil {
		t.Fatalf("Break: %v", err)
	}
	if winner != id["A"] && winner != id["B"] {
		t.Errorf("expected fallback to pick one of the tied candidates, got %v", winner)
	}
}

func TestTieBreakSingleCandidateNoResolution(t *testing.T) {
	reg, id := newTestRegistry(t, "A", "B")
	cfg := baseConfig(4)
	cfg.TieBreakMode = TieBreakRandom
	cfg.RandomSeed = 1
	cfg.RandomSeedSet = true
	tb, _ := NewTieBreaker(cfg, reg, nil)

	winner, _, err := tb.Break(context.Background(), []CandidateID{id["A"]}, SelectLowest, 1, nil)
	if err != nil {
		t.Fatalf("Break: %v", err)
	}
	if winner != id["A"] {
		t.Errorf("expected sole candidate returned, got %v", winner)
	}
}

type stubOracle struct {
	winner CandidateID
	err    error
}

func (o stubOracle) Decide(ctx context.Context, tied []CandidateID, direction Direction, round int, priorTallies map[CandidateID]Weight) (CandidateID, error) {
	return o.winner, o.err
}

func TestTieBreakInteractiveDelegatesToOracle(t *testing.T) {
	reg, id := newTestRegistry(t, "A", "B")
	cfg := baseConfig(4)
	cfg.TieBreakMode = TieBreakInteractive

	tb, err := NewTieBreaker(cfg, reg, stubOracle{winner: id["B"]})
	if err != nil {
		t.Fatalf("NewTieBreaker: %v", err)
	}
	winner, _, err := tb.Break(context.Background(), []CandidateID{id["A"], id["B"]}, SelectHighest, 1, nil)
	if err != nil {
		t.Fatalf("Break: %v", err)
	}
	if winner != id["B"] {
		t.Errorf("expected oracle's choice B, got %v", winner)
	}
}

func TestTieBreakInteractiveCancellation(t *testing.T) {
	reg, id := newTestRegistry(t, "A", "B")
	cfg := baseConfig(4)
	cfg.TieBreakMode = TieBreakInteractive

	tb, err := NewTieBreaker(cfg, reg, stubOracle{err: ErrOracleCancelled})
	if err != nil {
		t.Fatalf("NewTieBreaker: %v", err)
	}
	_, _, err = tb.Break(context.Background(), []CandidateID{id["A"], id["B"]}, SelectHighest, 1, nil)
	if KindOf(err) != ErrTieBreakCancelled {
		t.Errorf("expected ErrTieBreakCancelled, got %v", err)
	}
}

func TestSplitMix64Reproducible(t *testing.T) {
	a := newSplitMix64(123)
	b := newSplitMix64(123)
	for i := 0; i < 20; i++ {
		if a.next() != b.next() {
			t.Fatalf("splitMix64 with same seed diverged at step %d", i)
		}
	}
}

func TestSplitMix64IntnDistributesWithinBound(t *testing.T) {
	s := newSplitMix64(5)
	for i := 0; i < 1000; i++ {
		v := s.Intn(7)
		if v < 0 || v >= 7 {
			t.Fatalf("Intn(7) returned out-of-range value %d", v)
		}
	}
}
