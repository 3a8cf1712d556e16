package tabulation

import (
	"context"
	"testing"
)

func TestConfigValidateRejectsSequentialWithOneSeat(t *testing.T) {
	cfg := baseConfig(4)
	cfg.MultiSeatMode = Sequential
	cfg.NumberOfWinners = 1
	if err := cfg.Validate(3); KindOf(err) != ErrConfigInvalid {
		t.Errorf("expected ConfigInvalid, got %v", err)
	}
}

func TestConfigValidateRejectsHareQuotaSingleSeat(t *testing.T) {
	cfg := baseConfig(4)
	cfg.HareQuota = true
	if err := cfg.Validate(3); KindOf(err) != ErrConfigInvalid {
		t.Errorf("expected ConfigInvalid, got %v", err)
	}
}

func TestConfigValidateRejectsMissingRandomSeed(t *testing.T) {
	cfg := baseConfig(4)
	cfg.TieBreakMode = TieBreakRandom
	cfg.Permutation = nil
	if err := cfg.Validate(2); KindOf(err) != ErrConfigInvalid {
		t.Errorf("expected ConfigInvalid for missing randomSeed, got %v", err)
	}
}

func TestConfigValidateRejectsShortPermutation(t *testing.T) {
	cfg := baseConfig(4)
	cfg.Permutation = []CandidateID{0}
	if err := cfg.Validate(3); KindOf(err) != ErrConfigInvalid {
		t.Errorf("expected ConfigInvalid for short permutation, got %v", err)
	}
}

func TestNewSessionRejectsNoCandidates(t *testing.T) {
	cfg := baseConfig(4)
	_, err := NewSession(cfg, nil, nil, nil, nil)
	if KindOf(err) != ErrNoCandidates {
		t.Errorf("expected NoCandidates, got %v", err)
	}
}

func TestNewSessionRejectsDuplicateCode(t *testing.T) {
	cfg := baseConfig(4)
	cfg.Permutation = []CandidateID{0, 1}
	candidates := []Candidate{{Code: "A"}, {Code: "A"}}
	_, err := NewSession(cfg, candidates, nil, nil, nil)
	if KindOf(err) != ErrConfigInvalid {
		t.Errorf("expected ConfigInvalid for duplicate code, got %v", err)
	}
}

func TestBottomsUpElectsRemainingSimultaneously(t *testing.T) {
	codes := []string{"A", "B", "C", "D"}
	cfg := baseConfig(4)
	cfg.MultiSeatMode = BottomsUp
	cfg.NumberOfWinners = 2
	cfg.TieBreakMode = TieBreakUsePermutationInConfig
	cfg.Permutation = []CandidateID{0, 1, 2, 3}

	ids := map[string]CandidateID{"A": 0, "B": 1, "C": 2, "D": 3}
	var ballots []Ballot
	ballots = append(ballots, repeat(5, ballotFor(ids, "A", "C"))...)
	ballots = append(ballots, repeat(4, ballotFor(ids, "B", "C"))...)
	ballots = append(ballots, repeat(2, ballotFor(ids, "C", "A"))...)
	ballots = append(ballots, repeat(1, ballotFor(ids, "D", "A"))...)

	s, resolved := sessionFixture(t, cfg, codes, ballots)
	rec, err := s.Tabulate(context.Background())
	if err != nil {
		t.Fatalf("Tabulate: %v", err)
	}
	if len(rec.Winners) != 2 {
		t.Fatalf("expected exactly 2 winners for bottoms-up with 2 seats, got %v", rec.Winners)
	}
	last := rec.Rounds[len(rec.Rounds)-1]
	if len(last.Elected) != 2 {
		t.Fatalf("final round should elect both remaining candidates simultaneously, got %v", last.Elected)
	}
	for _, w := range rec.Winners {
		if w == resolved["D"] {
			t.Errorf("D (lowest first-preference support) should not survive bottoms-up, got winners %v", rec.Winners)
		}
	}
}

func TestRecordDeterminismBitForBitJSONShape(t *testing.T) {
	codes := []string{"A", "B"}
	cfg := baseConfig(4)
	cfg.Permutation = []CandidateID{0, 1}
	ids := map[string]CandidateID{"A": 0, "B": 1}
	ballots := append(repeat(3, ballotFor(ids, "A", "B")), repeat(2, ballotFor(ids, "B", "A"))...)

	run := func() *Record {
		s, _ := sessionFixture(t, cfg, codes, ballots)
		rec, err := s.Tabulate(context.Background())
		if err != nil {
			t.Fatalf("Tabulate: %v", err)
		}
		return rec
	}

	a := run()
	b := run()
	if len(a.Rounds) != len(b.Rounds) {
		t.Fatalf("round count differs: %d vs %d", len(a.Rounds), len(b.Rounds))
	}
	for i := range a.Rounds {
		for c, w := range a.Rounds[i].Tally {
			if w.Cmp(b.Rounds[i].Tally[c]) != 0 {
				t.Errorf("round %d candidate %v tally differs: %s vs %s", i, c, w, b.Rounds[i].Tally[c])
			}
		}
	}
}
