package tabulation

import "testing"

func TestSurplusFractionTruncates(t *testing.T) {
	// Scenario 3: surplus for A = 2, tally = 6; fraction = 2/6 = 0.3333
	// truncated at scale 4.
	tally := WeightFromInt(4, 6)
	threshold := WeightFromInt(4, 4)
	got := SurplusFraction(tally, threshold, 4)
	want, _ := ParseWeight(4, "0.3333")
	if got.Cmp(want) != 0 {
		t.Errorf("fraction: got %s, want %s", got, want)
	}
}

func TestSurplusFractionZeroWhenNoSurplus(t *testing.T) {
	tally := WeightFromInt(4, 4)
	threshold := WeightFromInt(4, 4)
	got := SurplusFraction(tally, threshold, 4)
	if !got.IsZero() {
		t.Errorf("expected zero fraction at exact threshold, got %s", got)
	}
}

func TestApplySurplusTransferConservesWeightModuloResidual(t *testing.T) {
	// 6 ballots for A, threshold 4: surplus 2, fraction 0.3333.
	contributions := make([]Contribution, 6)
	for i := range contributions {
		contributions[i] = Contribution{BallotIndex: i, Weight: WeightFromInt(4, 1)}
	}
	tally := WeightFromInt(4, 6)
	threshold := WeightFromInt(4, 4)

	transferred, residual := ApplySurplusTransfer(contributions, tally, threshold, 4)

	sum := WeightFromInt(4, 0)
	for _, w := range transferred {
		sum = sum.Add(w)
	}
	surplus := tally.Sub(threshold)
	if got := sum.Add(residual); got.Cmp(surplus) != 0 {
		t.Errorf("transferred + residual should equal surplus: got %s, want %s", got, surplus)
	}
	// Each individual contribution: 1 * 0.3333 truncated = 0.3333.
	want, _ := ParseWeight(4, "0.3333")
	for i, w := range transferred {
		if w.Cmp(want) != 0 {
			t.Errorf("contribution %d: got %s, want %s", i, w, want)
		}
	}
	// 6 * 0.3333 = 1.9998, surplus is 2.0000, residual = 0.0002.
	wantResidual, _ := ParseWeight(4, "0.0002")
	if residual.Cmp(wantResidual) != 0 {
		t.Errorf("residual: got %s, want %s", residual, wantResidual)
	}
}

func TestApplySurplusTransferNoSurplus(t *testing.T) {
	contributions := []Contribution{{BallotIndex: 0, Weight: WeightFromInt(4, 1)}}
	tally := WeightFromInt(4, 1)
	threshold := WeightFromInt(4, 1)
	transferred, residual := ApplySurplusTransfer(contributions, tally, threshold, 4)
	if !transferred[0].IsZero() {
		t.Errorf("expected zero transfer with no surplus, got %s", transferred[0])
	}
	if !residual.IsZero() {
		t.Errorf("expected zero residual with no surplus, got %s", residual)
	}
}

func TestApplyEliminationTransferWholeWeight(t *testing.T) {
	reg, id := newTestRegistry(t, "A", "B", "C")
	cfg := baseConfig(4)
	ip := NewInterpreter(cfg, reg)

	ballots := []Ballot{
		{Ranks: []RankMark{rank(1, id["B"]), rank(2, id["A"])}},
		{Ranks: []RankMark{rank(1, id["B"])}}, // no next preference
	}
	contributions := []Contribution{
		{BallotIndex: 0, Weight: WeightFromInt(4, 1)},
		{BallotIndex: 1, Weight: WeightFromInt(4, 1)},
	}
	continuing := []CandidateID{id["A"], id["C"]} // B eliminated

	out := ApplyEliminationTransfer(ip, ballots, contributions, continuing)
	if out[0].Exhausted || out[0].Candidate != id["A"] {
		t.Errorf("ballot 0 should transfer to A whole, got %+v", out[0])
	}
	if out[0].Weight.Cmp(WeightFromInt(4, 1)) != 0 {
		t.Errorf("whole transfer must not truncate weight, got %s", out[0].Weight)
	}
	if !out[1].Exhausted || out[1].Reason != ReasonNoContinuing {
		t.Errorf("ballot 1 should exhaust with no next preference, got %+v", out[1])
	}
}
