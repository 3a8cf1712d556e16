package tabulation

// Contribution is one ballot's current weight counting toward a particular
// candidate, by the ballot's position in the session's ballot slice.
type Contribution struct {
	BallotIndex int
	Weight      Weight
}

// SurplusFraction computes f = surplus / tally, truncated at scale, per
// §4.7. It returns zero when tally does not exceed threshold (no surplus
// to transfer — this can happen for a candidate elected on the final round
// with nothing left to distribute).
func SurplusFraction(tally, threshold Weight, scale int) Weight {
	if !tally.GreaterThan(threshold) {
		return WeightFromInt(scale, 0)
	}
	surplus := tally.Sub(threshold)
	return surplus.DivTruncate(tally)
}

// ApplySurplusTransfer multiplies every contribution by fraction (truncated
// per ballot, never rounded) and returns the resulting transfer amounts in
// the same order as contributions, plus the truncation residual: the part
// of the elected candidate's surplus that truncation left undistributed.
// residual is always >= 0 and must be added to the running residual bucket
// by the caller, never assigned to a candidate (§4.7).
//
// contributions must be exactly the ballots currently counting toward the
// elected candidate, with weights summing to tally; callers that violate
// this invariant get a nonsensical residual, not a panic.
func ApplySurplusTransfer(contributions []Contribution, tally, threshold Weight, scale int) (transferred []Weight, residual Weight) {
	fraction := SurplusFraction(tally, threshold, scale)

	surplus := WeightFromInt(scale, 0)
	if tally.GreaterThan(threshold) {
		surplus = tally.Sub(threshold)
	}

	sum := WeightFromInt(scale, 0)
	transferred = make([]Weight, len(contributions))
	for i, c := range contributions {
		t := c.Weight.MulTruncate(fraction)
		transferred[i] = t
		sum = sum.Add(t)
	}

	residual = surplus.Sub(sum)
	return transferred, residual
}

// EliminationTransfer is the outcome of moving one ballot's full weight off
// an eliminated candidate: it either lands on a continuing candidate or the
// ballot exhausts. Whole-ballot transfer never truncates and so never
// contributes to the residual bucket (§4.7).
type EliminationTransfer struct {
	BallotIndex int
	Weight      Weight
	Candidate   CandidateID // valid only when !Exhausted
	Exhausted   bool
	Reason      ExhaustionReason // valid only when Exhausted
}

// ApplyEliminationTransfer re-interprets each contribution to an eliminated
// candidate against the new continuing set and returns where its full
// weight moves. The interpreter is re-run fresh, never patched, per the
// Ballot Interpreter's idempotence contract.
func ApplyEliminationTransfer(ip *Interpreter, ballots []Ballot, contributions []Contribution, continuing []CandidateID) []EliminationTransfer {
	out := make([]EliminationTransfer, len(contributions))
	for i, c := range contributions {
		interp := ip.Interpret(ballots[c.BallotIndex], continuing, c.Weight)
		switch {
		case interp.Vote:
			out[i] = EliminationTransfer{BallotIndex: c.BallotIndex, Weight: c.Weight, Candidate: interp.Candidate}
		case interp.Exhaust:
			out[i] = EliminationTransfer{BallotIndex: c.BallotIndex, Weight: c.Weight, Exhausted: true, Reason: interp.Reason}
		default: // Inactive: already exhausted, weight is zero
			out[i] = EliminationTransfer{BallotIndex: c.BallotIndex, Weight: c.Weight, Exhausted: true, Reason: ReasonNoContinuing}
		}
	}
	return out
}
