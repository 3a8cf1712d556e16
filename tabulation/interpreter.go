package tabulation

// Interpretation is the Ballot Interpreter's verdict for one ballot in one
// round: exactly one of Vote, Exhaust, or Inactive (§4.1).
type Interpretation struct {
	Vote     bool
	Exhaust  bool
	Reason   ExhaustionReason
	Candidate CandidateID
	Inactive bool
}

// Interpreter re-derives, each round, what a ballot does against the
// current continuing set. It holds no per-ballot state: calling it twice
// with the same ballot and continuing set returns the same answer (§8
// idempotence).
type Interpreter struct {
	cfg      Config
	uwi      CandidateID
	hasUWI   bool
}

// NewInterpreter builds an Interpreter bound to cfg and registry.
func NewInterpreter(cfg Config, registry *Registry) *Interpreter {
	uwi, hasUWI := registry.UWI()
	return &Interpreter{cfg: cfg, uwi: uwi, hasUWI: hasUWI}
}

// Interpret evaluates ballot against the continuing set. weight is only
// consulted to report Inactive for an already-exhausted ballot; the
// returned Interpretation never carries a weight itself — callers multiply
// by the ballot's current weight themselves.
func (ip *Interpreter) Interpret(ballot Ballot, continuing []CandidateID, weight Weight) Interpretation {
	if weight.IsZero() {
		return Interpretation{Inactive: true}
	}

	maxRank := ip.cfg.MaxRankingsAllowed
	seenCodes := make(map[CandidateID]bool)
	consecutiveSkips := 0

	byRank := make(map[int]RankMark, len(ballot.Ranks))
	for _, mark := range ballot.Ranks {
		byRank[mark.Rank] = mark
	}

	// With exhaustOnDuplicateCandidate on, a candidate repeated at a later
	// rank (within maxRank) exhausts the ballot even when an earlier rank
	// would otherwise have produced a vote.
	if ip.cfg.ExhaustOnDuplicateCandidate {
		marked := make(map[CandidateID]bool)
		for rank := 1; rank <= maxRank; rank++ {
			for _, c := range byRank[rank].Candidates {
				if marked[c] {
					return Interpretation{Exhaust: true, Reason: ReasonDuplicate}
				}
			}
			for _, c := range byRank[rank].Candidates {
				marked[c] = true
			}
		}
	}

	for rank := 1; rank <= maxRank; rank++ {
		mark := byRank[rank] // zero value: no candidates, SentinelNone — a gap is a skip

		candidates := mark.Candidates
		sentinel := mark.Sentinel

		if sentinel == SentinelBlank && ip.hasUWI && ip.cfg.TreatBlankAsUndeclaredWriteIn {
			candidates = []CandidateID{ip.uwi}
			sentinel = SentinelNone
		}

		empty := len(candidates) == 0 && sentinel != SentinelOvervote

		if empty {
			consecutiveSkips++
			if ip.cfg.MaxSkippedRanksAllowed != UnlimitedSkippedRanks && consecutiveSkips > ip.cfg.MaxSkippedRanksAllowed {
				return Interpretation{Exhaust: true, Reason: ReasonSkippedRanks}
			}
			continue
		}
		consecutiveSkips = 0

		if ip.cfg.ExhaustOnDuplicateCandidate {
			for _, c := range candidates {
				if seenCodes[c] {
					return Interpretation{Exhaust: true, Reason: ReasonDuplicate}
				}
			}
		}
		for _, c := range candidates {
			seenCodes[c] = true
		}

		if sentinel == SentinelOvervote || len(candidates) >= 2 {
			switch ip.cfg.OvervoteRule {
			case OvervoteExhaustImmediately:
				return Interpretation{Exhaust: true, Reason: ReasonOvervote}
			case OvervoteAlwaysSkipToNextRank:
				continue
			case OvervoteExhaustIfMultipleContinuing:
				continuingMarks := 0
				var only CandidateID
				for _, c := range candidates {
					if Contains(continuing, c) {
						continuingMarks++
						only = c
					}
				}
				switch {
				case continuingMarks >= 2:
					return Interpretation{Exhaust: true, Reason: ReasonOvervote}
				case continuingMarks == 1:
					return Interpretation{Vote: true, Candidate: only}
				default:
					continue
				}
			}
			continue
		}

		// exactly one mark
		c := candidates[0]
		if Contains(continuing, c) {
			return Interpretation{Vote: true, Candidate: c}
		}
		// eliminated/excluded/not-declared and not in the continuing set: skip
	}

	return Interpretation{Exhaust: true, Reason: ReasonNoContinuing}
}
