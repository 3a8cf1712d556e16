package tabulation

import (
	"context"
	"sort"
)

// Engine runs the round-by-round tally/threshold/elect/eliminate/transfer
// loop (§4.6) over a fixed ballot set. A single Engine is used for the
// whole contest in standardSTV, bottomsUp and continueUntilTwoRemain
// modes; sequential mode drives a fresh Engine per seat.
type Engine struct {
	cfg      Config
	registry *Registry
	interp   *Interpreter
	tie      *TieBreaker
	ballots  []Ballot

	weights        []Weight
	assignment     []CandidateID
	exhausted      []bool
	exhaustReason  []ExhaustionReason
	exhaustWeight  []Weight

	residualTotal  Weight
	exhaustedTotal Weight

	rounds []RoundState
}

// NewEngine builds an Engine over ballots, each starting at full weight
// (one vote). Run takes the initial continuing set from the registry
// (config-excluded candidates already left out).
func NewEngine(cfg Config, registry *Registry, interp *Interpreter, tie *TieBreaker, ballots []Ballot) *Engine {
	e := &Engine{
		cfg:            cfg,
		registry:       registry,
		interp:         interp,
		tie:            tie,
		ballots:        ballots,
		weights:        make([]Weight, len(ballots)),
		assignment:     make([]CandidateID, len(ballots)),
		exhausted:      make([]bool, len(ballots)),
		exhaustReason:  make([]ExhaustionReason, len(ballots)),
		exhaustWeight:  make([]Weight, len(ballots)),
		residualTotal:  WeightFromInt(cfg.Scale, 0),
		exhaustedTotal: WeightFromInt(cfg.Scale, 0),
	}
	for i := range ballots {
		e.weights[i] = WeightFromInt(cfg.Scale, 1)
	}
	return e
}

// seed assigns every ballot's initial preference against continuing,
// marking unreachable ballots exhausted immediately.
func (e *Engine) seed(continuing []CandidateID) {
	for i, b := range e.ballots {
		e.place(i, b, continuing)
	}
}

// place (re)computes ballot i's assignment against continuing, given its
// current weight, and records the outcome.
func (e *Engine) place(i int, b Ballot, continuing []CandidateID) {
	interp := e.interp.Interpret(b, continuing, e.weights[i])
	switch {
	case interp.Vote:
		e.assignment[i] = interp.Candidate
		e.exhausted[i] = false
	case interp.Exhaust:
		e.retire(i, interp.Reason)
	default: // Inactive: already zero weight
		e.exhausted[i] = true
	}
}

// retire marks ballot i exhausted, folding its remaining weight into the
// exhausted total and zeroing it so it never re-enters a tally.
func (e *Engine) retire(i int, reason ExhaustionReason) {
	e.exhaustedTotal = e.exhaustedTotal.Add(e.weights[i])
	e.exhaustWeight[i] = e.weights[i]
	e.weights[i] = WeightFromInt(e.cfg.Scale, 0)
	e.exhausted[i] = true
	e.exhaustReason[i] = reason
}

// ExhaustionBreakdown tallies, by reason, the weight of every ballot that
// has exhausted so far.
func (e *Engine) ExhaustionBreakdown() map[ExhaustionReason]Weight {
	out := make(map[ExhaustionReason]Weight)
	for i := range e.ballots {
		if !e.exhausted[i] || e.exhaustReason[i] == "" {
			continue
		}
		reason := e.exhaustReason[i]
		if _, ok := out[reason]; !ok {
			out[reason] = WeightFromInt(e.cfg.Scale, 0)
		}
		out[reason] = out[reason].Add(e.exhaustWeight[i])
	}
	return out
}

// tally sums each continuing candidate's weight and the total active
// weight across all non-exhausted ballots.
func (e *Engine) tally(continuing []CandidateID) (map[CandidateID]Weight, Weight) {
	zero := WeightFromInt(e.cfg.Scale, 0)
	totals := make(map[CandidateID]Weight, len(continuing))
	for _, c := range continuing {
		totals[c] = zero
	}
	active := zero
	for i := range e.ballots {
		if e.exhausted[i] {
			continue
		}
		totals[e.assignment[i]] = totals[e.assignment[i]].Add(e.weights[i])
		active = active.Add(e.weights[i])
	}
	return totals, active
}

func (e *Engine) contributionsFor(c CandidateID) []Contribution {
	var out []Contribution
	for i := range e.ballots {
		if !e.exhausted[i] && e.assignment[i] == c {
			out = append(out, Contribution{BallotIndex: i, Weight: e.weights[i]})
		}
	}
	return out
}

// electionWinners returns the candidates elected this round from tally
// meeting threshold, respecting allowOnlyOneWinnerPerRound and the number
// of seats still open. UWI never meets threshold here: it is never
// elected (§3), only eliminated under normal low-tally rules. Candidates
// are returned ordered by descending tally, ties broken by code.
func (e *Engine) electionWinners(ctx context.Context, round int, tally map[CandidateID]Weight, threshold Weight, continuing []CandidateID, seatsOpen int) ([]CandidateID, []TieBreakEvent, error) {
	uwi, hasUWI := e.registry.UWI()
	var meeting []CandidateID
	for _, c := range continuing {
		if hasUWI && c == uwi {
			continue
		}
		if Elected(tally[c], threshold) {
			meeting = append(meeting, c)
		}
	}
	if len(meeting) == 0 {
		return nil, nil, nil
	}
	e.registry.SortByCode(meeting)

	var events []TieBreakEvent

	if e.cfg.AllowOnlyOneWinnerPerRound && len(meeting) > 1 {
		winner, tied, events2, err := e.highestAmong(ctx, round, meeting, tally)
		if err != nil {
			return nil, nil, err
		}
		events = append(events, events2...)
		_ = tied
		return []CandidateID{winner}, events, nil
	}

	if len(meeting) <= seatsOpen {
		sortByDescendingTally(meeting, tally, e.registry)
		return meeting, events, nil
	}

	// More candidates meet threshold than seats remain: take the
	// highest-tallying seatsOpen of them, breaking boundary ties.
	chosen := make([]CandidateID, 0, seatsOpen)
	pool := append([]CandidateID(nil), meeting...)
	for len(chosen) < seatsOpen {
		winner, _, events2, err := e.highestAmong(ctx, round, pool, tally)
		if err != nil {
			return nil, nil, err
		}
		events = append(events, events2...)
		chosen = append(chosen, winner)
		pool = Remove(pool, []CandidateID{winner})
	}
	sortByDescendingTally(chosen, tally, e.registry)
	return chosen, events, nil
}

// sortByDescendingTally orders ids by descending tally, breaking ties by
// candidate code, the order §8's election narrative reports winners in.
func sortByDescendingTally(ids []CandidateID, tally map[CandidateID]Weight, registry *Registry) {
	registry.SortByCode(ids)
	sort.SliceStable(ids, func(i, j int) bool {
		return tally[ids[i]].GreaterThan(tally[ids[j]])
	})
}

// highestAmong picks the single highest-tally candidate from pool,
// invoking the tie breaker (SelectHighest) if more than one shares the
// max.
func (e *Engine) highestAmong(ctx context.Context, round int, pool []CandidateID, tally map[CandidateID]Weight) (CandidateID, []CandidateID, []TieBreakEvent, error) {
	best := pool[0]
	var tied []CandidateID
	for _, c := range pool {
		switch {
		case tally[c].GreaterThan(tally[best]):
			best = c
			tied = []CandidateID{c}
		case tally[c].Cmp(tally[best]) == 0:
			tied = append(tied, c)
		}
	}
	if len(tied) <= 1 {
		return best, tied, nil, nil
	}
	winner, event, err := e.tie.Break(ctx, tied, SelectHighest, round, e.rounds)
	if err != nil {
		return 0, nil, nil, err
	}
	return winner, tied, []TieBreakEvent{event}, nil
}

// lowestAmong picks the single lowest-tally candidate from pool, invoking
// the tie breaker (SelectLowest) if more than one shares the minimum.
func (e *Engine) lowestAmong(ctx context.Context, round int, pool []CandidateID, tally map[CandidateID]Weight) (CandidateID, []TieBreakEvent, error) {
	worst := pool[0]
	var tied []CandidateID
	for _, c := range pool {
		switch {
		case tally[c].GreaterThan(tally[worst]):
		case worst != c && tally[worst].GreaterThan(tally[c]):
			worst = c
			tied = []CandidateID{c}
		case tally[c].Cmp(tally[worst]) == 0:
			tied = append(tied, c)
		}
	}
	if len(tied) <= 1 {
		return worst, nil, nil
	}
	winner, event, err := e.tie.Break(ctx, tied, SelectLowest, round, e.rounds)
	if err != nil {
		return 0, nil, err
	}
	return winner, []TieBreakEvent{event}, nil
}

// eliminationSet decides who to eliminate this round: a minimum-vote-
// threshold batch, a safe batch elimination, or a single lowest candidate.
func (e *Engine) eliminationSet(ctx context.Context, round int, tally map[CandidateID]Weight, continuing []CandidateID) ([]CandidateID, []TieBreakEvent, string, error) {
	if !e.cfg.MinimumVoteThreshold.IsZero() {
		var below []CandidateID
		for _, c := range continuing {
			if tally[c].Cmp(e.cfg.MinimumVoteThreshold) < 0 {
				below = append(below, c)
			}
		}
		if len(below) > 0 && len(below) < len(continuing) {
			e.registry.SortByCode(below)
			return below, nil, "minimum vote threshold batch elimination", nil
		}
	}

	if e.cfg.BatchElimination {
		if batch := safeBatch(continuing, tally, e.registry); len(batch) > 1 {
			return batch, nil, "safe batch elimination", nil
		}
	}

	worst, events, err := e.lowestAmong(ctx, round, continuing, tally)
	if err != nil {
		return nil, nil, "", err
	}
	return []CandidateID{worst}, events, "", nil
}

// safeBatch returns the set of lowest candidates that, even combined,
// could not catch the next-higher candidate, and so can all be eliminated
// together without affecting the outcome.
func safeBatch(continuing []CandidateID, tally map[CandidateID]Weight, registry *Registry) []CandidateID {
	ordered := append([]CandidateID(nil), continuing...)
	registry.SortByCode(ordered)
	// Sort ascending by tally (stable on code for ties).
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && tally[ordered[j]].Cmp(tally[ordered[j-1]]) < 0; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}

	running := tally[ordered[0]]
	cut := 1
	for cut < len(ordered) {
		next := tally[ordered[cut]]
		if running.GreaterThanOrEqual(next) {
			break
		}
		running = running.Add(next)
		cut++
	}
	return ordered[:cut]
}

// applyElection freezes each elected candidate's tally, transfers its
// surplus fractionally, and removes it from continuing. It returns the
// resulting continuing set and the per-candidate surplus transferred, for
// the round record.
func (e *Engine) applyElection(elected []CandidateID, tally map[CandidateID]Weight, threshold Weight, continuing []CandidateID) ([]CandidateID, map[CandidateID]Weight) {
	surplusByCandidate := make(map[CandidateID]Weight, len(elected))
	next := continuing
	for _, c := range elected {
		next = Remove(next, []CandidateID{c})
	}

	for _, c := range elected {
		contributions := e.contributionsFor(c)
		transferred, residual := ApplySurplusTransfer(contributions, tally[c], threshold, e.cfg.Scale)
		e.residualTotal = e.residualTotal.Add(residual)

		surplus := WeightFromInt(e.cfg.Scale, 0)
		if tally[c].GreaterThan(threshold) {
			surplus = tally[c].Sub(threshold)
		}
		surplusByCandidate[c] = surplus

		for k, contrib := range contributions {
			i := contrib.BallotIndex
			e.weights[i] = transferred[k]
			if e.weights[i].IsZero() {
				// No surplus fraction reached this ballot (c met but did
				// not exceed threshold): its weight is spent funding c's
				// quota and folds into the exhausted bucket rather than
				// vanishing from the conservation accounting.
				e.exhaustWeight[i] = contrib.Weight
				e.exhaustedTotal = e.exhaustedTotal.Add(contrib.Weight)
				e.exhausted[i] = true
				e.exhaustReason[i] = ReasonNoValue
				continue
			}
			e.place(i, e.ballots[i], next)
		}
	}

	return next, surplusByCandidate
}

// applyElimination moves every ballot off the eliminated candidates at
// full weight, landing on the next continuing preference or exhausting.
func (e *Engine) applyElimination(eliminated []CandidateID, continuing []CandidateID) []CandidateID {
	next := continuing
	for _, c := range eliminated {
		next = Remove(next, []CandidateID{c})
	}

	for _, c := range eliminated {
		contributions := e.contributionsFor(c)
		for _, transfer := range ApplyEliminationTransfer(e.interp, e.ballots, contributions, next) {
			i := transfer.BallotIndex
			switch {
			case transfer.Exhausted:
				e.retire(i, transfer.Reason)
			default:
				e.assignment[i] = transfer.Candidate
				e.exhausted[i] = false
			}
		}
	}

	return next
}

// recordRound appends a RoundState built from tally and the exhausted/
// residual totals as they stood immediately before this round's transfer
// ran (exhaustedTotal/residualTotal are a snapshot the caller takes right
// after computing tally, before calling applyElection/applyElimination).
// Recording from that single consistent point keeps sum(tally) +
// exhaustedTotal + residualTotal equal to the total ballot weight for
// every round (§8): a ballot that exhausts during this round's own
// transfer is still counted in its pre-transfer candidate's tally here,
// and only shows up in the exhausted bucket starting next round.
func (e *Engine) recordRound(round int, tally map[CandidateID]Weight, active, threshold Weight, elected, eliminated []CandidateID, surplus map[CandidateID]Weight, events []TieBreakEvent, note string, exhaustedTotal, residualTotal Weight) RoundState {
	rs := newRoundState(round)
	rs.ActiveWeight = active
	rs.Threshold = threshold
	rs.Elected = elected
	rs.Eliminated = eliminated
	rs.Note = note
	rs.TieBreaks = events
	for c, w := range tally {
		rs.Tally[c] = w
	}
	if surplus != nil {
		rs.Surplus = surplus
	}
	rs.ExhaustedTotal = exhaustedTotal
	rs.ResidualTotal = residualTotal
	if len(e.rounds) > 0 {
		prev := e.rounds[len(e.rounds)-1]
		rs.ExhaustedThisRound = exhaustedTotal.Sub(prev.ExhaustedTotal)
		rs.ResidualThisRound = residualTotal.Sub(prev.ResidualTotal)
	} else {
		rs.ExhaustedThisRound = exhaustedTotal
		rs.ResidualThisRound = residualTotal
	}
	e.rounds = append(e.rounds, rs)
	return rs
}

// runToSeats drives the standard tally/elect-or-eliminate/transfer loop
// until seats candidates are elected or continuing is exhausted. It backs
// singleWinner, standardSTV and each seat of sequential mode.
func (e *Engine) runToSeats(ctx context.Context, continuing []CandidateID, seats int, startRound int) ([]CandidateID, int, error) {
	var elected []CandidateID
	round := startRound
	uwi, hasUWI := e.registry.UWI()

	for len(elected) < seats {
		if len(continuing) == 0 {
			return elected, round, MessageError(ErrNoCandidates, "no continuing candidates remain before all seats were filled")
		}

		nonUWI := e.nonUWIContinuing(continuing)

		// UWI is never elected (§3): if it would otherwise be swept into
		// the "remaining fill all open seats" rule below, eliminate it
		// this round instead so only real candidates ever fill a seat.
		if hasUWI && len(nonUWI) <= seats-len(elected) && Contains(continuing, uwi) {
			tally, active := e.tally(continuing)
			threshold := Threshold(e.cfg, active)
			preExhausted, preResidual := e.exhaustedTotal, e.residualTotal
			nextContinuing := e.applyElimination([]CandidateID{uwi}, continuing)
			e.recordRound(round, tally, active, threshold, nil, []CandidateID{uwi}, nil, nil, "undeclared write-in excluded from remaining-seat fill", preExhausted, preResidual)
			continuing = nextContinuing
			round++
			continue
		}

		if len(nonUWI) <= seats-len(elected) {
			tally, active := e.tally(continuing)
			threshold := Threshold(e.cfg, active)
			winners := append([]CandidateID(nil), nonUWI...)
			preExhausted, preResidual := e.exhaustedTotal, e.residualTotal
			_, surplus := e.applyElection(winners, tally, threshold, continuing)
			sortByDescendingTally(winners, tally, e.registry)
			e.recordRound(round, tally, active, threshold, winners, nil, surplus, nil, "remaining continuing candidates fill all open seats", preExhausted, preResidual)
			elected = append(elected, winners...)
			round++
			break
		}

		tally, active := e.tally(continuing)
		threshold := Threshold(e.cfg, active)

		winners, events, err := e.electionWinners(ctx, round, tally, threshold, continuing, seats-len(elected))
		if err != nil {
			return nil, round, err
		}

		if len(winners) > 0 {
			preExhausted, preResidual := e.exhaustedTotal, e.residualTotal
			nextContinuing, surplus := e.applyElection(winners, tally, threshold, continuing)
			e.recordRound(round, tally, active, threshold, winners, nil, surplus, events, "", preExhausted, preResidual)
			elected = append(elected, winners...)
			continuing = nextContinuing
			round++
			continue
		}

		eliminated, tbEvents, note, err := e.eliminationSet(ctx, round, tally, continuing)
		if err != nil {
			return nil, round, err
		}
		if len(eliminated) == 0 {
			return nil, round, MessageError(ErrNoProgress, "round neither elected nor eliminated any candidate")
		}

		preExhausted, preResidual := e.exhaustedTotal, e.residualTotal
		nextContinuing := e.applyElimination(eliminated, continuing)
		e.recordRound(round, tally, active, threshold, nil, eliminated, nil, tbEvents, note, preExhausted, preResidual)
		continuing = nextContinuing
		round++
	}

	return elected, round, nil
}

// nonUWIContinuing returns continuing with the UWI candidate, if any,
// removed.
func (e *Engine) nonUWIContinuing(continuing []CandidateID) []CandidateID {
	uwi, ok := e.registry.UWI()
	if !ok {
		return continuing
	}
	return Remove(continuing, []CandidateID{uwi})
}

// runBottomsUp eliminates the lowest candidate each round until exactly
// seats remain, then elects all of them simultaneously (§4.6).
func (e *Engine) runBottomsUp(ctx context.Context, continuing []CandidateID, seats int, startRound int) ([]CandidateID, error) {
	round := startRound
	uwi, hasUWI := e.registry.UWI()

	for len(continuing) > seats || (hasUWI && Contains(continuing, uwi)) {
		tally, active := e.tally(continuing)
		threshold := Threshold(e.cfg, active)

		var eliminated []CandidateID
		var events []TieBreakEvent
		var note string
		var err error
		switch {
		case hasUWI && len(continuing) <= seats && Contains(continuing, uwi):
			// UWI is never elected (§3): if it survived down to the last
			// seats candidates, it is excluded here rather than declared
			// a winner below.
			eliminated, note = []CandidateID{uwi}, "undeclared write-in excluded from bottoms-up election"
		default:
			eliminated, events, note, err = e.eliminationSet(ctx, round, tally, continuing)
			if err != nil {
				return nil, err
			}
		}
		if len(eliminated) == 0 {
			return nil, MessageError(ErrNoProgress, "bottoms-up round could not eliminate a candidate")
		}
		// A multi-candidate elimination that would leave fewer than
		// seats candidates is cut to its first member; one that leaves at
		// least seats candidates is applied whole.
		if len(eliminated) > 1 && len(continuing)-len(eliminated) < seats {
			eliminated = eliminated[:1]
		}
		preExhausted, preResidual := e.exhaustedTotal, e.residualTotal
		next := e.applyElimination(eliminated, continuing)
		e.recordRound(round, tally, active, threshold, nil, eliminated, nil, events, note, preExhausted, preResidual)
		continuing = next
		round++
	}

	tally, active := e.tally(continuing)
	threshold := Threshold(e.cfg, active)
	winners := append([]CandidateID(nil), continuing...)
	sortByDescendingTally(winners, tally, e.registry)
	e.recordRound(round, tally, active, threshold, winners, nil, nil, nil, "bottoms-up threshold reached: remaining candidates elected", e.exhaustedTotal, e.residualTotal)
	return winners, nil
}

// runContinueUntilTwoRemain eliminates every round (ignoring the majority
// threshold) until exactly two candidates remain, then elects the higher
// of the two.
func (e *Engine) runContinueUntilTwoRemain(ctx context.Context, continuing []CandidateID, startRound int) ([]CandidateID, error) {
	round := startRound
	uwi, hasUWI := e.registry.UWI()

	for len(continuing) > 2 || (hasUWI && Contains(continuing, uwi)) {
		tally, active := e.tally(continuing)
		threshold := Threshold(e.cfg, active)

		var eliminated []CandidateID
		var events []TieBreakEvent
		var note string
		var err error
		switch {
		case hasUWI && len(continuing) <= 2 && Contains(continuing, uwi):
			// UWI is never elected (§3): exclude it rather than let it
			// reach the final head-to-head below.
			eliminated, note = []CandidateID{uwi}, "undeclared write-in excluded from continue-until-two-remain"
		default:
			eliminated, events, note, err = e.eliminationSet(ctx, round, tally, continuing)
			if err != nil {
				return nil, err
			}
		}
		if len(eliminated) == 0 {
			return nil, MessageError(ErrNoProgress, "continue-until-two-remain round could not eliminate a candidate")
		}
		preExhausted, preResidual := e.exhaustedTotal, e.residualTotal
		next := e.applyElimination(eliminated, continuing)
		e.recordRound(round, tally, active, threshold, nil, eliminated, nil, events, note, preExhausted, preResidual)
		continuing = next
		round++
	}
	if len(continuing) == 0 {
		return nil, MessageError(ErrNoCandidates, "no continuing candidates remain")
	}
	if len(continuing) == 1 {
		tally, active := e.tally(continuing)
		threshold := Threshold(e.cfg, active)
		e.recordRound(round, tally, active, threshold, continuing, nil, nil, nil, "single candidate remains", e.exhaustedTotal, e.residualTotal)
		return continuing, nil
	}

	tally, active := e.tally(continuing)
	threshold := Threshold(e.cfg, active)
	winner, events, _, err := e.highestAmong(ctx, round, continuing, tally)
	if err != nil {
		return nil, err
	}
	e.recordRound(round, tally, active, threshold, []CandidateID{winner}, nil, nil, events, "final two: higher tally elected", e.exhaustedTotal, e.residualTotal)
	return []CandidateID{winner}, nil
}

// Run drives the whole contest for a non-sequential multi-seat mode, or
// exactly one seat for sequential mode (the caller restarts a fresh Engine
// per seat in that case; see the session orchestrator).
func (e *Engine) Run(ctx context.Context) ([]CandidateID, error) {
	continuing := e.registry.InitialContinuing()
	round := 1

	if e.cfg.EliminateUWIFirst {
		if uwi, ok := e.registry.UWI(); ok && Contains(continuing, uwi) {
			e.seed(continuing)
			tally, active := e.tally(continuing)
			threshold := Threshold(e.cfg, active)
			preExhausted, preResidual := e.exhaustedTotal, e.residualTotal
			next := e.applyElimination([]CandidateID{uwi}, continuing)
			e.recordRound(round, tally, active, threshold, nil, []CandidateID{uwi}, nil, nil, "undeclared write-in eliminated first", preExhausted, preResidual)
			continuing = next
			round++
		} else {
			e.seed(continuing)
		}
	} else {
		e.seed(continuing)
	}

	switch e.cfg.MultiSeatMode {
	case SingleWinner, StandardSTV:
		elected, _, err := e.runToSeats(ctx, continuing, e.cfg.NumberOfWinners, round)
		return elected, err
	case Sequential:
		elected, _, err := e.runToSeats(ctx, continuing, 1, round)
		return elected, err
	case ContinueUntilTwoRemain:
		return e.runContinueUntilTwoRemain(ctx, continuing, round)
	case BottomsUp:
		return e.runBottomsUp(ctx, continuing, e.cfg.NumberOfWinners, round)
	default:
		panic("tabulation: unknown multi-seat mode")
	}
}

// Rounds returns every RoundState recorded so far, in order.
func (e *Engine) Rounds() []RoundState {
	return e.rounds
}

// ResidualTotal returns the cumulative truncation residual set aside so
// far; it is never assigned to any candidate.
func (e *Engine) ResidualTotal() Weight {
	return e.residualTotal
}

// ExhaustedTotal returns the cumulative weight of ballots that have
// stopped counting toward any candidate.
func (e *Engine) ExhaustedTotal() Weight {
	return e.exhaustedTotal
}

