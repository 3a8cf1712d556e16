package tabulation

import (
	"context"
	"sort"
)

// Session is the top-level entry point: it owns the candidate registry
// and the full ballot set for one contest and produces exactly one Record
// per call to Tabulate, or an error. A Tabulate cancelled by the
// interactive Oracle returns no Record (§5); one that fails on a fatal
// in-round error returns a partial Record marked TerminatedAbnormally
// alongside the error.
type Session struct {
	cfg         Config
	candidates  []Candidate
	registry    *Registry
	ballots     []Ballot
	oracle      Oracle
	unrecognized map[string]int
}

// NewSession validates cfg against candidates and builds a Session ready
// to tabulate ballots. oracle may be nil if the configured tie-break mode
// never needs one; unrecognized carries per-code counts of CVR entries the
// reading stage could not map to a declared candidate, purely for the
// Record's audit trail.
func NewSession(cfg Config, candidates []Candidate, ballots []Ballot, oracle Oracle, unrecognized map[string]int) (*Session, error) {
	registry, err := NewRegistry(candidates)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(len(registry.InitialContinuing())); err != nil {
		return nil, err
	}
	if len(unrecognized) > 0 && !cfg.AllowUnrecognizedCandidates {
		codes := make([]string, 0, len(unrecognized))
		for code := range unrecognized {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		return nil, MessageErrorf(ErrUnrecognizedCandidate, "cast vote records reference undeclared candidate codes %v", codes)
	}
	return &Session{
		cfg:          cfg,
		candidates:   candidates,
		registry:     registry,
		ballots:      ballots,
		oracle:       oracle,
		unrecognized: unrecognized,
	}, nil
}

// Tabulate runs the configured multi-seat mode to completion and returns
// the resulting Tabulation Record.
func (s *Session) Tabulate(ctx context.Context) (*Record, error) {
	if s.cfg.MultiSeatMode == Sequential {
		return s.tabulateSequential(ctx)
	}

	interp := NewInterpreter(s.cfg, s.registry)
	tie, err := NewTieBreaker(s.cfg, s.registry, s.oracle)
	if err != nil {
		return nil, err
	}

	engine := NewEngine(s.cfg, s.registry, interp, tie, s.ballots)
	winners, err := engine.Run(ctx)
	if err != nil {
		return s.abnormalRecord(engine.Rounds(), winners, tie.Permutation(), err)
	}

	return s.assemble(s.candidates, engine.Rounds(), winners, tie.Permutation()), nil
}

// abnormalRecord builds the partial Tabulation Record for a fatal in-round
// failure (§7), or returns (nil, err) unchanged for a cancelled interactive
// Oracle, which exposes no partial state (§5).
func (s *Session) abnormalRecord(rounds []RoundState, winners, permutation []CandidateID, err error) (*Record, error) {
	if KindOf(err) == ErrTieBreakCancelled {
		return nil, err
	}
	rec := s.assemble(s.candidates, rounds, winners, permutation)
	rec.TerminatedAbnormally = true
	rec.FailedRound = len(rounds) + 1
	rec.FailureReason = err.Error()
	return rec, err
}

// tabulateSequential fills one seat at a time, excluding each winner
// before the next seat's election starts over with every ballot restored
// to full weight (§4.6's sequential variant).
func (s *Session) tabulateSequential(ctx context.Context) (*Record, error) {
	candidates := append([]Candidate(nil), s.candidates...)

	var winners []CandidateID
	var allRounds []RoundState
	var permutation []CandidateID

	for seat := 0; seat < s.cfg.NumberOfWinners; seat++ {
		registry, err := NewRegistry(candidates)
		if err != nil {
			return nil, err
		}
		interp := NewInterpreter(s.cfg, registry)
		tie, err := NewTieBreaker(s.cfg, registry, s.oracle)
		if err != nil {
			return nil, err
		}

		engine := NewEngine(s.cfg, registry, interp, tie, s.ballots)
		seatWinners, err := engine.Run(ctx)
		if err != nil {
			offset := len(allRounds)
			rounds := engine.Rounds()
			for j := range rounds {
				rounds[j].Round += offset
			}
			return s.abnormalRecord(append(allRounds, rounds...), append(winners, seatWinners...), permutation, err)
		}
		if len(seatWinners) != 1 {
			return nil, MessageErrorf(ErrInternal, "sequential seat %d resolved to %d winners, expected 1", seat+1, len(seatWinners))
		}

		offset := len(allRounds)
		for _, r := range engine.Rounds() {
			r.Round += offset
			for j := range r.TieBreaks {
				r.TieBreaks[j].Round += offset
			}
			allRounds = append(allRounds, r)
		}

		winner := seatWinners[0]
		winners = append(winners, winner)
		if permutation == nil {
			permutation = tie.Permutation()
		}

		winnerCode := registry.Candidate(winner).Code
		for i := range candidates {
			if candidates[i].Code == winnerCode {
				candidates[i].Excluded = true
			}
		}
	}

	return s.assemble(s.candidates, allRounds, winners, permutation), nil
}

func (s *Session) assemble(candidates []Candidate, rounds []RoundState, winners, permutation []CandidateID) *Record {
	total := WeightFromInt(s.cfg.Scale, int64(len(s.ballots)))
	return &Record{
		Candidates:                 candidates,
		Config:                     s.cfg,
		Rounds:                     rounds,
		Winners:                    winners,
		Permutation:                permutation,
		TotalBallots:               len(s.ballots),
		TotalWeight:                total,
		UnrecognizedCandidateCodes: s.unrecognized,
	}
}
