// Package service wires the contest loader, the CVR readers, and the
// tabulation core into one synchronous operation: load a contest, read its
// cast vote records, tabulate, and hand back the Record plus whatever
// codes the readers could not recognize. It is the "service object" layer
// in the same sense the teacher's vote.Vote is — the transport or CLI
// adapter in cmd/rcvtab decides how the inputs arrive and how the Record
// leaves, this package only runs the contest.
package service

import (
	"context"
	"fmt"
	"io"

	"github.com/rcvtab/tabulator/config"
	"github.com/rcvtab/tabulator/cvr"
	"github.com/rcvtab/tabulator/tabulation"
)

// Input names one CVR source and the reader that understands its format.
type Input struct {
	Reader cvr.Reader
	Source io.Reader
	Labels cvr.Labels
}

// Contest bundles a resolved contest definition ready to tabulate.
type Contest struct {
	Config     tabulation.Config
	Candidates []tabulation.Candidate
}

// LoadContest reads and resolves a contest file from path. The returned
// Config has no Permutation yet when the file named one by candidate code:
// that requires a Registry, built once the candidate list is final, so
// Run calls ResolvePermutation itself once it has built one.
func LoadContest(path string) (Contest, error) {
	cf, err := config.Load(path)
	if err != nil {
		return Contest{}, err
	}
	cfg, candidates, err := config.Resolve(cf)
	if err != nil {
		return Contest{}, fmt.Errorf("resolve contest %s: %w", path, err)
	}
	return Contest{Config: cfg, Candidates: candidates}, nil
}

// ResolvePermutation finishes loading a contest file's permutation once a
// Registry exists for it, and installs it on cfg.
func ResolvePermutation(path string, cfg *tabulation.Config, registry *tabulation.Registry) error {
	cf, err := config.Load(path)
	if err != nil {
		return err
	}
	permutation, err := config.ResolvePermutation(cf, registry)
	if err != nil {
		return fmt.Errorf("resolve permutation %s: %w", path, err)
	}
	cfg.Permutation = permutation
	return nil
}

// ReadBallots runs every input's reader against registry and concatenates
// the normalized ballots, merging their unrecognized-code counts.
func ReadBallots(registry *tabulation.Registry, inputs []Input) ([]tabulation.Ballot, map[string]int, error) {
	var ballots []tabulation.Ballot
	unrecognized := make(map[string]int)

	for i, in := range inputs {
		result, err := in.Reader.Read(in.Source, registry, in.Labels)
		if err != nil {
			return nil, nil, fmt.Errorf("read cvr input %d: %w", i, err)
		}
		ballots = append(ballots, result.Ballots...)
		for code, n := range result.Unrecognized {
			unrecognized[code] += n
		}
	}
	if len(unrecognized) == 0 {
		unrecognized = nil
	}
	return ballots, unrecognized, nil
}

// Run loads contestPath, reads every input, and tabulates the contest to a
// finished Record. newOracle may be nil when the configured tie-break mode
// never calls one; otherwise it is invoked once the contest's Registry
// exists, so an interactive Oracle can render candidate codes.
func Run(ctx context.Context, contestPath string, inputs []Input, newOracle func(*tabulation.Registry) tabulation.Oracle) (*tabulation.Record, *tabulation.Registry, error) {
	contest, err := LoadContest(contestPath)
	if err != nil {
		return nil, nil, err
	}

	registry, err := tabulation.NewRegistry(contest.Candidates)
	if err != nil {
		return nil, nil, err
	}

	if contest.Config.TieBreakMode == tabulation.TieBreakUsePermutationInConfig {
		if err := ResolvePermutation(contestPath, &contest.Config, registry); err != nil {
			return nil, nil, err
		}
	}

	ballots, unrecognized, err := ReadBallots(registry, inputs)
	if err != nil {
		return nil, nil, err
	}

	var oracle tabulation.Oracle
	if newOracle != nil {
		oracle = newOracle(registry)
	}

	session, err := tabulation.NewSession(contest.Config, contest.Candidates, ballots, oracle, unrecognized)
	if err != nil {
		return nil, nil, err
	}

	record, err := session.Tabulate(ctx)
	return record, registry, err
}
