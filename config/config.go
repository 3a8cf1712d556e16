// Package config loads a contest definition — the declared candidates and
// the rule set to tabulate them with — from a JSON or YAML file on disk.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/rcvtab/tabulator/tabulation"
)

// CandidateSpec is one declared contestant as written in a contest file.
type CandidateSpec struct {
	Code     string `json:"code" yaml:"code"`
	Name     string `json:"name" yaml:"name"`
	Excluded bool   `json:"excluded" yaml:"excluded"`
	UWI      bool   `json:"uwi" yaml:"uwi"`
}

// RulesSpec is the rule set as written in a contest file: every numeric
// enumeration is still a label here, resolved by Resolve.
type RulesSpec struct {
	DecimalPlacesForVoteArithmetic int    `json:"decimalPlacesForVoteArithmetic" yaml:"decimalPlacesForVoteArithmetic"`
	NumberOfWinners                int    `json:"numberOfWinners" yaml:"numberOfWinners"`
	MaxRankingsAllowed             string `json:"maxRankingsAllowed" yaml:"maxRankingsAllowed"`
	MaxSkippedRanksAllowed         string `json:"maxSkippedRanksAllowed" yaml:"maxSkippedRanksAllowed"`
	ExhaustOnDuplicateCandidate    bool   `json:"exhaustOnDuplicateCandidate" yaml:"exhaustOnDuplicateCandidate"`
	TreatBlankAsUndeclaredWriteIn  bool   `json:"treatBlankAsUndeclaredWriteIn" yaml:"treatBlankAsUndeclaredWriteIn"`
	EliminateUWIFirst              bool   `json:"eliminateUwiFirst" yaml:"eliminateUwiFirst"`
	OvervoteRule                   string `json:"overvoteRule" yaml:"overvoteRule"`
	TieBreakMode                   string `json:"tieBreakMode" yaml:"tieBreakMode"`
	MultiSeatMode                  string `json:"multiSeatMode" yaml:"multiSeatMode"`
	BatchElimination               bool   `json:"batchElimination" yaml:"batchElimination"`
	HareQuota                      bool   `json:"hareQuota" yaml:"hareQuota"`
	NonIntegerWinningThreshold     bool   `json:"nonIntegerWinningThreshold" yaml:"nonIntegerWinningThreshold"`
	AllowOnlyOneWinnerPerRound     bool   `json:"allowOnlyOneWinnerPerRound" yaml:"allowOnlyOneWinnerPerRound"`
	MinimumVoteThreshold           string `json:"minimumVoteThreshold" yaml:"minimumVoteThreshold"`
	RandomSeed                     *uint64 `json:"randomSeed" yaml:"randomSeed"`
	Permutation                    []string `json:"permutation" yaml:"permutation"`
	AllowUnrecognizedCandidates    bool     `json:"allowUnrecognizedCandidates" yaml:"allowUnrecognizedCandidates"`
}

// ContestFile is the on-disk shape of a contest definition.
type ContestFile struct {
	Candidates []CandidateSpec `json:"candidates" yaml:"candidates"`
	Rules      RulesSpec       `json:"rules" yaml:"rules"`
}

// Load reads and decodes a contest file. JSON is assumed unless path ends
// in .yaml or .yml.
func Load(path string) (*ContestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contest file: %w", err)
	}

	var cf ContestFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("parse contest file as yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("parse contest file as json: %w", err)
		}
	}
	return &cf, nil
}

// Resolve turns a ContestFile's labels into a tabulation.Config and
// candidate list. Permutation is left unset on the returned Config: it
// names candidates by code, and codes can only be resolved to
// tabulation.CandidateID once a Registry exists, so the caller resolves
// and assigns it after building one (see ResolvePermutation).
func Resolve(cf *ContestFile) (tabulation.Config, []tabulation.Candidate, error) {
	candidates := make([]tabulation.Candidate, len(cf.Candidates))
	for i, c := range cf.Candidates {
		candidates[i] = tabulation.Candidate{Code: c.Code, Name: c.Name, Excluded: c.Excluded, UWI: c.UWI}
	}

	r := cf.Rules
	scale := r.DecimalPlacesForVoteArithmetic
	if scale == 0 {
		scale = 4
	}

	maxRankings, err := resolveCount(r.MaxRankingsAllowed, "numCandidates", len(candidates))
	if err != nil {
		return tabulation.Config{}, nil, fmt.Errorf("maxRankingsAllowed: %w", err)
	}

	maxSkipped, err := resolveCount(r.MaxSkippedRanksAllowed, "unlimited", tabulation.UnlimitedSkippedRanks)
	if err != nil {
		return tabulation.Config{}, nil, fmt.Errorf("maxSkippedRanksAllowed: %w", err)
	}

	overvoteRule, err := tabulation.ParseOvervoteRule(orDefault(r.OvervoteRule, "exhaustIfMultipleContinuing"))
	if err != nil {
		return tabulation.Config{}, nil, err
	}
	tieBreakMode, err := tabulation.ParseTieBreakMode(orDefault(r.TieBreakMode, "random"))
	if err != nil {
		return tabulation.Config{}, nil, err
	}
	multiSeatMode, err := tabulation.ParseMultiSeatMode(orDefault(r.MultiSeatMode, "singleWinner"))
	if err != nil {
		return tabulation.Config{}, nil, err
	}

	minThresholdStr := r.MinimumVoteThreshold
	if minThresholdStr == "" {
		minThresholdStr = "0"
	}
	minThreshold, err := tabulation.ParseWeight(scale, minThresholdStr)
	if err != nil {
		return tabulation.Config{}, nil, fmt.Errorf("minimumVoteThreshold: %w", err)
	}

	numberOfWinners := r.NumberOfWinners
	if numberOfWinners == 0 {
		numberOfWinners = 1
	}

	cfg := tabulation.Config{
		Scale:                         scale,
		NumberOfWinners:               numberOfWinners,
		MaxRankingsAllowed:            maxRankings,
		MaxSkippedRanksAllowed:        maxSkipped,
		ExhaustOnDuplicateCandidate:   r.ExhaustOnDuplicateCandidate,
		TreatBlankAsUndeclaredWriteIn: r.TreatBlankAsUndeclaredWriteIn,
		EliminateUWIFirst:             r.EliminateUWIFirst,
		OvervoteRule:                  overvoteRule,
		TieBreakMode:                  tieBreakMode,
		MultiSeatMode:                 multiSeatMode,
		BatchElimination:              r.BatchElimination,
		HareQuota:                     r.HareQuota,
		NonIntegerWinningThreshold:    r.NonIntegerWinningThreshold,
		AllowOnlyOneWinnerPerRound:    r.AllowOnlyOneWinnerPerRound,
		MinimumVoteThreshold:          minThreshold,
		AllowUnrecognizedCandidates:   r.AllowUnrecognizedCandidates,
	}
	if r.RandomSeed != nil {
		cfg.RandomSeed = *r.RandomSeed
		cfg.RandomSeedSet = true
	}

	return cfg, candidates, nil
}

// ResolvePermutation maps a contest file's permutation codes to
// CandidateIDs via registry, for the usePermutationInConfig tie-break
// mode.
func ResolvePermutation(cf *ContestFile, registry *tabulation.Registry) ([]tabulation.CandidateID, error) {
	if len(cf.Rules.Permutation) == 0 {
		return nil, nil
	}
	out := make([]tabulation.CandidateID, len(cf.Rules.Permutation))
	for i, code := range cf.Rules.Permutation {
		id, ok := registry.ID(code)
		if !ok {
			return nil, fmt.Errorf("permutation entry %d: unknown candidate code %q", i, code)
		}
		out[i] = id
	}
	return out, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// resolveCount parses s as either the sentinel label or a base-10 integer.
func resolveCount(s, sentinelLabel string, sentinelValue int) (int, error) {
	if s == "" {
		return sentinelValue, nil
	}
	if s == sentinelLabel {
		return sentinelValue, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("expected %q or an integer, got %q", sentinelLabel, s)
	}
	return n, nil
}
