// Package report renders a completed tabulation.Record for the outbound
// Tabulation Record and summary consumers named in the round engine's
// contract: a full JSON document plus a round-by-round CSV summary.
package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/rcvtab/tabulator/tabulation"
)

// Archiver persists a rendered Document under a contest identifier, the
// seam a durable store sits behind so a caller can archive a Record
// without depending on which store backs it.
type Archiver interface {
	SaveRecord(ctx context.Context, contestID string, doc Document) error
}

// Document is the Record translated from CandidateID handles to stable
// candidate codes, the shape an external reader can consume without
// access to the session's Registry.
type Document struct {
	Candidates                 []tabulation.Candidate `json:"candidates"`
	Winners                    []string               `json:"winners"`
	Permutation                []string               `json:"permutation,omitempty"`
	TotalBallots               int                    `json:"totalBallots"`
	TotalWeight                tabulation.Weight       `json:"totalWeight"`
	UnrecognizedCandidateCodes map[string]int          `json:"unrecognizedCandidateCodes,omitempty"`
	Rounds                     []RoundDocument        `json:"rounds"`

	TerminatedAbnormally bool   `json:"terminatedAbnormally,omitempty"`
	FailedRound          int    `json:"failedRound,omitempty"`
	FailureReason        string `json:"failureReason,omitempty"`
}

// RoundDocument is one RoundState translated to codes.
type RoundDocument struct {
	Round              int                        `json:"round"`
	Tally              map[string]tabulation.Weight `json:"tally"`
	ActiveWeight       tabulation.Weight          `json:"activeWeight"`
	Threshold          tabulation.Weight          `json:"threshold"`
	Elected            []string                   `json:"elected,omitempty"`
	Eliminated         []string                   `json:"eliminated,omitempty"`
	Surplus            map[string]tabulation.Weight `json:"surplus,omitempty"`
	ExhaustedThisRound tabulation.Weight          `json:"exhaustedThisRound"`
	ExhaustedTotal     tabulation.Weight          `json:"exhaustedTotal"`
	ResidualThisRound  tabulation.Weight          `json:"residualThisRound"`
	ResidualTotal      tabulation.Weight          `json:"residualTotal"`
	Note               string                     `json:"note,omitempty"`
}

// Build translates record's CandidateID-keyed data to candidate codes
// using registry, the same Registry the session tabulated with.
func Build(record *tabulation.Record, registry *tabulation.Registry) Document {
	codeOf := func(id tabulation.CandidateID) string {
		return registry.Candidate(id).Code
	}
	codesOf := func(ids []tabulation.CandidateID) []string {
		if len(ids) == 0 {
			return nil
		}
		out := make([]string, len(ids))
		for i, id := range ids {
			out[i] = codeOf(id)
		}
		return out
	}

	doc := Document{
		Candidates:                 record.Candidates,
		Winners:                    codesOf(record.Winners),
		Permutation:                codesOf(record.Permutation),
		TotalBallots:               record.TotalBallots,
		TotalWeight:                record.TotalWeight,
		UnrecognizedCandidateCodes: record.UnrecognizedCandidateCodes,
		TerminatedAbnormally:       record.TerminatedAbnormally,
		FailedRound:                record.FailedRound,
		FailureReason:              record.FailureReason,
	}

	for _, r := range record.Rounds {
		rd := RoundDocument{
			Round:              r.Round,
			Tally:              make(map[string]tabulation.Weight, len(r.Tally)),
			ActiveWeight:       r.ActiveWeight,
			Threshold:          r.Threshold,
			Elected:            codesOf(r.Elected),
			Eliminated:         codesOf(r.Eliminated),
			ExhaustedThisRound: r.ExhaustedThisRound,
			ExhaustedTotal:     r.ExhaustedTotal,
			ResidualThisRound:  r.ResidualThisRound,
			ResidualTotal:      r.ResidualTotal,
			Note:               r.Note,
		}
		for id, w := range r.Tally {
			rd.Tally[codeOf(id)] = w
		}
		if len(r.Surplus) > 0 {
			rd.Surplus = make(map[string]tabulation.Weight, len(r.Surplus))
			for id, w := range r.Surplus {
				rd.Surplus[codeOf(id)] = w
			}
		}
		doc.Rounds = append(doc.Rounds, rd)
	}

	return doc
}

// WriteJSON writes doc as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteCSVSummary writes one row per round: round number, action taken,
// and each candidate's tally, in candidate-code order.
func WriteCSVSummary(w io.Writer, doc Document) error {
	codes := make([]string, len(doc.Candidates))
	for i, c := range doc.Candidates {
		codes[i] = c.Code
	}
	sort.Strings(codes)

	cw := csv.NewWriter(w)
	header := append([]string{"round", "elected", "eliminated", "note"}, codes...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range doc.Rounds {
		row := []string{
			fmt.Sprintf("%d", r.Round),
			fmt.Sprintf("%v", r.Elected),
			fmt.Sprintf("%v", r.Eliminated),
			r.Note,
		}
		for _, code := range codes {
			tally, ok := r.Tally[code]
			if !ok {
				row = append(row, "")
				continue
			}
			row = append(row, tally.String())
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv round %d: %w", r.Round, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
