// Package cvr implements the CVR Reader contract: decoding vendor cast
// vote record files into the normalized ballots the tabulation core
// consumes, reporting any candidate codes it could not recognize along
// the way.
package cvr

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rcvtab/tabulator/tabulation"
)

// Labels names the vendor-specific strings a reader maps to the core's
// sentinels (§4.1 step 4).
type Labels struct {
	Overvote          string
	Undervote         string
	UndeclaredWriteIn string
	Blank             string
}

// DefaultLabels are the conventional vendor label strings; cmd/rcvtab's
// label flags default to the same values.
var DefaultLabels = Labels{
	Overvote:          "overvote",
	Undervote:         "undervote",
	UndeclaredWriteIn: "UWI",
	Blank:             "",
}

// Result is what a reader hands back: the normalized ballots plus a
// per-code count of marks that matched neither a declared candidate nor a
// configured label.
type Result struct {
	Ballots       []tabulation.Ballot
	Unrecognized  map[string]int
}

func (r *Result) recordUnrecognized(code string) {
	if r.Unrecognized == nil {
		r.Unrecognized = make(map[string]int)
	}
	r.Unrecognized[code]++
}

func (l Labels) resolve(registry *tabulation.Registry, code string, result *Result) (candidates []tabulation.CandidateID, sentinel tabulation.Sentinel, recognized bool) {
	switch code {
	case l.Overvote:
		return nil, tabulation.SentinelOvervote, true
	case l.Undervote:
		return nil, tabulation.SentinelUndervote, true
	case l.Blank:
		return nil, tabulation.SentinelBlank, true
	case l.UndeclaredWriteIn:
		if id, ok := registry.UWI(); ok {
			return []tabulation.CandidateID{id}, tabulation.SentinelNone, true
		}
		result.recordUnrecognized(code)
		return nil, tabulation.SentinelNone, false
	default:
		id, ok := registry.ID(code)
		if !ok {
			result.recordUnrecognized(code)
			return nil, tabulation.SentinelNone, false
		}
		return []tabulation.CandidateID{id}, tabulation.SentinelNone, true
	}
}

// jsonBallot is the on-disk shape one ballot takes in the JSON format.
type jsonBallot struct {
	TabulatorID string `json:"tabulatorId"`
	BatchID     string `json:"batchId"`
	RecordID    string `json:"recordId"`
	Precinct    string `json:"precinct"`
	BallotStyle string `json:"ballotStyle"`
	Ranks       []struct {
		Rank  int      `json:"rank"`
		Marks []string `json:"marks"`
	} `json:"ranks"`
}

// ReadJSON decodes a stream of ballots in the module's JSON CVR format.
func ReadJSON(r io.Reader, registry *tabulation.Registry, labels Labels) (Result, error) {
	var raw []jsonBallot
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Result{}, fmt.Errorf("decode json cvr: %w", err)
	}

	var result Result
	for _, jb := range raw {
		ballot := tabulation.Ballot{
			TabulatorID: jb.TabulatorID,
			BatchID:     jb.BatchID,
			RecordID:    jb.RecordID,
			Precinct:    jb.Precinct,
			BallotStyle: jb.BallotStyle,
		}
		for _, jr := range jb.Ranks {
			mark := tabulation.RankMark{Rank: jr.Rank}
			for _, code := range jr.Marks {
				candidates, sentinel, recognized := labels.resolve(registry, code, &result)
				if !recognized {
					continue
				}
				if sentinel != tabulation.SentinelNone {
					mark.Sentinel = sentinel
				}
				mark.Candidates = append(mark.Candidates, candidates...)
			}
			ballot.Ranks = append(ballot.Ranks, mark)
		}
		result.Ballots = append(result.Ballots, ballot)
	}
	return result, nil
}

// ReadCSV decodes a ranking-by-column CSV format: one header naming the
// source-id columns followed by rank1..rankN, one ballot per data row, a
// cell either a candidate code, a configured label, or empty for a skip.
// A cell may hold multiple marks (an overvote at that rank) separated by
// "|".
func ReadCSV(r io.Reader, registry *tabulation.Registry, labels Labels) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return Result{}, fmt.Errorf("read csv header: %w", err)
	}

	const idColumns = 5 // tabulatorId,batchId,recordId,precinct,ballotStyle
	if len(header) <= idColumns {
		return Result{}, fmt.Errorf("csv cvr: expected at least %d rank columns", 1)
	}

	var result Result
	rowNum := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("read csv row %d: %w", rowNum, err)
		}
		rowNum++

		if len(row) < idColumns {
			return Result{}, fmt.Errorf("csv cvr row %d: too few columns", rowNum)
		}

		ballot := tabulation.Ballot{
			TabulatorID: row[0],
			BatchID:     row[1],
			RecordID:    row[2],
			Precinct:    row[3],
			BallotStyle: row[4],
		}

		for col := idColumns; col < len(row); col++ {
			rank := col - idColumns + 1
			mark := tabulation.RankMark{Rank: rank}
			cell := strings.TrimSpace(row[col])
			if cell == "" {
				ballot.Ranks = append(ballot.Ranks, mark)
				continue
			}
			for _, code := range strings.Split(cell, "|") {
				candidates, sentinel, recognized := labels.resolve(registry, strings.TrimSpace(code), &result)
				if !recognized {
					continue
				}
				if sentinel != tabulation.SentinelNone {
					mark.Sentinel = sentinel
				}
				mark.Candidates = append(mark.Candidates, candidates...)
			}
			ballot.Ranks = append(ballot.Ranks, mark)
		}
		result.Ballots = append(result.Ballots, ballot)
	}

	return result, nil
}

// Reader decodes one vendor CVR export into normalized ballots against a
// fixed candidate Registry and label set. JSONReader and CSVReader are the
// two concrete formats the tabulator ships; a jurisdiction-specific vendor
// format is a third implementation of the same interface.
type Reader interface {
	Read(r io.Reader, registry *tabulation.Registry, labels Labels) (Result, error)
}

// JSONReader decodes the module's JSON CVR format.
type JSONReader struct{}

// Read implements Reader.
func (JSONReader) Read(r io.Reader, registry *tabulation.Registry, labels Labels) (Result, error) {
	return ReadJSON(r, registry, labels)
}

// CSVReader decodes the ranking-by-column CSV format.
type CSVReader struct{}

// Read implements Reader.
func (CSVReader) Read(r io.Reader, registry *tabulation.Registry, labels Labels) (Result, error) {
	return ReadCSV(r, registry, labels)
}
