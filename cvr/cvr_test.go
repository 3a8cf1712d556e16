package cvr_test

import (
	"strings"
	"testing"

	"github.com/rcvtab/tabulator/cvr"
	"github.com/rcvtab/tabulator/tabulation"
)

func testRegistry(t *testing.T) *tabulation.Registry {
	t.Helper()
	reg, err := tabulation.NewRegistry([]tabulation.Candidate{
		{Code: "A"}, {Code: "B"}, {Code: "UWI_CAND", UWI: true},
	})
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return reg
}

func TestReadJSONRanksAndOvervote(t *testing.T) {
	reg := testRegistry(t)
	raw := `[
		{"tabulatorId":"t1","batchId":"b1","recordId":"r1","ranks":[
			{"rank":1,"marks":["A"]},
			{"rank":2,"marks":["B"]}
		]},
		{"tabulatorId":"t1","batchId":"b1","recordId":"r2","ranks":[
			{"rank":1,"marks":["A","B"]}
		]}
	]`

	result, err := (cvr.JSONReader{}).Read(strings.NewReader(raw), reg, cvr.DefaultLabels)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(result.Ballots) != 2 {
		t.Fatalf("expected 2 ballots, got %d", len(result.Ballots))
	}
	if len(result.Ballots[1].Ranks[0].Candidates) != 2 {
		t.Errorf("expected overvote rank to carry both marks, got %+v", result.Ballots[1].Ranks[0])
	}
}

func TestReadJSONUnrecognizedCode(t *testing.T) {
	reg := testRegistry(t)
	raw := `[{"ranks":[{"rank":1,"marks":["GHOST"]}]}]`

	result, err := cvr.ReadJSON(strings.NewReader(raw), reg, cvr.DefaultLabels)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if result.Unrecognized["GHOST"] != 1 {
		t.Errorf("expected GHOST counted as unrecognized, got %+v", result.Unrecognized)
	}
}

func TestReadJSONUWILabelMapsToUWICandidate(t *testing.T) {
	reg := testRegistry(t)
	raw := `[{"ranks":[{"rank":1,"marks":["UWI"]}]}]`

	result, err := cvr.ReadJSON(strings.NewReader(raw), reg, cvr.DefaultLabels)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	uwi, _ := reg.UWI()
	if len(result.Ballots[0].Ranks[0].Candidates) != 1 || result.Ballots[0].Ranks[0].Candidates[0] != uwi {
		t.Errorf("expected UWI label resolved to the UWI candidate, got %+v", result.Ballots[0].Ranks[0])
	}
}

func TestReadCSVRankColumns(t *testing.T) {
	reg := testRegistry(t)
	raw := "tabulatorId,batchId,recordId,precinct,ballotStyle,rank1,rank2\n" +
		"t1,b1,r1,p1,s1,A,B\n" +
		"t1,b1,r2,p1,s1,A|B,\n"

	result, err := (cvr.CSVReader{}).Read(strings.NewReader(raw), reg, cvr.DefaultLabels)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(result.Ballots) != 2 {
		t.Fatalf("expected 2 ballots, got %d", len(result.Ballots))
	}
	if len(result.Ballots[1].Ranks[0].Candidates) != 2 {
		t.Errorf("expected pipe-separated overvote marks parsed, got %+v", result.Ballots[1].Ranks[0])
	}
	if result.Ballots[1].Ranks[1].Sentinel != tabulation.SentinelNone || len(result.Ballots[1].Ranks[1].Candidates) != 0 {
		t.Errorf("expected empty trailing cell to be a plain skip, got %+v", result.Ballots[1].Ranks[1])
	}
}

func TestReadCSVTooFewColumnsErrors(t *testing.T) {
	reg := testRegistry(t)
	raw := "tabulatorId,batchId,recordId,precinct,ballotStyle\n"
	if _, err := cvr.ReadCSV(strings.NewReader(raw), reg, cvr.DefaultLabels); err == nil {
		t.Error("expected error for a header with no rank columns")
	}
}
