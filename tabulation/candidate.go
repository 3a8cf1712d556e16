package tabulation

import (
	"fmt"
	"sort"
)

// CandidateID is the engine's compact handle for a candidate. The
// index↔code↔name bijection lives in a Registry owned by the session and is
// consulted only at the boundary (design note: shared candidate identifiers
// with name lookups).
type CandidateID int

// Candidate is a declared contestant. UWI marks the distinguished
// undeclared-write-in sentinel: it can receive votes but is never elected,
// and is eliminated before a real candidate only when EliminateUWIFirst is
// configured.
type Candidate struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Excluded bool   `json:"excluded"`
	UWI      bool   `json:"uwi"`
}

// Registry is the index↔code↔name bijection for one tabulation session.
// Excluded candidates are recorded but never appear in the initial
// continuing set.
type Registry struct {
	candidates []Candidate
	byCode     map[string]CandidateID
}

// NewRegistry builds a Registry from config-declared candidates. Candidate
// codes must be unique; at most one UWI candidate is allowed.
func NewRegistry(candidates []Candidate) (*Registry, error) {
	if len(candidates) == 0 {
		return nil, MessageError(ErrNoCandidates, "no declared candidates")
	}

	byCode := make(map[string]CandidateID, len(candidates))
	uwiSeen := false
	for i, c := range candidates {
		if c.Code == "" {
			return nil, MessageErrorf(ErrConfigInvalid, "candidate %d has an empty code", i)
		}
		if _, ok := byCode[c.Code]; ok {
			return nil, MessageErrorf(ErrConfigInvalid, "duplicate candidate code %q", c.Code)
		}
		if c.UWI {
			if uwiSeen {
				return nil, MessageError(ErrConfigInvalid, "more than one UWI candidate declared")
			}
			uwiSeen = true
		}
		byCode[c.Code] = CandidateID(i)
	}

	cp := make([]Candidate, len(candidates))
	copy(cp, candidates)

	return &Registry{candidates: cp, byCode: byCode}, nil
}

// ID looks up a candidate by its stable code.
func (r *Registry) ID(code string) (CandidateID, bool) {
	id, ok := r.byCode[code]
	return id, ok
}

// Candidate returns the candidate at id. It panics for an out-of-range id,
// a contract violation the engine never triggers with validated input.
func (r *Registry) Candidate(id CandidateID) Candidate {
	if int(id) < 0 || int(id) >= len(r.candidates) {
		panic(fmt.Sprintf("tabulation: candidate id %d out of range", id))
	}
	return r.candidates[id]
}

// Len returns the number of declared candidates (including UWI and
// excluded candidates).
func (r *Registry) Len() int {
	return len(r.candidates)
}

// UWI returns the UWI candidate's id, if one was declared.
func (r *Registry) UWI() (CandidateID, bool) {
	for i, c := range r.candidates {
		if c.UWI {
			return CandidateID(i), true
		}
	}
	return 0, false
}

// InitialContinuing returns C0: every declared candidate minus the excluded
// ones, ordered lexicographically by code (§5 ordering guarantee when no
// audit permutation applies).
func (r *Registry) InitialContinuing() []CandidateID {
	var ids []CandidateID
	for i, c := range r.candidates {
		if !c.Excluded {
			ids = append(ids, CandidateID(i))
		}
	}
	r.SortByCode(ids)
	return ids
}

// SortByCode sorts ids lexicographically by candidate code, in place.
func (r *Registry) SortByCode(ids []CandidateID) {
	sort.Slice(ids, func(i, j int) bool {
		return r.candidates[ids[i]].Code < r.candidates[ids[j]].Code
	})
}

// Contains reports whether set contains id.
func Contains(set []CandidateID, id CandidateID) bool {
	for _, s := range set {
		if s == id {
			return true
		}
	}
	return false
}

// Remove returns set with every id in remove excluded, preserving order.
func Remove(set []CandidateID, remove []CandidateID) []CandidateID {
	out := make([]CandidateID, 0, len(set))
	for _, id := range set {
		if !Contains(remove, id) {
			out = append(out, id)
		}
	}
	return out
}
