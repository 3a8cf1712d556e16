package tabulation

// Sentinel distinguishes a rank entry that carries no ordinary candidate
// mark but still has meaning under the CVR Reader contract (§6).
type Sentinel int

const (
	// SentinelNone means this rank carried ordinary candidate marks (or
	// nothing at all — a plain skipped rank).
	SentinelNone Sentinel = iota
	// SentinelOvervote means the vendor recorded a dedicated overvote code
	// at this rank, independent of how many candidate marks accompany it.
	SentinelOvervote
	// SentinelUndervote means the vendor recorded a dedicated undervote
	// code; treated identically to an empty rank.
	SentinelUndervote
	// SentinelBlank means the rank position was left physically blank.
	SentinelBlank
)

// RankMark is one rank position on a ballot: zero, one, or many candidate
// marks (many = overvote at that rank), plus an optional sentinel recorded
// by the CVR reader. Ranks need not be contiguous.
type RankMark struct {
	Rank       int
	Candidates []CandidateID
	Sentinel   Sentinel
}

// Ballot is a normalized cast vote record: an ordered sequence of rank
// entries plus an immutable source identifier and optional precinct label.
// Ballots are shared read-only across the computation; only the per-ballot
// Weight carried alongside a ballot in the engine is mutable.
type Ballot struct {
	TabulatorID string
	BatchID     string
	RecordID    string
	Precinct    string
	BallotStyle string
	Ranks       []RankMark
}

// SourceID returns a stable string identifying this ballot's origin, for
// reporting and diagnostics.
func (b Ballot) SourceID() string {
	return b.TabulatorID + "/" + b.BatchID + "/" + b.RecordID
}

// ExhaustionReason names why a ballot stopped counting toward any
// continuing candidate.
type ExhaustionReason string

const (
	ReasonOvervote      ExhaustionReason = "overvote"
	ReasonSkippedRanks  ExhaustionReason = "skipped_ranks"
	ReasonDuplicate     ExhaustionReason = "duplicate"
	ReasonNoContinuing  ExhaustionReason = "no_continuing"
	// ReasonNoValue marks a ballot whose surplus transfer fraction
	// truncated its carried weight to zero before it reached a next
	// preference (§4.7) — it has nothing left to contribute, distinct
	// from running out of marked preferences.
	ReasonNoValue ExhaustionReason = "no_value"
)
