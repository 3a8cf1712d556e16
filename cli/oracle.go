// Package cli holds the interactive adapters cmd/rcvtab wires into the
// tabulation core: a stdin/stdout prompt implementing tabulation.Oracle for
// the interactive and stopCountingAndAsk tie-break modes.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rcvtab/tabulator/tabulation"
)

// PromptOracle resolves a tie by asking the operator to type a candidate
// code at a terminal. A blank line or "q" cancels the tabulation.
type PromptOracle struct {
	In       *bufio.Reader
	Out      io.Writer
	Registry *tabulation.Registry
}

// NewPromptOracle builds a PromptOracle reading from in and writing
// prompts to out.
func NewPromptOracle(in io.Reader, out io.Writer, registry *tabulation.Registry) *PromptOracle {
	return &PromptOracle{In: bufio.NewReader(in), Out: out, Registry: registry}
}

// Decide implements tabulation.Oracle.
func (p *PromptOracle) Decide(ctx context.Context, tied []tabulation.CandidateID, direction tabulation.Direction, round int, priorTallies map[tabulation.CandidateID]tabulation.Weight) (tabulation.CandidateID, error) {
	verb := "winner"
	if direction == tabulation.SelectLowest {
		verb = "candidate to eliminate"
	}

	codes := make([]string, len(tied))
	byCode := make(map[string]tabulation.CandidateID, len(tied))
	for i, id := range tied {
		code := p.Registry.Candidate(id).Code
		codes[i] = code
		byCode[code] = id
	}

	fmt.Fprintf(p.Out, "round %d: tie among [%s], choose the %s (blank to cancel): ", round, strings.Join(codes, ", "), verb)

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	line, err := p.In.ReadString('\n')
	if err != nil && line == "" {
		return 0, fmt.Errorf("%w: %v", tabulation.ErrOracleCancelled, err)
	}
	answer := strings.TrimSpace(line)
	if answer == "" || strings.EqualFold(answer, "q") {
		return 0, tabulation.ErrOracleCancelled
	}

	id, ok := byCode[answer]
	if !ok {
		return 0, fmt.Errorf("%w: %q is not one of the tied candidates", tabulation.ErrOracleCancelled, answer)
	}
	return id, nil
}
