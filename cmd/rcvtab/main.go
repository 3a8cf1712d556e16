// Command rcvtab tabulates a ranked-choice contest from a contest
// definition file and one or more cast vote record exports, and writes the
// resulting Tabulation Record.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/rcvtab/tabulator/cli"
	"github.com/rcvtab/tabulator/cvr"
	"github.com/rcvtab/tabulator/internal/log"
	"github.com/rcvtab/tabulator/report"
	"github.com/rcvtab/tabulator/service"
	"github.com/rcvtab/tabulator/tabulation"
)

var version = "dev"

type cmd struct {
	Contest string   `arg:"" help:"Contest definition file (JSON or YAML)." type:"existingfile"`
	CVR     []string `arg:"" help:"Cast vote record file(s); format is inferred from extension (.json or .csv)."`

	Format string `help:"Force the CVR format (json or csv) for every input instead of inferring it from extension."`

	Overvote  string `help:"Vendor label for an overvote mark." default:"overvote"`
	Undervote string `help:"Vendor label for an undervote mark." default:"undervote"`
	UWI       string `help:"Vendor label for an undeclared write-in mark." default:"UWI"`
	Blank     string `help:"Vendor label for a blank rank." default:""`

	Out     string `help:"Write the JSON Tabulation Record here instead of stdout." type:"path"`
	Summary string `help:"Also write a round-by-round CSV summary here." type:"path"`

	Pretty   bool   `help:"Log human-readable console output instead of NDJSON."`
	LogLevel string `help:"Logger level (debug, info, warn, error)." default:"info"`

	Version kong.VersionFlag `help:"Print the version and exit."`
}

func main() {
	var c cmd
	parser := kong.Parse(&c,
		kong.Name("rcvtab"),
		kong.Description("Tabulate a ranked-choice contest from CVR exports."),
		kong.Vars{"version": version},
		kong.UsageOnError(),
	)
	parser.FatalIfErrorf(c.Run())
}

func (c *cmd) Run() error {
	logger := log.New(os.Stderr, c.Pretty, c.LogLevel)

	labels := cvr.Labels{
		Overvote:          c.Overvote,
		Undervote:         c.Undervote,
		UndeclaredWriteIn: c.UWI,
		Blank:             c.Blank,
	}

	var inputs []service.Input
	var closers []func() error
	defer func() {
		for _, closeFn := range closers {
			_ = closeFn()
		}
	}()

	for _, path := range c.CVR {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open cvr %s: %w", path, err)
		}
		closers = append(closers, f.Close)

		reader, err := readerFor(c.Format, path)
		if err != nil {
			return err
		}
		inputs = append(inputs, service.Input{Reader: reader, Source: f, Labels: labels})
		logger.Debug().Str("path", path).Msg("cvr input queued")
	}

	needsOracle, err := contestNeedsOracle(c.Contest)
	if err != nil {
		return err
	}

	var newOracle func(*tabulation.Registry) tabulation.Oracle
	if needsOracle {
		newOracle = func(registry *tabulation.Registry) tabulation.Oracle {
			return cli.NewPromptOracle(os.Stdin, os.Stdout, registry)
		}
	}

	record, registry, err := service.Run(context.Background(), c.Contest, inputs, newOracle)
	if record == nil && err != nil {
		return err
	}
	if err != nil {
		logger.Error().Err(err).Msg("tabulation terminated abnormally")
	}

	for _, r := range record.Rounds {
		log.Round(logger, r.Round, r.Note, len(r.Elected), len(r.Eliminated), r.ExhaustedTotal.String(), r.ResidualTotal.String())
	}

	doc := report.Build(record, registry)

	out := os.Stdout
	if c.Out != "" {
		f, createErr := os.Create(c.Out)
		if createErr != nil {
			return fmt.Errorf("create output %s: %w", c.Out, createErr)
		}
		defer f.Close()
		out = f
	}
	if writeErr := report.WriteJSON(out, doc); writeErr != nil {
		return fmt.Errorf("write record: %w", writeErr)
	}

	if c.Summary != "" {
		sf, createErr := os.Create(c.Summary)
		if createErr != nil {
			return fmt.Errorf("create summary %s: %w", c.Summary, createErr)
		}
		defer sf.Close()
		if writeErr := report.WriteCSVSummary(sf, doc); writeErr != nil {
			return fmt.Errorf("write summary: %w", writeErr)
		}
	}

	if err != nil {
		return err
	}
	return nil
}

func readerFor(forced, path string) (cvr.Reader, error) {
	format := forced
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch format {
	case "json":
		return cvr.JSONReader{}, nil
	case "csv":
		return cvr.CSVReader{}, nil
	default:
		return nil, fmt.Errorf("cvr %s: cannot infer format (pass --format)", path)
	}
}

// contestNeedsOracle peeks at the contest file to decide whether an
// interactive Oracle needs to be wired in before any ballots are read,
// without duplicating config resolution logic from the service package.
func contestNeedsOracle(path string) (bool, error) {
	contest, err := service.LoadContest(path)
	if err != nil {
		return false, err
	}
	return contest.Config.TieBreakMode == tabulation.TieBreakInteractive ||
		contest.Config.TieBreakMode == tabulation.TieBreakStopCountingAndAsk, nil
}
