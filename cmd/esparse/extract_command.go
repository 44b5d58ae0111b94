package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"esparse/internal/config"
	"esparse/internal/extract"
	"esparse/internal/formid"
	"esparse/internal/loadorder"
	"esparse/internal/preflight"
	"esparse/internal/sink"
)

type extractOptions struct {
	jsonOutput bool
	workers    int
	types      []string
	formats    []string
	strictTies bool
	noDecode   bool
}

func newExtractCommand(ctx *commandContext) *cobra.Command {
	var opts extractOptions

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Parse the load order, resolve conflicts and write the configured outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := applyExtractFlags(cmd, cfg, opts); err != nil {
				return err
			}
			if err := cfg.ValidateInputs(); err != nil {
				return err
			}
			if err := preflight.Err(preflight.RunAll(cfg)); err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			runCtx := cmd.Context()
			metas, loadDiags, err := loadorder.FromConfig(runCtx, cfg)
			if err != nil {
				return fmt.Errorf("build load order: %w", err)
			}
			registry, err := formid.NewRegistry(metas)
			if err != nil {
				return fmt.Errorf("build formid registry: %w", err)
			}
			sinks, closeSinks, err := sink.FromConfig(cfg)
			if err != nil {
				return err
			}
			defer closeSinks()

			report, runErr := extract.Run(runCtx, cfg, registry,
				extract.WithSinks(sinks...),
				extract.WithLogger(logger),
				extract.WithDiagnostics(loadDiags),
			)
			if report != nil {
				if opts.jsonOutput {
					if err := writeJSON(cmd, report); err != nil {
						return err
					}
				} else {
					renderExtractReport(cmd.OutOrStdout(), cfg, report, shouldColorize(cmd.OutOrStdout()))
				}
			}
			return runErr
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print the run report as JSON")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "Concurrent file parsers (overrides extraction.workers)")
	flags.StringSliceVarP(&opts.types, "type", "t", nil, "Record types to extract (repeatable, overrides extraction.record_types)")
	flags.StringSliceVarP(&opts.formats, "format", "f", nil, "Output formats: sqlite, jsonl, cbor (overrides output.formats)")
	flags.BoolVar(&opts.strictTies, "strict-ties", false, "Fail the run when a winner is ambiguous")
	flags.BoolVar(&opts.noDecode, "no-decode", false, "Skip typed record decoding")
	return cmd
}

func applyExtractFlags(cmd *cobra.Command, cfg *config.Config, opts extractOptions) error {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		if opts.workers < 1 {
			return fmt.Errorf("--workers must be at least 1")
		}
		cfg.Extraction.Workers = opts.workers
	}
	if flags.Changed("type") {
		types := make([]string, 0, len(opts.types))
		for _, t := range opts.types {
			tag := strings.ToUpper(strings.TrimSpace(t))
			if len(tag) != 4 {
				return fmt.Errorf("--type %q: record types are four characters", t)
			}
			types = append(types, tag)
		}
		cfg.Extraction.RecordTypes = types
	}
	if flags.Changed("format") {
		cfg.Output.Formats = opts.formats
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if opts.strictTies {
		cfg.Conflict.StrictTies = true
	}
	if opts.noDecode {
		cfg.Extraction.Decode = false
	}
	return nil
}

func renderExtractReport(w io.Writer, cfg *config.Config, report *extract.Report, colorize bool) {
	printLines(w, renderSectionHeader("Extraction", colorize)...)
	records, winners, unresolved := report.Totals()
	printLines(w,
		renderField("Run", report.RunID),
		renderField("Plugins", strconv.Itoa(len(report.Files))),
		renderField("Records", fmt.Sprintf("%d (%d winners, %d unresolved)", records, winners, unresolved)),
		renderField("Duration", report.Duration().Round(time.Millisecond).String()),
		renderField("Outputs", strings.Join(cfg.Output.Formats, ", ")),
	)
	fmt.Fprintln(w)

	fileRows := make([][]string, 0, len(report.Files))
	for _, f := range report.Files {
		status := "ok"
		switch {
		case f.Failed() && f.Salvaged > 0:
			status = fmt.Sprintf("salvaged %d", f.Salvaged)
		case f.Failed():
			status = "failed"
		}
		fileRows = append(fileRows, []string{
			strconv.Itoa(f.LoadOrder),
			f.Plugin,
			yesNo(f.IsESL),
			strconv.Itoa(f.Records),
			strconv.Itoa(f.Groups),
			status,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"#", "Plugin", "Light", "Records", "Groups", "Status"},
		fileRows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))

	typeRows := make([][]string, 0, len(report.Types))
	for _, t := range report.RecordTypes() {
		rep := report.Types[t]
		typeRows = append(typeRows, []string{
			t,
			strconv.Itoa(rep.Records),
			strconv.Itoa(rep.Winners),
			strconv.Itoa(rep.Overridden),
			strconv.Itoa(len(rep.Unresolved)),
			strconv.Itoa(len(rep.Ambiguities)),
		})
	}
	if len(typeRows) > 0 {
		fmt.Fprintln(w, renderTable(
			[]string{"Type", "Records", "Winners", "Overridden", "Unresolved", "Ties"},
			typeRows,
			[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight},
		))
	}

	kind, msg := statusOK, "no problems"
	switch {
	case report.Errors() > 0:
		kind, msg = statusError, fmt.Sprintf("%d errors, %d warnings", report.Errors(), report.Warnings())
	case report.Warnings() > 0:
		kind, msg = statusWarn, fmt.Sprintf("%d warnings", report.Warnings())
	}
	fmt.Fprintln(w, renderStatusLine("Diagnostics", kind, msg, colorize))
}
