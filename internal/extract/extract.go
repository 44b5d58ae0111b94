package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"esparse/internal/config"
	"esparse/internal/conflict"
	"esparse/internal/decoders"
	"esparse/internal/diag"
	"esparse/internal/formid"
	"esparse/internal/logging"
	"esparse/internal/plugin"
)

// recordCheckInterval is how many records a file task resolves between
// context checks.
const recordCheckInterval = 1024

// Sink persists the resolved records of one record type after the conflict
// pass. Write is called once per type with every record of that type.
type Sink interface {
	Write(ctx context.Context, recordType string, records []conflict.ResolvedRecord) error
}

// RunRecorder is implemented by sinks that also keep run metadata.
type RunRecorder interface {
	BeginRun(ctx context.Context, runID string, startedAt time.Time) error
	RecordPlugin(ctx context.Context, file FileReport) error
	RecordDiagnostics(ctx context.Context, ds []diag.Diagnostic) error
	FinishRun(ctx context.Context, report *Report) error
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithSinks adds output sinks.
func WithSinks(sinks ...Sink) Option {
	return func(e *Extractor) {
		for _, s := range sinks {
			if s != nil {
				e.sinks = append(e.sinks, s)
			}
		}
	}
}

// WithDecoders sets the registry used when extraction.decode is enabled.
func WithDecoders(reg *decoders.Registry) Option {
	return func(e *Extractor) {
		e.decoders = reg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// WithDiagnostics seeds the run report with diagnostics produced before the
// run, typically while building the load order.
func WithDiagnostics(ds []diag.Diagnostic) Option {
	return func(e *Extractor) {
		e.seed = append(e.seed, ds...)
	}
}

// Extractor runs the read, resolve and conflict passes over a load order.
type Extractor struct {
	cfg      *config.Config
	registry *formid.Registry
	decoders *decoders.Registry
	sinks    []Sink
	logger   *slog.Logger
	seed     []diag.Diagnostic
}

// New builds an Extractor. The registry must be complete; it is only read.
func New(cfg *config.Config, registry *formid.Registry, opts ...Option) *Extractor {
	e := &Extractor{cfg: cfg, registry: registry}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "extract")
	if e.decoders == nil {
		e.decoders = decoders.Builtin()
	}
	return e
}

// Run is shorthand for New(cfg, registry, opts...).Run(ctx).
func Run(ctx context.Context, cfg *config.Config, registry *formid.Registry, opts ...Option) (*Report, error) {
	return New(cfg, registry, opts...).Run(ctx)
}

type fileResult struct {
	report  FileReport
	records []conflict.ResolvedRecord
	diags   []diag.Diagnostic
}

// Run reads every plugin in the registry, resolves record identities, picks
// winners per record type and hands the results to the sinks. A file that
// fails to parse never stops the run. The returned error covers cancellation,
// sink failures and ambiguous winners under conflict.strict_ties; the report is
// returned alongside it whenever one exists.
func (e *Extractor) Run(ctx context.Context) (*Report, error) {
	if e.cfg == nil || e.registry == nil {
		return nil, errors.New("extract: config and registry are required")
	}

	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Types:     make(map[string]conflict.Report),
	}
	report.Diagnostics = append(report.Diagnostics, e.seed...)
	ctx = logging.WithRunID(ctx, report.RunID)
	logger := logging.WithContext(ctx, e.logger)

	plugins := e.registry.Plugins()
	logger.Info("extraction started",
		logging.String(logging.FieldEventType, "extraction_start"),
		logging.Int("plugins", len(plugins)),
		logging.Int("workers", e.workers()),
	)

	for _, s := range e.sinks {
		if rec, ok := s.(RunRecorder); ok {
			if err := rec.BeginRun(ctx, report.RunID, report.StartedAt); err != nil {
				return report, fmt.Errorf("begin run: %w", err)
			}
		}
	}

	results, err := e.readAll(ctx, plugins)
	if err != nil {
		return report, err
	}

	// Barrier: every file is read and resolved before any conflict pass.
	var all []conflict.ResolvedRecord
	for _, res := range results {
		report.Files = append(report.Files, res.report)
		report.Diagnostics = append(report.Diagnostics, res.diags...)
		all = append(all, res.records...)
	}

	byType, err := e.resolveConflicts(ctx, all, report)
	if err != nil {
		return report, err
	}
	var tieErrs []error
	for _, t := range report.RecordTypes() {
		rep := report.Types[t]
		report.Diagnostics = append(report.Diagnostics, rep.Diagnostics...)
		report.Records = append(report.Records, byType[t]...)
		if rep.Err != nil {
			tieErrs = append(tieErrs, rep.Err)
		}
	}

	diag.Log(logger, report.Diagnostics)
	if len(tieErrs) > 0 {
		return report, errors.Join(tieErrs...)
	}

	if err := e.writeSinks(ctx, report, byType); err != nil {
		return report, err
	}

	report.FinishedAt = time.Now().UTC()
	for _, s := range e.sinks {
		if rec, ok := s.(RunRecorder); ok {
			if err := rec.FinishRun(ctx, report); err != nil {
				return report, fmt.Errorf("finish run: %w", err)
			}
		}
	}

	records, winners, unresolved := report.Totals()
	logger.Info("extraction completed",
		logging.String(logging.FieldEventType, "extraction_complete"),
		logging.Int("records", records),
		logging.Int("winners", winners),
		logging.Int("unresolved", unresolved),
		logging.Int("failed_files", len(report.FailedFiles())),
		logging.Int("warnings", report.Warnings()),
		logging.Duration("duration", report.Duration()),
	)
	return report, nil
}

func (e *Extractor) workers() int {
	if e.cfg.Extraction.Workers > 0 {
		return e.cfg.Extraction.Workers
	}
	return runtime.NumCPU()
}

// readAll fans out one task per plugin. File failures are recorded in the
// results; only cancellation fails the group.
func (e *Extractor) readAll(ctx context.Context, plugins []formid.PluginMeta) ([]fileResult, error) {
	results := make([]fileResult, len(plugins))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for i, meta := range plugins {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := e.readFile(gctx, meta)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("read plugins: %w", err)
	}
	return results, nil
}

func (e *Extractor) readFile(ctx context.Context, meta formid.PluginMeta) (fileResult, error) {
	ctx = logging.WithPlugin(ctx, meta.Name)
	logger := logging.WithContext(ctx, e.logger)
	out := fileResult{report: FileReport{
		Plugin:    meta.Name,
		Path:      meta.Path,
		LoadOrder: meta.LoadOrder,
		IsESL:     meta.IsESL,
	}}

	start := time.Now()
	res, digest, err := plugin.ReadFile(ctx, meta.Path, plugin.Options{
		Plugin:           meta.Name,
		RecordTypes:      e.cfg.Extraction.RecordTypes,
		StrictGroupSpans: e.cfg.Extraction.StrictGroupSpans,
	})
	if err != nil {
		out.report.Err = err
		out.report.Error = err.Error()
		msg := err.Error()
		if errors.Is(err, fs.ErrNotExist) {
			msg = fmt.Sprintf("plugin file %s does not exist", meta.Path)
		}
		out.diags = append(out.diags, diag.Error(diag.CodePluginMissing, meta.Name, msg))
		return out, nil
	}
	if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
		return out, res.Err
	}

	out.report.Digest = digest.String()
	out.report.Records = len(res.Records)
	out.report.Groups = len(res.Groups)
	out.diags = append(out.diags, res.Diagnostics...)
	if res.Err != nil {
		out.report.Err = res.Err
		out.report.Error = res.Err.Error()
		out.report.Salvaged = len(res.Records)
	}

	out.records = make([]conflict.ResolvedRecord, 0, len(res.Records))
	for i := range res.Records {
		if i%recordCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return out, err
			}
		}
		rec := &res.Records[i]
		resolved := e.registry.RecordGlobal(rec.Header.FormID, meta.Name)
		rr := conflict.ResolvedRecord{
			Type:         rec.Header.Type,
			LocalFormID:  rec.Header.FormID,
			GlobalFormID: resolved.Global,
			Resolved:     resolved.OK,
			Plugin:       meta.Name,
			LoadOrder:    meta.LoadOrder,
			StackOrder:   conflict.NoStackOrder,
			Record:       rec,
		}
		if !resolved.OK {
			out.diags = append(out.diags, resolved.Diagnostic.At(rec.Offset, rec.Header.Type))
		}
		if e.cfg.Extraction.Decode {
			fields, err := e.decoders.Decode(rec.Header.Type, rec.Subrecords)
			if err != nil {
				out.diags = append(out.diags,
					diag.Warning(diag.CodeDecodeFailed, meta.Name, err.Error()).At(rec.Offset, rec.Header.Type).WithFormID(rec.Header.FormID))
			} else {
				rr.Fields = fields
			}
		}
		out.records = append(out.records, rr)
	}

	logger.Debug("plugin read",
		logging.Int("records", len(res.Records)),
		logging.Int("groups", len(res.Groups)),
		logging.Bool("failed", res.Err != nil),
		logging.Duration("duration", time.Since(start)),
	)
	return out, nil
}

// resolveConflicts runs one conflict pass per record type, bounded like the
// file fan-out.
func (e *Extractor) resolveConflicts(ctx context.Context, all []conflict.ResolvedRecord, report *Report) (map[string][]conflict.ResolvedRecord, error) {
	byType := conflict.ByType(all)
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)

	var mu sync.Mutex
	opts := conflict.Options{StrictTies: e.cfg.Conflict.StrictTies}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())
	for _, t := range types {
		records := byType[t]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			conflict.AssignStackOrder(records)
			rep := conflict.Resolve(t, records, opts)
			mu.Lock()
			report.Types[t] = rep
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolve conflicts: %w", err)
	}
	return byType, nil
}

func (e *Extractor) writeSinks(ctx context.Context, report *Report, byType map[string][]conflict.ResolvedRecord) error {
	for _, s := range e.sinks {
		if rec, ok := s.(RunRecorder); ok {
			for _, f := range report.Files {
				if err := rec.RecordPlugin(ctx, f); err != nil {
					return fmt.Errorf("record plugin %s: %w", f.Plugin, err)
				}
			}
			if err := rec.RecordDiagnostics(ctx, report.Diagnostics); err != nil {
				return fmt.Errorf("record diagnostics: %w", err)
			}
		}
		for _, t := range report.RecordTypes() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.Write(ctx, t, byType[t]); err != nil {
				return fmt.Errorf("write %s records: %w", t, err)
			}
		}
	}
	return nil
}
