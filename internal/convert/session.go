// Package convert runs a concrete domain conversion over a set of RF2 release archives.
//
// A run makes three sequential passes over the layers, least specific first:
//
//  1. relationship files: find the children of Number
//  2. description files: find the numeric value of each number concept
//  3. every file: rewrite OWL expressions and carry delta rows forward
//
// and then writes the rewritten snapshot rows that nothing superseded.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"cdconv/internal/config"
	"cdconv/internal/errors"
	"cdconv/internal/metrics"
	"cdconv/internal/numbers"
	"cdconv/internal/output"
	"cdconv/internal/owl"
	"cdconv/internal/rf2"
	"cdconv/internal/slogutil"
)

// ctxCheckRows is how often, in rows, a pass checks for cancellation.
const ctxCheckRows = 4096

// Options configures a Session.
type Options struct {
	Layers     rf2.Layers
	Attributes *config.AttributeMap
	Families   rf2.Families

	// NumberID and IsAID default to the SNOMED CT ids.
	NumberID string
	IsAID    string

	OutputDir string
	// ReleaseDate (YYYYMMDD) defaults to the run date.
	ReleaseDate string

	// Fs defaults to the OS filesystem.
	Fs afero.Fs
	// Metrics defaults to a fresh set.
	Metrics *metrics.Run
}

// Session holds the state of one conversion.
type Session struct {
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Run

	index    *numbers.Index
	resolver *numbers.Resolver

	summary Summary
}

// NewSession validates opts and fills in defaults.
func NewSession(opts Options, logger *slog.Logger) (*Session, error) {
	if len(opts.Layers) == 0 {
		return nil, errors.Newf(errors.ConfigInvalid, "a dependency snapshot archive is required")
	}
	if opts.Attributes == nil {
		return nil, errors.Newf(errors.ConfigInvalid, "no attribute map")
	}
	if opts.Families == (rf2.Families{}) {
		opts.Families = rf2.DefaultFamilies()
	}
	if err := opts.Families.Validate(); err != nil {
		return nil, errors.New(errors.ConfigInvalid, "invalid file family pattern", err)
	}
	if opts.NumberID == "" {
		opts.NumberID = numbers.SCTIDNumber
	}
	if opts.IsAID == "" {
		opts.IsAID = numbers.SCTIDIsA
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "output"
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRun()
	}

	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}

	now := time.Now()
	if opts.ReleaseDate == "" {
		opts.ReleaseDate = now.Format("20060102")
	}

	runID := uuid.NewString()
	s := &Session{
		opts:    opts,
		logger:  logger.With("run", runID),
		metrics: opts.Metrics,
	}
	s.summary = Summary{
		RunID:       runID,
		StartedAt:   now,
		ReleaseDate: opts.ReleaseDate,
		OutputDir:   opts.OutputDir,
		Attributes:  opts.Attributes.Len(),
	}
	for _, l := range opts.Layers {
		s.summary.Layers = append(s.summary.Layers, LayerSummary{Kind: l.Kind.String(), Path: l.Path})
	}
	return s, nil
}

// Metrics returns the session's metric set.
func (s *Session) Metrics() *metrics.Run {
	return s.metrics
}

// Summary returns what the session has done so far.
func (s *Session) Summary() *Summary {
	out := s.summary
	return &out
}

// Values returns the numeric value table built by Analyze.
func (s *Session) Values() numbers.Values {
	if s.resolver == nil {
		return nil
	}
	return s.resolver.Values()
}

// Analyze runs passes one and two. Each call rebuilds the tables from the archives.
func (s *Session) Analyze(ctx context.Context) error {
	index := numbers.NewIndex(s.opts.NumberID, s.opts.IsAID)
	passOne, err := s.pass(ctx, 1, func(e *rf2.Entry, family rf2.Family) (recordFunc, bool) {
		if family != rf2.FamilyRelationship {
			return nil, false
		}
		return func(rec rf2.Record) error {
			_, err := index.AddRelationship(rec)
			return err
		}, true
	})
	if err != nil {
		return err
	}

	resolver := numbers.NewResolver(index)
	passTwo, err := s.pass(ctx, 2, func(e *rf2.Entry, family rf2.Family) (recordFunc, bool) {
		if family != rf2.FamilyDescription {
			return nil, false
		}
		return func(rec rf2.Record) error {
			_, err := resolver.AddDescription(rec)
			return err
		}, true
	})
	if err != nil {
		return err
	}

	s.index = index
	s.resolver = resolver

	report := resolver.Report()
	s.summary.Passes = []PassSummary{passOne, passTwo}
	s.summary.NumberConcepts = index.Len()
	s.summary.NumericValues = len(resolver.Values())
	s.summary.Report = report
	s.metrics.NumberConcepts.Set(float64(index.Len()))
	s.metrics.NumericValues.Set(float64(len(resolver.Values())))

	s.logger.Info("Number concepts resolved",
		"concepts", index.Len(),
		"values", len(resolver.Values()),
		"unresolved", len(report.Unresolved))
	for _, c := range report.Unresolved {
		s.logger.Debug("Number concept has no numeric description", "concept", c)
	}
	for value, concepts := range report.Duplicates {
		s.logger.Debug("Numeric value shared by several concepts", "value", value, "concepts", concepts)
	}
	return nil
}

// Run performs the whole conversion and writes the output fileset.
func (s *Session) Run(ctx context.Context) (*Summary, error) {
	if err := s.Analyze(ctx); err != nil {
		return nil, err
	}

	rw, err := owl.NewRewriter(s.opts.Attributes.Types, s.opts.Attributes.Datatypes, s.resolver.Values())
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "invalid attribute map", err)
	}

	mgr := output.NewManager(s.opts.Fs, output.Options{
		Dir:         s.opts.OutputDir,
		ReleaseDate: s.opts.ReleaseDate,
		Latest:      s.opts.Layers.Latest(),
	})
	rewrite := s.rewriteFunc(rw)
	writtenDelta := s.metrics.RowsWritten.WithLabelValues(metrics.SourceDelta)

	passThree, err := s.pass(ctx, 3, func(e *rf2.Entry, family rf2.Family) (recordFunc, bool) {
		stream, beginErr := mgr.Begin(e.Layer.Kind, e.Path, family)
		return func(rec rf2.Record) error {
			if beginErr != nil {
				return beginErr
			}
			action, err := stream.Handle(rec, rewrite)
			if err != nil {
				return err
			}
			if action == output.Wrote {
				writtenDelta.Inc()
			}
			s.metrics.PendingRows.Set(float64(mgr.Pending()))
			return nil
		}, true
	})
	if err != nil {
		mgr.Abort()
		return nil, err
	}

	drained, err := mgr.Finalize()
	if err != nil {
		return nil, err
	}
	s.metrics.RowsWritten.WithLabelValues(metrics.SourcePending).Add(float64(drained))
	s.metrics.PendingRows.Set(0)

	stats := mgr.Stats()
	s.summary.Passes = append(s.summary.Passes, passThree)
	s.summary.RowsWritten = stats.RowsWritten
	s.summary.WrittenImmediately = stats.Immediate
	s.summary.PendingDrained = stats.PendingDrained
	s.summary.PendingDiscarded = stats.PendingDiscarded
	s.summary.Remodelled = stats.Remodelled
	s.summary.Files = mgr.Files()
	s.summary.Duration = time.Since(s.summary.StartedAt)

	s.logger.Info("Conversion complete",
		"remodelled", stats.Remodelled,
		"rowsWritten", stats.RowsWritten,
		"pendingDrained", drained,
		"unresolvedExpressions", s.summary.UnresolvedExpressions,
		"files", len(s.summary.Files),
		"duration", s.summary.Duration.Round(time.Millisecond))
	return s.Summary(), nil
}

// rewriteFunc converts one active OWL row and checks the result.
func (s *Session) rewriteFunc(rw *owl.Rewriter) output.RewriteFunc {
	rewritten := s.metrics.OWLRewrites.WithLabelValues(metrics.OutcomeRewritten)
	unchanged := s.metrics.OWLRewrites.WithLabelValues(metrics.OutcomeUnchanged)
	unresolved := s.metrics.OWLRewrites.WithLabelValues(metrics.OutcomeUnresolved)

	return func(rec rf2.Record) (rf2.Record, bool, error) {
		concept := rec[rf2.IdxRefComponent]
		expr := rec[rf2.IdxOWLExpression]

		res := rw.Rewrite(expr)
		if res.Missing != "" {
			unresolved.Inc()
			s.summary.UnresolvedExpressions++
			s.logger.Warn("Number lookup failed, expression left unchanged",
				"concept", concept, "target", res.Missing, "row", rec.ID())
			return rec, false, nil
		}
		if !res.Changed {
			unchanged.Inc()
			return rec, false, nil
		}
		if err := owl.Validate(concept, expr, res.Text); err != nil {
			return nil, false, err
		}
		rewritten.Inc()

		out := rec.Clone()
		out[rf2.IdxOWLExpression] = res.Text
		return out, true, nil
	}
}

// recordFunc handles one row of an entry.
type recordFunc func(rec rf2.Record) error

// pass opens every layer in order and feeds the rows of each selected entry to the
// function returned by sel.
func (s *Session) pass(ctx context.Context, n int, sel func(*rf2.Entry, rf2.Family) (recordFunc, bool)) (PassSummary, error) {
	started := time.Now()
	sum := PassSummary{Pass: n}

	for _, layer := range s.opts.Layers {
		archive, err := rf2.OpenArchive(layer)
		if err != nil {
			return sum, err
		}
		err = archive.Walk(ctx, func(e *rf2.Entry) error {
			family := s.opts.Families.Classify(e.Path)
			fn, ok := sel(e, family)
			if !ok {
				return nil
			}
			sum.Entries++

			rows, err := s.readEntry(ctx, e, fn)
			sum.Rows += rows
			s.metrics.RowsRead.WithLabelValues(fmt.Sprint(n), family.String()).Add(float64(rows))
			s.logger.Debug("Entry read", "pass", n, "layer", layer.Kind.String(), "entry", e.Path, "rows", rows)
			return err
		})
		closeErr := archive.Close()
		if err != nil {
			return sum, err
		}
		if closeErr != nil {
			return sum, errors.New(errors.ArchiveUnreadable, "close "+layer.Path, closeErr)
		}
	}

	sum.Duration = time.Since(started)
	s.logger.Info("Pass complete", "pass", n, "entries", sum.Entries, "rows", sum.Rows,
		"duration", sum.Duration.Round(time.Millisecond))
	return sum, nil
}

func (s *Session) readEntry(ctx context.Context, e *rf2.Entry, fn recordFunc) (int, error) {
	recs, err := e.Records()
	if err != nil {
		return 0, err
	}
	rows := 0
	for recs.Next() {
		rows++
		if rows%ctxCheckRows == 0 {
			if err := ctx.Err(); err != nil {
				return rows, err
			}
		}
		if err := fn(recs.Record()); err != nil {
			if errors.CodeOf(err) == errors.MalformedRow {
				return rows, errors.New(errors.MalformedRow,
					fmt.Sprintf("%s line %d in %s", e.Path, recs.Line(), e.Layer.Path), err)
			}
			return rows, err
		}
	}
	return rows, recs.Err()
}
