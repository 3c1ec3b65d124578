package convert

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdconv/internal/config"
	"cdconv/internal/errors"
	"cdconv/internal/metrics"
	"cdconv/internal/owl"
	"cdconv/internal/rf2"
	fixture "cdconv/internal/testutil"
)

const (
	number = "260299005"
	isA    = "116680003"

	relSnapshot  = "SnomedCT/Snapshot/Terminology/sct2_Relationship_Snapshot_INT_20200131.txt"
	descSnapshot = "SnomedCT/Snapshot/Terminology/sct2_Description_Snapshot-en_INT_20200131.txt"
	owlSnapshot  = "SnomedCT/Snapshot/Terminology/sct2_sRefset_OWLExpressionSnapshot_INT_20200131.txt"
	conSnapshot  = "SnomedCT/Snapshot/Terminology/sct2_Concept_Snapshot_INT_20200131.txt"

	relDelta = "SnomedCT/Delta/Terminology/sct2_Relationship_Delta_INT_20200731.txt"
	owlDelta = "SnomedCT/Delta/Terminology/sct2_sRefset_OWLExpressionDelta_INT_20200731.txt"

	outOWL = "out/SnomedCT/Delta/Terminology/sct2_sRefset_OWLExpressionDelta_INT_20201015.txt"
	outRel = "out/SnomedCT/Delta/Terminology/sct2_Relationship_Delta_INT_20201015.txt"
)

const paracetamolInput = "EquivalentClasses(:322236009 ObjectIntersectionOf(:763158003 " +
	"ObjectSomeValuesFrom(:411116001 :421026006) ObjectSomeValuesFrom(:609096000 " +
	"ObjectIntersectionOf(ObjectSomeValuesFrom(:732943007 :387517004) " +
	"ObjectSomeValuesFrom(:732944001 :732775002) ObjectSomeValuesFrom(:732945000 :258684004) " +
	"ObjectSomeValuesFrom(:732946004 :38112003) ObjectSomeValuesFrom(:732947008 :732936001) " +
	"ObjectSomeValuesFrom(:762949000 :387517004))) ObjectSomeValuesFrom(:763032000 :732936001) " +
	"ObjectSomeValuesFrom(:766952006 :38112003)))"

const paracetamolExpected = "EquivalentClasses(:322236009 ObjectIntersectionOf(:763158003 " +
	"ObjectSomeValuesFrom(:411116001 :421026006) ObjectSomeValuesFrom(:609096000 " +
	"ObjectIntersectionOf(ObjectSomeValuesFrom(:732943007 :387517004) " +
	"DataHasValue(:3264475007 \"500\"^^xsd:decimal) ObjectSomeValuesFrom(:732945000 :258684004) " +
	"DataHasValue(:3264476008 \"1\"^^xsd:decimal) ObjectSomeValuesFrom(:732947008 :732936001) " +
	"ObjectSomeValuesFrom(:762949000 :387517004))) ObjectSomeValuesFrom(:763032000 :732936001) " +
	"DataHasValue(:3264479001 \"1\"^^xsd:integer)))"

// Clause whose target (999999001) is a number concept with no numeric description.
const unresolvedExpr = "SubClassOf(:100000001 ObjectSomeValuesFrom(:732944001 :999999001))"

const plainExpr = "SubClassOf(:100000002 :763158003)"

func attributes() *config.AttributeMap {
	m := config.NewAttributeMap()
	m.Add("766952006", "3264479001", "integer")
	m.Add("732944001", "3264475007", "decimal")
	m.Add("732946004", "3264476008", "decimal")
	return m
}

// dependency builds an international snapshot with three number concepts and three
// OWL rows: one convertible, one unresolved and one without clauses.
func dependency(t *testing.T, dir string) string {
	t.Helper()
	return fixture.WriteArchive(t, dir, "dependency.zip",
		fixture.Entry{Name: relSnapshot, Rows: []string{
			fixture.RelationshipHeader,
			fixture.IsARow("r1", "732775002", number),
			fixture.IsARow("r2", "3445001", number),
			fixture.IsARow("r3", "38112003", number),
			fixture.IsARow("r4", "999999001", number),
			fixture.RelRow("r5", "0", "123456001", number, isA),
			fixture.IsARow("r6", "322236009", "763158003"),
		}},
		fixture.Entry{Name: descSnapshot, Rows: []string{
			fixture.DescriptionHeader,
			fixture.DescRow("d1", "1", "732775002", "500"),
			fixture.DescRow("d2", "1", "732775002", "Five hundred (qualifier value)"),
			fixture.DescRow("d3", "1", "3445001", "10"),
			fixture.DescRow("d4", "1", "38112003", "1"),
			fixture.DescRow("d5", "1", "999999001", "Many"),
			fixture.DescRow("d6", "1", "123456001", "7"),
		}},
		fixture.Entry{Name: owlSnapshot, Rows: []string{
			fixture.OWLHeader,
			fixture.OWLRow("a1", "20200131", "1", "322236009", paracetamolInput),
			fixture.OWLRow("a2", "20200131", "1", "100000001", unresolvedExpr),
			fixture.OWLRow("a3", "20200131", "1", "100000002", plainExpr),
		}},
		fixture.Entry{Name: conSnapshot, Rows: []string{
			fixture.ConceptHeader,
			fixture.Row("322236009", "20200131", "1", "900000000000207008", "900000000000073002"),
		}},
	)
}

func newSession(t *testing.T, fs afero.Fs, layers rf2.Layers) *Session {
	t.Helper()
	s, err := NewSession(Options{
		Layers:      layers,
		Attributes:  attributes(),
		OutputDir:   "out",
		ReleaseDate: "20201015",
		Fs:          fs,
	}, nil)
	require.NoError(t, err)
	return s
}

func readOutput(t *testing.T, fs afero.Fs, path string) []string {
	t.Helper()
	data, err := afero.ReadFile(fs, filepath.FromSlash(path))
	require.NoError(t, err)
	return fixture.ReadLines(t, data)
}

func TestRun_SnapshotOnly(t *testing.T) {
	dir := t.TempDir()
	layers, err := rf2.NewLayers(dependency(t, dir), "", "")
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	s := newSession(t, fs, layers)

	sum, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		fixture.OWLHeader,
		fixture.OWLRow("a1", "", "1", "322236009", paracetamolExpected),
	}, readOutput(t, fs, outOWL))

	// Only the latest layer's headers are written; snapshot data rows other than OWL
	// are never carried forward.
	assert.Equal(t, []string{fixture.RelationshipHeader}, readOutput(t, fs, outRel))

	assert.Equal(t, 4, sum.NumberConcepts)
	assert.Equal(t, 3, sum.NumericValues)
	assert.Equal(t, []string{"999999001"}, sum.Report.Unresolved)
	assert.Equal(t, 1, sum.Remodelled)
	assert.Equal(t, 1, sum.PendingDrained)
	assert.Equal(t, 1, sum.UnresolvedExpressions)
	assert.Equal(t, 1, sum.RowsWritten)
	assert.Equal(t, 7, sum.RowsRead(1))
	assert.Equal(t, 7, sum.RowsRead(2))
	assert.Equal(t, 20, sum.RowsRead(3))
	assert.Len(t, sum.Files, 4)
	assert.NotEmpty(t, sum.RunID)

	m := s.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OWLRewrites.WithLabelValues(metrics.OutcomeRewritten)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OWLRewrites.WithLabelValues(metrics.OutcomeUnresolved)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OWLRewrites.WithLabelValues(metrics.OutcomeUnchanged)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsWritten.WithLabelValues(metrics.SourcePending)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PendingRows))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.NumberConcepts))
}

func TestRun_WithDelta(t *testing.T) {
	dir := t.TempDir()
	dep := dependency(t, dir)
	delta := fixture.WriteArchive(t, dir, "delta.zip",
		fixture.Entry{Name: relDelta, Rows: []string{
			fixture.RelationshipHeader,
			fixture.RelRow("r7", "1", "322236009", "421026006", "411116001"),
		}},
		fixture.Entry{Name: owlDelta, Rows: []string{
			fixture.OWLHeader,
			// Inactivates the paracetamol axiom: pending row dropped, inactivation kept.
			fixture.OWLRow("a1", "20200731", "0", "322236009", paracetamolInput),
			// New axiom that converts: written straight away.
			fixture.OWLRow("a9", "20200731", "1", "100000009",
				"SubClassOf(:100000009 ObjectSomeValuesFrom(:766952006 :3445001))"),
			// Unchanged delta row: carried forward as is.
			fixture.OWLRow("a3", "20200731", "1", "100000002", plainExpr),
		}},
	)
	layers, err := rf2.NewLayers(dep, "", delta)
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	s := newSession(t, fs, layers)
	sum, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		fixture.OWLHeader,
		fixture.OWLRow("a1", "20200731", "0", "322236009", paracetamolInput),
		fixture.OWLRow("a9", "", "1", "100000009",
			"SubClassOf(:100000009 DataHasValue(:3264479001 \"10\"^^xsd:integer))"),
		fixture.OWLRow("a3", "20200731", "1", "100000002", plainExpr),
	}, readOutput(t, fs, outOWL))

	assert.Equal(t, []string{
		fixture.RelationshipHeader,
		fixture.RelRow("r7", "1", "322236009", "421026006", "411116001"),
	}, readOutput(t, fs, outRel))

	assert.Equal(t, 1, sum.Remodelled)
	assert.Zero(t, sum.PendingDrained)
	assert.Equal(t, 1, sum.PendingDiscarded)
	assert.Equal(t, 4, sum.WrittenImmediately)
	assert.Len(t, sum.Files, 2)
}

func TestRun_ExtensionSupersedesPending(t *testing.T) {
	dir := t.TempDir()
	dep := dependency(t, dir)
	ext := fixture.WriteArchive(t, dir, "extension.zip",
		fixture.Entry{Name: "Ext/Snapshot/sct2_Description_Snapshot-nl_NL_20200930.txt", Rows: []string{
			fixture.DescriptionHeader,
			fixture.DescRow("d9", "1", "999999001", "3"),
		}},
		fixture.Entry{Name: "Ext/Snapshot/sct2_sRefset_OWLExpressionSnapshot_NL_20200930.txt", Rows: []string{
			fixture.OWLHeader,
			fixture.OWLRow("a1", "20200930", "0", "322236009", paracetamolInput),
		}},
	)
	layers, err := rf2.NewLayers(dep, ext, "")
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	s := newSession(t, fs, layers)
	sum, err := s.Run(context.Background())
	require.NoError(t, err)

	// The extension supplied the missing value, so a2 now converts; a1 was inactivated.
	assert.Equal(t, []string{
		fixture.OWLHeader,
		fixture.OWLRow("a2", "", "1", "100000001",
			"SubClassOf(:100000001 DataHasValue(:3264475007 \"3\"^^xsd:decimal))"),
	}, readOutput(t, fs, "out/Ext/Delta/sct2_sRefset_OWLExpressionDelta_NL_20201015.txt"))

	exists, err := afero.Exists(fs, filepath.FromSlash(outOWL))
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Equal(t, 4, sum.NumericValues)
	assert.Empty(t, sum.Report.Unresolved)
	assert.Equal(t, 1, sum.PendingDrained)
	assert.Equal(t, 1, sum.PendingDiscarded)
}

func TestAnalyze_Idempotent(t *testing.T) {
	dir := t.TempDir()
	layers, err := rf2.NewLayers(dependency(t, dir), "", "")
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	s := newSession(t, fs, layers)

	require.NoError(t, s.Analyze(context.Background()))
	first := s.Values()
	firstSummary := s.Summary()

	require.NoError(t, s.Analyze(context.Background()))
	assert.Equal(t, first, s.Values())
	assert.Equal(t, firstSummary.NumberConcepts, s.Summary().NumberConcepts)
	assert.Equal(t, firstSummary.Report, s.Summary().Report)
	assert.Equal(t, "500", s.Values()["732775002"])

	// Analysis never writes output.
	exists, err := afero.DirExists(fs, "out")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRun_Idempotent(t *testing.T) {
	dir := t.TempDir()
	layers, err := rf2.NewLayers(dependency(t, dir), "", "")
	require.NoError(t, err)

	fsA, fsB := afero.NewMemMapFs(), afero.NewMemMapFs()
	_, err = newSession(t, fsA, layers).Run(context.Background())
	require.NoError(t, err)
	_, err = newSession(t, fsB, layers).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, readOutput(t, fsA, outOWL), readOutput(t, fsB, outOWL))
}

func TestRun_Cancelled(t *testing.T) {
	dir := t.TempDir()
	layers, err := rf2.NewLayers(dependency(t, dir), "", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = newSession(t, afero.NewMemMapFs(), layers).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_MalformedRow(t *testing.T) {
	dir := t.TempDir()
	dep := fixture.WriteArchive(t, dir, "dependency.zip",
		fixture.Entry{Name: relSnapshot, Rows: []string{
			fixture.RelationshipHeader,
			fixture.Row("r1", "20200131", "1", "900000000000207008", "732775002"),
		}},
	)
	layers, err := rf2.NewLayers(dep, "", "")
	require.NoError(t, err)

	_, err = newSession(t, afero.NewMemMapFs(), layers).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.MalformedRow, errors.CodeOf(err))
	assert.Contains(t, err.Error(), relSnapshot+" line 2")
}

func TestRun_InvariantViolation(t *testing.T) {
	tests := []struct {
		name     string
		datatype string
		check    string
	}{
		{"extra colon", "x:integer", "argument count mismatch"},
		{"extra open bracket", "(integer", "bracket count mismatch"},
		{"extra close bracket", "integer)", "bracket pair mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layers, err := rf2.NewLayers(dependency(t, t.TempDir()), "", "")
			require.NoError(t, err)

			attrs := attributes()
			attrs.Add("766952006", "3264479001", tt.datatype)
			s, err := NewSession(Options{
				Layers:      layers,
				Attributes:  attrs,
				OutputDir:   "out",
				ReleaseDate: "20201015",
				Fs:          afero.NewMemMapFs(),
			}, nil)
			require.NoError(t, err)

			sum, err := s.Run(context.Background())
			require.Error(t, err)
			assert.Nil(t, sum)
			assert.Equal(t, errors.InvariantViolation, errors.CodeOf(err))
			assert.Equal(t, 4, errors.ExitCode(err))

			var cdErr *errors.CdError
			require.True(t, stderrors.As(err, &cdErr))
			v, ok := cdErr.Details.(owl.Violation)
			require.True(t, ok)
			assert.Equal(t, "322236009", v.Concept)
			assert.Equal(t, tt.check, v.Check)
			assert.Equal(t, paracetamolInput, v.Before)
			assert.Contains(t, v.After, "^^xsd:"+tt.datatype)
		})
	}
}

func TestRun_MissingArchive(t *testing.T) {
	layers, err := rf2.NewLayers(filepath.Join(t.TempDir(), "missing.zip"), "", "")
	require.NoError(t, err)

	_, err = newSession(t, afero.NewMemMapFs(), layers).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ArchiveUnreadable, errors.CodeOf(err))
}

func TestNewSession_Invalid(t *testing.T) {
	_, err := NewSession(Options{Attributes: attributes()}, nil)
	assert.Equal(t, errors.ConfigInvalid, errors.CodeOf(err))

	_, err = NewSession(Options{Layers: rf2.Layers{{Kind: rf2.LayerSnapshot, Path: "x.zip"}}}, nil)
	assert.Equal(t, errors.ConfigInvalid, errors.CodeOf(err))

	_, err = NewSession(Options{
		Layers:     rf2.Layers{{Kind: rf2.LayerSnapshot, Path: "x.zip"}},
		Attributes: attributes(),
		Families:   rf2.Families{Relationship: "[", Description: "d*", OWL: "o*"},
	}, nil)
	assert.Equal(t, errors.ConfigInvalid, errors.CodeOf(err))
}
