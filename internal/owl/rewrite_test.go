package owl

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdconv/internal/errors"
	"cdconv/internal/numbers"
)

const paracetamolConcept = "322236009"

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

func newTestRewriter(t *testing.T) *Rewriter {
	t.Helper()
	rw, err := NewRewriter(
		map[string]string{
			"766952006": "3264479001",
			"732944001": "3264475007",
			"732946004": "3264476008",
		},
		map[string]string{
			"3264479001": "integer",
			"3264475007": "decimal",
			"3264476008": "decimal",
		},
		numbers.Values{
			"732775002": "500",
			"3445001":   "10",
			"38112003":  "1",
		},
	)
	require.NoError(t, err)
	return rw
}

func TestRewrite_Paracetamol(t *testing.T) {
	rw := newTestRewriter(t)

	res := rw.Rewrite(paracetamolInput)
	assert.Equal(t, paracetamolExpected, res.Text)
	assert.True(t, res.Changed)
	assert.Equal(t, 3, res.Replaced)
	assert.Empty(t, res.Missing)
	assert.NoError(t, Validate(paracetamolConcept, paracetamolInput, res.Text))
}

func TestRewrite_Unchanged(t *testing.T) {
	rw := newTestRewriter(t)

	tests := []struct {
		name string
		expr string
	}{
		{"no clause", "SubClassOf(:322236009 :763158003)"},
		{"unmapped attribute", "SubClassOf(:1000001 ObjectSomeValuesFrom(:411116001 :421026006))"},
		{"id too short", "SubClassOf(:1000001 ObjectSomeValuesFrom(:76695 :38112003))"},
		{"id too long", "SubClassOf(:1000001 ObjectSomeValuesFrom(:766952006 :1234567890123456789))"},
		{"no space", "SubClassOf(:1000001 ObjectSomeValuesFrom(:766952006:38112003))"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := rw.Rewrite(tt.expr)
			assert.Equal(t, tt.expr, res.Text)
			assert.False(t, res.Changed)
			assert.Zero(t, res.Replaced)
			assert.Empty(t, res.Missing)
		})
	}
}

func TestRewrite_MissingValueLeavesWholeExpression(t *testing.T) {
	rw := newTestRewriter(t)

	// First clause is convertible, second names a target with no value.
	expr := "SubClassOf(:1000001 ObjectIntersectionOf(ObjectSomeValuesFrom(:732944001 :732775002) " +
		"ObjectSomeValuesFrom(:732946004 :999999001)))"
	res := rw.Rewrite(expr)
	assert.Equal(t, expr, res.Text)
	assert.False(t, res.Changed)
	assert.Equal(t, "999999001", res.Missing)
}

func TestRewrite_UnmappedClauseWithUnknownTargetIsIgnored(t *testing.T) {
	rw := newTestRewriter(t)

	expr := "SubClassOf(:1000001 ObjectIntersectionOf(ObjectSomeValuesFrom(:411116001 :999999001) " +
		"ObjectSomeValuesFrom(:732944001 :3445001)))"
	res := rw.Rewrite(expr)
	assert.Equal(t, "SubClassOf(:1000001 ObjectIntersectionOf(ObjectSomeValuesFrom(:411116001 :999999001) "+
		"DataHasValue(:3264475007 \"10\"^^xsd:decimal)))", res.Text)
	assert.Equal(t, 1, res.Replaced)
}

func TestRewrite_ClausePositions(t *testing.T) {
	tests := []struct {
		name     string
		expr     string
		want     string
		replaced int
	}{
		{
			name:     "adjacent at start",
			expr:     "ObjectSomeValuesFrom(:732944001 :3445001)ObjectSomeValuesFrom(:766952006 :38112003)",
			want:     "DataHasValue(:3264475007 \"10\"^^xsd:decimal)DataHasValue(:3264479001 \"1\"^^xsd:integer)",
			replaced: 2,
		},
		{
			name:     "whole expression",
			expr:     "ObjectSomeValuesFrom(:766952006 :38112003)",
			want:     "DataHasValue(:3264479001 \"1\"^^xsd:integer)",
			replaced: 1,
		},
		{
			name:     "unmapped before mapped",
			expr:     "SubClassOf(:1 ObjectSomeValuesFrom(:411116001 :421026006) ObjectSomeValuesFrom(:732946004 :38112003))",
			want:     "SubClassOf(:1 ObjectSomeValuesFrom(:411116001 :421026006) DataHasValue(:3264476008 \"1\"^^xsd:decimal))",
			replaced: 1,
		},
		{
			name:     "separated",
			expr:     "SubClassOf(:1 ObjectSomeValuesFrom(:732944001 :732775002) :2 ObjectSomeValuesFrom(:732946004 :3445001))",
			want:     "SubClassOf(:1 DataHasValue(:3264475007 \"500\"^^xsd:decimal) :2 DataHasValue(:3264476008 \"10\"^^xsd:decimal))",
			replaced: 2,
		},
	}

	rw := newTestRewriter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := rw.Rewrite(tt.expr)
			assert.Equal(t, tt.want, res.Text)
			assert.Equal(t, tt.replaced, res.Replaced)
			assert.True(t, res.Changed)
			assert.NoError(t, Validate("1", tt.expr, res.Text))
		})
	}
}

func TestRewrite_MissingAfterReplacementDiscardsPartialOutput(t *testing.T) {
	rw := newTestRewriter(t)

	expr := "SubClassOf(:1 ObjectSomeValuesFrom(:732944001 :3445001) ObjectSomeValuesFrom(:766952006 :999999001))"
	res := rw.Rewrite(expr)
	assert.Equal(t, expr, res.Text)
	assert.Equal(t, "999999001", res.Missing)
	assert.False(t, res.Changed)
	assert.Zero(t, res.Replaced)
}

func TestRewrite_Idempotent(t *testing.T) {
	rw := newTestRewriter(t)

	once := rw.Rewrite(paracetamolInput).Text
	twice := rw.Rewrite(once)
	assert.Equal(t, once, twice.Text)
	assert.False(t, twice.Changed)
}

func TestNewRewriter_MissingDatatype(t *testing.T) {
	_, err := NewRewriter(map[string]string{"766952006": "3264479001"}, map[string]string{}, numbers.Values{})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	before := "SubClassOf(:1 ObjectSomeValuesFrom(:2 :3))"

	tests := []struct {
		name  string
		after string
		check string
	}{
		{"open bracket lost", "SubClassOf(:1 :2 :3))", "bracket count mismatch"},
		{"close bracket lost", "SubClassOf(:1 DataHasValue(:2 :3)", "bracket pair mismatch"},
		{"colon lost", "SubClassOf(:1 DataHasValue(:2 3))", "argument count mismatch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate("1", before, tt.after)
			require.Error(t, err)
			assert.Equal(t, errors.InvariantViolation, errors.CodeOf(err))
			assert.True(t, strings.Contains(err.Error(), "at 1"))

			var cdErr *errors.CdError
			require.True(t, stderrors.As(err, &cdErr))
			v, ok := cdErr.Details.(Violation)
			require.True(t, ok)
			assert.Equal(t, tt.check, v.Check)
			assert.Equal(t, before, v.Before)
			assert.Equal(t, tt.after, v.After)
		})
	}

	assert.NoError(t, Validate("1", before, "SubClassOf(:1 DataHasValue(:2 \"5\"^^xsd:integer))"))
}
