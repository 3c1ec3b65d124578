// Package owl rewrites concept-as-number attributes in OWL functional syntax axioms into
// concrete values.
//
// Only one clause shape is recognised:
//
//	ObjectSomeValuesFrom(:<attribute> :<target>)
//
// where both ids are 6 to 18 digit SCTIDs. A clause whose attribute is mapped and whose
// target has a numeric value becomes
//
//	DataHasValue(:<new attribute> "<value>"^^xsd:<datatype>)
//
// Everything else in the expression is copied byte for byte.
package owl

import (
	"fmt"
	"strings"

	"cdconv/internal/numbers"
)

const (
	clausePrefix = "ObjectSomeValuesFrom(:"
	minIDDigits  = 6
	maxIDDigits  = 18
)

// Rewriter holds the lookup tables for one conversion.
type Rewriter struct {
	attributes map[string]string // old attribute type -> new concrete attribute type
	datatypes  map[string]string // new concrete attribute type -> xsd datatype
	values     numbers.Values
}

// NewRewriter checks that every mapped attribute has a datatype.
func NewRewriter(attributes, datatypes map[string]string, values numbers.Values) (*Rewriter, error) {
	for old, typ := range attributes {
		if datatypes[typ] == "" {
			return nil, fmt.Errorf("attribute %s maps to %s which has no datatype", old, typ)
		}
	}
	return &Rewriter{attributes: attributes, datatypes: datatypes, values: values}, nil
}

// Result describes the outcome of one rewrite.
type Result struct {
	// Text is the rewritten expression, or the input when nothing was replaced.
	Text string
	// Changed is true when Text differs from the input.
	Changed bool
	// Replaced counts clauses turned into DataHasValue.
	Replaced int
	// Missing is the first mapped target with no numeric value. When set, Text is the
	// unmodified input.
	Missing string
}

// Rewrite converts every eligible clause of expr. If any mapped clause names a target
// without a numeric value the whole expression is returned unchanged.
func (rw *Rewriter) Rewrite(expr string) Result {
	var sb strings.Builder
	replaced := 0
	last := 0

	for _, c := range scanClauses(expr) {
		newType, mapped := rw.attributes[c.attribute]
		if !mapped {
			continue
		}
		value, ok := rw.values[c.target]
		if !ok {
			return Result{Text: expr, Missing: c.target}
		}
		if replaced == 0 {
			sb.Grow(len(expr) + 32)
		}
		sb.WriteString(expr[last:c.start])
		sb.WriteString("DataHasValue(:")
		sb.WriteString(newType)
		sb.WriteString(" \"")
		sb.WriteString(value)
		sb.WriteString("\"^^xsd:")
		sb.WriteString(rw.datatypes[newType])
		sb.WriteString(")")
		last = c.end
		replaced++
	}

	if replaced == 0 {
		return Result{Text: expr}
	}
	sb.WriteString(expr[last:])
	out := sb.String()
	return Result{Text: out, Changed: out != expr, Replaced: replaced}
}

// clause is one ObjectSomeValuesFrom(:A :B) occurrence; expr[start:end] is the full text.
type clause struct {
	start, end int
	attribute  string
	target     string
}

// scanClauses finds the clauses left to right without overlap.
func scanClauses(expr string) []clause {
	var out []clause
	pos := 0
	for {
		i := strings.Index(expr[pos:], clausePrefix)
		if i < 0 {
			return out
		}
		start := pos + i
		if c, ok := parseClause(expr, start); ok {
			out = append(out, c)
			pos = c.end
			continue
		}
		pos = start + 1
	}
}

// parseClause reads ":A :B)" after the prefix at start.
func parseClause(expr string, start int) (clause, bool) {
	p := start + len(clausePrefix)

	attribute, p, ok := readID(expr, p)
	if !ok || p+1 >= len(expr) || expr[p] != ' ' || expr[p+1] != ':' {
		return clause{}, false
	}
	target, p, ok := readID(expr, p+2)
	if !ok || p >= len(expr) || expr[p] != ')' {
		return clause{}, false
	}
	return clause{start: start, end: p + 1, attribute: attribute, target: target}, true
}

// readID reads a run of ASCII digits of permitted length starting at p.
func readID(expr string, p int) (string, int, bool) {
	end := p
	for end < len(expr) && expr[end] >= '0' && expr[end] <= '9' {
		end++
	}
	n := end - p
	if n < minIDDigits || n > maxIDDigits {
		return "", p, false
	}
	return expr[p:end], end, true
}
