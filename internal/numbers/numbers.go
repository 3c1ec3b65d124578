// Package numbers finds the concepts that stand for numbers and the literal value each
// one denotes.
//
// Pass one collects the active "is a" children of the Number concept from relationship
// rows. Pass two reads the active descriptions of those concepts and keeps the term when
// it parses as a number.
package numbers

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"cdconv/internal/rf2"
)

// SNOMED CT concept ids used by default.
const (
	SCTIDNumber = "260299005" // |Number (qualifier value)|
	SCTIDIsA    = "116680003" // |Is a (attribute)|
)

// Index is the set of number concepts.
type Index struct {
	numberID string
	isAID    string
	members  map[string]struct{}
}

// NewIndex creates an empty index keyed on the given Number and Is-a concept ids.
func NewIndex(numberID, isAID string) *Index {
	return &Index{
		numberID: numberID,
		isAID:    isAID,
		members:  make(map[string]struct{}),
	}
}

// AddRelationship records the source of rec when rec is an active is-a to Number.
func (x *Index) AddRelationship(rec rf2.Record) (bool, error) {
	if !rec.Active() {
		return false, nil
	}
	if err := rec.Require(rf2.IdxType); err != nil {
		return false, err
	}
	if rec[rf2.IdxType] != x.isAID || rec[rf2.IdxTarget] != x.numberID {
		return false, nil
	}
	x.members[rec[rf2.IdxSource]] = struct{}{}
	return true, nil
}

// Contains reports whether concept is a number concept.
func (x *Index) Contains(concept string) bool {
	_, ok := x.members[concept]
	return ok
}

// Len returns the number of number concepts.
func (x *Index) Len() int {
	return len(x.members)
}

// Concepts returns the number concepts in ascending order.
func (x *Index) Concepts() []string {
	out := make([]string, 0, len(x.members))
	for c := range x.members {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Values maps a number concept to its canonical literal.
type Values map[string]string

// Resolver fills a Values table from description rows.
type Resolver struct {
	index  *Index
	values Values
}

// NewResolver creates a resolver for the concepts in index.
func NewResolver(index *Index) *Resolver {
	return &Resolver{index: index, values: make(Values)}
}

// AddDescription stores the numeric value of rec's term when rec is an active
// description of a number concept. A later numeric description of the same concept
// replaces an earlier one, so the result follows scan order.
func (r *Resolver) AddDescription(rec rf2.Record) (bool, error) {
	if !rec.Active() {
		return false, nil
	}
	if err := rec.Require(rf2.IdxTerm); err != nil {
		return false, err
	}
	concept := rec[rf2.IdxConcept]
	if !r.index.Contains(concept) {
		return false, nil
	}
	value, ok := Canonical(rec[rf2.IdxTerm])
	if !ok {
		return false, nil
	}
	r.values[concept] = value
	return true, nil
}

// Values returns the resolved table.
func (r *Resolver) Values() Values {
	return r.values
}

// Canonical parses term as a finite floating point literal and returns its canonical
// decimal form, e.g. "500", "0.5", "1e3" becomes "1000".
func Canonical(term string) (string, bool) {
	term = strings.TrimSpace(term)
	f, err := strconv.ParseFloat(term, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return "", false
	}
	d, err := decimal.NewFromString(term)
	if err != nil {
		d = decimal.NewFromFloat(f)
	}
	return d.String(), true
}

// Report lists number concepts without a value and values claimed by several concepts.
type Report struct {
	Unresolved []string            `json:"unresolved" yaml:"unresolved"`
	Duplicates map[string][]string `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
}

// Report builds the lookup report for the current table.
func (r *Resolver) Report() Report {
	rep := Report{Unresolved: []string{}}
	byValue := make(map[string][]string)
	for _, c := range r.index.Concepts() {
		v, ok := r.values[c]
		if !ok {
			rep.Unresolved = append(rep.Unresolved, c)
			continue
		}
		byValue[v] = append(byValue[v], c)
	}
	for v, concepts := range byValue {
		if len(concepts) < 2 {
			continue
		}
		if rep.Duplicates == nil {
			rep.Duplicates = make(map[string][]string)
		}
		rep.Duplicates[v] = concepts
	}
	return rep
}
