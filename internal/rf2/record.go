// Package rf2 reads SNOMED CT RF2 release archives.
//
// An archive is a zip of tab-delimited, CRLF-terminated text files. Rows are exposed as
// Records, plain field slices addressed positionally; which position means what depends on
// the file Family the row came from.
package rf2

import (
	"fmt"
	"strings"

	"cdconv/internal/errors"
)

// FieldDelimiter separates fields within a row.
const FieldDelimiter = "\t"

// LineDelimiter terminates every row written to an RF2 file.
const LineDelimiter = "\r\n"

// Positional field indices. Indices 4 to 7 are shared between families.
const (
	IdxID            = 0
	IdxEffectiveTime = 1
	IdxActive        = 2
	IdxModule        = 3
	IdxSource        = 4 // relationship
	IdxConcept       = 4 // description
	IdxTarget        = 5 // relationship
	IdxRefComponent  = 5 // OWL refset
	IdxOWLExpression = 6 // OWL refset
	IdxType          = 7 // relationship
	IdxTerm          = 7 // description
)

// HeaderID is the literal value of the id column in a header row.
const HeaderID = "id"

// Record is one tab-split row.
type Record []string

// ParseRecord splits a line into fields. Empty trailing fields are kept.
func ParseRecord(line string) Record {
	return Record(strings.Split(line, FieldDelimiter))
}

// IsHeader reports whether the record is a file's header row.
func (r Record) IsHeader() bool {
	return len(r) > 0 && r[IdxID] == HeaderID
}

// ID returns the row identifier.
func (r Record) ID() string {
	if len(r) == 0 {
		return ""
	}
	return r[IdxID]
}

// Active reports whether the active flag is "1".
func (r Record) Active() bool {
	return len(r) > IdxActive && r[IdxActive] == "1"
}

// Inactive reports whether the active flag is "0". Header rows are neither.
func (r Record) Inactive() bool {
	return len(r) > IdxActive && r[IdxActive] == "0"
}

// Require checks that the field at index idx exists.
func (r Record) Require(idx int) error {
	if len(r) <= idx {
		return errors.New(errors.MalformedRow,
			fmt.Sprintf("row %q has %d fields, need at least %d", r.ID(), len(r), idx+1), nil)
	}
	return nil
}

// Clone returns a copy that can be modified without touching r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	copy(out, r)
	return out
}

// String joins the fields back into a row without the line delimiter.
func (r Record) String() string {
	return strings.Join(r, FieldDelimiter)
}
