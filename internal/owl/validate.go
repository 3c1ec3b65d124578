package owl

import (
	"fmt"
	"strings"

	"cdconv/internal/errors"
)

// Violation is attached as Details to an INVARIANT_VIOLATION error.
type Violation struct {
	Concept string `json:"concept"`
	Check   string `json:"check"`
	Before  string `json:"before"`
	After   string `json:"after"`
}

// Validate checks a rewrite kept the expression's structure: the same number of open
// brackets, balanced brackets afterwards, and the same number of colons (each colon that
// preceded a replaced target reappears in the ^^xsd: suffix).
func Validate(concept, before, after string) error {
	openBefore := strings.Count(before, "(")
	openAfter := strings.Count(after, "(")
	if openBefore != openAfter {
		return violation(concept, "bracket count mismatch", before, after)
	}
	if closeAfter := strings.Count(after, ")"); openAfter != closeAfter {
		return violation(concept, "bracket pair mismatch", before, after)
	}
	if strings.Count(before, ":") != strings.Count(after, ":") {
		return violation(concept, "argument count mismatch", before, after)
	}
	return nil
}

func violation(concept, check, before, after string) error {
	msg := fmt.Sprintf("OWL conversion failure, %s at %s\nBefore: %s\nAfter: %s", check, concept, before, after)
	return errors.New(errors.InvariantViolation, msg, nil).WithDetails(Violation{
		Concept: concept,
		Check:   check,
		Before:  before,
		After:   after,
	})
}
