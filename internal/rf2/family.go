package rf2

import (
	"fmt"
	"path"

	"github.com/bmatcuk/doublestar/v4"
)

// Family identifies which kind of RF2 file an entry holds.
type Family int

const (
	FamilyOther Family = iota
	FamilyRelationship
	FamilyDescription
	FamilyOWLExpression
)

func (f Family) String() string {
	switch f {
	case FamilyRelationship:
		return "relationship"
	case FamilyDescription:
		return "description"
	case FamilyOWLExpression:
		return "owl"
	default:
		return "other"
	}
}

// Default base-name patterns. StatedRelationship and RelationshipConcreteValues files
// deliberately do not match the relationship pattern.
const (
	DefaultRelationshipPattern = "sct2_Relationship_*"
	DefaultDescriptionPattern  = "sct2_Description_*"
	DefaultOWLPattern          = "sct2_sRefset_OWLExpression*"
)

// Families classifies archive entries by glob patterns on their base name.
type Families struct {
	Relationship string
	Description  string
	OWL          string
}

// DefaultFamilies returns the patterns used by international and national releases.
func DefaultFamilies() Families {
	return Families{
		Relationship: DefaultRelationshipPattern,
		Description:  DefaultDescriptionPattern,
		OWL:          DefaultOWLPattern,
	}
}

// Validate checks every pattern is well formed.
func (f Families) Validate() error {
	for name, p := range map[string]string{
		"relationship": f.Relationship,
		"description":  f.Description,
		"owl":          f.OWL,
	} {
		if p == "" || !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid %s pattern %q", name, p)
		}
	}
	return nil
}

// Classify returns the family of the entry at entryPath.
func (f Families) Classify(entryPath string) Family {
	base := path.Base(entryPath)
	switch {
	case match(f.OWL, base):
		return FamilyOWLExpression
	case match(f.Relationship, base):
		return FamilyRelationship
	case match(f.Description, base):
		return FamilyDescription
	default:
		return FamilyOther
	}
}

func match(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}
