// Package testutil builds RF2 release archives for tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
)

// RF2 header rows, tab separated.
var (
	RelationshipHeader = Row("id", "effectiveTime", "active", "moduleId", "sourceId", "destinationId",
		"relationshipGroup", "typeId", "characteristicTypeId", "modifierId")
	DescriptionHeader = Row("id", "effectiveTime", "active", "moduleId", "conceptId", "languageCode",
		"typeId", "term", "caseSignificanceId")
	OWLHeader = Row("id", "effectiveTime", "active", "moduleId", "refsetId", "referencedComponentId",
		"owlExpression")
	ConceptHeader = Row("id", "effectiveTime", "active", "moduleId", "definitionStatusId")
)

const (
	moduleID     = "900000000000207008"
	owlRefsetID  = "733073007"
	isA          = "116680003"
	fsnType      = "900000000000003001"
	inferredChar = "900000000000011006"
)

// Entry is one file placed in a fixture archive.
type Entry struct {
	Name string
	Rows []string
}

// Row joins fields with tabs.
func Row(fields ...string) string {
	return strings.Join(fields, "\t")
}

// RelRow is an inferred relationship row.
func RelRow(id, active, source, destination, typeID string) string {
	return Row(id, "20200131", active, moduleID, source, destination, "0", typeID, inferredChar, "900000000000451002")
}

// IsARow is an active is-a relationship from source to destination.
func IsARow(id, source, destination string) string {
	return RelRow(id, "1", source, destination, isA)
}

// DescRow is a description row whose term is term.
func DescRow(id, active, concept, term string) string {
	return Row(id, "20200131", active, moduleID, concept, "en", fsnType, term, "900000000000448009")
}

// OWLRow is an OWL expression refset row.
func OWLRow(id, effectiveTime, active, concept, expression string) string {
	return Row(id, effectiveTime, active, moduleID, owlRefsetID, concept, expression)
}

// WriteArchive writes a zip named name under dir and returns its path. Rows are
// CRLF terminated as in a published release.
func WriteArchive(t *testing.T, dir, name string, entries ...Entry) string {
	t.Helper()

	archivePath := filepath.Join(dir, name)
	f, err := os.Create(archivePath)
	if err != nil {
		t.Fatalf("Failed to create archive: %v", err)
	}
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			t.Fatalf("Failed to add %s: %v", e.Name, err)
		}
		for _, row := range e.Rows {
			if _, err := w.Write([]byte(row + "\r\n")); err != nil {
				t.Fatalf("Failed to write %s: %v", e.Name, err)
			}
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to finish archive: %v", err)
	}
	return archivePath
}

// ReadLines returns the CRLF-separated lines of a file, without the trailing empty line.
func ReadLines(t *testing.T, data []byte) []string {
	t.Helper()

	text := strings.TrimSuffix(string(data), "\r\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\r\n")
}
