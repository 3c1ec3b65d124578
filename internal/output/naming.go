package output

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"cdconv/internal/errors"
)

var releaseDateSuffix = regexp.MustCompile(`_\d{8}\.txt`)

// PathFor maps an archive entry to its output file: every _YYYYMMDD.txt becomes
// _<date>.txt, every "Snapshot" becomes "Delta", and the result is placed under dir.
// Entry names that are absolute or climb out of dir are rejected.
func PathFor(dir, entryPath, date string) (string, error) {
	name := releaseDateSuffix.ReplaceAllLiteralString(entryPath, "_"+date+".txt")
	name = filepath.FromSlash(strings.ReplaceAll(name, "Snapshot", "Delta"))
	if !filepath.IsLocal(name) {
		return "", errors.New(errors.ArchiveUnreadable,
			fmt.Sprintf("archive entry %q would be written outside %s", entryPath, dir), nil)
	}
	return filepath.Join(dir, name), nil
}
