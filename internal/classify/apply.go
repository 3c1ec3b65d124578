// Package classify merges a classifier's relationship output into an existing
// relationship delta. Rows of the delta whose id the classifier also returned are
// replaced by the classifier's version.
package classify

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"

	"cdconv/internal/errors"
	"cdconv/internal/rf2"
)

// minIDLength excludes the header ("id") and other short first fields.
const minIDLength = 6

const maxLineBytes = 64 << 20

// Result counts what Apply did.
type Result struct {
	IDsRead    int `json:"idsRead" yaml:"idsRead"`
	Suppressed int `json:"suppressed" yaml:"suppressed"`
	Appended   int `json:"appended" yaml:"appended"`
}

// Apply rewrites deltaPath in place: every row whose id appears in the classifier output
// is dropped, then every classifier row after its first line is appended. Lines are
// written CRLF terminated.
func Apply(fs afero.Fs, classifierPath, deltaPath string) (*Result, error) {
	for _, p := range []string{classifierPath, deltaPath} {
		if err := checkFile(fs, p); err != nil {
			return nil, err
		}
	}

	res := &Result{}
	ids, err := readIDs(fs, classifierPath)
	if err != nil {
		return nil, err
	}
	res.IDsRead = len(ids)

	tmpPath := deltaPath + ".tmp"
	if err := fs.Rename(deltaPath, tmpPath); err != nil {
		return nil, errors.New(errors.OutputFailure, "move "+deltaPath+" aside", err)
	}

	if err := rebuild(fs, tmpPath, deltaPath, classifierPath, ids, res); err != nil {
		_ = fs.Remove(deltaPath)
		_ = fs.Rename(tmpPath, deltaPath)
		return nil, err
	}
	if err := fs.Remove(tmpPath); err != nil {
		return res, errors.New(errors.OutputFailure, "remove "+tmpPath, err)
	}
	return res, nil
}

func rebuild(fs afero.Fs, tmpPath, deltaPath, classifierPath string, ids map[string]struct{}, res *Result) error {
	out, err := fs.Create(deltaPath)
	if err != nil {
		return errors.New(errors.OutputFailure, "create "+deltaPath, err)
	}
	w := bufio.NewWriter(out)

	err = eachLine(fs, tmpPath, func(_ int, line string) error {
		if _, found := ids[firstField(line)]; found {
			res.Suppressed++
			return nil
		}
		return writeLine(w, line)
	})
	if err == nil {
		err = eachLine(fs, classifierPath, func(n int, line string) error {
			if n == 1 {
				return nil
			}
			res.Appended++
			return writeLine(w, line)
		})
	}

	flushErr := w.Flush()
	closeErr := out.Close()
	switch {
	case err != nil:
		return err
	case flushErr != nil:
		return errors.New(errors.OutputFailure, "write "+deltaPath, flushErr)
	case closeErr != nil:
		return errors.New(errors.OutputFailure, "close "+deltaPath, closeErr)
	}
	return nil
}

func readIDs(fs afero.Fs, path string) (map[string]struct{}, error) {
	ids := make(map[string]struct{})
	err := eachLine(fs, path, func(_ int, line string) error {
		fields := strings.Split(line, rf2.FieldDelimiter)
		if len(fields) > 1 && len(fields[0]) >= minIDLength {
			ids[fields[0]] = struct{}{}
		}
		return nil
	})
	return ids, err
}

// eachLine calls fn with every line of path, numbered from 1, without its line ending.
func eachLine(fs afero.Fs, path string, fn func(n int, line string) error) error {
	f, err := fs.Open(path)
	if err != nil {
		return errors.New(errors.ConfigInvalid, "cannot read "+path, err)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	n := 0
	for sc.Scan() {
		n++
		if err := fn(n, strings.TrimSuffix(sc.Text(), "\r")); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return errors.New(errors.ArchiveUnreadable, fmt.Sprintf("read %s at line %d", path, n+1), err)
	}
	return nil
}

func firstField(line string) string {
	if i := strings.Index(line, rf2.FieldDelimiter); i >= 0 {
		return line[:i]
	}
	return line
}

func writeLine(w io.StringWriter, line string) error {
	if _, err := w.WriteString(line + rf2.LineDelimiter); err != nil {
		return errors.New(errors.OutputFailure, "write delta", err)
	}
	return nil
}

func checkFile(fs afero.Fs, path string) error {
	info, err := fs.Stat(path)
	if err != nil {
		return errors.New(errors.ConfigInvalid, "cannot read from "+path, err)
	}
	if !info.Mode().IsRegular() {
		return errors.Newf(errors.ConfigInvalid, "cannot read from %s: not a regular file", path)
	}
	return nil
}
