// Package output writes the converted delta fileset.
//
// Active rows from the delta layer are written as they are read. An inactive OWL row is
// never written; it only discards the pending row with its id. Rewritten OWL rows from the
// snapshot layers are held back in a pending table keyed by row id, so a later inactivation
// or delta row for the same id can discard them, and are written at Finalize.
package output

import (
	"bufio"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"

	"cdconv/internal/errors"
	"cdconv/internal/rf2"
)

// Options configures a Manager.
type Options struct {
	// Dir is the output root.
	Dir string
	// ReleaseDate (YYYYMMDD) replaces the release date in output file names.
	ReleaseDate string
	// Latest is the most specific layer in the run. Only its headers are written eagerly.
	Latest rf2.LayerKind
}

// RewriteFunc converts an active OWL row. It returns the row to emit and whether the
// expression changed.
type RewriteFunc func(rec rf2.Record) (rf2.Record, bool, error)

// Action is what Handle did with a row.
type Action int

const (
	Dropped Action = iota
	WroteHeader
	Wrote
	Pended
)

func (a Action) String() string {
	switch a {
	case WroteHeader:
		return "header"
	case Wrote:
		return "written"
	case Pended:
		return "pending"
	default:
		return "dropped"
	}
}

// Stats counts what a Manager has done so far.
type Stats struct {
	RowsWritten      int `json:"rowsWritten" yaml:"rowsWritten"`
	Immediate        int `json:"immediate" yaml:"immediate"`
	PendingDiscarded int `json:"pendingDiscarded" yaml:"pendingDiscarded"`
	PendingDrained   int `json:"pendingDrained" yaml:"pendingDrained"`
	// Remodelled counts emitted rows whose OWL expression was changed.
	Remodelled int `json:"remodelled" yaml:"remodelled"`
}

type pendingRow struct {
	rec  rf2.Record
	path string
}

type fileWriter struct {
	f afero.File
	w *bufio.Writer
}

// Manager routes pass three rows to output files. It is not safe for concurrent use.
type Manager struct {
	fs   afero.Fs
	opts Options

	writers map[string]*fileWriter
	headers map[string]rf2.Record

	pending       map[string]pendingRow
	pendingOrder  []string
	pendingTarget string

	stats Stats
}

// NewManager creates a Manager writing to fs.
func NewManager(fs afero.Fs, opts Options) *Manager {
	return &Manager{
		fs:      fs,
		opts:    opts,
		writers: make(map[string]*fileWriter),
		headers: make(map[string]rf2.Record),
		pending: make(map[string]pendingRow),
	}
}

// Stream is the per-entry view of a Manager.
type Stream struct {
	m      *Manager
	layer  rf2.LayerKind
	family rf2.Family
	path   string
}

// Begin starts an archive entry. The first OWL entry of the latest layer becomes the
// target for pending rows.
func (m *Manager) Begin(layer rf2.LayerKind, entryPath string, family rf2.Family) (*Stream, error) {
	path, err := PathFor(m.opts.Dir, entryPath, m.opts.ReleaseDate)
	if err != nil {
		return nil, err
	}
	if family == rf2.FamilyOWLExpression && layer == m.opts.Latest && m.pendingTarget == "" {
		m.pendingTarget = path
	}
	return &Stream{m: m, layer: layer, family: family, path: path}, nil
}

// Path is the output file for this entry.
func (s *Stream) Path() string {
	return s.path
}

// Handle applies the carry-forward rules to one row. rewrite is only called for active
// OWL rows.
func (s *Stream) Handle(rec rf2.Record, rewrite RewriteFunc) (Action, error) {
	m := s.m
	delta := s.layer == rf2.LayerDelta

	if rec.IsHeader() {
		if _, seen := m.headers[s.path]; !seen {
			m.headers[s.path] = rec.Clone()
		}
		if s.layer != m.opts.Latest {
			return Dropped, nil
		}
		if _, open := m.writers[s.path]; open {
			return Dropped, nil
		}
		if _, err := m.open(s.path); err != nil {
			return Dropped, err
		}
		if err := m.writeLine(s.path, rec); err != nil {
			return Dropped, err
		}
		return WroteHeader, nil
	}

	if s.family != rf2.FamilyOWLExpression {
		if !delta {
			return Dropped, nil
		}
		return m.emit(s.path, rec)
	}

	if err := rec.Require(rf2.IdxOWLExpression); err != nil {
		return Dropped, err
	}
	id := rec.ID()

	if !rec.Active() {
		m.discard(id)
		return Dropped, nil
	}

	out, changed, err := rewrite(rec)
	if err != nil {
		return Dropped, err
	}
	if changed {
		out = out.Clone()
		out[rf2.IdxEffectiveTime] = ""
	}

	if delta {
		m.discard(id)
		action, err := m.emit(s.path, out)
		if err == nil && changed {
			m.stats.Remodelled++
		}
		return action, err
	}
	if !changed {
		return Dropped, nil
	}
	if _, ok := m.pending[id]; !ok {
		m.pendingOrder = append(m.pendingOrder, id)
	}
	m.pending[id] = pendingRow{rec: out, path: s.path}
	return Pended, nil
}

// Pending returns the number of rows awaiting Finalize.
func (m *Manager) Pending() int {
	return len(m.pending)
}

// Stats returns the counters so far.
func (m *Manager) Stats() Stats {
	return m.stats
}

// Files returns the output files opened so far, sorted.
func (m *Manager) Files() []string {
	out := make([]string, 0, len(m.writers))
	for p := range m.writers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Finalize writes the pending rows in first-insertion order, then flushes and closes every
// output file. It returns the number of pending rows written.
func (m *Manager) Finalize() (int, error) {
	drained := 0
	for _, id := range m.pendingOrder {
		row, ok := m.pending[id]
		if !ok {
			continue
		}
		delete(m.pending, id)

		target := m.pendingTarget
		if target == "" {
			target = row.path
		}
		if err := m.writeRow(target, row.rec); err != nil {
			m.Abort()
			return drained, err
		}
		drained++
		m.stats.PendingDrained++
		m.stats.Remodelled++
	}
	m.pendingOrder = nil

	var firstErr error
	for _, p := range m.Files() {
		if err := m.closeWriter(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return drained, firstErr
}

// Abort closes every open file without reporting errors.
func (m *Manager) Abort() {
	for p := range m.writers {
		_ = m.closeWriter(p)
	}
}

func (m *Manager) discard(id string) {
	if _, ok := m.pending[id]; ok {
		delete(m.pending, id)
		m.stats.PendingDiscarded++
	}
}

func (m *Manager) emit(path string, rec rf2.Record) (Action, error) {
	if err := m.writeRow(path, rec); err != nil {
		return Dropped, err
	}
	m.stats.Immediate++
	return Wrote, nil
}

// writeRow writes a data row, opening the file with its header when needed.
func (m *Manager) writeRow(path string, rec rf2.Record) error {
	created, err := m.open(path)
	if err != nil {
		return err
	}
	if created {
		if header, ok := m.headers[path]; ok {
			if err := m.writeLine(path, header); err != nil {
				return err
			}
		}
	}
	if err := m.writeLine(path, rec); err != nil {
		return err
	}
	m.stats.RowsWritten++
	return nil
}

func (m *Manager) open(path string) (bool, error) {
	if _, ok := m.writers[path]; ok {
		return false, nil
	}
	if err := m.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, errors.New(errors.OutputFailure, fmt.Sprintf("create directory for %s", path), err)
	}
	f, err := m.fs.Create(path)
	if err != nil {
		return false, errors.New(errors.OutputFailure, fmt.Sprintf("create %s", path), err)
	}
	m.writers[path] = &fileWriter{f: f, w: bufio.NewWriterSize(f, 256*1024)}
	return true, nil
}

func (m *Manager) writeLine(path string, rec rf2.Record) error {
	fw := m.writers[path]
	if _, err := fw.w.WriteString(rec.String()); err != nil {
		return errors.New(errors.OutputFailure, fmt.Sprintf("write %s", path), err)
	}
	if _, err := fw.w.WriteString(rf2.LineDelimiter); err != nil {
		return errors.New(errors.OutputFailure, fmt.Sprintf("write %s", path), err)
	}
	return nil
}

func (m *Manager) closeWriter(path string) error {
	fw, ok := m.writers[path]
	if !ok || fw.f == nil {
		return nil
	}
	flushErr := fw.w.Flush()
	closeErr := fw.f.Close()
	fw.f = nil
	if flushErr != nil {
		return errors.New(errors.OutputFailure, fmt.Sprintf("flush %s", path), flushErr)
	}
	if closeErr != nil {
		return errors.New(errors.OutputFailure, fmt.Sprintf("close %s", path), closeErr)
	}
	return nil
}
