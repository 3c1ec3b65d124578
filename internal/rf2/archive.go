package rf2

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"

	"cdconv/internal/errors"
)

// maxLineBytes bounds a single row. OWL expressions for large concepts run to tens of KB.
const maxLineBytes = 64 << 20

// ErrStreamConsumed is returned when an entry's records are requested a second time.
// Entries are single pass; re-open the archive to read again.
var ErrStreamConsumed = stderrors.New("rf2: entry stream already consumed")

// Archive is an open release zip for one layer.
type Archive struct {
	layer Layer
	zr    *zip.ReadCloser
}

// OpenArchive opens the zip for layer. The central directory is read; entry contents are
// streamed on demand.
func OpenArchive(layer Layer) (*Archive, error) {
	zr, err := zip.OpenReader(layer.Path)
	if err != nil {
		return nil, errors.New(errors.ArchiveUnreadable,
			fmt.Sprintf("cannot open %s archive %s", layer.Kind, layer.Path), err)
	}
	return &Archive{layer: layer, zr: zr}, nil
}

// Layer returns the layer this archive was opened for.
func (a *Archive) Layer() Layer {
	return a.layer
}

// Close releases the archive.
func (a *Archive) Close() error {
	return a.zr.Close()
}

// Walk calls fn, in archive order, for every file entry whose base name contains the
// layer's filter. Any reader fn left open is closed when fn returns.
func (a *Archive) Walk(ctx context.Context, fn func(*Entry) error) error {
	filter := a.layer.Kind.Filter()
	for _, f := range a.zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			continue
		}
		if !strings.Contains(path.Base(f.Name), filter) {
			continue
		}

		entry := &Entry{Path: f.Name, Layer: a.layer, file: f}
		err := fn(entry)
		entry.close()
		if err != nil {
			return err
		}
	}
	return nil
}

// Entry is one file inside an archive.
type Entry struct {
	// Path is the entry name inside the zip, slash separated.
	Path  string
	Layer Layer

	file    *zip.File
	records *Records
}

// IsDelta reports whether the entry came from the delta layer.
func (e *Entry) IsDelta() bool {
	return e.Layer.Kind == LayerDelta
}

// Records opens the entry's row stream. It can be called once per entry.
func (e *Entry) Records() (*Records, error) {
	if e.records != nil {
		return nil, ErrStreamConsumed
	}
	rc, err := e.file.Open()
	if err != nil {
		return nil, errors.New(errors.ArchiveUnreadable,
			fmt.Sprintf("cannot open %s in %s", e.Path, e.Layer.Path), err)
	}
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	e.records = &Records{entry: e.Path, rc: rc, sc: sc}
	return e.records, nil
}

func (e *Entry) close() {
	if e.records != nil {
		_ = e.records.Close()
	}
}

// Records iterates the rows of one entry, in the manner of bufio.Scanner:
//
//	for recs.Next() {
//		rec := recs.Record()
//	}
//	if err := recs.Err(); err != nil { ... }
type Records struct {
	entry  string
	rc     io.ReadCloser
	sc     *bufio.Scanner
	rec    Record
	line   int
	err    error
	closed bool
}

// Next advances to the next non-blank row.
func (r *Records) Next() bool {
	if r.closed || r.err != nil {
		return false
	}
	for r.sc.Scan() {
		r.line++
		text := r.sc.Text()
		if text == "" {
			continue
		}
		r.rec = ParseRecord(text)
		return true
	}
	if err := r.sc.Err(); err != nil {
		r.err = errors.New(errors.ArchiveUnreadable,
			fmt.Sprintf("read %s at line %d", r.entry, r.line+1), err)
	}
	r.rec = nil
	return false
}

// Record returns the current row. The slice is owned by the caller.
func (r *Records) Record() Record {
	return r.rec
}

// Line returns the 1-based line number of the current row.
func (r *Records) Line() int {
	return r.line
}

// Err returns the first read error, if any.
func (r *Records) Err() error {
	return r.err
}

// Close releases the underlying entry reader.
func (r *Records) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.rc.Close()
}
