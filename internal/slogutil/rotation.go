package slogutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
)

// RotatingFile is an append-only log file that is moved aside once it would grow
// past maxSize. Backups are numbered path.1 (newest) to path.<maxBackups>.
type RotatingFile struct {
	fs         afero.Fs
	path       string
	maxSize    int64
	maxBackups int

	mu   sync.Mutex
	file afero.File
	size int64
}

// OpenRotatingFile opens path on fs for appending, creating its directory.
// With maxBackups 0 a full file is discarded instead of kept.
func OpenRotatingFile(fs afero.Fs, path string, maxSize int64, maxBackups int) (*RotatingFile, error) {
	r := &RotatingFile{fs: fs, path: path, maxSize: maxSize, maxBackups: maxBackups}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RotatingFile) open() error {
	f, err := openAppend(r.fs, r.path)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	r.file = f
	r.size = info.Size()
	return nil
}

// Write appends p, rotating first when p would take a non-empty file past maxSize.
// A failed rotation keeps writing to the current file.
func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return 0, os.ErrClosed
	}
	if r.maxSize > 0 && r.size > 0 && r.size+int64(len(p)) > r.maxSize {
		_ = r.rotate()
	}
	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// Close closes the current file. Later writes fail.
func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *RotatingFile) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}
	if r.maxBackups == 0 {
		_ = r.fs.Remove(r.path)
	} else {
		_ = r.fs.Remove(r.backup(r.maxBackups))
		for i := r.maxBackups - 1; i >= 1; i-- {
			if ok, _ := afero.Exists(r.fs, r.backup(i)); ok {
				_ = r.fs.Rename(r.backup(i), r.backup(i+1))
			}
		}
		_ = r.fs.Rename(r.path, r.backup(1))
	}
	r.size = 0
	return r.open()
}

func (r *RotatingFile) backup(n int) string {
	return fmt.Sprintf("%s.%d", r.path, n)
}

// ParseSize parses a size such as "10MB", "512KiB" or "1.5 GB" into bytes.
// Empty or unparseable input gives 0.
func ParseSize(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0
	}
	return int64(n)
}

// OpenLogFile opens the --log-file target. A parseable maxSize turns on rotation.
func OpenLogFile(path, maxSize string, maxBackups int) (io.WriteCloser, error) {
	fs := afero.NewOsFs()
	if size := ParseSize(maxSize); size > 0 {
		return OpenRotatingFile(fs, path, size, maxBackups)
	}
	return openAppend(fs, path)
}

func openAppend(fs afero.Fs, path string) (afero.File, error) {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return fs.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}
