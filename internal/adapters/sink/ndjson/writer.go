package ndjson

import (
	"bufio"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"path/filepath"
	"time"

	"stockpipe/internal/core/record"
	perr "stockpipe/internal/platform/errors"
)

// Writer appends records to an uncommitted sink
type Writer struct {
	dir   string
	runID string
	path  string // final data path
	part  string
	gzip  bool
	now   func() time.Time

	f     *os.File
	bw    *bufio.Writer
	gz    *gzip.Writer
	out   io.Writer
	sum   hash.Hash
	count int64
	bytes int64
	done  bool
}

func newWriter(dir, runID string, gz bool, now func() time.Time) (*Writer, error) {
	name := dataName
	if gz {
		name += ".gz"
	}
	path := filepath.Join(dir, name)
	part := path + partSuffix

	f, err := os.OpenFile(part, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "open sink file %s", part)
	}
	w := &Writer{dir: dir, runID: runID, path: path, part: part, gzip: gz, now: now, f: f, sum: sha256.New()}
	w.bw = bufio.NewWriterSize(f, 256*1024)
	w.out = w.bw
	if gz {
		w.gz = gzip.NewWriter(w.bw)
		w.out = w.gz
	}
	return w, nil
}

// Dir returns the sink directory
func (w *Writer) Dir() string { return w.dir }

// Count returns the number of records written so far
func (w *Writer) Count() int64 { return w.count }

// Write appends one record as a JSON line
func (w *Writer) Write(r record.Record) error {
	if w.done {
		return perr.Internalf("sink writer for %s is closed", w.runID)
	}
	line, err := r.MarshalJSON()
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeNormalization, "encode record")
	}
	line = append(line, '\n')
	if _, err := w.out.Write(line); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "write sink %s", w.part)
	}
	w.sum.Write(line)
	w.count++
	w.bytes += int64(len(line))
	return nil
}

// Commit makes the sink durable and visible to Open; skipped is recorded in the manifest
func (w *Writer) Commit(table string, skipped int64) (Handle, error) {
	if w.done {
		return Handle{}, perr.Internalf("sink writer for %s is closed", w.runID)
	}
	if err := w.closeFile(true); err != nil {
		_ = w.Abort()
		return Handle{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "flush sink %s", w.part)
	}
	if err := os.Rename(w.part, w.path); err != nil {
		_ = w.Abort()
		return Handle{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "publish sink %s", w.path)
	}
	m := Manifest{
		RunID:     w.runID,
		Table:     table,
		Records:   w.count,
		Skipped:   skipped,
		Bytes:     w.bytes,
		SHA256:    hex.EncodeToString(w.sum.Sum(nil)),
		Gzip:      w.gzip,
		CreatedAt: w.now().UTC(),
	}
	if err := writeManifest(w.dir, m); err != nil {
		_ = os.Remove(w.path)
		w.done = true
		return Handle{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "commit sink %s", w.dir)
	}
	w.done = true
	return Handle{Dir: w.dir, Manifest: m}, nil
}

// Abort discards the uncommitted data; safe to call more than once and after Commit
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	_ = w.closeFile(false)
	if err := os.Remove(w.part); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (w *Writer) closeFile(flush bool) error {
	if w.f == nil {
		return nil
	}
	f := w.f
	w.f = nil
	var first error
	if flush {
		if w.gz != nil {
			first = w.gz.Close()
		}
		if err := w.bw.Flush(); err != nil && first == nil {
			first = err
		}
		if err := f.Sync(); err != nil && first == nil {
			first = err
		}
	}
	if err := f.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
