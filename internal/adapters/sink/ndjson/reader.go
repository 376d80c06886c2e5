package ndjson

import (
	"bufio"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strconv"

	"stockpipe/internal/core/record"
	perr "stockpipe/internal/platform/errors"
)

const maxLineSize = 4 * 1024 * 1024

// Verify streams the data file and checks it against the manifest checksum and count
func Verify(h Handle) error {
	rc, err := openData(h)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	sum := sha256.New()
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	var n int64
	for sc.Scan() {
		sum.Write(sc.Bytes())
		sum.Write([]byte{'\n'})
		n++
	}
	if err := sc.Err(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeLoadFailed, "read sink %s", h.DataPath())
	}
	if n != h.Manifest.Records {
		return perr.Newf(perr.ErrorCodeLoadFailed, "sink %s holds %d records, manifest says %d", h.Dir, n, h.Manifest.Records)
	}
	if got := hex.EncodeToString(sum.Sum(nil)); got != h.Manifest.SHA256 {
		return perr.Newf(perr.ErrorCodeLoadFailed, "sink %s checksum mismatch", h.Dir)
	}
	return nil
}

// Reader streams records out of a committed sink
type Reader struct {
	h      Handle
	schema record.Schema
	rc     io.ReadCloser
	sc     *bufio.Scanner
	line   int64
	err    error
}

// NewReader opens h for streaming; values are coerced using schema
func NewReader(h Handle, schema record.Schema) (*Reader, error) {
	rc, err := openData(h)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Reader{h: h, schema: schema, rc: rc, sc: sc}, nil
}

// Next returns the next record; io.EOF when done. A line that is not a
// record yields a SchemaViolation tagged with its line number
func (r *Reader) Next() (record.Record, error) {
	if r.err != nil {
		return record.Record{}, r.err
	}
	for r.sc.Scan() {
		r.line++
		b := r.sc.Bytes()
		if len(b) == 0 {
			continue
		}
		rec, err := record.Decode(b, r.schema)
		if err != nil {
			return record.Record{}, perr.WithOp(err, "sink line "+strconv.FormatInt(r.line, 10))
		}
		return rec, nil
	}
	if err := r.sc.Err(); err != nil {
		r.err = perr.Wrapf(err, perr.ErrorCodeLoadFailed, "read sink %s", r.h.DataPath())
		return record.Record{}, r.err
	}
	r.err = io.EOF
	return record.Record{}, io.EOF
}

// Stats returns the number of lines consumed so far
func (r *Reader) Stats() (lines int64) { return r.line }

// Close releases the file
func (r *Reader) Close() error { return r.rc.Close() }

type gzFile struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzFile) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzFile) Close() error {
	gerr := g.gz.Close()
	if err := g.f.Close(); err != nil {
		return err
	}
	return gerr
}

func openData(h Handle) (io.ReadCloser, error) {
	f, err := os.Open(h.DataPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, perr.NotFoundf("sink data %s is missing", h.DataPath())
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "open sink %s", h.DataPath())
	}
	if !h.Manifest.Gzip {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, perr.Wrapf(err, perr.ErrorCodeLoadFailed, "sink %s is not gzip", h.DataPath())
	}
	return &gzFile{gz: gz, f: f}, nil
}
