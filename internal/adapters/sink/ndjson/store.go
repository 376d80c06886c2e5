package ndjson

import (
	"context"
	"encoding/json"
	stderrs "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	perr "stockpipe/internal/platform/errors"
	"stockpipe/internal/platform/validate"
)

const (
	manifestName = "manifest.json"
	dataName     = "records.ndjson"
	partSuffix   = ".part"
)

// Manifest describes a committed sink
type Manifest struct {
	RunID     string    `json:"run_id" validate:"required"`
	Table     string    `json:"table" validate:"required"`
	Records   int64     `json:"records" validate:"min=0"`
	Skipped   int64     `json:"skipped" validate:"min=0"`
	Bytes     int64     `json:"bytes" validate:"min=0"`
	SHA256    string    `json:"sha256" validate:"required,len=64,hexadecimal"`
	Gzip      bool      `json:"gzip"`
	CreatedAt time.Time `json:"created_at"`
}

// Handle points at a committed sink
type Handle struct {
	Dir      string
	Manifest Manifest
}

// DataPath returns the path of the records file
func (h Handle) DataPath() string {
	name := dataName
	if h.Manifest.Gzip {
		name += ".gz"
	}
	return filepath.Join(h.Dir, name)
}

// Store creates and opens sinks below a root directory
type Store struct {
	root string
	gzip bool
	now  func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithGzip compresses the records file
func WithGzip(on bool) Option { return func(s *Store) { s.gzip = on } }

// New returns a Store rooted at root
func New(root string, opts ...Option) *Store {
	s := &Store{root: root, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Root returns the sink root directory
func (s *Store) Root() string { return s.root }

// Dir returns the directory used for runID
func (s *Store) Dir(runID string) string { return filepath.Join(s.root, runID) }

// Create starts a fresh sink for runID, discarding anything a previous attempt left behind
func (s *Store) Create(ctx context.Context, runID string) (*Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if runID == "" || strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return nil, perr.InvalidArgf("invalid run id %q for sink", runID)
	}
	dir := s.Dir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "create sink dir %s", dir)
	}
	// manifest first: once it is gone the old data no longer counts as committed
	for _, name := range []string{manifestName, dataName, dataName + ".gz"} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !stderrs.Is(err, fs.ErrNotExist) {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "reset sink %s", dir)
		}
	}
	return newWriter(dir, runID, s.gzip, s.now)
}

// Open returns the committed sink of runID
func (s *Store) Open(runID string) (Handle, error) { return OpenDir(s.Dir(runID)) }

// OpenDir returns the committed sink stored in dir
func OpenDir(dir string) (Handle, error) {
	b, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		if stderrs.Is(err, fs.ErrNotExist) {
			return Handle{}, perr.NotFoundf("no committed sink in %s", dir)
		}
		return Handle{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "read sink manifest in %s", dir)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return Handle{}, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "sink manifest in %s is corrupt", dir)
	}
	if err := validate.Struct(m); err != nil {
		return Handle{}, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "sink manifest in %s is incomplete", dir)
	}
	h := Handle{Dir: dir, Manifest: m}
	if _, err := os.Stat(h.DataPath()); err != nil {
		return Handle{}, perr.NotFoundf("sink %s has a manifest but no data file", dir)
	}
	return h, nil
}

// Remove deletes a sink directory
func (s *Store) Remove(h Handle) error {
	if h.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(h.Dir); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "remove sink %s", h.Dir)
	}
	return nil
}

// writeManifest lands the manifest atomically; this is the commit point
func writeManifest(dir string, m Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	p := filepath.Join(dir, manifestName)
	tmp := p + partSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, p); err != nil {
		return fmt.Errorf("commit manifest: %w", err)
	}
	syncDir(dir)
	return nil
}

// syncDir persists renames in dir, best effort
func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
}
