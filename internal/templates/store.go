// Package templates stores named template images on disk.
//
// A template's identity is its file name inside the template directory.
// Saving under an existing name overwrites it.
package templates

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/image/bmp"

	cferrors "github.com/chazuruo/clickflow/internal/errors"
)

// DefaultExtension is appended to names without a supported extension.
const DefaultExtension = ".png"

// DefaultExtensions are the recognized template file extensions.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg", ".bmp"}

// Descriptor describes one stored template.
type Descriptor struct {
	Name    string
	Path    string
	Width   int
	Height  int
	Format  string
	Size    int64
	ModTime time.Time
	// Digest is the hex BLAKE2b-256 of the file contents.
	Digest string
}

// Store manages the template directory.
type Store struct {
	dir          string
	exts         []string
	dupDistance  int
	minSelection int
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithExtensions sets the recognized extensions.
func WithExtensions(exts []string) Option {
	return func(s *Store) {
		if len(exts) > 0 {
			s.exts = nil
			for _, e := range exts {
				s.exts = append(s.exts, strings.ToLower(e))
			}
		}
	}
}

// WithDuplicateDistance sets the perceptual hash distance at or below which
// Save logs a near-duplicate warning. Negative disables the check.
func WithDuplicateDistance(d int) Option {
	return func(s *Store) { s.dupDistance = d }
}

// WithMinSelection sets the minimum region size accepted by SaveSelections.
func WithMinSelection(px int) Option {
	return func(s *Store) { s.minSelection = px }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock sets the time source used for generated names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a store rooted at dir. The directory is created on first use.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir:          dir,
		exts:         DefaultExtensions,
		dupDistance:  -1,
		minSelection: 10,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the template directory.
func (s *Store) Dir() string { return s.dir }

// Normalize validates name and appends DefaultExtension when it has no
// recognized extension.
func (s *Store) Normalize(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "", cferrors.Invalidf("template name %q", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return "", cferrors.Invalidf("template name %q must not contain a path separator", name)
	}
	if !s.supported(name) {
		name += DefaultExtension
	}
	return name, nil
}

// Path returns the file path of the named template.
func (s *Store) Path(name string) (string, error) {
	n, err := s.Normalize(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, n), nil
}

// Exists reports whether the named template is on disk.
func (s *Store) Exists(name string) bool {
	path, err := s.Path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func (s *Store) supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range s.exts {
		if ext == e {
			return true
		}
	}
	return false
}

func (s *Store) ensureDir() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return &cferrors.StorageError{Op: "mkdir", Path: s.dir, Err: ioErr(err)}
	}
	return nil
}

// Save encodes img under name, overwriting any existing template.
func (s *Store) Save(name string, img image.Image) (Descriptor, error) {
	n, err := s.Normalize(name)
	if err != nil {
		return Descriptor{}, &cferrors.TemplateError{Op: "save", Name: name, Err: err}
	}
	if img == nil || img.Bounds().Empty() {
		return Descriptor{}, &cferrors.TemplateError{Op: "save", Name: n, Err: cferrors.Invalidf("empty image")}
	}
	if err := s.ensureDir(); err != nil {
		return Descriptor{}, err
	}

	var buf bytes.Buffer
	if err := encode(&buf, n, img); err != nil {
		return Descriptor{}, &cferrors.TemplateError{Op: "save", Name: n, Err: err}
	}

	path := filepath.Join(s.dir, n)
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return Descriptor{}, &cferrors.StorageError{Op: "save", Path: path, Err: ioErr(err)}
	}

	s.warnDuplicates(n, img)
	return s.describe(n)
}

func encode(buf *bytes.Buffer, name string, img image.Image) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(buf, img, &jpeg.Options{Quality: 95})
	case ".bmp":
		return bmp.Encode(buf, img)
	default:
		return png.Encode(buf, img)
	}
}

// List returns all templates sorted by name.
func (s *Store) List() ([]Descriptor, error) {
	if err := s.ensureDir(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &cferrors.StorageError{Op: "list", Path: s.dir, Err: ioErr(err)}
	}

	var out []Descriptor
	for _, e := range entries {
		if !e.Type().IsRegular() || !s.supported(e.Name()) {
			continue
		}
		d, err := s.describe(e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) describe(name string) (Descriptor, error) {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, &cferrors.StorageError{Op: "stat", Path: path, Err: ioErr(err)}
	}
	info, err := os.Stat(path)
	if err != nil {
		return Descriptor{}, &cferrors.StorageError{Op: "stat", Path: path, Err: ioErr(err)}
	}

	sum := blake2b.Sum256(data)
	d := Descriptor{
		Name:    name,
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Digest:  hex.EncodeToString(sum[:]),
		Format:  strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."),
	}
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		d.Width, d.Height, d.Format = cfg.Width, cfg.Height, format
	} else {
		s.logger.Debug("template is not a decodable image", "name", name, "error", err)
	}
	return d, nil
}

// Load decodes the named template.
func (s *Store) Load(name string) (image.Image, error) {
	n, err := s.Normalize(name)
	if err != nil {
		return nil, &cferrors.TemplateError{Op: "load", Name: name, Err: err}
	}
	path := filepath.Join(s.dir, n)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &cferrors.TemplateError{Op: "load", Name: n, Err: cferrors.ErrNotFound}
		}
		return nil, &cferrors.StorageError{Op: "load", Path: path, Err: ioErr(err)}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &cferrors.StorageError{Op: "load", Path: path, Err: fmt.Errorf("%w: %w", cferrors.ErrInvalid, err)}
	}
	return img, nil
}

// Delete removes the named template.
func (s *Store) Delete(name string) error {
	n, err := s.Normalize(name)
	if err != nil {
		return &cferrors.TemplateError{Op: "delete", Name: name, Err: err}
	}
	path := filepath.Join(s.dir, n)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return &cferrors.TemplateError{Op: "delete", Name: n, Err: cferrors.ErrNotFound}
		}
		return &cferrors.StorageError{Op: "delete", Path: path, Err: ioErr(err)}
	}
	s.logger.Debug("template deleted", "name", n)
	return nil
}

// ioErr strips the path (carried by StorageError) and marks err as I/O.
func ioErr(err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		err = pe.Err
	}
	return fmt.Errorf("%w: %w", cferrors.ErrIO, err)
}
