// Package storage keeps uploaded files in one flat directory.
//
// Every name is validated before it touches the filesystem and every resolved
// path is checked to stay inside the root. Uploads are written to a staging
// directory first and committed with a hard link, which fails if the name is
// already taken, so a half-written or clobbered file is never visible.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// partialDir holds uploads that have not been committed yet. It is a
// directory, so listings and aggregation skip it.
const partialDir = ".partial"

var (
	ErrInvalidName   = errors.New("invalid file name")
	ErrReservedName  = errors.New("file name is reserved")
	ErrDuplicateName = errors.New("file already exists")
	ErrNotFound      = errors.New("file not found")
	ErrNotAFile      = errors.New("not a regular file")
	ErrPermission    = errors.New("permission denied")
	ErrTooLarge      = errors.New("file too large")
	ErrIO            = errors.New("storage i/o failure")
)

// FileInfo describes one stored file.
type FileInfo struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size_bytes"`
	SizeMB       float64   `json:"size_mb"`
	LastModified time.Time `json:"last_modified"`
}

type Option func(*Store)

// WithReserved marks names that uploads may not use.
func WithReserved(names ...string) Option {
	return func(s *Store) {
		for _, n := range names {
			s.reserved[n] = true
		}
	}
}

// WithMaxBytes limits the size of a single upload. Zero means no limit.
func WithMaxBytes(n int64) Option {
	return func(s *Store) {
		s.maxBytes = n
	}
}

// Store is a flat file store rooted at one directory.
type Store struct {
	root     string
	reserved map[string]bool
	maxBytes int64
	dirMode  os.FileMode
	fileMode os.FileMode
}

// New returns a Store for root. The directory is created on first write.
func New(root string, opts ...Option) *Store {
	s := &Store{
		root:     filepath.Clean(root),
		reserved: make(map[string]bool),
		dirMode:  0o755,
		fileMode: 0o644,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Root() string {
	return s.root
}

// MaxBytes is the upload size limit, zero when unlimited.
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// RootExists reports whether the store directory has been created.
func (s *Store) RootExists() (bool, error) {
	info, err := os.Stat(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return info.IsDir(), nil
}

// ValidateName rejects names that are empty, contain a parent-directory
// segment, a path separator or a non-printable character.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	if name == "." || name == ".." || strings.Contains(name, "../") || strings.Contains(name, `..\`) {
		return fmt.Errorf("%w: parent directory reference", ErrInvalidName)
	}
	for _, seg := range strings.FieldsFunc(name, isSeparator) {
		if seg == ".." {
			return fmt.Errorf("%w: parent directory reference", ErrInvalidName)
		}
	}
	for i, r := range name {
		if !unicode.IsPrint(r) {
			return fmt.Errorf("%w: non-printable character at position %d", ErrInvalidName, i)
		}
	}
	if strings.ContainsFunc(name, isSeparator) {
		return fmt.Errorf("%w: path separators are not allowed", ErrInvalidName)
	}
	return nil
}

func isSeparator(r rune) bool {
	return r == '/' || r == '\\'
}

// resolve validates name and returns its absolute location inside the root.
func (s *Store) resolve(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	p := filepath.Join(s.root, name)
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: resolves outside the store", ErrInvalidName)
	}
	return p, nil
}

// Save stores the content of r under name. It never overwrites.
func (s *Store) Save(ctx context.Context, name string, r io.Reader) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}
	p, err := s.resolve(name)
	if err != nil {
		return FileInfo{}, err
	}
	if s.reserved[name] {
		return FileInfo{}, fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	if _, err := os.Lstat(p); err == nil {
		return FileInfo{}, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}

	tmp, err := s.writeTemp(r)
	if err != nil {
		return FileInfo{}, err
	}
	defer func() { _ = os.Remove(tmp) }()

	// Link fails with EEXIST instead of replacing, which closes the window
	// between the existence check above and the commit.
	if err := os.Link(tmp, p); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return FileInfo{}, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		return FileInfo{}, classify(err)
	}

	return s.stat(name, p)
}

// Replace writes data under name, overwriting any previous content. It is
// used for files the service itself generates.
func (s *Store) Replace(ctx context.Context, name string, data []byte) (FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return FileInfo{}, err
	}
	p, err := s.resolve(name)
	if err != nil {
		return FileInfo{}, err
	}

	tmp, err := s.writeTemp(bytes.NewReader(data))
	if err != nil {
		return FileInfo{}, err
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return FileInfo{}, classify(err)
	}
	return s.stat(name, p)
}

func (s *Store) writeTemp(r io.Reader) (string, error) {
	dir := filepath.Join(s.root, partialDir)
	if err := os.MkdirAll(dir, s.dirMode); err != nil {
		return "", classify(err)
	}

	tmp := filepath.Join(dir, uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, s.fileMode)
	if err != nil {
		return "", classify(err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, copyErr := io.Copy(f, src)
	if copyErr == nil {
		copyErr = f.Sync()
	}
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: %w", ErrIO, copyErr)
	case closeErr != nil:
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: %w", ErrIO, closeErr)
	case s.maxBytes > 0 && n > s.maxBytes:
		_ = os.Remove(tmp)
		return "", fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, s.maxBytes)
	}
	return tmp, nil
}

// List returns the regular files in the store sorted by name. A store that
// does not exist yet is empty.
func (s *Store) List(ctx context.Context) ([]FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []FileInfo{}, nil
		}
		return nil, classify(err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, newFileInfo(e.Name(), filepath.Join(s.root, e.Name()), info))
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Delete removes the named file.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.lookup(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return classify(err)
	}
	return nil
}

// Open returns the named file for reading. The caller closes it.
func (s *Store) Open(ctx context.Context, name string) (*os.File, FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, FileInfo{}, err
	}
	p, err := s.lookup(name)
	if err != nil {
		return nil, FileInfo{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, FileInfo{}, classify(err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, FileInfo{}, classify(err)
	}
	return f, newFileInfo(name, p, info), nil
}

// lookup resolves name to an existing regular file.
func (s *Store) lookup(name string) (string, error) {
	p, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	info, err := os.Lstat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return "", classify(err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %q", ErrNotAFile, name)
	}
	return p, nil
}

func (s *Store) stat(name, p string) (FileInfo, error) {
	info, err := os.Stat(p)
	if err != nil {
		return FileInfo{}, classify(err)
	}
	return newFileInfo(name, p, info), nil
}

func newFileInfo(name, p string, info fs.FileInfo) FileInfo {
	return FileInfo{
		Name:         name,
		Path:         p,
		Size:         info.Size(),
		SizeMB:       math.Round(float64(info.Size())/(1024*1024)*100) / 100,
		LastModified: info.ModTime(),
	}
}

// classify maps an OS error onto the store's error kinds.
func classify(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", ErrPermission, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
}
