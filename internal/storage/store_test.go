package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "storage"), opts...)
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"plain", "report.txt", true},
		{"spaces", "my report (1).pdf", true},
		{"unicode", "informe_año.docx", true},
		{"dotfile", ".env", true},
		{"double dot inside", "a..b.txt", true},
		{"empty", "", false},
		{"dot", ".", false},
		{"dotdot", "..", false},
		{"traversal", "../../etc/passwd", false},
		{"windows traversal", `..\..\boot.ini`, false},
		{"nested traversal", "a/../b", false},
		{"absolute", "/etc/passwd", false},
		{"subdir", "a/b.txt", false},
		{"nul", "a\x00b", false},
		{"newline", "a\nb", false},
		{"tab", "a\tb", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidName)
		})
	}
}

func TestSave_CreatesRootAndFile(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	info, err := s.Save(ctx, "a.txt", strings.NewReader("hello"))
	require.NoError(t, err)

	assert.Equal(t, "a.txt", info.Name)
	assert.Equal(t, filepath.Join(s.Root(), "a.txt"), info.Path)
	assert.Equal(t, int64(5), info.Size)

	b, err := os.ReadFile(info.Path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
}

func TestSave_Duplicate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "report.txt", strings.NewReader("original"))
	require.NoError(t, err)

	_, err = s.Save(ctx, "report.txt", strings.NewReader("replacement"))
	require.ErrorIs(t, err, ErrDuplicateName)

	b, err := os.ReadFile(filepath.Join(s.Root(), "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "original", string(b))
}

func TestSave_ConcurrentSameName(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Save(ctx, "race.txt", strings.NewReader(strings.Repeat("x", i+1)))
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateName)
	}
	assert.Equal(t, 1, ok, "exactly one concurrent upload wins")
}

func TestSave_Reserved(t *testing.T) {
	s := newStore(t, WithReserved("archivos_locales.txt"))

	_, err := s.Save(context.Background(), "archivos_locales.txt", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrReservedName)
}

func TestSave_InvalidName(t *testing.T) {
	s := newStore(t)

	_, err := s.Save(context.Background(), "../escape.txt", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrInvalidName)

	_, statErr := os.Stat(s.Root())
	assert.True(t, os.IsNotExist(statErr), "nothing is created for an invalid name")
}

func TestSave_TooLarge(t *testing.T) {
	s := newStore(t, WithMaxBytes(4))
	ctx := context.Background()

	_, err := s.Save(ctx, "big.bin", strings.NewReader("12345"))
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = s.Save(ctx, "ok.bin", strings.NewReader("1234"))
	require.NoError(t, err)

	files, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "ok.bin", files[0].Name)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestSave_ReadFailureLeavesNothing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "broken.txt", io.MultiReader(strings.NewReader("part"), failingReader{}))
	require.ErrorIs(t, err, ErrIO)
	assert.Contains(t, err.Error(), "connection reset")

	files, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)

	staged, err := os.ReadDir(filepath.Join(s.Root(), partialDir))
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestList_AbsentRoot(t *testing.T) {
	s := newStore(t)

	files, err := s.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)
}

func TestList_SkipsDirectoriesAndSorts(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, name := range []string{"b.txt", "a.txt"} {
		_, err := s.Save(ctx, name, strings.NewReader(name))
		require.NoError(t, err)
	}
	require.NoError(t, os.Mkdir(filepath.Join(s.Root(), "subdir"), 0o755))

	files, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.txt", files[0].Name)
	assert.Equal(t, "b.txt", files[1].Name)
	assert.False(t, files[0].LastModified.IsZero())
}

func TestList_SizeMB(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "blob.bin", strings.NewReader(strings.Repeat("x", 1536*1024)))
	require.NoError(t, err)

	files, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, 1.5, files[0].SizeMB)
}

func TestDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "a.txt", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "a.txt"))

	files, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)

	err = s.Delete(ctx, "a.txt")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_Errors(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "folder"), 0o755))

	assert.ErrorIs(t, s.Delete(ctx, "folder"), ErrNotAFile)
	assert.ErrorIs(t, s.Delete(ctx, "../../etc/passwd"), ErrInvalidName)
	assert.ErrorIs(t, s.Delete(ctx, "bad\x07name"), ErrInvalidName)
	assert.ErrorIs(t, s.Delete(ctx, "missing.txt"), ErrNotFound)
}

func TestDelete_Permission(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for this user")
	}
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "locked.txt", strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, os.Chmod(s.Root(), 0o555))
	t.Cleanup(func() { _ = os.Chmod(s.Root(), 0o755) })

	require.ErrorIs(t, s.Delete(ctx, "locked.txt"), ErrPermission)
}

func TestDelete_SymlinkIsNotAFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, os.MkdirAll(s.Root(), 0o755))

	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))
	require.NoError(t, os.Symlink(outside, filepath.Join(s.Root(), "link.txt")))

	require.ErrorIs(t, s.Delete(ctx, "link.txt"), ErrNotAFile)
	_, _, err := s.Open(ctx, "link.txt")
	require.ErrorIs(t, err, ErrNotAFile)

	_, err = os.Stat(outside)
	require.NoError(t, err)
}

func TestOpen(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "doc.bin", strings.NewReader("payload"))
	require.NoError(t, err)

	f, info, err := s.Open(ctx, "doc.bin")
	require.NoError(t, err)
	defer f.Close()

	b, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))
	assert.Equal(t, int64(7), info.Size)

	_, _, err = s.Open(ctx, "nope.bin")
	require.ErrorIs(t, err, ErrNotFound)

	_, _, err = s.Open(ctx, "")
	require.ErrorIs(t, err, ErrInvalidName)
}

func TestReplace_Overwrites(t *testing.T) {
	s := newStore(t, WithReserved("merged.txt"))
	ctx := context.Background()

	_, err := s.Replace(ctx, "merged.txt", []byte("first"))
	require.NoError(t, err)
	info, err := s.Replace(ctx, "merged.txt", []byte("second run"))
	require.NoError(t, err)
	assert.Equal(t, int64(len("second run")), info.Size)

	b, err := os.ReadFile(info.Path)
	require.NoError(t, err)
	assert.Equal(t, "second run", string(b))
}

func TestRootExists(t *testing.T) {
	s := newStore(t)

	ok, err := s.RootExists()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.MkdirAll(s.Root(), 0o755))
	ok, err = s.RootExists()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCanceledContext(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Save(ctx, "a.txt", strings.NewReader("x"))
	require.ErrorIs(t, err, context.Canceled)
	_, err = s.List(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
