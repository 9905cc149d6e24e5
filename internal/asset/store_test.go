package asset

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
)

var locatorPattern = regexp.MustCompile(`^/Uploads/capture_\d+\.jpg$`)

// newTestStore はメモリ上のファイルシステムでStoreを作成する
func newTestStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s := NewStore(fs, "Uploads", "/Uploads")
	if err := s.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	return s, fs
}

func TestStore_Save(t *testing.T) {
	s, fs := newTestStore(t)
	data := []byte("\xff\xd8\xff\xe0 fake jpeg")

	a, err := s.Save(context.Background(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if !locatorPattern.MatchString(a.Locator) {
		t.Errorf("unexpected locator: %s", a.Locator)
	}
	if a.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", a.Size, len(data))
	}

	got, err := afero.ReadFile(fs, filepath.Join("Uploads", a.Name))
	if err != nil {
		t.Fatalf("saved file not readable: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("file content mismatch")
	}
}

// TestStore_SameMillisecond は同一ミリ秒内の保存でも名前が衝突しないことをテストする
func TestStore_SameMillisecond(t *testing.T) {
	s, _ := newTestStore(t)
	fixed := time.UnixMilli(1700000000000)
	s.now = func() time.Time { return fixed }

	var prev int64
	for i := 0; i < 5; i++ {
		a, err := s.Save(context.Background(), bytes.NewReader([]byte("x")))
		if err != nil {
			t.Fatalf("Save #%d failed: %v", i, err)
		}
		ms := a.CreatedAt.UnixMilli()
		if ms <= prev {
			t.Errorf("timestamp not increasing: %d after %d", ms, prev)
		}
		if a.Name != FileName(ms) {
			t.Errorf("name %s does not embed timestamp %d", a.Name, ms)
		}
		prev = ms
	}
}

// TestStore_ExistingFile は既存ファイルを上書きしないことをテストする
func TestStore_ExistingFile(t *testing.T) {
	s, fs := newTestStore(t)
	fixed := time.UnixMilli(1700000000000)
	s.now = func() time.Time { return fixed }

	existing := filepath.Join("Uploads", FileName(fixed.UnixMilli()))
	if err := afero.WriteFile(fs, existing, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	a, err := s.Save(context.Background(), bytes.NewReader([]byte("new")))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if a.Name == FileName(fixed.UnixMilli()) {
		t.Fatalf("existing file name was reused")
	}

	old, _ := afero.ReadFile(fs, existing)
	if string(old) != "old" {
		t.Errorf("existing file was overwritten: %q", old)
	}
}

func TestStore_Concurrent(t *testing.T) {
	s, fs := newTestStore(t)

	const n = 50
	var wg sync.WaitGroup
	names := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := s.Save(context.Background(), bytes.NewReader([]byte("img")))
			if err != nil {
				t.Errorf("Save failed: %v", err)
				return
			}
			names <- a.Name
		}()
	}
	wg.Wait()
	close(names)

	seen := make(map[string]bool)
	for name := range names {
		if seen[name] {
			t.Errorf("duplicate name: %s", name)
		}
		seen[name] = true
	}

	entries, err := afero.ReadDir(fs, "Uploads")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != n {
		t.Errorf("expected %d files, got %d", n, len(entries))
	}
}

func TestStore_ReadOnly(t *testing.T) {
	base := afero.NewMemMapFs()
	if err := base.MkdirAll("Uploads", 0755); err != nil {
		t.Fatal(err)
	}
	s := NewStore(afero.NewReadOnlyFs(base), "Uploads", "/Uploads")

	_, err := s.Save(context.Background(), bytes.NewReader([]byte("x")))
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}

	entries, _ := afero.ReadDir(base, "Uploads")
	if len(entries) != 0 {
		t.Errorf("no file should be created, got %d", len(entries))
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}

// TestStore_ReadError は読み込み失敗時に書きかけのファイルが残らないことをテストする
func TestStore_ReadError(t *testing.T) {
	s, fs := newTestStore(t)

	_, err := s.Save(context.Background(), failingReader{})
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}

	entries, _ := afero.ReadDir(fs, "Uploads")
	if len(entries) != 0 {
		t.Errorf("partial file left behind: %d entries", len(entries))
	}
}

func TestStore_CanceledContext(t *testing.T) {
	s, fs := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Save(ctx, bytes.NewReader([]byte("x"))); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	entries, _ := afero.ReadDir(fs, "Uploads")
	if len(entries) != 0 {
		t.Errorf("no file should be created, got %d", len(entries))
	}
}

func TestStore_EnsureDirIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.EnsureDir(); err != nil {
		t.Errorf("second EnsureDir should succeed: %v", err)
	}
}

func TestStore_EnsureDirExisting(t *testing.T) {
	base := afero.NewMemMapFs()
	if err := base.MkdirAll("Uploads", 0755); err != nil {
		t.Fatal(err)
	}
	// 既存のディレクトリなら書き込めなくても成功する
	s := NewStore(afero.NewReadOnlyFs(base), "Uploads", "/Uploads")
	if err := s.EnsureDir(); err != nil {
		t.Errorf("EnsureDir on existing dir should succeed: %v", err)
	}

	missing := NewStore(afero.NewReadOnlyFs(base), "Other", "/Other")
	if err := missing.EnsureDir(); !errors.Is(err, ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
}

func TestStore_EnsureDirNotDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "Uploads", []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	s := NewStore(fs, "Uploads", "/Uploads")
	if err := s.EnsureDir(); !errors.Is(err, ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
}

func TestNewStore_Prefix(t *testing.T) {
	testCases := []struct {
		prefix string
		want   string
	}{
		{"/Uploads", "/Uploads"},
		{"Uploads", "/Uploads"},
		{"/Uploads/", "/Uploads"},
		{"/media/images", "/media/images"},
	}
	for _, tc := range testCases {
		s := NewStore(afero.NewMemMapFs(), "Uploads", tc.prefix)
		if s.Prefix() != tc.want {
			t.Errorf("Prefix(%q) = %q, want %q", tc.prefix, s.Prefix(), tc.want)
		}
	}
}
