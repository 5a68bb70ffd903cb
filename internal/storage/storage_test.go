package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/viola622/Flowise/internal/domain"
)

func TestConvertToValidFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"My Docs", "My Docs"},
		{`a/b\c:d*e?f"g<h>i|j`, "abcdefghij"},
		{"tabs\tand\nnewlines", "tabsandnewlines"},
		{"trailing... ", "trailing"},
		{"..", "_"},
		{".", "_"},
		{"", "_"},
		{"///", "_"},
		{"CON", "_"},
		{"con.txt", "_"},
		{"console", "console"},
		{"ünïcödé", "ünïcödé"},
	}
	for _, tt := range tests {
		if got := ConvertToValidFilename(tt.in); got != tt.want {
			t.Errorf("ConvertToValidFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConvertToValidFilename_Truncates(t *testing.T) {
	got := ConvertToValidFilename(strings.Repeat("é", 200))
	if len(got) > maxFilenameBytes {
		t.Fatalf("len = %d", len(got))
	}
	if !strings.HasPrefix(got, "é") || strings.ContainsRune(got, '�') {
		t.Errorf("truncation split a rune: %q", got[len(got)-4:])
	}
}

func TestManager_CreateStoreDir(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	dir, err := m.CreateStoreDir("docs/v1")
	if err != nil {
		t.Fatalf("CreateStoreDir: %v", err)
	}
	if filepath.Base(dir) != "docsv1" {
		t.Errorf("dir = %s", dir)
	}
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		t.Fatalf("folder not created: %v", err)
	}

	if _, err := m.CreateStoreDir("docs/v1"); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("second create err = %v, want ErrAlreadyExists", err)
	}
}

func TestManager_OpenFile(t *testing.T) {
	m, _ := NewManager(t.TempDir())
	dir, err := m.CreateStoreDir("kb")
	if err != nil {
		t.Fatalf("CreateStoreDir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}

	f, err := m.OpenFile("kb", "a.txt")
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()
	b, _ := io.ReadAll(f)
	if string(b) != "hello" {
		t.Errorf("content = %q", b)
	}

	if _, err := m.OpenFile("kb", "missing.txt"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
	for _, bad := range []string{"../escape.txt", "/etc/passwd", ""} {
		if _, err := m.OpenFile("kb", bad); !errors.Is(err, domain.ErrInvalidSchema) {
			t.Errorf("OpenFile(%q) err = %v, want ErrInvalidSchema", bad, err)
		}
	}
}

func TestManager_RemoveStoreDir(t *testing.T) {
	m, _ := NewManager(t.TempDir())
	if _, err := m.CreateStoreDir("tmp"); err != nil {
		t.Fatalf("CreateStoreDir: %v", err)
	}
	if err := m.RemoveStoreDir("tmp"); err != nil {
		t.Fatalf("RemoveStoreDir: %v", err)
	}
	if _, err := m.CreateStoreDir("tmp"); err != nil {
		t.Fatalf("re-create after remove: %v", err)
	}
}
