package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBrowseDirectorySortsDirsFirst(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "photos"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	items, err := browseDirectory(dir)
	if err != nil {
		t.Fatalf("browseDirectory: %v", err)
	}

	// "..", the directory, then the file; the hidden file is skipped
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d: %+v", len(items), items)
	}
	if items[0].Name != ".." || !items[0].IsDir {
		t.Fatalf("first item should be the parent entry: %+v", items[0])
	}
	if items[1].Name != "photos" || !items[1].IsDir {
		t.Fatalf("directories should sort before files: %+v", items[1])
	}
	if items[2].Name != "a.txt" || items[2].IsDir {
		t.Fatalf("unexpected file entry: %+v", items[2])
	}
	if items[2].Size != 5 {
		t.Fatalf("file size = %d", items[2].Size)
	}
}

func TestBrowseDirectoryMissing(t *testing.T) {
	if _, err := browseDirectory(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestFormatFileSize(t *testing.T) {
	cases := map[int64]string{
		512:             "512 B",
		2048:            "2.0 KB",
		5 * 1024 * 1024: "5.0 MB",
		3 << 30:         "3.0 GB",
	}
	for in, want := range cases {
		if got := formatFileSize(in); got != want {
			t.Errorf("formatFileSize(%d) = %q, want %q", in, got, want)
		}
	}
}
