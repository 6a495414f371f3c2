package provider

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDirTracev3Files(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "logs", "a.tracev3"), []byte("a"))
	writeFile(t, filepath.Join(root, "b.tracev3"), []byte("b"))
	writeFile(t, filepath.Join(root, "notes.txt"), []byte("ignore me"))

	d := NewDir(root)
	refs, err := d.Tracev3Files(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 {
		t.Fatalf("got %d refs, want 2: %+v", len(refs), refs)
	}
	for _, r := range refs {
		rc, err := r.Open()
		if err != nil {
			t.Fatal(err)
		}
		rc.Close()
	}
}

func TestDirTimesyncFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "timesync", "0000.timesync"), []byte("ts"))
	writeFile(t, filepath.Join(root, "timesync", "nested", "skip.timesync"), []byte("ts2"))

	d := NewDir(root)
	refs, err := d.TimesyncFiles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 {
		t.Fatalf("got %d refs, want 1 (nested timesync files shouldn't match): %+v", len(refs), refs)
	}
}

func TestDirOpenUUIDText(t *testing.T) {
	root := t.TempDir()
	id := uuid.MustParse("12345678-9abc-def0-1234-56789abcdef0")
	path := uuidTextPath(root, id)
	writeFile(t, path, []byte("format strings"))

	d := NewDir(root)
	rc, err := d.OpenUUIDText(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "format strings" {
		t.Fatalf("content = %q", got)
	}
}

func TestDirOpenDSCMissing(t *testing.T) {
	root := t.TempDir()
	d := NewDir(root)
	if _, err := d.OpenDSC(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected an error opening a nonexistent DSC file")
	}
}
