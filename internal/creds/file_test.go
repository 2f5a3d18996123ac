package creds

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeSecretFile(t *testing.T, mode os.FileMode, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatal(err)
	}
	// WriteFile honors umask; force the exact mode.
	if err := os.Chmod(path, mode); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileSource_StrictRejectsGroupRead(t *testing.T) {
	path := writeSecretFile(t, 0o640, "glpat-secret\n")

	f := NewFileSource(path, true)
	_, err := f.Resolve()

	var permErr *FilePermissionError
	if !errors.As(err, &permErr) {
		t.Fatalf("Resolve() error = %v, want FilePermissionError", err)
	}
}

func TestFileSource_LaxAllowsGroupRead(t *testing.T) {
	path := writeSecretFile(t, 0o640, "  glpat-secret  \n")

	f := NewFileSource(path, false)
	got, err := f.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "glpat-secret" {
		t.Errorf("Resolve() = %q, want trimmed content", got)
	}
}

func TestFileSource_StrictAcceptsOwnerOnly(t *testing.T) {
	path := writeSecretFile(t, 0o600, "glpat-secret\n")

	f := NewFileSource(path, true)
	got, err := f.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "glpat-secret" {
		t.Errorf("Resolve() = %q, want glpat-secret", got)
	}
}

func TestFileSource_StructuredContent(t *testing.T) {
	path := writeSecretFile(t, 0o600, `{"token":"from-file"}`)

	f := NewFileSource(path, true)
	got, err := f.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "from-file" {
		t.Errorf("Resolve() = %q, want from-file", got)
	}
}

func TestFileSource_Missing(t *testing.T) {
	f := NewFileSource(filepath.Join(t.TempDir(), "nope"), true)
	if _, err := f.Resolve(); err == nil {
		t.Fatal("expected error for missing file")
	}
}
