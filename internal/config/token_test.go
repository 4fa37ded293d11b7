package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetAPITokenGeneratesOnce(t *testing.T) {
	dir := t.TempDir()

	first, err := GetAPIToken(dir)
	if err != nil {
		t.Fatalf("GetAPIToken: %v", err)
	}
	if len(first) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(first))
	}

	second, err := GetAPIToken(dir)
	if err != nil {
		t.Fatalf("GetAPIToken (second): %v", err)
	}
	if first != second {
		t.Errorf("token changed between calls: %q vs %q", first, second)
	}
}

func TestGetAPITokenFilePermissions(t *testing.T) {
	dir := t.TempDir()

	if _, err := GetAPIToken(dir); err != nil {
		t.Fatalf("GetAPIToken: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "api_token"))
	if err != nil {
		t.Fatalf("stat token file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("token file permissions = %o, want 600", perm)
	}
}

func TestGetAPITokenRegeneratesEmptyFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "api_token"), []byte("\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	token, err := GetAPIToken(dir)
	if err != nil {
		t.Fatalf("GetAPIToken: %v", err)
	}
	if token == "" {
		t.Error("token is empty")
	}
}
