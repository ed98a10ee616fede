package testing

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// WriteModule writes a throwaway source tree under t.TempDir().
// Keys are slash-separated paths relative to the root.
func WriteModule(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", p, err)
		}
	}
	return root
}

// RequireGo skips the test when no go command is available to load
// packages with
func RequireGo(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go command not found in PATH")
	}
}
