package pathutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpand_HomeShortcut(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("user home dir: %v", err)
	}

	got, err := Expand("~/.kabu/sessions")
	if err != nil {
		t.Fatalf("expand path: %v", err)
	}

	want := filepath.Join(home, ".kabu", "sessions")
	if got != want {
		t.Fatalf("path mismatch: got %q want %q", got, want)
	}
}

func TestExpand_EnvVar(t *testing.T) {
	t.Setenv("KABU_PATH_TEST", "/tmp/kabu-path")

	got, err := Expand("$KABU_PATH_TEST/sessions")
	if err != nil {
		t.Fatalf("expand path: %v", err)
	}

	want := filepath.Clean("/tmp/kabu-path/sessions")
	if got != want {
		t.Fatalf("path mismatch: got %q want %q", got, want)
	}
}

func TestExpand_HomeEnvTilde(t *testing.T) {
	t.Setenv("HOME", "~")

	got, err := Expand("~/.kabu/sessions")
	if err != nil {
		t.Fatalf("expand path with HOME=~: %v", err)
	}
	if got == "" {
		t.Fatal("expanded path is empty")
	}
	if got[0] == '~' {
		t.Fatalf("path not expanded: %q", got)
	}
}

func TestExpand_Empty(t *testing.T) {
	got, err := Expand("   ")
	if err != nil {
		t.Fatalf("expand empty path: %v", err)
	}
	if got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
}
