package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "mudra v") {
		t.Errorf("output = %q", out.String())
	}
}

func TestWordsImport_RequiresDir(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"words", "import"})

	if err := root.Execute(); err == nil {
		t.Error("expected error without a directory argument")
	}
}

func TestWordsList_EmptyDatabase(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MUDRA_DB_PATH", filepath.Join(dir, "mudra.db"))
	t.Setenv("MUDRA_WORDS_DIR", filepath.Join(dir, "words"))
	t.Setenv("MUDRA_DETECTOR_SCRIPT", filepath.Join(dir, "missing.py"))
	t.Setenv("MUDRA_CLASSIFIER_SCRIPT", filepath.Join(dir, "missing.py"))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"words", "list"})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "0 word(s)") {
		t.Errorf("output = %q", out.String())
	}
}

func TestFindWebDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	if got := findWebDir(); got != "" {
		t.Errorf("findWebDir() = %q, want empty", got)
	}

	if err := os.Mkdir(filepath.Join(dir, "web"), 0o755); err != nil {
		t.Fatal(err)
	}
	got := findWebDir()
	if filepath.Base(got) != "web" {
		t.Errorf("findWebDir() = %q, want web dir", got)
	}
}
