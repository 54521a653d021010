package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	defer os.Chdir(cwd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("missing harp.yaml should not error, got: %v", err)
	}
	if cfg.Profile {
		t.Fatalf("zero-value config should have Profile=false")
	}
}

func TestLoadConfigParsesYAML(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	defer os.Chdir(cwd)
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	contents := "register_hint: 64\nenable_phases: true\nprofile: true\n"
	if err := os.WriteFile(filepath.Join(dir, "harp.yaml"), []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.RegisterHint != 64 || !cfg.EnablePhases || !cfg.Profile {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
