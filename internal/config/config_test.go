package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rebuild.toml")
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SourceRoot != "src" {
		t.Errorf("Expected source root src, got %q", cfg.SourceRoot)
	}
	if cfg.UnitSuffix != ".java" {
		t.Errorf("Expected unit suffix .java, got %q", cfg.UnitSuffix)
	}
	if cfg.Extractor != "ast" {
		t.Errorf("Expected ast extractor, got %q", cfg.Extractor)
	}
	if cfg.Dangling != "warn" {
		t.Errorf("Expected warn dangling policy, got %q", cfg.Dangling)
	}
	if cfg.Compiler.Command != "javac" {
		t.Errorf("Expected javac, got %q", cfg.Compiler.Command)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("Expected 500ms debounce, got %v", cfg.Watch.Debounce)
	}
}

func TestLoad_Overrides(t *testing.T) {
	content := `
source_root = "sources"
unit_suffix = ".pyi"
extractor = "scan"
dangling = "error"

[compiler]
command = "true"
args = ["-q"]

[watch]
debounce = 100000000
`
	path := filepath.Join(t.TempDir(), "rebuild.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.SourceRoot != "sources" {
		t.Errorf("Expected sources, got %q", cfg.SourceRoot)
	}
	if cfg.UnitSuffix != ".pyi" {
		t.Errorf("Expected .pyi, got %q", cfg.UnitSuffix)
	}
	if cfg.Extractor != "scan" {
		t.Errorf("Expected scan, got %q", cfg.Extractor)
	}
	if cfg.Dangling != "error" {
		t.Errorf("Expected error policy, got %q", cfg.Dangling)
	}
	if cfg.Watch.Debounce != 100*time.Millisecond {
		t.Errorf("Expected 100ms debounce, got %v", cfg.Watch.Debounce)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"bad extractor": `extractor = "regex"`,
		"bad dangling":  `dangling = "panic"`,
		"bad suffix":    `unit_suffix = "java"`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rebuild.toml")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}
