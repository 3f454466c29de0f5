package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"modfed/internal/project"
)

func writeManifest(t *testing.T, data string) string {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, project.ManifestName)
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write %s: %v", project.ManifestName, err)
	}
	return path
}

func TestLoadProjectConfig(t *testing.T) {
	path := writeManifest(t, `# test manifest
[package]
name = "demo"

[app]
src = "web"
publish = "out"
public_path = "/assets"

[bundle]
namespace = "shop"
exclude = ["@demo/local"]
include = ["moment"]
externals = ["jquery"]

[bundle.alias]
"react" = "preact/compat"
`)
	cfg, err := loadProjectConfig(path)
	if err != nil {
		t.Fatalf("loadProjectConfig: %v", err)
	}
	if cfg.Package.Name != "demo" {
		t.Fatalf("Package.Name = %q, want demo", cfg.Package.Name)
	}
	if cfg.App.Src != "web" || cfg.App.Publish != "out" || cfg.App.PublicPath != "/assets" {
		t.Fatalf("unexpected [app] section: %+v", cfg.App)
	}
	if cfg.Bundle.Namespace != "shop" {
		t.Fatalf("Bundle.Namespace = %q, want shop", cfg.Bundle.Namespace)
	}
	if cfg.Bundle.Alias["react"] != "preact/compat" {
		t.Fatalf("alias not decoded: %+v", cfg.Bundle.Alias)
	}
}

func TestLoadProjectConfigMissingName(t *testing.T) {
	path := writeManifest(t, `[package]
version = "1.0.0"
`)
	if _, err := loadProjectConfig(path); err == nil || !strings.Contains(err.Error(), "[package].name") {
		t.Fatalf("expected missing name error, got %v", err)
	}
}

func TestLoadProjectConfigEmptyAlias(t *testing.T) {
	path := writeManifest(t, `[package]
name = "demo"

[bundle.alias]
"react" = ""
`)
	if _, err := loadProjectConfig(path); err == nil {
		t.Fatal("expected error for empty alias target")
	}
}

func TestLoadProjectConfigDuplicateInclude(t *testing.T) {
	path := writeManifest(t, `[package]
name = "demo"

[bundle]
include = ["moment", "moment"]
`)
	if _, err := loadProjectConfig(path); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate include error, got %v", err)
	}
}

func TestBuildContextOptions(t *testing.T) {
	path := writeManifest(t, `[package]
name = "demo"

[app]
src = "web"
`)
	manifest, found, err := loadProjectManifest(filepath.Dir(path))
	if err != nil {
		t.Fatalf("loadProjectManifest: %v", err)
	}
	if !found {
		t.Fatal("manifest not found")
	}
	opts := buildContextOptions(manifest, project.ModeProduction)
	if opts.Root != manifest.Root {
		t.Fatalf("Root = %q, want %q", opts.Root, manifest.Root)
	}
	if opts.Mode != project.ModeProduction {
		t.Fatalf("Mode = %q, want production", opts.Mode)
	}
	if opts.AppDir != "web" {
		t.Fatalf("AppDir = %q, want web", opts.AppDir)
	}

	bc, err := project.NewBuildContext(opts)
	if err != nil {
		t.Fatalf("NewBuildContext: %v", err)
	}
	if bc.PublishDir != project.DefaultPublishDir {
		t.Fatalf("PublishDir = %q, want default %q", bc.PublishDir, project.DefaultPublishDir)
	}
}

func TestReadUIMode(t *testing.T) {
	cases := []struct {
		input   string
		want    uiMode
		wantErr bool
	}{
		{"", uiModeAuto, false},
		{"auto", uiModeAuto, false},
		{"ON", uiModeOn, false},
		{"off", uiModeOff, false},
		{"fancy", "", true},
	}
	for _, tc := range cases {
		got, err := readUIMode(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("readUIMode(%q) expected error", tc.input)
			}
			continue
		}
		if err != nil {
			t.Fatalf("readUIMode(%q) error: %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("readUIMode(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestFormatPathForOutput(t *testing.T) {
	root := t.TempDir()
	inside := filepath.Join(root, "dist", "bundle")
	if got := formatPathForOutput(root, inside); got != "dist/bundle" {
		t.Fatalf("formatPathForOutput = %q, want dist/bundle", got)
	}
	outside := filepath.Join(filepath.Dir(root), "elsewhere")
	if got := formatPathForOutput(root, outside); got != outside {
		t.Fatalf("formatPathForOutput should fall back to the absolute path, got %q", got)
	}
}
