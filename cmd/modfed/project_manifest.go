package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"modfed/internal/project"
)

const noManifestMessage = "no modfed.toml found\nrun 'modfed init' to create one, or point at a project explicitly, e.g.:\n  modfed bundle path/to/app"

type projectManifest struct {
	Path   string
	Root   string
	Config projectConfig
}

type projectConfig struct {
	Package packageConfig `toml:"package"`
	App     appConfig     `toml:"app"`
	Bundle  bundleConfig  `toml:"bundle"`
}

type packageConfig struct {
	Name string `toml:"name"`
}

type appConfig struct {
	Src        string `toml:"src"`
	Publish    string `toml:"publish"`
	PublicPath string `toml:"public_path"`
}

type bundleConfig struct {
	Namespace string            `toml:"namespace"`
	Bundler   string            `toml:"bundler"`
	Exclude   []string          `toml:"exclude"`
	Include   []string          `toml:"include"`
	Externals []string          `toml:"externals"`
	Alias     map[string]string `toml:"alias"`
}

func loadProjectManifest(startDir string) (*projectManifest, bool, error) {
	manifestPath, ok, err := project.FindManifest(startDir)
	if err != nil || !ok {
		return nil, ok, err
	}
	cfg, err := loadProjectConfig(manifestPath)
	if err != nil {
		return nil, true, err
	}
	return &projectManifest{
		Path:   manifestPath,
		Root:   filepath.Dir(manifestPath),
		Config: cfg,
	}, true, nil
}

func loadProjectConfig(path string) (projectConfig, error) {
	var cfg projectConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return projectConfig{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if !meta.IsDefined("package") {
		return projectConfig{}, fmt.Errorf("%s: missing [package]", path)
	}
	if !meta.IsDefined("package", "name") || strings.TrimSpace(cfg.Package.Name) == "" {
		return projectConfig{}, fmt.Errorf("%s: missing [package].name", path)
	}
	if meta.IsDefined("bundle", "alias") {
		for from, to := range cfg.Bundle.Alias {
			if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
				return projectConfig{}, fmt.Errorf("%s: [bundle.alias] entries must map a non-empty specifier to a non-empty target", path)
			}
		}
	}
	seen := make(map[string]bool, len(cfg.Bundle.Include))
	for _, inc := range cfg.Bundle.Include {
		if strings.TrimSpace(inc) == "" {
			return projectConfig{}, fmt.Errorf("%s: [bundle].include entries must be non-empty", path)
		}
		if seen[inc] {
			return projectConfig{}, fmt.Errorf("%s: duplicate [bundle].include entry %q", path, inc)
		}
		seen[inc] = true
	}
	return cfg, nil
}

// buildContextOptions maps the manifest onto project options for one mode.
// Empty manifest fields stay empty so NewBuildContext applies its defaults.
func buildContextOptions(manifest *projectManifest, mode project.Mode) project.Options {
	cfg := manifest.Config
	return project.Options{
		Root:       manifest.Root,
		Mode:       mode,
		Namespace:  cfg.Bundle.Namespace,
		Bundler:    cfg.Bundle.Bundler,
		AppDir:     cfg.App.Src,
		PublishDir: cfg.App.Publish,
		PublicPath: cfg.App.PublicPath,
		Aliases:    cfg.Bundle.Alias,
		Externals:  cfg.Bundle.Externals,
		Exclude:    cfg.Bundle.Exclude,
		Include:    cfg.Bundle.Include,
	}
}
