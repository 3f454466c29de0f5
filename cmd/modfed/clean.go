package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"modfed/internal/project"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [path]",
	Short: "Remove the dependency bundle cache (.modfed directory)",
	Long:  "Remove the .modfed directory holding per-mode dependency bundles and snapshots. The next bundle or serve run starts from a cold cache.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClean,
}

func runClean(_ *cobra.Command, args []string) error {
	baseDir := "."
	if len(args) > 0 && args[0] != "" {
		baseDir = args[0]
	}
	baseDir, err := resolveCleanBase(baseDir)
	if err != nil {
		return err
	}
	stateDir := filepath.Join(baseDir, project.StateDirName)
	info, err := os.Stat(stateDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			_, _ = fmt.Fprintf(os.Stdout, "cache directory not found\n")
			return nil
		}
		return fmt.Errorf("failed to stat %q: %w", stateDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%q is not a directory", stateDir)
	}
	if err := os.RemoveAll(stateDir); err != nil {
		return fmt.Errorf("failed to remove %q: %w", stateDir, err)
	}
	_, _ = fmt.Fprintf(os.Stdout, "removed %s\n", formatPathForOutput(baseDir, stateDir))
	return nil
}

func resolveCleanBase(base string) (string, error) {
	info, err := os.Stat(base)
	if err != nil {
		return "", fmt.Errorf("failed to stat %q: %w", base, err)
	}
	if !info.IsDir() {
		base = filepath.Dir(base)
	}
	manifest, ok, err := loadProjectManifest(base)
	if err != nil {
		return "", err
	}
	if ok {
		return manifest.Root, nil
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return base, nil
	}
	return abs, nil
}
