package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"modfed/internal/project"
)

var initCmd = &cobra.Command{
	Use:   "init [path|name]",
	Short: "Initialize a new modfed project",
	Long: `Initialize a new modfed project by creating a project manifest (modfed.toml),
a sample application entry (src/index.js) and a host page (index.html). If
[path|name] is omitted, initializes the current directory. If a non-existing
name is provided, a directory will be created.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	// Resolve target directory
	var target string
	if len(args) == 0 || args[0] == "." {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		target = wd
	} else {
		// treat as path or name relative to cwd
		arg := args[0]
		if !filepath.IsAbs(arg) {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}
			target = filepath.Join(wd, arg)
		} else {
			target = arg
		}
	}

	// Ensure directory exists
	if st, err := os.Stat(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err = os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("failed to create directory %q: %w", target, err)
			}
		} else {
			return err
		}
	} else if !st.IsDir() {
		return fmt.Errorf("%q is not a directory", target)
	}

	// Determine project name from directory basename
	name := filepath.Base(target)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "modfed-app"
	}

	// Create manifest file if not exists
	manifestPath := filepath.Join(target, project.ManifestName)
	if _, err := os.Stat(manifestPath); err == nil {
		return fmt.Errorf("project already initialized: %s exists", manifestPath)
	}

	manifest := buildDefaultManifest(name)
	if err := os.WriteFile(manifestPath, []byte(manifest), os.FileMode(0o600)); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	// Create src/index.js if not exists
	srcDir := filepath.Join(target, project.DefaultAppDir)
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %q: %w", srcDir, err)
	}
	entryPath := filepath.Join(srcDir, "index.js")
	createdEntry := false
	if _, err := os.Stat(entryPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(entryPath, []byte(defaultEntryJS()), 0o600); err != nil {
			return fmt.Errorf("failed to write src/index.js: %w", err)
		}
		createdEntry = true
	}

	// Create index.html if not exists
	htmlPath := filepath.Join(target, "index.html")
	createdHTML := false
	if _, err := os.Stat(htmlPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(htmlPath, []byte(defaultIndexHTML(name)), 0o600); err != nil {
			return fmt.Errorf("failed to write index.html: %w", err)
		}
		createdHTML = true
	}

	rel := target
	if wd, err := os.Getwd(); err == nil {
		if r, err2 := filepath.Rel(wd, target); err2 == nil {
			rel = r
		}
	}
	fmt.Fprintf(os.Stdout, "Initialized modfed project in %s\n", rel)
	fmt.Fprintf(os.Stdout, "  - %s\n", project.ManifestName)
	if createdEntry {
		fmt.Fprintf(os.Stdout, "  - src/index.js\n")
	} else {
		fmt.Fprintf(os.Stdout, "  - src/index.js (existing)\n")
	}
	if createdHTML {
		fmt.Fprintf(os.Stdout, "  - index.html\n")
	} else {
		fmt.Fprintf(os.Stdout, "  - index.html (existing)\n")
	}
	return nil
}

// buildDefaultManifest returns a minimal TOML manifest for a modfed project
// using the provided package name.
func buildDefaultManifest(name string) string {
	// Minimal TOML manifest used as a project marker.
	return fmt.Sprintf(`# modfed project manifest
[package]
name = "%s"

[app]
src = "src"
publish = "dist"
public_path = "/"

[bundle]
namespace = "mf"
bundler = "esbuild"
`, name)
}

// defaultEntryJS returns the placeholder application entry written by init.
func defaultEntryJS() string {
	return `// Application entry. Bare imports (e.g. "react") are picked up by the
// dependency scanner and pre-bundled on the next modfed pass.

console.log("modfed app running");
`
}

// defaultIndexHTML returns the host page the dev server serves at /.
func defaultIndexHTML(name string) string {
	return fmt.Sprintf(`<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>%s</title>
  </head>
  <body>
    <div id="root"></div>
    <script type="module" src="/src/index.js"></script>
  </body>
</html>
`, name)
}
