// Package scan extracts third-party module specifiers from application
// sources. It stands in for a host bundler's transformation pipeline:
// regex extraction is enough to decide what to pre-bundle, it is not a
// JavaScript parser and does not try to skip commented-out code.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"modfed/internal/diag"
	"modfed/internal/project"
)

// maxScanFiles caps one pass; a tree bigger than this is almost certainly
// a mis-pointed app dir.
const maxScanFiles = 10000

// sourceExtensions lists the file types scanned for imports.
var sourceExtensions = map[string]bool{
	".js":  true,
	".jsx": true,
	".ts":  true,
	".tsx": true,
	".mjs": true,
	".cjs": true,
}

// skipDirs are subtrees never descended into.
var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	".modfed":      true,
}

// defaultIgnores are file patterns never scanned regardless of
// configuration.
var defaultIgnores = []string{
	"**/*.d.ts",
	"**/*.min.js",
}

var (
	importFromRe    = regexp.MustCompile(`\bimport\s+(?:[\w$*{}\s,]*?from\s+)?["']([^"']+)["']`)
	exportFromRe    = regexp.MustCompile(`\bexport\s+(?:\*(?:\s+as\s+[\w$]+)?|\{[^}]*\})\s+from\s+["']([^"']+)["']`)
	requireRe       = regexp.MustCompile(`\brequire\s*\(\s*["']([^"']+)["']\s*\)`)
	dynamicImportRe = regexp.MustCompile(`\bimport\s*\(\s*["']([^"']+)["']\s*\)`)
)

// nodeBuiltins are module names resolved by the Node runtime, never
// bundleable for the browser.
var nodeBuiltins = map[string]bool{
	"assert": true, "async_hooks": true, "buffer": true, "child_process": true,
	"cluster": true, "console": true, "constants": true, "crypto": true,
	"dgram": true, "dns": true, "domain": true, "events": true, "fs": true,
	"http": true, "http2": true, "https": true, "inspector": true,
	"module": true, "net": true, "os": true, "path": true, "perf_hooks": true,
	"process": true, "punycode": true, "querystring": true, "readline": true,
	"repl": true, "stream": true, "string_decoder": true, "timers": true,
	"tls": true, "tty": true, "url": true, "util": true, "v8": true,
	"vm": true, "worker_threads": true, "zlib": true,
}

// Usage is one module specifier reference found in a source file. Kept is
// false when configuration filtered the specifier out of pre-bundling.
type Usage struct {
	Specifier string
	File      string
	Kept      bool
}

// Result is everything one pass over the sources found.
type Result struct {
	Usages      []Usage
	Files       int
	Diagnostics *diag.Bag
}

// Scanner walks the application source directory of one build context.
type Scanner struct {
	bc *project.BuildContext
}

func New(bc *project.BuildContext) *Scanner {
	return &Scanner{bc: bc}
}

// Scan walks the app dir once and reports every bare-specifier reference.
// Unreadable files become warnings, not errors; configured Include
// specifiers are appended as synthetic manifest-sourced usages.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	res := &Result{Diagnostics: diag.NewBag(64)}
	dir := s.bc.AppAbs()

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && skipDirs[d.Name()] {
				return fs.SkipDir
			}
			return nil
		}
		if !sourceExtensions[strings.ToLower(filepath.Ext(path))] || s.ignored(rel) {
			return nil
		}
		if res.Files >= maxScanFiles {
			res.Diagnostics.Add(diag.NewWarning(diag.ScnTooManyFiles, diag.Loc{File: rel},
				fmt.Sprintf("more than %d source files, rest skipped", maxScanFiles)))
			return fs.SkipAll
		}
		res.Files++

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			res.Diagnostics.Add(diag.NewWarning(diag.ScnUnreadableFile, diag.Loc{File: rel}, readErr.Error()))
			return nil
		}
		s.collect(res, rel, string(content))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	for _, inc := range s.bc.Include {
		if inc == "" {
			continue
		}
		res.Usages = append(res.Usages, Usage{Specifier: inc, File: project.ManifestName, Kept: true})
	}
	return res, nil
}

func (s *Scanner) collect(res *Result, file, content string) {
	for _, re := range []*regexp.Regexp{importFromRe, exportFromRe, requireRe, dynamicImportRe} {
		for _, m := range re.FindAllStringSubmatch(content, -1) {
			spec := m[1]
			if !isBare(spec) || s.aliasedToLocalPath(spec) {
				continue
			}
			res.Usages = append(res.Usages, Usage{
				Specifier: spec,
				File:      file,
				Kept:      !s.excluded(spec),
			})
		}
	}
}

func (s *Scanner) ignored(rel string) bool {
	for _, pat := range defaultIgnores {
		if matched, err := doublestar.Match(pat, rel); err == nil && matched {
			return true
		}
	}
	return false
}

func (s *Scanner) excluded(spec string) bool {
	for _, ex := range s.bc.Exclude {
		if spec == ex || packageName(spec) == ex {
			return true
		}
	}
	return false
}

// aliasedToLocalPath reports whether the specifier resolves through a
// configured alias into application code. Those are compiled with the app,
// not pre-bundled.
func (s *Scanner) aliasedToLocalPath(spec string) bool {
	for _, key := range []string{spec, packageName(spec), firstSegment(spec)} {
		if target, ok := s.bc.Aliases[key]; ok {
			return strings.HasPrefix(target, ".") || strings.HasPrefix(target, "/")
		}
	}
	return false
}

// isBare reports whether a specifier names an installable package rather
// than a relative file, a URL or a Node builtin.
func isBare(spec string) bool {
	switch {
	case spec == "", spec == ".", spec == "..":
		return false
	case strings.HasPrefix(spec, "./"), strings.HasPrefix(spec, "../"):
		return false
	case strings.HasPrefix(spec, "/"):
		return false
	case strings.HasPrefix(spec, "node:"), strings.HasPrefix(spec, "data:"):
		return false
	case strings.HasPrefix(spec, "http://"), strings.HasPrefix(spec, "https://"):
		return false
	}
	return !nodeBuiltins[firstSegment(spec)]
}

// packageName reduces a specifier to its package: "lodash/merge" to
// "lodash", "@scope/pkg/sub" to "@scope/pkg".
func packageName(spec string) string {
	if strings.HasPrefix(spec, "@") {
		parts := strings.SplitN(spec, "/", 3)
		if len(parts) < 2 {
			return spec
		}
		return parts[0] + "/" + parts[1]
	}
	return firstSegment(spec)
}

func firstSegment(spec string) string {
	if i := strings.IndexByte(spec, '/'); i >= 0 {
		return spec[:i]
	}
	return spec
}
