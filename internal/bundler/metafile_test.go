package bundler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"modfed/internal/diag"
)

const sampleMetafile = `{
  "inputs": {
    "bundle.staging/src/mf-va_react.mjs": {"bytes": 120, "imports": [{"path": "node_modules/react/index.js", "kind": "import-statement"}]},
    "node_modules/react/index.js": {"bytes": 6500, "imports": [], "format": "cjs"}
  },
  "outputs": {
    "bundle.staging/out/mf-va_react-1A2B3C4D.js": {
      "bytes": 7200,
      "imports": [{"path": "bundle.staging/out/mf-dep_9F8E7D6C.js", "kind": "import-statement"}],
      "exports": ["default"],
      "entryPoint": "bundle.staging/src/mf-va_react.mjs"
    },
    "bundle.staging/out/mf-dep_9F8E7D6C.js": {
      "bytes": 15000,
      "imports": [],
      "exports": []
    }
  }
}`

func TestParseMetafileAndCollectStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metafile.json")
	if err := os.WriteFile(path, []byte(sampleMetafile), 0o644); err != nil {
		t.Fatal(err)
	}
	meta, err := ParseMetafile(path)
	if err != nil {
		t.Fatalf("ParseMetafile: %v", err)
	}

	stats := &Stats{EntryChunks: make(map[string]string), Diagnostics: diag.NewBag(8)}
	entries := []Entry{{Specifier: "react", Base: "mf-va_react"}}
	if err := collectStats(meta, entries, stats); err != nil {
		t.Fatalf("collectStats: %v", err)
	}

	if got := stats.EntryChunks["react"]; got != "mf-va_react-1A2B3C4D.js" {
		t.Fatalf("EntryChunks[react] = %q", got)
	}
	if len(stats.Outputs) != 2 {
		t.Fatalf("outputs = %d, want 2", len(stats.Outputs))
	}
	if stats.Outputs[0].Name != "mf-dep_9F8E7D6C.js" {
		t.Fatalf("outputs must be sorted by name, got %q first", stats.Outputs[0].Name)
	}
	if stats.TotalBytes != 22200 {
		t.Fatalf("TotalBytes = %d, want 22200", stats.TotalBytes)
	}
}

func TestCollectStatsMissingEntry(t *testing.T) {
	meta := &Metafile{Outputs: map[string]MetafileOutput{}}
	stats := &Stats{EntryChunks: make(map[string]string), Diagnostics: diag.NewBag(8)}
	err := collectStats(meta, []Entry{{Specifier: "react", Base: "mf-va_react"}}, stats)
	if err == nil || !strings.Contains(err.Error(), "react") {
		t.Fatalf("expected missing-chunk error naming the specifier, got %v", err)
	}
}

func TestParseMetafileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metafile.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ParseMetafile(path); err == nil {
		t.Fatal("corrupt metafile must error")
	}
}

func TestBuildArgsDeterministic(t *testing.T) {
	e := NewEsbuild("")
	req := &Request{
		Root:      "/proj",
		SourceDir: "/proj/.modfed/development/bundle.staging/src",
		OutDir:    "/proj/.modfed/development/bundle.staging/out",
		Metafile:  "/proj/.modfed/development/metafile.json",
		Entries: []Entry{
			{Specifier: "react", Base: "mf-va_react"},
			{Specifier: "axios", Base: "mf-va_axios"},
		},
		Alias:     map[string]string{"lodash": "lodash-es", "a": "b"},
		Externals: []string{"fs"},
		Sourcemap: true,
	}

	a := strings.Join(e.buildArgs(req), " ")
	b := strings.Join(e.buildArgs(req), " ")
	if a != b {
		t.Fatal("buildArgs must be deterministic")
	}
	for _, want := range []string{
		"--bundle", "--format=esm", "--splitting",
		"--entry-names=[name]-[hash]",
		"--chunk-names=mf-dep_[hash]",
		"--asset-names=mf-static_[name]-[hash]",
		"--alias:a=b", "--alias:lodash=lodash-es",
		"--external:fs", "--sourcemap",
	} {
		if !strings.Contains(a, want) {
			t.Fatalf("args missing %q: %s", want, a)
		}
	}
	if strings.Contains(a, "--minify") {
		t.Fatal("development request must not minify")
	}
	if strings.Index(a, "mf-va_axios.mjs") > strings.Index(a, "mf-va_react.mjs") {
		t.Fatal("entries must be passed sorted")
	}
}
