package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"modfed/internal/project"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func scanProject(t *testing.T, opts project.Options, files map[string]string) *Result {
	t.Helper()
	if opts.Root == "" {
		opts.Root = t.TempDir()
	}
	if opts.Mode == "" {
		opts.Mode = project.ModeDevelopment
	}
	writeTree(t, opts.Root, files)
	bc, err := project.NewBuildContext(opts)
	if err != nil {
		t.Fatal(err)
	}
	res, err := New(bc).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func keptSet(res *Result) map[string]int {
	out := make(map[string]int)
	for _, u := range res.Usages {
		if u.Kept {
			out[u.Specifier]++
		}
	}
	return out
}

const appSource = `import React from "react";
import merge from "lodash/merge";
import "./styles.css";
import fs from "fs";
import path from "node:path";
import Button from "@acme/ui";
export * from "redux";
const axios = require("axios");
const load = () => import("vue");
import remote from "https://cdn.example.com/x.js";
`

func TestScanExtractsBareSpecifiers(t *testing.T) {
	res := scanProject(t, project.Options{}, map[string]string{
		"src/app.tsx":            appSource,
		"src/components/nav.jsx": `import React from "react";` + "\n",
		"src/node_modules/x.js":  `import "evil";` + "\n",
		"src/types.d.ts":         `import "typescript";` + "\n",
	})

	kept := keptSet(res)
	for _, want := range []string{"react", "lodash/merge", "@acme/ui", "redux", "axios", "vue"} {
		if kept[want] == 0 {
			t.Errorf("missing specifier %q, got %v", want, kept)
		}
	}
	if kept["react"] != 2 {
		t.Errorf("react referenced in two files, counted %d", kept["react"])
	}
	for _, banned := range []string{"evil", "typescript", "fs", "node:path", "./styles.css", "https://cdn.example.com/x.js"} {
		if kept[banned] != 0 {
			t.Errorf("specifier %q must not be recorded", banned)
		}
	}
	if res.Files != 2 {
		t.Errorf("expected 2 scanned files, got %d", res.Files)
	}
}

func TestScanExcludeMarksDropped(t *testing.T) {
	res := scanProject(t, project.Options{Exclude: []string{"lodash", "axios"}}, map[string]string{
		"src/app.tsx": appSource,
	})

	dropped := make(map[string]bool)
	for _, u := range res.Usages {
		if !u.Kept {
			dropped[u.Specifier] = true
		}
	}
	if !dropped["lodash/merge"] || !dropped["axios"] {
		t.Errorf("exclude list not applied: %v", dropped)
	}
	if keptSet(res)["react"] == 0 {
		t.Error("react must stay kept")
	}
}

func TestScanIncludeAddsManifestUsage(t *testing.T) {
	res := scanProject(t, project.Options{Include: []string{"moment"}}, map[string]string{
		"src/app.js": `export const nothing = 1;` + "\n",
	})

	var found bool
	for _, u := range res.Usages {
		if u.Specifier == "moment" && u.Kept && u.File == project.ManifestName {
			found = true
		}
	}
	if !found {
		t.Errorf("include specifier missing: %+v", res.Usages)
	}
}

func TestScanSkipsLocalAliases(t *testing.T) {
	res := scanProject(t, project.Options{Aliases: map[string]string{"@": "./src", "react": "preact/compat"}}, map[string]string{
		"src/app.jsx": `import Nav from "@/components/nav";` + "\n" + `import React from "react";` + "\n",
	})

	kept := keptSet(res)
	if kept["@/components/nav"] != 0 {
		t.Error("path-aliased specifier is application code, not a dependency")
	}
	if kept["react"] == 0 {
		t.Error("package-aliased specifier still bundles")
	}
}

func TestScanMissingAppDir(t *testing.T) {
	bc, err := project.NewBuildContext(project.Options{Root: t.TempDir(), Mode: project.ModeDevelopment})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := New(bc).Scan(context.Background()); err == nil {
		t.Fatal("expected an error for a missing app dir")
	}
}

func TestIsBare(t *testing.T) {
	checks := []struct {
		spec string
		want bool
	}{
		{"react", true},
		{"lodash/merge", true},
		{"@scope/pkg", true},
		{"@scope/pkg/deep", true},
		{"", false},
		{".", false},
		{"./local", false},
		{"../up", false},
		{"/abs", false},
		{"node:fs", false},
		{"fs", false},
		{"fs/promises", false},
		{"data:text/javascript,1", false},
		{"http://x", false},
		{"https://x", false},
	}
	for _, c := range checks {
		if got := isBare(c.spec); got != c.want {
			t.Errorf("isBare(%q) = %v, want %v", c.spec, got, c.want)
		}
	}
}

func TestPackageName(t *testing.T) {
	checks := []struct {
		spec string
		want string
	}{
		{"react", "react"},
		{"lodash/merge", "lodash"},
		{"@scope/pkg", "@scope/pkg"},
		{"@scope/pkg/deep", "@scope/pkg"},
	}
	for _, c := range checks {
		if got := packageName(c.spec); got != c.want {
			t.Errorf("packageName(%q) = %q, want %q", c.spec, got, c.want)
		}
	}
}
