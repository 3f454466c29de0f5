package bundler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"modfed/internal/diag"
)

// Esbuild shells out to the esbuild CLI. The binary is resolved through
// PATH unless Bin carries an explicit path.
type Esbuild struct {
	Bin           string
	PrintCommands bool
}

// NewEsbuild returns an adapter for the given binary name or path.
func NewEsbuild(bin string) *Esbuild {
	if bin == "" {
		bin = "esbuild"
	}
	return &Esbuild{Bin: bin}
}

func (e *Esbuild) Name() string { return e.Bin }

// Bundle runs one esbuild invocation over the generated entry sources.
// Bundler diagnostics end up in Stats.Diagnostics regardless of outcome;
// a non-zero exit returns an error alongside whatever was parsed.
func (e *Esbuild) Bundle(ctx context.Context, req *Request) (*Stats, error) {
	if err := e.ensureAvailable(); err != nil {
		return nil, err
	}
	stats := &Stats{
		EntryChunks: make(map[string]string, len(req.Entries)),
		Diagnostics: diag.NewBag(64),
	}
	if len(req.Entries) == 0 {
		return stats, nil
	}

	args := e.buildArgs(req)
	if e.PrintCommands {
		fmt.Fprintf(os.Stdout, "%s %s\n", e.Bin, strings.Join(args, " "))
	}
	cmd := exec.CommandContext(ctx, e.Bin, args...)
	cmd.Dir = req.Root
	var stderr strings.Builder
	cmd.Stderr = &stderr
	cmd.Stdout = os.Stdout

	runErr := cmd.Run()
	parseLog(stderr.String(), stats.Diagnostics)
	stats.Diagnostics.Dedup()
	stats.Diagnostics.Sort()
	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stats, ctxErr
		}
		if stats.Diagnostics.HasErrors() {
			return stats, fmt.Errorf("%s: %s", e.Bin, diag.Summary(stats.Diagnostics))
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return stats, runErr
		}
		return stats, fmt.Errorf("%s: %s", e.Bin, msg)
	}

	meta, err := ParseMetafile(req.Metafile)
	if err != nil {
		return stats, err
	}
	if err := collectStats(meta, req.Entries, stats); err != nil {
		return stats, err
	}
	return stats, nil
}

func (e *Esbuild) ensureAvailable() error {
	if _, err := exec.LookPath(e.Bin); err != nil {
		return fmt.Errorf("%s not found; install with: npm install -g esbuild", e.Bin)
	}
	return nil
}

// buildArgs assembles the CLI invocation. Entries are passed sorted so
// repeated runs over the same set produce identical commands.
func (e *Esbuild) buildArgs(req *Request) []string {
	entries := make([]string, 0, len(req.Entries))
	for _, entry := range req.Entries {
		entries = append(entries, EntrySourcePath(req.SourceDir, entry.Base))
	}
	sort.Strings(entries)

	args := entries
	args = append(args,
		"--bundle",
		"--format=esm",
		"--platform=browser",
		"--splitting",
		"--outdir="+req.OutDir,
		"--entry-names=[name]-[hash]",
		"--chunk-names=mf-dep_[hash]",
		"--asset-names=mf-static_[name]-[hash]",
		"--metafile="+req.Metafile,
		"--log-level=warning",
		"--color=false",
	)
	if req.Minify {
		args = append(args, "--minify")
	}
	if req.Sourcemap {
		args = append(args, "--sourcemap")
	}

	aliases := make([]string, 0, len(req.Alias))
	for from, to := range req.Alias {
		aliases = append(aliases, fmt.Sprintf("--alias:%s=%s", from, to))
	}
	sort.Strings(aliases)
	args = append(args, aliases...)

	for _, ext := range req.Externals {
		args = append(args, "--external:"+ext)
	}
	return args
}
