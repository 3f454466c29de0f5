// Package bundler is the boundary to the external bundling tool. The
// pipeline never compiles JavaScript itself: it generates per-dependency
// entry sources, asks a Bundler to produce chunks, and reads the result
// back through Stats. Esbuild is the shipped implementation; anything
// that can bundle a directory of ESM entries can stand in.
package bundler

import (
	"context"
	"path/filepath"

	"modfed/internal/diag"
)

// Entry is one dependency to bundle: the raw specifier plus the base name
// of its generated entry module (remote.VirtualBase output).
type Entry struct {
	Specifier string
	Base      string
}

// Request describes one bundling run. All paths are absolute; SourceDir
// holds the generated entry sources and OutDir receives the chunks.
type Request struct {
	Root      string // bundler working directory; module resolution starts here
	SourceDir string
	OutDir    string
	Metafile  string // where the bundler writes its metafile, outside OutDir
	Entries   []Entry
	Alias     map[string]string
	Externals []string
	Minify    bool
	Sourcemap bool
}

// OutputFile is one produced file, named relative to OutDir.
type OutputFile struct {
	Name  string
	Bytes int64
}

// Stats is what a bundling run reports back. EntryChunks maps each
// requested specifier to its produced chunk file name; Diagnostics
// carries bundler messages whether or not the run failed.
type Stats struct {
	EntryChunks map[string]string
	Outputs     []OutputFile
	TotalBytes  int64
	Diagnostics *diag.Bag
}

// Bundler turns a Request into chunk files on disk.
type Bundler interface {
	Name() string
	Bundle(ctx context.Context, req *Request) (*Stats, error)
}

// EntrySourcePath locates the generated source module for an entry base
// name. The engine writes these files; the bundler reads them.
func EntrySourcePath(sourceDir, base string) string {
	return filepath.Join(sourceDir, base+".mjs")
}
