package bundler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Metafile mirrors the esbuild metafile JSON structure.
type Metafile struct {
	Inputs  map[string]MetafileInput  `json:"inputs"`
	Outputs map[string]MetafileOutput `json:"outputs"`
}

// MetafileInput represents an input file in the metafile.
type MetafileInput struct {
	Bytes   int64            `json:"bytes"`
	Imports []MetafileImport `json:"imports"`
	Format  string           `json:"format,omitempty"`
}

// MetafileImport represents an import edge in the metafile.
type MetafileImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
	Original string `json:"original,omitempty"`
}

// MetafileOutput represents an output file in the metafile.
type MetafileOutput struct {
	Bytes      int64            `json:"bytes"`
	Imports    []MetafileImport `json:"imports"`
	Exports    []string         `json:"exports"`
	EntryPoint string           `json:"entryPoint,omitempty"`
}

// ParseMetafile reads and decodes a metafile from disk.
func ParseMetafile(path string) (*Metafile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta Metafile
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("malformed metafile %q: %w", path, err)
	}
	return &meta, nil
}

// collectStats folds a metafile into Stats: every output becomes an
// OutputFile, and outputs whose entryPoint matches a requested entry base
// fill EntryChunks. Metafile paths are bundler-cwd-relative; only base
// names survive because the artifact directory is flat.
func collectStats(meta *Metafile, entries []Entry, stats *Stats) error {
	byBase := make(map[string]string, len(entries))
	for _, e := range entries {
		byBase[e.Base] = e.Specifier
	}

	for outPath, out := range meta.Outputs {
		name := filepath.Base(outPath)
		stats.Outputs = append(stats.Outputs, OutputFile{Name: name, Bytes: out.Bytes})
		stats.TotalBytes += out.Bytes
		if out.EntryPoint == "" {
			continue
		}
		inBase := strings.TrimSuffix(filepath.Base(out.EntryPoint), filepath.Ext(out.EntryPoint))
		if spec, ok := byBase[inBase]; ok {
			stats.EntryChunks[spec] = name
		}
	}

	sort.Slice(stats.Outputs, func(i, j int) bool { return stats.Outputs[i].Name < stats.Outputs[j].Name })

	var missing []string
	for _, e := range entries {
		if _, ok := stats.EntryChunks[e.Specifier]; !ok {
			missing = append(missing, e.Specifier)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("no output chunk for %s", strings.Join(missing, ", "))
	}
	return nil
}
