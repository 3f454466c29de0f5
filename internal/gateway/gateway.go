// Package gateway fronts the bundle output directory with an HTTP
// middleware. Requests for managed assets that arrive while a build is in
// flight suspend until that build's broadcast; everything else passes
// through untouched.
package gateway

import (
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/hashicorp/golang-lru/v2"

	"modfed/internal/engine"
	"modfed/internal/fsutil"
	"modfed/internal/project"
	"modfed/internal/remote"
)

const (
	cacheEntries      = 256
	maxCachedFileSize = 4 << 20
)

// Gateway serves managed bundle assets for one mode.
type Gateway struct {
	bc    *project.BuildContext
	eng   *engine.Engine
	cache *lru.Cache[string, []byte]
}

func New(bc *project.BuildContext, eng *engine.Engine) (*Gateway, error) {
	cache, err := lru.New[string, []byte](cacheEntries)
	if err != nil {
		return nil, err
	}
	return &Gateway{bc: bc, eng: eng, cache: cache}, nil
}

// Handler wraps next, intercepting requests for managed assets.
func (g *Gateway) Handler(next http.Handler) http.Handler {
	if next == nil {
		next = http.NotFoundHandler()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		asset, ok := Classify(g.bc.PublicPath, r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		g.serveAsset(w, r, asset)
	})
}

func (g *Gateway) serveAsset(w http.ResponseWriter, r *http.Request, asset Asset) {
	// A request that arrives mid-build must be answered with that build's
	// output, never with a partially written or stale file.
	if _, err := g.eng.WaitReady(r.Context()); err != nil {
		// Client gave up while suspended.
		return
	}

	data, err := g.load(asset)
	if err != nil {
		var notFound *AssetNotFoundError
		if errors.As(err, &notFound) {
			http.Error(w, notFound.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "bundle read failed", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", contentType(asset.Name))
	if asset.Kind == remote.KindEntry {
		// The entry keeps its name across builds, only its content changes.
		h.Set("Cache-Control", "no-cache")
	} else {
		h.Set("Cache-Control", "public, max-age=31536000, immutable")
	}
	h.Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// load reads an asset from the bundle directory. Content-addressed files
// are cached in memory; the entry file never is.
func (g *Gateway) load(asset Asset) ([]byte, error) {
	cacheable := asset.Kind != remote.KindEntry
	if cacheable {
		if data, ok := g.cache.Get(asset.Name); ok {
			return data, nil
		}
	}

	root, err := fsutil.NewRoot(g.bc.BundleDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &AssetNotFoundError{Name: asset.Name, Err: err}
		}
		return nil, err
	}
	data, err := root.ReadFile(asset.Name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &AssetNotFoundError{Name: asset.Name, Err: err}
		}
		return nil, err
	}

	if cacheable && len(data) <= maxCachedFileSize {
		g.cache.Add(asset.Name, data)
	}
	return data, nil
}

var contentTypes = map[string]string{
	".js":   "text/javascript; charset=utf-8",
	".mjs":  "text/javascript; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".map":  "application/json; charset=utf-8",
	".json": "application/json; charset=utf-8",
	".wasm": "application/wasm",
	".svg":  "image/svg+xml",
}

func contentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
