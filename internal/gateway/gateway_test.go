package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"modfed/internal/bundler"
	"modfed/internal/depset"
	"modfed/internal/engine"
	"modfed/internal/gateway"
	"modfed/internal/project"
	"modfed/internal/remote"
)

type stubBundler struct {
	block chan struct{}
}

func (s *stubBundler) Name() string { return "stub" }

func (s *stubBundler) Bundle(ctx context.Context, req *bundler.Request) (*bundler.Stats, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	stats := &bundler.Stats{EntryChunks: make(map[string]string)}
	for _, e := range req.Entries {
		name := e.Base + "-CCCC3333.js"
		if err := os.WriteFile(filepath.Join(req.OutDir, name), []byte("// "+e.Specifier+"\n"), 0o644); err != nil {
			return nil, err
		}
		stats.EntryChunks[e.Specifier] = name
	}
	return stats, nil
}

func newGateway(t *testing.T, opts project.Options) (*gateway.Gateway, *project.BuildContext, *engine.Engine, *stubBundler) {
	t.Helper()
	if opts.Root == "" {
		opts.Root = t.TempDir()
	}
	if opts.Mode == "" {
		opts.Mode = project.ModeDevelopment
	}
	bc, err := project.NewBuildContext(opts)
	require.NoError(t, err)
	stub := &stubBundler{}
	eng := engine.New(bc, stub)
	g, err := gateway.New(bc, eng)
	require.NoError(t, err)
	return g, bc, eng, stub
}

func writeBundle(t *testing.T, bc *project.BuildContext, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(bc.BundleDir(), 0o755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(bc.BundleDir(), name), []byte(body), 0o644))
	}
}

func get(handler http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestPassThroughUnmanaged(t *testing.T) {
	g, _, _, _ := newGateway(t, project.Options{})
	var passed []string
	h := g.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		passed = append(passed, r.URL.Path)
		w.WriteHeader(http.StatusTeapot)
	}))

	for _, target := range []string{"/index.html", "/app.js", "/nested/mf-va_react-1.js"} {
		rec := get(h, target)
		require.Equal(t, http.StatusTeapot, rec.Code, "%s must pass through", target)
	}
	require.Len(t, passed, 3)
}

func TestServeEntryNoCache(t *testing.T) {
	g, bc, _, _ := newGateway(t, project.Options{})
	writeBundle(t, bc, map[string]string{remote.EntryName: "container"})

	rec := get(g.Handler(nil), "/"+remote.EntryName)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "container", rec.Body.String())
	require.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	require.Equal(t, "text/javascript; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestServeChunkImmutable(t *testing.T) {
	g, bc, _, _ := newGateway(t, project.Options{})
	writeBundle(t, bc, map[string]string{"mf-dep_1a2b3c4d.js": "chunk"})

	rec := get(g.Handler(nil), "/mf-dep_1a2b3c4d.js")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "public, max-age=31536000, immutable", rec.Header().Get("Cache-Control"))
}

func TestMissingAssetIs404(t *testing.T) {
	g, bc, _, _ := newGateway(t, project.Options{})
	writeBundle(t, bc, map[string]string{remote.EntryName: "container"})

	rec := get(g.Handler(nil), "/mf-dep_deadbeef.js")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNoBundleDirYetIs404(t *testing.T) {
	g, _, _, _ := newGateway(t, project.Options{})
	rec := get(g.Handler(nil), "/"+remote.EntryName)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublicPathPrefix(t *testing.T) {
	g, bc, _, _ := newGateway(t, project.Options{PublicPath: "/assets"})
	writeBundle(t, bc, map[string]string{remote.EntryName: "container"})
	h := g.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	require.Equal(t, http.StatusOK, get(h, "/assets/"+remote.EntryName).Code)
	require.Equal(t, http.StatusTeapot, get(h, "/"+remote.EntryName).Code)
}

func TestChunkServedFromCacheAfterDelete(t *testing.T) {
	g, bc, _, _ := newGateway(t, project.Options{})
	writeBundle(t, bc, map[string]string{"mf-va_react-1a2b3c4d.js": "chunk body"})
	h := g.Handler(nil)

	require.Equal(t, http.StatusOK, get(h, "/mf-va_react-1a2b3c4d.js").Code)
	require.NoError(t, os.Remove(filepath.Join(bc.BundleDir(), "mf-va_react-1a2b3c4d.js")))

	rec := get(h, "/mf-va_react-1a2b3c4d.js")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "chunk body", rec.Body.String())
}

func TestEntryIsNeverCached(t *testing.T) {
	g, bc, _, _ := newGateway(t, project.Options{})
	writeBundle(t, bc, map[string]string{remote.EntryName: "one"})
	h := g.Handler(nil)

	require.Equal(t, "one", get(h, "/"+remote.EntryName).Body.String())
	writeBundle(t, bc, map[string]string{remote.EntryName: "two"})
	require.Equal(t, "two", get(h, "/"+remote.EntryName).Body.String())
}

func TestRequestsSuspendDuringBuild(t *testing.T) {
	g, _, eng, stub := newGateway(t, project.Options{})
	stub.block = make(chan struct{})
	h := g.Handler(nil)

	go func() {
		deps := []depset.Specifier{{Name: "react", Source: "src/app.js"}}
		_, _ = eng.Build(context.Background(), deps, depset.Fingerprint(deps), nil)
	}()
	require.Eventually(t, func() bool { return eng.State() == engine.StateBuilding }, time.Second, time.Millisecond)

	const clients = 4
	done := make(chan *httptest.ResponseRecorder, clients)
	var wg sync.WaitGroup
	wg.Add(clients)
	for range clients {
		go func() {
			defer wg.Done()
			done <- get(h, "/"+remote.EntryName)
		}()
	}

	select {
	case <-done:
		t.Fatal("request completed before the build finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(stub.block)
	wg.Wait()
	for range clients {
		rec := <-done
		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, strings.Contains(rec.Body.String(), "mf-va_react-CCCC3333.js"),
			"suspended request must see the artifact of the build it waited for")
	}
}

func TestSuspendedRequestHonorsClientDisconnect(t *testing.T) {
	g, _, eng, stub := newGateway(t, project.Options{})
	stub.block = make(chan struct{})
	h := g.Handler(nil)

	go func() {
		deps := []depset.Specifier{{Name: "react", Source: "src/app.js"}}
		_, _ = eng.Build(context.Background(), deps, depset.Fingerprint(deps), nil)
	}()
	require.Eventually(t, func() bool { return eng.State() == engine.StateBuilding }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/"+remote.EntryName, nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	finished := make(chan struct{})
	go func() {
		h.ServeHTTP(rec, req)
		close(finished)
	}()

	cancel()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("handler kept waiting after the client disconnected")
	}
	require.Empty(t, rec.Body.String(), "nothing may be written for an abandoned request")
	close(stub.block)
}

func TestClassify(t *testing.T) {
	checks := []struct {
		publicPath string
		path       string
		ok         bool
		kind       remote.Kind
	}{
		{"/", "/" + remote.EntryName, true, remote.KindEntry},
		{"/", "/mf-va_react-1a2b3c4d.js", true, remote.KindVirtual},
		{"/", "/mf-dep_1a2b3c4d.js", true, remote.KindDep},
		{"/", "/mf-static_logo-1a2b3c4d.svg", true, remote.KindStatic},
		{"/", "/app.js", false, remote.KindUnknown},
		{"/", "/", false, remote.KindUnknown},
		{"/", "/mf-va_react-1.js/../secret", false, remote.KindUnknown},
		{"/assets/", "/assets/mf-dep_1a2b3c4d.js", true, remote.KindDep},
		{"/assets/", "/mf-dep_1a2b3c4d.js", false, remote.KindUnknown},
	}
	for _, c := range checks {
		asset, ok := gateway.Classify(c.publicPath, c.path)
		require.Equal(t, c.ok, ok, "%s under %s", c.path, c.publicPath)
		if ok {
			require.Equal(t, c.kind, asset.Kind, "%s under %s", c.path, c.publicPath)
		}
	}
}
