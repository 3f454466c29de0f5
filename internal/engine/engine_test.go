package engine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"modfed/internal/bundler"
	"modfed/internal/depset"
	"modfed/internal/diag"
	"modfed/internal/engine"
	"modfed/internal/project"
	"modfed/internal/remote"
)

// stubBundler fakes chunk production by writing one file per entry into
// the requested output directory.
type stubBundler struct {
	mu    sync.Mutex
	calls int
	fail  bool
	block chan struct{}
}

func (s *stubBundler) Name() string { return "stub" }

func (s *stubBundler) Bundle(ctx context.Context, req *bundler.Request) (*bundler.Stats, error) {
	s.mu.Lock()
	s.calls++
	fail := s.fail
	block := s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	stats := &bundler.Stats{EntryChunks: make(map[string]string), Diagnostics: diag.NewBag(8)}
	if fail {
		stats.Diagnostics.Add(diag.NewError(diag.BndBundlerMessage, diag.Loc{}, "stub failure"))
		return stats, errors.New("stub: bundling failed")
	}
	for _, e := range req.Entries {
		name := e.Base + "-AAAA1111.js"
		if err := os.WriteFile(filepath.Join(req.OutDir, name), []byte("// "+e.Specifier+"\n"), 0o644); err != nil {
			return nil, err
		}
		stats.EntryChunks[e.Specifier] = name
		stats.Outputs = append(stats.Outputs, bundler.OutputFile{Name: name, Bytes: 10})
		stats.TotalBytes += 10
	}
	return stats, nil
}

func (s *stubBundler) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func devContext(t *testing.T) *project.BuildContext {
	t.Helper()
	bc, err := project.NewBuildContext(project.Options{Root: t.TempDir(), Mode: project.ModeDevelopment})
	require.NoError(t, err)
	return bc
}

func specs(names ...string) []depset.Specifier {
	out := make([]depset.Specifier, len(names))
	for i, n := range names {
		out[i] = depset.Specifier{Name: n, Source: "src/app.js"}
	}
	return out
}

func TestBuildWritesArtifact(t *testing.T) {
	bc := devContext(t)
	stub := &stubBundler{}
	e := engine.New(bc, stub)

	res, err := e.Build(context.Background(), specs("react"), project.HashStrings([]string{"react"}), nil)
	require.NoError(t, err)
	require.Equal(t, engine.StateReady, e.State())
	require.True(t, e.ArtifactPresent())
	require.Equal(t, uint64(1), res.Seq)

	entry, err := os.ReadFile(filepath.Join(bc.BundleDir(), remote.EntryName))
	require.NoError(t, err)
	require.Contains(t, string(entry), "mf-va_react-AAAA1111.js")

	_, err = os.Stat(filepath.Join(bc.BundleDir(), "mf-va_react-AAAA1111.js"))
	require.NoError(t, err)

	// Staging must be gone after the swap.
	_, err = os.Stat(bc.BundleDir() + ".staging")
	require.True(t, os.IsNotExist(err))
}

func TestBuildFailureKeepsPreviousArtifact(t *testing.T) {
	bc := devContext(t)
	stub := &stubBundler{}
	e := engine.New(bc, stub)

	_, err := e.Build(context.Background(), specs("react"), project.ZeroDigest, nil)
	require.NoError(t, err)
	before, err := os.ReadFile(filepath.Join(bc.BundleDir(), remote.EntryName))
	require.NoError(t, err)

	stub.mu.Lock()
	stub.fail = true
	stub.mu.Unlock()

	_, err = e.Build(context.Background(), specs("react", "lodash"), project.ZeroDigest, nil)
	require.Error(t, err)
	var buildErr *engine.BuildError
	require.ErrorAs(t, err, &buildErr)
	require.True(t, buildErr.Diagnostics.HasErrors())

	require.Equal(t, engine.StateFailed, e.State())
	require.True(t, e.ArtifactPresent(), "stale artifact still counts as present")

	after, err := os.ReadFile(filepath.Join(bc.BundleDir(), remote.EntryName))
	require.NoError(t, err)
	require.Equal(t, string(before), string(after), "failed build must not touch the live artifact")
}

func TestWaitReadyBroadcast(t *testing.T) {
	bc := devContext(t)
	stub := &stubBundler{block: make(chan struct{})}
	e := engine.New(bc, stub)

	go func() {
		_, _ = e.Build(context.Background(), specs("react"), project.ZeroDigest, nil)
	}()
	require.Eventually(t, func() bool { return e.State() == engine.StateBuilding }, time.Second, time.Millisecond)

	const waiters = 8
	results := make(chan engine.Result, waiters)
	for range waiters {
		go func() {
			res, err := e.WaitReady(context.Background())
			if err == nil {
				results <- res
			}
		}()
	}

	close(stub.block)
	for range waiters {
		select {
		case res := <-results:
			require.NoError(t, res.Err)
			require.Equal(t, uint64(1), res.Seq, "every waiter observes the in-flight build")
		case <-time.After(2 * time.Second):
			t.Fatal("waiter did not receive the broadcast")
		}
	}
}

func TestBuildRejectsReentry(t *testing.T) {
	bc := devContext(t)
	stub := &stubBundler{block: make(chan struct{})}
	e := engine.New(bc, stub)

	go func() {
		_, _ = e.Build(context.Background(), specs("react"), project.ZeroDigest, nil)
	}()
	require.Eventually(t, func() bool { return e.State() == engine.StateBuilding }, time.Second, time.Millisecond)

	_, err := e.Build(context.Background(), specs("lodash"), project.ZeroDigest, nil)
	require.ErrorIs(t, err, engine.ErrBuildInProgress)
	close(stub.block)
}

func TestWaitReadyHonorsContext(t *testing.T) {
	bc := devContext(t)
	stub := &stubBundler{block: make(chan struct{})}
	e := engine.New(bc, stub)

	go func() {
		_, _ = e.Build(context.Background(), specs("react"), project.ZeroDigest, nil)
	}()
	require.Eventually(t, func() bool { return e.State() == engine.StateBuilding }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.WaitReady(ctx)
	require.ErrorIs(t, err, context.Canceled)
	close(stub.block)
}

func TestWaitReadyIdleIsImmediate(t *testing.T) {
	bc := devContext(t)
	e := engine.New(bc, &stubBundler{})

	done := make(chan struct{})
	go func() {
		_, _ = e.WaitReady(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitReady must not block when no build is in flight")
	}
}

func TestNewSeedsArtifactFromDisk(t *testing.T) {
	bc := devContext(t)
	require.NoError(t, os.MkdirAll(bc.BundleDir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bc.BundleDir(), remote.EntryName), []byte("old"), 0o644))

	e := engine.New(bc, &stubBundler{})
	require.True(t, e.ArtifactPresent(), "prior-session artifact must be detected")
	require.Equal(t, engine.StateIdle, e.State())
}

func TestBuildEmptySetProducesBareContainer(t *testing.T) {
	bc := devContext(t)
	stub := &stubBundler{}
	e := engine.New(bc, stub)

	res, err := e.Build(context.Background(), nil, project.ZeroDigest, nil)
	require.NoError(t, err)
	require.Empty(t, res.Stats.EntryChunks)

	entry, err := os.ReadFile(filepath.Join(bc.BundleDir(), remote.EntryName))
	require.NoError(t, err)
	require.Contains(t, string(entry), "globalThis")
}

func TestBuildEmitsPhases(t *testing.T) {
	bc := devContext(t)
	e := engine.New(bc, &stubBundler{})

	var mu sync.Mutex
	var order []string
	obs := func(ev engine.PhaseEvent) {
		if ev.Status == engine.PhaseEnd {
			mu.Lock()
			order = append(order, ev.Phase)
			mu.Unlock()
		}
	}
	_, err := e.Build(context.Background(), specs("react"), project.ZeroDigest, obs)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{engine.PhasePrepare, engine.PhaseBundle, engine.PhaseSeal}, order)
}

func TestStubSanity(t *testing.T) {
	// Guard the helper itself: two builds mean two bundler calls.
	bc := devContext(t)
	stub := &stubBundler{}
	e := engine.New(bc, stub)
	_, err := e.Build(context.Background(), specs("react"), project.ZeroDigest, nil)
	require.NoError(t, err)
	_, err = e.Build(context.Background(), specs("react", "axios"), project.ZeroDigest, nil)
	require.NoError(t, err)
	require.Equal(t, 2, stub.callCount())
}
