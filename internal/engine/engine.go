// Package engine owns the single build slot for one mode's artifact.
// Exactly one bundling run exists per mode at any time; everyone else
// waits on the in-flight result through a closed-channel broadcast. The
// engine stages each build next to the live directory and swaps it in
// only on success, so a failed build never clobbers what is being served.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"modfed/internal/bundler"
	"modfed/internal/depset"
	"modfed/internal/project"
	"modfed/internal/remote"
)

const entrySourceDirName = "entrysrc"

// Engine serializes builds for one BuildContext.
type Engine struct {
	bc *project.BuildContext
	b  bundler.Bundler

	mu       sync.Mutex
	state    State
	seq      uint64
	current  *ticket
	last     Result
	artifact bool
}

// ticket is the broadcast primitive: res is populated before done is
// closed, so every waiter observes a complete result.
type ticket struct {
	done chan struct{}
	res  Result
}

// Result is the outcome of one build, delivered identically to the
// caller and to every WaitReady waiter.
type Result struct {
	Seq         uint64
	Fingerprint project.Digest
	Stats       *bundler.Stats
	Elapsed     time.Duration
	Err         error
}

// New creates the engine for a context. The live artifact directory is
// probed once, here, to learn whether a previous session left a servable
// bundle; afterwards only the state machine drives decisions.
func New(bc *project.BuildContext, b bundler.Bundler) *Engine {
	e := &Engine{bc: bc, b: b, state: StateIdle}
	if _, err := os.Stat(filepath.Join(bc.BundleDir(), remote.EntryName)); err == nil {
		e.artifact = true
	}
	return e
}

// State returns the current build state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// ArtifactPresent reports whether a servable bundle directory exists,
// stale or not. Seeded at construction, flipped on the first successful
// build, never cleared by failures.
func (e *Engine) ArtifactPresent() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.artifact
}

// Build runs one bundling pass over deps and publishes the result to all
// waiters. It blocks for the duration. A second Build while one is in
// flight returns ErrBuildInProgress; the orchestrator's coalescing makes
// that unreachable in normal operation.
func (e *Engine) Build(ctx context.Context, deps []depset.Specifier, fp project.Digest, obs PhaseObserver) (Result, error) {
	e.mu.Lock()
	if e.state == StateBuilding {
		e.mu.Unlock()
		return Result{}, ErrBuildInProgress
	}
	e.state = StateBuilding
	e.seq++
	seq := e.seq
	t := &ticket{done: make(chan struct{})}
	e.current = t
	e.mu.Unlock()

	start := time.Now()
	stats, err := e.runBuild(ctx, deps, obs)
	res := Result{
		Seq:         seq,
		Fingerprint: fp,
		Stats:       stats,
		Elapsed:     time.Since(start),
		Err:         err,
	}

	e.mu.Lock()
	t.res = res
	if err != nil {
		e.state = StateFailed
	} else {
		e.state = StateReady
		e.artifact = true
	}
	e.last = res
	e.current = nil
	close(t.done)
	e.mu.Unlock()

	return res, err
}

// WaitReady returns the in-flight build's result, waiting for it if one
// is running, or the last completed result immediately. Requests that
// arrive during a build all observe that same build.
func (e *Engine) WaitReady(ctx context.Context) (Result, error) {
	e.mu.Lock()
	t := e.current
	if t == nil {
		res := e.last
		e.mu.Unlock()
		return res, nil
	}
	e.mu.Unlock()

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-t.done:
		return t.res, nil
	}
}

// runBuild executes the three phases: prepare entry sources, invoke the
// bundler into the staging directory, seal (write the remote entry and
// swap staging live). Every error comes back as a *BuildError.
func (e *Engine) runBuild(ctx context.Context, deps []depset.Specifier, obs PhaseObserver) (*bundler.Stats, error) {
	live := e.bc.BundleDir()
	staging := live + ".staging"
	srcDir := filepath.Join(e.bc.CacheDir(), entrySourceDirName)

	entries := make([]bundler.Entry, len(deps))
	err := e.phase(obs, PhasePrepare, len(deps), func() error {
		for _, dir := range []string{staging, srcDir} {
			if err := os.RemoveAll(dir); err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		for i, dep := range deps {
			entries[i] = bundler.Entry{Specifier: dep.Name, Base: remote.VirtualBase(dep.Name)}
			src := bundler.EntrySourcePath(srcDir, entries[i].Base)
			if err := os.WriteFile(src, remote.VirtualEntrySource(dep.Name), 0o644); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, &BuildError{Mode: e.bc.Mode, Err: err}
	}

	var stats *bundler.Stats
	err = e.phase(obs, PhaseBundle, len(deps), func() error {
		req := &bundler.Request{
			Root:      e.bc.Root,
			SourceDir: srcDir,
			OutDir:    staging,
			Metafile:  filepath.Join(e.bc.CacheDir(), "metafile.json"),
			Entries:   entries,
			Alias:     e.bc.Aliases,
			Externals: e.bc.Externals,
			Minify:    e.bc.Mode.Minify(),
			Sourcemap: e.bc.Mode.Sourcemap(),
		}
		var bundleErr error
		stats, bundleErr = e.b.Bundle(ctx, req)
		return bundleErr
	})
	if err != nil {
		be := &BuildError{Mode: e.bc.Mode, Err: err}
		if stats != nil {
			be.Diagnostics = stats.Diagnostics
		}
		return stats, be
	}

	err = e.phase(obs, PhaseSeal, len(deps), func() error {
		entryJS := remote.ContainerSource(e.bc.Namespace, stats.EntryChunks)
		if err := os.WriteFile(filepath.Join(staging, remote.EntryName), entryJS, 0o644); err != nil {
			return err
		}
		// Swap before broadcasting: waiters must only ever see the new tree.
		if err := os.RemoveAll(live); err != nil {
			return err
		}
		return os.Rename(staging, live)
	})
	if err != nil {
		return stats, &BuildError{Mode: e.bc.Mode, Err: err}
	}
	return stats, nil
}

func (e *Engine) phase(obs PhaseObserver, name string, deps int, fn func() error) error {
	obs.emit(PhaseEvent{Phase: name, Status: PhaseStart, Deps: deps})
	start := time.Now()
	err := fn()
	obs.emit(PhaseEvent{Phase: name, Status: PhaseEnd, Deps: deps, Elapsed: time.Since(start), Err: err})
	return err
}
