// Package buildpipeline drives dependency bundle reconciliation.
package buildpipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"modfed/internal/bundler"
	"modfed/internal/depset"
	"modfed/internal/engine"
	"modfed/internal/fsutil"
	"modfed/internal/project"
)

// Notifier pushes a reload notification to live clients after a successful
// development-mode commit.
type Notifier interface {
	Broadcast()
}

// Outcome reports what a reconcile pass did.
type Outcome string

const (
	// OutcomeNoOp means the dependency set was unchanged and no build ran.
	OutcomeNoOp Outcome = "noop"
	// OutcomeBuilt means a bundle build ran and its snapshot was committed.
	OutcomeBuilt Outcome = "built"
	// OutcomeFailed means a build ran and failed; the previous snapshot
	// and artifact are untouched.
	OutcomeFailed Outcome = "failed"
)

// ReconcileResult captures the outcome and stage timings of one reconcile pass.
type ReconcileResult struct {
	Outcome     Outcome
	Reason      string
	Fingerprint project.Digest
	Stats       *bundler.Stats
	Timings     Timings
}

// Options configures an Orchestrator.
type Options struct {
	Context  *project.BuildContext
	Store    *depset.Store
	Engine   *engine.Engine
	Notifier Notifier
	Progress ProgressSink
	Logger   *log.Logger
}

// Orchestrator runs one reconciliation per triggering event: it asks the
// snapshot store whether the dependency set changed, invokes the engine when
// it did, and commits the new snapshot on success. Overlapping triggers
// coalesce into a single flight.
type Orchestrator struct {
	bc       *project.BuildContext
	store    *depset.Store
	eng      *engine.Engine
	notifier Notifier
	progress ProgressSink
	logger   *log.Logger

	sf singleflight.Group
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Context == nil {
		return nil, fmt.Errorf("missing build context")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("missing snapshot store")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("missing build engine")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		bc:       opts.Context,
		store:    opts.Store,
		eng:      opts.Engine,
		notifier: opts.Notifier,
		progress: opts.Progress,
		logger:   logger,
	}, nil
}

// OnStart loads the persisted snapshot for the current mode. A corrupt or
// unreadable cache file is logged and treated as empty.
func (o *Orchestrator) OnStart() {
	if err := o.store.LoadCache(); err != nil {
		o.logger.Warn("dependency snapshot unreadable, treating as empty",
			"path", o.bc.SnapshotPath(), "err", err)
	}
}

// RecordUsage reports one module specifier reference from the transformation
// pipeline. References dropped by upstream filtering must arrive with
// kept=false and are ignored.
func (o *Orchestrator) RecordUsage(specifier, sourceFile string, kept bool) {
	if !kept {
		return
	}
	o.store.RecordUsage(specifier, sourceFile)
}

// ResetPass clears the pending set before a new compile pass.
func (o *Orchestrator) ResetPass() {
	o.store.ResetPass()
}

// OnCompilePassComplete is the development-mode trigger. Build failures are
// logged and swallowed so the previous bundle keeps serving.
func (o *Orchestrator) OnCompilePassComplete(ctx context.Context) ReconcileResult {
	res, err := o.Reconcile(ctx, false)
	if err != nil {
		o.logger.Error("dependency bundle build failed, previous bundle keeps serving", "err", err)
	}
	return res
}

// OnFullBuildComplete is the production-mode trigger. Build or publish
// failures abort the caller's pipeline.
func (o *Orchestrator) OnFullBuildComplete(ctx context.Context) (ReconcileResult, error) {
	return o.Reconcile(ctx, false)
}

// Reconcile compares the pending dependency set against the persisted
// snapshot and runs a bundle build when they differ (or force is set).
// Concurrent calls share one flight and one result.
func (o *Orchestrator) Reconcile(ctx context.Context, force bool) (ReconcileResult, error) {
	v, err, _ := o.sf.Do("reconcile", func() (any, error) {
		return o.reconcile(ctx, force)
	})
	res, _ := v.(ReconcileResult)
	return res, err
}

func (o *Orchestrator) reconcile(ctx context.Context, force bool) (ReconcileResult, error) {
	var res ReconcileResult

	evalStart := time.Now()
	emitStage(o.progress, nil, StageEvaluate, StatusWorking, nil, 0)
	ev := o.store.Evaluate(o.eng.ArtifactPresent())
	res.Timings.Set(StageEvaluate, time.Since(evalStart))
	res.Reason = ev.Reason
	res.Fingerprint = ev.Fingerprint
	if !force && !ev.ShouldBuild {
		res.Outcome = OutcomeNoOp
		emitStage(o.progress, nil, StageEvaluate, StatusDone, nil, res.Timings.Duration(StageEvaluate))
		return res, nil
	}
	if !ev.ShouldBuild {
		res.Reason = "forced rebuild"
	}
	emitStage(o.progress, nil, StageEvaluate, StatusDone, nil, res.Timings.Duration(StageEvaluate))

	deps := o.store.Pending()
	names := depNames(deps)
	emitQueued(o.progress, names)
	phases := &phaseObserver{sink: o.progress, deps: names}

	buildRes, err := o.eng.Build(ctx, deps, ev.Fingerprint, phases.OnPhase)
	res.Stats = buildRes.Stats
	res.Timings.Set(StageBundle, buildRes.Elapsed)
	if err != nil {
		res.Outcome = OutcomeFailed
		emitStage(o.progress, names, StageBundle, StatusError, err, buildRes.Elapsed)
		return res, err
	}
	emitStage(o.progress, names, StageBundle, StatusDone, nil, buildRes.Elapsed)

	commitStart := time.Now()
	emitStage(o.progress, nil, StageCommit, StatusWorking, nil, 0)
	if err := o.store.Commit(); err != nil {
		res.Outcome = OutcomeFailed
		err = fmt.Errorf("persist dependency snapshot: %w", err)
		emitStage(o.progress, nil, StageCommit, StatusError, err, time.Since(commitStart))
		return res, err
	}
	res.Timings.Set(StageCommit, time.Since(commitStart))
	emitStage(o.progress, nil, StageCommit, StatusDone, nil, res.Timings.Duration(StageCommit))

	switch o.bc.Mode {
	case project.ModeDevelopment:
		// Commit happens before the broadcast so a reloading client always
		// observes a filesystem state consistent with the new snapshot.
		if o.notifier != nil {
			o.notifier.Broadcast()
		}
	case project.ModeProduction:
		pubStart := time.Now()
		emitStage(o.progress, nil, StagePublish, StatusWorking, nil, 0)
		if err := o.publish(ctx); err != nil {
			res.Outcome = OutcomeFailed
			emitStage(o.progress, nil, StagePublish, StatusError, err, time.Since(pubStart))
			return res, err
		}
		res.Timings.Set(StagePublish, time.Since(pubStart))
		emitStage(o.progress, nil, StagePublish, StatusDone, nil, res.Timings.Duration(StagePublish))
	}

	res.Outcome = OutcomeBuilt
	return res, nil
}

func (o *Orchestrator) publish(ctx context.Context) error {
	dst := o.bc.PublishAbs()
	if err := fsutil.CopyDir(ctx, o.bc.BundleDir(), dst); err != nil {
		return fmt.Errorf("publish bundle to %q: %w", dst, err)
	}
	return nil
}

func depNames(deps []depset.Specifier) []string {
	if len(deps) == 0 {
		return nil
	}
	names := make([]string, len(deps))
	for i, d := range deps {
		names[i] = d.Name
	}
	return names
}

// phaseObserver maps engine phases onto progress events for the UI.
type phaseObserver struct {
	sink          ProgressSink
	deps          []string
	bundleStarted bool
}

func (p *phaseObserver) OnPhase(ev engine.PhaseEvent) {
	if p == nil || p.sink == nil {
		return
	}
	if ev.Status != engine.PhaseStart {
		return
	}
	switch ev.Phase {
	case engine.PhaseBundle:
		if p.bundleStarted {
			return
		}
		p.bundleStarted = true
		emitStage(p.sink, p.deps, StageBundle, StatusWorking, nil, 0)
	case engine.PhaseSeal:
		emitStage(p.sink, nil, StageCommit, StatusQueued, nil, 0)
	}
}

func emitQueued(sink ProgressSink, deps []string) {
	if sink == nil {
		return
	}
	for _, dep := range deps {
		sink.OnEvent(Event{Dep: dep, Stage: StageBundle, Status: StatusQueued})
	}
}

func emitStage(sink ProgressSink, deps []string, stage Stage, status Status, err error, elapsed time.Duration) {
	if sink == nil {
		return
	}
	sink.OnEvent(Event{Stage: stage, Status: status, Err: err, Elapsed: elapsed})
	for _, dep := range deps {
		sink.OnEvent(Event{Dep: dep, Stage: stage, Status: status, Err: err, Elapsed: elapsed})
	}
}
