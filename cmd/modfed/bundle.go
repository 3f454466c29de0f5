// Package main implements the modfed CLI.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"modfed/internal/buildpipeline"
	"modfed/internal/bundler"
	"modfed/internal/depset"
	"modfed/internal/diag"
	"modfed/internal/engine"
	"modfed/internal/project"
	"modfed/internal/scan"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle [flags] [path]",
	Short: "Pre-bundle the application's dependencies",
	Long: `Scan the application sources for bare import specifiers and rebuild the
shared dependency bundle if the set changed since the last run. In production
mode a successful build is also mirrored into the publish directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBundle,
}

func runBundle(cmd *cobra.Command, args []string) error {
	modeValue, err := cmd.Flags().GetString("mode")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	uiValue, err := cmd.Flags().GetString("ui")
	if err != nil {
		return err
	}
	quiet, err := cmd.Root().PersistentFlags().GetBool("quiet")
	if err != nil {
		return err
	}
	showTimings, err := cmd.Root().PersistentFlags().GetBool("timings")
	if err != nil {
		return err
	}
	maxDiagnostics, err := cmd.Root().PersistentFlags().GetInt("max-diagnostics")
	if err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	}

	uiModeValue, err := readUIMode(uiValue)
	if err != nil {
		return err
	}
	mode, err := project.ParseMode(modeValue)
	if err != nil {
		return err
	}

	profileCleanup, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer profileCleanup()

	startDir := "."
	if len(args) > 0 && args[0] != "" {
		startDir = args[0]
	}
	manifest, found, err := loadProjectManifest(startDir)
	if err != nil {
		return err
	}
	if !found {
		return errors.New(noManifestMessage)
	}

	bc, err := project.NewBuildContext(buildContextOptions(manifest, mode))
	if err != nil {
		return err
	}
	colored := colorEnabled(cmd)

	store := depset.NewStore(bc.SnapshotPath())
	eng := engine.New(bc, bundler.NewEsbuild(bc.Bundler))
	opts := buildpipeline.Options{
		Context: bc,
		Store:   store,
		Engine:  eng,
		Logger:  log.NewWithOptions(os.Stderr, log.Options{Prefix: "modfed"}),
	}
	orch, err := buildpipeline.New(opts)
	if err != nil {
		return err
	}
	orch.OnStart()

	scanRes, err := scan.New(bc).Scan(cmd.Context())
	if err != nil {
		return err
	}
	renderDiagnostics(os.Stderr, scanRes.Diagnostics, maxDiagnostics, colored)

	orch.ResetPass()
	for _, usage := range scanRes.Usages {
		orch.RecordUsage(usage.Specifier, usage.File, usage.Kept)
	}

	rows := depRows(store.Pending())
	useTUI := shouldUseTUI(uiModeValue) && !quiet

	var res buildpipeline.ReconcileResult
	if useTUI && len(rows) > 0 {
		res, err = runReconcileWithUI(cmd.Context(), "modfed bundle", rows, opts, force)
	} else {
		res, err = orch.Reconcile(cmd.Context(), force)
	}
	if err != nil {
		var buildErr *engine.BuildError
		if errors.As(err, &buildErr) {
			renderDiagnostics(os.Stderr, buildErr.Diagnostics, maxDiagnostics, colored)
		}
		if showTimings {
			printStageTimings(os.Stdout, res.Timings)
		}
		return err
	}

	if quiet {
		return nil
	}
	if showTimings {
		printStageTimings(os.Stdout, res.Timings)
	}
	if res.Outcome == buildpipeline.OutcomeNoOp {
		_, fprintfErr := fmt.Fprintf(os.Stdout, "up to date: %s\n", res.Reason)
		return fprintfErr
	}

	total := res.Timings.Sum(buildpipeline.StageEvaluate, buildpipeline.StageBundle, buildpipeline.StageCommit, buildpipeline.StagePublish)
	_, fprintfErr := fmt.Fprintf(os.Stdout, "bundled %s in %.1f ms\n", countDeps(len(rows)), toMillis(total))
	if fprintfErr != nil {
		return fprintfErr
	}
	if res.Stats != nil && len(res.Stats.Outputs) > 0 {
		_, fprintfErr = fmt.Fprintf(os.Stdout, "  %d files, %.1f kB\n", len(res.Stats.Outputs), float64(res.Stats.TotalBytes)/1024.0)
		if fprintfErr != nil {
			return fprintfErr
		}
	}
	if bc.Mode == project.ModeProduction {
		_, fprintfErr = fmt.Fprintf(os.Stdout, "published to %s\n", formatPathForOutput(bc.Root, bc.PublishAbs()))
		if fprintfErr != nil {
			return fprintfErr
		}
	}
	return nil
}

func depRows(deps []depset.Specifier) []string {
	if len(deps) == 0 {
		return nil
	}
	rows := make([]string, len(deps))
	for i, dep := range deps {
		rows[i] = dep.Name
	}
	return rows
}

func countDeps(n int) string {
	if n == 1 {
		return "1 dependency"
	}
	return fmt.Sprintf("%d dependencies", n)
}

// renderDiagnostics prints at most max entries from bag.
func renderDiagnostics(w io.Writer, bag *diag.Bag, max int, colored bool) {
	if bag == nil || bag.Len() == 0 {
		return
	}
	bag.Sort()
	bag.Dedup()
	shown := bag
	if max > 0 && bag.Len() > max {
		shown = diag.NewBag(max)
		for _, d := range bag.Items()[:max] {
			shown.Add(d)
		}
	}
	diag.Pretty(w, shown, colored)
	if hidden := bag.Len() - shown.Len(); hidden > 0 {
		fmt.Fprintf(w, "... and %d more\n", hidden)
	}
}

func formatPathForOutput(root, path string) string {
	if root == "" || path == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	if strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

func init() {
	bundleCmd.Flags().String("mode", string(project.ModeDevelopment), "build profile (development, production)")
	bundleCmd.Flags().Bool("force", false, "rebuild even if the dependency set is unchanged")
	bundleCmd.Flags().String("ui", "auto", "user interface (auto|on|off)")
}
