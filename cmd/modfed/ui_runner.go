package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"modfed/internal/buildpipeline"
	"modfed/internal/ui"
)

type reconcileOutcome struct {
	result buildpipeline.ReconcileResult
	err    error
}

// runReconcileWithUI drives one reconcile pass behind the progress TUI. The
// orchestrator is rebuilt with a channel sink over the same store and engine,
// so state recorded earlier in the command is visible to it.
func runReconcileWithUI(ctx context.Context, title string, deps []string, opts buildpipeline.Options, force bool) (buildpipeline.ReconcileResult, error) {
	events := make(chan buildpipeline.Event, 256)
	outcomeCh := make(chan reconcileOutcome, 1)

	go func() {
		optsCopy := opts
		optsCopy.Progress = buildpipeline.ChannelSink{Ch: events}
		orch, err := buildpipeline.New(optsCopy)
		if err != nil {
			outcomeCh <- reconcileOutcome{err: fmt.Errorf("configure pipeline: %w", err)}
			close(events)
			return
		}
		res, err := orch.Reconcile(ctx, force)
		outcomeCh <- reconcileOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, deps, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	// Пайплайн может писать события и после выхода TUI; дочитываем канал.
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
