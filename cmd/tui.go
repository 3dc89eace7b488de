package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plmigrate/internal/shared"
	"github.com/desertthunder/plmigrate/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for playlist migration.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/plmigrate-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	controller, err := r.wire()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewModel(runCtx, controller)
	p := tea.NewProgram(model, tea.WithContext(ctx))
	_, err = p.Run()

	// Quitting interrupts any running migration; it resumes on the next run.
	cancel()
	controller.Wait()

	if err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
