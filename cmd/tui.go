package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/prism/internal/shared"
	"github.com/desertthunder/prism/internal/ui"
)

// TUI launches the interactive rating browser.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	user := r.userOrAdmin(cmd)
	if user == "" {
		return fmt.Errorf("%w: --user or admin.user", shared.ErrMissingArgument)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	logFile := cmd.String("log-file")
	if logFile == "" {
		logFile = r.config.Log.File
	}
	fileLogger, err := shared.NewFileLogger(logFile)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	catalog, err := r.Catalog()
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, catalog, user, filterFromFlags(cmd))
	p := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return model.Err()
}
