package tui

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the full-screen viewer and blocks until the operator quits.
// Log lines go to logFile while the UI owns the terminal.
func Run(ctx context.Context, opts Options, logFile string) error {
	f, err := tea.LogToFile(logFile, "dupescope")
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if opts.Logger != nil {
		opts.Logger.SetOutput(f)
		defer opts.Logger.SetOutput(os.Stderr)
	}

	program := tea.NewProgram(
		NewModel(ctx, opts),
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run viewer: %w", err)
	}
	return nil
}
