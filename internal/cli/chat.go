package cli

import (
	"fmt"
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"kbchat/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive knowledge base chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		// The TUI owns the terminal; pipeline logs are discarded here.
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		pipe, store, err := buildPipeline(logger)
		if err != nil {
			return err
		}
		if n, err := store.Count(); err == nil {
			fmt.Printf("Total docs: %d\n", n)
		}
		m := tui.New(pipe)
		if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
