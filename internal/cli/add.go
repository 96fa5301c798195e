package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"kbchat/internal/domain"
)

var addCmd = &cobra.Command{
	Use:   "add <statement>",
	Short: "Ingest one statement into the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		pipe, _, err := buildPipeline(logger)
		if err != nil {
			return err
		}
		outcome, err := pipe.Process(strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Println(outcome.Message)
		if outcome.Kind != domain.OutcomeStored {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
}
