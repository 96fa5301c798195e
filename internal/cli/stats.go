package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the number of stored documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		_, store, err := buildPipeline(logger)
		if err != nil {
			return err
		}
		n, err := store.Count()
		if err != nil {
			return err
		}
		fmt.Printf("Collection %q: %d documents\n", cfg.Vectorstore.CollectionName, n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
