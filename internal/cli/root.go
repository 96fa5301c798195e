// Package cli wires the configured components into the pipeline and
// exposes the kbchat commands.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"kbchat/internal/config"
	"kbchat/internal/knowledge"
	"kbchat/internal/llm"
	"kbchat/internal/pipeline"
	"kbchat/internal/prompt"
	"kbchat/internal/vectorstore"
)

var (
	cfgFile string
	cfg     *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "kbchat",
	Short: "Chat with a semantic knowledge base",
	Long: `kbchat ingests free-text facts into a vector-indexed knowledge base and
answers questions from them. Statements are classified, validated,
checked for semantic duplicates and stored in canonical form; questions
are answered from the closest stored statements.

Example usage:
  kbchat chat                          # interactive chat
  kbchat add "The sky is blue."        # ingest one statement
  kbchat ask "What color is the sky?"  # ask one question
  kbchat stats                         # show document count`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, _, err = config.LoadDefault()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml, then ~/.config/kbchat/config.yaml)")
}

// buildPipeline assembles gateway, storage, knowledge store and
// pipeline from the loaded config. The collection is ensured here so
// dimension mismatches abort before the first turn.
func buildPipeline(logger *slog.Logger) (*pipeline.Pipeline, *knowledge.Store, error) {
	gateway, err := llm.New(cfg.Models)
	if err != nil {
		return nil, nil, err
	}
	storage, err := vectorstore.New(cfg.Vectorstore)
	if err != nil {
		return nil, nil, err
	}
	store := knowledge.NewStore(gateway, storage, cfg.Vectorstore.VectorSize, logger)
	if err := store.Init(); err != nil {
		return nil, nil, err
	}
	prompts, err := prompt.Load(cfg.PromptsPath)
	if err != nil {
		return nil, nil, err
	}
	pipe := pipeline.New(store, gateway, prompts, pipeline.Config{
		DocNum:               cfg.Search.DocNum,
		VectorstoreThreshold: cfg.Search.VectorstoreThreshold,
		LLMThreshold:         cfg.Search.LLMThreshold,
	}, logger)
	return pipe, store, nil
}
