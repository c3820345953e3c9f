package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"headshotstudio/internal/lora"
	"headshotstudio/internal/store"
)

var modelsFile string

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "LoRA model catalog operations",
}

var modelsSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert or update LoRA models from a YAML file",
	Long: `Insert or update LoRA models. Without --file the MODELS_FILE environment
variable is used, and without that the built-in catalog.

Examples:
  headshots models seed
  headshots models seed --file models.yaml`,
	Args: cobra.NoArgs,
	RunE: runModelsSeed,
}

var modelsTriggerCmd = &cobra.Command{
	Use:   "trigger <lora-id> <word>",
	Short: "Set the trigger word of a LoRA model",
	Args:  cobra.ExactArgs(2),
	RunE:  runModelsTrigger,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsSeedCmd, modelsTriggerCmd)

	modelsSeedCmd.Flags().StringVar(&modelsFile, "file", "", "Seed file (default: MODELS_FILE, then built-in)")
}

func seedModels(ctx context.Context, reg *lora.Registry, path string) (int, error) {
	if strings.TrimSpace(path) == "" {
		return reg.SeedBuiltin(ctx)
	}
	return reg.SeedFile(ctx, path)
}

func runModelsSeed(cmd *cobra.Command, args []string) error {
	conn, err := openDB()
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := migrateSchema(cmd.Context(), conn); err != nil {
		return err
	}

	path := modelsFile
	if path == "" {
		path = cfg.ModelsFile
	}
	n, err := seedModels(cmd.Context(), lora.NewRegistry(store.New(conn), newReplicateClient()), path)
	if err != nil {
		return fmt.Errorf("failed to seed models: %w", err)
	}
	fmt.Printf("Seeded %d model(s)\n", n)
	return nil
}

func runModelsTrigger(cmd *cobra.Command, args []string) error {
	conn, err := openDB()
	if err != nil {
		return err
	}
	defer conn.Close()

	m, err := lora.NewRegistry(store.New(conn), nil).SetTriggerWord(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to set trigger word: %w", err)
	}
	fmt.Printf("%s (%s) trigger word: %s\n", m.Name, m.ReplicateID, m.TriggerWord)
	return nil
}
