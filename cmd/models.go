package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koopa0/llamagate/internal/config"
	"github.com/koopa0/llamagate/internal/model"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models this gateway can serve",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runModels()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	for _, id := range model.All() {
		marker := " "
		if id.Name() == cfg.DefaultModel {
			marker = "*"
		}
		fmt.Printf("%s %-26s ctx=%-5d %s\n", marker, id.Name(), id.MaxSeqLen(), id.Description())
	}
	return nil
}
