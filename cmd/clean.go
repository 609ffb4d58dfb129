package cmd

import (
	"fmt"

	"dialectkit/internal/engine"
	"dialectkit/internal/schema"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cleanTables []string

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean all data from tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := connect(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Printf("Connected to %s (%s)\n", s.Config.Name, s.Provider.Name())

		models, err := s.models(ctx, targetTables(cleanTables))
		if err != nil {
			return err
		}
		return cleanDatabase(cmd, s, models)
	},
}

func init() {
	RootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().StringSliceVarP(&cleanTables, "tables", "t", []string{}, "Specific tables to clean (comma-separated)")
}

func cleanDatabase(cmd *cobra.Command, s *session, models []*schema.ModelDefinition) error {
	res, err := engine.Clean(cmd.Context(), s.Provider, s.Conn, models)
	if err != nil {
		return err
	}
	for name, err := range res.Failed {
		color.Yellow("! %s not cleaned: %v", name, err)
	}
	zap.L().Info("database cleaned", zap.Int("tables", len(res.Cleaned)), zap.Int("failed", len(res.Failed)))
	color.Green("Cleaned %d/%d tables", len(res.Cleaned), len(models))
	return nil
}
