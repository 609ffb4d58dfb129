package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"dialectkit/internal/dialect"
	"dialectkit/internal/schema"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	inspectTables []string
	inspectDDL    bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Analyze the live schema of the active database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := connect(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		models, err := s.models(ctx, targetTables(inspectTables))
		if err != nil {
			return err
		}

		fmt.Printf("Connected to %s (%s), schema %s\n", s.Config.Name, s.Provider.Name(), s.Schema)
		if inspectDDL {
			stmts, err := buildDDL(s.Provider, models, "", false)
			if err != nil {
				return err
			}
			return writeStatements(os.Stdout, stmts)
		}
		printModels(os.Stdout, s.Provider, models)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringSliceVarP(&inspectTables, "tables", "t", []string{}, "Specific tables to inspect (comma-separated)")
	inspectCmd.Flags().BoolVar(&inspectDDL, "ddl", false, "Render the analyzed tables as CREATE statements")
}

// printModels lists models in dependency order with their columns.
func printModels(w io.Writer, p *dialect.Provider, models []*schema.ModelDefinition) {
	bold := color.New(color.Bold, color.FgCyan)
	gray := color.New(color.FgHiBlack)
	for i, m := range models {
		bold.Fprintf(w, "[%02d] %s", i+1, p.GetQuotedTableName(m))
		if deps := m.Dependencies(); len(deps) > 0 {
			gray.Fprintf(w, "  (depends on: %s)", strings.Join(deps, ", "))
		}
		fmt.Fprintln(w)
		for _, f := range m.Fields {
			var flags []string
			if m.IsKeyField(f) {
				flags = append(flags, "PK")
			}
			if f.AutoIncrement {
				flags = append(flags, "AUTO")
			}
			if f.IsNullable {
				flags = append(flags, "NULL")
			}
			if f.IsUniqueConstraint || f.IsUniqueIndex {
				flags = append(flags, "UNIQUE")
			}
			if f.ForeignKey != nil {
				ref := f.ForeignKey.RefModel
				if f.ForeignKey.References != nil {
					ref = f.ForeignKey.References.Name
				}
				flags = append(flags, "-> "+ref)
			}
			fmt.Fprintf(w, "     %-24s %-16s %s\n", f.FieldName(), f.ColumnType(), gray.Sprint(strings.Join(flags, " ")))
		}
	}
}
