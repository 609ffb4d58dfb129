package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"dialectkit/internal/dialect"
	"dialectkit/internal/exec"
	"dialectkit/internal/schema"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	ddlSchema string
	ddlApply  bool
	ddlDrop   bool
)

var ddlCmd = &cobra.Command{
	Use:   "ddl <models.yaml>",
	Short: "Render CREATE statements for a model file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		models, err := schema.LoadFile(args[0])
		if err != nil {
			return err
		}

		if !ddlApply {
			cfgDriver := ""
			if cfg, err := GetActiveDBConfig(); err == nil {
				cfgDriver = cfg.Driver
			}
			p, err := newProvider(cfgDriver)
			if err != nil {
				return err
			}
			stmts, err := buildDDL(p, models, ddlSchema, ddlDrop)
			if err != nil {
				return err
			}
			return writeStatements(os.Stdout, stmts)
		}

		ctx := cmd.Context()
		s, err := connect(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		stmts, err := buildDDL(s.Provider, models, ddlSchema, ddlDrop)
		if err != nil {
			return err
		}
		if err := applyStatements(ctx, s.Provider, s.Conn, stmts); err != nil {
			return err
		}
		fmt.Printf("Applied %d statements for %d models to %s\n", len(stmts), len(models), s.Config.Name)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(ddlCmd)

	ddlCmd.Flags().StringVar(&ddlSchema, "schema", "", "Emit CREATE SCHEMA for this schema first")
	ddlCmd.Flags().BoolVar(&ddlApply, "apply", false, "Execute the statements on the active database")
	ddlCmd.Flags().BoolVar(&ddlDrop, "drop", false, "Drop existing tables first (children before parents)")
}

// buildDDL renders the statements creating models, in dependency order:
// sequences, the table, post-create statements and indexes of each model.
func buildDDL(p *dialect.Provider, models []*schema.ModelDefinition, schemaName string, drop bool) ([]string, error) {
	models = schema.SortByDependencies(models)
	var stmts []string
	if schemaName != "" {
		sql, err := p.ToCreateSchemaStatement(schemaName)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, sql)
	}
	if drop {
		for i := len(models) - 1; i >= 0; i-- {
			stmts = append(stmts, p.ToDropTableStatement(models[i]))
		}
	}
	for _, m := range models {
		stmts = append(stmts, p.ToCreateSequenceStatements(m)...)
		sql, err := p.ToCreateTableStatement(m)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, sql)
		if post := p.ToPostCreateTableStatement(m); post != "" {
			stmts = append(stmts, post)
		}
		stmts = append(stmts, p.ToCreateIndexStatements(m)...)
	}
	return stmts, nil
}

func writeStatements(w io.Writer, stmts []string) error {
	for _, sql := range stmts {
		sql = strings.TrimSpace(sql)
		if !strings.HasSuffix(sql, ";") {
			sql += ";"
		}
		if _, err := fmt.Fprintf(w, "%s\n\n", sql); err != nil {
			return err
		}
	}
	return nil
}

func applyStatements(ctx context.Context, p *dialect.Provider, conn *exec.DBConn, stmts []string) error {
	for _, sql := range stmts {
		err := p.Filter().Exec(ctx, conn, func(ctx context.Context, cmd exec.Command) error {
			cmd.SetText(sql)
			_, err := cmd.ExecNonQuery(ctx)
			return err
		})
		if err != nil {
			zap.L().Error("ddl failed", zap.String("sql", conn.LastCommandText()), zap.Error(err))
			return err
		}
	}
	return nil
}
