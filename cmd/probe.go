package cmd

import (
	"errors"
	"fmt"

	"dialectkit/internal/dialect"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	probeSchema   string
	probeTable    string
	probeColumn   string
	probeSequence string
)

type probeResult struct {
	what  string
	found bool
	info  string
	err   error
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check whether a schema, table, column or sequence exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := connect(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		p, conn := s.Provider, s.Conn
		schemaName := probeSchema
		if schemaName == "" {
			schemaName = s.Schema
		}

		var results []*probeResult
		g, ctx := errgroup.WithContext(ctx)
		add := func(what string, run func(r *probeResult) error) {
			r := &probeResult{what: what}
			results = append(results, r)
			g.Go(func() error {
				r.err = run(r)
				if errors.Is(r.err, dialect.ErrUnsupported) {
					return nil
				}
				return r.err
			})
		}

		add("schema "+schemaName, func(r *probeResult) (err error) {
			r.found, err = p.DoesSchemaExistAsync(ctx, conn, schemaName).Await(ctx)
			return err
		})
		if probeTable != "" {
			add("table "+probeTable, func(r *probeResult) (err error) {
				r.found, err = p.DoesTableExistAsync(ctx, conn, probeTable, schemaName).Await(ctx)
				return err
			})
		}
		if probeTable != "" && probeColumn != "" {
			add("column "+probeTable+"."+probeColumn, func(r *probeResult) error {
				ct, err := p.GetColumnDataTypeAsync(ctx, conn, probeColumn, probeTable, schemaName).Await(ctx)
				r.found, r.info = ct.Found, ct.DataType
				return err
			})
		}
		if probeSequence != "" {
			add("sequence "+probeSequence, func(r *probeResult) (err error) {
				r.found, err = p.DoesSequenceExistAsync(ctx, conn, probeSequence, schemaName).Await(ctx)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, r := range results {
			switch {
			case r.err != nil:
				color.Yellow("?  %-32s unsupported on %s", r.what, p.Name())
			case r.found:
				color.Green("✓  %-32s %s", r.what, r.info)
			default:
				color.Red("✗  %-32s missing", r.what)
			}
		}
		fmt.Printf("last command: %s\n", conn.LastCommandText())
		return nil
	},
}

func init() {
	RootCmd.AddCommand(probeCmd)

	probeCmd.Flags().StringVar(&probeSchema, "schema", "", "Schema to probe (defaults to the connection schema)")
	probeCmd.Flags().StringVar(&probeTable, "table", "", "Table to probe")
	probeCmd.Flags().StringVar(&probeColumn, "column", "", "Column of --table to probe")
	probeCmd.Flags().StringVar(&probeSequence, "sequence", "", "Sequence to probe")
}
