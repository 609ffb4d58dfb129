package cmd

import (
	"fmt"
	"os"
	"time"

	"dialectkit/internal/engine"

	"github.com/fatih/color"
	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	count     int
	clean     bool
	dryRun    bool
	tables    []string
	seedValue int64
	workers   int
	nullRatio float64
	identity  bool
	noFKCheck bool
)

var seedCmd = &cobra.Command{
	Use:     "seed",
	Aliases: []string{"fill"},
	Short:   "Fill the database with random data",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := connect(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Printf("Connected to %s (%s)\n", s.Config.Name, s.Provider.Name())

		targetCount := viper.GetInt("settings.default_count")
		if count > 0 {
			targetCount = count
		}

		zap.L().Info("analyzing schema", zap.String("schema", s.Schema))
		models, err := s.models(ctx, targetTables(tables))
		if err != nil {
			return err
		}

		if clean && !dryRun {
			if err := cleanDatabase(cmd, s, models); err != nil {
				return err
			}
		}

		opts := engine.Options{
			Count:              targetCount,
			Seed:               seedValue,
			Workers:            workers,
			NullRatio:          nullRatio,
			ExplicitIdentity:   identity,
			DisableForeignKeys: noFKCheck,
			DryRun:             dryRun,
			Out:                os.Stdout,
			Logger:             zap.L().Named("seed"),
		}

		var bar *uiprogress.Bar
		if !dryRun {
			uiprogress.Start()
			bar = uiprogress.AddBar(max(targetCount*len(models), 1)).AppendCompleted().PrependElapsed()
			bar.PrependFunc(func(b *uiprogress.Bar) string {
				return "Seeding: "
			})
			opts.OnProgress = func() { bar.Incr() }
		}

		zap.L().Info("starting seed", zap.Int("count", targetCount), zap.Int("tables", len(models)))
		start := time.Now()

		seeder := engine.NewSeeder(s.Provider, s.Conn, opts)
		results, err := seeder.Seed(ctx, models)
		if bar != nil {
			uiprogress.Stop()
		}
		if err != nil {
			return err
		}

		verified := seeder.Verify(ctx, results)
		printReport(verified)
		zap.L().Info("seed done", zap.Duration("elapsed", time.Since(start)))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(seedCmd)

	seedCmd.Flags().IntVar(&count, "count", 0, "Number of records to generate per table (overrides config)")
	seedCmd.Flags().BoolVar(&clean, "clean", false, "Clean tables before filling")
	seedCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the statements instead of writing to DB")
	seedCmd.Flags().StringSliceVarP(&tables, "tables", "t", []string{}, "Specific tables to fill (comma-separated)")
	seedCmd.Flags().Int64Var(&seedValue, "seed", 0, "Random seed for reproducible data (0 is random)")
	seedCmd.Flags().IntVar(&workers, "workers", 0, "Row generation workers (defaults to GOMAXPROCS)")
	seedCmd.Flags().Float64Var(&nullRatio, "null-ratio", 0.1, "Share of NULLs in nullable columns")
	seedCmd.Flags().BoolVar(&identity, "explicit-identity", false, "Insert generated values into identity columns")
	seedCmd.Flags().BoolVar(&noFKCheck, "no-fk-checks", false, "Suspend foreign key checks while seeding")

	viper.SetDefault("settings.default_count", 100)
}

func printReport(results []engine.Result) {
	ok := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)

	fmt.Println("\nSummary Report (Dependency Order):")
	total := 0
	for i, r := range results {
		icon, c := "✓", ok
		if r.Status != engine.StatusOK && r.Status != engine.StatusDryRun {
			icon, c = "!", warn
		}
		c.Printf("[%s] ", icon)
		fmt.Printf("[%02d/%02d] %-20s : %d rows (Target: %d) - %s\n",
			i+1, len(results), r.Model, r.Actual, r.Target, c.Sprint(r.Status))
		if r.Err != "" {
			fmt.Printf("    └ Error: %s\n", r.Err)
		}
		total += r.Actual
	}
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Total Rows: %d\n", total)
}
