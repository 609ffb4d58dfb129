package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	verbose bool
)

var RootCmd = &cobra.Command{
	Use:   "dialectkit",
	Short: "Portable SQL generation for sqlite, postgres, mysql, sqlserver and oracle",
	Long: `
     _ _       _           _   _    _ _
  __| (_) __ _| | ___  ___| |_| | _(_) |_
 / _' | |/ _' | |/ _ \/ __| __| |/ / | __|
| (_| | | (_| | |  __/ (__| |_|   <| | |_
 \__,_|_|\__,_|_|\___|\___|\__|_|\_\_|\__|

Generates DDL from model files, inspects live schemas and seeds them with fake rows.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogger(verbose)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		zap.L().Sync()
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./dialectkit.yaml)")
	RootCmd.PersistentFlags().String("dsn", "", "Database Source Name (DSN)")
	RootCmd.PersistentFlags().String("driver", "", "Database driver / dialect (sqlite, postgres, mysql, sqlserver, oracle)")
	RootCmd.PersistentFlags().String("dialect", "", "Dialect used to render SQL (defaults to the driver)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose (development) logging")

	viper.BindPFlag("database.dsn", RootCmd.PersistentFlags().Lookup("dsn"))
	viper.BindPFlag("database.driver", RootCmd.PersistentFlags().Lookup("driver"))
	viper.BindPFlag("dialect.name", RootCmd.PersistentFlags().Lookup("dialect"))

	viper.SetDefault("dialect.naming", "base")
	viper.SetDefault("exec.command_timeout", "30s")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if ex, err := os.Executable(); err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}
		viper.AddConfigPath(".")

		viper.SetConfigName("dialectkit")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

// setupLogger installs the process logger; library packages default to zap.L().
func setupLogger(verbose bool) error {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return errors.Wrap(err, "build logger")
	}
	zap.ReplaceGlobals(l)
	return nil
}
