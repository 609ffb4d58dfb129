package cmd

import (
	"context"
	"database/sql"
	"strings"

	"dialectkit/internal/dialect"
	"dialectkit/internal/exec"
	"dialectkit/internal/schema"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type DBConfig struct {
	Name   string `mapstructure:"name"`
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Schema string `mapstructure:"schema"`
	Active bool   `mapstructure:"active"`
}

// GetActiveDBConfig returns the currently active database configuration.
// Without a databases list the --dsn and --driver flags are used.
func GetActiveDBConfig() (*DBConfig, error) {
	var configs []DBConfig
	if err := viper.UnmarshalKey("databases", &configs); err != nil {
		return nil, errors.Wrap(err, "parse databases config")
	}

	if len(configs) == 0 {
		cfg := &DBConfig{
			Name:   "command line",
			Driver: viper.GetString("database.driver"),
			DSN:    viper.GetString("database.dsn"),
			Schema: viper.GetString("database.schema"),
			Active: true,
		}
		if cfg.DSN == "" || cfg.Driver == "" {
			return nil, errors.New("no database configured: add a databases entry or pass --dsn and --driver")
		}
		return cfg, nil
	}

	var active *DBConfig
	count := 0
	for i := range configs {
		if configs[i].Active {
			active = &configs[i]
			count++
		}
	}
	if count == 0 {
		return nil, errors.New("no active database found in config (set active: true)")
	}
	if count > 1 {
		return nil, errors.New("multiple active databases found (only one can be active)")
	}
	return active, nil
}

// driverName maps a dialect name to the database/sql driver registered for it.
func driverName(name string) string {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return "sqlite"
	case "postgres", "postgresql":
		return "postgres"
	case "mysql", "mariadb":
		return "mysql"
	case "sqlserver", "mssql":
		return "sqlserver"
	}
	return strings.ToLower(name)
}

// newProvider builds the dialect provider from the dialect.* and exec.* keys.
// name is used when dialect.name is unset.
func newProvider(name string) (*dialect.Provider, error) {
	if n := viper.GetString("dialect.name"); n != "" {
		name = n
	}
	if name == "" {
		return nil, errors.Wrap(dialect.ErrConfiguration, "no dialect selected (use --dialect or dialect.name)")
	}
	naming, err := dialect.NamingStrategyByName(viper.GetString("dialect.naming"), viper.GetString("dialect.table_prefix"))
	if err != nil {
		return nil, err
	}

	log := zap.L().Named("dialect")
	opts := []dialect.Option{
		dialect.WithLogger(log),
		dialect.WithNamingStrategy(naming),
		dialect.WithFilter(exec.NewFilter(&exec.Options{
			CommandTimeout: viper.GetDuration("exec.command_timeout"),
			Logger:         zap.L().Named("exec"),
			ExceptionHook: func(cmd exec.Command, err error) {
				log.Debug("command failed", zap.String("sql", cmd.Text()), zap.Error(err))
			},
		})),
	}
	if ps := viper.GetString("dialect.param_string"); ps != "" {
		opts = append(opts, dialect.WithParamString(ps))
	}
	p, err := dialect.Get(name, opts...)
	if err != nil {
		return nil, err
	}
	p.SkipForeignKeys = viper.GetBool("dialect.skip_foreign_keys")
	return p, nil
}

// session is an open connection to the active database.
type session struct {
	Config   *DBConfig
	DB       *sql.DB
	Conn     *exec.DBConn
	Provider *dialect.Provider
	Schema   string
}

func connect(ctx context.Context) (*session, error) {
	cfg, err := GetActiveDBConfig()
	if err != nil {
		return nil, err
	}
	p, err := newProvider(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connect to db")
	}
	if p.Name() == "sqlite" {
		// One connection keeps in-memory databases and transactions coherent.
		db.SetMaxOpenConns(1)
	}

	s := &session{Config: cfg, DB: db, Conn: exec.NewDBConn(db, p), Provider: p, Schema: cfg.Schema}
	if d := viper.GetDuration("exec.command_timeout"); d > 0 {
		s.Conn.SetCommandTimeout(d)
	}
	if s.Schema == "" && p.Name() == "mysql" {
		if err := db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&s.Schema); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "get database name")
		}
		if s.Schema == "" {
			db.Close()
			return nil, errors.New("no database selected in DSN")
		}
	}
	s.Schema = p.SchemaName(s.Schema)

	zap.L().Info("connected", zap.String("database", cfg.Name), zap.String("dialect", p.Name()),
		zap.String("schema", s.Schema))
	return s, nil
}

func (s *session) Close() error { return s.DB.Close() }

// models analyzes the live schema and keeps the requested tables, or every
// table when none are named. The result stays in dependency order.
func (s *session) models(ctx context.Context, tables []string) ([]*schema.ModelDefinition, error) {
	if !s.Provider.CanIntrospect() {
		return nil, errors.Wrapf(dialect.ErrUnsupported, "%s cannot analyze a live schema", s.Provider.Name())
	}
	all, err := schema.Analyze(ctx, s.DB, s.Provider, s.Schema)
	if err != nil {
		return nil, err
	}
	return selectModels(all, tables)
}

func selectModels(all []*schema.ModelDefinition, tables []string) ([]*schema.ModelDefinition, error) {
	if len(tables) == 0 {
		return all, nil
	}
	requested := make(map[string]bool, len(tables))
	for _, t := range tables {
		requested[strings.ToLower(t)] = true
	}
	var out []*schema.ModelDefinition
	for _, m := range all {
		if requested[strings.ToLower(m.Name)] {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, errors.Errorf("no matching tables found for inputs: %v", tables)
	}
	return out, nil
}

// targetTables prefers the --tables flag over settings.tables.
func targetTables(flag []string) []string {
	if len(flag) > 0 {
		return flag
	}
	return viper.GetStringSlice("settings.tables")
}
