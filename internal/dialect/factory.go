package dialect

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var dialects = map[string]func() Dialect{
	"sqlite":     SQLite,
	"sqlite3":    SQLite,
	"postgres":   Postgres,
	"postgresql": Postgres,
	"mysql":      MySQL,
	"mariadb":    MySQL,
	"sqlserver":  SQLServer,
	"mssql":      SQLServer,
	"oracle":     Oracle,
}

// Get returns a provider for the named engine or driver.
func Get(name string, opts ...Option) (*Provider, error) {
	d, ok := dialects[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, errors.Wrapf(ErrConfiguration, "unknown dialect %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return New(d(), opts...), nil
}

// Names lists the accepted engine names, sorted.
func Names() []string {
	names := make([]string, 0, len(dialects))
	for n := range dialects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
