package dialect_test

import (
	"testing"

	"dialectkit/internal/dialect"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	for name, want := range map[string]string{
		"sqlite":      "sqlite",
		"sqlite3":     "sqlite",
		"Postgres":    "postgres",
		" postgresql": "postgres",
		"mariadb":     "mysql",
		"mssql":       "sqlserver",
		"oracle":      "oracle",
	} {
		p, err := dialect.Get(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, p.Name(), name)
	}
}

func TestGet_Unknown(t *testing.T) {
	_, err := dialect.Get("db2")
	require.ErrorIs(t, err, dialect.ErrConfiguration)
	assert.Contains(t, err.Error(), "supported: mariadb, mssql, mysql")
}

func TestGet_AppliesOptions(t *testing.T) {
	p, err := dialect.Get("postgres", dialect.WithParamString(":"))
	require.NoError(t, err)
	assert.Equal(t, ":", p.ParamString())
	assert.Equal(t, ":id", p.ParamName("id"))
}

func TestNames_Sorted(t *testing.T) {
	names := dialect.Names()
	assert.IsIncreasing(t, names)
	assert.Contains(t, names, "sqlserver")
}
