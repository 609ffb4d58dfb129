package engine_test

import (
	"bytes"
	"context"
	"database/sql"
	"reflect"
	"strings"
	"testing"
	"time"

	"dialectkit/internal/dialect"
	"dialectkit/internal/engine"
	"dialectkit/internal/exec"
	"dialectkit/internal/schema"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func intPtr(n int) *int { return &n }

func shop() []*schema.ModelDefinition {
	customer := &schema.ModelDefinition{
		Name: "Customer",
		Fields: []*schema.FieldDefinition{
			{Name: "id", FieldType: reflect.TypeFor[int64](), IsPrimaryKey: true, AutoIncrement: true},
			{Name: "email", FieldType: reflect.TypeFor[string](), FieldLength: intPtr(120), IsUniqueConstraint: true},
			{Name: "name", FieldType: reflect.TypeFor[string](), FieldLength: intPtr(100)},
			{Name: "phone", FieldType: reflect.TypeFor[*string](), FieldLength: intPtr(30), IsNullable: true},
		},
	}
	order := &schema.ModelDefinition{
		Name: "Order",
		Fields: []*schema.FieldDefinition{
			{Name: "id", FieldType: reflect.TypeFor[int64](), IsPrimaryKey: true, AutoIncrement: true},
			{
				Name: "customer_id", FieldType: reflect.TypeFor[int64](),
				ForeignKey: &schema.ForeignKeyConstraint{References: customer, RefModel: customer.Name},
			},
			{Name: "placed_at", FieldType: reflect.TypeFor[time.Time]()},
			{Name: "total", FieldType: reflect.TypeFor[decimal.Decimal](), FieldLength: intPtr(10), Scale: intPtr(2)},
		},
	}
	return []*schema.ModelDefinition{customer, order}
}

func openSQLite(t *testing.T, p *dialect.Provider, models []*schema.ModelDefinition) *exec.DBConn {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	for _, m := range models {
		ddl, err := p.ToCreateTableStatement(m)
		require.NoError(t, err)
		_, err = db.Exec(ddl)
		require.NoError(t, err, ddl)
	}
	return exec.NewDBConn(db, p)
}

func count(t *testing.T, conn *exec.DBConn, query string) int {
	t.Helper()
	var n int
	require.NoError(t, conn.DB().QueryRow(query).Scan(&n))
	return n
}

func TestSeed_SQLite(t *testing.T) {
	ctx := context.Background()
	p := dialect.NewSQLite()
	models := shop()
	conn := openSQLite(t, p, models)

	progress := 0
	s := engine.NewSeeder(p, conn, engine.Options{
		Count:      20,
		Seed:       7,
		Workers:    3,
		NullRatio:  0.3,
		OnProgress: func() { progress++ },
	})
	results, err := s.Seed(ctx, schema.SortByDependencies(models))
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		assert.Equal(t, engine.StatusOK, r.Status, r.Model)
		assert.Equal(t, 20, r.Inserted, r.Model)
		assert.Equal(t, 20, r.Actual, r.Model)
		assert.Empty(t, r.Err, r.Model)
	}
	assert.Equal(t, "Customer", results[0].Model)
	assert.Equal(t, 40, progress)

	orphans := count(t, conn, `SELECT COUNT(*) FROM "Order" o LEFT JOIN "Customer" c ON c."id" = o."customer_id" WHERE c."id" IS NULL`)
	assert.Zero(t, orphans, "every order references a seeded customer")
	assert.Equal(t, 20, count(t, conn, `SELECT COUNT(DISTINCT "email") FROM "Customer"`))

	verified := s.Verify(ctx, results)
	for _, r := range verified {
		assert.Equal(t, engine.StatusOK, r.Status, r.Model)
		assert.Equal(t, 20, r.Actual, r.Model)
	}
}

func TestSeed_ExplicitIdentity(t *testing.T) {
	ctx := context.Background()
	p := dialect.NewSQLite()
	models := shop()[:1]
	conn := openSQLite(t, p, models)

	_, err := conn.DB().Exec(`INSERT INTO "Customer" ("id", "email", "name") VALUES (100, 'x@example.com', 'x')`)
	require.NoError(t, err)

	s := engine.NewSeeder(p, conn, engine.Options{Count: 5, Seed: 1, ExplicitIdentity: true})
	results, err := s.Seed(ctx, models)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 5, results[0].Actual)
	assert.Equal(t, 5, count(t, conn, `SELECT COUNT(*) FROM "Customer" WHERE "id" > 100`))
}

func TestSeed_DryRun(t *testing.T) {
	ctx := context.Background()
	p := dialect.NewSQLite()
	models := shop()
	var out bytes.Buffer

	s := engine.NewSeeder(p, nil, engine.Options{Count: 3, Seed: 2, DryRun: true, DisableForeignKeys: true, Out: &out})
	results, err := s.Seed(ctx, models)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, engine.StatusDryRun, r.Status)
		assert.Equal(t, 3, r.Actual)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	var inserts []string
	for _, l := range lines {
		if strings.HasPrefix(l, "INSERT") {
			inserts = append(inserts, l)
		}
	}
	require.Len(t, inserts, 6)
	assert.True(t, strings.HasPrefix(inserts[0], `INSERT INTO "Customer" ("email","name","phone") VALUES ('`), inserts[0])
	assert.Regexp(t, `^INSERT INTO "Order" \("customer_id","placed_at","total"\) VALUES \([123],`, inserts[3])
	assert.NotContains(t, out.String(), "@email", "parameters are merged")
	assert.Contains(t, out.String(), "PRAGMA foreign_keys = OFF;")
	assert.Contains(t, out.String(), "PRAGMA foreign_keys = ON;")
}

func TestSeed_ZeroCount(t *testing.T) {
	p := dialect.NewSQLite()
	models := shop()
	conn := openSQLite(t, p, models)

	results, err := engine.NewSeeder(p, conn, engine.Options{}).Seed(context.Background(), models)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, engine.StatusOK, r.Status)
		assert.Zero(t, r.Actual)
	}
}

func TestClean_SQLite(t *testing.T) {
	ctx := context.Background()
	p := dialect.NewSQLite()
	models := shop()
	conn := openSQLite(t, p, models)

	_, err := engine.NewSeeder(p, conn, engine.Options{Count: 5, Seed: 3}).Seed(ctx, models)
	require.NoError(t, err)

	res, err := engine.Clean(ctx, p, conn, models)
	require.NoError(t, err)
	assert.Equal(t, []string{"Order", "Customer"}, res.Cleaned, "children are cleaned first")
	assert.Empty(t, res.Failed)

	for _, m := range models {
		n, err := engine.CountRows(ctx, p, conn, m)
		require.NoError(t, err)
		assert.Zero(t, n, m.Name)
	}
}

func TestClean_ContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	p := dialect.NewSQLite()
	models := shop()
	conn := openSQLite(t, p, models[:1])

	res, err := engine.Clean(ctx, p, conn, models)
	require.NoError(t, err)
	assert.Equal(t, []string{"Customer"}, res.Cleaned)
	assert.Contains(t, res.Failed, "Order", "the table was never created")
}
