package dialect_test

import (
	stderrors "errors"
	"testing"

	"dialectkit/internal/dialect"
	"dialectkit/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func autoInc(m *schema.ModelDefinition) *schema.ModelDefinition {
	m.PrimaryKey().AutoIncrement = true
	return m
}

func TestToCreateTableStatement_ForeignKey(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	sql, err := p.ToCreateTableStatement(order(customer()))
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE \"Order\" \n(\n"+
		"  \"id\" BIGINT PRIMARY KEY, \n"+
		"  \"name\" VARCHAR(100) NOT NULL, \n"+
		"  \"customer_id\" BIGINT NULL, \n\n"+
		"  CONSTRAINT \"fk_Order_Customer_customer_id\" FOREIGN KEY (\"customer_id\") REFERENCES \"Customer\" (\"id\") ON DELETE CASCADE \n); \n", sql)
}

func TestToCreateTableStatement_SkipForeignKeys(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	p.SkipForeignKeys = true
	sql, err := p.ToCreateTableStatement(order(customer()))
	require.NoError(t, err)
	assert.NotContains(t, sql, "FOREIGN KEY")
}

func TestToCreateTableStatement_PerEngine(t *testing.T) {
	tests := []struct {
		p    *dialect.Provider
		want string
	}{
		{dialect.NewMySQL(), "CREATE TABLE `t` \n(\n  `id` BIGINT PRIMARY KEY AUTO_INCREMENT, \n  `name` VARCHAR(255) NOT NULL, \n  `email` VARCHAR(255) NULL \n); \n"},
		{dialect.NewPostgres(), "CREATE TABLE \"t\" \n(\n  \"id\" BIGSERIAL PRIMARY KEY, \n  \"name\" VARCHAR(255) NOT NULL, \n  \"email\" VARCHAR(255) NULL \n); \n"},
		{dialect.NewSQLite(), "CREATE TABLE \"t\" \n(\n  \"id\" INTEGER PRIMARY KEY AUTOINCREMENT, \n  \"name\" VARCHAR(255) NOT NULL, \n  \"email\" VARCHAR(255) NULL \n); \n"},
		{dialect.NewSQLServer(), "CREATE TABLE \"t\" \n(\n  \"id\" BIGINT PRIMARY KEY IDENTITY(1,1), \n  \"name\" NVARCHAR(255) NOT NULL, \n  \"email\" NVARCHAR(255) NULL \n); \n"},
		{dialect.NewOracle(), "CREATE TABLE \"t\" \n(\n  \"id\" NUMBER(19) DEFAULT \"SEQ_t_id\".NEXTVAL PRIMARY KEY, \n  \"name\" VARCHAR2(255) NOT NULL, \n  \"email\" VARCHAR2(255) NULL \n); \n"},
	}
	for _, tt := range tests {
		t.Run(tt.p.Name(), func(t *testing.T) {
			sql, err := tt.p.ToCreateTableStatement(autoInc(simple()))
			require.NoError(t, err)
			assert.Equal(t, tt.want, sql)
		})
	}
}

func TestToCreateTableStatement_Constraints(t *testing.T) {
	age := field[int32]("age")
	age.CheckConstraint = "age > 0"
	m := &schema.ModelDefinition{
		Name:                "link",
		Fields:              []*schema.FieldDefinition{field[int64]("a"), field[int64]("b"), age},
		CompositePrimaryKey: []string{"a", "b"},
		UniqueConstraints:   []schema.UniqueConstraint{{FieldNames: []string{"a", "age"}}},
	}
	m.Fields[0].IsPrimaryKey = true

	sql, err := dialect.New(dialect.Dialect{}).ToCreateTableStatement(m)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE \"link\" \n(\n"+
		"  \"a\" BIGINT NOT NULL, \n"+
		"  \"b\" BIGINT NOT NULL, \n"+
		"  \"age\" INTEGER NOT NULL,\n"+
		"CONSTRAINT CHK__link_age CHECK (age > 0),\n"+
		"CONSTRAINT UC_link_a_age UNIQUE (\"a\",\"age\") \n); \n", sql)
	assert.Empty(t, dialect.New(dialect.Dialect{}).CompositePrimaryKey(m), "the base provider renders no key constraint")
}

func TestToCreateTableStatement_CompositePrimaryKey(t *testing.T) {
	m := &schema.ModelDefinition{
		Name:                "link",
		Fields:              []*schema.FieldDefinition{field[int64]("a"), field[int64]("b")},
		CompositePrimaryKey: []string{"a", "b"},
	}
	for _, p := range providers()[1:] {
		sql, err := p.ToCreateTableStatement(m)
		require.NoError(t, err, p.Name())
		assert.Contains(t, sql, "PRIMARY KEY ("+p.GetQuotedColumnName("a")+", "+p.GetQuotedColumnName("b")+")", p.Name())
	}

	m.CompositePrimaryKey = nil
	assert.Empty(t, dialect.NewSQLite().CompositePrimaryKey(m))
}

func TestToCreateTableStatement_SkipsComputedAndCustomSelect(t *testing.T) {
	m := simple()
	total := field[float64]("total")
	total.IsComputed = true
	label := field[string]("label")
	label.CustomSelect = "name || email"
	stored := field[float64]("stored")
	stored.IsComputed, stored.IsPersisted = true, true
	m.Fields = append(m.Fields, total, label, stored)

	sql, err := dialect.New(dialect.Dialect{}).ToCreateTableStatement(m)
	require.NoError(t, err)
	assert.NotContains(t, sql, `"total"`)
	assert.NotContains(t, sql, `"label"`)
	assert.Contains(t, sql, `"stored" DOUBLE NOT NULL`)
}

func TestToCreateTableStatement_Defaults(t *testing.T) {
	m := simple()
	created := field[string]("created")
	created.CustomFieldDefinition = dialect.VarMaxText
	created.DefaultValue = dialect.VarSystemUTC
	m.Fields = append(m.Fields, created)

	sql, err := dialect.NewSQLServer().ToCreateTableStatement(m)
	require.NoError(t, err)
	assert.Contains(t, sql, `"created" NVARCHAR(MAX) NOT NULL DEFAULT (SYSUTCDATETIME())`)

	sql, err = dialect.NewPostgres().ToCreateTableStatement(m)
	require.NoError(t, err)
	assert.Contains(t, sql, `"created" TEXT NOT NULL DEFAULT ((now() at time zone 'utc'))`)
}

func TestToCreateTableStatement_UnresolvedMacroOmitsColumn(t *testing.T) {
	m := simple()
	odd := field[string]("odd")
	odd.CustomFieldDefinition = "{NOT_A_VARIABLE}"
	m.Fields = append(m.Fields, odd)

	sql, err := dialect.New(dialect.Dialect{}).ToCreateTableStatement(m)
	require.NoError(t, err)
	assert.NotContains(t, sql, `"odd"`)
}

func TestToCreateTableStatement_UnresolvedReference(t *testing.T) {
	m := simple()
	m.Fields[2].ForeignKey = &schema.ForeignKeyConstraint{RefModel: "Missing"}
	_, err := dialect.New(dialect.Dialect{}).ToCreateTableStatement(m)
	assert.ErrorIs(t, err, dialect.ErrConfiguration)
}

func TestForeignKeyName(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	c := customer()
	m := order(c)
	f := m.Field("customer_id")
	assert.Equal(t, "fk_Order_Customer_customer_id", p.ForeignKeyName(m, c, f))

	f.ForeignKey.Name = "FK_custom"
	assert.Equal(t, "FK_custom", p.ForeignKeyName(m, c, f))

	f.ForeignKey.Name = "orders_customer"
	assert.Equal(t, "fk_orders_customer", p.ForeignKeyName(m, c, f))

	f.ForeignKey.Name = ""
	m.Schema = "sales"
	assert.Equal(t, "fk_sales_Order_Customer_customer_id", p.ForeignKeyName(m, c, f))
}

func TestSqlServer_ForeignKeyActions(t *testing.T) {
	m := order(customer())
	m.Field("customer_id").ForeignKey.OnDelete = schema.FkRestrict

	sql, err := dialect.NewSQLServer().ToCreateTableStatement(m)
	require.NoError(t, err)
	assert.Contains(t, sql, `REFERENCES "Customer" ("id") ON DELETE NO ACTION`)
}

func TestOracle_ForeignKeyActions(t *testing.T) {
	m := order(customer())
	m.Field("customer_id").ForeignKey.OnUpdate = schema.FkCascade

	sql, err := dialect.NewOracle().ToCreateTableStatement(m)
	require.NoError(t, err)
	assert.Contains(t, sql, `REFERENCES "Customer" ("id") ON DELETE CASCADE`)
	assert.NotContains(t, sql, "ON UPDATE")
}

func TestToAddForeignKeyStatement(t *testing.T) {
	c := customer()
	m := order(c)

	sql, err := dialect.New(dialect.Dialect{}).ToAddForeignKeyStatement(m, "customer_id", c, "id", schema.FkDefault, schema.FkCascade, "")
	require.NoError(t, err)
	assert.Equal(t, `ALTER TABLE "Order" ADD CONSTRAINT "fk_Order_customer_id_id" FOREIGN KEY ("customer_id") REFERENCES "Customer" ("id") ON DELETE CASCADE ON UPDATE RESTRICT;`, sql)

	sql, err = dialect.NewSQLServer().ToAddForeignKeyStatement(m, "customer_id", c, "id", schema.FkDefault, schema.FkDefault, "fk_x")
	require.NoError(t, err)
	assert.Equal(t, `ALTER TABLE "Order" ADD CONSTRAINT "fk_x" FOREIGN KEY ("customer_id") REFERENCES "Customer" ("id") ON DELETE NO ACTION ON UPDATE NO ACTION;`, sql)

	sql, err = dialect.NewOracle().ToAddForeignKeyStatement(m, "customer_id", c, "id", schema.FkCascade, schema.FkSetNull, "fk_x")
	require.NoError(t, err)
	assert.Equal(t, `ALTER TABLE "Order" ADD CONSTRAINT "fk_x" FOREIGN KEY ("customer_id") REFERENCES "Customer" ("id") ON DELETE SET NULL;`, sql)

	_, err = dialect.New(dialect.Dialect{}).ToAddForeignKeyStatement(m, "nope", c, "id", schema.FkDefault, schema.FkDefault, "")
	assert.Error(t, err)
}

func TestToCreateIndexStatements(t *testing.T) {
	m := simple()
	m.Field("name").IsIndexed = true
	email := m.Field("email")
	email.IsIndexed, email.IsUniqueIndex, email.IsClustered = true, true, true
	m.CompositeIndexes = []schema.CompositeIndex{{FieldNames: []string{"name", "email DESC"}}}

	assert.Equal(t, []string{
		"CREATE INDEX idx_t_name ON \"t\" (\"name\"); \n",
		"CREATE UNIQUE INDEX uidx_t_email ON \"t\" (\"email\"); \n",
		"CREATE INDEX idx_t_name_email ON \"t\" (\"name\", \"email\" DESC); \n",
	}, dialect.New(dialect.Dialect{}).ToCreateIndexStatements(m))

	stmts := dialect.NewSQLServer().ToCreateIndexStatements(m)
	require.Len(t, stmts, 3)
	assert.Equal(t, "CREATE UNIQUE CLUSTERED INDEX uidx_t_email ON \"t\" (\"email\"); \n", stmts[1])
}

func TestToCreateIndexStatement(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	sql, err := p.ToCreateIndexStatement(simple(), "name", "", false)
	require.NoError(t, err)
	assert.Equal(t, `CREATE INDEX "idx_t_name" ON "t" ("name");`, sql)

	sql, err = p.ToCreateIndexStatement(simple(), "email", "", true)
	require.NoError(t, err)
	assert.Equal(t, `CREATE UNIQUE INDEX "uidx_t_email" ON "t" ("email");`, sql)
}

func TestIndexName(t *testing.T) {
	assert.Equal(t, "idx_order_name", dialect.IndexName(false, "Order", "Name"))
	assert.Equal(t, "uidx_order_name", dialect.IndexName(true, "Order", "Name"))
}

func TestToCreateSequenceStatements(t *testing.T) {
	m := autoInc(simple())
	assert.Equal(t, []string{`CREATE SEQUENCE "SEQ_t_id" START WITH 1 INCREMENT BY 1`}, dialect.NewOracle().ToCreateSequenceStatements(m))
	assert.Empty(t, dialect.NewPostgres().ToCreateSequenceStatements(m))
	assert.Empty(t, dialect.New(dialect.Dialect{}).ToCreateSequenceStatements(m))

	m.Field("name").Sequence = "name_seq"
	m.Schema = "app"
	assert.Equal(t, []string{`CREATE SEQUENCE "app"."name_seq" START 1`}, dialect.NewPostgres().ToCreateSequenceStatements(m))
}

func TestColumnDDL(t *testing.T) {
	m := simple()
	email := m.Field("email")

	tests := []struct {
		name string
		p    *dialect.Provider
		fn   func(p *dialect.Provider) (string, error)
		want string
	}{
		{"base add", dialect.New(dialect.Dialect{}), func(p *dialect.Provider) (string, error) { return p.ToAddColumnStatement(m, email) },
			`ALTER TABLE "t" ADD COLUMN "email" VARCHAR(255) NULL;`},
		{"base alter", dialect.New(dialect.Dialect{}), func(p *dialect.Provider) (string, error) { return p.ToAlterColumnStatement(m, email) },
			`ALTER TABLE "t" MODIFY COLUMN "email" VARCHAR(255) NULL;`},
		{"base rename", dialect.New(dialect.Dialect{}), func(p *dialect.Provider) (string, error) { return p.ToChangeColumnNameStatement(m, email, "mail") },
			`ALTER TABLE "t" CHANGE COLUMN "mail" "email" VARCHAR(255) NULL;`},
		{"postgres alter", dialect.NewPostgres(), func(p *dialect.Provider) (string, error) { return p.ToAlterColumnStatement(m, email) },
			`ALTER TABLE "t" ALTER COLUMN "email" TYPE VARCHAR(255);`},
		{"postgres rename", dialect.NewPostgres(), func(p *dialect.Provider) (string, error) { return p.ToChangeColumnNameStatement(m, email, "mail") },
			`ALTER TABLE "t" RENAME COLUMN "mail" TO "email";`},
		{"sqlserver add", dialect.NewSQLServer(), func(p *dialect.Provider) (string, error) { return p.ToAddColumnStatement(m, email) },
			`ALTER TABLE "t" ADD "email" NVARCHAR(255) NULL;`},
		{"sqlserver alter", dialect.NewSQLServer(), func(p *dialect.Provider) (string, error) { return p.ToAlterColumnStatement(m, email) },
			`ALTER TABLE "t" ALTER COLUMN "email" NVARCHAR(255) NULL;`},
		{"sqlserver rename", dialect.NewSQLServer(), func(p *dialect.Provider) (string, error) { return p.ToChangeColumnNameStatement(m, email, "mail") },
			`EXEC sp_rename N't.mail', N'email', 'COLUMN';`},
		{"oracle add", dialect.NewOracle(), func(p *dialect.Provider) (string, error) { return p.ToAddColumnStatement(m, email) },
			`ALTER TABLE "t" ADD ("email" VARCHAR2(255) NULL)`},
		{"oracle alter", dialect.NewOracle(), func(p *dialect.Provider) (string, error) { return p.ToAlterColumnStatement(m, email) },
			`ALTER TABLE "t" MODIFY ("email" VARCHAR2(255) NULL)`},
		{"mysql add", dialect.NewMySQL(), func(p *dialect.Provider) (string, error) { return p.ToAddColumnStatement(m, email) },
			"ALTER TABLE `t` ADD COLUMN `email` VARCHAR(255) NULL;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fn(tt.p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, `ALTER TABLE "t" DROP COLUMN "email";`, dialect.New(dialect.Dialect{}).ToDropColumnStatement(m, "email"))
}

func TestUnsupportedOperations(t *testing.T) {
	m := simple()
	checks := map[string]error{}

	_, checks["sqlite alter"] = dialect.NewSQLite().ToAlterColumnStatement(m, m.Field("email"))
	_, checks["sqlite schema"] = dialect.NewSQLite().ToCreateSchemaStatement("x")
	_, checks["oracle schema"] = dialect.NewOracle().ToCreateSchemaStatement("x")
	_, checks["base table names"] = dialect.New(dialect.Dialect{}).ToTableNamesStatement("")
	_, checks["base identity"] = dialect.New(dialect.Dialect{}).LastInsertIDSuffix()

	for name, err := range checks {
		require.Error(t, err, name)
		assert.ErrorIs(t, err, dialect.ErrUnsupported, name)
		assert.True(t, stderrors.Is(err, stderrors.ErrUnsupported), name)
	}
}

func TestSchemaQualifiedNames(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	m := simple()
	m.Schema = "sales"
	assert.Equal(t, `"sales"."t"`, p.GetQuotedTableName(m))
	assert.Equal(t, "sales.t", p.GetTableName(m))
	assert.Equal(t, `"db"."sales"."t"`, p.GetQuotedNameInSchema("t", "db.sales"))
	assert.Equal(t, `DROP TABLE "sales"."t"`, p.ToDropTableStatement(m))

	sql, err := p.ToCreateSchemaStatement("sales")
	require.NoError(t, err)
	assert.Equal(t, `CREATE SCHEMA "sales"`, sql)
}

func TestGetQuotedName_Idempotent(t *testing.T) {
	for _, p := range providers() {
		once := p.GetQuotedName("order line")
		assert.Equal(t, once, p.GetQuotedName(once), p.Name())
	}
	assert.Equal(t, "`a``b`", dialect.NewMySQL().GetQuotedName("a`b"))

	p := dialect.New(dialect.Dialect{})
	assert.Equal(t, "plain", p.QuoteIfRequired("plain"))
	assert.Equal(t, `"two words"`, p.QuoteIfRequired("two words"))
}

func TestToTruncateStatement(t *testing.T) {
	m := simple()
	assert.Equal(t, `TRUNCATE TABLE "t"`, dialect.New(dialect.Dialect{}).ToTruncateStatement(m))
	assert.Equal(t, `TRUNCATE TABLE "t" CASCADE`, dialect.NewPostgres().ToTruncateStatement(m))
	assert.Equal(t, `DELETE FROM "t"`, dialect.NewSQLite().ToTruncateStatement(m))
	assert.Equal(t, `DELETE FROM "t"`, dialect.NewSQLServer().ToTruncateStatement(m))
}

func TestToTableNamesStatement(t *testing.T) {
	sql, err := dialect.NewPostgres().ToTableNamesStatement("")
	require.NoError(t, err)
	assert.Equal(t, "SELECT table_name FROM information_schema.tables WHERE table_type = 'BASE TABLE' AND table_schema = 'public'", sql)

	sql, err = dialect.NewMySQL().ToTableNamesStatement("")
	require.NoError(t, err)
	assert.Contains(t, sql, "TABLE_SCHEMA = DATABASE()")

	sql, err = dialect.NewOracle().ToTableNamesStatement("HR")
	require.NoError(t, err)
	assert.Equal(t, "SELECT TABLE_NAME FROM ALL_TABLES WHERE OWNER = 'HR'", sql)
}

func TestIdentityAndForeignKeyToggles(t *testing.T) {
	m := autoInc(simple())
	ss := dialect.NewSQLServer()
	assert.Equal(t, []string{`SET IDENTITY_INSERT "t" ON`}, ss.ToIdentityInsertStatements(m, true))
	assert.Equal(t, []string{`SET IDENTITY_INSERT "t" OFF`}, ss.ToIdentityInsertStatements(m, false))
	assert.Empty(t, ss.ToIdentityInsertStatements(simple(), true))
	assert.Equal(t, []string{`ALTER TABLE "t" NOCHECK CONSTRAINT all`}, ss.ToForeignKeyChecksStatements([]*schema.ModelDefinition{m}, false))

	assert.Equal(t, []string{"SET FOREIGN_KEY_CHECKS = 0"}, dialect.NewMySQL().ToForeignKeyChecksStatements(nil, false))
	assert.Equal(t, []string{"PRAGMA foreign_keys = ON"}, dialect.NewSQLite().ToForeignKeyChecksStatements(nil, true))
	assert.Empty(t, dialect.New(dialect.Dialect{}).ToForeignKeyChecksStatements(nil, true))
}

func TestLastInsertIDSuffix(t *testing.T) {
	s, err := dialect.NewPostgres().LastInsertIDSuffix()
	require.NoError(t, err)
	assert.Equal(t, "; SELECT LASTVAL()", s)
}
