package dialect

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"dialectkit/internal/schema"
)

// SQLite returns the override record for SQLite 3.25 and later.
func SQLite() Dialect {
	return Dialect{
		Name:                    "sqlite",
		AutoIncrementDefinition: "AUTOINCREMENT",
		SelectIdentitySQL:       "SELECT last_insert_rowid()",
		SqlRandom:               "random()",
		DefaultSchema:           "main",
		Variables: map[string]string{
			VarSystemUTC: "CURRENT_TIMESTAMP",
			VarMaxText:   "TEXT",
			VarTrue:      "1",
			VarFalse:     "0",
		},
		// AUTOINCREMENT is only accepted on an INTEGER PRIMARY KEY.
		Configure: func(p *Provider) {
			for _, t := range []reflect.Type{
				reflect.TypeFor[int8](), reflect.TypeFor[int16](), reflect.TypeFor[int32](),
				reflect.TypeFor[int](), reflect.TypeFor[int64](),
				reflect.TypeFor[uint8](), reflect.TypeFor[uint16](), reflect.TypeFor[uint32](),
				reflect.TypeFor[uint](), reflect.TypeFor[uint64](),
			} {
				p.mustRegister(t, &IntegerConverter{Definition: "INTEGER"})
			}
			p.mustRegister(reflect.TypeFor[bool](), &BoolConverter{Definition: "INTEGER", AsInteger: true})
			p.mustRegister(reflect.TypeFor[float32](), &FloatConverter{Definition: "REAL"})
			p.mustRegister(reflect.TypeFor[float64](), &FloatConverter{Definition: "REAL"})
			p.mustRegister(reflect.TypeFor[time.Time](), &TimeConverter{Definition: "DATETIME"})
			p.SetRowVersionConverter(&RowVersionConverter{Definition: "INTEGER"})
		},
		SqlBool:   bitLiteral,
		SqlConcat: func(args []string) string { return strings.Join(args, " || ") },
		AlterColumn: func(p *Provider, _ *schema.ModelDefinition, _ *schema.FieldDefinition) (string, error) {
			return "", unsupported(p, "ToAlterColumnStatement")
		},
		ChangeColumnName: renameColumn,
		CreateSchema: func(p *Provider, schemaName string) (string, error) {
			return "", unsupported(p, "ToCreateSchemaStatement")
		},
		TableNames: func(p *Provider, schemaName string) string {
			return fmt.Sprintf("SELECT name FROM %s.sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%%'",
				p.GetQuotedName(p.probeSchema(schemaName)))
		},
		Truncate: func(p *Provider, m *schema.ModelDefinition) string {
			return "DELETE FROM " + p.GetQuotedTableName(m)
		},
		// The pragma is a no-op inside a transaction.
		ForeignKeyChecks: func(_ *Provider, _ []*schema.ModelDefinition, enable bool) []string {
			if enable {
				return []string{"PRAGMA foreign_keys = ON"}
			}
			return []string{"PRAGMA foreign_keys = OFF"}
		},
		Probes: Probes{
			Schema:     "SELECT COUNT(*) FROM pragma_database_list WHERE name = @schemaName",
			Table:      "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = @tableName",
			Column:     "SELECT COUNT(*) FROM pragma_table_info(@tableName) WHERE name = @columnName",
			ColumnType: "SELECT type FROM pragma_table_info(@tableName) WHERE name = @columnName",
		},
		Introspection: Introspection{
			Tables: `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND ? IS NOT NULL ORDER BY name`,
			Columns: `SELECT
    m.name,
    c.name,
    c.type,
    c.type,
    NULL,
    CASE WHEN c."notnull" = 0 AND c.pk = 0 THEN 'YES' ELSE 'NO' END,
    CASE WHEN c.pk > 0 THEN 'PRI' ELSE '' END,
    CASE WHEN c.pk > 0 AND upper(c.type) = 'INTEGER' AND upper(m.sql) LIKE '%AUTOINCREMENT%' THEN 'auto_increment' ELSE '' END,
    NULL,
    NULL
FROM sqlite_master m
JOIN pragma_table_info(m.name) c
WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND ? IS NOT NULL
ORDER BY m.name, c.cid`,
			ForeignKeys: `SELECT m.name, 'fk_' || m.name || '_' || f.id, f."from", f."table", f."to"
FROM sqlite_master m
JOIN pragma_foreign_key_list(m.name) f
WHERE m.type = 'table' AND ? IS NOT NULL`,
			SchemaName:    func(string) string { return "main" },
			NormalizeType: strings.ToLower,
		},

		CompositePrimaryKey: (*Provider).PrimaryKeyConstraint,
	}
}

func NewSQLite(opts ...Option) *Provider { return New(SQLite(), opts...) }
