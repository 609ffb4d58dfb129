package dialect

import (
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"dialectkit/internal/schema"
)

// MySQL returns the override record for MySQL and MariaDB.
func MySQL() Dialect {
	return Dialect{
		Name:                    "mysql",
		AutoIncrementDefinition: "AUTO_INCREMENT",
		SelectIdentitySQL:       "SELECT LAST_INSERT_ID()",
		SqlRandom:               "RAND()",
		Variables: map[string]string{
			VarSystemUTC: "UTC_TIMESTAMP()",
			VarMaxText:   "LONGTEXT",
			VarTrue:      "1",
			VarFalse:     "0",
		},
		Configure: func(p *Provider) {
			p.mustRegister(reflect.TypeFor[string](), &StringConverter{StringLength: 255, TypeName: "VARCHAR", MaxDefinition: "LONGTEXT"})
			p.mustRegister(reflect.TypeFor[bool](), &BoolConverter{Definition: "TINYINT(1)", AsInteger: true})
			p.mustRegister(reflect.TypeFor[int8](), &IntegerConverter{Definition: "TINYINT"})
			p.mustRegister(reflect.TypeFor[uint8](), &IntegerConverter{Definition: "TINYINT UNSIGNED"})
			p.mustRegister(reflect.TypeFor[int32](), &IntegerConverter{Definition: "INT"})
			p.mustRegister(reflect.TypeFor[uint32](), &IntegerConverter{Definition: "INT UNSIGNED"})
			p.mustRegister(reflect.TypeFor[uint64](), &IntegerConverter{Definition: "BIGINT UNSIGNED"})
			p.mustRegister(reflect.TypeFor[float32](), &FloatConverter{Definition: "FLOAT"})
			p.mustRegister(reflect.TypeFor[time.Time](), &TimeConverter{Definition: "DATETIME(6)"})
			p.mustRegister(reflect.TypeFor[uuid.UUID](), &GUIDConverter{Definition: "CHAR(36)"})
			p.mustRegister(reflect.TypeFor[[]byte](), &BytesConverter{Definition: "LONGBLOB"})
			p.SetReferenceConverter(&ReferenceTypeConverter{Definition: "LONGTEXT"})
		},
		Positional:  func(int) string { return "?" },
		QuoteName:   quoteBacktick,
		QuoteString: quoteMySQLString,
		TableNames: func(p *Provider, schemaName string) string {
			return "SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = " +
				mysqlSchema(p, schemaName)
		},
		ForeignKeyChecks: func(_ *Provider, _ []*schema.ModelDefinition, enable bool) []string {
			if enable {
				return []string{"SET FOREIGN_KEY_CHECKS = 1"}
			}
			return []string{"SET FOREIGN_KEY_CHECKS = 0"}
		},
		Probes: Probes{
			Schema: "SELECT COUNT(*) FROM information_schema.SCHEMATA WHERE SCHEMA_NAME = @schemaName",
			Table: "SELECT COUNT(*) FROM information_schema.TABLES WHERE TABLE_NAME = @tableName" +
				" AND TABLE_SCHEMA = COALESCE(NULLIF(@schemaName, ''), DATABASE())",
			Column: "SELECT COUNT(*) FROM information_schema.COLUMNS WHERE TABLE_NAME = @tableName" +
				" AND COLUMN_NAME = @columnName AND TABLE_SCHEMA = COALESCE(NULLIF(@schemaName, ''), DATABASE())",
			ColumnType: "SELECT DATA_TYPE FROM information_schema.COLUMNS WHERE TABLE_NAME = @tableName" +
				" AND COLUMN_NAME = @columnName AND TABLE_SCHEMA = COALESCE(NULLIF(@schemaName, ''), DATABASE())",
		},
		Introspection: Introspection{
			Tables: `SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_TYPE = 'BASE TABLE'`,
			Columns: `SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, CHARACTER_MAXIMUM_LENGTH, IS_NULLABLE, COLUMN_KEY, EXTRA,
    IF(COLUMN_KEY = 'UNI', 'UNIQUE', NULL) AS IS_UNIQUE, COLUMN_COMMENT
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE())
ORDER BY TABLE_NAME, ORDINAL_POSITION`,
			ForeignKeys: `SELECT TABLE_NAME, CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
FROM information_schema.KEY_COLUMN_USAGE
WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND REFERENCED_TABLE_NAME IS NOT NULL`,
			NormalizeType: strings.ToLower,
		},

		CompositePrimaryKey: (*Provider).PrimaryKeyConstraint,
	}
}

func NewMySQL(opts ...Option) *Provider { return New(MySQL(), opts...) }

func mysqlSchema(p *Provider, schemaName string) string {
	if schemaName == "" {
		return "DATABASE()"
	}
	return p.GetQuotedStringValue(p.naming.SchemaName(schemaName))
}

func quoteBacktick(name string) string {
	if strings.HasPrefix(name, "`") {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

var mysqlEscaper = strings.NewReplacer(`\`, `\\`, `'`, `''`)

func quoteMySQLString(s string) string {
	return "'" + mysqlEscaper.Replace(s) + "'"
}
