package dialect

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"dialectkit/internal/schema"
)

// Postgres returns the override record for PostgreSQL.
func Postgres() Dialect {
	return Dialect{
		Name:              "postgres",
		SelectIdentitySQL: "SELECT LASTVAL()",
		AutoIDDefault:     "gen_random_uuid()",
		SqlRandom:         "RANDOM()",
		DefaultSchema:     "public",
		Variables: map[string]string{
			VarSystemUTC: "(now() at time zone 'utc')",
			VarMaxText:   "TEXT",
			VarTrue:      "true",
			VarFalse:     "false",
		},
		Configure: func(p *Provider) {
			p.mustRegister(reflect.TypeFor[bool](), &BoolConverter{Definition: "BOOLEAN"})
			p.mustRegister(reflect.TypeFor[float64](), &FloatConverter{Definition: "DOUBLE PRECISION"})
			p.mustRegister(reflect.TypeFor[uint64](), &IntegerConverter{Definition: "NUMERIC(20)"})
			p.mustRegister(reflect.TypeFor[time.Time](), &TimeConverter{Definition: "TIMESTAMP"})
			p.mustRegister(reflect.TypeFor[uuid.UUID](), &GUIDConverter{Definition: "UUID"})
			p.mustRegister(reflect.TypeFor[[]byte](), &BytesConverter{Definition: "BYTEA", HexFormat: `'\x%s'`})
			p.SetReferenceConverter(&ReferenceTypeConverter{Definition: "JSONB"})
		},
		Positional: func(n int) string { return "$" + strconv.Itoa(n) },
		AutoIncrementType: func(t reflect.Type) string {
			switch t.Kind() {
			case reflect.Int64, reflect.Int, reflect.Uint, reflect.Uint32, reflect.Uint64:
				return "BIGSERIAL"
			}
			return "SERIAL"
		},
		AlterColumn: func(p *Provider, m *schema.ModelDefinition, f *schema.FieldDefinition) (string, error) {
			typeDef, ok, err := p.fieldTypeDefinition(f)
			if err != nil || !ok {
				return "", err
			}
			return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s;",
				p.GetQuotedTableName(m), p.GetQuotedColumnName(f.FieldName()), typeDef), nil
		},
		ChangeColumnName: renameColumn,
		Sequences:        createSequences(" START 1", false),
		TableNames: func(p *Provider, schemaName string) string {
			return "SELECT table_name FROM information_schema.tables WHERE table_type = 'BASE TABLE' AND table_schema = " +
				p.GetQuotedStringValue(p.probeSchema(schemaName))
		},
		Truncate: func(p *Provider, m *schema.ModelDefinition) string {
			return "TRUNCATE TABLE " + p.GetQuotedTableName(m) + " CASCADE"
		},
		// replica skips FK triggers for the session; it requires superuser.
		ForeignKeyChecks: func(_ *Provider, _ []*schema.ModelDefinition, enable bool) []string {
			if enable {
				return []string{"SET session_replication_role = 'origin'"}
			}
			return []string{"SET session_replication_role = 'replica'"}
		},
		Probes: Probes{
			Schema: "SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = @schemaName",
			Table:  "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = @schemaName AND table_name = @tableName",
			Column: "SELECT COUNT(*) FROM information_schema.columns WHERE table_schema = @schemaName" +
				" AND table_name = @tableName AND column_name = @columnName",
			ColumnType: "SELECT data_type FROM information_schema.columns WHERE table_schema = @schemaName" +
				" AND table_name = @tableName AND column_name = @columnName",
			Sequence: "SELECT COUNT(*) FROM information_schema.sequences WHERE sequence_schema = @schemaName" +
				" AND sequence_name = @sequenceName",
		},
		Introspection: Introspection{
			Tables: `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE'`,
			Columns: `SELECT
    c.table_name,
    c.column_name,
    c.udt_name,
    c.data_type,
    c.character_maximum_length,
    c.is_nullable,
    (SELECT 'PRI' FROM information_schema.table_constraints tc
     JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name
     WHERE tc.constraint_type = 'PRIMARY KEY'
     AND kcu.table_schema = c.table_schema AND kcu.table_name = c.table_name AND kcu.column_name = c.column_name LIMIT 1) AS column_key,
    c.column_default,
    (SELECT 'UNIQUE' FROM information_schema.table_constraints tc
     JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name
     WHERE tc.constraint_type = 'UNIQUE'
     AND kcu.table_schema = c.table_schema AND kcu.table_name = c.table_name AND kcu.column_name = c.column_name LIMIT 1) AS is_unique,
    NULL AS comment
FROM information_schema.columns c
WHERE c.table_schema = $1
ORDER BY c.table_name, c.ordinal_position`,
			ForeignKeys: `SELECT kcu.table_name, kcu.constraint_name, kcu.column_name, ccu.table_name, ccu.column_name
FROM information_schema.key_column_usage kcu
JOIN information_schema.constraint_column_usage ccu ON kcu.constraint_name = ccu.constraint_name
JOIN information_schema.table_constraints tc ON kcu.constraint_name = tc.constraint_name
WHERE kcu.table_schema = $1 AND tc.constraint_type = 'FOREIGN KEY'`,
			NormalizeType: normalizePostgresType,
		},

		CompositePrimaryKey: (*Provider).PrimaryKeyConstraint,
	}
}

func NewPostgres(opts ...Option) *Provider { return New(Postgres(), opts...) }

func normalizePostgresType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "int4", "int2":
		return "int"
	case "int8":
		return "bigint"
	case "float4":
		return "real"
	case "float8":
		return "double"
	case "bpchar":
		return "char"
	}
	return t
}

func renameColumn(p *Provider, m *schema.ModelDefinition, f *schema.FieldDefinition, oldName string) (string, error) {
	return fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s;", p.GetQuotedTableName(m),
		p.GetQuotedColumnName(oldName), p.GetQuotedColumnName(f.FieldName())), nil
}

// createSequences renders CREATE SEQUENCE for every field naming a sequence,
// and with autoInc for every auto-increment field.
func createSequences(options string, autoInc bool) func(p *Provider, m *schema.ModelDefinition) []string {
	return func(p *Provider, m *schema.ModelDefinition) []string {
		var stmts []string
		for _, f := range m.Fields {
			if name := sequenceName(m, f, autoInc); name != "" {
				stmts = append(stmts, "CREATE SEQUENCE "+p.GetQuotedNameInSchema(name, p.naming.SchemaName(m.Schema))+options)
			}
		}
		return stmts
	}
}

func sequenceName(m *schema.ModelDefinition, f *schema.FieldDefinition, autoInc bool) string {
	if f.Sequence != "" || !autoInc || !f.AutoIncrement {
		return f.Sequence
	}
	return "SEQ_" + safeVarName(m.ModelName()) + "_" + safeVarName(f.FieldName())
}
