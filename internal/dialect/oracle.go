package dialect

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"dialectkit/internal/schema"
)

// Oracle returns the override record for Oracle Database 12c and later.
// Auto-increment keys are fed from a sequence created before the table.
func Oracle() Dialect {
	return Dialect{
		Name:        "oracle",
		ParamString: ":",
		SqlRandom:   "DBMS_RANDOM.VALUE",
		Variables: map[string]string{
			VarSystemUTC: "SYS_EXTRACT_UTC(SYSTIMESTAMP)",
			VarMaxText:   "CLOB",
			VarTrue:      "1",
			VarFalse:     "0",
		},
		Configure: func(p *Provider) {
			p.mustRegister(reflect.TypeFor[string](), &StringConverter{StringLength: 255, TypeName: "VARCHAR2", MaxDefinition: "CLOB"})
			p.mustRegister(reflect.TypeFor[bool](), &BoolConverter{Definition: "NUMBER(1)", AsInteger: true})
			for t, def := range map[reflect.Type]string{
				reflect.TypeFor[int8]():   "NUMBER(3)",
				reflect.TypeFor[uint8]():  "NUMBER(3)",
				reflect.TypeFor[int16]():  "NUMBER(5)",
				reflect.TypeFor[uint16](): "NUMBER(5)",
				reflect.TypeFor[int32]():  "NUMBER(10)",
				reflect.TypeFor[uint32](): "NUMBER(10)",
				reflect.TypeFor[int]():    "NUMBER(19)",
				reflect.TypeFor[int64]():  "NUMBER(19)",
				reflect.TypeFor[uint]():   "NUMBER(20)",
				reflect.TypeFor[uint64](): "NUMBER(20)",
			} {
				p.mustRegister(t, &IntegerConverter{Definition: def})
			}
			p.mustRegister(reflect.TypeFor[float32](), &FloatConverter{Definition: "BINARY_FLOAT"})
			p.mustRegister(reflect.TypeFor[float64](), &FloatConverter{Definition: "BINARY_DOUBLE"})
			p.mustRegister(reflect.TypeFor[time.Time](), &TimeConverter{Definition: "TIMESTAMP"})
			p.mustRegister(reflect.TypeFor[time.Duration](), &DurationConverter{Definition: "NUMBER(19)"})
			p.mustRegister(reflect.TypeFor[uuid.UUID](), &GUIDConverter{Definition: "VARCHAR2(36)"})
			p.mustRegister(reflect.TypeFor[[]byte](), &BytesConverter{Definition: "BLOB", HexFormat: "HEXTORAW('%s')"})
			dec := NewDecimalConverter()
			dec.TypeName = "NUMBER"
			p.mustRegister(reflect.TypeFor[decimal.Decimal](), dec)
			p.SetEnumConverter(&EnumConverter{IntDefinition: "NUMBER(10)"})
			p.SetReferenceConverter(&ReferenceTypeConverter{Definition: "CLOB"})
			p.SetRowVersionConverter(&RowVersionConverter{Definition: "NUMBER(19)"})
		},
		SqlLimit:  offsetFetch,
		SqlBool:   bitLiteral,
		SqlConcat: func(args []string) string { return strings.Join(args, " || ") },
		// Oracle has no ON UPDATE actions and only CASCADE or SET NULL on delete.
		FkOption: func(onUpdate bool, a schema.FkAction) string {
			if onUpdate || (a != schema.FkCascade && a != schema.FkSetNull) {
				return ""
			}
			return a.SQL()
		},
		ColumnDefinition: oracleColumnDefinition,
		AddColumn: func(p *Provider, m *schema.ModelDefinition, f *schema.FieldDefinition) (string, error) {
			col, err := oracleColumnDefinition(p, f, nil)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("ALTER TABLE %s ADD (%s)", p.GetQuotedTableName(m), col), nil
		},
		AlterColumn: func(p *Provider, m *schema.ModelDefinition, f *schema.FieldDefinition) (string, error) {
			col, err := oracleColumnDefinition(p, f, nil)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("ALTER TABLE %s MODIFY (%s)", p.GetQuotedTableName(m), col), nil
		},
		ChangeColumnName: renameColumn,
		CreateSchema: func(p *Provider, schemaName string) (string, error) {
			return "", unsupported(p, "ToCreateSchemaStatement")
		},
		Sequences: createSequences(" START WITH 1 INCREMENT BY 1", true),
		TableNames: func(p *Provider, schemaName string) string {
			if schemaName == "" {
				return "SELECT TABLE_NAME FROM USER_TABLES"
			}
			return "SELECT TABLE_NAME FROM ALL_TABLES WHERE OWNER = " + p.GetQuotedStringValue(p.naming.SchemaName(schemaName))
		},
		ForeignKeyChecks: func(_ *Provider, _ []*schema.ModelDefinition, enable bool) []string {
			from, to := "ENABLED", "DISABLE"
			if enable {
				from, to = "DISABLED", "ENABLE"
			}
			return []string{`BEGIN
  FOR c IN (SELECT TABLE_NAME, CONSTRAINT_NAME FROM USER_CONSTRAINTS WHERE CONSTRAINT_TYPE = 'R' AND STATUS = '` + from + `') LOOP
    EXECUTE IMMEDIATE 'ALTER TABLE "' || c.TABLE_NAME || '" ` + to + ` CONSTRAINT "' || c.CONSTRAINT_NAME || '"';
  END LOOP;
END;`}
		},
		Probes: Probes{
			Schema: "SELECT COUNT(*) FROM ALL_USERS WHERE USERNAME = @schemaName",
			Table:  "SELECT COUNT(*) FROM ALL_TABLES WHERE TABLE_NAME = @tableName AND OWNER = COALESCE(@schemaName, USER)",
			Column: "SELECT COUNT(*) FROM ALL_TAB_COLUMNS WHERE TABLE_NAME = @tableName AND COLUMN_NAME = @columnName" +
				" AND OWNER = COALESCE(@schemaName, USER)",
			ColumnType: "SELECT DATA_TYPE FROM ALL_TAB_COLUMNS WHERE TABLE_NAME = @tableName AND COLUMN_NAME = @columnName" +
				" AND OWNER = COALESCE(@schemaName, USER)",
			Sequence: "SELECT COUNT(*) FROM ALL_SEQUENCES WHERE SEQUENCE_NAME = @sequenceName" +
				" AND SEQUENCE_OWNER = COALESCE(@schemaName, USER)",
		},
		// The catalog queries read the tables of the connected user; the
		// bound schema only satisfies the argument.
		Introspection: Introspection{
			Tables: `SELECT TABLE_NAME FROM USER_TABLES WHERE :1 IS NOT NULL`,
			Columns: `SELECT
    t.TABLE_NAME,
    t.COLUMN_NAME,
    CASE
        WHEN t.DATA_TYPE = 'NUMBER' AND COALESCE(t.DATA_SCALE, 0) > 0 THEN 'DECIMAL'
        WHEN t.DATA_TYPE = 'NUMBER' THEN 'INTEGER'
        ELSE t.DATA_TYPE
    END,
    t.DATA_TYPE || CASE WHEN t.DATA_LENGTH IS NOT NULL THEN '(' || t.DATA_LENGTH || ')' ELSE '' END,
    COALESCE(t.DATA_PRECISION, t.DATA_LENGTH),
    t.NULLABLE,
    CASE WHEN p.CONSTRAINT_NAME IS NOT NULL THEN 'PRI' ELSE '' END,
    CASE WHEN t.IDENTITY_COLUMN = 'YES' THEN 'auto_increment' ELSE '' END,
    CASE WHEN u.CONSTRAINT_NAME IS NOT NULL THEN 'UNIQUE' ELSE '' END,
    c.COMMENTS
FROM USER_TAB_COLUMNS t
LEFT JOIN (
    SELECT cc.TABLE_NAME, cc.COLUMN_NAME, cc.CONSTRAINT_NAME
    FROM USER_CONS_COLUMNS cc
    JOIN USER_CONSTRAINTS uc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
    WHERE uc.CONSTRAINT_TYPE = 'P'
) p ON t.TABLE_NAME = p.TABLE_NAME AND t.COLUMN_NAME = p.COLUMN_NAME
LEFT JOIN (
    SELECT cc.TABLE_NAME, cc.COLUMN_NAME, cc.CONSTRAINT_NAME
    FROM USER_CONS_COLUMNS cc
    JOIN USER_CONSTRAINTS uc ON cc.CONSTRAINT_NAME = uc.CONSTRAINT_NAME
    WHERE uc.CONSTRAINT_TYPE = 'U'
) u ON t.TABLE_NAME = u.TABLE_NAME AND t.COLUMN_NAME = u.COLUMN_NAME
LEFT JOIN USER_COL_COMMENTS c ON t.TABLE_NAME = c.TABLE_NAME AND t.COLUMN_NAME = c.COLUMN_NAME
WHERE :1 IS NOT NULL
ORDER BY t.TABLE_NAME, t.COLUMN_ID`,
			ForeignKeys: `SELECT c.TABLE_NAME, c.CONSTRAINT_NAME, cc.COLUMN_NAME, r.TABLE_NAME, rcc.COLUMN_NAME
FROM USER_CONSTRAINTS c
JOIN USER_CONS_COLUMNS cc ON c.CONSTRAINT_NAME = cc.CONSTRAINT_NAME AND c.OWNER = cc.OWNER
JOIN USER_CONSTRAINTS r ON c.R_CONSTRAINT_NAME = r.CONSTRAINT_NAME AND c.R_OWNER = r.OWNER
JOIN USER_CONS_COLUMNS rcc ON r.CONSTRAINT_NAME = rcc.CONSTRAINT_NAME AND r.OWNER = rcc.OWNER AND cc.POSITION = rcc.POSITION
WHERE c.CONSTRAINT_TYPE = 'R' AND :1 IS NOT NULL`,
			SchemaName: func(input string) string {
				if input == "" {
					return "USER"
				}
				return input
			},
			NormalizeType: normalizeOracleType,
		},

		CompositePrimaryKey: (*Provider).PrimaryKeyConstraint,
	}
}

func NewOracle(opts ...Option) *Provider { return New(Oracle(), opts...) }

// oracleColumnDefinition places DEFAULT before the constraints, as Oracle
// requires, and defaults auto-increment keys to their sequence.
func oracleColumnDefinition(p *Provider, f *schema.FieldDefinition, m *schema.ModelDefinition) (string, error) {
	typeDef, ok, err := p.fieldTypeDefinition(f)
	if err != nil || !ok {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(p.GetQuotedColumnName(f.FieldName()) + " " + typeDef)

	dv := p.DefaultValue(f)
	if f.AutoIncrement {
		if m == nil {
			return "", errors.Wrapf(ErrConfiguration, "%s: auto-increment column outside a table", f.Name)
		}
		dv = p.GetQuotedNameInSchema(sequenceName(m, f, true), p.naming.SchemaName(m.Schema)) + ".NEXTVAL"
	}
	if dv != "" {
		sb.WriteString(" DEFAULT " + dv)
	}

	if f.IsPrimaryKey && (m == nil || !m.HasCompositePrimaryKey()) {
		sb.WriteString(" PRIMARY KEY")
	} else {
		sb.WriteString(nullability(f))
	}
	if f.IsUniqueConstraint {
		sb.WriteString(" UNIQUE")
	}
	return sb.String(), nil
}

func normalizeOracleType(sqlType string) string {
	s := strings.ToLower(sqlType)
	switch {
	case strings.Contains(s, "char") || strings.Contains(s, "clob"):
		return "string"
	case s == "decimal":
		return "decimal"
	case strings.Contains(s, "binary_double") || strings.Contains(s, "binary_float"):
		return "double"
	case strings.Contains(s, "int") || strings.Contains(s, "number"):
		return "bigint"
	case strings.Contains(s, "date") || strings.Contains(s, "time"):
		return "datetime"
	case strings.Contains(s, "blob") || strings.Contains(s, "raw"):
		return "blob"
	}
	return s
}
