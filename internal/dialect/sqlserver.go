package dialect

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"dialectkit/internal/schema"
)

// SQLServer returns the override record for Microsoft SQL Server.
func SQLServer() Dialect {
	return Dialect{
		Name:                    "sqlserver",
		AutoIncrementDefinition: "IDENTITY(1,1)",
		SelectIdentitySQL:       "SELECT SCOPE_IDENTITY()",
		AutoIDDefault:           "NEWID()",
		SqlRandom:               "NEWID()",
		ClusteredIndexes:        true,
		DefaultSchema:           "dbo",
		Variables: map[string]string{
			VarSystemUTC: "SYSUTCDATETIME()",
			VarMaxText:   "NVARCHAR(MAX)",
			VarTrue:      "1",
			VarFalse:     "0",
		},
		Configure: func(p *Provider) {
			p.mustRegister(reflect.TypeFor[string](), &StringConverter{StringLength: 255, TypeName: "NVARCHAR", MaxDefinition: "NVARCHAR(MAX)"})
			p.mustRegister(reflect.TypeFor[bool](), &BoolConverter{Definition: "BIT", AsInteger: true})
			p.mustRegister(reflect.TypeFor[uint8](), &IntegerConverter{Definition: "TINYINT"})
			p.mustRegister(reflect.TypeFor[int32](), &IntegerConverter{Definition: "INT"})
			p.mustRegister(reflect.TypeFor[uint64](), &IntegerConverter{Definition: "DECIMAL(20,0)"})
			p.mustRegister(reflect.TypeFor[float64](), &FloatConverter{Definition: "FLOAT"})
			p.mustRegister(reflect.TypeFor[time.Time](), &TimeConverter{Definition: "DATETIME2"})
			p.mustRegister(reflect.TypeFor[uuid.UUID](), &GUIDConverter{Definition: "UNIQUEIDENTIFIER"})
			p.mustRegister(reflect.TypeFor[[]byte](), &BytesConverter{Definition: "VARBINARY(MAX)", HexFormat: "0x%s"})
			p.SetReferenceConverter(&ReferenceTypeConverter{Definition: "NVARCHAR(MAX)"})
			p.SetRowVersionConverter(&RowVersionConverter{Definition: "ROWVERSION", Binary: true})
		},
		QuoteString: func(s string) string { return "N" + quoteLiteral(s) },
		SqlLimit:    offsetFetch,
		SqlBool:     bitLiteral,
		FkOption: func(_ bool, a schema.FkAction) string {
			if a == schema.FkDefault || a == schema.FkRestrict {
				return "NO ACTION"
			}
			return a.SQL()
		},
		AddColumn: func(p *Provider, m *schema.ModelDefinition, f *schema.FieldDefinition) (string, error) {
			col, err := p.ColumnDefinition(f, nil)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("ALTER TABLE %s ADD %s;", p.GetQuotedTableName(m), col), nil
		},
		AlterColumn: func(p *Provider, m *schema.ModelDefinition, f *schema.FieldDefinition) (string, error) {
			typeDef, ok, err := p.fieldTypeDefinition(f)
			if err != nil || !ok {
				return "", err
			}
			return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s%s;", p.GetQuotedTableName(m),
				p.GetQuotedColumnName(f.FieldName()), typeDef, nullability(f)), nil
		},
		ChangeColumnName: func(p *Provider, m *schema.ModelDefinition, f *schema.FieldDefinition, oldName string) (string, error) {
			object := p.GetTableName(m) + "." + p.GetColumnName(oldName)
			return fmt.Sprintf("EXEC sp_rename %s, %s, 'COLUMN';",
				p.GetQuotedStringValue(object), p.GetQuotedStringValue(p.GetColumnName(f.FieldName()))), nil
		},
		Sequences: createSequences(" AS BIGINT START WITH 1 INCREMENT BY 1", false),
		TableNames: func(p *Provider, schemaName string) string {
			return "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = " +
				p.GetQuotedStringValue(p.probeSchema(schemaName))
		},
		// TRUNCATE is rejected on tables referenced by a foreign key.
		Truncate: func(p *Provider, m *schema.ModelDefinition) string {
			return "DELETE FROM " + p.GetQuotedTableName(m)
		},
		IdentityInsert: func(p *Provider, m *schema.ModelDefinition, on bool) []string {
			if !hasAutoIncrement(m) {
				return nil
			}
			state := "OFF"
			if on {
				state = "ON"
			}
			return []string{"SET IDENTITY_INSERT " + p.GetQuotedTableName(m) + " " + state}
		},
		ForeignKeyChecks: func(p *Provider, models []*schema.ModelDefinition, enable bool) []string {
			stmts := make([]string, 0, len(models))
			for _, m := range models {
				if enable {
					stmts = append(stmts, "ALTER TABLE "+p.GetQuotedTableName(m)+" WITH CHECK CHECK CONSTRAINT all")
				} else {
					stmts = append(stmts, "ALTER TABLE "+p.GetQuotedTableName(m)+" NOCHECK CONSTRAINT all")
				}
			}
			return stmts
		},
		Probes: Probes{
			Schema: "SELECT COUNT(*) FROM sys.schemas WHERE name = @schemaName",
			Table:  "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @schemaName AND TABLE_NAME = @tableName",
			Column: "SELECT COUNT(*) FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = @schemaName" +
				" AND TABLE_NAME = @tableName AND COLUMN_NAME = @columnName",
			ColumnType: "SELECT DATA_TYPE FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = @schemaName" +
				" AND TABLE_NAME = @tableName AND COLUMN_NAME = @columnName",
			Sequence: "SELECT COUNT(*) FROM sys.sequences s JOIN sys.schemas c ON s.schema_id = c.schema_id" +
				" WHERE c.name = @schemaName AND s.name = @sequenceName",
		},
		Introspection: Introspection{
			Tables: `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'`,
			Columns: `SELECT
    c.TABLE_NAME,
    c.COLUMN_NAME,
    c.DATA_TYPE,
    c.DATA_TYPE,
    c.CHARACTER_MAXIMUM_LENGTH,
    c.IS_NULLABLE,
    CASE WHEN pk.COLUMN_NAME IS NOT NULL THEN 'PRIMARY' ELSE '' END AS COLUMN_KEY,
    CASE
        WHEN idxc.column_id IS NOT NULL THEN 'identity'
        WHEN COLUMNPROPERTY(OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME), c.COLUMN_NAME, 'IsIdentity') = 1 THEN 'identity'
        ELSE c.COLUMN_DEFAULT
    END AS COLUMN_DEFAULT,
    CASE WHEN uq.COLUMN_NAME IS NOT NULL OR ui.COLUMN_NAME IS NOT NULL THEN 'UNIQUE' ELSE '' END AS IS_UNIQUE,
    CAST(ep.value AS NVARCHAR(MAX)) AS COMMENT
FROM INFORMATION_SCHEMA.COLUMNS c
LEFT JOIN (
    SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
    FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
    JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
    WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY' AND tc.TABLE_SCHEMA = @p1
) pk ON c.TABLE_NAME = pk.TABLE_NAME AND c.COLUMN_NAME = pk.COLUMN_NAME
LEFT JOIN (
    SELECT kcu.TABLE_NAME, kcu.COLUMN_NAME
    FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
    JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
    WHERE tc.CONSTRAINT_TYPE = 'UNIQUE' AND tc.TABLE_SCHEMA = @p1
) uq ON c.TABLE_NAME = uq.TABLE_NAME AND c.COLUMN_NAME = uq.COLUMN_NAME
LEFT JOIN (
    SELECT t.name AS TABLE_NAME, col.name AS COLUMN_NAME
    FROM sys.indexes idx
    JOIN sys.index_columns ic ON idx.object_id = ic.object_id AND idx.index_id = ic.index_id
    JOIN sys.columns col ON ic.object_id = col.object_id AND ic.column_id = col.column_id
    JOIN sys.tables t ON idx.object_id = t.object_id
    JOIN sys.schemas s ON t.schema_id = s.schema_id
    WHERE idx.is_unique = 1 AND idx.is_primary_key = 0 AND s.name = @p1
) ui ON c.TABLE_NAME = ui.TABLE_NAME AND c.COLUMN_NAME = ui.COLUMN_NAME
LEFT JOIN sys.identity_columns idxc
    ON idxc.object_id = OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME) AND idxc.name = c.COLUMN_NAME
LEFT JOIN sys.extended_properties ep
    ON ep.major_id = OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME)
    AND ep.minor_id = c.ORDINAL_POSITION
    AND ep.name = 'MS_Description'
WHERE c.TABLE_SCHEMA = @p1
ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`,
			ForeignKeys: `SELECT KCU1.TABLE_NAME, KCU1.CONSTRAINT_NAME, KCU1.COLUMN_NAME, KCU2.TABLE_NAME AS REF_TABLE, KCU2.COLUMN_NAME AS REF_COLUMN
FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS RC
JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU1 ON RC.CONSTRAINT_NAME = KCU1.CONSTRAINT_NAME
JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE KCU2 ON RC.UNIQUE_CONSTRAINT_NAME = KCU2.CONSTRAINT_NAME
WHERE KCU1.TABLE_SCHEMA = @p1`,
			NormalizeType: normalizeSQLServerType,
		},

		CompositePrimaryKey: (*Provider).PrimaryKeyConstraint,
	}
}

func NewSQLServer(opts ...Option) *Provider { return New(SQLServer(), opts...) }

func normalizeSQLServerType(sqlType string) string {
	t := strings.ToLower(sqlType)
	switch t {
	case "nvarchar", "nchar", "text", "ntext":
		return "varchar"
	case "bit":
		return "boolean"
	case "decimal", "numeric", "money", "smallmoney":
		return "decimal"
	case "float":
		return "double"
	case "datetime", "datetime2", "smalldatetime", "date", "datetimeoffset":
		return "datetime"
	case "image", "binary", "varbinary", "timestamp", "rowversion":
		return "blob"
	}
	return t
}

func bitLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func hasAutoIncrement(m *schema.ModelDefinition) bool {
	for _, f := range m.Fields {
		if f.AutoIncrement {
			return true
		}
	}
	return false
}
