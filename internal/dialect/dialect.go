package dialect

import (
	"reflect"

	"dialectkit/internal/schema"
)

// Dialect is the override record of one engine. Zero fields keep the
// provider's base behavior.
type Dialect struct {
	Name string

	ParamString             string
	AutoIncrementDefinition string
	// DefaultValueFormat wraps a resolved default; one %s verb.
	DefaultValueFormat string
	SelectIdentitySQL  string
	// AutoIDDefault is the column default of client generated GUID keys.
	AutoIDDefault    string
	SqlRandom        string
	ClusteredIndexes bool
	Variables        map[string]string

	// Configure registers engine specific converters.
	Configure func(p *Provider)

	// Positional returns the marker of the n-th (1-based) bound parameter.
	// Nil leaves named markers in place.
	Positional func(n int) string

	QuoteName   func(name string) string
	QuoteString func(s string) string
	SqlLimit    func(offset, rows *int) string
	SqlBool     func(b bool) string
	SqlConcat   func(args []string) string
	// FkOption renders the action of an ON DELETE or ON UPDATE clause; ""
	// omits the clause.
	FkOption func(onUpdate bool, a schema.FkAction) string

	// AutoIncrementType replaces the column type of auto-increment fields.
	AutoIncrementType func(t reflect.Type) string
	ColumnDefinition  func(p *Provider, f *schema.FieldDefinition, m *schema.ModelDefinition) (string, error)

	AddColumn        func(p *Provider, m *schema.ModelDefinition, f *schema.FieldDefinition) (string, error)
	AlterColumn      func(p *Provider, m *schema.ModelDefinition, f *schema.FieldDefinition) (string, error)
	ChangeColumnName func(p *Provider, m *schema.ModelDefinition, f *schema.FieldDefinition, oldName string) (string, error)
	CreateSchema     func(p *Provider, schemaName string) (string, error)
	Sequences        func(p *Provider, m *schema.ModelDefinition) []string
	PostCreateTable  func(p *Provider, m *schema.ModelDefinition) string
	TableNames       func(p *Provider, schemaName string) string
	Truncate         func(p *Provider, m *schema.ModelDefinition) string
	// CompositePrimaryKey renders the key constraint of composite key
	// models; nil renders none.
	CompositePrimaryKey func(p *Provider, m *schema.ModelDefinition) string

	IdentityInsert   func(p *Provider, m *schema.ModelDefinition, on bool) []string
	ForeignKeyChecks func(p *Provider, models []*schema.ModelDefinition, enable bool) []string

	// DefaultSchema is probed when the caller names none.
	DefaultSchema string
	Probes        Probes

	Introspection Introspection
}

// Probes holds existence queries. Each returns a count, or the data type for
// ColumnType, and may reference @schemaName, @tableName, @columnName and
// @sequenceName. An empty query is unsupported.
type Probes struct {
	Schema     string
	Table      string
	Column     string
	ColumnType string
	Sequence   string
}

// Introspection holds the catalog queries used to analyze a live schema.
// Each takes the resolved schema name as its only positional argument.
type Introspection struct {
	SchemaName    func(input string) string
	Tables        string
	Columns       string
	ForeignKeys   string
	NormalizeType func(sqlType string) string
}
