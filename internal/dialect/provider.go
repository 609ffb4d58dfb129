// Package dialect synthesizes engine specific SQL from model definitions and
// translates values between Go and database representations.
//
// A Provider holds the base behavior shared by all engines. Each engine
// contributes a Dialect record whose non-zero fields override it.
package dialect

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dialectkit/internal/exec"
	"dialectkit/internal/schema"
)

// Template tokens resolved through Provider.Variables.
const (
	VarSystemUTC = "{SYSTEM_UTC}"
	VarMaxText   = "{MAX_TEXT}"
	VarTrue      = "{TRUE}"
	VarFalse     = "{FALSE}"
)

// MaxRows is the row count used by SqlLimit when only an offset is given.
const MaxRows = 1<<31 - 1

// Provider generates SQL for one engine. Configure it before sharing it
// between goroutines; registry lookups are safe for concurrent use.
type Provider struct {
	d Dialect

	mu         sync.RWMutex
	converters map[reflect.Type]registration
	enumConv   registration
	refConv    registration
	valueConv  registration
	rowVerConv registration

	naming      NamingStrategy
	paramString string
	filter      *exec.Filter
	logger      *zap.Logger

	// Variables resolves {TOKEN} fragments in defaults and custom definitions.
	Variables map[string]string
	// ParamNameFilter rewrites sanitized parameter names.
	ParamNameFilter func(string) string
	// CreateTableFieldsStrategy selects and orders the fields of CREATE TABLE.
	CreateTableFieldsStrategy func(m *schema.ModelDefinition) []*schema.FieldDefinition
	// SkipForeignKeys omits FOREIGN KEY constraints from CREATE TABLE.
	SkipForeignKeys bool
}

// Option configures a Provider.
type Option func(*Provider)

func WithLogger(l *zap.Logger) Option { return func(p *Provider) { p.logger = l } }

func WithNamingStrategy(n NamingStrategy) Option { return func(p *Provider) { p.naming = n } }

// WithFilter sets the execution filter used by probes and toggles.
func WithFilter(f *exec.Filter) Option { return func(p *Provider) { p.filter = f } }

func WithParamString(s string) Option { return func(p *Provider) { p.paramString = s } }

// New returns a provider with the base converters, the overrides of d
// applied on top, and then opts.
func New(d Dialect, opts ...Option) *Provider {
	p := &Provider{
		d:           d,
		converters:  make(map[reflect.Type]registration),
		naming:      BaseNamingStrategy{},
		paramString: "@",
		Variables:   make(map[string]string),
	}
	if d.ParamString != "" {
		p.paramString = d.ParamString
	}
	for k, v := range d.Variables {
		p.Variables[k] = v
	}
	p.registerBase()
	if d.Configure != nil {
		d.Configure(p)
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.filter == nil {
		p.filter = exec.NewFilter(&exec.Options{Logger: p.logger})
	}
	return p
}

func (p *Provider) registerBase() {
	p.mustRegister(reflect.TypeFor[string](), NewStringConverter())
	p.mustRegister(reflect.TypeFor[bool](), &BoolConverter{Definition: "BOOLEAN"})
	for t, def := range map[reflect.Type]string{
		reflect.TypeFor[int8]():   "SMALLINT",
		reflect.TypeFor[int16]():  "SMALLINT",
		reflect.TypeFor[int32]():  "INTEGER",
		reflect.TypeFor[int]():    "BIGINT",
		reflect.TypeFor[int64]():  "BIGINT",
		reflect.TypeFor[uint8]():  "SMALLINT",
		reflect.TypeFor[uint16](): "INTEGER",
		reflect.TypeFor[uint32](): "BIGINT",
		reflect.TypeFor[uint]():   "BIGINT",
		reflect.TypeFor[uint64](): "BIGINT",
	} {
		p.mustRegister(t, &IntegerConverter{Definition: def})
	}
	p.mustRegister(reflect.TypeFor[float32](), &FloatConverter{Definition: "REAL"})
	p.mustRegister(reflect.TypeFor[float64](), &FloatConverter{Definition: "DOUBLE"})
	p.mustRegister(reflect.TypeFor[decimal.Decimal](), NewDecimalConverter())
	p.mustRegister(reflect.TypeFor[time.Time](), &TimeConverter{Definition: "TIMESTAMP"})
	p.mustRegister(reflect.TypeFor[time.Duration](), &DurationConverter{Definition: "BIGINT"})
	p.mustRegister(reflect.TypeFor[uuid.UUID](), &GUIDConverter{Definition: "CHAR(36)"})
	p.mustRegister(reflect.TypeFor[[]byte](), &BytesConverter{Definition: "BLOB"})

	p.SetEnumConverter(&EnumConverter{IntDefinition: "INTEGER"})
	p.SetReferenceConverter(&ReferenceTypeConverter{Definition: "TEXT"})
	p.SetValueConverter(&ValueTypeConverter{})
	p.SetRowVersionConverter(&RowVersionConverter{Definition: "BIGINT"})
}

func (p *Provider) mustRegister(t reflect.Type, c Converter) {
	if err := p.RegisterConverter(t, c); err != nil {
		panic(err)
	}
}

// Name is the engine name of the dialect.
func (p *Provider) Name() string {
	if p.d.Name == "" {
		return "base"
	}
	return p.d.Name
}

func (p *Provider) Logger() *zap.Logger {
	if p.logger != nil {
		return p.logger
	}
	return zap.L()
}

func (p *Provider) Filter() *exec.Filter { return p.filter }

func (p *Provider) NamingStrategy() NamingStrategy { return p.naming }

func (p *Provider) SetNamingStrategy(n NamingStrategy) {
	if n == nil {
		n = BaseNamingStrategy{}
	}
	p.naming = n
}

// ParamString is the prefix of parameter markers, "@" unless overridden.
func (p *Provider) ParamString() string { return p.paramString }

func (p *Provider) SetParamString(s string) {
	if s != "" {
		p.paramString = s
	}
}

// AutoIncrementDefinition is appended after PRIMARY KEY for auto-increment fields.
func (p *Provider) AutoIncrementDefinition() string { return p.d.AutoIncrementDefinition }

// SelectIdentitySQL selects the last generated identity, "" when unsupported.
func (p *Provider) SelectIdentitySQL() string { return p.d.SelectIdentitySQL }

func (p *Provider) defaultValueFormat() string {
	if p.d.DefaultValueFormat != "" {
		return p.d.DefaultValueFormat
	}
	return " DEFAULT (%s)"
}

// ShouldQuote reports whether name needs quoting to be a valid identifier.
func (p *Provider) ShouldQuote(name string) bool {
	return strings.ContainsAny(name, " .")
}

func (p *Provider) QuoteIfRequired(name string) string {
	if p.ShouldQuote(name) {
		return p.GetQuotedName(name)
	}
	return name
}

// GetQuotedName quotes an identifier unless it is already quoted.
func (p *Provider) GetQuotedName(name string) string {
	if p.d.QuoteName != nil {
		return p.d.QuoteName(name)
	}
	if strings.HasPrefix(name, `"`) {
		return name
	}
	return `"` + name + `"`
}

// GetQuotedNameInSchema quotes name qualified by schema, each dotted schema
// part separately.
func (p *Provider) GetQuotedNameInSchema(name, schemaName string) string {
	if schemaName == "" {
		return p.GetQuotedName(name)
	}
	parts := strings.Split(schemaName, ".")
	for i, part := range parts {
		parts[i] = p.GetQuotedName(part)
	}
	return strings.Join(parts, ".") + "." + p.GetQuotedName(name)
}

// GetTableName is the unquoted, strategy mapped table name of m.
func (p *Provider) GetTableName(m *schema.ModelDefinition) string {
	return p.TableName(m.ModelName(), m.Schema, true)
}

func (p *Provider) TableName(table, schemaName string, useStrategy bool) string {
	if useStrategy {
		table = p.naming.TableName(table)
		if schemaName != "" {
			schemaName = p.naming.SchemaName(schemaName)
		}
	}
	if schemaName == "" {
		return table
	}
	return schemaName + "." + table
}

func (p *Provider) GetQuotedTableName(m *schema.ModelDefinition) string {
	return p.QuotedTableName(m.ModelName(), m.Schema)
}

func (p *Provider) QuotedTableName(table, schemaName string) string {
	if schemaName != "" {
		schemaName = p.naming.SchemaName(schemaName)
	}
	return p.GetQuotedNameInSchema(p.naming.TableName(table), schemaName)
}

func (p *Provider) GetColumnName(name string) string { return p.naming.ColumnName(name) }

func (p *Provider) GetQuotedColumnName(name string) string {
	return p.GetQuotedName(p.naming.ColumnName(name))
}

// SanitizeFieldName strips characters that cannot appear in a parameter name.
func (p *Provider) SanitizeFieldName(name string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, name)
}

func (p *Provider) paramKey(fieldName string) string {
	name := p.SanitizeFieldName(fieldName)
	if p.ParamNameFilter != nil {
		name = p.ParamNameFilter(name)
	}
	return name
}

// ParamName is the marker of the parameter bound to a column.
func (p *Provider) ParamName(fieldName string) string {
	return p.paramString + p.paramKey(fieldName)
}

// ResolveFragment returns sql unless it is a {TOKEN}, which resolves through
// Variables. An unknown token resolves to "".
func (p *Provider) ResolveFragment(sql string) string {
	if sql == "" || !strings.HasPrefix(sql, "{") {
		return sql
	}
	return p.Variables[sql]
}

// DefaultValue is the resolved DEFAULT expression of f, "" for none.
func (p *Provider) DefaultValue(f *schema.FieldDefinition) string {
	if f.DefaultValue == "" {
		if f.AutoID && underlying(f.ColumnType()) == reflect.TypeFor[uuid.UUID]() {
			return p.d.AutoIDDefault
		}
		return ""
	}
	return p.ResolveFragment(f.DefaultValue)
}

func (p *Provider) fieldTypeDefinition(f *schema.FieldDefinition) (string, bool, error) {
	if f.CustomFieldDefinition != "" {
		def := p.ResolveFragment(f.CustomFieldDefinition)
		return def, def != "", nil
	}
	if f.IsRowVersion {
		p.mu.RLock()
		rv := p.rowVerConv.conv
		p.mu.RUnlock()
		if rv != nil && rv.ColumnDefinition() != "" {
			return rv.ColumnDefinition(), true, nil
		}
	}
	if f.AutoIncrement && p.d.AutoIncrementType != nil {
		if def := p.d.AutoIncrementType(underlying(f.ColumnType())); def != "" {
			return def, true, nil
		}
	}
	def, err := p.ColumnTypeDefinition(f.ColumnType(), f.FieldLength, f.Scale)
	if err != nil {
		return "", false, errors.Wrapf(err, "field %s", f.Name)
	}
	return def, true, nil
}

// ColumnDefinition renders the column of f inside CREATE TABLE. m may be nil
// outside a table context. It returns "" when a custom definition token does
// not resolve.
func (p *Provider) ColumnDefinition(f *schema.FieldDefinition, m *schema.ModelDefinition) (string, error) {
	if p.d.ColumnDefinition != nil {
		return p.d.ColumnDefinition(p, f, m)
	}
	typeDef, ok, err := p.fieldTypeDefinition(f)
	if err != nil || !ok {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(p.GetQuotedColumnName(f.FieldName()))
	sb.WriteString(" ")
	sb.WriteString(typeDef)

	switch {
	case m != nil && m.HasCompositePrimaryKey():
		sb.WriteString(nullability(f))
	case f.IsPrimaryKey:
		sb.WriteString(" PRIMARY KEY")
		if f.AutoIncrement && p.d.AutoIncrementDefinition != "" {
			sb.WriteString(" " + p.d.AutoIncrementDefinition)
		}
	default:
		sb.WriteString(nullability(f))
	}
	if f.IsUniqueConstraint {
		sb.WriteString(" UNIQUE")
	}
	if dv := p.DefaultValue(f); dv != "" {
		fmt.Fprintf(&sb, p.defaultValueFormat(), dv)
	}
	return sb.String(), nil
}

func nullability(f *schema.FieldDefinition) string {
	if f.IsNullable {
		return " NULL"
	}
	return " NOT NULL"
}

func underlying(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
