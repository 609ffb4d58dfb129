package schema

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// FkAction is the referential action of a foreign key.
type FkAction int

const (
	// FkDefault emits no ON DELETE/ON UPDATE clause in CREATE TABLE and
	// renders as RESTRICT when an explicit action is required.
	FkDefault FkAction = iota
	FkCascade
	FkNoAction
	FkSetNull
	FkSetDefault
	FkRestrict
)

var fkActionNames = map[string]FkAction{
	"":            FkDefault,
	"cascade":     FkCascade,
	"no action":   FkNoAction,
	"noaction":    FkNoAction,
	"set null":    FkSetNull,
	"setnull":     FkSetNull,
	"set default": FkSetDefault,
	"setdefault":  FkSetDefault,
	"restrict":    FkRestrict,
}

// ParseFkAction parses the textual form used in model files ("cascade", "set null", ...).
func ParseFkAction(s string) (FkAction, error) {
	a, ok := fkActionNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return FkDefault, errors.Errorf("unknown foreign key action %q", s)
	}
	return a, nil
}

// SQL returns the SQL keyword for the action. FkDefault renders as RESTRICT.
func (a FkAction) SQL() string {
	switch a {
	case FkCascade:
		return "CASCADE"
	case FkNoAction:
		return "NO ACTION"
	case FkSetNull:
		return "SET NULL"
	case FkSetDefault:
		return "SET DEFAULT"
	default:
		return "RESTRICT"
	}
}

// ForeignKeyConstraint references the primary key of another model.
type ForeignKeyConstraint struct {
	// References is resolved by the loader; RefModel keeps the declared name.
	References *ModelDefinition
	RefModel   string
	Name       string
	OnDelete   FkAction
	OnUpdate   FkAction
}

// FieldDefinition describes one column.
type FieldDefinition struct {
	Name        string // logical (property) name
	Alias       string // physical column name override
	FieldType   reflect.Type
	TreatAsType reflect.Type
	Comment     string

	IsNullable  bool
	FieldLength *int
	Scale       *int

	IsPrimaryKey  bool
	AutoIncrement bool
	AutoID        bool
	IsRowVersion  bool
	IsComputed    bool
	IsPersisted   bool

	IsUniqueConstraint bool
	IsIndexed          bool
	IsUniqueIndex      bool
	IsClustered        bool
	IsNonClustered     bool
	IndexName          string

	DefaultValue          string
	CustomFieldDefinition string
	CustomSelect          string
	CustomInsert          string
	CustomUpdate          string
	CheckConstraint       string
	Sequence              string

	IgnoreOnInsert bool
	IgnoreOnUpdate bool
	ReturnOnInsert bool

	ForeignKey *ForeignKeyConstraint
}

// FieldName is the column name before any naming strategy is applied.
func (f *FieldDefinition) FieldName() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// ColumnType is the type driving converter resolution.
func (f *FieldDefinition) ColumnType() reflect.Type {
	if f.TreatAsType != nil {
		return f.TreatAsType
	}
	return f.FieldType
}

// ShouldSkipInsert reports whether the store assigns or derives the column.
func (f *FieldDefinition) ShouldSkipInsert() bool {
	return f.IgnoreOnInsert || f.AutoIncrement || f.IsRowVersion || f.CustomSelect != "" ||
		(f.IsComputed && !f.IsPersisted)
}

// ShouldSkipUpdate reports whether the column can never appear in an UPDATE.
func (f *FieldDefinition) ShouldSkipUpdate() bool {
	return f.IgnoreOnUpdate || f.CustomSelect != "" || f.IsComputed
}

// ShouldSkipDelete reports whether the column can never be a DELETE criterion.
func (f *FieldDefinition) ShouldSkipDelete() bool {
	return f.CustomSelect != "" || (f.IsComputed && !f.IsPersisted)
}

// CompositeIndex is an index spanning several fields. Field names may carry a
// trailing ASC/DESC.
type CompositeIndex struct {
	Name       string
	FieldNames []string
	Unique     bool
}

// UniqueConstraint is a table level UNIQUE constraint.
type UniqueConstraint struct {
	Name       string
	FieldNames []string
}

// ModelDefinition describes one table. It is built once and read-only afterwards.
type ModelDefinition struct {
	Name   string
	Alias  string
	Schema string

	Fields              []*FieldDefinition
	CompositePrimaryKey []string
	CompositeIndexes    []CompositeIndex
	UniqueConstraints   []UniqueConstraint
}

// ModelName is the table name before any naming strategy is applied.
func (m *ModelDefinition) ModelName() string {
	if m.Alias != "" {
		return m.Alias
	}
	return m.Name
}

// IsInSchema reports whether the model declares a schema.
func (m *ModelDefinition) IsInSchema() bool {
	return m.Schema != ""
}

// HasCompositePrimaryKey reports whether the key constraint spans several fields.
func (m *ModelDefinition) HasCompositePrimaryKey() bool {
	return len(m.CompositePrimaryKey) > 0
}

// PrimaryKey returns the first primary key field or nil.
func (m *ModelDefinition) PrimaryKey() *FieldDefinition {
	for _, f := range m.Fields {
		if f.IsPrimaryKey {
			return f
		}
	}
	return nil
}

// IsKeyField reports whether f is the primary key or part of the composite key.
func (m *ModelDefinition) IsKeyField(f *FieldDefinition) bool {
	if f.IsPrimaryKey {
		return true
	}
	for _, name := range m.CompositePrimaryKey {
		if strings.EqualFold(name, f.Name) || strings.EqualFold(name, f.FieldName()) {
			return true
		}
	}
	return false
}

// RowVersion returns the row-version field or nil.
func (m *ModelDefinition) RowVersion() *FieldDefinition {
	for _, f := range m.Fields {
		if f.IsRowVersion {
			return f
		}
	}
	return nil
}

// Field finds a field by logical or column name, case-insensitively.
func (m *ModelDefinition) Field(name string) *FieldDefinition {
	for _, f := range m.Fields {
		if strings.EqualFold(f.Name, name) {
			return f
		}
	}
	for _, f := range m.Fields {
		if strings.EqualFold(f.FieldName(), name) {
			return f
		}
	}
	return nil
}

// AssertField is Field failing when the name is unknown.
func (m *ModelDefinition) AssertField(name string) (*FieldDefinition, error) {
	if f := m.Field(name); f != nil {
		return f, nil
	}
	return nil, errors.Errorf("%s: no field definition named %q", m.Name, name)
}

// OrderedFields returns the fields whose (mapped) names appear in names, in
// declaration order. A nil mapper compares raw names.
func (m *ModelDefinition) OrderedFields(names []string, mapper func(string) string) []*FieldDefinition {
	if mapper == nil {
		mapper = func(s string) string { return s }
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = true
	}
	var fields []*FieldDefinition
	for _, f := range m.Fields {
		if want[strings.ToLower(f.Name)] || want[strings.ToLower(mapper(f.FieldName()))] {
			fields = append(fields, f)
		}
	}
	return fields
}

// Dependencies lists the names of the models this model references.
func (m *ModelDefinition) Dependencies() []string {
	var deps []string
	seen := make(map[string]bool)
	for _, f := range m.Fields {
		if f.ForeignKey == nil {
			continue
		}
		ref := f.ForeignKey.RefModel
		if f.ForeignKey.References != nil {
			ref = f.ForeignKey.References.Name
		}
		if ref == "" || ref == m.Name || seen[ref] {
			continue
		}
		seen[ref] = true
		deps = append(deps, ref)
	}
	return deps
}

// Validate checks the structural invariants of the model.
func (m *ModelDefinition) Validate() error {
	if m.Name == "" {
		return errors.New("model name is required")
	}
	autoInc, rowVersion := 0, 0
	for _, f := range m.Fields {
		if f.FieldType == nil {
			return errors.Errorf("%s.%s: field type is required", m.Name, f.Name)
		}
		if f.AutoIncrement {
			autoInc++
		}
		if f.IsRowVersion {
			rowVersion++
		}
	}
	if autoInc > 1 {
		return errors.Errorf("%s: at most one auto-increment field is allowed", m.Name)
	}
	if rowVersion > 1 {
		return errors.Errorf("%s: at most one row-version field is allowed", m.Name)
	}
	if !m.HasCompositePrimaryKey() {
		return nil
	}
	if len(m.CompositePrimaryKey) < 2 {
		return errors.Errorf("%s: a composite primary key requires at least 2 fields", m.Name)
	}
	for _, name := range m.CompositePrimaryKey {
		f := m.Field(name)
		if f == nil {
			return errors.Errorf("%s: composite key field %q is not defined", m.Name, name)
		}
		if f.AutoIncrement {
			return errors.Errorf("%s: composite key field %q cannot be auto-increment", m.Name, name)
		}
	}
	return nil
}
