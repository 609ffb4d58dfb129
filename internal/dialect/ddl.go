package dialect

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"dialectkit/internal/schema"
)

func (p *Provider) createTableFields(m *schema.ModelDefinition) []*schema.FieldDefinition {
	if p.CreateTableFieldsStrategy != nil {
		return p.CreateTableFieldsStrategy(m)
	}
	return m.Fields
}

// ToCreateTableStatement renders CREATE TABLE for m: the column definitions
// followed by check, foreign key, composite key and unique constraints.
func (p *Provider) ToCreateTableStatement(m *schema.ModelDefinition) (string, error) {
	var cols []string
	var cons strings.Builder

	for _, f := range p.createTableFields(m) {
		if f.CustomSelect != "" || (f.IsComputed && !f.IsPersisted) {
			continue
		}
		def, err := p.ColumnDefinition(f, m)
		if err != nil {
			return "", errors.Wrapf(err, "create table %s", m.Name)
		}
		if def == "" {
			continue
		}
		cols = append(cols, def)

		if chk := p.CheckConstraint(m, f); chk != "" {
			cons.WriteString(",\n" + chk)
		}
		if f.ForeignKey == nil || p.SkipForeignKeys {
			continue
		}
		fk, err := p.foreignKeyConstraint(m, f)
		if err != nil {
			return "", err
		}
		cons.WriteString(fk)
	}

	if pk := p.CompositePrimaryKey(m); pk != "" {
		cons.WriteString(",\n" + pk)
	}
	if uc := p.UniqueConstraints(m); uc != "" {
		cons.WriteString(",\n" + uc)
	}

	return fmt.Sprintf("CREATE TABLE %s \n(\n  %s%s \n); \n",
		p.GetQuotedTableName(m), strings.Join(cols, ", \n  "), cons.String()), nil
}

func (p *Provider) foreignKeyConstraint(m *schema.ModelDefinition, f *schema.FieldDefinition) (string, error) {
	ref := f.ForeignKey.References
	if ref == nil {
		return "", errors.Wrapf(ErrConfiguration, "%s.%s references unresolved model %q", m.Name, f.Name, f.ForeignKey.RefModel)
	}
	refPK := ref.PrimaryKey()
	if refPK == nil {
		return "", errors.Wrapf(ErrConfiguration, "%s.%s references %s which has no primary key", m.Name, f.Name, ref.Name)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, ", \n\n  CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		p.GetQuotedName(p.ForeignKeyName(m, ref, f)),
		p.GetQuotedColumnName(f.FieldName()),
		p.GetQuotedTableName(ref),
		p.GetQuotedColumnName(refPK.FieldName()))
	if f.ForeignKey.OnDelete != schema.FkDefault {
		sb.WriteString(p.fkClause("ON DELETE", f.ForeignKey.OnDelete))
	}
	if f.ForeignKey.OnUpdate != schema.FkDefault {
		sb.WriteString(p.fkClause("ON UPDATE", f.ForeignKey.OnUpdate))
	}
	return sb.String(), nil
}

func (p *Provider) fkClause(keyword string, a schema.FkAction) string {
	opt := a.SQL()
	if p.d.FkOption != nil {
		opt = p.d.FkOption(keyword == "ON UPDATE", a)
	}
	if opt == "" {
		return ""
	}
	return " " + keyword + " " + opt
}

// ForeignKeyName is the declared constraint name or one derived from the
// table, referenced table and column, always carrying a single fk_ prefix.
func (p *Provider) ForeignKeyName(m, ref *schema.ModelDefinition, f *schema.FieldDefinition) string {
	name := f.ForeignKey.Name
	if name == "" {
		name = fkModelName(p, m) + "_" + fkModelName(p, ref) + "_" + f.FieldName()
	}
	if strings.HasPrefix(strings.ToLower(name), "fk_") {
		return name
	}
	return "fk_" + name
}

func fkModelName(p *Provider, m *schema.ModelDefinition) string {
	if m.IsInSchema() {
		return m.Schema + "_" + p.naming.TableName(m.ModelName())
	}
	return p.naming.TableName(m.ModelName())
}

// CheckConstraint renders the CHECK constraint of f, "" for none.
func (p *Provider) CheckConstraint(m *schema.ModelDefinition, f *schema.FieldDefinition) string {
	if f.CheckConstraint == "" {
		return ""
	}
	return fmt.Sprintf("CONSTRAINT CHK_%s_%s_%s CHECK (%s)", m.Schema, m.ModelName(), f.FieldName(), f.CheckConstraint)
}

// CompositePrimaryKey renders the key constraint CREATE TABLE appends for a
// composite key model. Engines opt in through Dialect.CompositePrimaryKey;
// the base provider renders none.
func (p *Provider) CompositePrimaryKey(m *schema.ModelDefinition) string {
	if p.d.CompositePrimaryKey == nil || !m.HasCompositePrimaryKey() {
		return ""
	}
	return p.d.CompositePrimaryKey(p, m)
}

// PrimaryKeyConstraint renders CONSTRAINT "PK_<table>" PRIMARY KEY over the
// composite key fields of m.
func (p *Provider) PrimaryKeyConstraint(m *schema.ModelDefinition) string {
	cols := make([]string, len(m.CompositePrimaryKey))
	for i, name := range m.CompositePrimaryKey {
		cols[i] = p.quotedFieldColumn(m, name)
	}
	return fmt.Sprintf("  CONSTRAINT %s PRIMARY KEY (%s)",
		p.GetQuotedName("PK_"+safeVarName(p.GetTableName(m))), strings.Join(cols, ", "))
}

// UniqueConstraints renders the table level UNIQUE constraints, "" for none.
func (p *Provider) UniqueConstraints(m *schema.ModelDefinition) string {
	if len(m.UniqueConstraints) == 0 {
		return ""
	}
	table := p.GetTableName(m)
	out := make([]string, len(m.UniqueConstraints))
	for i, uc := range m.UniqueConstraints {
		name := uc.Name
		if name == "" {
			name = "UC_" + table + "_" + strings.Join(uc.FieldNames, "_")
		}
		cols := make([]string, len(uc.FieldNames))
		for j, fn := range uc.FieldNames {
			cols[j] = p.quotedFieldColumn(m, fn)
		}
		out[i] = fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", name, strings.Join(cols, ","))
	}
	return strings.Join(out, ",\n")
}

func (p *Provider) quotedFieldColumn(m *schema.ModelDefinition, name string) string {
	if f := m.Field(name); f != nil {
		return p.GetQuotedColumnName(f.FieldName())
	}
	return p.GetQuotedColumnName(name)
}

// IndexName is the default index name: (u)idx_<model>_<field>, lower case.
func IndexName(unique bool, modelName, fieldName string) string {
	prefix := "idx_"
	if unique {
		prefix = "uidx_"
	}
	return strings.ToLower(prefix + modelName + "_" + fieldName)
}

// ToCreateIndexStatements renders one CREATE INDEX per indexed field and per
// composite index of m.
func (p *Provider) ToCreateIndexStatements(m *schema.ModelDefinition) []string {
	var stmts []string
	model := safeVarName(m.ModelName())
	for _, f := range m.Fields {
		if !f.IsIndexed {
			continue
		}
		name := f.IndexName
		if name == "" {
			name = IndexName(f.IsUniqueIndex, model, f.FieldName())
		}
		stmts = append(stmts, p.createIndex(f.IsUniqueIndex, f.IsClustered, f.IsNonClustered, name, m,
			p.GetQuotedColumnName(f.FieldName())))
	}

	for _, ci := range m.CompositeIndexes {
		name := ci.Name
		if name == "" {
			bare := make([]string, len(ci.FieldNames))
			for i, fn := range ci.FieldNames {
				bare[i], _, _ = strings.Cut(fn, " ")
			}
			name = IndexName(ci.Unique, model, strings.Join(bare, "_"))
		}
		cols := make([]string, len(ci.FieldNames))
		for i, fn := range ci.FieldNames {
			cols[i] = p.indexColumn(m, fn)
		}
		stmts = append(stmts, p.createIndex(ci.Unique, false, false, name, m, strings.Join(cols, ", ")))
	}
	return stmts
}

// indexColumn quotes a composite index field, keeping a trailing ASC/DESC.
func (p *Provider) indexColumn(m *schema.ModelDefinition, fieldName string) string {
	if i := strings.LastIndexByte(fieldName, ' '); i > 0 {
		dir := strings.ToLower(fieldName[i+1:])
		if strings.HasPrefix(dir, "desc") || strings.HasPrefix(dir, "asc") {
			return p.quotedFieldColumn(m, fieldName[:i]) + " " + fieldName[i+1:]
		}
	}
	return p.quotedFieldColumn(m, fieldName)
}

func (p *Provider) createIndex(unique, clustered, nonClustered bool, name string, m *schema.ModelDefinition, cols string) string {
	var sb strings.Builder
	sb.WriteString("CREATE ")
	if unique {
		sb.WriteString("UNIQUE ")
	}
	if p.d.ClusteredIndexes {
		if clustered {
			sb.WriteString("CLUSTERED ")
		} else if nonClustered {
			sb.WriteString("NONCLUSTERED ")
		}
	}
	fmt.Fprintf(&sb, "INDEX %s ON %s (%s); \n", name, p.GetQuotedTableName(m), cols)
	return sb.String()
}

// ToCreateIndexStatement renders a single index on one field, named from the
// model and field unless indexName is given.
func (p *Provider) ToCreateIndexStatement(m *schema.ModelDefinition, field, indexName string, unique bool) (string, error) {
	f, err := m.AssertField(field)
	if err != nil {
		return "", err
	}
	if indexName == "" {
		prefix := "idx"
		if unique {
			prefix = "uidx"
		}
		indexName = prefix + "_" + m.ModelName() + "_" + f.FieldName()
	}
	kw := "CREATE INDEX"
	if unique {
		kw = "CREATE UNIQUE INDEX"
	}
	return fmt.Sprintf("%s %s ON %s (%s);", kw, p.GetQuotedName(indexName),
		p.GetQuotedTableName(m), p.GetQuotedColumnName(f.FieldName())), nil
}

// ToCreateSequenceStatements renders the sequences m needs before its table.
func (p *Provider) ToCreateSequenceStatements(m *schema.ModelDefinition) []string {
	if p.d.Sequences == nil {
		return nil
	}
	return p.d.Sequences(p, m)
}

// ToPostCreateTableStatement renders statements run after CREATE TABLE, "" for none.
func (p *Provider) ToPostCreateTableStatement(m *schema.ModelDefinition) string {
	if p.d.PostCreateTable == nil {
		return ""
	}
	return p.d.PostCreateTable(p, m)
}

func (p *Provider) ToCreateSchemaStatement(schemaName string) (string, error) {
	if p.d.CreateSchema != nil {
		return p.d.CreateSchema(p, schemaName)
	}
	return "CREATE SCHEMA " + p.GetQuotedName(p.naming.SchemaName(schemaName)), nil
}

func (p *Provider) ToDropTableStatement(m *schema.ModelDefinition) string {
	return "DROP TABLE " + p.GetQuotedTableName(m)
}

// ToTruncateStatement removes every row of m.
func (p *Provider) ToTruncateStatement(m *schema.ModelDefinition) string {
	if p.d.Truncate != nil {
		return p.d.Truncate(p, m)
	}
	return "TRUNCATE TABLE " + p.GetQuotedTableName(m)
}

func (p *Provider) ToAddColumnStatement(m *schema.ModelDefinition, f *schema.FieldDefinition) (string, error) {
	if p.d.AddColumn != nil {
		return p.d.AddColumn(p, m, f)
	}
	col, err := p.ColumnDefinition(f, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", p.GetQuotedTableName(m), col), nil
}

func (p *Provider) ToAlterColumnStatement(m *schema.ModelDefinition, f *schema.FieldDefinition) (string, error) {
	if p.d.AlterColumn != nil {
		return p.d.AlterColumn(p, m, f)
	}
	col, err := p.ColumnDefinition(f, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s;", p.GetQuotedTableName(m), col), nil
}

func (p *Provider) ToChangeColumnNameStatement(m *schema.ModelDefinition, f *schema.FieldDefinition, oldName string) (string, error) {
	if p.d.ChangeColumnName != nil {
		return p.d.ChangeColumnName(p, m, f, oldName)
	}
	col, err := p.ColumnDefinition(f, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s CHANGE COLUMN %s %s;",
		p.GetQuotedTableName(m), p.GetQuotedColumnName(oldName), col), nil
}

func (p *Provider) ToDropColumnStatement(m *schema.ModelDefinition, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", p.GetQuotedTableName(m), p.GetQuotedColumnName(column))
}

// ToAddForeignKeyStatement renders ALTER TABLE ... ADD CONSTRAINT for a
// foreign key from field of m to refField of ref. Both actions are always
// rendered; FkDefault renders as RESTRICT.
func (p *Provider) ToAddForeignKeyStatement(m *schema.ModelDefinition, field string, ref *schema.ModelDefinition, refField string,
	onUpdate, onDelete schema.FkAction, name string) (string, error) {
	f, err := m.AssertField(field)
	if err != nil {
		return "", err
	}
	rf, err := ref.AssertField(refField)
	if err != nil {
		return "", err
	}
	if name == "" {
		name = "fk_" + m.ModelName() + "_" + f.FieldName() + "_" + rf.FieldName()
	}
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)%s%s;",
		p.GetQuotedTableName(m), p.GetQuotedName(name), p.GetQuotedColumnName(f.FieldName()),
		p.GetQuotedTableName(ref), p.GetQuotedColumnName(rf.FieldName()),
		p.fkClause("ON DELETE", onDelete), p.fkClause("ON UPDATE", onUpdate)), nil
}

// ToTableNamesStatement lists the base tables of schemaName ("" for the default).
func (p *Provider) ToTableNamesStatement(schemaName string) (string, error) {
	if p.d.TableNames == nil {
		return "", unsupported(p, "ToTableNamesStatement")
	}
	return p.d.TableNames(p, schemaName), nil
}

func safeVarName(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '_'
	}, s)
}
