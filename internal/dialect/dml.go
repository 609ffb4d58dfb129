package dialect

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"dialectkit/internal/exec"
	"dialectkit/internal/schema"
)

// Statement is synthesized command text with its bound parameters.
type Statement struct {
	SQL    string
	Params []*exec.Param
}

// Apply replaces the text and parameters of cmd.
func (s *Statement) Apply(cmd exec.Command) {
	cmd.SetText(s.SQL)
	cmd.ClearParams()
	for _, prm := range s.Params {
		cmd.AddParam(prm)
	}
}

// Param returns the parameter named name, with or without its marker
// prefix, or nil.
func (s *Statement) Param(name string) *exec.Param {
	for _, prm := range s.Params {
		if prm.Name == name || strings.TrimLeft(prm.Name, "@:$?") == name {
			return prm
		}
	}
	return nil
}

func (s *Statement) addParam(prm *exec.Param) {
	if s.Param(prm.Name) == nil {
		s.Params = append(s.Params, prm)
	}
}

func (p *Provider) newParam(f *schema.FieldDefinition, v any) (*exec.Param, error) {
	prm := &exec.Param{Name: p.ParamName(f.FieldName())}
	if c := p.GetFieldConverter(f); c != nil {
		c.InitDbParam(prm, underlying(f.ColumnType()))
	}
	dbv, err := p.FieldToDbValue(f, v)
	if err != nil {
		return nil, err
	}
	prm.Value = dbv
	return prm, nil
}

func isGUIDAutoID(f *schema.FieldDefinition) bool {
	return f.AutoID && underlying(f.ColumnType()) == reflect.TypeFor[uuid.UUID]()
}

func (p *Provider) insertFields(m *schema.ModelDefinition, names []string, include func(*schema.FieldDefinition) bool) []*schema.FieldDefinition {
	fields := m.Fields
	if len(names) > 0 {
		fields = m.OrderedFields(names, p.GetColumnName)
	}
	var out []*schema.FieldDefinition
	for _, f := range fields {
		if f.ShouldSkipInsert() && !(include != nil && include(f)) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (p *Provider) insertText(m *schema.ModelDefinition, fields []*schema.FieldDefinition) string {
	cols := make([]string, len(fields))
	vals := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = p.GetQuotedColumnName(f.FieldName())
		vals[i] = p.ParamName(f.FieldName())
		if f.CustomInsert != "" {
			vals[i] = strings.ReplaceAll(f.CustomInsert, "{0}", vals[i])
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		p.GetQuotedTableName(m), strings.Join(cols, ","), strings.Join(vals, ","))
}

// PrepareInsert synthesizes an INSERT over insertFields (every insertable
// field when empty) with unbound parameters. GUID auto-id fields get a fresh
// value. include forces fields the store would otherwise assign.
func (p *Provider) PrepareInsert(m *schema.ModelDefinition, insertFields []string, include func(*schema.FieldDefinition) bool) (*Statement, error) {
	fields := p.insertFields(m, insertFields, include)
	st := &Statement{SQL: p.insertText(m, fields)}
	for _, f := range fields {
		var v any
		if isGUIDAutoID(f) {
			v = uuid.New()
		}
		prm, err := p.newParam(f, v)
		if err != nil {
			return nil, err
		}
		st.addParam(prm)
	}
	return st, nil
}

// InsertStatement binds an INSERT from an explicit field to value map.
func (p *Provider) InsertStatement(m *schema.ModelDefinition, values map[string]any) (*Statement, error) {
	names := make([]string, 0, len(values))
	for k := range values {
		names = append(names, k)
	}
	for _, f := range m.Fields {
		if _, ok := schema.ValueOf(values, f); !ok && isGUIDAutoID(f) {
			names = append(names, f.Name)
		}
	}
	fields := p.insertFields(m, names, isGUIDAutoID)
	st := &Statement{SQL: p.insertText(m, fields)}
	for _, f := range fields {
		v, _ := schema.ValueOf(values, f)
		if isGUIDAutoID(f) && isZeroGUID(v) {
			v = uuid.New()
			values[f.Name] = v
		}
		prm, err := p.newParam(f, v)
		if err != nil {
			return nil, err
		}
		st.addParam(prm)
	}
	return st, nil
}

// InsertRowStatement binds an INSERT of obj, a map or struct pointer,
// over insertFields or every insertable field.
func (p *Provider) InsertRowStatement(m *schema.ModelDefinition, obj any, insertFields []string) (*Statement, error) {
	st, err := p.PrepareInsert(m, insertFields, isGUIDAutoID)
	if err != nil {
		return nil, err
	}
	if err := p.SetParameterValues(st, m, obj); err != nil {
		return nil, err
	}
	return st, nil
}

// SetParameterValues binds the values of obj to the parameters of st. GUID
// auto-id fields keep a value already set on obj and otherwise write the
// generated one back to it.
func (p *Provider) SetParameterValues(st *Statement, m *schema.ModelDefinition, obj any) error {
	for _, prm := range st.Params {
		f := p.fieldForParam(m, prm.Name)
		if f == nil {
			return errors.Wrapf(ErrFieldNotFound, "%s: parameter %s", m.Name, prm.Name)
		}
		v, _ := schema.ValueOf(obj, f)
		if isGUIDAutoID(f) {
			if isZeroGUID(v) {
				gen := prm.Value
				if gen == nil {
					gen = uuid.New()
				}
				if err := schema.SetValue(obj, f, p.guidValue(f, gen)); err != nil {
					return errors.Wrapf(err, "back-fill %s", f.Name)
				}
				dbv, err := p.FieldToDbValue(f, gen)
				if err != nil {
					return err
				}
				prm.Value = dbv
				continue
			}
		}
		dbv, err := p.FieldToDbValue(f, v)
		if err != nil {
			return err
		}
		prm.Value = dbv
		if s, ok := dbv.(string); ok && len(s) > prm.Size {
			prm.Size = len(s)
		}
	}
	return nil
}

func (p *Provider) guidValue(f *schema.FieldDefinition, v any) any {
	if s, ok := v.(string); ok {
		if id, err := uuid.Parse(s); err == nil {
			v = id
		}
	}
	if f.FieldType.Kind() == reflect.Pointer {
		if id, ok := v.(uuid.UUID); ok {
			return &id
		}
	}
	return v
}

func isZeroGUID(v any) bool {
	switch id := deref(v).(type) {
	case nil:
		return true
	case uuid.UUID:
		return id == uuid.Nil
	case string:
		return id == "" || id == uuid.Nil.String()
	}
	return false
}

func (p *Provider) fieldForParam(m *schema.ModelDefinition, name string) *schema.FieldDefinition {
	for _, f := range m.Fields {
		if p.ParamName(f.FieldName()) == name || p.paramKey(f.FieldName()) == name {
			return f
		}
	}
	return nil
}

func (p *Provider) assignment(f *schema.FieldDefinition) string {
	marker := p.ParamName(f.FieldName())
	if f.CustomUpdate != "" {
		marker = strings.ReplaceAll(f.CustomUpdate, "{0}", marker)
	}
	return p.GetQuotedColumnName(f.FieldName()) + "=" + marker
}

func (p *Provider) condition(f *schema.FieldDefinition) string {
	return p.GetQuotedColumnName(f.FieldName()) + "=" + p.ParamName(f.FieldName())
}

func containsFold(names []string, f *schema.FieldDefinition) bool {
	return slices.ContainsFunc(names, func(n string) bool {
		return strings.EqualFold(n, f.Name) || strings.EqualFold(n, f.FieldName())
	})
}

// UpdateStatement binds an UPDATE of obj. With no updateFields every field is
// written and the key and row-version fields form the WHERE clause;
// hadRowVersion reports that the update is conditional on the row version.
// An explicit updateFields subset is written without a WHERE clause.
func (p *Provider) UpdateStatement(m *schema.ModelDefinition, obj any, updateFields []string) (st *Statement, hadRowVersion bool, err error) {
	updateAll := len(updateFields) == 0
	st = &Statement{}
	var set, where []string
	for _, f := range m.Fields {
		if f.ShouldSkipUpdate() && !f.IsRowVersion {
			continue
		}
		isKey := m.IsKeyField(f)
		switch {
		case updateAll && (isKey || f.IsRowVersion):
			where = append(where, p.condition(f))
			hadRowVersion = hadRowVersion || f.IsRowVersion
		case !updateAll && !containsFold(updateFields, f):
			continue
		case f.AutoIncrement || f.IsRowVersion:
			continue
		default:
			set = append(set, p.assignment(f))
		}
		v, _ := schema.ValueOf(obj, f)
		prm, err := p.newParam(f, v)
		if err != nil {
			return nil, false, err
		}
		st.addParam(prm)
	}
	if len(set) == 0 {
		return nil, false, errors.Wrapf(ErrNoUpdateFields, "update %s", m.Name)
	}
	if !updateAll {
		p.Logger().Debug("update without key or row-version criteria",
			zap.String("model", m.Name), zap.Strings("fields", updateFields))
	}
	st.SQL = p.updateText(m, set, where)
	return st, hadRowVersion, nil
}

func (p *Provider) updateText(m *schema.ModelDefinition, set, where []string) string {
	sql := "UPDATE " + p.GetQuotedTableName(m) + " SET " + strings.Join(set, ", ")
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	return sql
}

// UpdateValuesStatement writes the non-key fields named in values to the
// rows matching the equality criteria of where.
func (p *Provider) UpdateValuesStatement(m *schema.ModelDefinition, values, where map[string]any) (*Statement, error) {
	return p.updateValues(m, values, where, false)
}

// UpdateAddStatement is UpdateValuesStatement with numeric fields
// incremented by their value instead of assigned.
func (p *Provider) UpdateAddStatement(m *schema.ModelDefinition, values, where map[string]any) (*Statement, error) {
	return p.updateValues(m, values, where, true)
}

func (p *Provider) updateValues(m *schema.ModelDefinition, values, where map[string]any, add bool) (*Statement, error) {
	st := &Statement{}
	var set []string
	for _, f := range m.Fields {
		v, ok := schema.ValueOf(values, f)
		if !ok || f.ShouldSkipUpdate() || m.IsKeyField(f) || f.AutoIncrement {
			continue
		}
		if add && f.IsRowVersion {
			continue
		}
		if add && isNumericKind(underlying(f.ColumnType()).Kind()) {
			col := p.GetQuotedColumnName(f.FieldName())
			set = append(set, col+"="+col+"+"+p.ParamName(f.FieldName()))
		} else {
			set = append(set, p.assignment(f))
		}
		prm, err := p.newParam(f, v)
		if err != nil {
			return nil, err
		}
		st.addParam(prm)
	}
	if len(set) == 0 {
		return nil, errors.Wrapf(ErrNoUpdateFields, "update %s", m.Name)
	}
	conds, _, err := p.criteria(m, where, st, true)
	if err != nil {
		return nil, err
	}
	st.SQL = p.updateText(m, set, conds)
	return st, nil
}

// criteria renders equality conditions for the fields named in values. st
// receives a parameter for every non-nil value; with rename a parameter that
// collides with one already in st gets a distinct name.
func (p *Provider) criteria(m *schema.ModelDefinition, values map[string]any, st *Statement, rename bool) ([]string, bool, error) {
	var conds []string
	hadRowVersion := false
	for _, f := range m.Fields {
		v, ok := schema.ValueOf(values, f)
		if !ok || f.ShouldSkipDelete() {
			continue
		}
		col := p.GetQuotedColumnName(f.FieldName())
		if deref(v) == nil {
			conds = append(conds, col+" IS NULL")
			hadRowVersion = hadRowVersion || f.IsRowVersion
			continue
		}
		prm, err := p.newParam(f, v)
		if err != nil {
			return nil, false, err
		}
		if rename && st.Param(prm.Name) != nil {
			prm.Name = p.paramString + p.paramKey("w"+f.FieldName())
		}
		conds = append(conds, col+"="+prm.Name)
		st.addParam(prm)
		hadRowVersion = hadRowVersion || f.IsRowVersion
	}
	return conds, hadRowVersion, nil
}

// DeleteStatement binds a DELETE matching every criterion of values; a nil
// value matches NULL. hadRowVersion reports a row-version criterion.
func (p *Provider) DeleteStatement(m *schema.ModelDefinition, values map[string]any) (st *Statement, hadRowVersion bool, err error) {
	st = &Statement{}
	conds, hadRowVersion, err := p.criteria(m, values, st, false)
	if err != nil {
		return nil, false, err
	}
	if len(conds) == 0 {
		return nil, false, errors.Wrapf(ErrNoDeleteCriteria, "delete %s", m.Name)
	}
	st.SQL = "DELETE FROM " + p.GetQuotedTableName(m) + " WHERE " + strings.Join(conds, " AND ")
	return st, hadRowVersion, nil
}

func hasKeyword(sql, keyword string) bool {
	s := strings.TrimSpace(sql)
	return len(s) > len(keyword) && strings.EqualFold(s[:len(keyword)], keyword) &&
		(s[len(keyword)] == ' ' || s[len(keyword)] == '\n' || s[len(keyword)] == '\t')
}

// ToDeleteStatement returns sqlFilter formatted with args when it is a full
// DELETE, else a DELETE of m filtered by it.
func (p *Provider) ToDeleteStatement(m *schema.ModelDefinition, sqlFilter string, args ...any) (string, error) {
	sql, err := p.sqlFmt(sqlFilter, args...)
	if err != nil {
		return "", err
	}
	if hasKeyword(sql, "DELETE") {
		return sql, nil
	}
	return "DELETE FROM " + p.GetQuotedTableName(m) + " WHERE " + sql, nil
}

// ToSelectStatement returns sqlFilter formatted with args when it is a full
// SELECT, else a SELECT of every column of m filtered by it. A filter
// starting with ORDER BY or LIMIT is appended without WHERE.
func (p *Provider) ToSelectStatement(m *schema.ModelDefinition, sqlFilter string, args ...any) (string, error) {
	sql, err := p.sqlFmt(sqlFilter, args...)
	if err != nil {
		return "", err
	}
	if hasKeyword(sql, "SELECT") {
		return sql, nil
	}
	var sb strings.Builder
	sb.WriteString("SELECT " + p.GetColumnNames(m) + " FROM " + p.GetQuotedTableName(m))
	if sql = strings.TrimSpace(sql); sql == "" {
		return sb.String(), nil
	}
	if hasKeyword(sql, "ORDER") || hasKeyword(sql, "LIMIT") {
		sb.WriteString(" ")
	} else {
		sb.WriteString(" WHERE ")
	}
	sb.WriteString(sql)
	return sb.String(), nil
}

// SelectStatement assembles a paged SELECT from its parts.
func (p *Provider) SelectStatement(selectExpr, body, orderBy string, offset, rows *int) string {
	var sb strings.Builder
	sb.WriteString(selectExpr)
	sb.WriteString(" " + body)
	if orderBy != "" {
		sb.WriteString(" " + orderBy)
	}
	if limit := p.SqlLimit(offset, rows); limit != "" {
		sb.WriteString("\n" + limit)
	}
	return sb.String()
}

// GetColumnNames lists the selectable columns of m. Custom select fields are
// aliased to their field name.
func (p *Provider) GetColumnNames(m *schema.ModelDefinition) string {
	cols := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		if f.CustomSelect != "" {
			cols = append(cols, f.CustomSelect+" AS "+p.GetQuotedName(f.Name))
			continue
		}
		cols = append(cols, p.GetQuotedColumnName(f.FieldName()))
	}
	return strings.Join(cols, ", ")
}

func (p *Provider) ToRowCountStatement(sql string) string {
	return "SELECT COUNT(*) FROM (" + sql + ") AS COUNT"
}

// sqlFmt replaces {i} with the literal of args[i].
func (p *Provider) sqlFmt(sql string, args ...any) (string, error) {
	for i, arg := range args {
		lit, err := p.GetQuotedValue(arg, nil)
		if err != nil {
			return "", err
		}
		sql = strings.ReplaceAll(sql, "{"+strconv.Itoa(i)+"}", lit)
	}
	return sql, nil
}
