package dialect

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"dialectkit/internal/exec"
	"dialectkit/internal/schema"
)

// deref returns the value behind pointers, or nil for a nil pointer.
func deref(v any) any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

func (p *Provider) logTranslation(op string, c Converter, field string, t reflect.Type, v any, err error) {
	p.Logger().Error(op+" failed",
		zap.String("converter", converterName(c)),
		zap.String("field", field),
		zap.Stringer("type", t),
		zap.String("valueType", fmt.Sprintf("%T", v)),
		zap.Error(err))
}

func (p *Provider) toDb(c Converter, field string, t reflect.Type, v any) (any, error) {
	v = deref(v)
	if v == nil {
		return nil, nil
	}
	if t == nil {
		t = reflect.TypeOf(v)
	}
	if c == nil {
		return nil, errors.Wrapf(ErrConfiguration, "no converter for %s", t)
	}
	out, err := c.ToDbValue(underlying(t), v)
	if err != nil {
		p.logTranslation("ToDbValue", c, field, t, v, err)
		return nil, err
	}
	return out, nil
}

func (p *Provider) fromDb(c Converter, field string, t reflect.Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if t == nil {
		return v, nil
	}
	if c == nil {
		return nil, errors.Wrapf(ErrConfiguration, "no converter for %s", t)
	}
	base := underlying(t)
	out, err := c.FromDbValue(base, v)
	if err != nil {
		p.logTranslation("FromDbValue", c, field, t, v, err)
		return nil, err
	}
	if t.Kind() != reflect.Pointer || out == nil {
		return out, nil
	}
	ov := reflect.ValueOf(out)
	if !ov.Type().AssignableTo(base) {
		if !ov.CanConvert(base) {
			return nil, errors.Errorf("%s returned %T for %s", converterName(c), out, t)
		}
		ov = ov.Convert(base)
	}
	ptr := reflect.New(base)
	ptr.Elem().Set(ov)
	return ptr.Interface(), nil
}

// ToDbValue translates v of semantic type t to its database form. A nil t
// selects the dynamic type of v. Nil and nil pointers translate to nil.
func (p *Provider) ToDbValue(v any, t reflect.Type) (any, error) {
	if t == nil && v != nil {
		t = reflect.TypeOf(v)
	}
	if t == nil {
		return nil, nil
	}
	return p.toDb(p.GetConverterBestMatch(t), "", t, v)
}

// FieldToDbValue is ToDbValue through the converter of f.
func (p *Provider) FieldToDbValue(f *schema.FieldDefinition, v any) (any, error) {
	return p.toDb(p.GetFieldConverter(f), f.Name, f.ColumnType(), v)
}

// FromDbValue translates a database value into semantic type t. A pointer t
// yields a pointer to the translated value.
func (p *Provider) FromDbValue(v any, t reflect.Type) (any, error) {
	return p.fromDb(p.GetConverterBestMatch(t), "", t, v)
}

// FieldFromDbValue is FromDbValue through the converter of f.
func (p *Provider) FieldFromDbValue(f *schema.FieldDefinition, v any) (any, error) {
	return p.fromDb(p.GetFieldConverter(f), f.Name, f.FieldType, v)
}

// GetQuotedValue renders v as an SQL literal of type t. Enumeration values
// always go through the enum converter.
func (p *Provider) GetQuotedValue(v any, t reflect.Type) (string, error) {
	v = deref(v)
	if v == nil {
		return "NULL", nil
	}
	if t == nil {
		t = reflect.TypeOf(v)
	}
	var c Converter
	if isEnum(reflect.TypeOf(v)) && p.GetConverter(reflect.TypeOf(v)) == nil {
		p.mu.RLock()
		c = p.enumConv.conv
		p.mu.RUnlock()
	} else {
		c = p.GetConverterBestMatch(t)
	}
	if c == nil {
		return "", errors.Wrapf(ErrConfiguration, "no converter for %s", t)
	}
	s, err := c.ToQuotedString(underlying(t), v)
	if err != nil {
		p.logTranslation("ToQuotedString", c, "", t, v, err)
		return "", err
	}
	return s, nil
}

// GetQuotedStringValue renders s as a string literal.
func (p *Provider) GetQuotedStringValue(s string) string {
	if p.d.QuoteString != nil {
		return p.d.QuoteString(s)
	}
	return quoteLiteral(s)
}

// MergeParamsIntoSQL inlines the literal of each parameter at its markers.
// A marker only matches when followed by a comma, whitespace, a closing
// parenthesis or the end of the text.
func (p *Provider) MergeParamsIntoSQL(sql string, params []*exec.Param) (string, error) {
	for _, prm := range params {
		quoted := "null"
		if v := deref(prm.Value); v != nil {
			var err error
			if quoted, err = p.GetQuotedValue(v, reflect.TypeOf(v)); err != nil {
				return "", err
			}
		}
		re, err := regexp.Compile(regexp.QuoteMeta(prm.Name) + `(,|\s|\)|$)`)
		if err != nil {
			return "", errors.Wrapf(err, "parameter %q", prm.Name)
		}
		sql = re.ReplaceAllString(sql, strings.ReplaceAll(quoted, "$", "$$")+"${1}")
	}
	return sql, nil
}

// ReadRecord translates one result row into a map keyed by field name.
// Columns matching no field keep their raw value under the column name.
func (p *Provider) ReadRecord(m *schema.ModelDefinition, columns []string, values []any) (map[string]any, error) {
	if len(columns) != len(values) {
		return nil, errors.Errorf("%d columns for %d values", len(columns), len(values))
	}
	rec := make(map[string]any, len(columns))
	for i, col := range columns {
		f := p.fieldForColumn(m, col)
		if f == nil {
			rec[col] = values[i]
			continue
		}
		v, err := p.FieldFromDbValue(f, values[i])
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", col)
		}
		rec[f.Name] = v
	}
	return rec, nil
}

func (p *Provider) fieldForColumn(m *schema.ModelDefinition, col string) *schema.FieldDefinition {
	if f := m.Field(col); f != nil {
		return f
	}
	for _, f := range m.Fields {
		if strings.EqualFold(p.GetColumnName(f.FieldName()), col) {
			return f
		}
	}
	return nil
}
