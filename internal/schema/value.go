package schema

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

// ValueOf reads the value of f from obj. obj is either a map keyed by field
// or column name, a struct, or a pointer to a struct whose fields match by
// name or `db` tag.
func ValueOf(obj any, f *FieldDefinition) (any, bool) {
	switch m := obj.(type) {
	case nil:
		return nil, false
	case map[string]any:
		if v, ok := m[f.Name]; ok {
			return v, true
		}
		if v, ok := m[f.FieldName()]; ok {
			return v, true
		}
		for k, v := range m {
			if strings.EqualFold(k, f.Name) || strings.EqualFold(k, f.FieldName()) {
				return v, true
			}
		}
		return nil, false
	}
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}
	sf, ok := structField(rv, f)
	if !ok {
		return nil, false
	}
	return sf.Interface(), true
}

// SetValue assigns v to f on obj. obj must be a map or a pointer to a struct.
func SetValue(obj any, f *FieldDefinition, v any) error {
	if m, ok := obj.(map[string]any); ok {
		key := f.Name
		for k := range m {
			if strings.EqualFold(k, f.Name) || strings.EqualFold(k, f.FieldName()) {
				key = k
				break
			}
		}
		m[key] = v
		return nil
	}
	rv := reflect.ValueOf(obj)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return errors.Errorf("cannot set %s on %T: want a map or a struct pointer", f.Name, obj)
	}
	sf, ok := structField(rv.Elem(), f)
	if !ok {
		return errors.Errorf("%T has no field for %s", obj, f.Name)
	}
	if v == nil {
		sf.Set(reflect.Zero(sf.Type()))
		return nil
	}
	val := reflect.ValueOf(v)
	switch {
	case val.Type().AssignableTo(sf.Type()):
		sf.Set(val)
	case val.Type().ConvertibleTo(sf.Type()):
		sf.Set(val.Convert(sf.Type()))
	case sf.Kind() == reflect.Pointer && val.Type().ConvertibleTo(sf.Type().Elem()):
		p := reflect.New(sf.Type().Elem())
		p.Elem().Set(val.Convert(sf.Type().Elem()))
		sf.Set(p)
	default:
		return errors.Errorf("cannot assign %T to %s (%s)", v, f.Name, sf.Type())
	}
	return nil
}

func structField(rv reflect.Value, f *FieldDefinition) (reflect.Value, bool) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(sf.Tag.Get("db"), ",")
		if tag == "-" {
			continue
		}
		if tag != "" && (tag == f.FieldName() || tag == f.Name) {
			return rv.Field(i), true
		}
		if tag == "" && strings.EqualFold(sf.Name, f.Name) {
			return rv.Field(i), true
		}
	}
	return reflect.Value{}, false
}
