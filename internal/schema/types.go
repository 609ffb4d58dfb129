package schema

import (
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// typeNames maps the type names accepted in model files to Go types.
var typeNames = map[string]reflect.Type{
	"string":   reflect.TypeFor[string](),
	"bool":     reflect.TypeFor[bool](),
	"int":      reflect.TypeFor[int](),
	"int8":     reflect.TypeFor[int8](),
	"int16":    reflect.TypeFor[int16](),
	"int32":    reflect.TypeFor[int32](),
	"int64":    reflect.TypeFor[int64](),
	"uint":     reflect.TypeFor[uint](),
	"uint8":    reflect.TypeFor[uint8](),
	"uint16":   reflect.TypeFor[uint16](),
	"uint32":   reflect.TypeFor[uint32](),
	"uint64":   reflect.TypeFor[uint64](),
	"float32":  reflect.TypeFor[float32](),
	"float64":  reflect.TypeFor[float64](),
	"decimal":  reflect.TypeFor[decimal.Decimal](),
	"time":     reflect.TypeFor[time.Time](),
	"duration": reflect.TypeFor[time.Duration](),
	"uuid":     reflect.TypeFor[uuid.UUID](),
	"bytes":    reflect.TypeFor[[]byte](),
	"json":     reflect.TypeFor[map[string]any](),
}

// TypeNames lists the accepted type names, sorted.
func TypeNames() []string {
	names := make([]string, 0, len(typeNames))
	for n := range typeNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LookupType resolves a model-file type name. Nullable types are returned as pointers.
func LookupType(name string, nullable bool) (reflect.Type, bool) {
	t, ok := typeNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	if nullable {
		t = reflect.PointerTo(t)
	}
	return t, true
}

// TypeForSQL maps a normalized database type name to the Go type used to
// carry its values. Unknown types are carried as strings.
func TypeForSQL(sqlType string) reflect.Type {
	t := strings.ToLower(sqlType)
	switch {
	case strings.Contains(t, "uuid") || strings.Contains(t, "uniqueidentifier"):
		return typeNames["uuid"]
	case strings.Contains(t, "json"):
		return typeNames["json"]
	case strings.Contains(t, "char") || strings.Contains(t, "text") ||
		strings.Contains(t, "string") || strings.Contains(t, "clob"):
		return typeNames["string"]
	case strings.Contains(t, "bool") || t == "bit":
		return typeNames["bool"]
	case strings.Contains(t, "date") || strings.Contains(t, "time"):
		return typeNames["time"]
	case strings.Contains(t, "tinyint"):
		return typeNames["int8"]
	case strings.Contains(t, "smallint"):
		return typeNames["int16"]
	case strings.Contains(t, "bigint"):
		return typeNames["int64"]
	case strings.Contains(t, "int"):
		return typeNames["int32"]
	case strings.Contains(t, "decimal") || strings.Contains(t, "numeric") ||
		strings.Contains(t, "money") || strings.Contains(t, "number"):
		return typeNames["decimal"]
	case t == "real":
		return typeNames["float32"]
	case strings.Contains(t, "float") || strings.Contains(t, "double"):
		return typeNames["float64"]
	case strings.Contains(t, "blob") || strings.Contains(t, "binary") || strings.Contains(t, "bytea"):
		return typeNames["bytes"]
	default:
		return typeNames["string"]
	}
}
