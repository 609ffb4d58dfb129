package dialect

import (
	"fmt"
	"reflect"
	"strings"

	"dialectkit/internal/exec"
)

// MaxTextLength selects the unbounded text type of a string converter.
const MaxTextLength = 1<<31 - 1

// Converter translates values of one semantic type between their Go and
// database representations. Implementations embed ConverterBase, which tracks
// the owning provider.
type Converter interface {
	// ColumnDefinition is the fixed column type, or "" if the converter
	// derives it from a length or precision.
	ColumnDefinition() string
	ToDbValue(t reflect.Type, v any) (any, error)
	FromDbValue(t reflect.Type, v any) (any, error)
	// ToQuotedString renders v as an SQL literal.
	ToQuotedString(t reflect.Type, v any) (string, error)
	InitDbParam(p *exec.Param, t reflect.Type)

	// Provider returns the owning provider, nil while unregistered.
	Provider() *Provider
	attach(p *Provider)
}

// LengthDefiner is implemented by converters whose column type depends on
// the field length. A nil length selects the converter default.
type LengthDefiner interface {
	LengthDefinition(length *int) string
}

// PrecisionDefiner is implemented by converters whose column type depends on
// precision and scale. The field length is the precision.
type PrecisionDefiner interface {
	PrecisionDefinition(precision, scale *int) string
}

// TypeDefiner is implemented by fallback converters whose column type
// depends on the concrete Go type they serve.
type TypeDefiner interface {
	TypeDefinition(t reflect.Type, length *int) string
}

// ConverterBase carries provider ownership and pass-through defaults.
type ConverterBase struct {
	provider *Provider
}

func (b *ConverterBase) Provider() *Provider { return b.provider }

func (b *ConverterBase) attach(p *Provider) { b.provider = p }

func (b *ConverterBase) ColumnDefinition() string { return "" }

func (b *ConverterBase) InitDbParam(*exec.Param, reflect.Type) {}

func (b *ConverterBase) ToDbValue(_ reflect.Type, v any) (any, error) { return v, nil }

func (b *ConverterBase) FromDbValue(_ reflect.Type, v any) (any, error) { return v, nil }

func (b *ConverterBase) ToQuotedString(_ reflect.Type, v any) (string, error) {
	switch s := v.(type) {
	case string:
		return b.quote(s), nil
	case fmt.Stringer:
		return b.quote(s.String()), nil
	}
	return b.quote(fmt.Sprint(v)), nil
}

func (b *ConverterBase) quote(s string) string {
	if b.provider != nil {
		return b.provider.GetQuotedStringValue(s)
	}
	return quoteLiteral(s)
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// registration caches the capabilities of a converter, resolved once.
type registration struct {
	conv      Converter
	length    LengthDefiner
	precision PrecisionDefiner
	typed     TypeDefiner
}

func newRegistration(c Converter) registration {
	r := registration{conv: c}
	r.length, _ = c.(LengthDefiner)
	r.precision, _ = c.(PrecisionDefiner)
	r.typed, _ = c.(TypeDefiner)
	return r
}

func (r registration) definition(t reflect.Type, length, scale *int) string {
	switch {
	case r.precision != nil:
		return r.precision.PrecisionDefinition(length, scale)
	case r.length != nil:
		return r.length.LengthDefinition(length)
	case r.typed != nil:
		return r.typed.TypeDefinition(t, length)
	}
	return r.conv.ColumnDefinition()
}

func converterName(c Converter) string {
	t := reflect.TypeOf(c)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
