package dialect

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"dialectkit/internal/exec"
)

// StringConverter stores strings as VARCHAR(n), or as the max type for
// MaxTextLength.
type StringConverter struct {
	ConverterBase
	StringLength  int
	TypeName      string
	MaxDefinition string
}

func NewStringConverter() *StringConverter {
	return &StringConverter{StringLength: 255, TypeName: "VARCHAR", MaxDefinition: "TEXT"}
}

func (c *StringConverter) ColumnDefinition() string { return c.LengthDefinition(nil) }

func (c *StringConverter) LengthDefinition(length *int) string {
	n := c.StringLength
	if length != nil {
		n = *length
	}
	if n <= 0 || n >= MaxTextLength {
		return c.MaxDefinition
	}
	return fmt.Sprintf("%s(%d)", c.TypeName, n)
}

func (c *StringConverter) InitDbParam(p *exec.Param, _ reflect.Type) {
	p.Size = c.StringLength
}

func (c *StringConverter) ToDbValue(_ reflect.Type, v any) (any, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case fmt.Stringer:
		return s.String(), nil
	}
	return fmt.Sprint(v), nil
}

func (c *StringConverter) FromDbValue(t reflect.Type, v any) (any, error) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	case time.Time:
		s = x.Format(time.RFC3339Nano)
	default:
		s = fmt.Sprint(v)
	}
	return reflect.ValueOf(s).Convert(t).Interface(), nil
}

func (c *StringConverter) ToQuotedString(t reflect.Type, v any) (string, error) {
	s, err := c.ToDbValue(t, v)
	if err != nil {
		return "", err
	}
	return c.quote(s.(string)), nil
}

// BoolConverter stores booleans natively, or as 1/0 when AsInteger is set.
type BoolConverter struct {
	ConverterBase
	Definition string
	AsInteger  bool
}

func (c *BoolConverter) ColumnDefinition() string { return c.Definition }

func (c *BoolConverter) ToDbValue(_ reflect.Type, v any) (any, error) {
	b, err := toBool(v)
	if err != nil {
		return nil, err
	}
	if c.AsInteger {
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	}
	return b, nil
}

func (c *BoolConverter) FromDbValue(t reflect.Type, v any) (any, error) {
	b, err := toBool(v)
	if err != nil {
		return nil, err
	}
	return reflect.ValueOf(b).Convert(t).Interface(), nil
}

func (c *BoolConverter) ToQuotedString(_ reflect.Type, v any) (string, error) {
	b, err := toBool(v)
	if err != nil {
		return "", err
	}
	if c.AsInteger {
		if b {
			return "1", nil
		}
		return "0", nil
	}
	if c.provider != nil {
		return c.provider.SqlBool(b), nil
	}
	return strconv.FormatBool(b), nil
}

// IntegerConverter serves every sized integer type. Values travel as int64;
// unsigned values above MaxInt64 travel as their decimal text.
type IntegerConverter struct {
	ConverterBase
	Definition string
}

func (c *IntegerConverter) ColumnDefinition() string { return c.Definition }

func (c *IntegerConverter) ToDbValue(t reflect.Type, v any) (any, error) {
	if isUintKind(t.Kind()) {
		u, err := toUint64(v)
		if err != nil {
			return nil, err
		}
		return unsignedDbValue(u), nil
	}
	return toInt64(v)
}

// unsignedDbValue keeps u an int64 while it fits; database/sql rejects
// uint64 values with the high bit set.
func unsignedDbValue(u uint64) any {
	if u > math.MaxInt64 {
		return strconv.FormatUint(u, 10)
	}
	return int64(u)
}

func (c *IntegerConverter) FromDbValue(t reflect.Type, v any) (any, error) {
	if isUintKind(t.Kind()) {
		u, err := toUint64(v)
		if err != nil {
			return nil, err
		}
		out := reflect.New(t).Elem()
		if out.OverflowUint(u) {
			return nil, errors.Errorf("%d overflows %s", u, t)
		}
		out.SetUint(u)
		return out.Interface(), nil
	}
	n, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	return intOf(t, n)
}

func (c *IntegerConverter) ToQuotedString(t reflect.Type, v any) (string, error) {
	if isUintKind(t.Kind()) {
		u, err := toUint64(v)
		if err != nil {
			return "", err
		}
		return strconv.FormatUint(u, 10), nil
	}
	n, err := toInt64(v)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n, 10), nil
}

// FloatConverter serves float32 and float64. Values travel as float64.
type FloatConverter struct {
	ConverterBase
	Definition string
}

func (c *FloatConverter) ColumnDefinition() string { return c.Definition }

func (c *FloatConverter) ToDbValue(_ reflect.Type, v any) (any, error) {
	return toFloat64(v)
}

func (c *FloatConverter) FromDbValue(t reflect.Type, v any) (any, error) {
	f, err := toFloat64(v)
	if err != nil {
		return nil, err
	}
	out := reflect.New(t).Elem()
	if out.OverflowFloat(f) {
		return nil, errors.Errorf("%v overflows %s", f, t)
	}
	out.SetFloat(f)
	return out.Interface(), nil
}

func (c *FloatConverter) ToQuotedString(t reflect.Type, v any) (string, error) {
	f, err := toFloat64(v)
	if err != nil {
		return "", err
	}
	bits := 64
	if t != nil && t.Kind() == reflect.Float32 {
		bits = 32
	}
	return strconv.FormatFloat(f, 'g', -1, bits), nil
}

// DecimalConverter stores decimal.Decimal as DECIMAL(precision,scale).
// Values travel as their canonical string.
type DecimalConverter struct {
	ConverterBase
	TypeName  string
	Precision int
	Scale     int
}

func NewDecimalConverter() *DecimalConverter {
	return &DecimalConverter{TypeName: "DECIMAL", Precision: 38, Scale: 6}
}

func (c *DecimalConverter) ColumnDefinition() string { return c.PrecisionDefinition(nil, nil) }

func (c *DecimalConverter) PrecisionDefinition(precision, scale *int) string {
	p, s := c.Precision, c.Scale
	if precision != nil {
		p = *precision
	}
	if scale != nil {
		s = *scale
	}
	return fmt.Sprintf("%s(%d,%d)", c.TypeName, p, s)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch d := v.(type) {
	case decimal.Decimal:
		return d, nil
	case string:
		return decimal.NewFromString(strings.TrimSpace(d))
	case []byte:
		return decimal.NewFromString(strings.TrimSpace(string(d)))
	case float64:
		return decimal.NewFromFloat(d), nil
	case float32:
		return decimal.NewFromFloat32(d), nil
	}
	n, err := toInt64(v)
	if err != nil {
		return decimal.Decimal{}, errors.Errorf("cannot convert %T to a decimal", v)
	}
	return decimal.NewFromInt(n), nil
}

func (c *DecimalConverter) ToDbValue(_ reflect.Type, v any) (any, error) {
	d, err := toDecimal(v)
	if err != nil {
		return nil, err
	}
	return d.String(), nil
}

func (c *DecimalConverter) FromDbValue(_ reflect.Type, v any) (any, error) {
	return toDecimal(v)
}

func (c *DecimalConverter) ToQuotedString(_ reflect.Type, v any) (string, error) {
	d, err := toDecimal(v)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// TimeConverter stores time.Time natively; drivers bind it directly.
type TimeConverter struct {
	ConverterBase
	Definition string
}

func (c *TimeConverter) ColumnDefinition() string { return c.Definition }

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case int64:
		return time.Unix(t, 0).UTC(), nil
	}
	s, ok := text(v)
	if !ok {
		return time.Time{}, errors.Errorf("cannot convert %T to a time", v)
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("%q is not a recognized time", s)
}

func (c *TimeConverter) ToDbValue(_ reflect.Type, v any) (any, error) {
	return toTime(v)
}

func (c *TimeConverter) FromDbValue(_ reflect.Type, v any) (any, error) {
	return toTime(v)
}

func (c *TimeConverter) ToQuotedString(_ reflect.Type, v any) (string, error) {
	t, err := toTime(v)
	if err != nil {
		return "", err
	}
	return c.quote(t.UTC().Format("2006-01-02 15:04:05.000")), nil
}

// DurationConverter stores time.Duration as integer nanoseconds.
type DurationConverter struct {
	ConverterBase
	Definition string
}

func (c *DurationConverter) ColumnDefinition() string { return c.Definition }

func toDuration(v any) (time.Duration, error) {
	if d, ok := v.(time.Duration); ok {
		return d, nil
	}
	if s, ok := text(v); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, nil
		}
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(n), nil
}

func (c *DurationConverter) ToDbValue(_ reflect.Type, v any) (any, error) {
	d, err := toDuration(v)
	if err != nil {
		return nil, err
	}
	return int64(d), nil
}

func (c *DurationConverter) FromDbValue(_ reflect.Type, v any) (any, error) {
	return toDuration(v)
}

func (c *DurationConverter) ToQuotedString(_ reflect.Type, v any) (string, error) {
	d, err := toDuration(v)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(int64(d), 10), nil
}

// GUIDConverter stores uuid.UUID in its 36 character text form.
type GUIDConverter struct {
	ConverterBase
	Definition string
}

func (c *GUIDConverter) ColumnDefinition() string { return c.Definition }

func toUUID(v any) (uuid.UUID, error) {
	switch u := v.(type) {
	case uuid.UUID:
		return u, nil
	case [16]byte:
		return uuid.UUID(u), nil
	case []byte:
		if len(u) == 16 {
			return uuid.FromBytes(u)
		}
		return uuid.ParseBytes(u)
	case string:
		return uuid.Parse(u)
	}
	return uuid.Nil, errors.Errorf("cannot convert %T to a uuid", v)
}

func (c *GUIDConverter) ToDbValue(_ reflect.Type, v any) (any, error) {
	u, err := toUUID(v)
	if err != nil {
		return nil, err
	}
	return u.String(), nil
}

func (c *GUIDConverter) FromDbValue(_ reflect.Type, v any) (any, error) {
	return toUUID(v)
}

func (c *GUIDConverter) ToQuotedString(_ reflect.Type, v any) (string, error) {
	u, err := toUUID(v)
	if err != nil {
		return "", err
	}
	return c.quote(u.String()), nil
}

// BytesConverter stores []byte as a binary column. HexFormat renders the hex
// digits as a literal.
type BytesConverter struct {
	ConverterBase
	Definition string
	HexFormat  string
}

func (c *BytesConverter) ColumnDefinition() string { return c.Definition }

func toBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return append([]byte(nil), b...), nil
	case string:
		return []byte(b), nil
	}
	return nil, errors.Errorf("cannot convert %T to bytes", v)
}

func (c *BytesConverter) ToDbValue(_ reflect.Type, v any) (any, error) { return toBytes(v) }

func (c *BytesConverter) FromDbValue(_ reflect.Type, v any) (any, error) { return toBytes(v) }

func (c *BytesConverter) ToQuotedString(_ reflect.Type, v any) (string, error) {
	b, err := toBytes(v)
	if err != nil {
		return "", err
	}
	format := c.HexFormat
	if format == "" {
		format = "X'%s'"
	}
	return fmt.Sprintf(format, hex.EncodeToString(b)), nil
}

// EnumConverter is the fallback for defined string and integer types.
// String kinds use the provider's string column type, integer kinds IntDefinition.
type EnumConverter struct {
	ConverterBase
	IntDefinition string
}

func (c *EnumConverter) ColumnDefinition() string {
	return c.TypeDefinition(reflect.TypeFor[string](), nil)
}

func (c *EnumConverter) TypeDefinition(t reflect.Type, length *int) string {
	if isIntKind(t.Kind()) {
		return c.IntDefinition
	}
	if c.provider != nil {
		if sc := c.provider.StringConverter(); sc != nil {
			return sc.LengthDefinition(length)
		}
	}
	return NewStringConverter().LengthDefinition(length)
}

func (c *EnumConverter) ToDbValue(_ reflect.Type, v any) (any, error) {
	rv := reflect.ValueOf(v)
	switch {
	case rv.Kind() == reflect.String:
		return rv.String(), nil
	case isIntKind(rv.Kind()):
		return toInt64(v)
	}
	return nil, errors.Errorf("%T is not an enumeration", v)
}

func (c *EnumConverter) FromDbValue(t reflect.Type, v any) (any, error) {
	if t.Kind() == reflect.String {
		s, ok := text(v)
		if !ok {
			s = fmt.Sprint(v)
		}
		return reflect.ValueOf(s).Convert(t).Interface(), nil
	}
	n, err := toInt64(v)
	if err != nil {
		return nil, err
	}
	return intOf(t, n)
}

func (c *EnumConverter) ToQuotedString(t reflect.Type, v any) (string, error) {
	dbv, err := c.ToDbValue(t, v)
	if err != nil {
		return "", err
	}
	if s, ok := dbv.(string); ok {
		return c.quote(s), nil
	}
	return strconv.FormatInt(dbv.(int64), 10), nil
}

// jsonConverter serializes values as JSON text.
type jsonConverter struct {
	ConverterBase
}

func (c *jsonConverter) ToDbValue(t reflect.Type, v any) (any, error) {
	if s, ok := v.(string); ok && (t == nil || t.Kind() != reflect.String) {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "serialize %T", v)
	}
	return string(b), nil
}

func (c *jsonConverter) FromDbValue(t reflect.Type, v any) (any, error) {
	if rv := reflect.ValueOf(v); rv.Type().AssignableTo(t) && rv.Kind() != reflect.String {
		return v, nil
	}
	s, ok := text(v)
	if !ok {
		return nil, errors.Errorf("cannot deserialize %T into %s", v, t)
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal([]byte(s), ptr.Interface()); err != nil {
		return nil, errors.Wrapf(err, "deserialize %s", t)
	}
	return ptr.Elem().Interface(), nil
}

func (c *jsonConverter) ToQuotedString(t reflect.Type, v any) (string, error) {
	s, err := c.ToDbValue(t, v)
	if err != nil {
		return "", err
	}
	return c.quote(s.(string)), nil
}

// ReferenceTypeConverter is the fallback for maps, slices and interfaces.
type ReferenceTypeConverter struct {
	jsonConverter
	Definition string
}

func (c *ReferenceTypeConverter) ColumnDefinition() string { return c.Definition }

func (c *ReferenceTypeConverter) LengthDefinition(length *int) string {
	if length == nil {
		return c.Definition
	}
	return stringDefinition(c.provider, length)
}

// ValueTypeConverter is the fallback for structs and other value types.
type ValueTypeConverter struct {
	jsonConverter
}

func (c *ValueTypeConverter) ColumnDefinition() string { return stringDefinition(c.provider, nil) }

func (c *ValueTypeConverter) LengthDefinition(length *int) string {
	return stringDefinition(c.provider, length)
}

func stringDefinition(p *Provider, length *int) string {
	if p != nil {
		if sc := p.StringConverter(); sc != nil {
			return sc.LengthDefinition(length)
		}
	}
	return NewStringConverter().LengthDefinition(length)
}

// RowVersionConverter serves row-version fields. Binary stores the version
// as 8 big-endian bytes.
type RowVersionConverter struct {
	ConverterBase
	Definition string
	Binary     bool
}

func (c *RowVersionConverter) ColumnDefinition() string { return c.Definition }

func toVersion(v any) (uint64, error) {
	if b, ok := v.([]byte); ok && len(b) == 8 {
		return binary.BigEndian.Uint64(b), nil
	}
	return toUint64(v)
}

func (c *RowVersionConverter) ToDbValue(_ reflect.Type, v any) (any, error) {
	u, err := toVersion(v)
	if err != nil {
		return nil, err
	}
	if c.Binary {
		return binary.BigEndian.AppendUint64(nil, u), nil
	}
	return unsignedDbValue(u), nil
}

func (c *RowVersionConverter) FromDbValue(t reflect.Type, v any) (any, error) {
	u, err := toVersion(v)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return u, nil
	}
	if isUintKind(t.Kind()) {
		out := reflect.New(t).Elem()
		if out.OverflowUint(u) {
			return nil, errors.Errorf("%d overflows %s", u, t)
		}
		out.SetUint(u)
		return out.Interface(), nil
	}
	if u > math.MaxInt64 {
		return nil, errors.Errorf("%d overflows %s", u, t)
	}
	return intOf(t, int64(u))
}

func (c *RowVersionConverter) ToQuotedString(_ reflect.Type, v any) (string, error) {
	u, err := toVersion(v)
	if err != nil {
		return "", err
	}
	if c.Binary {
		return "0x" + hex.EncodeToString(binary.BigEndian.AppendUint64(nil, u)), nil
	}
	return strconv.FormatUint(u, 10), nil
}
