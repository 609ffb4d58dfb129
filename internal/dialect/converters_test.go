package dialect_test

import (
	"math"
	"reflect"
	"testing"
	"time"

	"dialectkit/internal/dialect"
	"dialectkit/internal/schema"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type status string

type priority int16

type address struct {
	Street string `json:"street"`
	Zip    string `json:"zip"`
}

func roundTrip[T any](t *testing.T, p *dialect.Provider, v T) T {
	t.Helper()
	typ := reflect.TypeFor[T]()
	dbv, err := p.ToDbValue(v, typ)
	require.NoError(t, err)
	out, err := p.FromDbValue(dbv, typ)
	require.NoError(t, err)
	got, ok := out.(T)
	require.Truef(t, ok, "FromDbValue returned %T for %s", out, typ)
	return got
}

func TestRoundTrip(t *testing.T) {
	gofakeit.Seed(42)
	for _, p := range providers() {
		t.Run(p.Name(), func(t *testing.T) {
			for _, s := range []string{"", gofakeit.Sentence(8), "O'Brien"} {
				assert.Equal(t, s, roundTrip(t, p, s))
			}
			for _, n := range []int64{math.MinInt64, -1, 0, math.MaxInt64} {
				assert.Equal(t, n, roundTrip(t, p, n))
			}
			for _, n := range []int8{math.MinInt8, math.MaxInt8} {
				assert.Equal(t, n, roundTrip(t, p, n))
			}
			for _, n := range []uint8{0, math.MaxUint8} {
				assert.Equal(t, n, roundTrip(t, p, n))
			}
			for _, n := range []int32{math.MinInt32, math.MaxInt32} {
				assert.Equal(t, n, roundTrip(t, p, n))
			}
			for _, n := range []int16{math.MinInt16, math.MaxInt16} {
				assert.Equal(t, n, roundTrip(t, p, n))
			}
			for _, n := range []uint16{0, math.MaxUint16} {
				assert.Equal(t, n, roundTrip(t, p, n))
			}
			assert.Equal(t, uint32(math.MaxUint32), roundTrip(t, p, uint32(math.MaxUint32)))
			for _, n := range []uint64{0, math.MaxInt64, math.MaxInt64 + 1, math.MaxUint64} {
				assert.Equal(t, n, roundTrip(t, p, n))
			}
			assert.Equal(t, uint(math.MaxUint), roundTrip(t, p, uint(math.MaxUint)))
			assert.True(t, roundTrip(t, p, true))
			assert.False(t, roundTrip(t, p, false))

			f := gofakeit.Float64Range(-1e6, 1e6)
			assert.Equal(t, f, roundTrip(t, p, f))
			assert.Equal(t, float32(1.5), roundTrip(t, p, float32(1.5)))

			d := decimal.RequireFromString("12345.678901")
			assert.True(t, d.Equal(roundTrip(t, p, d)))

			for _, tm := range []time.Time{
				time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC),
				gofakeit.Date().UTC(),
			} {
				assert.True(t, tm.Equal(roundTrip(t, p, tm)))
			}

			assert.Equal(t, 90*time.Minute, roundTrip(t, p, 90*time.Minute))
			assert.Equal(t, uuid.Nil, roundTrip(t, p, uuid.Nil))
			id := uuid.New()
			assert.Equal(t, id, roundTrip(t, p, id))

			b := []byte(gofakeit.LetterN(16))
			assert.Equal(t, b, roundTrip(t, p, b))

			assert.Equal(t, status("active"), roundTrip(t, p, status("active")))
			assert.Equal(t, priority(3), roundTrip(t, p, priority(3)))

			tags := map[string]any{"color": "red", "size": float64(2)}
			assert.Equal(t, tags, roundTrip(t, p, tags))
			addr := address{Street: gofakeit.Street(), Zip: gofakeit.Zip()}
			assert.Equal(t, addr, roundTrip(t, p, addr))
		})
	}
}

func TestToDbValue_Nil(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	var s *string

	v, err := p.ToDbValue(nil, reflect.TypeFor[string]())
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = p.ToDbValue(s, nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = p.FromDbValue(nil, reflect.TypeFor[int]())
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestFromDbValue_Pointer(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	v, err := p.FromDbValue(int64(7), reflect.TypeFor[*int32]())
	require.NoError(t, err)
	require.IsType(t, (*int32)(nil), v)
	assert.Equal(t, int32(7), *v.(*int32))
}

func TestFromDbValue_Overflow(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	_, err := p.FromDbValue(int64(300), reflect.TypeFor[int8]())
	assert.Error(t, err)
	_, err = p.FromDbValue(int64(-1), reflect.TypeFor[uint16]())
	assert.Error(t, err)
}

func TestRegisterConverter_Replaces(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	typ := reflect.TypeFor[string]()
	old := p.GetConverter(typ)
	require.NotNil(t, old)
	assert.Same(t, p, old.Provider())

	next := &dialect.StringConverter{StringLength: 40, TypeName: "NVARCHAR", MaxDefinition: "NTEXT"}
	require.NoError(t, p.RegisterConverter(typ, next))

	assert.Same(t, next, p.GetConverter(typ))
	assert.Same(t, p, next.Provider())
	assert.Nil(t, old.Provider(), "replaced converter is detached")

	def, err := p.ColumnTypeDefinition(typ, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "NVARCHAR(40)", def)
}

func TestRegisterConverter_MovesBetweenProviders(t *testing.T) {
	a := dialect.New(dialect.Dialect{})
	b := dialect.New(dialect.Dialect{})
	c := &dialect.IntegerConverter{Definition: "NUMERIC(9)"}

	require.NoError(t, dialect.Register[int32](a, c))
	require.NoError(t, dialect.Register[int32](b, c))

	assert.Same(t, b, c.Provider())
	assert.Same(t, c, b.GetConverter(reflect.TypeFor[int32]()))
	assert.Nil(t, a.GetConverter(reflect.TypeFor[int32]()), "the previous provider loses the mapping")
	assert.IsType(t, &dialect.ValueTypeConverter{}, a.GetConverterBestMatch(reflect.TypeFor[int32]()),
		"int32 falls back to the value converter on the previous provider")
}

func TestUnsignedBeyondInt64(t *testing.T) {
	for _, p := range providers() {
		v, err := p.ToDbValue(uint64(math.MaxUint64), reflect.TypeFor[uint64]())
		require.NoError(t, err, p.Name())
		assert.Equal(t, "18446744073709551615", v, p.Name())

		v, err = p.ToDbValue(uint64(42), reflect.TypeFor[uint64]())
		require.NoError(t, err, p.Name())
		assert.Equal(t, int64(42), v, p.Name())

		s, err := p.GetQuotedValue(uint64(math.MaxUint64), nil)
		require.NoError(t, err, p.Name())
		assert.Equal(t, "18446744073709551615", s, p.Name())

		_, err = p.FromDbValue("18446744073709551615", reflect.TypeFor[int64]())
		assert.Error(t, err, p.Name())
	}
}

func TestRowVersion_HighBit(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	f := &schema.FieldDefinition{Name: "version", FieldType: reflect.TypeFor[uint64](), IsRowVersion: true}
	var u uint64 = 1<<63 + 5

	v, err := p.FieldToDbValue(f, u)
	require.NoError(t, err)
	assert.Equal(t, "9223372036854775813", v, "no wrap to a negative int64")

	back, err := p.FieldFromDbValue(f, v)
	require.NoError(t, err)
	assert.Equal(t, u, back)
}

func TestRegisterConverter_Errors(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	assert.ErrorIs(t, p.RegisterConverter(reflect.TypeFor[string](), nil), dialect.ErrConfiguration)
	assert.ErrorIs(t, p.RegisterConverter(nil, &dialect.BoolConverter{}), dialect.ErrConfiguration)
}

func TestRemoveConverter(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	typ := reflect.TypeFor[float32]()
	c := p.GetConverter(typ)
	p.RemoveConverter(typ)
	p.RemoveConverter(typ)

	assert.Nil(t, p.GetConverter(typ))
	assert.Nil(t, c.Provider())
}

func TestGetConverter_StripsPointer(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	assert.Same(t, p.GetConverter(reflect.TypeFor[int64]()), p.GetConverter(reflect.TypeFor[*int64]()))
}

func TestGetConverterBestMatch_Fallbacks(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	assert.IsType(t, &dialect.EnumConverter{}, p.GetConverterBestMatch(reflect.TypeFor[status]()))
	assert.IsType(t, &dialect.EnumConverter{}, p.GetConverterBestMatch(reflect.TypeFor[*priority]()))
	assert.IsType(t, &dialect.ReferenceTypeConverter{}, p.GetConverterBestMatch(reflect.TypeFor[map[string]any]()))
	assert.IsType(t, &dialect.ReferenceTypeConverter{}, p.GetConverterBestMatch(reflect.TypeFor[[]string]()))
	assert.IsType(t, &dialect.ValueTypeConverter{}, p.GetConverterBestMatch(reflect.TypeFor[address]()))
	assert.IsType(t, &dialect.BytesConverter{}, p.GetConverterBestMatch(reflect.TypeFor[[]byte]()))
}

func TestGetFieldConverter_RowVersion(t *testing.T) {
	for _, p := range providers() {
		f := &schema.FieldDefinition{Name: "version", FieldType: reflect.TypeFor[uint64](), IsRowVersion: true}
		assert.IsType(t, &dialect.RowVersionConverter{}, p.GetFieldConverter(f), p.Name())

		f.IsRowVersion = false
		assert.IsType(t, &dialect.IntegerConverter{}, p.GetFieldConverter(f), p.Name())
	}
}

func TestColumnTypeDefinition(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	ten, two := 10, 2
	big := dialect.MaxTextLength

	tests := []struct {
		typ    reflect.Type
		length *int
		scale  *int
		want   string
	}{
		{reflect.TypeFor[string](), nil, nil, "VARCHAR(255)"},
		{reflect.TypeFor[string](), &ten, nil, "VARCHAR(10)"},
		{reflect.TypeFor[string](), &big, nil, "TEXT"},
		{reflect.TypeFor[decimal.Decimal](), nil, nil, "DECIMAL(38,6)"},
		{reflect.TypeFor[decimal.Decimal](), &ten, &two, "DECIMAL(10,2)"},
		{reflect.TypeFor[*int32](), nil, nil, "INTEGER"},
		{reflect.TypeFor[status](), &ten, nil, "VARCHAR(10)"},
		{reflect.TypeFor[priority](), nil, nil, "INTEGER"},
		{reflect.TypeFor[map[string]any](), nil, nil, "TEXT"},
		{reflect.TypeFor[address](), nil, nil, "VARCHAR(255)"},
	}
	for _, tt := range tests {
		got, err := p.ColumnTypeDefinition(tt.typ, tt.length, tt.scale)
		require.NoError(t, err, tt.typ)
		assert.Equal(t, tt.want, got, tt.typ)
	}
}

func TestColumnTypeDefinition_MissingDefinition(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	require.NoError(t, dialect.Register[bool](p, &dialect.BoolConverter{}))
	_, err := p.ColumnTypeDefinition(reflect.TypeFor[bool](), nil, nil)
	assert.ErrorIs(t, err, dialect.ErrConfiguration)
}

func TestGetQuotedValue(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	tests := []struct {
		v    any
		want string
	}{
		{nil, "NULL"},
		{(*int)(nil), "NULL"},
		{"it's", "'it''s'"},
		{42, "42"},
		{true, "true"},
		{status("on"), "'on'"},
		{priority(2), "2"},
		{time.Date(2024, 2, 29, 13, 4, 5, 0, time.UTC), "'2024-02-29 13:04:05.000'"},
		{[]byte{0xca, 0xfe}, "X'cafe'"},
	}
	for _, tt := range tests {
		got, err := p.GetQuotedValue(tt.v, nil)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	mysql := dialect.NewMySQL()
	got, err := mysql.GetQuotedValue(`C:\temp`, nil)
	require.NoError(t, err)
	assert.Equal(t, `'C:\\temp'`, got)
}

func TestGetQuotedValue_EnumIgnoresDeclaredType(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	got, err := p.GetQuotedValue(priority(4), reflect.TypeFor[string]())
	require.NoError(t, err)
	assert.Equal(t, "4", got)
}
