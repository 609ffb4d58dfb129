package engine

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"dialectkit/internal/schema"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// defaultTextLength bounds strings of fields without a declared length, the
// size of the default VARCHAR definition.
const defaultTextLength = 255

var (
	typeUUID     = reflect.TypeFor[uuid.UUID]()
	typeDecimal  = reflect.TypeFor[decimal.Decimal]()
	typeTime     = reflect.TypeFor[time.Time]()
	typeDuration = reflect.TypeFor[time.Duration]()
	typeBytes    = reflect.TypeFor[[]byte]()
)

// Generator produces fake values typed for the Go type of a field. It is not
// safe for concurrent use; give each goroutine its own.
type Generator struct {
	faker *gofakeit.Faker
	now   time.Time

	// NullRatio is the share of NULLs produced for nullable fields.
	NullRatio float64
}

// NewGenerator returns a generator seeded with seed; 0 picks a random seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed), now: time.Now().UTC()}
}

// Value returns a value for f. Nullable fields may get nil.
func (g *Generator) Value(f *schema.FieldDefinition) any {
	t := f.ColumnType()
	if t.Kind() == reflect.Pointer {
		if g.NullRatio > 0 && g.faker.Float64Range(0, 1) < g.NullRatio {
			return nil
		}
		t = t.Elem()
	}
	meaning := schema.AnalyzeMeaning(f.FieldName(), f.Comment)
	colName := strings.ToLower(f.FieldName())
	return g.typed(t, f, colName, meaning)
}

func (g *Generator) typed(t reflect.Type, f *schema.FieldDefinition, colName, meaning string) any {
	switch t {
	case typeUUID:
		return uuid.MustParse(g.faker.UUID())
	case typeDecimal:
		scale := int32(2)
		if f.Scale != nil {
			scale = int32(*f.Scale)
		}
		lo, hi := 0.99, 9999.99
		// Stay within the integer digits of DECIMAL(length, scale).
		if f.FieldLength != nil && *f.FieldLength-int(scale) < 4 {
			lo, hi = 0.01, max(math.Pow10(*f.FieldLength-int(scale))-1, 0.99)
		}
		return decimal.NewFromFloat(g.faker.Price(lo, hi)).Round(scale)
	case typeTime:
		return g.faker.DateRange(g.now.AddDate(-1, 0, 0), g.now).Truncate(time.Second)
	case typeDuration:
		return time.Duration(g.faker.IntRange(1, 3600)) * time.Second
	case typeBytes:
		return []byte(g.faker.LetterN(16))
	}

	var v any
	switch t.Kind() {
	case reflect.String:
		v = g.text(colName, meaning, length(f))
	case reflect.Bool:
		v = g.faker.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v = g.integer(t, f, colName, meaning)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v = uint64(g.integer(t, f, colName, meaning))
	case reflect.Float32, reflect.Float64:
		v = g.faker.Price(0.99, 99.99)
	case reflect.Map:
		return map[string]any{g.faker.Word(): g.faker.Word()}
	case reflect.Slice:
		return []string{g.faker.Word(), g.faker.Word()}
	default:
		return nil
	}
	// Enumerations and other defined types take the generated underlying value.
	return reflect.ValueOf(v).Convert(t).Interface()
}

func length(f *schema.FieldDefinition) int {
	if f.FieldLength != nil && *f.FieldLength > 0 {
		return *f.FieldLength
	}
	return defaultTextLength
}

func (g *Generator) text(colName, meaning string, limit int) string {
	isID := strings.HasSuffix(colName, "id")
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(meaning, w) || strings.Contains(colName, w) {
				return true
			}
		}
		return false
	}

	switch {
	case has("year"):
		return truncate(fmt.Sprintf("%d", 2000+g.faker.Number(0, 25)), limit)
	case !isID && has("phone"):
		return truncate(g.faker.Phone(), limit)
	case !isID && has("email"):
		return truncate(g.faker.Email(), limit)
	case !isID && has("password"):
		return truncate(g.faker.Password(true, true, true, false, false, 12), limit)
	case !isID && has("first"):
		return truncate(g.faker.FirstName(), limit)
	case !isID && has("last"):
		return truncate(g.faker.LastName(), limit)
	case !isID && has("name"):
		return truncate(g.faker.Name(), limit)
	case !isID && has("address"):
		if strings.Contains(colName, "2") {
			return truncate(fmt.Sprintf("Apt %d", g.faker.Number(1, 999)), limit)
		}
		return truncate(g.faker.Street(), limit)
	case has("zipcode", "postal"):
		return truncate(g.faker.Zip(), limit)
	case strings.Contains(meaning, "yesno") || strings.Contains(colName, "active"):
		if g.faker.Bool() {
			return "Y"
		}
		return "N"
	case !isID && has("url"):
		return truncate(g.faker.URL(), limit)
	case !isID && (strings.Contains(meaning, "title") || strings.Contains(meaning, "subject")):
		return truncate(g.faker.Sentence(3), limit)
	case !isID && (strings.Contains(meaning, "description") || strings.Contains(meaning, "content") ||
		strings.Contains(meaning, "comment") || strings.Contains(meaning, "text")):
		return truncate(g.faker.Sentence(10), limit)
	case !isID && has("country"):
		return truncate(g.faker.Country(), limit)
	case !isID && has("city"):
		return truncate(g.faker.City(), limit)
	case !isID && has("state"):
		return truncate(g.faker.State(), limit)
	case !isID && has("company"):
		return truncate(g.faker.Company(), limit)
	}

	if limit < 20 {
		return truncate(g.faker.Word(), limit)
	}
	return truncate(g.faker.Sentence(5), limit)
}

func (g *Generator) integer(t reflect.Type, f *schema.FieldDefinition, colName, meaning string) int64 {
	if strings.Contains(colName, "active") || strings.Contains(colName, "enabled") ||
		strings.Contains(meaning, "yesno") || strings.HasPrefix(colName, "is_") {
		return int64(g.faker.Number(0, 1))
	}
	if strings.Contains(colName, "year") || strings.Contains(meaning, "year") {
		return int64(2000 + g.faker.Number(0, 25))
	}

	maxVal := int64(50000)
	if m := int64(maxOfKind(t.Kind())); m < maxVal {
		maxVal = m
	}
	// A declared length on an integer is its precision in digits.
	if f.FieldLength != nil && *f.FieldLength > 0 && *f.FieldLength < 10 {
		if limit := int64(math.Pow10(*f.FieldLength)) - 1; limit < maxVal {
			maxVal = max(limit, 9)
		}
	}
	return int64(g.faker.Number(1, int(maxVal)))
}

// maxOfKind is the largest value an integer kind holds, capped at MaxInt32.
func maxOfKind(k reflect.Kind) int {
	switch k {
	case reflect.Int8:
		return math.MaxInt8
	case reflect.Uint8:
		return math.MaxUint8
	case reflect.Int16:
		return math.MaxInt16
	case reflect.Uint16:
		return math.MaxUint16
	}
	return math.MaxInt32
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return s
}
