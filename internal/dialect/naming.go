package dialect

import (
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
	"github.com/pkg/errors"
)

// NamingStrategy maps logical schema, table and column names to physical
// identifiers. Implementations are pure.
type NamingStrategy interface {
	SchemaName(name string) string
	TableName(name string) string
	ColumnName(name string) string
}

// BaseNamingStrategy returns names unchanged.
type BaseNamingStrategy struct{}

func (BaseNamingStrategy) SchemaName(name string) string { return name }
func (BaseNamingStrategy) TableName(name string) string  { return name }
func (BaseNamingStrategy) ColumnName(name string) string { return name }

// LowercaseUnderscoreNamingStrategy maps OrderLine to order_line.
type LowercaseUnderscoreNamingStrategy struct{}

func (LowercaseUnderscoreNamingStrategy) SchemaName(name string) string { return snake(name) }
func (LowercaseUnderscoreNamingStrategy) TableName(name string) string  { return snake(name) }
func (LowercaseUnderscoreNamingStrategy) ColumnName(name string) string { return snake(name) }

// UpperCaseNamingStrategy maps OrderLine to ORDER_LINE.
type UpperCaseNamingStrategy struct{}

func (UpperCaseNamingStrategy) SchemaName(name string) string { return strings.ToUpper(snake(name)) }
func (UpperCaseNamingStrategy) TableName(name string) string  { return strings.ToUpper(snake(name)) }
func (UpperCaseNamingStrategy) ColumnName(name string) string { return strings.ToUpper(snake(name)) }

// PrefixNamingStrategy prepends fixed prefixes to the names produced by Inner.
type PrefixNamingStrategy struct {
	TablePrefix  string
	ColumnPrefix string
	Inner        NamingStrategy
}

func (s PrefixNamingStrategy) inner() NamingStrategy {
	if s.Inner == nil {
		return BaseNamingStrategy{}
	}
	return s.Inner
}

func (s PrefixNamingStrategy) SchemaName(name string) string { return s.inner().SchemaName(name) }

func (s PrefixNamingStrategy) TableName(name string) string {
	if name == "" {
		return name
	}
	return s.TablePrefix + s.inner().TableName(name)
}

func (s PrefixNamingStrategy) ColumnName(name string) string {
	if name == "" {
		return name
	}
	return s.ColumnPrefix + s.inner().ColumnName(name)
}

// PluralNamingStrategy pluralizes the table names produced by Inner.
type PluralNamingStrategy struct {
	Inner NamingStrategy
}

func (s PluralNamingStrategy) inner() NamingStrategy {
	if s.Inner == nil {
		return BaseNamingStrategy{}
	}
	return s.Inner
}

func (s PluralNamingStrategy) SchemaName(name string) string { return s.inner().SchemaName(name) }

func (s PluralNamingStrategy) TableName(name string) string {
	if name == "" {
		return name
	}
	return inflect.Pluralize(s.inner().TableName(name))
}

func (s PluralNamingStrategy) ColumnName(name string) string { return s.inner().ColumnName(name) }

// NamingStrategyByName resolves the configuration names base, snake, upper,
// prefix and plural. Plural and prefix apply on top of snake case.
func NamingStrategyByName(name, tablePrefix string) (NamingStrategy, error) {
	switch strings.ToLower(name) {
	case "", "base":
		return BaseNamingStrategy{}, nil
	case "snake":
		return LowercaseUnderscoreNamingStrategy{}, nil
	case "upper":
		return UpperCaseNamingStrategy{}, nil
	case "prefix":
		return PrefixNamingStrategy{TablePrefix: tablePrefix, Inner: LowercaseUnderscoreNamingStrategy{}}, nil
	case "plural":
		return PluralNamingStrategy{Inner: LowercaseUnderscoreNamingStrategy{}}, nil
	}
	return nil, errors.Wrapf(ErrConfiguration, "unknown naming strategy %q", name)
}

// snake converts CamelCase and mixed separators to lower snake case. Runs of
// capitals stay together: HTTPServer becomes http_server.
func snake(name string) string {
	if name == "" {
		return name
	}
	rs := []rune(name)
	var b strings.Builder
	for i, r := range rs {
		switch {
		case r == ' ' || r == '-':
			b.WriteByte('_')
			continue
		case unicode.IsUpper(r):
			if i > 0 && rs[i-1] != '_' && rs[i-1] != ' ' && rs[i-1] != '-' {
				prevLower := unicode.IsLower(rs[i-1]) || unicode.IsDigit(rs[i-1])
				nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
				if prevLower || (unicode.IsUpper(rs[i-1]) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
