package dialect

import (
	"strconv"
	"strings"
)

// SqlLimit renders the paging clause. With neither argument it is empty, with
// only rows it is LIMIT rows; an offset without rows pages to MaxRows.
func (p *Provider) SqlLimit(offset, rows *int) string {
	if p.d.SqlLimit != nil {
		return p.d.SqlLimit(offset, rows)
	}
	return limitOffset(offset, rows)
}

func limitOffset(offset, rows *int) string {
	if offset == nil && rows == nil {
		return ""
	}
	if offset == nil {
		return "LIMIT " + strconv.Itoa(*rows)
	}
	n := MaxRows
	if rows != nil {
		n = *rows
	}
	return "LIMIT " + strconv.Itoa(n) + " OFFSET " + strconv.Itoa(*offset)
}

// offsetFetch is the OFFSET ... FETCH NEXT paging of sqlserver and oracle.
func offsetFetch(offset, rows *int) string {
	if offset == nil && rows == nil {
		return ""
	}
	o := 0
	if offset != nil {
		o = *offset
	}
	sql := "OFFSET " + strconv.Itoa(o) + " ROWS"
	if rows != nil {
		sql += " FETCH NEXT " + strconv.Itoa(*rows) + " ROWS ONLY"
	}
	return sql
}

var wildcardEscaper = strings.NewReplacer(`^`, `^^`, `\`, `^\`, `_`, `^_`, `%`, `^%`)

// EscapeWildcards escapes LIKE wildcards with ^; pair it with ESCAPE '^'.
func (p *Provider) EscapeWildcards(s string) string {
	return wildcardEscaper.Replace(s)
}

func (p *Provider) SqlConcat(args ...string) string {
	if p.d.SqlConcat != nil {
		return p.d.SqlConcat(args)
	}
	return "CONCAT(" + strings.Join(args, ", ") + ")"
}

func (p *Provider) SqlCast(expr, sqlType string) string {
	return "CAST(" + expr + " AS " + sqlType + ")"
}

func (p *Provider) SqlBool(b bool) string {
	if p.d.SqlBool != nil {
		return p.d.SqlBool(b)
	}
	if b {
		return "true"
	}
	return "false"
}

func (p *Provider) SqlRandom() string {
	if p.d.SqlRandom != "" {
		return p.d.SqlRandom
	}
	return "RAND()"
}
