package schema

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Introspector supplies the catalog queries of one database engine. Each
// query takes the resolved schema name as its only argument.
type Introspector interface {
	SchemaName(input string) string
	TablesQuery() string
	ColumnsQuery() string
	ForeignKeysQuery() string
	NormalizeType(sqlType string) string
}

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Analyze reads the live schema into model definitions, sorted in dependency order.
func Analyze(ctx context.Context, db Querier, in Introspector, schemaName string) ([]*ModelDefinition, error) {
	target := in.SchemaName(schemaName)

	// Keys are upper-cased: Oracle reports identifiers in upper case.
	byName := make(map[string]*ModelDefinition)
	var models []*ModelDefinition

	rows, err := db.QueryContext(ctx, in.TablesQuery(), target)
	if err != nil {
		return nil, errors.Wrap(err, "query tables")
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan table name")
		}
		m := &ModelDefinition{Name: name}
		byName[strings.ToUpper(name)] = m
		models = append(models, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate tables")
	}

	if err := analyzeColumns(ctx, db, in, target, byName); err != nil {
		return nil, err
	}
	if err := analyzeForeignKeys(ctx, db, in, target, byName); err != nil {
		return nil, err
	}

	for _, m := range models {
		var pk []string
		for _, f := range m.Fields {
			if f.IsPrimaryKey {
				pk = append(pk, f.Name)
			}
		}
		if len(pk) > 1 {
			m.CompositePrimaryKey = pk
		}
	}
	return SortByDependencies(models), nil
}

func analyzeColumns(ctx context.Context, db Querier, in Introspector, target string, byName map[string]*ModelDefinition) error {
	rows, err := db.QueryContext(ctx, in.ColumnsQuery(), target)
	if err != nil {
		return errors.Wrap(err, "query columns")
	}
	defer rows.Close()

	for rows.Next() {
		var tName, cName, dType, cType, cLen, isNull, cKey, extra, isUnique, comment sql.NullString
		if err := rows.Scan(&tName, &cName, &dType, &cType, &cLen, &isNull, &cKey, &extra, &isUnique, &comment); err != nil {
			return errors.Wrapf(err, "scan column (table: %s)", tName.String)
		}
		if !tName.Valid || !cName.Valid {
			continue
		}
		m, ok := byName[strings.ToUpper(tName.String)]
		if !ok {
			continue
		}

		extraLower := strings.ToLower(extra.String)
		nullable := isNull.String == "YES" || isNull.String == "Y"
		f := &FieldDefinition{
			Name:               cName.String,
			IsNullable:         nullable,
			IsPrimaryKey:       strings.Contains(cKey.String, "PRI"),
			IsUniqueConstraint: strings.Contains(isUnique.String, "UNIQUE"),
			AutoIncrement: strings.Contains(extraLower, "auto_increment") ||
				strings.Contains(extraLower, "identity") ||
				strings.Contains(extraLower, "nextval"),
			Comment: comment.String,
		}
		typ := TypeForSQL(in.NormalizeType(dType.String))
		if nullable {
			typ = reflect.PointerTo(typ)
		}
		f.FieldType = typ

		if cLen.Valid && cLen.String != "" {
			var length int
			if _, err := fmt.Sscanf(cLen.String, "%d", &length); err != nil {
				var fLength float64
				if _, err := fmt.Sscanf(cLen.String, "%f", &fLength); err == nil {
					length = int(fLength)
				}
			}
			if length > 0 {
				f.FieldLength = &length
			}
		}
		m.Fields = append(m.Fields, f)
	}
	return errors.Wrap(rows.Err(), "iterate columns")
}

func analyzeForeignKeys(ctx context.Context, db Querier, in Introspector, target string, byName map[string]*ModelDefinition) error {
	rows, err := db.QueryContext(ctx, in.ForeignKeysQuery(), target)
	if err != nil {
		return errors.Wrap(err, "query foreign keys")
	}
	defer rows.Close()

	for rows.Next() {
		var tName, cConst, cName, rTable, rCol sql.NullString
		if err := rows.Scan(&tName, &cConst, &cName, &rTable, &rCol); err != nil {
			return errors.Wrap(err, "scan foreign key")
		}
		if !tName.Valid || !rTable.Valid || strings.EqualFold(tName.String, rTable.String) {
			continue
		}
		m, ok := byName[strings.ToUpper(tName.String)]
		if !ok {
			continue
		}
		// References outside the analyzed schema are ignored.
		ref, ok := byName[strings.ToUpper(rTable.String)]
		if !ok {
			continue
		}
		f := m.Field(cName.String)
		if f == nil {
			continue
		}
		f.ForeignKey = &ForeignKeyConstraint{References: ref, RefModel: ref.Name, Name: cConst.String}
	}
	return errors.Wrap(rows.Err(), "iterate foreign keys")
}

// SortByDependencies orders models so that referenced models come first.
// Cycles are broken by a score favouring models with fewer unsatisfied
// references that take part in a cycle.
func SortByDependencies(models []*ModelDefinition) []*ModelDefinition {
	byName := make(map[string]*ModelDefinition, len(models))
	deps := make(map[string][]string, len(models))
	for _, m := range models {
		byName[m.Name] = m
	}
	for _, m := range models {
		for _, d := range m.Dependencies() {
			// Only known models constrain the order.
			if _, ok := byName[d]; ok {
				deps[m.Name] = append(deps[m.Name], d)
			}
		}
	}

	sorted := make([]*ModelDefinition, 0, len(models))
	processed := make(map[string]bool, len(models))

	for len(sorted) < len(models) {
		added := false
		for _, m := range models {
			if processed[m.Name] {
				continue
			}
			ready := true
			for _, d := range deps[m.Name] {
				if !processed[d] {
					ready = false
					break
				}
			}
			if ready {
				sorted = append(sorted, m)
				processed[m.Name] = true
				added = true
			}
		}
		if added {
			continue
		}

		var best *ModelDefinition
		bestScore := -999999
		for _, m := range models {
			if processed[m.Name] {
				continue
			}
			score := 0
			circular := false
			for _, d := range deps[m.Name] {
				if processed[d] {
					continue
				}
				score -= 100
				for _, back := range deps[d] {
					if back == m.Name {
						circular = true
					}
				}
			}
			if circular {
				score += 500
			}
			if score > bestScore || (score == bestScore && (best == nil || m.Name > best.Name)) {
				bestScore = score
				best = m
			}
		}
		if best == nil {
			break
		}
		sorted = append(sorted, best)
		processed[best.Name] = true
		zap.L().Debug("breaking circular dependency", zap.String("model", best.Name), zap.Int("score", bestScore))
	}
	return sorted
}
