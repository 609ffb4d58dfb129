package dialect

import (
	"context"
	"fmt"
	"strings"

	"dialectkit/internal/exec"
)

// Probe argument names, referenced in probe queries as @name.
const (
	argSchema   = "schemaName"
	argTable    = "tableName"
	argColumn   = "columnName"
	argSequence = "sequenceName"
)

type probeArg struct {
	name  string
	value string
}

// bindProbe rewrites the @name markers of query to the dialect's markers and
// binds only the arguments the query references.
func (p *Provider) bindProbe(cmd exec.Command, query string, args []probeArg) {
	cmd.ClearParams()
	for _, a := range args {
		marker := "@" + a.name
		if !strings.Contains(query, marker) {
			continue
		}
		name := p.paramString + a.name
		query = strings.ReplaceAll(query, marker, name)
		cmd.AddParam(&exec.Param{Name: name, Value: a.value, Size: len(a.value)})
	}
	cmd.SetText(query)
}

func (p *Provider) probeSchema(schemaName string) string {
	if schemaName == "" {
		return p.d.DefaultSchema
	}
	return p.naming.SchemaName(schemaName)
}

func (p *Provider) probeCount(ctx context.Context, conn exec.Conn, op, query string, args ...probeArg) (bool, error) {
	if query == "" {
		return false, unsupported(p, op)
	}
	n, err := exec.Run(ctx, p.filter, conn, func(ctx context.Context, cmd exec.Command) (int64, error) {
		p.bindProbe(cmd, query, args)
		v, err := cmd.ExecScalar(ctx)
		if err != nil || v == nil {
			return 0, err
		}
		return exec.ScalarInt64(v)
	})
	return n > 0, err
}

// DoesSchemaExist reports whether schemaName exists. Absence is (false, nil);
// an engine without the probe returns an ErrUnsupported error.
func (p *Provider) DoesSchemaExist(ctx context.Context, conn exec.Conn, schemaName string) (bool, error) {
	return p.probeCount(ctx, conn, "DoesSchemaExist", p.d.Probes.Schema,
		probeArg{argSchema, p.probeSchema(schemaName)})
}

// DoesTableExist reports whether table exists in schemaName, the default
// schema when empty.
func (p *Provider) DoesTableExist(ctx context.Context, conn exec.Conn, table, schemaName string) (bool, error) {
	return p.probeCount(ctx, conn, "DoesTableExist", p.d.Probes.Table,
		probeArg{argSchema, p.probeSchema(schemaName)},
		probeArg{argTable, p.naming.TableName(table)})
}

func (p *Provider) DoesColumnExist(ctx context.Context, conn exec.Conn, column, table, schemaName string) (bool, error) {
	return p.probeCount(ctx, conn, "DoesColumnExist", p.d.Probes.Column,
		probeArg{argSchema, p.probeSchema(schemaName)},
		probeArg{argTable, p.naming.TableName(table)},
		probeArg{argColumn, p.naming.ColumnName(column)})
}

func (p *Provider) DoesSequenceExist(ctx context.Context, conn exec.Conn, sequence, schemaName string) (bool, error) {
	return p.probeCount(ctx, conn, "DoesSequenceExist", p.d.Probes.Sequence,
		probeArg{argSchema, p.probeSchema(schemaName)},
		probeArg{argSequence, sequence})
}

// GetColumnDataType returns the catalog data type of a column; found is false
// when the column does not exist.
func (p *Provider) GetColumnDataType(ctx context.Context, conn exec.Conn, column, table, schemaName string) (dataType string, found bool, err error) {
	query := p.d.Probes.ColumnType
	if query == "" {
		return "", false, unsupported(p, "GetColumnDataType")
	}
	args := []probeArg{
		{argSchema, p.probeSchema(schemaName)},
		{argTable, p.naming.TableName(table)},
		{argColumn, p.naming.ColumnName(column)},
	}
	v, err := exec.Run(ctx, p.filter, conn, func(ctx context.Context, cmd exec.Command) (any, error) {
		p.bindProbe(cmd, query, args)
		return cmd.ExecScalar(ctx)
	})
	if err != nil || v == nil {
		return "", false, err
	}
	if s, ok := text(v); ok {
		return s, true, nil
	}
	return fmt.Sprint(v), true, nil
}

func (p *Provider) DoesSchemaExistAsync(ctx context.Context, conn exec.Conn, schemaName string) *exec.Future[bool] {
	return exec.Go(func() (bool, error) { return p.DoesSchemaExist(ctx, conn, schemaName) })
}

func (p *Provider) DoesTableExistAsync(ctx context.Context, conn exec.Conn, table, schemaName string) *exec.Future[bool] {
	return exec.Go(func() (bool, error) { return p.DoesTableExist(ctx, conn, table, schemaName) })
}

func (p *Provider) DoesColumnExistAsync(ctx context.Context, conn exec.Conn, column, table, schemaName string) *exec.Future[bool] {
	return exec.Go(func() (bool, error) { return p.DoesColumnExist(ctx, conn, column, table, schemaName) })
}

func (p *Provider) DoesSequenceExistAsync(ctx context.Context, conn exec.Conn, sequence, schemaName string) *exec.Future[bool] {
	return exec.Go(func() (bool, error) { return p.DoesSequenceExist(ctx, conn, sequence, schemaName) })
}

// ColumnType is the result of GetColumnDataTypeAsync.
type ColumnType struct {
	DataType string
	Found    bool
}

func (p *Provider) GetColumnDataTypeAsync(ctx context.Context, conn exec.Conn, column, table, schemaName string) *exec.Future[ColumnType] {
	return exec.Go(func() (ColumnType, error) {
		dt, found, err := p.GetColumnDataType(ctx, conn, column, table, schemaName)
		return ColumnType{DataType: dt, Found: found}, err
	})
}
