package dialect

import (
	"context"

	"dialectkit/internal/exec"
	"dialectkit/internal/schema"
)

// LastInsertIDSuffix is appended to an INSERT to select the generated key in
// the same batch.
func (p *Provider) LastInsertIDSuffix() (string, error) {
	if p.d.SelectIdentitySQL == "" {
		return "", unsupported(p, "GetLastInsertId")
	}
	return "; " + p.d.SelectIdentitySQL, nil
}

// GetLastInsertID selects the last identity generated on the session of
// conn. Pin conn to a transaction so the session is the inserting one.
func (p *Provider) GetLastInsertID(ctx context.Context, conn exec.Conn) (int64, error) {
	if p.d.SelectIdentitySQL == "" {
		return 0, unsupported(p, "GetLastInsertId")
	}
	return exec.Run(ctx, p.filter, conn, func(ctx context.Context, cmd exec.Command) (int64, error) {
		cmd.SetText(p.d.SelectIdentitySQL)
		v, err := cmd.ExecScalar(ctx)
		if err != nil {
			return 0, err
		}
		return exec.ScalarInt64(v)
	})
}

// ToIdentityInsertStatements renders the statements allowing (on) or
// forbidding explicit values in the identity column of m.
func (p *Provider) ToIdentityInsertStatements(m *schema.ModelDefinition, on bool) []string {
	if p.d.IdentityInsert == nil {
		return nil
	}
	return p.d.IdentityInsert(p, m, on)
}

// ToForeignKeyChecksStatements renders the statements enabling or disabling
// foreign key enforcement for models.
func (p *Provider) ToForeignKeyChecksStatements(models []*schema.ModelDefinition, enable bool) []string {
	if p.d.ForeignKeyChecks == nil {
		return nil
	}
	return p.d.ForeignKeyChecks(p, models, enable)
}

func (p *Provider) execAll(ctx context.Context, conn exec.Conn, stmts []string) error {
	for _, sql := range stmts {
		err := p.filter.Exec(ctx, conn, func(ctx context.Context, cmd exec.Command) error {
			cmd.SetText(sql)
			_, err := cmd.ExecNonQuery(ctx)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) EnableIdentityInsert(ctx context.Context, conn exec.Conn, m *schema.ModelDefinition) error {
	return p.execAll(ctx, conn, p.ToIdentityInsertStatements(m, true))
}

func (p *Provider) DisableIdentityInsert(ctx context.Context, conn exec.Conn, m *schema.ModelDefinition) error {
	return p.execAll(ctx, conn, p.ToIdentityInsertStatements(m, false))
}

func (p *Provider) EnableForeignKeysCheck(ctx context.Context, conn exec.Conn, models []*schema.ModelDefinition) error {
	return p.execAll(ctx, conn, p.ToForeignKeyChecksStatements(models, true))
}

func (p *Provider) DisableForeignKeysCheck(ctx context.Context, conn exec.Conn, models []*schema.ModelDefinition) error {
	return p.execAll(ctx, conn, p.ToForeignKeyChecksStatements(models, false))
}

// Introspection, satisfying schema.Introspector.

// CanIntrospect reports whether the engine carries catalog queries.
func (p *Provider) CanIntrospect() bool {
	return p.d.Introspection.Tables != "" && p.d.Introspection.Columns != ""
}

func (p *Provider) SchemaName(input string) string {
	if p.d.Introspection.SchemaName != nil {
		return p.d.Introspection.SchemaName(input)
	}
	if input == "" {
		return p.d.DefaultSchema
	}
	return input
}

func (p *Provider) TablesQuery() string { return p.d.Introspection.Tables }

func (p *Provider) ColumnsQuery() string { return p.d.Introspection.Columns }

func (p *Provider) ForeignKeysQuery() string { return p.d.Introspection.ForeignKeys }

func (p *Provider) NormalizeType(sqlType string) string {
	if p.d.Introspection.NormalizeType != nil {
		return p.d.Introspection.NormalizeType(sqlType)
	}
	return sqlType
}
