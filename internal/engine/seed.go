package engine

import (
	"context"
	"fmt"
	"io"
	"math"
	"reflect"
	"runtime"
	"strings"

	"dialectkit/internal/dialect"
	"dialectkit/internal/exec"
	"dialectkit/internal/schema"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result statuses.
const (
	StatusOK      = "OK"
	StatusMissing = "MISSING DATA"
	StatusDryRun  = "DRY RUN"
)

// maxAttemptsFactor bounds the generated candidates per requested row.
const maxAttemptsFactor = 10

// Result reports the outcome of seeding one model.
type Result struct {
	Model    string
	Target   int
	Inserted int
	Actual   int
	Status   string
	Err      string
}

// Options configures a Seeder.
type Options struct {
	// Count is the number of rows requested per model.
	Count int
	// Seed makes generated values reproducible; 0 is random.
	Seed int64
	// Workers generating candidate rows; defaults to GOMAXPROCS.
	Workers int
	// NullRatio is the share of NULLs in nullable, non-key columns.
	NullRatio float64

	// ExplicitIdentity inserts generated keys into auto-increment columns,
	// wrapping each model in the engine's identity-insert toggles.
	ExplicitIdentity bool
	// DisableForeignKeys suspends foreign key enforcement while a model is
	// seeded.
	DisableForeignKeys bool

	// DryRun writes the statements, parameters merged, to Out instead of
	// executing them.
	DryRun bool
	Out    io.Writer

	// OnProgress is called once per inserted row.
	OnProgress func()
	Logger     *zap.Logger
}

// Seeder fills models with generated rows through a dialect provider.
type Seeder struct {
	p    *dialect.Provider
	conn *exec.DBConn
	opts Options
	log  *zap.Logger

	// pool holds the key values of seeded models, by model name.
	pool   map[string][]any
	models map[string]*schema.ModelDefinition
	batch  int64
}

func NewSeeder(p *dialect.Provider, conn *exec.DBConn, opts Options) *Seeder {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	l := opts.Logger
	if l == nil {
		l = p.Logger()
	}
	return &Seeder{
		p:      p,
		conn:   conn,
		opts:   opts,
		log:    l,
		pool:   make(map[string][]any),
		models: make(map[string]*schema.ModelDefinition),
	}
}

// Seed fills models in order; referenced models must come first, as
// schema.SortByDependencies orders them. A failing model is reported in its
// Result and does not stop the run; only context and transaction errors do.
func (s *Seeder) Seed(ctx context.Context, models []*schema.ModelDefinition) ([]Result, error) {
	results := make([]Result, 0, len(models))
	for _, m := range models {
		s.models[m.Name] = m
		res, err := s.seedModel(ctx, m)
		if err != nil {
			return results, errors.Wrapf(err, "seed %s", m.Name)
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Seeder) seedModel(ctx context.Context, m *schema.ModelDefinition) (Result, error) {
	res := Result{Model: m.Name, Target: s.opts.Count}
	target := maxInsertCount(m, s.opts.Count, s.log)

	var initial int64
	if !s.opts.DryRun {
		n, err := CountRows(ctx, s.p, s.conn, m)
		if err != nil {
			res.Status, res.Err = StatusMissing, err.Error()
			return res, nil
		}
		initial = n
	}

	var nextKey int64
	if s.opts.ExplicitIdentity && !s.opts.DryRun {
		if f := autoIncrementField(m); f != nil {
			k, err := s.maxKey(ctx, m, f)
			if err != nil {
				res.Status, res.Err = StatusMissing, err.Error()
				return res, nil
			}
			nextKey = k
		}
	}

	var include func(*schema.FieldDefinition) bool
	if s.opts.ExplicitIdentity {
		include = func(f *schema.FieldDefinition) bool { return f.AutoIncrement }
	}
	st, err := s.p.PrepareInsert(m, nil, include)
	if err != nil {
		res.Status, res.Err = StatusMissing, err.Error()
		return res, nil
	}

	conn, tx, err := s.begin(ctx)
	if err != nil {
		return res, err
	}
	committed := false
	defer func() {
		if tx != nil && !committed {
			tx.Rollback()
		}
	}()
	if err := s.toggles(ctx, conn, m, true); err != nil {
		s.log.Warn("disable checks", zap.String("model", m.Name), zap.Error(err))
	}

	seen := newDedup(m)
	var keys []any
	var lastErr error
	attempts := 0
	failures := 0
	for res.Inserted < target && attempts < target*maxAttemptsFactor {
		n := min(target-res.Inserted, target*maxAttemptsFactor-attempts)
		rows, err := s.generate(ctx, m, n, attempts, nextKey)
		if err != nil {
			return res, err
		}
		for _, row := range rows {
			attempts++
			if !seen.add(row) {
				continue
			}
			if err := s.insert(ctx, conn, st, m, row); err != nil {
				failures++
				if failures <= 3 {
					s.log.Warn("insert failed", zap.String("model", m.Name), zap.Int("attempt", attempts),
						zap.String("sql", st.SQL), zap.Error(err))
				}
				lastErr = err
				continue
			}
			res.Inserted++
			if s.opts.DryRun {
				keys = append(keys, dryRunKey(m, row, res.Inserted))
			}
			if s.opts.OnProgress != nil {
				s.opts.OnProgress()
			}
			if res.Inserted == target {
				break
			}
		}
		nextKey += int64(len(rows))
	}

	if err := s.toggles(ctx, conn, m, false); err != nil {
		s.log.Warn("enable checks", zap.String("model", m.Name), zap.Error(err))
	}
	if tx != nil {
		if err := tx.Commit(); err != nil {
			return res, errors.Wrapf(err, "commit %s", m.Name)
		}
	}
	committed = true

	if s.opts.DryRun {
		res.Actual = res.Inserted
		res.Status = StatusDryRun
		s.pool[m.Name] = keys
		return res, nil
	}

	final, err := CountRows(ctx, s.p, s.conn, m)
	if err != nil {
		res.Status, res.Err = StatusMissing, err.Error()
		return res, nil
	}
	res.Actual = int(final - initial)
	res.Status = StatusOK
	if res.Actual < target {
		res.Status = StatusMissing
		switch {
		case res.Inserted == 0 && lastErr != nil:
			res.Err = "failed to insert any rows: " + lastErr.Error()
		case res.Inserted == 0:
			res.Err = "no unique rows could be generated"
		case lastErr != nil:
			res.Err = fmt.Sprintf("only inserted %d out of %d: %v", res.Actual, target, lastErr)
		default:
			res.Err = fmt.Sprintf("only inserted %d out of %d", res.Actual, target)
		}
	}

	if err := s.collectKeys(ctx, m); err != nil {
		s.log.Warn("collect keys", zap.String("model", m.Name), zap.Error(err))
	}
	return res, nil
}

func (s *Seeder) begin(ctx context.Context) (*exec.DBConn, txn, error) {
	if s.opts.DryRun {
		return s.conn, nil, nil
	}
	conn, tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	return conn, tx, nil
}

type txn interface {
	Commit() error
	Rollback() error
}

// toggles runs the identity-insert and foreign key statements around the
// inserts of m; off suspends enforcement, !off restores it.
func (s *Seeder) toggles(ctx context.Context, conn *exec.DBConn, m *schema.ModelDefinition, off bool) error {
	var stmts []string
	models := []*schema.ModelDefinition{m}
	if s.opts.ExplicitIdentity {
		stmts = append(stmts, s.p.ToIdentityInsertStatements(m, off)...)
	}
	if s.opts.DisableForeignKeys {
		stmts = append(stmts, s.p.ToForeignKeyChecksStatements(models, !off)...)
	}
	if s.opts.DryRun {
		for _, sql := range stmts {
			fmt.Fprintf(s.opts.Out, "%s;\n", sql)
		}
		return nil
	}
	if s.opts.ExplicitIdentity {
		if err := toggle(ctx, conn, m, off, s.p.EnableIdentityInsert, s.p.DisableIdentityInsert); err != nil {
			return err
		}
	}
	if s.opts.DisableForeignKeys {
		return toggleAll(ctx, conn, models, !off, s.p.EnableForeignKeysCheck, s.p.DisableForeignKeysCheck)
	}
	return nil
}

func toggle(ctx context.Context, conn exec.Conn, m *schema.ModelDefinition, on bool,
	enable, disable func(context.Context, exec.Conn, *schema.ModelDefinition) error) error {
	if on {
		return enable(ctx, conn, m)
	}
	return disable(ctx, conn, m)
}

func toggleAll(ctx context.Context, conn exec.Conn, models []*schema.ModelDefinition, on bool,
	enable, disable func(context.Context, exec.Conn, []*schema.ModelDefinition) error) error {
	if on {
		return enable(ctx, conn, models)
	}
	return disable(ctx, conn, models)
}

func (s *Seeder) insert(ctx context.Context, conn *exec.DBConn, st *dialect.Statement, m *schema.ModelDefinition, row map[string]any) error {
	if err := s.p.SetParameterValues(st, m, row); err != nil {
		return err
	}
	if s.opts.DryRun {
		sql, err := s.p.MergeParamsIntoSQL(st.SQL, st.Params)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(s.opts.Out, "%s;\n", sql)
		return err
	}
	return s.p.Filter().Exec(ctx, conn, func(ctx context.Context, cmd exec.Command) error {
		st.Apply(cmd)
		_, err := cmd.ExecNonQuery(ctx)
		return err
	})
}

// generate builds n candidate rows concurrently. Rows depend only on the key
// pool, which is not modified while a model is seeded.
func (s *Seeder) generate(ctx context.Context, m *schema.ModelDefinition, n, offset int, nextKey int64) ([]map[string]any, error) {
	rows := make([]map[string]any, n)
	workers := min(s.opts.Workers, n)
	chunk := (n + workers - 1) / workers
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, min((w+1)*chunk, n)
		if lo >= hi {
			break
		}
		gen := s.generator()
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				rows[i] = s.row(gen, m, offset+i, nextKey+int64(i)+1)
			}
			return nil
		})
	}
	return rows, g.Wait()
}

func (s *Seeder) generator() *Generator {
	seed := s.opts.Seed
	if seed != 0 {
		s.batch++
		seed += s.batch
	}
	g := NewGenerator(seed)
	g.NullRatio = s.opts.NullRatio
	return g
}

// row generates the values of one row. index picks foreign keys
// sequentially for unique references; key is the explicit identity value.
func (s *Seeder) row(gen *Generator, m *schema.ModelDefinition, index int, key int64) map[string]any {
	row := make(map[string]any, len(m.Fields))
	for _, f := range m.Fields {
		switch {
		case f.AutoIncrement:
			if s.opts.ExplicitIdentity {
				row[f.Name] = key
			}
			continue
		case f.ShouldSkipInsert(), f.AutoID:
			continue
		case f.ForeignKey != nil:
			row[f.Name] = s.foreignKey(gen, f, index)
			continue
		}
		v := gen.Value(f)
		if v == nil && m.IsKeyField(f) {
			// Keys are never NULL, even when declared nullable.
			g := *gen
			g.NullRatio = 0
			v = g.Value(f)
		}
		row[f.Name] = v
	}
	return row
}

func (s *Seeder) foreignKey(gen *Generator, f *schema.FieldDefinition, index int) any {
	ref := f.ForeignKey.RefModel
	if f.ForeignKey.References != nil {
		ref = f.ForeignKey.References.Name
	}
	if vals := s.pool[ref]; len(vals) > 0 {
		if f.IsUniqueConstraint || f.IsUniqueIndex {
			return vals[index%len(vals)]
		}
		return vals[gen.faker.Number(0, len(vals)-1)]
	}
	// An empty pool means a cycle or a failed parent.
	if f.IsNullable {
		return nil
	}
	if f.IsUniqueConstraint {
		return index + 1
	}
	return 1
}

func dryRunKey(m *schema.ModelDefinition, row map[string]any, n int) any {
	if pk := m.PrimaryKey(); pk != nil {
		if v, ok := schema.ValueOf(row, pk); ok && v != nil {
			return v
		}
	}
	return n
}

// collectKeys loads the primary key values of m into the pool for the models
// referencing it.
func (s *Seeder) collectKeys(ctx context.Context, m *schema.ModelDefinition) error {
	pk := m.PrimaryKey()
	if pk == nil {
		return nil
	}
	sql := "SELECT " + s.p.GetQuotedColumnName(pk.FieldName()) + " FROM " + s.p.GetQuotedTableName(m)
	keys, err := exec.Run(ctx, s.p.Filter(), s.conn, func(ctx context.Context, cmd exec.Command) ([]any, error) {
		cmd.SetText(sql)
		r, err := cmd.ExecReader(ctx)
		if err != nil {
			return nil, err
		}
		var keys []any
		for vals, err := range exec.Rows(r) {
			if err != nil {
				return nil, err
			}
			v, err := s.p.FieldFromDbValue(pk, vals[0])
			if err != nil {
				return nil, err
			}
			keys = append(keys, v)
		}
		return keys, nil
	})
	if err != nil {
		return err
	}
	s.pool[m.Name] = keys
	return nil
}

func (s *Seeder) maxKey(ctx context.Context, m *schema.ModelDefinition, f *schema.FieldDefinition) (int64, error) {
	sql := "SELECT MAX(" + s.p.GetQuotedColumnName(f.FieldName()) + ") FROM " + s.p.GetQuotedTableName(m)
	return exec.Run(ctx, s.p.Filter(), s.conn, func(ctx context.Context, cmd exec.Command) (int64, error) {
		cmd.SetText(sql)
		v, err := cmd.ExecScalar(ctx)
		if err != nil || v == nil {
			return 0, err
		}
		return exec.ScalarInt64(v)
	})
}

// Verify recounts the rows of every seeded model.
func (s *Seeder) Verify(ctx context.Context, results []Result) []Result {
	verified := make([]Result, 0, len(results))
	for _, res := range results {
		out := res
		m, ok := s.models[res.Model]
		if !ok || s.opts.DryRun {
			verified = append(verified, out)
			continue
		}
		n, err := CountRows(ctx, s.p, s.conn, m)
		switch {
		case err != nil:
			out.Status = "VERIFY_FAIL: " + err.Error()
		case int(n) < res.Target:
			out.Actual = int(n)
			out.Status = fmt.Sprintf("PARTIAL: %d/%d", n, res.Target)
		default:
			out.Actual = int(n)
			out.Status = StatusOK
		}
		verified = append(verified, out)
	}
	return verified
}

// CountRows counts the rows of m.
func CountRows(ctx context.Context, p *dialect.Provider, conn exec.Conn, m *schema.ModelDefinition) (int64, error) {
	return exec.Run(ctx, p.Filter(), conn, func(ctx context.Context, cmd exec.Command) (int64, error) {
		cmd.SetText("SELECT COUNT(*) FROM " + p.GetQuotedTableName(m))
		v, err := cmd.ExecScalar(ctx)
		if err != nil {
			return 0, err
		}
		return exec.ScalarInt64(v)
	})
}

func autoIncrementField(m *schema.ModelDefinition) *schema.FieldDefinition {
	for _, f := range m.Fields {
		if f.AutoIncrement {
			return f
		}
	}
	return nil
}

// maxInsertCount caps requested at what the auto-increment column of m can
// number.
func maxInsertCount(m *schema.ModelDefinition, requested int, log *zap.Logger) int {
	f := autoIncrementField(m)
	if f == nil {
		return requested
	}
	t := f.ColumnType()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	limit := identityLimit(t.Kind())
	if limit < requested {
		log.Info("identity column limits rows", zap.String("model", m.Name),
			zap.String("field", f.Name), zap.Stringer("type", t), zap.Int("limit", limit))
		return limit
	}
	return requested
}

func identityLimit(k reflect.Kind) int {
	switch k {
	case reflect.Int8:
		return math.MaxInt8
	case reflect.Uint8:
		return math.MaxUint8
	case reflect.Int16:
		return math.MaxInt16
	case reflect.Uint16:
		return math.MaxUint16
	case reflect.Int32:
		return math.MaxInt32
	}
	return math.MaxInt
}

// dedup rejects rows repeating a value of a unique field, the primary key or
// a unique field group.
type dedup struct {
	groups [][]*schema.FieldDefinition
	used   []map[string]bool
}

func newDedup(m *schema.ModelDefinition) *dedup {
	d := &dedup{}
	addGroup := func(fields []*schema.FieldDefinition) {
		if len(fields) == 0 {
			return
		}
		d.groups = append(d.groups, fields)
		d.used = append(d.used, make(map[string]bool))
	}
	for _, f := range m.Fields {
		if f.AutoIncrement || f.AutoID {
			continue
		}
		if f.IsUniqueConstraint || f.IsUniqueIndex || (f.IsPrimaryKey && !m.HasCompositePrimaryKey()) {
			addGroup([]*schema.FieldDefinition{f})
		}
	}
	addGroup(m.OrderedFields(m.CompositePrimaryKey, nil))
	for _, uc := range m.UniqueConstraints {
		addGroup(m.OrderedFields(uc.FieldNames, nil))
	}
	return d
}

// add reports whether row is new and records its values.
func (d *dedup) add(row map[string]any) bool {
	keys := make([]string, len(d.groups))
	for i, fields := range d.groups {
		parts := make([]string, len(fields))
		for j, f := range fields {
			parts[j] = fmt.Sprint(row[f.Name])
		}
		keys[i] = strings.Join(parts, "|")
		if d.used[i][keys[i]] {
			return false
		}
	}
	for i, k := range keys {
		d.used[i][k] = true
	}
	return true
}
