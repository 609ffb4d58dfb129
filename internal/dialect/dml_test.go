package dialect_test

import (
	"database/sql"
	"strings"
	"testing"

	"dialectkit/internal/dialect"
	"dialectkit/internal/exec"
	"dialectkit/internal/schema"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func versioned() *schema.ModelDefinition {
	v := field[uint64]("version")
	v.IsRowVersion = true
	return &schema.ModelDefinition{
		Name:   "t",
		Fields: []*schema.FieldDefinition{pk[int64]("id"), field[string]("name"), v},
	}
}

func TestUpdateStatement_All(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	m := &schema.ModelDefinition{Name: "t", Fields: []*schema.FieldDefinition{pk[int64]("id"), field[string]("name")}}

	st, hadRowVersion, err := p.UpdateStatement(m, map[string]any{"id": 1, "name": "x"}, nil)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "t" SET "name"=@name WHERE "id"=@id`, st.SQL)
	assert.False(t, hadRowVersion)
	assert.Equal(t, int64(1), st.Param("id").Value)
	assert.Equal(t, "x", st.Param("@name").Value)
}

func TestUpdateStatement_RowVersion(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	st, hadRowVersion, err := p.UpdateStatement(versioned(), map[string]any{"id": 1, "name": "x", "version": uint64(7)}, nil)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "t" SET "name"=@name WHERE "id"=@id AND "version"=@version`, st.SQL)
	assert.True(t, hadRowVersion)
	assert.Equal(t, int64(7), st.Param("version").Value)
}

func TestUpdateStatement_Subset(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	st, hadRowVersion, err := p.UpdateStatement(versioned(), map[string]any{"id": 1, "name": "x"}, []string{"NAME"})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "t" SET "name"=@name`, st.SQL)
	assert.False(t, hadRowVersion)
	require.Len(t, st.Params, 1)
}

func TestUpdateStatement_NoFields(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	_, _, err := p.UpdateStatement(versioned(), map[string]any{"version": 1}, []string{"version"})
	assert.ErrorIs(t, err, dialect.ErrNoUpdateFields)
	assert.ErrorIs(t, err, dialect.ErrStatement)

	keyOnly := &schema.ModelDefinition{Name: "k", Fields: []*schema.FieldDefinition{pk[int64]("id")}}
	_, _, err = p.UpdateStatement(keyOnly, map[string]any{"id": 1}, nil)
	assert.ErrorIs(t, err, dialect.ErrNoUpdateFields)
}

func TestUpdateStatement_SkipsAutoIncrementAndCustomUpdate(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	m := autoInc(simple())
	m.Field("email").CustomUpdate = "lower({0})"

	st, _, err := p.UpdateStatement(m, map[string]any{"id": 3, "name": "n", "email": "E"}, []string{"id", "name", "email"})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "t" SET "name"=@name, "email"=lower(@email)`, st.SQL)
}

func TestUpdateStatement_Struct(t *testing.T) {
	type row struct {
		ID   int64  `db:"id"`
		Name string `db:"name"`
	}
	p := dialect.New(dialect.Dialect{})
	m := &schema.ModelDefinition{Name: "t", Fields: []*schema.FieldDefinition{pk[int64]("id"), field[string]("name")}}

	st, _, err := p.UpdateStatement(m, &row{ID: 9, Name: "Ann"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(9), st.Param("id").Value)
	assert.Equal(t, "Ann", st.Param("name").Value)
}

func TestUpdateValuesStatement_RenamesWhereParams(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	st, err := p.UpdateValuesStatement(simple(), map[string]any{"name": "new"}, map[string]any{"name": "old"})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "t" SET "name"=@name WHERE "name"=@wname`, st.SQL)
	assert.Equal(t, "new", st.Param("name").Value)
	assert.Equal(t, "old", st.Param("wname").Value)
}

func TestUpdateAddStatement(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	m := simple()
	m.Fields = append(m.Fields, field[int32]("qty"))

	st, err := p.UpdateAddStatement(m, map[string]any{"qty": 2, "name": "x", "id": 4}, map[string]any{"id": 4})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "t" SET "name"=@name, "qty"="qty"+@qty WHERE "id"=@id`, st.SQL)
	assert.Len(t, st.Params, 3)

	_, err = p.UpdateAddStatement(m, map[string]any{"id": 4}, nil)
	assert.ErrorIs(t, err, dialect.ErrNoUpdateFields)
}

func TestDeleteStatement(t *testing.T) {
	p := dialect.New(dialect.Dialect{})

	st, hadRowVersion, err := p.DeleteStatement(simple(), map[string]any{"id": 5})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "t" WHERE "id"=@id`, st.SQL)
	assert.False(t, hadRowVersion)
	require.Len(t, st.Params, 1)
	assert.Equal(t, int64(5), st.Params[0].Value)

	st, _, err = p.DeleteStatement(simple(), map[string]any{"id": nil})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "t" WHERE "id" IS NULL`, st.SQL)
	assert.Empty(t, st.Params)

	st, hadRowVersion, err = p.DeleteStatement(versioned(), map[string]any{"id": 1, "version": 2})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "t" WHERE "id"=@id AND "version"=@version`, st.SQL)
	assert.True(t, hadRowVersion)

	_, _, err = p.DeleteStatement(simple(), map[string]any{"unknown": 1})
	assert.ErrorIs(t, err, dialect.ErrNoDeleteCriteria)
}

func TestInsertStatement(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	st, err := p.InsertStatement(simple(), map[string]any{"email": "b@x.io", "name": "a"})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "t" ("name","email") VALUES (@name,@email)`, st.SQL)
	assert.Equal(t, 255, st.Param("name").Size)

	m := simple()
	m.Field("email").CustomInsert = "lower({0})"
	st, err = p.InsertStatement(m, map[string]any{"email": "B", "name": "a"})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "t" ("name","email") VALUES (@name,lower(@email))`, st.SQL)
}

func TestInsertRowStatement_SkipsStoreAssigned(t *testing.T) {
	p := dialect.NewSQLite()
	m := autoInc(versioned())

	st, err := p.InsertRowStatement(m, map[string]any{"id": 1, "name": "a", "version": 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "t" ("name") VALUES (@name)`, st.SQL)
}

func TestInsertRowStatement_GrowsStringSize(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	long := strings.Repeat("x", 300)
	st, err := p.InsertRowStatement(simple(), map[string]any{"id": 1, "name": long, "email": nil}, nil)
	require.NoError(t, err)
	assert.Equal(t, 300, st.Param("name").Size)
	assert.Nil(t, st.Param("email").Value)
}

func guidModel() *schema.ModelDefinition {
	id := pk[uuid.UUID]("id")
	id.AutoID = true
	return &schema.ModelDefinition{Name: "doc", Fields: []*schema.FieldDefinition{id, field[string]("title")}}
}

func TestInsertStatement_GeneratesGUID(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	values := map[string]any{"title": gofakeit.BookTitle()}

	st, err := p.InsertStatement(guidModel(), values)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "doc" ("id","title") VALUES (@id,@title)`, st.SQL)

	id, ok := values["id"].(uuid.UUID)
	require.True(t, ok, "generated id is written back")
	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, id.String(), st.Param("id").Value)
}

func TestInsertRowStatement_GUIDBackFill(t *testing.T) {
	type doc struct {
		ID    uuid.UUID `db:"id"`
		Title string    `db:"title"`
	}
	p := dialect.New(dialect.Dialect{})

	d := &doc{Title: "draft"}
	st, err := p.InsertRowStatement(guidModel(), d, nil)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, d.ID)
	assert.Equal(t, d.ID.String(), st.Param("id").Value)

	fixed := uuid.New()
	d = &doc{ID: fixed, Title: "final"}
	st, err = p.InsertRowStatement(guidModel(), d, nil)
	require.NoError(t, err)
	assert.Equal(t, fixed, d.ID)
	assert.Equal(t, fixed.String(), st.Param("id").Value)
}

func TestToCreateTableStatement_GUIDDefault(t *testing.T) {
	sql, err := dialect.NewPostgres().ToCreateTableStatement(guidModel())
	require.NoError(t, err)
	assert.Contains(t, sql, `"id" UUID PRIMARY KEY DEFAULT (gen_random_uuid())`)
}

func TestSetParameterValues_UnknownParam(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	st := &dialect.Statement{SQL: "SELECT @nope", Params: []*exec.Param{{Name: "@nope"}}}
	err := p.SetParameterValues(st, simple(), map[string]any{})
	assert.ErrorIs(t, err, dialect.ErrFieldNotFound)
}

func TestStatement_Apply(t *testing.T) {
	conn, _ := newMock(t, nil)
	cmd := conn.CreateCommand()
	cmd.AddParam(&exec.Param{Name: "@stale"})
	st := &dialect.Statement{SQL: "DELETE FROM t", Params: []*exec.Param{{Name: "@a", Value: 1}}}
	st.Apply(cmd)
	assert.Equal(t, "DELETE FROM t", cmd.Text())
	require.Len(t, cmd.Params(), 1)
	assert.Equal(t, "@a", cmd.Params()[0].Name)
}

func TestMergeParamsIntoSQL(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	got, err := p.MergeParamsIntoSQL("SELECT * FROM t WHERE a=@p1 AND b=@p10 AND (c=@p2)", []*exec.Param{
		{Name: "@p1", Value: "co$t"},
		{Name: "@p10", Value: 3},
		{Name: "@p2", Value: nil},
	})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a='co$t' AND b=3 AND (c=null)", got)
}

func TestToSelectStatement(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	m := simple()

	got, err := p.ToSelectStatement(m, `"id" = {0}`, 1)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "name", "email" FROM "t" WHERE "id" = 1`, got)

	got, err = p.ToSelectStatement(m, `ORDER BY "name"`)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "name", "email" FROM "t" ORDER BY "name"`, got)

	got, err = p.ToSelectStatement(m, "")
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "name", "email" FROM "t"`, got)

	got, err = p.ToSelectStatement(m, "select 1 where x = {0}", "y")
	require.NoError(t, err)
	assert.Equal(t, "select 1 where x = 'y'", got)
}

func TestToDeleteStatement(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	got, err := p.ToDeleteStatement(simple(), "name = {0}", "O'x")
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "t" WHERE name = 'O''x'`, got)

	got, err = p.ToDeleteStatement(simple(), "DELETE FROM other")
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM other", got)
}

func TestGetColumnNames_CustomSelect(t *testing.T) {
	m := simple()
	label := field[string]("label")
	label.CustomSelect = "name || email"
	m.Fields = append(m.Fields, label)
	assert.Equal(t, `"id", "name", "email", name || email AS "label"`, dialect.New(dialect.Dialect{}).GetColumnNames(m))
}

func TestSelectStatement(t *testing.T) {
	off, rows := intPtr(5), intPtr(10)
	assert.Equal(t, "SELECT * FROM t ORDER BY id\nLIMIT 10 OFFSET 5",
		dialect.New(dialect.Dialect{}).SelectStatement("SELECT *", "FROM t", "ORDER BY id", off, rows))
	assert.Equal(t, "SELECT * FROM t ORDER BY id\nOFFSET 5 ROWS FETCH NEXT 10 ROWS ONLY",
		dialect.NewSQLServer().SelectStatement("SELECT *", "FROM t", "ORDER BY id", off, rows))
	assert.Equal(t, "SELECT * FROM t", dialect.New(dialect.Dialect{}).SelectStatement("SELECT *", "FROM t", "", nil, nil))
	assert.Equal(t, "SELECT COUNT(*) FROM (SELECT 1) AS COUNT", dialect.New(dialect.Dialect{}).ToRowCountStatement("SELECT 1"))
}

func TestReadRecord(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	rec, err := p.ReadRecord(simple(), []string{"ID", "name", "extra"}, []any{int64(1), []byte("x"), 7})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(1), "name": "x", "extra": 7}, rec)

	_, err = p.ReadRecord(simple(), []string{"id"}, nil)
	assert.Error(t, err)
}

func TestParamName(t *testing.T) {
	p := dialect.New(dialect.Dialect{})
	assert.Equal(t, "@firstname", p.ParamName("first name"))

	p.ParamNameFilter = strings.ToUpper
	assert.Equal(t, "@FIRST_NAME", p.ParamName("first_name"))

	assert.Equal(t, ":n", dialect.NewOracle().ParamName("n"))
}

func TestRebind_Positional(t *testing.T) {
	params := []*exec.Param{{Name: "@a", Value: 1}, {Name: "@b", Value: 2}}
	text := `SELECT * FROM t WHERE a=@a AND b=@b OR a=@a AND c='@a' AND d = @@x AND e = @missing`

	got, args := dialect.NewPostgres().Rebind(text, params)
	assert.Equal(t, `SELECT * FROM t WHERE a=$1 AND b=$2 OR a=$3 AND c='@a' AND d = @@x AND e = @missing`, got)
	assert.Equal(t, []any{1, 2, 1}, args)

	got, args = dialect.NewMySQL().Rebind(text, params)
	assert.Equal(t, `SELECT * FROM t WHERE a=? AND b=? OR a=? AND c='@a' AND d = @@x AND e = @missing`, got)
	assert.Len(t, args, 3)
}

func TestRebind_UnicodeParameterNames(t *testing.T) {
	m := &schema.ModelDefinition{Name: "t", Fields: []*schema.FieldDefinition{field[int]("größe"), field[string]("名前")}}
	for _, p := range []*dialect.Provider{dialect.NewPostgres(), dialect.NewMySQL()} {
		st, err := p.InsertStatement(m, map[string]any{"größe": 42, "名前": "x"})
		require.NoError(t, err, p.Name())
		got, args := p.Rebind(st.SQL, st.Params)
		assert.NotContains(t, got, "@", p.Name())
		assert.Len(t, args, 2, p.Name())
	}

	got, args := dialect.NewPostgres().Rebind("SELECT @é1, x@é", []*exec.Param{{Name: "@é1", Value: 1}, {Name: "@é", Value: 2}})
	assert.Equal(t, "SELECT $1, x@é", got, "a marker glued to a preceding letter is not a parameter")
	assert.Equal(t, []any{1}, args)
}

func TestRebind_QuotedIdentifiers(t *testing.T) {
	got, args := dialect.NewPostgres().Rebind(`UPDATE "t@x" SET "a"=@a WHERE note = 'it''s @a'`, []*exec.Param{{Name: "@a", Value: "v"}})
	assert.Equal(t, `UPDATE "t@x" SET "a"=$1 WHERE note = 'it''s @a'`, got)
	assert.Equal(t, []any{"v"}, args)
}

func TestRebind_Named(t *testing.T) {
	text := "SELECT * FROM t WHERE a=@a"
	got, args := dialect.NewSQLServer().Rebind(text, []*exec.Param{{Name: "@a", Value: 1}})
	assert.Equal(t, text, got)
	assert.Equal(t, []any{sql.Named("a", 1)}, args)

	got, args = dialect.NewOracle().Rebind("SELECT * FROM t WHERE a=:a", []*exec.Param{{Name: ":a", Value: 1}})
	assert.Equal(t, "SELECT * FROM t WHERE a=:a", got)
	assert.Equal(t, []any{sql.Named("a", 1)}, args)
}
