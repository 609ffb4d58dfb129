package dialect_test

import (
	"reflect"

	"dialectkit/internal/dialect"
	"dialectkit/internal/schema"
)

func providers() []*dialect.Provider {
	return []*dialect.Provider{
		dialect.New(dialect.Dialect{}),
		dialect.NewSQLite(),
		dialect.NewPostgres(),
		dialect.NewMySQL(),
		dialect.NewSQLServer(),
		dialect.NewOracle(),
	}
}

func intPtr(n int) *int { return &n }

func field[T any](name string) *schema.FieldDefinition {
	return &schema.FieldDefinition{Name: name, FieldType: reflect.TypeFor[T]()}
}

func pk[T any](name string) *schema.FieldDefinition {
	f := field[T](name)
	f.IsPrimaryKey = true
	return f
}

func nullable(f *schema.FieldDefinition) *schema.FieldDefinition {
	f.IsNullable = true
	return f
}

func sized(f *schema.FieldDefinition, n int) *schema.FieldDefinition {
	f.FieldLength = intPtr(n)
	return f
}

func customer() *schema.ModelDefinition {
	return &schema.ModelDefinition{
		Name:   "Customer",
		Fields: []*schema.FieldDefinition{pk[int64]("id"), sized(field[string]("name"), 100)},
	}
}

// order references customer with ON DELETE CASCADE.
func order(ref *schema.ModelDefinition) *schema.ModelDefinition {
	fk := nullable(field[int64]("customer_id"))
	fk.ForeignKey = &schema.ForeignKeyConstraint{References: ref, RefModel: ref.Name, OnDelete: schema.FkCascade}
	return &schema.ModelDefinition{
		Name:   "Order",
		Fields: []*schema.FieldDefinition{pk[int64]("id"), sized(field[string]("name"), 100), fk},
	}
}

func simple() *schema.ModelDefinition {
	return &schema.ModelDefinition{
		Name:   "t",
		Fields: []*schema.FieldDefinition{pk[int64]("id"), field[string]("name"), nullable(field[string]("email"))},
	}
}
