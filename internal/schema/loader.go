package schema

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is the on-disk form of a set of model definitions.
type File struct {
	Models []ModelSpec `yaml:"models" validate:"required,min=1,dive"`
}

type ModelSpec struct {
	Name              string           `yaml:"name" validate:"required"`
	Alias             string           `yaml:"alias"`
	Schema            string           `yaml:"schema"`
	CompositeKey      []string         `yaml:"composite_key" validate:"omitempty,min=2"`
	Fields            []FieldSpec      `yaml:"fields" validate:"required,min=1,dive"`
	Indexes           []IndexSpec      `yaml:"indexes" validate:"dive"`
	UniqueConstraints []ConstraintSpec `yaml:"unique_constraints" validate:"dive"`
}

type FieldSpec struct {
	Name          string `yaml:"name" validate:"required"`
	Alias         string `yaml:"alias"`
	Type          string `yaml:"type" validate:"required"`
	Nullable      bool   `yaml:"nullable"`
	Length        *int   `yaml:"length" validate:"omitempty,min=1"`
	Scale         *int   `yaml:"scale" validate:"omitempty,min=0"`
	PrimaryKey    bool   `yaml:"primary_key"`
	AutoIncrement bool   `yaml:"auto_increment"`
	AutoID        bool   `yaml:"auto_id"`
	RowVersion    bool   `yaml:"row_version"`
	Computed      string `yaml:"computed"`
	Persisted     bool   `yaml:"persisted"`
	Unique        bool   `yaml:"unique"`
	Index         string `yaml:"index" validate:"omitempty,oneof=plain unique clustered nonclustered"`
	IndexName     string `yaml:"index_name"`
	Default       string `yaml:"default"`
	Definition    string `yaml:"definition"`
	Check         string `yaml:"check"`
	Sequence      string `yaml:"sequence"`
	IgnoreInsert  bool   `yaml:"ignore_insert"`
	IgnoreUpdate  bool   `yaml:"ignore_update"`
	Comment       string `yaml:"comment"`

	References string `yaml:"references"`
	FKName     string `yaml:"fk_name"`
	OnDelete   string `yaml:"on_delete"`
	OnUpdate   string `yaml:"on_update"`
}

type IndexSpec struct {
	Name   string   `yaml:"name"`
	Fields []string `yaml:"fields" validate:"required,min=1"`
	Unique bool     `yaml:"unique"`
}

type ConstraintSpec struct {
	Name   string   `yaml:"name"`
	Fields []string `yaml:"fields" validate:"required,min=1"`
}

// LoadFile reads model definitions from a YAML file.
func LoadFile(path string) ([]*ModelDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read model file %s", path)
	}
	models, err := Load(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return models, nil
}

// Load decodes, validates and resolves model definitions. The result is in
// dependency order.
func Load(r io.Reader) ([]*ModelDefinition, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decode models")
	}
	if err := validator.New().Struct(&f); err != nil {
		return nil, errors.Wrap(err, "validate models")
	}

	byName := make(map[string]*ModelDefinition, len(f.Models))
	models := make([]*ModelDefinition, 0, len(f.Models))
	for _, ms := range f.Models {
		m, err := ms.build()
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(m.Name)
		if _, dup := byName[key]; dup {
			return nil, errors.Errorf("model %s is defined twice", m.Name)
		}
		byName[key] = m
		models = append(models, m)
	}

	for _, m := range models {
		for _, fd := range m.Fields {
			if fd.ForeignKey == nil {
				continue
			}
			ref, ok := byName[strings.ToLower(fd.ForeignKey.RefModel)]
			if !ok {
				return nil, errors.Errorf("%s.%s references unknown model %s", m.Name, fd.Name, fd.ForeignKey.RefModel)
			}
			if ref.PrimaryKey() == nil {
				return nil, errors.Errorf("%s.%s references %s which has no primary key", m.Name, fd.Name, ref.Name)
			}
			fd.ForeignKey.References = ref
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	return SortByDependencies(models), nil
}

func (ms ModelSpec) build() (*ModelDefinition, error) {
	m := &ModelDefinition{
		Name:                ms.Name,
		Alias:               ms.Alias,
		Schema:              ms.Schema,
		CompositePrimaryKey: ms.CompositeKey,
	}
	for _, fs := range ms.Fields {
		fd, err := fs.build()
		if err != nil {
			return nil, errors.Wrapf(err, "model %s", ms.Name)
		}
		m.Fields = append(m.Fields, fd)
	}
	for _, ix := range ms.Indexes {
		m.CompositeIndexes = append(m.CompositeIndexes, CompositeIndex{Name: ix.Name, FieldNames: ix.Fields, Unique: ix.Unique})
	}
	for _, uc := range ms.UniqueConstraints {
		m.UniqueConstraints = append(m.UniqueConstraints, UniqueConstraint{Name: uc.Name, FieldNames: uc.Fields})
	}
	return m, nil
}

func (fs FieldSpec) build() (*FieldDefinition, error) {
	t, ok := LookupType(fs.Type, fs.Nullable)
	if !ok {
		return nil, errors.Errorf("field %s: unknown type %q (want one of %s)", fs.Name, fs.Type, strings.Join(TypeNames(), ", "))
	}
	fd := &FieldDefinition{
		Name:                  fs.Name,
		Alias:                 fs.Alias,
		FieldType:             t,
		Comment:               fs.Comment,
		IsNullable:            fs.Nullable,
		FieldLength:           fs.Length,
		Scale:                 fs.Scale,
		IsPrimaryKey:          fs.PrimaryKey,
		AutoIncrement:         fs.AutoIncrement,
		AutoID:                fs.AutoID,
		IsRowVersion:          fs.RowVersion,
		IsComputed:            fs.Computed != "",
		IsPersisted:           fs.Persisted,
		IsUniqueConstraint:    fs.Unique,
		IndexName:             fs.IndexName,
		DefaultValue:          fs.Default,
		CustomFieldDefinition: fs.Definition,
		CheckConstraint:       fs.Check,
		Sequence:              fs.Sequence,
		IgnoreOnInsert:        fs.IgnoreInsert,
		IgnoreOnUpdate:        fs.IgnoreUpdate,
	}
	if fd.IsComputed && fd.CustomFieldDefinition == "" {
		fd.CustomFieldDefinition = fs.Computed
	}
	switch fs.Index {
	case "plain":
		fd.IsIndexed = true
	case "unique":
		fd.IsIndexed, fd.IsUniqueIndex = true, true
	case "clustered":
		fd.IsIndexed, fd.IsClustered = true, true
	case "nonclustered":
		fd.IsIndexed, fd.IsNonClustered = true, true
	}
	if fs.References != "" {
		onDelete, err := ParseFkAction(fs.OnDelete)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s on_delete", fs.Name)
		}
		onUpdate, err := ParseFkAction(fs.OnUpdate)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s on_update", fs.Name)
		}
		fd.ForeignKey = &ForeignKeyConstraint{RefModel: fs.References, Name: fs.FKName, OnDelete: onDelete, OnUpdate: onUpdate}
	}
	return fd, nil
}
