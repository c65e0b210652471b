/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sqlgen

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-openapi/inflect"
	"github.com/uptrace/bun"
)

// Kind classifies a column value for literal rendering.
type Kind int

const (
	KindOther Kind = iota
	KindText
	KindInteger
	KindFloat
	KindBoolean
	KindDate
	KindDateTime
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	default:
		return "other"
	}
}

// Quoted reports whether literals of this kind are wrapped in single quotes.
func (k Kind) Quoted() bool {
	return k == KindText || k == KindDate || k == KindDateTime
}

var (
	ErrNotStruct  = errors.New("sqlgen: entity type must be a struct")
	ErrNoColumns  = errors.New("sqlgen: entity type declares no columns")
	ErrNoIdentity = errors.New("sqlgen: entity type declares no identity column")

	baseModelType = reflect.TypeOf((*bun.BaseModel)(nil)).Elem()
	timeType      = reflect.TypeOf(time.Time{})
	shapeCache    sync.Map // reflect.Type -> *Shape
)

// Column describes one mapped struct field.
type Column struct {
	Name     string
	GoName   string
	Kind     Kind
	Identity bool
	Nullable bool
	index    []int
}

// value returns the field value of strct and whether it is present. Nil
// pointers and zero values are absent.
func (c Column) value(strct reflect.Value) (any, bool) {
	fv := strct.FieldByIndex(c.index)
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return nil, false
		}
		return fv.Elem().Interface(), true
	}
	return fv.Interface(), !fv.IsZero()
}

// Shape is the declared schema of an entity type: its table and its columns
// in declaration order.
type Shape struct {
	Type     reflect.Type
	Table    string
	Columns  []Column
	identity int
}

// ShapeOf describes T. See Describe.
func ShapeOf[T any]() (*Shape, error) {
	return Describe(reflect.TypeOf((*T)(nil)).Elem())
}

// Describe returns the shape of a struct type (or pointer to one), reading
// column names and options from bun struct tags. Results are cached.
func Describe(typ reflect.Type) (*Shape, error) {
	for typ != nil && typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %v", ErrNotStruct, typ)
	}
	if cached, ok := shapeCache.Load(typ); ok {
		return cached.(*Shape), nil
	}

	shape := &Shape{Type: typ, Table: TableName(typ), identity: -1}
	collectColumns(typ, nil, &shape.Columns)
	if len(shape.Columns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoColumns, typ.Name())
	}

	for i := range shape.Columns {
		if shape.Columns[i].Identity {
			shape.identity = i
			break
		}
	}
	if shape.identity < 0 {
		for i := range shape.Columns {
			name := shape.Columns[i].Name
			if strings.EqualFold(name, "id_") || strings.EqualFold(name, "id") {
				shape.Columns[i].Identity = true
				shape.identity = i
				break
			}
		}
	}

	actual, _ := shapeCache.LoadOrStore(typ, shape)
	return actual.(*Shape), nil
}

func collectColumns(typ reflect.Type, parent []int, out *[]Column) {
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if sf.Type == baseModelType {
			continue
		}
		tag, hasTag := sf.Tag.Lookup("bun")
		if tag == "-" {
			continue
		}
		index := append(append([]int{}, parent...), i)
		if sf.Anonymous && !hasTag && sf.Type.Kind() == reflect.Struct {
			collectColumns(sf.Type, index, out)
			continue
		}
		if !sf.IsExported() {
			continue
		}

		name, opts := parseTag(tag)
		if name == "" {
			name = inflect.Underscore(sf.Name)
		}
		_, pk := opts["pk"]
		fieldType := sf.Type
		nullable := fieldType.Kind() == reflect.Ptr
		if nullable {
			fieldType = fieldType.Elem()
		}
		*out = append(*out, Column{
			Name:     name,
			GoName:   sf.Name,
			Kind:     kindOf(fieldType, opts["type"]),
			Identity: pk,
			Nullable: nullable,
			index:    index,
		})
	}
}

func parseTag(tag string) (string, map[string]string) {
	opts := make(map[string]string)
	if tag == "" {
		return "", opts
	}
	parts := strings.Split(tag, ",")
	for _, part := range parts[1:] {
		key, value, _ := strings.Cut(strings.TrimSpace(part), ":")
		opts[key] = value
	}
	name := strings.TrimSpace(parts[0])
	if strings.Contains(name, ":") {
		// "table:teams" style tags carry no column name
		key, value, _ := strings.Cut(name, ":")
		opts[key] = value
		name = ""
	}
	return name, opts
}

func kindOf(typ reflect.Type, sqlType string) Kind {
	sqlType = strings.ToLower(sqlType)
	if typ == timeType || typ.ConvertibleTo(timeType) {
		if sqlType == "date" {
			return KindDate
		}
		return KindDateTime
	}
	switch typ.Kind() {
	case reflect.String:
		if sqlType == "date" {
			return KindDate
		}
		return KindText
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInteger
	case reflect.Float32, reflect.Float64:
		return KindFloat
	case reflect.Bool:
		return KindBoolean
	default:
		return KindOther
	}
}

// TableName returns the table of an entity type: the table option of an
// embedded bun.BaseModel, or the pluralized snake-case type name.
func TableName(typ reflect.Type) string {
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() == reflect.Struct {
		if sf, ok := typ.FieldByName("BaseModel"); ok && sf.Type == baseModelType {
			_, opts := parseTag(sf.Tag.Get("bun"))
			if table := opts["table"]; table != "" {
				return table
			}
		}
	}
	return strings.ToLower(inflect.Tableize(typ.Name()))
}

// FieldNames returns the column names of typ in declaration order, identity
// included.
func FieldNames(typ reflect.Type) ([]string, error) {
	shape, err := Describe(typ)
	if err != nil {
		return nil, err
	}
	return shape.FieldNames(), nil
}

// FieldNames returns the column names in declaration order.
func (s *Shape) FieldNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Identity returns the identity column.
func (s *Shape) Identity() (Column, bool) {
	if s.identity < 0 {
		return Column{}, false
	}
	return s.Columns[s.identity], true
}

// DataColumns returns every column except the identity.
func (s *Shape) DataColumns() []Column {
	cols := make([]Column, 0, len(s.Columns))
	for _, c := range s.Columns {
		if !c.Identity {
			cols = append(cols, c)
		}
	}
	return cols
}

// Column looks up a column by name, case-insensitively.
func (s *Shape) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return Column{}, false
}
