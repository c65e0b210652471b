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
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyBatch    = errors.New("sqlgen: insert requires at least one record")
	ErrNilRecord     = errors.New("sqlgen: record is nil")
	ErrNoAssignments = errors.New("sqlgen: record has no present fields to update")
	ErrInvalidOrder  = errors.New("sqlgen: invalid order expression")
)

// Statement is a query with ? placeholders and its bound arguments.
type Statement struct {
	Query string
	Args  []any
	kinds []Kind
}

// String renders the statement with its arguments inlined as literals. It is
// meant for logs; execution always binds Args. A ? inside a quoted literal or
// identifier is not a placeholder.
func (s Statement) String() string {
	if len(s.Args) == 0 {
		return s.Query
	}
	var sb strings.Builder
	arg := 0
	var inQuote rune
	for _, r := range s.Query {
		switch {
		case inQuote != 0:
			if r == inQuote {
				inQuote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			inQuote = r
		}
		if inQuote == 0 && r == '?' && arg < len(s.Args) {
			kind := KindOther
			if arg < len(s.kinds) {
				kind = s.kinds[arg]
			}
			sb.WriteString(Literal(s.Args[arg], kind))
			arg++
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Builder derives SQL text for one entity type from its Shape.
type Builder[T any] struct {
	shape    *Shape
	identity Column
	data     []Column
	columns  string
}

// NewBuilder describes T and returns its builder. T must declare an identity.
func NewBuilder[T any]() (*Builder[T], error) {
	shape, err := ShapeOf[T]()
	if err != nil {
		return nil, err
	}
	identity, ok := shape.Identity()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoIdentity, shape.Type.Name())
	}
	return &Builder[T]{
		shape:    shape,
		identity: identity,
		data:     shape.DataColumns(),
		columns:  strings.Join(shape.FieldNames(), ", "),
	}, nil
}

func (b *Builder[T]) Shape() *Shape { return b.shape }

func (b *Builder[T]) Table() string { return b.shape.Table }

func (b *Builder[T]) IdentityColumn() string { return b.identity.Name }

// InsertColumns returns the comma-joined non-identity column names.
func (b *Builder[T]) InsertColumns() string {
	names := make([]string, len(b.data))
	for i, c := range b.data {
		names[i] = c.Name
	}
	return strings.Join(names, ", ")
}

// InsertValues renders every non-identity value of rec as a literal, in
// InsertColumns order.
func (b *Builder[T]) InsertValues(rec *T) string {
	strct := reflect.ValueOf(rec).Elem()
	values := make([]string, len(b.data))
	for i, c := range b.data {
		v, _ := c.value(strct)
		values[i] = Literal(v, c.Kind)
	}
	return strings.Join(values, ", ")
}

// UpdateAssignments renders column=literal pairs for the present
// non-identity fields of rec.
func (b *Builder[T]) UpdateAssignments(rec *T) string {
	strct := reflect.ValueOf(rec).Elem()
	pairs := make([]string, 0, len(b.data))
	for _, c := range b.data {
		v, present := c.value(strct)
		if !present {
			continue
		}
		pairs = append(pairs, c.Name+"="+Literal(v, c.Kind))
	}
	return strings.Join(pairs, ", ")
}

// Insert builds a single INSERT with one value tuple per record.
func (b *Builder[T]) Insert(records ...*T) (Statement, error) {
	if len(records) == 0 {
		return Statement{}, ErrEmptyBatch
	}
	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(b.data)), ", ") + ")"
	tuples := make([]string, len(records))
	stmt := Statement{
		Args:  make([]any, 0, len(records)*len(b.data)),
		kinds: make([]Kind, 0, len(records)*len(b.data)),
	}
	for i, rec := range records {
		if rec == nil {
			return Statement{}, fmt.Errorf("%w: position %d", ErrNilRecord, i)
		}
		strct := reflect.ValueOf(rec).Elem()
		for _, c := range b.data {
			v, _ := c.value(strct)
			stmt.Args = append(stmt.Args, v)
			stmt.kinds = append(stmt.kinds, c.Kind)
		}
		tuples[i] = placeholders
	}
	stmt.Query = fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", b.shape.Table, b.InsertColumns(), strings.Join(tuples, ", "))
	return stmt, nil
}

// Update builds an UPDATE of the present fields of rec for row id.
func (b *Builder[T]) Update(id int64, rec *T) (Statement, error) {
	if rec == nil {
		return Statement{}, ErrNilRecord
	}
	strct := reflect.ValueOf(rec).Elem()
	var stmt Statement
	sets := make([]string, 0, len(b.data))
	for _, c := range b.data {
		v, present := c.value(strct)
		if !present {
			continue
		}
		sets = append(sets, c.Name+" = ?")
		stmt.Args = append(stmt.Args, v)
		stmt.kinds = append(stmt.kinds, c.Kind)
	}
	if len(sets) == 0 {
		return Statement{}, ErrNoAssignments
	}
	stmt.Args = append(stmt.Args, id)
	stmt.kinds = append(stmt.kinds, KindInteger)
	stmt.Query = fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", b.shape.Table, strings.Join(sets, ", "), b.identity.Name)
	return stmt, nil
}

// SelectAll selects every row ordered by identity.
func (b *Builder[T]) SelectAll() Statement {
	return Statement{Query: fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", b.columns, b.shape.Table, b.identity.Name)}
}

func (b *Builder[T]) SelectByID(id int64) Statement {
	return Statement{
		Query: fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", b.columns, b.shape.Table, b.identity.Name),
		Args:  []any{id},
		kinds: []Kind{KindInteger},
	}
}

// SelectWhere selects the rows matching a caller-supplied condition. The
// condition may use ? placeholders for args.
func (b *Builder[T]) SelectWhere(where string, args ...any) Statement {
	query := fmt.Sprintf("SELECT %s FROM %s", b.columns, b.shape.Table)
	if where != "" {
		query += " WHERE " + where
	}
	return Statement{Query: query + " ORDER BY " + b.identity.Name, Args: args}
}

// SelectPage selects one page of matching rows. orders are "column" or
// "column ASC|DESC" and must name declared columns; the identity orders ties.
func (b *Builder[T]) SelectPage(where string, args []any, orders []string, limit, offset int) (Statement, error) {
	orderBy, err := b.orderBy(orders)
	if err != nil {
		return Statement{}, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s", b.columns, b.shape.Table)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY " + orderBy + " LIMIT ? OFFSET ?"
	pageArgs := append(append([]any{}, args...), limit, offset)
	return Statement{Query: query, Args: pageArgs}, nil
}

func (b *Builder[T]) Count(where string, args ...any) Statement {
	query := fmt.Sprintf("SELECT count(*) FROM %s", b.shape.Table)
	if where != "" {
		query += " WHERE " + where
	}
	return Statement{Query: query, Args: args}
}

func (b *Builder[T]) Delete(id int64) Statement {
	return Statement{
		Query: fmt.Sprintf("DELETE FROM %s WHERE %s = ?", b.shape.Table, b.identity.Name),
		Args:  []any{id},
		kinds: []Kind{KindInteger},
	}
}

// DeleteAll removes every row with a positive identity.
func (b *Builder[T]) DeleteAll() Statement {
	return Statement{Query: fmt.Sprintf("DELETE FROM %s WHERE %s > 0", b.shape.Table, b.identity.Name)}
}

// Identity returns the identity value of rec.
func (b *Builder[T]) Identity(rec *T) int64 {
	fv := reflect.ValueOf(rec).Elem().FieldByIndex(b.identity.index)
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			return 0
		}
		fv = fv.Elem()
	}
	if fv.CanInt() {
		return fv.Int()
	}
	if fv.CanUint() {
		return int64(fv.Uint())
	}
	return 0
}

// SetIdentity writes a storage-assigned identity into rec.
func (b *Builder[T]) SetIdentity(rec *T, id int64) {
	fv := reflect.ValueOf(rec).Elem().FieldByIndex(b.identity.index)
	if fv.Kind() == reflect.Ptr {
		ptr := reflect.New(fv.Type().Elem())
		fv.Set(ptr)
		fv = ptr.Elem()
	}
	switch {
	case fv.CanInt():
		fv.SetInt(id)
	case fv.CanUint():
		fv.SetUint(uint64(id))
	}
}

func (b *Builder[T]) orderBy(orders []string) (string, error) {
	terms := make([]string, 0, len(orders)+1)
	for _, order := range orders {
		fields := strings.Fields(order)
		if len(fields) == 0 || len(fields) > 2 {
			return "", fmt.Errorf("%w: %q", ErrInvalidOrder, order)
		}
		col, ok := b.shape.Column(fields[0])
		if !ok {
			return "", fmt.Errorf("%w: unknown column %q", ErrInvalidOrder, fields[0])
		}
		term := col.Name
		if len(fields) == 2 {
			dir := strings.ToUpper(fields[1])
			if dir != "ASC" && dir != "DESC" {
				return "", fmt.Errorf("%w: %q", ErrInvalidOrder, order)
			}
			term += " " + dir
		}
		terms = append(terms, term)
	}
	terms = append(terms, b.identity.Name)
	return strings.Join(terms, ", "), nil
}

// Literal renders v as SQL text. Text, date and date-time values are single
// quoted with embedded quotes doubled; nil renders NULL. KindOther infers the
// kind from the value.
func Literal(v any, kind Kind) string {
	if v == nil {
		return "NULL"
	}
	if kind == KindOther {
		kind = kindOf(reflect.TypeOf(v), "")
	}
	switch val := v.(type) {
	case time.Time:
		layout := "2006-01-02 15:04:05"
		if kind == KindDate {
			layout = "2006-01-02"
		}
		return quote(val.Format(layout))
	case string:
		if kind.Quoted() {
			return quote(val)
		}
		return val
	case bool:
		return strconv.FormatBool(val)
	case []byte:
		return quote(string(val))
	}
	if kind.Quoted() {
		return quote(fmt.Sprint(v))
	}
	return fmt.Sprint(v)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
