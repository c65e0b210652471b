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

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tomoncle/roster/database"
	"github.com/tomoncle/roster/sqlgen"
	"github.com/tomoncle/roster/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/schema"
)

// Option configures a repository.
type Option func(*options)

type options struct {
	logger database.Logger
}

// WithLogger sets the logger that receives each statement at debug level.
func WithLogger(logger database.Logger) Option {
	return func(o *options) { o.logger = logger }
}

type baseRepositoryImpl[T any] struct {
	db      *bun.DB
	builder *sqlgen.Builder[T]
	logger  database.Logger
}

// NewRepository returns a generic repository for T backed by db. T must be a
// struct with bun column tags and an identity column.
func NewRepository[T any](db *bun.DB, opts ...Option) (Repository[T], error) {
	return newBaseRepository[T](db, opts...)
}

func newBaseRepository[T any](db *bun.DB, opts ...Option) (*baseRepositoryImpl[T], error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database is nil", ErrInvalidArgument)
	}
	builder, err := sqlgen.NewBuilder[T]()
	if err != nil {
		return nil, err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = database.NopLogger()
	}
	return &baseRepositoryImpl[T]{db: db, builder: builder, logger: o.logger}, nil
}

func (r *baseRepositoryImpl[T]) Table() string { return r.builder.Table() }

func (r *baseRepositoryImpl[T]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *baseRepositoryImpl[T]) Insert(ctx context.Context, record *T) (int64, error) {
	if record == nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidArgument, sqlgen.ErrNilRecord)
	}
	return r.insert(ctx, "insert", record)
}

// InsertMany inserts all records in one statement and returns the identity
// of the last row. Storage is assumed to assign identities contiguously.
func (r *baseRepositoryImpl[T]) InsertMany(ctx context.Context, records ...*T) (int64, error) {
	if len(records) == 0 {
		return 0, fmt.Errorf("%w: %w", ErrInvalidArgument, sqlgen.ErrEmptyBatch)
	}
	return r.insert(ctx, "insert-many", records...)
}

func (r *baseRepositoryImpl[T]) insert(ctx context.Context, op string, records ...*T) (int64, error) {
	stmt, err := r.builder.Insert(records...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	r.log(op, stmt)

	var ids []int64
	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		ids, err = r.execInsert(ctx, tx, stmt, len(records))
		return err
	})
	if err != nil {
		return 0, database.NewStorageError(op, err)
	}

	last := ids[0]
	for i, record := range records {
		r.builder.SetIdentity(record, ids[i])
		last = max(last, ids[i])
	}
	return last, nil
}

func (r *baseRepositoryImpl[T]) execInsert(ctx context.Context, tx bun.Tx, stmt sqlgen.Statement, n int) ([]int64, error) {
	name := r.db.Dialect().Name()
	if name == dialect.PG {
		var ids []int64
		query := stmt.Query + " RETURNING " + r.builder.IdentityColumn()
		if err := tx.NewRaw(query, stmt.Args...).Scan(ctx, &ids); err != nil {
			return nil, err
		}
		if len(ids) != n {
			return nil, fmt.Errorf("insert returned %d identities for %d rows", len(ids), n)
		}
		return ids, nil
	}

	res, err := tx.ExecContext(ctx, stmt.Query, stmt.Args...)
	if err != nil {
		return nil, err
	}
	lastInsertID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return insertedIdentities(name, lastInsertID, n), nil
}

// insertedIdentities expands LastInsertId into the identities of a batch of
// n rows. MySQL reports the first row of the batch, SQLite the last.
func insertedIdentities(name dialect.Name, lastInsertID int64, n int) []int64 {
	first := lastInsertID - int64(n) + 1
	if name == dialect.MySQL {
		first = lastInsertID
	}
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = first + int64(i)
	}
	return ids
}

// Update writes the present fields of record to row id and echoes id. A
// record without present fields executes nothing.
func (r *baseRepositoryImpl[T]) Update(ctx context.Context, id int64, record *T) (int64, error) {
	if record == nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidArgument, sqlgen.ErrNilRecord)
	}
	stmt, err := r.builder.Update(id, record)
	if errors.Is(err, sqlgen.ErrNoAssignments) {
		r.logger.Debug("update skipped", "table", r.Table(), "id", id)
		return id, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	if err := r.exec(ctx, "update", stmt); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *baseRepositoryImpl[T]) FindAll(ctx context.Context) ([]*T, error) {
	return r.query(ctx, "find-all", r.builder.SelectAll())
}

// FindByID returns the row with identity id, or nil when there is none.
func (r *baseRepositoryImpl[T]) FindByID(ctx context.Context, id int64) (*T, error) {
	return r.first(r.query(ctx, "find-by-id", r.builder.SelectByID(id)))
}

// Delete removes row id and echoes id whether or not the row existed.
func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, id int64) (int64, error) {
	if err := r.exec(ctx, "delete", r.builder.Delete(id)); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *baseRepositoryImpl[T]) DeleteAll(ctx context.Context) error {
	return r.exec(ctx, "delete-all", r.builder.DeleteAll())
}

func (r *baseRepositoryImpl[T]) FindWhere(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	where, args := filter.Condition()
	return r.query(ctx, "find-where", r.builder.SelectWhere(where, args...))
}

// FindOne returns the first matching row by identity, or nil.
func (r *baseRepositoryImpl[T]) FindOne(ctx context.Context, filter *types.QueryFilter) (*T, error) {
	return r.first(r.FindWhere(ctx, filter))
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context, filter *types.QueryFilter) (int, error) {
	where, args := filter.Condition()
	stmt := r.builder.Count(where, args...)
	r.log("count", stmt)
	var total int
	if err := r.db.NewRaw(stmt.Query, stmt.Args...).Scan(ctx, &total); err != nil {
		return 0, database.NewStorageError("count", err)
	}
	return total, nil
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, pageRequest *types.PageRequest) (*types.Pagination[T], error) {
	if pageRequest == nil {
		pageRequest = types.NewDefaultPageRequest(types.DefaultPage, types.DefaultPageSize)
	}
	where, args := pageRequest.GetFilter().Condition()
	stmt, err := r.builder.SelectPage(where, args, pageRequest.GetOrders(), pageRequest.GetPageSize(), pageRequest.GetOffset())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	pagination := types.NewDefaultPagination[T](pageRequest.GetPage(), pageRequest.GetPageSize())
	total, err := r.Count(ctx, pageRequest.GetFilter())
	if err != nil || total == 0 {
		return pagination, err
	}
	items, err := r.query(ctx, "page", stmt)
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	pagination.Items = items
	return pagination, nil
}

func (r *baseRepositoryImpl[T]) exec(ctx context.Context, op string, stmt sqlgen.Statement) error {
	r.log(op, stmt)
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, stmt.Query, stmt.Args...)
		return err
	})
	return database.NewStorageError(op, err)
}

// query maps the result columns onto T by name.
func (r *baseRepositoryImpl[T]) query(ctx context.Context, op string, stmt sqlgen.Statement) ([]*T, error) {
	r.log(op, stmt)
	records := make([]*T, 0)
	err := r.db.NewRaw(stmt.Query, stmt.Args...).Scan(ctx, &records)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, database.NewStorageError(op, err)
	}
	return records, nil
}

func (r *baseRepositoryImpl[T]) first(records []*T, err error) (*T, error) {
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

func (r *baseRepositoryImpl[T]) log(op string, stmt sqlgen.Statement) {
	r.logger.Debug("execute statement", "table", r.Table(), "op", op, "sql", stmt.String())
}
