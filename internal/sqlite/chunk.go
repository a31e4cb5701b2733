package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"strings"

	"github.com/pkg/errors"
)

// maxParamsPerQuery is SQLite's default SQLITE_MAX_VARIABLE_NUMBER.
const maxParamsPerQuery = 999

// preparer is satisfied by *sql.Tx, *sql.DB and *sql.Conn.
type preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// inClause returns a comma separated list of n placeholders.
func inClause(n int) string {
	if n <= 0 {
		panic(fmt.Sprintf("inClause: placeholder count must be positive, got %d", n))
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// partition splits vals into consecutive groups of at most size elements.
func partition[T any](vals []T, size int) [][]T {
	var groups [][]T
	for len(vals) > size {
		groups = append(groups, vals[:size:size])
		vals = vals[size:]
	}
	if len(vals) > 0 {
		groups = append(groups, vals)
	}
	return groups
}

// chunkedStmt executes a "%s"-templated statement once per group of values,
// substituting an IN clause sized to the group. The prepared statement is
// reused while consecutive groups have the same size.
type chunkedStmt struct {
	p        preparer
	template string
	stmt     *sql.Stmt
	size     int
}

func (c *chunkedStmt) prepare(ctx context.Context, n int) error {
	if c.stmt != nil && c.size == n {
		return nil
	}
	if err := c.close(); err != nil {
		return err
	}
	stmt, err := c.p.PrepareContext(ctx, fmt.Sprintf(c.template, inClause(n)))
	if err != nil {
		return errors.Wrapf(err, "prepare %q", c.template)
	}
	c.stmt, c.size = stmt, n
	return nil
}

func (c *chunkedStmt) close() error {
	if c.stmt == nil {
		return nil
	}
	err := c.stmt.Close()
	c.stmt, c.size = nil, 0
	return err
}

func toArgs[T any](vals []T) []any {
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	return args
}

// queryChunks yields one *sql.Rows per group of at most maxParamsPerQuery
// values. Each Rows is valid only until the loop body returns; it is closed
// before the next group is queried. Callers must not pass an empty vals.
func queryChunks[T any](ctx context.Context, p preparer, template string, vals []T) iter.Seq2[*sql.Rows, error] {
	return func(yield func(*sql.Rows, error) bool) {
		c := &chunkedStmt{p: p, template: template}
		defer c.close()

		for _, group := range partition(vals, maxParamsPerQuery) {
			if err := c.prepare(ctx, len(group)); err != nil {
				yield(nil, err)
				return
			}
			rows, err := c.stmt.QueryContext(ctx, toArgs(group)...)
			if err != nil {
				yield(nil, errors.Wrapf(err, "query %q", template))
				return
			}
			more := yield(rows, nil)
			closeErr := rows.Close()
			if !more {
				return
			}
			if closeErr != nil {
				yield(nil, errors.Wrap(closeErr, "close rows"))
				return
			}
		}
	}
}

// scanChunks runs queryChunks and calls scan for every row of every group.
func scanChunks[T any](ctx context.Context, p preparer, template string, vals []T, scan func(*sql.Rows) error) error {
	if len(vals) == 0 {
		return nil
	}
	for rows, err := range queryChunks(ctx, p, template, vals) {
		if err != nil {
			return err
		}
		for rows.Next() {
			if err := scan(rows); err != nil {
				return errors.Wrapf(err, "scan %q", template)
			}
		}
		if err := rows.Err(); err != nil {
			return errors.Wrapf(err, "iterate %q", template)
		}
	}
	return nil
}

// execChunks executes a templated statement once per group of values.
// An empty vals is a no-op.
func execChunks[T any](ctx context.Context, p preparer, template string, vals []T) error {
	if len(vals) == 0 {
		return nil
	}
	c := &chunkedStmt{p: p, template: template}
	defer c.close()

	for _, group := range partition(vals, maxParamsPerQuery) {
		if err := c.prepare(ctx, len(group)); err != nil {
			return err
		}
		if _, err := c.stmt.ExecContext(ctx, toArgs(group)...); err != nil {
			return errors.Wrapf(err, "exec %q", template)
		}
	}
	return nil
}
