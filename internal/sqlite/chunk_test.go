package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", dsn(filepath.Join(t.TempDir(), "chunk.db")))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// countingPreparer records the statements it prepares.
type countingPreparer struct {
	preparer
	queries []string
}

func (c *countingPreparer) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	c.queries = append(c.queries, query)
	return c.preparer.PrepareContext(ctx, query)
}

func TestInClause(t *testing.T) {
	require.Equal(t, "?", inClause(1))
	require.Equal(t, "?, ?, ?", inClause(3))
	require.Panics(t, func() { inClause(0) })
	require.Panics(t, func() { inClause(-1) })
}

func TestPartition(t *testing.T) {
	require.Empty(t, partition([]int{}, 3))
	require.Equal(t, [][]int{{1, 2, 3}}, partition([]int{1, 2, 3}, 3))
	require.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, partition([]int{1, 2, 3, 4, 5}, 2))

	groups := partition(make([]int64, 2500), maxParamsPerQuery)
	require.Len(t, groups, 3)
	require.Len(t, groups[0], 999)
	require.Len(t, groups[1], 999)
	require.Len(t, groups[2], 502)

	// Appending to a group must not clobber the next one.
	vals := []int{1, 2, 3, 4}
	groups2 := partition(vals, 2)
	_ = append(groups2[0], 99)
	require.Equal(t, []int{1, 2, 3, 4}, vals)
}

func TestQueryChunksSpansGroups(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	_, err := db.Exec(`CREATE TABLE nums(n INTEGER PRIMARY KEY)`)
	require.NoError(t, err)

	vals := make([]int64, 2500)
	for i := range vals {
		vals[i] = int64(i)
	}
	require.NoError(t, inTx(ctx, db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO nums(n) VALUES (?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, v := range vals {
			if _, err := stmt.Exec(v); err != nil {
				return err
			}
		}
		return nil
	}))

	p := &countingPreparer{preparer: db}
	var got []int64
	require.NoError(t, scanChunks(ctx, p, `SELECT n FROM nums WHERE n IN (%s) ORDER BY n`, vals, func(rows *sql.Rows) error {
		var n int64
		if err := rows.Scan(&n); err != nil {
			return err
		}
		got = append(got, n)
		return nil
	}))
	require.Equal(t, vals, got)
	// Two full groups share a statement; the short tail needs its own.
	require.Len(t, p.queries, 2)

	p.queries = nil
	require.NoError(t, execChunks(ctx, p, `DELETE FROM nums WHERE n IN (%s)`, vals[:1998]))
	require.Len(t, p.queries, 1)

	var left int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM nums`).Scan(&left))
	require.Equal(t, 502, left)
}

func TestChunksSkipEmptyInput(t *testing.T) {
	ctx := context.Background()
	p := &countingPreparer{}

	require.NoError(t, execChunks(ctx, p, `DELETE FROM nowhere WHERE id IN (%s)`, []int64{}))
	require.NoError(t, scanChunks(ctx, p, `SELECT id FROM nowhere WHERE id IN (%s)`, []string(nil),
		func(*sql.Rows) error { return nil }))
	require.Empty(t, p.queries)
}

func TestQueryChunksStopsEarly(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	vals := make([]int, 2000)
	var batches int
	for rows, err := range queryChunks(ctx, db, `SELECT 1 WHERE 1 IN (%s)`, vals) {
		require.NoError(t, err)
		require.NotNil(t, rows)
		batches++
		break
	}
	require.Equal(t, 1, batches)

	// The connection is free again once iteration stops.
	require.NoError(t, db.Ping())
}
