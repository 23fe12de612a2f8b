package querysql

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stage-tech/basestar-sub001/internal/ir"
	"github.com/stage-tech/basestar-sub001/internal/queryir"
)

var columns = []string{"id", "version", "body"}

func TestCompileSelect(t *testing.T) {
	tests := []struct {
		name   string
		query  queryir.Query
		sql    string
		params []any
	}{
		{
			name:  "no filter",
			query: queryir.Select{From: "obj_Order", Columns: columns},
			sql:   `SELECT "id", "version", "body" FROM "obj_Order" ORDER BY "id" COLLATE BINARY ASC`,
		},
		{
			name: "compare",
			query: &queryir.Select{From: "obj_Order", Columns: columns, Filter: queryir.Compare{
				Field: "status", Op: queryir.OpEq, Value: ir.IRString("open"),
			}},
			sql:    `SELECT "id", "version", "body" FROM "obj_Order" WHERE "status" = ? ORDER BY "id" COLLATE BINARY ASC`,
			params: []any{"open"},
		},
		{
			name: "conjunction",
			query: queryir.Select{From: "t", Columns: []string{"id"}, Filter: queryir.And{Predicates: []queryir.Predicate{
				queryir.Compare{Field: "total", Op: queryir.OpGe, Value: ir.IRFloat(2.5)},
				&queryir.Compare{Field: "rush", Op: queryir.OpNe, Value: ir.IRBool(false)},
				queryir.In{Field: "qty", Values: []ir.IRValue{ir.IRInt(1), ir.IRInt(2)}},
			}}},
			sql:    `SELECT "id" FROM "t" WHERE "total" >= ? AND "rush" <> ? AND "qty" IN (?, ?) ORDER BY "id" COLLATE BINARY ASC`,
			params: []any{2.5, false, int64(1), int64(2)},
		},
		{
			name:  "empty in",
			query: queryir.Select{From: "t", Columns: []string{"id"}, Filter: queryir.In{Field: "qty"}},
			sql:   `SELECT "id" FROM "t" WHERE 1 = 0 ORDER BY "id" COLLATE BINARY ASC`,
		},
		{
			name:  "empty and",
			query: queryir.Select{From: "t", Columns: []string{"id"}, Filter: queryir.And{}},
			sql:   `SELECT "id" FROM "t" WHERE 1 = 1 ORDER BY "id" COLLATE BINARY ASC`,
		},
		{
			name:  "quoted identifiers",
			query: queryir.Select{From: `we"ird`, Columns: []string{"order"}},
			sql:   `SELECT "order" FROM "we""ird" ORDER BY "id" COLLATE BINARY ASC`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := NewSQLCompiler().Compile(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, sql)
			assert.Equal(t, tt.params, params)
		})
	}
}

func TestCompileNeverInterpolates(t *testing.T) {
	q := queryir.Select{From: "t", Columns: []string{"id"}, Filter: queryir.Compare{
		Field: "status", Op: queryir.OpEq, Value: ir.IRString("'; DROP TABLE t; --"),
	}}
	sql, params, err := NewSQLCompiler().Compile(q)
	require.NoError(t, err)
	assert.NotContains(t, sql, "DROP")
	assert.Equal(t, []any{"'; DROP TABLE t; --"}, params)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		query queryir.Query
		msg   string
	}{
		{"nil", nil, "cannot compile nil query"},
		{"no table", queryir.Select{Columns: []string{"id"}}, "select without a table"},
		{"no columns", queryir.Select{From: "t"}, "select t: explicit columns required"},
		{
			"undefined value",
			queryir.Select{From: "t", Columns: []string{"id"}, Filter: queryir.Compare{Field: "a", Op: queryir.OpEq, Value: ir.Undefined}},
			"compile filter: field a: undefined value cannot be a SQL parameter",
		},
		{
			"bad operator",
			queryir.Select{From: "t", Columns: []string{"id"}, Filter: queryir.Compare{Field: "a", Op: "LIKE", Value: ir.IRInt(1)}},
			`compile filter: unsupported operator "LIKE"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewSQLCompiler().Compile(tt.query)
			require.Error(t, err)
			assert.Equal(t, tt.msg, err.Error())
		})
	}
}

// TestCompiledSQLRunsOnSQLite executes compiled selects against a real
// database so the generated syntax, ordering and parameters are checked
// by SQLite itself.
func TestCompiledSQLRunsOnSQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE "obj_Order" ("id" TEXT PRIMARY KEY, "status" TEXT, "total" REAL, "rush" INTEGER)`)
	require.NoError(t, err)
	for _, row := range []struct {
		id     string
		status string
		total  float64
		rush   bool
	}{
		{"c", "open", 150, true},
		{"a", "open", 20, false},
		{"B", "paid", 99.5, false},
	} {
		_, err := db.Exec(`INSERT INTO "obj_Order" VALUES (?, ?, ?, ?)`, row.id, row.status, row.total, row.rush)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter queryir.Predicate
		want   []string
	}{
		{"all rows in binary id order", nil, []string{"B", "a", "c"}},
		{"compare", queryir.Compare{Field: "status", Op: queryir.OpEq, Value: ir.IRString("open")}, []string{"a", "c"}},
		{"bool column", queryir.Compare{Field: "rush", Op: queryir.OpNe, Value: ir.IRBool(false)}, []string{"c"}},
		{"conjunction", queryir.And{Predicates: []queryir.Predicate{
			queryir.Compare{Field: "total", Op: queryir.OpGt, Value: ir.IRInt(50)},
			queryir.In{Field: "status", Values: []ir.IRValue{ir.IRString("open"), ir.IRString("paid")}},
		}}, []string{"B", "c"}},
		{"empty in", queryir.In{Field: "status"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, params, err := NewSQLCompiler().Compile(queryir.Select{
				From: "obj_Order", Columns: []string{"id"}, Filter: tt.filter,
			})
			require.NoError(t, err)

			rows, err := db.Query(query, params...)
			require.NoError(t, err)
			defer rows.Close()

			var got []string
			for rows.Next() {
				var id string
				require.NoError(t, rows.Scan(&id))
				got = append(got, id)
			}
			require.NoError(t, rows.Err())
			assert.Equal(t, tt.want, got)
		})
	}
}
