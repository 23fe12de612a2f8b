package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const ordersCatalog = `
schema: Order: {
	fields: {
		status:   string
		total:    float
		customer: string
	}
	indexed: ["status", "total"]
	derived: large: "total > 100"
}

view: Revenue: {
	schema: "Order"
	where:  "status != \"void\""
	group: ["status"]
	aggregates: {
		orders:  "count()"
		revenue: "sum(total)"
	}
}
`

// writeFile writes content to name inside dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs the root command with args and returns stdout, stderr and
// the command error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeContext(t, context.Background(), nil, args...)
}

func executeContext(t *testing.T, ctx context.Context, stdin []byte, args ...string) (string, string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if stdin != nil {
		cmd.SetIn(bytes.NewReader(stdin))
	}
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

// storeFixture holds a database and catalog path for store commands.
type storeFixture struct {
	db      string
	catalog string
}

func newStoreFixture(t *testing.T) storeFixture {
	t.Helper()
	dir := t.TempDir()
	return storeFixture{
		db:      filepath.Join(dir, "basestar.db"),
		catalog: writeFile(t, dir, "orders.cue", ordersCatalog),
	}
}

// run executes a store command against the fixture.
func (f storeFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	args = append(args, "--db", f.db, "--catalog", f.catalog)
	out, _, err := execute(t, args...)
	return out, err
}

// seed creates two open orders and one paid order with fixed ids.
func (f storeFixture) seed(t *testing.T) {
	t.Helper()
	for _, args := range [][]string{
		{"put", "Order", `{"status": "open", "total": 150.5, "customer": "ann"}`, "--id", "o1"},
		{"put", "Order", `{"status": "open", "total": 20.5, "customer": "bob"}`, "--id", "o2"},
		{"put", "Order", `{"status": "paid", "total": 99.5, "customer": "cat"}`, "--id", "o3"},
	} {
		_, err := f.run(t, args...)
		require.NoError(t, err)
	}
}
