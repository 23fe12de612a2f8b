package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stage-tech/basestar-sub001/internal/compiler"
	"github.com/stage-tech/basestar-sub001/internal/ir"
)

func TestCompileCatalog(t *testing.T) {
	path := writeFile(t, t.TempDir(), "orders.cue", ordersCatalog)

	out, _, err := execute(t, "compile", path)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 1 schema(s), 1 view(s)")
	assert.Contains(t, out, "Order: 3 field(s), 2 indexed, 1 derived")
	assert.Contains(t, out, "Revenue: Order → orders, revenue")
}

func TestCompileCatalogJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "orders.cue", ordersCatalog)

	out, _, err := execute(t, "compile", path, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   ir.Catalog `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Schemas, 1)
	assert.Equal(t, "total > 100", resp.Data.Schemas[0].Derived["large"])
	require.Len(t, resp.Data.Views, 1)
	assert.Equal(t, []string{"status"}, resp.Data.Views[0].GroupBy)
}

func TestCompileOutputToFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "orders.cue", ordersCatalog)
	output := filepath.Join(dir, "catalog.json")

	out, _, err := execute(t, "compile", path, "-o", output)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote canonical IR to "+output)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var catalog ir.Catalog
	require.NoError(t, json.Unmarshal(data, &catalog))
	assert.Equal(t, "Order", catalog.Schemas[0].Name)
	assert.Equal(t, "Revenue", catalog.Views[0].Name)
}

func TestCompileDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "order.cue", "package catalog\n\nschema: Order: fields: total: float\n")
	writeFile(t, dir, "views.cue", "package catalog\n\nview: Total: {\n\tschema: \"Order\"\n\taggregates: total: \"sum(total)\"\n}\n")

	out, _, err := execute(t, "compile", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled 1 schema(s), 1 view(s)")
}

func TestCompileErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
		code string
	}{
		{"missing path", filepath.Join(dir, "nope"), ErrCodeNotFound},
		{"empty directory", t.TempDir(), ErrCodeNoFiles},
		{"reserved field", writeFile(t, dir, "reserved.cue", "schema: Order: fields: id: string\n"), compiler.ErrReservedField},
		{"unknown view schema", writeFile(t, dir, "unknown.cue", "schema: Order: fields: total: float\nview: V: {\n\tschema: \"Invoice\"\n\taggregates: n: \"count()\"\n}\n"), compiler.ErrUnknownSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, "compile", tt.path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.code)
			assert.Contains(t, out, "✗ Compilation failed")
			assert.Contains(t, out, tt.code)
		})
	}
}

func TestCompileErrorsJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.cue", "schema: Order: fields: {\n\tid: string\n\tversion: int\n}\n")

	out, _, err := execute(t, "compile", path, "--format", "json")
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Error  CLIError   `json:"error"`
		Data   []CLIError `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, compiler.ErrReservedField, resp.Error.Code)
	assert.Len(t, resp.Data, 2)
}

func TestCompileVerboseOutput(t *testing.T) {
	path := writeFile(t, t.TempDir(), "orders.cue", ordersCatalog)

	_, stderr, err := execute(t, "compile", path, "--verbose")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Compiled schema: Order")
	assert.Contains(t, stderr, "Compiled view: Revenue")
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"cue", ErrCodeBuildFailed},
		{"fields", compiler.ErrSchemaNoFields},
		{"type", compiler.ErrInvalidFieldType},
		{"schema", compiler.ErrUnknownSchema},
		{"aggregates", compiler.ErrViewNoAggregates},
		{"other", ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}

func TestCalculateStats(t *testing.T) {
	stats := calculateStats(&ir.Catalog{
		Schemas: []ir.ObjectSchema{
			{Name: "A", Fields: map[string]string{"x": "int", "y": "string"}},
			{Name: "B", Fields: map[string]string{"z": "float"}},
		},
		Views: []ir.ViewSpec{
			{Name: "V", Schema: "A", Aggregates: map[string]string{"n": "count()", "s": "sum(x)"}},
		},
	})

	assert.Equal(t, 2, stats.SchemaCount)
	assert.Equal(t, 1, stats.ViewCount)
	assert.Equal(t, 3, stats.TotalFields)
	assert.Equal(t, 2, stats.TotalAggregates)
}
