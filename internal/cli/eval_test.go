package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"arithmetic", []string{"1 + 2 * 3"}, "7\n"},
		{"float promotion", []string{"1 + 0.5"}, "1.5\n"},
		{"vars", []string{`total > 100 && status == "open"`, "--vars", `{"total": 150, "status": "open"}`}, "true\n"},
		{"missing variable", []string{"missing"}, "undefined\n"},
		{"undefined comparison", []string{"missing > 1"}, "false\n"},
		{"coalesce", []string{"a ?? b", "--vars", `{"b": "x"}`}, "\"x\"\n"},
		{"comprehension", []string{"[x * 2 for x of xs]", "--vars", `{"xs": [1, 2, 3]}`}, "[2,4,6]\n"},
		{"bind", []string{"a + b", "--vars", `{"a": 1}`, "--bind"}, "1 + b\n"},
		{"bind folds constants", []string{"2 * 3 + b", "--bind"}, "6 + b\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, append([]string{"eval"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestEvalJSON(t *testing.T) {
	out, _, err := execute(t, "eval", "a * 2", "--vars", `{"a": 21}`, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Expression string          `json:"expression"`
			Result     json.RawMessage `json:"result"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "a * 2", resp.Data.Expression)
	assert.JSONEq(t, "42", string(resp.Data.Result))
}

func TestEvalJSON_Undefined(t *testing.T) {
	out, _, err := execute(t, "eval", "missing", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"result":null`)
}

func TestEvalVarsFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "vars.json", `{"name": "basestar"}`)

	out, _, err := execute(t, "eval", "name.size()", "--vars-file", path)
	require.NoError(t, err)
	assert.Equal(t, "8\n", out)
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		exitCode int
		code     string
	}{
		{"parse error", []string{"1 +"}, ExitCommandError, ErrCodeParse},
		{"division by zero", []string{"1 / 0"}, ExitFailure, ErrCodeEvaluate},
		{"type error", []string{`1 + "a"`}, ExitFailure, ErrCodeEvaluate},
		{"ungrouped aggregate", []string{"sum(x)"}, ExitFailure, ErrCodeEvaluate},
		{"vars not an object", []string{"1", "--vars", "[1]"}, ExitCommandError, ErrCodeInvalidArg},
		{"vars not json", []string{"1", "--vars", "{"}, ExitCommandError, ErrCodeInvalidArg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, append([]string{"eval"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.code)
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}

func TestEvalErrorJSON(t *testing.T) {
	out, _, err := execute(t, "eval", "1 / 0", "--format", "json")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeEvaluate, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "division by zero")
}

func TestEvalVarsMutuallyExclusive(t *testing.T) {
	_, _, err := execute(t, "eval", "1", "--vars", "{}", "--vars-file", "x.json")
	require.Error(t, err)
}
