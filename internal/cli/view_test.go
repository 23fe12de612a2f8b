package cli

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestView(t *testing.T) {
	f := newStoreFixture(t)
	f.seed(t)

	out, err := f.run(t, "view")
	require.NoError(t, err)
	assert.Equal(t, "Revenue (2 row(s))\n"+
		`  {"orders":2,"revenue":171.0,"status":"open"}`+"\n"+
		`  {"orders":1,"revenue":99.5,"status":"paid"}`+"\n",
		out)
}

func TestViewFollowsWrites(t *testing.T) {
	f := newStoreFixture(t)
	f.seed(t)

	_, err := f.run(t, "put", "Order", `{"status": "void", "total": 20.5, "customer": "bob"}`, "--id", "o2", "--version", "1")
	require.NoError(t, err)

	out, err := f.run(t, "view", "Revenue")
	require.NoError(t, err)
	assert.Contains(t, out, `{"orders":1,"revenue":150.5,"status":"open"}`)
	assert.NotContains(t, out, "void")
}

func TestViewVerify(t *testing.T) {
	f := newStoreFixture(t)
	f.seed(t)

	out, err := f.run(t, "view", "--verify")
	require.NoError(t, err)
	assert.Contains(t, out, "Revenue (2 row(s)) ✓ verified")
}

func TestViewJSON(t *testing.T) {
	f := newStoreFixture(t)
	f.seed(t)

	out, err := f.run(t, "view", "--verify", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   ViewResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, int64(3), resp.Data.Seq)
	require.Len(t, resp.Data.Views, 1)
	require.NotNil(t, resp.Data.Views[0].Verified)
	assert.True(t, *resp.Data.Views[0].Verified)
	assert.JSONEq(t, `{"orders":1,"revenue":99.5,"status":"paid"}`, string(resp.Data.Views[0].Rows[1]))
}

func TestViewErrors(t *testing.T) {
	f := newStoreFixture(t)

	_, err := f.run(t, "view", "Nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "unknown view")

	_, _, err = execute(t, "view", "--db", f.db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no views declared")
}

func TestWatch(t *testing.T) {
	f := newStoreFixture(t)
	f.seed(t)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	out, _, err := executeContext(t, ctx, nil, "watch", "--interval", "20ms", "--db", f.db, "--catalog", f.catalog)
	require.NoError(t, err)
	assert.Contains(t, out, "== seq 3 ==")
	assert.Contains(t, out, `{"orders":2,"revenue":171.0,"status":"open"}`)
}

func TestWatchInvalidInterval(t *testing.T) {
	f := newStoreFixture(t)

	_, err := f.run(t, "watch", "--interval", "0s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--interval must be positive")
}
