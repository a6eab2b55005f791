package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodFixtures = `cases: [{
	name:  "equality"
	query: "SELECT * FROM c WHERE c.status = @s"
	params: "@s": "active"
	expect: filter: status: "active"
}, {
	name:  "count"
	query: "SELECT VALUE COUNT(1) FROM c"
	expect: aggregate: "scalar"
}]
`

const badFixtures = `cases: [{
	name:  "wrong limit"
	query: "SELECT TOP 3 * FROM c"
	expect: limit: 4
}]
`

func fixtureDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestCheckCommand_AllPass(t *testing.T) {
	dir := fixtureDir(t, map[string]string{"good.cue": goodFixtures})

	out, err := execute(t, NewCheckCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "\u2713 equality")
	assert.Contains(t, out, "\u2713 count")
	assert.Contains(t, out, "Check Summary: 2 passed, 0 failed, 2 total")
}

func TestCheckCommand_Mismatch(t *testing.T) {
	dir := fixtureDir(t, map[string]string{"good.cue": goodFixtures, "bad.cue": badFixtures})

	out, err := execute(t, NewCheckCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "\u2717 wrong limit (")
	assert.Contains(t, out, "limit: expected 4, got 3")
	assert.Contains(t, out, "Check Summary: 2 passed, 1 failed, 3 total")
}

func TestCheckCommand_MismatchJSON(t *testing.T) {
	dir := fixtureDir(t, map[string]string{"bad.cue": badFixtures})

	out, err := execute(t, NewCheckCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)

	env := decodeEnvelope(t, out)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, ErrCodeCheckFailed, env.Error.Code)

	var result CheckResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Files)
}

func TestCheckCommand_Filter(t *testing.T) {
	dir := fixtureDir(t, map[string]string{"good.cue": goodFixtures, "bad.cue": badFixtures})

	out, err := execute(t, NewCheckCommand(&RootOptions{Format: "text"}), dir, "--filter", "eq*")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Check Summary: 1 passed, 0 failed, 1 total")

	_, err = execute(t, NewCheckCommand(&RootOptions{Format: "text"}), dir, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCheckCommand_LoadErrors(t *testing.T) {
	out, err := execute(t, NewCheckCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")

	dir := fixtureDir(t, map[string]string{"typo.cue": `cases: [{name: "x", query: "SELECT * FROM c", expect: filtr: {}}]`})
	_, err = execute(t, NewCheckCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown expect key "filtr"`)
}
