package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFixtures(t *testing.T) {
	set, err := LoadFixtures(filepath.Join("testdata", "fixtures"))
	require.NoError(t, err)

	assert.Equal(t, 2, set.Files)
	require.Len(t, set.Cases, 6)

	// aggregate.cue sorts before find.cue.
	assert.Equal(t, "scalar count", set.Cases[0].Name)
	assert.Equal(t, "equality with parameter", set.Cases[2].Name)
	require.Len(t, set.Cases[2].Params, 1)
	assert.Equal(t, "@status", set.Cases[2].Params[0].Name)
	assert.Contains(t, set.Cases[2].Pos, "find.cue")
}

func TestCheckFixture_AllPass(t *testing.T) {
	set, err := LoadFixtures(filepath.Join("testdata", "fixtures"))
	require.NoError(t, err)

	for _, f := range set.Cases {
		t.Run(f.Name, func(t *testing.T) {
			res := CheckFixture(f)
			assert.True(t, res.Pass, "errors: %v", res.Errors)
			assert.NotNil(t, res.Translation)
		})
	}
}

func TestCheckFixture_Mismatch(t *testing.T) {
	f := Fixture{
		Name:   "wrong limit",
		Query:  "SELECT TOP 3 * FROM c",
		Expect: map[string]any{"limit": 4, "skip": 0},
	}

	res := CheckFixture(f)
	assert.False(t, res.Pass)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "limit: expected 4, got 3", res.Errors[0])
}

func TestLoadFixtures_UnknownExpectKey(t *testing.T) {
	_, err := LoadFixtures(filepath.Join("testdata", "bad"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown expect key "filtr"`)
}

func TestLoadFixtures_Errors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		_, err := LoadFixtures(filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})

	t.Run("not a directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file.cue")
		require.NoError(t, os.WriteFile(path, []byte("cases: []"), 0o644))
		_, err := LoadFixtures(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a directory")
	})

	t.Run("no cue files", func(t *testing.T) {
		_, err := LoadFixtures(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no CUE files")
	})

	t.Run("invalid cue", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "x.cue"), []byte("cases: [ {"), 0o644))
		_, err := LoadFixtures(dir)
		assert.Error(t, err)
	})

	t.Run("no cases", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "x.cue"), []byte("other: 1"), 0o644))
		_, err := LoadFixtures(dir)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no cases found")
	})
}
