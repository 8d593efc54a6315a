package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleState(gen int64) *State {
	return &State{
		SchemaVersion: 1,
		Commit:        "abc123",
		Generation:    gen,
		Languages:     []string{"go", "python"},
		IndexedAt:     "2026-01-02T03:04:05Z",
		Files: map[string]FileState{
			"main.go":     {Fingerprint: "f1", IdentityPath: "main.go", Language: "go"},
			"lib/util.py": {Fingerprint: "f2", IdentityPath: "old/util.py", Language: "python"},
		},
	}
}

func TestLoadEmpty(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	st, err := s.Load()
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	want := sampleState(3)
	require.NoError(t, s.Save(want))

	got, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"lib/util.py", "main.go"}, got.Paths())
}

func TestSaveReplacesFiles(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(sampleState(1)))

	next := sampleState(2)
	delete(next.Files, "main.go")
	next.Files["cmd/app.go"] = FileState{Fingerprint: "f3", Language: "go"}
	require.NoError(t, s.Save(next))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Generation)
	assert.Equal(t, []string{"cmd/app.go", "lib/util.py"}, got.Paths())
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Save(sampleState(7)))
	require.NoError(t, s.Close())

	s2, err := Open(dir, nil)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.Generation)
	assert.Len(t, got.Files, 2)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("", nil)
	assert.Error(t, err)
}
