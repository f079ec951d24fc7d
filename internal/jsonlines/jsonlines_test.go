package jsonlines

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

type line struct {
	Name  string   `json:"name"`
	Spans [][2]int `json:"spans"`
}

func TestWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "train.jsonlines")
	w, err := Create(path)
	require.NoError(t, err)

	require.NoError(t, w.Write(line{Name: "<cls>", Spans: [][2]int{{0, 0}}}))
	require.NoError(t, w.Write(line{Name: "b", Spans: [][2]int{{1, 2}, {2, 3}}}))
	assert.Equal(t, 2, w.Lines())

	// Nothing is visible in the final path before Close.
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, w.Close())
	require.NoError(t, w.Close()) // Idempotent.

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"{\"name\":\"<cls>\",\"spans\":[[0,0]]}\n{\"name\":\"b\",\"spans\":[[1,2],[2,3]]}\n",
		string(content))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err))

	require.Error(t, w.Write(line{Name: "late"}))
}

func TestWriter_XZ(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.jsonlines.xz")
	w, err := Create(path)
	require.NoError(t, err)
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, w.Write(line{Name: name}))
	}
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := xz.NewReader(f)
	require.NoError(t, err)
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{
		`{"name":"a","spans":null}`,
		`{"name":"b","spans":null}`,
		`{"name":"c","spans":null}`,
	}, lines)
}

func TestWriter_Abort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "train.jsonlines")
	require.NoError(t, os.WriteFile(path, []byte("previous\n"), 0o644))

	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(line{Name: "partial"}))
	w.Abort()
	w.Abort()

	// Previous output untouched, partial output kept aside.
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous\n", string(content))
	partial, err := os.ReadFile(path + ".tmp")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(partial), `{"name":"partial"`))

	// Lock released: the same path can be written again.
	w, err = Create(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	content, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, content)
}
