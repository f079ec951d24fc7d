package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

const testJSON = `[
  {"para_id": 1, "prompt": "How does rain form?", "sentence_texts": ["Water evaporates.", "It condenses into clouds."]},
  {"sentence_texts": ["Rain falls."]},
  {"sentence_texts": []}
]`

var wantParagraphs = []Paragraph{
	{SentenceTexts: []string{"Water evaporates.", "It condenses into clouds."}},
	{SentenceTexts: []string{"Rain falls."}},
	{SentenceTexts: []string{}},
}

func TestDecode(t *testing.T) {
	paragraphs, err := Decode(strings.NewReader(testJSON))
	require.NoError(t, err)
	assert.Equal(t, wantParagraphs, paragraphs)
	assert.Equal(t, "Water evaporates. It condenses into clouds.", paragraphs[0].Text())
	assert.Equal(t, "", paragraphs[2].Text())
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", "sentence_texts"},
		{"not an array", `{"sentence_texts": ["a"]}`},
		{"missing field", `[{"sentence_texts": ["a"]}, {"sentences": ["b"]}]`},
		{"wrong type", `[{"sentence_texts": "a"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			require.Error(t, err)
		})
	}

	_, err := Decode(strings.NewReader(`[{"sentence_texts": ["a"]}, {}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "#1")
}

func TestLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.json")
	require.NoError(t, os.WriteFile(path, []byte(testJSON), 0o644))

	paragraphs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, wantParagraphs, paragraphs)
}

func TestLoad_XZ(t *testing.T) {
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = w.Write([]byte(testJSON))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "train.json.xz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	paragraphs, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, wantParagraphs, paragraphs)

	// Not xz compressed.
	plainPath := filepath.Join(t.TempDir(), "plain.json.xz")
	require.NoError(t, os.WriteFile(plainPath, []byte(testJSON), 0o644))
	_, err = Load(plainPath)
	require.Error(t, err)
}

func TestLoad_Parquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.parquet")
	rows := []Paragraph{
		{SentenceTexts: []string{"Water evaporates.", "It condenses into clouds."}},
		{SentenceTexts: []string{"Rain falls."}},
	}
	require.NoError(t, parquet.WriteFile(path, rows))

	paragraphs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, paragraphs, 2)
	assert.Equal(t, rows[0].SentenceTexts, paragraphs[0].SentenceTexts)
	assert.Equal(t, rows[1].SentenceTexts, paragraphs[1].SentenceTexts)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	_, err = Load(filepath.Join(t.TempDir(), "missing.parquet"))
	require.Error(t, err)
}
