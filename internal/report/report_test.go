package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/gomlx/propara-jsonlines/internal/aligner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord() *aligner.Record {
	return &aligner.Record{
		Speakers:       []string{"[SPL]", "-", "-", "[SPL]"},
		Sentences:      []string{"[CLS]", "café", "##s", "[SEP]"},
		SentenceMap:    []int{0, 0, 0, 0},
		Clusters:       [][][2]int{{}},
		SubtokenMap:    []int{0, 0, 0, 0},
		TokenCharSpans: [][2]int{{0, 0}, {0, 4}, {4, 5}, {0, 0}},
		OriginalText:   "Cafés",
	}
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, 7, testRecord()))
	out := buf.String()

	assert.Contains(t, out, "paragraph #7")
	assert.Contains(t, out, "sub-token")
	assert.Contains(t, out, "[CLS]")
	assert.Contains(t, out, "##s")
	assert.Contains(t, out, "0:4")
	assert.Contains(t, out, "Café")
	// Title + top border + header + separator + 4 rows + bottom border.
	assert.Len(t, strings.Split(strings.TrimRight(out, "\n"), "\n"), 9)
}

func TestRender_Misaligned(t *testing.T) {
	r := testRecord()
	r.SentenceMap = append(r.SentenceMap, 1)
	r.TokenCharSpans[2] = [2]int{4, 99}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, 0, r))
	out := buf.String()
	assert.Contains(t, out, "4:99")
	// One extra row for the extra sentence_map entry.
	assert.Len(t, strings.Split(strings.TrimRight(out, "\n"), "\n"), 10)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestRender_WriteError(t *testing.T) {
	require.Error(t, Render(failingWriter{}, 0, testRecord()))
}
