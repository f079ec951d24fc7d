package sentencepiece

import (
	"os"
	"testing"

	"github.com/gomlx/propara-jsonlines/tokenizers/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// modelEnv names the environment variable pointing to a SentencePiece model
// (e.g. the "spiece.model" of google/flan-t5-small).
const modelEnv = "PROPARA_SENTENCEPIECE_MODEL"

func loadTestTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	modelPath := os.Getenv(modelEnv)
	if modelPath == "" {
		t.Skipf("%s not set", modelEnv)
	}
	tok, err := NewFromFile(nil, modelPath)
	require.NoError(t, err)
	return tok
}

func TestNewFromFile_Missing(t *testing.T) {
	_, err := NewFromFile(nil, "/nonexistent/tokenizer.model")
	require.Error(t, err)
}

// TestEncodeWithSpans_MatchesEncode verifies that EncodeWithSpans produces the same IDs as Encode.
func TestEncodeWithSpans_MatchesEncode(t *testing.T) {
	tok := loadTestTokenizer(t)
	inputs := []string{
		"hello",
		"hello world",
		"The quick brown fox jumps over the lazy dog.",
		"Testing tokenization with offsets.",
		"Multiple  spaces   here",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			ids := tok.Encode(input)
			result := tok.EncodeWithSpans(input)
			if !intSliceEqual(ids, result.IDs) {
				t.Errorf("Encode(%q) = %v, EncodeWithSpans(%q).IDs = %v", input, ids, input, result.IDs)
			}
			assert.Len(t, tok.Tokenize(input), len(ids))
			assert.Len(t, tok.BatchDecode(ids), len(ids))
		})
	}
}

// TestEncodeWithSpans_ValidSpans verifies that spans are valid (within bounds).
func TestEncodeWithSpans_ValidSpans(t *testing.T) {
	tok := loadTestTokenizer(t)
	inputs := []string{
		"hello world",
		"The quick brown fox.",
		"Testing 123 numbers!",
		"Hello, 世界!",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			result := tok.EncodeWithSpans(input)

			if len(result.Spans) != len(result.IDs) {
				t.Errorf("len(Spans)=%d != len(IDs)=%d", len(result.Spans), len(result.IDs))
			}

			for i, off := range result.Spans {
				if off.Start < 0 || off.End > len(input) || off.Start > off.End {
					t.Errorf("Invalid offset at %d: [%d, %d] for input length %d",
						i, off.Start, off.End, len(input))
				}
			}
		})
	}
}

// TestEncodeWithSpans_EmptyString verifies behavior with empty input.
func TestEncodeWithSpans_EmptyString(t *testing.T) {
	tok := loadTestTokenizer(t)
	result := tok.EncodeWithSpans("")
	if len(result.IDs) != 0 {
		t.Errorf("Expected empty IDs for empty input, got %v", result.IDs)
	}
	if len(result.Spans) != 0 {
		t.Errorf("Expected empty offsets for empty input, got %v", result.Spans)
	}
}

func TestSpecialTokenID(t *testing.T) {
	tok := loadTestTokenizer(t)
	_, err := tok.SpecialTokenID(api.TokUnknown)
	require.NoError(t, err)
	_, err = tok.SpecialTokenID(api.TokMask)
	require.Error(t, err)
}

func TestFindSubstring(t *testing.T) {
	assert.Equal(t, 6, findSubstring("hello world", "world", 0))
	assert.Equal(t, 6, findSubstring("hello world", "world", 6))
	assert.Equal(t, -1, findSubstring("hello world", "hello", 1))
	assert.Equal(t, -1, findSubstring("hello", "o", 10))
}

func intSliceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
