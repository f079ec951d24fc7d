package tokenizers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gomlx/propara-jsonlines/tokenizers/api"
	"github.com/gomlx/propara-jsonlines/tokenizers/hftokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_VocabFile(t *testing.T) {
	dir := t.TempDir()
	vocabPath := writeFile(t, dir, "vocab.txt", strings.Join([]string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "the", "The"}, "\n"))

	tok, err := Load(nil, vocabPath)
	require.NoError(t, err)
	assert.IsType(t, &hftokenizer.Tokenizer{}, tok)
	assert.Equal(t, []string{"the", "the"}, tok.Tokenize("The the"))
}

func TestLoad_ConfigNextToVocab(t *testing.T) {
	dir := t.TempDir()
	vocabPath := writeFile(t, dir, "vocab.txt", strings.Join([]string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "the", "The"}, "\n"))
	writeFile(t, dir, ConfigFileName, `{"do_lower_case": false, "unk_token": "[UNK]"}`)

	tok, err := Load(nil, vocabPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"The", "the"}, tok.Tokenize("The the"))

	// An explicit config takes precedence.
	doLowerCase := true
	tok, err = Load(&api.Config{DoLowerCase: &doLowerCase}, vocabPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"the", "the"}, tok.Tokenize("The the"))
}

func TestLoad_TokenizerJSON(t *testing.T) {
	dir := t.TempDir()
	jsonPath := writeFile(t, dir, "tokenizer.json", `{
		"added_tokens": [{"id": 0, "content": "[CLS]", "special": true}, {"id": 1, "content": "[SEP]", "special": true}],
		"normalizer": {"type": "BertNormalizer", "lowercase": true},
		"pre_tokenizer": {"type": "BertPreTokenizer"},
		"model": {"type": "WordPiece", "unk_token": "[UNK]", "vocab": {"[CLS]": 0, "[SEP]": 1, "[UNK]": 2, "rain": 3, "##s": 4}}
	}`)

	tok, err := Load(nil, jsonPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"rain", "##s"}, tok.Tokenize("Rains"))
	id, err := tok.SpecialTokenID(api.TokBeginningOfSentence)
	require.NoError(t, err)
	assert.Equal(t, 0, id)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(nil, filepath.Join(dir, "missing.txt"))
	require.Error(t, err)

	badJSON := writeFile(t, dir, "tokenizer.json", `{"model": {"type": "BPE"}}`)
	_, err = Load(nil, badJSON)
	require.Error(t, err)

	badModel := writeFile(t, dir, "broken.model", "not a proto")
	_, err = Load(nil, badModel)
	require.Error(t, err)

	writeFile(t, dir, ConfigFileName, `{"do_lower_case": "yes"}`)
	vocabPath := writeFile(t, dir, "vocab.txt", "[UNK]\n")
	_, err = Load(nil, vocabPath)
	require.Error(t, err)
}

func TestLoadConfig_Missing(t *testing.T) {
	config, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, config)
}
