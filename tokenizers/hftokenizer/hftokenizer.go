// Package hftokenizer implements the WordPiece (BERT) tokenizer as distributed by HuggingFace:
// either as a "tokenizer.json" file (the "fast" tokenizers format) with a WordPiece model,
// or as the original BERT "vocab.txt" file.
//
// Encoding keeps track of the byte span of every token in the original text, so it
// implements api.Subword.
package hftokenizer

import (
	"bufio"
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/gomlx/propara-jsonlines/tokenizers/api"
	"github.com/gomlx/propara-jsonlines/tokenizers/bert"
	"github.com/pkg/errors"
)

// TokenizerJSON represents the structure of HuggingFace's tokenizer.json file.
// Only the fields relevant to WordPiece models are parsed.
type TokenizerJSON struct {
	Version      string        `json:"version"`
	AddedTokens  []AddedToken  `json:"added_tokens"`
	Normalizer   *Normalizer   `json:"normalizer"`
	PreTokenizer *PreTokenizer `json:"pre_tokenizer"`
	Decoder      *Decoder      `json:"decoder"`
	Model        Model         `json:"model"`
}

// AddedToken represents a special token added to the vocabulary.
type AddedToken struct {
	ID         int    `json:"id"`
	Content    string `json:"content"`
	SingleWord bool   `json:"single_word"`
	Lstrip     bool   `json:"lstrip"`
	Rstrip     bool   `json:"rstrip"`
	Normalized bool   `json:"normalized"`
	Special    bool   `json:"special"`
}

// Normalizer represents the normalizer configuration.
type Normalizer struct {
	Type               string       `json:"type"`
	CleanText          *bool        `json:"clean_text"`
	HandleChineseChars *bool        `json:"handle_chinese_chars"`
	StripAccents       *bool        `json:"strip_accents"`
	Lowercase          bool         `json:"lowercase"`
	Normalizers        []Normalizer `json:"normalizers"`
}

// PreTokenizer represents the pre-tokenizer configuration.
type PreTokenizer struct {
	Type          string         `json:"type"`
	PreTokenizers []PreTokenizer `json:"pretokenizers"`
}

// Decoder represents the decoder configuration.
type Decoder struct {
	Type    string `json:"type"`
	Prefix  string `json:"prefix"`
	Cleanup bool   `json:"cleanup"`
}

// Model represents the tokenizer model. Only "WordPiece" is supported.
type Model struct {
	Type                    string         `json:"type"`
	Vocab                   map[string]int `json:"vocab"`
	UnkToken                string         `json:"unk_token"`
	ContinuingSubwordPrefix string         `json:"continuing_subword_prefix"`
	MaxInputCharsPerWord    int            `json:"max_input_chars_per_word"`
}

// Tokenizer implements api.Subword for WordPiece vocabularies.
type Tokenizer struct {
	config    *api.Config
	tokenizer *TokenizerJSON
	idToToken map[int]string

	normalization    bert.Options
	splitPunctuation bool
	prefix           string
	maxCharsPerWord  int

	// Special token IDs
	unkID  int
	padID  int
	bosID  int
	eosID  int
	clsID  int
	sepID  int
	maskID int

	// Added tokens lookup (content -> id), and their contents sorted longest first.
	addedTokens   map[string]int
	addedContents []string
}

// Compile time assert that Tokenizer implements api.Subword interface.
var _ api.Subword = &Tokenizer{}

// NewFromFile creates a HuggingFace tokenizer from a local tokenizer.json file path.
func NewFromFile(config *api.Config, filePath string) (*Tokenizer, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tokenizer.json file %q", filePath)
	}
	return NewFromContent(config, content)
}

// NewFromContent creates a HuggingFace tokenizer from tokenizer.json content.
func NewFromContent(config *api.Config, content []byte) (*Tokenizer, error) {
	var tj TokenizerJSON
	if err := json.Unmarshal(content, &tj); err != nil {
		return nil, errors.Wrapf(err, "failed to parse tokenizer.json")
	}
	return newTokenizer(config, &tj)
}

// NewFromVocabFile creates a BERT tokenizer from a "vocab.txt" file: one token per line,
// the token id being its line number (starting from 0).
//
// It's configured as HuggingFace's BertTokenizerFast: BERT normalizer (lowercasing and
// stripping accents, unless config.DoLowerCase is false), BERT pre-tokenizer and a WordPiece
// model with "[UNK]" as unknown token and "##" as continuing subword prefix.
func NewFromVocabFile(config *api.Config, filePath string) (*Tokenizer, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open vocabulary file %q", filePath)
	}
	defer f.Close()

	vocab := make(map[string]int)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for id := 0; scanner.Scan(); id++ {
		token := scanner.Text()
		if token == "" {
			continue
		}
		if _, found := vocab[token]; !found {
			vocab[token] = id
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read vocabulary file %q", filePath)
	}
	if len(vocab) == 0 {
		return nil, errors.Errorf("vocabulary file %q is empty", filePath)
	}
	return newTokenizer(config, bertTokenizerJSON(config, vocab))
}

// bertTokenizerJSON builds the equivalent tokenizer.json configuration for a BERT vocabulary.
func bertTokenizerJSON(config *api.Config, vocab map[string]int) *TokenizerJSON {
	lowercase := true
	var stripAccents, chineseChars *bool
	specials := []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]"}
	unkToken := "[UNK]"
	if config != nil {
		if config.DoLowerCase != nil {
			lowercase = *config.DoLowerCase
		}
		stripAccents = config.StripAccents
		chineseChars = config.TokenizeChineseChars
		for ii, override := range []string{config.PadToken, config.UnkToken, config.ClsToken, config.SepToken, config.MaskToken} {
			if override != "" {
				specials[ii] = override
			}
		}
		unkToken = specials[1]
	}

	tj := &TokenizerJSON{
		Version: "1.0",
		Normalizer: &Normalizer{
			Type:               "BertNormalizer",
			HandleChineseChars: chineseChars,
			StripAccents:       stripAccents,
			Lowercase:          lowercase,
		},
		PreTokenizer: &PreTokenizer{Type: "BertPreTokenizer"},
		Decoder:      &Decoder{Type: "WordPiece", Prefix: "##", Cleanup: true},
		Model: Model{
			Type:                    "WordPiece",
			Vocab:                   vocab,
			UnkToken:                unkToken,
			ContinuingSubwordPrefix: "##",
			MaxInputCharsPerWord:    100,
		},
	}
	for _, content := range specials {
		if id, found := vocab[content]; found {
			tj.AddedTokens = append(tj.AddedTokens, AddedToken{ID: id, Content: content, Special: true})
		}
	}
	return tj
}

func newTokenizer(config *api.Config, tj *TokenizerJSON) (*Tokenizer, error) {
	if tj.Model.Type != "WordPiece" {
		return nil, errors.Errorf("tokenizer model type %q not supported, only \"WordPiece\" is", tj.Model.Type)
	}
	normalization, err := normalizerOptions(tj.Normalizer)
	if err != nil {
		return nil, err
	}
	splitPunctuation, err := preTokenizerSplitsPunctuation(tj.PreTokenizer)
	if err != nil {
		return nil, err
	}

	t := &Tokenizer{
		config:           config,
		tokenizer:        tj,
		idToToken:        make(map[int]string),
		normalization:    normalization,
		splitPunctuation: splitPunctuation,
		prefix:           tj.Model.ContinuingSubwordPrefix,
		maxCharsPerWord:  tj.Model.MaxInputCharsPerWord,
		addedTokens:      make(map[string]int),
		unkID:            -1,
		padID:            -1,
		bosID:            -1,
		eosID:            -1,
		clsID:            -1,
		sepID:            -1,
		maskID:           -1,
	}
	if t.prefix == "" {
		t.prefix = "##"
	}
	if t.maxCharsPerWord <= 0 {
		t.maxCharsPerWord = 100
	}

	// Build reverse vocab (id -> token)
	for token, id := range tj.Model.Vocab {
		t.idToToken[id] = token
	}

	// Build added tokens map
	for _, at := range tj.AddedTokens {
		t.idToToken[at.ID] = at.Content
		if at.Content == "" {
			continue
		}
		t.addedTokens[at.Content] = at.ID
		t.addedContents = append(t.addedContents, at.Content)
	}
	sort.SliceStable(t.addedContents, func(i, j int) bool {
		return len(t.addedContents[i]) > len(t.addedContents[j])
	})

	t.resolveSpecialTokens()
	return t, nil
}

// normalizerOptions translates the normalizer configuration to bert.Options.
func normalizerOptions(n *Normalizer) (opts bert.Options, err error) {
	if n == nil {
		return
	}
	switch n.Type {
	case "BertNormalizer":
		opts.CleanText = n.CleanText == nil || *n.CleanText
		opts.ChineseChars = n.HandleChineseChars == nil || *n.HandleChineseChars
		opts.Lowercase = n.Lowercase
		opts.StripAccents = n.Lowercase
		if n.StripAccents != nil {
			opts.StripAccents = *n.StripAccents
		}
	case "Lowercase":
		opts.Lowercase = true
	case "StripAccents":
		opts.StripAccents = true
	case "NFD", "NFC", "NFKC", "NFKD":
		// Accent stripping does its own NFD decomposition, and vocabularies are expected
		// to be in the composed form otherwise.
	case "Sequence":
		for _, child := range n.Normalizers {
			childOpts, err := normalizerOptions(&child)
			if err != nil {
				return opts, err
			}
			opts.CleanText = opts.CleanText || childOpts.CleanText
			opts.ChineseChars = opts.ChineseChars || childOpts.ChineseChars
			opts.Lowercase = opts.Lowercase || childOpts.Lowercase
			opts.StripAccents = opts.StripAccents || childOpts.StripAccents
		}
	default:
		err = errors.Errorf("normalizer type %q not supported", n.Type)
	}
	return
}

// preTokenizerSplitsPunctuation returns whether the pre-tokenizer isolates punctuation, or
// only splits on whitespace.
func preTokenizerSplitsPunctuation(pt *PreTokenizer) (bool, error) {
	if pt == nil {
		return false, nil
	}
	switch pt.Type {
	case "BertPreTokenizer":
		return true, nil
	case "Whitespace":
		// Whitespace groups consecutive punctuation (`\w+|[^\w\s]+`), BERT splits each one:
		// they differ only on runs of punctuation.
		return true, nil
	case "WhitespaceSplit":
		return false, nil
	case "Sequence":
		split := false
		for _, child := range pt.PreTokenizers {
			childSplit, err := preTokenizerSplitsPunctuation(&child)
			if err != nil {
				return false, err
			}
			split = split || childSplit
		}
		return split, nil
	default:
		return false, errors.Errorf("pre-tokenizer type %q not supported", pt.Type)
	}
}

// resolveSpecialTokens maps special tokens from the model and config to their IDs.
func (t *Tokenizer) resolveSpecialTokens() {
	// First check the model's unk_token
	if unk := t.tokenizer.Model.UnkToken; unk != "" {
		if id, ok := t.TokenToID(unk); ok {
			t.unkID = id
		}
	}

	// Then check added tokens for special tokens
	for _, at := range t.tokenizer.AddedTokens {
		if !at.Special {
			continue
		}
		switch at.Content {
		case "[UNK]", "<unk>":
			t.unkID = at.ID
		case "[PAD]", "<pad>":
			t.padID = at.ID
		case "[CLS]", "<s>":
			t.clsID = at.ID
		case "[SEP]", "</s>":
			t.sepID = at.ID
		case "[MASK]", "<mask>":
			t.maskID = at.ID
		}
	}

	// Config special tokens take precedence, if they are in the vocabulary.
	if t.config == nil {
		return
	}
	for _, entry := range []struct {
		content string
		id      *int
	}{
		{t.config.UnkToken, &t.unkID},
		{t.config.PadToken, &t.padID},
		{t.config.ClsToken, &t.clsID},
		{t.config.SepToken, &t.sepID},
		{t.config.MaskToken, &t.maskID},
		{t.config.BosToken, &t.bosID},
		{t.config.EosToken, &t.eosID},
	} {
		if entry.content == "" {
			continue
		}
		if id, ok := t.TokenToID(entry.content); ok {
			*entry.id = id
		}
	}
}

// segment of the input text: either regular text (id < 0) or an added token.
type segment struct {
	start, end int
	id         int
}

// splitAddedTokens finds the added tokens (e.g. "[MASK]") in the raw text. Leftmost match wins,
// and the longest one on ties.
func (t *Tokenizer) splitAddedTokens(text string) []segment {
	var segments []segment
	pos := 0
	for pos < len(text) && len(t.addedContents) > 0 {
		matchAt, matchLen := -1, 0
		for _, content := range t.addedContents {
			idx := strings.Index(text[pos:], content)
			if idx >= 0 && (matchAt < 0 || idx < matchAt) {
				matchAt, matchLen = idx, len(content)
			}
		}
		if matchAt < 0 {
			break
		}
		if matchAt > 0 {
			segments = append(segments, segment{start: pos, end: pos + matchAt, id: -1})
		}
		start := pos + matchAt
		segments = append(segments, segment{start: start, end: start + matchLen, id: t.addedTokens[text[start:start+matchLen]]})
		pos = start + matchLen
	}
	if pos < len(text) {
		segments = append(segments, segment{start: pos, end: len(text), id: -1})
	}
	return segments
}

// words normalizes and pre-tokenizes a piece of text, with spans shifted by offset.
func (t *Tokenizer) words(text string, offset int) []bert.Word {
	chars := bert.Normalize(text, t.normalization)
	for ii := range chars {
		chars[ii].Start += offset
		chars[ii].End += offset
	}
	if t.splitPunctuation {
		return bert.PreTokenize(chars)
	}
	return bert.SplitWhitespace(chars)
}

// EncodeWithSpans returns the token ids of text, along with their byte spans in text.
// Special tokens like [CLS] and [SEP] are not added.
func (t *Tokenizer) EncodeWithSpans(text string) api.EncodingResult {
	var result api.EncodingResult
	for _, seg := range t.splitAddedTokens(text) {
		if seg.id >= 0 {
			result.IDs = append(result.IDs, seg.id)
			result.Spans = append(result.Spans, api.TokenSpan{Start: seg.start, End: seg.end})
			continue
		}
		for _, word := range t.words(text[seg.start:seg.end], seg.start) {
			t.wordPieceTokenize(word, &result)
		}
	}
	return result
}

// Encode converts text to a sequence of token IDs.
func (t *Tokenizer) Encode(text string) []int {
	return t.EncodeWithSpans(text).IDs
}

// Tokenize returns the sub-token strings of text, e.g. "Testing" -> ["test", "##ing"].
func (t *Tokenizer) Tokenize(text string) []string {
	return t.BatchDecode(t.Encode(text))
}

// BatchDecode returns the token string of each id, with no joining or prefix removal.
// Unknown ids are returned as empty strings.
func (t *Tokenizer) BatchDecode(ids []int) []string {
	tokens := make([]string, len(ids))
	for ii, id := range ids {
		tokens[ii] = t.idToToken[id]
	}
	return tokens
}

// wordPieceTokenize implements WordPiece tokenization (used by BERT): greedy longest-match-first.
// A word that can't be fully matched becomes a single unknown token.
func (t *Tokenizer) wordPieceTokenize(word bert.Word, result *api.EncodingResult) {
	if len(word) == 0 {
		return
	}
	if len(word) > t.maxCharsPerWord {
		t.appendUnknown(word, result)
		return
	}

	runes := make([]rune, len(word))
	for ii, c := range word {
		runes[ii] = c.Rune
	}

	var ids []int
	var spans []api.TokenSpan
	vocab := t.tokenizer.Model.Vocab
	for start := 0; start < len(runes); {
		end := len(runes)
		id := -1
		for start < end {
			substr := string(runes[start:end])
			if start > 0 {
				substr = t.prefix + substr
			}
			if vocabID, ok := vocab[substr]; ok {
				id = vocabID
				break
			}
			end--
		}
		if id < 0 {
			t.appendUnknown(word, result)
			return
		}
		ids = append(ids, id)
		spans = append(spans, word.SubSpan(start, end))
		start = end
	}
	result.IDs = append(result.IDs, ids...)
	result.Spans = append(result.Spans, spans...)
}

func (t *Tokenizer) appendUnknown(word bert.Word, result *api.EncodingResult) {
	if t.unkID < 0 {
		return
	}
	result.IDs = append(result.IDs, t.unkID)
	result.Spans = append(result.Spans, word.Span())
}

// Decode converts a sequence of token IDs back to text, merging continuing sub-words.
func (t *Tokenizer) Decode(ids []int) string {
	prefix := t.prefix
	if t.tokenizer.Decoder != nil && t.tokenizer.Decoder.Prefix != "" {
		prefix = t.tokenizer.Decoder.Prefix
	}

	var result strings.Builder
	for i, id := range ids {
		token, ok := t.idToToken[id]
		if !ok {
			continue
		}
		if strings.HasPrefix(token, prefix) && i > 0 {
			result.WriteString(strings.TrimPrefix(token, prefix))
		} else {
			if i > 0 {
				result.WriteString(" ")
			}
			result.WriteString(token)
		}
	}
	return result.String()
}

// SpecialTokenID returns the ID for a given special token.
func (t *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	switch token {
	case api.TokUnknown:
		if t.unkID >= 0 {
			return t.unkID, nil
		}
	case api.TokPad:
		if t.padID >= 0 {
			return t.padID, nil
		}
	case api.TokBeginningOfSentence:
		if t.bosID >= 0 {
			return t.bosID, nil
		}
		// Fall back to CLS for BERT-style models
		if t.clsID >= 0 {
			return t.clsID, nil
		}
	case api.TokEndOfSentence:
		if t.eosID >= 0 {
			return t.eosID, nil
		}
		// Fall back to SEP for BERT-style models
		if t.sepID >= 0 {
			return t.sepID, nil
		}
	case api.TokMask:
		if t.maskID >= 0 {
			return t.maskID, nil
		}
	case api.TokClassification:
		if t.clsID >= 0 {
			return t.clsID, nil
		}
	}
	return 0, errors.Errorf("special token %s not found", token)
}

// VocabSize returns the number of distinct token ids.
func (t *Tokenizer) VocabSize() int {
	return len(t.idToToken)
}

// GetTokenizerType returns the model type (always "WordPiece").
func (t *Tokenizer) GetTokenizerType() string {
	return t.tokenizer.Model.Type
}

// TokenToID converts a token string to its ID.
func (t *Tokenizer) TokenToID(token string) (int, bool) {
	if id, ok := t.addedTokens[token]; ok {
		return id, true
	}
	id, ok := t.tokenizer.Model.Vocab[token]
	return id, ok
}

// IDToToken converts a token ID to its string.
func (t *Tokenizer) IDToToken(id int) (string, bool) {
	token, ok := t.idToToken[id]
	return token, ok
}
