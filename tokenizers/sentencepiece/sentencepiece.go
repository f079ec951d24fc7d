// Package sentencepiece implements api.Subword based on a SentencePiece model file
// ("tokenizer.model", or any "*.model" SentencePiece Model proto).
package sentencepiece

import (
	"strings"

	esentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/gomlx/propara-jsonlines/tokenizers/api"
	"github.com/pkg/errors"
)

// metaspace is U+2581 (lower one eighth block), used by SentencePiece in place of spaces.
const metaspace = "▁"

// NewFromFile creates a SentencePiece tokenizer from a local model file.
//
// The config is accepted for symmetry with the other tokenizers: special tokens are taken
// from the model itself.
func NewFromFile(config *api.Config, filePath string) (*Tokenizer, error) {
	proc, err := esentencepiece.NewProcessorFromPath(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "can't create sentencepiece tokenizer from %q", filePath)
	}
	return &Tokenizer{
		Processor: proc,
		Info:      proc.ModelInfo(),
	}, nil
}

// Tokenizer implements api.Subword based on SentencePiece tokenizer by Google.
type Tokenizer struct {
	*esentencepiece.Processor
	Info *esentencepiece.ModelInfo
}

// Compile time assert that sentencepiece.Tokenizer implements api.Subword interface.
var _ api.Subword = &Tokenizer{}

// Encode returns the text encoded into a sequence of ids.
func (p *Tokenizer) Encode(text string) []int {
	tokens := p.Processor.Encode(text)
	return sliceMap(tokens, func(t esentencepiece.Token) int { return t.ID })
}

// Tokenize returns the pieces of text, e.g. "Hello world" -> ["▁Hello", "▁world"].
func (p *Tokenizer) Tokenize(text string) []string {
	tokens := p.Processor.Encode(text)
	return sliceMap(tokens, func(t esentencepiece.Token) string { return t.Text })
}

// BatchDecode decodes each id on its own. Pieces starting a word are returned without their
// leading metaspace.
func (p *Tokenizer) BatchDecode(ids []int) []string {
	return sliceMap(ids, func(id int) string { return p.Processor.Decode([]int{id}) })
}

// EncodeWithSpans returns the text encoded into a sequence of ids along with their byte spans.
// It implements api.TokenizerWithSpans.
func (p *Tokenizer) EncodeWithSpans(text string) api.EncodingResult {
	tokens := p.Processor.Encode(text)
	ids := make([]int, len(tokens))
	spans := make([]api.TokenSpan, len(tokens))

	// Track position in original text by matching token pieces
	pos := 0
	for i, tok := range tokens {
		ids[i] = tok.ID
		matchPiece, hasLeadingSpace := strings.CutPrefix(tok.Text, metaspace)

		// Skip any whitespace in the original text before this token
		if hasLeadingSpace {
			for pos < len(text) && isSpace(text[pos]) {
				pos++
			}
		}

		if matchPiece == "" {
			// The token represents just the space.
			if hasLeadingSpace && pos > 0 && isSpace(text[pos-1]) {
				spans[i] = api.TokenSpan{Start: pos - 1, End: pos}
			} else {
				spans[i] = api.TokenSpan{Start: pos, End: pos}
			}
			continue
		}

		start := pos
		if foundAt := findSubstring(text, matchPiece, pos); foundAt >= 0 {
			start = foundAt
			pos = foundAt + len(matchPiece)
		} else {
			// Normalized piece (or byte fallback): advance by piece length.
			pos = min(pos+len(matchPiece), len(text))
		}
		spans[i] = api.TokenSpan{Start: start, End: pos}
	}

	return api.EncodingResult{
		IDs:   ids,
		Spans: spans,
	}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// findSubstring finds the first occurrence of substr in s starting from position start.
// Returns the byte position of the match, or -1 if not found.
func findSubstring(s, substr string, start int) int {
	if start >= len(s) {
		return -1
	}
	idx := strings.Index(s[start:], substr)
	if idx < 0 {
		return -1
	}
	return start + idx
}

// Decode returns the text from a sequence of ids.
func (p *Tokenizer) Decode(ids []int) string {
	return p.Processor.Decode(ids)
}

// SpecialTokenID returns the token for the given symbol, or an error if not known.
// SentencePiece models mark a disabled special token with a negative id.
func (p *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	var id int
	switch token {
	case api.TokUnknown:
		id = p.Info.UnknownID
	case api.TokPad:
		id = p.Info.PadID
	case api.TokBeginningOfSentence:
		id = p.Info.BeginningOfSentenceID
	case api.TokEndOfSentence:
		id = p.Info.EndOfSentenceID
	default:
		return 0, errors.Errorf("unknown special token: %s (%d)", token, int(token))
	}
	if id < 0 {
		return 0, errors.Errorf("special token %s is disabled in this sentencepiece model", token)
	}
	return id, nil
}

// sliceMap executes the given function sequentially for every element on in, and returns a mapped slice.
func sliceMap[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}
