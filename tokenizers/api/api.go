// Package api defines the Tokenizer API.
// It's just a hack to break the cyclic dependency, and allow the users to import `tokenizers` and get the
// default implementations.
package api

// TokenSpan represents the byte span of a token in the original text.
// Start and End are byte offsets (not rune offsets), suitable for slicing
// Go strings directly: originalText[span.Start:span.End].
type TokenSpan struct {
	Start int // start byte position (inclusive)
	End   int // end byte position (exclusive)
}

// EncodingResult contains tokens with their spans in the original text.
type EncodingResult struct {
	IDs   []int       // token IDs
	Spans []TokenSpan // byte spans for each token (use originalText[span.Start:span.End] to extract)
}

// Tokenizer interface allows one convert text to "tokens" (integer ids) and back.
//
// It also allows mapping of special tokens: tokens with a common semantic (like padding) but that
// may map to different ids (int) for different tokenizers.
type Tokenizer interface {
	Encode(text string) []int
	Decode([]int) string

	// SpecialTokenID returns ID for given special token if registered, or an error if not.
	SpecialTokenID(token SpecialToken) (int, error)
}

// TokenizerWithSpans extends Tokenizer with span tracking capability.
// Special tokens (CLS, SEP, BOS, EOS) are never added by EncodeWithSpans: callers
// that need boundary markers add them using SpecialTokenID.
type TokenizerWithSpans interface {
	Tokenizer
	// EncodeWithSpans returns tokens along with their byte spans in the original text.
	EncodeWithSpans(text string) EncodingResult
}

// Subword is the sub-word tokenizer capability needed to build sub-token aligned
// sequences: token strings, ids with spans, and id to token-string decoding.
type Subword interface {
	TokenizerWithSpans

	// Tokenize returns the sub-token strings of text, without special tokens.
	// E.g.: "testing" -> ["test", "##ing"].
	Tokenize(text string) []string

	// BatchDecode decodes each id on its own, returning one token string per id.
	BatchDecode(ids []int) []string
}

// SpecialToken is an enum of commonly used special tokens.
type SpecialToken int

const (
	TokBeginningOfSentence SpecialToken = iota
	TokEndOfSentence
	TokUnknown
	TokPad
	TokMask
	TokClassification
	TokSpecialTokensCount
)

var specialTokenNames = [...]string{
	"beginning_of_sentence",
	"end_of_sentence",
	"unknown",
	"pad",
	"mask",
	"classification",
	"special_tokens_count",
}

// String implements fmt.Stringer.
func (t SpecialToken) String() string {
	if t < 0 || int(t) >= len(specialTokenNames) {
		return "SpecialToken(invalid)"
	}
	return specialTokenNames[t]
}
