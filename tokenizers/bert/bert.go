// Package bert implements the text normalization and pre-tokenization used by BERT tokenizers,
// keeping track of where each normalized character came from in the original text.
//
// It also provides BasicTokenizer, the whitespace and punctuation level tokenizer of the
// original BERT release, used to map sub-tokens back to "words".
package bert

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gomlx/propara-jsonlines/tokenizers/api"
	"golang.org/x/text/unicode/norm"
)

// Options configures Normalize.
type Options struct {
	// CleanText removes NUL, U+FFFD and control characters, and maps any whitespace to ' '.
	CleanText bool

	// ChineseChars surrounds CJK ideographs with spaces, so each becomes a word of its own.
	ChineseChars bool

	// StripAccents decomposes characters (NFD) and drops the non-spacing marks.
	StripAccents bool

	// Lowercase converts all characters to lower case.
	Lowercase bool
}

// Char is a normalized character along with the byte span, in the original text, of the
// character it was derived from. One original character may yield zero or more Char.
type Char struct {
	Rune       rune
	Start, End int
}

// Normalize applies the normalization steps selected in opts, in BERT order: clean text,
// CJK padding, accent stripping and lowercasing.
func Normalize(text string, opts Options) []Char {
	chars := make([]Char, 0, len(text))
	for start := 0; start < len(text); {
		r, size := utf8.DecodeRuneInString(text[start:])
		end := start + size
		start = end
		if opts.CleanText {
			if r == 0 || r == utf8.RuneError || IsControl(r) {
				continue
			}
			if IsWhitespace(r) {
				r = ' '
			}
		}
		if opts.ChineseChars && IsChineseChar(r) {
			chars = append(chars,
				Char{Rune: ' ', Start: end - size, End: end},
				Char{Rune: r, Start: end - size, End: end},
				Char{Rune: ' ', Start: end - size, End: end})
			continue
		}
		if !opts.StripAccents && !opts.Lowercase {
			chars = append(chars, Char{Rune: r, Start: end - size, End: end})
			continue
		}
		piece := string(r)
		if opts.StripAccents {
			piece = removeAccents(norm.NFD.String(piece))
		}
		if opts.Lowercase {
			piece = strings.ToLower(piece)
		}
		for _, nr := range piece {
			chars = append(chars, Char{Rune: nr, Start: end - size, End: end})
		}
	}
	return chars
}

// Word is a pre-tokenized word: a run of normalized characters.
type Word []Char

// String returns the normalized text of the word.
func (w Word) String() string {
	var sb strings.Builder
	for _, c := range w {
		sb.WriteRune(c.Rune)
	}
	return sb.String()
}

// Span returns the byte span of the whole word in the original text.
func (w Word) Span() api.TokenSpan {
	return w.SubSpan(0, len(w))
}

// SubSpan returns the byte span in the original text of the characters w[from:to].
func (w Word) SubSpan(from, to int) api.TokenSpan {
	if from >= to || from < 0 || to > len(w) {
		return api.TokenSpan{}
	}
	return api.TokenSpan{Start: w[from].Start, End: w[to-1].End}
}

// PreTokenize splits normalized characters on whitespace, and isolates every punctuation
// character as a word of its own. This is what HuggingFace calls the "BertPreTokenizer".
func PreTokenize(chars []Char) []Word {
	return splitChars(chars, true)
}

// SplitWhitespace splits normalized characters on whitespace only.
func SplitWhitespace(chars []Char) []Word {
	return splitChars(chars, false)
}

func splitChars(chars []Char, splitPunctuation bool) []Word {
	var words []Word
	wordStart := -1
	flush := func(end int) {
		if wordStart >= 0 {
			words = append(words, Word(chars[wordStart:end]))
			wordStart = -1
		}
	}
	for ii, c := range chars {
		switch {
		case IsWhitespace(c.Rune):
			flush(ii)
		case splitPunctuation && IsPunctuation(c.Rune):
			flush(ii)
			words = append(words, Word(chars[ii:ii+1]))
		default:
			if wordStart < 0 {
				wordStart = ii
			}
		}
	}
	flush(len(chars))
	return words
}

// IsWhitespace reports whether r is considered a whitespace by BERT: ' ', '\t', '\n', '\r'
// or any unicode space separator (Zs).
func IsWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

// IsControl reports whether r is a control character. '\t', '\n' and '\r' are treated
// as whitespace instead.
func IsControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.In(r, unicode.Cc, unicode.Cf, unicode.Co, unicode.Cs)
}

// IsPunctuation reports whether r is punctuation. All non-letter/number ASCII characters are
// included (e.g. '$', '^', '`'), even though unicode doesn't classify them as punctuation.
func IsPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

// IsChineseChar reports whether r is in the CJK Unified Ideographs blocks.
// Korean Hangul and Japanese kana are not included: they are written with spaces.
func IsChineseChar(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}

func removeAccents(text string) string {
	var result strings.Builder
	for _, r := range text {
		if !unicode.Is(unicode.Mn, r) { // Mn = Mark, Nonspacing
			result.WriteRune(r)
		}
	}
	return result.String()
}
