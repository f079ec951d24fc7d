// Package aligner converts paragraphs into the sub-token aligned records used to train
// coreference models: sub-word tokens wrapped in boundary markers, plus per sub-token
// sentence index, word index and character span.
//
// Two tokenizations are combined: sentence indices come from tokenizing each sentence on
// its own, while the sub-tokens and their spans come from tokenizing the whole paragraph.
// They are assumed to agree, and nothing is checked while aligning: see Verify.
package aligner

import (
	"context"
	"unicode/utf8"

	"github.com/gomlx/propara-jsonlines/internal/dataset"
	"github.com/gomlx/propara-jsonlines/tokenizers/api"
	"github.com/gomlx/propara-jsonlines/tokenizers/bert"
	"github.com/pkg/errors"
)

const (
	// DefaultBoundarySpeaker is the speaker of the boundary markers.
	DefaultBoundarySpeaker = "[SPL]"

	// DefaultFillerSpeaker is the speaker of every other sub-token.
	DefaultFillerSpeaker = "-"
)

// Record is one aligned paragraph, one line of the output.
// All slices but Clusters have one entry per sub-token.
type Record struct {
	Speakers    []string `json:"speakers"`
	Sentences   []string `json:"sentences"`
	SentenceMap []int    `json:"sentence_map"`

	// Clusters is always a single empty cluster: there are no coreference annotations.
	Clusters [][][2]int `json:"clusters"`

	SubtokenMap []int `json:"subtoken_map"`

	// TokenCharSpans are [start, end) character (not byte) offsets in OriginalText.
	// Boundary markers have span [0, 0].
	TokenCharSpans [][2]int `json:"token_char_spans"`

	OriginalText string `json:"original_text"`
}

// Aligner builds Record from paragraphs. It only reads from its tokenizers, so it can be
// shared.
type Aligner struct {
	subword api.Subword
	coarse  *bert.BasicTokenizer

	startID, endID                 int
	boundarySpeaker, fillerSpeaker string
}

// Option configures an Aligner.
type Option func(a *Aligner)

// WithCoarse sets the tokenizer used to split the paragraph into words for the subtoken map.
// The default is a cased bert.BasicTokenizer.
func WithCoarse(coarse *bert.BasicTokenizer) Option {
	return func(a *Aligner) {
		a.coarse = coarse
	}
}

// WithSpeakerMarkers sets the speaker used for the boundary markers and the one used for
// every other position.
func WithSpeakerMarkers(boundary, filler string) Option {
	return func(a *Aligner) {
		a.boundarySpeaker = boundary
		a.fillerSpeaker = filler
	}
}

// New creates an Aligner using the given sub-word tokenizer. The start and end boundary
// markers are its beginning and end of sentence special tokens (CLS and SEP for BERT).
func New(subword api.Subword, opts ...Option) (*Aligner, error) {
	a := &Aligner{
		subword:         subword,
		coarse:          bert.NewBasicTokenizer(false),
		boundarySpeaker: DefaultBoundarySpeaker,
		fillerSpeaker:   DefaultFillerSpeaker,
	}
	for _, opt := range opts {
		opt(a)
	}
	var err error
	a.startID, err = subword.SpecialTokenID(api.TokBeginningOfSentence)
	if err != nil {
		return nil, errors.WithMessage(err, "tokenizer has no start boundary marker")
	}
	a.endID, err = subword.SpecialTokenID(api.TokEndOfSentence)
	if err != nil {
		return nil, errors.WithMessage(err, "tokenizer has no end boundary marker")
	}
	return a, nil
}

// Align converts one paragraph.
func (a *Aligner) Align(paragraph dataset.Paragraph) *Record {
	text := paragraph.Text()
	sentences, spans := a.subTokens(text)
	return &Record{
		Speakers:       a.speakers(len(sentences)),
		Sentences:      sentences,
		SentenceMap:    a.sentenceMap(paragraph.SentenceTexts),
		Clusters:       [][][2]int{{}},
		SubtokenMap:    a.subtokenMap(text),
		TokenCharSpans: spans,
		OriginalText:   text,
	}
}

// AlignAll aligns the paragraphs in order, calling emit for each record.
// It stops at the first error returned by emit, or if ctx is done.
func (a *Aligner) AlignAll(ctx context.Context, paragraphs []dataset.Paragraph, emit func(index int, record *Record) error) error {
	for ii, paragraph := range paragraphs {
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "interrupted before paragraph #%d", ii)
		}
		if err := emit(ii, a.Align(paragraph)); err != nil {
			return errors.WithMessagef(err, "paragraph #%d", ii)
		}
	}
	return nil
}

// sentenceMap tokenizes each sentence on its own: one entry per sub-token with the sentence
// index, plus the boundary markers.
func (a *Aligner) sentenceMap(sentences []string) []int {
	sentenceMap := []int{0}
	for sentenceIdx, sentence := range sentences {
		sentenceMap = appendRepeated(sentenceMap, sentenceIdx, len(a.subword.Tokenize(sentence)))
	}
	return append(sentenceMap, sentenceMap[len(sentenceMap)-1])
}

// subtokenMap re-tokenizes each coarse token: one entry per sub-token with the coarse token
// index, plus the boundary markers.
func (a *Aligner) subtokenMap(text string) []int {
	subtokenMap := []int{0}
	for tokenIdx, token := range a.coarse.Tokenize(text) {
		subtokenMap = appendRepeated(subtokenMap, tokenIdx, len(a.subword.Tokenize(token)))
	}
	return append(subtokenMap, subtokenMap[len(subtokenMap)-1])
}

// subTokens tokenizes the whole text, returning the sub-token strings and their character
// spans, boundary markers included.
func (a *Aligner) subTokens(text string) (tokens []string, spans [][2]int) {
	encoding := a.subword.EncodeWithSpans(text)
	ids := make([]int, 0, len(encoding.IDs)+2)
	ids = append(ids, a.startID)
	ids = append(ids, encoding.IDs...)
	ids = append(ids, a.endID)
	tokens = a.subword.BatchDecode(ids)

	charOffsets := byteToCharOffsets(text)
	spans = make([][2]int, 0, len(ids))
	spans = append(spans, [2]int{0, 0})
	for _, span := range encoding.Spans {
		spans = append(spans, [2]int{charOffsets[span.Start], charOffsets[span.End]})
	}
	spans = append(spans, [2]int{0, 0})
	return
}

func (a *Aligner) speakers(n int) []string {
	speakers := make([]string, n)
	for ii := range speakers {
		speakers[ii] = a.fillerSpeaker
	}
	if n > 0 {
		speakers[0] = a.boundarySpeaker
		speakers[n-1] = a.boundarySpeaker
	}
	return speakers
}

// byteToCharOffsets maps every byte offset of text (including len(text)) to the index of the
// character (rune) it belongs to.
func byteToCharOffsets(text string) []int {
	offsets := make([]int, len(text)+1)
	numChars := 0
	for pos := 0; pos < len(text); numChars++ {
		_, size := utf8.DecodeRuneInString(text[pos:])
		for k := 0; k < size; k++ {
			offsets[pos+k] = numChars
		}
		pos += size
	}
	offsets[len(text)] = numChars
	return offsets
}

func appendRepeated(values []int, value, count int) []int {
	for range count {
		values = append(values, value)
	}
	return values
}
