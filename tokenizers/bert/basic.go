package bert

// BasicTokenizer splits text on whitespace and punctuation, after cleaning it up.
// It doesn't need any vocabulary, and it's used to get the "word" level tokens that
// sub-word tokens belong to.
type BasicTokenizer struct {
	opts Options
}

// NewBasicTokenizer creates a BasicTokenizer. If doLowerCase is true text is lowercased and
// accents are stripped.
func NewBasicTokenizer(doLowerCase bool) *BasicTokenizer {
	return &BasicTokenizer{opts: Options{
		CleanText:    true,
		ChineseChars: true,
		StripAccents: doLowerCase,
		Lowercase:    doLowerCase,
	}}
}

// Tokenize returns the whitespace/punctuation tokens of text, in order.
func (b *BasicTokenizer) Tokenize(text string) []string {
	words := b.Words(text)
	tokens := make([]string, len(words))
	for ii, w := range words {
		tokens[ii] = w.String()
	}
	return tokens
}

// Words is like Tokenize, but returns the words with their spans in text.
func (b *BasicTokenizer) Words(text string) []Word {
	return PreTokenize(Normalize(text, b.opts))
}
