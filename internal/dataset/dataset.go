// Package dataset reads ProPara-style paragraph records.
//
// The input is a list of paragraphs, each with its ordered "sentence_texts". It can be
// stored as a JSON array (optionally xz compressed, "*.json.xz") or as a Parquet file
// ("*.parquet") with a "sentence_texts" list-of-strings column. Any other field of the
// records (e.g. "para_id" or "prompt") is ignored.
package dataset

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

// Paragraph is one input record. It is read once and never modified.
type Paragraph struct {
	SentenceTexts []string `json:"sentence_texts" parquet:"sentence_texts,list"`
}

// Text returns the paragraph text: the sentence texts joined by single spaces.
func (p Paragraph) Text() string {
	return strings.Join(p.SentenceTexts, " ")
}

// UnmarshalJSON implements json.Unmarshaler. The "sentence_texts" field is required.
func (p *Paragraph) UnmarshalJSON(data []byte) error {
	var raw struct {
		SentenceTexts *[]string `json:"sentence_texts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.SentenceTexts == nil {
		return errors.New("missing \"sentence_texts\"")
	}
	p.SentenceTexts = *raw.SentenceTexts
	return nil
}

// Load reads all paragraphs from the file in path. The format is selected by the file
// name: "*.parquet" files are read as Parquet, "*.xz" files are decompressed and read
// as JSON, anything else is read as JSON.
func Load(path string) ([]Paragraph, error) {
	lowerPath := strings.ToLower(path)
	if strings.HasSuffix(lowerPath, ".parquet") {
		paragraphs, err := parquet.ReadFile[Paragraph](path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read parquet dataset %q", path)
		}
		return paragraphs, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open dataset %q", path)
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(lowerPath, ".xz") {
		r, err = xz.NewReader(r)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read xz header of dataset %q", path)
		}
	}
	paragraphs, err := Decode(r)
	if err != nil {
		return nil, errors.WithMessagef(err, "dataset %q", path)
	}
	return paragraphs, nil
}

// Decode reads a JSON array of paragraph records from r.
func Decode(r io.Reader) ([]Paragraph, error) {
	var records []json.RawMessage
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, errors.Wrap(err, "failed to decode JSON array of paragraphs")
	}
	paragraphs := make([]Paragraph, len(records))
	for ii, record := range records {
		if err := json.Unmarshal(record, &paragraphs[ii]); err != nil {
			return nil, errors.Wrapf(err, "invalid paragraph record #%d", ii)
		}
	}
	return paragraphs, nil
}
