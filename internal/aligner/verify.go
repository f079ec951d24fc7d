package aligner

import (
	"github.com/pkg/errors"
)

// Verify checks the invariants of a record: all per sub-token arrays have the same length,
// the speakers are boundary markers at both ends, and both maps are non-decreasing with the
// end marker repeating the last index.
//
// A record produced by Align fails it when tokenizing sentences separately doesn't give the
// same sub-tokens as tokenizing the whole paragraph.
func (a *Aligner) Verify(r *Record) error {
	n := len(r.Sentences)
	if len(r.SentenceMap) != n || len(r.SubtokenMap) != n || len(r.TokenCharSpans) != n || len(r.Speakers) != n {
		return errors.Errorf("misaligned record: %d sentences, %d sentence_map, %d subtoken_map, %d token_char_spans, %d speakers",
			n, len(r.SentenceMap), len(r.SubtokenMap), len(r.TokenCharSpans), len(r.Speakers))
	}
	if n < 2 {
		return errors.Errorf("record has %d sub-tokens, it needs at least the 2 boundary markers", n)
	}
	for ii, speaker := range r.Speakers {
		want := a.fillerSpeaker
		if ii == 0 || ii == n-1 {
			want = a.boundarySpeaker
		}
		if speaker != want {
			return errors.Errorf("speakers[%d] = %q, wanted %q", ii, speaker, want)
		}
	}
	if err := checkBoundaryMap("sentence_map", r.SentenceMap); err != nil {
		return err
	}
	return checkBoundaryMap("subtoken_map", r.SubtokenMap)
}

func checkBoundaryMap(name string, values []int) error {
	for ii := 1; ii < len(values); ii++ {
		if values[ii] < values[ii-1] {
			return errors.Errorf("%s decreases at position %d (%d -> %d)", name, ii, values[ii-1], values[ii])
		}
	}
	last := len(values) - 1
	if values[0] != 0 || values[last] != values[last-1] {
		return errors.Errorf("%s boundary markers are not aligned: first=%d, last two=%d, %d",
			name, values[0], values[last-1], values[last])
	}
	return nil
}
