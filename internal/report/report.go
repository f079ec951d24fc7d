// Package report renders aligned records as tables, to inspect how sub-tokens map to
// words, sentences and the original text.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/gomlx/propara-jsonlines/internal/aligner"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	markerStyle = lipgloss.NewStyle().Padding(0, 1).Faint(true)
)

// Render writes the alignment table of the record to w: one row per sub-token with its
// character span, text in the original paragraph, word index and sentence index.
//
// Arrays of different lengths (a misaligned record) are rendered with empty cells.
func Render(w io.Writer, index int, r *aligner.Record) error {
	numRows := max(len(r.Sentences), len(r.SubtokenMap), len(r.SentenceMap), len(r.TokenCharSpans))
	rows := make([][]string, numRows)
	runes := []rune(r.OriginalText)
	for ii := range rows {
		row := []string{strconv.Itoa(ii), "", "", "", "", ""}
		if ii < len(r.Sentences) {
			row[1] = r.Sentences[ii]
		}
		if ii < len(r.TokenCharSpans) {
			span := r.TokenCharSpans[ii]
			row[2] = fmt.Sprintf("%d:%d", span[0], span[1])
			if span[0] >= 0 && span[0] <= span[1] && span[1] <= len(runes) {
				row[3] = string(runes[span[0]:span[1]])
			}
		}
		if ii < len(r.SubtokenMap) {
			row[4] = strconv.Itoa(r.SubtokenMap[ii])
		}
		if ii < len(r.SentenceMap) {
			row[5] = strconv.Itoa(r.SentenceMap[ii])
		}
		rows[ii] = row
	}
	lastRow := len(r.Sentences) - 1

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "sub-token", "span", "text", "token", "sentence").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == 0 || row == lastRow:
				return markerStyle
			default:
				return cellStyle
			}
		})
	_, err := fmt.Fprintf(w, "%s\n%s\n", titleStyle.Render(fmt.Sprintf("paragraph #%d: %q", index, r.OriginalText)), t.Render())
	return err
}
