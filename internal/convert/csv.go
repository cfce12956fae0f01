package convert

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/embedprep/internal/batch"
)

// rowsPerSection groups CSV rows into manageable sections.
const rowsPerSection = 20

// CSV converts comma-separated files. The first row is the header row.
type CSV struct{}

func (p *CSV) Convert(r io.Reader, filename string) (string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}

	var md mdBuilder
	md.heading(1, title(filename))
	if len(records) == 0 {
		return md.String(), nil
	}

	headers := records[0]
	groups, err := batch.Split(records[1:], rowsPerSection)
	if err != nil {
		return "", err
	}

	for g, rows := range groups {
		first := g*rowsPerSection + 2 // 1-indexed, skip header
		md.heading(2, fmt.Sprintf("Rows %d-%d", first, first+len(rows)-1))

		var text strings.Builder
		text.WriteString("Headers: " + strings.Join(headers, ", ") + "\n\n")
		for _, row := range rows {
			for j, cell := range row {
				if j < len(headers) {
					text.WriteString(headers[j] + ": " + cell)
				} else {
					text.WriteString(cell)
				}
				if j < len(row)-1 {
					text.WriteString(", ")
				}
			}
			text.WriteString("\n")
		}
		md.paragraph(text.String())
	}

	return md.String(), nil
}
