package payload

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// spreadsheetToText flattens the first sheet into tab-separated lines, the
// tabulated shape the extraction prompt expects.
func spreadsheetToText(raw []byte) (string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("open spreadsheet: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return "", nil
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return "", fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	var builder strings.Builder
	for _, row := range rows {
		line := strings.TrimSpace(strings.Join(row, "\t"))
		if line == "" {
			continue
		}
		builder.WriteString(line)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

func csvToText(raw []byte) string {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.Comma = detectCSVDelimiter(raw)

	var builder strings.Builder
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		line := strings.TrimSpace(strings.Join(record, "\t"))
		if line == "" {
			continue
		}
		builder.WriteString(line)
		builder.WriteString("\n")
	}
	return builder.String()
}

// detectCSVDelimiter picks semicolons for European exports that use commas
// as the decimal separator.
func detectCSVDelimiter(raw []byte) rune {
	sample := raw
	if len(sample) > 2048 {
		sample = sample[:2048]
	}
	if bytes.Count(sample, []byte{';'}) > bytes.Count(sample, []byte{','}) {
		return ';'
	}
	return ','
}
