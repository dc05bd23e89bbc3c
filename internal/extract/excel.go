package extract

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel emits a "Worksheet: <name>" header per sheet in workbook order, then one line
// per non-empty row with its non-empty cells space-joined. Sheets are separated by a blank line.
func extractExcel(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var buf strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		buf.WriteString("Worksheet: ")
		buf.WriteString(sheet)
		buf.WriteByte('\n')
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				if cell != "" {
					cells = append(cells, cell)
				}
			}
			if len(cells) == 0 {
				continue
			}
			buf.WriteString(strings.Join(cells, " "))
			buf.WriteByte('\n')
		}
		buf.WriteByte('\n')
	}
	return strings.TrimSpace(buf.String()), nil
}
