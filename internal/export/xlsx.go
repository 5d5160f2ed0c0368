package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/okian/coinboard/internal/domain/model"
)

// SheetName is the worksheet holding the standings.
const SheetName = "Standings"

// WriteXLSX writes a workbook with a single standings sheet. Numeric columns
// are stored as numbers.
func WriteXLSX(w io.Writer, ranked []model.Chapter) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &cells); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, c := range ranked {
		values := row(c)
		vals := make([]any, len(values))
		for j, v := range values {
			vals[j] = v
		}
		vals[1] = c.Name
		vals[2] = c.ID

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(SheetName, cell, &vals); err != nil {
			return fmt.Errorf("write row %s: %w", c.Name, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
