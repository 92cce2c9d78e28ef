package reports

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// WriteProductionSummaryExcel renders the production summary as an xlsx
// workbook onto w.
func WriteProductionSummaryExcel(w io.Writer, data []*ProductionSummaryResponse) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	// Add headers
	f.SetCellValue(sheet, "A1", "Area")
	f.SetCellValue(sheet, "B1", "Orders")
	f.SetCellValue(sheet, "C1", "TotalMagnitude")
	f.SetCellValue(sheet, "D1", "Linked")
	f.SetCellValue(sheet, "E1", "Unlinked")

	// Add data
	for i, d := range data {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheet, "A"+row, d.Area)
		f.SetCellValue(sheet, "B"+row, d.OrderCount)
		f.SetCellValue(sheet, "C"+row, d.TotalMagnitude.InexactFloat64())
		f.SetCellValue(sheet, "D"+row, d.LinkedCount)
		f.SetCellValue(sheet, "E"+row, d.UnlinkedCount)
	}

	return f.Write(w)
}
