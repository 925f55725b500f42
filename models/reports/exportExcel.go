package reports

import (
	"io"

	"github.com/xuri/excelize/v2"
)

const ExcelContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExcelExporter interface {
	GetCellValues() []interface{}
}

// WriteExcel writes a single-sheet workbook: headings on row 1, then one row per exporter.
func WriteExcel(w io.Writer, sheetName string, headings []string, rows []ExcelExporter) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	if err := setRow(f, sheetName, 1, toInterfaces(headings)); err != nil {
		return err
	}
	if len(headings) > 0 {
		lastCol, err := excelize.ColumnNumberToName(len(headings))
		if err != nil {
			return err
		}
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", style); err != nil {
			return err
		}
	}

	for i, r := range rows {
		if err := setRow(f, sheetName, i+2, r.GetCellValues()); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func setRow(f *excelize.File, sheetName string, rowNo int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNo)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheetName, cell, &values)
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
