package analysis

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// Helper: get file extension
func getFileExt(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// parseUpload turns an uploaded roster file into a raw table. CSV and XLSX
// are read in memory; legacy XLS goes through a temp file because xlsReader
// works with file paths.
func parseUpload(data []byte, ext string) ([][]string, error) {
	switch ext {
	case ".csv":
		r := csv.NewReader(bytes.NewReader(data))
		r.FieldsPerRecord = -1
		return r.ReadAll()
	case ".xlsx":
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sheet := f.GetSheetName(0)
		return f.GetRows(sheet)
	case ".xls":
		return parseXLS(data)
	}
	return nil, errors.New("unsupported file type")
}

func parseXLS(data []byte) ([][]string, error) {
	tmp, err := os.CreateTemp("", "roster-*.xls")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, err
	}
	tmp.Close()

	book, err := xls.OpenFile(tmp.Name())
	if err != nil {
		return nil, err
	}
	sheet, err := book.GetSheet(0)
	if err != nil || sheet == nil {
		return nil, errors.New("failed to get xls sheet")
	}
	var rows [][]string
	for _, xlsRow := range sheet.GetRows() {
		var rowVals []string
		for _, col := range xlsRow.GetCols() {
			rowVals = append(rowVals, col.GetString())
		}
		rows = append(rows, rowVals)
	}
	return rows, nil
}
