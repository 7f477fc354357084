package artifact

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"pavssv/internal/engine"
)

const (
	sheetSummary = "Resumen"
	sheetDetail  = "Detalle"
	sheetStatus  = "Por Estado"
	sheetZone    = "Por Zona"
	sheetClient  = "Por Cliente"
	sheetGroup   = "Por Grupo"
)

var detailHeader = []string{
	"CLIENTE", "UNIDAD", "SERVICIO", "NOMBRE CLIENTE", "NOMBRE UNIDAD", "NOMBRE SERVICIO",
	"GRUPO", "ZONA", "MACROZONA", "PERSONAL ASIGNADO", "PERSONAL REQUERIDO", "DIFERENCIA", "ESTADO",
}

// WriteReport renders the formatted workbook: a KPI summary, the full joined
// detail and per-status, per-zone, per-client and per-group rollups.
func WriteReport(rows []engine.JoinedRow, m engine.Metrics) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	numFmt := "#,##0.00"
	numStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return nil, fmt.Errorf("create number style: %w", err)
	}
	headStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1F4E78"}},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeSummary(f, m, numStyle, headStyle); err != nil {
		return nil, err
	}
	if err := writeDetail(f, rows, numStyle, headStyle); err != nil {
		return nil, err
	}
	if err := writeRollup(f, sheetStatus, "ESTADO", m.Dimensions["status"], numStyle, headStyle); err != nil {
		return nil, err
	}
	if err := writeRollup(f, sheetZone, "ZONA", m.Dimensions[engine.CatZone], numStyle, headStyle); err != nil {
		return nil, err
	}
	if err := writeRollup(f, sheetClient, "CLIENTE", m.Dimensions[engine.CatClientName], numStyle, headStyle); err != nil {
		return nil, err
	}
	if err := writeRollup(f, sheetGroup, "GRUPO", m.Dimensions[engine.CatGroupName], numStyle, headStyle); err != nil {
		return nil, err
	}

	// The default sheet excelize creates is replaced by Resumen.
	f.DeleteSheet("Sheet1")
	idx, err := f.GetSheetIndex(sheetSummary)
	if err != nil {
		return nil, fmt.Errorf("locate summary sheet: %w", err)
	}
	f.SetActiveSheet(idx)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, m engine.Metrics, numStyle, headStyle int) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheetSummary, err)
	}

	kpis := [][]interface{}{
		{"Periodo", m.Period},
		{"Servicios conciliados", m.RowCount},
		{"Personal asignado", m.TotalPlanned.InexactFloat64()},
		{"Personal requerido", m.TotalActual.InexactFloat64()},
		{"Diferencia", m.Difference.InexactFloat64()},
		{"Cobertura %", ratioCell(m.Coverage)},
		{"Diferencial %", ratioCell(m.Differential)},
	}
	for _, s := range engine.AllStatuses {
		label := engine.StatusLabel(s)
		kpis = append(kpis, []interface{}{label, m.StatusCounts[label]})
	}

	for i, kv := range kpis {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheetSummary, cell, &kv); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	if err := f.SetColWidth(sheetSummary, "A", "A", 28); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetSummary, "B", "B", 18); err != nil {
		return err
	}
	return f.SetCellStyle(sheetSummary, "B3", fmt.Sprintf("B%d", len(kpis)), numStyle)
}

func writeDetail(f *excelize.File, rows []engine.JoinedRow, numStyle, headStyle int) error {
	if _, err := f.NewSheet(sheetDetail); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheetDetail, err)
	}

	header := make([]interface{}, len(detailHeader))
	for i, h := range detailHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheetDetail, "A1", &header); err != nil {
		return fmt.Errorf("write detail header: %w", err)
	}
	lastCol, _ := excelize.CoordinatesToCellName(len(detailHeader), 1)
	if err := f.SetCellStyle(sheetDetail, "A1", lastCol, headStyle); err != nil {
		return err
	}

	for i, r := range rows {
		var planned, actual interface{}
		if r.PlannedPresent {
			planned = r.Planned.InexactFloat64()
		}
		if r.ActualPresent {
			actual = r.Actual.InexactFloat64()
		}
		vals := []interface{}{
			r.ClientCode, r.UnitCode, r.ServiceCode,
			r.Categories[engine.CatClientName], r.Categories[engine.CatUnitName], r.Categories[engine.CatServiceName],
			r.Categories[engine.CatGroupName], r.Categories[engine.CatZone], r.Categories[engine.CatMacrozone],
			planned, actual, r.Difference().InexactFloat64(), engine.StatusLabel(r.Status),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetDetail, cell, &vals); err != nil {
			return fmt.Errorf("write detail row %d: %w", i+2, err)
		}
	}
	if len(rows) > 0 {
		if err := f.SetCellStyle(sheetDetail, "J2", fmt.Sprintf("L%d", len(rows)+1), numStyle); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetDetail, "A", "M", 20)
}

func writeRollup(f *excelize.File, sheet, label string, dim []engine.DimensionRow, numStyle, headStyle int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	header := []interface{}{label, "PERSONAL ASIGNADO", "PERSONAL REQUERIDO", "SERVICIOS"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	if err := f.SetCellStyle(sheet, "A1", "D1", headStyle); err != nil {
		return err
	}
	for i, d := range dim {
		vals := []interface{}{d.Value, d.Planned.InexactFloat64(), d.Actual.InexactFloat64(), d.Count}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	if len(dim) > 0 {
		if err := f.SetCellStyle(sheet, "B2", fmt.Sprintf("C%d", len(dim)+1), numStyle); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheet, "A", "A", 30)
}

func ratioCell(r engine.Ratio) interface{} {
	if !r.Valid {
		return "N/D"
	}
	return r.Value.InexactFloat64()
}
