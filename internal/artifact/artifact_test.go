package artifact

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pavssv/internal/engine"
)

func sampleRows() []engine.JoinedRow {
	return []engine.JoinedRow{
		{
			Key: "C1||U1||S1", ClientCode: "C1", UnitCode: "U1", ServiceCode: "S1",
			PlannedPresent: true, ActualPresent: true,
			Planned: decimal.NewFromInt(4), Actual: decimal.RequireFromString("3.5"),
			Categories: map[string]string{
				engine.CatClientName: "ACME", engine.CatZone: "LIMA", engine.CatMacrozone: "CENTRO",
			},
			Status: engine.StatusOverstaffed,
		},
		{
			Key: "C2||U2||S2", ClientCode: "C2", UnitCode: "U2", ServiceCode: "S2",
			PlannedPresent: true,
			Planned:        decimal.NewFromInt(2),
			Categories:     map[string]string{engine.CatClientName: "BETA"},
			Status:         engine.StatusNoCoverage,
		},
	}
}

func TestDatasetRoundTrip(t *testing.T) {
	rows := sampleRows()

	b, err := WriteDataset(rows)
	require.NoError(t, err)
	require.NotEmpty(t, b)

	got, err := ReadDataset(b)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "C1||U1||S1", got[0].Key)
	assert.True(t, got[0].PlannedPresent)
	assert.True(t, got[0].ActualPresent)
	assert.True(t, got[0].Planned.Equal(decimal.NewFromInt(4)))
	assert.True(t, got[0].Actual.Equal(decimal.RequireFromString("3.5")))
	assert.Equal(t, engine.StatusOverstaffed, got[0].Status)
	assert.Equal(t, "LIMA", got[0].Categories[engine.CatZone])

	// Absent side survives as absent, not as zero-present.
	assert.False(t, got[1].ActualPresent)
	assert.Equal(t, engine.StatusNoCoverage, got[1].Status)
}

func TestWriteReport(t *testing.T) {
	rows := sampleRows()
	m := engine.Aggregate(rows, nil, engine.DefaultParams(), engine.Diagnostics{})
	m.Period = "2025-04"

	b, err := WriteReport(rows, m)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "Resumen")
	assert.Contains(t, sheets, "Detalle")
	assert.Contains(t, sheets, "Por Estado")
	assert.Contains(t, sheets, "Por Zona")
	assert.Contains(t, sheets, "Por Cliente")
	assert.Contains(t, sheets, "Por Grupo")

	period, err := f.GetCellValue("Resumen", "B1")
	require.NoError(t, err)
	assert.Equal(t, "2025-04", period)

	// Client rollup carries both names, largest actual first.
	client, err := f.GetCellValue("Por Cliente", "A2")
	require.NoError(t, err)
	assert.Equal(t, "ACME", client)

	head, err := f.GetCellValue("Detalle", "A1")
	require.NoError(t, err)
	assert.Equal(t, "CLIENTE", head)

	status, err := f.GetCellValue("Detalle", "M2")
	require.NoError(t, err)
	assert.Equal(t, "SOBRECARGA", status)
}

func TestContentTypeAndFileName(t *testing.T) {
	// Kind values are part of the download URL contract.
	assert.Equal(t, "full_dataset", KindDataset)
	assert.Equal(t, "export_spreadsheet", KindReport)

	ct, err := ContentType(KindReport)
	require.NoError(t, err)
	assert.Contains(t, ct, "spreadsheetml")

	name, err := FileName(KindDataset, "2025-04")
	require.NoError(t, err)
	assert.Equal(t, "conciliacion_2025-04.parquet", name)

	_, err = ContentType("bogus")
	assert.Error(t, err)
}
