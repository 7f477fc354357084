package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plannedTable(rows ...[]string) [][]string {
	out := [][]string{
		{"REPORTE MENSUAL DE PERSONAL"},
		{},
		{"COD CLIENTE", "COD UNID", "COD SERVICIO", "COD GRUPO", "CLIENTE", "UNIDAD", "TIPO DE SERVCIO", "ESTADO", "SECTOR"},
	}
	return append(out, rows...)
}

func actualTable(rows ...[]string) [][]string {
	out := [][]string{
		{"Estado", "Cliente", "Unidad", "Servicio", "Q° PER. FACTOR - REQUERIDO", "ZONA", "MACROZONA", "Nombre Cliente"},
	}
	return append(out, rows...)
}

func TestResolveHeaderSkipsTitleRows(t *testing.T) {
	cols, headerRow, err := ResolveHeader(PlannedSchema, plannedTable())
	require.NoError(t, err)
	assert.Equal(t, 2, headerRow)
	assert.Equal(t, 0, cols["client_code"])
	assert.Equal(t, 1, cols["unit_code"])
	assert.Equal(t, 2, cols["service_code"])
}

func TestResolveHeaderIsCaseAndSpacingInsensitive(t *testing.T) {
	raw := [][]string{
		{"  cod cliente ", "Cod  Unid", "COD SERVICIO", "estado"},
	}
	cols, _, err := ResolveHeader(PlannedSchema, raw)
	require.NoError(t, err)
	assert.Equal(t, 0, cols["client_code"])
	assert.Equal(t, 1, cols["unit_code"])
	assert.Equal(t, 3, cols["status"])
}

func TestResolveHeaderMissingRequiredColumn(t *testing.T) {
	raw := [][]string{
		{"COD CLIENTE", "COD UNID", "ESTADO"},
	}
	_, _, err := ResolveHeader(PlannedSchema, raw)
	require.Error(t, err)

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, RolePlanned, se.Role)
	assert.Equal(t, "COD SERVICIO", se.Field)
}

func TestNormalizePlannedCountsAndFilters(t *testing.T) {
	raw := plannedTable(
		[]string{"C1", "U1", "S1", "G1", "ACME", "PLANTA NORTE", "LIMPIEZA", "ACTIVO", "INDUSTRIA"},
		[]string{"C1", "U1", "S1", "G1", "ACME", "PLANTA NORTE", "LIMPIEZA", "ACTIVO", "INDUSTRIA"},
		[]string{"C2", "U2", "S2", "G2", "BETA", "PLANTA SUR", "VIGILANCIA", "TRAMITE DE BAJA", "MINERIA"},
		[]string{},
	)
	var diag Diagnostics
	p := DefaultParams()
	p.PlannedDropStatuses = []string{"TRAMITE DE BAJA"}

	rows, err := Normalize(RolePlanned, raw, p, &diag)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, 3, diag.PlannedInputRows)
	assert.Equal(t, 1, diag.PlannedFiltered)
	// Planned rows carry headcount semantics, one per row.
	assert.True(t, rows[0].Measure.Equal(d("1")))
	assert.Equal(t, "ACME", rows[0].Categories[CatClientName])
	assert.Equal(t, "INDUSTRIA", rows[0].Categories[CatSector])
}

func TestNormalizeActualKeepsOnlyApproved(t *testing.T) {
	raw := actualTable(
		[]string{"Aprobado", "C1", "U1", "S1", "3.5", "LIMA", "CENTRO", "ACME"},
		[]string{"Pendiente", "C1", "U1", "S2", "2", "LIMA", "CENTRO", "ACME"},
		[]string{"aprobado", "C2", "U2", "S1", "1", "AREQUIPA", "SUR", "BETA"},
	)
	var diag Diagnostics
	rows, err := Normalize(RoleActual, raw, DefaultParams(), &diag)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, 3, diag.ActualInputRows)
	assert.Equal(t, 1, diag.ActualFiltered)
	assert.True(t, rows[0].Measure.Equal(d("3.5")))
	assert.Equal(t, "LIMA", rows[0].Categories[CatZone])
	assert.Equal(t, "CENTRO", rows[0].Categories[CatMacrozone])
}

func TestNormalizeMeasureFormats(t *testing.T) {
	raw := actualTable(
		[]string{"Aprobado", "C1", "U1", "S1", "1,250.50", "", "", ""},
		[]string{"Aprobado", "C1", "U1", "S2", "12,5", "", "", ""},
		[]string{"Aprobado", "C1", "U1", "S3", "", "", "", ""},
		[]string{"Aprobado", "C1", "U1", "S4", "n/a", "", "", ""},
	)
	var diag Diagnostics
	rows, err := Normalize(RoleActual, raw, DefaultParams(), &diag)
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.True(t, rows[0].Measure.Equal(d("1250.50")))
	assert.True(t, rows[1].Measure.Equal(d("12.5")))
	assert.True(t, rows[2].Measure.IsZero())
	assert.Equal(t, 1, diag.MalformedMeasures)
}

func TestCleanCell(t *testing.T) {
	assert.Equal(t, "PLANTA NORTE", CleanCell("  PLANTA   NORTE  "))
	assert.Equal(t, "", CleanCell("   "))
	assert.Equal(t, "acme", CleanCell("acme"))
}
