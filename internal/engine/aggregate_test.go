package engine

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joined(key string, planned, actual string, status Status, cats map[string]string) JoinedRow {
	if cats == nil {
		cats = map[string]string{}
	}
	r := JoinedRow{Key: key, Categories: cats, Status: status}
	r.ClientCode, r.UnitCode, r.ServiceCode = SplitKey(key)
	if planned != "" {
		r.PlannedPresent = true
		r.Planned = d(planned)
	}
	if actual != "" {
		r.ActualPresent = true
		r.Actual = d(actual)
	}
	return r
}

func TestAggregateKPIs(t *testing.T) {
	rows := []JoinedRow{
		joined("C1||U1||S1", "4", "4", StatusExact, map[string]string{CatZone: "LIMA"}),
		joined("C2||U1||S1", "6", "2", StatusOverstaffed, map[string]string{CatZone: "LIMA"}),
		joined("C3||U1||S1", "", "3", StatusNotPlanned, map[string]string{CatZone: "SUR"}),
		joined("C4||U1||S1", "2", "", StatusNoCoverage, nil),
	}

	m := Aggregate(rows, nil, DefaultParams(), Diagnostics{})

	assert.Equal(t, 4, m.RowCount)
	assert.True(t, m.TotalPlanned.Equal(d("12")))
	assert.True(t, m.TotalActual.Equal(d("9")))
	assert.True(t, m.Difference.Equal(d("3")))
	require.True(t, m.Coverage.Valid)
	assert.True(t, m.Coverage.Value.Equal(d("75")))
	require.True(t, m.Differential.Valid)
	assert.True(t, m.Differential.Value.Equal(d("33.33")))
	assert.Equal(t, 1, m.StatusCounts["EXACTO"])
	assert.Equal(t, 1, m.StatusCounts["SOBRECARGA"])
	assert.Equal(t, 1, m.StatusCounts["NO_PLANIFICADO"])
	assert.Equal(t, 1, m.StatusCounts["SIN_PERSONAL"])
}

func TestAggregateZeroDenominatorsAreNull(t *testing.T) {
	m := Aggregate(nil, nil, DefaultParams(), Diagnostics{})
	assert.False(t, m.Coverage.Valid)
	assert.False(t, m.Differential.Valid)

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"coverage_pct":null`)
	assert.Contains(t, string(b), `"differential_pct":null`)
}

func TestAggregateFilter(t *testing.T) {
	rows := []JoinedRow{
		joined("C1||U1||S1", "4", "4", StatusExact, map[string]string{CatZone: "LIMA"}),
		joined("C2||U1||S1", "6", "2", StatusOverstaffed, map[string]string{CatZone: "SUR"}),
	}

	m := Aggregate(rows, Filter{CatZone: "LIMA"}, DefaultParams(), Diagnostics{})
	assert.Equal(t, 1, m.RowCount)
	assert.True(t, m.TotalPlanned.Equal(d("4")))
	// Filter values still enumerate the whole set.
	assert.Equal(t, []string{"LIMA", "SUR"}, m.FilterValues[CatZone])

	byStatus := Aggregate(rows, Filter{"status": "SOBRECARGA"}, DefaultParams(), Diagnostics{})
	assert.Equal(t, 1, byStatus.RowCount)
	assert.True(t, byStatus.TotalActual.Equal(d("2")))
}

func TestAggregateTopNDimensions(t *testing.T) {
	rows := make([]JoinedRow, 0, 15)
	for i := 0; i < 15; i++ {
		name := fmt.Sprintf("CLIENT %02d", i)
		rows = append(rows, joined(
			fmt.Sprintf("C%d||U1||S1", i), "1", fmt.Sprintf("%d", i), StatusUnderstaffed,
			map[string]string{CatClientName: name},
		))
	}

	m := Aggregate(rows, nil, DefaultParams(), Diagnostics{})
	clients := m.Dimensions[CatClientName]
	require.Len(t, clients, 10)
	// Largest actual first.
	assert.Equal(t, "CLIENT 14", clients[0].Value)
	assert.True(t, clients[0].Actual.Equal(d("14")))
	assert.Equal(t, "CLIENT 05", clients[9].Value)
}

func TestAggregateStatusDimension(t *testing.T) {
	rows := []JoinedRow{
		joined("C1||U1||S1", "4", "4", StatusExact, nil),
		joined("C2||U1||S1", "1", "4", StatusUnderstaffed, nil),
		joined("C3||U1||S1", "1", "9", StatusUnderstaffed, nil),
	}
	m := Aggregate(rows, nil, DefaultParams(), Diagnostics{})
	dim := m.Dimensions["status"]
	require.Len(t, dim, 2)
	assert.Equal(t, "EXACTO", dim[0].Value)
	assert.Equal(t, "FALTA", dim[1].Value)
	assert.Equal(t, 2, dim[1].Count)
	assert.True(t, dim[1].Actual.Equal(d("13")))
}

func TestAggregateIsIdempotent(t *testing.T) {
	rows := []JoinedRow{
		joined("C1||U1||S1", "4", "4", StatusExact, map[string]string{CatZone: "LIMA"}),
		joined("C2||U1||S1", "6", "2", StatusOverstaffed, map[string]string{CatZone: "SUR"}),
		joined("C3||U1||S1", "", "3", StatusNotPlanned, nil),
	}

	first, err := json.Marshal(Aggregate(rows, nil, DefaultParams(), Diagnostics{}))
	require.NoError(t, err)
	second, err := json.Marshal(Aggregate(rows, nil, DefaultParams(), Diagnostics{}))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestCompareDeltas(t *testing.T) {
	cur := Metrics{Period: "2025-02", TotalPlanned: d("120"), TotalActual: d("100"), Difference: d("20"),
		StatusCounts: map[string]int{"EXACTO": 10}}
	prev := Metrics{Period: "2025-01", TotalPlanned: d("100"), TotalActual: d("100"), Difference: d("0"),
		StatusCounts: map[string]int{"EXACTO": 8}}

	c := Compare(cur, prev, DefaultParams())
	assert.Equal(t, "2025-02", c.CurrentPeriod)
	assert.True(t, c.TotalPlanned.Diff.Equal(d("20")))
	require.True(t, c.TotalPlanned.PctChange.Valid)
	assert.True(t, c.TotalPlanned.PctChange.Value.Equal(d("20")))
	assert.True(t, c.StatusCounts["EXACTO"].Diff.Equal(d("2")))

	// Previous zero keeps pct_change null rather than dividing by zero.
	assert.False(t, c.Difference.PctChange.Valid)
}

func TestPipelineRun(t *testing.T) {
	plannedRaw := plannedTable(
		[]string{"C1", "U1", "S1", "G1", "ACME", "PLANTA", "LIMPIEZA", "ACTIVO", "INDUSTRIA"},
		[]string{"C1", "U1", "S1", "G1", "ACME", "PLANTA", "LIMPIEZA", "ACTIVO", "INDUSTRIA"},
	)
	actualRaw := actualTable(
		[]string{"Aprobado", "C1", "U1", "S1", "2", "LIMA", "CENTRO", "ACME"},
		[]string{"Aprobado", "C2", "U2", "S2", "5", "LIMA", "CENTRO", "BETA"},
	)

	period, err := ParsePeriod("2025-03")
	require.NoError(t, err)

	res, err := Run(plannedRaw, actualRaw, period, DefaultParams())
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	assert.Equal(t, "2025-03", res.Metrics.Period)
	assert.True(t, res.Metrics.TotalPlanned.Equal(d("2")))
	assert.True(t, res.Metrics.TotalActual.Equal(d("7")))
	assert.Equal(t, 1, res.Metrics.StatusCounts["EXACTO"])
	assert.Equal(t, 1, res.Metrics.StatusCounts["NO_PLANIFICADO"])
}
