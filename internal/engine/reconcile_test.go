package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planRow(client, unit, service string, cats map[string]string) RosterRow {
	if cats == nil {
		cats = map[string]string{}
	}
	return RosterRow{ClientCode: client, UnitCode: unit, ServiceCode: service, Categories: cats, Measure: decimal.NewFromInt(1)}
}

func liveRow(client, unit, service, measure string, cats map[string]string) RosterRow {
	if cats == nil {
		cats = map[string]string{}
	}
	return RosterRow{ClientCode: client, UnitCode: unit, ServiceCode: service, Categories: cats, Measure: d(measure)}
}

func TestReconcileEmitsOneRowPerKey(t *testing.T) {
	planned := []RosterRow{
		planRow("C1", "U1", "S1", nil),
		planRow("C1", "U1", "S1", nil),
		planRow("C1", "U1", "S1", nil),
		planRow("C2", "U2", "S1", nil),
	}
	actual := []RosterRow{
		liveRow("C1", "U1", "S1", "2", nil),
		liveRow("C3", "U3", "S3", "4", nil),
	}

	var diag Diagnostics
	rows := Reconcile(planned, actual, DefaultParams(), &diag)

	require.Len(t, rows, 3)
	byKey := map[string]JoinedRow{}
	for _, r := range rows {
		_, dup := byKey[r.Key]
		require.False(t, dup, "key %s emitted twice", r.Key)
		byKey[r.Key] = r
	}

	both := byKey["C1||U1||S1"]
	assert.True(t, both.PlannedPresent)
	assert.True(t, both.ActualPresent)
	assert.True(t, both.Planned.Equal(d("3")))
	assert.True(t, both.Actual.Equal(d("2")))
	assert.Equal(t, StatusOverstaffed, both.Status)

	onlyPlanned := byKey["C2||U2||S1"]
	assert.True(t, onlyPlanned.PlannedPresent)
	assert.False(t, onlyPlanned.ActualPresent)
	assert.Equal(t, StatusNoCoverage, onlyPlanned.Status)

	onlyActual := byKey["C3||U3||S3"]
	assert.False(t, onlyActual.PlannedPresent)
	assert.Equal(t, StatusNotPlanned, onlyActual.Status)
}

func TestReconcileMeasureConservation(t *testing.T) {
	planned := []RosterRow{
		planRow("C1", "U1", "S1", nil),
		planRow("C2", "U2", "S2", nil),
		planRow("", "", "", nil), // unkeyable
	}
	actual := []RosterRow{
		liveRow("C1", "U1", "S1", "2.5", nil),
		liveRow("", "U9", "S9", "7", nil), // unkeyable, no group fallback
	}

	var diag Diagnostics
	rows := Reconcile(planned, actual, DefaultParams(), &diag)

	joinedPlanned, joinedActual := decimal.Zero, decimal.Zero
	for _, r := range rows {
		joinedPlanned = joinedPlanned.Add(r.Planned)
		joinedActual = joinedActual.Add(r.Actual)
	}

	assert.True(t, joinedPlanned.Add(diag.UnkeyablePlannedTotal).Equal(d("3")))
	assert.True(t, joinedActual.Add(diag.UnkeyableActualTotal).Equal(d("9.5")))
	assert.Equal(t, 1, diag.UnkeyablePlannedRows)
	assert.Equal(t, 1, diag.UnkeyableActualRows)
}

func TestReconcileGroupCodeFallbackKey(t *testing.T) {
	planned := []RosterRow{
		planRow("", "U1", "S1", map[string]string{CatGroupCode: "G7"}),
	}
	actual := []RosterRow{
		liveRow("G7", "U1", "S1", "1", nil),
	}

	var diag Diagnostics
	rows := Reconcile(planned, actual, DefaultParams(), &diag)

	require.Len(t, rows, 1)
	assert.Equal(t, "G7||U1||S1", rows[0].Key)
	assert.Equal(t, StatusExact, rows[0].Status)
	assert.Zero(t, diag.UnkeyablePlannedRows)
}

func TestReconcilePrefersPlannedCategories(t *testing.T) {
	planned := []RosterRow{
		planRow("C1", "U1", "S1", map[string]string{CatClientName: "ACME SA"}),
	}
	actual := []RosterRow{
		liveRow("C1", "U1", "S1", "1", map[string]string{CatClientName: "ACME S.A.", CatZone: "LIMA", CatMacrozone: "CENTRO"}),
	}

	var diag Diagnostics
	rows := Reconcile(planned, actual, DefaultParams(), &diag)

	require.Len(t, rows, 1)
	assert.Equal(t, "ACME SA", rows[0].Categories[CatClientName])
	assert.Equal(t, "LIMA", rows[0].Categories[CatZone])
	assert.Equal(t, "CENTRO", rows[0].Categories[CatMacrozone])
}

func TestReconcileDeterministicOrder(t *testing.T) {
	planned := []RosterRow{
		planRow("C3", "U1", "S1", nil),
		planRow("C1", "U1", "S1", nil),
		planRow("C2", "U1", "S1", nil),
	}

	var diag Diagnostics
	first := Reconcile(planned, nil, DefaultParams(), &diag)
	for i := 0; i < 10; i++ {
		var dg Diagnostics
		again := Reconcile(planned, nil, DefaultParams(), &dg)
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].Key, again[j].Key)
		}
	}
	assert.Equal(t, "C1||U1||S1", first[0].Key)
	assert.Equal(t, "C2||U1||S1", first[1].Key)
	assert.Equal(t, "C3||U1||S1", first[2].Key)
}
