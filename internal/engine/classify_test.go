package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestClassifyPresenceCombinations(t *testing.T) {
	tol := d("0.000001")

	assert.Equal(t, StatusNoData, Classify(false, false, decimal.Zero, decimal.Zero, tol))
	assert.Equal(t, StatusNotPlanned, Classify(false, true, decimal.Zero, d("3"), tol))
	assert.Equal(t, StatusNoCoverage, Classify(true, false, d("5"), decimal.Zero, tol))
}

func TestClassifyBothPresent(t *testing.T) {
	tol := d("0.000001")

	cases := []struct {
		name            string
		planned, actual string
		want            Status
	}{
		{"equal", "4", "4", StatusExact},
		{"within tolerance", "4.0000004", "4", StatusExact},
		{"just outside tolerance", "4.000002", "4", StatusOverstaffed},
		{"planned above actual", "10", "7", StatusOverstaffed},
		{"planned below actual", "3", "7.5", StatusUnderstaffed},
		{"explicit zeros", "0", "0", StatusExact},
		{"zero actual", "2", "0", StatusOverstaffed},
		{"zero planned", "0", "2", StatusUnderstaffed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(true, true, d(tc.planned), d(tc.actual), tol))
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	tol := d("0.000001")
	first := Classify(true, true, d("9.25"), d("4"), tol)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, Classify(true, true, d("9.25"), d("4"), tol))
	}
}

func TestStatusLabels(t *testing.T) {
	assert.Equal(t, "SIN_DATOS", StatusLabel(StatusNoData))
	assert.Equal(t, "NO_PLANIFICADO", StatusLabel(StatusNotPlanned))
	assert.Equal(t, "SIN_PERSONAL", StatusLabel(StatusNoCoverage))
	assert.Equal(t, "EXACTO", StatusLabel(StatusExact))
	assert.Equal(t, "SOBRECARGA", StatusLabel(StatusOverstaffed))
	assert.Equal(t, "FALTA", StatusLabel(StatusUnderstaffed))
}
