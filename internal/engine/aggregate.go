package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Ratio is a percentage KPI whose denominator can legitimately be zero. An
// undefined ratio marshals as JSON null; it is never coerced to 0, which
// would read as a real 0% on the dashboard.
type Ratio struct {
	Valid bool
	Value decimal.Decimal
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return r.Value.MarshalJSON()
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = Ratio{}
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*r = Ratio{Valid: true, Value: d}
	return nil
}

func ratio(num, den decimal.Decimal, places int32) Ratio {
	if den.IsZero() {
		return Ratio{}
	}
	return Ratio{Valid: true, Value: num.Div(den).Mul(decimal.NewFromInt(100)).Round(places)}
}

// DimensionRow is one bucket of a grouped rollup.
type DimensionRow struct {
	Value   string          `json:"value"`
	Planned decimal.Decimal `json:"planned"`
	Actual  decimal.Decimal `json:"actual"`
	Count   int             `json:"count"`
}

// Metrics is the full dashboard payload for one organization and period.
type Metrics struct {
	Period        string                    `json:"period"`
	RowCount      int                       `json:"row_count"`
	TotalPlanned  decimal.Decimal           `json:"total_planned"`
	TotalActual   decimal.Decimal           `json:"total_actual"`
	Difference    decimal.Decimal           `json:"difference"`
	Coverage      Ratio                     `json:"coverage_pct"`
	Differential  Ratio                     `json:"differential_pct"`
	StatusCounts  map[string]int            `json:"status_counts"`
	Dimensions    map[string][]DimensionRow `json:"dimensions"`
	FilterValues  map[string][]string       `json:"filter_values"`
	Diagnostics   Diagnostics               `json:"diagnostics"`
	FiltersActive map[string]string         `json:"filters_active,omitempty"`
}

// Filter restricts the aggregation to rows whose category fields match every
// entry. Keys are category names plus the pseudo-category "status" matching
// the status label.
type Filter map[string]string

// FilterCategories are the category fields exposed as dashboard filters and
// enumerated in Metrics.FilterValues.
var FilterCategories = []string{CatMacrozone, CatZone, CatCompany, CatGroupName, CatSector, CatManager}

// topNDimensions limit their rollup to the ten largest buckets by actual
// measure; the remaining dimensions return every bucket.
var topNDimensions = map[string]bool{CatClientName: true, CatUnitName: true, CatServiceName: true}

const dimensionTopN = 10

// dimensionOrder fixes the set and order of rolled-up dimensions.
var dimensionOrder = []string{
	"status", CatZone, CatMacrozone, CatGroupName,
	CatClientName, CatUnitName, CatServiceName, CatCompany,
}

func (f Filter) match(r JoinedRow) bool {
	for k, want := range f {
		if want == "" {
			continue
		}
		var got string
		if k == "status" {
			got = StatusLabel(r.Status)
		} else {
			got = r.Categories[k]
		}
		if got != want {
			return false
		}
	}
	return true
}

// Aggregate rolls the classified rows up into the dashboard metrics. Absent
// sides contribute zero to the totals here, and only here; classification
// has already happened on presence. Pure and recomputable from the row set.
func Aggregate(rows []JoinedRow, f Filter, p Params, diag Diagnostics) Metrics {
	m := Metrics{
		StatusCounts: map[string]int{},
		Dimensions:   map[string][]DimensionRow{},
		FilterValues: map[string][]string{},
		TotalPlanned: decimal.Zero,
		TotalActual:  decimal.Zero,
		Difference:   decimal.Zero,
		Diagnostics:  diag,
	}
	if len(f) > 0 {
		m.FiltersActive = map[string]string{}
		for k, v := range f {
			if v != "" {
				m.FiltersActive[k] = v
			}
		}
	}

	type bucket struct {
		planned, actual decimal.Decimal
		count           int
	}
	dims := make(map[string]map[string]*bucket, len(dimensionOrder))
	for _, d := range dimensionOrder {
		dims[d] = map[string]*bucket{}
	}
	filterSets := make(map[string]map[string]bool, len(FilterCategories))
	for _, c := range FilterCategories {
		filterSets[c] = map[string]bool{}
	}

	for _, r := range rows {
		// Filter values are enumerated over the unfiltered set so the UI can
		// always widen a selection again.
		for _, c := range FilterCategories {
			if v := r.Categories[c]; v != "" {
				filterSets[c][v] = true
			}
		}
		if !f.match(r) {
			continue
		}

		m.RowCount++
		m.StatusCounts[StatusLabel(r.Status)]++
		if r.PlannedPresent {
			m.TotalPlanned = m.TotalPlanned.Add(r.Planned)
		}
		if r.ActualPresent {
			m.TotalActual = m.TotalActual.Add(r.Actual)
		}

		for _, d := range dimensionOrder {
			var v string
			if d == "status" {
				v = StatusLabel(r.Status)
			} else {
				v = r.Categories[d]
			}
			if v == "" {
				continue
			}
			b := dims[d][v]
			if b == nil {
				b = &bucket{planned: decimal.Zero, actual: decimal.Zero}
				dims[d][v] = b
			}
			if r.PlannedPresent {
				b.planned = b.planned.Add(r.Planned)
			}
			if r.ActualPresent {
				b.actual = b.actual.Add(r.Actual)
			}
			b.count++
		}
	}

	m.Difference = m.TotalPlanned.Sub(m.TotalActual).Round(p.RoundDecimals)
	m.Coverage = ratio(m.TotalActual, m.TotalPlanned, p.RoundDecimals)
	m.Differential = ratio(m.Difference, m.TotalActual, p.RoundDecimals)
	m.TotalPlanned = m.TotalPlanned.Round(p.RoundDecimals)
	m.TotalActual = m.TotalActual.Round(p.RoundDecimals)

	for _, d := range dimensionOrder {
		out := make([]DimensionRow, 0, len(dims[d]))
		for v, b := range dims[d] {
			out = append(out, DimensionRow{
				Value:   v,
				Planned: b.planned.Round(p.RoundDecimals),
				Actual:  b.actual.Round(p.RoundDecimals),
				Count:   b.count,
			})
		}
		if topNDimensions[d] {
			sort.Slice(out, func(i, j int) bool {
				if !out[i].Actual.Equal(out[j].Actual) {
					return out[i].Actual.GreaterThan(out[j].Actual)
				}
				return out[i].Value < out[j].Value
			})
			if len(out) > dimensionTopN {
				out = out[:dimensionTopN]
			}
		} else {
			sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
		}
		m.Dimensions[d] = out
	}

	for _, c := range FilterCategories {
		vals := make([]string, 0, len(filterSets[c]))
		for v := range filterSets[c] {
			vals = append(vals, v)
		}
		sort.Strings(vals)
		m.FilterValues[c] = vals
	}
	return m
}

// Delta is one KPI compared across two periods. PctChange is null when the
// previous value is zero.
type Delta struct {
	Current   decimal.Decimal `json:"current"`
	Previous  decimal.Decimal `json:"previous"`
	Diff      decimal.Decimal `json:"diff"`
	PctChange Ratio           `json:"pct_change"`
}

func calcDelta(cur, prev decimal.Decimal, places int32) Delta {
	return Delta{
		Current:   cur,
		Previous:  prev,
		Diff:      cur.Sub(prev).Round(places),
		PctChange: ratio(cur.Sub(prev), prev, places),
	}
}

// Comparison is the payload of the period-over-period endpoint.
type Comparison struct {
	CurrentPeriod  string           `json:"current_period"`
	PreviousPeriod string           `json:"previous_period"`
	TotalPlanned   Delta            `json:"total_planned"`
	TotalActual    Delta            `json:"total_actual"`
	Difference     Delta            `json:"difference"`
	StatusCounts   map[string]Delta `json:"status_counts"`
}

// Compare diffs two metric snapshots KPI by KPI.
func Compare(cur, prev Metrics, p Params) Comparison {
	c := Comparison{
		CurrentPeriod:  cur.Period,
		PreviousPeriod: prev.Period,
		TotalPlanned:   calcDelta(cur.TotalPlanned, prev.TotalPlanned, p.RoundDecimals),
		TotalActual:    calcDelta(cur.TotalActual, prev.TotalActual, p.RoundDecimals),
		Difference:     calcDelta(cur.Difference, prev.Difference, p.RoundDecimals),
		StatusCounts:   map[string]Delta{},
	}
	for _, s := range AllStatuses {
		label := StatusLabel(s)
		c.StatusCounts[label] = calcDelta(
			decimal.NewFromInt(int64(cur.StatusCounts[label])),
			decimal.NewFromInt(int64(prev.StatusCounts[label])),
			p.RoundDecimals,
		)
	}
	return c
}
