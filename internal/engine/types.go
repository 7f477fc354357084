package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Role tags which of the two input datasets a table belongs to.
type Role string

const (
	RolePlanned Role = "PLANNED" // Personal Asignado (organizational roster)
	RoleActual  Role = "ACTUAL"  // Servicio Vivo (delivered service records)
)

// Status buckets for a joined row. Six-way vocabulary; the Spanish display
// labels used in the spreadsheet export live in StatusLabel.
type Status string

const (
	StatusNoData       Status = "NO_DATA"
	StatusNotPlanned   Status = "NOT_PLANNED"
	StatusNoCoverage   Status = "NO_COVERAGE"
	StatusExact        Status = "EXACT"
	StatusOverstaffed  Status = "OVERSTAFFED"
	StatusUnderstaffed Status = "UNDERSTAFFED"
)

// AllStatuses lists every bucket in display order.
var AllStatuses = []Status{
	StatusNoData, StatusNotPlanned, StatusNoCoverage,
	StatusExact, StatusOverstaffed, StatusUnderstaffed,
}

var statusLabels = map[Status]string{
	StatusNoData:       "SIN_DATOS",
	StatusNotPlanned:   "NO_PLANIFICADO",
	StatusNoCoverage:   "SIN_PERSONAL",
	StatusExact:        "EXACTO",
	StatusOverstaffed:  "SOBRECARGA",
	StatusUnderstaffed: "FALTA",
}

// StatusLabel returns the legacy Spanish label used in exported workbooks.
func StatusLabel(s Status) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// StatusFromLabel resolves a Spanish display label back to its status.
func StatusFromLabel(label string) (Status, bool) {
	for s, l := range statusLabels {
		if l == label {
			return s, true
		}
	}
	return "", false
}

// Category keys carried through normalization into joined rows.
const (
	CatCompany     = "company"
	CatClientName  = "client_name"
	CatUnitName    = "unit_name"
	CatServiceName = "service_name"
	CatGroupCode   = "group_code"
	CatGroupName   = "group_name"
	CatZone        = "zone"
	CatMacrozone   = "macrozone"
	CatZoneLeader  = "zone_leader"
	CatOpsChief    = "operations_chief"
	CatManager     = "manager"
	CatSector      = "sector"
	CatDepartment  = "department"
)

// RosterRow is one canonical record after normalization. Created and consumed
// within a single reconciliation run; never persisted standalone.
type RosterRow struct {
	ClientCode  string
	UnitCode    string
	ServiceCode string
	Categories  map[string]string
	Measure     decimal.Decimal
}

// JoinedRow is the outcome of the outer join for one resolved key. Presence
// flags are independent from the measures: an absent side is not a zero side.
type JoinedRow struct {
	Key            string
	ClientCode     string
	UnitCode       string
	ServiceCode    string
	PlannedPresent bool
	ActualPresent  bool
	Planned        decimal.Decimal
	Actual         decimal.Decimal
	Categories     map[string]string
	Status         Status
}

// Difference returns planned minus actual with absent sides treated as zero.
// Only meaningful at the aggregate level; classification never uses it.
func (r JoinedRow) Difference() decimal.Decimal {
	return r.Planned.Sub(r.Actual)
}

// Period is a reporting month.
type Period struct {
	Year  int
	Month time.Month
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// ParsePeriod accepts "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	var y, m int
	if _, err := fmt.Sscanf(s, "%d-%d", &y, &m); err != nil {
		return Period{}, fmt.Errorf("invalid period %q, expected YYYY-MM", s)
	}
	if y < 2000 || y > 2200 || m < 1 || m > 12 {
		return Period{}, fmt.Errorf("invalid period %q, expected YYYY-MM", s)
	}
	return Period{Year: y, Month: time.Month(m)}, nil
}

// Params tunes normalization and aggregation. Zero value is not usable;
// call DefaultParams.
type Params struct {
	// ActualKeepStatus keeps only actual-side rows whose status cell equals
	// this value (case-insensitive). Empty disables the filter.
	ActualKeepStatus string
	// PlannedDropStatuses removes planned-side rows whose status cell matches
	// any entry (case-insensitive). The roster marks leavers this way.
	PlannedDropStatuses []string
	// RoundDecimals is the precision applied to every exported/aggregated sum.
	RoundDecimals int32
	// Tolerance below which two present measures count as equal.
	Tolerance decimal.Decimal
}

func DefaultParams() Params {
	return Params{
		ActualKeepStatus: "APROBADO",
		PlannedDropStatuses: []string{
			"ACTIVO - PARA BAJA 2",
			"ACTIVO - PARA BAJA",
			"ACTIVO - ALTA NUEVA - PARA BAJA",
			"ACTIVO - ALTA NUEVA - PARA BAJA 2",
			"ALTA NUEVA - PARA BAJA",
			"ALTA NUEVA - PARA BAJA 2",
		},
		RoundDecimals: 2,
		Tolerance:     decimal.New(1, -6),
	}
}

// Diagnostics accumulates what a run could not reconcile. Rows without a
// resolvable key are excluded from the join but never silently dropped:
// their measures are surfaced here.
type Diagnostics struct {
	PlannedInputRows      int             `json:"planned_input_rows"`
	ActualInputRows       int             `json:"actual_input_rows"`
	PlannedFiltered       int             `json:"planned_filtered"`
	ActualFiltered        int             `json:"actual_filtered"`
	UnkeyablePlannedRows  int             `json:"unkeyable_planned_rows"`
	UnkeyableActualRows   int             `json:"unkeyable_actual_rows"`
	UnkeyablePlannedTotal decimal.Decimal `json:"unkeyable_planned_total"`
	UnkeyableActualTotal  decimal.Decimal `json:"unkeyable_actual_total"`
	MalformedMeasures     int             `json:"malformed_measures"`
	Warnings              []string        `json:"warnings,omitempty"`
}
