package engine

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Field describes one canonical column and the ordered list of header
// spellings seen in historical files. The first alias present in the header
// wins; matching is case- and whitespace-insensitive.
type Field struct {
	Name     string
	Aliases  []string
	Required bool
}

// Schema is the data-driven column table for one input role.
type Schema struct {
	Role   Role
	Fields []Field
	// StatusField names the canonical field holding the row status used by
	// the pre-filters (keep/drop lists in Params).
	StatusField string
	// MeasureField names the canonical measure column. Empty means every raw
	// row contributes a measure of 1 (headcount semantics).
	MeasureField string
}

const maxHeaderScan = 10

// PlannedSchema covers the Personal Asignado roster export.
var PlannedSchema = Schema{
	Role:        RolePlanned,
	StatusField: "status",
	Fields: []Field{
		{Name: "status", Aliases: []string{"ESTADO", "ESTADO PERSONAL"}},
		{Name: "client_code", Aliases: []string{"COD CLIENTE", "CODIGO CLIENTE", "COD. CLIENTE"}, Required: true},
		{Name: "unit_code", Aliases: []string{"COD UNID", "COD UNIDAD", "CODIGO UNIDAD"}, Required: true},
		{Name: "service_code", Aliases: []string{"COD SERVICIO", "CODIGO SERVICIO"}, Required: true},
		{Name: CatGroupCode, Aliases: []string{"COD GRUPO", "CODIGO GRUPO"}},
		{Name: CatCompany, Aliases: []string{"TIPO DE COMPAÑÍA", "TIPO DE COMPANIA", "COMPAÑÍA"}},
		{Name: CatClientName, Aliases: []string{"CLIENTE", "NOMBRE CLIENTE"}},
		{Name: CatUnitName, Aliases: []string{"UNIDAD", "NOMBRE UNIDAD"}},
		{Name: CatServiceName, Aliases: []string{"TIPO DE SERVCIO", "TIPO DE SERVICIO", "SERVICIO"}},
		{Name: CatGroupName, Aliases: []string{"GRUPO", "NOMBRE GRUPO"}},
		{Name: CatZoneLeader, Aliases: []string{"LIDER ZONAL / COORDINADOR", "LIDER ZONAL", "COORDINADOR"}},
		{Name: CatOpsChief, Aliases: []string{"JEFE DE OPERACIONES", "JEFATURA"}},
		{Name: CatManager, Aliases: []string{"GERENTE REGIONAL", "GERENTE"}},
		{Name: CatSector, Aliases: []string{"SECTOR"}},
		{Name: CatDepartment, Aliases: []string{"DEPARTAMENTO"}},
	},
}

// ActualSchema covers the Servicio Vivo extract.
var ActualSchema = Schema{
	Role:         RoleActual,
	StatusField:  "status",
	MeasureField: "measure",
	Fields: []Field{
		{Name: "status", Aliases: []string{"ESTADO", "Estado"}},
		{Name: "client_code", Aliases: []string{"CLIENTE", "COD CLIENTE"}, Required: true},
		{Name: "unit_code", Aliases: []string{"UNIDAD", "COD UNID"}, Required: true},
		{Name: "service_code", Aliases: []string{"SERVICIO", "COD SERVICIO"}, Required: true},
		{Name: "measure", Aliases: []string{"Q° PER. FACTOR - REQUERIDO", "Q PER. FACTOR - REQUERIDO", "Q PER FACTOR REQUERIDO", "PERSONAL REQUERIDO"}, Required: true},
		{Name: CatGroupCode, Aliases: []string{"GRUPO", "COD GRUPO"}},
		{Name: CatCompany, Aliases: []string{"TIPO DE PLANILLA", "COMPAÑÍA", "COMPANIA"}},
		{Name: CatClientName, Aliases: []string{"NOMBRE CLIENTE"}},
		{Name: CatUnitName, Aliases: []string{"NOMBRE UNIDAD"}},
		{Name: CatServiceName, Aliases: []string{"NOMBRE SERVICIO"}},
		{Name: CatGroupName, Aliases: []string{"NOMBRE GRUPO"}},
		{Name: CatZone, Aliases: []string{"ZONA"}},
		{Name: CatMacrozone, Aliases: []string{"MACROZONA"}},
		{Name: CatZoneLeader, Aliases: []string{"LÍDER ZONAL", "LIDER ZONAL", "LÍDERZONAL"}},
		{Name: CatOpsChief, Aliases: []string{"JEFE", "JEFATURA"}},
		{Name: CatManager, Aliases: []string{"GERENTE"}},
		{Name: CatSector, Aliases: []string{"SECTOR"}},
		{Name: CatDepartment, Aliases: []string{"DESCRIPCION DEPARTAMENTO", "DEPARTAMENTO"}},
	},
}

// SchemaFor returns the alias table for a role.
func SchemaFor(role Role) Schema {
	if role == RoleActual {
		return ActualSchema
	}
	return PlannedSchema
}

const nbsp = "\u00a0"

// CleanCell trims, strips non-breaking spaces and collapses internal
// whitespace runs.
func CleanCell(s string) string {
	s = strings.ReplaceAll(s, nbsp, " ")
	return strings.Join(strings.Fields(s), " ")
}

// canonValue upper-cases a cleaned cell; applied to every string value so
// equal entities on both sides compare equal.
func canonValue(s string) string {
	return strings.ToUpper(CleanCell(s))
}

// headerKey folds a header cell for alias matching.
func headerKey(s string) string {
	return strings.ToUpper(CleanCell(s))
}

// ResolveHeader locates the header row and maps canonical field name to
// column index. Exports have title rows above the real header, so the first
// few rows are scanned and the row matching the most required fields wins.
// Returns a SchemaError naming the first missing required field.
func ResolveHeader(schema Schema, raw [][]string) (map[string]int, int, error) {
	aliasIndex := make(map[string]string) // folded alias -> field name
	for _, f := range schema.Fields {
		for _, a := range f.Aliases {
			aliasIndex[headerKey(a)] = f.Name
		}
	}

	bestRow := -1
	bestHits := 0
	var bestCols map[string]int
	limit := maxHeaderScan
	if len(raw) < limit {
		limit = len(raw)
	}
	for i := 0; i < limit; i++ {
		cols := make(map[string]int)
		for j, cell := range raw[i] {
			name, ok := aliasIndex[headerKey(cell)]
			if !ok {
				continue
			}
			if _, seen := cols[name]; !seen {
				cols[name] = j
			}
		}
		hits := 0
		for _, f := range schema.Fields {
			if f.Required {
				if _, ok := cols[f.Name]; ok {
					hits++
				}
			}
		}
		if hits > bestHits || (hits == bestHits && hits > 0 && bestRow == -1) {
			bestRow, bestHits, bestCols = i, hits, cols
		}
	}

	if bestRow == -1 {
		bestCols = map[string]int{}
	}
	for _, f := range schema.Fields {
		if !f.Required {
			continue
		}
		if _, ok := bestCols[f.Name]; !ok {
			return nil, -1, &SchemaError{Role: schema.Role, Field: f.Aliases[0]}
		}
	}
	return bestCols, bestRow, nil
}

// ValidateHeader is the synchronous submission-time check: it resolves the
// header and discards the mapping.
func ValidateHeader(role Role, raw [][]string) error {
	_, _, err := ResolveHeader(SchemaFor(role), raw)
	return err
}

// Normalize converts a raw table into canonical RosterRows for one role,
// applying the configured row-status pre-filters, string cleaning and the
// group-code client fallback. Per-row problems are counted in diag, never
// silently swallowed; only a missing required column is an error.
func Normalize(role Role, raw [][]string, p Params, diag *Diagnostics) ([]RosterRow, error) {
	schema := SchemaFor(role)
	cols, headerRow, err := ResolveHeader(schema, raw)
	if err != nil {
		return nil, err
	}

	cell := func(row []string, field string) string {
		j, ok := cols[field]
		if !ok || j >= len(row) {
			return ""
		}
		return canonValue(row[j])
	}

	dropPlanned := make(map[string]bool, len(p.PlannedDropStatuses))
	for _, s := range p.PlannedDropStatuses {
		dropPlanned[canonValue(s)] = true
	}
	keepActual := canonValue(p.ActualKeepStatus)

	out := make([]RosterRow, 0, len(raw))
	for i := headerRow + 1; i < len(raw); i++ {
		row := raw[i]
		if isBlankRow(row) {
			continue
		}
		if role == RolePlanned {
			diag.PlannedInputRows++
		} else {
			diag.ActualInputRows++
		}

		status := cell(row, schema.StatusField)
		if role == RoleActual && keepActual != "" && status != keepActual {
			diag.ActualFiltered++
			continue
		}
		if role == RolePlanned && dropPlanned[status] {
			diag.PlannedFiltered++
			continue
		}

		r := RosterRow{
			ClientCode:  cell(row, "client_code"),
			UnitCode:    cell(row, "unit_code"),
			ServiceCode: cell(row, "service_code"),
			Categories:  map[string]string{},
		}
		for _, f := range schema.Fields {
			switch f.Name {
			case "status", "client_code", "unit_code", "service_code", schema.MeasureField:
				continue
			}
			if v := cell(row, f.Name); v != "" {
				r.Categories[f.Name] = v
			}
		}

		if schema.MeasureField == "" {
			r.Measure = decimal.NewFromInt(1)
		} else {
			rawMeasure := CleanCell(rowCell(row, cols[schema.MeasureField]))
			if rawMeasure == "" {
				r.Measure = decimal.Zero
			} else {
				d, derr := decimal.NewFromString(normalizeNumber(rawMeasure))
				if derr != nil {
					diag.MalformedMeasures++
					if role == RolePlanned {
						diag.PlannedFiltered++
					} else {
						diag.ActualFiltered++
					}
					continue
				}
				r.Measure = d
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func rowCell(row []string, j int) string {
	if j < 0 || j >= len(row) {
		return ""
	}
	return row[j]
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if CleanCell(c) != "" {
			return false
		}
	}
	return true
}

// normalizeNumber strips thousands separators from spreadsheet-formatted
// numbers ("1,250.50" -> "1250.50").
func normalizeNumber(s string) string {
	s = strings.ReplaceAll(s, " ", "")
	if strings.Count(s, ",") > 0 && strings.Contains(s, ".") {
		return strings.ReplaceAll(s, ",", "")
	}
	// "12,5" style decimal comma
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		return strings.ReplaceAll(s, ",", ".")
	}
	return strings.ReplaceAll(s, ",", "")
}
