package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

type sideEntry struct {
	total      decimal.Decimal
	categories map[string]string
}

// Reconcile performs the full outer join of the two normalized sides.
// Each side is collapsed to a key->measure map first (duplicate keys sum),
// then one JoinedRow is emitted per key in the union, classified in place.
// Category fields come from whichever side is present, planned preferred as
// the organizational reference. Output order is sorted by key so identical
// inputs always produce byte-identical artifacts.
func Reconcile(planned, actual []RosterRow, p Params, diag *Diagnostics) []JoinedRow {
	left := collapse(RolePlanned, planned, diag)
	right := collapse(RoleActual, actual, diag)

	keys := make([]string, 0, len(left)+len(right))
	for k := range left {
		keys = append(keys, k)
	}
	for k := range right {
		if _, dup := left[k]; !dup {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := make([]JoinedRow, 0, len(keys))
	for _, k := range keys {
		l, lok := left[k]
		r, rok := right[k]

		row := JoinedRow{
			Key:            k,
			PlannedPresent: lok,
			ActualPresent:  rok,
		}
		row.ClientCode, row.UnitCode, row.ServiceCode = SplitKey(k)
		if lok {
			row.Planned = l.total
			row.Categories = l.categories
		}
		if rok {
			row.Actual = r.total
			if row.Categories == nil {
				row.Categories = r.categories
			} else {
				// Zone and macrozone only exist on the live extract; pull
				// them through even when the planned side drives the row.
				for _, c := range []string{CatZone, CatMacrozone} {
					if _, ok := row.Categories[c]; !ok {
						if v, ok := r.categories[c]; ok {
							row.Categories[c] = v
						}
					}
				}
			}
		}
		if row.Categories == nil {
			row.Categories = map[string]string{}
		}
		row.Status = Classify(lok, rok, row.Planned, row.Actual, p.Tolerance)
		out = append(out, row)
	}
	return out
}

func collapse(role Role, rows []RosterRow, diag *Diagnostics) map[string]sideEntry {
	m := make(map[string]sideEntry, len(rows))
	for _, r := range rows {
		key, ok := ResolveKey(r)
		if !ok {
			recordUnkeyable(role, r, diag)
			continue
		}
		e, seen := m[key]
		if !seen {
			e = sideEntry{total: decimal.Zero, categories: r.Categories}
		}
		e.total = e.total.Add(r.Measure)
		m[key] = e
	}
	return m
}
