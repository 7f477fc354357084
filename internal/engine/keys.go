package engine

import "strings"

const keySep = "||"

// keyCandidates is the ordered identifier priority used for both input
// roles. The primary candidate is the client/unit/service composite; when
// the client code is blank the group code stands in for it, which is how
// pooled groups are exported. Applying the same list to both sides keeps
// equivalent entities on the same key.
var keyCandidates = []func(RosterRow) []string{
	func(r RosterRow) []string { return []string{r.ClientCode, r.UnitCode, r.ServiceCode} },
	func(r RosterRow) []string { return []string{r.Categories[CatGroupCode], r.UnitCode, r.ServiceCode} },
}

// ResolveKey selects the join key for a normalized row: the first candidate
// whose every component is present and well formed wins. Rows with no viable
// candidate are unkeyable and excluded from the join; the caller records
// their measure in the diagnostics so nothing is silently dropped.
func ResolveKey(r RosterRow) (string, bool) {
	for _, cand := range keyCandidates {
		parts := cand(r)
		if ok := keyable(parts); ok {
			return strings.Join(parts, keySep), true
		}
	}
	return "", false
}

func keyable(parts []string) bool {
	for _, p := range parts {
		if p == "" || p == "-" || strings.TrimSpace(p) == "" {
			return false
		}
	}
	return true
}

// SplitKey undoes ResolveKey.
func SplitKey(key string) (client, unit, service string) {
	parts := strings.SplitN(key, keySep, 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return parts[0], parts[1], parts[2]
}

func recordUnkeyable(role Role, r RosterRow, diag *Diagnostics) {
	if role == RolePlanned {
		diag.UnkeyablePlannedRows++
		diag.UnkeyablePlannedTotal = diag.UnkeyablePlannedTotal.Add(r.Measure)
	} else {
		diag.UnkeyableActualRows++
		diag.UnkeyableActualTotal = diag.UnkeyableActualTotal.Add(r.Measure)
	}
}
