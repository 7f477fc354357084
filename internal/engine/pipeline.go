package engine

// Result is the output of one full pipeline run.
type Result struct {
	Rows        []JoinedRow
	Metrics     Metrics
	Diagnostics Diagnostics
}

// Run executes normalize, key resolution, join, classify and aggregate over
// two raw tables. Single-threaded; callers wanting parallelism run whole
// pipelines concurrently.
func Run(plannedRaw, actualRaw [][]string, period Period, p Params) (*Result, error) {
	var diag Diagnostics

	planned, err := Normalize(RolePlanned, plannedRaw, p, &diag)
	if err != nil {
		return nil, err
	}
	actual, err := Normalize(RoleActual, actualRaw, p, &diag)
	if err != nil {
		return nil, err
	}

	rows := Reconcile(planned, actual, p, &diag)
	metrics := Aggregate(rows, nil, p, diag)
	metrics.Period = period.String()

	return &Result{Rows: rows, Metrics: metrics, Diagnostics: diag}, nil
}
