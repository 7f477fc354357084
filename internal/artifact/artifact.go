// Package artifact produces and reads the downloadable outputs of a
// reconciliation run: the columnar full dataset and the formatted report
// workbook.
package artifact

import "fmt"

const (
	// KindDataset is the Parquet dump of every joined row. It is the
	// recompute source for metrics and the backing store of the paginated
	// details view.
	KindDataset = "full_dataset"
	// KindReport is the formatted Excel workbook handed to analysts.
	KindReport = "export_spreadsheet"
)

// ContentType returns the MIME type served for an artifact kind.
func ContentType(kind string) (string, error) {
	switch kind {
	case KindDataset:
		return "application/vnd.apache.parquet", nil
	case KindReport:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", nil
	}
	return "", fmt.Errorf("unknown artifact kind %q", kind)
}

// FileName returns the download name for an artifact kind.
func FileName(kind, period string) (string, error) {
	switch kind {
	case KindDataset:
		return fmt.Sprintf("conciliacion_%s.parquet", period), nil
	case KindReport:
		return fmt.Sprintf("conciliacion_%s.xlsx", period), nil
	}
	return "", fmt.Errorf("unknown artifact kind %q", kind)
}
