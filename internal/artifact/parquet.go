package artifact

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"pavssv/internal/engine"
)

type datasetRow struct {
	Key            string `parquet:"name=key, type=BYTE_ARRAY, convertedtype=UTF8"`
	ClientCode     string `parquet:"name=client_code, type=BYTE_ARRAY, convertedtype=UTF8"`
	UnitCode       string `parquet:"name=unit_code, type=BYTE_ARRAY, convertedtype=UTF8"`
	ServiceCode    string `parquet:"name=service_code, type=BYTE_ARRAY, convertedtype=UTF8"`
	PlannedPresent bool   `parquet:"name=planned_present, type=BOOLEAN"`
	ActualPresent  bool   `parquet:"name=actual_present, type=BOOLEAN"`
	Planned        string `parquet:"name=planned, type=BYTE_ARRAY, convertedtype=UTF8"`
	Actual         string `parquet:"name=actual, type=BYTE_ARRAY, convertedtype=UTF8"`
	Difference     string `parquet:"name=difference, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status         string `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	ClientName     string `parquet:"name=client_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	UnitName       string `parquet:"name=unit_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	ServiceName    string `parquet:"name=service_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	GroupCode      string `parquet:"name=group_code, type=BYTE_ARRAY, convertedtype=UTF8"`
	GroupName      string `parquet:"name=group_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Company        string `parquet:"name=company, type=BYTE_ARRAY, convertedtype=UTF8"`
	Zone           string `parquet:"name=zone, type=BYTE_ARRAY, convertedtype=UTF8"`
	Macrozone      string `parquet:"name=macrozone, type=BYTE_ARRAY, convertedtype=UTF8"`
	ZoneLeader     string `parquet:"name=zone_leader, type=BYTE_ARRAY, convertedtype=UTF8"`
	OpsChief       string `parquet:"name=operations_chief, type=BYTE_ARRAY, convertedtype=UTF8"`
	Manager        string `parquet:"name=manager, type=BYTE_ARRAY, convertedtype=UTF8"`
	Sector         string `parquet:"name=sector, type=BYTE_ARRAY, convertedtype=UTF8"`
	Department     string `parquet:"name=department, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// Measures travel as decimal strings so the round trip is lossless.
func toDatasetRow(r engine.JoinedRow) datasetRow {
	return datasetRow{
		Key:            r.Key,
		ClientCode:     r.ClientCode,
		UnitCode:       r.UnitCode,
		ServiceCode:    r.ServiceCode,
		PlannedPresent: r.PlannedPresent,
		ActualPresent:  r.ActualPresent,
		Planned:        r.Planned.String(),
		Actual:         r.Actual.String(),
		Difference:     r.Difference().String(),
		Status:         engine.StatusLabel(r.Status),
		ClientName:     r.Categories[engine.CatClientName],
		UnitName:       r.Categories[engine.CatUnitName],
		ServiceName:    r.Categories[engine.CatServiceName],
		GroupCode:      r.Categories[engine.CatGroupCode],
		GroupName:      r.Categories[engine.CatGroupName],
		Company:        r.Categories[engine.CatCompany],
		Zone:           r.Categories[engine.CatZone],
		Macrozone:      r.Categories[engine.CatMacrozone],
		ZoneLeader:     r.Categories[engine.CatZoneLeader],
		OpsChief:       r.Categories[engine.CatOpsChief],
		Manager:        r.Categories[engine.CatManager],
		Sector:         r.Categories[engine.CatSector],
		Department:     r.Categories[engine.CatDepartment],
	}
}

// WriteDataset serializes the joined rows to a Snappy-compressed Parquet
// file in memory.
func WriteDataset(rows []engine.JoinedRow) ([]byte, error) {
	var buf bytes.Buffer
	fw := writerfile.NewWriterFile(&buf)

	pw, err := writer.NewParquetWriter(fw, new(datasetRow), 1)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range rows {
		if err := pw.Write(toDatasetRow(r)); err != nil {
			return nil, fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet file: %w", err)
	}
	if err := fw.Close(); err != nil {
		return nil, fmt.Errorf("close parquet file: %w", err)
	}
	return buf.Bytes(), nil
}

// ReadDataset parses a full-dataset artifact back into joined rows. This is
// the recompute path when a metrics snapshot is missing.
func ReadDataset(b []byte) ([]engine.JoinedRow, error) {
	bf := buffer.NewBufferFileFromBytes(b)
	pr, err := reader.NewParquetReader(bf, new(datasetRow), 1)
	if err != nil {
		return nil, fmt.Errorf("open parquet reader: %w", err)
	}
	defer pr.ReadStop()

	n := int(pr.GetNumRows())
	out := make([]engine.JoinedRow, 0, n)
	const batch = 1024
	for read := 0; read < n; {
		want := batch
		if n-read < want {
			want = n - read
		}
		raws := make([]datasetRow, want)
		if err := pr.Read(&raws); err != nil {
			return nil, fmt.Errorf("read parquet rows: %w", err)
		}
		for _, raw := range raws {
			row, err := fromDatasetRow(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, row)
		}
		read += want
	}
	return out, nil
}

func fromDatasetRow(raw datasetRow) (engine.JoinedRow, error) {
	planned, err := decimal.NewFromString(raw.Planned)
	if err != nil {
		return engine.JoinedRow{}, fmt.Errorf("parse planned measure %q: %w", raw.Planned, err)
	}
	actual, err := decimal.NewFromString(raw.Actual)
	if err != nil {
		return engine.JoinedRow{}, fmt.Errorf("parse actual measure %q: %w", raw.Actual, err)
	}

	cats := map[string]string{}
	for k, v := range map[string]string{
		engine.CatClientName:  raw.ClientName,
		engine.CatUnitName:    raw.UnitName,
		engine.CatServiceName: raw.ServiceName,
		engine.CatGroupCode:   raw.GroupCode,
		engine.CatGroupName:   raw.GroupName,
		engine.CatCompany:     raw.Company,
		engine.CatZone:        raw.Zone,
		engine.CatMacrozone:   raw.Macrozone,
		engine.CatZoneLeader:  raw.ZoneLeader,
		engine.CatOpsChief:    raw.OpsChief,
		engine.CatManager:     raw.Manager,
		engine.CatSector:      raw.Sector,
		engine.CatDepartment:  raw.Department,
	} {
		if v != "" {
			cats[k] = v
		}
	}

	status, ok := engine.StatusFromLabel(raw.Status)
	if !ok {
		return engine.JoinedRow{}, fmt.Errorf("unknown status label %q", raw.Status)
	}
	return engine.JoinedRow{
		Key:            raw.Key,
		ClientCode:     raw.ClientCode,
		UnitCode:       raw.UnitCode,
		ServiceCode:    raw.ServiceCode,
		PlannedPresent: raw.PlannedPresent,
		ActualPresent:  raw.ActualPresent,
		Planned:        planned,
		Actual:         actual,
		Categories:     cats,
		Status:         status,
	}, nil
}
