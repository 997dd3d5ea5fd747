package audit

import (
	"bytes"
	"encoding/csv"
	"time"
)

var csvHeader = []string{"at", "user_id", "tenant_id", "resource_type", "resource_id", "action", "result", "user_agent", "reason"}

// CSVExporter menulis timeline ke format CSV.
type CSVExporter struct{}

// WriteCSV encodes rows with a header line.
func (CSVExporter) WriteCSV(rows []TimelineRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := []string{
			row.At.UTC().Format(time.RFC3339),
			row.UserID,
			row.TenantID,
			row.ResourceType,
			row.ResourceID,
			row.Action,
			row.Result,
			row.UserAgent,
			row.Reason,
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
