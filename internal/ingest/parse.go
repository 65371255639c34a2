// Package ingest implements the bulk ingest pipeline: CSV parsing and
// normalization, set-difference bulk insert, and the bounded worker
// pool + serial collector that drives Phase 3 geocoding.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"fuelroute/internal/classify"
	"fuelroute/internal/station"
)

// expected CSV header, in order.
var expectedHeader = []string{
	"OPIS Truckstop ID", "Truckstop Name", "Address", "City", "State", "Rack ID", "Retail Price",
}

// ParseRows reads the ingest CSV and returns normalized, deduplicated rows
// ready for bulk insert. Dedup is by opis_id within the input; the first
// occurrence wins.
func ParseRows(r io.Reader) ([]station.NewStation, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("ingest: read header: %w", err)
	}
	if len(header) < len(expectedHeader) {
		return nil, fmt.Errorf("ingest: expected header %v, got %v", expectedHeader, header)
	}

	seen := make(map[int64]bool)
	var out []station.NewStation

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: read row: %w", err)
		}
		if len(record) < 7 {
			continue
		}

		opisID, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
		if err != nil {
			continue
		}
		if seen[opisID] {
			continue
		}
		seen[opisID] = true

		row := station.NewStation{
			OpisID:  opisID,
			Name:    classify.CollapseWhitespace(strings.TrimSpace(record[1])),
			Address: classify.Normalize(strings.TrimSpace(record[2])),
			City:    classify.CollapseWhitespace(strings.TrimSpace(record[3])),
			State:   classify.NormalizeState(record[4]),
			Price:   parsePrice(record[6]),
		}
		if rackID, err := strconv.Atoi(strings.TrimSpace(record[5])); err == nil {
			row.RackID = &rackID
		}

		out = append(out, row)
	}

	return out, nil
}

func parsePrice(raw string) float64 {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "$")
	price, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return price
}

// NewRows filters rows to those whose opis_id is not already present,
// implementing Phase 2's set-difference step.
func NewRows(rows []station.NewStation, existing map[int64]bool) []station.NewStation {
	var out []station.NewStation
	for _, r := range rows {
		if !existing[r.OpisID] {
			out = append(out, r)
		}
	}
	return out
}
