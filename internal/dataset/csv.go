// Package dataset loads warehouse transactions from CSV files and point
// shapefiles, and exports weighted comparable sets for GIS tools.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode"

	"valuation/internal/types"
)

// Canonical column names.
const (
	colIdentifier = "identifier"
	colLatitude   = "latitude"
	colLongitude  = "longitude"
	colTotalArea  = "total_area"
	colPrice      = "price"
	colUnitPrice  = "unit_price"
)

// columnAliases maps normalised header text to canonical columns. Headers are
// normalised by lowercasing and dropping everything but letters and digits.
var columnAliases = map[string]string{
	"identifier":  colIdentifier,
	"address":     colIdentifier,
	"id":          colIdentifier,
	"name":        colIdentifier,
	"latitude":    colLatitude,
	"lat":         colLatitude,
	"longitude":   colLongitude,
	"lon":         colLongitude,
	"lng":         colLongitude,
	"totalarea":   colTotalArea,
	"totalaream2": colTotalArea,
	"totalaream":  colTotalArea, // "Total Area (m²)"
	"area":        colTotalArea,
	"aream2":      colTotalArea,
	"price":       colPrice,
	"totalprice":  colPrice,
	"unitprice":   colUnitPrice,
	"priceperm2":  colUnitPrice,
	"priceperm":   colUnitPrice, // "Price per m²"
	"pricepersqm": colUnitPrice,
	"pricem2":     colUnitPrice,
}

var requiredColumns = []string{colIdentifier, colLatitude, colLongitude, colTotalArea, colPrice}

// LoadCSVFile opens path and loads it with LoadCSV.
func LoadCSVFile(path string) ([]types.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := LoadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return records, nil
}

// LoadCSV reads a header row followed by one transaction per row. Blank
// coordinates become NaN so the record is skipped by the filter. A blank unit
// price is derived from price and area.
func LoadCSV(r io.Reader) ([]types.Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("file is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		if col, ok := columnAliases[normalizeHeader(h)]; ok {
			if _, dup := index[col]; !dup {
				index[col] = i
			}
		}
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	var records []types.Record
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if blankRow(row) {
			continue
		}

		fields := make(map[string]string, len(index))
		for col, i := range index {
			if i < len(row) {
				fields[col] = strings.TrimSpace(row[i])
			}
		}

		rec, err := recordFromFields(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func recordFromFields(fields map[string]string) (types.Record, error) {
	rec := types.Record{
		Identifier: fields[colIdentifier],
		Latitude:   parseCoordinate(fields[colLatitude]),
		Longitude:  parseCoordinate(fields[colLongitude]),
	}

	var ok bool
	var err error
	if rec.TotalArea, ok, err = ParseAmount(fields[colTotalArea]); err != nil {
		return rec, fmt.Errorf("column %q: %w", colTotalArea, err)
	} else if !ok {
		rec.TotalArea = math.NaN()
	}
	if rec.Price, _, err = ParseAmount(fields[colPrice]); err != nil {
		return rec, fmt.Errorf("column %q: %w", colPrice, err)
	}

	rec.UnitPrice, ok, err = ParseAmount(fields[colUnitPrice])
	if err != nil {
		return rec, fmt.Errorf("column %q: %w", colUnitPrice, err)
	}
	if !ok && rec.TotalArea > 0 {
		rec.UnitPrice = rec.Price / rec.TotalArea
	}
	return rec, nil
}

// parseCoordinate returns NaN for blank or malformed coordinates.
func parseCoordinate(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
