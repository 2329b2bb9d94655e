package dataset

import (
	"fmt"
	"math"
	"strings"

	shp "github.com/jonas-p/go-shp"

	"valuation/internal/comps"
	"valuation/internal/idw"
	"valuation/internal/types"
)

// DBF column names are limited to 10 characters.
const (
	fieldRole      = "ROLE"
	fieldIdent     = "IDENT"
	fieldArea      = "AREA_M2"
	fieldPrice     = "PRICE"
	fieldUnitPrice = "UNIT_PRICE"
	fieldDistance  = "DIST_KM"
	fieldWeightPct = "WEIGHT_PCT"
	fieldContrib   = "CONTRIB"
)

// LoadShapefile reads POINT features and their attribute table. Point X/Y are
// longitude/latitude; attributes are matched with the same aliases as CSV
// headers (IDENT, ADDRESS, AREA_M2, PRICE, UNIT_PRICE, ...).
func LoadShapefile(path string) ([]types.Record, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile %s: %w", path, err)
	}
	defer r.Close()

	index := make(map[string]int)
	for i, f := range r.Fields() {
		name := normalizeHeader(f.String())
		col, ok := columnAliases[name]
		if !ok && name == "ident" {
			col, ok = colIdentifier, true
		}
		if ok {
			if _, dup := index[col]; !dup {
				index[col] = i
			}
		}
	}
	for _, col := range []string{colIdentifier, colTotalArea, colPrice} {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("shapefile %s: missing attribute %q", path, col)
		}
	}

	var records []types.Record
	for r.Next() {
		row, shape := r.Shape()

		fields := make(map[string]string, len(index))
		for col, i := range index {
			fields[col] = strings.TrimSpace(r.ReadAttribute(row, i))
		}
		rec, err := recordFromFields(fields)
		if err != nil {
			return nil, fmt.Errorf("shapefile %s row %d: %w", path, row, err)
		}

		rec.Latitude, rec.Longitude = math.NaN(), math.NaN()
		if pt, ok := shape.(*shp.Point); ok {
			rec.Latitude, rec.Longitude = pt.Y, pt.X
		}
		records = append(records, rec)
	}
	return records, nil
}

// ExportShapefile writes the target and its weighted comparables as a POINT
// layer. weights may be nil when the evaluation had too few comparables.
func ExportShapefile(path string, target types.Record, set comps.Set, weights []idw.Weight) error {
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return fmt.Errorf("create shapefile %s: %w", path, err)
	}
	defer w.Close()

	fields := []shp.Field{
		shp.StringField(fieldRole, 10),
		shp.StringField(fieldIdent, 120),
		shp.FloatField(fieldArea, 16, 2),
		shp.FloatField(fieldPrice, 18, 2),
		shp.FloatField(fieldUnitPrice, 16, 4),
		shp.FloatField(fieldDistance, 12, 4),
		shp.FloatField(fieldWeightPct, 10, 4),
		shp.FloatField(fieldContrib, 16, 4),
	}
	if err := w.SetFields(fields); err != nil {
		return fmt.Errorf("set fields: %w", err)
	}

	byIndex := make(map[int]idw.Weight, len(weights))
	for _, wt := range weights {
		byIndex[wt.Index] = wt
	}

	write := func(role string, r types.Record, dist float64, wt idw.Weight) error {
		row := int(w.Write(&shp.Point{X: r.Longitude, Y: r.Latitude}))
		values := []interface{}{
			role,
			r.Identifier,
			r.TotalArea,
			r.Price,
			r.UnitPrice,
			dist,
			wt.WeightPercent,
			wt.Contribution,
		}
		for i, v := range values {
			if err := w.WriteAttribute(row, i, v); err != nil {
				return fmt.Errorf("write %s attribute %s: %w", role, fields[i].String(), err)
			}
		}
		return nil
	}

	if err := write("target", target, 0, idw.Weight{}); err != nil {
		return err
	}
	for i, c := range set {
		if err := write("comparable", c.Record, c.DistanceKm, byIndex[i]); err != nil {
			return err
		}
	}
	return nil
}
