package domain

import (
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Column names of the GBR features geoParquet schema consumed by the
// selector. The remaining columns (X_COORD, Y_COORD, minx/miny/maxx/maxy)
// are never projected.
const (
	ColUniqueID     = "UNIQUE_ID"
	ColName         = "GBR_NAME"
	ColCombinedName = "LOC_NAME_S"
	ColGeometry     = "geometry"
)

// SelectedColumns is the fixed projection used by the feature selector.
func SelectedColumns() []string {
	return []string{ColUniqueID, ColName, ColCombinedName, ColGeometry}
}

// CRS identifies a coordinate reference system by EPSG code.
type CRS struct {
	Code int
	Name string
}

// WGS84 returns the EPSG:4326 reference system every normalized collection
// carries. The dataset is known a priori to be in this system; no
// reprojection happens anywhere in the pipeline.
func WGS84() CRS {
	return CRS{Code: 4326, Name: "WGS 84"}
}

// FeatureRecord is one above-water GBR feature. Before normalization
// GeometryRaw holds the WKB payload and Geometry is nil; after
// normalization the relationship inverts. The two are never both set.
type FeatureRecord struct {
	UniqueID     string
	Name         string
	CombinedName string
	GeometryRaw  []byte
	Geometry     orb.Geometry
}

// Normalized reports whether the record's geometry has been decoded.
func (r FeatureRecord) Normalized() bool {
	return r.Geometry != nil && r.GeometryRaw == nil
}

// FeatureCollection is an ordered set of feature records sharing one CRS.
// Order is preserved from the source for deterministic output. CRS and
// ProcessedAt are zero until the geometry normalizer runs.
type FeatureCollection struct {
	Records     []FeatureRecord
	CRS         CRS
	ProcessedAt time.Time
}

// Len returns the number of records in the collection.
func (c *FeatureCollection) Len() int {
	return len(c.Records)
}

// DuplicateUniqueID scans the collection for a repeated UniqueID, returning
// the first offender. Uniqueness is a dataset invariant; a duplicate after
// deduplication means two distinct rows claim the same identifier.
func (c *FeatureCollection) DuplicateUniqueID() (string, bool) {
	seen := make(map[string]struct{}, len(c.Records))
	for _, rec := range c.Records {
		if _, ok := seen[rec.UniqueID]; ok {
			return rec.UniqueID, true
		}
		seen[rec.UniqueID] = struct{}{}
	}
	return "", false
}

// IsMainland reports whether a combined name/id label describes the
// Australian mainland rather than an offshore feature, e.g.
// "Mainland - QLD". The match is a plain substring test on the literal
// token used by the dataset.
func IsMainland(label string) bool {
	return strings.Contains(label, "Mainland")
}
