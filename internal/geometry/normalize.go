// Package geometry decodes WKB payloads into structured geometry and
// attaches the collection-wide coordinate reference system.
package geometry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/marinemaps/reef-feature-etl/internal/domain"
	"github.com/marinemaps/reef-feature-etl/internal/observability"
)

// Decode parses a WKB payload into a polygon or multipolygon geometry.
// Coordinate values are the raw doubles from the payload; nothing is
// rounded or simplified. Any other geometry type, and any malformed or
// empty payload, is a decode error.
func Decode(raw []byte) (orb.Geometry, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty payload: %w", domain.ErrGeometryDecode)
	}

	geom, err := wkb.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrGeometryDecode)
	}

	switch geom.(type) {
	case orb.Polygon, orb.MultiPolygon:
		return geom, nil
	default:
		return nil, fmt.Errorf("unexpected geometry type %s: %w", geom.GeoJSONType(), domain.ErrGeometryDecode)
	}
}

// Normalizer transforms every record's raw WKB bytes into structured
// geometry and stamps the collection with the WGS 84 reference system.
//
// A Normalizer is not safe for concurrent use on the same collection.
type Normalizer struct {
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewNormalizer creates a Normalizer with the given observability.
func NewNormalizer(logger *slog.Logger, metrics *observability.Metrics) *Normalizer {
	return &Normalizer{logger: logger, metrics: metrics}
}

// Normalize decodes each record in place: GeometryRaw is replaced by the
// structured geometry and discarded. The first malformed or absent payload
// aborts the whole batch, leaving the collection without a CRS stamp. The
// CRS is asserted as EPSG:4326, a property of the dataset rather than of
// individual records.
func (n *Normalizer) Normalize(ctx context.Context, c *domain.FeatureCollection) error {
	for i := range c.Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := &c.Records[i]

		geom, err := Decode(rec.GeometryRaw)
		if err != nil {
			n.metrics.DecodeFailures.Inc()
			n.logger.Error("geometry decode failed",
				"unique_id", rec.UniqueID,
				"label", rec.CombinedName,
				"error", err,
			)
			return fmt.Errorf("record %s: %w", rec.UniqueID, err)
		}

		rec.Geometry = geom
		rec.GeometryRaw = nil
		n.metrics.GeometriesDecoded.Inc()
	}

	c.CRS = domain.WGS84()
	c.ProcessedAt = domain.Now()

	n.logger.Info("geometry normalized",
		"records", c.Len(),
		"crs", c.CRS.Code,
	)
	return nil
}
