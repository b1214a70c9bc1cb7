// Package render produces the diagnostic overlay map for a normalized
// feature collection: a GeoJSON document splitting the mainland coastline
// from reef features, clipped to the GBR extent, ready for any slippy-map
// or desktop GIS viewer.
package render

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/marinemaps/reef-feature-etl/internal/domain"
)

// GBR extent window: everything east of 130°E and north of 30°S.
const (
	windowMinLon = 130.0
	windowMinLat = -30.0
)

// Fill styles per layer, simplestyle-spec property names.
const (
	reefFill     = "#2b8cbe"
	mainlandFill = "#a6611a"
)

// OverlayRenderer writes the overlay document to a caller-supplied writer.
type OverlayRenderer struct {
	out    io.Writer
	logger *slog.Logger
}

// NewOverlayRenderer creates a renderer targeting out.
func NewOverlayRenderer(out io.Writer, logger *slog.Logger) *OverlayRenderer {
	return &OverlayRenderer{out: out, logger: logger}
}

// RenderOverlay partitions the collection on the mainland predicate, drops
// features outside the GBR window, and writes one GeoJSON feature
// collection with layer and fill properties. The contract is "rendered or
// failed": an unnormalized record or an unwritable target fails the call,
// an empty result does not.
func (r *OverlayRenderer) RenderOverlay(ctx context.Context, c *domain.FeatureCollection) error {
	fc := geojson.NewFeatureCollection()
	mainland, reef := 0, 0

	for _, rec := range c.Records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rec.Geometry == nil {
			return fmt.Errorf("record %s not normalized: %w", rec.UniqueID, domain.ErrGeometryDecode)
		}
		if !inWindow(rec.Geometry.Bound()) {
			continue
		}

		f := geojson.NewFeature(rec.Geometry)
		f.Properties["unique_id"] = rec.UniqueID
		f.Properties["gbr_name"] = rec.Name
		f.Properties["loc_name_combined"] = rec.CombinedName
		if domain.IsMainland(rec.CombinedName) {
			f.Properties["layer"] = "mainland"
			f.Properties["fill"] = mainlandFill
			mainland++
		} else {
			f.Properties["layer"] = "reef"
			f.Properties["fill"] = reefFill
			reef++
		}
		fc.Append(f)
	}

	fc.ExtraMembers = geojson.Properties{
		"crs_code":     c.CRS.Code,
		"generated_at": domain.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(r.out).Encode(fc); err != nil {
		return fmt.Errorf("write overlay: %v: %w", err, domain.ErrWrite)
	}

	r.logger.Info("overlay rendered",
		"mainland_features", mainland,
		"reef_features", reef,
		"clipped", c.Len()-mainland-reef,
	)
	return nil
}

// inWindow reports whether a geometry's bound touches the GBR window.
func inWindow(b orb.Bound) bool {
	return b.Right() >= windowMinLon && b.Top() >= windowMinLat
}
