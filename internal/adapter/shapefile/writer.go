// Package shapefile serializes a normalized feature collection as an ESRI
// shapefile triple (.shp/.shx/.dbf) plus a small JSON manifest recording
// provenance.
package shapefile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/marinemaps/reef-feature-etl/internal/domain"
	"github.com/marinemaps/reef-feature-etl/internal/observability"
)

// baseName is the stem of every file the exporter writes.
const baseName = "gbr_features"

// Writer exports feature collections into a directory.
type Writer struct {
	dir       string
	overwrite bool
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewWriter creates an exporter targeting dir, created on first export if
// absent. With overwrite set, an existing triple at the target is deleted
// before writing, making repeated exports idempotent; without it, an
// existing triple fails the export.
func NewWriter(dir string, overwrite bool, logger *slog.Logger, metrics *observability.Metrics) *Writer {
	return &Writer{dir: dir, overwrite: overwrite, logger: logger, metrics: metrics}
}

// Manifest describes one completed export.
type Manifest struct {
	Count       int       `json:"count"`
	CRSCode     int       `json:"crs_code"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Export writes the collection as gbr_features.shp/.shx/.dbf under the
// writer's directory. Every record must be normalized; the collection is
// validated in full before any existing export is touched, so a bad record
// never destroys a previous good triple. All failures wrap domain.ErrWrite.
func (w *Writer) Export(ctx context.Context, c *domain.FeatureCollection) error {
	shapes := make([]*shp.Polygon, 0, len(c.Records))
	for _, rec := range c.Records {
		shape, err := polygonShape(rec)
		if err != nil {
			return err
		}
		shapes = append(shapes, shape)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %v: %w", w.dir, err, domain.ErrWrite)
	}

	base := filepath.Join(w.dir, baseName)
	if err := w.clearTarget(base); err != nil {
		return err
	}

	sw, err := shp.Create(base+".shp", shp.POLYGON)
	if err != nil {
		return fmt.Errorf("create shapefile %s: %v: %w", base+".shp", err, domain.ErrWrite)
	}

	if err := writeShapes(ctx, sw, c, shapes); err != nil {
		sw.Close()
		removeTarget(base)
		return err
	}
	sw.Close()

	// go-shp derives the attribute file name from the .shp path without a
	// dot separator; move it to the documented .dbf location.
	if _, err := os.Stat(base + "dbf"); err == nil {
		if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
			removeTarget(base)
			return fmt.Errorf("place attribute file: %v: %w", err, domain.ErrWrite)
		}
	}

	if err := w.writeManifest(base, c); err != nil {
		return err
	}

	w.metrics.FeaturesExported.Add(float64(c.Len()))
	w.logger.Info("shapefile exported",
		"dir", w.dir,
		"records", c.Len(),
	)
	return nil
}

// writeShapes streams the pre-validated shapes and their attribute rows.
func writeShapes(ctx context.Context, sw *shp.Writer, c *domain.FeatureCollection, shapes []*shp.Polygon) error {
	if err := sw.SetFields([]shp.Field{
		shp.StringField("UNIQUE_ID", 64),
		shp.StringField("GBR_NAME", 64),
		shp.StringField("LOC_NAME_S", 80),
	}); err != nil {
		return fmt.Errorf("set attribute fields: %v: %w", err, domain.ErrWrite)
	}

	for row, rec := range c.Records {
		if err := ctx.Err(); err != nil {
			return err
		}

		idx := int(sw.Write(shapes[row]))
		if err := sw.WriteAttribute(idx, 0, rec.UniqueID); err != nil {
			return fmt.Errorf("record %s UNIQUE_ID attribute: %v: %w", rec.UniqueID, err, domain.ErrWrite)
		}
		if err := sw.WriteAttribute(idx, 1, rec.Name); err != nil {
			return fmt.Errorf("record %s GBR_NAME attribute: %v: %w", rec.UniqueID, err, domain.ErrWrite)
		}
		if err := sw.WriteAttribute(idx, 2, rec.CombinedName); err != nil {
			return fmt.Errorf("record %s LOC_NAME_S attribute: %v: %w", rec.UniqueID, err, domain.ErrWrite)
		}
	}
	return nil
}

// targetFiles lists every path one export can produce, including the
// dotless attribute file name go-shp writes before it is moved into place.
func targetFiles(base string) []string {
	return []string{
		base + ".shp",
		base + ".shx",
		base + ".dbf",
		base + "dbf",
		base + ".manifest.json",
	}
}

// clearTarget applies the overwrite policy: delete-then-write, never a
// silent partial merge with a previous export.
func (w *Writer) clearTarget(base string) error {
	for _, path := range targetFiles(base) {
		_, err := os.Stat(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("stat %s: %v: %w", path, err, domain.ErrWrite)
		}
		if !w.overwrite {
			return fmt.Errorf("%s exists and overwrite is disabled: %w", path, domain.ErrWrite)
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove %s: %v: %w", path, err, domain.ErrWrite)
		}
	}
	return nil
}

// removeTarget deletes whatever a failed export left behind, so the
// directory never holds a partial triple alongside a returned error.
func removeTarget(base string) {
	for _, path := range targetFiles(base) {
		os.Remove(path)
	}
}

func (w *Writer) writeManifest(base string, c *domain.FeatureCollection) error {
	m := Manifest{
		Count:       c.Len(),
		CRSCode:     c.CRS.Code,
		GeneratedAt: domain.Now().UTC(),
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %v: %w", err, domain.ErrWrite)
	}
	if err := os.WriteFile(base+".manifest.json", data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %v: %w", err, domain.ErrWrite)
	}
	return nil
}

// polygonShape flattens a polygon or multipolygon into a multi-part
// shapefile POLYGON: one part per ring, outer rings and holes alike.
func polygonShape(rec domain.FeatureRecord) (*shp.Polygon, error) {
	var rings []orb.Ring
	switch g := rec.Geometry.(type) {
	case orb.Polygon:
		rings = g
	case orb.MultiPolygon:
		for _, poly := range g {
			rings = append(rings, poly...)
		}
	default:
		return nil, fmt.Errorf("record %s has no polygonal geometry: %w", rec.UniqueID, domain.ErrWrite)
	}

	var points []shp.Point
	parts := make([]int32, 0, len(rings))
	for _, ring := range rings {
		parts = append(parts, int32(len(points)))
		for _, pt := range ring {
			points = append(points, shp.Point{X: pt[0], Y: pt[1]})
		}
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("record %s has empty geometry: %w", rec.UniqueID, domain.ErrWrite)
	}

	box := shp.Box{MinX: points[0].X, MinY: points[0].Y, MaxX: points[0].X, MaxY: points[0].Y}
	for _, pt := range points[1:] {
		if pt.X < box.MinX {
			box.MinX = pt.X
		}
		if pt.Y < box.MinY {
			box.MinY = pt.Y
		}
		if pt.X > box.MaxX {
			box.MaxX = pt.X
		}
		if pt.Y > box.MaxY {
			box.MaxY = pt.Y
		}
	}

	return &shp.Polygon{
		Box:       box,
		NumParts:  int32(len(parts)),
		NumPoints: int32(len(points)),
		Parts:     parts,
		Points:    points,
	}, nil
}
