// Package reefetl extracts above-water Great Barrier Reef features from a
// cloud-hosted geoParquet dataset, decodes their WKB geometry into a WGS 84
// feature collection, renders a mainland/reef overlay document, and
// optionally exports the collection as a shapefile.
//
// The workflow is a single pass with no concurrency:
//
//	open dataset → select + dedupe columns → decode geometry →
//	{ render overlay, export shapefile }
//
// Failures are classified by the sentinel errors re-exported below and
// surface immediately; no partial output is ever produced.
package reefetl

import (
	"context"
	"io"
	"sync"

	"github.com/marinemaps/reef-feature-etl/internal/adapter/parquet"
	"github.com/marinemaps/reef-feature-etl/internal/adapter/shapefile"
	"github.com/marinemaps/reef-feature-etl/internal/domain"
	"github.com/marinemaps/reef-feature-etl/internal/geometry"
	"github.com/marinemaps/reef-feature-etl/internal/observability"
	"github.com/marinemaps/reef-feature-etl/internal/pipeline"
	"github.com/marinemaps/reef-feature-etl/internal/render"
)

// Config configures a pipeline run.
type Config = pipeline.Config

// FeatureRecord is one above-water GBR feature.
type FeatureRecord = domain.FeatureRecord

// FeatureCollection is the materialized, ordered result of a run.
type FeatureCollection = domain.FeatureCollection

// CRS identifies a coordinate reference system by EPSG code.
type CRS = domain.CRS

// Error taxonomy, tested with errors.Is.
var (
	ErrConnection     = domain.ErrConnection
	ErrSchema         = domain.ErrSchema
	ErrQuery          = domain.ErrQuery
	ErrGeometryDecode = domain.ErrGeometryDecode
	ErrWrite          = domain.ErrWrite
)

// IsMainland reports whether a combined name/id label describes the
// Australian mainland rather than an offshore feature.
func IsMainland(label string) bool {
	return domain.IsMainland(label)
}

var (
	metricsOnce sync.Once
	metrics     *observability.Metrics
)

// sharedMetrics registers pipeline metrics with the default Prometheus
// registry exactly once per process.
func sharedMetrics() *observability.Metrics {
	metricsOnce.Do(func() {
		metrics = observability.NewMetrics()
	})
	return metrics
}

// Run executes one extraction pass. The overlay document is written to
// overlay; the shapefile export runs only when cfg.ExportShapefile is set.
// The returned collection is normalized: every record carries structured
// geometry and the collection carries EPSG:4326.
func Run(ctx context.Context, cfg Config, overlay io.Writer) (*FeatureCollection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	m := sharedMetrics()

	ds, err := parquet.Open(ctx, cfg.DatasetURI, parquet.Options{
		HTTPTimeout: cfg.HTTPTimeout,
		Logger:      logger,
		Metrics:     m,
	})
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	var exporter pipeline.Exporter
	if cfg.ExportShapefile {
		exporter = shapefile.NewWriter(cfg.ExportDir, cfg.Overwrite, logger, m)
	}

	p := pipeline.New(
		parquet.NewExtractor(ds),
		geometry.NewNormalizer(logger, m),
		render.NewOverlayRenderer(overlay, logger),
		exporter,
		logger,
		m,
	)

	return p.Run(ctx)
}
