package parquet

import (
	"context"

	"github.com/marinemaps/reef-feature-etl/internal/domain"
)

// Extractor runs the fixed feature selection against an open dataset. It
// implements pipeline.Extractor.
type Extractor struct {
	ds *Dataset
}

// NewExtractor wraps a dataset in the pipeline's extraction stage.
func NewExtractor(ds *Dataset) *Extractor {
	return &Extractor{ds: ds}
}

// ExtractFeatures projects the four feature columns, deduplicates, and
// materializes the result.
func (e *Extractor) ExtractFeatures(ctx context.Context) (*domain.FeatureCollection, error) {
	return e.ds.Query().
		Select(domain.SelectedColumns()...).
		Distinct().
		Collect(ctx)
}
