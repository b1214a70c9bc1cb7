// Package pipeline orchestrates the feature extraction workflow: extract,
// normalize, render, optionally export, strictly in sequence. Every stage
// fails fast; there are no retries and no partial results.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/marinemaps/reef-feature-etl/internal/domain"
	"github.com/marinemaps/reef-feature-etl/internal/observability"
)

// Extractor materializes the selected, deduplicated feature collection
// from the source dataset.
type Extractor interface {
	ExtractFeatures(ctx context.Context) (*domain.FeatureCollection, error)
}

// Normalizer decodes raw geometry in place and stamps the collection CRS.
type Normalizer interface {
	Normalize(ctx context.Context, c *domain.FeatureCollection) error
}

// Renderer produces the diagnostic overlay for a normalized collection.
type Renderer interface {
	RenderOverlay(ctx context.Context, c *domain.FeatureCollection) error
}

// Exporter persists a normalized collection.
type Exporter interface {
	Export(ctx context.Context, c *domain.FeatureCollection) error
}

// Pipeline runs the four stages in order. A nil exporter disables the
// export stage; the other stages are mandatory.
type Pipeline struct {
	extractor  Extractor
	normalizer Normalizer
	renderer   Renderer
	exporter   Exporter
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, n Normalizer, r Renderer, x Exporter, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor:  e,
		normalizer: n,
		renderer:   r,
		exporter:   x,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run executes one extraction pass and returns the normalized collection.
// On any stage failure the error surfaces immediately and no later stage
// runs: no partial overlay, no partial shapefile.
func (p *Pipeline) Run(ctx context.Context) (*domain.FeatureCollection, error) {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	c, err := p.timedExtract(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	if err := p.timed(ctx, "normalize", c, p.normalizer.Normalize); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	if err := p.timed(ctx, "render", c, p.renderer.RenderOverlay); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	if p.exporter != nil {
		if err := p.timed(ctx, "export", c, p.exporter.Export); err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
	} else {
		p.logger.Info("shapefile export disabled")
	}

	p.logger.Info("pipeline complete", "records", c.Len(), "crs", c.CRS.Code)
	return c, nil
}

func (p *Pipeline) timedExtract(ctx context.Context) (*domain.FeatureCollection, error) {
	start := time.Now()
	c, err := p.extractor.ExtractFeatures(ctx)
	if err != nil {
		return nil, err
	}
	p.observeStage("extract", start)
	return c, nil
}

func (p *Pipeline) timed(ctx context.Context, stage string, c *domain.FeatureCollection, f func(context.Context, *domain.FeatureCollection) error) error {
	start := time.Now()
	if err := f(ctx, c); err != nil {
		return err
	}
	p.observeStage(stage, start)
	return nil
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	elapsed := time.Since(start)
	p.metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	p.logger.Debug("stage complete", "stage", stage, "duration", elapsed)
}
