// Package parquet connects to a geoParquet dataset and materializes
// projected, deduplicated feature collections from it. It implements the
// pipeline's source connector and feature selector on top of the Apache
// Arrow parquet reader.
package parquet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/marinemaps/reef-feature-etl/internal/adapter/objectstore"
	"github.com/marinemaps/reef-feature-etl/internal/domain"
	"github.com/marinemaps/reef-feature-etl/internal/observability"
)

// Options configures dataset access.
type Options struct {
	// HTTPTimeout bounds each remote range request. Zero means 30s.
	HTTPTimeout time.Duration
	// Allocator defaults to memory.DefaultAllocator.
	Allocator memory.Allocator
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

func (o Options) withDefaults() Options {
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = 30 * time.Second
	}
	if o.Allocator == nil {
		o.Allocator = memory.DefaultAllocator
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Metrics == nil {
		o.Metrics = observability.NewMetricsForTesting()
	}
	return o
}

// Dataset is a lazy handle on a geoParquet dataset: a single parquet object
// or a directory of parquet files sharing one schema. Opening reads only
// file footers; row data transfers when a query is collected.
type Dataset struct {
	uri     string
	parts   []*part
	schema  *arrow.Schema
	logger  *slog.Logger
	metrics *observability.Metrics
	alloc   memory.Allocator
}

// part is one parquet file of the dataset.
type part struct {
	label string
	pf    *file.Reader
	fr    *pqarrow.FileReader
}

// Open resolves uri to one or more parquet files and reads their footers.
// Supported forms: a local .parquet file, a local directory of .parquet
// files, a file:// URI of either, or an http(s):// URI of a single parquet
// object (read lazily via byte-range requests). Unreachable or unreadable
// locations fail with domain.ErrConnection; locations that are reachable
// but not consistent tabular columnar data fail with domain.ErrSchema.
func Open(ctx context.Context, uri string, opts Options) (*Dataset, error) {
	opts = opts.withDefaults()

	ds := &Dataset{
		uri:     uri,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		alloc:   opts.Allocator,
	}

	var err error
	switch {
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		err = ds.openRemote(ctx, uri, opts)
	case strings.HasPrefix(uri, "file://"):
		err = ds.openLocal(strings.TrimPrefix(uri, "file://"))
	default:
		err = ds.openLocal(uri)
	}
	if err != nil {
		ds.Close()
		return nil, err
	}

	ds.logger.Info("dataset opened",
		"uri", uri,
		"parts", len(ds.parts),
		"columns", len(ds.schema.Fields()),
	)
	return ds, nil
}

// Schema returns the shared arrow schema of the dataset.
func (d *Dataset) Schema() *arrow.Schema {
	return d.schema
}

// Close releases all underlying file readers.
func (d *Dataset) Close() error {
	var firstErr error
	for _, p := range d.parts {
		if err := p.pf.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.parts = nil
	return firstErr
}

func (d *Dataset) openRemote(ctx context.Context, url string, opts Options) error {
	ra, err := objectstore.Open(ctx, url, opts.HTTPTimeout, opts.Logger)
	if err != nil {
		return err
	}

	pf, err := file.NewParquetReader(io.NewSectionReader(ra, 0, ra.Size()))
	if err != nil {
		return fmt.Errorf("open %s as parquet: %v: %w", url, err, domain.ErrSchema)
	}
	return d.addPart(url, pf)
}

func (d *Dataset) openLocal(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %v: %w", path, err, domain.ErrConnection)
	}

	paths := []string{path}
	if info.IsDir() {
		paths, err = filepath.Glob(filepath.Join(path, "*.parquet"))
		if err != nil {
			return fmt.Errorf("list %s: %v: %w", path, err, domain.ErrConnection)
		}
		if len(paths) == 0 {
			return fmt.Errorf("%s holds no parquet files: %w", path, domain.ErrSchema)
		}
		sort.Strings(paths)
	}

	for _, p := range paths {
		pf, err := file.OpenParquetFile(p, false)
		if err != nil {
			if os.IsNotExist(err) || os.IsPermission(err) {
				return fmt.Errorf("open %s: %v: %w", p, err, domain.ErrConnection)
			}
			return fmt.Errorf("open %s as parquet: %v: %w", p, err, domain.ErrSchema)
		}
		if err := d.addPart(p, pf); err != nil {
			return err
		}
	}
	return nil
}

// addPart wraps a parquet footer in an arrow reader, checks schema
// consistency against earlier parts, and validates geoParquet metadata
// when the file carries it.
func (d *Dataset) addPart(label string, pf *file.Reader) error {
	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, d.alloc)
	if err != nil {
		pf.Close()
		return fmt.Errorf("read %s schema: %v: %w", label, err, domain.ErrSchema)
	}

	schema, err := fr.Schema()
	if err != nil {
		pf.Close()
		return fmt.Errorf("read %s schema: %v: %w", label, err, domain.ErrSchema)
	}

	if d.schema == nil {
		d.schema = schema
	} else if !d.schema.Equal(schema) {
		pf.Close()
		return fmt.Errorf("%s schema differs from the rest of the dataset: %w", label, domain.ErrSchema)
	}

	if err := validateGeoMetadata(pf, schema); err != nil {
		pf.Close()
		return fmt.Errorf("%s: %v: %w", label, err, domain.ErrSchema)
	}

	d.parts = append(d.parts, &part{label: label, pf: pf, fr: fr})
	return nil
}

// geoMetadata is the subset of the geoParquet file metadata this module
// cares about.
type geoMetadata struct {
	Version       string                   `json:"version"`
	PrimaryColumn string                   `json:"primary_column"`
	Columns       map[string]geoColumnMeta `json:"columns"`
}

type geoColumnMeta struct {
	Encoding string `json:"encoding"`
}

// validateGeoMetadata checks the "geo" key-value metadata when present:
// the primary geometry column must exist in the schema and be WKB encoded.
// Files without the metadata pass; the dataset contract is asserted by the
// caller either way.
func validateGeoMetadata(pf *file.Reader, schema *arrow.Schema) error {
	raw := pf.MetaData().KeyValueMetadata().FindValue("geo")
	if raw == nil {
		return nil
	}
	return checkGeoMetadata(*raw, schema)
}

func checkGeoMetadata(raw string, schema *arrow.Schema) error {
	var meta geoMetadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return fmt.Errorf("malformed geo metadata: %v", err)
	}

	if meta.PrimaryColumn == "" {
		return fmt.Errorf("geo metadata names no primary column")
	}
	if len(schema.FieldIndices(meta.PrimaryColumn)) == 0 {
		return fmt.Errorf("geo metadata names absent column %q", meta.PrimaryColumn)
	}
	if col, ok := meta.Columns[meta.PrimaryColumn]; ok {
		if col.Encoding != "" && !strings.EqualFold(col.Encoding, "WKB") {
			return fmt.Errorf("unsupported geometry encoding %q", col.Encoding)
		}
	}
	return nil
}
