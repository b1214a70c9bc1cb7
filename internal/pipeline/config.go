package pipeline

import (
	"errors"
	"time"
)

// Config holds all pipeline settings. This is a library-style workflow:
// the caller builds a Config programmatically, there are no environment
// variables or flags.
type Config struct {
	// DatasetURI names the geoParquet dataset root: a local path, file://
	// URI, or http(s):// URI of a single parquet object.
	DatasetURI string

	// ExportShapefile gates the optional shapefile export stage.
	ExportShapefile bool
	// ExportDir receives the shapefile triple; created if absent.
	ExportDir string
	// Overwrite applies delete-then-write semantics to an existing export.
	Overwrite bool

	// HTTPTimeout bounds each remote range request. Zero means 30s.
	HTTPTimeout time.Duration

	LogLevel  string // debug, info, warn, error; default info
	LogFormat string // json or text; default text
}

// Validate reports the first configuration problem, or nil.
func (c *Config) Validate() error {
	if c.DatasetURI == "" {
		return errors.New("DatasetURI is required")
	}
	if c.ExportShapefile && c.ExportDir == "" {
		return errors.New("ExportDir is required when ExportShapefile is set")
	}
	if c.HTTPTimeout < 0 {
		return errors.New("HTTPTimeout must not be negative")
	}
	return nil
}
