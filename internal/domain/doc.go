// Package domain models the Great Barrier Reef (GBR) features dataset.
//
// # Data Source
//
// Feature boundaries come from the "Complete GBR Reef and Island Features"
// dataset published by the Australian Institute of Marine Science via the
// eAtlas. The cloud copy is a geoParquet dataset: a directory of parquet
// files carrying tabular attributes plus a WKB-encoded geometry column,
// queryable without a full-file scan.
//
// # Dataset Conventions
//
// Columns consumed by this module:
//
//	UNIQUE_ID   feature identifier, unique across the dataset. A named
//	            location may own many UNIQUE_IDs (one per polygon), but a
//	            UNIQUE_ID never repeats.
//	GBR_NAME    human-readable location name, not unique (e.g. "Hardy Reef"
//	            covers several features).
//	LOC_NAME_S  display label combining name and id, unique per record,
//	            e.g. "Hardy Reef - 19-017a" or "Mainland - QLD".
//	geometry    WKB polygon or multipolygon, WGS 84 (EPSG:4326) longitude/
//	            latitude degrees. The CRS is a property of the dataset, not
//	            of individual rows; it is asserted, never inferred.
//
// The dataset also carries X_COORD, Y_COORD and minx/miny/maxx/maxy bounding
// columns which this module deliberately ignores.
//
// # Mainland Records
//
// Rows whose LOC_NAME_S label contains the token "Mainland" describe the
// Australian mainland coastline rather than an offshore reef or island
// feature. Overlay rendering splits the collection on this token so the
// mainland can be styled separately from reef features.
//
// # Extent
//
// Above-water GBR features all fall east of 130°E and north of 30°S. The
// overlay renderer uses that window to clip stray geometry.
package domain
