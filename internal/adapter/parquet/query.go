package parquet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/marinemaps/reef-feature-etl/internal/domain"
)

// Query accumulates a projection and a distinct flag against a dataset.
// Nothing executes until Collect; the remote handle stays lazy.
type Query struct {
	ds       *Dataset
	columns  []string
	distinct bool
}

// Query starts an empty query against the dataset.
func (d *Dataset) Query() *Query {
	return &Query{ds: d}
}

// Select sets the projected columns.
func (q *Query) Select(columns ...string) *Query {
	q.columns = columns
	return q
}

// Distinct removes exact-duplicate rows across the projected columns,
// keeping the first occurrence.
func (q *Query) Distinct() *Query {
	q.distinct = true
	return q
}

// Collect executes the query and materializes the result fully into memory.
// The projection must include the four feature columns (UNIQUE_ID,
// GBR_NAME, LOC_NAME_S, geometry); a column absent from the dataset schema
// fails with domain.ErrQuery. Rows with a null geometry pass through with a
// nil raw payload. After deduplication, a UNIQUE_ID claimed by two distinct
// rows violates the dataset invariant and also fails with domain.ErrQuery.
func (q *Query) Collect(ctx context.Context) (*domain.FeatureCollection, error) {
	if len(q.columns) == 0 {
		return nil, fmt.Errorf("no columns selected: %w", domain.ErrQuery)
	}

	indices := make([]int, 0, len(q.columns))
	for _, name := range q.columns {
		idx := q.ds.schema.FieldIndices(name)
		if len(idx) == 0 {
			return nil, fmt.Errorf("column %q absent from dataset schema: %w", name, domain.ErrQuery)
		}
		indices = append(indices, idx[0])
	}

	c := &domain.FeatureCollection{}
	seen := make(map[string]struct{})
	duplicates := 0

	for _, p := range q.ds.parts {
		rowGroups := make([]int, p.pf.NumRowGroups())
		for i := range rowGroups {
			rowGroups[i] = i
		}

		tbl, err := p.fr.ReadRowGroups(ctx, indices, rowGroups)
		if err != nil {
			return nil, fmt.Errorf("read %s: %v: %w", p.label, err, domain.ErrQuery)
		}

		err = q.appendRows(tbl, c, seen, &duplicates)
		tbl.Release()
		if err != nil {
			return nil, err
		}
	}

	if id, dup := c.DuplicateUniqueID(); dup {
		return nil, fmt.Errorf("unique_id %q claimed by more than one feature: %w", id, domain.ErrQuery)
	}

	q.ds.metrics.FeaturesSelected.Add(float64(c.Len()))
	q.ds.metrics.DuplicatesDropped.Add(float64(duplicates))
	q.ds.logger.Info("features selected",
		"uri", q.ds.uri,
		"records", c.Len(),
		"duplicates_dropped", duplicates,
	)
	return c, nil
}

// appendRows walks a materialized table and appends feature records,
// applying the distinct filter as it goes.
func (q *Query) appendRows(tbl arrow.Table, c *domain.FeatureCollection, seen map[string]struct{}, duplicates *int) error {
	uid, err := tableColumn(tbl, domain.ColUniqueID)
	if err != nil {
		return err
	}
	name, err := tableColumn(tbl, domain.ColName)
	if err != nil {
		return err
	}
	combined, err := tableColumn(tbl, domain.ColCombinedName)
	if err != nil {
		return err
	}
	geom, err := tableColumn(tbl, domain.ColGeometry)
	if err != nil {
		return err
	}

	for row := int64(0); row < tbl.NumRows(); row++ {
		rec := domain.FeatureRecord{}

		if rec.UniqueID, err = stringCellAt(uid, row); err != nil {
			return err
		}
		if rec.Name, err = stringCellAt(name, row); err != nil {
			return err
		}
		if rec.CombinedName, err = stringCellAt(combined, row); err != nil {
			return err
		}
		if rec.GeometryRaw, err = bytesCellAt(geom, row); err != nil {
			return err
		}

		if q.distinct {
			key := dedupeKey(rec)
			if _, ok := seen[key]; ok {
				*duplicates++
				continue
			}
			seen[key] = struct{}{}
		}

		c.Records = append(c.Records, rec)
	}
	return nil
}

// dedupeKey identifies a row by its four projected values. Geometry bytes
// enter as a truncated sha256 so the key stays short.
func dedupeKey(rec domain.FeatureRecord) string {
	sum := sha256.Sum256(rec.GeometryRaw)
	return strings.Join([]string{
		rec.UniqueID,
		rec.Name,
		rec.CombinedName,
		hex.EncodeToString(sum[:8]),
	}, "\x1f")
}

func tableColumn(tbl arrow.Table, name string) (*arrow.Column, error) {
	idx := tbl.Schema().FieldIndices(name)
	if len(idx) == 0 {
		return nil, fmt.Errorf("column %q missing from materialized table: %w", name, domain.ErrQuery)
	}
	return tbl.Column(idx[0]), nil
}

// cellAt resolves a table-level row index to the chunk holding it.
func cellAt(col *arrow.Column, row int64) (arrow.Array, int) {
	for _, chunk := range col.Data().Chunks() {
		n := int64(chunk.Len())
		if row < n {
			return chunk, int(row)
		}
		row -= n
	}
	return nil, 0
}

// stringCellAt reads a cell as text. Identifier columns may arrive as
// integers in some dataset revisions; those are stringified. Null cells
// read as empty strings.
func stringCellAt(col *arrow.Column, row int64) (string, error) {
	chunk, i := cellAt(col, row)
	if chunk == nil || chunk.IsNull(i) {
		return "", nil
	}

	switch a := chunk.(type) {
	case *array.String:
		return a.Value(i), nil
	case *array.LargeString:
		return a.Value(i), nil
	case *array.Int64:
		return strconv.FormatInt(a.Value(i), 10), nil
	case *array.Int32:
		return strconv.FormatInt(int64(a.Value(i)), 10), nil
	default:
		return "", fmt.Errorf("column type %s not usable as text: %w", chunk.DataType(), domain.ErrSchema)
	}
}

// bytesCellAt reads a cell as a binary payload. Null cells read as nil; the
// geometry normalizer decides what to do with them. The returned slice is
// copied out of the arrow buffer so it survives table release.
func bytesCellAt(col *arrow.Column, row int64) ([]byte, error) {
	chunk, i := cellAt(col, row)
	if chunk == nil || chunk.IsNull(i) {
		return nil, nil
	}

	switch a := chunk.(type) {
	case *array.Binary:
		return append([]byte(nil), a.Value(i)...), nil
	case *array.LargeBinary:
		return append([]byte(nil), a.Value(i)...), nil
	default:
		return nil, fmt.Errorf("column type %s not usable as binary: %w", chunk.DataType(), domain.ErrSchema)
	}
}
