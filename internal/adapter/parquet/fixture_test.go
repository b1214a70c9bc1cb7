package parquet_test

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	pq "github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/require"
)

// fixtureRow is one feature row of a test dataset.
type fixtureRow struct {
	uniqueID string
	name     string
	combined string
	geometry []byte // nil writes a null cell
}

// wkbSquare encodes a 1x1 WKB polygon at (x, y), little endian.
func wkbSquare(x, y float64) []byte {
	ring := [][2]float64{{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y}}
	buf := []byte{0x01}
	buf = binary.LittleEndian.AppendUint32(buf, 3) // wkbPolygon
	buf = binary.LittleEndian.AppendUint32(buf, 1)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ring)))
	for _, pt := range ring {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(pt[0]))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(pt[1]))
	}
	return buf
}

const geoMeta = `{"version":"1.0.0","primary_column":"geometry","columns":{"geometry":{"encoding":"WKB"}}}`

// featureSchema mirrors the GBR features geoParquet layout, including an
// unused coordinate column the selector must ignore.
func featureSchema() *arrow.Schema {
	md := arrow.MetadataFrom(map[string]string{"geo": geoMeta})
	return arrow.NewSchema([]arrow.Field{
		{Name: "UNIQUE_ID", Type: arrow.BinaryTypes.String},
		{Name: "GBR_NAME", Type: arrow.BinaryTypes.String},
		{Name: "LOC_NAME_S", Type: arrow.BinaryTypes.String},
		{Name: "geometry", Type: arrow.BinaryTypes.Binary, Nullable: true},
		{Name: "X_COORD", Type: arrow.PrimitiveTypes.Float64},
	}, &md)
}

// writeFixture writes rows as a parquet file and returns its path.
func writeFixture(t *testing.T, path string, rows []fixtureRow) string {
	t.Helper()

	schema := featureSchema()
	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()

	for _, row := range rows {
		b.Field(0).(*array.StringBuilder).Append(row.uniqueID)
		b.Field(1).(*array.StringBuilder).Append(row.name)
		b.Field(2).(*array.StringBuilder).Append(row.combined)
		if row.geometry == nil {
			b.Field(3).(*array.BinaryBuilder).AppendNull()
		} else {
			b.Field(3).(*array.BinaryBuilder).Append(row.geometry)
		}
		b.Field(4).(*array.Float64Builder).Append(0)
	}

	rec := b.NewRecord()
	defer rec.Release()

	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	err = pqarrow.WriteTable(tbl, f, 1024, pq.NewWriterProperties(), pqarrow.DefaultWriterProps())
	require.NoError(t, err)
	return path
}

// defaultRows is a small dataset with reef and mainland features.
func defaultRows() []fixtureRow {
	return []fixtureRow{
		{uniqueID: "19-017a", name: "Hardy Reef", combined: "Hardy Reef - 19-017a", geometry: wkbSquare(148, -19)},
		{uniqueID: "19-017b", name: "Hardy Reef", combined: "Hardy Reef - 19-017b", geometry: wkbSquare(149, -19)},
		{uniqueID: "QLD-1", name: "Queensland", combined: "Mainland - QLD", geometry: wkbSquare(145, -17)},
	}
}

func fixtureDir(t *testing.T, rows []fixtureRow) string {
	t.Helper()
	dir := t.TempDir()
	writeFixture(t, filepath.Join(dir, "part-0.parquet"), rows)
	return dir
}

// writeIntegerIDFixture writes a dataset whose UNIQUE_ID column is an
// integer type, as some dataset revisions publish it. dt must be int64 or
// int32.
func writeIntegerIDFixture(t *testing.T, path string, dt arrow.DataType, ids []int64) string {
	t.Helper()

	md := arrow.MetadataFrom(map[string]string{"geo": geoMeta})
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "UNIQUE_ID", Type: dt},
		{Name: "GBR_NAME", Type: arrow.BinaryTypes.String},
		{Name: "LOC_NAME_S", Type: arrow.BinaryTypes.String},
		{Name: "geometry", Type: arrow.BinaryTypes.Binary, Nullable: true},
	}, &md)

	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()

	for i, id := range ids {
		switch idb := b.Field(0).(type) {
		case *array.Int64Builder:
			idb.Append(id)
		case *array.Int32Builder:
			idb.Append(int32(id))
		default:
			t.Fatalf("unsupported identifier type %s", dt)
		}
		b.Field(1).(*array.StringBuilder).Append("Hardy Reef")
		b.Field(2).(*array.StringBuilder).Append("Hardy Reef - " + strconv.FormatInt(id, 10))
		b.Field(3).(*array.BinaryBuilder).Append(wkbSquare(148+float64(i), -19))
	}

	rec := b.NewRecord()
	defer rec.Release()
	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, pqarrow.WriteTable(tbl, f, 1024, pq.NewWriterProperties(), pqarrow.DefaultWriterProps()))
	return path
}
