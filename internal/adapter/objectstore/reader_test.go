package objectstore_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marinemaps/reef-feature-etl/internal/adapter/objectstore"
	"github.com/marinemaps/reef-feature-etl/internal/domain"
)

func rangeServer(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// ServeContent handles HEAD and Range requests.
		http.ServeContent(w, r, "features.parquet", time.Unix(0, 0), bytes.NewReader(data))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpen_ReportsSizeWithoutFetchingData(t *testing.T) {
	data := []byte("0123456789abcdef")
	srv := rangeServer(t, data)

	r, err := objectstore.Open(context.Background(), srv.URL, 5*time.Second, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), r.Size())
}

func TestOpen_UnreachableHost(t *testing.T) {
	_, err := objectstore.Open(context.Background(), "http://127.0.0.1:1/nope.parquet", time.Second, slog.Default())
	assert.ErrorIs(t, err, domain.ErrConnection)
}

func TestOpen_MissingObject(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	_, err := objectstore.Open(context.Background(), srv.URL+"/gone.parquet", time.Second, slog.Default())
	assert.ErrorIs(t, err, domain.ErrConnection)
}

func TestReadAt_Ranges(t *testing.T) {
	data := []byte("0123456789abcdef")
	srv := rangeServer(t, data)

	r, err := objectstore.Open(context.Background(), srv.URL, 5*time.Second, slog.Default())
	require.NoError(t, err)

	t.Run("interior range", func(t *testing.T) {
		buf := make([]byte, 4)
		n, err := r.ReadAt(buf, 4)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.Equal(t, []byte("4567"), buf)
	})

	t.Run("tail range clipped at EOF", func(t *testing.T) {
		buf := make([]byte, 8)
		n, err := r.ReadAt(buf, 12)
		assert.Equal(t, 4, n)
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, []byte("cdef"), buf[:n])
	})

	t.Run("offset past end", func(t *testing.T) {
		buf := make([]byte, 4)
		_, err := r.ReadAt(buf, int64(len(data)))
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("section reader sees whole object", func(t *testing.T) {
		sec := io.NewSectionReader(r, 0, r.Size())
		got, err := io.ReadAll(sec)
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})
}
