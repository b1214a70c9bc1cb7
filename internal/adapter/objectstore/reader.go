// Package objectstore provides lazy byte-range access to remote dataset
// objects over HTTP, so opening a dataset transfers only the parquet footer
// and the column chunks a query actually touches.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/marinemaps/reef-feature-etl/internal/domain"
)

// ReaderAt reads byte ranges of a remote object via HTTP Range requests.
// It implements io.ReaderAt; wrap it in an io.SectionReader where a seeker
// is required.
type ReaderAt struct {
	client *http.Client
	url    string
	size   int64
	logger *slog.Logger
}

// Open issues a HEAD request to establish that the object exists and learn
// its size. No object data is transferred. Unreachable hosts, missing
// objects, and servers that do not report a length all fail with
// domain.ErrConnection.
func Open(ctx context.Context, url string, timeout time.Duration, logger *slog.Logger) (*ReaderAt, error) {
	client := &http.Client{Timeout: timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("head %s: %v: %w", url, err, domain.ErrConnection)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("head %s: %v: %w", url, err, domain.ErrConnection)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("head %s: status %d: %w", url, resp.StatusCode, domain.ErrConnection)
	}
	if resp.ContentLength < 0 {
		return nil, fmt.Errorf("head %s: no content length: %w", url, domain.ErrConnection)
	}

	logger.Debug("remote object opened", "url", url, "size", resp.ContentLength)

	return &ReaderAt{
		client: client,
		url:    url,
		size:   resp.ContentLength,
		logger: logger,
	}, nil
}

// Size returns the object length in bytes.
func (r *ReaderAt) Size() int64 {
	return r.size
}

// ReadAt fetches p-sized byte range at off with a single Range GET.
func (r *ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= r.size {
		return 0, io.EOF
	}

	end := off + int64(len(p)) - 1
	if end >= r.size {
		end = r.size - 1
	}

	req, err := http.NewRequest(http.MethodGet, r.url, nil)
	if err != nil {
		return 0, fmt.Errorf("get %s: %v: %w", r.url, err, domain.ErrConnection)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, end))

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get %s: %v: %w", r.url, err, domain.ErrConnection)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		return 0, fmt.Errorf("get %s: expected partial content, got status %d: %w",
			r.url, resp.StatusCode, domain.ErrConnection)
	}

	n, err := io.ReadFull(resp.Body, p[:end-off+1])
	if err != nil {
		return n, fmt.Errorf("get %s: short range read: %v: %w", r.url, err, domain.ErrConnection)
	}
	if int64(n) < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}
