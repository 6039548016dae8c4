package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultDownloadTimeout = 30 * time.Minute

// HTTPDownloader fetches episode audio over plain HTTP(S).
type HTTPDownloader struct {
	client *http.Client
}

// NewHTTPDownloader constructs a downloader. A non-positive timeout uses the
// default, sized for multi-hundred-megabyte episodes on slow links.
func NewHTTPDownloader(timeout time.Duration) *HTTPDownloader {
	if timeout <= 0 {
		timeout = defaultDownloadTimeout
	}
	return &HTTPDownloader{client: &http.Client{Timeout: timeout}}
}

// Download streams sourceURL into dest. A partial file is removed on error
// so a retried job never sees a truncated download.
func (d *HTTPDownloader) Download(ctx context.Context, sourceURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("User-Agent", "podscrub/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch audio: http %d from %s", resp.StatusCode, sourceURL)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create download target: %w", err)
	}
	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("write download: %w", err)
	}
	if resp.ContentLength > 0 && written != resp.ContentLength {
		_ = os.Remove(dest)
		return fmt.Errorf("truncated download: got %d of %d bytes", written, resp.ContentLength)
	}
	return nil
}
