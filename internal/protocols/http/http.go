// Package http implements the http:// and https:// protocols: it
// downloads a remote file to a local temporary path so the transfer
// engine can hand it to the connector its extension selects.
package http

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"

	"tinyetl/internal/tetlerr"
)

// Fetch downloads rawURL to a temporary file and returns its local path
// plus a cleanup function the caller must run once done reading it.
func Fetch(ctx context.Context, rawURL string) (localPath string, cleanup func(), err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, tetlerr.Configurationf("invalid URL %q: %v", rawURL, err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", nil, tetlerr.Wrap(tetlerr.Connection, err, "fetching %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, tetlerr.Connectionf("HTTP request failed with status %s: %s", strconv.Itoa(resp.StatusCode), rawURL)
	}

	tmp, err := os.CreateTemp("", "tinyetl-*"+path.Ext(req.URL.Path))
	if err != nil {
		return "", nil, tetlerr.Wrap(tetlerr.Connection, err, "creating temp file for %s", rawURL)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, tetlerr.Wrap(tetlerr.Connection, err, "downloading %s", rawURL)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, tetlerr.Wrap(tetlerr.Connection, err, "closing temp file for %s", rawURL)
	}

	name := tmp.Name()
	return name, func() { os.Remove(name) }, nil
}
