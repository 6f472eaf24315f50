// Package file implements the file:// protocol: it resolves a
// "file:///abs/path" or "file://relative/path" URL to a local path so the
// caller can dispatch on its extension exactly as it would a bare path.
package file

import (
	"net/url"
	"strings"

	"tinyetl/internal/tetlerr"
)

// Resolve strips the file:// scheme and returns the underlying local
// path.
func Resolve(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", tetlerr.Configurationf("invalid file:// URL %q: %v", rawURL, err)
	}
	if u.Scheme != "file" {
		return "", tetlerr.Configurationf("not a file:// URL: %q", rawURL)
	}

	path := u.Path
	if u.Host != "" {
		path = u.Host + u.Path
	}
	if path == "" {
		path = strings.TrimPrefix(rawURL, "file://")
	}
	if path == "" {
		return "", tetlerr.Configurationf("file:// URL %q has no path", rawURL)
	}
	return path, nil
}
