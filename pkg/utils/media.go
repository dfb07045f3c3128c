package utils

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// GetMediaReader returns a ReadCloser for a local path or an HTTP URL,
// plus a best-effort filename. The caller closes the reader.
func GetMediaReader(pathOrURL string) (io.ReadCloser, string, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		resp, err := http.Get(pathOrURL)
		if err != nil {
			return nil, "", err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, "", fmt.Errorf("failed to download media: %s", resp.Status)
		}

		filename := filepath.Base(pathOrURL)
		if idx := strings.Index(filename, "?"); idx != -1 {
			filename = filename[:idx]
		}
		if filename == "" || filename == "." || filename == "/" {
			filename = "downloaded_media"
		}
		return resp.Body, filename, nil
	}

	f, err := os.Open(pathOrURL)
	if err != nil {
		return nil, "", err
	}
	return f, filepath.Base(pathOrURL), nil
}

// DownloadMedia fetches a URL into dir and returns the local path.
// name overrides the filename derived from the URL when non-empty.
func DownloadMedia(url, dir, name string) (string, error) {
	reader, filename, err := GetMediaReader(url)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	if name != "" {
		filename = name
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, filename)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		return "", err
	}
	return path, nil
}
