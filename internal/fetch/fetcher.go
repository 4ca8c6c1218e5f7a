// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTimeout bounds a single payload transfer.
const DefaultTimeout = 5 * time.Minute

type (
	// FetcherOption configures a Fetcher.
	FetcherOption func(*Fetcher)

	// Fetcher downloads step payloads over HTTP(S).
	Fetcher struct {
		client    *http.Client
		userAgent string
	}

	// Payload describes a completed download.
	Payload struct {
		// Path is the final location of the downloaded file.
		Path string
		// SHA256 is the hex digest of the file contents.
		SHA256 string
		// Size is the file size in bytes.
		Size int64
	}
)

// WithHTTPClient sets a custom HTTP client (used by tests against httptest servers).
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithUserAgent sets the User-Agent header sent with each request.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// NewFetcher creates a Fetcher with the default client and timeout.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: DefaultTimeout},
		userAgent: "envforge",
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// DownloadFile downloads url into destPath. The transfer goes to a temporary
// file in the destination directory and is renamed into place only after the
// body is fully written and synced, so destPath either holds the complete
// payload or does not exist.
//
// When sha256pin is non-empty the file digest must match it exactly; a
// mismatch removes the temporary file and returns an IntegrityError.
func (f *Fetcher) DownloadFile(ctx context.Context, url, destPath, sha256pin string) (*Payload, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: url, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &NetworkError{URL: url, StatusCode: resp.StatusCode}
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".envforge-download-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	// Remove the temp file on any failure path; harmless after a successful rename.
	defer os.Remove(tmpPath)

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmpFile, hasher), resp.Body)
	if err != nil {
		tmpFile.Close()
		return nil, &NetworkError{URL: url, Cause: err}
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("failed to sync downloaded file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to close downloaded file: %w", err)
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	if sha256pin != "" && !strings.EqualFold(digest, sha256pin) {
		return nil, &IntegrityError{
			URL:    url,
			Reason: "sha256 mismatch",
			Want:   strings.ToLower(sha256pin),
			Got:    digest,
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return nil, fmt.Errorf("failed to move downloaded file into place: %w", err)
	}

	return &Payload{Path: destPath, SHA256: digest, Size: size}, nil
}

// DownloadArchive downloads url like DownloadFile and additionally verifies
// that the payload looks like the archive format its filename claims. A
// payload whose leading bytes do not match the expected magic is removed and
// reported as an IntegrityError.
func (f *Fetcher) DownloadArchive(ctx context.Context, url, destPath, sha256pin string) (*Payload, error) {
	payload, err := f.DownloadFile(ctx, url, destPath, sha256pin)
	if err != nil {
		return nil, err
	}

	if err := verifyArchiveMagic(url, payload.Path); err != nil {
		os.Remove(payload.Path)
		return nil, err
	}

	return payload, nil
}

// verifyArchiveMagic checks the leading bytes of the file against the magic
// for the format implied by the URL's filename. Unknown extensions pass
// through unchecked.
func verifyArchiveMagic(url, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open downloaded archive: %w", err)
	}
	defer file.Close()

	header := make([]byte, 6)
	n, err := io.ReadFull(file, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("failed to read archive header: %w", err)
	}
	header = header[:n]

	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		if !bytes.HasPrefix(header, []byte{0x1f, 0x8b}) {
			return &IntegrityError{URL: url, Reason: "payload is not a gzip archive"}
		}
	case strings.HasSuffix(lower, ".tar.bz2"):
		if !bytes.HasPrefix(header, []byte("BZh")) {
			return &IntegrityError{URL: url, Reason: "payload is not a bzip2 archive"}
		}
	case strings.HasSuffix(lower, ".tar.xz"):
		if !bytes.HasPrefix(header, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}) {
			return &IntegrityError{URL: url, Reason: "payload is not an xz archive"}
		}
	case strings.HasSuffix(lower, ".zip"):
		if !bytes.HasPrefix(header, []byte("PK")) {
			return &IntegrityError{URL: url, Reason: "payload is not a zip archive"}
		}
	}

	return nil
}
