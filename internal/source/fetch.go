package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "evcal/internal/log"
)

const maxBodyBytes = 16 << 20

// Payload is the body of one remote document, either fresh or replayed
// from the disk cache.
type Payload struct {
	URL       string
	Body      []byte
	FromCache bool
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher performs conditional GETs (ETag / Last-Modified) and keeps the
// last good body on disk, one directory per URL. When the remote is
// unreachable or answers with an error the cached body is served instead.
type Fetcher struct {
	client   *http.Client
	cacheDir string
	now      func() time.Time
}

// NewFetcher returns a Fetcher caching under cacheDir. A nil client gets a
// 15s timeout client.
func NewFetcher(cacheDir string, client *http.Client) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/cache"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, cacheDir: cacheDir, now: time.Now}
}

// Get fetches rawURL. accept is sent as the Accept header when non-empty.
func (f *Fetcher) Get(ctx context.Context, rawURL, accept string) (Payload, error) {
	if rawURL == "" {
		return Payload{}, errors.New("empty url")
	}

	dir := f.cacheDirFor(rawURL)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Payload{}, err
	}
	meta, _ := loadMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Payload{}, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if len(cached) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Debug("fetch start", "url", redactURL(rawURL))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cached) > 0 {
			appLog.Error("fetch failed, serving cached body", err, "url", redactURL(rawURL))
			return Payload{URL: rawURL, Body: cached, FromCache: true}, nil
		}
		return Payload{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return Payload{}, err
		}
		next := cacheMeta{
			URL:          rawURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    f.now().UTC(),
		}
		if err := saveCache(dir, next, body); err != nil {
			appLog.Error("fetch cache save failed", err, "url", redactURL(rawURL))
		}
		appLog.Debug("fetch ok", "url", redactURL(rawURL), "bytes", len(body))
		return Payload{URL: rawURL, Body: body}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return Payload{}, errors.New("304 Not Modified without a cached body")
		}
		appLog.Debug("fetch not modified", "url", redactURL(rawURL))
		return Payload{URL: rawURL, Body: cached, FromCache: true}, nil

	default:
		statusErr := fmt.Errorf("unexpected status %s", resp.Status)
		if len(cached) > 0 {
			appLog.Error("fetch failed, serving cached body", statusErr, "url", redactURL(rawURL))
			return Payload{URL: rawURL, Body: cached, FromCache: true}, nil
		}
		return Payload{}, statusErr
	}
}

func (f *Fetcher) cacheDirFor(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheMeta{}, err
	}
	return meta, nil
}

// saveCache writes the body before the metadata so meta never points at a
// missing body.
func saveCache(dir string, meta cacheMeta, body []byte) error {
	if err := os.WriteFile(filepath.Join(dir, "body"), body, 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host; feed URLs often embed tokens in
// the path or query.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
