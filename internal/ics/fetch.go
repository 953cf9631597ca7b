package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	appLog "chronogrid/internal/log"
)

// Source is one ICS subscription.
type Source struct {
	ID    string
	Name  string
	URL   string
	Color string
}

// FetchResult is a feed body and where it came from.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool
}

// validators are the HTTP cache validators stored next to a cached body.
type validators struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	StoredAt     time.Time `json:"stored_at"`
}

// Fetcher downloads feeds with conditional requests, keeping the last good
// body on disk so an unreachable or failing server still yields data.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher stores its cache under cacheDir, one directory per feed URL.
func NewFetcher(cacheDir string, client *http.Client) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/ics-cache"
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, cacheDir: cacheDir}
}

// Fetch downloads src, sending the cached validators. A 304, a network
// error or a non-2xx status falls back to the cached body when there is one.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, fmt.Errorf("source %s: empty URL", src.ID)
	}
	dir := f.dirFor(src.URL)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return FetchResult{}, fmt.Errorf("create cache dir: %w", err)
	}
	meta, _ := readValidators(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body.ics"))

	fallback := func(reason error) (FetchResult, error) {
		if len(cached) == 0 {
			return FetchResult{}, reason
		}
		appLog.Warn("ics fetch failed, serving cached body", "id", src.ID, "url", redactURL(src.URL), "err", reason)
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("build request: %w", err)
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if len(cached) == 0 {
			return FetchResult{}, errors.New("304 Not Modified without a cached body")
		}
		appLog.Debug("ics feed not modified", "id", src.ID)
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fallback(fmt.Errorf("read body: %w", err))
		}
		err = writeCache(dir, validators{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}, body)
		if err != nil {
			appLog.Error("ics cache write failed", err, "id", src.ID)
		}
		appLog.Info("ics feed fetched", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	default:
		return fallback(fmt.Errorf("unexpected status %s", resp.Status))
	}
}

func (f *Fetcher) dirFor(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func readValidators(dir string) (validators, error) {
	var v validators
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(data, &v)
	return v, err
}

// writeCache writes the body before the validators so the validators never
// describe a body that is not on disk.
func writeCache(dir string, v validators, body []byte) error {
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	v.StoredAt = time.Now().UTC()
	data, err := json.MarshalIndent(&v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host; feed URLs often embed secrets.
func redactURL(u string) string {
	const suffix = "/...(redacted)"
	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "ics:/" + suffix
	}
	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}
	return u[:j] + suffix
}
