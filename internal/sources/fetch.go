package sources

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const userAgent = "newsflow/1.0 (+https://github.com/newsflow/newsflow)"

// maxBodySize bounds how much of a response we read (8 MB).
const maxBodySize = 8 << 20

var httpClient = &http.Client{Timeout: 30 * time.Second}

// fetchCache is a process-lifetime cache keyed by URL fingerprint, so an
// adapter invoked twice in one run does not refetch the same page.
type fetchCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	body    []byte
	fetched time.Time
}

var pageCache = &fetchCache{
	entries: make(map[string]cacheEntry),
	ttl:     10 * time.Minute,
}

func fingerprint(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:8])
}

func (c *fetchCache) get(url string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[fingerprint(url)]
	if !ok || time.Since(e.fetched) > c.ttl {
		return nil, false
	}
	return e.body, true
}

func (c *fetchCache) put(url string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint(url)] = cacheEntry{body: body, fetched: time.Now()}
}

// FetchURL performs a GET with the shared client, UA header and body cap.
// Responses are cached by URL fingerprint for the cache TTL.
func FetchURL(ctx context.Context, url string) ([]byte, error) {
	if body, ok := pageCache.get(url); ok {
		return body, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", url, err)
	}

	pageCache.put(url, body)
	return body, nil
}
