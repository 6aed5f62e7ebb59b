package helpers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"slices"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"

	"bleemsworker/pkg/errors"
	"bleemsworker/services/cache"
)

// HTTP header configurations
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0.3 Safari/605.1.15",
	}

	referers = []string{
		"https://www.google.com/",
		"https://www.bleems.com/",
	}
)

// NewBrowserClient builds a resty client with browser-like headers, a bounded
// timeout and retry with exponential backoff. Each client carries its own
// cookie jar, so a fresh client is an isolated session.
func NewBrowserClient(timeout time.Duration, maxRetries int) *resty.Client {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(maxRetries - 1).
		SetRetryWaitTime(3 * time.Second).
		SetRetryMaxWaitTime(30 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Retry transport failures and 5xx only; rate limits are blocked, not retried
			if err != nil {
				return true
			}
			return r.StatusCode() >= http.StatusInternalServerError
		})

	client.SetHeaders(map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	})

	client.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		req.SetHeader("User-Agent", userAgents[mathrand.Intn(len(userAgents))])
		req.SetHeader("Referer", referers[mathrand.Intn(len(referers))])
		return nil
	})

	return client
}

// Fetcher is the shared fetch layer: one client, one cookie jar, reused for
// listing, shop and product pages. Review sessions build their own client.
type Fetcher struct {
	client    *resty.Client
	cacheSvc  cache.CacheService
	blockTime time.Duration
}

// NewFetcher creates a fetcher. cacheSvc may be nil; rate-limit blocks are
// then kept only for the lifetime of the retry loop.
func NewFetcher(timeout time.Duration, maxRetries int, cacheSvc cache.CacheService, blockTime time.Duration) *Fetcher {
	return &Fetcher{
		client:    NewBrowserClient(timeout, maxRetries),
		cacheSvc:  cacheSvc,
		blockTime: blockTime,
	}
}

// FetchPage issues a GET and returns the body converted to UTF-8.
// blockKey identifies the target for rate-limit bookkeeping; when the key is
// blocked the fetch fails fast without touching the network.
func (f *Fetcher) FetchPage(ctx context.Context, url, blockKey string) ([]byte, error) {
	if f.cacheSvc != nil && blockKey != "" {
		if _, err := f.cacheSvc.Get(blockKey); err == nil {
			return nil, errors.NewRateLimit(blockKey, f.blockTime)
		}
	}

	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, errors.NewNetwork(blockKey, fmt.Sprintf("fetch %s", url), err)
	}

	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode()) {
		if f.cacheSvc != nil && blockKey != "" {
			if setErr := f.cacheSvc.Set(blockKey, []byte(fmt.Sprintf("%d", int(f.blockTime.Seconds()))), f.blockTime); setErr != nil {
				return nil, setErr
			}
		}
		return nil, errors.NewRateLimit(blockKey, f.blockTime)
	}

	if !resp.IsSuccess() {
		return nil, errors.NewNetwork(blockKey, fmt.Sprintf("fetch %s unexpected status code: %d", url, resp.StatusCode()), nil)
	}

	return toUTF8(resp.Body(), resp.Header().Get("Content-Type"))
}

// FetchBinary issues a GET and returns the raw body and its content type,
// for image pass-through uploads.
func (f *Fetcher) FetchBinary(ctx context.Context, url string) ([]byte, string, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, "", errors.NewNetwork("", fmt.Sprintf("fetch %s", url), err)
	}
	if !resp.IsSuccess() {
		return nil, "", errors.NewNetwork("", fmt.Sprintf("fetch %s unexpected status code: %d", url, resp.StatusCode()), nil)
	}

	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return resp.Body(), contentType, nil
}

// toUTF8 converts a response body to UTF-8 based on the Content-Type header
// and body sniffing.
func toUTF8(body []byte, contentType string) ([]byte, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)
	if name == "utf-8" || name == "UTF-8" {
		return body, nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}
	return buf.Bytes(), nil
}
