package collector

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultHTTPTimeout = 30 * time.Second
	maxBodyBytes       = 8 << 20
)

// HTTPOptions is shared by the HTTP based sources.
type HTTPOptions struct {
	Client    *http.Client
	Timeout   time.Duration
	UserAgent string
}

type fetcher struct {
	client    *http.Client
	userAgent string
}

func newFetcher(opts HTTPOptions) fetcher {
	hc := opts.Client
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return fetcher{client: hc, userAgent: ua}
}

type response struct {
	status int
	body   []byte
}

// get performs a GET and reads at most maxBodyBytes of the body.
func (f fetcher) get(ctx context.Context, url string, headers map[string]string) (response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Language", "nl-NL,nl;q=0.9,en;q=0.8")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("get %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return response{status: resp.StatusCode}, fmt.Errorf("read %s: %w", req.URL.Host, err)
	}
	return response{status: resp.StatusCode, body: body}, nil
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
