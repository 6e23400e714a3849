package imaging

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Download errors.
var (
	ErrInvalidURL = errors.New("url must start with http:// or https://")
	ErrHTTPStatus = errors.New("unexpected http status")
	ErrTooLarge   = errors.New("image too large")
)

// DefaultMaxDownload caps the size of fetched images.
const DefaultMaxDownload = 8 << 20

// Fetched is a downloaded and decoded image.
type Fetched struct {
	Data   []byte
	Format string
	Image  image.Image
}

// Ext returns the file extension matching the decoded format.
func (f Fetched) Ext() string {
	if f.Format == "jpeg" {
		return "jpg"
	}
	return f.Format
}

// Fetcher downloads images over HTTP. Requests share a token bucket so a
// burst of uploads cannot hammer remote hosts.
type Fetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	maxBytes int64
}

// NewFetcher creates a fetcher allowing perSecond requests with the given
// burst. A nil client gets a 15 second timeout.
func NewFetcher(client *http.Client, perSecond float64, burst int) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if burst < 1 {
		burst = 1
	}
	return &Fetcher{
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
		maxBytes: DefaultMaxDownload,
	}
}

// Fetch downloads rawURL and decodes it.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Fetched, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidURL
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrHTTPStatus, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxBytes {
		return nil, ErrTooLarge
	}
	img, format, err := DecodeBytes(data)
	if err != nil {
		return nil, err
	}
	return &Fetched{Data: data, Format: format, Image: img}, nil
}
