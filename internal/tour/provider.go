package tour

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrNoProvider = errors.New("no content provider configured")

// NopProvider is used when no content backend is configured. Every call fails, so every
// tour degrades to a single stop with an empty gallery.
type NopProvider struct{}

func (NopProvider) Itinerary(context.Context, string) (Itinerary, error) {
	return Itinerary{}, ErrNoProvider
}

func (NopProvider) Images(context.Context, string) ([]string, error) {
	return nil, ErrNoProvider
}

func (NopProvider) Videos(context.Context, string) ([]string, error) {
	return nil, ErrNoProvider
}

func (NopProvider) News(context.Context, string) ([]Article, error) {
	return nil, ErrNoProvider
}

func (NopProvider) Speech(context.Context, string) (Speech, error) {
	return Speech{}, ErrNoProvider
}

func (NopProvider) LocalInfo(context.Context, string) (LocalInfo, error) {
	return LocalInfo{}, ErrNoProvider
}

// HTTPProvider talks JSON to a content backend.
type HTTPProvider struct {
	baseURL *url.URL
	client  *http.Client
}

func NewHTTPProvider(baseURL string, timeout time.Duration) (*HTTPProvider, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid provider url: %w", err)
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPProvider{
		baseURL: u,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

func (p *HTTPProvider) Itinerary(ctx context.Context, destination string) (Itinerary, error) {
	var out Itinerary
	err := p.do(ctx, http.MethodGet, "itinerary", url.Values{"destination": {destination}}, nil, &out)
	return out, err
}

func (p *HTTPProvider) Images(ctx context.Context, query string) ([]string, error) {
	var out struct {
		Images []string `json:"images"`
	}
	err := p.do(ctx, http.MethodGet, "images", url.Values{"q": {query}}, nil, &out)
	return out.Images, err
}

func (p *HTTPProvider) Videos(ctx context.Context, query string) ([]string, error) {
	var out struct {
		Videos []string `json:"videos"`
	}
	err := p.do(ctx, http.MethodGet, "videos", url.Values{"q": {query}}, nil, &out)
	return out.Videos, err
}

func (p *HTTPProvider) News(ctx context.Context, query string) ([]Article, error) {
	var out struct {
		Articles []Article `json:"articles"`
	}
	err := p.do(ctx, http.MethodGet, "news", url.Values{"q": {query}}, nil, &out)
	return out.Articles, err
}

func (p *HTTPProvider) Speech(ctx context.Context, text string) (Speech, error) {
	var out Speech
	err := p.do(ctx, http.MethodPost, "speech", nil, map[string]string{"text": text}, &out)
	return out, err
}

func (p *HTTPProvider) LocalInfo(ctx context.Context, destination string) (LocalInfo, error) {
	var out LocalInfo
	err := p.do(ctx, http.MethodGet, "local-info", url.Values{"destination": {destination}}, nil, &out)
	return out, err
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, query url.Values, body, into any) error {
	u := p.baseURL.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("%s %s: %s: %s", method, path, res.Status, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(res.Body).Decode(into)
}
