package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"IndexForge/internal/model"
)

// RESTProvider implements Provider against a generic bars REST API.
type RESTProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTProvider creates a provider with optional proxy support.
func NewRESTProvider(baseURL, apiKey, proxyURL string) *RESTProvider {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &RESTProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (p *RESTProvider) Name() string { return "rest" }

// apiRow is the expected JSON shape of one daily bar.
type apiRow struct {
	Timestamp int64   `json:"timestamp"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (p *RESTProvider) FetchTimeSeries(ctx context.Context, symbols []string, start, end time.Time) (map[string][]model.PricePoint, error) {
	out := make(map[string][]model.PricePoint, len(symbols))
	for _, sym := range symbols {
		rows, err := p.fetchSymbol(ctx, sym, start, end)
		if err != nil {
			return nil, err
		}
		out[sym] = rows
	}
	return out, nil
}

func (p *RESTProvider) fetchSymbol(ctx context.Context, symbol string, start, end time.Time) ([]model.PricePoint, error) {
	endpoint := fmt.Sprintf("%s/api/v1/series?symbol=%s&start=%s&end=%s",
		p.BaseURL, url.QueryEscape(symbol), start.Format("2006-01-02"), end.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, &model.ProviderError{Op: "fetch series", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &model.ProviderError{Op: "fetch series", RateLimited: true,
			Err: fmt.Errorf("status %d for %s", resp.StatusCode, symbol)}
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return nil, &model.ProviderError{Op: "fetch series",
			Err: fmt.Errorf("status %d for %s: %s", resp.StatusCode, symbol, string(body))}
	}

	var rows []apiRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, &model.ProviderError{Op: "decode series", Err: err}
	}

	points := make([]model.PricePoint, 0, len(rows))
	for _, r := range rows {
		if r.Close <= 0 {
			continue // skip null bars (holidays etc.)
		}
		points = append(points, model.PricePoint{
			Symbol: symbol,
			Date:   model.Day(time.Unix(r.Timestamp, 0).UTC()),
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points, nil
}
