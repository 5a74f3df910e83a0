package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Fetcher retrieves the current price of one asset unit per currency code.
type Fetcher interface {
	Fetch(ctx context.Context) (map[string]float64, error)
}

// TickerFetcher reads a blockchain.info style ticker: {"USD": {"last": 1.0, ...}, ...}.
type TickerFetcher struct {
	URL    string
	Client *http.Client
}

// NewTickerFetcher creates a fetcher with optional proxy support.
func NewTickerFetcher(tickerURL, proxyURL string) *TickerFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TickerFetcher{
		URL: tickerURL,
		Client: &http.Client{
			Timeout:   15 * time.Second,
			Transport: transport,
		},
	}
}

type tickerEntry struct {
	Last   float64 `json:"last"`
	Buy    float64 `json:"buy"`
	Sell   float64 `json:"sell"`
	Symbol string  `json:"symbol"`
}

func (f *TickerFetcher) Fetch(ctx context.Context) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ticker fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ticker read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ticker: status %d, body: %s", resp.StatusCode, string(body))
	}

	var ticker map[string]tickerEntry
	if err := json.Unmarshal(body, &ticker); err != nil {
		return nil, fmt.Errorf("ticker decode: %w", err)
	}
	if len(ticker) == 0 {
		return nil, fmt.Errorf("ticker: no rates returned")
	}

	out := make(map[string]float64, len(ticker))
	for code, e := range ticker {
		if e.Last > 0 {
			out[code] = e.Last
		}
	}
	return out, nil
}
