package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ClosePoint is one daily close as returned by the provider.
type ClosePoint struct {
	Date  string // YYYY-MM-DD (UTC)
	Close decimal.Decimal
}

type Client struct {
	host       string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("coingecko API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host string) *Client {
	if host == "" {
		host = "https://api.coingecko.com/api/v3"
	}
	host = strings.TrimRight(host, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		host:       host,
		httpClient: httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// DailyCloses returns the daily closing prices (USD) for one symbol over
// [start, end]. The provider may return fewer days than requested; when it
// reports multiple points for a day the last one wins.
func (c *Client) DailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]ClosePoint, error) {
	id := CoinID(symbol)
	if id == "" {
		return nil, fmt.Errorf("unsupported symbol: %s", symbol)
	}

	query := url.Values{}
	query.Set("vs_currency", "usd")
	query.Set("from", strconv.FormatInt(start.UTC().Unix(), 10))
	// Pad one day so the end date's close is covered regardless of the
	// provider's sampling time within that day.
	query.Set("to", strconv.FormatInt(end.UTC().Add(24*time.Hour).Unix(), 10))

	body, err := c.doRequest(ctx, "/coins/"+url.PathEscape(id)+"/market_chart/range", query)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Prices [][]json.Number `json:"prices"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode market chart: %w", err)
	}

	startKey := start.UTC().Format("2006-01-02")
	endKey := end.UTC().Format("2006-01-02")

	byDay := map[string]decimal.Decimal{}
	order := make([]string, 0, len(payload.Prices))
	for _, pair := range payload.Prices {
		if len(pair) != 2 {
			continue
		}
		ms, err := pair[0].Int64()
		if err != nil {
			continue
		}
		price, err := decimal.NewFromString(pair[1].String())
		if err != nil {
			continue
		}
		day := time.UnixMilli(ms).UTC().Format("2006-01-02")
		if day < startKey || day > endKey {
			continue
		}
		if _, seen := byDay[day]; !seen {
			order = append(order, day)
		}
		byDay[day] = price
	}

	points := make([]ClosePoint, 0, len(order))
	for _, day := range order {
		points = append(points, ClosePoint{Date: day, Close: byDay[day]})
	}
	return points, nil
}
