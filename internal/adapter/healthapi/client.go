package healthapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/plutonik-a/berlin-wastewater-dashboard/internal/domain"
)

// Client fetches raw measurement samples from the public health-monitoring
// API. The API pages its results; Client walks all pages and supports
// incremental sync via a since cursor.
type Client struct {
	baseURL    string
	httpClient *http.Client
	pageSize   int
	logger     *slog.Logger
}

// NewClient creates a health-monitoring API client.
func NewClient(baseURL string, timeout time.Duration, pageSize int, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		pageSize: pageSize,
		logger:   logger,
	}
}

// page is the API's envelope around one result page.
type page struct {
	Items []domain.RawSample `json:"items"`
	Total int                `json:"total"`
}

// FetchSamples retrieves all samples extracted after since, paging until the
// API is exhausted. A zero since fetches the full dataset.
func (c *Client) FetchSamples(ctx context.Context, since time.Time) ([]domain.RawSample, error) {
	var samples []domain.RawSample
	offset := 0

	for {
		pg, err := c.fetchPage(ctx, since, offset)
		if err != nil {
			return nil, err
		}
		samples = append(samples, pg.Items...)
		offset += len(pg.Items)

		if len(pg.Items) < c.pageSize || (pg.Total > 0 && offset >= pg.Total) {
			break
		}
	}

	c.logger.Debug("fetched samples", "count", len(samples), "pages", (offset+c.pageSize-1)/max(c.pageSize, 1))
	return samples, nil
}

func (c *Client) fetchPage(ctx context.Context, since time.Time, offset int) (page, error) {
	params := url.Values{
		"limit":  {strconv.Itoa(c.pageSize)},
		"offset": {strconv.Itoa(offset)},
	}
	if !since.IsZero() {
		params.Set("since", domain.FormatExtractionDate(since))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return page{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return page{}, fmt.Errorf("fetch samples: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return page{}, fmt.Errorf("health API error: status %d: %s", resp.StatusCode, body)
	}

	var pg page
	if err := json.NewDecoder(resp.Body).Decode(&pg); err != nil {
		return page{}, fmt.Errorf("decode page: %w", err)
	}
	return pg, nil
}
