package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cvl/pkg/platform/sentinel"
)

// Division selects which jurisdiction's holiday list applies.
const Division = "england-and-wales"

// FeedClient fetches the public bank-holiday feed. The feed is slow-changing
// reference data; callers wrap this in a Cache rather than hitting it per call.
type FeedClient struct {
	baseURL string
	client  *http.Client
}

func NewFeedClient(baseURL string, timeout time.Duration) *FeedClient {
	return &FeedClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// feedDocument mirrors the gov.uk bank-holidays JSON shape.
type feedDocument map[string]struct {
	Division string `json:"division"`
	Events   []struct {
		Title string `json:"title"`
		Date  string `json:"date"`
	} `json:"events"`
}

// BankHolidays returns the holiday dates for the configured division.
func (c *FeedClient) BankHolidays(ctx context.Context) ([]time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build bank holiday request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: bank holiday feed: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: bank holiday feed returned %d", sentinel.ErrUnavailable, resp.StatusCode)
	}

	var doc feedDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode bank holiday feed: %v", sentinel.ErrUnavailable, err)
	}

	division, ok := doc[Division]
	if !ok {
		return nil, fmt.Errorf("%w: bank holiday feed missing division %q", sentinel.ErrUnavailable, Division)
	}

	dates := make([]time.Time, 0, len(division.Events))
	for _, event := range division.Events {
		d, err := time.Parse(time.DateOnly, event.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: bank holiday feed date %q: %v", sentinel.ErrUnavailable, event.Date, err)
		}
		dates = append(dates, d)
	}
	return dates, nil
}
