// Package probation wraps the probation-side upstream API: case allocations
// by community offender manager (COM) or team.
package probation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cvl/pkg/domain"
	"cvl/pkg/platform/sentinel"
)

// ManagedCase links a probation case to the person's prison identity and the
// staff member responsible for it.
type ManagedCase struct {
	CRN       domain.CRN     `json:"crn"`
	NomisID   domain.NomisID `json:"nomisId"`
	StaffCode string         `json:"staffCode"`
	TeamCode  string         `json:"teamCode"`
}

// Client reads probation case allocations.
type Client interface {
	CasesByStaff(ctx context.Context, staffCode string) ([]ManagedCase, error)
	CasesByTeams(ctx context.Context, teamCodes []string) ([]ManagedCase, error)
}

// HTTPClient calls the probation search service.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

func (c *HTTPClient) CasesByStaff(ctx context.Context, staffCode string) ([]ManagedCase, error) {
	return c.get(ctx, fmt.Sprintf("%s/staff/%s/managed-cases", c.baseURL, staffCode))
}

func (c *HTTPClient) CasesByTeams(ctx context.Context, teamCodes []string) ([]ManagedCase, error) {
	var all []ManagedCase
	for _, team := range teamCodes {
		cases, err := c.get(ctx, fmt.Sprintf("%s/team/%s/managed-cases", c.baseURL, team))
		if err != nil {
			return nil, err
		}
		all = append(all, cases...)
	}
	return all, nil
}

func (c *HTTPClient) get(ctx context.Context, url string) ([]ManagedCase, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build probation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: probation search: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: probation search returned %d", sentinel.ErrUnavailable, resp.StatusCode)
	}

	var cases []ManagedCase
	if err := json.NewDecoder(resp.Body).Decode(&cases); err != nil {
		return nil, fmt.Errorf("%w: decode probation response: %v", sentinel.ErrUnavailable, err)
	}
	return cases, nil
}

// FakeClient serves deterministic allocations for tests and local runs.
type FakeClient struct {
	ByStaff map[string][]ManagedCase
	ByTeam  map[string][]ManagedCase
	Err     error
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		ByStaff: make(map[string][]ManagedCase),
		ByTeam:  make(map[string][]ManagedCase),
	}
}

func (f *FakeClient) CasesByStaff(_ context.Context, staffCode string) ([]ManagedCase, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.ByStaff[staffCode], nil
}

func (f *FakeClient) CasesByTeams(_ context.Context, teamCodes []string) ([]ManagedCase, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	var all []ManagedCase
	for _, team := range teamCodes {
		all = append(all, f.ByTeam[team]...)
	}
	return all, nil
}
