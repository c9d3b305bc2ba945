// Package prison wraps the two prison-side upstream APIs: prisoner search
// (records by identifier list) and the prison API's HDC curfew endpoint.
package prison

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cvl/pkg/domain"
	"cvl/pkg/platform/sentinel"
)

// SearchClient looks prisoner records up by identifier list.
type SearchClient interface {
	FindByNomisIDs(ctx context.Context, ids []domain.NomisID) ([]Prisoner, error)
}

// CurfewClient reads HDC curfew approval state.
type CurfewClient interface {
	CurfewStatuses(ctx context.Context, bookingIDs []domain.BookingID) ([]CurfewStatus, error)
}

// HTTPSearchClient calls the prisoner-search service.
type HTTPSearchClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSearchClient(baseURL string, timeout time.Duration) *HTTPSearchClient {
	return &HTTPSearchClient{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

func (c *HTTPSearchClient) FindByNomisIDs(ctx context.Context, ids []domain.NomisID) ([]Prisoner, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	payload := struct {
		PrisonerNumbers []domain.NomisID `json:"prisonerNumbers"`
	}{PrisonerNumbers: ids}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal prisoner search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/prisoner-search/prisoner-numbers", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build prisoner search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: prisoner search: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: prisoner search returned %d", sentinel.ErrUnavailable, resp.StatusCode)
	}

	var prisoners []Prisoner
	if err := json.NewDecoder(resp.Body).Decode(&prisoners); err != nil {
		return nil, fmt.Errorf("%w: decode prisoner search response: %v", sentinel.ErrUnavailable, err)
	}
	return prisoners, nil
}

// HTTPCurfewClient calls the prison API's HDC endpoint.
type HTTPCurfewClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPCurfewClient(baseURL string, timeout time.Duration) *HTTPCurfewClient {
	return &HTTPCurfewClient{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

func (c *HTTPCurfewClient) CurfewStatuses(ctx context.Context, bookingIDs []domain.BookingID) ([]CurfewStatus, error) {
	if len(bookingIDs) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(bookingIDs)
	if err != nil {
		return nil, fmt.Errorf("marshal curfew status request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/offender-sentences/home-detention-curfews/latest", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build curfew status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: prison api: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: prison api returned %d", sentinel.ErrUnavailable, resp.StatusCode)
	}

	var statuses []CurfewStatus
	if err := json.NewDecoder(resp.Body).Decode(&statuses); err != nil {
		return nil, fmt.Errorf("%w: decode curfew status response: %v", sentinel.ErrUnavailable, err)
	}
	return statuses, nil
}

// FakeClient serves deterministic records for tests and local runs.
type FakeClient struct {
	Prisoners map[domain.NomisID]Prisoner
	Curfews   map[domain.BookingID]CurfewStatus
	Err       error
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		Prisoners: make(map[domain.NomisID]Prisoner),
		Curfews:   make(map[domain.BookingID]CurfewStatus),
	}
}

func (f *FakeClient) FindByNomisIDs(_ context.Context, ids []domain.NomisID) ([]Prisoner, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	var out []Prisoner
	for _, id := range ids {
		if p, ok := f.Prisoners[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *FakeClient) CurfewStatuses(_ context.Context, bookingIDs []domain.BookingID) ([]CurfewStatus, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	var out []CurfewStatus
	for _, id := range bookingIDs {
		if s, ok := f.Curfews[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}
