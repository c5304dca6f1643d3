package client

import (
	"context"
	"time"
)

// SyncService handles synchronization API calls
type SyncService struct {
	client *Client
}

// Status reports the timestamps, due flags and running syncs of the caller
func (s *SyncService) Status(ctx context.Context) (*SyncStatus, error) {
	var status SyncStatus
	if err := s.client.doRequest(ctx, "GET", "/api/v1/sync/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Ensure starts whatever refresh is due
func (s *SyncService) Ensure(ctx context.Context) (*SyncResponse, error) {
	return s.trigger(ctx, "/api/v1/sync/ensure")
}

// Resources forces a resources refresh
func (s *SyncService) Resources(ctx context.Context) (*SyncResponse, error) {
	return s.trigger(ctx, "/api/v1/sync/resources")
}

// Prices forces a price refresh
func (s *SyncService) Prices(ctx context.Context) (*SyncResponse, error) {
	return s.trigger(ctx, "/api/v1/sync/prices")
}

// SetInterval changes the resources refresh interval of the caller
func (s *SyncService) SetInterval(ctx context.Context, interval time.Duration) error {
	body := map[string]int{"minutes": int(interval / time.Minute)}
	return s.client.doRequest(ctx, "PUT", "/api/v1/sync/interval", body, nil)
}

func (s *SyncService) trigger(ctx context.Context, path string) (*SyncResponse, error) {
	var resp SyncResponse
	if err := s.client.doRequest(ctx, "POST", path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
