package client

import (
	"context"
	"net/url"
)

// AccountService handles account-related API calls
type AccountService struct {
	client *Client
}

// List retrieves the accounts linked to the caller
func (s *AccountService) List(ctx context.Context) ([]Account, error) {
	var accounts []Account
	if err := s.client.doRequest(ctx, "GET", "/api/v1/accounts", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// Add registers a key pair, or links the existing account holding it
func (s *AccountService) Add(ctx context.Context, req AddAccountRequest) (*Account, error) {
	var account Account
	if err := s.client.doRequest(ctx, "POST", "/api/v1/accounts", req, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// Remove unlinks an account from the caller
func (s *AccountService) Remove(ctx context.Context, id string) error {
	return s.client.doRequest(ctx, "DELETE", "/api/v1/accounts/"+url.PathEscape(id), nil, nil)
}
