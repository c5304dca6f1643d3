package services

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/google/uuid"

	"github.com/pratik-mahalle/ec2inventory/internal/domain/account"
	"github.com/pratik-mahalle/ec2inventory/internal/domain/syncstate"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
	"github.com/pratik-mahalle/ec2inventory/internal/providers"
)

// AccountService implements account.Service
type AccountService struct {
	repo     account.Repository
	state    syncstate.Repository
	factory  providers.Factory
	retry    providers.RetryPolicy
	endpoint string
	logger   *logger.Logger
}

// NewAccountService creates a new account service. New key pairs are checked with
// a DescribeRegions call through endpoint; a nil factory skips the check.
func NewAccountService(
	repo account.Repository,
	state syncstate.Repository,
	factory providers.Factory,
	retry providers.RetryPolicy,
	endpoint string,
	log *logger.Logger,
) account.Service {
	return &AccountService{
		repo:     repo,
		state:    state,
		factory:  factory,
		retry:    retry,
		endpoint: endpoint,
		logger:   log,
	}
}

// Add registers a key pair for a user
func (s *AccountService) Add(ctx context.Context, userID int64, name, accessKeyID, secretAccessKey string) (*account.Account, error) {
	name = strings.TrimSpace(name)
	accessKeyID = strings.TrimSpace(accessKeyID)
	if name == "" || accessKeyID == "" || secretAccessKey == "" {
		return nil, errors.BadRequest("Name, access key id and secret access key are required")
	}

	a, err := s.repo.FindByKeys(ctx, accessKeyID, secretAccessKey)
	switch {
	case err == nil:
		s.logger.With("account_id", a.ID).Debug("Reusing account with the same key pair")
	case errors.IsNotFound(err):
		if err := s.verify(ctx, accessKeyID, secretAccessKey); err != nil {
			return nil, err
		}
		a = &account.Account{
			ID:              uuid.New().String(),
			Name:            name,
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
			CreatedAt:       time.Now().UTC(),
		}
		if err := s.repo.Create(ctx, a); err != nil {
			s.logger.ErrorWithErr(err, "Failed to create account")
			return nil, err
		}
	default:
		return nil, err
	}

	if err := s.repo.Link(ctx, userID, a.ID); err != nil {
		s.logger.ErrorWithErr(err, "Failed to link account")
		return nil, err
	}
	if err := s.state.ResetResources(ctx, userID); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":    userID,
		"account_id": a.ID,
		"access_key": a.MaskedAccessKey(),
	}).Info("Account added")

	return a, nil
}

// Remove unlinks an account from a user and deletes it once unreferenced
func (s *AccountService) Remove(ctx context.Context, userID int64, accountID string) error {
	if err := s.repo.Unlink(ctx, userID, accountID); err != nil {
		return err
	}

	users, err := s.repo.CountUsers(ctx, accountID)
	if err != nil {
		return err
	}
	if users == 0 {
		if err := s.repo.Delete(ctx, accountID); err != nil {
			s.logger.ErrorWithErr(err, "Failed to delete account")
			return err
		}
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":    userID,
		"account_id": accountID,
		"deleted":    users == 0,
	}).Info("Account removed")

	return nil
}

// List retrieves the accounts of a user
func (s *AccountService) List(ctx context.Context, userID int64) ([]*account.Account, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *AccountService) verify(ctx context.Context, accessKeyID, secretAccessKey string) error {
	if s.factory == nil {
		return nil
	}
	conn, err := s.factory(ctx, "", providers.Credentials{AccessKeyID: accessKeyID, SecretAccessKey: secretAccessKey}, s.endpoint)
	if err != nil {
		return errors.UpstreamTransient("open connection", err)
	}
	_, err = providers.Call(ctx, s.retry, "ec2:DescribeRegions", func(ctx context.Context) (*ec2.DescribeRegionsOutput, error) {
		return conn.EC2.DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	})
	return err
}
