package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
)

// UserLister lists the users that own at least one account
type UserLister interface {
	ListUsers(ctx context.Context) ([]int64, error)
}

// EnsureFunc refreshes whatever is stale for one user
type EnsureFunc func(ctx context.Context, userID int64) error

// SyncScheduler periodically runs the staleness check for every user so data stays
// fresh without API traffic
type SyncScheduler struct {
	users  UserLister
	ensure EnsureFunc
	spec   string
	logger *logger.Logger

	mu        sync.Mutex
	scheduler *cron.Cron
	cancel    context.CancelFunc
}

// NewSyncScheduler creates a scheduler firing on spec, a standard cron expression
// or descriptor such as "@every 5m"
func NewSyncScheduler(users UserLister, ensure EnsureFunc, spec string, log *logger.Logger) (*SyncScheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}
	return &SyncScheduler{
		users:  users,
		ensure: ensure,
		spec:   spec,
		logger: log.Component("scheduler"),
	}, nil
}

// Start schedules the sweep and runs a first one immediately
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		return fmt.Errorf("scheduler is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.spec, func() { s.Sweep(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("failed to schedule sync sweep: %w", err)
	}
	c.Start()
	s.scheduler = c
	s.cancel = cancel

	go s.Sweep(ctx)

	s.logger.With("schedule", s.spec).Info("Sync scheduler started")
	return nil
}

// Stop stops scheduling and waits for a running sweep to return
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler == nil {
		return
	}
	s.cancel()
	<-s.scheduler.Stop().Done()
	s.scheduler = nil
	s.logger.Info("Sync scheduler stopped")
}

// Sweep runs the staleness check for every user and returns how many checks
// succeeded
func (s *SyncScheduler) Sweep(ctx context.Context) int {
	start := time.Now()

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		s.logger.ErrorWithErr(err, "Failed to list users for sync")
		return 0
	}

	ok := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			break
		}
		if err := s.ensure(ctx, userID); err != nil {
			s.logger.With("user_id", userID).ErrorWithErr(err, "Failed to check sync state")
			continue
		}
		ok++
	}

	s.logger.WithFields(map[string]interface{}{
		"users":       len(users),
		"checked":     ok,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("Sync sweep finished")
	return ok
}
