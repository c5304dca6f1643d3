package worker

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/pratik-mahalle/ec2inventory/internal/pkg/logger"
)

type staticUsers struct {
	ids []int64
	err error
}

func (s staticUsers) ListUsers(ctx context.Context) ([]int64, error) {
	return s.ids, s.err
}

type recorder struct {
	mu    sync.Mutex
	users []int64
	fail  map[int64]bool
}

func (r *recorder) ensure(ctx context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
	if r.fail[userID] {
		return stderrors.New("sync failed")
	}
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func TestNewSyncScheduler_InvalidSpec(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{spec: "@every 5m"},
		{spec: "*/10 * * * *"},
		{spec: "every five minutes", wantErr: true},
		{spec: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			_, err := NewSyncScheduler(staticUsers{}, (&recorder{}).ensure, tt.spec, logger.Nop())
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSyncScheduler() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSyncScheduler_Sweep(t *testing.T) {
	tests := []struct {
		name      string
		users     staticUsers
		fail      map[int64]bool
		wantOK    int
		wantCalls int
	}{
		{name: "every user checked", users: staticUsers{ids: []int64{1, 2, 3}}, wantOK: 3, wantCalls: 3},
		{name: "failure does not stop the sweep", users: staticUsers{ids: []int64{1, 2, 3}}, fail: map[int64]bool{2: true}, wantOK: 2, wantCalls: 3},
		{name: "listing failure", users: staticUsers{err: stderrors.New("db down")}, wantOK: 0, wantCalls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{fail: tt.fail}
			s, err := NewSyncScheduler(tt.users, r.ensure, "@every 1h", logger.Nop())
			if err != nil {
				t.Fatalf("NewSyncScheduler() error = %v", err)
			}
			if got := s.Sweep(context.Background()); got != tt.wantOK {
				t.Errorf("Sweep() = %d, want %d", got, tt.wantOK)
			}
			if r.count() != tt.wantCalls {
				t.Errorf("ensure calls = %d, want %d", r.count(), tt.wantCalls)
			}
		})
	}
}

func TestSyncScheduler_StartStop(t *testing.T) {
	r := &recorder{}
	s, err := NewSyncScheduler(staticUsers{ids: []int64{7}}, r.ensure, "@every 1h", logger.Nop())
	if err != nil {
		t.Fatalf("NewSyncScheduler() error = %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start() error = nil, want already running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for r.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if r.count() == 0 {
		t.Error("Start() did not run the initial sweep")
	}

	s.Stop()
	s.Stop()
}
