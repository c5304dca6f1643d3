package providers

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/aws/smithy-go"

	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
)

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "timeout", err: context.DeadlineExceeded, want: true},
		{name: "throttling", err: &smithy.GenericAPIError{Code: "RequestLimitExceeded"}, want: true},
		{name: "server fault", err: &smithy.GenericAPIError{Code: "Whatever", Fault: smithy.FaultServer}, want: true},
		{name: "auth failure", err: &smithy.GenericAPIError{Code: "AuthFailure", Fault: smithy.FaultClient}, want: false},
		{name: "invalid parameter", err: &smithy.GenericAPIError{Code: "InvalidParameterValue", Fault: smithy.FaultClient}, want: false},
		{name: "transport", err: stderrors.New("connection reset by peer"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCall(t *testing.T) {
	policy := RetryPolicy{MaxTries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
	throttled := &smithy.GenericAPIError{Code: "Throttling"}

	tests := []struct {
		name      string
		failures  int
		failWith  error
		wantCalls int
		wantCode  string
	}{
		{name: "first attempt succeeds", failures: 0, wantCalls: 1},
		{name: "recovers after throttling", failures: 2, failWith: throttled, wantCalls: 3},
		{name: "gives up after max tries", failures: 5, failWith: throttled, wantCalls: 3, wantCode: errors.ErrCodeUpstreamTransient},
		{name: "permanent error is not retried", failures: 5, failWith: &smithy.GenericAPIError{Code: "InvalidParameterValue"}, wantCalls: 1, wantCode: errors.ErrCodeUpstreamTransient},
		{name: "auth error", failures: 5, failWith: &smithy.GenericAPIError{Code: "AuthFailure"}, wantCalls: 1, wantCode: errors.ErrCodeProviderAuth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			got, err := Call(context.Background(), policy, "test", func(ctx context.Context) (int, error) {
				calls++
				if calls <= tt.failures {
					return 0, tt.failWith
				}
				return 42, nil
			})

			if calls != tt.wantCalls {
				t.Errorf("Call() made %d calls, want %d", calls, tt.wantCalls)
			}
			if tt.wantCode == "" {
				if err != nil || got != 42 {
					t.Errorf("Call() = (%d, %v), want (42, nil)", got, err)
				}
				return
			}
			if !errors.HasCode(err, tt.wantCode) {
				t.Errorf("Call() error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestCall_PerAttemptTimeout(t *testing.T) {
	policy := RetryPolicy{CallTimeout: 5 * time.Millisecond, MaxTries: 2, InitialInterval: time.Millisecond}

	calls := 0
	_, err := Call(context.Background(), policy, "slow", func(ctx context.Context) (struct{}, error) {
		calls++
		<-ctx.Done()
		return struct{}{}, ctx.Err()
	})

	if !errors.IsUpstreamTransient(err) {
		t.Errorf("Call() error = %v, want upstream transient", err)
	}
	if calls != 2 {
		t.Errorf("Call() made %d calls, want 2", calls)
	}
}
