package providers

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v5"

	"github.com/pratik-mahalle/ec2inventory/internal/config"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/errors"
	"github.com/pratik-mahalle/ec2inventory/internal/pkg/metrics"
)

// RetryPolicy bounds every provider call in time and in attempts
type RetryPolicy struct {
	CallTimeout     time.Duration
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// RetryPolicyFromConfig builds a policy from the sync settings
func RetryPolicyFromConfig(cfg config.SyncConfig) RetryPolicy {
	return RetryPolicy{
		CallTimeout:     cfg.CallTimeout,
		MaxTries:        uint(cfg.RetryMaxTries),
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
	}
}

var retryableCodes = map[string]bool{
	"Throttling":                true,
	"ThrottlingException":       true,
	"ThrottledException":        true,
	"RequestThrottled":          true,
	"RequestThrottledException": true,
	"RequestLimitExceeded":      true,
	"TooManyRequestsException":  true,
	"EC2ThrottledException":     true,
	"PriorRequestNotComplete":   true,
	"RequestTimeout":            true,
	"RequestTimeoutException":   true,
	"InternalError":             true,
	"InternalFailure":           true,
	"ServiceUnavailable":        true,
	"Unavailable":               true,
}

var authCodes = map[string]bool{
	"AuthFailure":                 true,
	"UnauthorizedOperation":       true,
	"InvalidClientTokenId":        true,
	"SignatureDoesNotMatch":       true,
	"OptInRequired":               true,
	"AccessDenied":                true,
	"AccessDeniedException":       true,
	"UnrecognizedClientException": true,
}

// Retryable reports whether a failed provider call may succeed when repeated.
// Errors that carry no API error code are transport failures and are retried.
func Retryable(err error) bool {
	if err == nil || stderrors.Is(err, context.Canceled) {
		return false
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		if retryableCodes[apiErr.ErrorCode()] {
			return true
		}
		return apiErr.ErrorFault() == smithy.FaultServer
	}
	return true
}

// IsAuthError reports whether the provider rejected the credentials
func IsAuthError(err error) bool {
	var apiErr smithy.APIError
	return stderrors.As(err, &apiErr) && authCodes[apiErr.ErrorCode()]
}

// Call runs fn with a per-attempt timeout, retrying transient failures with
// exponential backoff. The final failure is returned as UpstreamTransient, or as
// a provider authentication error when the credentials were rejected.
func Call[T any](ctx context.Context, p RetryPolicy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	tries := p.MaxTries
	if tries == 0 {
		tries = 1
	}

	attempt := 0
	result, err := backoff.Retry(ctx, func() (T, error) {
		attempt++
		if attempt > 1 {
			metrics.RecordProviderRetry(op)
		}

		callCtx := ctx
		if p.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.CallTimeout)
			defer cancel()
		}

		v, err := fn(callCtx)
		metrics.RecordProviderCall(op, err)
		if err != nil && !Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(tries))

	if err != nil {
		if IsAuthError(err) {
			return result, errors.ProviderAuthError(op, err)
		}
		return result, errors.UpstreamTransient(op, err)
	}
	return result, nil
}
