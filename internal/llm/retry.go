package llm

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrorKind is the retry class of a failed call.
type ErrorKind int

const (
	// KindTransient errors are retried after a short fixed delay.
	KindTransient ErrorKind = iota
	// KindRateLimited errors are retried after the server-suggested delay
	// plus a margin, or after a conservative cooldown.
	KindRateLimited
	// KindFatal errors are never retried.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindFatal:
		return "fatal"
	default:
		return "transient"
	}
}

// Classification is the result of Classify.
type Classification struct {
	Kind     ErrorKind
	Delay    time.Duration // server-suggested delay, valid when HasDelay
	HasDelay bool
}

var (
	retryDelayField = regexp.MustCompile(`"retryDelay"\s*:\s*"(\d+(?:\.\d+)?)s"`)
	retryInPhrase   = regexp.MustCompile(`(?i)retry in (\d+(?:\.\d+)?)\s*s`)
)

// Classify maps an error onto a retry class. Structured *APIError values are
// classified by status code and RPC status; any other error falls back to
// matching rate-limit markers in its text.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Kind: KindTransient}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Classification{Kind: KindFatal}
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr)
	}

	text := err.Error()
	if isRateLimitText(text) {
		c := Classification{Kind: KindRateLimited}
		c.Delay, c.HasDelay = delayFromText(text)
		return c
	}
	return Classification{Kind: KindTransient}
}

func classifyAPIError(e *APIError) Classification {
	if e.StatusCode == 429 || e.Status == "RESOURCE_EXHAUSTED" || isQuotaText(e.Message) {
		c := Classification{Kind: KindRateLimited}
		if e.RetryDelay > 0 {
			c.Delay, c.HasDelay = e.RetryDelay, true
		} else {
			c.Delay, c.HasDelay = delayFromText(e.Message + " " + e.Body)
		}
		return c
	}
	switch e.StatusCode {
	case 400, 401, 403, 404:
		return Classification{Kind: KindFatal}
	}
	return Classification{Kind: KindTransient}
}

func isRateLimitText(s string) bool {
	return strings.Contains(s, "429") || strings.Contains(s, "RESOURCE_EXHAUSTED") || isQuotaText(s)
}

func isQuotaText(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "quota") || strings.Contains(lower, "rate limit")
}

// delayFromText finds a "retryDelay": "37s" field or a "retry in 37s" phrase.
func delayFromText(s string) (time.Duration, bool) {
	for _, re := range []*regexp.Regexp{retryDelayField, retryInPhrase} {
		m := re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		secs, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return time.Duration(secs * float64(time.Second)), true
	}
	return 0, false
}

// RetryPolicy decides how long to wait between attempts.
type RetryPolicy struct {
	MaxAttempts       int           // total attempts, including the first
	RetryDelay        time.Duration // wait after a transient error
	RateLimitMargin   time.Duration // added to a server-suggested delay
	RateLimitCooldown time.Duration // wait when no delay was suggested
}

// DefaultRetryPolicy returns 3 attempts, 5s transient delay, +5s margin and
// a 70s rate-limit cooldown.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		RetryDelay:        5 * time.Second,
		RateLimitMargin:   5 * time.Second,
		RateLimitCooldown: 70 * time.Second,
	}
}

// Backoff returns the wait before the next attempt and whether to retry at all.
func (p RetryPolicy) Backoff(c Classification) (time.Duration, bool) {
	switch c.Kind {
	case KindFatal:
		return 0, false
	case KindRateLimited:
		if c.HasDelay {
			return c.Delay + p.RateLimitMargin, true
		}
		return p.RateLimitCooldown, true
	default:
		return p.RetryDelay, true
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryHook observes a failed attempt before the backoff wait.
type RetryHook func(attempt int, err error, c Classification, wait time.Duration)

// Retry runs fn up to p.MaxAttempts times. The returned error is always an
// *AnalysisError carrying the last failure.
func Retry(ctx context.Context, p RetryPolicy, sleep SleepFunc, hook RetryHook, entityID string, fn func(ctx context.Context) (string, error)) (string, error) {
	if sleep == nil {
		sleep = Sleep
	}
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		lastErr error
		last    Classification
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		last = Classify(err)

		wait, retry := p.Backoff(last)
		if !retry || attempt == attempts {
			return "", &AnalysisError{EntityID: entityID, Kind: last.Kind, Attempts: attempt, Err: err}
		}
		if hook != nil {
			hook(attempt, err, last, wait)
		}
		if serr := sleep(ctx, wait); serr != nil {
			return "", &AnalysisError{EntityID: entityID, Kind: KindFatal, Attempts: attempt, Err: errors.Join(lastErr, serr)}
		}
	}
	return "", &AnalysisError{EntityID: entityID, Kind: last.Kind, Attempts: attempts, Err: lastErr}
}
