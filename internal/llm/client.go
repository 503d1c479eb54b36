package llm

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seenimoa/moodpulse/internal/logger"
	"github.com/seenimoa/moodpulse/internal/prompts"
	"github.com/seenimoa/moodpulse/pkg/models"
)

// Generator produces text for a prompt. *GeminiProvider implements it.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Client analyzes an entity's headlines with retry and backoff.
type Client struct {
	gen         Generator
	policy      RetryPolicy
	temperature float64
	sleep       SleepFunc
	pacer       Pacer
}

// Pacer admits one request at a time. *rate.Limiter implements it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) { c.policy = p }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) ClientOption {
	return func(c *Client) { c.temperature = t }
}

// WithSleep replaces the backoff wait, for tests.
func WithSleep(fn SleepFunc) ClientOption {
	return func(c *Client) { c.sleep = fn }
}

// WithRetryPacer makes every retried request wait on p first. The first
// attempt is left to the caller, which paces entities on the same limiter.
func WithRetryPacer(p Pacer) ClientOption {
	return func(c *Client) { c.pacer = p }
}

// NewClient wraps a generator.
func NewClient(gen Generator, opts ...ClientOption) *Client {
	c := &Client{
		gen:         gen,
		policy:      DefaultRetryPolicy(),
		temperature: 0.2,
		sleep:       Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze returns the model's raw text for entity and headlines. The text is
// not parsed; code fences are left for the caller to strip.
func (c *Client) Analyze(ctx context.Context, entity models.EntityConfig, headlines []string) (string, error) {
	prompt := prompts.Mood(entity, headlines)
	log := logger.Entity(entity.ID)

	hook := func(attempt int, err error, cl Classification, wait time.Duration) {
		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"kind":    cl.Kind.String(),
			"wait":    wait.String(),
		}).Warnf("model call failed, retrying: %v", err)
	}

	start := time.Now()
	attempt := 0
	text, err := Retry(ctx, c.policy, c.sleep, hook, entity.ID, func(ctx context.Context) (string, error) {
		attempt++
		if attempt > 1 && c.pacer != nil {
			if err := c.pacer.Wait(ctx); err != nil {
				return "", err
			}
		}
		return c.gen.Generate(ctx, prompt, c.temperature)
	})
	if err != nil {
		return "", err
	}
	log.WithField("latency", time.Since(start).Round(time.Millisecond).String()).Debug("model call succeeded")
	return strings.TrimSpace(text), nil
}
