package resilience

import "time"

// MaxRetryAttempts bounds every provider call to one try plus one immediate retry.
const MaxRetryAttempts = 2

// Config is the provider call policy: immediate retries only, then a per-operation
// breaker that trips on the failure ratio once MinRequests calls have been seen.
type Config struct {
	RetryMaxAttempts int

	BreakerEnabled      bool
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
	BreakerHalfOpenCalls   uint32
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    MaxRetryAttempts,
		BreakerEnabled:      true,
		BreakerMinRequests:  10,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  30 * time.Second,
		BreakerHalfOpenCalls:   2,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	switch {
	case c.RetryMaxAttempts <= 0:
		c.RetryMaxAttempts = def.RetryMaxAttempts
	case c.RetryMaxAttempts > MaxRetryAttempts:
		c.RetryMaxAttempts = MaxRetryAttempts
	}
	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = def.BreakerMinRequests
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if c.BreakerHalfOpenCalls == 0 {
		c.BreakerHalfOpenCalls = def.BreakerHalfOpenCalls
	}
	return c
}
