package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

const (
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second
	breakerName            = "marketplace"
)

// WithCircuitBreaker opens the circuit after failures consecutive transport
// or 5xx errors and probes the marketplace again after cooldown. A zero
// failures value disables the breaker.
func WithCircuitBreaker(failures uint32, cooldown time.Duration) Option {
	return func(c *Client) {
		if failures == 0 {
			c.breaker = nil
			return
		}
		c.breaker = newBreaker(failures, cooldown)
	}
}

func newBreaker(failures uint32, cooldown time.Duration) *gobreaker.CircuitBreaker[struct{}] {
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: countsAsHealthy,
	})
}

// countsAsHealthy keeps client-side rejections (4xx) and caller
// cancellations from tripping the breaker.
func countsAsHealthy(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	return pkgerrors.CodeOf(err) != pkgerrors.CodeDependency
}

func (c *Client) guard(call func() error) error {
	if c.breaker == nil {
		return call()
	}
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, call()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marketplace temporarily unavailable")
	}
	return err
}
