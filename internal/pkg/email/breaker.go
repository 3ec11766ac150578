package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrTransportUnavailable is returned while the breaker is open.
var ErrTransportUnavailable = errors.New("email transport unavailable")

// BreakerConfig configures BreakerTransport.
type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32        // failures in a row that open the breaker
	OpenTimeout         time.Duration // time spent open before a half-open probe
	MaxHalfOpen         uint32        // probes allowed while half-open
}

// DefaultBreakerConfig returns the settings used by the API.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:                name,
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
		MaxHalfOpen:         1,
	}
}

// BreakerTransport guards a Transport with a circuit breaker so a dead
// provider fails fast instead of holding the notification worker.
type BreakerTransport struct {
	next    Transport
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerTransport wraps next.
func NewBreakerTransport(next Transport, cfg BreakerConfig) *BreakerTransport {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.MaxHalfOpen == 0 {
		cfg.MaxHalfOpen = 1
	}

	settings := gobreaker.Settings{
		Name:        "email-" + cfg.Name,
		MaxRequests: cfg.MaxHalfOpen,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Email transport circuit breaker state changed")
		},
	}

	return &BreakerTransport{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Deliver forwards env unless the breaker is open.
func (b *BreakerTransport) Deliver(ctx context.Context, env *Envelope) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.next.Deliver(ctx, env)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	return err
}

// State reports the breaker state: "closed", "half-open" or "open".
func (b *BreakerTransport) State() string {
	return b.breaker.State().String()
}
