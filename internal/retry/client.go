// Package retry wraps broker liquidation calls with retry logic for the
// session-end force close, where giving up early is worse than waiting.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/stanley_straddle/internal/broker"
	"github.com/eddiefleurent/stanley_straddle/internal/models"
)

// Config controls retry behavior.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Timeout bounds one whole retried operation.
	Timeout time.Duration
}

// DefaultConfig returns the force-close retry settings.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Timeout:        2 * time.Minute,
	}
}

// Client retries leg liquidation against the broker.
type Client struct {
	broker broker.Broker
	logger *logrus.Logger
	config Config
}

// NewClient creates a retry client with default settings.
func NewClient(b broker.Broker, logger *logrus.Logger) *Client {
	return NewClientWithConfig(b, logger, DefaultConfig())
}

// NewClientWithConfig creates a retry client with custom settings.
func NewClientWithConfig(b broker.Broker, logger *logrus.Logger, config Config) *Client {
	return &Client{broker: b, logger: logger, config: config}
}

// CloseLegWithRetry unwinds one leg's short and hedge, retrying transient
// failures with exponential backoff.
func (c *Client) CloseLegWithRetry(ctx context.Context, side models.Side, hedgeStrike, positionStrike float64) error {
	opCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WithFields(logrus.Fields{
				"side":    side,
				"attempt": attempt,
				"backoff": backoff,
			}).Warn("Retrying leg close")

			select {
			case <-opCtx.Done():
				return fmt.Errorf("closing %s leg: %w (last error: %v)", side, opCtx.Err(), lastErr)
			case <-time.After(withJitter(backoff)):
			}

			backoff = time.Duration(float64(backoff) * 1.5)
			if backoff > c.config.MaxBackoff {
				backoff = c.config.MaxBackoff
			}
		}

		var err error
		if side == models.SideCall {
			err = c.broker.CancelCallPosition(opCtx, hedgeStrike, positionStrike)
		} else {
			err = c.broker.CancelPutPosition(opCtx, hedgeStrike, positionStrike)
		}
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransientError(err) {
			return fmt.Errorf("closing %s leg: %w", side, err)
		}
	}

	return fmt.Errorf("closing %s leg after %d retries: %w", side, c.config.MaxRetries, lastErr)
}

// withJitter adds up to 25% random jitter so concurrent retries spread out.
func withJitter(d time.Duration) time.Duration {
	max := big.NewInt(int64(d) / 4)
	if max.Sign() <= 0 {
		return d
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return d
	}
	return d + time.Duration(n.Int64())
}

// isTransientError reports whether the error looks retryable: a gateway 429
// or 5xx, or one of the usual network failure strings.
func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *broker.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == 429 || apiErr.Status >= 500
	}
	msg := strings.ToLower(err.Error())
	patterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"service unavailable",
		"too many requests",
		"eof",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
