// Package broker defines the gateway interface the engine trades through and
// its implementations.
package broker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	// OrderSideBuy buys to open a hedge or to close a short.
	OrderSideBuy OrderSide = "BUY"
	// OrderSideSell sells to open a short or to close a hedge.
	OrderSideSell OrderSide = "SELL"
)

// ContractSpec describes an option contract to the gateway.
type ContractSpec struct {
	Symbol     string
	Expiry     string // YYYYMMDD
	Strike     float64
	Right      string // "C" or "P"
	Exchange   string
	Currency   string
	Multiplier string
}

// ContractRef is the gateway's handle to a qualified contract.
type ContractRef struct {
	ID     string
	Symbol string
	Expiry string
	Strike float64
	Right  string
}

// Quote is an option premium snapshot.
type Quote struct {
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Mid  float64 `json:"mid"`
	Last float64 `json:"last"`
}

// OrderView is the engine's read of one open order.
type OrderView struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	SecType string `json:"sec_type"`
	Right   string `json:"right"`
}

// SecTypeOption is the security type code for option orders.
const SecTypeOption = "OPT"

// Broker defines the interface for interacting with the brokerage gateway.
type Broker interface {
	// Connection
	Connect(ctx context.Context) error
	IsConnected() bool

	// Market data
	FetchStrikes(ctx context.Context, instrument, exchange, secType string) ([]int, error)
	CurrentPrice(ctx context.Context, instrument, exchange string) (float64, error)
	GetLatestPremium(ctx context.Context, symbol, expiry string, strike float64, right string) (*Quote, error)

	// Contracts and orders
	// QualifyContract returns (nil, nil) when the gateway cannot resolve the
	// spec to a tradeable contract.
	QualifyContract(ctx context.Context, spec ContractSpec) (*ContractRef, error)
	PlaceMarketOrder(ctx context.Context, spec ContractSpec, qty int, side OrderSide) (orderID string, fillPrice float64, err error)
	PlaceStopOrder(ctx context.Context, spec ContractSpec, side OrderSide, qty int, stopLevel float64) (string, error)
	ModifyStopOrder(ctx context.Context, spec ContractSpec, side OrderSide, qty int, stopLevel float64, orderID string) error
	GetOpenOrders(ctx context.Context) ([]OrderView, error)

	// Liquidation
	CloseAllOpenOrders(ctx context.Context) error
	CancelHedges(ctx context.Context) error
	CancelCallPosition(ctx context.Context, hedgeStrike, positionStrike float64) error
	CancelPutPosition(ctx context.Context, hedgeStrike, positionStrike float64) error
}

// CircuitBreakerBroker wraps a Broker with circuit breaker functionality.
type CircuitBreakerBroker struct {
	broker  Broker
	breaker *gobreaker.CircuitBreaker
}

// execCircuitBreaker is a generic helper for circuit breaker wrapper methods.
func execCircuitBreaker[T any](
	breaker *gobreaker.CircuitBreaker,
	broker Broker,
	fn func(Broker) (T, error),
) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(broker) })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// CircuitBreakerSettings configures circuit breaker behavior.
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewCircuitBreakerBroker creates a new CircuitBreakerBroker with sensible defaults.
func NewCircuitBreakerBroker(broker Broker) *CircuitBreakerBroker {
	return NewCircuitBreakerBrokerWithSettings(broker, CircuitBreakerSettings{
		MaxRequests:  3,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	})
}

// NewCircuitBreakerBrokerWithSettings creates a CircuitBreakerBroker with custom settings.
func NewCircuitBreakerBrokerWithSettings(broker Broker, settings CircuitBreakerSettings) *CircuitBreakerBroker {
	gbSettings := gobreaker.Settings{
		Name:        "BrokerCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s state changed from %s to %s", name, from, to)
		},
	}

	return &CircuitBreakerBroker{
		broker:  broker,
		breaker: gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// Ensure CircuitBreakerBroker implements Broker at compile time.
var _ Broker = (*CircuitBreakerBroker)(nil)

// Connect wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) Connect(ctx context.Context) error {
	_, err := execCircuitBreaker(c.breaker, c.broker, func(b Broker) (struct{}, error) {
		return struct{}{}, b.Connect(ctx)
	})
	return err
}

// IsConnected reports connection state without tripping the breaker.
func (c *CircuitBreakerBroker) IsConnected() bool {
	return c.broker.IsConnected()
}

// FetchStrikes wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) FetchStrikes(ctx context.Context, instrument, exchange, secType string) ([]int, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) ([]int, error) {
		return b.FetchStrikes(ctx, instrument, exchange, secType)
	})
}

// CurrentPrice wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) CurrentPrice(ctx context.Context, instrument, exchange string) (float64, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (float64, error) {
		return b.CurrentPrice(ctx, instrument, exchange)
	})
}

// GetLatestPremium wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) GetLatestPremium(ctx context.Context, symbol, expiry string, strike float64, right string) (*Quote, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (*Quote, error) {
		return b.GetLatestPremium(ctx, symbol, expiry, strike, right)
	})
}

// QualifyContract wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) QualifyContract(ctx context.Context, spec ContractSpec) (*ContractRef, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (*ContractRef, error) {
		return b.QualifyContract(ctx, spec)
	})
}

// orderResult carries the two order placement return values through the breaker.
type orderResult struct {
	orderID   string
	fillPrice float64
}

// PlaceMarketOrder wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) PlaceMarketOrder(ctx context.Context, spec ContractSpec, qty int, side OrderSide) (string, float64, error) {
	res, err := execCircuitBreaker(c.breaker, c.broker, func(b Broker) (orderResult, error) {
		id, fill, err := b.PlaceMarketOrder(ctx, spec, qty, side)
		return orderResult{orderID: id, fillPrice: fill}, err
	})
	return res.orderID, res.fillPrice, err
}

// PlaceStopOrder wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) PlaceStopOrder(ctx context.Context, spec ContractSpec, side OrderSide, qty int, stopLevel float64) (string, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) (string, error) {
		return b.PlaceStopOrder(ctx, spec, side, qty, stopLevel)
	})
}

// ModifyStopOrder wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) ModifyStopOrder(ctx context.Context, spec ContractSpec, side OrderSide, qty int, stopLevel float64, orderID string) error {
	_, err := execCircuitBreaker(c.breaker, c.broker, func(b Broker) (struct{}, error) {
		return struct{}{}, b.ModifyStopOrder(ctx, spec, side, qty, stopLevel, orderID)
	})
	return err
}

// GetOpenOrders wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) GetOpenOrders(ctx context.Context) ([]OrderView, error) {
	return execCircuitBreaker(c.breaker, c.broker, func(b Broker) ([]OrderView, error) {
		return b.GetOpenOrders(ctx)
	})
}

// CloseAllOpenOrders wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) CloseAllOpenOrders(ctx context.Context) error {
	_, err := execCircuitBreaker(c.breaker, c.broker, func(b Broker) (struct{}, error) {
		return struct{}{}, b.CloseAllOpenOrders(ctx)
	})
	return err
}

// CancelHedges wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) CancelHedges(ctx context.Context) error {
	_, err := execCircuitBreaker(c.breaker, c.broker, func(b Broker) (struct{}, error) {
		return struct{}{}, b.CancelHedges(ctx)
	})
	return err
}

// CancelCallPosition wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) CancelCallPosition(ctx context.Context, hedgeStrike, positionStrike float64) error {
	_, err := execCircuitBreaker(c.breaker, c.broker, func(b Broker) (struct{}, error) {
		return struct{}{}, b.CancelCallPosition(ctx, hedgeStrike, positionStrike)
	})
	return err
}

// CancelPutPosition wraps the underlying broker call with circuit breaker.
func (c *CircuitBreakerBroker) CancelPutPosition(ctx context.Context, hedgeStrike, positionStrike float64) error {
	_, err := execCircuitBreaker(c.breaker, c.broker, func(b Broker) (struct{}, error) {
		return struct{}{}, b.CancelPutPosition(ctx, hedgeStrike, positionStrike)
	})
	return err
}
