package broker

import "context"

// MockBroker is a configurable test double for the Broker interface. Each
// function field overrides one call; nil fields return zero values.
type MockBroker struct {
	ConnectFunc            func(ctx context.Context) error
	IsConnectedFunc        func() bool
	FetchStrikesFunc       func(ctx context.Context, instrument, exchange, secType string) ([]int, error)
	CurrentPriceFunc       func(ctx context.Context, instrument, exchange string) (float64, error)
	GetLatestPremiumFunc   func(ctx context.Context, symbol, expiry string, strike float64, right string) (*Quote, error)
	QualifyContractFunc    func(ctx context.Context, spec ContractSpec) (*ContractRef, error)
	PlaceMarketOrderFunc   func(ctx context.Context, spec ContractSpec, qty int, side OrderSide) (string, float64, error)
	PlaceStopOrderFunc     func(ctx context.Context, spec ContractSpec, side OrderSide, qty int, stopLevel float64) (string, error)
	ModifyStopOrderFunc    func(ctx context.Context, spec ContractSpec, side OrderSide, qty int, stopLevel float64, orderID string) error
	GetOpenOrdersFunc      func(ctx context.Context) ([]OrderView, error)
	CloseAllOpenOrdersFunc func(ctx context.Context) error
	CancelHedgesFunc       func(ctx context.Context) error
	CancelCallPositionFunc func(ctx context.Context, hedgeStrike, positionStrike float64) error
	CancelPutPositionFunc  func(ctx context.Context, hedgeStrike, positionStrike float64) error
}

var _ Broker = (*MockBroker)(nil)

// Connect implements Broker.
func (m *MockBroker) Connect(ctx context.Context) error {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	return nil
}

// IsConnected implements Broker.
func (m *MockBroker) IsConnected() bool {
	if m.IsConnectedFunc != nil {
		return m.IsConnectedFunc()
	}
	return true
}

// FetchStrikes implements Broker.
func (m *MockBroker) FetchStrikes(ctx context.Context, instrument, exchange, secType string) ([]int, error) {
	if m.FetchStrikesFunc != nil {
		return m.FetchStrikesFunc(ctx, instrument, exchange, secType)
	}
	return nil, nil
}

// CurrentPrice implements Broker.
func (m *MockBroker) CurrentPrice(ctx context.Context, instrument, exchange string) (float64, error) {
	if m.CurrentPriceFunc != nil {
		return m.CurrentPriceFunc(ctx, instrument, exchange)
	}
	return 0, nil
}

// GetLatestPremium implements Broker.
func (m *MockBroker) GetLatestPremium(ctx context.Context, symbol, expiry string, strike float64, right string) (*Quote, error) {
	if m.GetLatestPremiumFunc != nil {
		return m.GetLatestPremiumFunc(ctx, symbol, expiry, strike, right)
	}
	return &Quote{}, nil
}

// QualifyContract implements Broker.
func (m *MockBroker) QualifyContract(ctx context.Context, spec ContractSpec) (*ContractRef, error) {
	if m.QualifyContractFunc != nil {
		return m.QualifyContractFunc(ctx, spec)
	}
	return &ContractRef{ID: "mock", Symbol: spec.Symbol, Expiry: spec.Expiry, Strike: spec.Strike, Right: spec.Right}, nil
}

// PlaceMarketOrder implements Broker.
func (m *MockBroker) PlaceMarketOrder(ctx context.Context, spec ContractSpec, qty int, side OrderSide) (string, float64, error) {
	if m.PlaceMarketOrderFunc != nil {
		return m.PlaceMarketOrderFunc(ctx, spec, qty, side)
	}
	return "", 0, nil
}

// PlaceStopOrder implements Broker.
func (m *MockBroker) PlaceStopOrder(ctx context.Context, spec ContractSpec, side OrderSide, qty int, stopLevel float64) (string, error) {
	if m.PlaceStopOrderFunc != nil {
		return m.PlaceStopOrderFunc(ctx, spec, side, qty, stopLevel)
	}
	return "", nil
}

// ModifyStopOrder implements Broker.
func (m *MockBroker) ModifyStopOrder(ctx context.Context, spec ContractSpec, side OrderSide, qty int, stopLevel float64, orderID string) error {
	if m.ModifyStopOrderFunc != nil {
		return m.ModifyStopOrderFunc(ctx, spec, side, qty, stopLevel, orderID)
	}
	return nil
}

// GetOpenOrders implements Broker.
func (m *MockBroker) GetOpenOrders(ctx context.Context) ([]OrderView, error) {
	if m.GetOpenOrdersFunc != nil {
		return m.GetOpenOrdersFunc(ctx)
	}
	return nil, nil
}

// CloseAllOpenOrders implements Broker.
func (m *MockBroker) CloseAllOpenOrders(ctx context.Context) error {
	if m.CloseAllOpenOrdersFunc != nil {
		return m.CloseAllOpenOrdersFunc(ctx)
	}
	return nil
}

// CancelHedges implements Broker.
func (m *MockBroker) CancelHedges(ctx context.Context) error {
	if m.CancelHedgesFunc != nil {
		return m.CancelHedgesFunc(ctx)
	}
	return nil
}

// CancelCallPosition implements Broker.
func (m *MockBroker) CancelCallPosition(ctx context.Context, hedgeStrike, positionStrike float64) error {
	if m.CancelCallPositionFunc != nil {
		return m.CancelCallPositionFunc(ctx, hedgeStrike, positionStrike)
	}
	return nil
}

// CancelPutPosition implements Broker.
func (m *MockBroker) CancelPutPosition(ctx context.Context, hedgeStrike, positionStrike float64) error {
	if m.CancelPutPositionFunc != nil {
		return m.CancelPutPositionFunc(ctx, hedgeStrike, positionStrike)
	}
	return nil
}
