package tradegate

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// IRestGateway is the signed REST surface. Every call returns the exchange response unchanged.
type IRestGateway interface {
	//market data
	GetPrice(ctx context.Context, symbol string) (json.RawMessage, error)

	GetOrderBook(ctx context.Context, symbol string, limit int) (json.RawMessage, error)

	GetRecentTrades(ctx context.Context, symbol string, limit int) (json.RawMessage, error)

	GetKlines(ctx context.Context, symbol, interval string, limit int) (json.RawMessage, error)

	GetAllContracts(ctx context.Context) (json.RawMessage, error)

	//account
	GetBalance(ctx context.Context) (json.RawMessage, error)

	GetPositions(ctx context.Context, symbol string) (json.RawMessage, error)

	//trade
	PlaceOrder(ctx context.Context, order Order) (json.RawMessage, error)

	MarketOrder(ctx context.Context, symbol string, side Side, positionSide PositionSide, quantity decimal.Decimal) (json.RawMessage, error)

	LimitOrder(ctx context.Context, symbol string, side Side, positionSide PositionSide, quantity, price decimal.Decimal) (json.RawMessage, error)

	PlaceCompositeOrder(ctx context.Context, req CompositeOrderRequest) (CompositeOrderResult, error)

	CancelOrder(ctx context.Context, symbol, orderID string) (json.RawMessage, error)

	CancelAllOrders(ctx context.Context, symbol string) (json.RawMessage, error)

	GetOrder(ctx context.Context, symbol, orderID string) (json.RawMessage, error)

	GetOpenOrders(ctx context.Context, symbol string) (json.RawMessage, error)

	SetLeverage(ctx context.Context, symbol string, leverage int, side PositionSide) (json.RawMessage, error)

	ClosePosition(ctx context.Context, symbol string, positionSide PositionSide) (ClosePositionResult, error)

	AddStopLossTakeProfit(ctx context.Context, symbol string, positionSide PositionSide, stopLoss, takeProfit decimal.Decimal) ([]LegResult, error)
}

// IStreamRelay keeps one streaming connection alive and fans its events out to observers.
type IStreamRelay interface {
	Connect() error

	Disconnect()

	State() ConnectionState

	Subscribe(symbol string, channel Channel, arg string) (string, error)

	SubscribeTrades(symbol string) (string, error)

	SubscribeDepth(symbol string, level int) (string, error)

	SubscribeTicker(symbol string) (string, error)

	SubscribeKLine(symbol, interval string) (string, error)

	UnSubscribe(dataType string) error

	Subscriptions() []string

	Register(t MessageType, sub MessageChan)

	UnRegister(t MessageType, sub MessageChan)
}

type IFutureGateway interface {
	IRestGateway
	IStreamRelay
}
