package tradegate

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ExchangeType string

const (
	BingX ExchangeType = "bingx"
)

// Options
type Options struct {
	ExchangeName string // exchange name
	SecretKey    string // SecretKey of this exchange account, only used to sign requests
	AccessKey    string // AccessKey of this exchange account, sent as a header on every call

	WsHost   string // websocket api host, the default value will be used if not set
	RestHost string // rest api host, the default value will be used if not set

	ReconnectInterval   time.Duration // flat delay between reconnect attempts
	PingInterval        time.Duration // keepalive interval while connected
	ReadTimeout         time.Duration // 0 disables the read deadline, a silent connection is never force closed
	ObserverQueueSize   int           // per observer buffered messages before the oldest is dropped
	ProxyUrl            string        // proxy, http://host:port
	ClientOrderIDPrefix string        // Prefix of client order id, len better(0~10)
	UseClientOrderID    bool          // attach a generated client order id to every order
}

type (
	Side         string
	PositionSide string
	OrderType    string
	Channel      string
)

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the side that reduces a position opened by s.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

const (
	Long  PositionSide = "LONG"
	Short PositionSide = "SHORT"
)

// CloseSide is the order side that reduces a position on p.
func (p PositionSide) CloseSide() Side {
	if p == Long {
		return Sell
	}
	return Buy
}

const (
	Market           OrderType = "MARKET"
	Limit            OrderType = "LIMIT"
	StopMarket       OrderType = "STOP_MARKET"
	TakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
)

const (
	ChannelTrade  Channel = "trade"
	ChannelDepth  Channel = "depth"
	ChannelTicker Channel = "ticker"
	ChannelKLine  Channel = "kline"
)

// Order is sent once and never mutated, the exchange owns its state afterwards.
// Zero decimals are left out of the request.
type Order struct {
	Symbol        string
	Side          Side
	PositionSide  PositionSide
	Type          OrderType
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	StopPrice     decimal.Decimal
	ClientOrderID string
}

func (o Order) String() string {
	return fmt.Sprintf("%s %s %s/%s qty:%s price:%s stop:%s", o.Type, o.Symbol, o.Side, o.PositionSide,
		o.Quantity, o.Price, o.StopPrice)
}

// CompositeOrderRequest is a primary order plus optional risk trigger prices, a zero price means absent.
type CompositeOrderRequest struct {
	Order      Order
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
}

type Position struct {
	Symbol           string          `json:"symbol"`
	PositionID       string          `json:"positionId"`
	PositionSide     PositionSide    `json:"positionSide"`
	PositionAmt      decimal.Decimal `json:"positionAmt"`
	AvailableAmt     decimal.Decimal `json:"availableAmt"`
	AvgPrice         decimal.Decimal `json:"avgPrice"`
	UnrealizedProfit decimal.Decimal `json:"unrealizedProfit"`
	Leverage         int             `json:"leverage"`
	Isolated         bool            `json:"isolated"`
}

type ClosePositionResult struct {
	Closed  bool            `json:"closed"`
	Message string          `json:"message,omitempty"`
	Order   json.RawMessage `json:"order,omitempty"`
	Size    decimal.Decimal `json:"size"`
}

type LegKind string

const (
	LegStopLoss   LegKind = "stopLoss"
	LegTakeProfit LegKind = "takeProfit"
)

// LegResult is the outcome of one risk child order.
type LegResult struct {
	Kind     LegKind
	Order    Order
	Response json.RawMessage
	Err      error
}

type CompositeOrderResult struct {
	Primary json.RawMessage
	Legs    []LegResult
}

type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Trade is one element of a <symbol>@trade payload.
type Trade struct {
	Symbol       string          `json:"s"`
	Price        decimal.Decimal `json:"p"`
	Quantity     decimal.Decimal `json:"q"`
	Time         int64           `json:"T"`
	IsBuyerMaker bool            `json:"m"`
}

// DepthItem : each level data of the order book, [price, amount]
type DepthItem [2]decimal.Decimal

type Depth struct {
	Bids []DepthItem `json:"bids"`
	Asks []DepthItem `json:"asks"`
}

type Ticker struct {
	Event       string          `json:"e"`
	EventTime   int64           `json:"E"`
	Symbol      string          `json:"s"`
	PriceChange decimal.Decimal `json:"p"`
	ChangePct   decimal.Decimal `json:"P"`
	Open        decimal.Decimal `json:"o"`
	High        decimal.Decimal `json:"h"`
	Low         decimal.Decimal `json:"l"`
	Last        decimal.Decimal `json:"c"`
	Volume      decimal.Decimal `json:"v"`
	QuoteVolume decimal.Decimal `json:"q"`
}

type KLine struct {
	Open   decimal.Decimal `json:"o"`
	Close  decimal.Decimal `json:"c"`
	High   decimal.Decimal `json:"h"`
	Low    decimal.Decimal `json:"l"`
	Volume decimal.Decimal `json:"v"`
	Time   int64           `json:"T"`
}
