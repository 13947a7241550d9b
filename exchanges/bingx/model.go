package bingx

import (
	"encoding/json"
)

const (
	restHost = "https://open-api.bingx.com"
	wsHost   = "wss://open-api-swap.bingx.com/swap-market"

	apiKeyHeader = "X-BX-APIKEY"

	defaultDepthLimit  = 20
	defaultTradesLimit = 100
	defaultKlineLimit  = 500
	defaultDepthLevel  = "20"
	defaultKlineIv     = "1m"
)

const (
	pathPrice      = "/openApi/swap/v2/quote/price"
	pathDepth      = "/openApi/swap/v2/quote/depth"
	pathTrades     = "/openApi/swap/v2/quote/trades"
	pathContracts  = "/openApi/swap/v2/quote/contracts"
	pathKlines     = "/openApi/swap/v3/quote/klines"
	pathBalance    = "/openApi/swap/v2/user/balance"
	pathPositions  = "/openApi/swap/v2/user/positions"
	pathOrder      = "/openApi/swap/v2/trade/order"
	pathAllOrders  = "/openApi/swap/v2/trade/allOrders"
	pathOpenOrders = "/openApi/swap/v2/trade/openOrders"
	pathLeverage   = "/openApi/swap/v2/trade/leverage"
)

// Envelope wraps every REST response.
type Envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// SubRequest is the stream subscription frame, replayed verbatim after every reconnect.
type SubRequest struct {
	ID       string `json:"id"`
	ReqType  string `json:"reqType"`
	DataType string `json:"dataType"`
}

// Frame covers every inbound stream message shape: acks, heartbeats and tagged data.
type Frame struct {
	ID       string          `json:"id"`
	Code     *int            `json:"code"`
	Msg      string          `json:"msg"`
	DataType string          `json:"dataType"`
	Data     json.RawMessage `json:"data"`
	Ping     json.RawMessage `json:"ping"`
	Pong     json.RawMessage `json:"pong"`
}
