package bingx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"tradegate"
	"tradegate/exchanges"
	"tradegate/utils"
)

var restJson = jsoniter.ConfigCompatibleWithStandardLibrary

type BingXRest struct {
	exchanges.BaseExchange

	now func() time.Time
}

func (e *BingXRest) Init(option tradegate.Options) {
	e.Option = option
	if e.Option.RestHost == "" {
		e.Option.RestHost = restHost
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.InitRest()
}

// SignParams builds the canonical query of params plus timestamp and signs it with secret.
// params is not modified.
func SignParams(params url.Values, secret string, timestamp int64) (query, signature string, err error) {
	values := utils.CopyValues(params)
	values.Set("timestamp", strconv.FormatInt(timestamp, 10))
	query = utils.CanonicalQuery(values)
	signature, err = utils.HmacSign(utils.SHA256, query, secret)
	if err != nil {
		return "", "", &tradegate.SignatureInputError{Err: err}
	}
	return query, signature, nil
}

func (e *BingXRest) BuildSignedRequest(params url.Values) (query, signature string, err error) {
	return SignParams(params, e.Option.SecretKey, e.now().UnixNano()/int64(time.Millisecond))
}

// Execute sends one request and returns the body untouched.
func (e *BingXRest) Execute(ctx context.Context, method, endpoint string, params url.Values, requiresAuth bool) (json.RawMessage, error) {
	access := exchanges.Public
	if requiresAuth {
		access = exchanges.Private
	}
	return e.Fetch(ctx, e, access, method, endpoint, params, http.Header{})
}

func (e *BingXRest) GetPrice(ctx context.Context, symbol string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	return e.Execute(ctx, exchanges.GET, pathPrice, params, false)
}

func (e *BingXRest) GetOrderBook(ctx context.Context, symbol string, limit int) (json.RawMessage, error) {
	if limit <= 0 {
		limit = defaultDepthLimit
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(limit))
	return e.Execute(ctx, exchanges.GET, pathDepth, params, false)
}

func (e *BingXRest) GetRecentTrades(ctx context.Context, symbol string, limit int) (json.RawMessage, error) {
	if limit <= 0 {
		limit = defaultTradesLimit
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(limit))
	return e.Execute(ctx, exchanges.GET, pathTrades, params, false)
}

// GetKlines interval: 1m, 3m, 5m, 15m, 30m, 1h, 2h, 4h, 6h, 12h, 1d, 3d, 1w, 1M
func (e *BingXRest) GetKlines(ctx context.Context, symbol, interval string, limit int) (json.RawMessage, error) {
	if interval == "" {
		interval = defaultKlineIv
	}
	if limit <= 0 {
		limit = defaultKlineLimit
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))
	return e.Execute(ctx, exchanges.GET, pathKlines, params, false)
}

func (e *BingXRest) GetAllContracts(ctx context.Context) (json.RawMessage, error) {
	return e.Execute(ctx, exchanges.GET, pathContracts, url.Values{}, false)
}

func (e *BingXRest) GetBalance(ctx context.Context) (json.RawMessage, error) {
	return e.Execute(ctx, exchanges.GET, pathBalance, url.Values{}, true)
}

// GetPositions returns every open position when symbol is empty.
func (e *BingXRest) GetPositions(ctx context.Context, symbol string) (json.RawMessage, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	return e.Execute(ctx, exchanges.GET, pathPositions, params, true)
}

func (e *BingXRest) FetchPositions(ctx context.Context, symbol string) ([]tradegate.Position, error) {
	res, err := e.GetPositions(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var envelope Envelope
	if err := restJson.Unmarshal(res, &envelope); err != nil {
		return nil, tradegate.ExError{Code: tradegate.ErrDataParse, Message: err.Error()}
	}
	var positions []tradegate.Position
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return positions, nil
	}
	if err := restJson.Unmarshal(envelope.Data, &positions); err != nil {
		return nil, tradegate.ExError{Code: tradegate.ErrDataParse, Message: err.Error()}
	}
	return positions, nil
}

func (e *BingXRest) orderParams(order tradegate.Order) url.Values {
	params := url.Values{}
	params.Set("symbol", order.Symbol)
	params.Set("side", string(order.Side))
	params.Set("positionSide", string(order.PositionSide))
	params.Set("type", string(order.Type))
	if !order.Quantity.IsZero() {
		params.Set("quantity", order.Quantity.String())
	}
	if !order.Price.IsZero() {
		params.Set("price", order.Price.String())
	}
	if !order.StopPrice.IsZero() {
		params.Set("stopPrice", order.StopPrice.String())
	}
	if order.ClientOrderID != "" {
		params.Set("clientOrderID", order.ClientOrderID)
	}
	return params
}

func (e *BingXRest) PlaceOrder(ctx context.Context, order tradegate.Order) (json.RawMessage, error) {
	if order.Symbol == "" || order.Side == "" || order.PositionSide == "" || order.Type == "" {
		return nil, tradegate.ExError{Code: tradegate.ErrRequestParams, Message: fmt.Sprintf("incomplete order: %v", order)}
	}
	if order.ClientOrderID == "" && e.Option.UseClientOrderID {
		order.ClientOrderID = utils.GenerateOrderClientId(e.Option.ClientOrderIDPrefix, 32)
	}
	return e.Execute(ctx, exchanges.POST, pathOrder, e.orderParams(order), true)
}

func (e *BingXRest) MarketOrder(ctx context.Context, symbol string, side tradegate.Side, positionSide tradegate.PositionSide, quantity decimal.Decimal) (json.RawMessage, error) {
	return e.PlaceOrder(ctx, tradegate.Order{
		Symbol:       symbol,
		Side:         side,
		PositionSide: positionSide,
		Type:         tradegate.Market,
		Quantity:     quantity,
	})
}

func (e *BingXRest) LimitOrder(ctx context.Context, symbol string, side tradegate.Side, positionSide tradegate.PositionSide, quantity, price decimal.Decimal) (json.RawMessage, error) {
	return e.PlaceOrder(ctx, tradegate.Order{
		Symbol:       symbol,
		Side:         side,
		PositionSide: positionSide,
		Type:         tradegate.Limit,
		Quantity:     quantity,
		Price:        price,
	})
}

func (e *BingXRest) CancelOrder(ctx context.Context, symbol, orderID string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)
	return e.Execute(ctx, exchanges.DELETE, pathOrder, params, true)
}

func (e *BingXRest) CancelAllOrders(ctx context.Context, symbol string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	return e.Execute(ctx, exchanges.DELETE, pathAllOrders, params, true)
}

func (e *BingXRest) GetOrder(ctx context.Context, symbol, orderID string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", orderID)
	return e.Execute(ctx, exchanges.GET, pathOrder, params, true)
}

func (e *BingXRest) GetOpenOrders(ctx context.Context, symbol string) (json.RawMessage, error) {
	params := url.Values{}
	if symbol != "" {
		params.Set("symbol", symbol)
	}
	return e.Execute(ctx, exchanges.GET, pathOpenOrders, params, true)
}

func (e *BingXRest) SetLeverage(ctx context.Context, symbol string, leverage int, side tradegate.PositionSide) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))
	params.Set("side", string(side))
	return e.Execute(ctx, exchanges.POST, pathLeverage, params, true)
}

// ClosePosition reads the current position and flattens it with one market order.
// The read and the order are two calls, the position may change in between.
func (e *BingXRest) ClosePosition(ctx context.Context, symbol string, positionSide tradegate.PositionSide) (result tradegate.ClosePositionResult, err error) {
	positions, err := e.FetchPositions(ctx, symbol)
	if err != nil {
		return
	}
	if len(positions) == 0 {
		result.Message = "No position to close"
		return
	}

	var position *tradegate.Position
	for i := range positions {
		if positions[i].PositionSide == positionSide {
			position = &positions[i]
			break
		}
	}
	if position == nil || position.PositionAmt.IsZero() {
		result.Message = "No position found for the specified side"
		return
	}

	result.Size = position.PositionAmt.Abs()
	result.Order, err = e.MarketOrder(ctx, symbol, positionSide.CloseSide(), positionSide, result.Size)
	if err != nil {
		return
	}
	result.Closed = true
	return
}

func riskLegs(symbol string, side tradegate.Side, positionSide tradegate.PositionSide, quantity, stopLoss, takeProfit decimal.Decimal) []tradegate.LegResult {
	var legs []tradegate.LegResult
	if !stopLoss.IsZero() {
		legs = append(legs, tradegate.LegResult{Kind: tradegate.LegStopLoss, Order: tradegate.Order{
			Symbol:       symbol,
			Side:         side,
			PositionSide: positionSide,
			Type:         tradegate.StopMarket,
			Quantity:     quantity,
			StopPrice:    stopLoss,
		}})
	}
	if !takeProfit.IsZero() {
		legs = append(legs, tradegate.LegResult{Kind: tradegate.LegTakeProfit, Order: tradegate.Order{
			Symbol:       symbol,
			Side:         side,
			PositionSide: positionSide,
			Type:         tradegate.TakeProfitMarket,
			Quantity:     quantity,
			StopPrice:    takeProfit,
		}})
	}
	return legs
}

// placeLegs sends every leg concurrently and waits for all of them. A failed leg does not cancel the others.
func (e *BingXRest) placeLegs(ctx context.Context, legs []tradegate.LegResult) error {
	var g errgroup.Group
	for i := range legs {
		leg := &legs[i]
		g.Go(func() error {
			leg.Response, leg.Err = e.PlaceOrder(ctx, leg.Order)
			return leg.Err
		})
	}
	return g.Wait()
}

// AddStopLossTakeProfit attaches trigger orders to an open position. Zero prices are skipped.
func (e *BingXRest) AddStopLossTakeProfit(ctx context.Context, symbol string, positionSide tradegate.PositionSide, stopLoss, takeProfit decimal.Decimal) ([]tradegate.LegResult, error) {
	legs := riskLegs(symbol, positionSide.CloseSide(), positionSide, decimal.Zero, stopLoss, takeProfit)
	if len(legs) == 0 {
		return nil, nil
	}
	if err := e.placeLegs(ctx, legs); err != nil {
		return legs, &tradegate.CompositeOrderError{Legs: legs}
	}
	return legs, nil
}

// PlaceCompositeOrder places the primary order, then its stop loss and take profit legs sized like the primary.
func (e *BingXRest) PlaceCompositeOrder(ctx context.Context, req tradegate.CompositeOrderRequest) (result tradegate.CompositeOrderResult, err error) {
	result.Primary, err = e.PlaceOrder(ctx, req.Order)
	if err != nil {
		return
	}
	order := req.Order
	result.Legs = riskLegs(order.Symbol, order.Side.Opposite(), order.PositionSide, order.Quantity, req.StopLoss, req.TakeProfit)
	if len(result.Legs) == 0 {
		return
	}
	if err = e.placeLegs(ctx, result.Legs); err != nil {
		err = &tradegate.CompositeOrderError{Primary: result.Primary, Legs: result.Legs}
	}
	return
}

func (e *BingXRest) Sign(access, method, function string, param url.Values, header http.Header) (request exchanges.Request, err error) {
	if header == nil {
		header = http.Header{}
	}
	request.Headers = header
	request.Method = method
	if e.Option.AccessKey != "" {
		request.Headers.Set(apiKeyHeader, e.Option.AccessKey)
	}

	path := function
	if access == exchanges.Private {
		query, signature, err := e.BuildSignedRequest(param)
		if err != nil {
			return request, err
		}
		path = fmt.Sprintf("%s?%s&signature=%s", function, query, signature)
	} else if len(param) > 0 {
		path = path + "?" + param.Encode()
	}
	request.Url = e.Option.RestHost + path
	return request, nil
}

func (e *BingXRest) HandleError(request exchanges.Request, statusCode int, response []byte) error {
	endpoint := request.Url
	if u, err := url.Parse(request.Url); err == nil {
		endpoint = u.Path
	}

	var envelope Envelope
	decodeErr := restJson.Unmarshal(response, &envelope)

	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		gwErr := &tradegate.GatewayError{Method: request.Method, Endpoint: endpoint, StatusCode: statusCode, Body: response}
		if decodeErr == nil {
			gwErr.Code, gwErr.Msg = envelope.Code, envelope.Msg
		}
		return gwErr
	}
	if decodeErr != nil || envelope.Code == 0 {
		return nil
	}
	return &tradegate.GatewayError{
		Method:     request.Method,
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Code:       envelope.Code,
		Msg:        envelope.Msg,
		Body:       response,
	}
}
