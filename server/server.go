package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tradegate"
	"tradegate/logger"
)

type Config struct {
	ClientBuffer int
	CORSOrigins  []string
}

// Server exposes the gateway over HTTP and relays the market stream to browsers.
type Server struct {
	gateway tradegate.IFutureGateway
	hub     *Hub
	cfg     Config
}

func New(gateway tradegate.IFutureGateway, cfg Config) *Server {
	s := &Server{
		gateway: gateway,
		hub:     NewHub(gateway, cfg.ClientBuffer),
		cfg:     cfg,
	}
	go s.hub.Run()
	return s
}

func (s *Server) Close() {
	s.hub.Close()
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog(), s.cors())

	r.GET("/ws", s.hub.ServeWS)

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)

	market := api.Group("/market")
	market.GET("/price/:symbol", s.handlePrice)
	market.GET("/depth/:symbol", s.handleDepth)
	market.GET("/klines/:symbol", s.handleKlines)
	market.GET("/trades/:symbol", s.handleTrades)
	market.GET("/contracts", s.handleContracts)

	account := api.Group("/account")
	account.GET("/balance", s.handleBalance)
	account.GET("/positions", s.handlePositions)

	trade := api.Group("/trade")
	trade.POST("/market", s.handleMarketOrder)
	trade.POST("/limit", s.handleLimitOrder)
	trade.POST("/order-with-risk", s.handleOrderWithRisk)
	trade.DELETE("/order", s.handleCancelOrder)
	trade.DELETE("/all-orders/:symbol", s.handleCancelAll)
	trade.GET("/orders", s.handleOpenOrders)
	trade.POST("/close-position", s.handleClosePosition)
	trade.POST("/leverage", s.handleLeverage)

	return r
}

func (s *Server) accessLog() gin.HandlerFunc {
	log := logger.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logger.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("request")
	}
}

func (s *Server) cors() gin.HandlerFunc {
	origins := s.cfg.CORSOrigins
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		for _, allowed := range origins {
			if allowed == "*" || allowed == origin {
				c.Header("Access-Control-Allow-Origin", allowed)
				c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Content-Type")
				break
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func raw(c *gin.Context, data json.RawMessage) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var exErr tradegate.ExError
	if errors.As(err, &exErr) && exErr.Code == tradegate.ErrRequestParams {
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, key string) int {
	n, _ := strconv.Atoi(c.Query(key))
	return n
}

// idString accepts an order id sent as a JSON string or number without losing precision.
type idString string

func (s *idString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	*s = idString(strings.Trim(string(b), `"`))
	return nil
}

type orderRequest struct {
	Symbol       string                 `json:"symbol" binding:"required"`
	Side         tradegate.Side         `json:"side" binding:"required"`
	PositionSide tradegate.PositionSide `json:"positionSide" binding:"required"`
	Quantity     decimal.Decimal        `json:"quantity"`
	Price        decimal.Decimal        `json:"price"`
	OrderType    tradegate.OrderType    `json:"orderType"`
	StopLoss     decimal.Decimal        `json:"stopLoss"`
	TakeProfit   decimal.Decimal        `json:"takeProfit"`
}

type cancelRequest struct {
	Symbol  string   `json:"symbol" binding:"required"`
	OrderID idString `json:"orderId" binding:"required"`
}

type closeRequest struct {
	Symbol       string                 `json:"symbol" binding:"required"`
	PositionSide tradegate.PositionSide `json:"positionSide" binding:"required"`
}

type leverageRequest struct {
	Symbol   string                 `json:"symbol" binding:"required"`
	Leverage int                    `json:"leverage" binding:"required"`
	Side     tradegate.PositionSide `json:"side" binding:"required"`
}

type legView struct {
	Kind      tradegate.LegKind   `json:"kind"`
	Type      tradegate.OrderType `json:"type"`
	StopPrice decimal.Decimal     `json:"stopPrice"`
	Response  json.RawMessage     `json:"response,omitempty"`
	Error     string              `json:"error,omitempty"`
}

func legViews(legs []tradegate.LegResult) []legView {
	views := make([]legView, 0, len(legs))
	for _, leg := range legs {
		v := legView{Kind: leg.Kind, Type: leg.Order.Type, StopPrice: leg.Order.StopPrice, Response: leg.Response}
		if leg.Err != nil {
			v.Error = leg.Err.Error()
		}
		views = append(views, v)
	}
	return views
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"stream":    s.gateway.State().String(),
	})
}

func (s *Server) handlePrice(c *gin.Context) {
	data, err := s.gateway.GetPrice(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		fail(c, err)
		return
	}
	raw(c, data)
}

func (s *Server) handleDepth(c *gin.Context) {
	data, err := s.gateway.GetOrderBook(c.Request.Context(), c.Param("symbol"), queryInt(c, "limit"))
	if err != nil {
		fail(c, err)
		return
	}
	raw(c, data)
}

func (s *Server) handleKlines(c *gin.Context) {
	data, err := s.gateway.GetKlines(c.Request.Context(), c.Param("symbol"), c.DefaultQuery("interval", "1m"), queryInt(c, "limit"))
	if err != nil {
		fail(c, err)
		return
	}
	raw(c, data)
}

func (s *Server) handleTrades(c *gin.Context) {
	data, err := s.gateway.GetRecentTrades(c.Request.Context(), c.Param("symbol"), queryInt(c, "limit"))
	if err != nil {
		fail(c, err)
		return
	}
	raw(c, data)
}

func (s *Server) handleContracts(c *gin.Context) {
	data, err := s.gateway.GetAllContracts(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	raw(c, data)
}

func (s *Server) handleBalance(c *gin.Context) {
	data, err := s.gateway.GetBalance(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	raw(c, data)
}

func (s *Server) handlePositions(c *gin.Context) {
	data, err := s.gateway.GetPositions(c.Request.Context(), c.Query("symbol"))
	if err != nil {
		fail(c, err)
		return
	}
	raw(c, data)
}

func (s *Server) handleMarketOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	data, err := s.gateway.MarketOrder(c.Request.Context(), req.Symbol, req.Side, req.PositionSide, req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	raw(c, data)
}

func (s *Server) handleLimitOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	data, err := s.gateway.LimitOrder(c.Request.Context(), req.Symbol, req.Side, req.PositionSide, req.Quantity, req.Price)
	if err != nil {
		fail(c, err)
		return
	}
	raw(c, data)
}

func (s *Server) handleOrderWithRisk(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	order := tradegate.Order{
		Symbol:       req.Symbol,
		Side:         req.Side,
		PositionSide: req.PositionSide,
		Type:         tradegate.Limit,
		Quantity:     req.Quantity,
		Price:        req.Price,
	}
	if req.OrderType == tradegate.Market {
		order.Type = tradegate.Market
		order.Price = decimal.Zero
	}

	result, err := s.gateway.PlaceCompositeOrder(c.Request.Context(), tradegate.CompositeOrderRequest{
		Order:      order,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	})
	body := gin.H{
		"mainOrder":      result.Primary,
		"riskManagement": gin.H{"stopLoss": req.StopLoss, "takeProfit": req.TakeProfit, "legs": legViews(result.Legs)},
	}
	if err != nil {
		body["error"] = err.Error()
		c.JSON(http.StatusInternalServerError, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	data, err := s.gateway.CancelOrder(c.Request.Context(), req.Symbol, string(req.OrderID))
	if err != nil {
		fail(c, err)
		return
	}
	raw(c, data)
}

func (s *Server) handleCancelAll(c *gin.Context) {
	data, err := s.gateway.CancelAllOrders(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		fail(c, err)
		return
	}
	raw(c, data)
}

func (s *Server) handleOpenOrders(c *gin.Context) {
	data, err := s.gateway.GetOpenOrders(c.Request.Context(), c.Query("symbol"))
	if err != nil {
		fail(c, err)
		return
	}
	raw(c, data)
}

func (s *Server) handleClosePosition(c *gin.Context) {
	var req closeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result, err := s.gateway.ClosePosition(c.Request.Context(), req.Symbol, req.PositionSide)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleLeverage(c *gin.Context) {
	var req leverageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	data, err := s.gateway.SetLeverage(c.Request.Context(), req.Symbol, req.Leverage, req.Side)
	if err != nil {
		fail(c, err)
		return
	}
	raw(c, data)
}
