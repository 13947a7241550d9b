package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"tradegate"
	"tradegate/logger"
)

var hubJson = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var relayedTypes = []tradegate.MessageType{tradegate.MsgTrade, tradegate.MsgDepth, tradegate.MsgTicker, tradegate.MsgKLine}

type outbound struct {
	Type    string          `json:"type"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type inbound struct {
	Type     string `json:"type"`
	Symbol   string `json:"symbol"`
	Channel  string `json:"channel"`
	Interval string `json:"interval"`
	Level    int    `json:"level"`
	DataType string `json:"dataType"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub relays stream events to browser clients. Each client has its own bounded buffer,
// a client that cannot keep up loses messages instead of slowing the others.
type Hub struct {
	relay    tradegate.IStreamRelay
	upgrader websocket.Upgrader
	buffer   int

	mu      sync.RWMutex
	clients map[*client]struct{}
	dropped uint64

	events tradegate.MessageChan
	done   chan struct{}
	once   sync.Once
	log    *logrus.Entry
}

func NewHub(relay tradegate.IStreamRelay, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 256
	}
	return &Hub{
		relay:    relay,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		buffer:   buffer,
		clients:  make(map[*client]struct{}),
		events:   make(tradegate.MessageChan, buffer),
		done:     make(chan struct{}),
		log:      logger.WithComponent("hub"),
	}
}

func (h *Hub) Run() {
	for _, t := range relayedTypes {
		h.relay.Register(t, h.events)
	}
	for {
		select {
		case <-h.done:
			return
		case msg := <-h.events:
			data, err := hubJson.Marshal(outbound{Type: msg.Type.String(), Data: msg.Data})
			if err != nil {
				h.log.WithError(err).Warn("encode event")
				continue
			}
			h.broadcast(data)
		}
	}
}

func (h *Hub) Close() {
	h.once.Do(func() {
		for _, t := range relayedTypes {
			h.relay.UnRegister(t, h.events)
		}
		close(h.done)
		h.mu.Lock()
		defer h.mu.Unlock()
		for c := range h.clients {
			c.close()
			delete(h.clients, c)
		}
	})
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.dropped++
			if h.dropped%100 == 1 {
				h.log.WithField("dropped", h.dropped).Warn("slow client, dropping message")
			}
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

func (h *Hub) ServeWS(ctx *gin.Context) {
	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan []byte, h.buffer)}
	greeting, _ := hubJson.Marshal(outbound{Type: "connected", Message: "Connected to trading terminal"})
	c.send <- greeting

	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		conn.Close()
		return
	default:
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.WithField("remote", conn.RemoteAddr().String()).Info("client connected")

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
		h.log.Info("client disconnected")
	}()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		var req inbound
		if err := hubJson.Unmarshal(message, &req); err != nil {
			h.log.WithError(err).Debug("ignore client message")
			continue
		}
		h.handle(req)
	}
}

func (h *Hub) handle(req inbound) {
	entry := h.log.WithFields(logrus.Fields{"symbol": req.Symbol, "channel": req.Channel})
	switch req.Type {
	case "subscribe":
		var err error
		switch req.Channel {
		case "trades":
			_, err = h.relay.SubscribeTrades(req.Symbol)
		case "depth":
			_, err = h.relay.SubscribeDepth(req.Symbol, req.Level)
		case "ticker":
			_, err = h.relay.SubscribeTicker(req.Symbol)
		case "kline":
			interval := req.Interval
			if interval == "" {
				interval = "1m"
			}
			_, err = h.relay.SubscribeKLine(req.Symbol, interval)
		default:
			entry.Debug("unknown channel")
			return
		}
		if err != nil {
			entry.WithError(err).Warn("subscribe failed")
		}
	case "unsubscribe":
		if err := h.relay.UnSubscribe(req.DataType); err != nil {
			entry.WithError(err).Warn("unsubscribe failed")
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
