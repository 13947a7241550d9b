package bingx

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"tradegate"
	"tradegate/exchanges"
	"tradegate/exchanges/websocket"
	"tradegate/logger"
	"tradegate/utils"
)

var wsJson = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultReconnectInterval = 5 * time.Second
	defaultPingInterval      = 30 * time.Second
)

type BingXWs struct {
	exchanges.BaseExchange

	mu             sync.Mutex
	state          tradegate.ConnectionState
	conn           *websocket.WsConn
	pending        *websocket.WsConn // dialing, not yet promoted to conn
	subs           map[string]SubRequest
	reconnectTimer *time.Timer
	closed         bool

	log *logrus.Entry
}

func (e *BingXWs) Init(option tradegate.Options) {
	e.Option = option
	if e.Option.WsHost == "" {
		e.Option.WsHost = wsHost
	}
	if e.Option.ReconnectInterval <= 0 {
		e.Option.ReconnectInterval = defaultReconnectInterval
	}
	if e.Option.PingInterval <= 0 {
		e.Option.PingInterval = defaultPingInterval
	}
	e.subs = make(map[string]SubRequest)
	e.log = logger.WithComponent("bingx-ws").WithField("url", e.Option.WsHost)
	e.InitStream()
}

// Connect dials the stream. A failed dial is not returned, it is published and retried after
// ReconnectInterval. The only error is a relay that was already shut down.
func (e *BingXWs) Connect() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return tradegate.ExError{Code: tradegate.ErrRelayClosed, Message: "relay disconnected"}
	}
	if e.state != tradegate.Disconnected {
		e.mu.Unlock()
		return nil
	}
	if e.reconnectTimer != nil {
		e.reconnectTimer.Stop()
		e.reconnectTimer = nil
	}
	conn := &websocket.WsConn{}
	e.pending = conn
	e.state = tradegate.Connecting
	e.mu.Unlock()

	e.log.Info("connecting")
	err := conn.Connect(
		websocket.SetWsUrl(e.Option.WsHost),
		websocket.SetExchangeName(string(tradegate.BingX)),
		websocket.SetProxyUrl(e.Option.ProxyUrl),
		websocket.SetReadDeadLineTime(e.Option.ReadTimeout),
		websocket.SetHeartbeatIntervalTime(e.Option.PingInterval),
		websocket.SetHeartbeatHandler(func(url string) { e.heartbeat(conn) }),
		websocket.SetMessageHandler(func(url string, message []byte) { e.messageHandler(conn, message) }),
		websocket.SetErrorHandler(e.errorHandler),
		websocket.SetDisConnectedHandler(func(url string, err error) { e.disConnectedHandler(conn, err) }),
		websocket.SetDecompressHandler(e.decompressHandler),
	)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		if e.pending != conn || e.closed {
			return nil
		}
		e.pending = nil
		e.state = tradegate.Disconnected
		e.log.WithError(err).Warn("connect failed")
		e.DisConnectedHandler(&tradegate.TransportError{Op: "dial", URL: e.Option.WsHost, Err: err}, nil)
		e.scheduleReconnect()
		return nil
	}
	if e.pending != conn || e.closed {
		conn.Close()
		return nil
	}

	e.pending = nil
	e.conn = conn
	e.state = tradegate.Connected
	for _, dataType := range e.sortedSubs() {
		if err := conn.SendJsonMessage(e.subs[dataType]); err != nil {
			e.log.WithError(err).WithField("dataType", dataType).Warn("resubscribe failed")
		}
	}
	e.log.WithField("subscriptions", len(e.subs)).Info("connected")
	e.ConnectedHandler()
	return nil
}

// Disconnect shuts the relay down for good. No further events are published.
func (e *BingXWs) Disconnect() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	if e.reconnectTimer != nil {
		e.reconnectTimer.Stop()
		e.reconnectTimer = nil
	}
	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
	}
	e.pending = nil
	e.subs = make(map[string]SubRequest)
	e.state = tradegate.Disconnected
	e.Dispatcher.Close()
	e.log.Info("disconnected")
}

func (e *BingXWs) State() tradegate.ConnectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *BingXWs) Subscriptions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sortedSubs()
}

func (e *BingXWs) sortedSubs() []string {
	dataTypes := make([]string, 0, len(e.subs))
	for dataType := range e.subs {
		dataTypes = append(dataTypes, dataType)
	}
	sort.Strings(dataTypes)
	return dataTypes
}

func (e *BingXWs) Register(t tradegate.MessageType, sub tradegate.MessageChan) {
	e.Dispatcher.Register(t, sub)
}

func (e *BingXWs) UnRegister(t tradegate.MessageType, sub tradegate.MessageChan) {
	e.Dispatcher.UnRegister(t, sub)
}

func newSubRequest(symbol string, channel tradegate.Channel, arg string) (SubRequest, error) {
	if symbol == "" {
		return SubRequest{}, tradegate.ExError{Code: tradegate.ErrRequestParams, Message: "symbol is required"}
	}
	req := SubRequest{ReqType: "sub"}
	switch channel {
	case tradegate.ChannelTrade:
		req.ID = symbol + "_trades"
		req.DataType = symbol + "@trade"
	case tradegate.ChannelDepth:
		if arg == "" || arg == "0" {
			arg = defaultDepthLevel
		}
		req.ID = symbol + "_depth"
		req.DataType = symbol + "@depth" + arg
	case tradegate.ChannelTicker:
		req.ID = symbol + "_ticker"
		req.DataType = symbol + "@ticker"
	case tradegate.ChannelKLine:
		if arg == "" {
			arg = defaultKlineIv
		}
		req.ID = fmt.Sprintf("%s_kline_%s", symbol, arg)
		req.DataType = fmt.Sprintf("%s@kline_%s", symbol, arg)
	default:
		return SubRequest{}, tradegate.ExError{Code: tradegate.ErrChannelNotExist, Message: fmt.Sprintf("unknown channel %q", channel)}
	}
	return req, nil
}

// Subscribe records the subscription and sends it when connected. It returns the dataType
// used to tag matching events. Subscribing twice is a no-op.
func (e *BingXWs) Subscribe(symbol string, channel tradegate.Channel, arg string) (string, error) {
	req, err := newSubRequest(symbol, channel, arg)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", tradegate.ExError{Code: tradegate.ErrRelayClosed, Message: "relay disconnected"}
	}
	if _, ok := e.subs[req.DataType]; ok {
		return req.DataType, nil
	}
	e.subs[req.DataType] = req
	if e.state == tradegate.Connected && e.conn != nil {
		if err := e.conn.SendJsonMessage(req); err != nil {
			e.log.WithError(err).WithField("dataType", req.DataType).Warn("subscribe send failed, will replay on reconnect")
		}
	}
	e.log.WithField("dataType", req.DataType).Debug("subscribed")
	return req.DataType, nil
}

func (e *BingXWs) SubscribeTrades(symbol string) (string, error) {
	return e.Subscribe(symbol, tradegate.ChannelTrade, "")
}

func (e *BingXWs) SubscribeDepth(symbol string, level int) (string, error) {
	arg := ""
	if level > 0 {
		arg = fmt.Sprint(level)
	}
	return e.Subscribe(symbol, tradegate.ChannelDepth, arg)
}

func (e *BingXWs) SubscribeTicker(symbol string) (string, error) {
	return e.Subscribe(symbol, tradegate.ChannelTicker, "")
}

func (e *BingXWs) SubscribeKLine(symbol, interval string) (string, error) {
	return e.Subscribe(symbol, tradegate.ChannelKLine, interval)
}

// UnSubscribe drops every subscription whose dataType contains dataType, an empty dataType
// matches all of them. It works while disconnected, the removed entries are simply not replayed.
func (e *BingXWs) UnSubscribe(dataType string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var removed []string
	for key, req := range e.subs {
		if strings.Contains(req.DataType, dataType) {
			removed = append(removed, req.DataType)
			delete(e.subs, key)
		}
	}
	if e.state != tradegate.Connected || e.conn == nil {
		return nil
	}

	targets := []string{dataType}
	if dataType == "" {
		sort.Strings(removed)
		targets = removed
	}
	for _, target := range targets {
		req := SubRequest{ID: "unsub", ReqType: "unsub", DataType: target}
		if err := e.conn.SendJsonMessage(req); err != nil {
			e.log.WithError(err).WithField("dataType", target).Warn("unsubscribe send failed")
		}
	}
	return nil
}

// scheduleReconnect must be called with mu held.
func (e *BingXWs) scheduleReconnect() {
	if e.closed {
		return
	}
	if e.reconnectTimer != nil {
		e.reconnectTimer.Stop()
	}
	e.reconnectTimer = time.AfterFunc(e.Option.ReconnectInterval, func() {
		e.log.Info("attempting to reconnect")
		if err := e.Connect(); err != nil {
			e.log.WithError(err).Debug("reconnect skipped")
		}
	})
}

func (e *BingXWs) heartbeat(conn *websocket.WsConn) {
	e.mu.Lock()
	current := e.conn == conn && e.state == tradegate.Connected
	e.mu.Unlock()
	if !current {
		return
	}
	if err := conn.SendJsonMessage(map[string]int64{"ping": utils.NowMillis()}); err != nil {
		e.log.WithError(err).Debug("send ping failed")
	}
}

func (e *BingXWs) errorHandler(url, op string, err error) {
	e.ErrorHandler(&tradegate.TransportError{Op: op, URL: url, Err: err}, nil)
}

func (e *BingXWs) disConnectedHandler(conn *websocket.WsConn, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	switch conn {
	case e.conn:
		e.conn = nil
	case e.pending:
		e.pending = nil
	default:
		return
	}
	e.state = tradegate.Disconnected
	e.log.WithError(err).Warn("stream disconnected")
	e.DisConnectedHandler(&tradegate.TransportError{Op: "read", URL: e.Option.WsHost, Err: err}, nil)
	e.scheduleReconnect()
}

func (e *BingXWs) decompressHandler(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func (e *BingXWs) messageHandler(conn *websocket.WsConn, message []byte) {
	if string(bytes.TrimSpace(message)) == "Ping" {
		if err := conn.SendMessage([]byte("Pong")); err != nil {
			e.log.WithError(err).Debug("send pong failed")
		}
		return
	}

	frame, err := decodeFrame(message)
	if err != nil {
		e.log.WithError(err).Warn("drop frame")
		return
	}
	if frame.reply != nil {
		if err := conn.SendMessage(frame.reply); err != nil {
			e.log.WithError(err).Debug("send pong failed")
		}
	}
	if frame.ack != "" {
		e.log.WithField("id", frame.ack).Debug("subscription confirmed")
	}
	if !frame.publish {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if conn != e.conn && conn != e.pending {
		return
	}
	e.Dispatcher.Publish(frame.msg)
}

type decodedFrame struct {
	msg     tradegate.Message
	reply   []byte // set when the server expects an answer
	ack     string // id of a confirmed request
	publish bool
}

// decodeFrame classifies one inbound text frame.
func decodeFrame(message []byte) (decodedFrame, error) {
	var (
		out   decodedFrame
		frame Frame
	)
	if err := wsJson.Unmarshal(message, &frame); err != nil {
		return out, &tradegate.DecodeError{Frame: message, Err: err}
	}

	if len(frame.Pong) > 0 {
		return out, nil
	}
	if len(frame.Ping) > 0 {
		out.reply = []byte(fmt.Sprintf(`{"pong":%s}`, frame.Ping))
		return out, nil
	}
	if frame.Code != nil && *frame.Code != 0 {
		out.msg = tradegate.ErrorMessage(tradegate.ExError{
			Code:    tradegate.ErrExchangeSystem,
			Message: fmt.Sprintf("stream request %s rejected: code %d %s", frame.ID, *frame.Code, frame.Msg),
			Data:    map[string]interface{}{"id": frame.ID, "code": *frame.Code, "dataType": frame.DataType},
		})
		out.msg.DataType = frame.DataType
		out.publish = true
		return out, nil
	}
	if frame.DataType == "" {
		out.ack = frame.ID
		if out.ack == "" {
			out.ack = "-"
		}
		return out, nil
	}

	out.publish = true
	out.msg.DataType = frame.DataType
	out.msg.Data = frame.Data
	channel := frame.DataType
	if i := strings.IndexByte(channel, '@'); i >= 0 {
		channel = channel[i+1:]
	}
	switch {
	case channel == "trade":
		out.msg.Type = tradegate.MsgTrade
	case channel == "ticker":
		out.msg.Type = tradegate.MsgTicker
	case isDepthChannel(channel):
		out.msg.Type = tradegate.MsgDepth
	case strings.HasPrefix(channel, "kline_"):
		out.msg.Type = tradegate.MsgKLine
	default:
		out.msg.Type = tradegate.MsgMessage
		out.msg.Data = append([]byte(nil), message...)
	}
	return out, nil
}

// isDepthChannel matches depth, depth20 and depth20@500ms.
func isDepthChannel(channel string) bool {
	if !strings.HasPrefix(channel, "depth") {
		return false
	}
	rest := strings.TrimPrefix(channel, "depth")
	if i := strings.IndexByte(rest, '@'); i >= 0 {
		rest = rest[:i]
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
