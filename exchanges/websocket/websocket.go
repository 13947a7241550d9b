package websocket

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"tradegate/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrClosed is returned by the Send methods once the connection is closed.
var ErrClosed = errors.New("websocket connection closed")

const writeBufferSize = 64

type Message struct {
	Msg  []byte
	Type int
}

// WsConn is a single websocket session. It never redials, once closed a new WsConn is needed.
type WsConn struct {
	conn *websocket.Conn
	Options

	messageBufferChan chan Message
	stop              chan struct{}
	once              sync.Once
	log               *logrus.Entry
}

func (w *WsConn) Connect(options ...Option) (err error) {
	for _, o := range options {
		o(&w.Options)
	}
	w.messageBufferChan = make(chan Message, writeBufferSize)
	w.stop = make(chan struct{})
	w.log = logger.WithComponent("ws-conn").WithFields(logrus.Fields{"exchange": w.ExchangeName, "url": w.wsUrl})

	if w.conn, err = w.dial(); err != nil {
		return err
	}
	go w.readLoop()
	go w.writeLoop()
	return nil
}

// Close is safe to call more than once and from any goroutine.
func (w *WsConn) Close() {
	w.once.Do(func() {
		if w.stop != nil {
			close(w.stop)
		}
		if w.conn != nil {
			if err := w.conn.Close(); err != nil {
				w.log.WithError(err).Debug("close websocket error")
			}
		}
		if w.closeHandler != nil {
			w.closeHandler(w.wsUrl)
		}
	})
}

func (w *WsConn) SendMessage(msg []byte) error {
	return w.send(Message{Msg: msg, Type: websocket.TextMessage})
}

func (w *WsConn) SendJsonMessage(msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return w.send(Message{Msg: data, Type: websocket.TextMessage})
}

func (w *WsConn) SendPongMessage(msg []byte) error {
	return w.send(Message{Msg: msg, Type: websocket.PongMessage})
}

func (w *WsConn) send(msg Message) error {
	if w.stop == nil {
		return ErrClosed
	}
	select {
	case <-w.stop:
		return ErrClosed
	default:
	}
	select {
	case w.messageBufferChan <- msg:
		return nil
	case <-w.stop:
		return ErrClosed
	}
}

func (w *WsConn) dial() (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 45 * time.Second,
	}
	if w.ProxyUrl != "" {
		proxy, err := url.Parse(w.ProxyUrl)
		if err != nil {
			return nil, fmt.Errorf("parse proxy url %s: %w", w.ProxyUrl, err)
		}
		dialer.Proxy = http.ProxyURL(proxy)
	}

	conn, _, err := dialer.Dial(w.wsUrl, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (w *WsConn) extendReadDeadline() {
	if w.ReadDeadLineTime > 0 {
		_ = w.conn.SetReadDeadline(time.Now().Add(w.ReadDeadLineTime))
	}
}

func (w *WsConn) readLoop() {
	w.log.Debug("start read loop")

	w.conn.SetPingHandler(func(appData string) error {
		w.extendReadDeadline()
		_ = w.SendPongMessage([]byte(appData))
		return nil
	})
	w.conn.SetPongHandler(func(appData string) error {
		w.extendReadDeadline()
		return nil
	})

	for {
		w.extendReadDeadline()
		t, msg, err := w.conn.ReadMessage()
		if err != nil {
			select {
			case <-w.stop:
				w.log.Debug("websocket closed, exit read loop")
			default:
				w.log.WithError(err).Warn("read message error")
				if w.disConnectedHandler != nil {
					w.disConnectedHandler(w.wsUrl, err)
				}
			}
			w.Close()
			return
		}
		if w.messageHandler == nil {
			continue
		}
		switch t {
		case websocket.TextMessage:
			w.messageHandler(w.wsUrl, msg)
		case websocket.BinaryMessage:
			if w.decompressHandler == nil {
				w.messageHandler(w.wsUrl, msg)
				continue
			}
			plain, err := w.decompressHandler(msg)
			if err != nil {
				if w.errorHandler != nil {
					w.errorHandler(w.wsUrl, OpDecompress, err)
				}
				continue
			}
			w.messageHandler(w.wsUrl, plain)
		}
	}
}

func (w *WsConn) writeLoop() {
	w.log.Debug("start write loop")

	var heartbeat <-chan time.Time
	if w.HeartbeatIntervalTime > 0 && w.heartbeatHandler != nil {
		ticker := time.NewTicker(w.HeartbeatIntervalTime)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	for {
		select {
		case <-w.stop:
			w.log.Debug("websocket closed, exit write loop")
			return
		case msg := <-w.messageBufferChan:
			if err := w.conn.WriteMessage(msg.Type, msg.Msg); err != nil {
				if w.errorHandler != nil {
					w.errorHandler(w.wsUrl, OpWrite, err)
				}
			}
		case <-heartbeat:
			// sends go through the buffer this loop drains
			go w.heartbeatHandler(w.wsUrl)
		}
	}
}
