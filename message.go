package tradegate

import (
	"encoding/json"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var msgJson = jsoniter.ConfigCompatibleWithStandardLibrary

type MessageType int

const (
	MsgConnected MessageType = iota
	MsgDisconnected
	MsgError
	MsgTrade
	MsgDepth
	MsgTicker
	MsgKLine
	MsgMessage
)

var messageTypeNames = map[MessageType]string{
	MsgConnected:    "connected",
	MsgDisconnected: "disconnected",
	MsgError:        "error",
	MsgTrade:        "trade",
	MsgDepth:        "depth",
	MsgTicker:       "ticker",
	MsgKLine:        "kline",
	MsgMessage:      "message",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Message is one event published by the relay. Data holds the exchange's "data" field verbatim,
// or the whole frame for MsgMessage.
type Message struct {
	Type     MessageType
	DataType string
	Data     json.RawMessage
	Err      error
}

type MessageChan chan Message

var (
	ConnectedMessage    = Message{Type: MsgConnected}
	DisConnectedMessage = Message{Type: MsgDisconnected}
	ErrorMessage        = func(err error) Message { return Message{Type: MsgError, Err: err} }
)

// Symbol is the part of DataType before the '@'.
func (m Message) Symbol() string {
	if i := strings.IndexByte(m.DataType, '@'); i >= 0 {
		return m.DataType[:i]
	}
	return ""
}

// Trades decodes a trade payload, the exchange sends either one trade or a batch.
func (m Message) Trades() ([]Trade, error) {
	var trades []Trade
	if err := msgJson.Unmarshal(m.Data, &trades); err == nil {
		return trades, nil
	}
	var one Trade
	if err := msgJson.Unmarshal(m.Data, &one); err != nil {
		return nil, &DecodeError{Frame: m.Data, Err: err}
	}
	return []Trade{one}, nil
}

func (m Message) Depth() (Depth, error) {
	var depth Depth
	if err := msgJson.Unmarshal(m.Data, &depth); err != nil {
		return depth, &DecodeError{Frame: m.Data, Err: err}
	}
	return depth, nil
}

func (m Message) Ticker() (Ticker, error) {
	var ticker Ticker
	if err := msgJson.Unmarshal(m.Data, &ticker); err != nil {
		return ticker, &DecodeError{Frame: m.Data, Err: err}
	}
	return ticker, nil
}

func (m Message) KLines() ([]KLine, error) {
	var klines []KLine
	if err := msgJson.Unmarshal(m.Data, &klines); err == nil {
		return klines, nil
	}
	var one KLine
	if err := msgJson.Unmarshal(m.Data, &one); err != nil {
		return nil, &DecodeError{Frame: m.Data, Err: err}
	}
	return []KLine{one}, nil
}
