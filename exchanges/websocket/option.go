package websocket

import "time"

// It will be invoked after the connection dropped without Close being called
type DisConnectedHandler func(url string, err error)

// It will be invoked after valid message received
type MessageHandler func(url string, message []byte)

// It will be invoked once, when the connection is closed for any reason
type CloseHandler func(url string)

const (
	OpWrite      = "write"
	OpDecompress = "decompress"
)

// It will be invoked when error happened, op is OpWrite or OpDecompress
type ErrorHandler func(url, op string, err error)

// It will be invoked for binary frames when data compression is set
type DecompressHandler func([]byte) ([]byte, error)

// It will be invoked When heartbeat is needed
type HeartbeatHandler func(url string)

type Options struct {
	ExchangeName          string
	wsUrl                 string
	ProxyUrl              string
	HeartbeatIntervalTime time.Duration
	ReadDeadLineTime      time.Duration // 0 disables the read deadline

	disConnectedHandler DisConnectedHandler
	messageHandler      MessageHandler
	errorHandler        ErrorHandler
	closeHandler        CloseHandler
	decompressHandler   DecompressHandler
	heartbeatHandler    HeartbeatHandler
}

type Option func(*Options)

func SetWsUrl(url string) Option {
	return func(o *Options) {
		o.wsUrl = url
	}
}

func SetExchangeName(name string) Option {
	return func(o *Options) {
		o.ExchangeName = name
	}
}

func SetProxyUrl(url string) Option {
	return func(o *Options) {
		o.ProxyUrl = url
	}
}

func SetHeartbeatIntervalTime(t time.Duration) Option {
	return func(o *Options) {
		o.HeartbeatIntervalTime = t
	}
}

func SetReadDeadLineTime(t time.Duration) Option {
	return func(o *Options) {
		o.ReadDeadLineTime = t
	}
}

func SetDisConnectedHandler(handler DisConnectedHandler) Option {
	return func(o *Options) {
		o.disConnectedHandler = handler
	}
}

func SetMessageHandler(handler MessageHandler) Option {
	return func(o *Options) {
		o.messageHandler = handler
	}
}

func SetErrorHandler(handler ErrorHandler) Option {
	return func(o *Options) {
		o.errorHandler = handler
	}
}

func SetCloseHandler(handler CloseHandler) Option {
	return func(o *Options) {
		o.closeHandler = handler
	}
}

func SetDecompressHandler(handler DecompressHandler) Option {
	return func(o *Options) {
		o.decompressHandler = handler
	}
}

func SetHeartbeatHandler(handler HeartbeatHandler) Option {
	return func(o *Options) {
		o.heartbeatHandler = handler
	}
}
