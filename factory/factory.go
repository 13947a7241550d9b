package factory

import (
	"tradegate"
	"tradegate/exchanges/bingx"
)

func NewFutureExchange(t tradegate.ExchangeType, option tradegate.Options) tradegate.IFutureGateway {
	switch t {
	case tradegate.BingX:
		return bingx.New(option)
	}
	return nil
}
