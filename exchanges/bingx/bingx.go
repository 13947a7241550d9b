package bingx

import "tradegate"

// BingX is the perpetual swap gateway: signed REST calls plus the market stream relay.
type BingX struct {
	BingXRest
	BingXWs
}

func New(options tradegate.Options) *BingX {
	instance := &BingX{}
	instance.BingXRest.Init(options)
	instance.BingXWs.Init(options)
	return instance
}
