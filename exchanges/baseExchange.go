package exchanges

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"tradegate"
)

type Request struct {
	Method  string
	Url     string
	Headers http.Header
	Body    string
}

const (
	Public  = "Public"
	Private = "Private"
	GET     = "GET"
	POST    = "POST"
	PUT     = "PUT"
	DELETE  = "DELETE"
)

type FetchCallBack interface {
	Sign(access, method, function string, param url.Values, header http.Header) (Request, error)
	HandleError(request Request, statusCode int, response []byte) error
}

type BaseExchange struct {
	Option     tradegate.Options
	Dispatcher *Dispatcher

	client *resty.Client
}

// InitRest prepares the HTTP client used by Fetch.
func (b *BaseExchange) InitRest() {
	b.client = resty.New()
	if b.Option.ProxyUrl != "" {
		b.client.SetProxy(b.Option.ProxyUrl)
	}
}

// InitStream prepares the dispatcher behind the connection handlers.
func (b *BaseExchange) InitStream() {
	b.Dispatcher = NewDispatcher(b.Option.ObserverQueueSize)
}

// Fetch performs exactly one HTTP call, without retry. The context is the only deadline.
func (b *BaseExchange) Fetch(ctx context.Context, callBack FetchCallBack, access, method, function string, param url.Values, header http.Header) (json.RawMessage, error) {
	if b.client == nil {
		b.InitRest()
	}
	request, err := callBack.Sign(access, method, function, param, header)
	if err != nil {
		return nil, err
	}

	req := b.client.R().SetContext(ctx)
	for k, values := range request.Headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if request.Body != "" {
		req.SetBody(request.Body)
	}

	res, err := req.Execute(request.Method, request.Url)
	if err != nil {
		endpoint := request.Url
		if i := strings.IndexByte(endpoint, '?'); i >= 0 {
			endpoint = endpoint[:i]
		}
		return nil, &tradegate.GatewayError{
			Method:   request.Method,
			Endpoint: function,
			Err:      &tradegate.TransportError{Op: strings.ToLower(request.Method), URL: endpoint, Err: errors.Cause(err)},
		}
	}

	body := res.Body()
	if err := callBack.HandleError(request, res.StatusCode(), body); err != nil {
		return nil, err
	}
	return json.RawMessage(body), nil
}

func (b *BaseExchange) ConnectedHandler() {
	b.Dispatcher.Publish(tradegate.ConnectedMessage)
}

func (b *BaseExchange) DisConnectedHandler(err error, f func()) {
	if f != nil {
		f()
	}
	if err != nil {
		b.Dispatcher.Publish(tradegate.ErrorMessage(err))
	}
	b.Dispatcher.Publish(tradegate.DisConnectedMessage)
}

func (b *BaseExchange) ErrorHandler(err error, f func()) {
	if f != nil {
		f()
	}
	b.Dispatcher.Publish(tradegate.ErrorMessage(err))
}
