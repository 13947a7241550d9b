package tradegate

import (
	"encoding/json"
	"fmt"
	"strings"
)

type ExError struct {
	Code    int                    // error code
	Message string                 // error message
	Data    map[string]interface{} // business data
}

func (e ExError) Error() string {
	return fmt.Sprintf("code: %v message: %v", e.Code, e.Message)
}

const (
	NotImplement = 10000 + iota
	UnHandleError

	//exchange api business error
	ErrExchangeSystem = 20000 + iota
	ErrDataParse
	ErrRequestParams
	ErrChannelNotExist
	ErrRelayClosed
)

// SignatureInputError should not happen with well formed inputs, the HMAC helper only fails on an
// unsupported hash.
type SignatureInputError struct {
	Err error
}

func (e *SignatureInputError) Error() string {
	return fmt.Sprintf("sign request: %v", e.Err)
}

func (e *SignatureInputError) Unwrap() error { return e.Err }

// TransportError means the connection could not be established or was severed.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// GatewayError is returned by every failed REST call. StatusCode is 0 when no response arrived,
// Err then holds the *TransportError.
type GatewayError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Code       int    // exchange envelope code
	Msg        string // exchange envelope msg
	Body       []byte
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 && e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Endpoint, e.Err)
	}
	if e.Msg != "" || e.Code != 0 {
		return fmt.Sprintf("%s %s: status %d code %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Code, e.Msg)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Endpoint, e.StatusCode, string(e.Body))
}

func (e *GatewayError) Unwrap() error { return e.Err }

// DecodeError is raised for an inbound frame that is not valid JSON. The relay logs and drops it.
type DecodeError struct {
	Frame []byte
	Err   error
}

func (e *DecodeError) Error() string {
	frame := string(e.Frame)
	if len(frame) > 128 {
		frame = frame[:128] + "..."
	}
	return fmt.Sprintf("decode frame %q: %v", frame, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// CompositeOrderError reports a group of orders where at least one risk leg failed.
// Legs that succeeded stay on the exchange, the caller has to reconcile.
type CompositeOrderError struct {
	Primary json.RawMessage // acknowledgement of the primary order, nil when only risk legs were sent
	Legs    []LegResult
}

func (e *CompositeOrderError) Error() string {
	var failed []string
	for _, leg := range e.Legs {
		if leg.Err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", leg.Kind, leg.Err))
		}
	}
	return fmt.Sprintf("composite order partially failed (%d/%d legs): %s",
		len(failed), len(e.Legs), strings.Join(failed, "; "))
}

// Failed returns the legs that were rejected.
func (e *CompositeOrderError) Failed() []LegResult {
	var legs []LegResult
	for _, leg := range e.Legs {
		if leg.Err != nil {
			legs = append(legs, leg)
		}
	}
	return legs
}
