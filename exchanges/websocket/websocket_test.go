package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// echoServer echoes text frames until it reads "bye", then drops the connection.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			t, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(msg) == "bye" {
				return
			}
			if err := conn.WriteMessage(t, msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWsConnEcho(t *testing.T) {
	srv := echoServer(t)
	received := make(chan string, 1)

	conn := &WsConn{}
	err := conn.Connect(
		SetWsUrl(wsURL(srv)),
		SetExchangeName("test"),
		SetMessageHandler(func(url string, message []byte) { received <- string(message) }),
	)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SendJsonMessage(map[string]string{"id": "1"}))
	select {
	case msg := <-received:
		assert.JSONEq(t, `{"id":"1"}`, msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no echo")
	}
}

func TestWsConnRemoteDrop(t *testing.T) {
	srv := echoServer(t)
	dropped := make(chan error, 1)
	var closed int32

	conn := &WsConn{}
	require.NoError(t, conn.Connect(
		SetWsUrl(wsURL(srv)),
		SetDisConnectedHandler(func(url string, err error) { dropped <- err }),
		SetCloseHandler(func(url string) { atomic.AddInt32(&closed, 1) }),
	))
	require.NoError(t, conn.SendMessage([]byte("bye")))

	select {
	case err := <-dropped:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect not reported")
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&closed) == 1 }, time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, conn.SendMessage([]byte("x")), ErrClosed)
}

func TestWsConnLocalCloseIsSilent(t *testing.T) {
	srv := echoServer(t)
	var dropped int32

	conn := &WsConn{}
	require.NoError(t, conn.Connect(
		SetWsUrl(wsURL(srv)),
		SetDisConnectedHandler(func(url string, err error) { atomic.AddInt32(&dropped, 1) }),
	))
	conn.Close()
	conn.Close()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&dropped))
	assert.ErrorIs(t, conn.SendMessage([]byte("x")), ErrClosed)
}

func TestWsConnHeartbeat(t *testing.T) {
	srv := echoServer(t)
	var beats int32

	conn := &WsConn{}
	require.NoError(t, conn.Connect(
		SetWsUrl(wsURL(srv)),
		SetHeartbeatIntervalTime(20*time.Millisecond),
		SetHeartbeatHandler(func(url string) { atomic.AddInt32(&beats, 1) }),
	))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&beats) >= 2 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	time.Sleep(50 * time.Millisecond)
	after := atomic.LoadInt32(&beats)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&beats))
}

func TestWsConnDialFailure(t *testing.T) {
	conn := &WsConn{}
	err := conn.Connect(SetWsUrl("ws://127.0.0.1:1/none"))
	assert.Error(t, err)
	conn.Close()
}
