package exchanges

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate"
)

func recv(t *testing.T, ch tradegate.MessageChan) tradegate.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message")
	}
	return tradegate.Message{}
}

func TestDispatcherFanOutByType(t *testing.T) {
	d := NewDispatcher(0)
	defer d.Close()

	trades1 := make(tradegate.MessageChan, 8)
	trades2 := make(tradegate.MessageChan, 8)
	depth := make(tradegate.MessageChan, 8)
	d.Register(tradegate.MsgTrade, trades1)
	d.Register(tradegate.MsgTrade, trades2)
	d.Register(tradegate.MsgDepth, depth)

	d.Publish(tradegate.Message{Type: tradegate.MsgTrade, DataType: "BTC-USDT@trade"})

	assert.Equal(t, "BTC-USDT@trade", recv(t, trades1).DataType)
	assert.Equal(t, "BTC-USDT@trade", recv(t, trades2).DataType)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, depth, 0)
	assert.Len(t, trades1, 0)
}

func TestDispatcherOrderAcrossKinds(t *testing.T) {
	d := NewDispatcher(0)
	defer d.Close()

	ch := make(tradegate.MessageChan)
	d.Register(tradegate.MsgConnected, ch)
	d.Register(tradegate.MsgTrade, ch)
	d.Register(tradegate.MsgDisconnected, ch)

	d.Publish(tradegate.ConnectedMessage)
	d.Publish(tradegate.Message{Type: tradegate.MsgTrade})
	d.Publish(tradegate.DisConnectedMessage)

	assert.Equal(t, tradegate.MsgConnected, recv(t, ch).Type)
	assert.Equal(t, tradegate.MsgTrade, recv(t, ch).Type)
	assert.Equal(t, tradegate.MsgDisconnected, recv(t, ch).Type)
}

func TestDispatcherSlowObserverDropsOldest(t *testing.T) {
	d := NewDispatcher(4)
	defer d.Close()

	slow := make(tradegate.MessageChan)
	fast := make(tradegate.MessageChan, 64)
	d.Register(tradegate.MsgTrade, slow)
	d.Register(tradegate.MsgTrade, fast)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			d.Publish(tradegate.Message{Type: tradegate.MsgTrade, DataType: string(rune('a' + i))})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow observer")
	}

	for i := 0; i < 20; i++ {
		assert.Equal(t, string(rune('a'+i)), recv(t, fast).DataType)
	}
	assert.Zero(t, d.Dropped(fast))

	require.Eventually(t, func() bool { return d.Dropped(slow) > 0 }, time.Second, 10*time.Millisecond)
	// the newest message always survives
	var last string
	for {
		select {
		case msg := <-slow:
			last = msg.DataType
			continue
		case <-time.After(100 * time.Millisecond):
		}
		break
	}
	assert.Equal(t, string(rune('a'+19)), last)
}

func TestDispatcherBufferedObserverLosesNothing(t *testing.T) {
	d := NewDispatcher(0)
	defer d.Close()

	ch := make(tradegate.MessageChan, 4096)
	d.Register(tradegate.MsgTrade, ch)
	for i := 0; i < 2000; i++ {
		d.Publish(tradegate.Message{Type: tradegate.MsgTrade, DataType: strconv.Itoa(i)})
	}

	for i := 0; i < 2000; i++ {
		require.Equal(t, strconv.Itoa(i), recv(t, ch).DataType)
	}
	assert.Zero(t, d.Dropped(ch))
}

func TestDispatcherQueueDrainsInOrder(t *testing.T) {
	d := NewDispatcher(0)
	defer d.Close()

	// unbuffered: every message but the first in flight waits in the queue
	ch := make(tradegate.MessageChan)
	d.Register(tradegate.MsgTrade, ch)
	for i := 0; i < 100; i++ {
		d.Publish(tradegate.Message{Type: tradegate.MsgTrade, DataType: strconv.Itoa(i)})
	}

	for i := 0; i < 100; i++ {
		require.Equal(t, strconv.Itoa(i), recv(t, ch).DataType)
	}
	assert.Zero(t, d.Dropped(ch))
}

func TestDispatcherUnRegister(t *testing.T) {
	d := NewDispatcher(0)
	defer d.Close()

	ch := make(tradegate.MessageChan, 4)
	d.Register(tradegate.MsgTrade, ch)
	d.Register(tradegate.MsgTicker, ch)
	d.UnRegister(tradegate.MsgTrade, ch)

	d.Publish(tradegate.Message{Type: tradegate.MsgTrade})
	d.Publish(tradegate.Message{Type: tradegate.MsgTicker})
	assert.Equal(t, tradegate.MsgTicker, recv(t, ch).Type)

	d.UnRegister(tradegate.MsgTicker, ch)
	d.Publish(tradegate.Message{Type: tradegate.MsgTicker})
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, ch, 0)
}

func TestDispatcherCloseLeavesChannelsOpen(t *testing.T) {
	d := NewDispatcher(0)
	ch := make(tradegate.MessageChan, 1)
	d.Register(tradegate.MsgError, ch)
	d.Close()
	d.Close()

	d.Publish(tradegate.ErrorMessage(assert.AnError))
	ch <- tradegate.ConnectedMessage
	assert.Equal(t, tradegate.MsgConnected, (<-ch).Type)
}
