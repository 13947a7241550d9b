package utils

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHmacSign(t *testing.T) {
	// RFC 4231 test case 2
	sign, err := HmacSign(SHA256, "what do ya want for nothing?", "Jefe")
	require.NoError(t, err)
	assert.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", sign)

	_, err = HmacSign(42, "payload", "secret")
	assert.Error(t, err)
}

func TestCanonicalQuery(t *testing.T) {
	values := url.Values{}
	values.Set("symbol", "BTC-USDT")
	values.Set("side", "BUY")
	values.Set("positionSide", "LONG")
	values.Set("quantity", "0.5")

	assert.Equal(t, "positionSide=LONG&quantity=0.5&side=BUY&symbol=BTC-USDT", CanonicalQuery(values))
	assert.Equal(t, "", CanonicalQuery(url.Values{}))
}

func TestCopyValues(t *testing.T) {
	src := url.Values{"a": {"1"}}
	dst := CopyValues(src)
	dst.Set("a", "2")
	dst.Set("b", "3")
	assert.Equal(t, "1", src.Get("a"))
	assert.Len(t, src, 1)
}

func TestGenerateOrderClientId(t *testing.T) {
	id := GenerateOrderClientId("bx", 20)
	assert.Len(t, id, 20)
	assert.True(t, strings.HasPrefix(id, "bx"))
	assert.NotEqual(t, id, GenerateOrderClientId("bx", 20))

	assert.True(t, strings.HasPrefix(GenerateOrderClientId("", 16), "tgex"))
}
