package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLevel(t *testing.T) {
	require.NoError(t, Init(Config{Level: "debug"}))
	assert.Equal(t, logrus.DebugLevel, Get().GetLevel())

	require.NoError(t, Init(Config{Level: "nonsense"}))
	assert.Equal(t, logrus.InfoLevel, Get().GetLevel())
}

func TestWithComponentJSON(t *testing.T) {
	require.NoError(t, Init(Config{Level: "info", Format: "json"}))
	var buf bytes.Buffer
	SetOutput(&buf)

	WithComponent("bingx-ws").WithField("dataType", "BTC-USDT@trade").Info("subscribed")
	out := buf.String()
	assert.Contains(t, out, `"component":"bingx-ws"`)
	assert.Contains(t, out, `"message":"subscribed"`)
	assert.Contains(t, out, `"dataType":"BTC-USDT@trade"`)
}

func TestInitFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "tradegate.log")
	require.NoError(t, Init(Config{Level: "info", OutputFile: file}))
	WithFields(Fields{"k": "v"}).Info("to file")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")

	require.NoError(t, Init(Config{Level: "info"}))
}
