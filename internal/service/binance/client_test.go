package binance

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTick(t *testing.T) {
	var f wsFrame
	raw := `{"stream":"btcusdt@ticker","data":{"s":"BTCUSDT","c":"65432.10","q":"0.025","E":1717243200123}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &f))

	tick, err := parseTick(&f.Data)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", tick.Instrument)
	assert.Equal(t, 65432.10, tick.Price)
	assert.Equal(t, 0.025, tick.Quantity)
	assert.Equal(t, time.UnixMilli(1717243200123).UTC(), tick.Timestamp)
}

func TestParseTick_BadPrice(t *testing.T) {
	_, err := parseTick(&wsTicker{S: "BTCUSDT", C: "not-a-number", E: 1717243200123})
	assert.Error(t, err)
}

func TestParseTick_MissingQuantity(t *testing.T) {
	tick, err := parseTick(&wsTicker{S: "BTCUSDT", C: "100.5", E: 1717243200123})
	require.NoError(t, err)
	assert.Zero(t, tick.Quantity)
}
