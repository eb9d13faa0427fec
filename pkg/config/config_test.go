package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_DefaultsApplied(t *testing.T) {
	p := writeConfig(t, `
binance:
  instruments: ["BTCUSDT", "ETHUSDT"]
`)
	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, "info", c.Logger.Level)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "wss://stream.binance.com:9443", c.Binance.WebSocketURL)
	assert.Equal(t, 5*time.Second, c.Binance.ReconnectDelay)
	assert.Equal(t, 500, c.Engine.SeriesLimit)
	assert.Equal(t, "1m", c.Alerts.Resolution)
	assert.Equal(t, "pairpulse.bars", c.Kafka.BarsTopic)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	p := writeConfig(t, `
environment: production
server:
  port: 9090
binance:
  instruments: ["BTCUSDT"]
engine:
  series_limit: 200
`)
	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, 200, c.Engine.SeriesLimit)
}

func TestLoad_EnvOverrides(t *testing.T) {
	p := writeConfig(t, `
binance:
  instruments: ["BTCUSDT"]
`)
	t.Setenv("INSTRUMENTS", "SOLUSDT,ADAUSDT")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")

	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, []string{"SOLUSDT", "ADAUSDT"}, c.Binance.Instruments)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, c.Kafka.Brokers)
}

func TestLoad_RequiresInstruments(t *testing.T) {
	p := writeConfig(t, `
environment: production
`)
	_, err := Load(p)
	assert.Error(t, err)
}

func TestLoad_RejectsBadPort(t *testing.T) {
	p := writeConfig(t, `
server:
  port: -1
binance:
  instruments: ["BTCUSDT"]
`)
	_, err := Load(p)
	assert.Error(t, err)
}
