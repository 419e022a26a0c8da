package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "broker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "listen:\n  port: 7900\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "smq", cfg.Protocol)
	assert.Equal(t, uint32(8), cfg.Delivery.Workers)
	assert.EqualValues(t, 16*1024*1024, cfg.Frame.MaxBytes)
}

func TestLoadMissingPortFails(t *testing.T) {
	path := writeConfig(t, "protocol: smq\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrMissingListenPort)
}

func TestLoadInvalidProtocolFails(t *testing.T) {
	path := writeConfig(t, "listen:\n  port: 7900\nprotocol: amqp\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidProtocol)
}

func TestLoadTLSWithoutCertFails(t *testing.T) {
	path := writeConfig(t, "listen:\n  port: 7900\n  tls:\n    enabled: true\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrMissingTLSCert)
}

func TestLoadFullDocument(t *testing.T) {
	path := writeConfig(t, `
listen:
  address: 127.0.0.1
  port: 7901
  tls:
    enabled: true
    cert: cert.pem
    key: key.pem
    verify: required
auth:
  username: svc
  password: hunter2
protocol: mqtt
store:
  root: /var/lib/smq
  bucket_size: 1048576
delivery:
  workers: 16
  queue_watermark: 2048
  ack_timeout_ms: 5000
  max_ack_misses: 5
frame:
  max_bytes: 65536
session:
  backend: pebble
  pebble_dir: /var/lib/smq/sessions
rate_limit:
  enabled: true
  max_rate: 100
  window_ms: 1000
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Listen.Address)
	assert.EqualValues(t, 7901, cfg.Listen.Port)
	assert.True(t, cfg.Listen.TLS.Enabled)
	assert.Equal(t, "svc", cfg.Auth.Username)
	assert.Equal(t, "mqtt", cfg.Protocol)
	assert.EqualValues(t, 1048576, cfg.Store.BucketSize)
	assert.EqualValues(t, 16, cfg.Delivery.Workers)
	assert.EqualValues(t, 65536, cfg.Frame.MaxBytes)
	assert.Equal(t, "pebble", cfg.Session.Backend)
	assert.Equal(t, "/var/lib/smq/sessions", cfg.Session.PebbleDir)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 100, cfg.RateLimit.MaxRate)
}

func TestLoadSessionBackendDefaultsToMemory(t *testing.T) {
	path := writeConfig(t, "listen:\n  port: 7900\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Session.Backend)
}

func TestLoadPebbleSessionBackendWithoutDirFails(t *testing.T) {
	path := writeConfig(t, "listen:\n  port: 7900\nsession:\n  backend: pebble\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrMissingSessionPebbleDir)
}

func TestLoadInvalidSessionBackendFails(t *testing.T) {
	path := writeConfig(t, "listen:\n  port: 7900\nsession:\n  backend: etcd\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidSessionBackend)
}

func TestLoadRateLimitEnabledWithoutMaxRateFails(t *testing.T) {
	path := writeConfig(t, "listen:\n  port: 7900\nrate_limit:\n  enabled: true\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidRateLimit)
}
