package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luca-patrignani/treecast/collective"
)

const peerYAML = `
listen: 127.0.0.1:9101
peers:
  - 127.0.0.1:9102
  - "42:9103"
root: 1
kind: int32
timeout: 10s
retry_interval: 20ms
signing:
  private_key: aa
  public_keys:
    127.0.0.1:9102: bb
payload:
  generate: 1000
logging:
  level: debug
`

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(peerYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9101", cfg.Listen)
	require.Equal(t, []string{"127.0.0.1:9102", "42:9103"}, cfg.Peers)
	require.Equal(t, 1, cfg.Root)
	require.Equal(t, collective.KindInt32, cfg.ElementKind())
	require.Equal(t, 10*time.Second, cfg.TimeoutDuration())
	require.Equal(t, 20*time.Millisecond, cfg.RetryIntervalDuration())
	require.True(t, cfg.Signing.Enabled())
	require.Equal(t, "bb", cfg.Signing.PublicKeys["127.0.0.1:9102"])
	require.Equal(t, 1000, cfg.Payload.Generate)
	require.False(t, cfg.TLS.Enabled())

	level, err := ParseLevel(cfg.Logging.Level)
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, level)
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse("peer.json", []byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, DefaultListen, cfg.Listen)
	require.Equal(t, collective.KindFloat64, cfg.ElementKind())
	require.Equal(t, DefaultTimeout, cfg.TimeoutDuration())
	require.Equal(t, DefaultRetryInterval, cfg.RetryIntervalDuration())
	require.Equal(t, uint16(9000), cfg.Discovery.StartPort)
	require.Equal(t, uint16(9010), cfg.Discovery.EndPort)
	require.Equal(t, time.Minute, cfg.DiscoveryTimeout())
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestPayloadEmpty(t *testing.T) {
	require.True(t, PayloadConfig{}.Empty())
	require.True(t, PayloadConfig{Values: []float64{}}.Empty())
	require.False(t, PayloadConfig{Values: []float64{0}}.Empty())
	require.False(t, PayloadConfig{Generate: 1}.Empty())
}

func TestUnknownFieldRejected(t *testing.T) {
	_, err := Parse("peer.yaml", []byte("listen: 127.0.0.1:0\nbogus: 1\n"))
	require.ErrorContains(t, err, "bogus")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"negative root", "root: -1", "root"},
		{"bad kind", "kind: complex128", "kind"},
		{"bad timeout", "timeout: soon", "timeout"},
		{"negative retry", "retry_interval: -1s", "retry_interval"},
		{"half tls", "tls: {cert_file: a.pem}", "tls"},
		{"keys without private", "signing: {public_keys: {a: b}}", "signing"},
		{"discovery without expect", "discovery: {enabled: true}", "discovery.expect"},
		{"discovery with peers", "discovery: {enabled: true, expect: 2}\npeers: [\"a:1\"]", "mutually exclusive"},
		{"discovery range", "discovery: {enabled: true, expect: 2, start_port: 9010, end_port: 9000}", "port range"},
		{"values and generate", "payload: {values: [1, 2], generate: 3}", "payload"},
		{"negative generate", "payload: {generate: -3}", "payload.generate"},
		{"bad level", "logging: {level: loud}", "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("peer.yaml", []byte(tt.yaml))
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestParseDurationField(t *testing.T) {
	d, err := ParseDurationField("x", " ")
	require.NoError(t, err)
	require.Zero(t, d)

	d, err = ParseDurationOrDefault("x", "0s", time.Second)
	require.NoError(t, err)
	require.Equal(t, time.Second, d)

	_, err = ParseDurationField("x", "-2m")
	require.ErrorContains(t, err, "x: duration must be >= 0")
}
