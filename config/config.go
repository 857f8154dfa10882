// Package config loads the configuration of a treecast participant from a
// YAML or JSON file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/luca-patrignani/treecast/collective"
)

const (
	DefaultListen        = "127.0.0.1:0"
	DefaultTimeout       = 30 * time.Second
	DefaultRetryInterval = 5 * time.Millisecond
)

type Config struct {
	// Listen is the address the frame server binds to.
	Listen string `json:"listen"`
	// Peers lists the frame addresses of the other participants. Partial
	// addresses such as "42:9000" are completed from the listen address.
	Peers         []string        `json:"peers"`
	Root          int             `json:"root"`
	Kind          string          `json:"kind"`
	Timeout       string          `json:"timeout"`
	RetryInterval string          `json:"retry_interval"`
	MaxFrameSize  int64           `json:"max_frame_size"`
	TLS           TLSConfig       `json:"tls"`
	Signing       SigningConfig   `json:"signing"`
	Discovery     DiscoveryConfig `json:"discovery"`
	Store         StoreConfig     `json:"store"`
	Payload       PayloadConfig   `json:"payload"`
	Logging       LoggingConfig   `json:"logging"`
}

type TLSConfig struct {
	CertFile string   `json:"cert_file"`
	KeyFile  string   `json:"key_file"`
	CAFiles  []string `json:"ca_files"`
}

func (c TLSConfig) Enabled() bool {
	return c.CertFile != "" || c.KeyFile != ""
}

// SigningConfig holds the hex encoded schnorr keys. PublicKeys is keyed by
// the frame address of the participant owning the key.
type SigningConfig struct {
	PrivateKey string            `json:"private_key"`
	PublicKeys map[string]string `json:"public_keys"`
}

func (c SigningConfig) Enabled() bool {
	return c.PrivateKey != ""
}

type DiscoveryConfig struct {
	Enabled   bool   `json:"enabled"`
	Host      string `json:"host"`
	StartPort uint16 `json:"start_port"`
	EndPort   uint16 `json:"end_port"`
	// Expect is the number of other participants to wait for.
	Expect  int    `json:"expect"`
	Timeout string `json:"timeout"`
}

type StoreConfig struct {
	Path string `json:"path"`
}

// PayloadConfig describes the root's buffer: either explicit values or
// Generate elements valued index*0.75.
type PayloadConfig struct {
	Values   []float64 `json:"values"`
	Generate int       `json:"generate"`
}

// Empty reports whether p describes no element at all.
func (p PayloadConfig) Empty() bool {
	return len(p.Values) == 0 && p.Generate <= 0
}

type LoggingConfig struct {
	Level string `json:"level"`
}

// Load reads, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(path, b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data, choosing the format from the extension of path.
// Unknown fields are rejected.
func Parse(path string, data []byte) (*Config, error) {
	jb, err := toJSON(path, data)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Listen) == "" {
		c.Listen = DefaultListen
	}
	if strings.TrimSpace(c.Kind) == "" {
		c.Kind = collective.KindFloat64.String()
	}
	if c.Discovery.Host == "" {
		c.Discovery.Host = "localhost"
	}
	if c.Discovery.StartPort == 0 && c.Discovery.EndPort == 0 {
		c.Discovery.StartPort = 9000
		c.Discovery.EndPort = 9010
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Root < 0 {
		errs = append(errs, fmt.Errorf("root: must be >= 0, got %d", c.Root))
	}
	if _, err := collective.ParseKind(c.Kind); err != nil {
		errs = append(errs, fmt.Errorf("kind: %w", err))
	}
	if _, err := ParseDurationField("timeout", c.Timeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("retry_interval", c.RetryInterval); err != nil {
		errs = append(errs, err)
	}
	if c.MaxFrameSize < 0 {
		errs = append(errs, fmt.Errorf("max_frame_size: must be >= 0"))
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("tls: cert_file and key_file must be set together"))
	}
	if !c.Signing.Enabled() && len(c.Signing.PublicKeys) > 0 {
		errs = append(errs, errors.New("signing: public_keys set without private_key"))
	}
	if c.Discovery.Enabled {
		if c.Discovery.Expect <= 0 {
			errs = append(errs, errors.New("discovery.expect: must be > 0"))
		}
		if c.Discovery.StartPort > c.Discovery.EndPort {
			errs = append(errs, fmt.Errorf("discovery: empty port range %d-%d", c.Discovery.StartPort, c.Discovery.EndPort))
		}
		if len(c.Peers) > 0 {
			errs = append(errs, errors.New("peers and discovery are mutually exclusive"))
		}
		if _, err := ParseDurationField("discovery.timeout", c.Discovery.Timeout); err != nil {
			errs = append(errs, err)
		}
	}
	if len(c.Payload.Values) > 0 && c.Payload.Generate > 0 {
		errs = append(errs, errors.New("payload: values and generate are mutually exclusive"))
	}
	if c.Payload.Generate < 0 {
		errs = append(errs, errors.New("payload.generate: must be >= 0"))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ElementKind returns the element kind. Call after Validate.
func (c *Config) ElementKind() collective.Kind {
	k, _ := collective.ParseKind(c.Kind)
	return k
}

func (c *Config) TimeoutDuration() time.Duration {
	d, _ := ParseDurationOrDefault("timeout", c.Timeout, DefaultTimeout)
	return d
}

func (c *Config) RetryIntervalDuration() time.Duration {
	d, _ := ParseDurationOrDefault("retry_interval", c.RetryInterval, DefaultRetryInterval)
	return d
}

func (c *Config) DiscoveryTimeout() time.Duration {
	d, _ := ParseDurationOrDefault("discovery.timeout", c.Discovery.Timeout, time.Minute)
	return d
}

func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return l, nil
}
