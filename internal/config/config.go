// Package config loads the soegate configuration from YAML and applies
// defaults. CLI flags override file values after Load.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/1ureka/soegate/internal/transport"
)

// DefaultKey is the RC4 key the game client ships with.
const DefaultKey = "F70IaxuU8C/w7FPXY1ibXw=="

// Config is the root configuration.
type Config struct {
	Debug   bool          `yaml:"debug"`
	DumpDir string        `yaml:"dump_dir"`
	Gateway GatewayConfig `yaml:"gateway"`
	Login   LoginConfig   `yaml:"login"`
	Zone    ZoneConfig    `yaml:"zone"`
}

// GatewayConfig configures the relay listener.
type GatewayConfig struct {
	Listen          string        `yaml:"listen"`
	Path            string        `yaml:"path"`
	MetricsPath     string        `yaml:"metrics_path"`
	Key             string        `yaml:"key"`
	ReadLimit       int64         `yaml:"read_limit"`
	FramesPerSecond float64       `yaml:"frames_per_second"`
	Burst           int           `yaml:"burst"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	StatsInterval   time.Duration `yaml:"stats_interval"`
	Echo            bool          `yaml:"echo"`

	// OneTimeTickets rejects a ticket already used by a recent login.
	OneTimeTickets  bool `yaml:"one_time_tickets"`
	TicketCacheSize int  `yaml:"ticket_cache_size"`
}

// LoginConfig configures the login client.
type LoginConfig struct {
	ServerURL      string        `yaml:"server_url"`
	Key            string        `yaml:"key"`
	LaunchpadURL   string        `yaml:"launchpad_url"`
	GameID         string        `yaml:"game_id"`
	Environment    string        `yaml:"environment"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Fingerprint    string        `yaml:"fingerprint"`
	Locale         string        `yaml:"locale"`
}

// ZoneConfig configures the zone client.
type ZoneConfig struct {
	GatewayURL     string `yaml:"gateway_url"`
	Key            string `yaml:"key"`
	CharacterID    uint64 `yaml:"character_id"`
	Ticket         string `yaml:"ticket"`
	ClientProtocol string `yaml:"client_protocol"`
	ClientBuild    string `yaml:"client_build"`
}

// Default returns a configuration that runs without a file.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Listen:          ":20260",
			Path:            "/gateway",
			MetricsPath:     "/metrics",
			Key:             DefaultKey,
			ReadLimit:       64 * 1024,
			FramesPerSecond: 200,
			Burst:           400,
			WriteTimeout:    10 * time.Second,
			StatsInterval:   time.Second,
			TicketCacheSize: 4096,
		},
		Login: LoginConfig{
			ServerURL:      "ws://127.0.0.1:20042/login",
			Key:            DefaultKey,
			LaunchpadURL:   "https://lp.soe.com",
			GameID:         "ps2",
			Environment:    "live",
			RequestTimeout: 10 * time.Second,
			Locale:         "en_US",
		},
		Zone: ZoneConfig{
			GatewayURL:     "ws://127.0.0.1:20260/gateway",
			Key:            DefaultKey,
			ClientProtocol: "ClientProtocol_1080",
			ClientBuild:    "0.195.4.147586",
		},
	}
}

// Load reads path over the defaults. A missing file is not an error when
// path is empty.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML file %q: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(name, key string) {
		if _, err := transport.ParseKey(key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	check("gateway.key", c.Gateway.Key)
	check("login.key", c.Login.Key)
	check("zone.key", c.Zone.Key)

	if c.Gateway.Listen == "" {
		errs = append(errs, errors.New("gateway.listen: must not be empty"))
	}
	if c.Gateway.FramesPerSecond < 0 {
		errs = append(errs, errors.New("gateway.frames_per_second: must not be negative"))
	}
	if c.Gateway.Burst < 0 {
		errs = append(errs, errors.New("gateway.burst: must not be negative"))
	}
	if c.Gateway.OneTimeTickets && c.Gateway.TicketCacheSize <= 0 {
		errs = append(errs, errors.New("gateway.ticket_cache_size: must be positive with one_time_tickets"))
	}
	if c.Login.RequestTimeout <= 0 {
		errs = append(errs, errors.New("login.request_timeout: must be positive"))
	}
	return errors.Join(errs...)
}
