// Package config loads studio.yaml.
//
// The file is decoded with yaml.v3, then checked against an embedded CUE
// schema so that typos and out-of-range values fail at startup with a
// field path instead of surfacing later as odd defaults.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed studio.cue
var schemaCUE string

type StudioConfig struct {
	Version int `yaml:"version"`
	Studio  struct {
		ID       string `yaml:"id"`
		Name     string `yaml:"name"`
		Platform string `yaml:"platform"`
	} `yaml:"studio"`
	API struct {
		Port int    `yaml:"port"`
		Bind string `yaml:"bind"`
	} `yaml:"api"`
	Engine struct {
		Transport          string  `yaml:"transport"`
		ID                 string  `yaml:"id"`
		Broker             string  `yaml:"broker"`
		RequestTimeout     string  `yaml:"request_timeout"`
		HeartbeatTolerance float64 `yaml:"heartbeat_tolerance"`
	} `yaml:"engine"`
	Meter struct {
		Interval string `yaml:"interval"`
		Frames   bool   `yaml:"frames"`
	} `yaml:"meter"`
	Store struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"store"`
	Stream struct {
		Server string `yaml:"server"`
	} `yaml:"stream"`
	Platform PlatformConfig `yaml:"platform"`
	Overlay  OverlayConfig  `yaml:"overlay"`
}

// PlatformConfig configures the streaming platform integration.
type PlatformConfig struct {
	Enabled     bool      `yaml:"enabled"`
	ClientID    string    `yaml:"client_id"`
	RedirectURL string    `yaml:"redirect_url"`
	TokenFile   string    `yaml:"token_file"`
	Bot         BotConfig `yaml:"bot"`
}

// BotConfig maps chat commands to canned replies.
type BotConfig struct {
	Enabled  bool              `yaml:"enabled"`
	Commands map[string]string `yaml:"commands"`
}

// OverlayConfig names the browser source that shows alerts.
type OverlayConfig struct {
	Scene    string `yaml:"scene"`
	Source   string `yaml:"source"`
	URL      string `yaml:"url"`
	Trigger  string `yaml:"trigger"`
	Duration string `yaml:"duration"`
}

// APIPort returns the configured API port, defaulting to 8080 if not set.
func (c *StudioConfig) APIPort() int {
	if c.API.Port == 0 {
		return 8080
	}
	return c.API.Port
}

// APIAddr returns the listen address for the control API.
func (c *StudioConfig) APIAddr() string {
	return fmt.Sprintf("%s:%d", c.API.Bind, c.APIPort())
}

// StudioID returns the studio id used to scope stored rows.
func (c *StudioConfig) StudioID() string {
	if c.Studio.ID == "" {
		return "default"
	}
	return c.Studio.ID
}

// EngineTransport returns "sim" or "mqtt".
func (c *StudioConfig) EngineTransport() string {
	if c.Engine.Transport == "" {
		return "sim"
	}
	return c.Engine.Transport
}

// EngineID returns the remote engine id.
func (c *StudioConfig) EngineID() string {
	if c.Engine.ID == "" {
		return "engine-1"
	}
	return c.Engine.ID
}

// RequestTimeout bounds a single engine call.
func (c *StudioConfig) RequestTimeout() time.Duration {
	return durationOr(c.Engine.RequestTimeout, 5*time.Second)
}

// HeartbeatTolerance is how many heartbeat periods an engine may stay
// silent before it is considered disconnected.
func (c *StudioConfig) HeartbeatTolerance() float64 {
	if c.Engine.HeartbeatTolerance <= 1 {
		return 2
	}
	return c.Engine.HeartbeatTolerance
}

// MeterInterval is the level polling period.
func (c *StudioConfig) MeterInterval() time.Duration {
	return durationOr(c.Meter.Interval, 50*time.Millisecond)
}

// StoreDriver returns "sqlite", "sqlite-pure", "postgres" or "none".
func (c *StudioConfig) StoreDriver() string {
	if c.Store.Driver == "" {
		return "sqlite"
	}
	return c.Store.Driver
}

// StorePath returns the SQLite file path.
func (c *StudioConfig) StorePath() string {
	if c.Store.Path == "" {
		return "titan.db"
	}
	return c.Store.Path
}

// RedirectURLOrDefault returns the OAuth callback URL.
func (c *PlatformConfig) RedirectURLOrDefault() string {
	if c.RedirectURL == "" {
		return "http://localhost:3000/auth/twitch/callback"
	}
	return c.RedirectURL
}

// TokenFileOrDefault returns where platform tokens are kept.
func (c *PlatformConfig) TokenFileOrDefault() string {
	if c.TokenFile == "" {
		return "tokens.json"
	}
	return c.TokenFile
}

// AlertDuration is how long an alert stays visible.
func (c *OverlayConfig) AlertDuration() time.Duration {
	return durationOr(c.Duration, 5*time.Second)
}

// Default returns the configuration used when no file is given.
func Default() *StudioConfig {
	return &StudioConfig{Version: 1}
}

// LoadStudioConfig reads, validates and decodes a studio.yaml file.
func LoadStudioConfig(path string) (*StudioConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseStudioConfig(b)
}

// ParseStudioConfig validates and decodes studio.yaml content.
func ParseStudioConfig(b []byte) (*StudioConfig, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	if v, _ := raw["version"].(int); v != 1 {
		return nil, fmt.Errorf("unsupported studio.yaml version: %v", raw["version"])
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var cfg StudioConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(raw map[string]interface{}) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("studio.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("studio schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Studio"))
	v := def.Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid studio.yaml: %w", err)
	}
	return nil
}

func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
