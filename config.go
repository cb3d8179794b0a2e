package reel

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ServerConfig holds render server settings. The zero value is not useful;
// start from DefaultServerConfig.
type ServerConfig struct {
	// CacheSize is the number of rendered frames kept in the LRU.
	CacheSize int `toml:"cache_size"`
	// InitialWidth and InitialHeight size the first renderer.
	InitialWidth  int `toml:"initial_width"`
	InitialHeight int `toml:"initial_height"`
	// Background is the first renderer's background color.
	Background Color `toml:"background"`
	// RequestBuffer and ResultBuffer are the channel capacities.
	RequestBuffer int `toml:"request_buffer"`
	ResultBuffer  int `toml:"result_buffer"`
	// Debug logs per-request timings at debug level.
	Debug bool `toml:"debug"`
}

// DefaultServerConfig returns a 50-frame cache and a 1920x1080 transparent
// initial renderer.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		CacheSize:     50,
		InitialWidth:  1920,
		InitialHeight: 1080,
		Background:    ColorTransparent,
		RequestBuffer: 8,
		ResultBuffer:  8,
	}
}

// LoadServerConfig reads a TOML file over DefaultServerConfig. Keys absent
// from the file keep their defaults.
func LoadServerConfig(path string) (ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("reel: load server config: %w", err)
	}
	return ParseServerConfig(data)
}

// ParseServerConfig decodes TOML over DefaultServerConfig.
func ParseServerConfig(data []byte) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("reel: parse server config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

func (c ServerConfig) validate() error {
	switch {
	case c.CacheSize <= 0:
		return fmt.Errorf("reel: server config: cache_size must be positive, got %d", c.CacheSize)
	case c.InitialWidth <= 0 || c.InitialHeight <= 0:
		return fmt.Errorf("reel: server config: initial size must be positive, got %dx%d", c.InitialWidth, c.InitialHeight)
	case c.RequestBuffer < 1:
		return fmt.Errorf("reel: server config: request_buffer must be at least 1, got %d", c.RequestBuffer)
	case c.ResultBuffer < 0:
		return fmt.Errorf("reel: server config: result_buffer must not be negative, got %d", c.ResultBuffer)
	}
	return nil
}
