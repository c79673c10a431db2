package server

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/meal-budget/internal/config"
	"github.com/iwvelando/meal-budget/pkg/constants"
	"gopkg.in/yaml.v3"
)

// Config is the server-only configuration: where to listen, how large a
// plan request body may be, and HTTP timeouts. Planning behaviour (optimizer,
// catalog, storage) comes from the application configuration named by
// ConfigFile, or from the root --config flag when ConfigFile is empty.
type Config struct {
	Address           string               `yaml:"address"`
	MaxBodySize       string               `yaml:"maxBodySize"`
	ReadHeaderTimeout time.Duration        `yaml:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration        `yaml:"shutdownTimeout"`
	ConfigFile        string               `yaml:"configFile"`
	RateLimit         RateLimitConfig      `yaml:"rateLimit"`
	Logging           config.LoggingConfig `yaml:"logging"`

	bodyLimit int64
}

// LoadConfig reads the server configuration at path. A missing file is not
// an error: the server then runs on defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read server config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse server config: %w", err)
			}
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BodyLimit is the largest request body the API accepts, in bytes.
func (c *Config) BodyLimit() int64 {
	return c.bodyLimit
}

func (c *Config) normalize() error {
	if c.Address == "" {
		c.Address = constants.DefaultServerAddress
	}
	if c.ReadHeaderTimeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("server timeouts cannot be negative")
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = constants.DefaultReadHeaderTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = constants.DefaultShutdownTimeout
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values cannot be negative")
	}

	limit, err := ParseByteSize(c.MaxBodySize)
	if err != nil {
		return fmt.Errorf("maxBodySize: %w", err)
	}
	if limit == 0 {
		limit = constants.DefaultMaxBodyBytes
	}
	c.bodyLimit = limit
	return nil
}

// byteSuffixes is ordered so two-letter suffixes are tried first.
var byteSuffixes = []struct {
	suffix string
	shift  uint
}{
	{"KB", 10}, {"MB", 20}, {"GB", 30},
	{"K", 10}, {"M", 20}, {"G", 30},
	{"B", 0},
}

// ParseByteSize reads sizes like "512", "64K" or "1MB" (binary multiples,
// case-insensitive). An empty string is zero.
func ParseByteSize(value string) (int64, error) {
	s := strings.ToUpper(strings.TrimSpace(value))
	if s == "" {
		return 0, nil
	}

	var shift uint
	for _, u := range byteSuffixes {
		if rest, ok := strings.CutSuffix(s, u.suffix); ok {
			s, shift = strings.TrimSpace(rest), u.shift
			break
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid byte size %q", value)
	}
	if n > (1<<62)>>shift {
		return 0, fmt.Errorf("byte size %q is too large", value)
	}
	return n << shift, nil
}
