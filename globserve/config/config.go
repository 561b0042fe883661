package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	internal "github.com/ZanzyTHEbar/globserve/globserve"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from flags, environment variables, a config file and defaults,
// in that order of precedence.
type Config struct {
	Path        string    `mapstructure:"path"`
	Pattern     string    `mapstructure:"pattern"`
	Address     string    `mapstructure:"address"`
	Port        int       `mapstructure:"port"`
	Exclude     []string  `mapstructure:"exclude"`
	ExcludeFile string    `mapstructure:"exclude_file"`
	StatusAddr  string    `mapstructure:"status_addr"`
	Log         LogConfig `mapstructure:"log"`
}

// LogConfig stores logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// flagKeys maps config keys to the CLI flags that override them
var flagKeys = map[string]string{
	"path":         "path",
	"pattern":      "pattern",
	"address":      "address",
	"port":         "port",
	"exclude":      "exclude",
	"exclude_file": "exclude-file",
	"status_addr":  "status-addr",
	"log.level":    "log-level",
	"log.format":   "log-format",
}

// LoadConfig reads configuration from file, environment variables and flags.
// An explicit configPath must exist; otherwise a missing config file just means defaults.
// flags may be nil.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
	}

	v.SetDefault("path", internal.DefaultServePath)
	v.SetDefault("pattern", internal.DefaultPattern)
	v.SetDefault("address", internal.DefaultAddress)
	v.SetDefault("port", internal.DefaultPort)
	v.SetDefault("exclude", []string{})
	v.SetDefault("exclude_file", "")
	v.SetDefault("status_addr", "")
	v.SetDefault("log.level", internal.DefaultLogLevel)
	v.SetDefault("log.format", internal.DefaultLogFormat)

	v.SetEnvPrefix(internal.DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // log.level becomes GLOBSERVE_LOG_LEVEL
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if cfg.Pattern == "" {
		cfg.Pattern = internal.DefaultPattern
	}

	return &cfg, nil
}

// Validate checks values that would otherwise only fail once serving starts.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if c.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d (0-65535)", c.Port)
	}
	if _, err := internal.ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "text", "":
	default:
		return fmt.Errorf("invalid log format '%s' (json|text)", c.Log.Format)
	}
	if c.StatusAddr != "" {
		if _, _, err := net.SplitHostPort(c.StatusAddr); err != nil {
			return fmt.Errorf("invalid status address %q: %w", c.StatusAddr, err)
		}
	}
	return nil
}

// ListenAddress is the host:port the file server binds.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// Excludes compiles the exclusion patterns and exclusion file into one matcher.
// It returns nil when nothing is excluded.
func (c *Config) Excludes() (*ignore.GitIgnore, error) {
	if c.ExcludeFile != "" {
		gi, err := ignore.CompileIgnoreFileAndLines(c.ExcludeFile, c.Exclude...)
		if err != nil {
			return nil, fmt.Errorf("failed to read exclude file %s: %w", c.ExcludeFile, err)
		}
		return gi, nil
	}
	if len(c.Exclude) == 0 {
		return nil, nil
	}
	return ignore.CompileIgnoreLines(c.Exclude...), nil
}
