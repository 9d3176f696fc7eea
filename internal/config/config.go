package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/mdouchement/podote/internal/database"
	"github.com/mdouchement/podote/internal/logger"
	"github.com/pkg/errors"
)

// EnvPrefix is the prefix of the environment variables overriding the configuration.
// Levels are separated by a double underscore (e.g. PODOTE_DATABASE__DRIVER).
const EnvPrefix = "PODOTE_"

// A Config holds the settings of podote.
type Config struct {
	Database Database
	Log      logger.Params
	// ContentSchema is an optional JSON schema enforced on todo contents.
	ContentSchema string
}

// Database holds the storage settings.
type Database struct {
	database.Params
	Timeout time.Duration
}

var defaults = map[string]any{
	"database.driver":  database.DriverStorm,
	"database.path":    "podote.db",
	"database.codec":   "msgpack",
	"database.timeout": "10s",
	"log.level":        "info",
	"log.max_size":     100,
	"log.max_backups":  3,
	"log.max_age":      28,
}

// Load reads the configuration from the defaults, the given yaml file (optional), then the environment.
func Load(filename string) (*Config, error) {
	konf := koanf.New(".")
	if err := konf.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, errors.Wrap(err, "could not load defaults")
	}

	if filename != "" {
		if err := konf.Load(file.Provider(filename), yaml.Parser()); err != nil {
			return nil, errors.Wrap(err, "could not load configuration file")
		}
	}

	err := konf.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not load environment")
	}

	timeout, err := time.ParseDuration(konf.String("database.timeout"))
	if err != nil {
		return nil, errors.Wrap(err, "could not parse database.timeout")
	}

	cfg := &Config{
		Database: Database{
			Params: database.Params{
				Driver: konf.String("database.driver"),
				Path:   konf.String("database.path"),
				DSN:    konf.String("database.dsn"),
				Codec:  konf.String("database.codec"),
			},
			Timeout: timeout,
		},
		Log: logger.Params{
			Level:      konf.String("log.level"),
			File:       konf.String("log.file"),
			MaxSize:    konf.Int("log.max_size"),
			MaxBackups: konf.Int("log.max_backups"),
			MaxAge:     konf.Int("log.max_age"),
		},
		ContentSchema: konf.String("content_schema"),
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case database.DriverStorm, database.DriverSQLite:
		if c.Database.Path == "" {
			return errors.Errorf("database.path is required by the %s driver", c.Database.Driver)
		}
	case database.DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required by the postgres driver")
		}
	default:
		return errors.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Database.Timeout <= 0 {
		return errors.New("database.timeout must be positive")
	}
	return nil
}
