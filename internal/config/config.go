package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type Config struct {
	Port        string `mapstructure:"port"`
	DSLDir      string `mapstructure:"dsl_dir"`
	EnumsDir    string `mapstructure:"enums_dir"`
	AdminConfig string `mapstructure:"admin_config"`
	DBURL       string `mapstructure:"db_url"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
	QueryDriver string `mapstructure:"query_driver"` // memory | postgres
	LogLevel    string `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("dsl_dir", "dsl")
	v.SetDefault("enums_dir", "reference/enums")
	v.SetDefault("admin_config", "admin.yaml")
	v.SetDefault("db_url", "")
	v.SetDefault("auto_migrate", false)
	v.SetDefault("query_driver", DriverMemory)
	v.SetDefault("log_level", "info")
}

// Keys lists every configuration key; flags are bound by the same name
// with dashes ("dsl_dir" -> --dsl-dir).
func Keys() []string {
	return []string{"port", "dsl_dir", "enums_dir", "admin_config", "db_url", "auto_migrate", "query_driver", "log_level"}
}

// Load собирает конфиг: defaults < файл (JSON/YAML) < ENV ADMINKA_* < флаги.
// Пустой path: ищем adminka.{yaml,json} в текущей папке, отсутствие не ошибка.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ADMINKA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", path)
		}
	} else {
		v.SetConfigName("adminka")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, errors.Wrap(err, "reading config file")
			}
		}
	}

	if flags != nil {
		for _, key := range Keys() {
			if f := flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, errors.Wrapf(err, "binding flag %s", f.Name)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	cfg.QueryDriver = strings.ToLower(strings.TrimSpace(cfg.QueryDriver))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.QueryDriver {
	case DriverMemory:
	case DriverPostgres:
		if strings.TrimSpace(c.DBURL) == "" {
			return errors.New("query_driver=postgres needs db_url (ADMINKA_DB_URL or --db-url)")
		}
	default:
		return errors.Newf("unknown query_driver %q (allowed: memory|postgres)", c.QueryDriver)
	}
	if strings.TrimSpace(c.Port) == "" {
		return errors.New("port must not be empty")
	}
	return nil
}

// Addr is the listen address for Port.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
