// Package config loads greenratchet settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Deepak-Sangle/greenratchet/internal/bucket"
	"github.com/Deepak-Sangle/greenratchet/internal/carbon"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GREENRATCHET_DATABASE_DSN.
const EnvPrefix = "GREENRATCHET"

// Config holds the application configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Redis      RedisConfig      `mapstructure:"redis"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
	Reference  ReferenceConfig  `mapstructure:"reference"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	DSN    string `mapstructure:"dsn"`
}

type CacheConfig struct {
	Backend string        `mapstructure:"backend"` // none, memory or redis
	TTL     time.Duration `mapstructure:"ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type HTTPConfig struct {
	Listen string `mapstructure:"listen"`
}

type EngineConfig struct {
	TopRegions        int  `mapstructure:"top_regions"`
	ProjectionMonths  int  `mapstructure:"projection_months"`
	MaxConcurrency    int  `mapstructure:"max_concurrency"`
	ReferenceFallback bool `mapstructure:"reference_fallback"`
}

// Range is a low/high tier boundary pair.
type Range struct {
	Low  float64 `mapstructure:"low"`
	High float64 `mapstructure:"high"`
}

type ThresholdsConfig struct {
	CarbonIntensity Range `mapstructure:"carbon_intensity"`
	WaterStress     Range `mapstructure:"water_stress"`
}

type ReferenceConfig struct {
	DefaultWUE float64 `mapstructure:"default_wue"`
}

// CarbonIntensityThresholds returns the configured carbon intensity tiers.
func (c Config) CarbonIntensityThresholds() bucket.Thresholds {
	return bucket.Thresholds{Low: c.Thresholds.CarbonIntensity.Low, High: c.Thresholds.CarbonIntensity.High}
}

// WaterStressThresholds returns the configured water stress tiers. The low
// boundary is inclusive.
func (c Config) WaterStressThresholds() bucket.Thresholds {
	return bucket.Thresholds{Low: c.Thresholds.WaterStress.Low, High: c.Thresholds.WaterStress.High, LowInclusive: true}
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "greenratchet.db")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("http.listen", ":8080")
	v.SetDefault("engine.top_regions", carbon.TopRegionsLimit)
	v.SetDefault("engine.projection_months", 6)
	v.SetDefault("engine.max_concurrency", 8)
	v.SetDefault("engine.reference_fallback", true)
	v.SetDefault("thresholds.carbon_intensity.low", carbon.LowCarbonIntensityThreshold)
	v.SetDefault("thresholds.carbon_intensity.high", carbon.HighCarbonIntensityThreshold)
	v.SetDefault("thresholds.water_stress.low", carbon.LowWaterStressThreshold)
	v.SetDefault("thresholds.water_stress.high", carbon.HighWaterStressThreshold)
	v.SetDefault("reference.default_wue", carbon.DefaultWUE)
}

// Load reads configuration into a Config. configFile may be empty, in which
// case greenratchet.yaml is looked up in the working directory and a missing
// file is not an error.
func Load(v *viper.Viper, configFile string) (Config, error) {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("greenratchet")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects inconsistent settings.
func (c Config) Validate() error {
	var errs []error
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported database.driver %q", c.Database.Driver))
	}
	switch c.Cache.Backend {
	case "none":
	case "memory", "redis":
		if c.Cache.TTL <= 0 {
			errs = append(errs, fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported cache.backend %q", c.Cache.Backend))
	}
	if c.Cache.Backend == "redis" && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required for the redis cache backend"))
	}
	if err := c.CarbonIntensityThresholds().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("thresholds.carbon_intensity: %w", err))
	}
	if err := c.WaterStressThresholds().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("thresholds.water_stress: %w", err))
	}
	if c.Engine.ProjectionMonths < 0 {
		errs = append(errs, fmt.Errorf("engine.projection_months must not be negative, got %d", c.Engine.ProjectionMonths))
	}
	if c.Reference.DefaultWUE <= 0 {
		errs = append(errs, fmt.Errorf("reference.default_wue must be positive, got %v", c.Reference.DefaultWUE))
	}
	return errors.Join(errs...)
}
