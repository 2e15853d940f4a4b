package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Versions   VersionsConfig   `mapstructure:"versions"`
	Refinement RefinementConfig `mapstructure:"refinement"`
	Rules      RulesConfig      `mapstructure:"rules"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Type     string         `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString builds a pgx connection string.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	// Addr empty disables the feature snapshot cache.
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type NATSConfig struct {
	// URL empty disables event publishing.
	URL  string `mapstructure:"url"`
	Name string `mapstructure:"name"`
}

type ScoringConfig struct {
	// MaxFeatureAge is the freshness policy: re-extraction is skipped when
	// the current snapshot is younger than this.
	MaxFeatureAge time.Duration `mapstructure:"max_feature_age"`
	ApproveAt     int           `mapstructure:"approve_at"`
	RejectBelow   int           `mapstructure:"reject_below"`
}

type VersionsConfig struct {
	// WeightSumTolerance is the allowed relative deviation of a candidate's
	// weight sum from the active version's sum.
	WeightSumTolerance float64 `mapstructure:"weight_sum_tolerance"`
	// MaxWeightChange is the largest allowed per-feature weight delta
	// relative to the version being replaced.
	MaxWeightChange float64 `mapstructure:"max_weight_change"`
}

type RefinementConfig struct {
	BlendFactor    float64 `mapstructure:"blend_factor"`
	MinAUC         float64 `mapstructure:"min_auc"`
	MinImprovement float64 `mapstructure:"min_improvement"`
	MinSamples     int     `mapstructure:"min_samples"`
}

type RulesConfig struct {
	// BootstrapFile is a YAML rule pack imported when the rules table is
	// empty. Empty path skips the import.
	BootstrapFile string `mapstructure:"bootstrap_file"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.port", 8086)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("database.type", "postgres")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.database", "supplyscore")
	v.SetDefault("database.postgres.sslmode", "require")
	v.SetDefault("redis.ttl", "15m")
	v.SetDefault("nats.name", "supplyscore-scoring")
	v.SetDefault("scoring.max_feature_age", "168h")
	v.SetDefault("scoring.approve_at", 650)
	v.SetDefault("scoring.reject_below", 500)
	v.SetDefault("versions.weight_sum_tolerance", 0.10)
	v.SetDefault("versions.max_weight_change", 25.0)
	v.SetDefault("refinement.blend_factor", 0.3)
	v.SetDefault("refinement.min_auc", 0.55)
	v.SetDefault("refinement.min_improvement", 0.005)
	v.SetDefault("refinement.min_samples", 200)
	v.SetDefault("rules.bootstrap_file", "configs/rules.yaml")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/supplyscore/scoring")
	}

	// Environment variables override (SCORING_SERVER_PORT, etc.)
	v.SetEnvPrefix("SCORING")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
