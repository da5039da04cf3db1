package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"blink-market/internal/models"
	"blink-market/internal/services"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"db"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Betting     BettingConfig     `mapstructure:"betting"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Sweeper     SweeperConfig     `mapstructure:"sweeper"`
	SocialGraph SocialGraphConfig `mapstructure:"socialgraph"`
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name      string        `mapstructure:"name"`
	Env       string        `mapstructure:"env"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	// Wallets allowed to cancel markets.
	AdminWallets []string `mapstructure:"admin_wallets"`
	// Wallets allowed to settle markets by oracle override.
	OracleWallets []string `mapstructure:"oracle_wallets"`
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port        string   `mapstructure:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres | sqlite
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig enables the Redis lock, nonce store and event channel when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// KafkaConfig enables the Kafka event publisher when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// BettingConfig holds the economic limits. Amounts are decimal strings in
// whole units, e.g. "0.01".
type BettingConfig struct {
	MinBet            string `mapstructure:"min_bet"`
	MaxBet            string `mapstructure:"max_bet"`
	HouseEdgeBps      int64  `mapstructure:"house_edge_bps"`
	MinCreatorStake   string `mapstructure:"min_creator_stake"`
	MaxCreatorStake   string `mapstructure:"max_creator_stake"`
	CreatorRewardBps  int64  `mapstructure:"creator_reward_bps"`
	MinActivityVolume string `mapstructure:"min_activity_volume"`
}

// LedgerConfig controls the per-market atomic scope.
type LedgerConfig struct {
	LockBackend string        `mapstructure:"lock_backend"` // local | redis
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Backoff     time.Duration `mapstructure:"backoff"`
}

// SweeperConfig schedules automatic settlement.
type SweeperConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Schedule    string        `mapstructure:"schedule"`
	GracePeriod time.Duration `mapstructure:"grace_period"`
	BatchSize   int           `mapstructure:"batch_size"`
}

// SocialGraphConfig holds metrics provider settings
type SocialGraphConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "blink-market")
	v.SetDefault("app.env", "production")
	v.SetDefault("app.jwt_secret", "")
	v.SetDefault("app.token_ttl", "24h")
	v.SetDefault("app.admin_wallets", []string{})
	v.SetDefault("app.oracle_wallets", []string{})

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "blink_market")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.sqlite_path", "blink-market.db")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "blink:")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "blink.market-events")

	v.SetDefault("betting.min_bet", "0.01")
	v.SetDefault("betting.max_bet", "1000")
	v.SetDefault("betting.house_edge_bps", 300)
	v.SetDefault("betting.min_creator_stake", "5")
	v.SetDefault("betting.max_creator_stake", "1000")
	v.SetDefault("betting.creator_reward_bps", 100)
	v.SetDefault("betting.min_activity_volume", "100")

	v.SetDefault("ledger.lock_backend", "local")
	v.SetDefault("ledger.lock_ttl", "10s")
	v.SetDefault("ledger.max_retries", 3)
	v.SetDefault("ledger.backoff", "20ms")

	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.schedule", "@every 1m")
	v.SetDefault("sweeper.grace_period", "24h")
	v.SetDefault("sweeper.batch_size", 100)

	v.SetDefault("socialgraph.base_url", "http://localhost:8090")
	v.SetDefault("socialgraph.api_key", "")
	v.SetDefault("socialgraph.secret", "")
	v.SetDefault("socialgraph.timeout", "10s")
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read reads configuration without validating it. A .env file in the
// working directory is loaded first if present. Keys map to upper-case
// variables with dots replaced by underscores, e.g. db.host is DB_HOST and
// betting.house_edge_bps is BETTING_HOUSE_EDGE_BPS.
func Read() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values that would make the service unsafe to start.
func (c *Config) Validate() error {
	var errs []error
	if c.App.JWTSecret == "" {
		errs = append(errs, errors.New("APP_JWT_SECRET is required"))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.Database.Driver))
	}
	switch c.Ledger.LockBackend {
	case "local":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("LEDGER_LOCK_BACKEND=redis requires REDIS_ADDR"))
		}
	default:
		errs = append(errs, fmt.Errorf("LEDGER_LOCK_BACKEND must be local or redis, got %q", c.Ledger.LockBackend))
	}
	if _, err := c.Betting.Policy(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Policy converts the betting section into the policy used by the services.
func (b BettingConfig) Policy() (services.BettingPolicy, error) {
	var p services.BettingPolicy
	var err error
	parse := func(name, s string) models.Amount {
		if err != nil {
			return 0
		}
		var a models.Amount
		a, err = models.ParseAmount(s)
		if err != nil {
			err = fmt.Errorf("betting.%s: %w", name, err)
		}
		return a
	}
	p.MinBet = parse("min_bet", b.MinBet)
	p.MaxBet = parse("max_bet", b.MaxBet)
	p.MinCreatorStake = parse("min_creator_stake", b.MinCreatorStake)
	p.MaxCreatorStake = parse("max_creator_stake", b.MaxCreatorStake)
	p.MinActivityVolume = parse("min_activity_volume", b.MinActivityVolume)
	if err != nil {
		return services.BettingPolicy{}, err
	}
	p.HouseEdgeBps = b.HouseEdgeBps
	p.CreatorRewardBps = b.CreatorRewardBps

	switch {
	case p.MinBet <= 0:
		return services.BettingPolicy{}, errors.New("betting.min_bet must be positive")
	case p.MaxBet < p.MinBet:
		return services.BettingPolicy{}, errors.New("betting.max_bet must not be below min_bet")
	case p.HouseEdgeBps < 0 || p.HouseEdgeBps >= 10000:
		return services.BettingPolicy{}, fmt.Errorf("betting.house_edge_bps must be in [0, 10000), got %d", p.HouseEdgeBps)
	case p.CreatorRewardBps < 0 || p.CreatorRewardBps >= 10000:
		return services.BettingPolicy{}, fmt.Errorf("betting.creator_reward_bps must be in [0, 10000), got %d", p.CreatorRewardBps)
	case p.MaxCreatorStake < p.MinCreatorStake:
		return services.BettingPolicy{}, errors.New("betting.max_creator_stake must not be below min_creator_stake")
	}
	return p, nil
}

// GetDSN returns the connection string for the configured driver.
func (c *Config) GetDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
