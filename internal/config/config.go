package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env       string          `mapstructure:"env"`
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	School    SchoolConfig    `mapstructure:"school"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Sequences SequencesConfig `mapstructure:"sequences"`
	Events    EventsConfig    `mapstructure:"events"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Port            string   `mapstructure:"port"`
	ReadTimeout     int      `mapstructure:"read_timeout_seconds"`
	WriteTimeout    int      `mapstructure:"write_timeout_seconds"`
	IdleTimeout     int      `mapstructure:"idle_timeout_seconds"`
	ShutdownTimeout int      `mapstructure:"shutdown_timeout_seconds"`
	CORSOrigins     []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            string `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time_seconds"`
}

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	// TxMaxAttempts bounds the retries of one transactional update.
	TxMaxAttempts int    `mapstructure:"tx_max_attempts"`
	ReceiptsDir   string `mapstructure:"receipts_dir"`
	FormsDir      string `mapstructure:"forms_dir"`
}

type SchoolConfig struct {
	Name     string `mapstructure:"name"`
	Address  string `mapstructure:"address"`
	LogoPath string `mapstructure:"logo_path"`
	Timezone string `mapstructure:"timezone"`
}

type AuthConfig struct {
	Login        string `mapstructure:"login"`
	Password     string `mapstructure:"password"`
	PasswordHash string `mapstructure:"password_hash"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	TokenTTL     int    `mapstructure:"token_ttl_minutes"`
	SecureCookie bool   `mapstructure:"secure_cookie"`
}

type SequencesConfig struct {
	ReceiptFloor     int64 `mapstructure:"receipt_floor"`
	BillFloor        int64 `mapstructure:"bill_floor"`
	AdmissionFloor   int64 `mapstructure:"admission_floor"`
	AdmissionNoWidth int   `mapstructure:"admission_no_width"`
}

const (
	EventsNone  = "none"
	EventsNATS  = "nats"
	EventsKafka = "kafka"
)

type EventsConfig struct {
	Driver string      `mapstructure:"driver"`
	NATS   NATSConfig  `mapstructure:"nats"`
	Kafka  KafkaConfig `mapstructure:"kafka"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type RedisConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	KeyPrefix  string `mapstructure:"key_prefix"`
	DueListTTL int    `mapstructure:"due_list_ttl_seconds"`
}

type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Endpoint       string `mapstructure:"endpoint"`
	ExportInterval int    `mapstructure:"export_interval_seconds"`
}

// setDefaults gives every key a default, so that AutomaticEnv can override
// keys missing from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 30)
	v.SetDefault("server.idle_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "wisdom")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("database.max_idle_conns", 0)
	v.SetDefault("database.conn_max_lifetime_seconds", 0)
	v.SetDefault("database.conn_max_idle_time_seconds", 0)

	v.SetDefault("storage.driver", StorageMemory)
	v.SetDefault("storage.tx_max_attempts", 5)
	v.SetDefault("storage.receipts_dir", "./data/receipts")
	v.SetDefault("storage.forms_dir", "./data/registration_forms")

	v.SetDefault("school.name", "Wisdom School")
	v.SetDefault("school.address", "")
	v.SetDefault("school.logo_path", "")
	v.SetDefault("school.timezone", "Asia/Kolkata")

	v.SetDefault("auth.login", "frontoffice")
	v.SetDefault("auth.password", "")
	v.SetDefault("auth.password_hash", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl_minutes", 480)
	v.SetDefault("auth.secure_cookie", false)

	v.SetDefault("sequences.receipt_floor", 10000)
	v.SetDefault("sequences.bill_floor", 1000)
	v.SetDefault("sequences.admission_floor", 0)
	v.SetDefault("sequences.admission_no_width", 4)

	v.SetDefault("events.driver", EventsNone)
	v.SetDefault("events.nats.url", "nats://localhost:4222")
	v.SetDefault("events.nats.subject_prefix", "wisdom.front_office")
	v.SetDefault("events.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("events.kafka.topic", "front-office-events")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "wisdom:")
	v.SetDefault("redis.due_list_ttl_seconds", 300)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.export_interval_seconds", 10)
}

func Load() (*Config, error) {
	// Get environment from ENV, default to "local"
	env := os.Getenv("ENV")
	if env == "" {
		env = "local"
	}
	return LoadFrom(env,
		"/configs",      // Kubernetes mount
		"./configs",     // repository root
		"../../configs", // cmd/server
	)
}

// LoadFrom reads config.<env>.yaml from the first path that has it. The file
// is optional. Environment variables override it, with dots in keys written
// as underscores (AUTH_JWT_SECRET, STORAGE_DRIVER).
func LoadFrom(env string, paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.Set("env", env)

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("database.user", "DB_USER")
	_ = v.BindEnv("database.password", "DB_PASSWORD")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET", "AUTH_JWT_SECRET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case StorageMemory, StoragePostgres:
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %s or %s, got %q", StorageMemory, StoragePostgres, c.Storage.Driver))
	}
	switch c.Events.Driver {
	case EventsNone, EventsNATS, EventsKafka:
	default:
		errs = append(errs, fmt.Errorf("events.driver must be %s, %s or %s, got %q", EventsNone, EventsNATS, EventsKafka, c.Events.Driver))
	}
	if c.Auth.Login == "" {
		errs = append(errs, errors.New("auth.login is required"))
	}
	if c.Auth.Password == "" && c.Auth.PasswordHash == "" {
		errs = append(errs, errors.New("auth.password or auth.password_hash is required"))
	}
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("auth.jwt_secret must be at least 16 characters"))
	}
	if _, err := time.LoadLocation(c.School.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("school.timezone: %w", err))
	}

	return errors.Join(errs...)
}

// Location is the school's timezone. It decides calendar days for visitor
// logs and due dates.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.School.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c AuthConfig) TTL() time.Duration {
	return time.Duration(c.TokenTTL) * time.Minute
}
