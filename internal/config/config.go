package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	Sync     SyncConfig     `mapstructure:"sync"`
	AI       AIConfig       `mapstructure:"ai"`
	Security SecurityConfig `mapstructure:"security"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Store drivers.
const (
	DriverFile   = "file"
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
	DriverS3     = "s3"
)

// StoreConfig selects where the four records live.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Dir    string `mapstructure:"dir"` // record directory for the file driver
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// DatabaseConfig is the MongoDB connection for the mongo driver.
type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	Prefix          string `mapstructure:"prefix"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// SyncConfig controls cross-context change notifications.
type SyncConfig struct {
	Namespace string      `mapstructure:"namespace"` // pub/sub channel name
	Redis     RedisConfig `mapstructure:"redis"`
}

// RedisConfig enables cross-process pub/sub when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AI providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type AIConfig struct {
	Provider         string `mapstructure:"provider"`
	Model            string `mapstructure:"model"`
	BaseURL          string `mapstructure:"base_url"`          // OpenAI-compatible endpoint override
	StructuredOutput bool   `mapstructure:"structured_output"` // request a JSON schema response format
}

// SecurityConfig: when Passphrase is set the stored credential is sealed at rest.
type SecurityConfig struct {
	Passphrase string `mapstructure:"passphrase"`
}

type TrackingConfig struct {
	Timezone string `mapstructure:"timezone"` // IANA name used for "today"; empty means local
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Location resolves the tracking time zone.
func (t TrackingConfig) Location() (*time.Location, error) {
	if t.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(t.Timezone)
}

// LoadConfig reads configuration from a .env file, a config file and environment variables,
// in increasing order of precedence.
func LoadConfig(path string) (config Config, err error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		err = nil
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	return config, config.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "127.0.0.1:8080")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("store.driver", DriverFile)
	v.SetDefault("store.dir", ".fitflow")
	v.SetDefault("sqlite.path", "fitflow.db")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "fitflow")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.prefix", "fitflow")
	v.SetDefault("sync.namespace", "fitflow-sync")
	v.SetDefault("sync.redis.addr", "")
	v.SetDefault("sync.redis.password", "")
	v.SetDefault("sync.redis.db", 0)
	v.SetDefault("ai.provider", ProviderGemini)
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.structured_output", false)
	v.SetDefault("security.passphrase", "")
	v.SetDefault("tracking.timezone", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Validate rejects settings that cannot work.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverFile, DriverMemory, DriverSQLite, DriverMongo, DriverS3:
	default:
		return errors.New("store.driver must be one of file, memory, sqlite, mongo, s3")
	}
	switch c.AI.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return errors.New("ai.provider must be gemini or openai")
	}
	if c.Sync.Namespace == "" {
		return errors.New("sync.namespace is required")
	}
	if _, err := c.Tracking.Location(); err != nil {
		return err
	}
	return nil
}
