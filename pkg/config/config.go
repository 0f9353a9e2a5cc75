package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppPort  string `mapstructure:"APP_PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Database
	DBDriver   string `mapstructure:"DB_DRIVER"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	SQLitePath string `mapstructure:"SQLITE_PATH"`

	// Auth
	JWTSecret    string `mapstructure:"JWT_SECRET"`
	JWTExpireMin int    `mapstructure:"JWT_EXPIRE_MIN"`

	// Booking events, disabled when AMQP_URL is empty
	AMQPURL      string `mapstructure:"AMQP_URL"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE"`

	// Zone slot times are written in, an IANA name
	SlotTimezone string `mapstructure:"SLOT_TIMEZONE"`

	RateLimitPerMin int    `mapstructure:"RATE_LIMIT_PER_MIN"`
	CORSOrigins     string `mapstructure:"CORS_ORIGINS"`
	SeedData        bool   `mapstructure:"SEED_DATA"`
}

var defaults = map[string]interface{}{
	"APP_PORT":           "8080",
	"ENV":                "development",
	"LOG_LEVEL":          "info",
	"DB_DRIVER":          "postgres",
	"DB_HOST":            "postgres",
	"DB_PORT":            "5432",
	"DB_USER":            "program",
	"DB_PASSWORD":        "test",
	"DB_NAME":            "petsitter",
	"SQLITE_PATH":        "petsitter.db",
	"JWT_SECRET":         "",
	"JWT_EXPIRE_MIN":     60 * 24,
	"AMQP_URL":           "",
	"AMQP_EXCHANGE":      "petsitter.events",
	"SLOT_TIMEZONE":      "UTC",
	"RATE_LIMIT_PER_MIN": 300,
	"CORS_ORIGINS":       "*",
	"SEED_DATA":          false,
}

// Load reads configuration from defaults, an optional config.yaml and the environment.
// A .env file in the working directory is loaded into the environment first.
func Load() (Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// SlotLocation resolves SlotTimezone.
func (c Config) SlotLocation() (*time.Location, error) {
	if c.SlotTimezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.SlotTimezone)
}

func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
