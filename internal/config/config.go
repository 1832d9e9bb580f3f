package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Server
	Env           string
	Port          string
	PublicBaseURL string

	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBPath     string
	DBLog      bool

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Accounts
	SignupSecretCode string
	AdminEmail       string
	AdminPassword    string

	// Receipts
	UploadDir      string
	MaxUploadBytes int64

	// Ledger
	DisplayTimezone   *time.Location
	ReconcileInterval time.Duration
	PipelineAPIKey    string
}

var appConfig *Config

// Load loads configuration from a .env file, an optional config.yaml and
// environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("Warning: could not read config.yaml: %v\n", err)
		}
	}

	config := &Config{
		Env:           v.GetString("ENV"),
		Port:          v.GetString("PORT"),
		PublicBaseURL: strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),

		DBDriver:   strings.ToLower(v.GetString("DB_DRIVER")),
		DBHost:     v.GetString("DB_HOST"),
		DBPort:     v.GetString("DB_PORT"),
		DBUser:     v.GetString("DB_USER"),
		DBPassword: v.GetString("DB_PASSWORD"),
		DBName:     v.GetString("DB_NAME"),
		DBSSLMode:  v.GetString("DB_SSLMODE"),
		DBPath:     v.GetString("DB_PATH"),
		DBLog:      v.GetBool("DB_LOG"),

		JWTSecret: v.GetString("JWT_SECRET"),

		SignupSecretCode: v.GetString("SIGNUP_SECRET_CODE"),
		AdminEmail:       strings.ToLower(strings.TrimSpace(v.GetString("ADMIN_EMAIL"))),
		AdminPassword:    v.GetString("ADMIN_PASSWORD"),

		UploadDir:      v.GetString("UPLOAD_DIR"),
		MaxUploadBytes: v.GetInt64("MAX_UPLOAD_MB") << 20,

		PipelineAPIKey: v.GetString("PIPELINE_API_KEY"),
	}

	// Parse JWT expiration duration
	expStr := v.GetString("JWT_EXPIRES_IN")
	expDur, err := time.ParseDuration(expStr)
	if err != nil {
		log.Printf("Warning: invalid JWT_EXPIRES_IN value '%s', falling back to 24h\n", expStr)
		expDur = 24 * time.Hour
	}
	config.JWTExpirationDur = expDur

	interval, err := time.ParseDuration(v.GetString("RECONCILE_INTERVAL"))
	if err != nil {
		log.Printf("Warning: invalid RECONCILE_INTERVAL value '%s', falling back to 1h\n", v.GetString("RECONCILE_INTERVAL"))
		interval = time.Hour
	}
	config.ReconcileInterval = interval

	tzName := v.GetString("DISPLAY_TIMEZONE")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		log.Printf("Warning: unknown DISPLAY_TIMEZONE '%s', falling back to UTC\n", tzName)
		loc = time.UTC
	}
	config.DisplayTimezone = loc

	appConfig = config
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("PUBLIC_BASE_URL", "")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "cashbook")
	v.SetDefault("DB_PASSWORD", "cashbook")
	v.SetDefault("DB_NAME", "cashbook")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_PATH", "data/cashbook.db")
	v.SetDefault("DB_LOG", false)

	v.SetDefault("JWT_SECRET", "fallback-secret-key-for-dev-only")
	v.SetDefault("JWT_EXPIRES_IN", "168h")

	v.SetDefault("SIGNUP_SECRET_CODE", "")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")

	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("MAX_UPLOAD_MB", 10)

	v.SetDefault("DISPLAY_TIMEZONE", "Asia/Kolkata")
	v.SetDefault("RECONCILE_INTERVAL", "1h")
	v.SetDefault("PIPELINE_API_KEY", "")
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// Set replaces the process-wide configuration. Tests use it to pin values
// without touching the environment.
func Set(c *Config) {
	appConfig = c
}
