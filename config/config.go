package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joho/godotenv"
)

const (
	StoreDriverMongo  = "mongo"
	StoreDriverMySQL  = "mysql"
	StoreDriverMemory = "memory"

	AssetDriverCloudinary = "cloudinary"
	AssetDriverS3         = "s3"

	minBcryptCost = 10
)

type Config struct {
	App      AppConfig
	Log      LogConfig
	Store    StoreConfig
	JWT      JWTConfig
	Tokens   TokenConfig
	Password PasswordConfig
	Cookie   CookieConfig
	Mail     MailConfig
	Assets   AssetsConfig
	Redis    RedisConfig
	Internal InternalConfig
}

type AppConfig struct {
	HTTPHost       string
	HTTPPort       string
	GRPCHost       string
	GRPCPort       string
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

type StoreConfig struct {
	Driver        string
	MongoURI      string
	MongoDatabase string
	MySQLDSN      string
}

type JWTConfig struct {
	AccessSecret    string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type TokenConfig struct {
	ResetTTL time.Duration
}

type PasswordConfig struct {
	Policy                 PasswordPolicy
	BcryptCost             int
	RevokeSessionsOnChange bool
}

type CookieConfig struct {
	Secure bool
	Domain string
}

type MailConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	From         string
	ResetURLBase string
	Async        bool
}

type AssetsConfig struct {
	Driver     string
	Cloudinary CloudinaryConfig
	S3         S3Config
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

type S3Config struct {
	Region        string
	Bucket        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
}

type RedisConfig struct {
	URL         string
	RateLimit   int
	RateWindow  time.Duration
	BlockPeriod time.Duration
}

type InternalConfig struct {
	APIKey string
}

type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// MaxPasswordBytes is the longest password bcrypt will hash.
const MaxPasswordBytes = 72

func (p PasswordPolicy) Validate(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}
	if len(password) > MaxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes long", MaxPasswordBytes)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasNumber = true
		case unicode.IsPunct(ch) || unicode.IsSymbol(ch):
			hasSpecial = true
		}
	}

	var missing []string
	if p.RequireUppercase && !hasUpper {
		missing = append(missing, "uppercase letter")
	}
	if p.RequireLowercase && !hasLower {
		missing = append(missing, "lowercase letter")
	}
	if p.RequireNumber && !hasNumber {
		missing = append(missing, "number")
	}
	if p.RequireSpecial && !hasSpecial {
		missing = append(missing, "special character")
	}

	if len(missing) > 0 {
		return fmt.Errorf("password must contain at least one: %s", strings.Join(missing, ", "))
	}

	return nil
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignores error if not found)
	_ = godotenv.Load()

	accessSecret := os.Getenv("ACCESS_TOKEN_SECRET")
	if accessSecret == "" {
		return nil, errors.New("ACCESS_TOKEN_SECRET environment variable is required")
	}
	refreshSecret := os.Getenv("REFRESH_TOKEN_SECRET")
	if refreshSecret == "" {
		return nil, errors.New("REFRESH_TOKEN_SECRET environment variable is required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	store, err := loadStore()
	if err != nil {
		return nil, err
	}

	bcryptCost := getIntEnv("BCRYPT_COST", minBcryptCost)
	if bcryptCost < minBcryptCost {
		return nil, fmt.Errorf("BCRYPT_COST must be at least %d", minBcryptCost)
	}

	assets := loadAssets()
	if assets.Driver != AssetDriverCloudinary && assets.Driver != AssetDriverS3 {
		return nil, fmt.Errorf("unsupported ASSET_DRIVER %q", assets.Driver)
	}

	return &Config{
		App: AppConfig{
			HTTPHost:       getEnv("HTTP_HOST", "0.0.0.0"),
			HTTPPort:       getEnv("HTTP_PORT", "8080"),
			GRPCHost:       getEnv("GRPC_HOST", "0.0.0.0"),
			GRPCPort:       getEnv("GRPC_PORT", "9090"),
			AllowedOrigins: getListEnv("ALLOWED_ORIGINS", []string{"http://localhost:5173", "http://localhost:3000"}),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Store: store,
		JWT: JWTConfig{
			AccessSecret:    accessSecret,
			RefreshSecret:   refreshSecret,
			AccessTokenTTL:  getDurationEnv("ACCESS_TOKEN_TTL", 24*time.Hour),
			RefreshTokenTTL: getDurationEnv("REFRESH_TOKEN_TTL", 10*24*time.Hour),
		},
		Tokens: TokenConfig{
			ResetTTL: getDurationEnv("RESET_TOKEN_TTL", 15*time.Minute),
		},
		Password: PasswordConfig{
			Policy:                 loadPasswordPolicy(),
			BcryptCost:             bcryptCost,
			RevokeSessionsOnChange: getBoolEnv("REVOKE_SESSIONS_ON_PASSWORD_CHANGE", false),
		},
		Cookie: CookieConfig{
			Secure: getBoolEnv("COOKIE_SECURE", true),
			Domain: getEnv("COOKIE_DOMAIN", ""),
		},
		Mail: MailConfig{
			Host:         getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:         getEnv("SMTP_PORT", "587"),
			Username:     getEnv("SMTP_EMAIL", ""),
			Password:     getEnv("SMTP_PASSWORD", ""),
			From:         getEnv("MAIL_FROM", getEnv("SMTP_EMAIL", "")),
			ResetURLBase: strings.TrimRight(getEnv("FRONTEND_RESET_URL", "http://localhost:5173"), "/"),
			Async:        getBoolEnv("MAIL_ASYNC", false),
		},
		Assets: assets,
		Redis: RedisConfig{
			URL:         getEnv("REDIS_URL", ""),
			RateLimit:   getIntEnv("RATE_LIMIT_MAX_REQUESTS", 10),
			RateWindow:  getDurationEnv("RATE_LIMIT_WINDOW", 2*time.Minute),
			BlockPeriod: getDurationEnv("RATE_LIMIT_BLOCK", 15*time.Minute),
		},
		Internal: InternalConfig{
			APIKey: getEnv("INTERNAL_API_KEY", ""),
		},
	}, nil
}

func loadStore() (StoreConfig, error) {
	store := StoreConfig{
		Driver:        strings.ToLower(getEnv("STORE_DRIVER", StoreDriverMongo)),
		MongoURI:      os.Getenv("MONGODB_URI"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "videotube"),
		MySQLDSN:      os.Getenv("MYSQL_DSN"),
	}

	switch store.Driver {
	case StoreDriverMongo:
		if store.MongoURI == "" {
			return store, errors.New("MONGODB_URI environment variable is required")
		}
	case StoreDriverMySQL:
		if store.MySQLDSN == "" {
			return store, errors.New("MYSQL_DSN environment variable is required")
		}
	case StoreDriverMemory:
	default:
		return store, fmt.Errorf("unsupported STORE_DRIVER %q", store.Driver)
	}

	return store, nil
}

func loadAssets() AssetsConfig {
	return AssetsConfig{
		Driver: strings.ToLower(getEnv("ASSET_DRIVER", AssetDriverCloudinary)),
		Cloudinary: CloudinaryConfig{
			CloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:    getEnv("CLOUDINARY_API_KEY", ""),
			APISecret: getEnv("CLOUDINARY_API_SECRET", ""),
			Folder:    getEnv("CLOUDINARY_FOLDER", "videotube"),
		},
		S3: S3Config{
			Region:        getEnv("S3_REGION", "us-east-1"),
			Bucket:        getEnv("S3_BUCKET", ""),
			Endpoint:      getEnv("S3_ENDPOINT", ""),
			AccessKey:     getEnv("S3_ACCESS_KEY", ""),
			SecretKey:     getEnv("S3_SECRET_KEY", ""),
			PublicBaseURL: strings.TrimRight(getEnv("S3_PUBLIC_BASE_URL", ""), "/"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func loadPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        getIntEnv("PASSWORD_MIN_LENGTH", 8),
		RequireUppercase: getBoolEnv("PASSWORD_REQUIRE_UPPERCASE", true),
		RequireLowercase: getBoolEnv("PASSWORD_REQUIRE_LOWERCASE", true),
		RequireNumber:    getBoolEnv("PASSWORD_REQUIRE_NUMBER", true),
		RequireSpecial:   getBoolEnv("PASSWORD_REQUIRE_SPECIAL", true),
	}
}
