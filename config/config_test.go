package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func chdirTemp(t *testing.T) string {
	t.Helper()

	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd failed: %v", err)
	}
	tmp := t.TempDir()
	if err := os.Chdir(tmp); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(origDir)
	})
	return tmp
}

func setRequiredEnv(t *testing.T) {
	t.Helper()

	t.Setenv("ACCESS_TOKEN_SECRET", "access-secret")
	t.Setenv("REFRESH_TOKEN_SECRET", "refresh-secret")
	t.Setenv("STORE_DRIVER", "mongo")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("ASSET_DRIVER", "")
	t.Setenv("BCRYPT_COST", "")
}

func TestPasswordPolicyValidate(t *testing.T) {
	policy := PasswordPolicy{
		MinLength:        8,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumber:    true,
		RequireSpecial:   true,
	}

	if err := policy.Validate("short"); err == nil {
		t.Fatalf("expected error for short password")
	}
	if err := policy.Validate("lowercase1!"); err == nil {
		t.Fatalf("expected error for missing uppercase")
	}
	if err := policy.Validate("UPPERCASE1!"); err == nil {
		t.Fatalf("expected error for missing lowercase")
	}
	if err := policy.Validate("NoNumber!"); err == nil {
		t.Fatalf("expected error for missing number")
	}
	if err := policy.Validate("NoSpecial1"); err == nil {
		t.Fatalf("expected error for missing special")
	}
	if err := policy.Validate("NewPass1!"); err != nil {
		t.Fatalf("expected valid password, got %v", err)
	}
}

func TestPasswordPolicyValidate_MaxBytes(t *testing.T) {
	policy := PasswordPolicy{MinLength: 8, RequireNumber: true}

	atLimit := "Aa1!" + strings.Repeat("x", MaxPasswordBytes-4)
	if err := policy.Validate(atLimit); err != nil {
		t.Fatalf("expected %d byte password to be valid, got %v", len(atLimit), err)
	}
	if err := policy.Validate(atLimit + "x"); err == nil {
		t.Fatalf("expected error for password over %d bytes", MaxPasswordBytes)
	}
	// multi-byte runes count by their encoded length
	if err := policy.Validate("Aa1!" + strings.Repeat("é", 35)); err == nil {
		t.Fatalf("expected error for password over %d bytes", MaxPasswordBytes)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STRING", "value")
	if got := getEnv("TEST_STRING", "default"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
	if got := getEnv("MISSING_STRING", "default"); got != "default" {
		t.Fatalf("expected default, got %q", got)
	}

	t.Setenv("TEST_DURATION", "30")
	if got := getDurationEnv("TEST_DURATION", 5*time.Minute); got != 30*time.Minute {
		t.Fatalf("expected 30m, got %v", got)
	}
	t.Setenv("TEST_DURATION", "invalid")
	if got := getDurationEnv("TEST_DURATION", 5*time.Minute); got != 5*time.Minute {
		t.Fatalf("expected default duration, got %v", got)
	}

	t.Setenv("TEST_BOOL", "true")
	if got := getBoolEnv("TEST_BOOL", false); got != true {
		t.Fatalf("expected true, got %v", got)
	}
	t.Setenv("TEST_BOOL", "invalid")
	if got := getBoolEnv("TEST_BOOL", true); got != true {
		t.Fatalf("expected default bool, got %v", got)
	}

	t.Setenv("TEST_INT", "42")
	if got := getIntEnv("TEST_INT", 5); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
	t.Setenv("TEST_INT", "invalid")
	if got := getIntEnv("TEST_INT", 5); got != 5 {
		t.Fatalf("expected default int, got %d", got)
	}

	t.Setenv("TEST_LIST", " a , ,b ")
	if got := getListEnv("TEST_LIST", nil); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected list: %v", got)
	}
	t.Setenv("TEST_LIST", " , ")
	if got := getListEnv("TEST_LIST", []string{"x"}); len(got) != 1 || got[0] != "x" {
		t.Fatalf("expected default list, got %v", got)
	}
}

func TestLoadRequiresAccessSecret(t *testing.T) {
	chdirTemp(t)
	setRequiredEnv(t)
	t.Setenv("ACCESS_TOKEN_SECRET", "")

	if cfg, err := Load(); err == nil || cfg != nil {
		t.Fatalf("expected error when ACCESS_TOKEN_SECRET is missing")
	}
}

func TestLoadRequiresRefreshSecret(t *testing.T) {
	chdirTemp(t)
	setRequiredEnv(t)
	t.Setenv("REFRESH_TOKEN_SECRET", "")

	if cfg, err := Load(); err == nil || cfg != nil {
		t.Fatalf("expected error when REFRESH_TOKEN_SECRET is missing")
	}
}

func TestLoadRejectsSharedSecret(t *testing.T) {
	chdirTemp(t)
	setRequiredEnv(t)
	t.Setenv("REFRESH_TOKEN_SECRET", "access-secret")

	if cfg, err := Load(); err == nil || cfg != nil {
		t.Fatalf("expected error when secrets are equal")
	}
}

func TestLoadRequiresStoreLocation(t *testing.T) {
	chdirTemp(t)
	setRequiredEnv(t)
	t.Setenv("MONGODB_URI", "")
	if cfg, err := Load(); err == nil || cfg != nil {
		t.Fatalf("expected error when MONGODB_URI is missing")
	}

	t.Setenv("STORE_DRIVER", "mysql")
	t.Setenv("MYSQL_DSN", "")
	if cfg, err := Load(); err == nil || cfg != nil {
		t.Fatalf("expected error when MYSQL_DSN is missing")
	}

	t.Setenv("STORE_DRIVER", "postgres")
	if cfg, err := Load(); err == nil || cfg != nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

func TestLoadRejectsLowBcryptCost(t *testing.T) {
	chdirTemp(t)
	setRequiredEnv(t)
	t.Setenv("BCRYPT_COST", "4")

	if cfg, err := Load(); err == nil || cfg != nil {
		t.Fatalf("expected error for bcrypt cost below minimum")
	}
}

func TestLoadRejectsUnknownAssetDriver(t *testing.T) {
	chdirTemp(t)
	setRequiredEnv(t)
	t.Setenv("ASSET_DRIVER", "ftp")

	if cfg, err := Load(); err == nil || cfg != nil {
		t.Fatalf("expected error for unsupported asset driver")
	}
}

func TestLoadSuccess(t *testing.T) {
	chdirTemp(t)
	setRequiredEnv(t)
	t.Setenv("STORE_DRIVER", "MySQL")
	t.Setenv("MYSQL_DSN", "user:pass@tcp(db:3306)/identity?parseTime=true")
	t.Setenv("HTTP_PORT", "8081")
	t.Setenv("GRPC_PORT", "9091")
	t.Setenv("ACCESS_TOKEN_TTL", "20")
	t.Setenv("REFRESH_TOKEN_TTL", "60")
	t.Setenv("RESET_TOKEN_TTL", "30")
	t.Setenv("BCRYPT_COST", "12")
	t.Setenv("REVOKE_SESSIONS_ON_PASSWORD_CHANGE", "true")
	t.Setenv("MAIL_ASYNC", "true")
	t.Setenv("FRONTEND_RESET_URL", "https://videotube.example/")
	t.Setenv("PASSWORD_MIN_LENGTH", "10")
	t.Setenv("PASSWORD_REQUIRE_UPPERCASE", "false")
	t.Setenv("PASSWORD_REQUIRE_LOWERCASE", "true")
	t.Setenv("PASSWORD_REQUIRE_NUMBER", "false")
	t.Setenv("PASSWORD_REQUIRE_SPECIAL", "false")
	t.Setenv("ASSET_DRIVER", "s3")
	t.Setenv("S3_PUBLIC_BASE_URL", "https://cdn.example/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.App.HTTPPort != "8081" || cfg.App.GRPCPort != "9091" {
		t.Fatalf("unexpected ports: %s %s", cfg.App.HTTPPort, cfg.App.GRPCPort)
	}
	if cfg.Store.Driver != StoreDriverMySQL || cfg.Store.MySQLDSN != "user:pass@tcp(db:3306)/identity?parseTime=true" {
		t.Fatalf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.JWT.AccessTokenTTL != 20*time.Minute || cfg.JWT.RefreshTokenTTL != 60*time.Minute {
		t.Fatalf("unexpected jwt ttl: %v %v", cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL)
	}
	if cfg.Tokens.ResetTTL != 30*time.Minute {
		t.Fatalf("unexpected reset ttl: %v", cfg.Tokens.ResetTTL)
	}
	if cfg.Password.BcryptCost != 12 || !cfg.Password.RevokeSessionsOnChange {
		t.Fatalf("unexpected password config: %+v", cfg.Password)
	}
	if !cfg.Mail.Async || cfg.Mail.ResetURLBase != "https://videotube.example" {
		t.Fatalf("unexpected mail config: %+v", cfg.Mail)
	}
	if cfg.Assets.Driver != AssetDriverS3 || cfg.Assets.S3.PublicBaseURL != "https://cdn.example" {
		t.Fatalf("unexpected assets config: %+v", cfg.Assets)
	}
	if cfg.Password.Policy.MinLength != 10 ||
		cfg.Password.Policy.RequireUppercase != false ||
		cfg.Password.Policy.RequireLowercase != true ||
		cfg.Password.Policy.RequireNumber != false ||
		cfg.Password.Policy.RequireSpecial != false {
		t.Fatalf("unexpected password policy: %+v", cfg.Password.Policy)
	}
}

func TestLoadUsesDefaults(t *testing.T) {
	chdirTemp(t)
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.App.HTTPPort == "" || cfg.App.GRPCPort == "" {
		t.Fatalf("expected default ports to be populated")
	}
	if cfg.Tokens.ResetTTL != 15*time.Minute {
		t.Fatalf("expected 15m reset ttl, got %v", cfg.Tokens.ResetTTL)
	}
	if cfg.Password.BcryptCost != 10 || cfg.Password.RevokeSessionsOnChange {
		t.Fatalf("unexpected password defaults: %+v", cfg.Password)
	}
	if !cfg.Cookie.Secure {
		t.Fatalf("expected secure cookies by default")
	}
	if cfg.Assets.Driver != AssetDriverCloudinary {
		t.Fatalf("expected cloudinary asset driver, got %s", cfg.Assets.Driver)
	}
}

func TestLoadRespectsEnvFileLocation(t *testing.T) {
	tmp := chdirTemp(t)
	setRequiredEnv(t)
	t.Setenv("ACCESS_TOKEN_SECRET", "")
	t.Setenv("HTTP_PORT", "")
	_ = os.Unsetenv("ACCESS_TOKEN_SECRET")
	_ = os.Unsetenv("HTTP_PORT")

	envPath := filepath.Join(tmp, ".env")
	if err := os.WriteFile(envPath, []byte("ACCESS_TOKEN_SECRET=envfile-secret\nHTTP_PORT=9099\n"), 0600); err != nil {
		t.Fatalf("write .env failed: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.JWT.AccessSecret != "envfile-secret" || cfg.App.HTTPPort != "9099" {
		t.Fatalf("expected env file values, got %s %s", cfg.JWT.AccessSecret, cfg.App.HTTPPort)
	}
}
