// Package config carga la configuración del servicio: YAML + overrides por
// variables de entorno. Todos los tunables de negocio (TTLs de sesión,
// política de lockout, breaker de provisioning) viven acá.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Store     StoreConfig     `yaml:"store"`
	Cache     CacheConfig     `yaml:"cache"`
	Auth      AuthConfig      `yaml:"auth"`
	MFA       MFAConfig       `yaml:"mfa"`
	Evidence  EvidenceConfig  `yaml:"evidence"`
	Provision ProvisionConfig `yaml:"provision"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	SMS       SMSConfig       `yaml:"sms"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Env   string `yaml:"env"`   // "dev" | "prod"
	Level string `yaml:"level"` // "debug" | "info" | "warn" | "error"
}

type StoreConfig struct {
	// Driver: "memory" (default, dev/tests) | "postgres".
	Driver      string `yaml:"driver"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

type CacheConfig struct {
	// Driver: "memory" (default) | "redis".
	Driver        string `yaml:"driver"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

type AuthConfig struct {
	Issuer string `yaml:"issuer"`

	// TTLs por tipo de credencial.
	AccessTTL    time.Duration `yaml:"access_ttl"`    // password/biometric
	DIDTTL       time.Duration `yaml:"did_ttl"`       // 24h
	FederatedTTL time.Duration `yaml:"federated_ttl"` // 8h
	ServiceTTL   time.Duration `yaml:"service_ttl"`   // 1h
	RefreshBytes int           `yaml:"refresh_bytes"`

	// Lockout policy. El umbral exacto no está fijado por el sistema
	// original: queda configurable; 0 deshabilita el lockout automático.
	LockoutThreshold int           `yaml:"lockout_threshold"`
	LockoutDuration  time.Duration `yaml:"lockout_duration"`

	// PasswordScheme: "sha512" (compatibilidad) | "argon2id".
	PasswordScheme string `yaml:"password_scheme"`

	// VerifyFederatedTokens: false = decodificar claims sin verificar firma
	// (trust boundary interno, comportamiento original). Cerrar antes de
	// exponer el endpoint federado externamente.
	VerifyFederatedTokens bool `yaml:"verify_federated_tokens"`

	// BiometricThreshold es el umbral de similitud de match.
	BiometricThreshold float64 `yaml:"biometric_threshold"`
}

type MFAConfig struct {
	Issuer          string        `yaml:"issuer"` // otpauth issuer label
	ChallengeTTL    time.Duration `yaml:"challenge_ttl"`
	ChallengeDigits int           `yaml:"challenge_digits"`
	BackupCodeCount int           `yaml:"backup_code_count"`
	TOTPWindow      int           `yaml:"totp_window"` // ± steps
}

type EvidenceConfig struct {
	Issuer         string `yaml:"issuer"`
	KeyID          string `yaml:"key_id"`
	PrivateKeyFile string `yaml:"private_key_file"` // PEM EC P-256
}

type ProvisionConfig struct {
	Enabled bool `yaml:"enabled"`

	// AccountServiceURL del servicio externo de cuentas; vacío = cliente
	// simulado (dev).
	AccountServiceURL string        `yaml:"account_service_url"`
	APIKey            string        `yaml:"api_key"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`

	Currency          string        `yaml:"currency"`
	MaxAttempts       int           `yaml:"max_attempts"`
	InitialDelay      time.Duration `yaml:"initial_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	Jitter            bool          `yaml:"jitter"`
	BreakerThreshold  int           `yaml:"breaker_threshold"`
	BreakerCooldown   time.Duration `yaml:"breaker_cooldown"`
	SweepLimit        int           `yaml:"sweep_limit"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type SMSConfig struct {
	// Gateway URL del proveedor SMS; vacío = log-only (dev).
	GatewayURL string `yaml:"gateway_url"`
	APIKey     string `yaml:"api_key"`
}

type LedgerConfig struct {
	// URL del transaction-log externo; vacío = noop.
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type RateLimitConfig struct {
	// Enabled activa el límite por IP sobre /v1/auth. Con cache redis el
	// contador se comparte entre instancias; con memory es por proceso.
	Enabled bool          `yaml:"enabled"`
	Max     int64         `yaml:"max"`
	Window  time.Duration `yaml:"window"`
}

// Defaults retorna la configuración por defecto (perfil dev).
func Defaults() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Env: "dev", Level: "info"},
		Store:  StoreConfig{Driver: "memory"},
		Cache:  CacheConfig{Driver: "memory"},
		Auth: AuthConfig{
			Issuer:             "idcore",
			AccessTTL:          time.Hour,
			DIDTTL:             24 * time.Hour,
			FederatedTTL:       8 * time.Hour,
			ServiceTTL:         time.Hour,
			RefreshBytes:       48,
			LockoutThreshold:   5,
			LockoutDuration:    15 * time.Minute,
			PasswordScheme:     "sha512",
			BiometricThreshold: 0.85,
		},
		MFA: MFAConfig{
			Issuer:          "idcore",
			ChallengeTTL:    10 * time.Minute,
			ChallengeDigits: 6,
			BackupCodeCount: 10,
			TOTPWindow:      1,
		},
		Evidence: EvidenceConfig{Issuer: "idcore", KeyID: "evidence-1"},
		Provision: ProvisionConfig{
			Enabled:           true,
			RequestTimeout:    10 * time.Second,
			Currency:          "USD",
			MaxAttempts:       3,
			InitialDelay:      500 * time.Millisecond,
			MaxDelay:          10 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
			BreakerThreshold:  5,
			BreakerCooldown:   60 * time.Second,
			SweepLimit:        100,
		},
		Ledger: LedgerConfig{Timeout: 5 * time.Second},
		RateLimit: RateLimitConfig{
			Enabled: true,
			Max:     30,
			Window:  time.Minute,
		},
	}
}

// Load lee el YAML (si path != "") sobre los defaults y aplica overrides de
// entorno al final.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("IDCORE_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("IDCORE_LOG_ENV"); v != "" {
		c.Log.Env = v
	}
	if v := os.Getenv("IDCORE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("IDCORE_STORE_DRIVER"); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv("IDCORE_POSTGRES_DSN"); v != "" {
		c.Store.PostgresDSN = v
	}
	if v := os.Getenv("IDCORE_CACHE_DRIVER"); v != "" {
		c.Cache.Driver = v
	}
	if v := os.Getenv("IDCORE_REDIS_ADDR"); v != "" {
		c.Cache.RedisAddr = v
	}
	if v := os.Getenv("IDCORE_LEDGER_URL"); v != "" {
		c.Ledger.URL = v
	}
	if v := os.Getenv("IDCORE_ACCOUNT_SERVICE_URL"); v != "" {
		c.Provision.AccountServiceURL = v
	}
	if v := os.Getenv("IDCORE_LOCKOUT_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Auth.LockoutThreshold = n
		}
	}
	if v := os.Getenv("IDCORE_EVIDENCE_KEY_FILE"); v != "" {
		c.Evidence.PrivateKeyFile = v
	}
}
