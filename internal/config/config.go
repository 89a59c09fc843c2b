package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// RedisConfig holds the verification session store settings.
// An empty URL selects the in-process store.
type RedisConfig struct {
	URL             string
	Password        string
	VerificationTTL time.Duration
}

// RendererConfig selects the markup to PDF engine.
type RendererConfig struct {
	// Engine is "gotenberg" or "fpdf".
	Engine       string
	GotenbergURL string
	Timeout      time.Duration
	// FontPath points to a TTF used by the fpdf engine and the audit page (CJK text needs one).
	FontPath string
}

// SigningConfig locates the document signing credential.
// Either a PKCS#12 bundle or a PEM certificate/key pair; nothing configured means unsigned output.
type SigningConfig struct {
	P12Path     string
	P12Password string
	CertPath    string
	KeyPath     string
	Reason      string
	Location    string
	ContactInfo string
}

// ContractConfig holds rendering and workflow settings of the contract core.
type ContractConfig struct {
	Locale               string
	SignaturePlaceholder string
	SignatureWidth       int
	PipelineTimeout      time.Duration
	PresignExpiry        time.Duration
	AsyncAudit           bool
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost  string
	Port     string
	Env      string
	Database DatabaseConfig
	MinIO    MinIOConfig
	Redis    RedisConfig
	Renderer RendererConfig
	Signing  SigningConfig
	Contract ContractConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost: getEnv("APP_HOST", "localhost:8080"),
		Port:    getEnv("PORT", "8080"),
		Env:     getEnv("APP_ENV", "production"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		Redis: RedisConfig{
			URL:             getEnv("REDIS_URL", ""),
			Password:        getEnv("REDIS_PASSWORD", ""),
			VerificationTTL: getEnvDuration("VERIFICATION_TTL", 2*time.Hour),
		},
		Renderer: RendererConfig{
			Engine:       getEnv("RENDER_ENGINE", "gotenberg"),
			GotenbergURL: getEnv("GOTENBERG_URL", "http://localhost:3000"),
			Timeout:      getEnvDuration("RENDER_TIMEOUT", 60*time.Second),
			FontPath:     getEnv("PDF_FONT_PATH", ""),
		},
		Signing: SigningConfig{
			P12Path:     getEnv("SIGNING_P12_PATH", ""),
			P12Password: getEnv("SIGNING_P12_PASSWORD", ""),
			CertPath:    getEnv("SIGNING_CERT_PATH", ""),
			KeyPath:     getEnv("SIGNING_KEY_PATH", ""),
			Reason:      getEnv("SIGNING_REASON", "Contract signed by customer"),
			Location:    getEnv("SIGNING_LOCATION", ""),
			ContactInfo: getEnv("SIGNING_CONTACT", ""),
		},
		Contract: ContractConfig{
			Locale:               getEnv("CONTRACT_LOCALE", "zh-TW"),
			SignaturePlaceholder: getEnv("SIGNATURE_PLACEHOLDER", "簽署欄位"),
			SignatureWidth:       getEnvInt("SIGNATURE_WIDTH", 180),
			PipelineTimeout:      getEnvDuration("PIPELINE_TIMEOUT", 90*time.Second),
			PresignExpiry:        getEnvDuration("PRESIGN_EXPIRY", 15*time.Minute),
			AsyncAudit:           getEnvBool("AUDIT_ASYNC", true),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
