package config

import (
	"crypto/rand"
	"encoding/base64"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// MinEncryptionSecretLength is the minimum required length for the credential secret in production
	MinEncryptionSecretLength = 32
)

type Config struct {
	ServerPort  string
	DBPath      string
	Environment string
	StorageDir  string
	// Email (Resend)
	ResendAPIKey  string
	EmailFrom     string
	EmailFromName string
	EmailTestMode bool // When true, emails are logged to console instead of sent
	// Other
	AllowedOrigins   []string
	AppURL           string
	TursoDatabaseURL string
	TursoAuthToken   string
	// Cloudflare R2 Storage (raw intimação snapshots)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	// Portal credentials at rest
	CredentialEncryptionKey string
	// NLP service
	NLPServiceURL string
	NLPTimeout    time.Duration
	// Portal scraping
	PortalBaseURL      string
	PortalProfilePath  string
	ChromePath         string
	DefaultTribunal    string
	DefaultLookback    int // days
	NewLawyerLookback  int // days
	ManualCollectLimit int // manual triggers per practitioner per hour
	// Scheduling
	Timezone          string
	CollectionCron    string
	DeadlineAlertCron string
	DeadlineWindow    int // days
	QueueDelay        time.Duration
}

func Load() *Config {
	// Load .env file (ignore error if not present - use system env vars)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	environment := getEnv("ENVIRONMENT", "development")
	encryptionKey := os.Getenv("CREDENTIAL_ENCRYPTION_KEY")

	// Validate the credential secret - this will fatal in production if weak
	ValidateEncryptionSecret(encryptionKey, environment)

	return &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		DBPath:                  getEnv("DB_PATH", "db/app.db"),
		Environment:             environment,
		StorageDir:              getEnv("STORAGE_DIR", "static/intimacoes"),
		ResendAPIKey:            getEnv("RESEND_API_KEY", ""),
		EmailFrom:               getEnv("EMAIL_FROM", "intimacoes@crm-advocacia.com.br"),
		EmailFromName:           getEnv("EMAIL_FROM_NAME", "CRM Advocacia"),
		EmailTestMode:           getEnvBool("EMAIL_TEST_MODE", true), // Default true for safety
		AllowedOrigins:          strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		AppURL:                  getEnv("APP_URL", "http://localhost:8080"),
		TursoDatabaseURL:        getEnv("TURSO_DATABASE_URL", ""),
		TursoAuthToken:          os.Getenv("TURSO_AUTH_TOKEN"),
		R2AccountID:             getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:           getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey:       os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:            getEnv("R2_BUCKET_NAME", ""),
		CredentialEncryptionKey: encryptionKey,
		NLPServiceURL:           getEnv("PYTHON_NLP_URL", "http://127.0.0.1:8001"),
		NLPTimeout:              getEnvDuration("NLP_TIMEOUT", 2*time.Minute),
		PortalBaseURL:           os.Getenv("PORTAL_BASE_URL"),
		PortalProfilePath:       getEnv("PORTAL_PROFILE", ""),
		ChromePath:              getEnv("CHROME_PATH", ""),
		DefaultTribunal:         getEnv("DEFAULT_TRIBUNAL", "TJCE"),
		DefaultLookback:         getEnvInt("COLLECTION_LOOKBACK_DAYS", 1),
		NewLawyerLookback:       getEnvInt("NEW_LAWYER_LOOKBACK_DAYS", 30),
		ManualCollectLimit:      getEnvInt("MANUAL_COLLECT_PER_HOUR", 6),
		Timezone:                getEnv("TIMEZONE", "America/Fortaleza"),
		CollectionCron:          getEnv("COLLECTION_CRON", "0 10 * * *"),
		DeadlineAlertCron:       getEnv("DEADLINE_ALERT_CRON", "0 7 * * 1-5"),
		DeadlineWindow:          getEnvInt("DEADLINE_ALERT_WINDOW_DAYS", 5),
		QueueDelay:              getEnvDuration("NLP_QUEUE_DELAY", 2*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Printf("Using default value for %s: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept common boolean representations
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		log.Printf("[WARNING] Invalid integer for %s (%q), using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("[WARNING] Invalid duration for %s (%q), using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}

// Location resolves the configured timezone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("[WARNING] Unknown timezone %q, using UTC", c.Timezone)
		return time.UTC
	}
	return loc
}

// IsProduction reports whether the app runs with production settings
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ValidateEncryptionSecret checks the credential encryption secret.
// An absent secret is reported later by the vault constructor; here we only reject weak values.
func ValidateEncryptionSecret(secret string, environment string) error {
	// Known insecure defaults that must be rejected
	insecureDefaults := []string{
		"change-me",
		"secret",
		"development",
		"test",
	}

	for _, insecure := range insecureDefaults {
		if strings.EqualFold(secret, insecure) {
			if environment == "production" {
				log.Fatal("[CRITICAL] CREDENTIAL_ENCRYPTION_KEY is set to an insecure default value. Generate a secure random secret with: openssl rand -base64 32")
			}
			log.Printf("[WARNING] CREDENTIAL_ENCRYPTION_KEY is set to an insecure default value. This is acceptable only in development.")
			return nil
		}
	}

	if environment == "production" && secret != "" && len(secret) < MinEncryptionSecretLength {
		log.Fatalf("[CRITICAL] CREDENTIAL_ENCRYPTION_KEY must be at least %d characters in production (current: %d). Generate with: openssl rand -base64 32", MinEncryptionSecretLength, len(secret))
	}

	return nil
}

// GenerateSecureSecret generates a cryptographically secure random secret
func GenerateSecureSecret() string {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		log.Printf("[WARNING] Failed to generate secure secret: %v", err)
		return ""
	}
	return base64.StdEncoding.EncodeToString(bytes)
}
