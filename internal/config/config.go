package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort       string
	AppEnv        string
	PublicBaseURL string // used to build verification links
	StoreBackend  string // "dynamo" | "memory"

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string // empty disables CSV archiving
	SNSRegion      string
	SNSOrderTopic  string // empty disables order events

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	MailWorkers   int
	MailQueueSize int

	RateLimit RateLimit

	VerificationTTL       time.Duration
	AllowPrivilegedSignup bool

	GoogleBooksAPIKey string
	GoogleBooksRPS    float64

	AllowedOrigins []string // CORS allowed origins
}

// RateLimit configures the sliding-window limiter in front of every route.
type RateLimit struct {
	MaxRequests       int
	Window            time.Duration
	MaxClients        int
	Backend           string // "memory" | "redis"
	TrustProxyHeaders bool
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users                string
	UserEmails           string
	PendingRegistrations string
	Books                string
	Genres               string
	Carts                string
	Orders               string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:       getEnv("APP_PORT", "3000"),
		AppEnv:        getEnv("APP_ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		StoreBackend:  getEnv("STORE_BACKEND", "dynamo"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:                getEnv("DYNAMO_TABLE_USERS", "users"),
			UserEmails:           getEnv("DYNAMO_TABLE_USER_EMAILS", "user_emails"),
			PendingRegistrations: getEnv("DYNAMO_TABLE_PENDING_REGISTRATIONS", "pending_registrations"),
			Books:                getEnv("DYNAMO_TABLE_BOOKS", "books"),
			Genres:               getEnv("DYNAMO_TABLE_GENRES", "genres"),
			Carts:                getEnv("DYNAMO_TABLE_CARTS", "carts"),
			Orders:               getEnv("DYNAMO_TABLE_ORDERS", "orders"),
		},
		S3BucketName:  getEnv("S3_BUCKET_NAME", ""),
		SNSRegion:     getEnv("SNS_REGION", "us-east-1"),
		SNSOrderTopic: getEnv("SNS_ORDER_TOPIC_ARN", ""),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         getEnvDuration("JWT_EXPIRY", 30*time.Minute),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@fernandfolio.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		MailWorkers:   getEnvInt("MAIL_WORKERS", 4),
		MailQueueSize: getEnvInt("MAIL_QUEUE_SIZE", 256),

		RateLimit: RateLimit{
			MaxRequests:       getEnvInt("RATE_LIMIT_MAX_REQUESTS", 10),
			Window:            getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second),
			MaxClients:        getEnvInt("RATE_LIMIT_MAX_CLIENTS", 10000),
			Backend:           getEnv("RATE_LIMIT_BACKEND", "memory"),
			TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),
			RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword:     getEnv("REDIS_PASSWORD", ""),
			RedisDB:           getEnvInt("REDIS_DB", 0),
		},

		VerificationTTL:       getEnvDuration("VERIFICATION_TTL", 24*time.Hour),
		AllowPrivilegedSignup: getEnvBool("ALLOW_PRIVILEGED_SIGNUP", false),

		GoogleBooksAPIKey: getEnv("GOOGLE_BOOKS_API_KEY", ""),
		GoogleBooksRPS:    getEnvFloat("GOOGLE_BOOKS_RPS", 2),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "24h") or a bare
// number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
