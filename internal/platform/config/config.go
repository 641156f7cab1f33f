package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environments recognised by APP_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Server captures process level configuration.
type Server struct {
	Addr     string
	Env      string
	LogLevel string

	// RulesPath, when set, loads the rule document from disk instead of the
	// embedded default. RulesSource is "embedded", "file" or "postgres".
	RulesPath   string
	RulesSource string
	// RulesName selects the document in the rule_documents table.
	RulesName   string

	// AdminToken guards operator endpoints; empty disables them.
	AdminToken      string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AuditBuffer     int
	// RateLimit caps public requests per client per minute; 0 disables it.
	RateLimit       int

	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Bureau   BureauConfig
	Loan     LoanConfig
}

// IsDevelopment reports whether detailed errors may be returned to callers.
func (s Server) IsDevelopment() bool {
	return s.Env == EnvDevelopment
}

// PostgresConfig configures the rule document store and audit sink.
type PostgresConfig struct {
	DSN      string
	MaxConns int32
}

// RedisConfig configures the credit report cache. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ReportTTL    time.Duration
}

// KafkaConfig configures the audit publisher. No brokers disables Kafka.
type KafkaConfig struct {
	Brokers     []string
	AuditTopic  string
	Partitions  int32
	Replication int16
}

// BureauConfig configures the identity and credit bureau clients. Empty URLs
// select the in-process simulator.
type BureauConfig struct {
	IdentityURL string
	CreditURL   string
	APIKey      string
	Timeout     time.Duration
	MaxRetries  int
}

// LoanConfig holds the lending policy used to size approved loans.
type LoanConfig struct {
	IncomeMultiplier   int
	ProcessingFeePct   float64
	DefaultAnnualRate  float64
	StageTimeout       time.Duration
	SecondaryIDEnabled bool
}

// ReportCacheTTL bounds how long bureau data may be held.
var ReportCacheTTL = 15 * time.Minute

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:            getenv("LOANFLOW_ADDR", ":8080"),
		Env:             getenv("APP_ENV", EnvDevelopment),
		LogLevel:        getenv("LOG_LEVEL", "INFO"),
		RulesPath:       os.Getenv("RULES_PATH"),
		RulesSource:     rulesSource(),
		RulesName:       getenv("RULES_NAME", "onboarding"),
		AdminToken:      os.Getenv("LOANFLOW_ADMIN_TOKEN"),
		RequestTimeout:  getduration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getduration("SHUTDOWN_TIMEOUT", 10*time.Second),
		AuditBuffer:     getint("AUDIT_BUFFER", 1024),
		RateLimit:       getint("RATE_LIMIT_PER_MINUTE", 120),
		Postgres: PostgresConfig{
			DSN:      os.Getenv("DATABASE_URL"),
			MaxConns: int32(getint("DATABASE_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getint("REDIS_POOL_SIZE", 10),
			MinIdleConns: getint("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getduration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getduration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getduration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			ReportTTL:    getduration("REPORT_CACHE_TTL", ReportCacheTTL),
		},
		Kafka: KafkaConfig{
			Brokers:     getlist("KAFKA_BROKERS"),
			AuditTopic:  getenv("KAFKA_AUDIT_TOPIC", "loanflow.audit"),
			Partitions:  int32(getint("KAFKA_AUDIT_PARTITIONS", 3)),
			Replication: int16(getint("KAFKA_AUDIT_REPLICATION", 1)),
		},
		Bureau: BureauConfig{
			IdentityURL: os.Getenv("IDENTITY_BUREAU_URL"),
			CreditURL:   os.Getenv("CREDIT_BUREAU_URL"),
			APIKey:      os.Getenv("BUREAU_API_KEY"),
			Timeout:     getduration("BUREAU_TIMEOUT", 5*time.Second),
			MaxRetries:  getint("BUREAU_MAX_RETRIES", 2),
		},
		Loan: LoanConfig{
			IncomeMultiplier:   getint("LOAN_INCOME_MULTIPLIER", 12),
			ProcessingFeePct:   getfloat("LOAN_PROCESSING_FEE_PCT", 2.0),
			DefaultAnnualRate:  getfloat("LOAN_DEFAULT_ANNUAL_RATE", 12.0),
			StageTimeout:       getduration("STAGE_TIMEOUT", 10*time.Second),
			SecondaryIDEnabled: os.Getenv("SECONDARY_ID_DISABLED") != "true",
		},
	}
}

func rulesSource() string {
	if s := os.Getenv("RULES_SOURCE"); s != "" {
		return s
	}
	if os.Getenv("RULES_PATH") != "" {
		return "file"
	}
	return "embedded"
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getfloat(key string, fallback float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

func getlist(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
