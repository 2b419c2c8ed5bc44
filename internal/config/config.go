package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DBConfig holds the connection settings shared by the master database, the
// administrative database and every tenant database. Tenant descriptors are
// derived from these settings by substituting only the database name.
type DBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	MasterName      string
	AdminName       string
	SSLMode         string
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
}

// MasterDSN returns the connection string for the master database.
func (c *DBConfig) MasterDSN() string {
	return c.dsn(c.MasterName)
}

// AdminDSN returns the connection string for the administrative database
// used for CREATE DATABASE and catalog existence checks.
func (c *DBConfig) AdminDSN() string {
	return c.dsn(c.AdminName)
}

// TenantDSN returns the connection string for one tenant database. Only the
// database name differs from the base descriptor.
func (c *DBConfig) TenantDSN(databaseName string) string {
	return c.dsn(databaseName)
}

func (c *DBConfig) dsn(dbName string) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, dbName, c.SSLMode)
}

// SchemaConfig holds the Schema Deriver inputs and outputs.
type SchemaConfig struct {
	SourceDir    string
	ArtifactPath string
	// ExcludedEntities are the master-only tables removed from the derived
	// tenant schema.
	ExcludedEntities []string
}

// RegistryConfig bounds tenant handle creation and probing.
type RegistryConfig struct {
	ResolveTimeout time.Duration
	ProbeTimeout   time.Duration
}

// FanOutConfig bounds cross-tenant aggregation.
type FanOutConfig struct {
	Concurrency   int
	BranchTimeout time.Duration
}

// ProvisionerConfig tunes the tenant provisioning saga.
type ProvisionerConfig struct {
	StepTimeout time.Duration
	// DropOrphans enables best-effort DROP DATABASE of a database created
	// during a failed provisioning attempt. Off by default: the orphan is
	// inert because no mapping record exists.
	DropOrphans bool
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port string
	Env  string
}

// JWTConfig holds token verification settings. Tokens are issued by an
// external identity provider; when JWKSURL is set they are verified against
// its JWKS endpoint, otherwise with the shared HS256 secret.
type JWTConfig struct {
	Secret  string
	JWKSURL string
}

// RedisConfig holds cache settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JobsConfig controls the background scheduler.
type JobsConfig struct {
	Enabled          bool
	HealthSweepEvery time.Duration
	OverdueSweepCron string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string
}

// Config is the process-wide configuration.
type Config struct {
	Server      ServerConfig
	DB          DBConfig
	Schema      SchemaConfig
	Registry    RegistryConfig
	FanOut      FanOutConfig
	Provisioner ProvisionerConfig
	JWT         JWTConfig
	Redis       RedisConfig
	Jobs        JobsConfig
	Log         LogConfig
}

// defaultExcludedEntities are the master-only tables that never appear in a
// tenant database.
var defaultExcludedEntities = []string{
	"users",
	"refresh_tokens",
	"dealer_database_mappings",
	"subscriptions",
}

func schemaFromEnv() SchemaConfig {
	return SchemaConfig{
		SourceDir:        getEnv("SCHEMA_SOURCE_DIR", "db/schema"),
		ArtifactPath:     getEnv("SCHEMA_ARTIFACT_PATH", "db/tenant/tenant_schema.sql"),
		ExcludedEntities: getEnvAsList("SCHEMA_EXCLUDED_ENTITIES", defaultExcludedEntities),
	}
}

// LoadSchema reads only the schema derivation settings. The derive-schema
// command runs without the rest of the process configuration.
func LoadSchema() SchemaConfig {
	_ = godotenv.Load()
	return schemaFromEnv()
}

// Load reads configuration from the environment, consulting an optional
// .env file first.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// The .env file is optional; environment variables win regardless.
		fmt.Fprintln(os.Stderr, "config: no .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),
		},
		DB: DBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			MasterName:      getEnv("DB_MASTER_NAME", "warrantyhub_master"),
			AdminName:       getEnv("DB_ADMIN_NAME", "postgres"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 0),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		Schema: schemaFromEnv(),
		Registry: RegistryConfig{
			ResolveTimeout: getEnvAsDuration("REGISTRY_RESOLVE_TIMEOUT", 10*time.Second),
			ProbeTimeout:   getEnvAsDuration("REGISTRY_PROBE_TIMEOUT", 2*time.Second),
		},
		FanOut: FanOutConfig{
			Concurrency:   getEnvAsInt("FANOUT_CONCURRENCY", 8),
			BranchTimeout: getEnvAsDuration("FANOUT_BRANCH_TIMEOUT", 5*time.Second),
		},
		Provisioner: ProvisionerConfig{
			StepTimeout: getEnvAsDuration("PROVISIONER_STEP_TIMEOUT", 30*time.Second),
			DropOrphans: getEnvAsBool("PROVISIONER_DROP_ORPHANS", false),
		},
		JWT: JWTConfig{
			Secret:  getEnv("JWT_SECRET", ""),
			JWKSURL: getEnv("JWT_JWKS_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Jobs: JobsConfig{
			Enabled:          getEnvAsBool("JOBS_ENABLED", true),
			HealthSweepEvery: getEnvAsDuration("JOBS_HEALTH_SWEEP_EVERY", 2*time.Minute),
			OverdueSweepCron: getEnv("JOBS_OVERDUE_SWEEP_CRON", "0 3 * * *"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if cfg.JWT.Secret == "" && cfg.JWT.JWKSURL == "" {
		return nil, fmt.Errorf("config: one of JWT_SECRET or JWT_JWKS_URL is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
