package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"    validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`

	// MaxPageSize caps the page size a listing request may ask for.
	MaxPageSize int `mapstructure:"max_page_size" validate:"required,gte=1"`

	// StrictFilters controls the unknown-filter-key policy: when true,
	// unknown filter keys are rejected with a validation error; when false
	// (the default) they are silently dropped.
	StrictFilters bool `mapstructure:"strict_filters"`

	// RateLimitPerMinute is the per-caller request budget enforced by the
	// rate-limit middleware. Zero disables rate limiting.
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute" validate:"gte=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// RedisConfig contains connection settings for the shared cache and
// rate-limit store.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`

	// CacheTTLSeconds is the expiry for cached product reads.
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" validate:"gte=0"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret                   string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes        int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	RefreshTokenLifetimeMinutes int    `mapstructure:"refresh_token_lifetime_minutes" validate:"required,gt=0"`
	BcryptCost                  int    `mapstructure:"bcrypt_cost" validate:"gte=0,lte=31"`
}

// TaskConfig contains background task runner settings.
type TaskConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize   int `mapstructure:"queue_size" validate:"required,gt=0"`

	// StuckTaskAgeMinutes is how long a task may sit in the processing
	// state before the monitor resets it to pending.
	StuckTaskAgeMinutes int `mapstructure:"stuck_task_age_minutes" validate:"required,gt=0"`

	// SpoolDir is where rendered artifacts (e.g. invoice PDFs) are written.
	SpoolDir string `mapstructure:"spool_dir" validate:"required"`
}

// WorkerConfig contains settings for the in-process compute pool.
type WorkerConfig struct {
	PoolSize int `mapstructure:"pool_size" validate:"required,gt=0"`

	// CleanupAgeMinutes is the age past which terminal pool entries are
	// pruned by the scheduled cleanup job.
	CleanupAgeMinutes int `mapstructure:"cleanup_age_minutes" validate:"required,gt=0"`
}
