package config

// Config holds all application configuration, organized into logical
// groups.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Worker     WorkerConfig     `mapstructure:"worker"     validate:"required"`
	Supervisor SupervisorConfig `mapstructure:"supervisor" validate:"required"`
	Approval   ApprovalConfig   `mapstructure:"approval"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	LLM        LLMConfig        `mapstructure:"llm"`
}

// ServerConfig contains the HTTP server settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains the PostgreSQL settings. The URL is required
// only when the postgres queue backend is selected.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// RedisConfig contains the Redis settings. The address is required
// only when the redis queue backend is selected.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig contains the worker pool settings.
type WorkerConfig struct {
	// QueueBackend selects the task store implementation.
	QueueBackend string `mapstructure:"queue_backend" validate:"required,oneof=memory postgres redis"`

	// Count is the number of concurrent workers.
	Count int `mapstructure:"count" validate:"required,gt=0"`

	// ClaimBatchSize is how many tasks a worker claims per poll.
	ClaimBatchSize int `mapstructure:"claim_batch_size" validate:"required,gt=0"`

	// PollIntervalSeconds is the backoff between empty claims.
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" validate:"required,gt=0"`

	// FetchTimeoutSeconds bounds a single content fetch.
	FetchTimeoutSeconds int `mapstructure:"fetch_timeout_seconds" validate:"required,gt=0"`

	// ExtractTimeoutSeconds bounds a single extraction call.
	ExtractTimeoutSeconds int `mapstructure:"extract_timeout_seconds" validate:"required,gt=0"`
}

// SupervisorConfig contains the lease-recovery sweep settings.
type SupervisorConfig struct {
	// SweepIntervalSeconds is how often the supervisor runs.
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds" validate:"required,gt=0"`

	// LeaseTimeoutSeconds is the age after which a claimed task is
	// considered stuck and reset to pending.
	LeaseTimeoutSeconds int `mapstructure:"lease_timeout_seconds" validate:"required,gt=0"`

	// StopFile, when set, names a sentinel file whose presence triggers
	// graceful shutdown on the next sweep.
	StopFile string `mapstructure:"stop_file"`

	// ShutdownWhenIdle stops the process once every registered task is
	// terminal. Meant for batch runs rather than long-lived servers.
	ShutdownWhenIdle bool `mapstructure:"shutdown_when_idle"`
}

// ApprovalConfig controls the approval gate between extraction and
// persistence.
type ApprovalConfig struct {
	// Enabled holds extracted results for an external accept/reject
	// decision instead of persisting them directly.
	Enabled bool `mapstructure:"enabled"`
}

// FetchConfig contains the content fetcher settings.
type FetchConfig struct {
	// TimeoutSeconds is the HTTP client timeout for a single request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" validate:"omitempty,gt=0"`

	// MaxTextLength bounds the cleaned text handed to the extractor.
	MaxTextLength int `mapstructure:"max_text_length" validate:"omitempty,gt=0"`

	// UserAgent is sent on outbound requests.
	UserAgent string `mapstructure:"user_agent"`
}

// LLMConfig contains the Gemini extractor settings.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
	ModelName         string `mapstructure:"model_name"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"omitempty,gte=0"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"omitempty,gt=0"`
}
