package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hotosm/tm-extractor/internal/domain"
)

// Config is the process configuration. The auth token and the template path
// are the only load-time requirements; everything else has a default matching
// the production services.
type Config struct {
	RawData        RawDataConfig        `mapstructure:"rawdata"`
	TaskingManager TaskingManagerConfig `mapstructure:"tasking_manager"`
	Extract        ExtractConfig        `mapstructure:"extract"`
	Results        ResultsConfig        `mapstructure:"results"`
	Server         ServerConfig         `mapstructure:"server"`
}

// RawDataConfig configures the raw-data API client and its retry policy.
type RawDataConfig struct {
	BaseURL       string  `mapstructure:"base_url"`
	AuthToken     string  `mapstructure:"auth_token"`
	Timeout       int     `mapstructure:"timeout"`         // seconds per request
	MaxRetries    int     `mapstructure:"max_retries"`
	RateLimitWait int     `mapstructure:"rate_limit_wait"` // seconds, on 429/502
	BackoffBase   float64 `mapstructure:"backoff_base"`
}

// TaskingManagerConfig configures the Tasking Manager client.
type TaskingManagerConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"` // optional, for private projects
	Timeout int    `mapstructure:"timeout"` // seconds per request
}

// ExtractConfig configures the submission pipeline and the status tracker.
type ExtractConfig struct {
	TemplatePath string `mapstructure:"template_path"`
	Workers      int    `mapstructure:"workers"`
	PollInterval int    `mapstructure:"poll_interval"` // seconds between status polls
	PollMaxWait  int    `mapstructure:"poll_max_wait"` // seconds per task; 0 polls forever
}

// ResultsConfig selects where the final report artifact is written.
type ResultsConfig struct {
	Backend string   `mapstructure:"backend"` // local, s3
	Path    string   `mapstructure:"path"`
	S3      S3Config `mapstructure:"s3"`
}

// S3Config holds credentials for the S3 results backend.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Key       string `mapstructure:"key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// ServerConfig configures the HTTP trigger surface.
type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

// CORSConfig holds CORS settings for the HTTP server.
type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// Load reads configuration from an optional YAML file plus environment
// variables. The environment variable names match the original deployment
// (RAWDATA_API_AUTH_TOKEN, RAW_DATA_API_BASE_URL, ...), so existing .env
// files keep working.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("rawdata.base_url", "https://api-prod.raw-data.hotosm.org/v1")
	v.SetDefault("rawdata.timeout", 10)
	v.SetDefault("rawdata.max_retries", 3)
	v.SetDefault("rawdata.rate_limit_wait", 61)
	v.SetDefault("rawdata.backoff_base", 2)
	v.SetDefault("tasking_manager.base_url", "https://tasking-manager-production-api.hotosm.org/api/v2")
	v.SetDefault("tasking_manager.timeout", 20)
	v.SetDefault("extract.template_path", "config.json")
	v.SetDefault("extract.workers", 1)
	v.SetDefault("extract.poll_interval", 30)
	v.SetDefault("extract.poll_max_wait", 0)
	v.SetDefault("results.backend", "local")
	v.SetDefault("results.path", "result.json")
	v.SetDefault("results.s3.region", "us-east-1")
	v.SetDefault("results.s3.key", "result.json")
	v.SetDefault("results.s3.use_ssl", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind the environment variable names the original deployment used
	v.BindEnv("rawdata.auth_token", "RAWDATA_API_AUTH_TOKEN")
	v.BindEnv("rawdata.base_url", "RAW_DATA_API_BASE_URL")
	v.BindEnv("rawdata.timeout", "API_TIMEOUT")
	v.BindEnv("rawdata.max_retries", "API_MAX_RETRIES")
	v.BindEnv("rawdata.rate_limit_wait", "RATE_LIMIT_WAIT")
	v.BindEnv("rawdata.backoff_base", "API_BACKOFF_BASE")
	v.BindEnv("tasking_manager.base_url", "TM_API_BASE_URL")
	v.BindEnv("tasking_manager.api_key", "TASKING_MANAGER_API_KEY")
	v.BindEnv("tasking_manager.timeout", "TM_API_TIMEOUT")
	v.BindEnv("extract.template_path", "CONFIG_JSON")
	v.BindEnv("extract.poll_interval", "TASK_POLL_INTERVAL")
	v.BindEnv("extract.poll_max_wait", "TASK_POLL_MAX_WAIT")
	v.BindEnv("results.path", "RESULTS_PATH")
	v.BindEnv("results.backend", "RESULTS_BACKEND")
	v.BindEnv("results.s3.bucket", "RESULTS_S3_BUCKET")
	v.BindEnv("results.s3.endpoint", "RESULTS_S3_ENDPOINT")
	v.BindEnv("results.s3.access_key", "AWS_ACCESS_KEY_ID")
	v.BindEnv("results.s3.secret_key", "AWS_SECRET_ACCESS_KEY")
	v.BindEnv("results.s3.region", "AWS_REGION")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate enforces the load-time requirements. Failing here aborts the run
// before any network call is made.
func (c *Config) Validate() error {
	if c.RawData.AuthToken == "" {
		return fmt.Errorf("RAWDATA_API_AUTH_TOKEN is required (authentication token for the raw-data API)")
	}
	if c.RawData.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.RawData.MaxRetries)
	}
	if c.Extract.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %d", c.Extract.PollInterval)
	}
	if c.Extract.Workers <= 0 {
		c.Extract.Workers = 1
	}
	switch c.Results.Backend {
	case "local", "s3":
	default:
		return fmt.Errorf("unknown results backend %q (expected local or s3)", c.Results.Backend)
	}
	return nil
}

// LoadTemplate reads and validates the extraction-config template referenced
// by the configuration. An unreadable or invalid template is a fatal
// configuration error.
func (c *Config) LoadTemplate() (*domain.Template, error) {
	data, err := os.ReadFile(c.Extract.TemplatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction template %s: %w", c.Extract.TemplatePath, err)
	}
	tmpl, err := domain.ParseTemplate(data)
	if err != nil {
		return nil, fmt.Errorf("invalid extraction template %s: %w", c.Extract.TemplatePath, err)
	}
	return tmpl, nil
}
