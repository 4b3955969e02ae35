package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App    App    `mapstructure:"app"`
	AI     AI     `mapstructure:"ai"`
	Chat   Chat   `mapstructure:"chat"`
	Mail   Mail   `mapstructure:"mail"`
	Runner Runner `mapstructure:"runner"`
}

// App holds general application configuration.
type App struct {
	Debug     bool   `mapstructure:"debug"`
	DataDir   string `mapstructure:"data_dir"`   // SQLite database directory
	OutputDir string `mapstructure:"output_dir"` // Digest artifact root
}

// AI holds the LLM endpoint configuration (OpenAI-compatible chat API).
type AI struct {
	BaseURL         string  `mapstructure:"base_url"`
	Model           string  `mapstructure:"model"`
	APIKey          string  `mapstructure:"api_key"`
	Path            string  `mapstructure:"path"`
	Timeout         string  `mapstructure:"timeout"`
	RequestInterval string  `mapstructure:"request_interval"` // Pause between successive calls
	MaxRetries      int     `mapstructure:"max_retries"`
	ScoreWeights    string  `mapstructure:"score_weights"` // JSON metric->weight override
	PromptPath      string  `mapstructure:"prompt_path"`
	Temperature     float64 `mapstructure:"temperature"`
}

// Chat holds the group-chat transport configuration.
type Chat struct {
	APIBase       string `mapstructure:"api_base"`
	AppID         string `mapstructure:"app_id"`
	AppSecret     string `mapstructure:"app_secret"`
	DefaultChatID string `mapstructure:"default_chat_id"`
	Timeout       string `mapstructure:"timeout"`
}

// Mail holds the transactional e-mail transport configuration.
type Mail struct {
	APIBase         string `mapstructure:"api_base"`
	APIKey          string `mapstructure:"api_key"`
	From            string `mapstructure:"from"`
	PlainOnly       bool   `mapstructure:"plain_only"`
	ListUnsubscribe string `mapstructure:"list_unsubscribe"`
	FrontendBaseURL string `mapstructure:"frontend_base_url"`
	Timeout         string `mapstructure:"timeout"`
}

// Runner holds pipeline-runner configuration.
type Runner struct {
	PipelineID    int64  `mapstructure:"pipeline_id"`    // Ambient pipeline identity for writers
	EvaluatorKey  string `mapstructure:"evaluator_key"`  // Ambient evaluator override
	TZ            string `mapstructure:"tz"`             // Display/gating timezone
	ForceRun      bool   `mapstructure:"force_run"`      // Skip weekday gating
	CollectWindow string `mapstructure:"collect_window"` // Minimum age before a source is re-collected
	EvaluateLimit int    `mapstructure:"evaluate_limit"`
	AdapterBudget string `mapstructure:"adapter_budget"` // Wall-clock budget per adapter
	BackfillLimit int    `mapstructure:"backfill_limit"` // Detail back-fill rows per adapter run
}

var globalConfig *Config

// Load loads the configuration from .env, environment variables and an
// optional config file.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".newsflow")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", "data")
	viper.SetDefault("app.output_dir", "data/output")

	viper.SetDefault("ai.path", "/v1/chat/completions")
	viper.SetDefault("ai.timeout", "60s")
	viper.SetDefault("ai.request_interval", "0s")
	viper.SetDefault("ai.max_retries", 3)
	viper.SetDefault("ai.temperature", 0.2)

	viper.SetDefault("chat.timeout", "15s")
	viper.SetDefault("mail.api_base", "https://api.sparkpost.com/api/v1")
	viper.SetDefault("mail.timeout", "30s")

	viper.SetDefault("runner.tz", "Asia/Shanghai")
	viper.SetDefault("runner.collect_window", "2h")
	viper.SetDefault("runner.evaluate_limit", 400)
	viper.SetDefault("runner.adapter_budget", "30s")
	viper.SetDefault("runner.backfill_limit", 5)
}

// bindEnvironmentVariables sets up the flat environment variable surface.
func bindEnvironmentVariables() {
	bindEnvKeys("app.data_dir", []string{"NEWSFLOW_DATA_DIR"})
	bindEnvKeys("app.output_dir", []string{"NEWSFLOW_OUTPUT_DIR"})

	bindEnvKeys("ai.base_url", []string{"AI_API_BASE_URL"})
	bindEnvKeys("ai.model", []string{"AI_API_MODEL"})
	bindEnvKeys("ai.api_key", []string{"AI_API_KEY"})
	bindEnvKeys("ai.path", []string{"AI_API_PATH"})
	bindEnvKeys("ai.timeout", []string{"AI_API_TIMEOUT"})
	bindEnvKeys("ai.request_interval", []string{"AI_REQUEST_INTERVAL"})
	bindEnvKeys("ai.max_retries", []string{"AI_MAX_RETRIES"})
	bindEnvKeys("ai.score_weights", []string{"AI_SCORE_WEIGHTS"})
	bindEnvKeys("ai.prompt_path", []string{"AI_PROMPT_PATH"})

	bindEnvKeys("chat.api_base", []string{"CHAT_API_BASE"})
	bindEnvKeys("chat.app_id", []string{"CHAT_APP_ID"})
	bindEnvKeys("chat.app_secret", []string{"CHAT_APP_SECRET"})
	bindEnvKeys("chat.default_chat_id", []string{"CHAT_DEFAULT_CHAT_ID"})

	bindEnvKeys("mail.api_key", []string{"MAIL_API_KEY"})
	bindEnvKeys("mail.from", []string{"MAIL_FROM"})
	bindEnvKeys("mail.api_base", []string{"MAIL_API_BASE"})
	bindEnvKeys("mail.plain_only", []string{"MAIL_PLAIN_ONLY"})
	bindEnvKeys("mail.list_unsubscribe", []string{"MAIL_LIST_UNSUBSCRIBE"})
	bindEnvKeys("mail.frontend_base_url", []string{"FRONTEND_BASE_URL"})

	bindEnvKeys("runner.pipeline_id", []string{"PIPELINE_ID"})
	bindEnvKeys("runner.evaluator_key", []string{"PIPELINE_EVALUATOR_KEY"})
	bindEnvKeys("runner.tz", []string{"PIPELINE_TZ"})
	bindEnvKeys("runner.force_run", []string{"FORCE_RUN"})
}

// bindEnvKeys binds the first found environment variable to a viper key.
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig expands paths and validates durations.
func postProcessConfig(config *Config) error {
	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}
	if config.App.OutputDir != "" {
		config.App.OutputDir = expandPath(config.App.OutputDir)
	}

	durations := map[string]string{
		"ai.timeout":            config.AI.Timeout,
		"ai.request_interval":   config.AI.RequestInterval,
		"chat.timeout":          config.Chat.Timeout,
		"mail.timeout":          config.Mail.Timeout,
		"runner.collect_window": config.Runner.CollectWindow,
		"runner.adapter_budget": config.Runner.AdapterBudget,
	}
	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// expandPath expands ~ and environment variables in paths.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// Duration parses a configured duration string, falling back to def on error
// or empty input.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// Convenience getters for commonly used configuration values.
func GetApp() App       { return Get().App }
func GetAI() AI         { return Get().AI }
func GetChat() Chat     { return Get().Chat }
func GetMail() Mail     { return Get().Mail }
func GetRunner() Runner { return Get().Runner }

// ValidateAI ensures the evaluator's required endpoint settings are present.
func (a AI) ValidateAI() error {
	var missing []string
	if a.BaseURL == "" {
		missing = append(missing, "AI_API_BASE_URL")
	}
	if a.Model == "" {
		missing = append(missing, "AI_API_MODEL")
	}
	if a.APIKey == "" {
		missing = append(missing, "AI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Reset clears the global configuration (useful for testing).
func Reset() {
	globalConfig = nil
	viper.Reset()
}
