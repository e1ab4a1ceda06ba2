package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/garyjia/timesheet-ocr/internal/pipeline"
	"github.com/garyjia/timesheet-ocr/internal/reference"
	"github.com/garyjia/timesheet-ocr/pkg/utils"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig       `mapstructure:"server"`
	Database  DatabaseConfig     `mapstructure:"database"`
	OpenAI    OpenAIConfig       `mapstructure:"openai"`
	Storage   StorageConfig      `mapstructure:"storage"`
	Document  DocumentConfig     `mapstructure:"document"`
	Reference ReferenceConfig    `mapstructure:"reference"`
	Pipeline  pipeline.Config    `mapstructure:"pipeline"`
	Kafka     KafkaConfig        `mapstructure:"kafka"`
	Inbox     InboxConfig        `mapstructure:"inbox"`
	Logger    utils.LoggerConfig `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// OpenAIConfig holds the vision extraction endpoint configuration
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	PromptsPath string        `mapstructure:"prompts_path"`
}

// StorageConfig holds where source images are kept
type StorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// DocumentConfig controls PDF rendering
type DocumentConfig struct {
	DPI         float64 `mapstructure:"dpi"`
	JPEGQuality int     `mapstructure:"jpeg_quality"`
}

// ReferenceConfig names the reference data files
type ReferenceConfig struct {
	RosterPath    string                `mapstructure:"roster_path"`
	ProjectsPath  string                `mapstructure:"projects_path"`
	ProjectsSheet string                `mapstructure:"projects_sheet"`
	HolidaysPath  string                `mapstructure:"holidays_path"`
	PrefixRules   reference.PrefixRules `mapstructure:"prefix_rules"`
}

// KafkaConfig holds the optional audit topic configuration
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	Acks         int           `mapstructure:"acks"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// InboxConfig holds the drop folder polled for scanned timesheets
type InboxConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Dir            string        `mapstructure:"dir"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	Workers        int           `mapstructure:"workers"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
}

// Load loads configuration from file and environment variables. An empty
// configPath uses defaults and the environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.max_upload_bytes", 20<<20)

	// Database defaults
	v.SetDefault("database.path", "data/timesheets.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)
	v.SetDefault("database.migrations_dir", "")

	// OpenAI defaults
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.timeout", 90*time.Second)
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.prompts_path", "")

	v.SetDefault("storage.base_dir", "data/images")

	v.SetDefault("document.dpi", 150)
	v.SetDefault("document.jpeg_quality", 85)

	// Reference data defaults
	prefixes := reference.DefaultPrefixRules()
	v.SetDefault("reference.roster_path", "configs/reference/roster.yaml")
	v.SetDefault("reference.projects_path", "configs/reference/projects.yaml")
	v.SetDefault("reference.projects_sheet", "")
	v.SetDefault("reference.holidays_path", "configs/reference/holidays.yaml")
	v.SetDefault("reference.prefix_rules.standard_prefix", prefixes.StandardPrefix)
	v.SetDefault("reference.prefix_rules.digit_count", prefixes.DigitCount)
	v.SetDefault("reference.prefix_rules.alternate_prefixes", prefixes.AlternatePrefixes)
	v.SetDefault("reference.prefix_rules.confusions", prefixes.Confusions)

	// Pipeline defaults
	p := pipeline.DefaultConfig()
	v.SetDefault("pipeline.pivot_year", p.PivotYear)
	v.SetDefault("pipeline.day_first", p.DayFirst)
	v.SetDefault("pipeline.name_accept_threshold", p.NameAcceptThreshold)
	v.SetDefault("pipeline.name_high_threshold", p.NameHighThreshold)
	v.SetDefault("pipeline.project_name_threshold", p.ProjectNameThreshold)
	v.SetDefault("pipeline.totals_tolerance", p.TotalsTolerance)
	v.SetDefault("pipeline.max_daily_hours", p.MaxDailyHours)
	v.SetDefault("pipeline.project_week_warn_hours", p.ProjectWeekWarnHours)
	v.SetDefault("pipeline.weekly_warn_hours", p.WeeklyWarnHours)
	v.SetDefault("pipeline.digit_substitutions", p.DigitSubstitutions)
	v.SetDefault("pipeline.high_confidence_substitutions", p.HighConfidenceSubstitutions)
	v.SetDefault("pipeline.category_labels", p.CategoryLabels)
	v.SetDefault("pipeline.rules.category_label", p.Rules.CategoryLabel)
	v.SetDefault("pipeline.rules.code_from_name", p.Rules.CodeFromName)
	v.SetDefault("pipeline.rules.prefix_normalization", p.Rules.PrefixNormalization)
	v.SetDefault("pipeline.rules.digit_confusion", p.Rules.DigitConfusion)
	v.SetDefault("pipeline.rules.name_variants", p.Rules.NameVariants)
	v.SetDefault("pipeline.rules.name_consistency", p.Rules.NameConsistency)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "timesheet.processing-runs")
	v.SetDefault("kafka.acks", -1)
	v.SetDefault("kafka.write_timeout", 10*time.Second)

	// Inbox defaults
	v.SetDefault("inbox.enabled", false)
	v.SetDefault("inbox.dir", "data/inbox")
	v.SetDefault("inbox.poll_interval", 30*time.Second)
	v.SetDefault("inbox.workers", 4)
	v.SetDefault("inbox.process_timeout", 120*time.Second)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.service", "timesheet-ocr")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	_ = v.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	_ = v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("database.path", "TIMESHEET_DB_PATH")
}

// normalize upper-cases code prefixes; viper lower-cases map keys
func (c *Config) normalize() {
	rules := &c.Reference.PrefixRules
	rules.StandardPrefix = strings.ToUpper(strings.TrimSpace(rules.StandardPrefix))
	for i, p := range rules.AlternatePrefixes {
		rules.AlternatePrefixes[i] = strings.ToUpper(strings.TrimSpace(p))
	}
	if len(rules.Confusions) > 0 {
		confusions := make(map[string]string, len(rules.Confusions))
		for from, to := range rules.Confusions {
			confusions[strings.ToUpper(from)] = strings.ToUpper(to)
		}
		rules.Confusions = confusions
	}

	var brokers []string
	for _, b := range c.Kafka.Brokers {
		for _, part := range strings.Split(b, ",") {
			if part = strings.TrimSpace(part); part != "" {
				brokers = append(brokers, part)
			}
		}
	}
	c.Kafka.Brokers = brokers
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.OpenAI.Model == "" {
		return fmt.Errorf("openai.model is required")
	}
	if c.Reference.PrefixRules.StandardPrefix == "" || c.Reference.PrefixRules.DigitCount <= 0 {
		return fmt.Errorf("reference.prefix_rules needs a standard_prefix and a positive digit_count")
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when kafka is enabled")
		}
	}
	if c.Inbox.Enabled {
		if c.Inbox.Dir == "" {
			return fmt.Errorf("inbox.dir is required when the inbox is enabled")
		}
		if c.Inbox.Workers <= 0 {
			return fmt.Errorf("inbox.workers must be positive")
		}
		if !c.HasExtractor() {
			return fmt.Errorf("the inbox needs openai.api_key to extract images")
		}
	}
	return nil
}

// HasExtractor reports whether image uploads can be extracted
func (c *Config) HasExtractor() bool {
	return c.OpenAI.APIKey != ""
}

// LoaderConfig builds the reference loader settings
func (c *Config) LoaderConfig() reference.LoaderConfig {
	return reference.LoaderConfig{
		RosterPath:    c.Reference.RosterPath,
		ProjectsPath:  c.Reference.ProjectsPath,
		ProjectsSheet: c.Reference.ProjectsSheet,
		HolidaysPath:  c.Reference.HolidaysPath,
		Prefixes:      c.Reference.PrefixRules,
	}
}
