package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        App        `mapstructure:"app"`
	Store      Store      `mapstructure:"store"`
	Database   Database   `mapstructure:"database"`
	Search     Search     `mapstructure:"search"`
	AI         AI         `mapstructure:"ai"`
	Extraction Extraction `mapstructure:"extraction"`
	Pipeline   Pipeline   `mapstructure:"pipeline"`
	Ingest     Ingest     `mapstructure:"ingest"`
	Server     Server     `mapstructure:"server"`
}

// App holds general application configuration
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// Store selects where articles are read from and written to
type Store struct {
	Backend    string `mapstructure:"backend"` // "api" or "database"
	APIBaseURL string `mapstructure:"api_base_url"`
	Timeout    string `mapstructure:"timeout"`
}

// Database holds SQL connection settings
type Database struct {
	Driver string `mapstructure:"driver"` // "sqlite3" or "postgres"
	DSN    string `mapstructure:"dsn"`
}

// Search holds reference search configuration
type Search struct {
	Provider   string              `mapstructure:"provider"` // "google", "serpapi" or "duckduckgo"
	Google     GoogleSearchConfig  `mapstructure:"google"`
	SerpAPI    SerpAPISearchConfig `mapstructure:"serpapi"`
	QueryDelay string              `mapstructure:"query_delay"`
	Timeout    string              `mapstructure:"timeout"`
	BrandTerms []string            `mapstructure:"brand_terms"`
	OwnDomains []string            `mapstructure:"own_domains"`
}

// GoogleSearchConfig holds Google Custom Search configuration
type GoogleSearchConfig struct {
	APIKey   string `mapstructure:"api_key"`
	SearchID string `mapstructure:"search_id"`
}

// SerpAPISearchConfig holds SerpAPI configuration
type SerpAPISearchConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// AI holds generative model configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Timeout     string  `mapstructure:"timeout"`
	MaxTokens   int32   `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

// Extraction holds page rendering and content extraction settings
type Extraction struct {
	Browser           bool   `mapstructure:"browser"`
	BrowserBin        string `mapstructure:"browser_bin"`
	ControlURL        string `mapstructure:"control_url"`
	UserAgent         string `mapstructure:"user_agent"`
	NavigationTimeout string `mapstructure:"navigation_timeout"`
	SettleDelay       string `mapstructure:"settle_delay"`
	MinLength         int    `mapstructure:"min_length"`
	MaxLength         int    `mapstructure:"max_length"`
	StrategiesFile    string `mapstructure:"strategies_file"`
}

// Pipeline holds enhancement pacing and batch sizing
type Pipeline struct {
	ReferenceCount int    `mapstructure:"reference_count"`
	ExtractDelay   string `mapstructure:"extract_delay"`
	ItemDelay      string `mapstructure:"item_delay"`
	BatchLimit     int    `mapstructure:"batch_limit"`
}

// Ingest holds blog ingestion configuration
type Ingest struct {
	BlogURL       string `mapstructure:"blog_url"`
	FeedURL       string `mapstructure:"feed_url"`
	Count         int    `mapstructure:"count"`
	DefaultAuthor string `mapstructure:"default_author"`
	Delay         string `mapstructure:"delay"`
}

// Server holds REST API settings
type Server struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	CORSOrigins     []string `mapstructure:"cors_origins"`
	ReadTimeout     string   `mapstructure:"read_timeout"`
	WriteTimeout    string   `mapstructure:"write_timeout"`
	ShutdownTimeout string   `mapstructure:"shutdown_timeout"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".articleforge")
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

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
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

func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")

	viper.SetDefault("store.backend", "api")
	viper.SetDefault("store.api_base_url", "http://localhost:5000/api")
	viper.SetDefault("store.timeout", "30s")

	viper.SetDefault("database.driver", "sqlite3")
	viper.SetDefault("database.dsn", "articleforge.db")

	viper.SetDefault("search.provider", "google")
	viper.SetDefault("search.query_delay", "500ms")
	viper.SetDefault("search.timeout", "15s")
	viper.SetDefault("search.brand_terms", []string{"beyondchats", "beyond chats", "beyondchat"})
	viper.SetDefault("search.own_domains", []string{"beyondchats.com"})

	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.timeout", "60s")
	viper.SetDefault("ai.gemini.max_tokens", 8000)
	viper.SetDefault("ai.gemini.temperature", 0.7)

	viper.SetDefault("extraction.browser", true)
	viper.SetDefault("extraction.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	viper.SetDefault("extraction.navigation_timeout", "45s")
	viper.SetDefault("extraction.settle_delay", "2s")
	viper.SetDefault("extraction.min_length", 200)
	viper.SetDefault("extraction.max_length", 5000)

	viper.SetDefault("pipeline.reference_count", 2)
	viper.SetDefault("pipeline.extract_delay", "1s")
	viper.SetDefault("pipeline.item_delay", "5s")
	viper.SetDefault("pipeline.batch_limit", 100)

	viper.SetDefault("ingest.blog_url", "https://beyondchats.com/blogs/")
	viper.SetDefault("ingest.count", 5)
	viper.SetDefault("ingest.default_author", "BeyondChats Team")
	viper.SetDefault("ingest.delay", "1500ms")

	viper.SetDefault("server.host", "")
	viper.SetDefault("server.port", 5000)
	viper.SetDefault("server.cors_origins", []string{"http://localhost:5173"})
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "10s")
}

// bindEnvironmentVariables maps the conventional environment names onto viper keys
func bindEnvironmentVariables() {
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("search.google.api_key", []string{
		"GOOGLE_API_KEY",
		"GOOGLE_CUSTOM_SEARCH_API_KEY",
		"GOOGLE_CSE_API_KEY",
	})

	bindEnvKeys("search.google.search_id", []string{
		"GOOGLE_SEARCH_ENGINE_ID",
		"GOOGLE_CUSTOM_SEARCH_ID",
		"GOOGLE_CSE_ID",
	})

	bindEnvKeys("search.serpapi.api_key", []string{"SERPAPI_API_KEY", "SERPAPI_KEY"})
	bindEnvKeys("search.provider", []string{"SEARCH_PROVIDER"})

	bindEnvKeys("store.api_base_url", []string{"API_BASE_URL"})
	bindEnvKeys("store.backend", []string{"ARTICLE_STORE"})
	bindEnvKeys("database.dsn", []string{"DATABASE_URL"})
	bindEnvKeys("database.driver", []string{"DATABASE_DRIVER"})

	bindEnvKeys("ingest.blog_url", []string{"BEYONDCHATS_BLOG_URL", "BLOG_URL"})
	bindEnvKeys("ingest.count", []string{"ARTICLES_TO_SCRAPE"})

	bindEnvKeys("server.port", []string{"PORT"})
	bindEnvKeys("server.cors_origins", []string{"FRONTEND_URL"})

	bindEnvKeys("app.debug", []string{"DEBUG", "ARTICLEFORGE_DEBUG"})
	bindEnvKeys("app.log_level", []string{"LOG_LEVEL"})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

func postProcessConfig(config *Config) error {
	// FRONTEND_URL arrives as one comma separated string
	if len(config.Server.CORSOrigins) == 1 && strings.Contains(config.Server.CORSOrigins[0], ",") {
		config.Server.CORSOrigins = splitList(config.Server.CORSOrigins[0])
	}
	config.Store.APIBaseURL = strings.TrimRight(config.Store.APIBaseURL, "/")

	durations := map[string]string{
		"store.timeout":                 config.Store.Timeout,
		"search.query_delay":            config.Search.QueryDelay,
		"search.timeout":                config.Search.Timeout,
		"ai.gemini.timeout":             config.AI.Gemini.Timeout,
		"extraction.navigation_timeout": config.Extraction.NavigationTimeout,
		"extraction.settle_delay":       config.Extraction.SettleDelay,
		"pipeline.extract_delay":        config.Pipeline.ExtractDelay,
		"pipeline.item_delay":           config.Pipeline.ItemDelay,
		"ingest.delay":                  config.Ingest.Delay,
		"server.read_timeout":           config.Server.ReadTimeout,
		"server.write_timeout":          config.Server.WriteTimeout,
		"server.shutdown_timeout":       config.Server.ShutdownTimeout,
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

// validateConfig rejects settings that cannot work. Missing credentials are not
// errors: search then yields no references and synthesis passes content through.
func validateConfig(config *Config) error {
	var errors []string

	switch config.Store.Backend {
	case "api":
		if config.Store.APIBaseURL == "" {
			errors = append(errors, "store.api_base_url is required for the api backend. Set API_BASE_URL")
		}
	case "database":
	default:
		errors = append(errors, fmt.Sprintf("Unknown store backend: %s. Supported: api, database", config.Store.Backend))
	}

	switch config.Database.Driver {
	case "sqlite3", "postgres":
	default:
		errors = append(errors, fmt.Sprintf("Unknown database driver: %s. Supported: sqlite3, postgres", config.Database.Driver))
	}

	switch config.Search.Provider {
	case "google", "serpapi", "duckduckgo":
	default:
		errors = append(errors, fmt.Sprintf("Unknown search provider: %s. Supported: google, serpapi, duckduckgo", config.Search.Provider))
	}

	if t := config.AI.Gemini.Temperature; t < 0 || t > 2 {
		errors = append(errors, fmt.Sprintf("ai.gemini.temperature must be between 0 and 2, got %v", t))
	}

	if config.Pipeline.ReferenceCount < 1 {
		errors = append(errors, "pipeline.reference_count must be at least 1")
	}
	if config.Extraction.MinLength < 0 || config.Extraction.MaxLength < 1 {
		errors = append(errors, "extraction.min_length must be >= 0 and extraction.max_length >= 1")
	}
	if config.Pipeline.BatchLimit < 1 {
		errors = append(errors, "pipeline.batch_limit must be at least 1")
	}
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		errors = append(errors, fmt.Sprintf("server.port out of range: %d", config.Server.Port))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Duration parses a duration that postProcessConfig already validated.
// Empty strings yield zero.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func GetSearch() Search         { return Get().Search }
func GetAI() AI                 { return Get().AI }
func GetExtraction() Extraction { return Get().Extraction }
func GetPipeline() Pipeline     { return Get().Pipeline }
func IsDebugMode() bool         { return Get().App.Debug }

// HasValidGoogleSearch returns true if Google Custom Search is properly configured
func HasValidGoogleSearch() bool {
	c := Get().Search.Google
	return isValidCredential(c.APIKey) && isValidCredential(c.SearchID)
}

// HasValidSerpAPI returns true if a SerpAPI key is configured
func HasValidSerpAPI() bool {
	return isValidCredential(Get().Search.SerpAPI.APIKey)
}

// HasValidGemini returns true if a Gemini API key is configured
func HasValidGemini() bool {
	return isValidCredential(Get().AI.Gemini.APIKey)
}

// isValidCredential checks a key is present and not a placeholder
func isValidCredential(v string) bool {
	if v == "" {
		return false
	}
	placeholders := []string{
		"your-api-key", "your-google-api-key", "your-gemini-api-key",
		"your-search-engine-id", "YOUR_API_KEY", "PLACEHOLDER", "TODO", "CHANGE_ME",
	}
	for _, placeholder := range placeholders {
		if v == placeholder {
			return false
		}
	}
	return true
}

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
