package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Auth type constants
const (
	AuthTypeNone   = "none"
	AuthTypeBasic  = "basic"
	AuthTypeAPIKey = "apikey"
)

// Transport constants
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

// AuthSettings configuration for authentication
type AuthSettings struct {
	Type    string            `mapstructure:"type"` // AuthTypeNone, AuthTypeBasic, or AuthTypeAPIKey
	Basic   BasicAuthSettings `mapstructure:"basic"`
	APIKeys []string          `mapstructure:"api_keys"`
}

// BasicAuthSettings configuration for basic auth
type BasicAuthSettings struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// IndexSettings configuration for the search index and bulk loading
type IndexSettings struct {
	Name           string        `mapstructure:"name"`
	DataDir        string        `mapstructure:"data_dir"`
	BulkChunkSize  int           `mapstructure:"bulk_chunk_size"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SearchSettings configuration for query execution
type SearchSettings struct {
	CacheSize    int `mapstructure:"cache_size"`
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

// Settings application settings
type Settings struct {
	Transport   string         `mapstructure:"transport"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Auth        AuthSettings   `mapstructure:"auth"`
	ConfigFile  string         `mapstructure:"config_file"`
	FrontendDir string         `mapstructure:"frontend_dir"`
	CORSOrigins []string       `mapstructure:"cors_origins"`
	RateLimit   float64        `mapstructure:"rate_limit"`
	LogLevel    string         `mapstructure:"log_level"`
	LogFormat   string         `mapstructure:"log_format"`
	Index       IndexSettings  `mapstructure:"index"`
	Search      SearchSettings `mapstructure:"search"`
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("transport", TransportHTTP)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 8000)
	v.SetDefault("auth.type", AuthTypeNone)
	v.SetDefault("config_file", DefaultSourcesFile)
	v.SetDefault("frontend_dir", "")
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("rate_limit", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "")

	// Index defaults
	v.SetDefault("index.name", "sql_files")
	v.SetDefault("index.data_dir", defaultDataDir())
	v.SetDefault("index.bulk_chunk_size", 500)
	v.SetDefault("index.request_timeout", 120*time.Second)

	// Search defaults
	v.SetDefault("search.cache_size", 256)
	v.SetDefault("search.default_limit", 10)
	v.SetDefault("search.max_limit", 200)

	// Environment variables
	v.SetEnvPrefix("SEEKQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars for nested config
	_ = v.BindEnv("auth.type", "SEEKQL_AUTH_TYPE")
	_ = v.BindEnv("auth.basic.username", "SEEKQL_AUTH_BASIC_USERNAME")
	_ = v.BindEnv("auth.basic.password", "SEEKQL_AUTH_BASIC_PASSWORD")
	_ = v.BindEnv("auth.api_keys", "SEEKQL_AUTH_API_KEYS")
	_ = v.BindEnv("config_file", "SEEKQL_CONFIG_FILE", "SEEKQL_CONFIG")
	_ = v.BindEnv("cors_origins", "SEEKQL_CORS_ORIGINS")

	// Index env var bindings (OS_INDEX / BULK_CHUNK_SIZE kept for existing launch scripts)
	_ = v.BindEnv("index.name", "SEEKQL_INDEX_NAME", "OS_INDEX")
	_ = v.BindEnv("index.data_dir", "SEEKQL_INDEX_DATA_DIR")
	_ = v.BindEnv("index.bulk_chunk_size", "SEEKQL_INDEX_BULK_CHUNK_SIZE", "BULK_CHUNK_SIZE")
	_ = v.BindEnv("index.request_timeout", "SEEKQL_INDEX_REQUEST_TIMEOUT")

	// Search env var bindings
	_ = v.BindEnv("search.cache_size", "SEEKQL_SEARCH_CACHE_SIZE")
	_ = v.BindEnv("search.default_limit", "SEEKQL_SEARCH_DEFAULT_LIMIT")
	_ = v.BindEnv("search.max_limit", "SEEKQL_SEARCH_MAX_LIMIT")

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		_ = v.BindPFlag("transport", flags.Lookup("transport"))
		_ = v.BindPFlag("host", flags.Lookup("host"))
		_ = v.BindPFlag("port", flags.Lookup("port"))
		_ = v.BindPFlag("auth.type", flags.Lookup("auth-type"))
		_ = v.BindPFlag("auth.basic.username", flags.Lookup("auth-basic-username"))
		_ = v.BindPFlag("auth.basic.password", flags.Lookup("auth-basic-password"))
		_ = v.BindPFlag("auth.api_keys", flags.Lookup("auth-api-keys"))
		_ = v.BindPFlag("config_file", flags.Lookup("config"))
		_ = v.BindPFlag("frontend_dir", flags.Lookup("frontend-dir"))
		_ = v.BindPFlag("cors_origins", flags.Lookup("cors-origins"))
		_ = v.BindPFlag("rate_limit", flags.Lookup("rate-limit"))
		_ = v.BindPFlag("log_level", flags.Lookup("log-level"))
		_ = v.BindPFlag("log_format", flags.Lookup("log-format"))

		_ = v.BindPFlag("index.name", flags.Lookup("index-name"))
		_ = v.BindPFlag("index.data_dir", flags.Lookup("data-dir"))
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	// Handle explicit parsing of API keys if provided via env var as comma-separated string
	apiKeysEnv := os.Getenv("SEEKQL_AUTH_API_KEYS")
	if apiKeysEnv != "" {
		if len(settings.Auth.APIKeys) == 0 || (len(settings.Auth.APIKeys) == 1 && strings.Contains(settings.Auth.APIKeys[0], ",")) {
			settings.Auth.APIKeys = strings.Split(apiKeysEnv, ",")
		}
	}
	settings.Auth.APIKeys = trimStrings(settings.Auth.APIKeys)

	// Same for CORS origins
	originsEnv := os.Getenv("SEEKQL_CORS_ORIGINS")
	if originsEnv != "" {
		if len(settings.CORSOrigins) == 1 && strings.Contains(settings.CORSOrigins[0], ",") {
			settings.CORSOrigins = strings.Split(originsEnv, ",")
		}
	}
	settings.CORSOrigins = filterEmptyStrings(trimStrings(settings.CORSOrigins))

	settings.Index.DataDir = ExpandHomeDir(settings.Index.DataDir)
	settings.ConfigFile = ExpandHomeDir(settings.ConfigFile)
	settings.FrontendDir = ExpandHomeDir(settings.FrontendDir)

	return &settings, nil
}

// defaultDataDir returns the default directory holding index data
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".seekql"
	}
	return filepath.Join(home, ".seekql")
}

// ExpandHomeDir expands ~ to the user's home directory
func ExpandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// trimStrings trims surrounding whitespace from every element
func trimStrings(s []string) []string {
	for i := range s {
		s[i] = strings.TrimSpace(s[i])
	}
	return s
}

// filterEmptyStrings removes empty strings from a slice
func filterEmptyStrings(s []string) []string {
	var result []string
	for _, str := range s {
		if str != "" {
			result = append(result, str)
		}
	}
	return result
}

// ValidateSettings checks for conflicting configurations.
// Returns an error if the settings contain mutually exclusive or incomplete auth config.
func ValidateSettings(s *Settings) error {
	// Validate transport type
	switch s.Transport {
	case TransportHTTP, TransportStdio:
		// valid
	default:
		return errors.New("transport must be 'http' or 'stdio', got: " + s.Transport)
	}

	hasBasicCreds := s.Auth.Basic.Username != "" || s.Auth.Basic.Password != ""
	hasAPIKeys := len(s.Auth.APIKeys) > 0

	switch s.Auth.Type {
	case AuthTypeNone, "":
		if hasBasicCreds || hasAPIKeys {
			return errors.New("auth-type 'none' is incompatible with auth credentials")
		}
	case AuthTypeBasic:
		if hasAPIKeys {
			return errors.New("auth-type 'basic' is mutually exclusive with auth-api-keys")
		}
		if s.Auth.Basic.Username == "" || s.Auth.Basic.Password == "" {
			return errors.New("auth-type 'basic' requires both username and password")
		}
	case AuthTypeAPIKey:
		if hasBasicCreds {
			return errors.New("auth-type 'apikey' is mutually exclusive with basic auth credentials")
		}
		if !hasAPIKeys {
			return errors.New("auth-type 'apikey' requires at least one API key")
		}
	default:
		return errors.New("unknown auth-type: " + s.Auth.Type)
	}

	if s.RateLimit < 0 {
		return errors.New("rate-limit cannot be negative")
	}

	switch strings.ToLower(s.LogFormat) {
	case "", "text", "json":
	default:
		return errors.New("log-format must be 'text' or 'json', got: " + s.LogFormat)
	}

	if err := validateIndexSettings(&s.Index); err != nil {
		return err
	}

	return validateSearchSettings(&s.Search)
}

// validateIndexSettings validates the index configuration
func validateIndexSettings(i *IndexSettings) error {
	if strings.TrimSpace(i.Name) == "" {
		return errors.New("index-name cannot be empty")
	}
	if strings.ContainsAny(i.Name, `/\`) {
		return errors.New("index-name cannot contain path separators")
	}
	if i.DataDir == "" {
		return errors.New("data-dir cannot be empty")
	}
	if i.BulkChunkSize <= 0 {
		return errors.New("index bulk-chunk-size must be positive")
	}
	if i.RequestTimeout <= 0 {
		return errors.New("index request-timeout must be positive")
	}
	return nil
}

// validateSearchSettings validates the search configuration
func validateSearchSettings(s *SearchSettings) error {
	if s.CacheSize < 0 {
		return errors.New("search cache-size cannot be negative")
	}
	if s.DefaultLimit <= 0 {
		return errors.New("search default-limit must be positive")
	}
	if s.MaxLimit < s.DefaultLimit {
		return errors.New("search max-limit must be at least default-limit")
	}
	return nil
}
