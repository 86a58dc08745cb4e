package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"hypnosd/internal/conversation"
	"hypnosd/internal/model"
)

// Defaults applied by WithDefaults.
const (
	DefaultPort             = 3001
	DefaultGenerationTokens = 256
	DefaultContextSize      = 2048
	DefaultCacheDir         = "~/.cache/hypnosd/models"
	DefaultWebInterface     = "web_interface.html"
	DefaultMaxBodyBytes     = 1 << 20
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	// Addr overrides Port when set, e.g. "127.0.0.1:3001".
	Addr string `json:"addr" yaml:"addr" toml:"addr"`
	Port int    `json:"port" yaml:"port" toml:"port"`

	ModelSource     string `json:"model_source" yaml:"model_source" toml:"model_source"`
	ModelCacheDir   string `json:"model_cache_dir" yaml:"model_cache_dir" toml:"model_cache_dir"`
	ModelMountDir   string `json:"model_mount_dir" yaml:"model_mount_dir" toml:"model_mount_dir"`
	StorageEndpoint string `json:"storage_endpoint" yaml:"storage_endpoint" toml:"storage_endpoint"`

	APIKey           string `json:"api_key" yaml:"api_key" toml:"api_key"`
	GenerationTokens int    `json:"generation_tokens" yaml:"generation_tokens" toml:"generation_tokens"`
	ContextSize      int    `json:"context_size" yaml:"context_size" toml:"context_size"`
	Threads          int    `json:"threads" yaml:"threads" toml:"threads"`

	Persona     string `json:"persona" yaml:"persona" toml:"persona"`
	PersonaFile string `json:"persona_file" yaml:"persona_file" toml:"persona_file"`

	WebInterface string   `json:"web_interface" yaml:"web_interface" toml:"web_interface"`
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	LogLevel        string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat       string `json:"log_format" yaml:"log_format" toml:"log_format"`
	LogFile         string `json:"log_file" yaml:"log_file" toml:"log_file"`
	RequestLogLevel string `json:"request_log_level" yaml:"request_log_level" toml:"request_log_level"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is only an
// error when required is true.
func LoadEnvFile(path string, required bool) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	return nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment variables onto cfg. Set variables win over
// file values.
func ApplyEnv(cfg Config, lookup LookupFunc) (Config, error) {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	var errs []error
	num := func(dst *int, key string) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}

	str(&cfg.Addr, "ADDR")
	num(&cfg.Port, "PORT")
	str(&cfg.ModelSource, "MODEL_SOURCE", "LOCAL_MODEL_PATH")
	str(&cfg.ModelCacheDir, "MODEL_CACHE_DIR")
	str(&cfg.ModelMountDir, "MODEL_MOUNT_DIR")
	str(&cfg.StorageEndpoint, "STORAGE_ENDPOINT")
	str(&cfg.APIKey, "API_KEY")
	num(&cfg.GenerationTokens, "GENERATION_TOKENS")
	num(&cfg.ContextSize, "CONTEXT_SIZE")
	num(&cfg.Threads, "THREADS")
	str(&cfg.PersonaFile, "PERSONA_FILE")
	str(&cfg.WebInterface, "WEB_INTERFACE_PATH")
	str(&cfg.LogLevel, "LOG_LEVEL")
	str(&cfg.LogFormat, "LOG_FORMAT")
	str(&cfg.LogFile, "LOG_FILE")
	str(&cfg.RequestLogLevel, "REQUEST_LOG_LEVEL")
	// An explicitly empty CORS_ORIGINS disables CORS.
	if v, ok := lookup("CORS_ORIGINS"); ok {
		cfg.CORSOrigins = append([]string{}, splitCSV(v)...)
	}
	return cfg, errors.Join(errs...)
}

// splitCSV splits a comma-separated list, trimming spaces and dropping empties.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// WithDefaults fills unspecified fields.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ModelCacheDir == "" {
		c.ModelCacheDir = DefaultCacheDir
	}
	if c.StorageEndpoint == "" {
		c.StorageEndpoint = model.DefaultStorageEndpoint
	}
	if c.GenerationTokens == 0 {
		c.GenerationTokens = DefaultGenerationTokens
	}
	if c.ContextSize == 0 {
		c.ContextSize = DefaultContextSize
	}
	if c.Persona == "" && c.PersonaFile == "" {
		c.Persona = conversation.DefaultPersona
	}
	if c.WebInterface == "" {
		c.WebInterface = DefaultWebInterface
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{"*"}
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.RequestLogLevel == "" {
		c.RequestLogLevel = "info"
	}
	return c
}

// ListenAddr is the address the HTTP server binds.
func (c Config) ListenAddr() string {
	if c.Addr != "" {
		return c.Addr
	}
	return ":" + strconv.Itoa(c.Port)
}

// Validate reports every invalid field at once. Call after WithDefaults.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ModelSource) == "" {
		errs = append(errs, errors.New("model_source is required (MODEL_SOURCE or LOCAL_MODEL_PATH)"))
	} else if _, err := model.ParseSource(c.ModelSource); err != nil {
		errs = append(errs, err)
	}
	if c.APIKey == "" {
		errs = append(errs, errors.New("api_key is required (API_KEY)"))
	}
	if c.Addr == "" && (c.Port < 1 || c.Port > 65535) {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.GenerationTokens <= 0 {
		errs = append(errs, fmt.Errorf("generation_tokens must be positive, got %d", c.GenerationTokens))
	}
	if c.ContextSize <= c.GenerationTokens+conversation.DefaultHeadroom {
		errs = append(errs, fmt.Errorf("context_size %d leaves no room for history after %d generation tokens", c.ContextSize, c.GenerationTokens))
	}
	if c.Threads < 0 {
		errs = append(errs, fmt.Errorf("threads must not be negative"))
	}
	if c.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("max_body_bytes must not be negative"))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log_format must be json or console, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// ResolvePersona returns the persona text, reading PersonaFile when set.
func (c Config) ResolvePersona() (string, error) {
	if c.PersonaFile == "" {
		return c.Persona, nil
	}
	b, err := os.ReadFile(c.PersonaFile)
	if err != nil {
		return "", fmt.Errorf("persona file: %w", err)
	}
	p := strings.TrimSpace(string(b))
	if p == "" {
		return "", fmt.Errorf("persona file %s is empty", c.PersonaFile)
	}
	return p, nil
}
