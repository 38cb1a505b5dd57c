package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all environment variables.
const EnvPrefix = "ACCENT_PRACTICE_"

// Config holds all application configuration. Secrets (API keys, credentials)
// are loaded exclusively from environment variables and never appear in the
// config file.
type Config struct {
	HTTPAddr       string   `yaml:"http_addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimit      int      `yaml:"rate_limit"`

	DBPath     string `yaml:"db_path"`
	WorkDir    string `yaml:"work_dir"`
	ArchiveDir string `yaml:"archive_dir"`

	SessionMaxAge string `yaml:"session_max_age"`
	SweepInterval string `yaml:"sweep_interval"`

	TranscribeBackend string `yaml:"transcribe_backend"`
	DeepgramModel     string `yaml:"deepgram_model"`

	// CoachModel is a provider/model_name spec, e.g. "openai/gpt-4o-mini"
	// or "anthropic/claude-3-5-haiku-latest".
	CoachModel string `yaml:"coach_model"`

	FfmpegBin  string `yaml:"ffmpeg_bin"`
	FfprobeBin string `yaml:"ffprobe_bin"`

	Minio  MinioSettings `yaml:"minio"`
	GDrive DriveSettings `yaml:"gdrive"`

	// Secrets live in env vars only and are never serialized to YAML.
	DeepgramAPIKey   string `yaml:"-"`
	AssemblyAIAPIKey string `yaml:"-"`
	OpenAIAPIKey     string `yaml:"-"`
	AnthropicAPIKey  string `yaml:"-"`
	GeminiAPIKey     string `yaml:"-"`
	JWTSecret        string `yaml:"-"`
	MinioAccessKey   string `yaml:"-"`
	MinioSecretKey   string `yaml:"-"`
}

// MinioSettings holds the non-secret part of the object store target. The
// store is only used when an endpoint and credentials are all present.
type MinioSettings struct {
	Endpoint string `yaml:"endpoint"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	UseSSL   bool   `yaml:"use_ssl"`
}

// DriveSettings points at a Google Drive folder used as the audio archive
// when no S3-compatible store is configured. The service account credentials
// file stays outside the config file.
type DriveSettings struct {
	CredentialsFile string `yaml:"credentials_file"`
	FolderID        string `yaml:"folder_id"`
}

func defaults() Config {
	return Config{
		HTTPAddr:          ":8080",
		AllowedOrigins:    []string{"http://localhost:3000"},
		RateLimit:         120,
		DBPath:            "data/accent-practice.db",
		WorkDir:           "data/work",
		ArchiveDir:        "data/archive",
		SessionMaxAge:     "24h",
		SweepInterval:     "1h",
		TranscribeBackend: "deepgram",
		DeepgramModel:     "nova-2",
		CoachModel:        "openai/gpt-4o-mini",
		FfmpegBin:         "ffmpeg",
		FfprobeBin:        "ffprobe",
		Minio: MinioSettings{
			Bucket: "accent-practice",
			Region: "us-east-1",
		},
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, loads secrets, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedSessionMaxAge returns SessionMaxAge as a time.Duration,
// falling back to 24h if the value is invalid.
func (c *Config) ParsedSessionMaxAge() time.Duration {
	d, err := time.ParseDuration(c.SessionMaxAge)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// ParsedSweepInterval returns SweepInterval as a time.Duration,
// falling back to 1h if the value is invalid.
func (c *Config) ParsedSweepInterval() time.Duration {
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// CoachSpec splits CoachModel into its provider and model name.
func (c *Config) CoachSpec() (provider, model string, err error) {
	parts := strings.SplitN(c.CoachModel, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid coach_model %q: expected provider/model_name", c.CoachModel)
	}
	switch parts[0] {
	case "openai", "anthropic", "gemini":
		return parts[0], parts[1], nil
	}
	return "", "", fmt.Errorf("unknown coach provider %q", parts[0])
}

// CoachAPIKey returns the secret matching a coach provider.
func (c *Config) CoachAPIKey(provider string) string {
	switch provider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	}
	return ""
}

// MinioConfigured reports whether the object store target is complete enough
// to use. Anything less falls back to the local archive directory.
func (c *Config) MinioConfigured() bool {
	return c.Minio.Endpoint != "" && c.Minio.Bucket != "" &&
		c.MinioAccessKey != "" && c.MinioSecretKey != ""
}

// GDriveConfigured reports whether a Drive folder archive is usable.
func (c *Config) GDriveConfigured() bool {
	return c.GDrive.CredentialsFile != "" && c.GDrive.FolderID != ""
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv(EnvPrefix + "ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitAndTrim(v)
	}
	if v := os.Getenv(EnvPrefix + "RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			cfg.RateLimit = n
		}
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "WORK_DIR"); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv(EnvPrefix + "ARCHIVE_DIR"); v != "" {
		cfg.ArchiveDir = v
	}
	if v := os.Getenv(EnvPrefix + "SESSION_MAX_AGE"); v != "" {
		cfg.SessionMaxAge = v
	}
	if v := os.Getenv(EnvPrefix + "SWEEP_INTERVAL"); v != "" {
		cfg.SweepInterval = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIBE_BACKEND"); v != "" {
		cfg.TranscribeBackend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv(EnvPrefix + "DEEPGRAM_MODEL"); v != "" {
		cfg.DeepgramModel = v
	}
	if v := os.Getenv(EnvPrefix + "COACH_MODEL"); v != "" {
		cfg.CoachModel = v
	}
	if v := os.Getenv(EnvPrefix + "FFMPEG_BIN"); v != "" {
		cfg.FfmpegBin = v
	}
	if v := os.Getenv(EnvPrefix + "FFPROBE_BIN"); v != "" {
		cfg.FfprobeBin = v
	}
	if v := os.Getenv(EnvPrefix + "MINIO_ENDPOINT"); v != "" {
		cfg.Minio.Endpoint = v
	}
	if v := os.Getenv(EnvPrefix + "MINIO_BUCKET"); v != "" {
		cfg.Minio.Bucket = v
	}
	if v := os.Getenv(EnvPrefix + "MINIO_REGION"); v != "" {
		cfg.Minio.Region = v
	}
	if v := os.Getenv(EnvPrefix + "MINIO_PREFIX"); v != "" {
		cfg.Minio.Prefix = v
	}
	if v := os.Getenv(EnvPrefix + "MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.Minio.UseSSL = b
		}
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_CREDENTIALS_FILE"); v != "" {
		cfg.GDrive.CredentialsFile = v
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDrive.FolderID = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
	cfg.AssemblyAIAPIKey = os.Getenv(EnvPrefix + "ASSEMBLYAI_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
	cfg.JWTSecret = os.Getenv(EnvPrefix + "JWT_SECRET")
	cfg.MinioAccessKey = os.Getenv(EnvPrefix + "MINIO_ACCESS_KEY")
	cfg.MinioSecretKey = os.Getenv(EnvPrefix + "MINIO_SECRET_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	switch cfg.TranscribeBackend {
	case "deepgram":
		if cfg.DeepgramAPIKey == "" {
			warnings = append(warnings, "Deepgram API key not configured — transcription is disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
		}
	case "assemblyai":
		if cfg.AssemblyAIAPIKey == "" {
			warnings = append(warnings, "AssemblyAI API key not configured — transcription is disabled. Set "+EnvPrefix+"ASSEMBLYAI_API_KEY.")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown transcribe_backend %q — using deepgram.", cfg.TranscribeBackend))
		cfg.TranscribeBackend = "deepgram"
	}

	provider, _, err := cfg.CoachSpec()
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid coach_model %q — using default openai/gpt-4o-mini.", cfg.CoachModel))
		cfg.CoachModel = "openai/gpt-4o-mini"
		provider = "openai"
	}
	if cfg.CoachAPIKey(provider) == "" {
		warnings = append(warnings, fmt.Sprintf("No API key for coach provider %q — topic generation and speech feedback are disabled. Set %s%s_API_KEY.",
			provider, EnvPrefix, strings.ToUpper(provider)))
	}
	if cfg.JWTSecret == "" {
		warnings = append(warnings, "JWT secret not configured — all requests are treated as guests. Set "+EnvPrefix+"JWT_SECRET.")
	}
	if _, err := time.ParseDuration(cfg.SessionMaxAge); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid session_max_age %q — using default 24h.", cfg.SessionMaxAge))
	}
	if _, err := time.ParseDuration(cfg.SweepInterval); err != nil {
		warnings = append(warnings, fmt.Sprintf("Invalid sweep_interval %q — using default 1h.", cfg.SweepInterval))
	}
	if cfg.Minio.Endpoint != "" && !cfg.MinioConfigured() {
		warnings = append(warnings, "MinIO endpoint set but credentials incomplete — falling back to local archive. Set "+EnvPrefix+"MINIO_ACCESS_KEY and "+EnvPrefix+"MINIO_SECRET_KEY.")
	}
	if (cfg.GDrive.CredentialsFile != "") != (cfg.GDrive.FolderID != "") {
		warnings = append(warnings, "Google Drive archive needs both gdrive.credentials_file and gdrive.folder_id — falling back to local archive.")
	}

	return warnings
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		result = append(result, trimmed)
	}
	return result
}
