package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"HTTP_ADDR", "ALLOWED_ORIGINS", "RATE_LIMIT",
		"DB_PATH", "WORK_DIR", "ARCHIVE_DIR",
		"SESSION_MAX_AGE", "SWEEP_INTERVAL",
		"TRANSCRIBE_BACKEND", "DEEPGRAM_MODEL", "COACH_MODEL",
		"FFMPEG_BIN", "FFPROBE_BIN",
		"MINIO_ENDPOINT", "MINIO_BUCKET", "MINIO_REGION", "MINIO_PREFIX", "MINIO_USE_SSL",
		"GDRIVE_CREDENTIALS_FILE", "GDRIVE_FOLDER_ID",
		"DEEPGRAM_API_KEY", "ASSEMBLYAI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY",
		"JWT_SECRET", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "CONFIG",
	} {
		t.Setenv(EnvPrefix+key, "")
	}
}

func setRequiredSecrets(t *testing.T) {
	t.Helper()
	t.Setenv(EnvPrefix+"DEEPGRAM_API_KEY", "key")
	t.Setenv(EnvPrefix+"OPENAI_API_KEY", "key")
	t.Setenv(EnvPrefix+"JWT_SECRET", "secret")
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default http_addr, got %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != "data/accent-practice.db" {
		t.Fatalf("expected default db_path, got %q", cfg.DBPath)
	}
	if cfg.WorkDir != "data/work" {
		t.Fatalf("expected default work_dir, got %q", cfg.WorkDir)
	}
	if cfg.SessionMaxAge != "24h" {
		t.Fatalf("expected default session_max_age, got %q", cfg.SessionMaxAge)
	}
	if cfg.TranscribeBackend != "deepgram" {
		t.Fatalf("expected default transcribe_backend, got %q", cfg.TranscribeBackend)
	}
	if cfg.CoachModel != "openai/gpt-4o-mini" {
		t.Fatalf("expected default coach_model, got %q", cfg.CoachModel)
	}
}

func TestYAMLLoading(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
http_addr: ":9090"
allowed_origins: ["https://app.example.com"]
db_path: /custom/db.sqlite
work_dir: /custom/work
archive_dir: /custom/archive
session_max_age: 48h
sweep_interval: 30m
transcribe_backend: assemblyai
coach_model: anthropic/claude-3-5-haiku-latest
minio:
  endpoint: minio.example.com:9000
  bucket: recordings
  use_ssl: true
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("expected yaml http_addr, got %q", cfg.HTTPAddr)
	}
	if !reflect.DeepEqual(cfg.AllowedOrigins, []string{"https://app.example.com"}) {
		t.Fatalf("expected yaml allowed_origins, got %v", cfg.AllowedOrigins)
	}
	if cfg.DBPath != "/custom/db.sqlite" {
		t.Fatalf("expected yaml db_path, got %q", cfg.DBPath)
	}
	if cfg.WorkDir != "/custom/work" {
		t.Fatalf("expected yaml work_dir, got %q", cfg.WorkDir)
	}
	if cfg.SessionMaxAge != "48h" {
		t.Fatalf("expected yaml session_max_age, got %q", cfg.SessionMaxAge)
	}
	if cfg.TranscribeBackend != "assemblyai" {
		t.Fatalf("expected yaml transcribe_backend, got %q", cfg.TranscribeBackend)
	}
	if cfg.CoachModel != "anthropic/claude-3-5-haiku-latest" {
		t.Fatalf("expected yaml coach_model, got %q", cfg.CoachModel)
	}
	if cfg.Minio.Endpoint != "minio.example.com:9000" || !cfg.Minio.UseSSL {
		t.Fatalf("expected yaml minio settings, got %+v", cfg.Minio)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
db_path: /from/yaml
coach_model: openai/gpt-yaml
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	clearEnv(t)
	t.Setenv(EnvPrefix+"DB_PATH", "/from/env")
	t.Setenv(EnvPrefix+"COACH_MODEL", "gemini/gemini-2.0-flash")
	t.Setenv(EnvPrefix+"WORK_DIR", "/env/work")
	t.Setenv(EnvPrefix+"ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DBPath != "/from/env" {
		t.Fatalf("expected env override for db_path, got %q", cfg.DBPath)
	}
	if cfg.CoachModel != "gemini/gemini-2.0-flash" {
		t.Fatalf("expected env override for coach_model, got %q", cfg.CoachModel)
	}
	if cfg.WorkDir != "/env/work" {
		t.Fatalf("expected env override for work_dir, got %q", cfg.WorkDir)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Fatalf("expected env allowed_origins %v, got %v", want, cfg.AllowedOrigins)
	}
}

func TestSecretsFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"DEEPGRAM_API_KEY", "dg-secret")
	t.Setenv(EnvPrefix+"OPENAI_API_KEY", "oai-secret")
	t.Setenv(EnvPrefix+"JWT_SECRET", "jwt-secret")

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "dg-secret" {
		t.Fatalf("expected deepgram key from env, got %q", cfg.DeepgramAPIKey)
	}
	if cfg.OpenAIAPIKey != "oai-secret" {
		t.Fatalf("expected openai key from env, got %q", cfg.OpenAIAPIKey)
	}
	if cfg.JWTSecret != "jwt-secret" {
		t.Fatalf("expected jwt secret from env, got %q", cfg.JWTSecret)
	}
}

func TestSecretsIgnoredInYAML(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	yamlContent := `
deepgram_api_key: should-be-ignored
openai_api_key: also-ignored
jwt_secret: nope
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "" {
		t.Fatalf("expected empty deepgram key (yaml should be ignored), got %q", cfg.DeepgramAPIKey)
	}
	if cfg.JWTSecret != "" {
		t.Fatalf("expected empty jwt secret (yaml should be ignored), got %q", cfg.JWTSecret)
	}
}

func TestValidationWarnings(t *testing.T) {
	clearEnv(t)

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var deepgramWarning, coachWarning, jwtWarning bool
	for _, w := range warnings {
		if strings.Contains(w, "Deepgram") {
			deepgramWarning = true
		}
		if strings.Contains(w, "coach provider") {
			coachWarning = true
		}
		if strings.Contains(w, "JWT") {
			jwtWarning = true
		}
	}

	if !deepgramWarning {
		t.Fatalf("expected Deepgram warning when key is missing, got warnings: %v", warnings)
	}
	if !coachWarning {
		t.Fatalf("expected coach provider warning when key is missing, got warnings: %v", warnings)
	}
	if !jwtWarning {
		t.Fatalf("expected JWT warning when secret is missing, got warnings: %v", warnings)
	}
}

func TestValidationNoWarningsWhenConfigured(t *testing.T) {
	clearEnv(t)
	setRequiredSecrets(t)

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(warnings) != 0 {
		t.Fatalf("expected no warnings when fully configured, got: %v", warnings)
	}
}

func TestAssemblyAIBackendWarning(t *testing.T) {
	clearEnv(t)
	setRequiredSecrets(t)
	t.Setenv(EnvPrefix+"TRANSCRIBE_BACKEND", "assemblyai")

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(warnings) != 1 || !strings.Contains(warnings[0], "AssemblyAI") {
		t.Fatalf("expected AssemblyAI warning, got: %v", warnings)
	}
}

func TestUnknownBackendFallsBack(t *testing.T) {
	clearEnv(t)
	setRequiredSecrets(t)
	t.Setenv(EnvPrefix+"TRANSCRIBE_BACKEND", "whisper")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.TranscribeBackend != "deepgram" {
		t.Fatalf("expected fallback to deepgram, got %q", cfg.TranscribeBackend)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "transcribe_backend") {
		t.Fatalf("expected transcribe_backend warning, got: %v", warnings)
	}
}

func TestInvalidCoachModelFallsBack(t *testing.T) {
	clearEnv(t)
	setRequiredSecrets(t)
	t.Setenv(EnvPrefix+"COACH_MODEL", "not-a-spec")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.CoachModel != "openai/gpt-4o-mini" {
		t.Fatalf("expected fallback coach_model, got %q", cfg.CoachModel)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "coach_model") {
		t.Fatalf("expected coach_model warning, got: %v", warnings)
	}
}

func TestCoachSpecAndKeySelection(t *testing.T) {
	clearEnv(t)
	setRequiredSecrets(t)
	t.Setenv(EnvPrefix+"COACH_MODEL", "anthropic/claude-3-5-haiku-latest")
	t.Setenv(EnvPrefix+"ANTHROPIC_API_KEY", "anthropic-key")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got: %v", warnings)
	}

	provider, model, err := cfg.CoachSpec()
	if err != nil {
		t.Fatalf("CoachSpec failed: %v", err)
	}
	if provider != "anthropic" || model != "claude-3-5-haiku-latest" {
		t.Fatalf("CoachSpec = %q/%q", provider, model)
	}
	if cfg.CoachAPIKey(provider) != "anthropic-key" {
		t.Fatalf("CoachAPIKey = %q", cfg.CoachAPIKey(provider))
	}
}

func TestInvalidDurationWarnings(t *testing.T) {
	clearEnv(t)
	setRequiredSecrets(t)
	t.Setenv(EnvPrefix+"SESSION_MAX_AGE", "not-a-duration")
	t.Setenv(EnvPrefix+"SWEEP_INTERVAL", "nope")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(warnings) != 2 {
		t.Fatalf("expected two duration warnings, got: %v", warnings)
	}
	if cfg.ParsedSessionMaxAge() != 24*time.Hour {
		t.Fatalf("expected fallback to 24h, got %v", cfg.ParsedSessionMaxAge())
	}
	if cfg.ParsedSweepInterval() != time.Hour {
		t.Fatalf("expected fallback to 1h, got %v", cfg.ParsedSweepInterval())
	}
}

func TestMinioConfigured(t *testing.T) {
	clearEnv(t)
	setRequiredSecrets(t)

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MinioConfigured() {
		t.Fatal("expected MinioConfigured false without endpoint and credentials")
	}

	t.Setenv(EnvPrefix+"MINIO_ENDPOINT", "minio.example.com:9000")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MinioConfigured() {
		t.Fatal("expected MinioConfigured false without credentials")
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "MinIO") {
		t.Fatalf("expected incomplete MinIO warning, got: %v", warnings)
	}

	t.Setenv(EnvPrefix+"MINIO_ACCESS_KEY", "access")
	t.Setenv(EnvPrefix+"MINIO_SECRET_KEY", "secret")

	cfg, warnings, err = Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.MinioConfigured() {
		t.Fatal("expected MinioConfigured true with endpoint and credentials")
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got: %v", warnings)
	}
}

func TestGDriveConfigured(t *testing.T) {
	clearEnv(t)
	setRequiredSecrets(t)
	t.Setenv(EnvPrefix+"GDRIVE_FOLDER_ID", "folder-123")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.GDriveConfigured() {
		t.Fatal("expected GDriveConfigured false without credentials file")
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "gdrive") {
		t.Fatalf("expected incomplete gdrive warning, got: %v", warnings)
	}

	t.Setenv(EnvPrefix+"GDRIVE_CREDENTIALS_FILE", "/etc/creds.json")

	cfg, warnings, err = Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.GDriveConfigured() {
		t.Fatal("expected GDriveConfigured true with credentials and folder")
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got: %v", warnings)
	}
}

func TestMissingConfigFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load should not fail for missing config file, got: %v", err)
	}

	if cfg.DBPath != "data/accent-practice.db" {
		t.Fatalf("expected defaults when config file missing, got db_path=%q", cfg.DBPath)
	}
}

func TestInvalidConfigFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(configPath, []byte(":::invalid yaml"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	clearEnv(t)

	_, _, err := Load(configPath)
	if err == nil {
		t.Fatal("expected error for invalid yaml, got nil")
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" https://a.example.com, ,https://b.example.com ,")
	want := []string{"https://a.example.com", "https://b.example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected origins: got=%v want=%v", got, want)
	}
}
