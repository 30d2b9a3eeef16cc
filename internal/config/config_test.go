package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("POLICYQA_LLM_API_KEY", "")
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
  request_timeout: 30s
storage:
  database_path: "test.db"
llm:
  api_key: "file-key"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("request_timeout = %v, want 30s", cfg.Server.RequestTimeout)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.LLM.APIKey != "file-key" {
		t.Errorf("api_key = %q, want file-key", cfg.LLM.APIKey)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	t.Setenv("POLICYQA_DATABASE_PATH", "")
	path := writeConfig(t, `
storage:
  database_path: "./data/db/chunks.db"
watch:
  directories: ["./inbox"]
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "chunks.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	if want := filepath.Join(dir, "inbox"); cfg.Watch.Directories[0] != want {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], want)
	}
}

func TestLoad_envOverrides(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("POLICYQA_LLM_API_KEY", "")
	t.Setenv("POLICYQA_LLM_MODEL", "gemini-test")
	t.Setenv("POLICYQA_PORT", "9100")
	t.Setenv("POLICYQA_INDEX_PATH", "/tmp/idx")
	path := writeConfig(t, `
llm:
  api_key: "file-key"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "google-key" {
		t.Errorf("api_key = %q, want google-key", cfg.LLM.APIKey)
	}
	if cfg.LLM.Model != "gemini-test" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Storage.BleveIndexPath != "/tmp/idx" {
		t.Errorf("bleve_index_path = %q", cfg.Storage.BleveIndexPath)
	}
}

func TestLoad_invalidPortEnv(t *testing.T) {
	t.Setenv("POLICYQA_PORT", "eighty")
	path := writeConfig(t, "debug: true\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for non-numeric POLICYQA_PORT")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("default cors origins: got %v", cfg.Server.CORSOrigins)
	}
	if cfg.LLM.Model != "gemini-2.0-flash" {
		t.Errorf("default model: got %s", cfg.LLM.Model)
	}
	if cfg.Ingest.ChunkSize != 500 || cfg.Ingest.ChunkOverlap != 50 {
		t.Errorf("default chunking: got %d/%d", cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	}
	if cfg.Ingest.MinChunkLength != 30 {
		t.Errorf("default min chunk length: got %d", cfg.Ingest.MinChunkLength)
	}
	if cfg.Ingest.MaxFiles != 3 {
		t.Errorf("default max files: got %d", cfg.Ingest.MaxFiles)
	}
	if cfg.Ingest.DefaultCategory != "document" {
		t.Errorf("default category: got %s", cfg.Ingest.DefaultCategory)
	}
	if !cfg.Ingest.ClassifyOrDefault() {
		t.Error("classification should default to enabled")
	}
	if cfg.Search.Limit != 5 {
		t.Errorf("default search limit: got %d", cfg.Search.Limit)
	}
	if len(cfg.Search.Fields) != 1 || cfg.Search.Fields[0] != "content" {
		t.Errorf("default search fields: got %v", cfg.Search.Fields)
	}
	if cfg.Search.EnhanceQuery {
		t.Error("query enhancement should default to off")
	}
}

func TestApplyDefaults_WatchRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Directories: []string{"/tmp/docs"}}}
	ApplyDefaults(cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error when api key is missing")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Errorf("error should name the api key: %v", err)
	}

	cfg.LLM.APIKey = "key"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.Ingest.ChunkOverlap = cfg.Ingest.ChunkSize
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when overlap >= chunk size")
	}
}

func TestSave(t *testing.T) {
	t.Setenv("POLICYQA_PORT", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090, RequestTimeout: time.Minute},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Server.RequestTimeout != time.Minute {
		t.Errorf("loaded request_timeout: got %v", loaded.Server.RequestTimeout)
	}
}
