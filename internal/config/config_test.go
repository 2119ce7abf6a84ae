package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Cache: CacheConfig{
			Driver: "memory",
		},
		Storage: StorageConfig{
			Dir:       "data",
			WriteMode: "immediate",
		},
		Embedding: EmbeddingConfig{
			Providers: map[string]ProviderConfig{
				"openai": {
					APIKey:  "test-key",
					BaseURL: "https://api.example.com/v1/",
				},
			},
			Vectorizers: map[string]VectorizerConfig{
				"default": {
					Provider: "openai",
					Model:    "text-embedding-3-small",
				},
			},
		},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingValkeyAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Driver = "valkey"
	cfg.Cache.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing valkey addrs")
	}
}

func TestValidate_InvalidCacheDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Driver = "memcached"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid cache driver")
	}

	expected := `cache.driver must be "memory" or "valkey", got "memcached"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_InvalidWriteMode(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.WriteMode = "lazy"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid write mode")
	}
}

func TestValidate_VectorizerUnknownProvider(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Vectorizers["default"] = VectorizerConfig{
		Provider: "missing",
		Model:    "text-embedding-3-small",
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown provider reference")
	}

	expected := `embedding.vectorizers.default references unknown provider "missing"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_VectorizerMissingModel(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Vectorizers["default"] = VectorizerConfig{Provider: "openai"}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing vectorizer model")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Cache.Driver != "memory" {
		t.Errorf("expected Driver='memory', got %q", cfg.Cache.Driver)
	}
	if cfg.Cache.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Cache.ReadinessTimeout)
	}
	if cfg.Storage.Dir != "data" {
		t.Errorf("expected Dir='data', got %q", cfg.Storage.Dir)
	}
	if cfg.Storage.WriteMode != "immediate" {
		t.Errorf("expected WriteMode='immediate', got %q", cfg.Storage.WriteMode)
	}
	if cfg.Search.DefaultTopK != 5 {
		t.Errorf("expected DefaultTopK=5, got %d", cfg.Search.DefaultTopK)
	}
	if cfg.Search.BoostFactor != 1.5 {
		t.Errorf("expected BoostFactor=1.5, got %v", cfg.Search.BoostFactor)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:    HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Cache:   CacheConfig{Driver: "valkey", ReadinessTimeout: 15},
		Storage: StorageConfig{Dir: "/var/lib/memdex", WriteMode: "deferred"},
		Search:  SearchConfig{DefaultTopK: 10, BoostFactor: 2.0},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Cache.Driver != "valkey" {
		t.Errorf("expected Driver='valkey', got %q", cfg.Cache.Driver)
	}
	if cfg.Storage.WriteMode != "deferred" {
		t.Errorf("expected WriteMode='deferred', got %q", cfg.Storage.WriteMode)
	}
	if cfg.Search.DefaultTopK != 10 {
		t.Errorf("expected DefaultTopK=10, got %d", cfg.Search.DefaultTopK)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("MEMDEX_TEST_KEY", "secret")

	in := []byte("api_key: ${MEMDEX_TEST_KEY}\nport: ${MEMDEX_TEST_PORT:-8080}\n")
	out := string(expandEnvVars(in))

	expected := "api_key: secret\nport: 8080\n"
	if out != expected {
		t.Errorf("unexpected expansion:\ngot:  %q\nwant: %q", out, expected)
	}
}
