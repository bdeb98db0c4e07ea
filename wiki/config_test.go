package wiki

import (
	"testing"
	"time"
)

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("IGEM_YEAR", "2024")
	t.Setenv("IGEM_TEAM", "Amsterdam")
	t.Setenv("IGEM_USERNAME", "user")
	t.Setenv("IGEM_PASSWORD", "pass")
	t.Setenv("IGEM_TIMEOUT", "10s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Year != 2024 {
		t.Errorf("Year = %d, want 2024", cfg.Year)
	}
	if cfg.Team != "Team:Amsterdam" {
		t.Errorf("Team = %q, want Team:Amsterdam", cfg.Team)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
	if !cfg.HasCredentials() {
		t.Error("expected credentials to be set")
	}
	if cfg.ChunkSize != DefaultChunkSize {
		t.Errorf("ChunkSize = %d, want %d", cfg.ChunkSize, DefaultChunkSize)
	}
}

func TestLoadConfig_RequiresTeam(t *testing.T) {
	t.Setenv("IGEM_TEAM", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected an error without IGEM_TEAM")
	}
}

func TestLoadConfig_InvalidYear(t *testing.T) {
	t.Setenv("IGEM_YEAR", "not-a-year")
	t.Setenv("IGEM_TEAM", "Amsterdam")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected an error for a malformed year")
	}
}

func TestConfig_Normalize(t *testing.T) {
	cfg := &Config{Team: "Amsterdam", Year: 2024}
	cfg.Normalize()

	if cfg.Team != "Team:Amsterdam" {
		t.Errorf("Team = %q, want Team:Amsterdam", cfg.Team)
	}
	if cfg.ChunkSize != DefaultChunkSize {
		t.Errorf("ChunkSize default not applied: %d", cfg.ChunkSize)
	}
	if cfg.UserAgent == "" {
		t.Error("UserAgent default not applied")
	}

	// Already canonical team names stay put
	cfg.Normalize()
	if cfg.Team != "Team:Amsterdam" {
		t.Errorf("Normalize not idempotent: %q", cfg.Team)
	}
}

func TestConfig_DerivedEndpoints(t *testing.T) {
	cfg := &Config{Team: "Team:Amsterdam", Year: 2024}

	if got := cfg.BaseHost(); got != "2024.igem.org" {
		t.Errorf("BaseHost = %q", got)
	}
	if got := cfg.BaseURL(); got != "http://2024.igem.org" {
		t.Errorf("BaseURL = %q", got)
	}
	if got := cfg.APIEndpoint(); got != "https://2024.igem.org/wiki/api.php" {
		t.Errorf("APIEndpoint = %q", got)
	}
	if got := cfg.LoginEndpoint(); got != "https://igem.org/Login2" {
		t.Errorf("LoginEndpoint = %q", got)
	}

	cfg.APIURL = "http://localhost/api.php"
	if got := cfg.APIEndpoint(); got != "http://localhost/api.php" {
		t.Errorf("APIEndpoint override = %q", got)
	}
}

func TestConfig_Namespace(t *testing.T) {
	cfg := &Config{Team: "Team:Amsterdam", Prefix: "drylab", Year: 2024}
	ns := cfg.Namespace()

	if ns.Team != "Team:Amsterdam" || ns.Prefix != "drylab" {
		t.Errorf("unexpected namespace %+v", ns)
	}
	if ns.BaseURL != "http://2024.igem.org" {
		t.Errorf("unexpected base URL %q", ns.BaseURL)
	}
}
