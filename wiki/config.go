package wiki

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultChunkSize is the threshold above which uploads switch to the
// chunked protocol, and the size of each chunk (1 MiB).
const DefaultChunkSize = 1024 * 1024

// Config holds wiki connection and run-mode settings
type Config struct {
	// Year selects the wiki edition; the host is <year>.igem.org
	Year int

	// Team is the team namespace, normalized to "Team:<name>"
	Team string

	// Prefix is an extra title prefix inserted after the team namespace
	Prefix string

	// Username for the wiki login form (required unless DryRun)
	Username string

	// Password for the wiki login form (required unless DryRun)
	Password string

	// ChunkSize is the chunked-upload threshold and chunk length in bytes
	ChunkSize int64

	// Timeout for API requests
	Timeout time.Duration

	// UserAgent identifies the client to the wiki
	UserAgent string

	// MaxRetries for failed requests
	MaxRetries int

	// DryRun skips every network call and synthesizes placeholder results
	DryRun bool

	// APIURL overrides the derived API endpoint (used in tests)
	APIURL string

	// LoginURL overrides the derived login endpoint (used in tests)
	LoginURL string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	year := time.Now().Year()
	if y := os.Getenv("IGEM_YEAR"); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil {
			return nil, fmt.Errorf("invalid IGEM_YEAR %q: %w", y, err)
		}
		year = n
	}

	team := os.Getenv("IGEM_TEAM")
	if team == "" {
		return nil, errors.New("IGEM_TEAM environment variable is required")
	}

	timeout := 30 * time.Second
	if t := os.Getenv("IGEM_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	maxRetries := 3
	if r := os.Getenv("IGEM_MAX_RETRIES"); r != "" {
		if n, err := strconv.Atoi(r); err == nil && n >= 0 {
			maxRetries = n
		}
	}

	cfg := &Config{
		Year:       year,
		Team:       team,
		Prefix:     os.Getenv("IGEM_PREFIX"),
		Username:   os.Getenv("IGEM_USERNAME"),
		Password:   os.Getenv("IGEM_PASSWORD"),
		ChunkSize:  DefaultChunkSize,
		Timeout:    timeout,
		MaxRetries: maxRetries,
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize fills derived defaults and canonicalizes the team namespace.
// Safe to call more than once.
func (c *Config) Normalize() {
	if c.Team != "" && !hasTeamPrefix(c.Team) {
		c.Team = "Team:" + c.Team
	}
	if c.Year == 0 {
		c.Year = time.Now().Year()
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "wikipub/1.0 (https://github.com/igem-tools/wikipub)"
	}
}

func hasTeamPrefix(team string) bool {
	return len(team) >= 5 && team[:5] == "Team:"
}

// HasCredentials returns true if login credentials are configured
func (c *Config) HasCredentials() bool {
	return c.Username != "" && c.Password != ""
}

// BaseHost is the host assets are served from, e.g. "2024.igem.org"
func (c *Config) BaseHost() string {
	return fmt.Sprintf("%d.igem.org", c.Year)
}

// BaseURL is the asset URL root. The wiki loads stylesheets over plain
// HTTP, so forcing HTTPS here would trip mixed-content warnings.
func (c *Config) BaseURL() string {
	return "http://" + c.BaseHost()
}

// APIEndpoint is the Action API URL for the selected edition
func (c *Config) APIEndpoint() string {
	if c.APIURL != "" {
		return c.APIURL
	}
	return fmt.Sprintf("https://%d.igem.org/wiki/api.php", c.Year)
}

// LoginEndpoint is the form-login URL shared by all editions
func (c *Config) LoginEndpoint() string {
	if c.LoginURL != "" {
		return c.LoginURL
	}
	return "https://igem.org/Login2"
}

// Namespace returns the title namespace derived from this configuration
func (c *Config) Namespace() Namespace {
	return Namespace{
		Team:    c.Team,
		Prefix:  c.Prefix,
		BaseURL: c.BaseURL(),
	}
}
