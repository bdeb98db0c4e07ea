package wiki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/igem-tools/wikipub/metrics"
)

// Client drives the wiki Action API. The publishing pipeline is strictly
// sequential, so the client carries no request-level concurrency control;
// it does retry failed requests with exponential backoff.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *slog.Logger

	// Authentication state
	mu        sync.Mutex
	loggedIn  bool
	csrfToken string
}

const dryRunToken = "--- DRY RUN TOKEN ---"

// NewClient creates a new wiki API client
func NewClient(config *Config, logger *slog.Logger) *Client {
	config.Normalize()
	jar, _ := cookiejar.New(nil)

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Jar:       jar,
			Transport: transport,
		},
		logger: logger,
	}
}

// Config returns the configuration the client was built with
func (c *Client) Config() *Config {
	return c.config
}

// DryRun reports whether the client skips network calls
func (c *Client) DryRun() bool {
	return c.config.DryRun
}

// apiRequest posts form-encoded params to the Action API and decodes the
// JSON response, retrying transient failures with exponential backoff.
func (c *Client) apiRequest(ctx context.Context, params url.Values) (map[string]interface{}, error) {
	params.Set("format", "json")
	action := params.Get("action")

	body := func() (io.Reader, string) {
		return strings.NewReader(params.Encode()), "application/x-www-form-urlencoded"
	}
	return c.doAPIRequest(ctx, action, body)
}

// apiUpload posts a multipart request carrying one file part plus
// form fields, used by the upload handshake.
func (c *Client) apiUpload(ctx context.Context, fields url.Values, fileField, filename string, data []byte) (map[string]interface{}, error) {
	fields.Set("format", "json")
	action := fields.Get("action")

	body := func() (io.Reader, string) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for key, values := range fields {
			for _, v := range values {
				_ = w.WriteField(key, v)
			}
		}
		part, err := w.CreateFormFile(fileField, filename)
		if err == nil {
			_, _ = part.Write(data)
		}
		_ = w.Close()
		return &buf, w.FormDataContentType()
	}
	return c.doAPIRequest(ctx, action, body)
}

// doAPIRequest runs the retry loop shared by form and multipart requests.
// makeBody is invoked per attempt because request bodies are consumed on read.
func (c *Client) doAPIRequest(ctx context.Context, action string, makeBody func() (io.Reader, string)) (map[string]interface{}, error) {
	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.APIRetries.WithLabelValues(action).Inc()
			backoff := time.Duration(attempt*attempt) * 100 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
			}
		}

		body, contentType := makeBody()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.APIEndpoint(), body)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("User-Agent", c.config.UserAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			c.logger.Warn("API request failed, retrying",
				"action", action,
				"attempt", attempt+1,
				"max_retries", c.config.MaxRetries,
				"error", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			// Client errors do not improve with retries, except 429
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				metrics.RecordAPICall(action, time.Since(start).Seconds(), false)
				return nil, fmt.Errorf("client error %d: %s", resp.StatusCode, string(respBody))
			}

			if resp.StatusCode == http.StatusTooManyRequests {
				if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
					if seconds, parseErr := strconv.Atoi(retryAfter); parseErr == nil {
						c.logger.Warn("Rate limited, waiting",
							"retry_after", seconds,
							"attempt", attempt+1)
						select {
						case <-time.After(time.Duration(seconds) * time.Second):
						case <-ctx.Done():
							return nil, fmt.Errorf("context cancelled during rate limit wait: %w", ctx.Err())
						}
						continue
					}
				}
			}

			lastErr = fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(respBody))
			c.logger.Warn("API returned non-OK status",
				"status", resp.StatusCode,
				"attempt", attempt+1)
			continue
		}

		var result map[string]interface{}
		if err := json.Unmarshal(respBody, &result); err != nil {
			metrics.RecordAPICall(action, time.Since(start).Seconds(), false)
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}

		metrics.RecordAPICall(action, time.Since(start).Seconds(), true)
		return result, nil
	}

	metrics.RecordAPICall(action, time.Since(start).Seconds(), false)
	return nil, lastErr
}

// Login authenticates against the account server's form login, then
// obtains a CSRF token for subsequent edits and uploads. The token is
// fetched once per run and attached to every mutating request.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loggedIn {
		return nil
	}

	if c.config.DryRun {
		c.csrfToken = dryRunToken
		c.loggedIn = true
		c.logger.Info("Dry run: skipping login handshake")
		return nil
	}

	if !c.config.HasCredentials() {
		metrics.AuthFailures.WithLabelValues("missing_credentials").Inc()
		return &AuthenticationError{
			Code:      AuthCodeInvalidCredentials,
			Operation: "login",
			Reason:    "no credentials configured; set IGEM_USERNAME and IGEM_PASSWORD or pass --username/--password",
		}
	}

	form := url.Values{}
	form.Set("return_to", "")
	form.Set("username", c.config.Username)
	form.Set("password", c.config.Password)
	form.Set("Login", "Login")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.LoginEndpoint(), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.AuthFailures.WithLabelValues("network").Inc()
		return fmt.Errorf("login request failed: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	// A successful form login redirects to the Login_Confirmed page
	if !strings.HasSuffix(resp.Request.URL.Path, "Login_Confirmed") {
		metrics.AuthFailures.WithLabelValues("rejected").Inc()
		return &AuthenticationError{
			Code:      AuthCodeInvalidCredentials,
			Operation: "login",
			Reason:    fmt.Sprintf("login form did not confirm (landed on %s)", resp.Request.URL.Path),
		}
	}

	token, err := c.fetchCSRFToken(ctx)
	if err != nil {
		metrics.AuthFailures.WithLabelValues("token").Inc()
		return err
	}
	c.csrfToken = token
	c.loggedIn = true
	c.logger.Info("Obtained edit token", "username", c.config.Username)
	return nil
}

// fetchCSRFToken queries the Action API for a CSRF token
func (c *Client) fetchCSRFToken(ctx context.Context) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("meta", "tokens")

	resp, err := c.apiRequest(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to get CSRF token: %w", err)
	}

	query := getMap(resp["query"])
	if query == nil {
		return "", &AuthenticationError{Code: AuthCodeTokenMissing, Operation: "token", Reason: "no query in token response"}
	}
	tokens := getMap(query["tokens"])
	token := getString(tokens["csrftoken"])
	if token == "" {
		return "", &AuthenticationError{Code: AuthCodeTokenMissing, Operation: "token", Reason: "no csrftoken in token response"}
	}
	return token, nil
}

// token returns the CSRF token, logging in first if needed
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	loggedIn := c.loggedIn
	token := c.csrfToken
	c.mu.Unlock()
	if loggedIn {
		return token, nil
	}
	if err := c.Login(ctx); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.csrfToken, nil
}

// apiError converts an Action API error payload into a Go error, or nil
func apiError(resp map[string]interface{}) error {
	if errObj := getMap(resp["error"]); errObj != nil {
		return fmt.Errorf("API error [%s]: %s", getString(errObj["code"]), getString(errObj["info"]))
	}
	return nil
}

// Helper accessors over the loosely typed Action API JSON

func getMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

func getSlice(v interface{}) []interface{} {
	s, _ := v.([]interface{})
	return s
}

func getString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func getInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	default:
		return 0
	}
}

func getInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}
