// Package opnsense is a small client for the OPNsense management API.
//
// Every request authenticates with the API key/secret pair as HTTP basic
// auth. Calls are attempted once; a transport failure against the primary
// URL fails over to the alternative URL when one is configured.
package opnsense

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"grimm.is/opnwatch/internal/brand"
	"grimm.is/opnwatch/internal/logging"
)

// DefaultTimeout bounds a single API call.
const DefaultTimeout = 25 * time.Second

// APIError is returned when the appliance answers with a non-2xx status.
type APIError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d) for %s: %s", e.StatusCode, e.URL, e.Body)
}

// Observer is notified after every API call. err is nil on success.
type Observer func(endpoint string, err error, elapsed time.Duration)

// Client talks to one OPNsense appliance.
type Client struct {
	baseURL             string
	alternativeURL      string
	apiKey              string
	apiSecret           string
	name                string
	httpClient          *http.Client
	insecure            bool
	expectedFingerprint string
	observer            Observer
	logger              *logging.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithInsecureTLS disables certificate verification. Appliances usually
// ship self-signed certificates.
func WithInsecureTLS(insecure bool) Option {
	return func(c *Client) {
		c.insecure = insecure
	}
}

// WithFingerprint pins the leaf certificate (SHA-256 hex).
func WithFingerprint(fp string) Option {
	return func(c *Client) {
		c.expectedFingerprint = strings.ToLower(fp)
	}
}

// WithAlternativeURL sets the failover base URL.
func WithAlternativeURL(u string) Option {
	return func(c *Client) {
		c.alternativeURL = strings.TrimRight(u, "/")
	}
}

// WithName sets the human readable name used in logs.
func WithName(name string) Option {
	return func(c *Client) {
		c.name = name
	}
}

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithObserver registers a callback invoked after every request.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a client for the appliance at baseURL.
func NewClient(baseURL, apiKey, apiSecret string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		name:      baseURL,
		insecure:  true,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.WithComponent("opnsense")
	}
	c.logger = c.logger.WithFields(map[string]any{"instance": c.name})

	if c.httpClient.Transport == nil {
		c.httpClient.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: c.tlsConfig(),
		}
	}

	return c
}

func (c *Client) tlsConfig() *tls.Config {
	if !c.insecure && c.expectedFingerprint == "" {
		return &tls.Config{}
	}
	return &tls.Config{
		// Verified manually below when a fingerprint is pinned.
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if c.expectedFingerprint == "" || len(rawCerts) == 0 {
				return nil
			}
			hash := sha256.Sum256(rawCerts[0])
			fingerprint := hex.EncodeToString(hash[:])
			if fingerprint != c.expectedFingerprint {
				return fmt.Errorf("certificate fingerprint mismatch: expected %s, got %s", c.expectedFingerprint, fingerprint)
			}
			return nil
		},
	}
}

// Name returns the human readable name of the appliance.
func (c *Client) Name() string {
	return c.name
}

// BaseURL returns the primary base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs a call against /api/<endpoint> and decodes the JSON
// response into result.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	start := time.Now()
	err := c.doWithFailover(ctx, method, endpoint, body, result)
	if c.observer != nil {
		c.observer(endpoint, err, time.Since(start))
	}
	return err
}

func (c *Client) doWithFailover(ctx context.Context, method, endpoint string, body, result any) error {
	err := c.doOnce(ctx, c.baseURL, method, endpoint, body, result)
	if err == nil || c.alternativeURL == "" || ctx.Err() != nil {
		return err
	}

	// Only transport failures fail over; the appliance answered otherwise.
	var apiErr *APIError
	if errors.As(err, &apiErr) || errors.Is(err, errDecode) {
		return err
	}

	c.logger.Warn("primary address unreachable, trying alternative",
		"endpoint", endpoint,
		"alternative", c.alternativeURL,
		"error", err)
	return c.doOnce(ctx, c.alternativeURL, method, endpoint, body, result)
}

var errDecode = errors.New("failed to decode response")

func (c *Client) doOnce(ctx context.Context, base, method, endpoint string, body, result any) error {
	url := base + "/api/" + strings.TrimLeft(endpoint, "/")

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", brand.UserAgent(brand.Version))
	req.SetBasicAuth(c.apiKey, c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, URL: url, Body: strings.TrimSpace(string(respBody))}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w from %s: %v", errDecode, url, err)
		}
	}

	return nil
}
