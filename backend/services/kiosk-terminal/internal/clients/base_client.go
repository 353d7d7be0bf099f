package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNoSession is matched by API errors whose code says the terminal has no live session.
	ErrNoSession = errors.New("clients: no session")
	// ErrConflict is matched by 409 API errors.
	ErrConflict = errors.New("clients: conflict")
	// ErrUnauthorized is matched by 401 API errors.
	ErrUnauthorized = errors.New("clients: unauthorized")
)

// APIError is a non-2xx answer of the kiosk API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("kiosk api: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("kiosk api: %d: %s", e.Status, e.Message)
}

// Is maps API errors onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNoSession:
		return e.Code == "NO_SESSION"
	case ErrConflict:
		return e.Status == http.StatusConflict
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	}
	return false
}

// HTTPDoer defines http.Client interface subset.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Credentials holds the terminal bearer token and knows how to obtain a fresh one.
type Credentials struct {
	mu    sync.RWMutex
	token string
	login func(ctx context.Context) (string, error)
}

// NewCredentials returns credentials refreshed through login.
func NewCredentials(login func(ctx context.Context) (string, error)) *Credentials {
	return &Credentials{login: login}
}

// Token returns the current token, empty before the first login.
func (c *Credentials) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Refresh logs in again and stores the new token.
func (c *Credentials) Refresh(ctx context.Context) error {
	token, err := c.login(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return nil
}

// BaseClient provides JSON request helpers against the kiosk API.
type BaseClient struct {
	baseURL string
	client  HTTPDoer
	creds   *Credentials
}

// NewBaseClient builds client with base URL. creds may be nil for unauthenticated endpoints.
func NewBaseClient(baseURL string, client HTTPDoer, creds *Credentials) *BaseClient {
	return &BaseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		creds:   creds,
	}
}

func (c *BaseClient) buildURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Do executes HTTP request and returns status/body.
func (c *BaseClient) Do(ctx context.Context, method, path string, body []byte, headers map[string]string) (int, []byte, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return 0, nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.creds != nil {
		if token := c.creds.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}

// doJSON sends in as JSON and decodes a 2xx answer into out. A JSON null leaves out untouched.
// A 401 triggers one credential refresh and retry.
func (c *BaseClient) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	status, respBody, err := c.Do(ctx, method, path, body, nil)
	if err == nil && status == http.StatusUnauthorized && c.creds != nil {
		if refreshErr := c.creds.Refresh(ctx); refreshErr == nil {
			status, respBody, err = c.Do(ctx, method, path, body, nil)
		}
	}
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if status < 200 || status > 299 {
		return decodeAPIError(status, respBody)
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Error
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// NewDefaultHTTPClient returns *http.Client with timeout.
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
