package uiautomator2

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/devicelab-dev/autopilot/pkg/logger"
)

// ErrNoSuchElement is returned when the server reports that no element
// matched a locator.
var ErrNoSuchElement = errors.New("no such element")

// Client communicates with UIAutomator2 server.
type Client struct {
	http       *http.Client
	baseURL    string
	sessionID  string
	socketPath string
	log        zerolog.Logger
}

// NewClient creates a client using a Unix socket forwarded by adb.
func NewClient(socketPath string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var dialer net.Dialer
			return dialer.DialContext(ctx, "unix", socketPath)
		},
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		baseURL:    "http://localhost",
		socketPath: socketPath,
		log:        logger.For("uia2"),
	}
}

// SessionID returns the current session ID.
func (c *Client) SessionID() string {
	return c.sessionID
}

// HasSession returns true if a session is active.
func (c *Client) HasSession() bool {
	return c.sessionID != ""
}

// request makes an HTTP request to UIAutomator2.
func (c *Client) request(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	start := time.Now()

	var reqBody io.Reader
	var bodyStr string
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
		bodyStr = string(data)
		if len(bodyStr) > 100 {
			bodyStr = bodyStr[:100] + "..."
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		c.log.Debug().Str("method", method).Str("path", path).Dur("elapsed", elapsed).Err(err).Msg("request failed")
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.log.Debug().
		Str("method", method).
		Str("path", path).
		Dur("elapsed", elapsed).
		Int("status", resp.StatusCode).
		Str("body", bodyStr).
		Msg("request")

	if resp.StatusCode >= 400 {
		errType := gjson.GetBytes(respBody, "value.error").String()
		errMsg := gjson.GetBytes(respBody, "value.message").String()
		if errType == "no such element" {
			return nil, fmt.Errorf("%w: %s", ErrNoSuchElement, errMsg)
		}
		if errType != "" {
			return nil, fmt.Errorf("%s: %s", errType, errMsg)
		}
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// sessionPath returns path with session ID prefix.
func (c *Client) sessionPath(path string) string {
	return fmt.Sprintf("/session/%s%s", c.sessionID, path)
}

// Status checks if the server is ready.
func (c *Client) Status(ctx context.Context) (bool, error) {
	data, err := c.request(ctx, "GET", "/status", nil)
	if err != nil {
		return false, err
	}

	ready := gjson.GetBytes(data, "value.ready")
	if !ready.Exists() {
		return false, fmt.Errorf("parse status response: missing value.ready")
	}
	return ready.Bool(), nil
}

// CreateSession starts a new automation session.
func (c *Client) CreateSession(ctx context.Context, caps Capabilities) error {
	req := SessionRequest{Capabilities: caps}
	data, err := c.request(ctx, "POST", "/session", req)
	if err != nil {
		return err
	}

	// Both top-level and W3C value-wrapped formats are seen in the wild
	sessionID := gjson.GetBytes(data, "sessionId").String()
	if sessionID == "" {
		sessionID = gjson.GetBytes(data, "value.sessionId").String()
	}
	if sessionID == "" {
		return fmt.Errorf("no session ID in response")
	}

	c.sessionID = sessionID
	return nil
}

// DeleteSession ends the current session.
func (c *Client) DeleteSession(ctx context.Context) error {
	if c.sessionID == "" {
		return nil
	}

	_, err := c.request(ctx, "DELETE", c.sessionPath(""), nil)
	c.sessionID = ""
	return err
}

// Close ends the session and cleans up.
func (c *Client) Close() error {
	return c.DeleteSession(context.Background())
}

// SetImplicitWait sets the implicit wait timeout for element finding.
// Zero makes lookups return immediately.
func (c *Client) SetImplicitWait(ctx context.Context, timeout time.Duration) error {
	if c.sessionID == "" {
		return fmt.Errorf("no active session")
	}

	_, err := c.request(ctx, "POST", c.sessionPath("/timeouts"), map[string]interface{}{
		"implicit": timeout.Milliseconds(),
	})
	return err
}

// UpdateSettings changes Appium server settings such as waitForIdleTimeout.
func (c *Client) UpdateSettings(ctx context.Context, settings map[string]interface{}) error {
	if c.sessionID == "" {
		return fmt.Errorf("no active session")
	}
	_, err := c.request(ctx, "POST", c.sessionPath("/appium/settings"), SettingsRequest{Settings: settings})
	return err
}
