// Package auth implements the identity collaborator: a local BoltDB
// identity vault for anonymous and email accounts, plus the GitHub
// device-code flow for provider sign-in.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kskor/folio/internal/domain"
)

const (
	deviceCodeURL  = "https://github.com/login/device/code"
	accessTokenURL = "https://github.com/login/oauth/access_token"

	// OAuth client id of the folio CLI app
	defaultClientID = "Iv1.f01i0c1ien7"
)

// DeviceCode is an issued device authorization.
type DeviceCode struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

// DeviceClient drives the GitHub device authorization flow.
type DeviceClient struct {
	baseCodeURL  string
	baseTokenURL string
	clientID     string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewDeviceClient creates a device-flow client. Empty URLs select the
// public GitHub endpoints.
func NewDeviceClient(codeURL, tokenURL, clientID string, logger *slog.Logger) *DeviceClient {
	if codeURL == "" {
		codeURL = deviceCodeURL
	}
	if tokenURL == "" {
		tokenURL = accessTokenURL
	}
	if clientID == "" {
		clientID = defaultClientID
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceClient{
		baseCodeURL:  codeURL,
		baseTokenURL: tokenURL,
		clientID:     clientID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// RequestCode asks GitHub for a new device/user code pair.
func (c *DeviceClient) RequestCode(ctx context.Context) (DeviceCode, error) {
	data := url.Values{}
	data.Set("client_id", c.clientID)
	data.Set("scope", "repo read:user user:email")

	body, err := c.post(ctx, c.baseCodeURL, data)
	if err != nil {
		return DeviceCode{}, err
	}

	var code DeviceCode
	if err := json.Unmarshal(body, &code); err != nil {
		return DeviceCode{}, fmt.Errorf("failed to parse device code response: %w", err)
	}
	if code.DeviceCode == "" {
		return DeviceCode{}, fmt.Errorf("empty device code in response")
	}

	c.logger.Info("device code issued", "user_code", code.UserCode, "expires_in", code.ExpiresIn)
	return code, nil
}

// CheckToken polls the token endpoint once. It returns the token when the
// user has approved, ("", nil) while approval is pending, and an error when
// the code expired or was denied. A slow_down response grows the caller's
// poll interval through the returned retryIn hint.
func (c *DeviceClient) CheckToken(ctx context.Context, code DeviceCode) (token string, retryIn time.Duration, err error) {
	data := url.Values{}
	data.Set("client_id", c.clientID)
	data.Set("device_code", code.DeviceCode)
	data.Set("grant_type", "urn:ietf:params:oauth:grant-type:device_code")

	body, err := c.post(ctx, c.baseTokenURL, data)
	if err != nil {
		return "", 0, err
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", 0, fmt.Errorf("failed to parse token response: %w", err)
	}

	switch resp.Error {
	case "":
		if resp.AccessToken == "" {
			return "", 0, domain.ErrAuthFailed
		}
		return resp.AccessToken, 0, nil
	case "authorization_pending":
		return "", 0, nil
	case "slow_down":
		return "", 5 * time.Second, nil
	case "expired_token":
		return "", 0, domain.ErrDeviceCodeExpired
	case "access_denied":
		return "", 0, domain.ErrAuthFailed
	default:
		return "", 0, fmt.Errorf("token endpoint error %q: %s", resp.Error, resp.ErrorDesc)
	}
}

// WaitForToken polls until the user approves the device code, the code
// expires, or ctx is cancelled. Poll interval starts at the server hint and
// backs off on slow_down responses.
func (c *DeviceClient) WaitForToken(ctx context.Context, code DeviceCode) (string, error) {
	interval := time.Duration(code.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	deadline := time.Now().Add(time.Duration(code.ExpiresIn) * time.Second)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(interval):
			token, retryIn, err := c.CheckToken(ctx, code)
			if err != nil {
				if err == domain.ErrDeviceCodeExpired || err == domain.ErrAuthFailed {
					return "", err
				}
				c.logger.Warn("token check error, retrying", "error", err)
				continue
			}
			if token != "" {
				c.logger.Info("device code approved")
				return token, nil
			}
			if retryIn > interval {
				interval = retryIn
			}
		}
	}

	return "", domain.ErrDeviceCodeExpired
}

func (c *DeviceClient) post(ctx context.Context, reqURL string, data url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("device flow request failed", "url", reqURL, "error", err)
		return nil, domain.ErrServerOffline
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("device flow error", "url", reqURL, "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return body, nil
}
