package preservica

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/preservica-tools/preservica-upload/internal/constants"
	"github.com/preservica-tools/preservica-upload/internal/version"
)

// ErrLoginFailed is returned when the server refuses the credentials.
var ErrLoginFailed = errors.New("preservica login failed")

type loginResponse struct {
	Success  bool   `json:"success"`
	Token    string `json:"token"`
	ValidFor int    `json:"validFor"` // minutes
	User     string `json:"user"`
}

func userAgent() string {
	return "preservica-upload/" + version.Version
}

// Login exchanges username and password for a session token.
func (c *Client) Login(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("username", c.cfg.Username)
	form.Set("password", c.cfg.Password)
	if c.cfg.Tenant != "" {
		form.Set("tenant", c.cfg.Tenant)
	}

	body, err := c.doRequest(ctx, "POST", "/api/accesstoken/login", form, false)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	var lr loginResponse
	if err := json.Unmarshal(body, &lr); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	if !lr.Success || lr.Token == "" {
		return "", ErrLoginFailed
	}

	lifetime := constants.TokenLifetime
	if lr.ValidFor > 1 {
		lifetime = time.Duration(lr.ValidFor-1) * time.Minute
	}

	c.tokenMu.Lock()
	c.token = lr.Token
	c.tokenExpiry = time.Now().Add(lifetime)
	c.tokenMu.Unlock()

	c.logger.Debug().Str("user", lr.User).Dur("valid_for", lifetime).Msg("logged in to Preservica")
	return lr.Token, nil
}

// Token returns a valid session token, logging in when none is cached or
// the cached one is about to expire.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	token, expiry := c.token, c.tokenExpiry
	c.tokenMu.Unlock()

	if token != "" && time.Now().Before(expiry) {
		return token, nil
	}
	return c.Login(ctx)
}

func (c *Client) invalidateToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenMu.Unlock()
}

func (c *Client) tokenExpiresAt() time.Time {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	return c.tokenExpiry
}

// tokenCredentials feeds the session token to the S3 gateway as the access
// key. The gateway ignores the secret.
type tokenCredentials struct {
	client *Client
}

// Retrieve implements aws.CredentialsProvider. It is called by the SDK's
// credentials cache whenever the previous token is close to expiry.
func (p tokenCredentials) Retrieve(ctx context.Context) (aws.Credentials, error) {
	token, err := p.client.Token(ctx)
	if err != nil {
		return aws.Credentials{}, fmt.Errorf("failed to get session token: %w", err)
	}
	return aws.Credentials{
		AccessKeyID:     token,
		SecretAccessKey: "NOT_USED",
		Source:          "PreservicaTokenProvider",
		CanExpire:       true,
		Expires:         p.client.tokenExpiresAt(),
	}, nil
}
