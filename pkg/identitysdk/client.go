package identitysdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const usersPrefix = "/api/v1/users"

// SDKClient calls the public endpoints and creates Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Register creates an account. Avatars are uploaded separately through the
// session once logged in.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, usersPrefix+"/register", req, nil)
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeData(resp, &user, http.StatusCreated); err != nil {
		return nil, err
	}
	return &user, nil
}

// Login authenticates with a username or an email address.
func (c *SDKClient) Login(ctx context.Context, identity, password string) (*Session, error) {
	req := LoginRequest{Password: password}
	if strings.Contains(identity, "@") {
		req.Email = identity
	} else {
		req.Username = identity
	}

	resp, err := c.doRequest(ctx, http.MethodPost, usersPrefix+"/login", req, nil)
	if err != nil {
		return nil, err
	}

	var login LoginResponse
	if err := decodeData(resp, &login, http.StatusOK); err != nil {
		return nil, err
	}
	return newSession(c, login.TokensResponse), nil
}

// NewSessionFromTokens resumes a session from stored tokens. The access
// token is treated as expired so the first call refreshes it.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken string) *Session {
	return &Session{
		client:       c,
		accessToken:  accessToken,
		refreshToken: refreshToken,
	}
}

// GetChannel fetches a channel profile anonymously.
func (c *SDKClient) GetChannel(ctx context.Context, username string) (*ChannelResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, usersPrefix+"/c/"+url.PathEscape(username), nil, nil)
	if err != nil {
		return nil, err
	}

	var ch ChannelResponse
	if err := decodeData(resp, &ch, http.StatusOK); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}

// GetJWKS fetches the access token verification keys.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/.well-known/jwks.json", nil, nil)
	if err != nil {
		return nil, err
	}

	var jwks JWKSResponse
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, err
	}
	return &jwks, nil
}
