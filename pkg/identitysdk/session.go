package identitysdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// expiryBuffer refreshes the access token this long before it expires.
const expiryBuffer = 30 * time.Second

// Session is one logged in user. It is safe for concurrent use.
type Session struct {
	client *SDKClient

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func newSession(c *SDKClient, t TokensResponse) *Session {
	s := &Session{client: c}
	s.setTokens(t)
	return s
}

func (s *Session) setTokens(t TokensResponse) {
	s.accessToken = t.AccessToken
	s.refreshToken = t.RefreshToken
	s.expiresAt = time.Now().Add(time.Duration(t.ExpiresIn)*time.Second - expiryBuffer)
}

// Tokens returns the current access and refresh tokens.
func (s *Session) Tokens() (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

// Refresh rotates the refresh token and replaces both tokens.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	resp, err := s.client.doRequest(ctx, http.MethodPost, usersPrefix+"/refresh-token",
		RefreshRequest{RefreshToken: s.refreshToken}, nil)
	if err != nil {
		return err
	}

	var t TokensResponse
	if err := decodeData(resp, &t, http.StatusOK); err != nil {
		return err
	}
	s.setTokens(t)
	return nil
}

func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", fmt.Errorf("failed to refresh access token: %w", err)
	}
	return s.accessToken, nil
}

// doAuthRequest sends a request with the access token. newBody is called
// for every attempt so the request can be replayed after a refresh.
func (s *Session) doAuthRequest(
	ctx context.Context,
	method, path string,
	newBody func() (io.Reader, string, error),
) (*http.Response, error) {
	send := func(token string) (*http.Response, error) {
		var body io.Reader
		var contentType string
		if newBody != nil {
			var err error
			if body, contentType, err = newBody(); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, s.client.url(path), body)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := s.client.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to send request: %w", err)
		}
		return resp, nil
	}

	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := send(token)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || resp.Header.Get("WWW-Authenticate") == "" {
		return resp, err
	}

	// Rejected by the bearer check rather than the handler: refresh once
	// and retry.
	_ = resp.Body.Close()
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	token, _ = s.Tokens()
	return send(token)
}

func jsonBody(v any) func() (io.Reader, string, error) {
	return func() (io.Reader, string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func (s *Session) CurrentUser(ctx context.Context) (*UserResponse, error) {
	return s.userCall(ctx, http.MethodGet, "/current-user", nil)
}

func (s *Session) UpdateAccount(ctx context.Context, req UpdateAccountRequest) (*UserResponse, error) {
	return s.userCall(ctx, http.MethodPut, "/update-account", jsonBody(req))
}

// UpdateAvatar uploads an image as the "avatar" form file.
func (s *Session) UpdateAvatar(ctx context.Context, filename string, data []byte) (*UserResponse, error) {
	return s.userCall(ctx, http.MethodPut, "/update-avatar", multipartBody("avatar", filename, data))
}

// UpdateCoverImage uploads an image as the "coverImage" form file.
func (s *Session) UpdateCoverImage(ctx context.Context, filename string, data []byte) (*UserResponse, error) {
	return s.userCall(ctx, http.MethodPut, "/update-cover-image", multipartBody("coverImage", filename, data))
}

func (s *Session) userCall(ctx context.Context, method, path string, body func() (io.Reader, string, error)) (*UserResponse, error) {
	resp, err := s.doAuthRequest(ctx, method, usersPrefix+path, body)
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeData(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangePassword ends this session server side; log in again afterwards.
func (s *Session) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, usersPrefix+"/change-password",
		jsonBody(ChangePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}))
	if err != nil {
		return err
	}
	return decodeData(resp, nil, http.StatusOK)
}

func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, usersPrefix+"/logout", nil)
	if err != nil {
		return err
	}
	return decodeData(resp, nil, http.StatusOK)
}

// GetChannel fetches a channel profile, including whether this user is
// subscribed to it.
func (s *Session) GetChannel(ctx context.Context, username string) (*ChannelResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, usersPrefix+"/c/"+url.PathEscape(username), nil)
	if err != nil {
		return nil, err
	}

	var ch ChannelResponse
	if err := decodeData(resp, &ch, http.StatusOK); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *Session) WatchHistory(ctx context.Context) ([]HistoryEntry, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, usersPrefix+"/watch-history", nil)
	if err != nil {
		return nil, err
	}

	var entries []HistoryEntry
	if err := decodeData(resp, &entries, http.StatusOK); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Session) RecordView(ctx context.Context, videoID string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, usersPrefix+"/watch-history/"+url.PathEscape(videoID), nil)
	if err != nil {
		return err
	}
	return decodeData(resp, nil, http.StatusCreated)
}

func multipartBody(field, filename string, data []byte) func() (io.Reader, string, error) {
	return func() (io.Reader, string, error) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := fw.Write(data); err != nil {
			return nil, "", err
		}
		if err := mw.Close(); err != nil {
			return nil, "", err
		}
		return &buf, mw.FormDataContentType(), nil
	}
}
