// Package remote provides the HTTP client for the remote profile service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "github.com/careercompass/profilecore/internal/errors"
	"github.com/careercompass/profilecore/internal/models"
)

// TokenFunc supplies the Bearer token for a request. Token acquisition is
// owned by the caller; the client only attaches what it is given.
type TokenFunc func(ctx context.Context) (string, error)

// StaticToken returns a TokenFunc that always yields the given token.
func StaticToken(token string) TokenFunc {
	return func(context.Context) (string, error) {
		return token, nil
	}
}

// Client talks to the remote profile REST API. It performs no retries;
// retry policy is owned by the sync engine.
type Client struct {
	baseURL string
	token   TokenFunc
	http    *http.Client
}

// NewClient creates a Client for the given base URL.
func NewClient(baseURL string, token TokenFunc, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// CreateProfile performs the first sync of a profile (version 1).
func (c *Client) CreateProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	return c.writeProfile(ctx, http.MethodPost, p)
}

// UpdateProfile syncs a subsequent version of a profile.
func (c *Client) UpdateProfile(ctx context.Context, p *models.Profile) (*models.Profile, error) {
	return c.writeProfile(ctx, http.MethodPut, p)
}

func (c *Client) writeProfile(ctx context.Context, method string, p *models.Profile) (*models.Profile, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, errs.Wrap(errs.ErrInvalid, "encode profile", err)
	}

	resp, err := c.do(ctx, method, c.profileURL(p.ID), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(method, resp)
	}

	return decodeProfile(resp.Body, p)
}

// FetchProfile retrieves the remote copy of a profile. An absent remote
// profile is reported as REMOTE_NOT_FOUND, distinct from transport
// failure.
func (c *Client) FetchProfile(ctx context.Context, id models.UUID) (*models.Profile, error) {
	resp, err := c.do(ctx, http.MethodGet, c.profileURL(id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errs.New(errs.ErrRemoteNotFound, "remote profile not found: "+id.String())
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(http.MethodGet, resp)
	}

	return decodeProfile(resp.Body, nil)
}

// DeleteProfile deletes the remote copy of a profile. A 404 is treated as
// success: the record is already gone.
func (c *Client) DeleteProfile(ctx context.Context, id models.UUID) error {
	resp, err := c.do(ctx, http.MethodDelete, c.profileURL(id), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(http.MethodDelete, resp)
	}
	return nil
}

func (c *Client) profileURL(id models.UUID) string {
	return fmt.Sprintf("%s/profiles/%s", c.baseURL, id)
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrSyncTransport, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return nil, errs.Wrap(errs.ErrSyncTransport, "acquire token", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.ErrSyncTransport, method+" "+url, err)
	}
	return resp, nil
}

// decodeProfile reads the acknowledged profile from the response body.
// Servers that return an empty body acknowledge the sent profile as-is,
// so fallback (when non-nil) is returned in that case.
func decodeProfile(body io.Reader, fallback *models.Profile) (*models.Profile, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrSyncTransport, "read response", err)
	}
	if len(data) == 0 {
		if fallback != nil {
			return fallback, nil
		}
		return nil, errs.New(errs.ErrSyncTransport, "empty response body")
	}

	var p models.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errs.Wrap(errs.ErrSyncTransport, "decode profile response", err)
	}
	return &p, nil
}

func statusError(method string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return errs.Newf(errs.ErrSyncTransport, "%s %s: status %d: %s",
		method, resp.Request.URL.Path, resp.StatusCode, bytes.TrimSpace(data))
}
