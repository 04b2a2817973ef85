// Package github implements the storage backend persisting collections as
// JSON files in a GitHub repository through the contents API. Writes carry
// the current blob sha as an optimistic revision token; a stale or missing
// token surfaces as a conflict, never a blind overwrite.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nsridhar/carvault/internal/domain"
	"github.com/nsridhar/carvault/internal/storage"
)

const defaultBaseURL = "https://api.github.com"

const (
	carsPath     = "data/cars.json"
	wishlistPath = "data/wishlist.json"
	configPath   = "data/config.json"
	imageDir     = "images/cars"
)

// acceptHeader pins the contents API to the v3 JSON representation.
const acceptHeader = "application/vnd.github.v3+json"

const userAgent = "carvault"

// Client talks to one repository's contents API.
type Client struct {
	creds   domain.GitCredentials
	http    *http.Client
	baseURL string
	logger  *slog.Logger

	// legacyAuth flips after a 401 on the Bearer scheme so later requests
	// go straight to the `token` scheme that worked. Atomic because the
	// coordinator loads all three collections concurrently on one client.
	legacyAuth atomic.Bool
}

func New(creds domain.GitCredentials, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		creds:   creds,
		http:    httpClient,
		baseURL: defaultBaseURL,
		logger:  logger,
	}
}

// NewWithBaseURL is used by tests to point the client at a stub server.
func NewWithBaseURL(creds domain.GitCredentials, httpClient *http.Client, logger *slog.Logger, baseURL string) *Client {
	c := New(creds, httpClient, logger)
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

func (c *Client) Name() string { return "github" }

func (c *Client) Configured() bool { return c.creds.Complete() }

func (c *Client) requireConfigured() error {
	if !c.Configured() {
		return &storage.ConfigurationError{Backend: "github", Reason: "owner, repository and access token are all required"}
	}
	return nil
}

// apiError is the GitHub error body shape.
type apiError struct {
	Message string `json:"message"`
}

// request performs one authenticated call against the repository, retrying
// exactly once with the legacy `token` auth scheme when the Bearer scheme
// is rejected with 401.
func (c *Client) request(ctx context.Context, method, endpoint string, body []byte) ([]byte, int, error) {
	if err := c.requireConfigured(); err != nil {
		return nil, 0, err
	}

	url := fmt.Sprintf("%s/repos/%s/%s/%s", c.baseURL, c.creds.Owner, c.creds.Repo, endpoint)
	url = strings.TrimSuffix(url, "/")

	do := func(legacy bool) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		if legacy {
			req.Header.Set("Authorization", "token "+c.creds.Token)
		} else {
			req.Header.Set("Authorization", "Bearer "+c.creds.Token)
		}
		req.Header.Set("Accept", acceptHeader)
		req.Header.Set("User-Agent", userAgent)
		if len(body) > 0 {
			req.Header.Set("Content-Type", "application/json")
		}
		return c.http.Do(req)
	}

	legacy := c.legacyAuth.Load()
	resp, err := do(legacy)
	if err != nil {
		return nil, 0, &storage.TransientError{Backend: "github", Message: err.Error()}
	}

	if resp.StatusCode == http.StatusUnauthorized && !legacy {
		c.drain(resp)
		c.logger.Debug("bearer auth rejected, retrying with token scheme", "endpoint", endpoint)
		resp, err = do(true)
		if err != nil {
			return nil, 0, &storage.TransientError{Backend: "github", Message: err.Error()}
		}
		if resp.StatusCode < 400 {
			c.legacyAuth.Store(true)
		}
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close github response body", "error", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &storage.TransientError{Backend: "github", Status: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, resp.StatusCode, nil
	}

	var ae apiError
	_ = json.Unmarshal(data, &ae)
	if ae.Message == "" {
		ae.Message = strings.TrimSpace(string(data))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, resp.StatusCode, &storage.AuthenticationError{Backend: "github", Message: ae.Message}
	case resp.StatusCode == http.StatusForbidden:
		return nil, resp.StatusCode, &storage.AuthorizationError{Backend: "github", Message: ae.Message}
	case resp.StatusCode == http.StatusNotFound:
		return nil, resp.StatusCode, &storage.NotFoundError{Resource: endpoint}
	case resp.StatusCode == http.StatusConflict,
		resp.StatusCode == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(ae.Message), "sha"):
		return nil, resp.StatusCode, &storage.ConflictError{Path: endpoint, Message: ae.Message}
	default:
		return nil, resp.StatusCode, &storage.TransientError{Backend: "github", Status: resp.StatusCode, Message: ae.Message}
	}
}

func (c *Client) drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	if err := resp.Body.Close(); err != nil {
		c.logger.Error("failed to close github response body", "error", err)
	}
}

// contentsResponse is the contents API file representation.
type contentsResponse struct {
	Content string `json:"content"`
	SHA     string `json:"sha"`
}

// getFile fetches a file's decoded content and its revision token. A 404
// reports found=false without error; absence of a collection file means an
// empty collection.
func (c *Client) getFile(ctx context.Context, path string) (content []byte, sha string, found bool, err error) {
	data, _, err := c.request(ctx, http.MethodGet, "contents/"+path, nil)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, "", false, nil
		}
		return nil, "", false, err
	}

	var cr contentsResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return nil, "", false, fmt.Errorf("unexpected contents response for %s: %w", path, err)
	}

	// The API wraps base64 bodies at 60 columns.
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(cr.Content, "\n", ""))
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return decoded, cr.SHA, true, nil
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
}

// saveFile writes a file through the contents API. The current revision
// token is fetched immediately beforehand to keep the lost-update window
// small; when the file does not exist yet the token is omitted entirely.
func (c *Client) saveFile(ctx context.Context, path string, content []byte, message string) error {
	_, sha, _, err := c.getFile(ctx, path)
	if err != nil {
		return err
	}

	body, err := json.Marshal(putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     sha,
	})
	if err != nil {
		return fmt.Errorf("failed to encode put request for %s: %w", path, err)
	}

	_, _, err = c.request(ctx, http.MethodPut, "contents/"+path, body)
	return err
}

// deleteFile removes a file, which also requires the current revision token.
func (c *Client) deleteFile(ctx context.Context, path, message string) error {
	_, sha, found, err := c.getFile(ctx, path)
	if err != nil {
		return err
	}
	if !found {
		return &storage.NotFoundError{Resource: path}
	}

	body, err := json.Marshal(putRequest{Message: message, SHA: sha})
	if err != nil {
		return fmt.Errorf("failed to encode delete request for %s: %w", path, err)
	}

	_, _, err = c.request(ctx, http.MethodDelete, "contents/"+path, body)
	return err
}

func (c *Client) LoadCars(ctx context.Context) ([]domain.Car, error) {
	data, _, found, err := c.getFile(ctx, carsPath)
	if err != nil {
		return nil, err
	}
	if !found {
		c.logger.Debug("no cars file in repository, starting empty")
		return []domain.Car{}, nil
	}

	var env storage.CarsEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("corrupt cars file in repository: %w", err)
	}
	return env.Cars, nil
}

func (c *Client) SaveCars(ctx context.Context, cars []domain.Car) error {
	env := storage.CarsEnvelope{Cars: cars, LastUpdated: time.Now().UTC()}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cars: %w", err)
	}
	return c.saveFile(ctx, carsPath, data, fmt.Sprintf("Update cars collection (%d cars)", len(cars)))
}

func (c *Client) LoadWishlist(ctx context.Context) ([]domain.WishlistItem, error) {
	data, _, found, err := c.getFile(ctx, wishlistPath)
	if err != nil {
		return nil, err
	}
	if !found {
		return []domain.WishlistItem{}, nil
	}

	var env storage.WishlistEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("corrupt wishlist file in repository: %w", err)
	}
	return env.Wishlist, nil
}

func (c *Client) SaveWishlist(ctx context.Context, items []domain.WishlistItem) error {
	env := storage.WishlistEnvelope{Wishlist: items, LastUpdated: time.Now().UTC()}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode wishlist: %w", err)
	}
	return c.saveFile(ctx, wishlistPath, data, fmt.Sprintf("Update wishlist (%d items)", len(items)))
}

func (c *Client) LoadSettings(ctx context.Context) (domain.Settings, bool, error) {
	data, _, found, err := c.getFile(ctx, configPath)
	if err != nil {
		return domain.Settings{}, false, err
	}
	if !found {
		return domain.Settings{}, false, nil
	}

	var settings domain.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return domain.Settings{}, false, fmt.Errorf("corrupt config file in repository: %w", err)
	}
	return settings, true, nil
}

func (c *Client) SaveSettings(ctx context.Context, settings domain.Settings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return c.saveFile(ctx, configPath, data, "Update configuration")
}

// UploadImage stores raw image bytes under images/cars/ and returns the
// repository-relative path.
func (c *Client) UploadImage(ctx context.Context, name string, data []byte) (string, error) {
	ext := "jpg"
	if i := strings.LastIndex(name, "."); i >= 0 && i < len(name)-1 {
		ext = strings.ToLower(name[i+1:])
		name = name[:i]
	}
	path := fmt.Sprintf("%s/%s_%d.%s", imageDir, sanitizeName(name), time.Now().Unix(), ext)

	body, err := json.Marshal(putRequest{
		Message: "Add car image " + path,
		Content: base64.StdEncoding.EncodeToString(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode image upload: %w", err)
	}

	if _, _, err := c.request(ctx, http.MethodPut, "contents/"+path, body); err != nil {
		return "", err
	}
	return path, nil
}

// DeleteImage removes a previously uploaded image by repository path.
func (c *Client) DeleteImage(ctx context.Context, path string) error {
	return c.deleteFile(ctx, path, "Remove car image "+path)
}

// TestConnection checks that the repository exists and the credentials can
// see it. A 404 on the repository root means the repository is missing or
// inaccessible and is propagated, unlike 404s on collection files.
func (c *Client) TestConnection(ctx context.Context) error {
	_, _, err := c.request(ctx, http.MethodGet, "", nil)
	return err
}

// VerifyRoundTrip performs a write/read/update/delete cycle against a probe
// file to prove the credential scope covers everything the adapter needs.
func (c *Client) VerifyRoundTrip(ctx context.Context) error {
	const probePath = "data/.carvault-probe.json"

	payload := []byte(fmt.Sprintf(`{"probe":true,"at":%q}`, time.Now().UTC().Format(time.RFC3339)))
	if err := c.saveFile(ctx, probePath, payload, "carvault storage probe: write"); err != nil {
		return fmt.Errorf("probe write failed: %w", err)
	}

	read, _, found, err := c.getFile(ctx, probePath)
	if err != nil {
		return fmt.Errorf("probe read failed: %w", err)
	}
	if !found || !bytes.Equal(read, payload) {
		return &storage.TransientError{Backend: "github", Message: "probe file read back with unexpected content"}
	}

	if err := c.saveFile(ctx, probePath, []byte(`{"probe":true,"updated":true}`), "carvault storage probe: update"); err != nil {
		return fmt.Errorf("probe update failed: %w", err)
	}

	if err := c.deleteFile(ctx, probePath, "carvault storage probe: cleanup"); err != nil {
		return fmt.Errorf("probe cleanup failed: %w", err)
	}
	return nil
}

// sanitizeName keeps image paths to a conservative character set.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "image"
	}
	return b.String()
}
