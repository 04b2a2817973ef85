// Package firebase implements the storage backend on Firebase's REST
// surfaces: Identity Toolkit for the single admin sign-in, Firestore for
// per-record documents under the admin user's namespace, and Cloud Storage
// for image assets.
package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nsridhar/carvault/internal/domain"
	"github.com/nsridhar/carvault/internal/storage"
)

const (
	defaultIdentityURL  = "https://identitytoolkit.googleapis.com"
	defaultFirestoreURL = "https://firestore.googleapis.com"
	defaultStorageURL   = "https://firebasestorage.googleapis.com"
)

// adminEmail is the fixed synthetic identity the single admin signs in as.
const adminEmail = "admin@carvault.local"

// Client holds one authenticated Firebase session. All data methods require
// SignIn first.
type Client struct {
	creds  domain.FirebaseCredentials
	http   *http.Client
	logger *slog.Logger

	identityURL  string
	firestoreURL string
	storageURL   string

	idToken string
	userID  string
}

func New(creds domain.FirebaseCredentials, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		creds:        creds,
		http:         httpClient,
		logger:       logger,
		identityURL:  defaultIdentityURL,
		firestoreURL: defaultFirestoreURL,
		storageURL:   defaultStorageURL,
	}
}

// NewWithEndpoints is used by tests to point the client at stub servers.
func NewWithEndpoints(creds domain.FirebaseCredentials, httpClient *http.Client, logger *slog.Logger, identity, firestore, objects string) *Client {
	c := New(creds, httpClient, logger)
	c.identityURL = strings.TrimSuffix(identity, "/")
	c.firestoreURL = strings.TrimSuffix(firestore, "/")
	c.storageURL = strings.TrimSuffix(objects, "/")
	return c
}

func (c *Client) Name() string { return "firebase" }

// Configured requires a complete credential set in a valid format.
func (c *Client) Configured() bool {
	return c.creds.Complete() && domain.ValidateFirebaseCredentials(c.creds) == nil
}

// Authenticated reports whether SignIn has succeeded in this session.
func (c *Client) Authenticated() bool { return c.idToken != "" }

// UserID returns the admin user's Firebase UID, empty before SignIn.
func (c *Client) UserID() string { return c.userID }

func (c *Client) requireConfigured() error {
	if !c.creds.Complete() {
		return &storage.ConfigurationError{Backend: "firebase", Reason: "credential fields missing"}
	}
	if err := domain.ValidateFirebaseCredentials(c.creds); err != nil {
		return &storage.ConfigurationError{Backend: "firebase", Reason: err.Error()}
	}
	return nil
}

func (c *Client) requireAuth() error {
	if !c.Authenticated() {
		return &storage.AuthenticationError{Backend: "firebase", Message: "not authenticated"}
	}
	return nil
}

type identityRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type identityResponse struct {
	IDToken string `json:"idToken"`
	LocalID string `json:"localId"`
}

type firebaseError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignIn authenticates the fixed admin identity with the given password,
// creating the account on first use (mirroring the original first-run
// behavior of the hosted variant).
func (c *Client) SignIn(ctx context.Context, password string) error {
	if err := c.requireConfigured(); err != nil {
		return err
	}

	resp, err := c.identityCall(ctx, "accounts:signInWithPassword", password)
	if err != nil {
		var authErr *storage.AuthenticationError
		if errors.As(err, &authErr) && strings.Contains(authErr.Message, "EMAIL_NOT_FOUND") {
			c.logger.Info("admin account does not exist yet, creating it")
			resp, err = c.identityCall(ctx, "accounts:signUp", password)
		}
		if err != nil {
			return err
		}
	}

	c.idToken = resp.IDToken
	c.userID = resp.LocalID
	c.logger.Debug("firebase sign-in successful", "user", c.userID)
	return nil
}

func (c *Client) identityCall(ctx context.Context, endpoint, password string) (*identityResponse, error) {
	body, err := json.Marshal(identityRequest{Email: adminEmail, Password: password, ReturnSecureToken: true})
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/v1/%s?key=%s", c.identityURL, endpoint, url.QueryEscape(c.creds.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &storage.TransientError{Backend: "firebase", Message: err.Error()}
	}
	defer c.closeBody(resp)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &storage.TransientError{Backend: "firebase", Status: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		var fe firebaseError
		_ = json.Unmarshal(data, &fe)
		return nil, &storage.AuthenticationError{Backend: "firebase", Message: fe.Error.Message}
	}

	var ir identityResponse
	if err := json.Unmarshal(data, &ir); err != nil {
		return nil, fmt.Errorf("unexpected identity response: %w", err)
	}
	return &ir, nil
}

// call performs one authenticated Firestore/Storage REST request and maps
// error statuses onto the storage taxonomy.
func (c *Client) call(ctx context.Context, method, u string, body []byte, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.idToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &storage.TransientError{Backend: "firebase", Message: err.Error()}
	}
	defer c.closeBody(resp)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &storage.TransientError{Backend: "firebase", Status: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}

	var fe firebaseError
	_ = json.Unmarshal(data, &fe)
	msg := fe.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, &storage.AuthenticationError{Backend: "firebase", Message: msg}
	case http.StatusForbidden:
		return nil, &storage.AuthorizationError{Backend: "firebase", Message: msg}
	case http.StatusNotFound:
		return nil, &storage.NotFoundError{Resource: u}
	default:
		return nil, &storage.TransientError{Backend: "firebase", Status: resp.StatusCode, Message: msg}
	}
}

func (c *Client) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Error("failed to close firebase response body", "error", err)
	}
}

func (c *Client) docsBase() string {
	return fmt.Sprintf("%s/v1/projects/%s/databases/(default)/documents", c.firestoreURL, c.creds.ProjectID)
}

func (c *Client) collectionURL(collection string) string {
	return fmt.Sprintf("%s/users/%s/%s", c.docsBase(), c.userID, collection)
}

func (c *Client) docURL(collection string, id domain.ID) string {
	return fmt.Sprintf("%s/%s", c.collectionURL(collection), id)
}

type listResponse struct {
	Documents []document `json:"documents"`
}

func (c *Client) listDocuments(ctx context.Context, collection string) ([]document, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}

	data, err := c.call(ctx, http.MethodGet, c.collectionURL(collection)+"?pageSize=300", nil, "")
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	var lr listResponse
	if err := json.Unmarshal(data, &lr); err != nil {
		return nil, fmt.Errorf("unexpected firestore list response: %w", err)
	}
	return lr.Documents, nil
}

func (c *Client) putDocument(ctx context.Context, collection string, id domain.ID, doc document) error {
	if err := c.requireAuth(); err != nil {
		return err
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	_, err = c.call(ctx, http.MethodPatch, c.docURL(collection, id), body, "application/json")
	return err
}

func (c *Client) deleteDocument(ctx context.Context, collection string, id domain.ID) error {
	if err := c.requireAuth(); err != nil {
		return err
	}
	_, err := c.call(ctx, http.MethodDelete, c.docURL(collection, id), nil, "")
	return err
}

func (c *Client) LoadCars(ctx context.Context) ([]domain.Car, error) {
	docs, err := c.listDocuments(ctx, "cars")
	if err != nil {
		return nil, err
	}
	cars := make([]domain.Car, 0, len(docs))
	for _, doc := range docs {
		cars = append(cars, decodeCar(doc))
	}
	return cars, nil
}

// SaveCars reconciles the whole collection: every given car is upserted and
// documents absent from the slice are deleted. Used for import; day-to-day
// mutations go through the per-record methods.
func (c *Client) SaveCars(ctx context.Context, cars []domain.Car) error {
	existing, err := c.listDocuments(ctx, "cars")
	if err != nil {
		return err
	}

	keep := make(map[domain.ID]bool, len(cars))
	for i := range cars {
		// Imported records keep their data but always get fresh document IDs,
		// so a re-imported bundle never collides with live documents.
		cars[i].ID = domain.ID(uuid.NewString())
		keep[cars[i].ID] = true
		if err := c.putDocument(ctx, "cars", cars[i].ID, encodeCar(cars[i])); err != nil {
			return err
		}
	}

	for _, doc := range existing {
		id := domain.ID(docID(doc.Name))
		if !keep[id] {
			if err := c.deleteDocument(ctx, "cars", id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Client) AddCar(ctx context.Context, car domain.Car) (domain.Car, error) {
	car.ID = domain.ID(uuid.NewString())
	if car.DateAdded.IsZero() {
		car.DateAdded = time.Now().UTC()
	}
	if err := c.putDocument(ctx, "cars", car.ID, encodeCar(car)); err != nil {
		return domain.Car{}, err
	}
	return car, nil
}

func (c *Client) UpdateCar(ctx context.Context, car domain.Car) error {
	return c.putDocument(ctx, "cars", car.ID, encodeCar(car))
}

// DeleteCar removes the document, then attempts best-effort deletion of the
// car's stored images. Image cleanup failures are logged and swallowed; the
// car deletion itself still succeeds.
func (c *Client) DeleteCar(ctx context.Context, id domain.ID) error {
	if err := c.deleteDocument(ctx, "cars", id); err != nil {
		return err
	}
	if err := c.deleteCarImages(ctx, id); err != nil {
		c.logger.Warn("failed to clean up car images", "car", id, "error", err)
	}
	return nil
}

func (c *Client) LoadWishlist(ctx context.Context) ([]domain.WishlistItem, error) {
	docs, err := c.listDocuments(ctx, "wishlist")
	if err != nil {
		return nil, err
	}
	items := make([]domain.WishlistItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, decodeWishlistItem(doc))
	}
	return items, nil
}

func (c *Client) SaveWishlist(ctx context.Context, items []domain.WishlistItem) error {
	existing, err := c.listDocuments(ctx, "wishlist")
	if err != nil {
		return err
	}

	keep := make(map[domain.ID]bool, len(items))
	for i := range items {
		items[i].ID = domain.ID(uuid.NewString())
		keep[items[i].ID] = true
		if err := c.putDocument(ctx, "wishlist", items[i].ID, encodeWishlistItem(items[i])); err != nil {
			return err
		}
	}

	for _, doc := range existing {
		id := domain.ID(docID(doc.Name))
		if !keep[id] {
			if err := c.deleteDocument(ctx, "wishlist", id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Client) AddWishlistItem(ctx context.Context, item domain.WishlistItem) (domain.WishlistItem, error) {
	item.ID = domain.ID(uuid.NewString())
	if item.DateAdded.IsZero() {
		item.DateAdded = time.Now().UTC()
	}
	if err := c.putDocument(ctx, "wishlist", item.ID, encodeWishlistItem(item)); err != nil {
		return domain.WishlistItem{}, err
	}
	return item, nil
}

func (c *Client) UpdateWishlistItem(ctx context.Context, item domain.WishlistItem) error {
	return c.putDocument(ctx, "wishlist", item.ID, encodeWishlistItem(item))
}

func (c *Client) DeleteWishlistItem(ctx context.Context, id domain.ID) error {
	return c.deleteDocument(ctx, "wishlist", id)
}

// LoadSettings reads the settings map nested on the user profile document.
func (c *Client) LoadSettings(ctx context.Context) (domain.Settings, bool, error) {
	if err := c.requireAuth(); err != nil {
		return domain.Settings{}, false, err
	}

	data, err := c.call(ctx, http.MethodGet, fmt.Sprintf("%s/users/%s", c.docsBase(), c.userID), nil, "")
	if err != nil {
		if storage.IsNotFound(err) {
			return domain.Settings{}, false, nil
		}
		return domain.Settings{}, false, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.Settings{}, false, fmt.Errorf("unexpected user profile document: %w", err)
	}
	settings, ok := decodeSettings(doc.Fields["settings"])
	return settings, ok, nil
}

// SaveSettings writes only the settings field of the profile document.
func (c *Client) SaveSettings(ctx context.Context, settings domain.Settings) error {
	if err := c.requireAuth(); err != nil {
		return err
	}

	doc := document{Fields: map[string]value{
		"settings":  encodeSettings(settings),
		"updatedAt": ts(time.Now()),
	}}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	u := fmt.Sprintf("%s/users/%s?updateMask.fieldPaths=settings&updateMask.fieldPaths=updatedAt", c.docsBase(), c.userID)
	_, err = c.call(ctx, http.MethodPatch, u, body, "application/json")
	return err
}

// TestConnection verifies the session can read its own profile document.
func (c *Client) TestConnection(ctx context.Context) error {
	if err := c.requireAuth(); err != nil {
		return err
	}
	_, err := c.call(ctx, http.MethodGet, fmt.Sprintf("%s/users/%s", c.docsBase(), c.userID), nil, "")
	if storage.IsNotFound(err) {
		// A fresh admin has no profile document yet; reachability is proven.
		return nil
	}
	return err
}
