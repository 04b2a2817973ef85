package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/nsridhar/carvault/internal/domain"
	"github.com/nsridhar/carvault/internal/storage"
)

var testCreds = domain.GitCredentials{Owner: "alice", Repo: "data", Token: "ghp_x"}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewWithBaseURL(testCreds, srv.Client(), testLogger(), srv.URL)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSaveCarsNewFile(t *testing.T) {
	var put putRequest
	var putPath string

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusNotFound, apiError{Message: "Not Found"})
		case http.MethodPut:
			putPath = r.URL.Path
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &put))
			writeJSON(w, http.StatusCreated, map[string]any{"content": map[string]string{"sha": "newsha"}})
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	}))

	cars := []domain.Car{{ID: domain.IntID(1), Name: "Bone Shaker", Brand: "Hot Wheels"}}
	require.NoError(t, c.SaveCars(context.Background(), cars))

	assert.Equal(t, "/repos/alice/data/contents/data/cars.json", putPath)
	assert.Empty(t, put.SHA, "missing file means the PUT omits the revision token")

	decoded, err := base64.StdEncoding.DecodeString(put.Content)
	require.NoError(t, err)

	var env storage.CarsEnvelope
	require.NoError(t, json.Unmarshal(decoded, &env))
	require.Len(t, env.Cars, 1)
	assert.Equal(t, "Bone Shaker", env.Cars[0].Name)
	assert.False(t, env.LastUpdated.IsZero())
}

func TestSaveCarsExistingFileIncludesRevisionToken(t *testing.T) {
	var put putRequest

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, contentsResponse{
				Content: base64.StdEncoding.EncodeToString([]byte(`{"cars":[]}`)),
				SHA:     "abc123",
			})
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &put))
			writeJSON(w, http.StatusOK, map[string]any{})
		}
	}))

	require.NoError(t, c.SaveCars(context.Background(), nil))
	assert.Equal(t, "abc123", put.SHA, "overwrites must carry the current revision token")
}

func TestLoadCarsMissingFileMeansEmpty(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, apiError{Message: "Not Found"})
	}))

	cars, err := c.LoadCars(context.Background())
	require.NoError(t, err, "404 on a collection file is an empty collection, not an error")
	assert.Empty(t, cars)
}

func TestLoadCarsDecodesWrappedBase64(t *testing.T) {
	env := storage.CarsEnvelope{Cars: []domain.Car{{ID: domain.IntID(3), Name: "Twin Mill", Brand: "Hot Wheels"}}}
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	// The contents API wraps base64 at 60 columns.
	encoded := base64.StdEncoding.EncodeToString(raw)
	wrapped := ""
	for len(encoded) > 60 {
		wrapped += encoded[:60] + "\n"
		encoded = encoded[60:]
	}
	wrapped += encoded

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, contentsResponse{Content: wrapped, SHA: "s"})
	}))

	cars, err := c.LoadCars(context.Background())
	require.NoError(t, err)
	require.Len(t, cars, 1)
	assert.Equal(t, "Twin Mill", cars[0].Name)
}

func TestAuthFallbackOn401(t *testing.T) {
	var schemes []string

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		schemes = append(schemes, auth)
		if auth == "token ghp_x" {
			writeJSON(w, http.StatusOK, contentsResponse{
				Content: base64.StdEncoding.EncodeToString([]byte(`{"cars":[]}`)),
				SHA:     "s",
			})
			return
		}
		writeJSON(w, http.StatusUnauthorized, apiError{Message: "Bad credentials"})
	}))

	_, err := c.LoadCars(context.Background())
	require.NoError(t, err)
	require.Len(t, schemes, 2)
	assert.Equal(t, "Bearer ghp_x", schemes[0])
	assert.Equal(t, "token ghp_x", schemes[1])

	// The working scheme sticks for subsequent requests.
	schemes = nil
	_, err = c.LoadCars(context.Background())
	require.NoError(t, err)
	require.Len(t, schemes, 1)
	assert.Equal(t, "token ghp_x", schemes[0])
}

func TestAuthFallbackUnderConcurrentLoads(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "token ghp_x" {
			writeJSON(w, http.StatusUnauthorized, apiError{Message: "Bad credentials"})
			return
		}
		writeJSON(w, http.StatusOK, contentsResponse{
			Content: base64.StdEncoding.EncodeToString([]byte(`{"cars":[]}`)),
			SHA:     "s",
		})
	}))

	// Startup loads all collections concurrently on one client; every
	// goroutine triggers the scheme fallback at once.
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 3; i++ {
		g.Go(func() error {
			_, err := c.LoadCars(ctx)
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.True(t, c.legacyAuth.Load(), "working scheme recorded")
}

func TestBothSchemesRejected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, apiError{Message: "Bad credentials"})
	}))

	_, err := c.LoadCars(context.Background())
	var authErr *storage.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Message, "Bad credentials")
}

func TestForbiddenMapsToAuthorizationError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusForbidden, apiError{Message: "Resource not accessible by integration"})
	}))

	_, err := c.LoadCars(context.Background())
	var authzErr *storage.AuthorizationError
	require.ErrorAs(t, err, &authzErr)
}

func TestConflictIsSurfaced(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, contentsResponse{Content: "", SHA: "stale"})
		case http.MethodPut:
			writeJSON(w, http.StatusConflict, apiError{Message: "data/cars.json does not match stale"})
		}
	}))

	err := c.SaveCars(context.Background(), nil)
	assert.True(t, storage.IsConflict(err), "stale revision token must surface as a conflict: %v", err)
}

func TestOtherErrorsCarryStatusAndMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadGateway, apiError{Message: "upstream exploded"})
	}))

	_, err := c.LoadCars(context.Background())
	var te *storage.TransientError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.Status)
	assert.Contains(t, te.Error(), "502")
	assert.Contains(t, te.Error(), "upstream exploded")
}

func TestUnconfiguredFailsBeforeNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	t.Cleanup(srv.Close)

	c := NewWithBaseURL(domain.GitCredentials{Owner: "alice"}, srv.Client(), testLogger(), srv.URL)

	err := c.SaveCars(context.Background(), nil)
	assert.True(t, storage.IsConfiguration(err))
	assert.False(t, called, "no network call may happen without credentials")
}

func TestTestConnectionRepoMissing(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/alice/data", r.URL.Path)
		writeJSON(w, http.StatusNotFound, apiError{Message: "Not Found"})
	}))

	err := c.TestConnection(context.Background())
	assert.True(t, storage.IsNotFound(err), "missing repository must propagate, unlike missing collection files")
}

func TestRequiredHeaders(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, acceptHeader, r.Header.Get("Accept"))
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		writeJSON(w, http.StatusNotFound, apiError{Message: "Not Found"})
	}))

	_, err := c.LoadCars(context.Background())
	require.NoError(t, err)
}

func TestUploadImagePath(t *testing.T) {
	var putPath string

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		putPath = r.URL.Path
		writeJSON(w, http.StatusCreated, map[string]any{})
	}))

	ref, err := c.UploadImage(context.Background(), "Bone Shaker #5.PNG", []byte{0x89, 0x50})
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^images/cars/bone_shaker_5_\d+\.png$`)
	assert.Regexp(t, pattern, ref)
	assert.Equal(t, "/repos/alice/data/contents/"+ref, putPath)
}

func TestDeleteImageFetchesRevisionFirst(t *testing.T) {
	var deleted putRequest

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, contentsResponse{Content: "", SHA: "imgsha"})
		case http.MethodDelete:
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &deleted))
			writeJSON(w, http.StatusOK, map[string]any{})
		}
	}))

	require.NoError(t, c.DeleteImage(context.Background(), "images/cars/old_1.png"))
	assert.Equal(t, "imgsha", deleted.SHA)
}

func TestSettingsRoundTripShape(t *testing.T) {
	var put putRequest

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusNotFound, apiError{Message: "Not Found"})
		case http.MethodPut:
			assert.Equal(t, "/repos/alice/data/contents/data/config.json", r.URL.Path)
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &put))
			writeJSON(w, http.StatusCreated, map[string]any{})
		}
	}))

	settings := domain.Settings{SiteName: "My Garage", Currency: "EUR"}
	require.NoError(t, c.SaveSettings(context.Background(), settings))

	decoded, err := base64.StdEncoding.DecodeString(put.Content)
	require.NoError(t, err)

	var out domain.Settings
	require.NoError(t, json.Unmarshal(decoded, &out))
	assert.Equal(t, settings, out)
}
