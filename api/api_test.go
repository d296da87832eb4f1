package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base32"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devaulthq/devault/audit"
	"github.com/devaulthq/devault/crypto"
	"github.com/devaulthq/devault/storage/memory"
	"github.com/devaulthq/devault/token"
	"github.com/devaulthq/devault/vault"
)

const testMasterKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	trail := audit.NewTrail(store, logger)
	box, err := crypto.New(testMasterKey)
	require.NoError(t, err)
	vaultSvc := vault.NewService(store, box, trail, logger)
	tokens := token.NewService("access-secret", "refresh-secret", 15*time.Minute, 720*time.Hour)

	a := New(store, vaultSvc, tokens, trail, WithLogger(logger), WithAppName("DeVault"))
	r := chi.NewRouter()
	r.Mount("/api/v1", a.Router())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

type header struct{ key, value string }

func bearer(token string) header { return header{"Authorization", "Bearer " + token} }
func apiKey(raw string) header   { return header{"X-API-Key", raw} }

func doRequest(t *testing.T, srv *httptest.Server, method, path string, body any, headers ...header) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, srv.URL+"/api/v1"+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		req.Header.Set(h.key, h.value)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func registerUser(t *testing.T, srv *httptest.Server, email string) (accessToken, refreshToken string) {
	t.Helper()
	resp := doRequest(t, srv, http.MethodPost, "/auth/register", map[string]string{
		"email": email, "password": "correct-horse", "name": "Test User",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	return body["accessToken"].(string), body["refreshToken"].(string)
}

func createProject(t *testing.T, srv *httptest.Server, access, name string) (projectID string, envIDs map[string]string) {
	t.Helper()
	resp := doRequest(t, srv, http.MethodPost, "/projects", map[string]string{"name": name}, bearer(access))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	envIDs = make(map[string]string)
	for _, e := range body["environments"].([]any) {
		env := e.(map[string]any)
		envIDs[env["name"].(string)] = env["id"].(string)
	}
	return body["id"].(string), envIDs
}

// totpCode computes the RFC 6238 code for secret at now, independently of the
// server's implementation.
func totpCode(t *testing.T, secret string) string {
	t.Helper()
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
	require.NoError(t, err)
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(time.Now().Unix()/30))
	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)
	offset := sum[len(sum)-1] & 0x0f
	code := (int(sum[offset])&0x7f)<<24 | (int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 | (int(sum[offset+3]) & 0xff)
	return fmt.Sprintf("%06d", code%1000000)
}

func TestSecretLifecycleEndToEnd(t *testing.T) {
	srv := newTestServer(t)
	access, _ := registerUser(t, srv, "a@x.com")
	projectID, envIDs := createProject(t, srv, access, "web")

	require.Len(t, envIDs, 3)
	for _, name := range []string{"development", "staging", "production"} {
		require.Contains(t, envIDs, name)
	}
	secretsPath := "/projects/" + projectID + "/environments/" + envIDs["development"] + "/secrets"

	resp := doRequest(t, srv, http.MethodPost, secretsPath, map[string]string{"key": "FOO", "value": "bar"}, bearer(access))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody(t, resp)
	assert.Equal(t, float64(1), created["version"])
	assert.NotContains(t, created, "value")
	secretID := created["id"].(string)

	resp = doRequest(t, srv, http.MethodGet, secretsPath+"/"+secretID+"/reveal", nil, bearer(access))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	revealed := decodeBody(t, resp)
	assert.Equal(t, "bar", revealed["value"])

	resp = doRequest(t, srv, http.MethodPut, secretsPath+"/"+secretID, map[string]string{"value": "baz"}, bearer(access))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decodeBody(t, resp)
	assert.Equal(t, float64(2), updated["version"])

	resp = doRequest(t, srv, http.MethodGet, secretsPath+"/"+secretID+"/reveal", nil, bearer(access))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	revealed = decodeBody(t, resp)
	assert.Equal(t, "baz", revealed["value"])
	assert.Equal(t, float64(2), revealed["version"])

	t.Run("duplicate key conflicts", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodPost, secretsPath, map[string]string{"key": "FOO", "value": "other"}, bearer(access))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("download renders sorted dotenv", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodPost, secretsPath, map[string]string{"key": "ALPHA", "value": "first"}, bearer(access))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()

		resp = doRequest(t, srv, http.MethodGet, secretsPath+"/download", nil, bearer(access))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		defer resp.Body.Close()
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
		assert.Contains(t, resp.Header.Get("Content-Disposition"), ".env")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "ALPHA=first\nFOO=baz", string(body))
	})

	t.Run("empty environment download is 404", func(t *testing.T) {
		path := "/projects/" + projectID + "/environments/" + envIDs["staging"] + "/secrets/download"
		resp := doRequest(t, srv, http.MethodGet, path, nil, bearer(access))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestTwoFactorLoginFlow(t *testing.T) {
	srv := newTestServer(t)
	const email = "2fa@x.com"
	access, _ := registerUser(t, srv, email)

	login := func() *http.Response {
		return doRequest(t, srv, http.MethodPost, "/auth/login", map[string]string{
			"email": email, "password": "correct-horse",
		})
	}

	// Without a second factor, login issues tokens directly.
	resp := login()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.NotEmpty(t, body["accessToken"])
	assert.NotContains(t, body, "requiresTwoFactor")

	// Enroll.
	resp = doRequest(t, srv, http.MethodPost, "/auth/2fa/setup", nil, bearer(access))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	setup := decodeBody(t, resp)
	secret := setup["secret"].(string)
	assert.Contains(t, setup["otpauthUrl"], "otpauth://totp/")
	assert.True(t, strings.HasPrefix(setup["qrCode"].(string), "data:image/png;base64,"))

	resp = doRequest(t, srv, http.MethodPost, "/auth/2fa/verify", map[string]string{"code": totpCode(t, secret)}, bearer(access))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Now login yields a challenge, not a session.
	resp = login()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	challenge := decodeBody(t, resp)
	assert.Equal(t, true, challenge["requiresTwoFactor"])
	tempToken := challenge["tempToken"].(string)
	assert.NotContains(t, challenge, "accessToken")

	t.Run("wrong code issues no tokens", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodPost, "/auth/login/2fa", map[string]string{"code": "000000"}, bearer(tempToken))
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.NotContains(t, body, "accessToken")
	})

	t.Run("temp token is rejected by protected endpoints", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodGet, "/auth/me", nil, bearer(tempToken))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("correct code completes the login", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodPost, "/auth/login/2fa", map[string]string{"code": totpCode(t, secret)}, bearer(tempToken))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.NotEmpty(t, body["accessToken"])
		assert.NotEmpty(t, body["refreshToken"])
	})
}

func TestAPIKeyLifecycle(t *testing.T) {
	srv := newTestServer(t)
	access, _ := registerUser(t, srv, "ci@x.com")
	projectID, envIDs := createProject(t, srv, access, "pipeline")

	resp := doRequest(t, srv, http.MethodPost, "/tokens", map[string]any{
		"name": "ci", "projectId": projectID, "expiresInDays": 30,
	}, bearer(access))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	raw := body["token"].(string)
	assert.True(t, strings.HasPrefix(raw, "dvt_"))
	tokenID := body["apiToken"].(map[string]any)["id"].(string)

	secretsPath := "/projects/" + projectID + "/environments/" + envIDs["development"] + "/secrets"

	// The raw token works immediately.
	resp = doRequest(t, srv, http.MethodGet, secretsPath, nil, apiKey(raw))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	t.Run("key is scoped to its project", func(t *testing.T) {
		otherID, otherEnvs := createProject(t, srv, access, "other")
		path := "/projects/" + otherID + "/environments/" + otherEnvs["development"] + "/secrets"
		resp := doRequest(t, srv, http.MethodGet, path, nil, apiKey(raw))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})

	// Revocation cuts it off at once.
	resp = doRequest(t, srv, http.MethodDelete, "/tokens/"+tokenID, nil, bearer(access))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, srv, http.MethodGet, secretsPath, nil, apiKey(raw))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestViewerRole(t *testing.T) {
	srv := newTestServer(t)
	ownerAccess, _ := registerUser(t, srv, "owner@x.com")
	viewerAccess, _ := registerUser(t, srv, "viewer@x.com")
	projectID, envIDs := createProject(t, srv, ownerAccess, "shared")
	secretsPath := "/projects/" + projectID + "/environments/" + envIDs["development"] + "/secrets"

	resp := doRequest(t, srv, http.MethodPost, secretsPath, map[string]string{"key": "KEY", "value": "v"}, bearer(ownerAccess))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	secretID := decodeBody(t, resp)["id"].(string)

	resp = doRequest(t, srv, http.MethodPost, "/projects/"+projectID+"/members", map[string]string{
		"email": "viewer@x.com", "role": "viewer",
	}, bearer(ownerAccess))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	t.Run("viewer cannot create secrets", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodPost, secretsPath, map[string]string{"key": "X", "value": "y"}, bearer(viewerAccess))
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "insufficient permissions", body["error"])
	})

	t.Run("viewer can list and reveal", func(t *testing.T) {
		resp := doRequest(t, srv, http.MethodGet, secretsPath, nil, bearer(viewerAccess))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp = doRequest(t, srv, http.MethodGet, secretsPath+"/"+secretID+"/reveal", nil, bearer(viewerAccess))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "v", body["value"])
	})

	t.Run("non-member sees 403 not 404 leakage", func(t *testing.T) {
		strangerAccess, _ := registerUser(t, srv, "stranger@x.com")
		resp := doRequest(t, srv, http.MethodGet, secretsPath, nil, bearer(strangerAccess))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestLoginOpacity(t *testing.T) {
	srv := newTestServer(t)
	registerUser(t, srv, "known@x.com")

	unknown := doRequest(t, srv, http.MethodPost, "/auth/login", map[string]string{
		"email": "nobody@x.com", "password": "whatever-pass",
	})
	wrongPassword := doRequest(t, srv, http.MethodPost, "/auth/login", map[string]string{
		"email": "known@x.com", "password": "wrong-password",
	})

	assert.Equal(t, http.StatusUnauthorized, unknown.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, wrongPassword.StatusCode)

	b1, err := io.ReadAll(unknown.Body)
	require.NoError(t, err)
	unknown.Body.Close()
	b2, err := io.ReadAll(wrongPassword.Body)
	require.NoError(t, err)
	wrongPassword.Body.Close()
	// Identical body: existence of the account is not disclosed.
	assert.Equal(t, string(b1), string(b2))
}

func TestRefreshRotation(t *testing.T) {
	srv := newTestServer(t)
	_, refresh := registerUser(t, srv, "r@x.com")

	resp := doRequest(t, srv, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	newRefresh := body["refreshToken"].(string)
	require.NotEqual(t, refresh, newRefresh)

	// The consumed token is dead.
	resp = doRequest(t, srv, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// The replacement still works.
	resp = doRequest(t, srv, http.MethodPost, "/auth/refresh", map[string]string{"refreshToken": newRefresh})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestOwnerImmunity(t *testing.T) {
	srv := newTestServer(t)
	ownerAccess, _ := registerUser(t, srv, "owner@x.com")
	projectID, _ := createProject(t, srv, ownerAccess, "p")

	resp := doRequest(t, srv, http.MethodGet, "/auth/me", nil, bearer(ownerAccess))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ownerID := decodeBody(t, resp)["id"].(string)

	resp = doRequest(t, srv, http.MethodDelete, "/projects/"+projectID+"/members/"+ownerID, nil, bearer(ownerAccess))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAuditTrailEndpoint(t *testing.T) {
	srv := newTestServer(t)
	access, _ := registerUser(t, srv, "auditor@x.com")
	projectID, envIDs := createProject(t, srv, access, "p")
	secretsPath := "/projects/" + projectID + "/environments/" + envIDs["development"] + "/secrets"

	resp := doRequest(t, srv, http.MethodPost, secretsPath, map[string]string{"key": "K", "value": "v"}, bearer(access))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	secretID := decodeBody(t, resp)["id"].(string)
	resp = doRequest(t, srv, http.MethodGet, secretsPath+"/"+secretID+"/reveal", nil, bearer(access))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, srv, http.MethodGet, "/audit?action=secret.reveal", nil, bearer(access))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["total"])
	entries := body["entries"].([]any)
	require.Len(t, entries, 1)
	entry := entries[0].(map[string]any)
	assert.Equal(t, "secret.reveal", entry["action"])
	assert.Equal(t, secretID, entry["resourceId"])
}

func TestUnauthenticatedRequests(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodGet, "/projects", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, srv, http.MethodGet, "/projects", nil, bearer("garbage"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = doRequest(t, srv, http.MethodGet, "/projects", nil, apiKey("dvt_"+strings.Repeat("0", 64)))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}
