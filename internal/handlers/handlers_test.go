package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"videohub/api/internal/config"
	"videohub/api/internal/middleware"
	"videohub/api/internal/repository/repotest"
	"videohub/api/internal/security"
	"videohub/api/internal/service"
	"videohub/api/internal/storage"
)

const testUploadLimit = 4 << 10

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router    *gin.Engine
	signer    *security.TokenSigner
	users     *repotest.UserStore
	sessions  *repotest.SessionStore
	uploadDir string
}

func newTestEnv(t *testing.T, checks HealthChecks) testEnv {
	t.Helper()

	users := repotest.NewUserStore()
	sessions := repotest.NewSessionStore()
	signer := security.NewTokenSigner(security.TokenConfig{
		AccessSecret:      "access-secret",
		RefreshSecret:     "refresh-secret",
		AccessExpiration:  "15m",
		RefreshExpiration: "7d",
	})

	uploadDir := t.TempDir()
	store, err := storage.NewDiskStore(uploadDir)
	require.NoError(t, err)

	userService := service.NewUserService(users)
	auth := service.NewAuthService(userService, service.NewSessionService(sessions), signer, zerolog.Nop())
	videos := service.NewVideoService(store, nil, testUploadLimit, zerolog.Nop())

	cfg := &config.AppConfig{Environment: "test"}
	h := NewHandlerSet(zerolog.Nop(), cfg, Services{
		Auth:   auth,
		Users:  userService,
		Videos: videos,
		Tokens: signer,
	}, checks)

	router := gin.New()
	h.Register(router.Group("/"))

	return testEnv{router: router, signer: signer, users: users, sessions: sessions, uploadDir: uploadDir}
}

func (e testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Error   string `json:"error"`
	Details []struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	} `json:"details"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (e testEnv) sessionID(t *testing.T, pair tokenPair) string {
	t.Helper()
	claims, err := e.signer.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	return claims.TokenID
}

func (e testEnv) register(t *testing.T, name, email, password string) tokenPair {
	t.Helper()
	w := e.do(t, http.MethodPost, "/auth/register", gin.H{"name": name, "email": email, "password": password}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[tokenPair](t, w)
}

func (e testEnv) login(t *testing.T, email, password string) tokenPair {
	t.Helper()
	w := e.do(t, http.MethodPost, "/auth/login", gin.H{"email": email, "password": password}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[tokenPair](t, w)
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})

	registered := env.register(t, "Ana", "ana@x.com", "Passw0rd")
	assert.NotEmpty(t, registered.AccessToken)
	assert.NotEmpty(t, registered.RefreshToken)
	assert.Equal(t, "Ana", registered.User.Name)
	assert.Equal(t, "ana@x.com", registered.User.Email)
	assert.Equal(t, "user", registered.User.Role)

	w := env.do(t, http.MethodPost, "/auth/login", gin.H{"email": "ana@x.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", decode[errorResponse](t, w).Error)

	w = env.do(t, http.MethodPost, "/auth/login", gin.H{"email": "nobody@x.com", "password": "Passw0rd"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials", decode[errorResponse](t, w).Error)

	loggedIn := env.login(t, "ana@x.com", "Passw0rd")
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)
	assert.NotEqual(t, env.sessionID(t, registered), env.sessionID(t, loggedIn))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})
	env.register(t, "Ana", "ana@x.com", "Passw0rd")

	w := env.do(t, http.MethodPost, "/auth/register", gin.H{"name": "Ana", "email": "ANA@x.com", "password": "Passw0rd"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", decode[errorResponse](t, w).Code)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})

	w := env.do(t, http.MethodPost, "/auth/register", gin.H{"name": "A", "email": "not-an-email", "password": "password"}, "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decode[errorResponse](t, w)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	fields := map[string]bool{}
	for _, d := range body.Details {
		fields[d.Field] = true
	}
	assert.Equal(t, map[string]bool{"name": true, "email": true, "password": true}, fields)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRoutesRejectOversizedBodies(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})
	pair := env.register(t, "Ana", "ana@x.com", "Passw0rd")
	padding := strings.Repeat("x", int(middleware.MaxJSONBodyBytes))

	tests := []struct {
		name  string
		path  string
		body  gin.H
		token string
	}{
		{"register", "/auth/register", gin.H{"name": "Bo", "email": "bo@x.com", "password": "Passw0rd", "padding": padding}, ""},
		{"login", "/auth/login", gin.H{"email": "ana@x.com", "password": padding}, ""},
		{"refresh", "/auth/refresh", gin.H{"refreshToken": padding}, ""},
		{"logout", "/auth/logout", gin.H{"sessionId": padding}, pair.AccessToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.path, tt.body, tt.token)
			assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
			assert.Equal(t, "PAYLOAD_TOO_LARGE", decode[errorResponse](t, w).Code)
		})
	}

	_, err := env.users.FindByEmail(context.Background(), "bo@x.com")
	assert.Error(t, err)
	assert.Equal(t, 1, env.sessions.Len())
}

func TestMeReturnsExactlyIdEmailRole(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})
	pair := env.register(t, "Ana", "ana@x.com", "Passw0rd")

	w := env.do(t, http.MethodGet, "/auth/me", nil, pair.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[map[string]any](t, w)
	assert.Equal(t, map[string]any{
		"id":    pair.User.ID,
		"email": "ana@x.com",
		"role":  "user",
	}, body)

	w = env.do(t, http.MethodGet, "/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/auth/me", nil, pair.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})
	first := env.register(t, "Ana", "ana@x.com", "Passw0rd")

	w := env.do(t, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": first.RefreshToken}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	second := decode[tokenPair](t, w)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.NotEqual(t, env.sessionID(t, first), env.sessionID(t, second))

	w = env.do(t, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": first.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": second.RefreshToken}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/auth/refresh", gin.H{}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": first.AccessToken}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshRejectsExpiredSession(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})
	pair := env.register(t, "Ana", "ana@x.com", "Passw0rd")

	id, err := bson.ObjectIDFromHex(env.sessionID(t, pair))
	require.NoError(t, err)
	env.sessions.Expire(id)

	w := env.do(t, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": pair.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutSingleSession(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})
	phone := env.register(t, "Ana", "ana@x.com", "Passw0rd")
	laptop := env.login(t, "ana@x.com", "Passw0rd")

	w := env.do(t, http.MethodPost, "/auth/logout", gin.H{"sessionId": env.sessionID(t, phone)}, laptop.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Logged out successfully"}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": phone.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": laptop.RefreshToken}, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogoutEverywhere(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})
	phone := env.register(t, "Ana", "ana@x.com", "Passw0rd")
	laptop := env.login(t, "ana@x.com", "Passw0rd")
	other := env.register(t, "Bea", "bea@x.com", "Passw0rd")

	w := env.do(t, http.MethodPost, "/auth/logout", nil, laptop.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)

	for _, pair := range []tokenPair{phone, laptop} {
		w = env.do(t, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": pair.RefreshToken}, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w = env.do(t, http.MethodPost, "/auth/refresh", gin.H{"refreshToken": other.RefreshToken}, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/auth/logout", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListAndRevokeSessions(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})
	first := env.register(t, "Ana", "ana@x.com", "Passw0rd")
	second := env.login(t, "ana@x.com", "Passw0rd")

	w := env.do(t, http.MethodGet, "/auth/sessions", nil, second.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[struct {
		Sessions []struct {
			ID string `json:"id"`
		} `json:"sessions"`
	}](t, w)
	require.Len(t, listed.Sessions, 2)
	assert.Equal(t, env.sessionID(t, second), listed.Sessions[0].ID)

	w = env.do(t, http.MethodDelete, "/auth/sessions/"+env.sessionID(t, first), nil, second.AccessToken)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodDelete, "/auth/sessions/"+env.sessionID(t, first), nil, second.AccessToken)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/auth/sessions/not-an-id", nil, second.AccessToken)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func aviPayload(size int) []byte {
	data := make([]byte, size)
	copy(data, "RIFF\x00\x00\x00\x00AVI LIST")
	return data
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "holiday"))

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func (e testEnv) upload(t *testing.T, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/videos/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestUploadVideo(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})

	data := aviPayload(1024)
	body, ct := multipartBody(t, "file", "holiday.avi", "video/avi", data)
	w := env.upload(t, body, ct)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decode[map[string]any](t, w)
	assert.ElementsMatch(t,
		[]string{"id", "filename", "originalName", "mimeType", "sizeBytes", "checksum", "createdAt"},
		keys(resp))
	assert.Equal(t, "holiday.avi", resp["originalName"])
	assert.Equal(t, "video/x-msvideo", resp["mimeType"])
	assert.EqualValues(t, 1024, resp["sizeBytes"])

	stored, err := os.ReadFile(filepath.Join(env.uploadDir, resp["filename"].(string)))
	require.NoError(t, err)
	assert.Equal(t, data, stored)
}

func TestUploadVideoRejects(t *testing.T) {
	env := newTestEnv(t, HealthChecks{})

	png := append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

	tests := []struct {
		name     string
		field    string
		filename string
		ctype    string
		data     []byte
		status   int
	}{
		{"wrong_field", "video", "clip.avi", "video/avi", aviPayload(64), http.StatusBadRequest},
		{"png_named_avi", "file", "clip.avi", "video/avi", png, http.StatusBadRequest},
		{"over_limit", "file", "clip.avi", "video/avi", aviPayload(testUploadLimit + 1), http.StatusRequestEntityTooLarge},
		{"over_body_cap", "file", "clip.avi", "video/avi", aviPayload(testUploadLimit + 2<<20), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.field, tt.filename, tt.ctype, tt.data)
			w := env.upload(t, body, ct)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	w := env.upload(t, bytes.NewBufferString(`{"file":"x"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	files, err := os.ReadDir(env.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	env := newTestEnv(t, HealthChecks{Database: ok, Storage: ok})
	w := env.do(t, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok","cache":"disabled","storage":"ok","environment":"test"}`, w.Body.String())

	env = newTestEnv(t, HealthChecks{Database: down, Cache: ok, Storage: ok})
	w = env.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "error", decode[map[string]any](t, w)["database"])
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
