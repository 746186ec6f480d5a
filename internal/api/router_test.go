package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"service_finder/internal/api/middleware"
	"service_finder/internal/app/service"
	"service_finder/internal/common/security"
	"service_finder/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminSecret = "bootstrap-secret"

type testServer struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T, limiter middleware.Limiter) *testServer {
	t.Helper()
	return newTestServerWithUploader(t, limiter, nil)
}

func newTestServerWithUploader(t *testing.T, limiter middleware.Limiter, uploader service.ImageUploader) *testServer {
	t.Helper()
	store := repository.NewMemoryStore().Store()
	tokens := security.NewTokenService([]byte("test-key"), time.Hour)
	hasher := security.NewPasswordHasher(4)

	h := NewRouter(Deps{
		Tokens:          tokens,
		Users:           store.Users,
		AuthService:     service.NewAuthService(store.Users, tokens, hasher, adminSecret),
		UserService:     service.NewUserService(store.Users, hasher),
		CategoryService: service.NewCategoryService(store.Categories, store.Providers),
		ProviderService: service.NewProviderService(store.Providers, store.Categories, uploader),
		AuthLimiter:     limiter,
		AllowedOrigins:  []string{"*"},
		RequestTimeout:  5 * time.Second,
	})
	return &testServer{t: t, handler: h}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type authBody struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
	Token   string `json:"token"`
}

func (s *testServer) register(name, email string) authBody {
	rec := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "secret1",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[authBody](s.t, rec)
}

func (s *testServer) admin() authBody {
	rec := s.do(http.MethodPost, "/api/auth/create-admin", "", map[string]string{
		"name": "Root", "email": "root@example.com", "password": "secret1", "secretKey": adminSecret,
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[authBody](s.t, rec)
}

func (s *testServer) category(token, name string) string {
	rec := s.do(http.MethodPost, "/api/categories", token, map[string]string{"name": name, "iconName": "wrench"})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]interface{}](s.t, rec)["id"].(string)
}

func providerBody(name, categoryID string, lat, lng float64) map[string]interface{} {
	return map[string]interface{}{
		"name":     name,
		"category": categoryID,
		"address": map[string]string{
			"street": "1 Main St", "city": "New York", "state": "NY", "zipCode": "10001", "label": "1 Main St",
		},
		"location": map[string]float64{"lat": lat, "lng": lng},
		"contacts": []map[string]string{{"type": "mobile", "value": "555-0100"}},
	}
}

func TestHealthAndRoot(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/nope", "", nil).Code)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, nil)
	user := s.register("Ana", "ana@example.com")
	assert.False(t, user.IsAdmin)

	rec := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ana@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[authBody](t, rec).Token)

	rec = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ana@example.com", "password": "nope123"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/auth/register", "", `{"name":"X","email":"x@example.com","password":"secret1","isAdmin":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")
}

func TestCreateAdmin(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(http.MethodPost, "/api/auth/create-admin", "", map[string]string{
		"name": "Root", "email": "root@example.com", "password": "secret1", "secretKey": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "root@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "rejected create-admin must not create a user")

	admin := s.admin()
	assert.True(t, admin.IsAdmin)
}

func TestProfileRequiresLiveUser(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.admin()
	user := s.register("Ana", "ana@example.com")

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/users/profile", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/users/profile", "bad.token.here", nil).Code)

	rec := s.do(http.MethodGet, "/api/users/profile", user.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "ana@example.com", profile["email"])
	assert.NotContains(t, profile, "password")
	assert.NotContains(t, profile, "HashedPassword")

	rec = s.do(http.MethodPut, "/api/users/profile", user.Token, map[string]string{"phone": "555-9999"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "555-9999", decode[map[string]interface{}](t, rec)["phone"])

	rec = s.do(http.MethodPut, "/api/users/profile", user.Token, `{"isAdmin":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/users", user.Token, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/users", admin.Token, nil).Code)

	rec = s.do(http.MethodDelete, "/api/users/"+user.ID, admin.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/users/profile", user.Token, nil).Code)
}

func TestRoleChangesApplyOnNextRequest(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.admin()
	user := s.register("Ana", "ana@example.com")

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/categories/admin/all", user.Token, nil).Code)

	rec := s.do(http.MethodPut, "/api/users/"+user.ID, admin.Token, map[string]bool{"isAdmin": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/categories/admin/all", user.Token, nil).Code)

	rec = s.do(http.MethodPut, "/api/users/"+user.ID, admin.Token, map[string]bool{"isAdmin": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/categories/admin/all", user.Token, nil).Code)
}

func TestCategoryRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.admin()
	user := s.register("Ana", "ana@example.com")

	id := s.category(admin.Token, "Plumbing")

	rec := s.do(http.MethodPost, "/api/categories", admin.Token, map[string]string{"name": "Plumbing", "iconName": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodDelete, "/api/categories/"+id, "", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, "/api/categories/"+id, user.Token, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/categories/"+id, "", nil).Code, "category must survive a forbidden delete")

	rec = s.do(http.MethodPut, "/api/categories/"+id, admin.Token, map[string]bool{"isActive": false})
	require.Equal(t, http.StatusOK, rec.Code)
	public := decode[[]map[string]interface{}](t, s.do(http.MethodGet, "/api/categories", "", nil))
	assert.Empty(t, public)
	all := decode[[]map[string]interface{}](t, s.do(http.MethodGet, "/api/categories/admin/all", admin.Token, nil))
	assert.Len(t, all, 1)

	rec = s.do(http.MethodPost, "/api/providers", admin.Token, providerBody("Joe", id, 40.7, -74.0))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	providerID := decode[map[string]interface{}](t, rec)["id"].(string)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodDelete, "/api/categories/"+id, admin.Token, nil).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/providers/"+providerID, admin.Token, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/api/categories/"+id, admin.Token, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/categories/"+id, "", nil).Code)
}

func TestProviderRoutes(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.admin()
	catID := s.category(admin.Token, "Plumbing")

	rec := s.do(http.MethodPost, "/api/providers", admin.Token, providerBody("Ghost", "missing", 40.7, -74.0))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPost, "/api/providers", admin.Token, providerBody("Queens", catID, 40.730, -73.935))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "Varies", created["priceRange"])
	assert.Equal(t, true, created["isAvailable"])
	assert.Equal(t, "Plumbing", created["category"].(map[string]interface{})["name"])

	rec = s.do(http.MethodPost, "/api/providers", admin.Token, providerBody("Downtown", catID, 40.7128, -74.0060))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/api/providers/nearby?lat=40.7128&lng=-74.0060", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	nearby := decode[[]map[string]interface{}](t, rec)
	require.Len(t, nearby, 2)
	assert.Equal(t, "Downtown", nearby[0]["name"])
	assert.Equal(t, "Queens", nearby[1]["name"])
	assert.InDelta(t, 6.28, nearby[1]["distance"].(float64), 0.01)

	rec = s.do(http.MethodGet, "/api/providers/nearby?lat=40.7128&lng=-74.0060&radius=5&categoryId="+catID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]interface{}](t, rec), 1)

	for _, q := range []string{"", "?lat=40", "?lat=abc&lng=1", "?lat=40&lng=-74&radius=0", "?lat=40&lng=-74&radius=-1", "?lat=95&lng=0", "?lat=NaN&lng=0"} {
		assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/api/providers/nearby"+q, "", nil).Code, q)
	}

	rec = s.do(http.MethodGet, "/api/providers/category/"+catID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]interface{}](t, rec), 2)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/providers/category/missing", "", nil).Code)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/providers", "", nil).Code)
	rec = s.do(http.MethodGet, "/api/providers", admin.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]interface{}](t, rec), 2)

	id := created["id"].(string)
	rec = s.do(http.MethodPut, "/api/providers/"+id, admin.Token, map[string]interface{}{"isAvailable": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(http.MethodGet, "/api/providers/nearby?lat=40.7128&lng=-74.0060", "", nil)
	assert.Len(t, decode[[]map[string]interface{}](t, rec), 1)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/providers/"+id, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/providers/missing", "", nil).Code)
}

// PNG and JPEG headers; both sniff as images regardless of the declared
// part type.
var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
)

type recordingUploader struct {
	got []byte
}

func (u *recordingUploader) UploadImage(_ context.Context, subfolder string, file io.Reader) (string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}
	u.got = data
	return "https://img.example.com/" + subfolder + "/1.jpg", nil
}

func (s *testServer) upload(token, providerID string, content []byte) *httptest.ResponseRecorder {
	s.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	// CreateFormFile always declares application/octet-stream.
	part, err := mw.CreateFormFile("image", "photo.jpg")
	require.NoError(s.t, err)
	_, err = part.Write(content)
	require.NoError(s.t, err)
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/providers/"+providerID+"/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) provider(token string) string {
	s.t.Helper()
	catID := s.category(token, "Plumbing")
	rec := s.do(http.MethodPost, "/api/providers", token, providerBody("Joe", catID, 1, 1))
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]interface{}](s.t, rec)["id"].(string)
}

func TestUploadImageWithoutMediaStorage(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.admin()
	id := s.provider(admin.Token)

	assert.Equal(t, http.StatusServiceUnavailable, s.upload(admin.Token, id, jpegBytes).Code)
}

func TestUploadImageSniffsContent(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		want    int
	}{
		{"jpeg", jpegBytes, http.StatusCreated},
		{"png", pngBytes, http.StatusCreated},
		{"plain text", []byte("definitely not a picture"), http.StatusBadRequest},
		{"html", []byte("<html><body>hi</body></html>"), http.StatusBadRequest},
		{"empty", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uploader := &recordingUploader{}
			s := newTestServerWithUploader(t, nil, uploader)
			admin := s.admin()
			id := s.provider(admin.Token)

			rec := s.upload(admin.Token, id, tt.content)
			require.Equal(t, tt.want, rec.Code, rec.Body.String())
			if tt.want != http.StatusCreated {
				assert.Nil(t, uploader.got)
				return
			}
			// The sniffed prefix is stitched back in front of the stream.
			assert.Equal(t, tt.content, uploader.got)
			images := decode[map[string]interface{}](t, rec)["images"].([]interface{})
			assert.Equal(t, []interface{}{"https://img.example.com/" + id + "/1.jpg"}, images)
		})
	}
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := newTestServer(t, middleware.NewMemoryLimiter(ctx, 0.001, 2))

	creds := map[string]string{"email": "nobody@example.com", "password": "secret1"}
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/auth/login", "", creds).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/api/auth/login", "", creds).Code)
	rec := s.do(http.MethodPost, "/api/auth/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Public reads are not limited.
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/categories", "", nil).Code)
}
