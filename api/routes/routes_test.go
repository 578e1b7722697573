package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"merchhub/api/handler"
	"merchhub/api/middleware"
	"merchhub/internal/deeplink"
	"merchhub/internal/entity"
	"merchhub/internal/repository/memory"
	"merchhub/internal/service"
	"merchhub/internal/storage"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

type mailbox struct {
	mu    sync.Mutex
	links []string
}

func (m *mailbox) SendVerification(_ context.Context, _ *entity.Account, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, link)
	return nil
}

func (m *mailbox) last(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.links)
	return m.links[len(m.links)-1]
}

type api struct {
	e     *echo.Echo
	store *memory.Store
	mail  *mailbox
	root  string
}

func newAPI(t *testing.T, configure ...func(*Router)) *api {
	t.Helper()
	store := memory.NewStore()
	store.AddDepartment(entity.Department{ID: 1, Name: "College of Computing Studies", Code: "CCS"})
	mail := &mailbox{}
	logger, _ := test.NewNullLogger()
	validate := service.NewValidator()
	redirector := deeplink.NewRedirector("merchhub")

	root := t.TempDir()
	disk, err := storage.NewDisk(root, "http://api.test/storage")
	require.NoError(t, err)

	auth := service.NewAuthService(
		store.Accounts(), store.Profiles(), store.Tokens(), store.Departments(), store.SecurityLogs(),
		store.Transactor(), mail, service.BcryptPasswordHasher{Cost: bcrypt.MinCost},
		service.VerificationSigner{Secret: []byte("routes-test-secret-0123"), Issuer: "merchhub"},
		validate, service.RealClock{},
		service.AuthConfig{VerificationURL: "http://api.test/api/email/verify", RedirectURL: redirector.Fallback()},
		logger,
	)
	profiles := service.NewProfileService(store.Accounts(), store.Profiles(), store.SecurityLogs(), store.Transactor(), disk, validate, logger)

	renderer, err := handler.NewTemplateRenderer()
	require.NoError(t, err)
	e := echo.New()
	e.Renderer = renderer

	router := NewRouter(
		e,
		handler.NewAuthHandler(auth, profiles.AvatarURL, logger),
		handler.NewProfileHandler(profiles, logger),
		handler.NewVerificationHandler(auth, redirector, "Merch Hub", logger),
		handler.NewAdminHandler(auth, logger),
		middleware.AuthMiddleware{Auth: auth, Logger: logger},
	)
	router.AuthRate = middleware.NewRateLimiter(rate.Inf, 1, 0)
	router.LoginRate = middleware.NewRateLimiter(rate.Inf, 1, 0)
	router.ResendRate = middleware.NewRateLimiter(rate.Inf, 1, 0)
	metrics, err := middleware.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	router.Metrics = metrics
	router.StorageRoot = root
	for _, fn := range configure {
		fn(router)
	}
	router.RegisterRoutes()

	return &api{e: e, store: store, mail: mail, root: root}
}

func (a *api) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
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
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func registration(email, role string) map[string]any {
	return map[string]any{
		"name":                  "Ana",
		"email":                 email,
		"password":              "secret123",
		"password_confirmation": "secret123",
		"department_id":         1,
		"role":                  role,
	}
}

func verifyPath(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.RequestURI()
}

func TestRegisterLoginVerifyFlow(t *testing.T) {
	a := newAPI(t)

	rec := a.do(t, http.MethodPost, "/api/register", registration("ana@example.com", "student"), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.NotEmpty(t, body["token"])
	assert.Contains(t, body["message"], "check your email")
	user := body["user"].(map[string]any)
	assert.Equal(t, false, user["email_verified"])
	assert.Equal(t, "CCS", user["department"].(map[string]any)["code"])
	assert.Equal(t, "Ana", user["profile"].(map[string]any)["full_name"])

	login := map[string]any{"email": "ana@example.com", "password": "secret123"}
	rec = a.do(t, http.MethodPost, "/api/login", login, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, false, decode(t, rec)["email_verified"])

	rec = a.do(t, http.MethodGet, verifyPath(t, a.mail.last(t)), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
	page := rec.Body.String()
	assert.Contains(t, page, "Your email has been verified successfully!")
	assert.Contains(t, page, `href="merchhub://email-verified"`)

	rec = a.do(t, http.MethodPost, "/api/login", login, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decode(t, rec)
	assert.Equal(t, true, body["email_verified"])
	token := body["token"].(string)

	rec = a.do(t, http.MethodGet, "/api/me", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ana@example.com", decode(t, rec)["email"])

	rec = a.do(t, http.MethodPost, "/api/logout", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(t, http.MethodGet, "/api/me", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidationResponse(t *testing.T) {
	a := newAPI(t)
	req := registration("broken", "student")
	req["password_confirmation"] = "nope"

	rec := a.do(t, http.MethodPost, "/api/register", req, "")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "The given data was invalid.", body["message"])
	errs := body["errors"].(map[string]any)
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")
	assert.Zero(t, a.store.CountAccounts())
}

func TestMalformedJSON(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader("{"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyRejectsBadLinks(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/api/email/verify?token=garbage", nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid")
}

func TestVerifyIgnoresForeignRedirects(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodPost, "/api/register", registration("ana@example.com", "student"), "")
	require.Equal(t, http.StatusCreated, rec.Code)

	u, err := url.Parse(a.mail.last(t))
	require.NoError(t, err)
	q := u.Query()
	q.Set("redirect", "https://evil.example.com/phish")
	rec = a.do(t, http.MethodGet, "/api/email/verify?"+q.Encode(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "evil.example.com")
	assert.Contains(t, rec.Body.String(), "merchhub://email-verified")
}

func TestResendAlwaysAccepted(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodPost, "/api/email/verification-notification", map[string]any{"email": "ghost@example.com"}, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, a.mail.links)
}

func verifiedToken(t *testing.T, a *api, email, role string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/register", registration(email, role), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	if role == "student" {
		rec = a.do(t, http.MethodGet, verifyPath(t, a.mail.last(t)), nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
	} else {
		account, err := a.store.Accounts().FindByEmail(context.Background(), email)
		require.NoError(t, err)
		_, err = a.store.Accounts().MarkEmailVerified(context.Background(), account.ID, account.CreatedAt)
		require.NoError(t, err)
	}
	rec = a.do(t, http.MethodPost, "/api/login", map[string]any{"email": email, "password": "secret123"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(t, rec)["token"].(string)
}

func TestProfileEndpoints(t *testing.T) {
	a := newAPI(t)
	token := verifiedToken(t, a, "ana@example.com", "student")

	rec := a.do(t, http.MethodGet, "/api/profile", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPut, "/api/profile", map[string]any{"bio": "Hi", "interests": []string{"caps"}}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Hi", body["bio"])
	assert.Equal(t, "Ana", body["full_name"])

	rec = a.do(t, http.MethodPut, "/api/profile", map[string]any{"preferences": "dark"}, token)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(t, http.MethodPut, "/api/profile/preferences", map[string]any{"preferences": map[string]any{"theme": "dark"}}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"theme": "dark"}, decode(t, rec)["preferences"])

	rec = a.do(t, http.MethodGet, "/api/profile", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hi", decode(t, rec)["bio"])
}

func uploadAvatar(t *testing.T, a *api, token string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if data != nil {
		part, err := writer.CreateFormFile("avatar", "avatar.png")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/profile/avatar", &buf)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func TestAvatarUploadServesFromStorage(t *testing.T) {
	a := newAPI(t)
	token := verifiedToken(t, a, "ana@example.com", "student")

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewGray(image.Rect(0, 0, 3, 3))))

	rec := uploadAvatar(t, a, token, img.Bytes())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	avatarURL := decode(t, rec)["avatar_url"].(string)
	require.True(t, strings.HasPrefix(avatarURL, "http://api.test/storage/avatars/"), avatarURL)

	path := strings.TrimPrefix(avatarURL, "http://api.test")
	rec = a.do(t, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, img.Bytes(), rec.Body.Bytes())

	rec = uploadAvatar(t, a, token, []byte("not an image"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = uploadAvatar(t, a, token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAdminRoutesRequireStaffRole(t *testing.T) {
	a := newAPI(t)
	studentToken := verifiedToken(t, a, "ana@example.com", "student")
	adminToken := verifiedToken(t, a, "boss@example.com", "admin")

	rec := a.do(t, http.MethodGet, "/api/admin/accounts", nil, studentToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/admin/accounts", nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var accounts []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accounts))
	assert.Len(t, accounts, 2)

	rec = a.do(t, http.MethodPost, "/api/register", registration("staff@example.com", "superadmin"), "")
	require.Equal(t, http.StatusCreated, rec.Code)
	staffID := decode(t, rec)["user"].(map[string]any)["id"].(string)

	rec = a.do(t, http.MethodPost, "/api/admin/accounts/"+staffID+"/verify", nil, adminToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, decode(t, rec)["email_verified_at"])

	student, err := a.store.Accounts().FindByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	rec = a.do(t, http.MethodPost, "/api/admin/accounts/"+student.ID.String()+"/revoke-tokens", nil, adminToken)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = a.do(t, http.MethodGet, "/api/me", nil, studentToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/admin/accounts/not-a-uuid/verify", nil, adminToken)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublicEndpoints(t *testing.T) {
	a := newAPI(t)

	rec := a.do(t, http.MethodGet, "/api/departments", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var departments []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &departments))
	require.Len(t, departments, 1)
	assert.Equal(t, "CCS", departments[0]["code"])

	rec = a.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "merchhub_api_http_requests_total")
}

func TestUnverifiedStaffCannotUseAdminRoutes(t *testing.T) {
	a := newAPI(t)
	verifiedToken(t, a, "ana@example.com", "student")

	rec := a.do(t, http.MethodPost, "/api/register", registration("mallory@example.com", "superadmin"), "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	token := body["token"].(string)
	selfID := body["user"].(map[string]any)["id"].(string)

	rec = a.do(t, http.MethodGet, "/api/admin/accounts", nil, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(t, http.MethodPost, "/api/admin/accounts/"+selfID+"/verify", nil, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	student, err := a.store.Accounts().FindByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	tokens := a.store.CountTokens(student.ID)
	rec = a.do(t, http.MethodPost, "/api/admin/accounts/"+student.ID.String()+"/revoke-tokens", nil, token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, tokens, a.store.CountTokens(student.ID))

	rec = a.do(t, http.MethodPost, "/api/login", map[string]any{"email": "mallory@example.com", "password": "secret123"}, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, decode(t, rec)["message"], "An administrator must verify")
}

func TestAdminCannotVerifySelf(t *testing.T) {
	a := newAPI(t)
	adminToken := verifiedToken(t, a, "boss@example.com", "admin")
	admin, err := a.store.Accounts().FindByEmail(context.Background(), "boss@example.com")
	require.NoError(t, err)

	rec := a.do(t, http.MethodPost, "/api/admin/accounts/"+admin.ID.String()+"/verify", nil, adminToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestResendHasItsOwnRateLimit(t *testing.T) {
	a := newAPI(t, func(r *Router) {
		r.ResendRate = middleware.NewRateLimiter(rate.Every(time.Hour), 1, 0)
		r.LoginRate = middleware.NewRateLimiter(rate.Every(time.Hour), 1, 0)
	})

	resend := map[string]any{"email": "ghost@example.com"}
	rec := a.do(t, http.MethodPost, "/api/email/verification-notification", resend, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = a.do(t, http.MethodPost, "/api/email/verification-notification", resend, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/login", map[string]any{"email": "ghost@example.com", "password": "secret123"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "login budget is untouched by resends")
}

func TestProfileNullClearsField(t *testing.T) {
	a := newAPI(t)
	token := verifiedToken(t, a, "ana@example.com", "student")

	rec := a.do(t, http.MethodPut, "/api/profile", map[string]any{"bio": "Hi"}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Hi", decode(t, rec)["bio"])

	rec = a.do(t, http.MethodPut, "/api/profile", map[string]any{"bio": nil}, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Contains(t, body, "bio")
	assert.Nil(t, body["bio"])
	assert.Equal(t, "Ana", body["full_name"])
}
