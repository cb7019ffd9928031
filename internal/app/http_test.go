package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safetycheck/api/internal/blob"
	"safetycheck/api/internal/config"
	"safetycheck/api/internal/store"
)

type httpEnv struct {
	*testEnv
	handler http.Handler
}

func newHTTPEnv(t *testing.T) *httpEnv {
	t.Helper()
	env := newTestEnv()
	return &httpEnv{testEnv: env, handler: NewHTTPServer(env.service, "http://localhost:5173").Handler()}
}

// rebuild picks up collaborators swapped in after construction.
func (e *httpEnv) rebuild() {
	e.handler = NewHTTPServer(e.service, "http://localhost:5173").Handler()
}

func (e *httpEnv) login(t *testing.T, id, name, role string) string {
	t.Helper()
	user := e.store.addUser(id, name, role)
	session, err := e.service.issueSession(context.Background(), user)
	require.NoError(t, err)
	return session.Token
}

func (e *httpEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch typed := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(typed))
	default:
		raw, err := json.Marshal(typed)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	env := newHTTPEnv(t)
	rec := env.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeJSON(t, rec)["ok"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestReadyReportsDatabaseFailure(t *testing.T) {
	env := newHTTPEnv(t)
	rec := env.do(t, http.MethodGet, "/api/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	env.store.pingErr = errors.New("connection refused")
	rec = env.do(t, http.MethodGet, "/api/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	payload := decodeJSON(t, rec)
	assert.Equal(t, "not_ready", payload["status"])
}

func TestCORSPreflight(t *testing.T) {
	env := newHTTPEnv(t)
	rec := env.do(t, http.MethodOptions, "/api/inspections", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	env := newHTTPEnv(t)

	rec := env.do(t, http.MethodGet, "/api/inspections", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeJSON(t, rec)["code"])

	rec = env.do(t, http.MethodGet, "/api/inspections", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/session", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeJSON(t, rec)["authenticated"])
}

func TestPendingAccountIsBlocked(t *testing.T) {
	env := newHTTPEnv(t)
	token := env.login(t, "user-1", "Ana", "PENDING")

	rec := env.do(t, http.MethodGet, "/api/catalog", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "ACCOUNT_PENDING", decodeJSON(t, rec)["code"])

	rec = env.do(t, http.MethodGet, "/api/session", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PENDING", decodeJSON(t, rec)["role"])
}

func TestRoleChangeAppliesToExistingToken(t *testing.T) {
	env := newHTTPEnv(t)
	token := env.login(t, "user-1", "Ana", "USER")

	rec := env.do(t, http.MethodGet, "/api/admin/reports", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeJSON(t, rec)["code"])

	require.NoError(t, env.store.SetUserRole(context.Background(), "user-1", "ADMIN"))
	rec = env.do(t, http.MethodGet, "/api/admin/reports", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeJSON(t, rec)["totalUsers"])
}

func TestCreateInspectionOverHTTP(t *testing.T) {
	env := newHTTPEnv(t)
	token := env.login(t, "user-1", "Ana", "USER")

	body := `{
		"status": "DRAFT",
		"title": "Obra Centro",
		"location": {"latitude": -23.55, "longitude": -46.63, "address": "Praça da Sé"},
		"section1": {"q1_equipe_integrada": "yes", "q99_inexistente": "YES"},
		"section3": {"q14_usa_equipamentos": "YES", "q14_equipamentos_lista": "serra, policorte"}
	}`
	rec := env.do(t, http.MethodPost, "/api/inspections", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	payload := decodeJSON(t, rec)
	assert.EqualValues(t, 3, payload["responsesCount"])
	gaps, ok := payload["gaps"].([]any)
	require.True(t, ok)
	require.Len(t, gaps, 1)
	assert.Equal(t, "q99_inexistente", gaps[0].(map[string]any)["key"])

	inspection := payload["inspection"].(map[string]any)
	id, _ := inspection["id"].(string)
	require.NotEmpty(t, id)

	rec = env.do(t, http.MethodGet, "/api/inspections/"+id+"/form", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	form := decodeJSON(t, rec)["form"].(map[string]any)
	assert.Equal(t, "Obra Centro", form["title"])
	assert.Equal(t, map[string]any{"q1_equipe_integrada": "YES"}, form["section1"])
	assert.Equal(t, map[string]any{
		"q14_usa_equipamentos":   "YES",
		"q14_equipamentos_lista": "serra, policorte",
	}, form["section3"])

	rec = env.do(t, http.MethodGet, "/api/inspections?limit=5", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeJSON(t, rec)
	assert.Len(t, list["inspections"], 1)
	assert.EqualValues(t, 5, list["pagination"].(map[string]any)["limit"])
}

func TestSubmitValidationErrorOverHTTP(t *testing.T) {
	env := newHTTPEnv(t)
	token := env.login(t, "user-1", "Ana", "USER")

	rec := env.do(t, http.MethodPost, "/api/inspections", token, `{"status":"SUBMITTED","section1":{"q1_equipe_integrada":"YES"}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeJSON(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", payload["code"])

	fields := payload["details"].(map[string]any)["fields"].([]any)
	var paths []string
	for _, field := range fields {
		paths = append(paths, field.(map[string]any)["path"].(string))
	}
	assert.Contains(t, paths, "section1.q11_foto_pdst")
	assert.NotContains(t, paths, "section1.q1_equipe_integrada")
	assert.Empty(t, env.store.inspections)
}

func TestInvalidJSONBody(t *testing.T) {
	env := newHTTPEnv(t)
	token := env.login(t, "user-1", "Ana", "USER")
	rec := env.do(t, http.MethodPost, "/api/inspections", token, `{"section1": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_BODY", decodeJSON(t, rec)["code"])
}

func TestInspectionAccessOverHTTP(t *testing.T) {
	env := newHTTPEnv(t)
	owner := env.login(t, "user-1", "Ana", "USER")
	other := env.login(t, "user-2", "Caio", "USER")
	env.store.addInspection(store.Inspection{ID: "insp-1", UserID: "user-1", Status: "DRAFT", Title: "Obra", CreatedAt: time.Now()})

	rec := env.do(t, http.MethodGet, "/api/inspections/insp-1", other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/inspections/missing", owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeJSON(t, rec)["code"])

	rec = env.do(t, http.MethodPatch, "/api/inspections/insp-1", owner, `{"title":"Obra Norte"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Obra Norte", decodeJSON(t, rec)["title"])

	rec = env.do(t, http.MethodPatch, "/api/inspections/insp-1", owner, `{"status":"SUBMITTED"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_STATE", decodeJSON(t, rec)["code"])

	rec = env.do(t, http.MethodDelete, "/api/inspections/insp-1", owner, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/inspections/insp-1", owner, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportPDFOverHTTP(t *testing.T) {
	env := newHTTPEnv(t)
	token := env.login(t, "user-1", "Ana", "USER")
	env.store.addInspection(store.Inspection{ID: "insp-1", UserID: "user-1", Status: "DRAFT", CreatedAt: time.Now()})

	rec := env.do(t, http.MethodGet, "/api/inspections/insp-1/export.pdf", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "PDF_UNAVAILABLE", decodeJSON(t, rec)["code"])

	env.service.pdf = &fakePDF{}
	rec = env.do(t, http.MethodGet, "/api/inspections/insp-1/export.pdf", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "relatorio.pdf")
	assert.Equal(t, "%PDF-1.4 fake", rec.Body.String())
}

func TestSignInRefreshAndLogoutOverHTTP(t *testing.T) {
	env := newHTTPEnv(t)
	env.store.addUser("user-1", "Ana", "USER")
	env.auth.signInFn = func(email, password string) (store.User, error) {
		return env.store.GetUserByID(context.Background(), "user-1")
	}

	rec := env.do(t, http.MethodPost, "/api/auth/signin", "", `{"email":"user-1@example.com","password":"Senha@123"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	signedIn := decodeJSON(t, rec)
	token := signedIn["token"].(string)
	refresh := signedIn["refreshToken"].(string)
	assert.Equal(t, "USER", signedIn["role"])

	rec = env.do(t, http.MethodPost, "/api/session/refresh", "", map[string]string{"refreshToken": refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	rotated := decodeJSON(t, rec)["refreshToken"].(string)

	rec = env.do(t, http.MethodPost, "/api/session/refresh", "", map[string]string{"refreshToken": refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/session/logout", token, map[string]string{"refreshToken": rotated})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/inspections", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestForgotPasswordDevToken(t *testing.T) {
	env := newHTTPEnv(t)
	env.auth.resetToken = "abc123"
	env.auth.resetUser = store.User{ID: "user-1", Email: "ana@example.com"}

	rec := env.do(t, http.MethodPost, "/api/auth/forgot-password", "", `{"email":"ana@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc123", decodeJSON(t, rec)["devResetToken"])
}

func TestAdminUserRoutes(t *testing.T) {
	env := newHTTPEnv(t)
	admin := env.login(t, "admin-1", "Bia", "ADMIN")
	env.store.addUser("user-1", "Ana", "PENDING")

	rec := env.do(t, http.MethodGet, "/api/admin/users?role=PENDING", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeJSON(t, rec)["users"], 1)

	rec = env.do(t, http.MethodPost, "/api/admin/users/user-1/approve", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "USER", decodeJSON(t, rec)["user"].(map[string]any)["role"])

	rec = env.do(t, http.MethodPost, "/api/admin/users/admin-1/toggle-role", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/admin/users/user-1/reject", admin, `{"reason":"Sem contrato"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Sem contrato", decodeJSON(t, rec)["user"].(map[string]any)["rejectionReason"])
}

func TestUploadAndServeLocalFile(t *testing.T) {
	env := newHTTPEnv(t)
	env.service.blob = blob.NewLocal(config.Storage{Endpoint: t.TempDir()})
	env.rebuild()
	token := env.login(t, "user-1", "Ana", "USER")

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "obra.png")
	require.NoError(t, err)
	_, err = part.Write(pngBytes(t, 40, 30))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	payload := decodeJSON(t, rec)
	url := payload["url"].(string)
	assert.True(t, strings.HasPrefix(url, "/uploads/temp/user-1/"), url)
	assert.EqualValues(t, 40, payload["width"])

	served := env.do(t, http.MethodGet, url, "", nil)
	assert.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, []byte{0xFF, 0xD8}, served.Body.Bytes()[:2])
}
