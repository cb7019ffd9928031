package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"safetycheck/api/internal/auth"
	"safetycheck/api/internal/authpw"
	"safetycheck/api/internal/blob"
	"safetycheck/api/internal/checklist"
	"safetycheck/api/internal/export"
	"safetycheck/api/internal/log"
	"safetycheck/api/internal/rbac"
	"safetycheck/api/internal/search"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.RequestID, s.accessLog, middleware.Recoverer, s.cors)

	if local, ok := s.service.blob.(*blob.Local); ok {
		root.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(local.Root()))))
	}

	root.Route("/api", func(api chi.Router) {
		api.Get("/health", s.handleHealth)
		api.Get("/ready", s.handleReady)

		api.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/signin", s.handleSignIn)
			r.Post("/forgot-password", s.handleForgotPassword)
			r.Post("/reset-password", s.handleResetPassword)
		})

		api.Get("/session", s.handleSession)
		api.Post("/session/refresh", s.handleRefresh)
		api.With(s.requireSession).Post("/session/logout", s.handleLogout)

		api.Group(func(r chi.Router) {
			r.Use(s.requireSession, s.requireAction(rbac.ActionInspect))
			r.Get("/catalog", s.handleCatalog)
			r.With(s.requireAction(rbac.ActionUpload)).Post("/uploads", s.handleUpload)

			r.Route("/inspections", func(r chi.Router) {
				r.Get("/", s.handleListInspections)
				r.Post("/", s.handleCreateInspection)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetInspection)
					r.Put("/", s.handleReplaceInspection)
					r.Patch("/", s.handleAutosaveInspection)
					r.Delete("/", s.handleDeleteInspection)
					r.Get("/form", s.handleInspectionForm)
					r.Get("/export.pdf", s.handleExportPDF)
				})
			})
		})

		api.Route("/admin", func(r chi.Router) {
			r.Use(s.requireSession, s.requireAction(rbac.ActionAdmin))
			r.Get("/inspections", s.handleAdminInspections)
			r.Get("/search", s.handleAdminSearch)
			r.Get("/reports", s.handleAdminReports)
			r.Get("/users", s.handleAdminUsers)
			r.Post("/users/{id}/approve", s.handleApproveUser)
			r.Post("/users/{id}/reject", s.handleRejectUser)
			r.Post("/users/{id}/toggle-role", s.handleToggleRole)
		})
	})
	return root
}

type sessionKey struct{}

func sessionFrom(r *http.Request) Session {
	session, _ := r.Context().Value(sessionKey{}).(Session)
	return session
}

func (s *HTTPServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Não autenticado", nil)
			return
		}
		session, err := s.service.SessionFromToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, sql.ErrNoRows) {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Sessão inválida ou expirada", nil)
				return
			}
			log.WithFields(log.Fields{"request_id": middleware.GetReqID(r.Context())}).Errorf("session lookup: %v", err)
			writeError(w, r, http.StatusInternalServerError, "SERVER_ERROR", "Falha ao validar a sessão", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, session)))
	})
}

func (s *HTTPServer) requireAction(action rbac.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := sessionFrom(r)
			if !s.service.Can(session.Role, action) {
				s.forbid(w, r, session, action)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *HTTPServer) forbid(w http.ResponseWriter, r *http.Request, session Session, action rbac.Action) {
	log.WithFields(log.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"user_id":    session.UserID,
		"role":       session.Role,
		"action":     string(action),
	}).Debug("forbidden")
	if rbac.Normalize(session.Role) == rbac.RolePending {
		writeError(w, r, http.StatusForbidden, "ACCOUNT_PENDING", "Sua conta aguarda aprovação do administrador", nil)
		return
	}
	writeError(w, r, http.StatusForbidden, "FORBIDDEN", "Acesso negado", nil)
}

func (s *HTTPServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		requestID := middleware.GetReqID(r.Context())
		writer := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		status := writer.Status()
		if status == 0 {
			status = http.StatusOK
		}
		log.WithFields(log.Fields{
			"request_id":  requestID,
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      status,
			"duration_ms": time.Since(started).Milliseconds(),
		}).Info("request")
	})
}

func (s *HTTPServer) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", s.corsOrigin)
		header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		header.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Cache-Control", "no-store")
	render.Status(r, status)
	render.JSON(w, r, payload)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, r, status, response)
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.WithFields(log.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"path":       r.URL.Path,
		}).Errorf("request failed: %v", err)
	}
	writeError(w, r, status, code, message, details)
}

// decodeBody accepts an empty body as "no fields".
func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	if err := render.DecodeJSON(r.Body, target); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func queryInt(r *http.Request, key string) int {
	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return value
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Não encontrado", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Sessão inválida ou expirada", nil
	}
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		return http.StatusServiceUnavailable, "PDF_UNAVAILABLE", "Geração de PDF indisponível no servidor", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Erro interno do servidor", nil
}

func sessionPayload(session Session) map[string]any {
	return map[string]any{
		"token":        session.Token,
		"refreshToken": session.RefreshToken,
		"userId":       session.UserID,
		"userName":     session.UserName,
		"email":        session.Email,
		"role":         session.Role,
		"expiresAt":    session.ExpiresAt.Unix(),
	}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"database": map[string]any{"status": "ok"},
	}
	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["database"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}
	writeJSON(w, r, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name            string `json:"name"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	user, err := s.service.Register(r.Context(), authpw.RegisterRequest{
		Name:            body.Name,
		Email:           body.Email,
		Password:        body.Password,
		ConfirmPassword: body.ConfirmPassword,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	message := "Cadastro realizado com sucesso. Aguarde a aprovação do administrador."
	if rbac.Normalize(user.Role) == rbac.RoleAdmin {
		message = "Conta de administrador criada com sucesso."
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{"message": message, "user": user})
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.SignIn(r.Context(), body.Email, body.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sessionPayload(session))
}

func (s *HTTPServer) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	devToken, err := s.service.ForgotPassword(r.Context(), body.Email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	response := map[string]any{
		"message": "Se o email estiver cadastrado, você receberá um link para redefinir sua senha.",
	}
	if devToken != "" {
		response["devResetToken"] = devToken
	}
	writeJSON(w, r, http.StatusOK, response)
}

func (s *HTTPServer) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token           string `json:"token"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	err := s.service.ResetPassword(r.Context(), authpw.ResetPasswordRequest{
		Token:           body.Token,
		Password:        body.Password,
		ConfirmPassword: body.ConfirmPassword,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"message": "Senha redefinida com sucesso"})
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, r, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		writeJSON(w, r, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"authenticated": true,
		"userId":        session.UserID,
		"userName":      session.UserName,
		"email":         session.Email,
		"role":          session.Role,
		"expiresAt":     session.ExpiresAt.Unix(),
	})
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	session, err := s.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, sessionPayload(session))
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.Logout(r.Context(), sessionFrom(r), body.RefreshToken); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleCatalog(w http.ResponseWriter, r *http.Request) {
	catalog := s.service.Catalog()
	writeJSON(w, r, http.StatusOK, map[string]any{
		"sections":  catalog.Sections(),
		"questions": catalog.Questions(),
	})
}

func listFilter(r *http.Request) ListFilter {
	query := r.URL.Query()
	return ListFilter{
		Status: query.Get("status"),
		Query:  query.Get("q"),
		UserID: query.Get("userId"),
		Page:   queryInt(r, "page"),
		Limit:  queryInt(r, "limit"),
	}
}

func (s *HTTPServer) handleListInspections(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.ListInspections(r.Context(), sessionFrom(r), listFilter(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

func decodeSubmission(r *http.Request) (*checklist.Submission, error) {
	sub := checklist.NewSubmission()
	if err := decodeBody(r, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *HTTPServer) handleCreateInspection(w http.ResponseWriter, r *http.Request) {
	sub, err := decodeSubmission(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, err := s.service.CreateInspection(r.Context(), sessionFrom(r), sub)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, result)
}

func (s *HTTPServer) handleGetInspection(w http.ResponseWriter, r *http.Request) {
	detail, err := s.service.GetInspection(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, detail)
}

func (s *HTTPServer) handleReplaceInspection(w http.ResponseWriter, r *http.Request) {
	sub, err := decodeSubmission(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, err := s.service.ReplaceInspection(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), sub)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *HTTPServer) handleAutosaveInspection(w http.ResponseWriter, r *http.Request) {
	var body AutosaveInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	rec, err := s.service.AutosaveInspection(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *HTTPServer) handleDeleteInspection(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteInspection(r.Context(), sessionFrom(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleInspectionForm(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.HydrateForm(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

func (s *HTTPServer) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.ExportInspectionPDF(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.service.cfg.UploadMaxBytes
	if limit <= 0 {
		limit = uploadMaxBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "Arquivo muito grande. Máximo 10MB", nil)
			return
		}
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "Envie a imagem no campo 'file'", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "NO_FILE", "Nenhum arquivo enviado", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "Falha ao ler o arquivo", nil)
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}

	result, err := s.service.UploadPhoto(r.Context(), sessionFrom(r), data, mimeType)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, result)
}

func (s *HTTPServer) handleAdminInspections(w http.ResponseWriter, r *http.Request) {
	page, err := s.service.ListAllInspections(r.Context(), sessionFrom(r), listFilter(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, page)
}

func (s *HTTPServer) handleAdminSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	result, err := s.service.SearchInspections(r.Context(), search.Query{
		Text:   query.Get("q"),
		Status: query.Get("status"),
		UserID: query.Get("userId"),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *HTTPServer) handleAdminReports(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Reports(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

func (s *HTTPServer) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.service.ListUsers(r.Context(), r.URL.Query().Get("role"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"users": users})
}

func (s *HTTPServer) handleApproveUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.service.ApproveUser(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"user": user})
}

func (s *HTTPServer) handleRejectUser(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	user, err := s.service.RejectUser(r.Context(), sessionFrom(r), chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"user": user})
}

func (s *HTTPServer) handleToggleRole(w http.ResponseWriter, r *http.Request) {
	user, err := s.service.ToggleRole(r.Context(), sessionFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"user": user})
}
