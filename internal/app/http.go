package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"sitecms/api/internal/auth"
	"sitecms/api/internal/authpw"
	"sitecms/api/internal/content"
	"sitecms/api/internal/contentsync"
	"sitecms/api/internal/media"
	"sitecms/api/internal/rbac"
	"sitecms/api/internal/search"
	"sitecms/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withMiddleware)
	r.Use(s.withSession)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Get("/api/health", s.handleHealth)
	r.Head("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	r.Head("/api/ready", s.handleReady)

	r.Get("/api/content", s.handleContent)
	r.Get("/api/search", s.handleSearch)

	r.Get("/api/session", s.handleSession)
	r.Post("/api/session/login", s.handleLogin)
	r.Post("/api/session/refresh", s.handleRefresh)
	r.Post("/api/session/logout", s.handleLogout)

	r.Route("/api/admin", func(r chi.Router) {
		r.With(s.require(rbac.ActionRead)).Get("/activity", s.handleActivity)
		r.With(s.require(rbac.ActionRead)).Get("/versions", s.handleListVersions)
		r.With(s.require(rbac.ActionRead)).Get("/versions/{id}", s.handleGetVersion)

		r.Group(func(r chi.Router) {
			r.Use(s.require(rbac.ActionEdit))
			r.Patch("/content/{section}", s.handleUpdateSection)
			r.Put("/content/{section}", s.handleUpdateSection)
			r.Post("/save/{section}", s.handleSaveSection)
			r.Post("/gallery", s.handleAddGalleryItem)
			r.Delete("/gallery/{id}", s.handleRemoveGalleryItem)
		})

		r.With(s.require(rbac.ActionUpload)).Post("/media", s.handleUploadMedia)

		r.Group(func(r chi.Router) {
			r.Use(s.require(rbac.ActionPublish))
			r.Put("/maintenance", s.handleMaintenance)
			r.Post("/reload", s.handleReload)
		})
	})

	return r
}

// forbid writes a 403 Forbidden response and logs the denial
func (s *HTTPServer) forbid(w http.ResponseWriter, r *http.Request, sess Session, action rbac.Action) {
	log.Printf("app: denied %s %s to %s (role %s, needs %s)", r.Method, r.URL.Path, sess.Email, sess.Role, action)
	writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}
	for name, err := range s.service.ReadinessChecks(ctx) {
		if err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleContent(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Content())
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := search.ResultType(strings.TrimSpace(query.Get("type")))
	switch filter {
	case "", search.ResultProgram, search.ResultStory, search.ResultGallery:
	default:
		writeError(w, http.StatusBadRequest, "INVALID_FILTER", "type must be program, story or gallery", nil)
		return
	}
	limit, _ := strconv.Atoi(query.Get("limit"))
	writeJSON(w, http.StatusOK, s.service.Search(search.Query{
		Text:       strings.TrimSpace(query.Get("q")),
		FilterType: filter,
		Limit:      limit,
	}))
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false, "userName": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"userName":      sess.DisplayName,
		"userId":        sess.OperatorID,
		"email":         sess.Email,
		"role":          sess.Role,
	})
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	sess, err := s.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if !errors.Is(err, authpw.ErrInvalidCredentials) {
			log.Printf("app: login failed: %v", err)
		}
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(sess))
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	sess, err := s.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Refresh token invalid", nil)
		return
	}
	writeJSON(w, http.StatusOK, sessionPayload(sess))
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = decodeBody(r, &body)
	_ = s.service.Logout(r.Context(), sess, body.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func sessionPayload(sess Session) map[string]any {
	return map[string]any{
		"token":        sess.Token,
		"refreshToken": sess.RefreshToken,
		"userName":     sess.DisplayName,
		"userId":       sess.OperatorID,
		"email":        sess.Email,
		"role":         sess.Role,
		"expiresAt":    sess.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

type sessionResult struct {
	session Session
	err     error
}

type sessionKey struct{}

// withSession resolves the bearer token, if any, once per request. A valid
// session also puts the operator on the context as the acting identity.
func (s *HTTPServer) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		sess, err := s.service.SessionFromToken(r.Context(), token)
		ctx := context.WithValue(r.Context(), sessionKey{}, sessionResult{session: sess, err: err})
		if err == nil {
			ctx = auth.WithActor(ctx, sess.Actor())
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFromContext(ctx context.Context) (Session, bool) {
	result, ok := ctx.Value(sessionKey{}).(sessionResult)
	if !ok || result.err != nil {
		return Session{}, false
	}
	return result.session, true
}

// require admits operators whose role allows action. Anonymous callers are
// admitted to edits only when anonymous edits are enabled; their changes stay
// in memory.
func (s *HTTPServer) require(action rbac.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, present := r.Context().Value(sessionKey{}).(sessionResult)
			switch {
			case present && result.err != nil:
				if !errors.Is(result.err, auth.ErrInvalidToken) && !errors.Is(result.err, auth.ErrExpiredToken) {
					log.Printf("app: session lookup failed: %v", result.err)
					writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Session lookup failed", nil)
					return
				}
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
				return
			case present:
				if !s.service.Can(result.session.Role, action) {
					s.forbid(w, r, result.session, action)
					return
				}
			case action == rbac.ActionEdit && s.service.AllowAnonymousEdits():
			default:
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
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

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, content.ErrUnknownSection):
		return http.StatusNotFound, "UNKNOWN_SECTION", "Unknown content section", nil
	case errors.Is(err, content.ErrDuplicateID):
		return http.StatusUnprocessableEntity, "DUPLICATE_ID", err.Error(), nil
	case errors.Is(err, contentsync.ErrItemNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, media.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", err.Error(), nil
	case errors.Is(err, media.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", err.Error(), nil
	case errors.Is(err, media.ErrUploadFailed):
		return http.StatusBadGateway, "UPLOAD_FAILED", "Upload failed", nil
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password", nil
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
