package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	authdomain "community/backend/internal/domain/auth"
	postdomain "community/backend/internal/domain/post"
	postusecase "community/backend/internal/usecase/post"
)

func (s *Server) registerRoutes() {
	s.router.Handle("/health", http.HandlerFunc(s.handleHealth))
	s.router.Handle("/metrics", s.metrics.handler())

	s.route("/api/auth/register", http.HandlerFunc(s.handleRegister))
	s.route("/api/auth/login", http.HandlerFunc(s.handleLogin))
	s.route("/api/auth/me", s.authMiddleware(http.HandlerFunc(s.handleMe)))
	s.route("/api/posts", http.HandlerFunc(s.handlePosts))
}

func (s *Server) route(pattern string, h http.Handler) {
	s.router.Handle(pattern, s.metrics.instrument(pattern, h))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.authService.Register(r.Context(), payload.Email, payload.Password, payload.Name)
	if err != nil {
		switch {
		case errors.Is(err, authdomain.ErrEmailExists):
			writeError(w, http.StatusConflict, msgUserExists)
		case errors.Is(err, authdomain.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.internalError(w, r, "register", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User created successfully",
		"userId":  user.ID,
		"user":    user,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w, http.MethodPost)
		return
	}

	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, user, err := s.authService.Login(r.Context(), authdomain.Credentials{
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		if errors.Is(err, authdomain.ErrInvalidCredentials) {
			s.metrics.logins.WithLabelValues(loginInvalid).Inc()
			writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
			return
		}
		s.metrics.logins.WithLabelValues(loginError).Inc()
		s.internalError(w, r, "login", err)
		return
	}

	s.metrics.logins.WithLabelValues(loginSuccess).Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w, http.MethodGet)
		return
	}

	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	user, err := s.authService.CurrentUser(r.Context(), identity)
	if err != nil {
		if errors.Is(err, authdomain.ErrTokenInvalid) {
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		s.internalError(w, r, "current user", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		posts, err := s.postService.List(r.Context())
		if err != nil {
			s.internalError(w, r, "list posts", err)
			return
		}
		writeJSON(w, http.StatusOK, posts)
	case http.MethodPost:
		s.authMiddleware(http.HandlerFunc(s.handleCreatePost)).ServeHTTP(w, r)
	default:
		writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var payload postusecase.CreateInput
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	post, err := s.postService.Create(r.Context(), identity.UserID, payload)
	if err != nil {
		switch {
		case errors.Is(err, postdomain.ErrInvalidPost):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, postdomain.ErrAuthorNotFound):
			// signed token for an account that no longer exists
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
		default:
			s.internalError(w, r, "create post", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, post)
}

// authMiddleware rejects the request with 401 unless it carries a valid
// bearer token. The reason for a rejection is never revealed.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			s.metrics.authFail.Inc()
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		identity, err := s.authService.Authenticate(r.Context(), token)
		if err != nil {
			s.metrics.authFail.Inc()
			writeError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyIdentity{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.ErrorContext(r.Context(), "request failed",
		"op", op,
		"error", err,
		"request_id", requestIDFromContext(r.Context()),
	)
	writeError(w, http.StatusInternalServerError, msgInternal)
}

type ctxKeyIdentity struct{}

func identityFromContext(ctx context.Context) (authdomain.Identity, bool) {
	identity, ok := ctx.Value(ctxKeyIdentity{}).(authdomain.Identity)
	if !ok || identity.UserID == "" {
		return authdomain.Identity{}, false
	}
	return identity, true
}

func extractBearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
