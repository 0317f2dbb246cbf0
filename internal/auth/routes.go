package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/ziadkadry99/popup-studio/internal/audit"
	"github.com/ziadkadry99/popup-studio/internal/logging"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type tokenRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse is returned by POST /api/auth/token.
type TokenResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=8"`
	Role     Role   `json:"role" validate:"required,oneof=admin editor viewer"`
}

// RegisterRoutes mounts authentication endpoints under /api/auth. The token
// endpoint is rate limited per client IP. auditStore may be nil.
func RegisterRoutes(r chi.Router, users *UserStore, jwtm *JWTManager, auditStore *audit.Store) {
	r.Route("/api/auth", func(r chi.Router) {
		r.With(httprate.LimitByIP(10, time.Minute)).Post("/token", handleToken(users, jwtm, auditStore))
		r.Group(func(r chi.Router) {
			r.Use(jwtm.Authenticate)
			r.With(RequireRole(RoleAdmin, RoleEditor, RoleViewer)).Get("/me", handleMe)
			r.With(RequireRole(RoleAdmin)).Get("/users", handleListUsers(users))
			r.With(RequireRole(RoleAdmin)).Post("/users", handleCreateUser(users, auditStore))
		})
	})
}

func handleToken(users *UserStore, jwtm *JWTManager, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req tokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, "username and password are required", http.StatusBadRequest)
			return
		}

		user, err := users.Authenticate(r.Context(), req.Username, req.Password)
		if errors.Is(err, ErrInvalidCredentials) {
			logging.Warn().Str("username", req.Username).Msg("token request rejected")
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		token, expires, err := jwtm.GenerateToken(user.Username, user.Role)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		if auditStore != nil {
			if err := auditStore.Log(r.Context(), audit.Entry{
				ActorType: audit.ActorUser,
				ActorID:   user.Username,
				Action:    audit.ActionTokenIssued,
				Summary:   fmt.Sprintf("token issued for role %s", user.Role),
			}); err != nil {
				logging.Error().Err(err).Msg("recording token issue")
			}
		}

		writeJSON(w, http.StatusOK, TokenResponse{
			Token:     token,
			Username:  user.Username,
			Role:      user.Role,
			ExpiresAt: expires.UTC(),
		})
	}
}

func handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"username":   claims.Username,
		"role":       claims.Role,
		"expires_at": claims.ExpiresAt.Time.UTC(),
	})
}

func handleListUsers(users *UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := users.List(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []User{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleCreateUser(users *UserStore, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			http.Error(w, "username, password (8+ chars) and role are required", http.StatusBadRequest)
			return
		}

		user, err := users.Create(r.Context(), req.Username, req.Password, req.Role)
		if errors.Is(err, ErrUserExists) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if auditStore != nil {
			claims, _ := ClaimsFromContext(r.Context())
			if err := auditStore.Log(r.Context(), audit.Entry{
				ActorType: audit.ActorUser,
				ActorID:   claims.Username,
				Action:    audit.ActionUserCreated,
				Summary:   fmt.Sprintf("created %s with role %s", user.Username, user.Role),
			}); err != nil {
				logging.Error().Err(err).Msg("recording user creation")
			}
		}

		writeJSON(w, http.StatusCreated, user)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
