package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tasktrac/apiserver/config"
	"github.com/tasktrac/apiserver/internal/services"
	"github.com/tasktrac/apiserver/internal/store"
)

type contextKey string

const contextSubjectKey contextKey = "sub"

// AuthHandler provides registration and login endpoints.
type AuthHandler struct {
	userService *services.UserService
	secret      []byte
	tokenTTL    time.Duration
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, cfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		secret:      []byte(cfg.JWTSecret),
		tokenTTL:    time.Duration(cfg.TokenTTLMinutes) * time.Minute,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, userService *services.UserService, cfg config.AuthConfig) {
	handler := NewAuthHandler(userService, cfg)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
}

// RequireAuth enforces JWT authentication and injects the subject into
// context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return requireAuth(h.secret)(next)
}

// RequireAuth constructs auth middleware for other routers. Both a
// missing and an invalid token get a 401; the authenticated identity is
// attached to the request context uniformly for every HTTP verb.
func RequireAuth(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return requireAuth([]byte(cfg.JWTSecret))
}

func requireAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				unauthorizedResponse(w, "Unauthorized")
				return
			}

			subject, err := parseTokenSubject(tokenString, secret)
			if err != nil {
				unauthorizedResponse(w, "Unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), contextSubjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userIDFromContext returns the authenticated subject set by the auth
// middleware.
func userIDFromContext(ctx context.Context) (string, error) {
	subject, ok := ctx.Value(contextSubjectKey).(string)
	if !ok || strings.TrimSpace(subject) == "" {
		return "", errors.New("missing subject")
	}
	return subject, nil
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

// Register creates a new account and returns a signed token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		validationError(w, "Invalid request")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Mobile = strings.TrimSpace(req.Mobile)

	user, err := h.userService.Register(r.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Mobile:   req.Mobile,
		Password: req.Password,
	})
	if err != nil {
		var ve *services.ValidationError
		switch {
		case errors.As(err, &ve):
			validationError(w, ve.Message)
		case errors.Is(err, services.ErrDuplicateUser):
			duplicateResponse(w, "User already exists!")
		default:
			errorResponse(w, "Unable to register user")
		}
		return
	}

	token, err := issueToken(user.ID, h.secret, h.tokenTTL)
	if err != nil {
		errorResponse(w, "Unable to register user")
		return
	}
	successResponseWithData(w, "Registration successful!", token)
}

// Login verifies credentials and returns a signed token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		validationError(w, "Invalid request")
		return
	}

	user, err := h.userService.Authenticate(r.Context(), strings.TrimSpace(req.Mobile), req.Password)
	if err != nil {
		var ve *services.ValidationError
		switch {
		case errors.As(err, &ve):
			validationError(w, ve.Message)
		case errors.Is(err, store.ErrNotFound):
			notFoundResponse(w, "User not found!")
		case errors.Is(err, services.ErrInvalidCredentials):
			unauthorizedResponse(w, "Invalid password!")
		default:
			errorResponse(w, "Internal server error")
		}
		return
	}

	token, err := issueToken(user.ID, h.secret, h.tokenTTL)
	if err != nil {
		errorResponse(w, "Internal server error")
		return
	}
	successResponseWithData(w, "Login Successful!", token)
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, "Unauthorized")
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			unauthorizedResponse(w, "Unauthorized")
			return
		}
		errorResponse(w, "Failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func issueToken(userID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// parseTokenSubject verifies the signature and expiry and returns the
// subject. Tokens without an exp claim are rejected outright.
func parseTokenSubject(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
