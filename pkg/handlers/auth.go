package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hsemihaktas/TaskFlow/pkg/config"
	"github.com/hsemihaktas/TaskFlow/pkg/database"
	"github.com/hsemihaktas/TaskFlow/pkg/middleware"
	"github.com/hsemihaktas/TaskFlow/pkg/models"
	"github.com/hsemihaktas/TaskFlow/pkg/utils"
)

// AuthHandler serves registration, login and token refresh
type AuthHandler struct {
	config *config.Config
	store  database.StoreInterface
	jwt    *utils.JWTService
}

func NewAuthHandler(cfg *config.Config, store database.StoreInterface) *AuthHandler {
	return &AuthHandler{
		config: cfg,
		store:  store,
		jwt:    utils.NewJWTService(cfg.JWTSecret),
	}
}

// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.UserRegisterRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		utils.WriteValidationErrorResponse(w, "A valid email is required", "")
		return
	}
	if len(req.Password) < 8 {
		utils.WriteValidationErrorResponse(w, "Password must be at least 8 characters", "")
		return
	}

	if _, err := h.store.GetUserByEmail(email); err == nil {
		utils.WriteConflictResponse(w, "Email is already registered")
		return
	} else if !errors.Is(err, database.ErrNotFound) {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to hash password")
		return
	}

	user := &models.User{Email: email, Password: string(hash)}
	if err := h.store.CreateUser(user); err != nil {
		if errors.Is(err, database.ErrConflict) {
			utils.WriteConflictResponse(w, "Email is already registered")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	// Profile is best-effort on registration; it can be filled in later
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		fullName = strings.Split(email, "@")[0]
	}
	profile := &models.Profile{ID: user.ID, FullName: fullName}
	if err := h.store.UpsertProfile(profile); err != nil {
		fmt.Printf("[warn] failed to create profile for user %s: %v\n", user.ID, err)
	}

	accessToken, refreshToken, expiresIn, err := h.jwt.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to generate tokens")
		return
	}

	utils.WriteCreatedResponse(w, models.UserLoginResponse{
		User:         user,
		Profile:      profile,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	})
}

// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.UserLoginRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.store.GetUserByEmail(email)
	if err != nil {
		// same response for unknown email and wrong password
		utils.WriteUnauthorizedResponse(w, "Invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid email or password")
		return
	}

	profile, err := h.store.GetProfile(user.ID)
	if errors.Is(err, database.ErrNotFound) {
		// the profile row is created lazily on first login when missing
		profile = &models.Profile{ID: user.ID, FullName: strings.Split(user.Email, "@")[0]}
		if err := h.store.UpsertProfile(profile); err != nil {
			fmt.Printf("[warn] failed to create profile for user %s: %v\n", user.ID, err)
			profile = nil
		}
	} else if err != nil {
		profile = nil
	}

	accessToken, refreshToken, expiresIn, err := h.jwt.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to generate tokens")
		return
	}

	utils.WriteSuccessResponse(w, models.UserLoginResponse{
		User:         user,
		Profile:      profile,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
	})
}

// POST /api/auth/refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshTokenRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.RefreshToken == "" {
		utils.WriteBadRequestResponse(w, "refresh_token is required")
		return
	}

	accessToken, expiresIn, err := h.jwt.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid refresh token")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"access_token": accessToken,
		"expires_in":   expiresIn,
	})
}

// POST /api/auth/logout
// Tokens are stateless; logout just acknowledges so clients can clear state.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"message": "Logged out",
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	full, err := h.store.GetUserByID(user.ID)
	if err != nil {
		utils.WriteNotFoundResponse(w, "User not found")
		return
	}

	profile, err := h.store.GetProfile(user.ID)
	if err != nil {
		profile = nil
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"user":    full,
		"profile": profile,
	})
}

// HealthHandler serves liveness and store health
type HealthHandler struct {
	config *config.Config
	store  database.StoreInterface
}

func NewHealthHandler(cfg *config.Config, store database.StoreInterface) *HealthHandler {
	return &HealthHandler{config: cfg, store: store}
}

// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	storeStatus := "ok"
	code := http.StatusOK

	if err := h.store.HealthCheck(); err != nil {
		status = "degraded"
		storeStatus = err.Error()
		code = http.StatusServiceUnavailable
	}

	utils.WriteJSONResponse(w, code, map[string]interface{}{
		"status":      status,
		"store":       storeStatus,
		"environment": h.config.Environment,
		"time":        time.Now().UTC().Format(time.RFC3339),
	})
}
