package handlers

import (
	"net/http"
	"strings"

	"github.com/hsemihaktas/TaskFlow/pkg/config"
	"github.com/hsemihaktas/TaskFlow/pkg/database"
	"github.com/hsemihaktas/TaskFlow/pkg/middleware"
	"github.com/hsemihaktas/TaskFlow/pkg/models"
	"github.com/hsemihaktas/TaskFlow/pkg/utils"
)

// ProfilesHandler serves the current user's profile
type ProfilesHandler struct {
	config *config.Config
	store  database.StoreInterface
}

func NewProfilesHandler(cfg *config.Config, store database.StoreInterface) *ProfilesHandler {
	return &ProfilesHandler{config: cfg, store: store}
}

// GET /api/profile
func (h *ProfilesHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	profile, err := h.store.GetProfile(user.ID)
	if err != nil {
		// profiles are created lazily, so a missing row is an empty profile
		profile = &models.Profile{ID: user.ID}
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"profile": profile})
}

// PUT /api/profile
func (h *ProfilesHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req struct {
		FullName  string `json:"full_name"`
		AvatarURL string `json:"avatar_url"`
		Position  string `json:"position"`
		Phone     string `json:"phone"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.FullName) == "" {
		utils.WriteValidationErrorResponse(w, "full_name is required", "")
		return
	}

	profile := &models.Profile{
		ID:        user.ID,
		FullName:  strings.TrimSpace(req.FullName),
		AvatarURL: strings.TrimSpace(req.AvatarURL),
		Position:  strings.TrimSpace(req.Position),
		Phone:     strings.TrimSpace(req.Phone),
	}
	if err := h.store.UpsertProfile(profile); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"profile": profile})
}
