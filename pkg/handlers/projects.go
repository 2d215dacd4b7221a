package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	chiRoute "github.com/go-chi/chi/v5"

	"github.com/hsemihaktas/TaskFlow/pkg/config"
	"github.com/hsemihaktas/TaskFlow/pkg/database"
	"github.com/hsemihaktas/TaskFlow/pkg/middleware"
	"github.com/hsemihaktas/TaskFlow/pkg/models"
	"github.com/hsemihaktas/TaskFlow/pkg/policy"
	"github.com/hsemihaktas/TaskFlow/pkg/projection"
	"github.com/hsemihaktas/TaskFlow/pkg/utils"
)

// ProjectsHandler serves project CRUD and grouped listings
type ProjectsHandler struct {
	config *config.Config
	store  database.StoreInterface
}

func NewProjectsHandler(cfg *config.Config, store database.StoreInterface) *ProjectsHandler {
	return &ProjectsHandler{config: cfg, store: store}
}

func (h *ProjectsHandler) requireOrgMember(w http.ResponseWriter, userID, orgID string) (*models.Membership, bool) {
	m, err := h.store.GetMembership(userID, orgID)
	if err != nil {
		utils.WriteForbiddenResponse(w, "Not a member of organization")
		return nil, false
	}
	return m, true
}

// POST /api/orgs/{id}/projects
func (h *ProjectsHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chiRoute.URLParam(r, "id")

	membership, ok := h.requireOrgMember(w, user.ID, orgID)
	if !ok {
		return
	}
	if !policy.CanCreateProject(membership.Role) {
		utils.WriteForbiddenResponse(w, "Only owner or admin can create projects")
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		utils.WriteValidationErrorResponse(w, "name is required", "")
		return
	}

	project := &models.Project{
		OrganizationID: orgID,
		Name:           strings.TrimSpace(req.Name),
		Description:    req.Description,
		CreatedBy:      user.ID,
	}
	if err := h.store.CreateProject(project); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{"project": project})
}

// GET /api/orgs/{id}/projects
func (h *ProjectsHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	orgID := chiRoute.URLParam(r, "id")

	if _, ok := h.requireOrgMember(w, user.ID, orgID); !ok {
		return
	}

	projects, err := h.store.ListProjectsByOrganization(orgID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	// Weak ETag: projects:<org>:<count>:<maxUpdated>
	var maxUpdated int64
	for _, p := range projects {
		if ts := p.UpdatedAt.UnixMilli(); ts > maxUpdated {
			maxUpdated = ts
		}
	}
	etag := fmt.Sprintf("W/\"projects:%s:%d:%d\"", orgID, len(projects), maxUpdated)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"projects": projects})
}

// GET /api/projects/grouped
// All projects across the caller's organizations, grouped per organization
// in first-encounter order for the dashboard sidebar.
func (h *ProjectsHandler) ListGroupedProjects(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	orgs, err := h.store.ListUserOrganizations(user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	var projects []models.Project
	for _, org := range orgs {
		list, err := h.store.ListProjectsByOrganization(org.ID)
		if err != nil {
			fmt.Printf("[warn] listing projects for org=%s failed: %v\n", org.ID, err)
			continue
		}
		projects = append(projects, list...)
	}

	groups := projection.GroupProjectsByOrganization(projects, orgs)
	utils.WriteSuccessResponse(w, map[string]interface{}{"groups": groups})
}

// GET /api/projects/{projectID}
func (h *ProjectsHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	projectID := chiRoute.URLParam(r, "projectID")

	project, err := h.store.GetProject(projectID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Project not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	if _, ok := h.requireOrgMember(w, user.ID, project.OrganizationID); !ok {
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"project": project})
}

// DELETE /api/projects/{projectID}
func (h *ProjectsHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	projectID := chiRoute.URLParam(r, "projectID")

	project, err := h.store.GetProject(projectID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Project not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	membership, ok := h.requireOrgMember(w, user.ID, project.OrganizationID)
	if !ok {
		return
	}
	if !policy.CanDeleteProject(membership.Role) {
		utils.WriteForbiddenResponse(w, "Only owner or admin can delete projects")
		return
	}

	if err := h.store.DeleteProject(projectID); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": projectID})
}
