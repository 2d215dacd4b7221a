package handlers

import (
	"encoding/json"
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

// TasksHandler serves task CRUD, the board view and assignments
type TasksHandler struct {
	config *config.Config
	store  database.StoreInterface
}

func NewTasksHandler(cfg *config.Config, store database.StoreInterface) *TasksHandler {
	return &TasksHandler{config: cfg, store: store}
}

func (h *TasksHandler) requireOrgMember(w http.ResponseWriter, userID, orgID string) (*models.Membership, bool) {
	m, err := h.store.GetMembership(userID, orgID)
	if err != nil {
		utils.WriteForbiddenResponse(w, "Not a member of organization")
		return nil, false
	}
	return m, true
}

// resolveTask loads the task and its project so the caller's role can be
// checked against the owning organization.
func (h *TasksHandler) resolveTask(w http.ResponseWriter, taskID string) (*models.Task, *models.Project, bool) {
	task, err := h.store.GetTask(taskID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Task not found")
			return nil, nil, false
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return nil, nil, false
	}
	project, err := h.store.GetProject(task.ProjectID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return nil, nil, false
	}
	return task, project, true
}

// attachAssignments embeds assignment rows with display names resolved
func (h *TasksHandler) attachAssignments(task *models.Task) {
	assignments, err := h.store.ListAssignmentsByTask(task.ID)
	if err != nil {
		fmt.Printf("[warn] listing assignments for task=%s failed: %v\n", task.ID, err)
		return
	}
	for i := range assignments {
		if profile, err := h.store.GetProfile(assignments[i].AssignedTo); err == nil {
			assignments[i].FullName = profile.FullName
			assignments[i].AvatarURL = profile.AvatarURL
		} else {
			assignments[i].FullName = models.UnknownUser
		}
	}
	task.Assignments = assignments
}

// POST /api/projects/{projectID}/tasks
func (h *TasksHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
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
	if !policy.CanManageTasks(membership.Role) {
		utils.WriteForbiddenResponse(w, "Only owner or admin can create tasks")
		return
	}

	var req struct {
		Title       string            `json:"title"`
		Description string            `json:"description"`
		Status      models.TaskStatus `json:"status"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		utils.WriteValidationErrorResponse(w, "title is required", "")
		return
	}
	if req.Status == "" {
		req.Status = models.StatusTodo
	}
	if !req.Status.Valid() {
		utils.WriteValidationErrorResponse(w, "status must be todo, in_progress or done", "")
		return
	}

	task := &models.Task{
		ProjectID:   projectID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Status:      req.Status,
		CreatedBy:   user.ID,
	}
	if err := h.store.CreateTask(task); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{"task": task})
}

// GET /api/projects/{projectID}/tasks
func (h *TasksHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
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

	tasks, err := h.store.ListTasksByProject(projectID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	for i := range tasks {
		h.attachAssignments(&tasks[i])
	}

	// Weak ETag so the 5s poller can skip unchanged boards. Assignments
	// are part of the payload, so they count toward the fingerprint too.
	var maxUpdated int64
	var assignmentCount int
	for _, t := range tasks {
		if ts := t.UpdatedAt.UnixMilli(); ts > maxUpdated {
			maxUpdated = ts
		}
		assignmentCount += len(t.Assignments)
		for _, a := range t.Assignments {
			if ts := a.AssignedAt.UnixMilli(); ts > maxUpdated {
				maxUpdated = ts
			}
		}
	}
	etag := fmt.Sprintf("W/\"tasks:%s:%d:%d:%d\"", projectID, len(tasks), assignmentCount, maxUpdated)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"tasks": tasks})
}

// GET /api/projects/{projectID}/board
// Tasks bucketed per board column, in creation order inside each column.
func (h *TasksHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
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

	tasks, err := h.store.ListTasksByProject(projectID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	for i := range tasks {
		h.attachAssignments(&tasks[i])
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"todo":        projection.TasksByStatus(tasks, models.StatusTodo),
		"in_progress": projection.TasksByStatus(tasks, models.StatusInProgress),
		"done":        projection.TasksByStatus(tasks, models.StatusDone),
	})
}

// GET /api/tasks/overview
// Every task visible to the caller, grouped by organization and project.
func (h *TasksHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
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
	var tasks []models.Task
	for _, org := range orgs {
		plist, err := h.store.ListProjectsByOrganization(org.ID)
		if err != nil {
			fmt.Printf("[warn] listing projects for org=%s failed: %v\n", org.ID, err)
			continue
		}
		projects = append(projects, plist...)

		tlist, err := h.store.ListTasksByOrganization(org.ID)
		if err != nil {
			fmt.Printf("[warn] listing tasks for org=%s failed: %v\n", org.ID, err)
			continue
		}
		tasks = append(tasks, tlist...)
	}

	groups := projection.GroupTasksByOrganizationAndProject(tasks, projects, orgs)
	utils.WriteSuccessResponse(w, map[string]interface{}{"groups": groups})
}

// GET /api/tasks/{taskID}
func (h *TasksHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	taskID := chiRoute.URLParam(r, "taskID")

	task, project, ok := h.resolveTask(w, taskID)
	if !ok {
		return
	}
	if _, ok := h.requireOrgMember(w, user.ID, project.OrganizationID); !ok {
		return
	}

	h.attachAssignments(task)
	utils.WriteSuccessResponse(w, map[string]interface{}{"task": task})
}

// PUT /api/tasks/{taskID}
func (h *TasksHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	taskID := chiRoute.URLParam(r, "taskID")

	task, project, ok := h.resolveTask(w, taskID)
	if !ok {
		return
	}
	membership, ok := h.requireOrgMember(w, user.ID, project.OrganizationID)
	if !ok {
		return
	}
	if !policy.CanManageTasks(membership.Role) {
		utils.WriteForbiddenResponse(w, "Only owner or admin can edit tasks")
		return
	}

	// Absent fields stay as they are; an explicit empty description clears it.
	var req struct {
		Title       *string            `json:"title"`
		Description *string            `json:"description"`
		Status      *models.TaskStatus `json:"status"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			utils.WriteValidationErrorResponse(w, "title cannot be empty", "")
			return
		}
		task.Title = title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			utils.WriteValidationErrorResponse(w, "status must be todo, in_progress or done", "")
			return
		}
		task.Status = *req.Status
	}

	if err := h.store.UpdateTask(task); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"task": task})
}

// PATCH /api/tasks/{taskID}/status
// The drag gate. Eligibility is re-read from the store at request time:
// the client's cached assignment state may be stale, so a denial returns
// the current task for the client to re-sync.
func (h *TasksHandler) UpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	taskID := chiRoute.URLParam(r, "taskID")

	task, project, ok := h.resolveTask(w, taskID)
	if !ok {
		return
	}
	membership, ok := h.requireOrgMember(w, user.ID, project.OrganizationID)
	if !ok {
		return
	}

	var req struct {
		Status models.TaskStatus `json:"status"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if !req.Status.Valid() {
		utils.WriteValidationErrorResponse(w, "status must be todo, in_progress or done", "")
		return
	}

	hasAssignment, err := h.store.HasAssignment(taskID, user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	if !policy.CanMoveTask(membership.Role, hasAssignment) {
		// denial carries the authoritative task so the client can snap
		// its board back without another fetch
		h.attachAssignments(task)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(utils.APIResponse{
			Success: false,
			Data:    map[string]interface{}{"task": task},
			Error: &utils.APIError{
				Code:    "FORBIDDEN",
				Message: "Only assignees or managers can move this task",
			},
		})
		return
	}

	if err := h.store.UpdateTaskStatus(taskID, req.Status); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}
	task.Status = req.Status
	h.attachAssignments(task)

	utils.WriteSuccessResponse(w, map[string]interface{}{"task": task})
}

// DELETE /api/tasks/{taskID}
func (h *TasksHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	taskID := chiRoute.URLParam(r, "taskID")

	task, project, ok := h.resolveTask(w, taskID)
	if !ok {
		return
	}
	membership, ok := h.requireOrgMember(w, user.ID, project.OrganizationID)
	if !ok {
		return
	}
	if !policy.CanDeleteTask(membership.Role) {
		utils.WriteForbiddenResponse(w, "Only owner or admin can delete tasks")
		return
	}

	if err := h.store.DeleteTask(task.ID); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": task.ID})
}

// POST /api/tasks/{taskID}/assignments
func (h *TasksHandler) AssignTask(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	taskID := chiRoute.URLParam(r, "taskID")

	task, project, ok := h.resolveTask(w, taskID)
	if !ok {
		return
	}
	membership, ok := h.requireOrgMember(w, user.ID, project.OrganizationID)
	if !ok {
		return
	}
	if !policy.CanManageTasks(membership.Role) {
		utils.WriteForbiddenResponse(w, "Only owner or admin can assign tasks")
		return
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.UserID == "" {
		utils.WriteValidationErrorResponse(w, "user_id is required", "")
		return
	}

	// the assignee must belong to the task's organization
	if _, err := h.store.GetMembership(req.UserID, project.OrganizationID); err != nil {
		utils.WriteValidationErrorResponse(w, "Assignee is not a member of this organization", "")
		return
	}

	assignment := &models.TaskAssignment{
		TaskID:     task.ID,
		AssignedTo: req.UserID,
		AssignedBy: user.ID,
	}
	if err := h.store.AddAssignment(assignment); err != nil {
		if errors.Is(err, database.ErrConflict) {
			utils.WriteConflictResponse(w, "User is already assigned to this task")
			return
		}
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	if profile, err := h.store.GetProfile(req.UserID); err == nil {
		assignment.FullName = profile.FullName
		assignment.AvatarURL = profile.AvatarURL
	} else {
		assignment.FullName = models.UnknownUser
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{"assignment": assignment})
}

// DELETE /api/tasks/{taskID}/assignments/{userID}
// Removing an absent assignment still succeeds, so retried requests and
// double-clicks are harmless.
func (h *TasksHandler) UnassignTask(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}
	taskID := chiRoute.URLParam(r, "taskID")
	targetID := chiRoute.URLParam(r, "userID")

	task, project, ok := h.resolveTask(w, taskID)
	if !ok {
		return
	}
	membership, ok := h.requireOrgMember(w, user.ID, project.OrganizationID)
	if !ok {
		return
	}
	if !policy.CanRemoveTaskAssignment(membership.Role, targetID == user.ID) {
		utils.WriteForbiddenResponse(w, "Only owner or admin can remove other members' assignments")
		return
	}

	if err := h.store.RemoveAssignment(task.ID, targetID); err != nil {
		utils.WriteInternalServerErrorResponse(w, err.Error())
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"unassigned": targetID})
}
