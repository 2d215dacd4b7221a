package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsemihaktas/TaskFlow/pkg/models"
)

// joinOrg registers a user and accepts an invitation into the org
func joinOrg(t *testing.T, env *testEnv, ownerToken, orgID, email, role string) (userID, token string) {
	t.Helper()

	invToken := env.invite(t, ownerToken, orgID, email, role)
	userID, token = env.registerUser(t, email)
	rec := env.do(t, http.MethodPost, "/api/invitations/"+invToken+"/accept", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return userID, token
}

func TestAssignTaskDuplicateConflict(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.registerUser(t, "founder@example.com")
	orgID := env.createOrg(t, ownerToken, "Acme")
	projectID := env.createProject(t, ownerToken, orgID, "Website")
	taskID := env.createTask(t, ownerToken, projectID, "Design landing page")

	memberID, _ := joinOrg(t, env, ownerToken, orgID, "m@example.com", "member")

	rec := env.do(t, http.MethodPost, "/api/tasks/"+taskID+"/assignments", ownerToken, map[string]interface{}{
		"user_id": memberID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// the same pair again is a conflict, not a second row
	rec = env.do(t, http.MethodPost, "/api/tasks/"+taskID+"/assignments", ownerToken, map[string]interface{}{
		"user_id": memberID,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	assignments, err := env.store.ListAssignmentsByTask(taskID)
	require.NoError(t, err)
	assert.Len(t, assignments, 1)
}

func TestAssignTaskRequiresOrgMembership(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.registerUser(t, "founder@example.com")
	orgID := env.createOrg(t, ownerToken, "Acme")
	projectID := env.createProject(t, ownerToken, orgID, "Website")
	taskID := env.createTask(t, ownerToken, projectID, "Design landing page")

	strangerID, _ := env.registerUser(t, "stranger@example.com")

	rec := env.do(t, http.MethodPost, "/api/tasks/"+taskID+"/assignments", ownerToken, map[string]interface{}{
		"user_id": strangerID,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnassignTaskIdempotent(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.registerUser(t, "founder@example.com")
	orgID := env.createOrg(t, ownerToken, "Acme")
	projectID := env.createProject(t, ownerToken, orgID, "Website")
	taskID := env.createTask(t, ownerToken, projectID, "Design landing page")

	memberID, _ := joinOrg(t, env, ownerToken, orgID, "m@example.com", "member")

	rec := env.do(t, http.MethodPost, "/api/tasks/"+taskID+"/assignments", ownerToken, map[string]interface{}{
		"user_id": memberID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/tasks/"+taskID+"/assignments/"+memberID, ownerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// removing the absent pair still succeeds
	rec = env.do(t, http.MethodDelete, "/api/tasks/"+taskID+"/assignments/"+memberID, ownerToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnassignSelfAllowedForMember(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.registerUser(t, "founder@example.com")
	orgID := env.createOrg(t, ownerToken, "Acme")
	projectID := env.createProject(t, ownerToken, orgID, "Website")
	taskID := env.createTask(t, ownerToken, projectID, "Design landing page")

	memberID, memberToken := joinOrg(t, env, ownerToken, orgID, "m@example.com", "member")
	otherID, _ := joinOrg(t, env, ownerToken, orgID, "o@example.com", "member")

	for _, id := range []string{memberID, otherID} {
		rec := env.do(t, http.MethodPost, "/api/tasks/"+taskID+"/assignments", ownerToken, map[string]interface{}{
			"user_id": id,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	// members may drop their own assignment but not someone else's
	rec := env.do(t, http.MethodDelete, "/api/tasks/"+taskID+"/assignments/"+otherID, memberToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/tasks/"+taskID+"/assignments/"+memberID, memberToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusChangeGate(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.registerUser(t, "founder@example.com")
	orgID := env.createOrg(t, ownerToken, "Acme")
	projectID := env.createProject(t, ownerToken, orgID, "Website")
	taskID := env.createTask(t, ownerToken, projectID, "Design landing page")

	memberID, memberToken := joinOrg(t, env, ownerToken, orgID, "m@example.com", "member")

	// unassigned member cannot move the task; the denial carries the
	// authoritative task state for re-sync
	rec := env.do(t, http.MethodPatch, "/api/tasks/"+taskID+"/status", memberToken, map[string]interface{}{
		"status": "in_progress",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	data := decode(t, rec)
	require.NotNil(t, data["task"])
	task := data["task"].(map[string]interface{})
	assert.Equal(t, "todo", task["status"])

	stored, err := env.store.GetTask(taskID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusTodo, stored.Status)

	// once assigned, the same member may move it
	rec = env.do(t, http.MethodPost, "/api/tasks/"+taskID+"/assignments", ownerToken, map[string]interface{}{
		"user_id": memberID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/tasks/"+taskID+"/status", memberToken, map[string]interface{}{
		"status": "in_progress",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err = env.store.GetTask(taskID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, stored.Status)
}

func TestManagerMovesUnassignedTask(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.registerUser(t, "founder@example.com")
	orgID := env.createOrg(t, ownerToken, "Acme")
	projectID := env.createProject(t, ownerToken, orgID, "Website")
	taskID := env.createTask(t, ownerToken, projectID, "Design landing page")

	rec := env.do(t, http.MethodPatch, "/api/tasks/"+taskID+"/status", ownerToken, map[string]interface{}{
		"status": "done",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := env.store.GetTask(taskID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDone, stored.Status)
}

func TestMemberCannotCreateOrDeleteTasks(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.registerUser(t, "founder@example.com")
	orgID := env.createOrg(t, ownerToken, "Acme")
	projectID := env.createProject(t, ownerToken, orgID, "Website")
	taskID := env.createTask(t, ownerToken, projectID, "Design landing page")

	_, memberToken := joinOrg(t, env, ownerToken, orgID, "m@example.com", "member")

	rec := env.do(t, http.MethodPost, "/api/projects/"+projectID+"/tasks", memberToken, map[string]interface{}{
		"title": "Sneaky task",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/tasks/"+taskID, memberToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBoardBucketsByStatus(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.registerUser(t, "founder@example.com")
	orgID := env.createOrg(t, ownerToken, "Acme")
	projectID := env.createProject(t, ownerToken, orgID, "Website")

	t1 := env.createTask(t, ownerToken, projectID, "First")
	env.createTask(t, ownerToken, projectID, "Second")

	rec := env.do(t, http.MethodPatch, "/api/tasks/"+t1+"/status", ownerToken, map[string]interface{}{
		"status": "done",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/projects/"+projectID+"/board", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decode(t, rec)
	assert.Len(t, data["todo"], 1)
	assert.Len(t, data["done"], 1)
	assert.Empty(t, data["in_progress"])
}

func TestTaskListETagChangesOnAssignment(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.registerUser(t, "founder@example.com")
	orgID := env.createOrg(t, ownerToken, "Acme")
	projectID := env.createProject(t, ownerToken, orgID, "Website")
	taskID := env.createTask(t, ownerToken, projectID, "Design landing page")

	memberID, _ := joinOrg(t, env, ownerToken, orgID, "m@example.com", "member")

	rec := env.do(t, http.MethodGet, "/api/projects/"+projectID+"/tasks", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = env.do(t, http.MethodPost, "/api/tasks/"+taskID+"/assignments", ownerToken, map[string]interface{}{
		"user_id": memberID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// assignments are embedded in the list body, so the old tag must miss
	rec = env.doWithHeader(t, http.MethodGet, "/api/projects/"+projectID+"/tasks", ownerToken, "If-None-Match", etag)
	require.Equal(t, http.StatusOK, rec.Code)
	assigned := rec.Header().Get("ETag")
	assert.NotEqual(t, etag, assigned)

	// unassigning changes the tag again
	rec = env.do(t, http.MethodDelete, "/api/tasks/"+taskID+"/assignments/"+memberID, ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.doWithHeader(t, http.MethodGet, "/api/projects/"+projectID+"/tasks", ownerToken, "If-None-Match", assigned)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateTaskClearsDescription(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.registerUser(t, "founder@example.com")
	orgID := env.createOrg(t, ownerToken, "Acme")
	projectID := env.createProject(t, ownerToken, orgID, "Website")

	rec := env.do(t, http.MethodPost, "/api/projects/"+projectID+"/tasks", ownerToken, map[string]interface{}{
		"title":       "Write copy",
		"description": "Draft the hero text",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	taskID := decode(t, rec)["task"].(map[string]interface{})["id"].(string)

	// omitted fields stay as they are
	rec = env.do(t, http.MethodPut, "/api/tasks/"+taskID, ownerToken, map[string]interface{}{
		"title": "Write better copy",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := env.store.GetTask(taskID)
	require.NoError(t, err)
	assert.Equal(t, "Draft the hero text", stored.Description)

	// an explicit empty string clears the description
	rec = env.do(t, http.MethodPut, "/api/tasks/"+taskID, ownerToken, map[string]interface{}{
		"description": "",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err = env.store.GetTask(taskID)
	require.NoError(t, err)
	assert.Empty(t, stored.Description)
	assert.Equal(t, "Write better copy", stored.Title)
}

func TestTaskListETag(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.registerUser(t, "founder@example.com")
	orgID := env.createOrg(t, ownerToken, "Acme")
	projectID := env.createProject(t, ownerToken, orgID, "Website")
	env.createTask(t, ownerToken, projectID, "First")

	rec := env.do(t, http.MethodGet, "/api/projects/"+projectID+"/tasks", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	rec = env.doWithHeader(t, http.MethodGet, "/api/projects/"+projectID+"/tasks", ownerToken, "If-None-Match", etag)
	assert.Equal(t, http.StatusNotModified, rec.Code)
}
