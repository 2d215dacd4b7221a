package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/hsemihaktas/TaskFlow/pkg/config"
	"github.com/hsemihaktas/TaskFlow/pkg/database"
	customMiddleware "github.com/hsemihaktas/TaskFlow/pkg/middleware"
	"github.com/hsemihaktas/TaskFlow/pkg/utils"
)

// testEnv wires the handlers onto a router backed by the in-memory store,
// mirroring the server's route table.
type testEnv struct {
	cfg    *config.Config
	store  *database.MemoryStore
	router *chi.Mux
	jwt    *utils.JWTService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Environment:    "development",
		Port:           "0",
		JWTSecret:      "test-secret",
		BaseURL:        "http://localhost:3000",
		AllowedOrigins: []string{"*"},
	}
	store := database.NewMemoryStore()

	authHandler := NewAuthHandler(cfg, store)
	orgsHandler := NewOrgsHandler(cfg, store)
	projectsHandler := NewProjectsHandler(cfg, store)
	tasksHandler := NewTasksHandler(cfg, store)
	profilesHandler := NewProfilesHandler(cfg, store)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Get("/invitations/{token}", orgsHandler.GetInvitationByToken)

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(cfg))

			r.Get("/profile", profilesHandler.GetProfile)
			r.Put("/profile", profilesHandler.UpdateProfile)

			r.Get("/orgs", orgsHandler.ListMyOrganizations)
			r.Post("/orgs", orgsHandler.CreateOrganization)
			r.Route("/orgs/{id}", func(r chi.Router) {
				r.Get("/", orgsHandler.GetOrganization)
				r.Delete("/", orgsHandler.DeleteOrganization)
				r.Get("/members", orgsHandler.ListMembers)
				r.Put("/members/{memberID}", orgsHandler.UpdateMemberRole)
				r.Delete("/members/{memberID}", orgsHandler.RemoveMember)
				r.Post("/invitations", orgsHandler.InviteMember)
				r.Get("/projects", projectsHandler.ListProjects)
				r.Post("/projects", projectsHandler.CreateProject)
			})

			r.Get("/invitations", orgsHandler.ListMyInvitations)
			r.Post("/invitations/{token}/accept", orgsHandler.AcceptInvitation)
			r.Post("/invitations/{token}/decline", orgsHandler.DeclineInvitation)

			r.Route("/projects/{projectID}", func(r chi.Router) {
				r.Get("/", projectsHandler.GetProject)
				r.Delete("/", projectsHandler.DeleteProject)
				r.Get("/board", tasksHandler.GetBoard)
				r.Get("/tasks", tasksHandler.ListTasks)
				r.Post("/tasks", tasksHandler.CreateTask)
			})

			r.Get("/tasks/overview", tasksHandler.GetOverview)
			r.Route("/tasks/{taskID}", func(r chi.Router) {
				r.Get("/", tasksHandler.GetTask)
				r.Put("/", tasksHandler.UpdateTask)
				r.Delete("/", tasksHandler.DeleteTask)
				r.Patch("/status", tasksHandler.UpdateTaskStatus)
				r.Post("/assignments", tasksHandler.AssignTask)
				r.Delete("/assignments/{userID}", tasksHandler.UnassignTask)
			})
		})
	})

	return &testEnv{
		cfg:    cfg,
		store:  store,
		router: router,
		jwt:    utils.NewJWTService(cfg.JWTSecret),
	}
}

// do performs a request and returns the recorder
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// doWithHeader performs a bodyless request with one extra header set
func (e *testEnv) doWithHeader(t *testing.T, method, path, token, header, value string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set(header, value)

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// decode unpacks the response envelope's data field into a map
func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
		Error   *utils.APIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

// decodeError unpacks the error part of the envelope
func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *utils.APIError {
	t.Helper()

	var envelope struct {
		Error *utils.APIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	return envelope.Error
}

// registerUser creates an account and returns its id and access token
func (e *testEnv) registerUser(t *testing.T, email string) (userID, token string) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]interface{}{
		"email":     email,
		"password":  "correct-horse",
		"full_name": "Test User",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	data := decode(t, rec)
	user := data["user"].(map[string]interface{})
	return user["id"].(string), data["access_token"].(string)
}

// createOrg creates an organization and returns its id
func (e *testEnv) createOrg(t *testing.T, token, name string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/orgs", token, map[string]interface{}{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	data := decode(t, rec)
	org := data["organization"].(map[string]interface{})
	return org["id"].(string)
}

// createProject creates a project in the organization
func (e *testEnv) createProject(t *testing.T, token, orgID, name string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/orgs/"+orgID+"/projects", token, map[string]interface{}{"name": name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	data := decode(t, rec)
	project := data["project"].(map[string]interface{})
	return project["id"].(string)
}

// createTask creates a task in the project
func (e *testEnv) createTask(t *testing.T, token, projectID, title string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/projects/"+projectID+"/tasks", token, map[string]interface{}{"title": title})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	data := decode(t, rec)
	task := data["task"].(map[string]interface{})
	return task["id"].(string)
}

// invite issues an invitation and returns its token
func (e *testEnv) invite(t *testing.T, token, orgID, email, role string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/orgs/"+orgID+"/invitations", token, map[string]interface{}{
		"email": email,
		"role":  role,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	data := decode(t, rec)
	inv := data["invitation"].(map[string]interface{})
	return inv["token"].(string)
}
