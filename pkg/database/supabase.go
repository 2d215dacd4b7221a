package database

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hsemihaktas/TaskFlow/pkg/models"
)

// SupabaseStore implements StoreInterface against the Supabase REST API
// (PostgREST). It is the hosted fallback when no direct DSN is available,
// for example on platforms without outbound TCP to the database.
type SupabaseStore struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewSupabaseStore(rawURL, key string) *SupabaseStore {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "https://" + rawURL
	}
	return &SupabaseStore{
		baseURL: strings.TrimRight(rawURL, "/"),
		apiKey:  key,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// makeRequest sends a request to the PostgREST endpoint and returns the
// raw response body. HTTP 409 becomes ErrConflict so callers can use the
// same errors.Is checks as with the SQL store.
func (s *SupabaseStore) makeRequest(method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequest(method, s.baseURL+"/rest/v1"+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusConflict {
		return nil, fmt.Errorf("request to %s: %w", endpoint, ErrConflict)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// fetchOne expects a single-row result; an empty array is ErrNotFound.
func (s *SupabaseStore) fetchOne(endpoint string, dest interface{}) error {
	data, err := s.makeRequest("GET", endpoint, nil)
	if err != nil {
		return err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("request to %s: %w", endpoint, ErrNotFound)
	}
	return json.Unmarshal(rows[0], dest)
}

// insertOne posts a row and decodes the representation back into dest.
func (s *SupabaseStore) insertOne(endpoint string, payload, dest interface{}) error {
	data, err := s.makeRequest("POST", endpoint, payload)
	if err != nil {
		return err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("insert returned no rows")
	}
	return json.Unmarshal(rows[0], dest)
}

func q(value string) string {
	return url.QueryEscape(value)
}

// Users

func (s *SupabaseStore) CreateUser(user *models.User) error {
	return s.insertOne("/users", map[string]interface{}{
		"email":         user.Email,
		"password_hash": user.Password,
	}, user)
}

func (s *SupabaseStore) GetUserByEmail(email string) (*models.User, error) {
	var u models.User
	endpoint := "/users?email=ilike." + q(strings.ToLower(email)) + "&select=*"
	if err := s.fetchOne(endpoint, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SupabaseStore) GetUserByID(id string) (*models.User, error) {
	var u models.User
	if err := s.fetchOne("/users?id=eq."+q(id)+"&select=*", &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Profiles

func (s *SupabaseStore) UpsertProfile(p *models.Profile) error {
	payload := map[string]interface{}{
		"id":         p.ID,
		"full_name":  p.FullName,
		"avatar_url": p.AvatarURL,
		"position":   p.Position,
		"phone":      p.Phone,
	}
	data, err := s.makeRequest("POST", "/profiles?on_conflict=id", payload)
	if err != nil {
		// merge-duplicates needs its own Prefer header; fall back to PATCH
		data, err = s.makeRequest("PATCH", "/profiles?id=eq."+q(p.ID), payload)
		if err != nil {
			return err
		}
	}
	var rows []models.Profile
	if json.Unmarshal(data, &rows) == nil && len(rows) > 0 {
		*p = rows[0]
	}
	return nil
}

func (s *SupabaseStore) GetProfile(userID string) (*models.Profile, error) {
	var p models.Profile
	if err := s.fetchOne("/profiles?id=eq."+q(userID)+"&select=*", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Organizations

func (s *SupabaseStore) CreateOrganization(org *models.Organization) error {
	return s.insertOne("/organizations", map[string]interface{}{
		"name":       org.Name,
		"created_by": org.CreatedBy,
	}, org)
}

func (s *SupabaseStore) GetOrganization(orgID string) (*models.Organization, error) {
	var o models.Organization
	if err := s.fetchOne("/organizations?id=eq."+q(orgID)+"&select=*", &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *SupabaseStore) ListUserOrganizations(userID string) ([]models.Organization, error) {
	memData, err := s.makeRequest("GET", "/memberships?user_id=eq."+q(userID)+"&select=organization_id&order=created_at", nil)
	if err != nil {
		return nil, err
	}
	var mems []struct {
		OrganizationID string `json:"organization_id"`
	}
	if err := json.Unmarshal(memData, &mems); err != nil {
		return nil, fmt.Errorf("failed to decode memberships: %w", err)
	}
	if len(mems) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(mems))
	for _, m := range mems {
		ids = append(ids, m.OrganizationID)
	}
	endpoint := "/organizations?id=in.(" + q(strings.Join(ids, ",")) + ")&select=*&order=created_at"
	data, err := s.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	var orgs []models.Organization
	if err := json.Unmarshal(data, &orgs); err != nil {
		return nil, fmt.Errorf("failed to decode organizations: %w", err)
	}
	return orgs, nil
}

func (s *SupabaseStore) DeleteOrganization(orgID string) error {
	_, err := s.makeRequest("DELETE", "/organizations?id=eq."+q(orgID), nil)
	return err
}

// Memberships

func (s *SupabaseStore) AddMembership(m *models.Membership) error {
	return s.insertOne("/memberships", map[string]interface{}{
		"user_id":         m.UserID,
		"organization_id": m.OrganizationID,
		"role":            m.Role,
	}, m)
}

func (s *SupabaseStore) GetMembership(userID, orgID string) (*models.Membership, error) {
	var m models.Membership
	endpoint := "/memberships?user_id=eq." + q(userID) + "&organization_id=eq." + q(orgID) + "&select=*"
	if err := s.fetchOne(endpoint, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SupabaseStore) GetMembershipByID(id string) (*models.Membership, error) {
	var m models.Membership
	if err := s.fetchOne("/memberships?id=eq."+q(id)+"&select=*", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *SupabaseStore) ListMemberships(orgID string) ([]models.Membership, error) {
	data, err := s.makeRequest("GET", "/memberships?organization_id=eq."+q(orgID)+"&select=*&order=created_at", nil)
	if err != nil {
		return nil, err
	}
	var members []models.Membership
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, fmt.Errorf("failed to decode memberships: %w", err)
	}
	return members, nil
}

func (s *SupabaseStore) UpdateMembershipRole(id string, role models.Role) error {
	_, err := s.makeRequest("PATCH", "/memberships?id=eq."+q(id), map[string]interface{}{
		"role": role,
	})
	return err
}

func (s *SupabaseStore) DeleteMembership(id string) error {
	_, err := s.makeRequest("DELETE", "/memberships?id=eq."+q(id), nil)
	return err
}

// Projects

func (s *SupabaseStore) CreateProject(p *models.Project) error {
	return s.insertOne("/projects", map[string]interface{}{
		"organization_id": p.OrganizationID,
		"name":            p.Name,
		"description":     p.Description,
		"created_by":      p.CreatedBy,
	}, p)
}

func (s *SupabaseStore) GetProject(id string) (*models.Project, error) {
	var p models.Project
	if err := s.fetchOne("/projects?id=eq."+q(id)+"&select=*", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SupabaseStore) ListProjectsByOrganization(orgID string) ([]models.Project, error) {
	data, err := s.makeRequest("GET", "/projects?organization_id=eq."+q(orgID)+"&select=*&order=created_at", nil)
	if err != nil {
		return nil, err
	}
	var projects []models.Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("failed to decode projects: %w", err)
	}
	return projects, nil
}

func (s *SupabaseStore) DeleteProject(id string) error {
	_, err := s.makeRequest("DELETE", "/projects?id=eq."+q(id), nil)
	return err
}

// Tasks

func (s *SupabaseStore) CreateTask(t *models.Task) error {
	if t.Status == "" {
		t.Status = models.StatusTodo
	}
	return s.insertOne("/tasks", map[string]interface{}{
		"project_id":  t.ProjectID,
		"title":       t.Title,
		"description": t.Description,
		"status":      t.Status,
		"created_by":  t.CreatedBy,
	}, t)
}

func (s *SupabaseStore) GetTask(id string) (*models.Task, error) {
	var t models.Task
	if err := s.fetchOne("/tasks?id=eq."+q(id)+"&select=*", &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *SupabaseStore) ListTasksByProject(projectID string) ([]models.Task, error) {
	data, err := s.makeRequest("GET", "/tasks?project_id=eq."+q(projectID)+"&select=*&order=created_at", nil)
	if err != nil {
		return nil, err
	}
	var tasks []models.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return tasks, nil
}

func (s *SupabaseStore) ListTasksByOrganization(orgID string) ([]models.Task, error) {
	// PostgREST cannot join here without an embedded resource; collect the
	// project ids first, then filter tasks by them.
	projects, err := s.ListProjectsByOrganization(orgID)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	endpoint := "/tasks?project_id=in.(" + q(strings.Join(ids, ",")) + ")&select=*&order=created_at"
	data, err := s.makeRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	var tasks []models.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return tasks, nil
}

func (s *SupabaseStore) UpdateTask(t *models.Task) error {
	data, err := s.makeRequest("PATCH", "/tasks?id=eq."+q(t.ID), map[string]interface{}{
		"title":       t.Title,
		"description": t.Description,
		"status":      t.Status,
		"updated_at":  time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	var rows []models.Task
	if json.Unmarshal(data, &rows) == nil && len(rows) > 0 {
		t.UpdatedAt = rows[0].UpdatedAt
	}
	return nil
}

func (s *SupabaseStore) UpdateTaskStatus(id string, status models.TaskStatus) error {
	_, err := s.makeRequest("PATCH", "/tasks?id=eq."+q(id), map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	})
	return err
}

func (s *SupabaseStore) DeleteTask(id string) error {
	_, err := s.makeRequest("DELETE", "/tasks?id=eq."+q(id), nil)
	return err
}

// Task assignments

func (s *SupabaseStore) AddAssignment(a *models.TaskAssignment) error {
	return s.insertOne("/task_assignments", map[string]interface{}{
		"task_id":     a.TaskID,
		"assigned_to": a.AssignedTo,
		"assigned_by": a.AssignedBy,
	}, a)
}

func (s *SupabaseStore) RemoveAssignment(taskID, userID string) error {
	_, err := s.makeRequest("DELETE",
		"/task_assignments?task_id=eq."+q(taskID)+"&assigned_to=eq."+q(userID), nil)
	return err
}

func (s *SupabaseStore) ListAssignmentsByTask(taskID string) ([]models.TaskAssignment, error) {
	data, err := s.makeRequest("GET",
		"/task_assignments?task_id=eq."+q(taskID)+"&select=*&order=assigned_at", nil)
	if err != nil {
		return nil, err
	}
	var out []models.TaskAssignment
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode assignments: %w", err)
	}
	return out, nil
}

func (s *SupabaseStore) HasAssignment(taskID, userID string) (bool, error) {
	data, err := s.makeRequest("GET",
		"/task_assignments?task_id=eq."+q(taskID)+"&assigned_to=eq."+q(userID)+"&select=task_id", nil)
	if err != nil {
		return false, err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return false, fmt.Errorf("failed to decode assignments: %w", err)
	}
	return len(rows) > 0, nil
}

// Invitations

func (s *SupabaseStore) CreateInvitation(inv *models.Invitation) error {
	return s.insertOne("/invitations", map[string]interface{}{
		"organization_id": inv.OrganizationID,
		"email":           inv.Email,
		"role":            inv.Role,
		"token":           inv.Token,
		"invited_by":      inv.InvitedBy,
		"status":          inv.Status,
		"expires_at":      inv.ExpiresAt,
	}, inv)
}

func (s *SupabaseStore) GetInvitationByToken(token string) (*models.Invitation, error) {
	var inv models.Invitation
	if err := s.fetchOne("/invitations?token=eq."+q(token)+"&select=*", &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *SupabaseStore) GetPendingInvitation(orgID, email string) (*models.Invitation, error) {
	var inv models.Invitation
	endpoint := "/invitations?organization_id=eq." + q(orgID) +
		"&email=ilike." + q(strings.ToLower(email)) + "&status=eq.pending&select=*"
	if err := s.fetchOne(endpoint, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *SupabaseStore) ListInvitationsByEmail(email string) ([]models.Invitation, error) {
	data, err := s.makeRequest("GET",
		"/invitations?email=ilike."+q(strings.ToLower(email))+"&select=*&order=created_at", nil)
	if err != nil {
		return nil, err
	}
	var out []models.Invitation
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode invitations: %w", err)
	}
	return out, nil
}

func (s *SupabaseStore) UpdateInvitation(inv *models.Invitation) error {
	_, err := s.makeRequest("PATCH", "/invitations?id=eq."+q(inv.ID), map[string]interface{}{
		"status":      inv.Status,
		"accepted_by": inv.AcceptedBy,
		"updated_at":  time.Now().UTC(),
	})
	return err
}

func (s *SupabaseStore) DeleteInvitation(id string) error {
	_, err := s.makeRequest("DELETE", "/invitations?id=eq."+q(id), nil)
	return err
}

func (s *SupabaseStore) ExpireOverduePending(now time.Time) (int, error) {
	endpoint := "/invitations?status=eq.pending&expires_at=lt." + q(now.UTC().Format(time.RFC3339))
	data, err := s.makeRequest("PATCH", endpoint, map[string]interface{}{
		"status":     models.InvitationExpired,
		"updated_at": now.UTC(),
	})
	if err != nil {
		return 0, err
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return 0, fmt.Errorf("failed to decode expired invitations: %w", err)
	}
	return len(rows), nil
}

func (s *SupabaseStore) HealthCheck() error {
	_, err := s.makeRequest("GET", "/organizations?select=id&limit=1", nil)
	return err
}

func (s *SupabaseStore) Close() error {
	return nil
}
