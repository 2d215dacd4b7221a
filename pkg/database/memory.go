package database

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hsemihaktas/TaskFlow/pkg/models"
)

// MemoryStore keeps everything in process memory behind one mutex.
// It backs local development and the test suite, and mirrors the SQL
// constraints: unique (user, organization) membership, unique
// (task, assigned_to) assignment, unique invitation token.
type MemoryStore struct {
	mu sync.Mutex

	users         map[string]models.User
	profiles      map[string]models.Profile
	organizations map[string]models.Organization
	memberships   map[string]models.Membership
	projects      map[string]models.Project
	tasks         map[string]models.Task
	assignments   []models.TaskAssignment
	invitations   map[string]models.Invitation

	seq int // creation order tiebreaker for deterministic listings
	ord map[string]int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]models.User),
		profiles:      make(map[string]models.Profile),
		organizations: make(map[string]models.Organization),
		memberships:   make(map[string]models.Membership),
		projects:      make(map[string]models.Project),
		tasks:         make(map[string]models.Task),
		invitations:   make(map[string]models.Invitation),
		ord:           make(map[string]int),
	}
}

func (s *MemoryStore) track(id string) {
	s.seq++
	s.ord[id] = s.seq
}

// Users

func (s *MemoryStore) CreateUser(user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return fmt.Errorf("user email %s: %w", user.Email, ErrConflict)
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	s.users[user.ID] = *user
	s.track(user.ID)
	return nil
}

func (s *MemoryStore) GetUserByEmail(email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			out := u
			return &out, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
}

func (s *MemoryStore) GetUserByID(id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	out := u
	return &out, nil
}

// Profiles

func (s *MemoryStore) UpsertProfile(profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.profiles[profile.ID]; ok {
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.CreatedAt = now
		s.track(profile.ID)
	}
	profile.UpdatedAt = now
	s.profiles[profile.ID] = *profile
	return nil
}

func (s *MemoryStore) GetProfile(userID string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", userID, ErrNotFound)
	}
	out := p
	return &out, nil
}

// Organizations

func (s *MemoryStore) CreateOrganization(org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	org.CreatedAt = time.Now()
	org.UpdatedAt = org.CreatedAt
	s.organizations[org.ID] = *org
	s.track(org.ID)
	return nil
}

func (s *MemoryStore) GetOrganization(orgID string) (*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.organizations[orgID]
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", orgID, ErrNotFound)
	}
	out := o
	return &out, nil
}

func (s *MemoryStore) ListUserOrganizations(userID string) ([]models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var orgs []models.Organization
	for _, m := range s.memberships {
		if m.UserID != userID {
			continue
		}
		if o, ok := s.organizations[m.OrganizationID]; ok {
			orgs = append(orgs, o)
		}
	}
	sortByCreation(s.ord, orgs, func(o models.Organization) string { return o.ID })
	return orgs, nil
}

func (s *MemoryStore) DeleteOrganization(orgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.organizations[orgID]; !ok {
		return fmt.Errorf("organization %s: %w", orgID, ErrNotFound)
	}
	delete(s.organizations, orgID)

	for id, p := range s.projects {
		if p.OrganizationID == orgID {
			s.deleteProjectLocked(id)
		}
	}
	for id, m := range s.memberships {
		if m.OrganizationID == orgID {
			delete(s.memberships, id)
		}
	}
	for id, inv := range s.invitations {
		if inv.OrganizationID == orgID {
			delete(s.invitations, id)
		}
	}
	return nil
}

// Memberships

func (s *MemoryStore) AddMembership(m *models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.memberships {
		if existing.UserID == m.UserID && existing.OrganizationID == m.OrganizationID {
			return fmt.Errorf("membership (%s,%s): %w", m.UserID, m.OrganizationID, ErrConflict)
		}
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = time.Now()
	s.memberships[m.ID] = *m
	s.track(m.ID)
	return nil
}

func (s *MemoryStore) GetMembership(userID, orgID string) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.memberships {
		if m.UserID == userID && m.OrganizationID == orgID {
			out := m
			return &out, nil
		}
	}
	return nil, fmt.Errorf("membership (%s,%s): %w", userID, orgID, ErrNotFound)
}

func (s *MemoryStore) GetMembershipByID(id string) (*models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memberships[id]
	if !ok {
		return nil, fmt.Errorf("membership %s: %w", id, ErrNotFound)
	}
	out := m
	return &out, nil
}

func (s *MemoryStore) ListMemberships(orgID string) ([]models.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var members []models.Membership
	for _, m := range s.memberships {
		if m.OrganizationID == orgID {
			members = append(members, m)
		}
	}
	sortByCreation(s.ord, members, func(m models.Membership) string { return m.ID })
	return members, nil
}

func (s *MemoryStore) UpdateMembershipRole(id string, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memberships[id]
	if !ok {
		return fmt.Errorf("membership %s: %w", id, ErrNotFound)
	}
	m.Role = role
	s.memberships[id] = m
	return nil
}

func (s *MemoryStore) DeleteMembership(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.memberships[id]; !ok {
		return fmt.Errorf("membership %s: %w", id, ErrNotFound)
	}
	delete(s.memberships, id)
	return nil
}

// Projects

func (s *MemoryStore) CreateProject(p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	s.projects[p.ID] = *p
	s.track(p.ID)
	return nil
}

func (s *MemoryStore) GetProject(id string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	out := p
	return &out, nil
}

func (s *MemoryStore) ListProjectsByOrganization(orgID string) ([]models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var projects []models.Project
	for _, p := range s.projects {
		if p.OrganizationID == orgID {
			projects = append(projects, p)
		}
	}
	sortByCreation(s.ord, projects, func(p models.Project) string { return p.ID })
	return projects, nil
}

func (s *MemoryStore) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	s.deleteProjectLocked(id)
	return nil
}

// deleteProjectLocked cascades to tasks and their assignments.
// Caller holds the mutex.
func (s *MemoryStore) deleteProjectLocked(id string) {
	delete(s.projects, id)
	for tid, t := range s.tasks {
		if t.ProjectID == id {
			delete(s.tasks, tid)
			s.removeAssignmentsLocked(tid)
		}
	}
}

// Tasks

func (s *MemoryStore) CreateTask(t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = models.StatusTodo
	}
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	s.tasks[t.ID] = *t
	s.track(t.ID)
	return nil
}

func (s *MemoryStore) GetTask(id string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	out := t
	return &out, nil
}

func (s *MemoryStore) ListTasksByProject(projectID string) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []models.Task
	for _, t := range s.tasks {
		if t.ProjectID == projectID {
			tasks = append(tasks, t)
		}
	}
	sortByCreation(s.ord, tasks, func(t models.Task) string { return t.ID })
	return tasks, nil
}

func (s *MemoryStore) ListTasksByOrganization(orgID string) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	projectIDs := make(map[string]bool)
	for _, p := range s.projects {
		if p.OrganizationID == orgID {
			projectIDs[p.ID] = true
		}
	}
	var tasks []models.Task
	for _, t := range s.tasks {
		if projectIDs[t.ProjectID] {
			tasks = append(tasks, t)
		}
	}
	sortByCreation(s.ord, tasks, func(t models.Task) string { return t.ID })
	return tasks, nil
}

func (s *MemoryStore) UpdateTask(t *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tasks[t.ID]
	if !ok {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}
	t.ProjectID = existing.ProjectID
	t.CreatedBy = existing.CreatedBy
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = time.Now()
	t.Assignments = nil
	s.tasks[t.ID] = *t
	return nil
}

func (s *MemoryStore) UpdateTaskStatus(id string, status models.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	s.tasks[id] = t
	return nil
}

func (s *MemoryStore) DeleteTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	delete(s.tasks, id)
	s.removeAssignmentsLocked(id)
	return nil
}

func (s *MemoryStore) removeAssignmentsLocked(taskID string) {
	kept := s.assignments[:0]
	for _, a := range s.assignments {
		if a.TaskID != taskID {
			kept = append(kept, a)
		}
	}
	s.assignments = kept
}

// Task assignments

func (s *MemoryStore) AddAssignment(a *models.TaskAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.assignments {
		if existing.TaskID == a.TaskID && existing.AssignedTo == a.AssignedTo {
			return fmt.Errorf("assignment (%s,%s): %w", a.TaskID, a.AssignedTo, ErrConflict)
		}
	}
	a.AssignedAt = time.Now()
	s.assignments = append(s.assignments, *a)
	return nil
}

func (s *MemoryStore) RemoveAssignment(taskID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.assignments[:0]
	for _, a := range s.assignments {
		if a.TaskID == taskID && a.AssignedTo == userID {
			continue
		}
		kept = append(kept, a)
	}
	s.assignments = kept
	return nil
}

func (s *MemoryStore) ListAssignmentsByTask(taskID string) ([]models.TaskAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.TaskAssignment
	for _, a := range s.assignments {
		if a.TaskID == taskID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) HasAssignment(taskID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.assignments {
		if a.TaskID == taskID && a.AssignedTo == userID {
			return true, nil
		}
	}
	return false, nil
}

// Invitations

func (s *MemoryStore) CreateInvitation(inv *models.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.invitations {
		if existing.Token == inv.Token {
			return fmt.Errorf("invitation token: %w", ErrConflict)
		}
	}
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	s.invitations[inv.ID] = *inv
	s.track(inv.ID)
	return nil
}

func (s *MemoryStore) GetInvitationByToken(token string) (*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, inv := range s.invitations {
		if inv.Token == token {
			out := inv
			return &out, nil
		}
	}
	return nil, fmt.Errorf("invitation: %w", ErrNotFound)
}

func (s *MemoryStore) GetPendingInvitation(orgID, email string) (*models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, inv := range s.invitations {
		if inv.OrganizationID == orgID && strings.EqualFold(inv.Email, email) && inv.Status == models.InvitationPending {
			out := inv
			return &out, nil
		}
	}
	return nil, fmt.Errorf("invitation (%s,%s): %w", orgID, email, ErrNotFound)
}

func (s *MemoryStore) ListInvitationsByEmail(email string) ([]models.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Invitation
	for _, inv := range s.invitations {
		if strings.EqualFold(inv.Email, email) {
			out = append(out, inv)
		}
	}
	sortByCreation(s.ord, out, func(i models.Invitation) string { return i.ID })
	return out, nil
}

func (s *MemoryStore) UpdateInvitation(inv *models.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.invitations[inv.ID]
	if !ok {
		return fmt.Errorf("invitation %s: %w", inv.ID, ErrNotFound)
	}
	inv.CreatedAt = existing.CreatedAt
	inv.UpdatedAt = time.Now()
	s.invitations[inv.ID] = *inv
	return nil
}

func (s *MemoryStore) DeleteInvitation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invitations[id]; !ok {
		return fmt.Errorf("invitation %s: %w", id, ErrNotFound)
	}
	delete(s.invitations, id)
	return nil
}

func (s *MemoryStore) ExpireOverduePending(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expired := 0
	for id, inv := range s.invitations {
		if inv.Status == models.InvitationPending && now.After(inv.ExpiresAt) {
			inv.Status = models.InvitationExpired
			inv.UpdatedAt = now
			s.invitations[id] = inv
			expired++
		}
	}
	return expired, nil
}

func (s *MemoryStore) HealthCheck() error { return nil }

func (s *MemoryStore) Close() error { return nil }

// sortByCreation orders a listing by insertion sequence so map iteration
// never leaks into API responses.
func sortByCreation[T any](ord map[string]int, items []T, id func(T) string) {
	sort.SliceStable(items, func(i, j int) bool {
		return ord[id(items[i])] < ord[id(items[j])]
	})
}
