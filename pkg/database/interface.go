package database

import (
	"fmt"
	"time"

	"github.com/hsemihaktas/TaskFlow/pkg/models"
)

// StoreInterface is the data-store collaborator. Implementations return
// ErrNotFound / ErrConflict (wrapped) for the classifiable failures and
// plain errors for everything else; callers check with errors.Is.
type StoreInterface interface {
	// Users
	CreateUser(user *models.User) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)

	// Profiles
	UpsertProfile(profile *models.Profile) error
	GetProfile(userID string) (*models.Profile, error)

	// Organizations
	CreateOrganization(org *models.Organization) error
	GetOrganization(orgID string) (*models.Organization, error)
	ListUserOrganizations(userID string) ([]models.Organization, error)
	// DeleteOrganization cascades to projects, tasks, assignments,
	// memberships and invitations.
	DeleteOrganization(orgID string) error

	// Memberships
	AddMembership(m *models.Membership) error
	GetMembership(userID, orgID string) (*models.Membership, error)
	GetMembershipByID(id string) (*models.Membership, error)
	ListMemberships(orgID string) ([]models.Membership, error)
	UpdateMembershipRole(id string, role models.Role) error
	DeleteMembership(id string) error

	// Projects
	CreateProject(p *models.Project) error
	GetProject(id string) (*models.Project, error)
	ListProjectsByOrganization(orgID string) ([]models.Project, error)
	// DeleteProject cascades to tasks and task assignments.
	DeleteProject(id string) error

	// Tasks
	CreateTask(t *models.Task) error
	GetTask(id string) (*models.Task, error)
	ListTasksByProject(projectID string) ([]models.Task, error)
	ListTasksByOrganization(orgID string) ([]models.Task, error)
	UpdateTask(t *models.Task) error
	UpdateTaskStatus(id string, status models.TaskStatus) error
	DeleteTask(id string) error

	// Task assignments
	AddAssignment(a *models.TaskAssignment) error
	// RemoveAssignment is idempotent; removing a missing pair is not an error.
	RemoveAssignment(taskID, userID string) error
	ListAssignmentsByTask(taskID string) ([]models.TaskAssignment, error)
	HasAssignment(taskID, userID string) (bool, error)

	// Invitations
	CreateInvitation(inv *models.Invitation) error
	GetInvitationByToken(token string) (*models.Invitation, error)
	GetPendingInvitation(orgID, email string) (*models.Invitation, error)
	ListInvitationsByEmail(email string) ([]models.Invitation, error)
	UpdateInvitation(inv *models.Invitation) error
	DeleteInvitation(id string) error
	// ExpireOverduePending flips pending invitations whose expires_at has
	// passed to expired and reports how many it touched.
	ExpireOverduePending(now time.Time) (int, error)

	HealthCheck() error
	Close() error
}

// StoreConfig selects the backing store implementation
type StoreConfig struct {
	PostgresDSN string
	SupabaseURL string
	SupabaseKey string
	Debug       bool
}

// NewStore picks an implementation from the configuration:
// PostgreSQL when a DSN is set, the Supabase REST API as the hosted
// fallback, and the in-memory store for local development.
func NewStore(cfg StoreConfig) (StoreInterface, error) {
	if cfg.PostgresDSN != "" {
		fmt.Printf("Using PostgreSQL store\n")
		return NewPostgresStore(cfg.PostgresDSN)
	}
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		fmt.Printf("Using Supabase REST store\n")
		return NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey), nil
	}
	fmt.Printf("[warn] no external store configured, using in-memory store (data is not persisted)\n")
	return NewMemoryStore(), nil
}
