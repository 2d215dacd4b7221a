package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/hsemihaktas/TaskFlow/pkg/models"
)

// PostgresStore implements StoreInterface on PostgreSQL.
// Uniqueness ((user,org) membership, (task,user) assignment, invitation
// token) and the delete cascades live in the schema; see scripts/setup_db.go.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a pooled connection and verifies it
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Users

func (s *PostgresStore) CreateUser(user *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRow(query, user.Email, user.Password).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", classifyPGError(err))
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(email string) (*models.User, error) {
	query := `
		SELECT id, email, COALESCE(password_hash,''), created_at, updated_at
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`
	var u models.User
	err := s.db.QueryRow(query, email).Scan(&u.ID, &u.Email, &u.Password, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", classifyPGError(err))
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByID(id string) (*models.User, error) {
	query := `
		SELECT id, email, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var u models.User
	err := s.db.QueryRow(query, id).Scan(&u.ID, &u.Email, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", classifyPGError(err))
	}
	return &u, nil
}

// Profiles

func (s *PostgresStore) UpsertProfile(p *models.Profile) error {
	query := `
		INSERT INTO profiles (id, full_name, avatar_url, position, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			full_name  = EXCLUDED.full_name,
			avatar_url = EXCLUDED.avatar_url,
			position   = EXCLUDED.position,
			phone      = EXCLUDED.phone,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	err := s.db.QueryRow(query, p.ID, p.FullName, p.AvatarURL, p.Position, p.Phone).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", classifyPGError(err))
	}
	return nil
}

func (s *PostgresStore) GetProfile(userID string) (*models.Profile, error) {
	query := `
		SELECT id, full_name, COALESCE(avatar_url,''), COALESCE(position,''), COALESCE(phone,''),
		       created_at, updated_at
		FROM profiles
		WHERE id = $1
	`
	var p models.Profile
	err := s.db.QueryRow(query, userID).Scan(
		&p.ID, &p.FullName, &p.AvatarURL, &p.Position, &p.Phone, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", classifyPGError(err))
	}
	return &p, nil
}

// Organizations

func (s *PostgresStore) CreateOrganization(org *models.Organization) error {
	query := `
		INSERT INTO organizations (name, created_by, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRow(query, org.Name, org.CreatedBy).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", classifyPGError(err))
	}
	return nil
}

func (s *PostgresStore) GetOrganization(orgID string) (*models.Organization, error) {
	query := `
		SELECT id, name, created_by, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`
	var o models.Organization
	err := s.db.QueryRow(query, orgID).Scan(&o.ID, &o.Name, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", classifyPGError(err))
	}
	return &o, nil
}

func (s *PostgresStore) ListUserOrganizations(userID string) ([]models.Organization, error) {
	query := `
		SELECT o.id, o.name, o.created_by, o.created_at, o.updated_at
		FROM organizations o
		JOIN memberships m ON m.organization_id = o.id
		WHERE m.user_id = $1
		ORDER BY o.created_at
	`
	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []models.Organization
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func (s *PostgresStore) DeleteOrganization(orgID string) error {
	// schema FKs are ON DELETE CASCADE; one statement removes the tenant
	res, err := s.db.Exec(`DELETE FROM organizations WHERE id = $1`, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete organization: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("organization %s: %w", orgID, ErrNotFound)
	}
	return nil
}

// Memberships

func (s *PostgresStore) AddMembership(m *models.Membership) error {
	query := `
		INSERT INTO memberships (user_id, organization_id, role, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, created_at
	`
	err := s.db.QueryRow(query, m.UserID, m.OrganizationID, m.Role).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add membership: %w", classifyPGError(err))
	}
	return nil
}

func (s *PostgresStore) GetMembership(userID, orgID string) (*models.Membership, error) {
	query := `
		SELECT id, user_id, organization_id, role, created_at
		FROM memberships
		WHERE user_id = $1 AND organization_id = $2
	`
	var m models.Membership
	err := s.db.QueryRow(query, userID, orgID).
		Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", classifyPGError(err))
	}
	return &m, nil
}

func (s *PostgresStore) GetMembershipByID(id string) (*models.Membership, error) {
	query := `
		SELECT id, user_id, organization_id, role, created_at
		FROM memberships
		WHERE id = $1
	`
	var m models.Membership
	err := s.db.QueryRow(query, id).
		Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", classifyPGError(err))
	}
	return &m, nil
}

func (s *PostgresStore) ListMemberships(orgID string) ([]models.Membership, error) {
	query := `
		SELECT id, user_id, organization_id, role, created_at
		FROM memberships
		WHERE organization_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var members []models.Membership
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.ID, &m.UserID, &m.OrganizationID, &m.Role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *PostgresStore) UpdateMembershipRole(id string, role models.Role) error {
	res, err := s.db.Exec(`UPDATE memberships SET role = $1 WHERE id = $2`, role, id)
	if err != nil {
		return fmt.Errorf("failed to update membership role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("membership %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteMembership(id string) error {
	res, err := s.db.Exec(`DELETE FROM memberships WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("membership %s: %w", id, ErrNotFound)
	}
	return nil
}

// Projects

func (s *PostgresStore) CreateProject(p *models.Project) error {
	query := `
		INSERT INTO projects (organization_id, name, description, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRow(query, p.OrganizationID, p.Name, p.Description, p.CreatedBy).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", classifyPGError(err))
	}
	return nil
}

func (s *PostgresStore) GetProject(id string) (*models.Project, error) {
	query := `
		SELECT id, organization_id, name, COALESCE(description,''), created_by, created_at, updated_at
		FROM projects
		WHERE id = $1
	`
	var p models.Project
	err := s.db.QueryRow(query, id).Scan(
		&p.ID, &p.OrganizationID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", classifyPGError(err))
	}
	return &p, nil
}

func (s *PostgresStore) ListProjectsByOrganization(orgID string) ([]models.Project, error) {
	query := `
		SELECT id, organization_id, name, COALESCE(description,''), created_by, created_at, updated_at
		FROM projects
		WHERE organization_id = $1
		ORDER BY created_at
	`
	rows, err := s.db.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Description, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *PostgresStore) DeleteProject(id string) error {
	res, err := s.db.Exec(`DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

// Tasks

func (s *PostgresStore) CreateTask(t *models.Task) error {
	if t.Status == "" {
		t.Status = models.StatusTodo
	}
	query := `
		INSERT INTO tasks (project_id, title, description, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRow(query, t.ProjectID, t.Title, t.Description, t.Status, t.CreatedBy).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", classifyPGError(err))
	}
	return nil
}

func (s *PostgresStore) GetTask(id string) (*models.Task, error) {
	query := `
		SELECT id, project_id, title, COALESCE(description,''), status, created_by, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`
	var t models.Task
	err := s.db.QueryRow(query, id).Scan(
		&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", classifyPGError(err))
	}
	return &t, nil
}

func (s *PostgresStore) ListTasksByProject(projectID string) ([]models.Task, error) {
	query := `
		SELECT id, project_id, title, COALESCE(description,''), status, created_by, created_at, updated_at
		FROM tasks
		WHERE project_id = $1
		ORDER BY created_at
	`
	return s.queryTasks(query, projectID)
}

func (s *PostgresStore) ListTasksByOrganization(orgID string) ([]models.Task, error) {
	query := `
		SELECT t.id, t.project_id, t.title, COALESCE(t.description,''), t.status, t.created_by, t.created_at, t.updated_at
		FROM tasks t
		JOIN projects p ON p.id = t.project_id
		WHERE p.organization_id = $1
		ORDER BY t.created_at
	`
	return s.queryTasks(query, orgID)
}

func (s *PostgresStore) queryTasks(query string, args ...interface{}) ([]models.Task, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Description, &t.Status, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *PostgresStore) UpdateTask(t *models.Task) error {
	query := `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at
	`
	err := s.db.QueryRow(query, t.Title, t.Description, t.Status, t.ID).Scan(&t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", classifyPGError(err))
	}
	return nil
}

func (s *PostgresStore) UpdateTaskStatus(id string, status models.TaskStatus) error {
	res, err := s.db.Exec(`UPDATE tasks SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteTask(id string) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// Task assignments

func (s *PostgresStore) AddAssignment(a *models.TaskAssignment) error {
	query := `
		INSERT INTO task_assignments (task_id, assigned_to, assigned_by, assigned_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING assigned_at
	`
	err := s.db.QueryRow(query, a.TaskID, a.AssignedTo, a.AssignedBy).Scan(&a.AssignedAt)
	if err != nil {
		return fmt.Errorf("failed to add assignment: %w", classifyPGError(err))
	}
	return nil
}

func (s *PostgresStore) RemoveAssignment(taskID, userID string) error {
	// idempotent: zero rows affected is fine
	_, err := s.db.Exec(`DELETE FROM task_assignments WHERE task_id = $1 AND assigned_to = $2`, taskID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove assignment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAssignmentsByTask(taskID string) ([]models.TaskAssignment, error) {
	query := `
		SELECT task_id, assigned_to, assigned_by, assigned_at
		FROM task_assignments
		WHERE task_id = $1
		ORDER BY assigned_at
	`
	rows, err := s.db.Query(query, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var out []models.TaskAssignment
	for rows.Next() {
		var a models.TaskAssignment
		if err := rows.Scan(&a.TaskID, &a.AssignedTo, &a.AssignedBy, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) HasAssignment(taskID, userID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM task_assignments WHERE task_id = $1 AND assigned_to = $2)`,
		taskID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check assignment: %w", err)
	}
	return exists, nil
}

// Invitations

func (s *PostgresStore) CreateInvitation(inv *models.Invitation) error {
	query := `
		INSERT INTO invitations (organization_id, email, role, token, invited_by, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRow(query,
		inv.OrganizationID, inv.Email, inv.Role, inv.Token, inv.InvitedBy, inv.Status, inv.ExpiresAt,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", classifyPGError(err))
	}
	return nil
}

func (s *PostgresStore) GetInvitationByToken(token string) (*models.Invitation, error) {
	query := `
		SELECT id, organization_id, email, role, token, invited_by, status, expires_at, accepted_by, created_at, updated_at
		FROM invitations
		WHERE token = $1
	`
	return s.scanInvitation(s.db.QueryRow(query, token))
}

func (s *PostgresStore) GetPendingInvitation(orgID, email string) (*models.Invitation, error) {
	query := `
		SELECT id, organization_id, email, role, token, invited_by, status, expires_at, accepted_by, created_at, updated_at
		FROM invitations
		WHERE organization_id = $1 AND LOWER(email) = LOWER($2) AND status = 'pending'
	`
	return s.scanInvitation(s.db.QueryRow(query, orgID, email))
}

func (s *PostgresStore) scanInvitation(row *sql.Row) (*models.Invitation, error) {
	var inv models.Invitation
	var acceptedBy sql.NullString
	err := row.Scan(
		&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &inv.Token, &inv.InvitedBy,
		&inv.Status, &inv.ExpiresAt, &acceptedBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", classifyPGError(err))
	}
	if acceptedBy.Valid {
		inv.AcceptedBy = &acceptedBy.String
	}
	return &inv, nil
}

func (s *PostgresStore) ListInvitationsByEmail(email string) ([]models.Invitation, error) {
	query := `
		SELECT id, organization_id, email, role, token, invited_by, status, expires_at, accepted_by, created_at, updated_at
		FROM invitations
		WHERE LOWER(email) = LOWER($1)
		ORDER BY created_at
	`
	rows, err := s.db.Query(query, email)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var out []models.Invitation
	for rows.Next() {
		var inv models.Invitation
		var acceptedBy sql.NullString
		if err := rows.Scan(
			&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &inv.Token, &inv.InvitedBy,
			&inv.Status, &inv.ExpiresAt, &acceptedBy, &inv.CreatedAt, &inv.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		if acceptedBy.Valid {
			inv.AcceptedBy = &acceptedBy.String
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateInvitation(inv *models.Invitation) error {
	query := `
		UPDATE invitations
		SET status = $1, accepted_by = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`
	err := s.db.QueryRow(query, inv.Status, inv.AcceptedBy, inv.ID).Scan(&inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update invitation: %w", classifyPGError(err))
	}
	return nil
}

func (s *PostgresStore) DeleteInvitation(id string) error {
	res, err := s.db.Exec(`DELETE FROM invitations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete invitation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("invitation %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ExpireOverduePending(now time.Time) (int, error) {
	res, err := s.db.Exec(
		`UPDATE invitations SET status = 'expired', updated_at = NOW() WHERE status = 'pending' AND expires_at < $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire invitations: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) HealthCheck() error {
	return s.db.Ping()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
