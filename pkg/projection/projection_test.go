package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsemihaktas/TaskFlow/pkg/models"
)

func TestGroupProjectsByOrganization(t *testing.T) {
	projects := []models.Project{
		{ID: "1", OrganizationID: "A"},
		{ID: "2", OrganizationID: "B"},
		{ID: "3", OrganizationID: "A"},
	}
	orgs := []models.Organization{
		{ID: "A", Name: "Acme"},
		{ID: "B", Name: "Bolt"},
	}

	groups := GroupProjectsByOrganization(projects, orgs)
	require.Len(t, groups, 2)

	assert.Equal(t, "Acme", groups[0].OrganizationName)
	require.Len(t, groups[0].Projects, 2)
	assert.Equal(t, "1", groups[0].Projects[0].ID)
	assert.Equal(t, "3", groups[0].Projects[1].ID)

	assert.Equal(t, "Bolt", groups[1].OrganizationName)
	require.Len(t, groups[1].Projects, 1)
	assert.Equal(t, "2", groups[1].Projects[0].ID)
}

func TestGroupProjectsByOrganization_UnknownOrg(t *testing.T) {
	projects := []models.Project{{ID: "1", OrganizationID: "missing"}}

	groups := GroupProjectsByOrganization(projects, nil)
	require.Len(t, groups, 1)
	assert.Equal(t, UnknownOrganization, groups[0].OrganizationName)
	assert.Equal(t, "missing", groups[0].OrganizationID)
	require.Len(t, groups[0].Projects, 1)
}

func TestGroupProjectsByOrganization_Deterministic(t *testing.T) {
	projects := []models.Project{
		{ID: "1", OrganizationID: "B"},
		{ID: "2", OrganizationID: "A"},
		{ID: "3", OrganizationID: "B"},
	}
	orgs := []models.Organization{
		{ID: "A", Name: "Acme"},
		{ID: "B", Name: "Bolt"},
	}

	first := GroupProjectsByOrganization(projects, orgs)
	second := GroupProjectsByOrganization(projects, orgs)
	assert.Equal(t, first, second)
	// first encounter wins: B before A
	assert.Equal(t, "Bolt", first[0].OrganizationName)
	assert.Equal(t, "Acme", first[1].OrganizationName)
}

func TestGroupTasksByOrganizationAndProject(t *testing.T) {
	orgs := []models.Organization{{ID: "A", Name: "Acme"}}
	projects := []models.Project{
		{ID: "p1", OrganizationID: "A", Name: "Website"},
		{ID: "p2", OrganizationID: "A", Name: "Mobile"},
	}
	tasks := []models.Task{
		{ID: "t1", ProjectID: "p1"},
		{ID: "t2", ProjectID: "p2"},
		{ID: "t3", ProjectID: "p1"},
		{ID: "t4", ProjectID: "gone"},
	}

	groups := GroupTasksByOrganizationAndProject(tasks, projects, orgs)
	require.Len(t, groups, 2)

	assert.Equal(t, "Acme", groups[0].OrganizationName)
	require.Len(t, groups[0].Projects, 2)
	assert.Equal(t, "Website", groups[0].Projects[0].ProjectName)
	require.Len(t, groups[0].Projects[0].Tasks, 2)
	assert.Equal(t, "t1", groups[0].Projects[0].Tasks[0].ID)
	assert.Equal(t, "t3", groups[0].Projects[0].Tasks[1].ID)
	assert.Equal(t, "Mobile", groups[0].Projects[1].ProjectName)

	// dangling project reference falls back instead of being dropped
	assert.Equal(t, UnknownOrganization, groups[1].OrganizationName)
	require.Len(t, groups[1].Projects, 1)
	assert.Equal(t, UnknownProject, groups[1].Projects[0].ProjectName)
	assert.Equal(t, "t4", groups[1].Projects[0].Tasks[0].ID)
}

func TestTasksByStatus(t *testing.T) {
	tasks := []models.Task{
		{ID: "t1", Status: models.StatusTodo},
		{ID: "t2", Status: models.StatusDone},
		{ID: "t3", Status: models.StatusTodo},
	}

	todo := TasksByStatus(tasks, models.StatusTodo)
	require.Len(t, todo, 2)
	assert.Equal(t, "t1", todo[0].ID)
	assert.Equal(t, "t3", todo[1].ID)

	assert.Empty(t, TasksByStatus(tasks, models.StatusInProgress))
}
