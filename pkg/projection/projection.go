package projection

import "github.com/hsemihaktas/TaskFlow/pkg/models"

// Pure, deterministic groupings computed from flat lists already fetched
// from the store. No additional round trips. Group order is the insertion
// order of first encounter, so repeated runs over the same input compare
// equal.

// UnknownOrganization labels projects whose organization_id does not
// resolve; such entries are kept, never dropped.
const UnknownOrganization = "Unknown Organization"

// UnknownProject labels tasks whose project_id does not resolve.
const UnknownProject = "Unknown Project"

// ProjectGroup is one organization's slice of projects.
type ProjectGroup struct {
	OrganizationID   string           `json:"organization_id"`
	OrganizationName string           `json:"organization_name"`
	Projects         []models.Project `json:"projects"`
}

// TaskGroup is one project's slice of tasks inside an OrgTaskGroup.
type TaskGroup struct {
	ProjectID   string        `json:"project_id"`
	ProjectName string        `json:"project_name"`
	Tasks       []models.Task `json:"tasks"`
}

// OrgTaskGroup is the two-level org -> project -> tasks grouping.
type OrgTaskGroup struct {
	OrganizationID   string      `json:"organization_id"`
	OrganizationName string      `json:"organization_name"`
	Projects         []TaskGroup `json:"projects"`
}

// GroupProjectsByOrganization maps each project to its organization by
// organization_id. Unresolved references land in an UnknownOrganization
// group keyed by the dangling id.
func GroupProjectsByOrganization(projects []models.Project, orgs []models.Organization) []ProjectGroup {
	names := make(map[string]string, len(orgs))
	for _, o := range orgs {
		names[o.ID] = o.Name
	}

	index := make(map[string]int)
	var groups []ProjectGroup
	for _, p := range projects {
		i, ok := index[p.OrganizationID]
		if !ok {
			name, found := names[p.OrganizationID]
			if !found {
				name = UnknownOrganization
			}
			groups = append(groups, ProjectGroup{
				OrganizationID:   p.OrganizationID,
				OrganizationName: name,
			})
			i = len(groups) - 1
			index[p.OrganizationID] = i
		}
		groups[i].Projects = append(groups[i].Projects, p)
	}
	return groups
}

// GroupTasksByOrganizationAndProject builds the org -> project -> tasks
// view. Tasks with a dangling project_id group under UnknownProject; the
// project's dangling organization_id groups under UnknownOrganization.
func GroupTasksByOrganizationAndProject(tasks []models.Task, projects []models.Project, orgs []models.Organization) []OrgTaskGroup {
	orgNames := make(map[string]string, len(orgs))
	for _, o := range orgs {
		orgNames[o.ID] = o.Name
	}
	projectsByID := make(map[string]models.Project, len(projects))
	for _, p := range projects {
		projectsByID[p.ID] = p
	}

	orgIndex := make(map[string]int)
	projIndex := make(map[string]map[string]int)
	var groups []OrgTaskGroup

	for _, t := range tasks {
		proj, haveProject := projectsByID[t.ProjectID]
		orgID := proj.OrganizationID
		projName := proj.Name
		if !haveProject {
			orgID = ""
			projName = UnknownProject
		}

		oi, ok := orgIndex[orgID]
		if !ok {
			orgName, found := orgNames[orgID]
			if !found {
				orgName = UnknownOrganization
			}
			groups = append(groups, OrgTaskGroup{
				OrganizationID:   orgID,
				OrganizationName: orgName,
			})
			oi = len(groups) - 1
			orgIndex[orgID] = oi
			projIndex[orgID] = make(map[string]int)
		}

		pi, ok := projIndex[orgID][t.ProjectID]
		if !ok {
			groups[oi].Projects = append(groups[oi].Projects, TaskGroup{
				ProjectID:   t.ProjectID,
				ProjectName: projName,
			})
			pi = len(groups[oi].Projects) - 1
			projIndex[orgID][t.ProjectID] = pi
		}
		groups[oi].Projects[pi].Tasks = append(groups[oi].Projects[pi].Tasks, t)
	}
	return groups
}

// TasksByStatus filters tasks to one board column, preserving order.
func TasksByStatus(tasks []models.Task, status models.TaskStatus) []models.Task {
	var out []models.Task
	for _, t := range tasks {
		if t.Status == status {
			out = append(out, t)
		}
	}
	return out
}
