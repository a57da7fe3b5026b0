package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yukikurage/project-management-api/internal/models"
)

func strPtr(s string) *string { return &s }

func TestWorkspaceRules(t *testing.T) {
	ws := &models.Workspace{
		ID: "org_1",
		Members: []models.WorkspaceMember{
			{UserID: "admin", Role: models.RoleAdmin},
			{UserID: "member", Role: models.RoleMember},
		},
	}

	tests := []struct {
		name     string
		userID   string
		isAdmin  bool
		isMember bool
	}{
		{"admin", "admin", true, true},
		{"plain member", "member", false, true},
		{"outsider", "stranger", false, false},
		{"empty caller", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isAdmin, IsWorkspaceAdmin(tt.userID, ws))
			assert.Equal(t, tt.isMember, IsWorkspaceMember(tt.userID, ws))
		})
	}

	assert.False(t, IsWorkspaceAdmin("admin", nil))
}

func TestProjectRules(t *testing.T) {
	project := &models.Project{
		TeamLeadID: strPtr("lead"),
		Members: []models.ProjectMember{
			{UserID: "lead", User: &models.User{ID: "lead", Email: "lead@example.com"}},
			{UserID: "dev", User: &models.User{ID: "dev", Email: "Dev@Example.com"}},
			{UserID: "ghost"},
		},
	}

	assert.True(t, IsProjectTeamLead("lead", project))
	assert.False(t, IsProjectTeamLead("dev", project))
	assert.False(t, IsProjectTeamLead("lead", &models.Project{}))

	assert.True(t, IsProjectMember("dev", project))
	assert.True(t, IsProjectMember("ghost", project))
	assert.False(t, IsProjectMember("stranger", project))

	assert.True(t, HasProjectMemberEmail("dev@example.com", project))
	assert.False(t, HasProjectMemberEmail("ghost@example.com", project))
	assert.False(t, HasProjectMemberEmail("", project))
}

func TestCanUpdateProject(t *testing.T) {
	ws := &models.Workspace{Members: []models.WorkspaceMember{{UserID: "admin", Role: models.RoleAdmin}}}
	project := &models.Project{TeamLeadID: strPtr("lead")}

	assert.True(t, CanUpdateProject("admin", ws, nil))
	assert.True(t, CanUpdateProject("lead", ws, project))
	assert.False(t, CanUpdateProject("someone", ws, project))
	assert.False(t, CanUpdateProject("lead", ws, nil))
}
