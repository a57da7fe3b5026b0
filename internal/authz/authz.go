// Package authz holds the role checks shared by every resource controller.
// The functions only look at rows the caller already loaded; they never query.
package authz

import (
	"strings"

	"github.com/yukikurage/project-management-api/internal/models"
)

// IsWorkspaceAdmin reports whether userID holds the ADMIN role in the workspace.
// Members must be loaded.
func IsWorkspaceAdmin(userID string, workspace *models.Workspace) bool {
	if workspace == nil || userID == "" {
		return false
	}
	for _, m := range workspace.Members {
		if m.UserID == userID && m.Role == models.RoleAdmin {
			return true
		}
	}
	return false
}

// IsWorkspaceMember reports whether userID belongs to the workspace with any role.
func IsWorkspaceMember(userID string, workspace *models.Workspace) bool {
	if workspace == nil || userID == "" {
		return false
	}
	for _, m := range workspace.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// IsProjectTeamLead is false for projects without a lead.
func IsProjectTeamLead(userID string, project *models.Project) bool {
	if project == nil || project.TeamLeadID == nil || userID == "" {
		return false
	}
	return *project.TeamLeadID == userID
}

// IsProjectMember reports whether userID is among the loaded project members.
func IsProjectMember(userID string, project *models.Project) bool {
	if project == nil || userID == "" {
		return false
	}
	for _, m := range project.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// HasProjectMemberEmail matches case-insensitively against members whose User is loaded.
func HasProjectMemberEmail(email string, project *models.Project) bool {
	if project == nil || email == "" {
		return false
	}
	for _, m := range project.Members {
		if m.User != nil && strings.EqualFold(m.User.Email, email) {
			return true
		}
	}
	return false
}

// CanUpdateProject combines the workspace-admin and team-lead rules. The
// project is only consulted when the workspace check fails.
func CanUpdateProject(userID string, workspace *models.Workspace, project *models.Project) bool {
	if IsWorkspaceAdmin(userID, workspace) {
		return true
	}
	return IsProjectTeamLead(userID, project)
}
