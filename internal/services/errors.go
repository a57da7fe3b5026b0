package services

import "errors"

var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrProjectNotFound   = errors.New("project not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrUserNotFound      = errors.New("user not found")

	ErrNotWorkspaceAdmin      = errors.New("only workspace admins can perform this action")
	ErrProjectUpdateForbidden = errors.New("you do not have permission to update this project")
	ErrNotTeamLead            = errors.New("only the project team lead can perform this action")
	ErrNotProjectMember       = errors.New("you are not a member of this project")

	ErrWorkspaceIDRequired    = errors.New("workspace id is required")
	ErrRoleRequired           = errors.New("role is required")
	ErrInvalidRole            = errors.New("role must be ADMIN or MEMBER")
	ErrAlreadyWorkspaceMember = errors.New("user is already a member of this workspace")
	ErrAlreadyProjectMember   = errors.New("user is already a member of the project")
	ErrAssigneeNotMember      = errors.New("assignee must be a member of the project")
	ErrNoTaskIDs              = errors.New("at least one task id is required")
	ErrTasksSpanProjects      = errors.New("tasks must belong to a single project")
	ErrInvalidField           = errors.New("invalid field value")
)
