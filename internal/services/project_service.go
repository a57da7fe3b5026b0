package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/repository"
	"gorm.io/gorm"
)

// ProjectService provides business logic for project operations.
type ProjectService struct {
	projectRepo   repository.ProjectRepository
	workspaceRepo repository.WorkspaceRepository
	userRepo      repository.UserRepository
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projectRepo repository.ProjectRepository, workspaceRepo repository.WorkspaceRepository, userRepo repository.UserRepository) *ProjectService {
	return &ProjectService{
		projectRepo:   projectRepo,
		workspaceRepo: workspaceRepo,
		userRepo:      userRepo,
	}
}

// ProjectFields are the attributes shared by create and update.
type ProjectFields struct {
	Name        string
	Description string
	Status      models.ProjectStatus
	Priority    models.Priority
	Progress    int
	StartDate   *time.Time
	EndDate     *time.Time
}

// CreateProjectInput represents parameters to create a project.
type CreateProjectInput struct {
	ProjectFields
	ActorID          string
	WorkspaceID      string
	TeamLeadEmail    string
	TeamMemberEmails []string
}

// UpdateProjectInput represents parameters to update a project.
type UpdateProjectInput struct {
	ProjectFields
	ActorID     string
	ID          string
	WorkspaceID string
}

var projectDisplayRelations = []string{"Members.User", "Tasks.Assignee", "Owner"}

// CreateProject creates a project in a workspace. Only workspace admins may do this.
// The team lead and members are resolved from emails; unknown emails are skipped.
func (s *ProjectService) CreateProject(ctx context.Context, input CreateProjectInput) (*models.Project, error) {
	workspace, err := s.workspaceRepo.FindByID(ctx, input.WorkspaceID, "Members.User")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("failed to find workspace: %w", err)
	}

	if !authz.IsWorkspaceAdmin(input.ActorID, workspace) {
		return nil, ErrNotWorkspaceAdmin
	}

	if err := normalizeProjectFields(&input.ProjectFields); err != nil {
		return nil, err
	}

	var teamLeadID *string
	if email := strings.TrimSpace(input.TeamLeadEmail); email != "" {
		lead, err := s.userRepo.FindByEmail(ctx, email)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to find team lead: %w", err)
		}
		if lead != nil {
			teamLeadID = &lead.ID
		}
	}

	project := &models.Project{
		WorkspaceID: workspace.ID,
		Name:        input.Name,
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		Progress:    input.Progress,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		TeamLeadID:  teamLeadID,
	}

	if err := s.projectRepo.Create(ctx, project, workspaceMembersByEmail(workspace, input.TeamMemberEmails)); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	created, err := s.projectRepo.FindByID(ctx, project.ID, projectDisplayRelations...)
	if err != nil {
		return nil, fmt.Errorf("failed to reload project: %w", err)
	}
	return created, nil
}

// UpdateProject replaces the mutable fields of a project. Workspace admins and
// the project's team lead may do this.
func (s *ProjectService) UpdateProject(ctx context.Context, input UpdateProjectInput) (*models.Project, error) {
	workspace, err := s.workspaceRepo.FindByID(ctx, input.WorkspaceID, "Members")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("failed to find workspace: %w", err)
	}

	project, err := s.findProject(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if !authz.CanUpdateProject(input.ActorID, workspace, project) {
		return nil, ErrProjectUpdateForbidden
	}

	if project.WorkspaceID != workspace.ID {
		return nil, ErrProjectNotFound
	}

	if err := normalizeProjectFields(&input.ProjectFields); err != nil {
		return nil, err
	}

	project.Name = input.Name
	project.Description = input.Description
	project.Status = input.Status
	project.Priority = input.Priority
	project.Progress = input.Progress
	project.StartDate = input.StartDate
	project.EndDate = input.EndDate

	if err := s.projectRepo.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	updated, err := s.projectRepo.FindByID(ctx, project.ID, projectDisplayRelations...)
	if err != nil {
		return nil, fmt.Errorf("failed to reload project: %w", err)
	}
	return updated, nil
}

// AddProjectMemberInput represents parameters to add a project member.
type AddProjectMemberInput struct {
	ActorID   string
	ProjectID string
	Email     string
}

// AddMember adds a user to a project by email. Only the team lead may do this.
func (s *ProjectService) AddMember(ctx context.Context, input AddProjectMemberInput) (*models.ProjectMember, error) {
	project, err := s.findProject(ctx, input.ProjectID, "Members.User")
	if err != nil {
		return nil, err
	}

	if !authz.IsProjectTeamLead(input.ActorID, project) {
		return nil, ErrNotTeamLead
	}

	email := strings.TrimSpace(input.Email)
	if authz.HasProjectMemberEmail(email, project) {
		return nil, ErrAlreadyProjectMember
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	member := &models.ProjectMember{
		UserID:    user.ID,
		ProjectID: project.ID,
	}
	if err := s.projectRepo.AddMember(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to add project member: %w", err)
	}

	member.User = user
	return member, nil
}

func (s *ProjectService) findProject(ctx context.Context, id string, preload ...string) (*models.Project, error) {
	project, err := s.projectRepo.FindByID(ctx, id, preload...)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	return project, nil
}

func normalizeProjectFields(f *ProjectFields) error {
	if f.Status == "" {
		f.Status = models.ProjectStatusActive
	}
	if f.Priority == "" {
		f.Priority = models.PriorityMedium
	}

	switch f.Status {
	case models.ProjectStatusPlanning, models.ProjectStatusActive, models.ProjectStatusOnHold,
		models.ProjectStatusCompleted, models.ProjectStatusCancelled:
	default:
		return fmt.Errorf("%w: status %q", ErrInvalidField, f.Status)
	}
	if !validPriority(f.Priority) {
		return fmt.Errorf("%w: priority %q", ErrInvalidField, f.Priority)
	}
	if f.Progress < 0 || f.Progress > 100 {
		return fmt.Errorf("%w: progress must be between 0 and 100", ErrInvalidField)
	}
	return nil
}

func validPriority(p models.Priority) bool {
	switch p {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh:
		return true
	}
	return false
}

// workspaceMembersByEmail returns the ids of workspace members whose email is
// listed. Emails outside the workspace are ignored.
func workspaceMembersByEmail(workspace *models.Workspace, emails []string) []string {
	if len(emails) == 0 {
		return nil
	}

	wanted := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		wanted[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}

	var ids []string
	seen := make(map[string]struct{})
	for _, m := range workspace.Members {
		if m.User == nil {
			continue
		}
		if _, ok := wanted[strings.ToLower(m.User.Email)]; !ok {
			continue
		}
		if _, dup := seen[m.UserID]; dup {
			continue
		}
		seen[m.UserID] = struct{}{}
		ids = append(ids, m.UserID)
	}
	return ids
}
