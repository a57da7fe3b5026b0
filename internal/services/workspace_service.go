package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/repository"
	"gorm.io/gorm"
)

// WorkspaceService provides business logic for workspace operations.
type WorkspaceService struct {
	workspaceRepo repository.WorkspaceRepository
	userRepo      repository.UserRepository
}

// NewWorkspaceService creates a new WorkspaceService.
func NewWorkspaceService(workspaceRepo repository.WorkspaceRepository, userRepo repository.UserRepository) *WorkspaceService {
	return &WorkspaceService{
		workspaceRepo: workspaceRepo,
		userRepo:      userRepo,
	}
}

// ListForUser returns every workspace the user belongs to with its full project tree.
func (s *WorkspaceService) ListForUser(ctx context.Context, userID string) ([]models.Workspace, error) {
	workspaces, err := s.workspaceRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	if workspaces == nil {
		workspaces = []models.Workspace{}
	}
	return workspaces, nil
}

// AddWorkspaceMemberInput represents parameters to add a workspace member.
type AddWorkspaceMemberInput struct {
	ActorID     string
	Email       string
	Role        string
	WorkspaceID string
	Message     string
}

// AddMember adds an existing user to a workspace. Only workspace admins may do this.
func (s *WorkspaceService) AddMember(ctx context.Context, input AddWorkspaceMemberInput) (*models.WorkspaceMember, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(input.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if input.WorkspaceID == "" {
		return nil, ErrWorkspaceIDRequired
	}
	if input.Role == "" {
		return nil, ErrRoleRequired
	}
	role := models.WorkspaceRole(input.Role)
	if role != models.RoleAdmin && role != models.RoleMember {
		return nil, ErrInvalidRole
	}

	workspace, err := s.workspaceRepo.FindByID(ctx, input.WorkspaceID, "Members")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, fmt.Errorf("failed to find workspace: %w", err)
	}

	if !authz.IsWorkspaceAdmin(input.ActorID, workspace) {
		return nil, ErrNotWorkspaceAdmin
	}

	if authz.IsWorkspaceMember(user.ID, workspace) {
		return nil, ErrAlreadyWorkspaceMember
	}

	member := &models.WorkspaceMember{
		UserID:      user.ID,
		WorkspaceID: workspace.ID,
		Role:        role,
		Message:     input.Message,
	}
	if err := s.workspaceRepo.AddMember(ctx, member); err != nil {
		return nil, fmt.Errorf("failed to add workspace member: %w", err)
	}

	member.User = user
	return member, nil
}
