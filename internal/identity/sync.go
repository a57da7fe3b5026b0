// Package identity mirrors users, workspaces and memberships from Clerk events.
// Events are applied as upserts keyed by the Clerk id; delivery order is not checked.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/project-management-api/internal/dto"
	"github.com/yukikurage/project-management-api/internal/events"
	"github.com/yukikurage/project-management-api/internal/logger"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/repository"
	"github.com/yukikurage/project-management-api/internal/workflow"
	"gorm.io/gorm"
)

var (
	ErrMissingID       = errors.New("identity event has no id")
	ErrUnknownInvitee  = errors.New("invited user is not known yet")
	ErrMissingMemberOf = errors.New("invitation has no organization id")
)

type Sync struct {
	users      repository.UserRepository
	workspaces repository.WorkspaceRepository
}

func NewSync(users repository.UserRepository, workspaces repository.WorkspaceRepository) *Sync {
	return &Sync{users: users, workspaces: workspaces}
}

// Functions returns the workflow functions handling every Clerk event.
func (s *Sync) Functions() []workflow.Function {
	return []workflow.Function{
		{ID: "sync-user-from-clerk", Trigger: events.ClerkUserCreated, Handler: s.upsertUser},
		{ID: "update-user-from-clerk", Trigger: events.ClerkUserUpdated, Handler: s.upsertUser},
		{ID: "delete-user-with-clerk", Trigger: events.ClerkUserDeleted, Handler: s.deleteUser},
		{ID: "sync-workspace-from-clerk", Trigger: events.ClerkOrganizationCreated, Handler: s.createWorkspace},
		{ID: "update-workspace-from-clerk", Trigger: events.ClerkOrganizationUpdated, Handler: s.updateWorkspace},
		{ID: "delete-workspace-with-clerk", Trigger: events.ClerkOrganizationDeleted, Handler: s.deleteWorkspace},
		{ID: "sync-workspace-member-from-clerk", Trigger: events.ClerkInvitationAccepted, Handler: s.addMember},
	}
}

func (s *Sync) upsertUser(ctx context.Context, evt events.Event, _ *workflow.Step) error {
	var data dto.ClerkUser
	if err := evt.Decode(&data); err != nil {
		return err
	}
	if data.ID == "" {
		return ErrMissingID
	}

	user := &models.User{
		ID:    data.ID,
		Email: data.PrimaryEmail(),
		Name:  data.FullName(),
		Image: data.ImageURL,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return fmt.Errorf("upserting user %s: %w", data.ID, err)
	}

	logger.Log.WithFields(logger.Fields{"user_id": data.ID, "event": evt.Name}).Info("user synced")
	return nil
}

func (s *Sync) deleteUser(ctx context.Context, evt events.Event, _ *workflow.Step) error {
	var data dto.ClerkDeleted
	if err := evt.Decode(&data); err != nil {
		return err
	}
	if data.ID == "" {
		return ErrMissingID
	}

	if err := s.users.Delete(ctx, data.ID); err != nil {
		return fmt.Errorf("deleting user %s: %w", data.ID, err)
	}

	logger.Log.WithField("user_id", data.ID).Info("user deleted")
	return nil
}

func (s *Sync) createWorkspace(ctx context.Context, evt events.Event, _ *workflow.Step) error {
	var data dto.ClerkOrganization
	if err := evt.Decode(&data); err != nil {
		return err
	}
	if data.ID == "" {
		return ErrMissingID
	}

	if err := s.workspaces.Upsert(ctx, workspaceFrom(data)); err != nil {
		return fmt.Errorf("upserting workspace %s: %w", data.ID, err)
	}

	if data.CreatedBy != "" {
		if err := s.workspaces.UpsertMember(ctx, &models.WorkspaceMember{
			UserID:      data.CreatedBy,
			WorkspaceID: data.ID,
			Role:        models.RoleAdmin,
		}); err != nil {
			return fmt.Errorf("adding workspace creator: %w", err)
		}
	}

	logger.Log.WithFields(logger.Fields{"workspace_id": data.ID, "owner_id": data.CreatedBy}).Info("workspace created")
	return nil
}

func (s *Sync) updateWorkspace(ctx context.Context, evt events.Event, _ *workflow.Step) error {
	var data dto.ClerkOrganization
	if err := evt.Decode(&data); err != nil {
		return err
	}
	if data.ID == "" {
		return ErrMissingID
	}

	if err := s.workspaces.Upsert(ctx, workspaceFrom(data)); err != nil {
		return fmt.Errorf("updating workspace %s: %w", data.ID, err)
	}
	return nil
}

func (s *Sync) deleteWorkspace(ctx context.Context, evt events.Event, _ *workflow.Step) error {
	var data dto.ClerkDeleted
	if err := evt.Decode(&data); err != nil {
		return err
	}
	if data.ID == "" {
		return ErrMissingID
	}

	if err := s.workspaces.Delete(ctx, data.ID); err != nil {
		return fmt.Errorf("deleting workspace %s: %w", data.ID, err)
	}

	logger.Log.WithField("workspace_id", data.ID).Info("workspace deleted")
	return nil
}

func (s *Sync) addMember(ctx context.Context, evt events.Event, _ *workflow.Step) error {
	var data dto.ClerkInvitation
	if err := evt.Decode(&data); err != nil {
		return err
	}
	if data.OrganizationID == "" {
		return ErrMissingMemberOf
	}

	userID := data.UserID
	if userID == "" {
		// older payloads carry only the invited address
		user, err := s.users.FindByEmail(ctx, data.EmailAddress)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrUnknownInvitee, data.EmailAddress)
			}
			return fmt.Errorf("finding invitee: %w", err)
		}
		userID = user.ID
	}

	role, ok := models.ParseWorkspaceRole(data.RoleValue())
	if !ok {
		logger.Log.WithFields(logger.Fields{
			"role":         data.RoleValue(),
			"workspace_id": data.OrganizationID,
		}).Warn("unknown invitation role, defaulting to MEMBER")
		role = models.RoleMember
	}

	if err := s.workspaces.UpsertMember(ctx, &models.WorkspaceMember{
		UserID:      userID,
		WorkspaceID: data.OrganizationID,
		Role:        role,
	}); err != nil {
		return fmt.Errorf("adding workspace member: %w", err)
	}

	logger.Log.WithFields(logger.Fields{
		"user_id":      userID,
		"workspace_id": data.OrganizationID,
		"role":         role,
	}).Info("workspace member synced")
	return nil
}

func workspaceFrom(data dto.ClerkOrganization) *models.Workspace {
	return &models.Workspace{
		ID:       data.ID,
		Name:     data.Name,
		Slug:     data.Slug,
		OwnerID:  data.CreatedBy,
		ImageURL: data.ImageURL,
	}
}
