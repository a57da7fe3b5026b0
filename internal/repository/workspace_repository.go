package repository

import (
	"context"

	"github.com/yukikurage/project-management-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormWorkspaceRepository is a GORM implementation of WorkspaceRepository
type GormWorkspaceRepository struct {
	db *gorm.DB
}

// NewWorkspaceRepository creates a new WorkspaceRepository
func NewWorkspaceRepository(db *gorm.DB) WorkspaceRepository {
	return &GormWorkspaceRepository{db: db}
}

// FindByID finds a workspace by ID with optional preloading
func (r *GormWorkspaceRepository) FindByID(ctx context.Context, id string, preload ...string) (*models.Workspace, error) {
	var workspace models.Workspace
	query := r.db.WithContext(ctx)

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.Where("id = ?", id).First(&workspace).Error; err != nil {
		return nil, err
	}
	return &workspace, nil
}

// ListForUser returns the caller's workspaces with members, owner and the
// project tree down to comment authors
func (r *GormWorkspaceRepository) ListForUser(ctx context.Context, userID string) ([]models.Workspace, error) {
	db := r.db.WithContext(ctx)
	memberOf := db.Model(&models.WorkspaceMember{}).Select("workspace_id").Where("user_id = ?", userID)

	var workspaces []models.Workspace
	err := db.
		Where("id IN (?)", memberOf).
		Preload("Members.User").
		Preload("Owner").
		Preload("Projects.Members.User").
		Preload("Projects.Tasks.Assignee").
		Preload("Projects.Tasks.Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Projects.Tasks.Comments.User").
		Order("created_at ASC").
		Find(&workspaces).Error
	if err != nil {
		return nil, err
	}
	return workspaces, nil
}

// Upsert inserts the workspace or overwrites name, slug and image of the existing row
func (r *GormWorkspaceRepository) Upsert(ctx context.Context, workspace *models.Workspace) error {
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "slug", "image_url", "updated_at"}),
		}).
		Create(workspace).Error
}

// Delete removes the workspace, its projects, their tasks and comments, and all memberships
func (r *GormWorkspaceRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var projectIDs []string
		if err := tx.Model(&models.Project{}).Where("workspace_id = ?", id).Pluck("id", &projectIDs).Error; err != nil {
			return err
		}

		if len(projectIDs) > 0 {
			var taskIDs []string
			if err := tx.Model(&models.Task{}).Where("project_id IN ?", projectIDs).Pluck("id", &taskIDs).Error; err != nil {
				return err
			}
			if len(taskIDs) > 0 {
				if err := tx.Where("task_id IN ?", taskIDs).Delete(&models.Comment{}).Error; err != nil {
					return err
				}
				if err := tx.Where("id IN ?", taskIDs).Delete(&models.Task{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("project_id IN ?", projectIDs).Delete(&models.ProjectMember{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", projectIDs).Delete(&models.Project{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("workspace_id = ?", id).Delete(&models.WorkspaceMember{}).Error; err != nil {
			return err
		}

		return tx.Where("id = ?", id).Delete(&models.Workspace{}).Error
	})
}

// FindMember finds a specific workspace member
func (r *GormWorkspaceRepository) FindMember(ctx context.Context, workspaceID, userID string) (*models.WorkspaceMember, error) {
	var member models.WorkspaceMember
	if err := r.db.WithContext(ctx).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// AddMember adds a member to a workspace
func (r *GormWorkspaceRepository) AddMember(ctx context.Context, member *models.WorkspaceMember) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(member).Error
}

// UpsertMember adds a member, or updates role and message when the membership exists
func (r *GormWorkspaceRepository) UpsertMember(ctx context.Context, member *models.WorkspaceMember) error {
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "workspace_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "message"}),
		}).
		Create(member).Error
}
