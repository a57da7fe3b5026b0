package repository

import (
	"context"

	"github.com/yukikurage/project-management-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProjectRepository is a GORM implementation of ProjectRepository
type GormProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &GormProjectRepository{db: db}
}

// FindByID finds a project by ID with optional preloading
func (r *GormProjectRepository) FindByID(ctx context.Context, id string, preload ...string) (*models.Project, error) {
	var project models.Project
	query := r.db.WithContext(ctx)

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.Where("id = ?", id).First(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// Create creates the project and bulk-inserts its initial members
func (r *GormProjectRepository) Create(ctx context.Context, project *models.Project, memberIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(project).Error; err != nil {
			return err
		}

		if len(memberIDs) == 0 {
			return nil
		}

		members := make([]models.ProjectMember, len(memberIDs))
		for i, userID := range memberIDs {
			members[i] = models.ProjectMember{
				UserID:    userID,
				ProjectID: project.ID,
			}
		}

		return tx.
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&members).Error
	})
}

// Update overwrites the descriptive and scheduling fields; membership and lead are untouched
func (r *GormProjectRepository) Update(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).
		Model(&models.Project{ID: project.ID}).
		Select("name", "description", "status", "priority", "progress", "start_date", "end_date").
		Updates(project).Error
}

// AddMember adds a member to a project
func (r *GormProjectRepository) AddMember(ctx context.Context, member *models.ProjectMember) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(member).Error
}
