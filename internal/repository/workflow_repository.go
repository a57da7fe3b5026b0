package repository

import (
	"context"
	"time"

	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormWorkflowRepository is a GORM implementation of WorkflowRepository
type GormWorkflowRepository struct {
	db *gorm.DB
}

// NewWorkflowRepository creates a new WorkflowRepository
func NewWorkflowRepository(db *gorm.DB) WorkflowRepository {
	return &GormWorkflowRepository{db: db}
}

func (r *GormWorkflowRepository) CreateRun(ctx context.Context, run *models.WorkflowRun) (bool, error) {
	if run.ID == 0 {
		run.ID = utils.NewSequenceID()
	}

	result := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "function_id"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		Create(run)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *GormWorkflowRepository) FindRun(ctx context.Context, id int64) (*models.WorkflowRun, error) {
	var run models.WorkflowRun
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *GormWorkflowRepository) ListDue(ctx context.Context, now time.Time, leaseExpiredBefore time.Time, limit int) ([]models.WorkflowRun, error) {
	waiting := []models.WorkflowRunStatus{models.RunQueued, models.RunSleeping, models.RunRetrying}

	var runs []models.WorkflowRun
	err := r.db.WithContext(ctx).
		Where("(status IN ? AND wake_at <= ?) OR (status = ? AND updated_at < ?)",
			waiting, now, models.RunRunning, leaseExpiredBefore).
		Order("wake_at ASC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// Claim uses the version column as an optimistic lock.
func (r *GormWorkflowRepository) Claim(ctx context.Context, run *models.WorkflowRun, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.WorkflowRun{}).
		Where("id = ? AND version = ?", run.ID, run.Version).
		Updates(map[string]interface{}{
			"status":     models.RunRunning,
			"version":    gorm.Expr("version + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	run.Status = models.RunRunning
	run.Version++
	run.UpdatedAt = now
	return true, nil
}

func (r *GormWorkflowRepository) SaveState(ctx context.Context, run *models.WorkflowRun) error {
	return r.db.WithContext(ctx).
		Model(&models.WorkflowRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]interface{}{
			"status":     run.Status,
			"wake_at":    run.WakeAt,
			"attempts":   run.Attempts,
			"last_error": run.LastError,
			"updated_at": run.UpdatedAt,
		}).Error
}

func (r *GormWorkflowRepository) FindStep(ctx context.Context, runID int64, stepID string) (*models.WorkflowStep, error) {
	var step models.WorkflowStep
	if err := r.db.WithContext(ctx).
		Where("run_id = ? AND step_id = ?", runID, stepID).
		First(&step).Error; err != nil {
		return nil, err
	}
	return &step, nil
}

func (r *GormWorkflowRepository) SaveStep(ctx context.Context, step *models.WorkflowStep) error {
	if step.ID == 0 {
		step.ID = utils.NewSequenceID()
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}, {Name: "step_id"}},
			DoNothing: true,
		}).
		Create(step).Error
}
