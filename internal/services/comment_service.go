package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/repository"
	"gorm.io/gorm"
)

// CommentService provides business logic for task comments.
type CommentService struct {
	commentRepo repository.CommentRepository
	taskRepo    repository.TaskRepository
	projectRepo repository.ProjectRepository
}

// NewCommentService creates a new CommentService.
func NewCommentService(commentRepo repository.CommentRepository, taskRepo repository.TaskRepository, projectRepo repository.ProjectRepository) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		taskRepo:    taskRepo,
		projectRepo: projectRepo,
	}
}

// AddCommentInput represents parameters to comment on a task.
type AddCommentInput struct {
	ActorID string
	TaskID  string
	Content string
}

// AddComment adds a comment. The caller must be a member of the task's project.
func (s *CommentService) AddComment(ctx context.Context, input AddCommentInput) (*models.Comment, error) {
	task, err := s.taskRepo.FindByID(ctx, input.TaskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	project, err := s.projectRepo.FindByID(ctx, task.ProjectID, "Members")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}

	if !authz.IsProjectMember(input.ActorID, project) {
		return nil, ErrNotProjectMember
	}

	comment := &models.Comment{
		TaskID:  task.ID,
		UserID:  input.ActorID,
		Content: input.Content,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	created, err := s.commentRepo.FindByID(ctx, comment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload comment: %w", err)
	}
	return created, nil
}

// ListTaskComments returns a task's comments with their authors, oldest first.
func (s *CommentService) ListTaskComments(ctx context.Context, taskID string) ([]models.Comment, error) {
	comments, err := s.commentRepo.ListByTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}
