package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/project-management-api/internal/authz"
	"github.com/yukikurage/project-management-api/internal/dto"
	"github.com/yukikurage/project-management-api/internal/events"
	"github.com/yukikurage/project-management-api/internal/logger"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/repository"
	"github.com/yukikurage/project-management-api/internal/utils"
	"gorm.io/gorm"
)

// TaskService provides business logic for task operations.
type TaskService struct {
	taskRepo     repository.TaskRepository
	projectRepo  repository.ProjectRepository
	publisher    events.Publisher
	strictDelete bool
	loc          *time.Location
}

// NewTaskService creates a new TaskService. With strictDelete set, batch
// deletes spanning more than one project are rejected. Plain due dates are
// read as midnight in loc.
func NewTaskService(taskRepo repository.TaskRepository, projectRepo repository.ProjectRepository, publisher events.Publisher, strictDelete bool, loc *time.Location) *TaskService {
	if loc == nil {
		loc = time.Local
	}
	return &TaskService{
		taskRepo:     taskRepo,
		projectRepo:  projectRepo,
		publisher:    publisher,
		strictDelete: strictDelete,
		loc:          loc,
	}
}

// CreateTaskInput represents parameters to create a task.
type CreateTaskInput struct {
	ActorID     string
	ProjectID   string
	Title       string
	Description string
	Status      models.TaskStatus
	Type        models.TaskType
	Priority    models.Priority
	AssigneeID  *string
	DueDate     time.Time
	Origin      string
}

// CreateTask creates a task in a project. Only the project's team lead may do this,
// and the assignee, when given, must be a project member.
func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	project, err := s.findProject(ctx, input.ProjectID)
	if err != nil {
		return nil, err
	}

	if !authz.IsProjectTeamLead(input.ActorID, project) {
		return nil, ErrNotTeamLead
	}

	assigneeID := normalizeAssignee(input.AssigneeID)
	if assigneeID != nil && !authz.IsProjectMember(*assigneeID, project) {
		return nil, ErrAssigneeNotMember
	}

	if input.Status == "" {
		input.Status = models.TaskStatusTodo
	}
	if input.Type == "" {
		input.Type = models.TaskTypeTask
	}
	if input.Priority == "" {
		input.Priority = models.PriorityMedium
	}

	task := &models.Task{
		ProjectID:   project.ID,
		Title:       input.Title,
		Description: input.Description,
		Status:      input.Status,
		Type:        input.Type,
		Priority:    input.Priority,
		AssigneeID:  assigneeID,
		DueDate:     input.DueDate,
	}
	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.publishAssigned(ctx, task.ID, input.Origin)

	created, err := s.taskRepo.FindByID(ctx, task.ID, "Assignee")
	if err != nil {
		return nil, fmt.Errorf("failed to reload task: %w", err)
	}
	return created, nil
}

// publishAssigned emits task.assigned. A failed publish is logged and does not
// undo the write.
func (s *TaskService) publishAssigned(ctx context.Context, taskID, origin string) {
	if s.publisher == nil {
		return
	}

	evt, err := events.New(events.TaskAssigned, dto.TaskAssignedData{TaskID: taskID, Origin: origin})
	if err == nil {
		err = s.publisher.Send(ctx, evt)
	}
	if err != nil {
		logger.Log.WithError(err).WithFields(logger.Fields{
			"task_id": taskID,
			"event":   events.TaskAssigned,
		}).Error("failed to publish task assignment")
	}
}

// UpdateTaskInput represents a partial task update. Fields holds the raw
// request attributes keyed by their JSON names; unknown keys are ignored.
type UpdateTaskInput struct {
	ActorID string
	TaskID  string
	Fields  map[string]interface{}
}

// UpdateTask applies a partial update. Only the team lead of the task's project may do this.
func (s *TaskService) UpdateTask(ctx context.Context, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, input.TaskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	project, err := s.findProject(ctx, task.ProjectID)
	if err != nil {
		return nil, err
	}

	if !authz.IsProjectTeamLead(input.ActorID, project) {
		return nil, ErrNotTeamLead
	}

	updates, err := taskColumns(input.Fields, s.loc)
	if err != nil {
		return nil, err
	}

	if assignee, ok := updates["assignee_id"].(string); ok {
		if !authz.IsProjectMember(assignee, project) {
			return nil, ErrAssigneeNotMember
		}
	}

	if len(updates) > 0 {
		if err := s.taskRepo.Update(ctx, task.ID, updates); err != nil {
			return nil, fmt.Errorf("failed to update task: %w", err)
		}
	}

	updated, err := s.taskRepo.FindByID(ctx, task.ID, "Assignee")
	if err != nil {
		return nil, fmt.Errorf("failed to reload task: %w", err)
	}
	return updated, nil
}

// DeleteTasksInput represents parameters to delete a batch of tasks.
type DeleteTasksInput struct {
	ActorID string
	TaskIDs []string
}

// DeleteTasks deletes a batch of tasks. The caller must lead the project of the
// first task found, in request order.
func (s *TaskService) DeleteTasks(ctx context.Context, input DeleteTasksInput) (int64, error) {
	if len(input.TaskIDs) == 0 {
		return 0, ErrNoTaskIDs
	}

	tasks, err := s.taskRepo.FindByIDs(ctx, input.TaskIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to find tasks: %w", err)
	}
	if len(tasks) == 0 {
		return 0, ErrTaskNotFound
	}

	byID := make(map[string]models.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	var first *models.Task
	found := make([]string, 0, len(tasks))
	for _, id := range input.TaskIDs {
		t, ok := byID[id]
		if !ok {
			continue
		}
		if first == nil {
			first = &t
		} else if s.strictDelete && t.ProjectID != first.ProjectID {
			return 0, ErrTasksSpanProjects
		}
		found = append(found, id)
	}

	project, err := s.findProject(ctx, first.ProjectID)
	if err != nil {
		return 0, err
	}

	if !authz.IsProjectTeamLead(input.ActorID, project) {
		return 0, ErrNotTeamLead
	}

	deleted, err := s.taskRepo.DeleteByIDs(ctx, found)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tasks: %w", err)
	}
	return deleted, nil
}

func (s *TaskService) findProject(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.projectRepo.FindByID(ctx, id, "Members")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	return project, nil
}

func normalizeAssignee(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	v := strings.TrimSpace(*id)
	return &v
}

// taskColumns maps request attributes onto task columns, validating each value.
func taskColumns(fields map[string]interface{}, loc *time.Location) (map[string]interface{}, error) {
	updates := make(map[string]interface{})

	for key, raw := range fields {
		switch key {
		case "title":
			v, ok := raw.(string)
			if !ok || strings.TrimSpace(v) == "" {
				return nil, fmt.Errorf("%w: title must be a non-empty string", ErrInvalidField)
			}
			updates["title"] = v
		case "description":
			if raw == nil {
				updates["description"] = ""
				continue
			}
			v, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%w: description must be a string", ErrInvalidField)
			}
			updates["description"] = v
		case "status":
			v, _ := raw.(string)
			switch models.TaskStatus(v) {
			case models.TaskStatusTodo, models.TaskStatusInProgress, models.TaskStatusDone:
				updates["status"] = v
			default:
				return nil, fmt.Errorf("%w: status %v", ErrInvalidField, raw)
			}
		case "type":
			v, _ := raw.(string)
			switch models.TaskType(v) {
			case models.TaskTypeTask, models.TaskTypeBug, models.TaskTypeFeature,
				models.TaskTypeImprovement, models.TaskTypeOther:
				updates["type"] = v
			default:
				return nil, fmt.Errorf("%w: type %v", ErrInvalidField, raw)
			}
		case "priority":
			v, _ := raw.(string)
			if !validPriority(models.Priority(v)) {
				return nil, fmt.Errorf("%w: priority %v", ErrInvalidField, raw)
			}
			updates["priority"] = v
		case "assigneeId":
			if raw == nil {
				updates["assignee_id"] = nil
				continue
			}
			v, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%w: assigneeId must be a string", ErrInvalidField)
			}
			if id := normalizeAssignee(&v); id != nil {
				updates["assignee_id"] = *id
			} else {
				updates["assignee_id"] = nil
			}
		case "due_date":
			v, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("%w: due_date must be a date string", ErrInvalidField)
			}
			due, err := utils.ParseDate(v, loc)
			if err != nil {
				return nil, fmt.Errorf("%w: due_date %q", ErrInvalidField, v)
			}
			updates["due_date"] = due
		}
	}

	return updates, nil
}
