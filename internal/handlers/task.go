package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/project-management-api/internal/constants"
	apierrors "github.com/yukikurage/project-management-api/internal/errors"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/services"
	"github.com/yukikurage/project-management-api/internal/utils"
)

type TaskHandler struct {
	taskService *services.TaskService
	loc         *time.Location
}

func NewTaskHandler(taskService *services.TaskService, loc *time.Location) *TaskHandler {
	return &TaskHandler{taskService: taskService, loc: loc}
}

type createTaskRequest struct {
	ProjectID   string            `json:"projectId" binding:"required"`
	Title       string            `json:"title" binding:"required"`
	Description string            `json:"description"`
	Status      models.TaskStatus `json:"status" binding:"omitempty,oneof=TODO IN_PROGRESS DONE"`
	Type        models.TaskType   `json:"type" binding:"omitempty,oneof=TASK BUG FEATURE IMPROVEMENT OTHER"`
	Priority    models.Priority   `json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH"`
	AssigneeID  *string           `json:"assigneeId"`
	DueDate     string            `json:"due_date" binding:"required"`
}

type deleteTasksRequest struct {
	TaskIDs []string `json:"tasksIds" binding:"required"`
}

// CreateTask creates a task and schedules its assignment notification
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	dueDate, err := utils.ParseDate(req.DueDate, h.loc)
	if err != nil {
		apierrors.BadRequest(c, "Invalid due_date")
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), services.CreateTaskInput{
		ActorID:     userID,
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Type:        req.Type,
		Priority:    req.Priority,
		AssigneeID:  req.AssigneeID,
		DueDate:     dueDate,
		Origin:      c.GetHeader(constants.HeaderOrigin),
	})
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"task":    task,
		"message": "Task created successfully",
	})
}

// UpdateTask applies the attributes present in the body to a task
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	// Parse raw JSON to detect which fields were sent
	var rawReq map[string]interface{}
	if err := c.ShouldBindJSON(&rawReq); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), services.UpdateTaskInput{
		ActorID: userID,
		TaskID:  c.Param("id"),
		Fields:  rawReq,
	})
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"task":    task,
		"message": "Task updated successfully",
	})
}

// DeleteTasks deletes a batch of tasks
func (h *TaskHandler) DeleteTasks(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req deleteTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	if _, err := h.taskService.DeleteTasks(c.Request.Context(), services.DeleteTasksInput{
		ActorID: userID,
		TaskIDs: req.TaskIDs,
	}); err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			apierrors.NotFound(c, "Tasks not found")
			return
		}
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Tasks deleted successfully"})
}

func respondTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrProjectNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrNotTeamLead):
		apierrors.Forbidden(c, err.Error())
	case errors.Is(err, services.ErrAssigneeNotMember),
		errors.Is(err, services.ErrInvalidField),
		errors.Is(err, services.ErrNoTaskIDs),
		errors.Is(err, services.ErrTasksSpanProjects):
		apierrors.BadRequest(c, err.Error())
	default:
		respondInternal(c, err)
	}
}
