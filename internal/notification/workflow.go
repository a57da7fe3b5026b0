// Package notification emails assignees when a task is assigned and reminds
// them on the due date if the task is still open.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/yukikurage/project-management-api/internal/dto"
	"github.com/yukikurage/project-management-api/internal/events"
	"github.com/yukikurage/project-management-api/internal/logger"
	"github.com/yukikurage/project-management-api/internal/mailer"
	"github.com/yukikurage/project-management-api/internal/models"
	"github.com/yukikurage/project-management-api/internal/repository"
	"github.com/yukikurage/project-management-api/internal/utils"
	"github.com/yukikurage/project-management-api/internal/workflow"
	"gorm.io/gorm"
)

const FunctionID = "send-task-assignment-mail"

// Step ids
const (
	StepLoadAssignment  = "load-assignment"
	StepSendAssignment  = "send-assignment-email"
	StepWaitForDueDate  = "wait-for-due-date"
	StepCheckCompletion = "check-task-completion"
	StepSendReminder    = "send-reminder-email"
)

type Workflow struct {
	tasks  repository.TaskRepository
	mailer mailer.Mailer
	loc    *time.Location
}

func NewWorkflow(tasks repository.TaskRepository, m mailer.Mailer, loc *time.Location) *Workflow {
	if loc == nil {
		loc = time.Local
	}
	return &Workflow{tasks: tasks, mailer: m, loc: loc}
}

func (w *Workflow) Function() workflow.Function {
	return workflow.Function{
		ID:      FunctionID,
		Trigger: events.TaskAssigned,
		Handler: w.Handle,
	}
}

// assignment is the memoized snapshot taken when the run starts.
type assignment struct {
	Found         bool      `json:"found"`
	TaskID        string    `json:"taskId"`
	ProjectID     string    `json:"projectId"`
	ProjectName   string    `json:"projectName"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	AssigneeName  string    `json:"assigneeName"`
	AssigneeEmail string    `json:"assigneeEmail"`
	DueDate       time.Time `json:"dueDate"`
	PlannedAt     time.Time `json:"plannedAt"`
}

type completion struct {
	Exists        bool   `json:"exists"`
	Done          bool   `json:"done"`
	AssigneeName  string `json:"assigneeName"`
	AssigneeEmail string `json:"assigneeEmail"`
}

func (w *Workflow) Handle(ctx context.Context, evt events.Event, step *workflow.Step) error {
	var data dto.TaskAssignedData
	if err := evt.Decode(&data); err != nil || data.TaskID == "" {
		logger.Log.WithField("event_id", evt.ID).Warn("task.assigned event without task id, skipping")
		return nil
	}

	log := logger.Log.WithFields(logger.Fields{
		"task_id": data.TaskID,
		"run_id":  step.RunID(),
	})

	a, err := workflow.Run(ctx, step, StepLoadAssignment, func(ctx context.Context) (assignment, error) {
		return w.loadAssignment(ctx, data.TaskID, step.Now())
	})
	if err != nil {
		return err
	}
	if !a.Found {
		log.Info("task missing or unassigned, no notification sent")
		return nil
	}

	link := TaskLink(data.Origin, a.ProjectID, a.TaskID)

	if err := step.Do(ctx, StepSendAssignment, func(ctx context.Context) error {
		body, err := render(assignmentTemplate, newEmailView(a, a.AssigneeName, link, w.loc))
		if err != nil {
			return err
		}
		return w.mailer.Send(ctx, mailer.Message{
			To:      a.AssigneeEmail,
			Subject: "New Task Assignment in " + a.ProjectName,
			Body:    body,
		})
	}); err != nil {
		return err
	}

	if utils.SameDay(a.DueDate, a.PlannedAt, w.loc) {
		return nil
	}

	if err := step.SleepUntil(ctx, StepWaitForDueDate, a.DueDate); err != nil {
		return err
	}

	c, err := workflow.Run(ctx, step, StepCheckCompletion, func(ctx context.Context) (completion, error) {
		return w.checkCompletion(ctx, a.TaskID)
	})
	if err != nil {
		return err
	}
	if !c.Exists {
		log.Info("task deleted before due date, no reminder sent")
		return nil
	}
	if c.Done {
		return nil
	}

	name, to := a.AssigneeName, a.AssigneeEmail
	if c.AssigneeEmail != "" {
		name, to = c.AssigneeName, c.AssigneeEmail
	}

	return step.Do(ctx, StepSendReminder, func(ctx context.Context) error {
		body, err := render(reminderTemplate, newEmailView(a, name, link, w.loc))
		if err != nil {
			return err
		}
		return w.mailer.Send(ctx, mailer.Message{
			To:      to,
			Subject: "Reminder for " + a.ProjectName,
			Body:    body,
		})
	})
}

func (w *Workflow) loadAssignment(ctx context.Context, taskID string, now time.Time) (assignment, error) {
	task, err := w.tasks.FindByID(ctx, taskID, "Assignee", "Project")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return assignment{}, nil
		}
		return assignment{}, fmt.Errorf("loading task: %w", err)
	}
	if task.Assignee == nil || task.Assignee.Email == "" {
		return assignment{}, nil
	}

	a := assignment{
		Found:         true,
		TaskID:        task.ID,
		ProjectID:     task.ProjectID,
		Title:         task.Title,
		Description:   task.Description,
		AssigneeName:  task.Assignee.Name,
		AssigneeEmail: task.Assignee.Email,
		DueDate:       task.DueDate,
		PlannedAt:     now,
	}
	if task.Project != nil {
		a.ProjectName = task.Project.Name
	}
	return a, nil
}

func (w *Workflow) checkCompletion(ctx context.Context, taskID string) (completion, error) {
	task, err := w.tasks.FindByID(ctx, taskID, "Assignee")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return completion{}, nil
		}
		return completion{}, fmt.Errorf("reloading task: %w", err)
	}

	c := completion{
		Exists: true,
		Done:   task.Status == models.TaskStatusDone,
	}
	if task.Assignee != nil {
		c.AssigneeName = task.Assignee.Name
		c.AssigneeEmail = task.Assignee.Email
	}
	return c, nil
}

// TaskLink builds the frontend URL of a task.
func TaskLink(origin, projectID, taskID string) string {
	q := url.Values{}
	q.Set("projectId", projectID)
	q.Set("taskId", taskID)
	return strings.TrimRight(origin, "/") + "/taskDetails?" + q.Encode()
}
