package models

import (
	"time"

	"gorm.io/datatypes"
)

type WorkflowRunStatus string

const (
	RunQueued    WorkflowRunStatus = "queued"
	RunRunning   WorkflowRunStatus = "running"
	RunSleeping  WorkflowRunStatus = "sleeping"
	RunRetrying  WorkflowRunStatus = "retrying"
	RunCompleted WorkflowRunStatus = "completed"
	RunFailed    WorkflowRunStatus = "failed"
)

// WorkflowRun is one execution of a registered function for one event.
// Version is bumped on every claim so concurrent schedulers cannot both run it.
type WorkflowRun struct {
	ID         int64             `gorm:"primarykey;autoIncrement:false" json:"id"`
	FunctionID string            `gorm:"type:varchar(128);not null;uniqueIndex:idx_workflow_runs_function_event" json:"function_id"`
	EventID    string            `gorm:"type:varchar(64);not null;uniqueIndex:idx_workflow_runs_function_event" json:"event_id"`
	EventName  string            `gorm:"type:varchar(128);not null" json:"event_name"`
	Event      datatypes.JSON    `json:"event"`
	Status     WorkflowRunStatus `gorm:"type:varchar(20);not null;index:idx_workflow_runs_status_wake" json:"status"`
	WakeAt     time.Time         `gorm:"index:idx_workflow_runs_status_wake" json:"wake_at"`
	Attempts   int               `gorm:"not null;default:0" json:"attempts"`
	Version    int               `gorm:"not null;default:0" json:"version"`
	LastError  string            `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`

	Steps []WorkflowStep `gorm:"foreignKey:RunID" json:"steps,omitempty"`
}

// WorkflowStep is the memoized result of a named step inside a run.
type WorkflowStep struct {
	ID          int64          `gorm:"primarykey;autoIncrement:false" json:"id"`
	RunID       int64          `gorm:"not null;uniqueIndex:idx_workflow_steps_run_step" json:"run_id"`
	StepID      string         `gorm:"type:varchar(128);not null;uniqueIndex:idx_workflow_steps_run_step" json:"step_id"`
	Output      datatypes.JSON `json:"output,omitempty"`
	CompletedAt time.Time      `json:"completed_at"`
}
